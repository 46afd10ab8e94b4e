package repository

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/mmeshcher/petit-coffre/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresRepository хранит учётные записи и документы в PostgreSQL.
// Документ пользователя хранится целиком в колонке JSONB.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	var err error
	delays := []time.Duration{1 * time.Second, 3 * time.Second, 5 * time.Second}

	for i := 0; i <= len(delays); i++ {
		err = fn()
		if err == nil {
			return nil
		}

		// Ошибки контекста не повторяем
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		if !isRetryable(err) || i == len(delays) {
			break
		}

		timer := time.NewTimer(delays[i])
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected
	}
	return isConnectionError(err)
}

func isConnectionError(err error) bool {
	// Упрощенная проверка на ошибки соединения
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// CreateUser создаёт пользователя и его документ в одной транзакции.
func (r *PostgresRepository) CreateUser(ctx context.Context, username, passwordHash string, doc *model.FinancialDocument) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}

	return r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		_, err = tx.Exec(ctx,
			`INSERT INTO users (username, password_hash) VALUES ($1, $2)`,
			username, passwordHash,
		)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
				return fmt.Errorf("%w: %s", ErrUserExists, username)
			}
			return fmt.Errorf("create user: %w", err)
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO documents (username, body) VALUES ($1, $2)`,
			username, body,
		)
		if err != nil {
			return fmt.Errorf("create document: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
}

// GetCredential возвращает учётные данные пользователя.
func (r *PostgresRepository) GetCredential(ctx context.Context, username string) (*model.Credential, error) {
	c := model.Credential{Username: username}
	err := r.withRetry(ctx, func() error {
		return r.pool.QueryRow(ctx,
			`SELECT password_hash FROM users WHERE username = $1`,
			username,
		).Scan(&c.PasswordHash)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &c, nil
}

// UpdatePasswordHash заменяет дайджест пароля пользователя.
func (r *PostgresRepository) UpdatePasswordHash(ctx context.Context, username, passwordHash string) error {
	var tag pgconn.CommandTag
	err := r.withRetry(ctx, func() error {
		var err error
		tag, err = r.pool.Exec(ctx,
			`UPDATE users SET password_hash = $2 WHERE username = $1`,
			username, passwordHash,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// GetDocument возвращает документ пользователя или новый документ, если его нет.
// Документ старой версии схемы приводится к текущей и записывается обратно.
func (r *PostgresRepository) GetDocument(ctx context.Context, username string) (*model.FinancialDocument, error) {
	var body []byte
	err := r.withRetry(ctx, func() error {
		return r.pool.QueryRow(ctx,
			`SELECT body FROM documents WHERE username = $1`,
			username,
		).Scan(&body)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.NewFinancialDocument(), nil
		}
		return nil, fmt.Errorf("get document: %w", err)
	}

	var doc model.FinancialDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}

	if model.Migrate(&doc) {
		if err := r.PutDocument(ctx, username, &doc); err != nil {
			return nil, fmt.Errorf("persist migrated document: %w", err)
		}
	}

	return &doc, nil
}

// PutDocument заменяет документ пользователя.
func (r *PostgresRepository) PutDocument(ctx context.Context, username string, doc *model.FinancialDocument) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}

	err = r.withRetry(ctx, func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO documents (username, body, updated_at) VALUES ($1, $2, now())
			 ON CONFLICT (username) DO UPDATE SET body = EXCLUDED.body, updated_at = now()`,
			username, body,
		)
		return err
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return ErrUserNotFound
		}
		return fmt.Errorf("put document: %w", err)
	}
	return nil
}
