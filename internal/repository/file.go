package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/petit-coffre/internal/model"
)

// Имена файлов данных внутри каталога хранилища.
const (
	UsersFileName = "users.json"
	DataFileName  = "budget_data.json"
)

// FileRepository хранит учётные записи и документы в двух JSON-файлах.
// Оба файла целиком перезаписываются при каждом изменении.
//
// Хранилище рассчитано на один экземпляр процесса: несколько процессов,
// работающих с одними файлами, перезаписывают изменения друг друга.
type FileRepository struct {
	mu        sync.RWMutex
	usersPath string
	dataPath  string
	users     map[string]string
	data      map[string]*model.FinancialDocument
	logger    *zap.Logger
}

// NewFileRepository открывает хранилище в каталоге dir. Отсутствующий или повреждённый
// файл считается пустым; повреждённый файл сохраняется рядом с суффиксом .corrupt.
// Документы старых версий приводятся к текущей схеме один раз при загрузке.
func NewFileRepository(dir string, logger *zap.Logger) (*FileRepository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	r := &FileRepository{
		usersPath: filepath.Join(dir, UsersFileName),
		dataPath:  filepath.Join(dir, DataFileName),
		users:     make(map[string]string),
		data:      make(map[string]*model.FinancialDocument),
		logger:    logger,
	}

	if err := r.load(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *FileRepository) load() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.readFile(r.usersPath, &r.users)
	if r.users == nil {
		r.users = make(map[string]string)
	}

	var raw map[string]json.RawMessage
	r.readFile(r.dataPath, &raw)

	migrated := 0
	backedUp := false
	for username, body := range raw {
		var doc *model.FinancialDocument
		if err := json.Unmarshal(body, &doc); err != nil {
			// Повреждённый документ одного пользователя не затрагивает остальных.
			r.logger.Warn("financial document corrupt, starting empty",
				zap.String("user", username),
				zap.Error(err),
			)
			if !backedUp {
				r.backupFile(r.dataPath)
				backedUp = true
			}
			doc = nil
		}

		if doc == nil {
			r.data[username] = model.NewFinancialDocument()
			migrated++
			continue
		}
		if model.Migrate(doc) {
			migrated++
		}
		r.data[username] = doc
	}

	if migrated > 0 {
		r.logger.Info("financial documents migrated",
			zap.Int("count", migrated),
			zap.Int("version", model.CurrentSchemaVersion),
		)
		if err := writeJSONAtomic(r.dataPath, r.data); err != nil {
			return fmt.Errorf("persist migrated documents: %w", err)
		}
	}

	return nil
}

// readFile читает JSON-файл в dst. Ошибки чтения и разбора не фатальны.
func (r *FileRepository) readFile(path string, dst any) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			r.logger.Warn("data file unreadable, starting empty", zap.String("path", path), zap.Error(err))
		}
		return
	}
	if len(data) == 0 {
		return
	}

	if err := json.Unmarshal(data, dst); err != nil {
		r.logger.Warn("data file corrupt, starting empty", zap.String("path", path), zap.Error(err))

		if err := os.Rename(path, corruptName(path)); err != nil {
			r.logger.Warn("keep corrupt data file", zap.String("path", path), zap.Error(err))
		}

		// json.Unmarshal может частично заполнить dst.
		switch v := dst.(type) {
		case *map[string]string:
			*v = make(map[string]string)
		case *map[string]json.RawMessage:
			*v = nil
		}
	}
}

// backupFile копирует файл рядом с суффиксом .corrupt, оставляя оригинал на месте.
func (r *FileRepository) backupFile(path string) {
	data, err := os.ReadFile(path)
	if err == nil {
		err = os.WriteFile(corruptName(path), data, 0o600)
	}
	if err != nil {
		r.logger.Warn("backup data file", zap.String("path", path), zap.Error(err))
	}
}

func corruptName(path string) string {
	return fmt.Sprintf("%s.corrupt-%s", path, time.Now().UTC().Format("20060102T150405"))
}

// Close освобождает ресурсы хранилища. Все изменения уже записаны на диск.
func (r *FileRepository) Close() error {
	return nil
}

// CreateUser создаёт пользователя и его финансовый документ.
func (r *FileRepository) CreateUser(_ context.Context, username, passwordHash string, doc *model.FinancialDocument) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[username]; ok {
		return fmt.Errorf("%w: %s", ErrUserExists, username)
	}

	prevDoc, hadDoc := r.data[username]

	r.users[username] = passwordHash
	r.data[username] = doc.Clone()

	if err := r.persistLocked(); err != nil {
		delete(r.users, username)
		if hadDoc {
			r.data[username] = prevDoc
		} else {
			delete(r.data, username)
		}
		return err
	}
	return nil
}

// GetCredential возвращает учётные данные пользователя.
func (r *FileRepository) GetCredential(_ context.Context, username string) (*model.Credential, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	hash, ok := r.users[username]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &model.Credential{Username: username, PasswordHash: hash}, nil
}

// UpdatePasswordHash заменяет дайджест пароля пользователя.
func (r *FileRepository) UpdatePasswordHash(_ context.Context, username, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, ok := r.users[username]
	if !ok {
		return ErrUserNotFound
	}

	r.users[username] = passwordHash
	if err := r.persistLocked(); err != nil {
		r.users[username] = prev
		return err
	}
	return nil
}

// GetDocument возвращает копию документа пользователя или новый документ, если его нет.
func (r *FileRepository) GetDocument(_ context.Context, username string) (*model.FinancialDocument, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	doc, ok := r.data[username]
	if !ok {
		return model.NewFinancialDocument(), nil
	}
	return doc.Clone(), nil
}

// PutDocument заменяет документ пользователя и сразу сохраняет его на диск.
func (r *FileRepository) PutDocument(_ context.Context, username string, doc *model.FinancialDocument) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, hadPrev := r.data[username]

	r.data[username] = doc.Clone()
	if err := r.persistLocked(); err != nil {
		if hadPrev {
			r.data[username] = prev
		} else {
			delete(r.data, username)
		}
		return err
	}
	return nil
}

func (r *FileRepository) persistLocked() error {
	if err := writeJSONAtomic(r.usersPath, r.users); err != nil {
		return fmt.Errorf("persist users: %w", err)
	}
	if err := writeJSONAtomic(r.dataPath, r.data); err != nil {
		return fmt.Errorf("persist documents: %w", err)
	}
	return nil
}

// writeJSONAtomic записывает значение во временный файл и переименовывает его поверх path.
func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}
	return nil
}
