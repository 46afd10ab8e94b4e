package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/petit-coffre/internal/model"
)

func newTestPostgres(t *testing.T) *PostgresRepository {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URI")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URI is not set")
	}

	repo, err := NewPostgresRepository(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestPostgresRepository_Users(t *testing.T) {
	repo := newTestPostgres(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	username := "user-" + uuid.NewString()

	require.NoError(t, repo.CreateUser(ctx, username, "hash", model.NewFinancialDocument()))
	assert.ErrorIs(t, repo.CreateUser(ctx, username, "other", model.NewFinancialDocument()), ErrUserExists)

	c, err := repo.GetCredential(ctx, username)
	require.NoError(t, err)
	assert.Equal(t, "hash", c.PasswordHash)

	require.NoError(t, repo.UpdatePasswordHash(ctx, username, "hash2"))
	c, err = repo.GetCredential(ctx, username)
	require.NoError(t, err)
	assert.Equal(t, "hash2", c.PasswordHash)

	_, err = repo.GetCredential(ctx, "missing-"+uuid.NewString())
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestPostgresRepository_Documents(t *testing.T) {
	repo := newTestPostgres(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	username := "user-" + uuid.NewString()
	require.NoError(t, repo.CreateUser(ctx, username, "hash", model.NewFinancialDocument()))

	doc, err := repo.GetDocument(ctx, username)
	require.NoError(t, err)
	doc.Savings = decimal.NewFromInt(1234)
	doc.Months["2024-06"] = model.NewMonthRecord()
	require.NoError(t, repo.PutDocument(ctx, username, doc))

	got, err := repo.GetDocument(ctx, username)
	require.NoError(t, err)
	assert.True(t, got.Savings.Equal(decimal.NewFromInt(1234)))
	assert.Contains(t, got.Months, "2024-06")

	assert.ErrorIs(t, repo.PutDocument(ctx, "missing-"+uuid.NewString(), doc), ErrUserNotFound)
}
