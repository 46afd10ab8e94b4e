package repository

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/mmeshcher/petit-coffre/internal/model"
)

type FileRepositorySuite struct {
	suite.Suite
	dir  string
	repo *FileRepository
}

func (s *FileRepositorySuite) SetupTest() {
	s.dir = s.T().TempDir()
	repo, err := NewFileRepository(s.dir, nil)
	require.NoError(s.T(), err)
	s.repo = repo
}

func (s *FileRepositorySuite) TearDownTest() {
	s.NoError(s.repo.Close())
}

func (s *FileRepositorySuite) reopen() *FileRepository {
	repo, err := NewFileRepository(s.dir, nil)
	require.NoError(s.T(), err)
	return repo
}

func (s *FileRepositorySuite) TestCreateUser_Duplicate() {
	ctx := context.Background()

	s.Require().NoError(s.repo.CreateUser(ctx, "alice", "hash1", model.NewFinancialDocument()))

	err := s.repo.CreateUser(ctx, "alice", "hash2", model.NewFinancialDocument())
	s.ErrorIs(err, ErrUserExists)

	c, err := s.repo.GetCredential(ctx, "alice")
	s.Require().NoError(err)
	s.Equal("hash1", c.PasswordHash)
}

func (s *FileRepositorySuite) TestGetCredential_Unknown() {
	_, err := s.repo.GetCredential(context.Background(), "nobody")
	s.ErrorIs(err, ErrUserNotFound)
}

func (s *FileRepositorySuite) TestPersistedFormat() {
	ctx := context.Background()
	s.Require().NoError(s.repo.CreateUser(ctx, "alice", "abc123", model.NewFinancialDocument()))

	raw, err := os.ReadFile(filepath.Join(s.dir, UsersFileName))
	s.Require().NoError(err)
	var users map[string]string
	s.Require().NoError(json.Unmarshal(raw, &users))
	s.Equal(map[string]string{"alice": "abc123"}, users)

	raw, err = os.ReadFile(filepath.Join(s.dir, DataFileName))
	s.Require().NoError(err)
	var data map[string]map[string]any
	s.Require().NoError(json.Unmarshal(raw, &data))
	s.Contains(data, "alice")
	s.Equal(float64(0), data["alice"]["savings"])
	s.Equal(map[string]any{}, data["alice"]["months"])

	_, err = os.Stat(filepath.Join(s.dir, DataFileName+".tmp"))
	s.True(os.IsNotExist(err), "temp file must be renamed away")
}

func (s *FileRepositorySuite) TestDocumentRoundTripAcrossReopen() {
	ctx := context.Background()
	s.Require().NoError(s.repo.CreateUser(ctx, "alice", "h", model.NewFinancialDocument()))

	doc, err := s.repo.GetDocument(ctx, "alice")
	s.Require().NoError(err)
	doc.Savings = decimal.NewFromInt(5000)
	m := model.NewMonthRecord()
	m.Budget[model.CategoryTransport] = decimal.NewFromInt(10000)
	doc.Months["2024-06"] = m
	s.Require().NoError(s.repo.PutDocument(ctx, "alice", doc))

	reopened := s.reopen()
	got, err := reopened.GetDocument(ctx, "alice")
	s.Require().NoError(err)
	s.True(got.Savings.Equal(decimal.NewFromInt(5000)))
	s.Require().Contains(got.Months, "2024-06")
	s.True(got.Months["2024-06"].Budget[model.CategoryTransport].Equal(decimal.NewFromInt(10000)))
}

func (s *FileRepositorySuite) TestGetDocumentReturnsCopy() {
	ctx := context.Background()
	s.Require().NoError(s.repo.CreateUser(ctx, "alice", "h", model.NewFinancialDocument()))

	doc, err := s.repo.GetDocument(ctx, "alice")
	s.Require().NoError(err)
	doc.Months["2024-06"] = model.NewMonthRecord()

	again, err := s.repo.GetDocument(ctx, "alice")
	s.Require().NoError(err)
	s.Empty(again.Months, "mutations without PutDocument must not leak into the store")
}

func (s *FileRepositorySuite) TestGetDocument_Absent() {
	doc, err := s.repo.GetDocument(context.Background(), "ghost")
	s.Require().NoError(err)
	s.Empty(doc.Months)
	s.True(doc.Savings.IsZero())
	s.Equal(model.CurrentSchemaVersion, doc.Version)
}

func (s *FileRepositorySuite) TestUpdatePasswordHash() {
	ctx := context.Background()
	s.Require().NoError(s.repo.CreateUser(ctx, "alice", "old", model.NewFinancialDocument()))

	s.Require().NoError(s.repo.UpdatePasswordHash(ctx, "alice", "new"))
	s.ErrorIs(s.repo.UpdatePasswordHash(ctx, "bob", "x"), ErrUserNotFound)

	c, err := s.reopen().GetCredential(ctx, "alice")
	s.Require().NoError(err)
	s.Equal("new", c.PasswordHash)
}

func TestFileRepositorySuite(t *testing.T) {
	suite.Run(t, new(FileRepositorySuite))
}

func TestNewFileRepository_CorruptFilesDegradeToEmpty(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, UsersFileName), []byte(`{"alice": `), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, DataFileName), []byte(`not json`), 0o600))

	repo, err := NewFileRepository(dir, nil)
	require.NoError(t, err)

	_, err = repo.GetCredential(context.Background(), "alice")
	assert.ErrorIs(t, err, ErrUserNotFound)

	matches, err := filepath.Glob(filepath.Join(dir, "*.corrupt-*"))
	require.NoError(t, err)
	assert.Len(t, matches, 2)

	require.NoError(t, repo.CreateUser(context.Background(), "alice", "h", model.NewFinancialDocument()))
}

func TestNewFileRepository_MigratesLegacyDocuments(t *testing.T) {
	dir := t.TempDir()
	legacy := `{
		"alice": {"months": {"2024-06": {"budget": {"Transport": 10000}}}, "savings": 250},
		"bob": null
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, UsersFileName), []byte(`{"alice": "h", "bob": "h"}`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, DataFileName), []byte(legacy), 0o600))

	repo, err := NewFileRepository(dir, nil)
	require.NoError(t, err)

	doc, err := repo.GetDocument(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, model.CurrentSchemaVersion, doc.Version)
	assert.NotNil(t, doc.Months["2024-06"].Expenses)
	assert.NotNil(t, doc.Achievements)

	raw, err := os.ReadFile(filepath.Join(dir, DataFileName))
	require.NoError(t, err)
	var persisted map[string]model.FinancialDocument
	require.NoError(t, json.Unmarshal(raw, &persisted))
	assert.Equal(t, model.CurrentSchemaVersion, persisted["alice"].Version)
	assert.Equal(t, model.CurrentSchemaVersion, persisted["bob"].Version)
}

func TestNewFileRepository_LegacyTimestampsAndBrokenDocument(t *testing.T) {
	dir := t.TempDir()
	data := `{
		"alice": {"months": {"2024-06": {"budget": {"Transport": 10000}}}, "savings": 250},
		"bob": {"achievements": {"first_plan": {"name": "Premier budget", "unlocked_at": "2024-06-05T12:00:00.123456"}}, "points": 50},
		"carol": {"savings": "not a number"}
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, UsersFileName), []byte(`{"alice": "h", "bob": "h", "carol": "h"}`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, DataFileName), []byte(data), 0o600))

	repo, err := NewFileRepository(dir, nil)
	require.NoError(t, err)
	ctx := context.Background()

	alice, err := repo.GetDocument(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, alice.Savings.Equal(decimal.NewFromInt(250)))
	assert.Contains(t, alice.Months, "2024-06")

	bob, err := repo.GetDocument(ctx, "bob")
	require.NoError(t, err)
	require.Contains(t, bob.Achievements, "first_plan")
	want := time.Date(2024, 6, 5, 12, 0, 0, 123456000, time.UTC)
	assert.True(t, want.Equal(bob.Achievements["first_plan"].UnlockedAt.Time))
	assert.Equal(t, int64(50), bob.Points)

	carol, err := repo.GetDocument(ctx, "carol")
	require.NoError(t, err)
	assert.True(t, carol.Savings.IsZero())

	matches, err := filepath.Glob(filepath.Join(dir, DataFileName+".corrupt-*"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}
