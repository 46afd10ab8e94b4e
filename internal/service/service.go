// Package service реализует бизнес-логику сервиса учёта личного бюджета.
package service

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/petit-coffre/internal/confirm"
	"github.com/mmeshcher/petit-coffre/internal/ledger"
	"github.com/mmeshcher/petit-coffre/internal/model"
	"github.com/mmeshcher/petit-coffre/internal/repository"
	"github.com/mmeshcher/petit-coffre/internal/validation"
)

var (
	// ErrInvalidCredentials возвращается при неверном имени пользователя или пароле.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidUsername возвращается при недопустимом имени пользователя.
	ErrInvalidUsername = errors.New("invalid username")
	// ErrPasswordTooShort возвращается, если пароль короче минимальной длины.
	ErrPasswordTooShort = fmt.Errorf("password must be at least %d characters", validation.MinPasswordLength)
	// ErrQuestUnavailable возвращается, если для месяца нельзя построить цель сокращения расходов.
	ErrQuestUnavailable = errors.New("no baseline month for quest")
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	CreateUser(ctx context.Context, username, passwordHash string, doc *model.FinancialDocument) error
	GetCredential(ctx context.Context, username string) (*model.Credential, error)
	UpdatePasswordHash(ctx context.Context, username, passwordHash string) error
	GetDocument(ctx context.Context, username string) (*model.FinancialDocument, error)
	PutDocument(ctx context.Context, username string, doc *model.FinancialDocument) error
}

// Stats содержит статистику пользователя по всей истории.
type Stats struct {
	History      ledger.HistorySummary              `json:"history"`
	Forecast     map[model.Category]decimal.Decimal `json:"forecast"`
	Savings      decimal.Decimal                    `json:"savings"`
	Points       int64                              `json:"points"`
	Achievements map[string]model.Achievement       `json:"achievements"`
}

// Service содержит бизнес-логику сервиса учёта бюджета.
//
// Все изменения документов выполняются последовательно: чтение, изменение
// и запись документа происходят под одной блокировкой.
type Service struct {
	mu       sync.Mutex
	repo     Repository
	confirms *confirm.Registry
	rules    []ledger.Rule
	now      func() time.Time
}

// NewService создаёт новый сервис с указанным хранилищем и реестром подтверждений.
func NewService(repo Repository, confirms *confirm.Registry) *Service {
	if confirms == nil {
		confirms = confirm.NewRegistry(0)
	}
	return &Service{
		repo:     repo,
		confirms: confirms,
		rules:    ledger.Rules,
		now:      time.Now,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// RegisterUser регистрирует нового пользователя с пустым финансовым документом.
func (s *Service) RegisterUser(ctx context.Context, username, password string) error {
	if !validation.IsValidUsername(username) {
		return ErrInvalidUsername
	}

	// Занятое имя важнее слабого пароля.
	if _, err := s.repo.GetCredential(ctx, username); err == nil {
		return repository.ErrUserExists
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return err
	}

	if !validation.IsValidPassword(password) {
		return ErrPasswordTooShort
	}

	err := s.repo.CreateUser(ctx, username, hashPassword(password), model.NewFinancialDocument())
	if err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			return repository.ErrUserExists
		}
		return err
	}
	return nil
}

// AuthenticateUser проверяет имя пользователя и пароль. Неизвестный пользователь
// и неверный пароль дают одну и ту же ошибку ErrInvalidCredentials.
func (s *Service) AuthenticateUser(ctx context.Context, username, password string) error {
	c, err := s.repo.GetCredential(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrInvalidCredentials
		}
		return err
	}

	if !checkPassword(c.PasswordHash, password) {
		return ErrInvalidCredentials
	}
	return nil
}

// ChangePassword меняет пароль пользователя после проверки текущего.
func (s *Service) ChangePassword(ctx context.Context, username, oldPassword, newPassword string) error {
	if err := s.AuthenticateUser(ctx, username, oldPassword); err != nil {
		return err
	}
	if !validation.IsValidPassword(newPassword) {
		return ErrPasswordTooShort
	}
	return s.repo.UpdatePasswordHash(ctx, username, hashPassword(newPassword))
}

func hashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

func checkPassword(storedHash, password string) bool {
	return subtle.ConstantTimeCompare([]byte(storedHash), []byte(hashPassword(password))) == 1
}

// GetDocument возвращает финансовый документ пользователя.
func (s *Service) GetDocument(ctx context.Context, username string) (*model.FinancialDocument, error) {
	return s.repo.GetDocument(ctx, username)
}

// UpdateProfile задаёт аватар и тему оформления пользователя.
func (s *Service) UpdateProfile(ctx context.Context, username, avatar, theme string) (*model.FinancialDocument, error) {
	return s.update(ctx, username, func(doc *model.FinancialDocument) error {
		doc.Avatar = avatar
		doc.Theme = theme
		return nil
	})
}

// PlanMonth задаёт бюджет месяца по категориям.
func (s *Service) PlanMonth(ctx context.Context, username, month string, amounts map[model.Category]decimal.Decimal) (*model.FinancialDocument, error) {
	if err := checkMonth(month); err != nil {
		return nil, err
	}
	return s.update(ctx, username, func(doc *model.FinancialDocument) error {
		return ledger.SetMonthlyBudget(doc, month, amounts)
	})
}

// RecordExpense добавляет расход в месяц.
func (s *Service) RecordExpense(ctx context.Context, username, month string, in ledger.ExpenseInput) (model.ExpenseEntry, error) {
	if err := checkMonth(month); err != nil {
		return model.ExpenseEntry{}, err
	}
	if in.CreatedAt.IsZero() {
		in.CreatedAt = s.now()
	}

	var entry model.ExpenseEntry
	_, err := s.update(ctx, username, func(doc *model.FinancialDocument) error {
		var err error
		entry, err = ledger.RecordExpense(doc, month, in)
		return err
	})
	if err != nil {
		return model.ExpenseEntry{}, err
	}
	return entry, nil
}

// DepositSavings пополняет «petit coffre».
func (s *Service) DepositSavings(ctx context.Context, username string, amount decimal.Decimal) (*model.FinancialDocument, error) {
	return s.update(ctx, username, func(doc *model.FinancialDocument) error {
		return ledger.DepositSavings(doc, amount)
	})
}

// AllocateSavings распределяет средства «petit coffre» по бюджету месяца.
func (s *Service) AllocateSavings(ctx context.Context, username, month string, amounts map[model.Category]decimal.Decimal) (*model.FinancialDocument, error) {
	if err := checkMonth(month); err != nil {
		return nil, err
	}
	return s.update(ctx, username, func(doc *model.FinancialDocument) error {
		return ledger.AllocateSavings(doc, month, amounts)
	})
}

// MonthSummary возвращает итоги месяца.
func (s *Service) MonthSummary(ctx context.Context, username, month string) (*ledger.MonthSummary, error) {
	record, err := s.month(ctx, username, month)
	if err != nil {
		return nil, err
	}
	summary := ledger.Summarize(month, record)
	return &summary, nil
}

// RecentExpenses возвращает последние расходы месяца.
func (s *Service) RecentExpenses(ctx context.Context, username, month string, limit int) ([]model.ExpenseEntry, error) {
	record, err := s.month(ctx, username, month)
	if err != nil {
		return nil, err
	}
	return ledger.RecentExpenses(record, limit), nil
}

// Quest возвращает цель сокращения расходов для месяца.
func (s *Service) Quest(ctx context.Context, username, month string) (*ledger.Quest, error) {
	if err := checkMonth(month); err != nil {
		return nil, err
	}
	doc, err := s.repo.GetDocument(ctx, username)
	if err != nil {
		return nil, err
	}

	q, ok := ledger.ReductionQuest(doc.Months, month)
	if !ok {
		return nil, ErrQuestUnavailable
	}
	return &q, nil
}

// GetStats возвращает средние показатели, прогноз по категориям и достижения пользователя.
func (s *Service) GetStats(ctx context.Context, username string) (*Stats, error) {
	doc, err := s.repo.GetDocument(ctx, username)
	if err != nil {
		return nil, err
	}

	return &Stats{
		History:      ledger.AverageOverHistory(doc.Months),
		Forecast:     ledger.CategoryForecast(doc.Months),
		Savings:      doc.Savings,
		Points:       doc.Points,
		Achievements: doc.Achievements,
	}, nil
}

// ArmReset выдаёт токен подтверждения для сброса.
func (s *Service) ArmReset(username string, action confirm.Action) string {
	return s.confirms.Arm(username, action)
}

// ResetSavings обнуляет «petit coffre» по подтверждённому токену.
// Токен погашается только после успешного сохранения документа.
func (s *Service) ResetSavings(ctx context.Context, username, token string) (*model.FinancialDocument, error) {
	return s.reset(ctx, username, confirm.ActionResetSavings, token, ledger.ResetSavings)
}

// ResetAll удаляет все данные пользователя по подтверждённому токену.
func (s *Service) ResetAll(ctx context.Context, username, token string) (*model.FinancialDocument, error) {
	return s.reset(ctx, username, confirm.ActionResetAll, token, ledger.ResetAll)
}

func (s *Service) reset(ctx context.Context, username string, action confirm.Action, token string, apply func(doc *model.FinancialDocument)) (*model.FinancialDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.confirms.Check(username, action, token); err != nil {
		return nil, err
	}

	doc, err := s.updateLocked(ctx, username, func(doc *model.FinancialDocument) error {
		apply(doc)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.confirms.Release(username, action, token)
	return doc, nil
}

// update читает документ, применяет fn, пересчитывает достижения и сохраняет документ.
// При ошибке fn документ не сохраняется.
func (s *Service) update(ctx context.Context, username string, fn func(doc *model.FinancialDocument) error) (*model.FinancialDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.updateLocked(ctx, username, fn)
}

func (s *Service) updateLocked(ctx context.Context, username string, fn func(doc *model.FinancialDocument) error) (*model.FinancialDocument, error) {
	doc, err := s.repo.GetDocument(ctx, username)
	if err != nil {
		return nil, err
	}

	if err := fn(doc); err != nil {
		return nil, err
	}
	ledger.EvaluateAchievements(doc, s.rules, s.now())

	if err := s.repo.PutDocument(ctx, username, doc); err != nil {
		return nil, fmt.Errorf("save document: %w", err)
	}
	return doc, nil
}

func (s *Service) month(ctx context.Context, username, month string) (*model.MonthRecord, error) {
	if err := checkMonth(month); err != nil {
		return nil, err
	}
	doc, err := s.repo.GetDocument(ctx, username)
	if err != nil {
		return nil, err
	}

	record, ok := doc.Months[month]
	if !ok || record == nil {
		return nil, fmt.Errorf("%w: %s", ledger.ErrNoPlan, month)
	}
	return record, nil
}

func checkMonth(month string) error {
	if !validation.IsValidMonthKey(month) {
		return fmt.Errorf("%w: month %q", ledger.ErrInvalidInput, month)
	}
	return nil
}
