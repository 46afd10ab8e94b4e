// Package ledger реализует операции над финансовым документом пользователя:
// планирование бюджета, учёт расходов, «petit coffre» и производные показатели.
//
// Функции пакета не обращаются к хранилищу: они изменяют переданный документ,
// а сохранение остаётся за вызывающей стороной. При ошибке документ не меняется.
package ledger

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/petit-coffre/internal/model"
)

var (
	// ErrNoPlan возвращается, если для месяца ещё нет планирования.
	ErrNoPlan = errors.New("no budget plan for month")
	// ErrInvalidInput возвращается при некорректных входных данных.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInsufficientFunds возвращается, если распределение превышает остаток «petit coffre».
	ErrInsufficientFunds = errors.New("insufficient savings")
)

// ExpenseInput содержит данные новой расходной операции.
type ExpenseInput struct {
	Category    model.Category
	Amount      decimal.Decimal
	Description string
	Date        model.Date
	// CreatedAt задаёт отметку создания; нулевое значение означает текущее время.
	CreatedAt time.Time
}

// SetMonthlyBudget создаёт запись месяца при необходимости и заменяет её бюджет.
// Расходы уже существующего месяца сохраняются.
func SetMonthlyBudget(doc *model.FinancialDocument, monthKey string, amounts map[model.Category]decimal.Decimal) error {
	total, err := sumAllocation(amounts)
	if err != nil {
		return err
	}
	if !total.IsPositive() {
		return fmt.Errorf("%w: budget total must be positive", ErrInvalidInput)
	}

	budget := make(map[model.Category]decimal.Decimal, len(amounts))
	for cat, amount := range amounts {
		budget[cat] = amount
	}

	if doc.Months == nil {
		doc.Months = make(map[string]*model.MonthRecord)
	}
	month, ok := doc.Months[monthKey]
	if !ok || month == nil {
		month = model.NewMonthRecord()
		doc.Months[monthKey] = month
	}
	month.Budget = budget

	return nil
}

// RecordExpense добавляет расход в месяц и увеличивает сумму расходов категории.
func RecordExpense(doc *model.FinancialDocument, monthKey string, in ExpenseInput) (model.ExpenseEntry, error) {
	month, err := lookupMonth(doc, monthKey)
	if err != nil {
		return model.ExpenseEntry{}, err
	}

	switch {
	case !in.Amount.IsPositive():
		return model.ExpenseEntry{}, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	case strings.TrimSpace(in.Description) == "":
		return model.ExpenseEntry{}, fmt.Errorf("%w: description is empty", ErrInvalidInput)
	case !in.Category.IsValid():
		return model.ExpenseEntry{}, fmt.Errorf("%w: unknown category %q", ErrInvalidInput, in.Category)
	}

	createdAt := in.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	entry := model.ExpenseEntry{
		ID:          uuid.NewString(),
		Category:    in.Category,
		Amount:      in.Amount,
		Description: in.Description,
		Date:        in.Date,
		CreatedAt:   model.Timestamp{Time: createdAt.UTC()},
	}

	if month.Expenses == nil {
		month.Expenses = make(map[model.Category]decimal.Decimal)
	}
	month.ExpenseDetails = append(month.ExpenseDetails, entry)
	month.Expenses[in.Category] = month.Expenses[in.Category].Add(in.Amount)

	return entry, nil
}

// DepositSavings пополняет «petit coffre».
func DepositSavings(doc *model.FinancialDocument, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: deposit must be positive", ErrInvalidInput)
	}
	doc.Savings = doc.Savings.Add(amount)
	return nil
}

// AllocateSavings переносит суммы из «petit coffre» в бюджет категорий месяца.
func AllocateSavings(doc *model.FinancialDocument, monthKey string, amounts map[model.Category]decimal.Decimal) error {
	month, err := lookupMonth(doc, monthKey)
	if err != nil {
		return err
	}

	total, err := sumAllocation(amounts)
	if err != nil {
		return err
	}
	if total.GreaterThan(doc.Savings) {
		return fmt.Errorf("%w: requested %s, available %s", ErrInsufficientFunds, total, doc.Savings)
	}

	if month.Budget == nil {
		month.Budget = make(map[model.Category]decimal.Decimal)
	}
	for cat, amount := range amounts {
		if amount.IsZero() {
			continue
		}
		month.Budget[cat] = month.Budget[cat].Add(amount)
	}
	doc.Savings = doc.Savings.Sub(total)

	return nil
}

// ResetSavings обнуляет «petit coffre».
func ResetSavings(doc *model.FinancialDocument) {
	doc.Savings = decimal.Zero
}

// ResetAll заменяет содержимое документа новым пустым документом.
func ResetAll(doc *model.FinancialDocument) {
	*doc = *model.NewFinancialDocument()
}

func lookupMonth(doc *model.FinancialDocument, monthKey string) (*model.MonthRecord, error) {
	month, ok := doc.Months[monthKey]
	if !ok || month == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoPlan, monthKey)
	}
	return month, nil
}

// sumAllocation проверяет категории и суммы распределения и возвращает итог.
func sumAllocation(amounts map[model.Category]decimal.Decimal) (decimal.Decimal, error) {
	total := decimal.Zero
	for cat, amount := range amounts {
		if !cat.IsValid() {
			return decimal.Zero, fmt.Errorf("%w: unknown category %q", ErrInvalidInput, cat)
		}
		if amount.IsNegative() {
			return decimal.Zero, fmt.Errorf("%w: negative amount for %s", ErrInvalidInput, cat)
		}
		total = total.Add(amount)
	}
	return total, nil
}
