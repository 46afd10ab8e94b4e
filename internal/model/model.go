// Package model содержит доменные сущности сервиса учёта личного бюджета.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Суммы хранятся в JSON числами, как в исходных файлах данных.
	decimal.MarshalJSONWithoutQuotes = true
}

// Category описывает категорию расходов.
type Category string

// Фиксированный набор категорий, общий для всех пользователей.
const (
	CategoryTransport  Category = "Transport"
	CategoryNourriture Category = "Nourriture"
	CategoryFactures   Category = "Factures"
	CategorySante      Category = "Santé"
	CategoryDivers     Category = "Divers"
)

var categories = []Category{
	CategoryTransport,
	CategoryNourriture,
	CategoryFactures,
	CategorySante,
	CategoryDivers,
}

// Categories возвращает фиксированный список категорий в порядке отображения.
func Categories() []Category {
	res := make([]Category, len(categories))
	copy(res, categories)
	return res
}

// IsValid сообщает, входит ли категория в фиксированный набор.
func (c Category) IsValid() bool {
	for _, known := range categories {
		if c == known {
			return true
		}
	}
	return false
}

// MonthKeyLayout задаёт формат ключа месяца (YYYY-MM).
const MonthKeyLayout = "2006-01"

// MonthKeyOf возвращает ключ месяца для указанного момента времени.
func MonthKeyOf(t time.Time) string {
	return t.Format(MonthKeyLayout)
}

// Credential связывает имя пользователя с hex-дайджестом пароля.
type Credential struct {
	Username     string
	PasswordHash string
}

// ExpenseEntry описывает одну расходную операцию.
type ExpenseEntry struct {
	ID          string          `json:"id,omitempty"`
	Category    Category        `json:"category"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Date        Date            `json:"date"`
	CreatedAt   Timestamp       `json:"timestamp"`
}

// MonthRecord содержит план и расходы за один месяц.
type MonthRecord struct {
	Budget         map[Category]decimal.Decimal `json:"budget"`
	Expenses       map[Category]decimal.Decimal `json:"expenses"`
	ExpenseDetails []ExpenseEntry               `json:"expense_details"`
}

// NewMonthRecord создаёт пустую запись месяца.
func NewMonthRecord() *MonthRecord {
	return &MonthRecord{
		Budget:         make(map[Category]decimal.Decimal),
		Expenses:       make(map[Category]decimal.Decimal),
		ExpenseDetails: []ExpenseEntry{},
	}
}

// Achievement описывает разблокированное достижение.
type Achievement struct {
	Name       string    `json:"name"`
	UnlockedAt Timestamp `json:"unlocked_at"`
}

// FinancialDocument содержит финансовые данные пользователя.
type FinancialDocument struct {
	Version      int                     `json:"version"`
	Savings      decimal.Decimal         `json:"savings"`
	Months       map[string]*MonthRecord `json:"months"`
	Points       int64                   `json:"points"`
	Achievements map[string]Achievement  `json:"achievements"`
	Avatar       string                  `json:"avatar,omitempty"`
	Theme        string                  `json:"theme,omitempty"`
}

// NewFinancialDocument создаёт документ нового пользователя: пустые месяцы и нулевой «petit coffre».
func NewFinancialDocument() *FinancialDocument {
	return &FinancialDocument{
		Version:      CurrentSchemaVersion,
		Savings:      decimal.Zero,
		Months:       make(map[string]*MonthRecord),
		Achievements: make(map[string]Achievement),
	}
}

// Clone возвращает глубокую копию документа.
func (d *FinancialDocument) Clone() *FinancialDocument {
	if d == nil {
		return nil
	}

	c := *d
	c.Months = make(map[string]*MonthRecord, len(d.Months))
	for key, m := range d.Months {
		c.Months[key] = m.Clone()
	}
	c.Achievements = make(map[string]Achievement, len(d.Achievements))
	for id, a := range d.Achievements {
		c.Achievements[id] = a
	}
	return &c
}

// Clone возвращает глубокую копию записи месяца.
func (m *MonthRecord) Clone() *MonthRecord {
	if m == nil {
		return nil
	}

	c := &MonthRecord{
		Budget:         make(map[Category]decimal.Decimal, len(m.Budget)),
		Expenses:       make(map[Category]decimal.Decimal, len(m.Expenses)),
		ExpenseDetails: make([]ExpenseEntry, len(m.ExpenseDetails)),
	}
	for cat, v := range m.Budget {
		c.Budget[cat] = v
	}
	for cat, v := range m.Expenses {
		c.Expenses[cat] = v
	}
	copy(c.ExpenseDetails, m.ExpenseDetails)
	return c
}
