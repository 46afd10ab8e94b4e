package model

import "github.com/shopspring/decimal"

// CurrentSchemaVersion задаёт текущую версию схемы финансового документа.
// Версия 0 соответствует документам без поля version.
const CurrentSchemaVersion = 1

// Migrate приводит документ к текущей версии схемы: заполняет отсутствующие
// поля значениями по умолчанию. Возвращает true, если документ изменился.
func Migrate(doc *FinancialDocument) bool {
	if doc == nil {
		return false
	}

	changed := false

	if doc.Months == nil {
		doc.Months = make(map[string]*MonthRecord)
		changed = true
	}
	if doc.Achievements == nil {
		doc.Achievements = make(map[string]Achievement)
		changed = true
	}
	if doc.Savings.IsNegative() {
		doc.Savings = decimal.Zero
		changed = true
	}
	if doc.Points < 0 {
		doc.Points = 0
		changed = true
	}

	for key, m := range doc.Months {
		if m == nil {
			doc.Months[key] = NewMonthRecord()
			changed = true
			continue
		}
		if m.Budget == nil {
			m.Budget = make(map[Category]decimal.Decimal)
			changed = true
		}
		if m.Expenses == nil {
			m.Expenses = make(map[Category]decimal.Decimal)
			changed = true
		}
		if m.ExpenseDetails == nil {
			m.ExpenseDetails = []ExpenseEntry{}
			changed = true
		}
	}

	if doc.Version < CurrentSchemaVersion {
		doc.Version = CurrentSchemaVersion
		changed = true
	}

	return changed
}
