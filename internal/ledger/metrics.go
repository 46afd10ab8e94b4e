package ledger

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/petit-coffre/internal/model"
)

// Status описывает уровень использования бюджета категории.
type Status string

const (
	StatusGood      Status = "good"
	StatusWarning   Status = "warning"
	StatusOver      Status = "over"
	StatusUndefined Status = "undefined"
)

var (
	hundred          = decimal.NewFromInt(100)
	warningThreshold = decimal.NewFromInt(80)
)

// Utilization содержит показатели использования бюджета одной категории.
type Utilization struct {
	Category  model.Category  `json:"category"`
	Budgeted  decimal.Decimal `json:"budgeted"`
	Spent     decimal.Decimal `json:"spent"`
	Remaining decimal.Decimal `json:"remaining"`
	Percent   decimal.Decimal `json:"percent"`
	Status    Status          `json:"status"`
}

// MonthSummary содержит итоги месяца и разбивку по категориям.
type MonthSummary struct {
	Month       string          `json:"month"`
	TotalBudget decimal.Decimal `json:"total_budget"`
	TotalSpent  decimal.Decimal `json:"total_spent"`
	Remaining   decimal.Decimal `json:"remaining"`
	Percent     decimal.Decimal `json:"percent"`
	Categories  []Utilization   `json:"categories"`
}

// HistorySummary содержит средние значения по всей истории пользователя.
type HistorySummary struct {
	Months        int             `json:"months"`
	AverageBudget decimal.Decimal `json:"average_budget"`
	AverageSpent  decimal.Decimal `json:"average_spent"`
	NetSavings    decimal.Decimal `json:"net_savings"`
}

// TotalBudget возвращает сумму бюджета месяца.
func TotalBudget(month *model.MonthRecord) decimal.Decimal {
	if month == nil {
		return decimal.Zero
	}
	return sumValues(month.Budget)
}

// TotalSpent возвращает сумму расходов месяца.
func TotalSpent(month *model.MonthRecord) decimal.Decimal {
	if month == nil {
		return decimal.Zero
	}
	return sumValues(month.Expenses)
}

// Remaining возвращает остаток бюджета месяца. Может быть отрицательным.
func Remaining(month *model.MonthRecord) decimal.Decimal {
	return TotalBudget(month).Sub(TotalSpent(month))
}

// CategoryUtilization вычисляет процент использования бюджета категории и его статус.
func CategoryUtilization(month *model.MonthRecord, category model.Category) Utilization {
	u := Utilization{
		Category: category,
		Budgeted: decimal.Zero,
		Spent:    decimal.Zero,
		Percent:  decimal.Zero,
		Status:   StatusUndefined,
	}
	if month != nil {
		u.Budgeted = month.Budget[category]
		u.Spent = month.Expenses[category]
	}
	u.Remaining = u.Budgeted.Sub(u.Spent)

	if !u.Budgeted.IsPositive() {
		return u
	}

	u.Percent = percentOf(u.Spent, u.Budgeted)
	u.Status = statusFor(u.Percent)
	return u
}

// Summarize собирает итоги месяца по всем категориям фиксированного набора.
func Summarize(monthKey string, month *model.MonthRecord) MonthSummary {
	s := MonthSummary{
		Month:       monthKey,
		TotalBudget: TotalBudget(month),
		TotalSpent:  TotalSpent(month),
		Percent:     decimal.Zero,
	}
	s.Remaining = s.TotalBudget.Sub(s.TotalSpent)
	if s.TotalBudget.IsPositive() {
		s.Percent = percentOf(s.TotalSpent, s.TotalBudget)
	}

	for _, cat := range model.Categories() {
		s.Categories = append(s.Categories, CategoryUtilization(month, cat))
	}
	return s
}

// AverageOverHistory вычисляет средний бюджет, средние расходы и накопленную
// экономию (сумму остатков) по всем месяцам.
func AverageOverHistory(months map[string]*model.MonthRecord) HistorySummary {
	h := HistorySummary{
		AverageBudget: decimal.Zero,
		AverageSpent:  decimal.Zero,
		NetSavings:    decimal.Zero,
	}
	if len(months) == 0 {
		return h
	}

	totalBudget := decimal.Zero
	totalSpent := decimal.Zero
	for _, m := range months {
		b := TotalBudget(m)
		s := TotalSpent(m)
		totalBudget = totalBudget.Add(b)
		totalSpent = totalSpent.Add(s)
		h.NetSavings = h.NetSavings.Add(b.Sub(s))
	}

	n := decimal.NewFromInt(int64(len(months)))
	h.Months = len(months)
	h.AverageBudget = totalBudget.Div(n)
	h.AverageSpent = totalSpent.Div(n)
	return h
}

// CategoryForecast прогнозирует расходы текущего периода как среднее расходов
// категории по всем месяцам. Месяц без расходов в категории учитывается нулём.
func CategoryForecast(months map[string]*model.MonthRecord) map[model.Category]decimal.Decimal {
	forecast := make(map[model.Category]decimal.Decimal, len(model.Categories()))
	for _, cat := range model.Categories() {
		forecast[cat] = decimal.Zero
	}
	if len(months) == 0 {
		return forecast
	}

	for _, m := range months {
		if m == nil {
			continue
		}
		for _, cat := range model.Categories() {
			forecast[cat] = forecast[cat].Add(m.Expenses[cat])
		}
	}

	n := decimal.NewFromInt(int64(len(months)))
	for cat, total := range forecast {
		forecast[cat] = total.Div(n)
	}
	return forecast
}

// RecentExpenses возвращает расходы месяца от новых к старым по отметке создания.
// При равных отметках сохраняется порядок добавления. limit <= 0 снимает ограничение.
func RecentExpenses(month *model.MonthRecord, limit int) []model.ExpenseEntry {
	if month == nil || len(month.ExpenseDetails) == 0 {
		return []model.ExpenseEntry{}
	}

	res := make([]model.ExpenseEntry, len(month.ExpenseDetails))
	copy(res, month.ExpenseDetails)

	sort.SliceStable(res, func(i, j int) bool {
		return res[i].CreatedAt.After(res[j].CreatedAt.Time)
	})

	if limit > 0 && len(res) > limit {
		res = res[:limit]
	}
	return res
}

// SortedMonthKeys возвращает ключи месяцев в хронологическом порядке.
func SortedMonthKeys(months map[string]*model.MonthRecord) []string {
	keys := make([]string, 0, len(months))
	for key := range months {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func percentOf(part, whole decimal.Decimal) decimal.Decimal {
	return part.Mul(hundred).Div(whole)
}

func statusFor(percent decimal.Decimal) Status {
	switch {
	case percent.LessThanOrEqual(warningThreshold):
		return StatusGood
	case percent.LessThanOrEqual(hundred):
		return StatusWarning
	default:
		return StatusOver
	}
}

func sumValues(values map[model.Category]decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}
