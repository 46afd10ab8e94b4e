package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/petit-coffre/internal/model"
)

// Rule описывает достижение: условие над документом и награду в очках.
type Rule struct {
	ID        string
	Name      string
	Points    int64
	Predicate func(doc *model.FinancialDocument) bool
}

// Rules содержит таблицу достижений. Каждое достижение разблокируется один раз.
var Rules = []Rule{
	{
		ID:     "first_plan",
		Name:   "Premier budget",
		Points: 50,
		Predicate: func(doc *model.FinancialDocument) bool {
			return len(doc.Months) >= 1
		},
	},
	{
		ID:     "first_expense",
		Name:   "Première dépense",
		Points: 10,
		Predicate: func(doc *model.FinancialDocument) bool {
			return countExpenses(doc) >= 1
		},
	},
	{
		ID:     "diligent",
		Name:   "Comptable assidu",
		Points: 100,
		Predicate: func(doc *model.FinancialDocument) bool {
			return countExpenses(doc) >= 50
		},
	},
	{
		ID:     "regular",
		Name:   "Trois mois de suite",
		Points: 150,
		Predicate: func(doc *model.FinancialDocument) bool {
			return len(doc.Months) >= 3
		},
	},
	{
		ID:     "first_savings",
		Name:   "Petit coffre ouvert",
		Points: 20,
		Predicate: func(doc *model.FinancialDocument) bool {
			return doc.Savings.IsPositive()
		},
	},
	{
		ID:     "big_saver",
		Name:   "Grand épargnant",
		Points: 200,
		Predicate: func(doc *model.FinancialDocument) bool {
			return doc.Savings.GreaterThanOrEqual(decimal.NewFromInt(100000))
		},
	},
	{
		ID:     "under_control",
		Name:   "Budget maîtrisé",
		Points: 75,
		Predicate: func(doc *model.FinancialDocument) bool {
			for _, m := range doc.Months {
				budget := TotalBudget(m)
				spent := TotalSpent(m)
				if budget.IsPositive() && spent.IsPositive() &&
					percentOf(spent, budget).LessThanOrEqual(warningThreshold) {
					return true
				}
			}
			return false
		},
	},
}

// Unlocked описывает достижение, разблокированное при последней оценке.
type Unlocked struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Points int64  `json:"points"`
}

// EvaluateAchievements проверяет таблицу правил, добавляет в документ новые
// достижения и начисляет очки. Возвращает разблокированные достижения.
func EvaluateAchievements(doc *model.FinancialDocument, rules []Rule, now time.Time) []Unlocked {
	if doc.Achievements == nil {
		doc.Achievements = make(map[string]model.Achievement)
	}

	var unlocked []Unlocked
	for _, r := range rules {
		if _, ok := doc.Achievements[r.ID]; ok {
			continue
		}
		if !r.Predicate(doc) {
			continue
		}
		unlocked = append(unlocked, unlock(doc, r.ID, r.Name, r.Points, now))
	}

	return append(unlocked, creditQuests(doc, now)...)
}

// QuestAchievementID возвращает идентификатор достижения за выполненную цель месяца.
func QuestAchievementID(monthKey string) string {
	return questAchievementPrefix + monthKey
}

// creditQuests начисляет награду за цели завершившихся месяцев, выполненные в срок.
// Текущий и будущие месяцы не оцениваются: их расходы ещё могут измениться.
func creditQuests(doc *model.FinancialDocument, now time.Time) []Unlocked {
	current := model.MonthKeyOf(now)

	var unlocked []Unlocked
	for _, key := range SortedMonthKeys(doc.Months) {
		if key >= current {
			break
		}
		id := QuestAchievementID(key)
		if _, ok := doc.Achievements[id]; ok {
			continue
		}
		q, ok := ReductionQuest(doc.Months, key)
		if !ok || !q.OnTrack {
			continue
		}
		unlocked = append(unlocked, unlock(doc, id, "Défi réussi "+key, q.Reward, now))
	}
	return unlocked
}

func unlock(doc *model.FinancialDocument, id, name string, points int64, now time.Time) Unlocked {
	doc.Achievements[id] = model.Achievement{Name: name, UnlockedAt: model.Timestamp{Time: now.UTC()}}
	doc.Points += points
	return Unlocked{ID: id, Name: name, Points: points}
}

func countExpenses(doc *model.FinancialDocument) int {
	n := 0
	for _, m := range doc.Months {
		if m != nil {
			n += len(m.ExpenseDetails)
		}
	}
	return n
}

const questAchievementPrefix = "quest:"

var (
	questReduction = decimal.RequireFromString("0.9")
	questReward    = int64(100)
)

// Quest описывает цель: сократить расходы категории на 10% по сравнению с предыдущим месяцем.
type Quest struct {
	Month         string          `json:"month"`
	BaselineMonth string          `json:"baseline_month"`
	Category      model.Category  `json:"category"`
	Baseline      decimal.Decimal `json:"baseline"`
	Target        decimal.Decimal `json:"target"`
	Spent         decimal.Decimal `json:"spent"`
	Remaining     decimal.Decimal `json:"remaining"`
	Percent       decimal.Decimal `json:"percent"`
	OnTrack       bool            `json:"on_track"`
	Reward        int64           `json:"reward"`
}

// ReductionQuest строит цель для месяца monthKey. Базой служит ближайший предыдущий
// месяц с расходами; выбирается категория с наибольшими расходами в нём.
// Возвращает false, если базового месяца нет.
func ReductionQuest(months map[string]*model.MonthRecord, monthKey string) (Quest, bool) {
	var baselineKey string
	for _, key := range SortedMonthKeys(months) {
		if key >= monthKey {
			break
		}
		if TotalSpent(months[key]).IsPositive() {
			baselineKey = key
		}
	}
	if baselineKey == "" {
		return Quest{}, false
	}

	baseline := months[baselineKey]
	q := Quest{
		Month:         monthKey,
		BaselineMonth: baselineKey,
		Baseline:      decimal.Zero,
		Spent:         decimal.Zero,
		Reward:        questReward,
	}
	for _, cat := range model.Categories() {
		if v := baseline.Expenses[cat]; v.GreaterThan(q.Baseline) {
			q.Category = cat
			q.Baseline = v
		}
	}
	if !q.Baseline.IsPositive() {
		return Quest{}, false
	}

	if current := months[monthKey]; current != nil {
		q.Spent = current.Expenses[q.Category]
	}
	q.Target = q.Baseline.Mul(questReduction)
	q.Remaining = q.Target.Sub(q.Spent)
	q.Percent = percentOf(q.Spent, q.Target)
	q.OnTrack = q.Spent.LessThanOrEqual(q.Target)

	return q, true
}
