package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategoryIsValid(t *testing.T) {
	tests := []struct {
		name     string
		category Category
		valid    bool
	}{
		{name: "transport", category: "Transport", valid: true},
		{name: "accented", category: "Santé", valid: true},
		{name: "wrong case", category: "transport", valid: false},
		{name: "unknown", category: "Loisirs", valid: false},
		{name: "empty", category: "", valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.category.IsValid())
		})
	}
}

func TestCategoriesReturnsCopy(t *testing.T) {
	cats := Categories()
	require.Len(t, cats, 5)

	cats[0] = "Loisirs"
	assert.Equal(t, CategoryTransport, Categories()[0])
}

func TestMigrateLegacyDocument(t *testing.T) {
	legacy := `{
		"months": {
			"2024-06": {
				"budget": {"Transport": 10000},
				"expense_details": [
					{"category": "Transport", "amount": 3000, "description": "bus",
					 "date": "2024-06-05", "timestamp": "2024-06-05T10:15:00.123456"}
				]
			},
			"2024-07": null
		},
		"savings": 500
	}`

	var doc FinancialDocument
	require.NoError(t, json.Unmarshal([]byte(legacy), &doc))
	assert.Equal(t, 0, doc.Version)

	changed := Migrate(&doc)
	assert.True(t, changed)
	assert.Equal(t, CurrentSchemaVersion, doc.Version)
	assert.NotNil(t, doc.Achievements)

	june := doc.Months["2024-06"]
	require.NotNil(t, june)
	assert.NotNil(t, june.Expenses)
	require.Len(t, june.ExpenseDetails, 1)
	assert.Equal(t, time.Date(2024, 6, 5, 10, 15, 0, 123456000, time.UTC), june.ExpenseDetails[0].CreatedAt.Time)
	assert.Equal(t, "2024-06-05", june.ExpenseDetails[0].Date.String())

	require.NotNil(t, doc.Months["2024-07"])
	assert.Empty(t, doc.Months["2024-07"].ExpenseDetails)

	assert.False(t, Migrate(&doc), "second migration must be a no-op")
}

func TestDocumentJSONShape(t *testing.T) {
	doc := NewFinancialDocument()
	doc.Savings = decimal.NewFromInt(5000)
	m := NewMonthRecord()
	m.Budget[CategoryNourriture] = decimal.NewFromInt(20000)
	doc.Months["2024-06"] = m

	data, err := json.Marshal(doc)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, float64(5000), raw["savings"])

	months := raw["months"].(map[string]any)
	budget := months["2024-06"].(map[string]any)["budget"].(map[string]any)
	assert.Equal(t, float64(20000), budget["Nourriture"])
}

func TestCloneIsDeep(t *testing.T) {
	doc := NewFinancialDocument()
	m := NewMonthRecord()
	m.Budget[CategoryTransport] = decimal.NewFromInt(100)
	m.ExpenseDetails = append(m.ExpenseDetails, ExpenseEntry{Category: CategoryTransport, Amount: decimal.NewFromInt(10)})
	doc.Months["2024-06"] = m
	doc.Achievements["first_plan"] = Achievement{Name: "x"}

	c := doc.Clone()
	c.Months["2024-06"].Budget[CategoryTransport] = decimal.NewFromInt(1)
	c.Months["2024-06"].ExpenseDetails[0].Description = "changed"
	c.Months["2025-01"] = NewMonthRecord()
	delete(c.Achievements, "first_plan")

	assert.True(t, doc.Months["2024-06"].Budget[CategoryTransport].Equal(decimal.NewFromInt(100)))
	assert.Empty(t, doc.Months["2024-06"].ExpenseDetails[0].Description)
	assert.Len(t, doc.Months, 1)
	assert.Contains(t, doc.Achievements, "first_plan")
}

func TestDateJSON(t *testing.T) {
	d := NewDate(2024, time.June, 5)
	data, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, `"2024-06-05"`, string(data))

	var parsed Date
	require.NoError(t, json.Unmarshal([]byte(`"2024-06-05T12:30:00Z"`), &parsed))
	assert.Equal(t, d, parsed)

	assert.Error(t, json.Unmarshal([]byte(`"05/06/2024"`), &parsed))
}
