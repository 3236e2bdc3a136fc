package ledger_test

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/boddenberg/finledger-go/internal/domain"
	"github.com/boddenberg/finledger-go/internal/ledger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

var fixedNow = time.Date(2024, 3, 5, 10, 30, 0, 0, time.UTC)

func TestNormalizeExpenseInput_Defaults(t *testing.T) {
	entry, err := ledger.NormalizeExpenseInput(domain.ExpenseInput{Amount: 42.5}, fixedNow)
	require.NoError(t, err)

	assert.Equal(t, 42.5, entry.Amount)
	assert.Equal(t, domain.DefaultDescription, entry.Description)
	assert.Equal(t, "2024-03-05T10:30:00.000Z", entry.Date)
	assert.Equal(t, domain.DefaultCategory, entry.Category)
	assert.Empty(t, entry.ID)
}

func TestNormalizeExpenseInput_CategorizesDescription(t *testing.T) {
	entry, err := ledger.NormalizeExpenseInput(domain.ExpenseInput{
		Amount:      250,
		Description: strPtr("Zomato order"),
		Date:        strPtr("2024-03-05"),
	}, fixedNow)
	require.NoError(t, err)

	assert.Equal(t, "Food", entry.Category)
	assert.Equal(t, "2024-03-05", entry.Date)
	assert.Equal(t, float64(250), entry.Amount)
}

func TestNormalizeExpenseInput_ExplicitCategoryWins(t *testing.T) {
	entry, err := ledger.NormalizeExpenseInput(domain.ExpenseInput{
		Amount:        10,
		Description:   strPtr("Uber"),
		Category:      strPtr(" Travel "),
		PaymentMethod: strPtr(" UPI "),
	}, fixedNow)
	require.NoError(t, err)

	assert.Equal(t, "Travel", entry.Category)
	assert.Equal(t, "UPI", entry.PaymentMethod)
}

func TestNormalizeExpenseInput_BlankCategoryFallsBackToCategorizer(t *testing.T) {
	entry, err := ledger.NormalizeExpenseInput(domain.ExpenseInput{
		Amount:      10,
		Description: strPtr("flipkart"),
		Category:    strPtr("   "),
		Date:        strPtr(""),
	}, fixedNow)
	require.NoError(t, err)

	assert.Equal(t, "Shopping", entry.Category)
	assert.Equal(t, ledger.Timestamp(fixedNow), entry.Date)
}

func TestNormalizeExpenseInput_RejectsNonNumericAmount(t *testing.T) {
	for name, amount := range map[string]any{
		"string":         "abc",
		"numeric string": "12",
		"bool":           true,
		"nil":            nil,
		"object":         map[string]any{"v": 1},
		"nan":            math.NaN(),
		"inf":            math.Inf(1),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ledger.NormalizeExpenseInput(domain.ExpenseInput{Amount: amount}, fixedNow)
			var valErr *domain.ErrValidation
			require.True(t, errors.As(err, &valErr), "expected ErrValidation, got %v", err)
			assert.Equal(t, "amount", valErr.Field)
		})
	}
}

func TestNormalizeExpenseInput_AcceptsJSONNumberAndNegative(t *testing.T) {
	entry, err := ledger.NormalizeExpenseInput(domain.ExpenseInput{Amount: json.Number("-19.99")}, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, -19.99, entry.Amount)
}

func TestApplyExpensePatch(t *testing.T) {
	base := domain.ExpenseEntry{
		ID: "e1", Amount: 100, Date: "2024-01-10", Category: "Food",
		Description: "lunch", PaymentMethod: "Card",
	}

	patched, err := ledger.ApplyExpensePatch(base, domain.ExpensePatch{
		Amount:   float64(120),
		Category: strPtr("Dining"),
	})
	require.NoError(t, err)

	assert.Equal(t, "e1", patched.ID)
	assert.Equal(t, float64(120), patched.Amount)
	assert.Equal(t, "Dining", patched.Category)
	assert.Equal(t, "lunch", patched.Description)
	assert.Equal(t, "2024-01-10", patched.Date)
	assert.Equal(t, "Card", patched.PaymentMethod)
}

func TestApplyExpensePatch_InvalidAmount(t *testing.T) {
	base := domain.ExpenseEntry{ID: "e1", Amount: 100}
	got, err := ledger.ApplyExpensePatch(base, domain.ExpensePatch{Amount: "lots"})

	var valErr *domain.ErrValidation
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, base, got)
}

func TestNormalizeCreditInput(t *testing.T) {
	credit, err := ledger.NormalizeCreditInput(domain.CreditInput{Amount: 500}, fixedNow)
	require.NoError(t, err)

	assert.Equal(t, float64(500), credit.Amount)
	assert.Equal(t, domain.DefaultCreditSource, credit.Source)
	assert.Equal(t, "2024-03-05T10:30:00.000Z", credit.Date)

	credit, err = ledger.NormalizeCreditInput(domain.CreditInput{Amount: 5, Source: "Bonus"}, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, "Bonus", credit.Source)

	_, err = ledger.NormalizeCreditInput(domain.CreditInput{Amount: "5"}, fixedNow)
	var valErr *domain.ErrValidation
	assert.ErrorAs(t, err, &valErr)
}
