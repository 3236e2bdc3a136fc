package ledger

import (
	"encoding/json"
	"math"
	"strings"
	"time"

	"github.com/boddenberg/finledger-go/internal/domain"
)

// TimestampLayout is the ISO-8601 form used for server-assigned dates
// (UTC, millisecond precision).
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Timestamp formats t the way server-assigned entry dates are stored.
func Timestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// NormalizeExpenseInput is the single place where defaults for a new expense
// are decided. It rejects a non-numeric amount and otherwise fills in the
// date (now), the category (via Categorize) and the description.
func NormalizeExpenseInput(in domain.ExpenseInput, now time.Time) (domain.ExpenseEntry, error) {
	amount, ok := numericAmount(in.Amount)
	if !ok {
		return domain.ExpenseEntry{}, &domain.ErrValidation{Field: "amount", Message: "amount must be a number"}
	}

	description := domain.DefaultDescription
	if in.Description != nil {
		description = *in.Description
	}

	date := ""
	if in.Date != nil {
		date = strings.TrimSpace(*in.Date)
	}
	if date == "" {
		date = Timestamp(now)
	}

	category := ""
	if in.Category != nil {
		category = strings.TrimSpace(*in.Category)
	}
	if category == "" {
		category = Categorize(description)
	}

	entry := domain.ExpenseEntry{
		Amount:      amount,
		Date:        date,
		Category:    category,
		Description: description,
	}
	if in.PaymentMethod != nil {
		entry.PaymentMethod = strings.TrimSpace(*in.PaymentMethod)
	}
	return entry, nil
}

// ApplyExpensePatch shallow-merges patch onto entry. Fields the patch leaves
// nil are retained; the id never changes.
func ApplyExpensePatch(entry domain.ExpenseEntry, patch domain.ExpensePatch) (domain.ExpenseEntry, error) {
	if patch.Amount != nil {
		amount, ok := numericAmount(patch.Amount)
		if !ok {
			return entry, &domain.ErrValidation{Field: "amount", Message: "amount must be a number"}
		}
		entry.Amount = amount
	}
	if patch.Description != nil {
		entry.Description = *patch.Description
	}
	if patch.Date != nil {
		entry.Date = *patch.Date
	}
	if patch.Category != nil {
		entry.Category = *patch.Category
	}
	if patch.PaymentMethod != nil {
		entry.PaymentMethod = *patch.PaymentMethod
	}
	return entry, nil
}

// NormalizeCreditInput validates a credit and assigns its server-side date.
func NormalizeCreditInput(in domain.CreditInput, now time.Time) (domain.CreditEntry, error) {
	amount, ok := numericAmount(in.Amount)
	if !ok {
		return domain.CreditEntry{}, &domain.ErrValidation{Field: "amount", Message: "amount is required and must be a number"}
	}

	source := strings.TrimSpace(in.Source)
	if source == "" {
		source = domain.DefaultCreditSource
	}

	return domain.CreditEntry{
		Amount: amount,
		Date:   Timestamp(now),
		Source: source,
	}, nil
}

// numericAmount accepts only JSON numbers (and Go numeric types). Strings,
// even numeric-looking ones, booleans and null are rejected.
func numericAmount(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int32:
		f = float64(x)
	case int64:
		f = float64(x)
	case json.Number:
		parsed, err := x.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
