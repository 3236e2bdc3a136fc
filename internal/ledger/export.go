package ledger

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/boddenberg/finledger-go/internal/domain"
)

// CSVHeader is the column order of an expense export.
var CSVHeader = []string{"id", "date", "description", "category", "paymentMethod", "amount"}

// FilterExpenses applies the export filter. A zero Year keeps every year,
// including entries whose date does not parse.
func FilterExpenses(expenses []domain.ExpenseEntry, f domain.CalendarFilter) []domain.ExpenseEntry {
	out := make([]domain.ExpenseEntry, 0, len(expenses))
	for _, e := range expenses {
		if f.Year != 0 {
			at, ok := ParseDate(e.Date)
			if !ok || at.Year() != f.Year {
				continue
			}
		}
		if f.Category != "" && e.Category != f.Category {
			continue
		}
		if f.PaymentMethod != "" && e.PaymentMethod != f.PaymentMethod {
			continue
		}
		out = append(out, e)
	}
	return out
}

// safeCell stops spreadsheets from evaluating user text as a formula.
func safeCell(v string) string {
	if v == "" {
		return v
	}
	switch v[0] {
	case '=', '+', '-', '@', '\t', '\r':
		return "'" + v
	}
	return v
}

// WriteCSV writes expenses with a header row, in the given order. Text
// cells that a spreadsheet would read as a formula are prefixed with '.
func WriteCSV(w io.Writer, expenses []domain.ExpenseEntry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for _, e := range expenses {
		if err := cw.Write([]string{
			safeCell(e.ID),
			safeCell(e.Date),
			safeCell(e.Description),
			safeCell(e.Category),
			safeCell(e.PaymentMethod),
			strconv.FormatFloat(e.Amount, 'f', -1, 64),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
