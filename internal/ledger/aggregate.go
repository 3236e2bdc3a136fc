package ledger

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/boddenberg/finledger-go/internal/domain"

	"github.com/shopspring/decimal"
)

// NoDataMessage is returned by MonthlyInsight when nothing was spent.
const NoDataMessage = "No expenses found for this year. Start logging your expenses regularly."

const dayLayout = "2006-01-02"

var monthNames = [12]string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	dayLayout,
}

// ParseDate parses an entry date. The calendar day is the one written in the
// string, without converting to the server's zone.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// amountOf converts a stored amount to a decimal. Non-finite values count as 0.
func amountOf(f float64) decimal.Decimal {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(f)
}

// ============================================================
// Category totals
// ============================================================

// CategoryTotals sums expense amounts per category. A blank category is
// counted under "Other". The result does not depend on input order.
func CategoryTotals(expenses []domain.ExpenseEntry) map[string]float64 {
	acc := make(map[string]decimal.Decimal)
	for _, e := range expenses {
		cat := strings.TrimSpace(e.Category)
		if cat == "" {
			cat = domain.DefaultCategory
		}
		acc[cat] = acc[cat].Add(amountOf(e.Amount))
	}

	out := make(map[string]float64, len(acc))
	for cat, total := range acc {
		out[cat] = total.InexactFloat64()
	}
	return out
}

// SortedCategoryTotals flattens totals into chart rows, largest first.
func SortedCategoryTotals(totals map[string]float64) []domain.CategoryTotal {
	rows := make([]domain.CategoryTotal, 0, len(totals))
	for name, value := range totals {
		rows = append(rows, domain.CategoryTotal{Name: name, Value: value})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Value != rows[j].Value {
			return rows[i].Value > rows[j].Value
		}
		return rows[i].Name < rows[j].Name
	})
	return rows
}

// ============================================================
// Calendar buckets
// ============================================================

type datedExpense struct {
	entry domain.ExpenseEntry
	at    time.Time
}

func validateFilter(f domain.CalendarFilter) error {
	if f.Year < 1 || f.Year > 9999 {
		return &domain.ErrValidation{Field: "year", Message: fmt.Sprintf("year %d out of range", f.Year)}
	}
	return nil
}

// selectExpenses keeps entries with a parseable date in the filter's year
// that match the optional category and payment method exactly.
func selectExpenses(expenses []domain.ExpenseEntry, f domain.CalendarFilter) []datedExpense {
	selected := make([]datedExpense, 0, len(expenses))
	for _, e := range expenses {
		at, ok := ParseDate(e.Date)
		if !ok || at.Year() != f.Year {
			continue
		}
		if f.Category != "" && e.Category != f.Category {
			continue
		}
		if f.PaymentMethod != "" && e.PaymentMethod != f.PaymentMethod {
			continue
		}
		selected = append(selected, datedExpense{entry: e, at: at})
	}
	return selected
}

// CalendarBuckets groups one year of expenses by calendar day.
// Entries whose date cannot be parsed are skipped.
func CalendarBuckets(expenses []domain.ExpenseEntry, f domain.CalendarFilter) (domain.CalendarResult, error) {
	if err := validateFilter(f); err != nil {
		return domain.CalendarResult{}, err
	}

	type acc struct {
		entries []domain.ExpenseEntry
		total   decimal.Decimal
	}
	days := make(map[string]*acc)
	var grand decimal.Decimal

	for _, d := range selectExpenses(expenses, f) {
		key := d.at.Format(dayLayout)
		a, ok := days[key]
		if !ok {
			a = &acc{}
			days[key] = a
		}
		amt := amountOf(d.entry.Amount)
		a.entries = append(a.entries, d.entry)
		a.total = a.total.Add(amt)
		grand = grand.Add(amt)
	}

	buckets := make(map[string]domain.CalendarBucket, len(days))
	for key, a := range days {
		buckets[key] = domain.CalendarBucket{
			Date:    key,
			Entries: a.entries,
			Total:   a.total.InexactFloat64(),
		}
	}

	return domain.CalendarResult{
		Year:    f.Year,
		Filter:  f,
		Buckets: buckets,
		Days:    len(buckets),
		Total:   grand.InexactFloat64(),
	}, nil
}

// ============================================================
// Monthly insight
// ============================================================

// MonthlyInsight buckets one year of expenses into months and reports the
// peak and trough months with their deviation from the average.
//
// Peak and trough are chosen among months that have at least one entry;
// ties go to the earliest month. Deviations are measured against the mean
// of those months, which equals total/12 once every month has data.
func MonthlyInsight(expenses []domain.ExpenseEntry, f domain.CalendarFilter) (domain.MonthlyInsight, error) {
	if err := validateFilter(f); err != nil {
		return domain.MonthlyInsight{}, err
	}

	insight := domain.MonthlyInsight{Year: f.Year, MaxMonth: -1, MinMonth: -1}

	selected := selectExpenses(expenses, f)
	if len(selected) == 0 {
		insight.Message = NoDataMessage
		return insight, nil
	}

	var (
		months [12]decimal.Decimal
		active [12]bool
		total  decimal.Decimal
	)
	for _, d := range selected {
		m := int(d.at.Month()) - 1
		amt := amountOf(d.entry.Amount)
		months[m] = months[m].Add(amt)
		active[m] = true
		total = total.Add(amt)
	}

	activeCount := 0
	maxMonth, minMonth := -1, -1
	for m := 0; m < 12; m++ {
		insight.MonthlyTotals[m] = months[m].InexactFloat64()
		if !active[m] {
			continue
		}
		activeCount++
		if maxMonth < 0 || months[m].GreaterThan(months[maxMonth]) {
			maxMonth = m
		}
		if minMonth < 0 || months[m].LessThan(months[minMonth]) {
			minMonth = m
		}
	}

	average := total.Div(decimal.NewFromInt(12))
	baseline := total.Div(decimal.NewFromInt(int64(activeCount)))

	insight.HasData = true
	insight.Total = total.InexactFloat64()
	insight.Average = average.InexactFloat64()
	insight.MaxMonth = maxMonth
	insight.MinMonth = minMonth
	insight.MaxMonthName = monthNames[maxMonth]
	insight.MinMonthName = monthNames[minMonth]
	insight.MaxDeviationPct = deviationPct(months[maxMonth], baseline)
	insight.MinDeviationPct = deviationPct(months[minMonth], baseline)
	insight.Message = fmt.Sprintf(
		"Yearly overview: total spent %s, monthly average %s. Highest spend in %s (%s), %.1f%% above the average of active months. Lowest spend in %s (%s), %.1f%% below it.",
		total.StringFixed(2), average.StringFixed(2),
		insight.MaxMonthName, months[maxMonth].StringFixed(2), insight.MaxDeviationPct,
		insight.MinMonthName, months[minMonth].StringFixed(2), insight.MinDeviationPct,
	)
	return insight, nil
}

// deviationPct is |v - avg| / ((v + avg) / 2) * 100, rounded to one decimal.
func deviationPct(value, avg decimal.Decimal) float64 {
	mid := value.Add(avg).Div(decimal.NewFromInt(2))
	if mid.IsZero() {
		return 0
	}
	pct := value.Sub(avg).Div(mid).Mul(decimal.NewFromInt(100)).Abs()
	return pct.Round(1).InexactFloat64()
}

// ============================================================
// Savings
// ============================================================

// SumExpenses totals the expense amounts.
func SumExpenses(expenses []domain.ExpenseEntry) float64 {
	var total decimal.Decimal
	for _, e := range expenses {
		total = total.Add(amountOf(e.Amount))
	}
	return total.InexactFloat64()
}

// SumCredits totals the credit amounts.
func SumCredits(credits []domain.CreditEntry) float64 {
	var total decimal.Decimal
	for _, c := range credits {
		total = total.Add(amountOf(c.Amount))
	}
	return total.InexactFloat64()
}

// SavingsRatio computes what is left of salary plus credits after expenses.
// Remaining is clamped at zero and the percentage is 0 when there are no funds.
func SavingsRatio(baseSalary, totalCredits, totalExpenses float64) (domain.Savings, error) {
	for field, v := range map[string]float64{
		"baseSalary":    baseSalary,
		"totalCredits":  totalCredits,
		"totalExpenses": totalExpenses,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return domain.Savings{}, &domain.ErrValidation{Field: field, Message: "must be a finite number"}
		}
	}

	funds := decimal.NewFromFloat(baseSalary).Add(decimal.NewFromFloat(totalCredits))
	remaining := funds.Sub(decimal.NewFromFloat(totalExpenses))
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}

	percentage := 0
	if funds.IsPositive() {
		pct := remaining.Div(funds).Mul(decimal.NewFromInt(100))
		percentage = int(pct.Round(0).IntPart())
	}

	return domain.Savings{
		BaseSalary:    baseSalary,
		TotalCredits:  totalCredits,
		TotalExpenses: totalExpenses,
		TotalFunds:    funds.InexactFloat64(),
		Remaining:     remaining.InexactFloat64(),
		Percentage:    percentage,
	}, nil
}

// LedgerSavings derives the savings ring straight from a ledger.
func LedgerSavings(l *domain.UserLedger) (domain.Savings, error) {
	return SavingsRatio(l.Profile.MonthlySalary, SumCredits(l.Credits), SumExpenses(l.Expenses))
}

// ============================================================
// Dashboard
// ============================================================

// BuildSummary computes every dashboard aggregate for one ledger.
func BuildSummary(l *domain.UserLedger, f domain.CalendarFilter) (*domain.DashboardSummary, error) {
	calendar, err := CalendarBuckets(l.Expenses, f)
	if err != nil {
		return nil, err
	}
	monthly, err := MonthlyInsight(l.Expenses, f)
	if err != nil {
		return nil, err
	}
	savings, err := LedgerSavings(l)
	if err != nil {
		return nil, err
	}

	return &domain.DashboardSummary{
		Username:   l.Username,
		Categories: SortedCategoryTotals(CategoryTotals(l.Expenses)),
		Calendar:   calendar,
		Monthly:    monthly,
		Savings:    savings,
	}, nil
}
