package domain

// ============================================================
// Aggregates (dashboard read models)
// ============================================================

// CategoryTotal is one slice of the category breakdown chart.
type CategoryTotal struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// CalendarFilter narrows the calendar and monthly insight to one year and,
// optionally, an exact category and payment method.
type CalendarFilter struct {
	Year          int    `json:"year"`
	Category      string `json:"category,omitempty"`
	PaymentMethod string `json:"paymentMethod,omitempty"`
}

// CalendarBucket groups the expenses of a single day.
type CalendarBucket struct {
	Date    string         `json:"date"` // yyyy-MM-dd
	Entries []ExpenseEntry `json:"entries"`
	Total   float64        `json:"total"`
}

// CalendarResult is the yearly heat-map keyed by yyyy-MM-dd.
type CalendarResult struct {
	Year    int                       `json:"year"`
	Filter  CalendarFilter            `json:"filter"`
	Buckets map[string]CalendarBucket `json:"buckets"`
	Days    int                       `json:"days"`
	Total   float64                   `json:"total"`
}

// MonthlyInsight summarizes spending per month for one year.
type MonthlyInsight struct {
	Year            int         `json:"year"`
	HasData         bool        `json:"hasData"`
	Message         string      `json:"message"`
	MonthlyTotals   [12]float64 `json:"monthlyTotals"`
	Total           float64     `json:"total"`
	Average         float64     `json:"average"`
	MaxMonth        int         `json:"maxMonth"`
	MinMonth        int         `json:"minMonth"`
	MaxMonthName    string      `json:"maxMonthName"`
	MinMonthName    string      `json:"minMonthName"`
	MaxDeviationPct float64     `json:"maxDeviationPct"`
	MinDeviationPct float64     `json:"minDeviationPct"`
}

// Savings is the savings ring: what is left of salary plus credits.
type Savings struct {
	BaseSalary    float64 `json:"baseSalary"`
	TotalCredits  float64 `json:"totalCredits"`
	TotalExpenses float64 `json:"totalExpenses"`
	TotalFunds    float64 `json:"totalFunds"`
	Remaining     float64 `json:"remaining"`
	Percentage    int     `json:"percentage"`
}

// DashboardSummary bundles every aggregate the dashboard renders.
type DashboardSummary struct {
	Username   string          `json:"username"`
	Categories []CategoryTotal `json:"categories"`
	Calendar   CalendarResult  `json:"calendar"`
	Monthly    MonthlyInsight  `json:"monthly"`
	Savings    Savings         `json:"savings"`
}
