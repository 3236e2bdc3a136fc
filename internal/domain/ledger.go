package domain

import "time"

// ============================================================
// Ledger documents
// ============================================================

// Gender values accepted on a profile.
const (
	GenderMale   = "Male"
	GenderFemale = "Female"
	GenderOther  = "Other"
)

// Defaults applied when the caller leaves a field out.
const (
	DefaultDescription  = "No description"
	DefaultCreditSource = "Manual Add"
	DefaultCategory     = "Other"
)

// UserAccount is the login identity behind a ledger.
type UserAccount struct {
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// UserLedger is the per-user document: profile plus the append-only
// expense and credit lists.
type UserLedger struct {
	Username  string         `json:"username"`
	Profile   Profile        `json:"profile"`
	Expenses  []ExpenseEntry `json:"expenses"`
	Credits   []CreditEntry  `json:"credits"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// NewUserLedger returns the empty ledger created at signup.
func NewUserLedger(username string, now time.Time) *UserLedger {
	return &UserLedger{
		Username:  username,
		Profile:   Profile{Gender: GenderOther},
		Expenses:  []ExpenseEntry{},
		Credits:   []CreditEntry{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Profile holds the user's personal data and base salary.
// Currency is advisory metadata and never enters a computation.
type Profile struct {
	FullName      string  `json:"fullName"`
	Email         string  `json:"email"`
	MonthlySalary float64 `json:"monthlySalary"`
	Gender        string  `json:"gender"`
	Phone         string  `json:"phone"`
	DOB           string  `json:"dob"`
	Address       string  `json:"address"`
	Bio           string  `json:"bio"`
	Currency      string  `json:"currency,omitempty"`
}

// ProfileView is the profile as returned to the dashboard.
type ProfileView struct {
	Profile
	AvatarURL string `json:"avatarUrl"`
}

// ExpenseEntry is one logged expense. Amount carries no sign constraint.
type ExpenseEntry struct {
	ID            string  `json:"id"`
	Amount        float64 `json:"amount"`
	Date          string  `json:"date"`
	Category      string  `json:"category"`
	Description   string  `json:"description"`
	PaymentMethod string  `json:"paymentMethod,omitempty"`
}

// CreditEntry is a manual top-up. Credits are immutable once created.
type CreditEntry struct {
	Amount float64 `json:"amount"`
	Date   string  `json:"date"`
	Source string  `json:"source"`
}

// ============================================================
// Inputs
// ============================================================

// ExpenseInput is the body for POST /v1/expenses.
// Amount stays untyped until normalization so a non-numeric value can be
// rejected instead of silently decoded to zero.
type ExpenseInput struct {
	Amount        any     `json:"amount"`
	Description   *string `json:"description,omitempty"`
	Date          *string `json:"date,omitempty"`
	Category      *string `json:"category,omitempty"`
	PaymentMethod *string `json:"paymentMethod,omitempty"`
}

// ExpensePatch is the body for PUT /v1/expenses/{id}. Nil fields are kept.
type ExpensePatch struct {
	Amount        any     `json:"amount,omitempty"`
	Description   *string `json:"description,omitempty"`
	Date          *string `json:"date,omitempty"`
	Category      *string `json:"category,omitempty"`
	PaymentMethod *string `json:"paymentMethod,omitempty"`
}

// CreditInput is the body for POST /v1/credits.
type CreditInput struct {
	Amount any    `json:"amount"`
	Source string `json:"source,omitempty"`
}

// ProfileUpdate is the body for PUT /v1/profile.
type ProfileUpdate struct {
	FullName      string   `json:"fullName"`
	MonthlySalary *float64 `json:"monthlySalary"`
	Gender        string   `json:"gender"`
	Email         *string  `json:"email,omitempty"`
	Phone         *string  `json:"phone,omitempty"`
	DOB           *string  `json:"dob,omitempty"`
	Address       *string  `json:"address,omitempty"`
	Bio           *string  `json:"bio,omitempty"`
	Currency      *string  `json:"currency,omitempty"`
}

// ============================================================
// Ledger change events
// ============================================================

// LedgerEventKind names the mutation that produced a LedgerEvent.
type LedgerEventKind string

const (
	EventExpenseAdded   LedgerEventKind = "expense_added"
	EventExpenseUpdated LedgerEventKind = "expense_updated"
	EventExpenseDeleted LedgerEventKind = "expense_deleted"
	EventCreditAdded    LedgerEventKind = "credit_added"
	EventProfileUpdated LedgerEventKind = "profile_updated"
)

// LedgerEvent announces that a user's ledger changed.
type LedgerEvent struct {
	Username  string          `json:"username"`
	Kind      LedgerEventKind `json:"kind"`
	EntryID   string          `json:"entryId,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}
