// Package service holds the application services behind the HTTP API:
// ledger mutations and dashboard reads, profiles, accounts and suggestions.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/boddenberg/finledger-go/internal/domain"
	"github.com/boddenberg/finledger-go/internal/infra/observability"
	"github.com/boddenberg/finledger-go/internal/ledger"
	"github.com/boddenberg/finledger-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("service/ledger")

// LedgerService records expenses and credits and computes dashboard
// aggregates from the stored ledger.
type LedgerService struct {
	store   port.LedgerStore
	cache   *SummaryCache
	metrics *observability.Metrics
	logger  *zap.Logger
	notify  *notifier
	now     func() time.Time
}

// NewLedgerService creates the ledger service with all dependencies injected.
func NewLedgerService(
	store port.LedgerStore,
	cache *SummaryCache,
	publisher port.EventPublisher,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *LedgerService {
	return &LedgerService{
		store:   store,
		cache:   cache,
		metrics: metrics,
		logger:  logger,
		notify:  &notifier{cache: cache, publisher: publisher, metrics: metrics, logger: logger},
		now:     time.Now,
	}
}

func (s *LedgerService) load(ctx context.Context, username string) (*domain.UserLedger, error) {
	l, err := s.store.FindByKey(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	if l == nil {
		return nil, &domain.ErrNotFound{Resource: "ledger", ID: username}
	}
	return l, nil
}

// ============================================================
// Expenses
// ============================================================

// AddExpense validates and appends one expense, returning the updated list.
func (s *LedgerService) AddExpense(ctx context.Context, username string, in domain.ExpenseInput) ([]domain.ExpenseEntry, error) {
	ctx, span := tracer.Start(ctx, "LedgerService.AddExpense")
	defer span.End()
	span.SetAttributes(attribute.String("username", username))

	entry, err := ledger.NormalizeExpenseInput(in, s.now())
	if err != nil {
		return nil, err
	}

	l, err := s.store.AppendExpense(ctx, username, entry)
	if err != nil {
		return nil, fmt.Errorf("append expense: %w", err)
	}
	if l == nil {
		return nil, &domain.ErrNotFound{Resource: "ledger", ID: username}
	}

	entryID := ""
	if n := len(l.Expenses); n > 0 {
		entryID = l.Expenses[n-1].ID
	}
	s.logger.Info("expense added",
		zap.String("username", username),
		zap.String("category", entry.Category),
		zap.Float64("amount", entry.Amount),
	)
	s.notify.changed(ctx, username, domain.EventExpenseAdded, entryID)

	return l.Expenses, nil
}

// ListExpenses returns every expense in insertion order.
func (s *LedgerService) ListExpenses(ctx context.Context, username string) ([]domain.ExpenseEntry, error) {
	ctx, span := tracer.Start(ctx, "LedgerService.ListExpenses")
	defer span.End()

	l, err := s.load(ctx, username)
	if err != nil {
		return nil, err
	}
	return nonNilExpenses(l.Expenses), nil
}

// UpdateExpense merges patch into the expense with the given id.
func (s *LedgerService) UpdateExpense(ctx context.Context, username, id string, patch domain.ExpensePatch) error {
	ctx, span := tracer.Start(ctx, "LedgerService.UpdateExpense")
	defer span.End()
	span.SetAttributes(attribute.String("username", username), attribute.String("expense.id", id))

	l, err := s.load(ctx, username)
	if err != nil {
		return err
	}

	idx := -1
	for i := range l.Expenses {
		if l.Expenses[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return &domain.ErrNotFound{Resource: "expense", ID: id}
	}

	updated, err := ledger.ApplyExpensePatch(l.Expenses[idx], patch)
	if err != nil {
		return err
	}
	l.Expenses[idx] = updated

	if err := s.store.ReplaceDocument(ctx, l); err != nil {
		return fmt.Errorf("replace ledger: %w", err)
	}

	s.logger.Info("expense updated", zap.String("username", username), zap.String("expense_id", id))
	s.notify.changed(ctx, username, domain.EventExpenseUpdated, id)
	return nil
}

// DeleteExpense removes the expense with the given id.
func (s *LedgerService) DeleteExpense(ctx context.Context, username, id string) error {
	ctx, span := tracer.Start(ctx, "LedgerService.DeleteExpense")
	defer span.End()
	span.SetAttributes(attribute.String("username", username), attribute.String("expense.id", id))

	l, err := s.load(ctx, username)
	if err != nil {
		return err
	}

	before := len(l.Expenses)
	kept := make([]domain.ExpenseEntry, 0, before)
	for _, e := range l.Expenses {
		if e.ID != id {
			kept = append(kept, e)
		}
	}
	if len(kept) == before {
		return &domain.ErrNotFound{Resource: "expense", ID: id}
	}
	l.Expenses = kept

	if err := s.store.ReplaceDocument(ctx, l); err != nil {
		return fmt.Errorf("replace ledger: %w", err)
	}

	s.logger.Info("expense deleted", zap.String("username", username), zap.String("expense_id", id))
	s.notify.changed(ctx, username, domain.EventExpenseDeleted, id)
	return nil
}

// ============================================================
// Credits
// ============================================================

// AddCredit appends a credit dated now, returning the updated list.
func (s *LedgerService) AddCredit(ctx context.Context, username string, in domain.CreditInput) ([]domain.CreditEntry, error) {
	ctx, span := tracer.Start(ctx, "LedgerService.AddCredit")
	defer span.End()
	span.SetAttributes(attribute.String("username", username))

	entry, err := ledger.NormalizeCreditInput(in, s.now())
	if err != nil {
		return nil, err
	}

	l, err := s.store.AppendCredit(ctx, username, entry)
	if err != nil {
		return nil, fmt.Errorf("append credit: %w", err)
	}
	if l == nil {
		return nil, &domain.ErrNotFound{Resource: "ledger", ID: username}
	}

	s.logger.Info("credit added",
		zap.String("username", username),
		zap.String("source", entry.Source),
		zap.Float64("amount", entry.Amount),
	)
	s.notify.changed(ctx, username, domain.EventCreditAdded, "")

	return l.Credits, nil
}

// ListCredits returns the credits of an existing ledger, [] when there are none.
func (s *LedgerService) ListCredits(ctx context.Context, username string) ([]domain.CreditEntry, error) {
	ctx, span := tracer.Start(ctx, "LedgerService.ListCredits")
	defer span.End()

	l, err := s.load(ctx, username)
	if err != nil {
		return nil, err
	}
	if l.Credits == nil {
		return []domain.CreditEntry{}, nil
	}
	return l.Credits, nil
}

// ============================================================
// Dashboard reads
// ============================================================

// CategoryTotals returns per-category sums, largest first.
func (s *LedgerService) CategoryTotals(ctx context.Context, username string) ([]domain.CategoryTotal, error) {
	ctx, span := tracer.Start(ctx, "LedgerService.CategoryTotals")
	defer span.End()

	l, err := s.load(ctx, username)
	if err != nil {
		return nil, err
	}
	return ledger.SortedCategoryTotals(ledger.CategoryTotals(l.Expenses)), nil
}

// Calendar buckets the filtered expenses of one year by day.
func (s *LedgerService) Calendar(ctx context.Context, username string, filter domain.CalendarFilter) (*domain.CalendarResult, error) {
	ctx, span := tracer.Start(ctx, "LedgerService.Calendar")
	defer span.End()

	l, err := s.load(ctx, username)
	if err != nil {
		return nil, err
	}
	res, err := ledger.CalendarBuckets(l.Expenses, filter)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// MonthlyInsight summarizes the filtered expenses of one year by month.
func (s *LedgerService) MonthlyInsight(ctx context.Context, username string, filter domain.CalendarFilter) (*domain.MonthlyInsight, error) {
	ctx, span := tracer.Start(ctx, "LedgerService.MonthlyInsight")
	defer span.End()

	l, err := s.load(ctx, username)
	if err != nil {
		return nil, err
	}
	res, err := ledger.MonthlyInsight(l.Expenses, filter)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// Savings compares salary plus credits with all-time expenses.
func (s *LedgerService) Savings(ctx context.Context, username string) (*domain.Savings, error) {
	ctx, span := tracer.Start(ctx, "LedgerService.Savings")
	defer span.End()

	l, err := s.load(ctx, username)
	if err != nil {
		return nil, err
	}
	res, err := ledger.LedgerSavings(l)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// Summary returns all dashboard aggregates at once. Results are cached until
// the next mutation of the user's ledger.
func (s *LedgerService) Summary(ctx context.Context, username string, filter domain.CalendarFilter) (*domain.DashboardSummary, error) {
	ctx, span := tracer.Start(ctx, "LedgerService.Summary")
	defer span.End()
	span.SetAttributes(attribute.String("username", username), attribute.Int("year", filter.Year))

	if cached, ok := s.cache.get(username, filter); ok {
		s.metrics.IncrCacheHit("summary")
		return cached, nil
	}
	s.metrics.IncrCacheMiss("summary")

	gen := s.cache.generation(username)
	l, err := s.load(ctx, username)
	if err != nil {
		return nil, err
	}
	summary, err := ledger.BuildSummary(l, filter)
	if err != nil {
		return nil, err
	}
	if !s.cache.put(username, filter, gen, summary) {
		s.logger.Debug("ledger changed during summary read, not caching",
			zap.String("username", username))
	}
	return summary, nil
}

// HandleLedgerEvent drops cached summaries for a ledger changed elsewhere.
func (s *LedgerService) HandleLedgerEvent(_ context.Context, event domain.LedgerEvent) error {
	n := s.cache.invalidate(event.Username)
	s.logger.Debug("ledger event applied",
		zap.String("username", event.Username),
		zap.String("kind", string(event.Kind)),
		zap.Int("evicted", n),
	)
	return nil
}

func nonNilExpenses(e []domain.ExpenseEntry) []domain.ExpenseEntry {
	if e == nil {
		return []domain.ExpenseEntry{}
	}
	return e
}

// ExportExpenses returns the expenses selected by filter for CSV export.
// A zero year exports every year.
func (s *LedgerService) ExportExpenses(ctx context.Context, username string, filter domain.CalendarFilter) ([]domain.ExpenseEntry, error) {
	ctx, span := tracer.Start(ctx, "LedgerService.ExportExpenses")
	defer span.End()

	l, err := s.load(ctx, username)
	if err != nil {
		return nil, err
	}
	return ledger.FilterExpenses(l.Expenses, filter), nil
}
