package backend

import (
	"context"
	"errors"
	"time"

	"github.com/boddenberg/finledger-go/internal/domain"
	"github.com/boddenberg/finledger-go/internal/infra/observability"
	"github.com/boddenberg/finledger-go/internal/infra/resilience"
	"github.com/boddenberg/finledger-go/internal/port"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("finledger/store")

// Store is a record store that serves both ledgers and accounts.
type Store interface {
	port.LedgerStore
	port.AccountStore
}

// Instrumented wraps a Store with a circuit breaker, tracing, metrics and
// retries. Only reads are retried; writes pass through the breaker once.
type Instrumented struct {
	next    Store
	name    string
	cb      *gobreaker.CircuitBreaker
	retry   resilience.Config
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewInstrumented decorates next. name is the backend name used in spans
// and in ErrCircuitOpen.
func NewInstrumented(next Store, name string, retry resilience.Config, metrics *observability.Metrics, logger *zap.Logger) *Instrumented {
	return &Instrumented{
		next:    next,
		name:    name,
		cb:      resilience.NewCircuitBreaker("store-" + name),
		retry:   retry,
		metrics: metrics,
		logger:  logger,
	}
}

func instrument[T any](ctx context.Context, s *Instrumented, op string, idempotent bool, fn func(context.Context) (T, error)) (T, error) {
	ctx, span := tracer.Start(ctx, "Store."+op)
	defer span.End()
	span.SetAttributes(attribute.String("db.system", s.name))

	start := time.Now()
	call := func() (T, error) {
		return resilience.Execute(s.cb, "store", func() (T, error) { return fn(ctx) })
	}

	var (
		out T
		err error
	)
	if idempotent {
		err = resilience.RetryWithBackoff(ctx, s.retry, func() error {
			var callErr error
			out, callErr = call()
			if callErr != nil && !retryable(callErr) {
				return resilience.Permanent(callErr)
			}
			return callErr
		})
	} else {
		out, err = call()
	}
	s.metrics.RecordStoreDuration(op, time.Since(start))

	if err != nil && retryable(err) {
		s.metrics.IncrStoreError(op)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Error("store call failed", zap.String("operation", op), zap.String("backend", s.name), zap.Error(err))
	}
	return out, err
}

// retryable reports whether err came from the store itself rather than
// from a caller mistake or an open breaker.
func retryable(err error) bool {
	var (
		notFound *domain.ErrNotFound
		conflict *domain.ErrConflict
		open     *domain.ErrCircuitOpen
	)
	return !asAny(err, &notFound, &conflict, &open)
}

func asAny(err error, targets ...any) bool {
	for _, t := range targets {
		if errors.As(err, t) {
			return true
		}
	}
	return false
}

func (s *Instrumented) FindByKey(ctx context.Context, username string) (*domain.UserLedger, error) {
	return instrument(ctx, s, "find", true, func(ctx context.Context) (*domain.UserLedger, error) {
		return s.next.FindByKey(ctx, username)
	})
}

func (s *Instrumented) AppendExpense(ctx context.Context, username string, entry domain.ExpenseEntry) (*domain.UserLedger, error) {
	return instrument(ctx, s, "append_expense", false, func(ctx context.Context) (*domain.UserLedger, error) {
		return s.next.AppendExpense(ctx, username, entry)
	})
}

func (s *Instrumented) AppendCredit(ctx context.Context, username string, entry domain.CreditEntry) (*domain.UserLedger, error) {
	return instrument(ctx, s, "append_credit", false, func(ctx context.Context) (*domain.UserLedger, error) {
		return s.next.AppendCredit(ctx, username, entry)
	})
}

func (s *Instrumented) ReplaceDocument(ctx context.Context, ledger *domain.UserLedger) error {
	_, err := instrument(ctx, s, "replace", false, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.next.ReplaceDocument(ctx, ledger)
	})
	return err
}

func (s *Instrumented) CreateLedger(ctx context.Context, ledger *domain.UserLedger) error {
	_, err := instrument(ctx, s, "create_ledger", false, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.next.CreateLedger(ctx, ledger)
	})
	return err
}

func (s *Instrumented) UpdateProfile(ctx context.Context, username string, profile domain.Profile) (*domain.UserLedger, error) {
	return instrument(ctx, s, "update_profile", false, func(ctx context.Context) (*domain.UserLedger, error) {
		return s.next.UpdateProfile(ctx, username, profile)
	})
}

func (s *Instrumented) CreateAccount(ctx context.Context, account *domain.UserAccount) error {
	_, err := instrument(ctx, s, "create_account", false, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.next.CreateAccount(ctx, account)
	})
	return err
}

func (s *Instrumented) GetAccount(ctx context.Context, username string) (*domain.UserAccount, error) {
	return instrument(ctx, s, "get_account", true, func(ctx context.Context) (*domain.UserAccount, error) {
		return s.next.GetAccount(ctx, username)
	})
}

// Ping bypasses the breaker so health checks report the real state.
func (s *Instrumented) Ping(ctx context.Context) error {
	return s.next.Ping(ctx)
}

func (s *Instrumented) Close(ctx context.Context) error {
	return s.next.Close(ctx)
}
