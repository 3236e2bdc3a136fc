// Package memstore is an in-process record store used for local
// development and tests. Each ledger is guarded by the store mutex, which
// gives appends the same per-document atomicity the database backends have.
package memstore

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/boddenberg/finledger-go/internal/domain"

	"github.com/google/uuid"
)

var errClosed = errors.New("memstore: closed")

// Store keeps ledgers and accounts in maps. Values are copied on the way in
// and out so callers never share slices with the store.
type Store struct {
	mu       sync.RWMutex
	ledgers  map[string]*domain.UserLedger
	accounts map[string]domain.UserAccount
	now      func() time.Time
	closed   bool
}

// New returns an empty store.
func New() *Store {
	return &Store{
		ledgers:  make(map[string]*domain.UserLedger),
		accounts: make(map[string]domain.UserAccount),
		now:      time.Now,
	}
}

// ============================================================
// LedgerStore
// ============================================================

func (s *Store) FindByKey(_ context.Context, username string) (*domain.UserLedger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.ledgers[username]
	if !ok {
		return nil, nil
	}
	return cloneLedger(l), nil
}

func (s *Store) AppendExpense(_ context.Context, username string, entry domain.ExpenseEntry) (*domain.UserLedger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.ledgers[username]
	if !ok {
		return nil, nil
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	l.Expenses = append(l.Expenses, entry)
	l.UpdatedAt = s.now()
	return cloneLedger(l), nil
}

func (s *Store) AppendCredit(_ context.Context, username string, entry domain.CreditEntry) (*domain.UserLedger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.ledgers[username]
	if !ok {
		return nil, nil
	}
	l.Credits = append(l.Credits, entry)
	l.UpdatedAt = s.now()
	return cloneLedger(l), nil
}

func (s *Store) ReplaceDocument(_ context.Context, ledger *domain.UserLedger) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.ledgers[ledger.Username]; !ok {
		return &domain.ErrNotFound{Resource: "ledger", ID: ledger.Username}
	}
	next := cloneLedger(ledger)
	next.UpdatedAt = s.now()
	s.ledgers[ledger.Username] = next
	return nil
}

func (s *Store) CreateLedger(_ context.Context, ledger *domain.UserLedger) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.ledgers[ledger.Username]; ok {
		return &domain.ErrConflict{Message: "ledger already exists for " + ledger.Username}
	}
	s.ledgers[ledger.Username] = cloneLedger(ledger)
	return nil
}

func (s *Store) UpdateProfile(_ context.Context, username string, profile domain.Profile) (*domain.UserLedger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.ledgers[username]
	if !ok {
		return nil, nil
	}
	l.Profile = profile
	l.UpdatedAt = s.now()
	return cloneLedger(l), nil
}

func (s *Store) Ping(context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return &domain.ErrStore{Op: "ping", Err: errClosed}
	}
	return nil
}

func (s *Store) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// ============================================================
// AccountStore
// ============================================================

func (s *Store) CreateAccount(_ context.Context, account *domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[account.Username]; ok {
		return &domain.ErrConflict{Message: "username already exists"}
	}
	s.accounts[account.Username] = *account
	return nil
}

func (s *Store) GetAccount(_ context.Context, username string) (*domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acc, ok := s.accounts[username]
	if !ok {
		return nil, nil
	}
	return &acc, nil
}

func cloneLedger(l *domain.UserLedger) *domain.UserLedger {
	out := *l
	out.Expenses = append(make([]domain.ExpenseEntry, 0, len(l.Expenses)), l.Expenses...)
	out.Credits = append(make([]domain.CreditEntry, 0, len(l.Credits)), l.Credits...)
	return &out
}
