// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"

	"github.com/boddenberg/finledger-go/internal/domain"
)

// LedgerStore is the record store holding one ledger document per user.
// Implemented by the Mongo, SQLite and in-memory adapters.
//
// FindByKey returns (nil, nil) when no ledger exists. AppendExpense and
// AppendCredit must be atomic per document; they return (nil, nil) when the
// ledger does not exist. ReplaceDocument overwrites the whole ledger.
type LedgerStore interface {
	FindByKey(ctx context.Context, username string) (*domain.UserLedger, error)
	AppendExpense(ctx context.Context, username string, entry domain.ExpenseEntry) (*domain.UserLedger, error)
	AppendCredit(ctx context.Context, username string, entry domain.CreditEntry) (*domain.UserLedger, error)
	ReplaceDocument(ctx context.Context, ledger *domain.UserLedger) error
	CreateLedger(ctx context.Context, ledger *domain.UserLedger) error
	UpdateProfile(ctx context.Context, username string, profile domain.Profile) (*domain.UserLedger, error)

	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// AccountStore holds login identities. CreateAccount returns
// *domain.ErrConflict when the username is taken; GetAccount returns
// (nil, nil) when it is unknown.
type AccountStore interface {
	CreateAccount(ctx context.Context, account *domain.UserAccount) error
	GetAccount(ctx context.Context, username string) (*domain.UserAccount, error)
}

// SuggestionGenerator produces savings advice from a language model.
type SuggestionGenerator interface {
	Generate(ctx context.Context, req *domain.SuggestionRequest) (*domain.Suggestion, error)
}

// EventPublisher announces ledger mutations to other replicas.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.LedgerEvent) error
	Close() error
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
	DeletePrefix(prefix string) int
}
