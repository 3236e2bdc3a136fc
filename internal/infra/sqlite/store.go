// Package sqlite is the embedded record store. Each ledger is one row whose
// document column holds the JSON-encoded UserLedger. The pool is limited to
// a single connection, so read-modify-write transactions never interleave.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/boddenberg/finledger-go/internal/domain"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const timeLayout = time.RFC3339Nano

// Store implements port.LedgerStore and port.AccountStore on SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open creates the database file if needed, applies migrations and returns
// a ready store.
func Open(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"

	if err := RunMigrations(dsn); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// ============================================================
// LedgerStore
// ============================================================

func (s *Store) FindByKey(ctx context.Context, username string) (*domain.UserLedger, error) {
	l, err := loadLedger(ctx, s.db, username)
	if err != nil {
		return nil, &domain.ErrStore{Op: "find", Err: err}
	}
	return l, nil
}

func (s *Store) AppendExpense(ctx context.Context, username string, entry domain.ExpenseEntry) (*domain.UserLedger, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	return s.mutate(ctx, "append_expense", username, func(l *domain.UserLedger) {
		l.Expenses = append(l.Expenses, entry)
	})
}

func (s *Store) AppendCredit(ctx context.Context, username string, entry domain.CreditEntry) (*domain.UserLedger, error) {
	return s.mutate(ctx, "append_credit", username, func(l *domain.UserLedger) {
		l.Credits = append(l.Credits, entry)
	})
}

func (s *Store) UpdateProfile(ctx context.Context, username string, profile domain.Profile) (*domain.UserLedger, error) {
	return s.mutate(ctx, "update_profile", username, func(l *domain.UserLedger) {
		l.Profile = profile
	})
}

func (s *Store) ReplaceDocument(ctx context.Context, ledger *domain.UserLedger) error {
	next := *ledger
	next.UpdatedAt = s.now().UTC()
	doc, err := json.Marshal(&next)
	if err != nil {
		return &domain.ErrStore{Op: "replace", Err: err}
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE ledgers SET document = ?, updated_at = ? WHERE username = ?`,
		string(doc), next.UpdatedAt.Format(timeLayout), ledger.Username)
	if err != nil {
		return &domain.ErrStore{Op: "replace", Err: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &domain.ErrNotFound{Resource: "ledger", ID: ledger.Username}
	}
	return nil
}

func (s *Store) CreateLedger(ctx context.Context, ledger *domain.UserLedger) error {
	doc, err := json.Marshal(ledger)
	if err != nil {
		return &domain.ErrStore{Op: "create_ledger", Err: err}
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO ledgers (username, document, created_at, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(username) DO NOTHING`,
		ledger.Username, string(doc),
		ledger.CreatedAt.UTC().Format(timeLayout), ledger.UpdatedAt.UTC().Format(timeLayout))
	if err != nil {
		return &domain.ErrStore{Op: "create_ledger", Err: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &domain.ErrConflict{Message: "ledger already exists for " + ledger.Username}
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return &domain.ErrStore{Op: "ping", Err: err}
	}
	return nil
}

func (s *Store) Close(context.Context) error {
	return s.db.Close()
}

// mutate loads, changes and writes back one ledger inside a transaction.
// It returns (nil, nil) when the ledger does not exist.
func (s *Store) mutate(ctx context.Context, op, username string, apply func(*domain.UserLedger)) (*domain.UserLedger, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, &domain.ErrStore{Op: op, Err: err}
	}
	defer tx.Rollback() //nolint:errcheck

	l, err := loadLedger(ctx, tx, username)
	if err != nil {
		return nil, &domain.ErrStore{Op: op, Err: err}
	}
	if l == nil {
		return nil, nil
	}

	apply(l)
	l.UpdatedAt = s.now().UTC()

	doc, err := json.Marshal(l)
	if err != nil {
		return nil, &domain.ErrStore{Op: op, Err: err}
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE ledgers SET document = ?, updated_at = ? WHERE username = ?`,
		string(doc), l.UpdatedAt.Format(timeLayout), username); err != nil {
		return nil, &domain.ErrStore{Op: op, Err: err}
	}
	if err := tx.Commit(); err != nil {
		return nil, &domain.ErrStore{Op: op, Err: err}
	}
	return l, nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func loadLedger(ctx context.Context, q queryer, username string) (*domain.UserLedger, error) {
	var doc string
	err := q.QueryRowContext(ctx, `SELECT document FROM ledgers WHERE username = ?`, username).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var l domain.UserLedger
	if err := json.Unmarshal([]byte(doc), &l); err != nil {
		return nil, fmt.Errorf("decode ledger %s: %w", username, err)
	}
	if l.Expenses == nil {
		l.Expenses = []domain.ExpenseEntry{}
	}
	if l.Credits == nil {
		l.Credits = []domain.CreditEntry{}
	}
	return &l, nil
}

// ============================================================
// AccountStore
// ============================================================

func (s *Store) CreateAccount(ctx context.Context, account *domain.UserAccount) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts (username, password_hash, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(username) DO NOTHING`,
		account.Username, account.PasswordHash, account.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		return &domain.ErrStore{Op: "create_account", Err: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &domain.ErrConflict{Message: "username already exists"}
	}
	return nil
}

func (s *Store) GetAccount(ctx context.Context, username string) (*domain.UserAccount, error) {
	var (
		acc     domain.UserAccount
		created string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT username, password_hash, created_at FROM accounts WHERE username = ?`, username,
	).Scan(&acc.Username, &acc.PasswordHash, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &domain.ErrStore{Op: "get_account", Err: err}
	}
	acc.CreatedAt, _ = time.Parse(timeLayout, created)
	return &acc, nil
}
