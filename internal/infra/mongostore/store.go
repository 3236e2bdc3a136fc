// Package mongostore is the MongoDB record store. Ledgers live in the
// userdata collection, one document per username; logins live in users.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/boddenberg/finledger-go/internal/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	ledgerCollection  = "userdata"
	accountCollection = "users"
)

// Store implements port.LedgerStore and port.AccountStore on MongoDB.
type Store struct {
	cli      *mongo.Client
	ledgers  *mongo.Collection
	accounts *mongo.Collection
	now      func() time.Time
}

// Open connects, pings and makes sure the unique username indexes exist.
func Open(ctx context.Context, uri, database string) (*Store, error) {
	cli, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := cli.Ping(ctx, readpref.Primary()); err != nil {
		_ = cli.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	db := cli.Database(database)
	s := &Store{
		cli:      cli,
		ledgers:  db.Collection(ledgerCollection),
		accounts: db.Collection(accountCollection),
		now:      time.Now,
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = cli.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	unique := mongo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	for _, coll := range []*mongo.Collection{s.ledgers, s.accounts} {
		if _, err := coll.Indexes().CreateOne(ctx, unique); err != nil {
			return fmt.Errorf("mongo couldn't create username index on %s: %w", coll.Name(), err)
		}
	}
	return nil
}

func byUsername(username string) bson.D {
	return bson.D{{Key: "username", Value: username}}
}

// ============================================================
// LedgerStore
// ============================================================

func (s *Store) FindByKey(ctx context.Context, username string) (*domain.UserLedger, error) {
	var doc ledgerDoc
	err := s.ledgers.FindOne(ctx, byUsername(username)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, &domain.ErrStore{Op: "find", Err: err}
	}
	return doc.toDomain(), nil
}

func (s *Store) AppendExpense(ctx context.Context, username string, entry domain.ExpenseEntry) (*domain.UserLedger, error) {
	ed, err := toExpenseDoc(entry)
	if err != nil {
		return nil, &domain.ErrStore{Op: "append_expense", Err: err}
	}
	return s.findAndUpdate(ctx, "append_expense", username, bson.D{
		{Key: "$push", Value: bson.D{{Key: "expenses", Value: ed}}},
		{Key: "$set", Value: bson.D{{Key: "updatedAt", Value: s.now().UTC()}}},
	})
}

func (s *Store) AppendCredit(ctx context.Context, username string, entry domain.CreditEntry) (*domain.UserLedger, error) {
	return s.findAndUpdate(ctx, "append_credit", username, bson.D{
		{Key: "$push", Value: bson.D{{Key: "credits", Value: toCreditDoc(entry)}}},
		{Key: "$set", Value: bson.D{{Key: "updatedAt", Value: s.now().UTC()}}},
	})
}

func (s *Store) UpdateProfile(ctx context.Context, username string, profile domain.Profile) (*domain.UserLedger, error) {
	return s.findAndUpdate(ctx, "update_profile", username, bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "profile", Value: toProfileDoc(profile)},
			{Key: "updatedAt", Value: s.now().UTC()},
		}},
	})
}

// findAndUpdate applies update atomically and returns the document after
// the change, or (nil, nil) if no ledger matched.
func (s *Store) findAndUpdate(ctx context.Context, op, username string, update bson.D) (*domain.UserLedger, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc ledgerDoc
	err := s.ledgers.FindOneAndUpdate(ctx, byUsername(username), update, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, &domain.ErrStore{Op: op, Err: err}
	}
	return doc.toDomain(), nil
}

func (s *Store) ReplaceDocument(ctx context.Context, ledger *domain.UserLedger) error {
	doc, err := toLedgerDoc(ledger)
	if err != nil {
		return &domain.ErrStore{Op: "replace", Err: err}
	}

	res, err := s.ledgers.UpdateOne(ctx, byUsername(ledger.Username), bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "profile", Value: doc.Profile},
			{Key: "expenses", Value: doc.Expenses},
			{Key: "credits", Value: doc.Credits},
			{Key: "updatedAt", Value: s.now().UTC()},
		}},
	})
	if err != nil {
		return &domain.ErrStore{Op: "replace", Err: err}
	}
	if res.MatchedCount == 0 {
		return &domain.ErrNotFound{Resource: "ledger", ID: ledger.Username}
	}
	return nil
}

func (s *Store) CreateLedger(ctx context.Context, ledger *domain.UserLedger) error {
	doc, err := toLedgerDoc(ledger)
	if err != nil {
		return &domain.ErrStore{Op: "create_ledger", Err: err}
	}
	if _, err := s.ledgers.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return &domain.ErrConflict{Message: "ledger already exists for " + ledger.Username}
		}
		return &domain.ErrStore{Op: "create_ledger", Err: err}
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.cli.Ping(ctx, readpref.Primary()); err != nil {
		return &domain.ErrStore{Op: "ping", Err: err}
	}
	return nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.cli.Disconnect(ctx)
}

// ============================================================
// AccountStore
// ============================================================

func (s *Store) CreateAccount(ctx context.Context, account *domain.UserAccount) error {
	_, err := s.accounts.InsertOne(ctx, accountDoc{
		Username:     account.Username,
		PasswordHash: account.PasswordHash,
		CreatedAt:    account.CreatedAt.UTC(),
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return &domain.ErrConflict{Message: "username already exists"}
		}
		return &domain.ErrStore{Op: "create_account", Err: err}
	}
	return nil
}

func (s *Store) GetAccount(ctx context.Context, username string) (*domain.UserAccount, error) {
	var doc accountDoc
	err := s.accounts.FindOne(ctx, byUsername(username)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, &domain.ErrStore{Op: "get_account", Err: err}
	}
	return &domain.UserAccount{
		Username:     doc.Username,
		PasswordHash: doc.PasswordHash,
		CreatedAt:    doc.CreatedAt,
	}, nil
}
