// Package storetest holds the behavioural contract every record store
// backend must satisfy. Backends embed LedgerStoreSuite in their own tests.
package storetest

import (
	"context"
	"sync"
	"time"

	"github.com/boddenberg/finledger-go/internal/domain"
	"github.com/boddenberg/finledger-go/internal/port"

	"github.com/stretchr/testify/suite"
)

// Store is what a backend under test must provide.
type Store interface {
	port.LedgerStore
	port.AccountStore
}

// LedgerStoreSuite runs the contract against a fresh store per test.
type LedgerStoreSuite struct {
	suite.Suite

	// NewStore builds an empty store. Called from SetupTest.
	NewStore func() Store

	ctx   context.Context
	store Store
}

func (s *LedgerStoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = s.NewStore()
}

func (s *LedgerStoreSuite) TearDownTest() {
	s.NoError(s.store.Close(s.ctx))
}

func (s *LedgerStoreSuite) seed(username string) {
	s.Require().NoError(s.store.CreateLedger(s.ctx, domain.NewUserLedger(username, time.Now().UTC())))
}

func (s *LedgerStoreSuite) TestFindMissing() {
	l, err := s.store.FindByKey(s.ctx, "ghost")
	s.NoError(err)
	s.Nil(l)
}

func (s *LedgerStoreSuite) TestCreateAndFind() {
	s.seed("asha")

	l, err := s.store.FindByKey(s.ctx, "asha")
	s.Require().NoError(err)
	s.Require().NotNil(l)
	s.Equal("asha", l.Username)
	s.Equal(domain.GenderOther, l.Profile.Gender)
	s.Empty(l.Expenses)
	s.Empty(l.Credits)
}

func (s *LedgerStoreSuite) TestCreateDuplicateLedger() {
	s.seed("asha")
	err := s.store.CreateLedger(s.ctx, domain.NewUserLedger("asha", time.Now()))
	var conflict *domain.ErrConflict
	s.ErrorAs(err, &conflict)
}

func (s *LedgerStoreSuite) TestAppendExpenseAssignsID() {
	s.seed("asha")

	l, err := s.store.AppendExpense(s.ctx, "asha", domain.ExpenseEntry{
		Amount: 250, Date: "2024-03-05", Category: "Food", Description: "Zomato order",
	})
	s.Require().NoError(err)
	s.Require().Len(l.Expenses, 1)
	s.NotEmpty(l.Expenses[0].ID)
	s.Equal(float64(250), l.Expenses[0].Amount)
	s.Equal("Food", l.Expenses[0].Category)

	l, err = s.store.AppendExpense(s.ctx, "asha", domain.ExpenseEntry{Amount: 10, Description: "tea"})
	s.Require().NoError(err)
	s.Require().Len(l.Expenses, 2)
	s.NotEqual(l.Expenses[0].ID, l.Expenses[1].ID)
	s.Equal("tea", l.Expenses[1].Description)
}

func (s *LedgerStoreSuite) TestAppendToMissingLedger() {
	l, err := s.store.AppendExpense(s.ctx, "ghost", domain.ExpenseEntry{Amount: 1})
	s.NoError(err)
	s.Nil(l)

	lc, err := s.store.AppendCredit(s.ctx, "ghost", domain.CreditEntry{Amount: 1})
	s.NoError(err)
	s.Nil(lc)
}

func (s *LedgerStoreSuite) TestAppendCredit() {
	s.seed("asha")

	l, err := s.store.AppendCredit(s.ctx, "asha", domain.CreditEntry{
		Amount: 500, Date: "2024-03-05T10:00:00.000Z", Source: "Manual Add",
	})
	s.Require().NoError(err)
	s.Require().Len(l.Credits, 1)
	s.Equal(domain.CreditEntry{Amount: 500, Date: "2024-03-05T10:00:00.000Z", Source: "Manual Add"}, l.Credits[0])
}

func (s *LedgerStoreSuite) TestConcurrentAppendsAreNotLost() {
	s.seed("asha")

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.store.AppendExpense(s.ctx, "asha", domain.ExpenseEntry{Amount: 1, Description: "x"})
			s.NoError(err)
		}()
	}
	wg.Wait()

	l, err := s.store.FindByKey(s.ctx, "asha")
	s.Require().NoError(err)
	s.Len(l.Expenses, n)
}

func (s *LedgerStoreSuite) TestReplaceDocument() {
	s.seed("asha")
	l, err := s.store.AppendExpense(s.ctx, "asha", domain.ExpenseEntry{Amount: 1, Description: "a"})
	s.Require().NoError(err)
	l, err = s.store.AppendExpense(s.ctx, "asha", domain.ExpenseEntry{Amount: 2, Description: "b"})
	s.Require().NoError(err)

	l.Expenses = l.Expenses[1:]
	l.Expenses[0].Amount = 20
	s.Require().NoError(s.store.ReplaceDocument(s.ctx, l))

	got, err := s.store.FindByKey(s.ctx, "asha")
	s.Require().NoError(err)
	s.Require().Len(got.Expenses, 1)
	s.Equal("b", got.Expenses[0].Description)
	s.Equal(float64(20), got.Expenses[0].Amount)
	s.Equal(l.Expenses[0].ID, got.Expenses[0].ID)
}

func (s *LedgerStoreSuite) TestReturnedLedgerIsACopy() {
	s.seed("asha")
	l, err := s.store.AppendExpense(s.ctx, "asha", domain.ExpenseEntry{Amount: 1})
	s.Require().NoError(err)

	l.Expenses[0].Amount = 999
	l.Expenses = append(l.Expenses, domain.ExpenseEntry{Amount: 5})

	got, err := s.store.FindByKey(s.ctx, "asha")
	s.Require().NoError(err)
	s.Require().Len(got.Expenses, 1)
	s.Equal(float64(1), got.Expenses[0].Amount)
}

func (s *LedgerStoreSuite) TestUpdateProfile() {
	s.seed("asha")

	l, err := s.store.UpdateProfile(s.ctx, "asha", domain.Profile{
		FullName: "Asha Rao", MonthlySalary: 50000, Gender: domain.GenderFemale, Currency: "INR",
	})
	s.Require().NoError(err)
	s.Equal("Asha Rao", l.Profile.FullName)

	got, err := s.store.FindByKey(s.ctx, "asha")
	s.Require().NoError(err)
	s.Equal(float64(50000), got.Profile.MonthlySalary)
	s.Equal("INR", got.Profile.Currency)

	missing, err := s.store.UpdateProfile(s.ctx, "ghost", domain.Profile{})
	s.NoError(err)
	s.Nil(missing)
}

func (s *LedgerStoreSuite) TestAccounts() {
	acc := &domain.UserAccount{Username: "asha", PasswordHash: "$2a$hash", CreatedAt: time.Now().UTC()}
	s.Require().NoError(s.store.CreateAccount(s.ctx, acc))

	got, err := s.store.GetAccount(s.ctx, "asha")
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.Equal("$2a$hash", got.PasswordHash)

	err = s.store.CreateAccount(s.ctx, &domain.UserAccount{Username: "asha", PasswordHash: "x"})
	var conflict *domain.ErrConflict
	s.ErrorAs(err, &conflict)

	missing, err := s.store.GetAccount(s.ctx, "ghost")
	s.NoError(err)
	s.Nil(missing)
}

func (s *LedgerStoreSuite) TestPing() {
	s.NoError(s.store.Ping(s.ctx))
}
