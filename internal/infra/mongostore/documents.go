package mongostore

import (
	"fmt"
	"time"

	"github.com/boddenberg/finledger-go/internal/domain"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ledgerDoc is the shape of a document in the userdata collection.
type ledgerDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Username  string             `bson:"username"`
	Profile   profileDoc         `bson:"profile"`
	Expenses  []expenseDoc       `bson:"expenses"`
	Credits   []creditDoc        `bson:"credits"`
	CreatedAt time.Time          `bson:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt"`
}

type profileDoc struct {
	FullName      string  `bson:"fullName"`
	Email         string  `bson:"email"`
	MonthlySalary float64 `bson:"monthlySalary"`
	Gender        string  `bson:"gender"`
	Phone         string  `bson:"phone"`
	DOB           string  `bson:"dob"`
	Address       string  `bson:"address"`
	Bio           string  `bson:"bio"`
	Currency      string  `bson:"currency,omitempty"`
}

type expenseDoc struct {
	ID            primitive.ObjectID `bson:"_id"`
	Amount        float64            `bson:"amount"`
	Date          string             `bson:"date"`
	Category      string             `bson:"category"`
	Description   string             `bson:"description"`
	PaymentMethod string             `bson:"paymentMethod,omitempty"`
}

type creditDoc struct {
	Amount float64 `bson:"amount"`
	Date   string  `bson:"date"`
	Source string  `bson:"source"`
}

// accountDoc is the shape of a document in the users collection.
type accountDoc struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Username     string             `bson:"username"`
	PasswordHash string             `bson:"passwordHash"`
	CreatedAt    time.Time          `bson:"createdAt"`
}

func toProfileDoc(p domain.Profile) profileDoc {
	return profileDoc(p)
}

func toExpenseDoc(e domain.ExpenseEntry) (expenseDoc, error) {
	id := primitive.NewObjectID()
	if e.ID != "" {
		parsed, err := primitive.ObjectIDFromHex(e.ID)
		if err != nil {
			return expenseDoc{}, fmt.Errorf("expense id %q: %w", e.ID, err)
		}
		id = parsed
	}
	return expenseDoc{
		ID:            id,
		Amount:        e.Amount,
		Date:          e.Date,
		Category:      e.Category,
		Description:   e.Description,
		PaymentMethod: e.PaymentMethod,
	}, nil
}

func toCreditDoc(c domain.CreditEntry) creditDoc {
	return creditDoc(c)
}

func toLedgerDoc(l *domain.UserLedger) (*ledgerDoc, error) {
	doc := &ledgerDoc{
		Username:  l.Username,
		Profile:   toProfileDoc(l.Profile),
		Expenses:  make([]expenseDoc, 0, len(l.Expenses)),
		Credits:   make([]creditDoc, 0, len(l.Credits)),
		CreatedAt: l.CreatedAt,
		UpdatedAt: l.UpdatedAt,
	}
	for _, e := range l.Expenses {
		ed, err := toExpenseDoc(e)
		if err != nil {
			return nil, err
		}
		doc.Expenses = append(doc.Expenses, ed)
	}
	for _, c := range l.Credits {
		doc.Credits = append(doc.Credits, toCreditDoc(c))
	}
	return doc, nil
}

func (d *ledgerDoc) toDomain() *domain.UserLedger {
	l := &domain.UserLedger{
		Username:  d.Username,
		Profile:   domain.Profile(d.Profile),
		Expenses:  make([]domain.ExpenseEntry, 0, len(d.Expenses)),
		Credits:   make([]domain.CreditEntry, 0, len(d.Credits)),
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
	for _, e := range d.Expenses {
		l.Expenses = append(l.Expenses, domain.ExpenseEntry{
			ID:            e.ID.Hex(),
			Amount:        e.Amount,
			Date:          e.Date,
			Category:      e.Category,
			Description:   e.Description,
			PaymentMethod: e.PaymentMethod,
		})
	}
	for _, c := range d.Credits {
		l.Credits = append(l.Credits, domain.CreditEntry(c))
	}
	return l
}
