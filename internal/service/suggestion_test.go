package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/boddenberg/finledger-go/internal/domain"
	"github.com/boddenberg/finledger-go/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubGenerator struct {
	answer string
	err    error
	got    *domain.SuggestionRequest
}

func (g *stubGenerator) Generate(_ context.Context, req *domain.SuggestionRequest) (*domain.Suggestion, error) {
	g.got = req
	if g.err != nil {
		return nil, g.err
	}
	return &domain.Suggestion{Answer: g.answer}, nil
}

func TestSuggest(t *testing.T) {
	f := newFixture(t, "asha")
	ctx := context.Background()

	_, err := f.profile.SaveProfile(ctx, "asha", domain.ProfileUpdate{
		FullName: "Asha Rao", MonthlySalary: floatPtr(1000), Gender: domain.GenderFemale,
	})
	require.NoError(t, err)
	_, err = f.ledger.AddExpense(ctx, "asha", domain.ExpenseInput{Amount: float64(400)})
	require.NoError(t, err)

	gen := &stubGenerator{answer: "Buy a bicycle."}
	svc := service.NewSuggestionService(f.store, gen, f.metrics, zap.NewNop())

	s, err := svc.Suggest(ctx, "asha", "hi")
	require.NoError(t, err)
	assert.Equal(t, "Buy a bicycle.", s.Answer)
	assert.False(t, s.Fallback)
	assert.Equal(t, 600.0, s.Balance)

	assert.Equal(t, &domain.SuggestionRequest{
		Balance: 600, Name: "Asha Rao", Gender: domain.GenderFemale, Language: domain.LanguageHindi,
	}, gen.got)
}

func TestSuggest_FallbackOnEmptyAnswer(t *testing.T) {
	f := newFixture(t, "asha")
	gen := &stubGenerator{answer: "   "}
	svc := service.NewSuggestionService(f.store, gen, f.metrics, zap.NewNop())

	s, err := svc.Suggest(context.Background(), "asha", "fr")
	require.NoError(t, err)
	assert.True(t, s.Fallback)
	assert.Equal(t, "asha, FinBot couldn't generate suggestions right now.", s.Answer)
	assert.Equal(t, domain.LanguageEnglish, gen.got.Language)
	assert.Equal(t, int64(1), f.metrics.Snapshot().Suggestions)
}

func TestSuggest_GeneratorError(t *testing.T) {
	f := newFixture(t, "asha")
	gen := &stubGenerator{err: &domain.ErrExternalService{Service: "llm", Err: errors.New("timeout")}}
	svc := service.NewSuggestionService(f.store, gen, f.metrics, zap.NewNop())

	_, err := svc.Suggest(context.Background(), "asha", "en")
	var ext *domain.ErrExternalService
	assert.ErrorAs(t, err, &ext)
	assert.Equal(t, int64(1), f.metrics.Snapshot().SuggestionErrors)

	_, err = svc.Suggest(context.Background(), "ghost", "en")
	var notFound *domain.ErrNotFound
	assert.ErrorAs(t, err, &notFound)
}
