package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/boddenberg/finledger-go/internal/domain"
	"github.com/boddenberg/finledger-go/internal/infra/observability"
	"github.com/boddenberg/finledger-go/internal/ledger"
	"github.com/boddenberg/finledger-go/internal/port"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// SuggestionService asks the language model for spending advice based on
// what is left of the user's funds.
type SuggestionService struct {
	store     port.LedgerStore
	generator port.SuggestionGenerator
	metrics   *observability.Metrics
	logger    *zap.Logger
}

// NewSuggestionService creates a new SuggestionService.
func NewSuggestionService(store port.LedgerStore, generator port.SuggestionGenerator, metrics *observability.Metrics, logger *zap.Logger) *SuggestionService {
	return &SuggestionService{store: store, generator: generator, metrics: metrics, logger: logger}
}

// FallbackAnswer is returned when the model produced no text.
func FallbackAnswer(name string) string {
	return name + ", FinBot couldn't generate suggestions right now."
}

// Suggest returns personalised suggestions in the requested language
// (English unless "hi" is asked for).
func (s *SuggestionService) Suggest(ctx context.Context, username, language string) (*domain.Suggestion, error) {
	ctx, span := tracer.Start(ctx, "SuggestionService.Suggest")
	defer span.End()

	if language != domain.LanguageHindi {
		language = domain.LanguageEnglish
	}
	span.SetAttributes(attribute.String("username", username), attribute.String("language", language))

	l, err := s.store.FindByKey(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	if l == nil {
		return nil, &domain.ErrNotFound{Resource: "ledger", ID: username}
	}

	savings, err := ledger.LedgerSavings(l)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(l.Profile.FullName)
	if name == "" {
		name = username
	}

	out, err := s.generator.Generate(ctx, &domain.SuggestionRequest{
		Balance:  savings.Remaining,
		Name:     name,
		Gender:   l.Profile.Gender,
		Language: language,
	})
	if err != nil {
		s.metrics.IncrSuggestion("error")
		s.logger.Error("suggestion generation failed", zap.String("username", username), zap.Error(err))
		return nil, fmt.Errorf("generate suggestions: %w", err)
	}

	if strings.TrimSpace(out.Answer) == "" {
		s.metrics.IncrSuggestion("fallback")
		return &domain.Suggestion{
			Answer:   FallbackAnswer(name),
			Balance:  savings.Remaining,
			Language: language,
			Fallback: true,
		}, nil
	}

	s.metrics.IncrSuggestion("success")
	out.Balance = savings.Remaining
	out.Language = language
	return out, nil
}
