package service

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/boddenberg/finledger-go/internal/domain"
	"github.com/boddenberg/finledger-go/internal/infra/observability"
	"github.com/boddenberg/finledger-go/internal/port"

	"go.uber.org/zap"
)

// Avatar images served by the frontend, chosen by gender.
const (
	AvatarMale    = "/avatars/male.png"
	AvatarFemale  = "/avatars/female.png"
	AvatarDefault = "/avatars/default.png"
)

// ProfileService reads and writes the profile part of a ledger.
type ProfileService struct {
	store  port.LedgerStore
	logger *zap.Logger
	notify *notifier
}

// NewProfileService creates a new ProfileService. Profile changes invalidate
// cached summaries because savings depend on the salary.
func NewProfileService(
	store port.LedgerStore,
	cache *SummaryCache,
	publisher port.EventPublisher,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *ProfileService {
	return &ProfileService{
		store:  store,
		logger: logger,
		notify: &notifier{cache: cache, publisher: publisher, metrics: metrics, logger: logger},
	}
}

// AvatarFor maps a gender to its avatar URL.
func AvatarFor(gender string) string {
	switch gender {
	case domain.GenderMale:
		return AvatarMale
	case domain.GenderFemale:
		return AvatarFemale
	default:
		return AvatarDefault
	}
}

func (s *ProfileService) load(ctx context.Context, username string) (*domain.UserLedger, error) {
	l, err := s.store.FindByKey(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	if l == nil {
		return nil, &domain.ErrNotFound{Resource: "profile", ID: username}
	}
	return l, nil
}

// GetProfile returns the profile with its avatar.
func (s *ProfileService) GetProfile(ctx context.Context, username string) (*domain.ProfileView, error) {
	ctx, span := tracer.Start(ctx, "ProfileService.GetProfile")
	defer span.End()

	l, err := s.load(ctx, username)
	if err != nil {
		return nil, err
	}
	return &domain.ProfileView{Profile: l.Profile, AvatarURL: AvatarFor(l.Profile.Gender)}, nil
}

// SaveProfile validates and stores a profile update. Optional fields are
// only overwritten when present.
func (s *ProfileService) SaveProfile(ctx context.Context, username string, in domain.ProfileUpdate) (*domain.Profile, error) {
	ctx, span := tracer.Start(ctx, "ProfileService.SaveProfile")
	defer span.End()

	fullName := strings.TrimSpace(in.FullName)
	if fullName == "" {
		return nil, &domain.ErrValidation{Field: "fullName", Message: "full name is required"}
	}
	if in.MonthlySalary == nil {
		return nil, &domain.ErrValidation{Field: "monthlySalary", Message: "monthly salary is required"}
	}
	salary := *in.MonthlySalary
	if math.IsNaN(salary) || math.IsInf(salary, 0) || salary <= 0 {
		return nil, &domain.ErrValidation{Field: "monthlySalary", Message: "monthly salary must be a positive number"}
	}
	switch in.Gender {
	case domain.GenderMale, domain.GenderFemale, domain.GenderOther:
	case "":
		return nil, &domain.ErrValidation{Field: "gender", Message: "gender is required"}
	default:
		return nil, &domain.ErrValidation{Field: "gender", Message: "gender must be Male, Female or Other"}
	}

	l, err := s.load(ctx, username)
	if err != nil {
		return nil, err
	}

	p := l.Profile
	p.FullName = fullName
	p.MonthlySalary = salary
	p.Gender = in.Gender
	mergeString(&p.Email, in.Email)
	mergeString(&p.Phone, in.Phone)
	mergeString(&p.DOB, in.DOB)
	mergeString(&p.Address, in.Address)
	mergeString(&p.Bio, in.Bio)
	mergeString(&p.Currency, in.Currency)

	updated, err := s.store.UpdateProfile(ctx, username, p)
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	if updated == nil {
		return nil, &domain.ErrNotFound{Resource: "profile", ID: username}
	}

	s.logger.Info("profile saved", zap.String("username", username))
	s.notify.changed(ctx, username, domain.EventProfileUpdated, "")
	return &updated.Profile, nil
}

// GetSalary returns the monthly base salary.
func (s *ProfileService) GetSalary(ctx context.Context, username string) (float64, error) {
	ctx, span := tracer.Start(ctx, "ProfileService.GetSalary")
	defer span.End()

	l, err := s.load(ctx, username)
	if err != nil {
		return 0, err
	}
	return l.Profile.MonthlySalary, nil
}

func mergeString(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}
