package service_test

import (
	"context"
	"testing"

	"github.com/boddenberg/finledger-go/internal/domain"
	"github.com/boddenberg/finledger-go/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAvatarFor(t *testing.T) {
	assert.Equal(t, "/avatars/male.png", service.AvatarFor(domain.GenderMale))
	assert.Equal(t, "/avatars/female.png", service.AvatarFor(domain.GenderFemale))
	assert.Equal(t, "/avatars/default.png", service.AvatarFor(domain.GenderOther))
	assert.Equal(t, "/avatars/default.png", service.AvatarFor(""))
}

func TestSaveProfile(t *testing.T) {
	f := newFixture(t, "asha")
	ctx := context.Background()

	saved, err := f.profile.SaveProfile(ctx, "asha", domain.ProfileUpdate{
		FullName:      "  Asha Rao ",
		MonthlySalary: floatPtr(55000),
		Gender:        domain.GenderFemale,
		Email:         strPtr("asha@example.com"),
		Currency:      strPtr("INR"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Asha Rao", saved.FullName)
	assert.Equal(t, "asha@example.com", saved.Email)

	// optional fields left out keep their value
	_, err = f.profile.SaveProfile(ctx, "asha", domain.ProfileUpdate{
		FullName: "Asha Rao", MonthlySalary: floatPtr(60000), Gender: domain.GenderFemale,
	})
	require.NoError(t, err)

	view, err := f.profile.GetProfile(ctx, "asha")
	require.NoError(t, err)
	assert.Equal(t, "asha@example.com", view.Email)
	assert.Equal(t, "INR", view.Currency)
	assert.Equal(t, "/avatars/female.png", view.AvatarURL)

	salary, err := f.profile.GetSalary(ctx, "asha")
	require.NoError(t, err)
	assert.Equal(t, 60000.0, salary)

	assert.Equal(t, []domain.LedgerEventKind{domain.EventProfileUpdated, domain.EventProfileUpdated}, f.publisher.kinds())
}

func TestSaveProfile_Validation(t *testing.T) {
	f := newFixture(t, "asha")

	cases := map[string]struct {
		in    domain.ProfileUpdate
		field string
	}{
		"missing name":   {domain.ProfileUpdate{MonthlySalary: floatPtr(1), Gender: domain.GenderMale}, "fullName"},
		"missing salary": {domain.ProfileUpdate{FullName: "A", Gender: domain.GenderMale}, "monthlySalary"},
		"zero salary":    {domain.ProfileUpdate{FullName: "A", MonthlySalary: floatPtr(0), Gender: domain.GenderMale}, "monthlySalary"},
		"missing gender": {domain.ProfileUpdate{FullName: "A", MonthlySalary: floatPtr(1)}, "gender"},
		"unknown gender": {domain.ProfileUpdate{FullName: "A", MonthlySalary: floatPtr(1), Gender: "robot"}, "gender"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.profile.SaveProfile(context.Background(), "asha", tc.in)
			var validation *domain.ErrValidation
			require.ErrorAs(t, err, &validation)
			assert.Equal(t, tc.field, validation.Field)
		})
	}
}

func TestGetProfile_NewLedgerDefaults(t *testing.T) {
	f := newFixture(t, "asha")

	view, err := f.profile.GetProfile(context.Background(), "asha")
	require.NoError(t, err)
	assert.Equal(t, domain.GenderOther, view.Gender)
	assert.Equal(t, "/avatars/default.png", view.AvatarURL)

	_, err = f.profile.GetProfile(context.Background(), "ghost")
	var notFound *domain.ErrNotFound
	assert.ErrorAs(t, err, &notFound)
}
