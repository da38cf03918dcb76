package clinicauth_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apsicologia/clinicauth"
)

func TestRegisterDefaultsToPatientRole(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	result, err := env.engine.Register(ctx, clinicauth.RegisterInput{
		Email:    "New.Patient@Example.com",
		Name:     "  New Patient  ",
		Password: testPassword,
	})
	require.NoError(t, err)

	assert.Equal(t, clinicauth.RolePatient, result.Profile.Role)
	assert.Equal(t, "new.patient@example.com", result.Profile.Email)
	assert.Equal(t, "New Patient", result.Profile.Name)
	assert.False(t, result.Profile.EmailVerified)
	assert.NotEmpty(t, result.VerificationToken)
}

func TestRegisterRefusesStaffRoles(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	for _, role := range []clinicauth.Role{
		clinicauth.RoleAdmin,
		clinicauth.RoleClinician,
		clinicauth.RoleReceptionist,
		clinicauth.Role("superuser"),
	} {
		_, err := env.engine.Register(ctx, clinicauth.RegisterInput{
			Email:    "someone@example.com",
			Name:     "Someone",
			Password: testPassword,
			Role:     role,
		})
		assert.ErrorIs(t, err, clinicauth.ErrRoleInvalid, "role %q", role)
	}
}

func TestCreateStaffAcceptsValidRolesOnly(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	result, err := env.engine.CreateStaff(ctx, clinicauth.RegisterInput{
		Email:    "front@example.com",
		Name:     "Front Desk",
		Password: testPassword,
		Role:     clinicauth.RoleReceptionist,
	})
	require.NoError(t, err)
	assert.Equal(t, clinicauth.RoleReceptionist, result.Profile.Role)

	_, err = env.engine.CreateStaff(ctx, clinicauth.RegisterInput{
		Email:    "odd@example.com",
		Name:     "Odd Role",
		Password: testPassword,
		Role:     clinicauth.Role("superuser"),
	})
	assert.ErrorIs(t, err, clinicauth.ErrRoleInvalid)
}

func TestRegisterValidation(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	cases := []struct {
		name  string
		input clinicauth.RegisterInput
	}{
		{"missing at sign", clinicauth.RegisterInput{Email: "nope", Name: "N", Password: testPassword}},
		{"bare domain", clinicauth.RegisterInput{Email: "a@nodot", Name: "N", Password: testPassword}},
		{"blank name", clinicauth.RegisterInput{Email: "a@example.com", Name: "   ", Password: testPassword}},
		{"short password", clinicauth.RegisterInput{Email: "a@example.com", Name: "N", Password: "short"}},
		{"oversized password", clinicauth.RegisterInput{Email: "a@example.com", Name: "N", Password: strings.Repeat("x", 73)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.engine.Register(ctx, tc.input)
			assert.ErrorIs(t, err, clinicauth.ErrValidation)
		})
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	env := newTestEnv(t, nil)
	env.registerPatient(t)

	_, err := env.engine.Register(context.Background(), clinicauth.RegisterInput{
		Email:    strings.ToUpper(testEmail),
		Name:     "Second Claimant",
		Password: testPassword,
	})
	assert.ErrorIs(t, err, clinicauth.ErrDuplicateEmail)
}

func TestSoftDeleteFreesEmailForReuse(t *testing.T) {
	env := newTestEnv(t, nil)
	profile := env.registerPatient(t)
	ctx := context.Background()

	require.NoError(t, env.engine.SoftDelete(ctx, profile.ID))

	result, err := env.engine.Register(ctx, clinicauth.RegisterInput{
		Email:    testEmail,
		Name:     "Returning Patient",
		Password: testPassword,
	})
	require.NoError(t, err)
	assert.NotEqual(t, profile.ID, result.Profile.ID)
}

func TestChangePassword(t *testing.T) {
	env := newTestEnv(t, nil)
	profile := env.registerPatient(t)
	ctx := context.Background()

	err := env.engine.ChangePassword(ctx, profile.ID, "wrong-guess", "fresh-password-1")
	assert.ErrorIs(t, err, clinicauth.ErrInvalidCredentials)

	err = env.engine.ChangePassword(ctx, profile.ID, testPassword, testPassword)
	assert.ErrorIs(t, err, clinicauth.ErrValidation)

	err = env.engine.ChangePassword(ctx, profile.ID, testPassword, "short")
	assert.ErrorIs(t, err, clinicauth.ErrValidation)

	require.NoError(t, env.engine.ChangePassword(ctx, profile.ID, testPassword, "fresh-password-1"))

	errLogin := env.loginErr(t, clinicauth.Credentials{Email: testEmail, Password: testPassword})
	assert.ErrorIs(t, errLogin, clinicauth.ErrInvalidCredentials)
	env.login(t, clinicauth.Credentials{Email: testEmail, Password: "fresh-password-1"})
}

func TestGetProfileOmitsCredentialMaterial(t *testing.T) {
	env := newTestEnv(t, nil)
	profile := env.registerPatient(t)

	got, err := env.engine.GetProfile(context.Background(), profile.ID)
	require.NoError(t, err)
	assert.Equal(t, profile.ID, got.ID)
	assert.Equal(t, testEmail, got.Email)

	_, err = env.engine.GetProfile(context.Background(), "no-such-id")
	assert.ErrorIs(t, err, clinicauth.ErrAccountNotFound)
}
