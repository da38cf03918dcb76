package clinicauth_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apsicologia/clinicauth"
)

func TestPasswordResetRoundTrip(t *testing.T) {
	env := newTestEnv(t, nil)
	env.registerPatient(t)
	ctx := context.Background()

	token, err := env.engine.RequestPasswordReset(ctx, testEmail)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	require.NoError(t, env.engine.ConfirmPasswordReset(ctx, token, "after-reset-pass"))

	env.login(t, clinicauth.Credentials{Email: testEmail, Password: "after-reset-pass"})

	// Single use: the same token cannot reset again.
	err = env.engine.ConfirmPasswordReset(ctx, token, "yet-another-pass")
	assert.ErrorIs(t, err, clinicauth.ErrResetInvalid)
}

func TestPasswordResetUnknownEmailIsSilent(t *testing.T) {
	env := newTestEnv(t, nil)

	token, err := env.engine.RequestPasswordReset(context.Background(), "nobody@example.com")
	assert.NoError(t, err)
	assert.Empty(t, token)
}

func TestPasswordResetTokenExpires(t *testing.T) {
	env := newTestEnv(t, nil)
	env.registerPatient(t)
	ctx := context.Background()

	token, err := env.engine.RequestPasswordReset(ctx, testEmail)
	require.NoError(t, err)

	env.clock.Advance(time.Hour + time.Minute)

	err = env.engine.ConfirmPasswordReset(ctx, token, "after-reset-pass")
	assert.ErrorIs(t, err, clinicauth.ErrResetInvalid)
}

func TestNewResetRequestReplacesOutstandingToken(t *testing.T) {
	env := newTestEnv(t, nil)
	env.registerPatient(t)
	ctx := context.Background()

	first, err := env.engine.RequestPasswordReset(ctx, testEmail)
	require.NoError(t, err)
	second, err := env.engine.RequestPasswordReset(ctx, testEmail)
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	err = env.engine.ConfirmPasswordReset(ctx, first, "after-reset-pass")
	assert.ErrorIs(t, err, clinicauth.ErrResetInvalid)

	require.NoError(t, env.engine.ConfirmPasswordReset(ctx, second, "after-reset-pass"))
}

func TestPasswordResetDoesNotClearLockout(t *testing.T) {
	env := newTestEnv(t, nil)
	env.registerPatient(t)
	ctx := context.Background()

	for i := 0; i < clinicauth.LockoutThreshold; i++ {
		env.loginErr(t, clinicauth.Credentials{Email: testEmail, Password: "wrong"})
	}

	token, err := env.engine.RequestPasswordReset(ctx, testEmail)
	require.NoError(t, err)
	require.NoError(t, env.engine.ConfirmPasswordReset(ctx, token, "after-reset-pass"))

	// The reset proves mailbox control, not an authentication. The lock
	// keeps holding until it expires.
	err = env.loginErr(t, clinicauth.Credentials{Email: testEmail, Password: "after-reset-pass"})
	assert.ErrorIs(t, err, clinicauth.ErrAccountLocked)

	env.clock.Advance(clinicauth.LockoutDuration + time.Minute)
	env.login(t, clinicauth.Credentials{Email: testEmail, Password: "after-reset-pass"})
}

func TestPasswordResetValidatesNewPassword(t *testing.T) {
	env := newTestEnv(t, nil)
	env.registerPatient(t)
	ctx := context.Background()

	token, err := env.engine.RequestPasswordReset(ctx, testEmail)
	require.NoError(t, err)

	err = env.engine.ConfirmPasswordReset(ctx, token, "short")
	assert.ErrorIs(t, err, clinicauth.ErrValidation)

	// Validation ran before the token was consumed, so it is still good.
	require.NoError(t, env.engine.ConfirmPasswordReset(ctx, token, "after-reset-pass"))
}

func TestEmailVerificationRoundTrip(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	result, err := env.engine.Register(ctx, clinicauth.RegisterInput{
		Email:    testEmail,
		Name:     "Ana Patient",
		Password: testPassword,
	})
	require.NoError(t, err)

	require.NoError(t, env.engine.ConfirmEmailVerification(ctx, result.VerificationToken))

	profile, err := env.engine.GetProfile(ctx, result.Profile.ID)
	require.NoError(t, err)
	assert.True(t, profile.EmailVerified)

	// Single use.
	err = env.engine.ConfirmEmailVerification(ctx, result.VerificationToken)
	assert.ErrorIs(t, err, clinicauth.ErrVerificationInvalid)
}

func TestRequestEmailVerificationReplacesToken(t *testing.T) {
	env := newTestEnv(t, nil)
	profile := env.registerPatient(t)
	ctx := context.Background()

	token, err := env.engine.RequestEmailVerification(ctx, profile.ID)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	require.NoError(t, env.engine.ConfirmEmailVerification(ctx, token))

	// Already verified accounts cannot ask again.
	_, err = env.engine.RequestEmailVerification(ctx, profile.ID)
	assert.ErrorIs(t, err, clinicauth.ErrValidation)
}

func TestEmailVerificationTokenExpires(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	result, err := env.engine.Register(ctx, clinicauth.RegisterInput{
		Email:    testEmail,
		Name:     "Ana Patient",
		Password: testPassword,
	})
	require.NoError(t, err)

	env.clock.Advance(24*time.Hour + time.Minute)

	err = env.engine.ConfirmEmailVerification(ctx, result.VerificationToken)
	assert.ErrorIs(t, err, clinicauth.ErrVerificationInvalid)
}
