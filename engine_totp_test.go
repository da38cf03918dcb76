package clinicauth_test

import (
	"context"
	"encoding/base32"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apsicologia/clinicauth"
)

func TestEnrollTwoFactorLeavesAccountUntouched(t *testing.T) {
	env := newTestEnv(t, nil)
	profile := env.registerPatient(t)
	ctx := context.Background()

	enrollment, err := env.engine.EnrollTwoFactor(ctx, profile.ID, testPassword)
	require.NoError(t, err)

	assert.NotEmpty(t, enrollment.SecretBase32)
	assert.Len(t, enrollment.BackupCodes, 10)
	assert.Contains(t, enrollment.ProvisioningURI, "otpauth://totp/")
	assert.Contains(t, enrollment.ProvisioningURI, enrollment.SecretBase32)
	assert.NotContains(t, enrollment.SecretBase32, "=")

	// Until confirmation the account record knows nothing about it.
	acct, err := env.store.GetByID(ctx, profile.ID)
	require.NoError(t, err)
	assert.False(t, acct.TwoFactorEnabled)
	assert.Empty(t, acct.TwoFactorSecret)

	// Password alone still works.
	env.login(t, clinicauth.Credentials{Email: testEmail, Password: testPassword})
}

func TestEnrollTwoFactorRequiresPasswordProof(t *testing.T) {
	env := newTestEnv(t, nil)
	profile := env.registerPatient(t)

	_, err := env.engine.EnrollTwoFactor(context.Background(), profile.ID, "wrong-guess")
	assert.ErrorIs(t, err, clinicauth.ErrInvalidCredentials)
}

func TestConfirmTwoFactorEnables(t *testing.T) {
	env := newTestEnv(t, nil)
	profile := env.registerPatient(t)
	ctx := context.Background()

	enrollment, err := env.engine.EnrollTwoFactor(ctx, profile.ID, testPassword)
	require.NoError(t, err)

	secret, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(enrollment.SecretBase32)
	require.NoError(t, err)

	// A wrong code does not enable anything.
	err = env.engine.ConfirmTwoFactor(ctx, profile.ID, "000000")
	assert.ErrorIs(t, err, clinicauth.ErrTwoFactorInvalid)

	acct, err := env.store.GetByID(ctx, profile.ID)
	require.NoError(t, err)
	assert.False(t, acct.TwoFactorEnabled)

	code := totpCode(secret, env.clock.Now())
	require.NoError(t, env.engine.ConfirmTwoFactor(ctx, profile.ID, code))

	acct, err = env.store.GetByID(ctx, profile.ID)
	require.NoError(t, err)
	assert.True(t, acct.TwoFactorEnabled)
	assert.Equal(t, secret, acct.TwoFactorSecret)

	// The confirming code is burned: it cannot also pass the first login.
	err = env.loginErr(t, clinicauth.Credentials{
		Email:    testEmail,
		Password: testPassword,
		TOTPCode: code,
	})
	assert.ErrorIs(t, err, clinicauth.ErrTwoFactorInvalid)
}

func TestConfirmTwoFactorWithoutEnrollment(t *testing.T) {
	env := newTestEnv(t, nil)
	profile := env.registerPatient(t)

	err := env.engine.ConfirmTwoFactor(context.Background(), profile.ID, "123456")
	assert.ErrorIs(t, err, clinicauth.ErrEnrollmentNotFound)
}

func TestAbandonedEnrollmentExpires(t *testing.T) {
	env := newTestEnv(t, nil)
	profile := env.registerPatient(t)
	ctx := context.Background()

	enrollment, err := env.engine.EnrollTwoFactor(ctx, profile.ID, testPassword)
	require.NoError(t, err)

	secret, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(enrollment.SecretBase32)
	require.NoError(t, err)

	env.redis.FastForward(11 * time.Minute)
	env.clock.Advance(11 * time.Minute)

	err = env.engine.ConfirmTwoFactor(ctx, profile.ID, totpCode(secret, env.clock.Now()))
	assert.ErrorIs(t, err, clinicauth.ErrEnrollmentNotFound)
}

func TestEnrollWhileEnabledRejected(t *testing.T) {
	env := newTestEnv(t, nil)
	profile := env.registerPatient(t)
	env.enrollAndConfirm(t, profile.ID)

	_, err := env.engine.EnrollTwoFactor(context.Background(), profile.ID, testPassword)
	assert.ErrorIs(t, err, clinicauth.ErrValidation)
}

func TestDisableTwoFactor(t *testing.T) {
	env := newTestEnv(t, nil)
	profile := env.registerPatient(t)
	env.enrollAndConfirm(t, profile.ID)
	ctx := context.Background()

	err := env.engine.DisableTwoFactor(ctx, profile.ID, "wrong-guess")
	assert.ErrorIs(t, err, clinicauth.ErrInvalidCredentials)

	require.NoError(t, env.engine.DisableTwoFactor(ctx, profile.ID, testPassword))

	acct, err := env.store.GetByID(ctx, profile.ID)
	require.NoError(t, err)
	assert.False(t, acct.TwoFactorEnabled)
	assert.Empty(t, acct.TwoFactorSecret)
	assert.Zero(t, acct.TwoFactorLastStep)

	// Password alone completes the login again.
	env.login(t, clinicauth.Credentials{Email: testEmail, Password: testPassword})
}

func TestDisableTwoFactorWhenNotEnrolled(t *testing.T) {
	env := newTestEnv(t, nil)
	profile := env.registerPatient(t)

	err := env.engine.DisableTwoFactor(context.Background(), profile.ID, testPassword)
	assert.ErrorIs(t, err, clinicauth.ErrTwoFactorNotEnrolled)
}

func TestRegenerateBackupCodesInvalidatesOldSet(t *testing.T) {
	env := newTestEnv(t, nil)
	profile := env.registerPatient(t)
	secret, oldCodes := env.enrollAndConfirm(t, profile.ID)
	ctx := context.Background()

	// Regeneration demands a live code, not a stale or wrong one.
	_, err := env.engine.RegenerateBackupCodes(ctx, profile.ID, "000000")
	assert.ErrorIs(t, err, clinicauth.ErrTwoFactorInvalid)

	env.clock.Advance(30 * time.Second)
	newCodes, err := env.engine.RegenerateBackupCodes(ctx, profile.ID, totpCode(secret, env.clock.Now()))
	require.NoError(t, err)
	require.Len(t, newCodes, 10)
	assert.NotEqual(t, oldCodes, newCodes)

	err = env.loginErr(t, clinicauth.Credentials{
		Email:      testEmail,
		Password:   testPassword,
		BackupCode: oldCodes[0],
	})
	assert.ErrorIs(t, err, clinicauth.ErrBackupCodeInvalid)

	env.login(t, clinicauth.Credentials{
		Email:      testEmail,
		Password:   testPassword,
		BackupCode: newCodes[0],
	})
}

func TestRegenerateBackupCodesRequiresEnrollment(t *testing.T) {
	env := newTestEnv(t, nil)
	profile := env.registerPatient(t)

	_, err := env.engine.RegenerateBackupCodes(context.Background(), profile.ID, "123456")
	assert.ErrorIs(t, err, clinicauth.ErrTwoFactorNotEnrolled)
}

func TestBackupCodesAreWellFormed(t *testing.T) {
	env := newTestEnv(t, nil)
	profile := env.registerPatient(t)

	enrollment, err := env.engine.EnrollTwoFactor(context.Background(), profile.ID, testPassword)
	require.NoError(t, err)

	seen := make(map[string]struct{}, len(enrollment.BackupCodes))
	for _, code := range enrollment.BackupCodes {
		assert.Len(t, code, 10)
		assert.Equal(t, strings.ToUpper(code), code)
		seen[code] = struct{}{}
	}
	assert.Len(t, seen, len(enrollment.BackupCodes))
}
