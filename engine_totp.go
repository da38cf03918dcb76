package clinicauth

import (
	"context"
	"errors"
	"fmt"

	"github.com/apsicologia/clinicauth/internal/stores"
)

// EnrollTwoFactor starts a two-factor enrollment after re-proving the
// password. The generated secret and backup codes are parked in the pending
// store under a TTL; the account record is untouched until
// [Engine.ConfirmTwoFactor] validates a code. An abandoned enrollment
// simply expires.
func (e *Engine) EnrollTwoFactor(ctx context.Context, accountID, currentPassword string) (*TwoFactorEnrollment, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	acct, err := e.store.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if !acct.Usable() {
		return nil, ErrAccountInactive
	}
	if !e.hasher.Verify(currentPassword, acct.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	if acct.TwoFactorEnabled {
		return nil, fmt.Errorf("%w: two-factor already enabled", ErrValidation)
	}

	secret, secretBase32, err := e.twoFactor.GenerateSecret()
	if err != nil {
		return nil, err
	}
	codes, hashes, err := e.twoFactor.GenerateBackupCodes()
	if err != nil {
		return nil, err
	}

	pending := &stores.PendingEnrollment{
		Secret:     secret,
		CodeHashes: make([][]byte, len(hashes)),
	}
	for i, h := range hashes {
		hash := h
		pending.CodeHashes[i] = hash[:]
	}

	if err := e.enrollments.Save(ctx, acct.ID, pending, e.config.TwoFactor.EnrollmentTTL); err != nil {
		return nil, err
	}

	e.emitAudit(ctx, auditEventTwoFactorEnrollment, true, acct.ID, nil, nil)

	return &TwoFactorEnrollment{
		SecretBase32:    secretBase32,
		ProvisioningURI: e.twoFactor.ProvisionURI(secretBase32, acct.Email),
		BackupCodes:     codes,
	}, nil
}

// ConfirmTwoFactor completes a pending enrollment by validating one code
// against the parked secret. Only then does the account record gain the
// secret, the backup-code hashes, and the enabled flag, so the invariant
// that a stored secret implies enabled two-factor holds at every point.
func (e *Engine) ConfirmTwoFactor(ctx context.Context, accountID, code string) error {
	if err := e.ready(); err != nil {
		return err
	}

	acct, err := e.store.GetByID(ctx, accountID)
	if err != nil {
		return err
	}
	if acct.TwoFactorEnabled {
		return fmt.Errorf("%w: two-factor already enabled", ErrValidation)
	}

	pending, err := e.enrollments.Get(ctx, acct.ID)
	if err != nil {
		if errors.Is(err, stores.ErrNotFound) {
			return ErrEnrollmentNotFound
		}
		return err
	}

	ok, step, err := e.twoFactor.VerifyCode(pending.Secret, code, e.now())
	if err != nil {
		return err
	}
	if !ok {
		return e.recordTwoFactorFailure(ctx, acct, ErrTwoFactorInvalid)
	}

	hashes := make([][32]byte, len(pending.CodeHashes))
	for i, h := range pending.CodeHashes {
		copy(hashes[i][:], h)
	}

	if err := e.store.EnableTwoFactor(ctx, acct.ID, pending.Secret, hashes); err != nil {
		return err
	}
	// Burn the confirming step so the same code cannot also pass the first
	// two-factor login.
	if err := e.store.UpdateTwoFactorStep(ctx, acct.ID, step); err != nil {
		return err
	}
	if err := e.enrollments.Delete(ctx, acct.ID); err != nil {
		e.log.Warn(ctx, "pending enrollment cleanup failed", "account", acct.ID)
	}
	if err := e.limiter.ResetTwoFactor(ctx, acct.ID); err != nil {
		e.log.Warn(ctx, "two-factor limiter reset failed", "account", acct.ID)
	}

	e.metrics.countTwoFactorSuccess()
	e.emitAudit(ctx, auditEventTwoFactorEnabled, true, acct.ID, nil, nil)
	return nil
}

// DisableTwoFactor turns two-factor off after re-proving the password. The
// secret and remaining backup codes are discarded.
func (e *Engine) DisableTwoFactor(ctx context.Context, accountID, currentPassword string) error {
	if err := e.ready(); err != nil {
		return err
	}

	acct, err := e.store.GetByID(ctx, accountID)
	if err != nil {
		return err
	}
	if !e.hasher.Verify(currentPassword, acct.PasswordHash) {
		return ErrInvalidCredentials
	}
	if !acct.TwoFactorEnabled {
		return ErrTwoFactorNotEnrolled
	}

	if err := e.store.DisableTwoFactor(ctx, acct.ID); err != nil {
		return err
	}

	e.emitAudit(ctx, auditEventTwoFactorDisabled, true, acct.ID, nil, nil)
	return nil
}
