package clinicauth

import (
	"context"
	"errors"

	"github.com/apsicologia/clinicauth/internal"
)

// RequestPasswordReset issues a single-use reset token for the account
// behind the email. The return value goes to the delivery channel; only its
// hash is stored. An unknown or unusable email returns an empty token and
// no error, so the endpoint cannot be used to probe which emails exist.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	if err := e.ready(); err != nil {
		return "", err
	}

	acct, err := e.store.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return "", nil
		}
		return "", err
	}
	if !acct.Usable() {
		return "", nil
	}

	resetToken, tokenHash, err := internal.NewChallengeToken()
	if err != nil {
		return "", err
	}
	if err := e.store.SetResetToken(ctx, acct.ID, tokenHash, e.now().Add(e.config.Reset.TokenTTL)); err != nil {
		return "", err
	}

	e.emitAudit(ctx, auditEventResetRequested, true, acct.ID, nil, nil)
	return resetToken, nil
}

// ConfirmPasswordReset consumes a reset token and installs the new
// password. The lockout counter is left alone: only a successful
// authentication clears it, and a reset is not one.
func (e *Engine) ConfirmPasswordReset(ctx context.Context, resetToken, newPassword string) error {
	if err := e.ready(); err != nil {
		return err
	}

	if err := validatePassword(newPassword); err != nil {
		return err
	}

	acct, err := e.store.ConsumeResetToken(ctx, internal.HashChallengeToken(resetToken), e.now())
	if err != nil {
		return err
	}
	if !acct.Usable() {
		return ErrAccountInactive
	}

	hash, err := e.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := e.store.UpdatePasswordHash(ctx, acct.ID, hash); err != nil {
		return err
	}

	e.metrics.countPasswordReset()
	e.emitAudit(ctx, auditEventResetCompleted, true, acct.ID, nil, nil)
	return nil
}
