package clinicauth

import (
	"context"
	"fmt"

	"github.com/apsicologia/clinicauth/internal"
)

// RequestEmailVerification issues a fresh verification token, replacing any
// outstanding one. The return value goes to the delivery channel; only its
// hash is stored.
func (e *Engine) RequestEmailVerification(ctx context.Context, accountID string) (string, error) {
	if err := e.ready(); err != nil {
		return "", err
	}

	acct, err := e.store.GetByID(ctx, accountID)
	if err != nil {
		return "", err
	}
	if !acct.Usable() {
		return "", ErrAccountInactive
	}
	if acct.EmailVerified {
		return "", fmt.Errorf("%w: email already verified", ErrValidation)
	}

	verificationToken, tokenHash, err := internal.NewChallengeToken()
	if err != nil {
		return "", err
	}
	if err := e.store.SetVerificationToken(ctx, acct.ID, tokenHash, e.now().Add(e.config.Verification.TokenTTL)); err != nil {
		return "", err
	}

	e.emitAudit(ctx, auditEventVerificationRequested, true, acct.ID, nil, nil)
	return verificationToken, nil
}

// ConfirmEmailVerification consumes a verification token and marks the
// owning account verified.
func (e *Engine) ConfirmEmailVerification(ctx context.Context, verificationToken string) error {
	if err := e.ready(); err != nil {
		return err
	}

	acct, err := e.store.ConsumeVerificationToken(ctx, internal.HashChallengeToken(verificationToken), e.now())
	if err != nil {
		return err
	}

	e.emitAudit(ctx, auditEventEmailVerified, true, acct.ID, nil, nil)
	return nil
}
