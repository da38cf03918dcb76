package clinicauth

import "context"

// RegenerateBackupCodes discards every remaining backup code and issues a
// fresh set. It demands a live TOTP proof, not just a session, because the
// codes are themselves a bypass for the authenticator.
func (e *Engine) RegenerateBackupCodes(ctx context.Context, accountID, totpCode string) ([]string, error) {
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
	if !acct.TwoFactorEnabled {
		return nil, ErrTwoFactorNotEnrolled
	}

	ok, step, err := e.twoFactor.VerifyCode(acct.TwoFactorSecret, totpCode, e.now())
	if err != nil {
		return nil, err
	}
	if !ok || step <= acct.TwoFactorLastStep {
		return nil, e.recordTwoFactorFailure(ctx, acct, ErrTwoFactorInvalid)
	}
	if err := e.store.UpdateTwoFactorStep(ctx, acct.ID, step); err != nil {
		return nil, err
	}

	codes, hashes, err := e.twoFactor.GenerateBackupCodes()
	if err != nil {
		return nil, err
	}
	if err := e.store.ReplaceBackupCodes(ctx, acct.ID, hashes); err != nil {
		return nil, err
	}

	e.emitAudit(ctx, auditEventBackupCodesRegenerated, true, acct.ID, nil, nil)
	return codes, nil
}
