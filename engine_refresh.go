package clinicauth

import (
	"context"
	"errors"
	"time"
)

// Refresh exchanges a valid refresh token for a fresh access token. The
// account is re-loaded so deactivation, deletion, lockout, and role changes
// take effect on the next refresh rather than at natural token expiry.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (string, error) {
	if err := e.ready(); err != nil {
		return "", err
	}

	claims, err := e.tokens.ParseRefresh(refreshToken)
	if err != nil {
		e.metrics.countRefreshFailure()
		e.emitAudit(ctx, auditEventRefreshFailure, false, "", ErrInvalidToken, map[string]string{
			"reason": "parse_failed",
		})
		return "", ErrInvalidToken
	}

	revoked, err := e.revocations.IsRevoked(ctx, claims.ID)
	if err != nil {
		e.metrics.countRefreshFailure()
		return "", err
	}
	if revoked {
		e.metrics.countRefreshFailure()
		e.emitAudit(ctx, auditEventRefreshFailure, false, claims.AccountID(), ErrTokenRevoked, nil)
		return "", ErrTokenRevoked
	}

	acct, err := e.store.GetByID(ctx, claims.AccountID())
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			e.metrics.countRefreshFailure()
			e.emitAudit(ctx, auditEventRefreshFailure, false, claims.AccountID(), ErrInvalidToken, map[string]string{
				"reason": "account_missing",
			})
			return "", ErrInvalidToken
		}
		return "", err
	}
	if !acct.Usable() {
		e.metrics.countRefreshFailure()
		e.emitAudit(ctx, auditEventRefreshFailure, false, acct.ID, ErrAccountInactive, nil)
		return "", ErrAccountInactive
	}

	// A locked account must not keep minting access tokens from an earlier
	// session; the lock bounds token issuance until it expires.
	lock := LockState{FailedCount: acct.FailedLoginCount, LockedUntil: acct.LockedUntil}
	if lock.Locked(e.now()) {
		e.metrics.countRefreshFailure()
		e.metrics.countLockoutRejected()
		e.emitAudit(ctx, auditEventRefreshFailure, false, acct.ID, ErrAccountLocked, nil)
		return "", ErrAccountLocked
	}

	// Role and linkage come from the account record, not the old claims.
	access, err := e.tokens.IssueAccess(acct.ID, string(acct.Role), acct.ClinicianID, acct.PatientID)
	if err != nil {
		return "", err
	}

	e.metrics.countRefreshSuccess()
	e.emitAudit(ctx, auditEventRefreshSuccess, true, acct.ID, nil, nil)

	return access, nil
}

// Logout revokes a refresh token by placing its jti on the denylist for its
// remaining lifetime. Outstanding access tokens keep working until they
// expire, which is at most the access TTL.
func (e *Engine) Logout(ctx context.Context, refreshToken string) error {
	if err := e.ready(); err != nil {
		return err
	}

	claims, err := e.tokens.ParseRefresh(refreshToken)
	if err != nil {
		return ErrInvalidToken
	}

	var remaining time.Duration
	if claims.ExpiresAt != nil {
		remaining = claims.ExpiresAt.Time.Sub(e.now())
	}
	if err := e.revocations.Revoke(ctx, claims.ID, remaining); err != nil {
		return err
	}

	e.metrics.countTokenRevoked()
	e.emitAudit(ctx, auditEventLogout, true, claims.AccountID(), nil, nil)
	return nil
}
