package clinicauth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/apsicologia/clinicauth/internal/rate"
)

// Authenticate performs a full login: rate limit, lockout guard, password
// verification, second factor when enabled, and token issuance.
//
// Failure ordering is deliberate. A locked account is rejected before the
// password comparison so the response does not depend on whether the guess
// was right. An unknown email and a wrong password both come back as
// [ErrInvalidCredentials].
func (e *Engine) Authenticate(ctx context.Context, creds Credentials) (*LoginResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	ip := clientIPFromContext(ctx)
	email := normalizeEmail(creds.Email)
	if email == "" || creds.Password == "" {
		e.metrics.countLoginFailure()
		return nil, ErrInvalidCredentials
	}

	if err := e.limiter.CheckLogin(ctx, email, ip); err != nil {
		if errors.Is(err, rate.ErrLimited) {
			e.emitAudit(ctx, auditEventLoginFailure, false, "", ErrRateLimited, map[string]string{
				"identifier": email,
				"reason":     "rate_limited",
			})
			return nil, ErrRateLimited
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	acct, err := e.store.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			e.consumeLoginAttempt(ctx, email, ip)
			e.metrics.countLoginFailure()
			e.emitAudit(ctx, auditEventLoginFailure, false, "", ErrInvalidCredentials, map[string]string{
				"identifier": email,
				"reason":     "unknown_account",
			})
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	// Lock guard runs before the password comparison. A locked account
	// learns nothing about whether the guess was right.
	lock := LockState{FailedCount: acct.FailedLoginCount, LockedUntil: acct.LockedUntil}
	if lock.Locked(e.now()) {
		e.metrics.countLockoutRejected()
		e.emitAudit(ctx, auditEventLoginLockedOut, false, acct.ID, ErrAccountLocked, nil)
		return nil, ErrAccountLocked
	}

	if !e.hasher.Verify(creds.Password, acct.PasswordHash) {
		count, lockedUntil, recErr := e.store.RecordLoginFailure(ctx, acct.ID, e.now())
		if recErr != nil {
			return nil, recErr
		}
		if lockedUntil != nil {
			e.metrics.countLockoutTriggered()
			e.emitAudit(ctx, auditEventLockoutTriggered, false, acct.ID, ErrAccountLocked, map[string]string{
				"failed_count": strconv.Itoa(count),
			})
		}
		e.consumeLoginAttempt(ctx, email, ip)
		e.metrics.countLoginFailure()
		e.emitAudit(ctx, auditEventLoginFailure, false, acct.ID, ErrInvalidCredentials, map[string]string{
			"reason": "password_mismatch",
		})
		return nil, ErrInvalidCredentials
	}

	if !acct.Usable() {
		e.metrics.countLoginFailure()
		e.emitAudit(ctx, auditEventLoginFailure, false, acct.ID, ErrAccountInactive, map[string]string{
			"reason": "account_inactive",
		})
		return nil, ErrAccountInactive
	}

	if acct.TwoFactorEnabled {
		if err := e.verifySecondFactor(ctx, acct, creds.TOTPCode, creds.BackupCode); err != nil {
			e.metrics.countLoginFailure()
			return nil, err
		}
	}

	if e.hasher.NeedsUpgrade(acct.PasswordHash) {
		// Upgrade is best-effort and must not block the login.
		if upgraded, hashErr := e.hasher.Hash(creds.Password); hashErr == nil {
			if updErr := e.store.UpdatePasswordHash(ctx, acct.ID, upgraded); updErr != nil {
				e.log.Warn(ctx, "password hash upgrade failed", "account", acct.ID)
			}
		}
	}

	now := e.now()
	if err := e.store.RecordLoginSuccess(ctx, acct.ID, now, ip); err != nil {
		return nil, err
	}
	acct.FailedLoginCount = 0
	acct.LockedUntil = nil
	acct.LastLoginAt = &now
	acct.LastLoginIP = ip

	access, err := e.tokens.IssueAccess(acct.ID, string(acct.Role), acct.ClinicianID, acct.PatientID)
	if err != nil {
		return nil, err
	}
	refresh, err := e.tokens.IssueRefresh(acct.ID, string(acct.Role))
	if err != nil {
		return nil, err
	}

	if err := e.limiter.ResetLogin(ctx, email, ip); err != nil {
		e.log.Warn(ctx, "login limiter reset failed", "account", acct.ID)
	}

	e.metrics.countLoginSuccess()
	e.emitAudit(ctx, auditEventLoginSuccess, true, acct.ID, nil, nil)

	return &LoginResult{
		AccessToken:  access,
		RefreshToken: refresh,
		Profile:      NewProfile(acct),
	}, nil
}

// verifySecondFactor checks the supplied TOTP code or backup code against an
// account with two-factor enabled. Exactly one of the two may be set; an
// empty pair means the caller has not presented a second factor yet.
func (e *Engine) verifySecondFactor(ctx context.Context, acct *Account, totpCode, backupCode string) error {
	switch {
	case backupCode != "":
		consumed, err := e.store.ConsumeBackupCode(ctx, acct.ID, HashBackupCode(backupCode))
		if err != nil {
			return err
		}
		if !consumed {
			return e.recordTwoFactorFailure(ctx, acct, ErrBackupCodeInvalid)
		}

		if err := e.limiter.ResetTwoFactor(ctx, acct.ID); err != nil {
			e.log.Warn(ctx, "two-factor limiter reset failed", "account", acct.ID)
		}
		e.metrics.countBackupCodeUsed()
		e.metrics.countTwoFactorSuccess()
		e.emitAudit(ctx, auditEventBackupCodeUsed, true, acct.ID, nil, nil)
		return nil

	case totpCode != "":
		ok, step, err := e.twoFactor.VerifyCode(acct.TwoFactorSecret, totpCode, e.now())
		if err != nil {
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		// A repeated step means the code was already consumed once; treat
		// the replay the same as a wrong code.
		if !ok || step <= acct.TwoFactorLastStep {
			return e.recordTwoFactorFailure(ctx, acct, ErrTwoFactorInvalid)
		}
		if err := e.store.UpdateTwoFactorStep(ctx, acct.ID, step); err != nil {
			return err
		}

		if err := e.limiter.ResetTwoFactor(ctx, acct.ID); err != nil {
			e.log.Warn(ctx, "two-factor limiter reset failed", "account", acct.ID)
		}
		e.metrics.countTwoFactorSuccess()
		e.emitAudit(ctx, auditEventTwoFactorSuccess, true, acct.ID, nil, nil)
		return nil

	default:
		e.metrics.countTwoFactorRequired()
		e.emitAudit(ctx, auditEventTwoFactorRequired, false, acct.ID, ErrTwoFactorRequired, nil)
		return ErrTwoFactorRequired
	}
}

func (e *Engine) recordTwoFactorFailure(ctx context.Context, acct *Account, cause error) error {
	e.metrics.countTwoFactorFailure()

	exceeded, err := e.limiter.RecordTwoFactorFailure(ctx, acct.ID)
	if err != nil {
		e.log.Warn(ctx, "two-factor limiter unavailable", "account", acct.ID)
	}
	e.emitAudit(ctx, auditEventTwoFactorFailure, false, acct.ID, cause, nil)
	if exceeded {
		return ErrRateLimited
	}
	return cause
}

func (e *Engine) consumeLoginAttempt(ctx context.Context, identifier, ip string) {
	if err := e.limiter.RecordLoginAttempt(ctx, identifier, ip); err != nil {
		e.log.Warn(ctx, "login limiter unavailable", "identifier", identifier)
	}
}

// normalizeEmail lowercases and trims an email so lookups and uniqueness are
// case-insensitive.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
