package clinicauth

import "errors"

var (
	// ErrInvalidCredentials is returned when the email/password pair does not
	// match. It never distinguishes an unknown email from a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked is returned while the lockout window is active. The
	// lock state is revealed deliberately so the user knows to wait.
	ErrAccountLocked = errors.New("account locked")
	// ErrAccountInactive is returned for deactivated or soft-deleted accounts.
	ErrAccountInactive = errors.New("account inactive")
	// ErrAccountNotFound is returned by account-management operations when the
	// referenced account does not exist.
	ErrAccountNotFound = errors.New("account not found")
	// ErrTwoFactorRequired is returned when the password is valid but a second
	// factor is enabled and no valid code or backup code was supplied.
	ErrTwoFactorRequired = errors.New("two-factor code required")
	// ErrTwoFactorInvalid is returned for a malformed or non-matching TOTP code.
	ErrTwoFactorInvalid = errors.New("invalid two-factor code")
	// ErrTwoFactorNotEnrolled is returned when a 2FA operation requires an
	// active enrollment and none exists.
	ErrTwoFactorNotEnrolled = errors.New("two-factor not enrolled")
	// ErrEnrollmentNotFound is returned when confirming a 2FA enrollment that
	// was never started or has expired.
	ErrEnrollmentNotFound = errors.New("two-factor enrollment not found")
	// ErrBackupCodeInvalid is returned for an unknown or already-consumed
	// backup code.
	ErrBackupCodeInvalid = errors.New("invalid backup code")
	// ErrInvalidToken is returned for malformed, expired, or wrongly signed
	// access or refresh tokens. The cause is never distinguished to callers.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenRevoked is returned when a refresh token has been revoked by
	// logout before its natural expiry.
	ErrTokenRevoked = errors.New("token revoked")
	// ErrValidation is returned for malformed input shapes.
	ErrValidation = errors.New("validation failed")
	// ErrDuplicateEmail is returned on registration conflict with a
	// non-deleted account.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrRoleInvalid is returned when a role outside the closed set is used,
	// or when self-registration attempts a staff role.
	ErrRoleInvalid = errors.New("invalid role")
	// ErrResetInvalid is returned for an unknown, expired, or consumed
	// password-reset token.
	ErrResetInvalid = errors.New("password reset token invalid")
	// ErrVerificationInvalid is returned for an unknown or expired email
	// verification token.
	ErrVerificationInvalid = errors.New("email verification token invalid")
	// ErrRateLimited is returned when the attempt limiter rejects a request
	// before it reaches the credential core.
	ErrRateLimited = errors.New("rate limited")
	// ErrStoreUnavailable wraps transient persistence failures. The core never
	// retries them.
	ErrStoreUnavailable = errors.New("account store unavailable")
	// ErrEngineNotReady is returned when the engine is used before Build or
	// with missing dependencies.
	ErrEngineNotReady = errors.New("engine not initialized")
)
