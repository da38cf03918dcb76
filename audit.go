package clinicauth

import (
	"io"

	internalaudit "github.com/apsicologia/clinicauth/internal/audit"
)

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the engine's audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes JSON-encoded events to an
// [io.Writer], one object per line.
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// Audit event types emitted by the engine.
const (
	auditEventLoginSuccess           = "login_success"
	auditEventLoginFailure           = "login_failure"
	auditEventLoginLockedOut         = "login_locked_out"
	auditEventLockoutTriggered       = "lockout_triggered"
	auditEventTwoFactorRequired      = "two_factor_required"
	auditEventTwoFactorSuccess       = "two_factor_success"
	auditEventTwoFactorFailure       = "two_factor_failure"
	auditEventTwoFactorEnrollment    = "two_factor_enrollment_started"
	auditEventTwoFactorEnabled       = "two_factor_enabled"
	auditEventTwoFactorDisabled      = "two_factor_disabled"
	auditEventBackupCodeUsed         = "backup_code_used"
	auditEventBackupCodesRegenerated = "backup_codes_regenerated"
	auditEventRefreshSuccess         = "refresh_success"
	auditEventRefreshFailure         = "refresh_failure"
	auditEventLogout                 = "logout"
	auditEventAccountRegistered      = "account_registered"
	auditEventAccountDeactivated     = "account_deactivated"
	auditEventAccountReactivated     = "account_reactivated"
	auditEventAccountDeleted         = "account_deleted"
	auditEventPasswordChanged        = "password_changed"
	auditEventResetRequested         = "password_reset_requested"
	auditEventResetCompleted         = "password_reset_completed"
	auditEventVerificationRequested  = "email_verification_requested"
	auditEventEmailVerified          = "email_verified"
)
