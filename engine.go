package clinicauth

import (
	"context"
	"time"

	internalaudit "github.com/apsicologia/clinicauth/internal/audit"
	"github.com/apsicologia/clinicauth/internal/rate"
	"github.com/apsicologia/clinicauth/internal/stores"
	"github.com/apsicologia/clinicauth/logging"
	"github.com/apsicologia/clinicauth/password"
	"github.com/apsicologia/clinicauth/token"
)

// Engine is the authentication core. Build one with [Builder]; afterwards it
// is immutable and safe for concurrent use.
type Engine struct {
	config      Config
	store       AccountStore
	hasher      *password.Hasher
	tokens      *token.Manager
	twoFactor   *twoFactorManager
	enrollments *stores.EnrollmentStore
	limiter     *rate.Limiter
	revocations *revocationList
	audit       *internalaudit.Dispatcher
	metrics     *Metrics
	log         logging.Logger

	// now is the engine's clock. Tests substitute it to walk accounts
	// through lockout windows and TOTP steps.
	now func() time.Time
}

// Identity is the authenticated caller attached to a request after access
// token validation. It carries no credential material.
type Identity struct {
	AccountID   string
	Role        Role
	ClinicianID string
	PatientID   string
}

// ValidateAccess verifies an access token and returns the caller identity.
// Validation is stateless: signature, expiry, issuer and token use only.
func (e *Engine) ValidateAccess(_ context.Context, tokenStr string) (*Identity, error) {
	if e == nil || e.tokens == nil {
		return nil, ErrEngineNotReady
	}

	claims, err := e.tokens.ParseAccess(tokenStr)
	if err != nil {
		return nil, ErrInvalidToken
	}

	return &Identity{
		AccountID:   claims.AccountID(),
		Role:        Role(claims.Role),
		ClinicianID: claims.ClinicianID,
		PatientID:   claims.PatientID,
	}, nil
}

// Close drains and stops the audit dispatcher. Call it when the process
// shuts down; all other engine state needs no teardown.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit events were discarded under buffer
// pressure since the engine was built.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return MetricsSnapshot{}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) emitAudit(ctx context.Context, eventType string, success bool, accountID string, cause error, metadata map[string]string) {
	if e.audit == nil {
		return
	}

	event := internalaudit.Event{
		Timestamp: e.now(),
		EventType: eventType,
		AccountID: accountID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if cause != nil {
		event.Error = cause.Error()
	}

	e.audit.Emit(ctx, event)
}

func (e *Engine) ready() error {
	if e == nil || e.store == nil || e.hasher == nil || e.tokens == nil {
		return ErrEngineNotReady
	}
	return nil
}
