package clinicauth

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/apsicologia/clinicauth/internal"
)

// passwordMinLength is the floor for new passwords. bcrypt caps input at 72
// bytes, which validatePassword also enforces.
const passwordMinLength = 8

// RegistrationResult is returned by [Engine.Register] and
// [Engine.CreateStaff]. The verification token is handed to the delivery
// layer exactly once; only its hash is stored.
type RegistrationResult struct {
	Profile           Profile
	VerificationToken string
}

// Register creates a self-service patient account. Self-registration never
// grants a staff role: an empty role defaults to patient and anything else
// is rejected.
func (e *Engine) Register(ctx context.Context, in RegisterInput) (*RegistrationResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	if in.Role == "" {
		in.Role = RolePatient
	}
	if in.Role != RolePatient {
		return nil, ErrRoleInvalid
	}

	return e.createAccount(ctx, in)
}

// CreateStaff creates an account with any valid role. It is reachable only
// through the admin surface; the HTTP layer gates it on the admin role.
func (e *Engine) CreateStaff(ctx context.Context, in RegisterInput) (*RegistrationResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	if !in.Role.Valid() {
		return nil, ErrRoleInvalid
	}

	return e.createAccount(ctx, in)
}

func (e *Engine) createAccount(ctx context.Context, in RegisterInput) (*RegistrationResult, error) {
	email := normalizeEmail(in.Email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword(in.Password); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}

	hash, err := e.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	now := e.now()
	acct := &Account{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         strings.TrimSpace(in.Name),
		Role:         in.Role,
		PasswordHash: hash,
		Active:       true,
		ClinicianID:  in.ClinicianID,
		PatientID:    in.PatientID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := e.store.Create(ctx, acct); err != nil {
		return nil, err
	}

	verificationToken, tokenHash, err := internal.NewChallengeToken()
	if err != nil {
		return nil, err
	}
	if err := e.store.SetVerificationToken(ctx, acct.ID, tokenHash, now.Add(e.config.Verification.TokenTTL)); err != nil {
		return nil, err
	}

	e.metrics.countRegistration()
	e.emitAudit(ctx, auditEventAccountRegistered, true, acct.ID, nil, map[string]string{
		"role": string(acct.Role),
	})

	return &RegistrationResult{
		Profile:           NewProfile(acct),
		VerificationToken: verificationToken,
	}, nil
}

// GetProfile returns the public projection of an account.
func (e *Engine) GetProfile(ctx context.Context, accountID string) (*Profile, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	acct, err := e.store.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	profile := NewProfile(acct)
	return &profile, nil
}

// ChangePassword re-hashes after proving knowledge of the current password.
func (e *Engine) ChangePassword(ctx context.Context, accountID, currentPassword, newPassword string) error {
	if err := e.ready(); err != nil {
		return err
	}

	acct, err := e.store.GetByID(ctx, accountID)
	if err != nil {
		return err
	}
	if !acct.Usable() {
		return ErrAccountInactive
	}

	if !e.hasher.Verify(currentPassword, acct.PasswordHash) {
		return ErrInvalidCredentials
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	if newPassword == currentPassword {
		return fmt.Errorf("%w: new password must differ from the current one", ErrValidation)
	}

	hash, err := e.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := e.store.UpdatePasswordHash(ctx, acct.ID, hash); err != nil {
		return err
	}

	e.emitAudit(ctx, auditEventPasswordChanged, true, acct.ID, nil, nil)
	return nil
}

// Deactivate suspends an account. Logins and refreshes fail immediately;
// the record and its history stay intact.
func (e *Engine) Deactivate(ctx context.Context, accountID string) error {
	return e.setActive(ctx, accountID, false, auditEventAccountDeactivated)
}

// Reactivate lifts a suspension.
func (e *Engine) Reactivate(ctx context.Context, accountID string) error {
	return e.setActive(ctx, accountID, true, auditEventAccountReactivated)
}

func (e *Engine) setActive(ctx context.Context, accountID string, active bool, eventType string) error {
	if err := e.ready(); err != nil {
		return err
	}

	if err := e.store.SetActive(ctx, accountID, active); err != nil {
		return err
	}

	e.emitAudit(ctx, eventType, true, accountID, nil, nil)
	return nil
}

// SoftDelete marks an account deleted. The email becomes reusable for a new
// registration; the record itself is retained.
func (e *Engine) SoftDelete(ctx context.Context, accountID string) error {
	if err := e.ready(); err != nil {
		return err
	}

	if err := e.store.SoftDelete(ctx, accountID, e.now()); err != nil {
		return err
	}

	e.emitAudit(ctx, auditEventAccountDeleted, true, accountID, nil, nil)
	return nil
}

func validateEmail(email string) error {
	at := strings.IndexByte(email, '@')
	if at <= 0 || at == len(email)-1 || len(email) > 254 {
		return fmt.Errorf("%w: malformed email", ErrValidation)
	}
	if !strings.Contains(email[at+1:], ".") {
		return fmt.Errorf("%w: malformed email", ErrValidation)
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < passwordMinLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrValidation, passwordMinLength)
	}
	if len(password) > 72 {
		return fmt.Errorf("%w: password must be at most 72 bytes", ErrValidation)
	}
	return nil
}
