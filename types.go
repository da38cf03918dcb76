package clinicauth

import (
	"context"
	"time"
)

// Role is one of the fixed set of account roles used by the clinic platform.
type Role string

const (
	// RoleAdmin is the administrator role.
	RoleAdmin Role = "admin"
	// RoleClinician is the treating-professional role.
	RoleClinician Role = "clinician"
	// RoleReceptionist is the front-desk role.
	RoleReceptionist Role = "receptionist"
	// RolePatient is the self-service patient role.
	RolePatient Role = "patient"
)

// Valid reports whether r belongs to the closed role set.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleClinician, RoleReceptionist, RolePatient:
		return true
	}
	return false
}

// Staff reports whether r is a staff role. Staff accounts are created by an
// administrator, never through self-registration.
func (r Role) Staff() bool {
	return r == RoleAdmin || r == RoleClinician || r == RoleReceptionist
}

// Account is the full authenticable identity record as held by the
// [AccountStore]. It carries credential material and is never returned to
// API callers; the boundary uses [Profile] instead.
type Account struct {
	ID           string
	Email        string
	Name         string
	Role         Role
	PasswordHash string

	Active    bool
	DeletedAt *time.Time

	// Role-scoped linkage to the clinical domain.
	ClinicianID string
	PatientID   string

	EmailVerified         bool
	VerificationTokenHash []byte
	VerificationExpires   *time.Time

	ResetTokenHash []byte
	ResetExpires   *time.Time

	// Two-factor sub-state. Secret is present if and only if Enabled is set;
	// pending (unconfirmed) enrollments never touch the account record.
	TwoFactorEnabled  bool
	TwoFactorSecret   []byte
	TwoFactorLastStep int64

	// Lockout sub-state, mutated only through the atomic store operations.
	FailedLoginCount int
	LockedUntil      *time.Time

	LastLoginAt *time.Time
	LastLoginIP string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Usable reports whether the account may authenticate at all: active and not
// soft-deleted. Lockout is a separate, temporary condition.
func (a *Account) Usable() bool {
	return a.Active && a.DeletedAt == nil
}

// Profile is the public projection of an [Account]. It is constructed
// deliberately at the boundary and simply does not contain credential
// material, so no field-stripping step can ever be forgotten.
type Profile struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	Name             string     `json:"name"`
	Role             Role       `json:"role"`
	ClinicianID      string     `json:"clinicianId,omitempty"`
	PatientID        string     `json:"patientId,omitempty"`
	EmailVerified    bool       `json:"emailVerified"`
	TwoFactorEnabled bool       `json:"twoFactorEnabled"`
	LastLoginAt      *time.Time `json:"lastLoginAt,omitempty"`
}

// NewProfile builds the public projection of an account.
func NewProfile(a *Account) Profile {
	return Profile{
		ID:               a.ID,
		Email:            a.Email,
		Name:             a.Name,
		Role:             a.Role,
		ClinicianID:      a.ClinicianID,
		PatientID:        a.PatientID,
		EmailVerified:    a.EmailVerified,
		TwoFactorEnabled: a.TwoFactorEnabled,
		LastLoginAt:      a.LastLoginAt,
	}
}

// Credentials is the login input. Exactly one of TOTPCode or BackupCode may
// be supplied when two-factor is enabled on the account.
type Credentials struct {
	Email      string
	Password   string
	TOTPCode   string
	BackupCode string
}

// LoginResult is returned by [Engine.Authenticate] on success.
type LoginResult struct {
	AccessToken  string
	RefreshToken string
	Profile      Profile
}

// RegisterInput is the input for [Engine.Register] and [Engine.CreateStaff].
type RegisterInput struct {
	Email       string
	Name        string
	Password    string
	Role        Role
	ClinicianID string
	PatientID   string
}

// TwoFactorEnrollment is returned by [Engine.EnrollTwoFactor]. The secret and
// backup codes are shown to the caller exactly once; only their hashes are
// ever persisted, and only after [Engine.ConfirmTwoFactor] succeeds.
type TwoFactorEnrollment struct {
	SecretBase32    string
	ProvisioningURI string
	BackupCodes     []string
}

// AccountStore is the persistence contract the engine is built on. Every
// implementation must surface duplicate emails as [ErrDuplicateEmail], missing
// accounts as [ErrAccountNotFound], and transient failures wrapped in
// [ErrStoreUnavailable].
//
// RecordLoginFailure is the one operation with a correctness obligation beyond
// plain CRUD: it must apply the lockout transition atomically (see lockout.go)
// so that concurrent failed attempts cannot undercount.
type AccountStore interface {
	Create(ctx context.Context, a *Account) error
	GetByEmail(ctx context.Context, email string) (*Account, error)
	GetByID(ctx context.Context, id string) (*Account, error)

	UpdatePasswordHash(ctx context.Context, id, hash string) error

	// RecordLoginFailure applies one failed-attempt transition and returns the
	// resulting counter and lock deadline (nil when unlocked).
	RecordLoginFailure(ctx context.Context, id string, now time.Time) (int, *time.Time, error)
	// RecordLoginSuccess resets the failure counter, clears any lock, and
	// records the login timestamp and origin address.
	RecordLoginSuccess(ctx context.Context, id string, at time.Time, origin string) error

	EnableTwoFactor(ctx context.Context, id string, secret []byte, codeHashes [][32]byte) error
	DisableTwoFactor(ctx context.Context, id string) error
	UpdateTwoFactorStep(ctx context.Context, id string, step int64) error
	// ConsumeBackupCode removes the matching backup code and reports whether
	// it existed. A consumed code can never match again.
	ConsumeBackupCode(ctx context.Context, id string, codeHash [32]byte) (bool, error)
	ReplaceBackupCodes(ctx context.Context, id string, codeHashes [][32]byte) error

	SetActive(ctx context.Context, id string, active bool) error
	SoftDelete(ctx context.Context, id string, at time.Time) error

	SetResetToken(ctx context.Context, id string, tokenHash [32]byte, expires time.Time) error
	// ConsumeResetToken clears the matching, unexpired reset token and returns
	// the owning account. Single use by construction.
	ConsumeResetToken(ctx context.Context, tokenHash [32]byte, now time.Time) (*Account, error)

	SetVerificationToken(ctx context.Context, id string, tokenHash [32]byte, expires time.Time) error
	// ConsumeVerificationToken marks the owning account verified and clears
	// the token.
	ConsumeVerificationToken(ctx context.Context, tokenHash [32]byte, now time.Time) (*Account, error)
}
