package clinicauth

import (
	"errors"
	"time"
)

// Config defines the engine configuration. Instances are configured during
// initialization and treated as immutable afterwards.
type Config struct {
	Password     PasswordConfig
	Token        TokenConfig
	TwoFactor    TwoFactorConfig
	Reset        ResetConfig
	Verification VerificationConfig
	RateLimit    RateLimitConfig
	Audit        AuditConfig
	Metrics      MetricsConfig

	// ProductionMode suppresses internal error detail at the HTTP boundary
	// and tightens Validate.
	ProductionMode bool
}

// PasswordConfig controls the bcrypt hasher.
type PasswordConfig struct {
	Cost int
}

// TokenConfig controls JWT issuance. Access and refresh tokens are signed
// with distinct secrets; a token signed with one is never verifiable with
// the other.
type TokenConfig struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
}

// TwoFactorConfig controls TOTP enrollment and verification.
type TwoFactorConfig struct {
	Issuer           string
	Digits           int
	Period           int
	Skew             int
	EnrollmentTTL    time.Duration
	BackupCodeCount  int
	BackupCodeLength int
	// MaxAttempts bounds wrong-code submissions per account per window.
	MaxAttempts   int
	AttemptWindow time.Duration
}

// ResetConfig controls password-reset challenges.
type ResetConfig struct {
	TokenTTL time.Duration
}

// VerificationConfig controls email-verification challenges.
type VerificationConfig struct {
	TokenTTL time.Duration
}

// RateLimitConfig controls the coarse per-address login pre-filter layered in
// front of the credential core. It is independent of the account lockout.
type RateLimitConfig struct {
	LoginMaxAttempts int
	LoginWindow      time.Duration
}

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled bool
}

func defaultConfig() Config {
	return Config{
		Password: PasswordConfig{
			Cost: 12,
		},
		Token: TokenConfig{
			AccessTTL:  15 * time.Minute,
			RefreshTTL: 7 * 24 * time.Hour,
			Issuer:     "apsicologia",
		},
		TwoFactor: TwoFactorConfig{
			Issuer:           "apsicologia",
			Digits:           6,
			Period:           30,
			Skew:             1,
			EnrollmentTTL:    10 * time.Minute,
			BackupCodeCount:  10,
			BackupCodeLength: 10,
			MaxAttempts:      5,
			AttemptWindow:    10 * time.Minute,
		},
		Reset: ResetConfig{
			TokenTTL: time.Hour,
		},
		Verification: VerificationConfig{
			TokenTTL: 24 * time.Hour,
		},
		RateLimit: RateLimitConfig{
			LoginMaxAttempts: 10,
			LoginWindow:      15 * time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.AccessSecret = cloneBytes(cfg.Token.AccessSecret)
	out.Token.RefreshSecret = cloneBytes(cfg.Token.RefreshSecret)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Validate checks the configuration for internal consistency. It is called by
// [Builder.Build]; direct use is only needed when assembling configs
// programmatically.
func (c *Config) Validate() error {
	if c.Password.Cost < 4 || c.Password.Cost > 31 {
		return errors.New("Password Cost must be within bcrypt bounds (4..31)")
	}

	if len(c.Token.AccessSecret) < 32 {
		return errors.New("Token AccessSecret must be at least 32 bytes")
	}
	if len(c.Token.RefreshSecret) < 32 {
		return errors.New("Token RefreshSecret must be at least 32 bytes")
	}
	if string(c.Token.AccessSecret) == string(c.Token.RefreshSecret) {
		return errors.New("Token AccessSecret and RefreshSecret must differ")
	}
	if c.Token.AccessTTL <= 0 {
		return errors.New("Token AccessTTL must be > 0")
	}
	if c.Token.RefreshTTL <= c.Token.AccessTTL {
		return errors.New("Token RefreshTTL must exceed AccessTTL")
	}

	if c.TwoFactor.Issuer == "" {
		return errors.New("TwoFactor Issuer is required")
	}
	if c.TwoFactor.Digits != 6 && c.TwoFactor.Digits != 8 {
		return errors.New("TwoFactor Digits must be 6 or 8")
	}
	if c.TwoFactor.Period < 15 {
		return errors.New("TwoFactor Period must be >= 15 seconds")
	}
	if c.TwoFactor.Skew < 0 {
		return errors.New("TwoFactor Skew must be >= 0")
	}
	if c.TwoFactor.EnrollmentTTL <= 0 {
		return errors.New("TwoFactor EnrollmentTTL must be > 0")
	}
	if c.TwoFactor.BackupCodeCount <= 0 {
		return errors.New("TwoFactor BackupCodeCount must be > 0")
	}
	if c.TwoFactor.BackupCodeLength < 8 {
		return errors.New("TwoFactor BackupCodeLength must be >= 8")
	}
	if c.TwoFactor.MaxAttempts <= 0 || c.TwoFactor.AttemptWindow <= 0 {
		return errors.New("TwoFactor attempt limiter must be configured")
	}

	if c.Reset.TokenTTL <= 0 {
		return errors.New("Reset TokenTTL must be > 0")
	}
	if c.Verification.TokenTTL <= 0 {
		return errors.New("Verification TokenTTL must be > 0")
	}

	if c.RateLimit.LoginMaxAttempts <= 0 || c.RateLimit.LoginWindow <= 0 {
		return errors.New("RateLimit login window must be configured")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	if c.ProductionMode {
		if c.Password.Cost < 12 {
			return errors.New("ProductionMode requires Password Cost >= 12")
		}
		if c.Token.AccessTTL > 15*time.Minute {
			return errors.New("ProductionMode requires Token AccessTTL <= 15m")
		}
		if c.Token.RefreshTTL > 30*24*time.Hour {
			return errors.New("ProductionMode requires Token RefreshTTL <= 30d")
		}
		if c.TwoFactor.Skew > 2 {
			return errors.New("ProductionMode requires TwoFactor Skew <= 2")
		}
	}

	return nil
}
