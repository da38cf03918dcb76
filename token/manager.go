package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token use discriminators embedded in the "use" claim.
const (
	UseAccess  = "access"
	UseRefresh = "refresh"
)

// ErrInvalidToken covers every verification failure: bad signature, expiry,
// malformed input, or a token of the wrong use. Callers never learn which.
var ErrInvalidToken = errors.New("invalid token")

// Config controls token issuance. Access and refresh secrets must differ.
type Config struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	Leeway        time.Duration
}

// Claims is the payload carried by both token kinds. The account identifier
// travels in the registered subject; the role and role-scoped linkage
// identifiers are custom claims. Credential material never appears here.
type Claims struct {
	Role        string `json:"role"`
	ClinicianID string `json:"cid,omitempty"`
	PatientID   string `json:"pid,omitempty"`
	Use         string `json:"use"`
	jwt.RegisteredClaims
}

// AccountID returns the subject claim.
func (c *Claims) AccountID() string {
	return c.Subject
}

// Manager signs and parses tokens. Safe for concurrent use.
type Manager struct {
	config Config
}

// NewManager validates the configuration and returns a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.AccessSecret) == 0 || len(cfg.RefreshSecret) == 0 {
		return nil, errors.New("both token secrets are required")
	}
	if string(cfg.AccessSecret) == string(cfg.RefreshSecret) {
		return nil, errors.New("access and refresh secrets must differ")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}

	return &Manager{config: cfg}, nil
}

// IssueAccess mints a short-lived access token for the account.
func (m *Manager) IssueAccess(accountID, role, clinicianID, patientID string) (string, error) {
	return m.issue(UseAccess, m.config.AccessSecret, m.config.AccessTTL, accountID, role, clinicianID, patientID)
}

// IssueRefresh mints a refresh token. Its jti identifies the token in the
// revocation denylist.
func (m *Manager) IssueRefresh(accountID, role string) (string, error) {
	return m.issue(UseRefresh, m.config.RefreshSecret, m.config.RefreshTTL, accountID, role, "", "")
}

// ParseAccess verifies an access token and returns its claims.
func (m *Manager) ParseAccess(tokenStr string) (*Claims, error) {
	return m.parse(tokenStr, UseAccess, m.config.AccessSecret)
}

// ParseRefresh verifies a refresh token and returns its claims.
func (m *Manager) ParseRefresh(tokenStr string) (*Claims, error) {
	return m.parse(tokenStr, UseRefresh, m.config.RefreshSecret)
}

func (m *Manager) issue(use string, secret []byte, ttl time.Duration, accountID, role, clinicianID, patientID string) (string, error) {
	if accountID == "" {
		return "", errors.New("missing account id")
	}

	now := time.Now()
	claims := Claims{
		Role:        role,
		ClinicianID: clinicianID,
		PatientID:   patientID,
		Use:         use,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			ID:        uuid.NewString(),
			Issuer:    m.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func (m *Manager) parse(tokenStr, wantUse string, secret []byte) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	parsed, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Use != wantUse {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
