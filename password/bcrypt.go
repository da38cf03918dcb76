package password

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is the work factor used when none is configured.
const DefaultCost = 12

// Config carries the bcrypt work factor.
type Config struct {
	Cost int
}

// Hasher hashes and verifies credentials. Safe for concurrent use.
type Hasher struct {
	cost int
}

// New validates the cost factor and returns a Hasher. A zero cost selects
// [DefaultCost].
func New(cfg Config) (*Hasher, error) {
	cost := cfg.Cost
	if cost == 0 {
		cost = DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, errors.New("bcrypt cost out of range")
	}

	return &Hasher{cost: cost}, nil
}

// Hash returns the salted digest of plaintext. bcrypt rejects inputs longer
// than 72 bytes; that error propagates to the caller.
func (h *Hasher) Hash(plaintext string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", err
	}
	return string(digest), nil
}

// Verify reports whether plaintext matches digest. The comparison time does
// not depend on where a mismatch occurs.
func (h *Hasher) Verify(plaintext, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext)) == nil
}

// NeedsUpgrade reports whether digest was produced with a lower cost than the
// hasher is configured for. Unparseable digests report true so a login can
// repair them.
func (h *Hasher) NeedsUpgrade(digest string) bool {
	cost, err := bcrypt.Cost([]byte(digest))
	if err != nil {
		return true
	}
	return cost < h.cost
}
