package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
)

const challengeTokenBytes = 32

// NewChallengeToken generates an opaque single-use token (for password reset
// and email verification) and the SHA-256 hash under which it is stored. The
// plaintext token leaves the process exactly once, inside the delivery
// channel; the store only ever sees the hash.
func NewChallengeToken() (string, [32]byte, error) {
	raw := make([]byte, challengeTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", [32]byte{}, err
	}

	token := base64.RawURLEncoding.EncodeToString(raw)
	return token, HashChallengeToken(token), nil
}

// HashChallengeToken maps a presented token back to its stored hash.
func HashChallengeToken(token string) [32]byte {
	return sha256.Sum256([]byte(token))
}
