package stores

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrNotFound indicates no pending enrollment exists (never started,
	// expired, or already consumed).
	ErrNotFound = errors.New("pending enrollment not found")
	// ErrUnavailable indicates the enrollment backend is unreachable.
	ErrUnavailable = errors.New("enrollment backend unavailable")
)

// PendingEnrollment parks a generated TOTP secret and the hashes of its
// backup codes between enroll and confirm. The plaintext backup codes are
// never stored anywhere.
type PendingEnrollment struct {
	Secret     []byte   `json:"secret"`
	CodeHashes [][]byte `json:"code_hashes"`
}

// EnrollmentStore keeps pending enrollments in Redis under a TTL, so an
// abandoned enrollment evaporates without ever having touched the account.
type EnrollmentStore struct {
	redis redis.UniversalClient
}

// NewEnrollmentStore creates an EnrollmentStore on the given client.
func NewEnrollmentStore(client redis.UniversalClient) *EnrollmentStore {
	return &EnrollmentStore{redis: client}
}

func enrollmentKey(accountID string) string {
	return "cl:2fa:enroll:" + accountID
}

// Save overwrites any previous pending enrollment for the account.
func (s *EnrollmentStore) Save(ctx context.Context, accountID string, e *PendingEnrollment, ttl time.Duration) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := s.redis.Set(ctx, enrollmentKey(accountID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Get returns the pending enrollment or ErrNotFound.
func (s *EnrollmentStore) Get(ctx context.Context, accountID string) (*PendingEnrollment, error) {
	payload, err := s.redis.Get(ctx, enrollmentKey(accountID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var e PendingEnrollment
	if err := json.Unmarshal(payload, &e); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return &e, nil
}

// Delete removes the pending enrollment. Deleting an absent key is not an
// error.
func (s *EnrollmentStore) Delete(ctx context.Context, accountID string) error {
	if err := s.redis.Del(ctx, enrollmentKey(accountID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
