package clinicauth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// revocationList is the refresh-token denylist. Logout marks the token's jti
// here with a TTL equal to its remaining lifetime, after which the entry is
// pointless anyway because the signature check rejects the token.
type revocationList struct {
	redis redis.UniversalClient
}

func newRevocationList(client redis.UniversalClient) *revocationList {
	return &revocationList{redis: client}
}

func revocationKey(jti string) string {
	return "cl:revoked:" + jti
}

func (r *revocationList) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		// Already past natural expiry; nothing to deny.
		return nil
	}
	if err := r.redis.Set(ctx, revocationKey(jti), 1, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (r *revocationList) IsRevoked(ctx context.Context, jti string) (bool, error) {
	err := r.redis.Get(ctx, revocationKey(jti)).Err()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return true, nil
}
