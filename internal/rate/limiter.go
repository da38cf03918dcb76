package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrLimited indicates the window budget is exhausted.
	ErrLimited = errors.New("rate limited")
	// ErrUnavailable indicates the limiter backend is unreachable.
	ErrUnavailable = errors.New("rate limiter backend unavailable")
)

// Config holds the fixed-window budgets.
type Config struct {
	LoginMaxAttempts  int
	LoginWindow       time.Duration
	TwoFactorMaxFails int
	TwoFactorWindow   time.Duration
}

// Limiter tracks attempt counts in Redis fixed windows.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a Limiter on the given client.
func New(client redis.UniversalClient, cfg Config) *Limiter {
	return &Limiter{redis: client, config: cfg}
}

func loginKey(identifier, ip string) string {
	return "cl:rl:login:" + identifier + "|" + ip
}

func twoFactorKey(accountID string) string {
	return "cl:rl:2fa:" + accountID
}

// CheckLogin rejects with ErrLimited once the identifier+address pair has
// spent its window budget. It does not consume an attempt.
func (l *Limiter) CheckLogin(ctx context.Context, identifier, ip string) error {
	count, err := l.redis.Get(ctx, loginKey(identifier, ip)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if count >= int64(l.config.LoginMaxAttempts) {
		return ErrLimited
	}
	return nil
}

// RecordLoginAttempt consumes one attempt from the window budget.
func (l *Limiter) RecordLoginAttempt(ctx context.Context, identifier, ip string) error {
	return l.increment(ctx, loginKey(identifier, ip), l.config.LoginWindow)
}

// ResetLogin clears the window after a successful authentication.
func (l *Limiter) ResetLogin(ctx context.Context, identifier, ip string) error {
	if err := l.redis.Del(ctx, loginKey(identifier, ip)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// RecordTwoFactorFailure counts one wrong code and reports whether the
// account has exceeded its window budget.
func (l *Limiter) RecordTwoFactorFailure(ctx context.Context, accountID string) (bool, error) {
	key := twoFactorKey(accountID)
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if count == 1 && l.config.TwoFactorWindow > 0 {
		if err := l.redis.Expire(ctx, key, l.config.TwoFactorWindow).Err(); err != nil {
			return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	return count > int64(l.config.TwoFactorMaxFails), nil
}

// ResetTwoFactor clears the wrong-code counter after a valid code.
func (l *Limiter) ResetTwoFactor(ctx context.Context, accountID string) error {
	if err := l.redis.Del(ctx, twoFactorKey(accountID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (l *Limiter) increment(ctx context.Context, key string, window time.Duration) error {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if count == 1 && window > 0 {
		// TTL on first increment makes the window roll from the first attempt.
		if err := l.redis.Expire(ctx, key, window).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	return nil
}
