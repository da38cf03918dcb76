package clinicauth_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base32"
	"encoding/binary"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/apsicologia/clinicauth"
	"github.com/apsicologia/clinicauth/store/memory"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func testConfig() clinicauth.Config {
	cfg := clinicauth.Config{}
	cfg.Password.Cost = 4
	cfg.Token.AccessSecret = []byte("0123456789abcdef0123456789abcdef")
	cfg.Token.RefreshSecret = []byte("fedcba9876543210fedcba9876543210")
	cfg.Token.AccessTTL = 15 * time.Minute
	cfg.Token.RefreshTTL = 7 * 24 * time.Hour
	cfg.Token.Issuer = "apsicologia-test"
	cfg.TwoFactor.Issuer = "apsicologia-test"
	cfg.TwoFactor.Digits = 6
	cfg.TwoFactor.Period = 30
	cfg.TwoFactor.Skew = 1
	cfg.TwoFactor.EnrollmentTTL = 10 * time.Minute
	cfg.TwoFactor.BackupCodeCount = 10
	cfg.TwoFactor.BackupCodeLength = 10
	cfg.TwoFactor.MaxAttempts = 5
	cfg.TwoFactor.AttemptWindow = 10 * time.Minute
	cfg.Reset.TokenTTL = time.Hour
	cfg.Verification.TokenTTL = 24 * time.Hour
	cfg.RateLimit.LoginMaxAttempts = 50
	cfg.RateLimit.LoginWindow = 15 * time.Minute
	return cfg
}

type testEnv struct {
	engine *clinicauth.Engine
	store  *memory.Store
	clock  *testClock
	redis  *miniredis.Miniredis
}

func newTestEnv(t testing.TB, mutate func(*clinicauth.Config)) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	store := memory.New()
	clock := newTestClock()

	engine, err := clinicauth.New().
		WithConfig(cfg).
		WithStore(store).
		WithRedis(client).
		WithClock(clock.Now).
		Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	t.Cleanup(engine.Close)

	return &testEnv{
		engine: engine,
		store:  store,
		clock:  clock,
		redis:  mr,
	}
}

// newTestEnvWithSink builds an engine with the audit trail enabled and
// wired to the given sink.
func newTestEnvWithSink(t testing.TB, sink clinicauth.AuditSink) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := testConfig()
	cfg.Audit.Enabled = true
	cfg.Audit.BufferSize = 64
	cfg.Audit.DropIfFull = true

	store := memory.New()
	clock := newTestClock()

	engine, err := clinicauth.New().
		WithConfig(cfg).
		WithStore(store).
		WithRedis(client).
		WithAuditSink(sink).
		WithClock(clock.Now).
		Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	t.Cleanup(engine.Close)

	return &testEnv{
		engine: engine,
		store:  store,
		clock:  clock,
		redis:  mr,
	}
}

const (
	testEmail    = "ana@example.com"
	testPassword = "correct-horse-battery"
)

func (env *testEnv) registerPatient(t testing.TB) clinicauth.Profile {
	t.Helper()

	result, err := env.engine.Register(context.Background(), clinicauth.RegisterInput{
		Email:    testEmail,
		Name:     "Ana Patient",
		Password: testPassword,
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	return result.Profile
}

func (env *testEnv) login(t testing.TB, creds clinicauth.Credentials) *clinicauth.LoginResult {
	t.Helper()

	result, err := env.engine.Authenticate(context.Background(), creds)
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	return result
}

func (env *testEnv) loginErr(t testing.TB, creds clinicauth.Credentials) error {
	t.Helper()

	_, err := env.engine.Authenticate(context.Background(), creds)
	if err == nil {
		t.Fatal("Authenticate() succeeded, want error")
	}
	return err
}

// enrollAndConfirm walks an account through the full two-factor enrollment
// and returns the raw secret and the backup codes.
func (env *testEnv) enrollAndConfirm(t testing.TB, accountID string) ([]byte, []string) {
	t.Helper()

	ctx := context.Background()
	enrollment, err := env.engine.EnrollTwoFactor(ctx, accountID, testPassword)
	if err != nil {
		t.Fatalf("EnrollTwoFactor() error = %v", err)
	}

	secret, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(enrollment.SecretBase32)
	if err != nil {
		t.Fatalf("decoding enrollment secret: %v", err)
	}

	if err := env.engine.ConfirmTwoFactor(ctx, accountID, totpCode(secret, env.clock.Now())); err != nil {
		t.Fatalf("ConfirmTwoFactor() error = %v", err)
	}
	return secret, enrollment.BackupCodes
}

// totpCode computes the expected 6-digit code for the secret at the given
// time, independently of the implementation under test.
func totpCode(secret []byte, at time.Time) string {
	step := at.Unix() / 30

	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], uint64(step))
	mac := hmac.New(sha1.New, secret)
	_, _ = mac.Write(msg[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	bin := (int(sum[offset])&0x7f)<<24 |
		(int(sum[offset+1])&0xff)<<16 |
		(int(sum[offset+2])&0xff)<<8 |
		(int(sum[offset+3]) & 0xff)

	return fmt.Sprintf("%06d", bin%1000000)
}
