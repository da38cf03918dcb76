package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/apsicologia/clinicauth"
	"github.com/apsicologia/clinicauth/store/memory"
)

func newTestEngine(t *testing.T) *clinicauth.Engine {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	engine, err := clinicauth.New().
		WithConfig(testConfig()).
		WithStore(memory.New()).
		WithRedis(client).
		Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}

func testConfig() clinicauth.Config {
	cfg := clinicauth.Config{}
	cfg.Password.Cost = 4
	cfg.Token.AccessSecret = []byte("0123456789abcdef0123456789abcdef")
	cfg.Token.RefreshSecret = []byte("fedcba9876543210fedcba9876543210")
	cfg.Token.AccessTTL = 15 * time.Minute
	cfg.Token.RefreshTTL = 7 * 24 * time.Hour
	cfg.TwoFactor.Issuer = "test"
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
	cfg.RateLimit.LoginMaxAttempts = 10
	cfg.RateLimit.LoginWindow = 15 * time.Minute
	return cfg
}

func registerAndLogin(t *testing.T, engine *clinicauth.Engine) *clinicauth.LoginResult {
	t.Helper()

	ctx := context.Background()
	if _, err := engine.Register(ctx, clinicauth.RegisterInput{
		Email:    "pat@example.com",
		Name:     "Pat",
		Password: "correct-horse",
	}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	result, err := engine.Authenticate(ctx, clinicauth.Credentials{
		Email:    "pat@example.com",
		Password: "correct-horse",
	})
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	return result
}

func TestAuthenticateAttachesIdentity(t *testing.T) {
	engine := newTestEngine(t)
	login := registerAndLogin(t, engine)

	var got *clinicauth.Identity
	handler := Authenticate(engine)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = IdentityFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+login.AccessToken)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got == nil || got.Role != clinicauth.RolePatient {
		t.Fatalf("identity = %+v, want patient role", got)
	}
	if got.AccountID != login.Profile.ID {
		t.Fatalf("identity account = %q, want %q", got.AccountID, login.Profile.ID)
	}
}

func TestAuthenticateRejectsMissingAndGarbageTokens(t *testing.T) {
	engine := newTestEngine(t)

	handler := Authenticate(engine)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	for _, header := range []string{"", "Bearer ", "Bearer not-a-token", "Basic abc"} {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("header %q: status = %d, want 401", header, rec.Code)
		}
	}
}

func TestAuthenticateRejectsRefreshTokenOnResourceRoute(t *testing.T) {
	engine := newTestEngine(t)
	login := registerAndLogin(t, engine)

	handler := Authenticate(engine)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+login.RefreshToken)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestRequireRoleGate(t *testing.T) {
	engine := newTestEngine(t)
	login := registerAndLogin(t, engine)

	chain := Authenticate(engine)(RequireRole(clinicauth.RoleAdmin)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}),
	))

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+login.AccessToken)
	rec := httptest.NewRecorder()
	chain.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("patient on admin route: status = %d, want 403", rec.Code)
	}

	allowed := Authenticate(engine)(RequireRole(clinicauth.RolePatient, clinicauth.RoleAdmin)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}),
	))
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/either", nil)
	req.Header.Set("Authorization", "Bearer "+login.AccessToken)
	allowed.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("allowed role: status = %d, want 200", rec.Code)
	}
}

func TestRequireRoleWithoutIdentityIsUnauthorized(t *testing.T) {
	handler := RequireRole(clinicauth.RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}
