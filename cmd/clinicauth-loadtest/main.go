// Command clinicauth-loadtest measures the engine's token hot paths under
// concurrency: access-token validation and refresh-token exchange.
//
// It seeds accounts into an in-memory store, logs each one in once, then
// hammers the two paths with a worker pool and reports throughput and
// latency percentiles. Redis defaults to an embedded miniredis so the tool
// runs standalone; point --redis-addr at a real server to include network
// round trips in the refresh numbers.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/apsicologia/clinicauth"
	"github.com/apsicologia/clinicauth/store/memory"
)

const seedPassword = "load-test-password"

func main() {
	var (
		accounts    = flag.Int("accounts", 1000, "number of accounts to seed")
		concurrency = flag.Int("concurrency", 64, "number of concurrent workers")
		ops         = flag.Int("ops", 100000, "operations per phase")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
	)
	flag.Parse()

	if *accounts <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "accounts, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{mr.Addr()},
		})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", mr.Addr())
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	engine, err := buildEngine(client)
	if err != nil {
		fmt.Fprintf(os.Stderr, "engine setup failed: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	fmt.Printf("seeding %d accounts...\n", *accounts)
	startSeed := time.Now()
	logins, err := seedAccounts(ctx, engine, *accounts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "seeding failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	validateStats := runPhase(*ops, *concurrency, func(r *rand.Rand) error {
		_, err := engine.ValidateAccess(ctx, logins[r.Intn(len(logins))].AccessToken)
		return err
	})
	refreshStats := runPhase(*ops, *concurrency, func(r *rand.Rand) error {
		_, err := engine.Refresh(ctx, logins[r.Intn(len(logins))].RefreshToken)
		return err
	})

	fmt.Println("---- results ----")
	printStats("validate", validateStats)
	printStats("refresh", refreshStats)
}

func buildEngine(client redis.UniversalClient) (*clinicauth.Engine, error) {
	cfg := clinicauth.Config{}
	cfg.Password.Cost = 4
	cfg.Token.AccessSecret = []byte("loadtest-access-secret-0123456789ab")
	cfg.Token.RefreshSecret = []byte("loadtest-refresh-secret-0123456789a")
	cfg.Token.AccessTTL = time.Hour
	cfg.Token.RefreshTTL = 24 * time.Hour
	cfg.Token.Issuer = "clinicauth-loadtest"
	cfg.TwoFactor.Issuer = "clinicauth-loadtest"
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
	cfg.RateLimit.LoginMaxAttempts = 1 << 30
	cfg.RateLimit.LoginWindow = time.Hour

	return clinicauth.New().
		WithConfig(cfg).
		WithStore(memory.New()).
		WithRedis(client).
		Build()
}

// seedAccounts registers the accounts and logs each one in once, returning
// the issued token pairs the phases draw from.
func seedAccounts(ctx context.Context, engine *clinicauth.Engine, n int) ([]*clinicauth.LoginResult, error) {
	logins := make([]*clinicauth.LoginResult, 0, n)
	for i := 0; i < n; i++ {
		email := fmt.Sprintf("load-%d@example.com", i)
		if _, err := engine.Register(ctx, clinicauth.RegisterInput{
			Email:    email,
			Name:     fmt.Sprintf("Load Account %d", i),
			Password: seedPassword,
		}); err != nil {
			return nil, err
		}

		result, err := engine.Authenticate(ctx, clinicauth.Credentials{
			Email:    email,
			Password: seedPassword,
		})
		if err != nil {
			return nil, err
		}
		logins = append(logins, result)
	}
	return logins, nil
}

func runPhase(ops, concurrency int, op func(*rand.Rand) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				err := op(r)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
