package clinicauth

import (
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	internalaudit "github.com/apsicologia/clinicauth/internal/audit"
	"github.com/apsicologia/clinicauth/internal/rate"
	"github.com/apsicologia/clinicauth/internal/stores"
	"github.com/apsicologia/clinicauth/logging"
	"github.com/apsicologia/clinicauth/password"
	"github.com/apsicologia/clinicauth/token"
)

// parseLeeway absorbs small clock drift between the issuing and validating
// hosts without meaningfully extending token lifetime.
const parseLeeway = 30 * time.Second

// Builder assembles an [Engine]. A Builder is single-use.
type Builder struct {
	config Config
	store  AccountStore
	redis  redis.UniversalClient
	sink   AuditSink
	log    logging.Logger
	clock  func() time.Time

	built bool
}

// New returns a Builder preloaded with the default configuration.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the configuration. The builder keeps its own copy.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithStore sets the account store. Required.
func (b *Builder) WithStore(store AccountStore) *Builder {
	b.store = store
	return b
}

// WithRedis sets the Redis client backing the refresh denylist, the attempt
// limiters, and the pending-enrollment store. Required.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithAuditSink sets the sink that receives audit events. Only consulted
// when Audit.Enabled is set.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.sink = sink
	return b
}

// WithLogger sets the logger for engine warnings. Defaults to a no-op.
func (b *Builder) WithLogger(log logging.Logger) *Builder {
	b.log = log
	return b
}

// WithClock overrides the engine clock. Intended for tests.
func (b *Builder) WithClock(clock func() time.Time) *Builder {
	b.clock = clock
	return b
}

// Build validates the configuration and assembles the engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.store == nil {
		return nil, errors.New("account store required")
	}
	if b.redis == nil {
		return nil, errors.New("redis client required")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	hasher, err := password.New(password.Config{Cost: cfg.Password.Cost})
	if err != nil {
		return nil, err
	}

	tokens, err := token.NewManager(token.Config{
		AccessSecret:  cloneBytes(cfg.Token.AccessSecret),
		RefreshSecret: cloneBytes(cfg.Token.RefreshSecret),
		AccessTTL:     cfg.Token.AccessTTL,
		RefreshTTL:    cfg.Token.RefreshTTL,
		Issuer:        cfg.Token.Issuer,
		Leeway:        parseLeeway,
	})
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:      cfg,
		store:       b.store,
		hasher:      hasher,
		tokens:      tokens,
		twoFactor:   newTwoFactorManager(cfg.TwoFactor),
		enrollments: stores.NewEnrollmentStore(b.redis),
		revocations: newRevocationList(b.redis),
		audit: internalaudit.NewDispatcher(internalaudit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, b.sink),
		metrics: newMetrics(cfg.Metrics),
		limiter: rate.New(b.redis, rate.Config{
			LoginMaxAttempts:  cfg.RateLimit.LoginMaxAttempts,
			LoginWindow:       cfg.RateLimit.LoginWindow,
			TwoFactorMaxFails: cfg.TwoFactor.MaxAttempts,
			TwoFactorWindow:   cfg.TwoFactor.AttemptWindow,
		}),
		log: b.log,
		now: b.clock,
	}
	if engine.log == nil {
		engine.log = logging.Nop()
	}
	if engine.now == nil {
		engine.now = time.Now
	}

	b.built = true

	return engine, nil
}
