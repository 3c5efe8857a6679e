package goAuthz

import (
	"errors"
	"io"
	"log/slog"

	"github.com/MrEthical07/goAuthz/internal/audit"
	"github.com/MrEthical07/goAuthz/internal/stores"
	"github.com/MrEthical07/goAuthz/jwt"
	"github.com/MrEthical07/goAuthz/password"
	"github.com/MrEthical07/goAuthz/policy"
	"github.com/MrEthical07/goAuthz/refresh"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an [Engine]. A builder can be used once.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	credentials  CredentialStore
	permissions  policy.PermissionSource
	resources    ResourceStore
	hasher       password.Hasher
	throttle     Throttle
	refreshStore refresh.Store
	policies     []policy.Policy

	logger    *slog.Logger
	auditSink AuditSink

	built bool
}

// New returns a builder holding [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the whole configuration with a copy of cfg. Build
// validates it.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis supplies the client backing refresh tokens, the TOTP replay guard
// and, unless [Builder.WithThrottle] is used, the throttle.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithCredentialStore supplies user lookups and writes. Required.
func (b *Builder) WithCredentialStore(store CredentialStore) *Builder {
	b.credentials = store
	return b
}

// WithPermissionSource supplies role grants for Permission requirements.
// Without one every Permission requirement denies.
func (b *Builder) WithPermissionSource(src policy.PermissionSource) *Builder {
	b.permissions = src
	return b
}

// WithResourceStore lets [Engine.AuthorizeResource] load resources by id.
func (b *Builder) WithResourceStore(store ResourceStore) *Builder {
	b.resources = store
	return b
}

// WithHasher replaces the Argon2id hasher built from Config.Password.
func (b *Builder) WithHasher(h password.Hasher) *Builder {
	b.hasher = h
	return b
}

// WithThrottle replaces the default throttle. The Security section still
// decides which operations are throttled.
func (b *Builder) WithThrottle(t Throttle) *Builder {
	b.throttle = t
	return b
}

// WithRefreshStore replaces the Redis refresh store.
func (b *Builder) WithRefreshStore(store refresh.Store) *Builder {
	b.refreshStore = store
	return b
}

// WithPolicies registers policies in addition to Config.Policy.Definitions.
func (b *Builder) WithPolicies(policies ...policy.Policy) *Builder {
	b.policies = append(b.policies, policies...)
	return b
}

// WithLogger sets the logger for warnings and policy diagnostics. A nil
// logger discards everything.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithAuditSink sets the audit destination and enables the dispatcher.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled toggles Config.Metrics.Enabled.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the policy evaluation latency histogram.
// It has no effect while metrics are disabled.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.credentials == nil {
		return nil, errors.New("credential store required")
	}
	if b.redis == nil {
		if b.refreshStore == nil {
			return nil, errors.New("redis client or refresh store required")
		}
		if cfg.TOTP.EnforceReplayProtection {
			return nil, errors.New("TOTP replay protection requires redis client")
		}
	}

	logger := b.logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	// -------- TOKENS --------
	tokens, err := jwt.NewManager(jwt.Config{
		SigningKey: cloneBytes(cfg.JWT.SigningKey),
		Issuer:     cfg.JWT.Issuer,
		Audience:   cfg.JWT.Audience,
		AccessTTL:  cfg.JWT.AccessTTL,
		TempTTL:    cfg.JWT.TempTTL,
		Now:        cfg.now,
	})
	if err != nil {
		return nil, err
	}

	refreshStore := b.refreshStore
	if refreshStore == nil {
		refreshStore = refresh.NewRedisStore(b.redis, cfg.Refresh.RedisPrefix)
	}

	// -------- PASSWORDS --------
	hasher := b.hasher
	if hasher == nil {
		ph, err := password.NewArgon2(password.Config{
			Memory:           cfg.Password.Memory,
			Time:             cfg.Password.Time,
			Parallelism:      cfg.Password.Parallelism,
			SaltLength:       cfg.Password.SaltLength,
			KeyLength:        cfg.Password.KeyLength,
			MinPasswordBytes: cfg.Password.MinLength,
			MaxPasswordBytes: cfg.Password.MaxLength,
		})
		if err != nil {
			return nil, err
		}
		hasher = ph
	}

	// -------- POLICIES --------
	set, err := policy.BuildSet(cfg.Policy.Definitions)
	if err != nil {
		return nil, err
	}
	for _, p := range b.policies {
		if err := set.Add(p); err != nil {
			return nil, err
		}
	}
	evaluator := policy.NewEvaluator(b.permissions,
		policy.WithClock(cfg.now),
		policy.WithLocation(cfg.Policy.Location),
		policy.WithLogger(logger),
	)

	engine := &Engine{
		config:       cfg,
		credentials:  b.credentials,
		resources:    b.resources,
		hasher:       hasher,
		tokens:       tokens,
		refreshStore: refreshStore,
		evaluator:    evaluator,
		policies:     set,
		metrics:      NewMetrics(cfg.Metrics),
		logger:       logger,
	}

	// -------- THROTTLE --------
	if cfg.Security.EnableLoginThrottle || cfg.Security.EnableTOTPThrottle || cfg.Security.EnableRefreshThrottle {
		switch {
		case b.throttle != nil:
			engine.throttle = b.throttle
		case b.redis != nil:
			engine.throttle = NewRedisThrottle(b.redis, cfg.Refresh.RedisPrefix)
		default:
			engine.throttle = NewLocalThrottle(cfg.now)
		}
	}

	if cfg.TOTP.EnforceReplayProtection {
		// Codes stay acceptable for one step either side of now.
		engine.replayGuard = stores.NewTOTPReplayGuard(b.redis, cfg.Refresh.RedisPrefix, 0)
	}

	engine.audit = audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Audit.Enabled || b.auditSink != nil,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
		Now:        cfg.now,
		Annotate:   annotateAudit,
	}, b.auditSink)

	b.built = true

	return engine, nil
}
