package softoken

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/MrEthical07/softoken/internal/audit"
	"github.com/MrEthical07/softoken/internal/reconcile"
	"github.com/MrEthical07/softoken/jwt"
	"github.com/MrEthical07/softoken/session"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an [Engine]. It is single-use: Build may succeed once.
type Builder struct {
	config    Config
	redis     redis.UniversalClient
	logger    *slog.Logger
	auditSink AuditSink

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the whole configuration. The value is copied.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the Redis client. Any go-redis client works (single node,
// sentinel failover, or a cluster client whose namespace maps to one slot).
// The engine never closes it.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithLogger sets the structured logger. Nil selects slog.Default().
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithAuditSink sets the audit destination. It only takes effect with
// Config.Audit.Enabled.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the Get latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and returns a ready engine. When
// Config.Cleanup.Manual is false the cleanup scheduler is already running;
// stop it with [Engine.Close].
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.redis == nil {
		return nil, errors.New("redis client required")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "softoken")

	// -------- TOKEN CODEC --------
	jm, err := jwt.NewManager(jwt.Config{
		SigningMethod: jwt.SigningMethod(strings.ToLower(cfg.Token.SigningMethod)),
		Secret:        cloneBytes(cfg.Token.Secret),
		PrivateKey:    cloneBytes(cfg.Token.PrivateKey),
		PublicKey:     cloneBytes(cfg.Token.PublicKey),
		Issuer:        cfg.Token.Issuer,
		KeyID:         cfg.Token.KeyID,
		Leeway:        cfg.Token.Leeway,
	})
	if err != nil {
		return nil, err
	}

	// -------- SESSION STORE --------
	store := session.NewStore(b.redis, cfg.Session.RedisPrefix, cfg.Session.SweepBatchSize)

	engine := &Engine{
		config:     cloneConfig(cfg),
		store:      store,
		jwtManager: jm,
		metrics:    NewMetrics(cfg.Metrics),
		logger:     logger,
	}
	engine.audit = audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)

	// -------- RECONCILER --------
	if !cfg.Cleanup.Manual {
		rc := reconcile.Config{
			Interval: cfg.Cleanup.Interval,
			Logger:   logger,
			OnRun: func(_ int, err error) {
				if errors.Is(err, reconcile.ErrLockNotAcquired) {
					engine.metricInc(MetricCleanupSkipped)
				}
			},
		}
		if cfg.Cleanup.DistributedLock {
			rc.LockKey = cfg.Session.RedisPrefix + "lock:cleanup"
		}
		sched, err := reconcile.New(b.redis, rc, engine.sweep)
		if err != nil {
			engine.audit.Close()
			return nil, err
		}
		engine.reconciler = sched
		sched.Start()
	}

	b.built = true

	return engine, nil
}
