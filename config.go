package softoken

import (
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/softoken/jwt"
)

// DefaultSessionTTL is the session lifetime applied when a request does not
// carry one.
const DefaultSessionTTL = 2 * time.Hour

// Config is the complete engine configuration. It is passed explicitly to
// [Builder.WithConfig] and copied at build time; the engine never consults
// globals or the environment.
type Config struct {
	Token   TokenConfig
	Session SessionConfig
	Cleanup CleanupConfig
	Audit   AuditConfig
	Metrics MetricsConfig
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig selects the signing algorithm and key material.
type TokenConfig struct {
	SigningMethod string // "hs256" (default) or "ed25519"
	Secret        []byte
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	KeyID         string
	// Leeway is the clock skew tolerated between engines sharing a store.
	// Zero selects jwt.DefaultLeeway.
	Leeway time.Duration
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls session lifetime and the Redis key namespace.
type SessionConfig struct {
	DefaultTTL     time.Duration
	RedisPrefix    string
	SweepBatchSize int
}

/*
====================================
CLEANUP CONFIG
====================================
*/

// CleanupConfig selects the reconciliation strategy.
//
// With Manual set, no background task runs and the caller is responsible for
// invoking [Engine.Cleanup]; until then, lapsed sessions stay visible in the
// indexes. Otherwise the engine owns a sweep job that runs every Interval
// between [Builder.Build] and [Engine.Close].
type CleanupConfig struct {
	Manual   bool
	Interval time.Duration
	// DistributedLock makes each scheduled sweep take a Redis lock first so
	// only one process sweeps a namespace per tick.
	DistributedLock bool
}

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig toggles in-process counters and the Get latency histogram.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns a configuration with every field except the signing
// secret filled in.
func DefaultConfig() Config {
	return Config{
		Token: TokenConfig{
			SigningMethod: "hs256",
		},
		Session: SessionConfig{
			DefaultTTL:     DefaultSessionTTL,
			RedisPrefix:    "softoken:",
			SweepBatchSize: 500,
		},
		Cleanup: CleanupConfig{
			Manual:   false,
			Interval: time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.Secret = cloneBytes(cfg.Token.Secret)
	out.Token.PrivateKey = cloneBytes(cfg.Token.PrivateKey)
	out.Token.PublicKey = cloneBytes(cfg.Token.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Validate checks the configuration for values the engine cannot run with.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Token.SigningMethod) {
	case "", "hs256":
		if len(c.Token.Secret) == 0 {
			return errors.New("Token Secret is required for hs256")
		}
	case "ed25519":
		if len(c.Token.PrivateKey) == 0 {
			return errors.New("ed25519 requires PrivateKey")
		}
		if len(c.Token.PublicKey) == 0 {
			return errors.New("ed25519 requires PublicKey")
		}
	default:
		return errors.New("unsupported token signing method")
	}

	if c.Token.Leeway < 0 || c.Token.Leeway > jwt.MaxLeeway {
		return errors.New("Token Leeway must be between 0 and 2m")
	}

	if c.Session.DefaultTTL < time.Millisecond {
		return errors.New("Session DefaultTTL must be >= 1ms")
	}
	if strings.TrimSpace(c.Session.RedisPrefix) == "" {
		return errors.New("Session RedisPrefix is required")
	}
	if strings.ContainsAny(c.Session.RedisPrefix, "*?[]") {
		return errors.New("Session RedisPrefix must not contain glob characters")
	}
	if !strings.HasSuffix(c.Session.RedisPrefix, ":") {
		return errors.New("Session RedisPrefix must end with ':'")
	}
	if c.Session.SweepBatchSize < 0 {
		return errors.New("Session SweepBatchSize must be >= 0")
	}

	if !c.Cleanup.Manual && c.Cleanup.Interval < time.Second {
		return errors.New("Cleanup Interval must be >= 1s when cleanup is scheduled")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	return nil
}
