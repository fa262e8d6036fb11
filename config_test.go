package softoken

import (
	"testing"
	"time"
)

func validConfig() Config {
	cfg := DefaultConfig()
	cfg.Token.Secret = []byte("secret")
	return cfg
}

func TestDefaultConfigRequiresOnlySecret(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected default config without secret to be invalid")
	}

	cfg = validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected default config with secret to be valid: %v", err)
	}
	if cfg.Session.DefaultTTL != 7200*time.Second {
		t.Fatalf("expected 2h default ttl, got %v", cfg.Session.DefaultTTL)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{
			name:      "hs256 with secret",
			mutate:    func(c *Config) {},
			wantValid: true,
		},
		{
			name: "unsupported signing method",
			mutate: func(c *Config) {
				c.Token.SigningMethod = "rs256"
			},
			wantValid: false,
		},
		{
			name: "ed25519 without keys",
			mutate: func(c *Config) {
				c.Token.SigningMethod = "ed25519"
			},
			wantValid: false,
		},
		{
			name: "zero default ttl",
			mutate: func(c *Config) {
				c.Session.DefaultTTL = 0
			},
			wantValid: false,
		},
		{
			name: "sub-millisecond default ttl",
			mutate: func(c *Config) {
				c.Session.DefaultTTL = time.Microsecond
			},
			wantValid: false,
		},
		{
			name: "blank prefix",
			mutate: func(c *Config) {
				c.Session.RedisPrefix = "  "
			},
			wantValid: false,
		},
		{
			name: "glob prefix",
			mutate: func(c *Config) {
				c.Session.RedisPrefix = "sess*"
			},
			wantValid: false,
		},
		{
			name: "prefix without separator",
			mutate: func(c *Config) {
				c.Session.RedisPrefix = "app"
			},
			wantValid: false,
		},
		{
			name: "negative token leeway",
			mutate: func(c *Config) {
				c.Token.Leeway = -time.Second
			},
			wantValid: false,
		},
		{
			name: "excessive token leeway",
			mutate: func(c *Config) {
				c.Token.Leeway = time.Hour
			},
			wantValid: false,
		},
		{
			name: "negative sweep batch",
			mutate: func(c *Config) {
				c.Session.SweepBatchSize = -1
			},
			wantValid: false,
		},
		{
			name: "scheduled cleanup with tiny interval",
			mutate: func(c *Config) {
				c.Cleanup.Interval = 10 * time.Millisecond
			},
			wantValid: false,
		},
		{
			name: "manual cleanup ignores interval",
			mutate: func(c *Config) {
				c.Cleanup.Manual = true
				c.Cleanup.Interval = 0
			},
			wantValid: true,
		},
		{
			name: "audit enabled without buffer",
			mutate: func(c *Config) {
				c.Audit.Enabled = true
				c.Audit.BufferSize = 0
			},
			wantValid: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantValid && err != nil {
				t.Fatalf("expected valid config, got %v", err)
			}
			if !tc.wantValid && err == nil {
				t.Fatal("expected invalid config")
			}
		})
	}
}

func TestCloneConfigCopiesKeyMaterial(t *testing.T) {
	cfg := validConfig()
	clone := cloneConfig(cfg)
	clone.Token.Secret[0] = 'X'
	if cfg.Token.Secret[0] == 'X' {
		t.Fatal("clone must not share the secret buffer")
	}
}
