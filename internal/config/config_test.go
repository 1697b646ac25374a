package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		Port:             "8000",
		Env:              "production",
		DatabaseURL:      "postgres://localhost/emsops",
		SigningKey:       strings.Repeat("ab", 32),
		TokenTTL:         time.Hour,
		SessionRetention: 30 * 24 * time.Hour,
		StoreTimeout:     2 * time.Second,
		BcryptCost:       12,
	}
}

func TestValidate_OK(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_ProductionRequiresSigningKey(t *testing.T) {
	cfg := validConfig()
	cfg.SigningKey = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for missing signing key in production")
	}
}

func TestValidate_DevAllowsMissingSigningKey(t *testing.T) {
	cfg := validConfig()
	cfg.Env = "development"
	cfg.SigningKey = ""
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidate_SigningKeyLength(t *testing.T) {
	cfg := validConfig()
	cfg.SigningKey = "abcd"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for short signing key")
	}
}

func TestValidate_SigningKeyNotHex(t *testing.T) {
	cfg := validConfig()
	cfg.SigningKey = strings.Repeat("zz", 32)
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for non-hex signing key")
	}
}

func TestValidate_Durations(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero token ttl", func(c *Config) { c.TokenTTL = 0 }},
		{"negative retention", func(c *Config) { c.SessionRetention = -time.Hour }},
		{"zero store timeout", func(c *Config) { c.StoreTimeout = 0 }},
		{"bcrypt cost too low", func(c *Config) { c.BcryptCost = 2 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestSigningKeyBytes(t *testing.T) {
	cfg := validConfig()
	key, err := cfg.SigningKeyBytes()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(key) != 32 {
		t.Errorf("expected 32 bytes, got %d", len(key))
	}

	cfg.SigningKey = ""
	key, err = cfg.SigningKeyBytes()
	if err != nil || key != nil {
		t.Errorf("expected nil key for empty config, got %v, %v", key, err)
	}
}
