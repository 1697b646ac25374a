package config

import (
	"encoding/hex"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port             string        `mapstructure:"PORT"`
	Env              string        `mapstructure:"ENV"`
	DatabaseURL      string        `mapstructure:"DATABASE_URL"`
	DBMaxConns       int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns       int32         `mapstructure:"DB_MIN_CONNS"`
	SigningKey       string        `mapstructure:"AUTH_SIGNING_KEY"`
	TokenTTL         time.Duration `mapstructure:"TOKEN_TTL"`
	SessionRetention time.Duration `mapstructure:"SESSION_RETENTION"`
	SweepInterval    time.Duration `mapstructure:"SWEEP_INTERVAL"`
	StoreTimeout     time.Duration `mapstructure:"STORE_TIMEOUT"`
	OIDCIssuer       string        `mapstructure:"OIDC_ISSUER"`
	OIDCAudience     string        `mapstructure:"OIDC_AUDIENCE"`
	DefaultTenant    string        `mapstructure:"DEFAULT_TENANT"`
	BcryptCost       int           `mapstructure:"BCRYPT_COST"`
	LoginRateRPS     float64       `mapstructure:"LOGIN_RATE_RPS"`
	LoginRateBurst   int           `mapstructure:"LOGIN_RATE_BURST"`
	RequestTimeout   time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	CORSOrigins      []string      `mapstructure:"CORS_ORIGINS"`
	MigrationsDir    string        `mapstructure:"MIGRATIONS_DIR"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("TOKEN_TTL", "1h")
	v.SetDefault("SESSION_RETENTION", "720h") // 30 days past expiry
	v.SetDefault("SWEEP_INTERVAL", "1h")
	v.SetDefault("STORE_TIMEOUT", "2s")
	v.SetDefault("DEFAULT_TENANT", "default")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("LOGIN_RATE_RPS", 5)
	v.SetDefault("LOGIN_RATE_BURST", 10)
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("MIGRATIONS_DIR", "migrations")

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("AUTH_SIGNING_KEY")
	v.BindEnv("TOKEN_TTL")
	v.BindEnv("SESSION_RETENTION")
	v.BindEnv("SWEEP_INTERVAL")
	v.BindEnv("STORE_TIMEOUT")
	v.BindEnv("OIDC_ISSUER")
	v.BindEnv("OIDC_AUDIENCE")
	v.BindEnv("DEFAULT_TENANT")
	v.BindEnv("BCRYPT_COST")
	v.BindEnv("LOGIN_RATE_RPS")
	v.BindEnv("LOGIN_RATE_BURST")
	v.BindEnv("REQUEST_TIMEOUT")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("MIGRATIONS_DIR")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() && cfg.SigningKey == "" {
		log.Println("WARNING: ============================================================")
		log.Println("WARNING: Server is running in DEVELOPMENT mode with a generated")
		log.Println("WARNING: signing key. Issued tokens will not survive a restart.")
		log.Println("WARNING: Set AUTH_SIGNING_KEY (64 hex chars) for any real deployment.")
		log.Println("WARNING: ============================================================")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// SigningKeyBytes decodes AUTH_SIGNING_KEY from hex. Returns nil when the key
// is unset (development mode generates an ephemeral key instead).
func (c *Config) SigningKeyBytes() ([]byte, error) {
	if c.SigningKey == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(c.SigningKey)
	if err != nil {
		return nil, fmt.Errorf("AUTH_SIGNING_KEY is not valid hex: %w", err)
	}
	return key, nil
}

// Validate checks that the configuration is safe to run. Outside development
// a signing key is mandatory: the server refuses to start rather than mint
// tokens with an ephemeral key that invalidates every session on restart.
func (c *Config) Validate() error {
	if !c.IsDev() && c.SigningKey == "" {
		return fmt.Errorf(
			"AUTH_SIGNING_KEY is required when ENV=%q. "+
				"Refusing to start without a stable token signing key", c.Env)
	}
	if c.SigningKey != "" {
		key, err := c.SigningKeyBytes()
		if err != nil {
			return err
		}
		if len(key) != 32 {
			return fmt.Errorf("AUTH_SIGNING_KEY must be 32 bytes (64 hex chars), got %d bytes", len(key))
		}
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive, got %s", c.TokenTTL)
	}
	if c.SessionRetention <= 0 {
		return fmt.Errorf("SESSION_RETENTION must be positive, got %s", c.SessionRetention)
	}
	if c.StoreTimeout <= 0 {
		return fmt.Errorf("STORE_TIMEOUT must be positive, got %s", c.StoreTimeout)
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return fmt.Errorf("BCRYPT_COST must be between 4 and 31, got %d", c.BcryptCost)
	}
	return nil
}
