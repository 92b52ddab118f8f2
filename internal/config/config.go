// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type AdminConfig struct {
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
	// JWTSecret signs admin session tokens minted after API-key login.
	JWTSecret  string        `yaml:"jwt_secret"`
	SessionTTL time.Duration `yaml:"session_ttl"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	PoolSize int    `yaml:"pool_size"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type PoolConfig struct {
	// SyncInterval drives the periodic full resync against the store.
	SyncInterval time.Duration `yaml:"sync_interval"`
	// ReconnectMin/Max bound the watcher's backoff between feed reconnects.
	ReconnectMin time.Duration `yaml:"reconnect_min"`
	ReconnectMax time.Duration `yaml:"reconnect_max"`
	// BuildTimeout caps a single bot handle construction round trip.
	BuildTimeout time.Duration `yaml:"build_timeout"`
	// SendLimit / SendWindow configure the per-customer outbound rate limit.
	SendLimit  int           `yaml:"send_limit"`
	SendWindow time.Duration `yaml:"send_window"`
}

type SecurityConfig struct {
	EncryptionKey string `yaml:"encryption_key"`
}

type Config struct {
	Log      LogConfig      `yaml:"log"`
	Admin    AdminConfig    `yaml:"admin"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Pool     PoolConfig     `yaml:"pool"`
	Security SecurityConfig `yaml:"security"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file, overlays secrets from the environment
// (a local .env is honored if present), applies defaults and validates.
func LoadConfig(path string, dev bool) (*Config, error) {
	_ = godotenv.Load()

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// env overrides for secrets
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("ENCRYPTION_KEY"); v != "" {
		cfg.Security.EncryptionKey = v
	}
	if v := os.Getenv("ADMIN_API_KEY"); v != "" {
		cfg.Admin.APIKey = v
	}

	applyDefaults(&cfg)

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if n := len(cfg.Security.EncryptionKey); n != 16 && n != 24 && n != 32 {
		return nil, fmt.Errorf("security.encryption_key must be 16, 24, or 32 bytes; got %d", n)
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Admin.Port == 0 {
		cfg.Admin.Port = 8081
	}
	if cfg.Admin.SessionTTL <= 0 {
		cfg.Admin.SessionTTL = 30 * time.Minute
	}
	if cfg.Database.PoolSize <= 0 {
		cfg.Database.PoolSize = 10
	}
	if cfg.Pool.SyncInterval <= 0 {
		cfg.Pool.SyncInterval = 5 * time.Minute
	}
	if cfg.Pool.ReconnectMin <= 0 {
		cfg.Pool.ReconnectMin = time.Second
	}
	if cfg.Pool.ReconnectMax <= 0 {
		cfg.Pool.ReconnectMax = time.Minute
	}
	if cfg.Pool.ReconnectMax < cfg.Pool.ReconnectMin {
		cfg.Pool.ReconnectMax = cfg.Pool.ReconnectMin
	}
	if cfg.Pool.BuildTimeout <= 0 {
		cfg.Pool.BuildTimeout = 15 * time.Second
	}
	if cfg.Pool.SendLimit <= 0 {
		cfg.Pool.SendLimit = 30
	}
	if cfg.Pool.SendWindow <= 0 {
		cfg.Pool.SendWindow = time.Second
	}
}
