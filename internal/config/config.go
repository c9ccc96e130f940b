// Package config loads service configuration from an optional YAML file with
// environment-variable overrides. Environment always wins.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied when neither file nor environment provides a value.
const (
	DefaultAddr             = ":8080"
	DefaultAlgorithm        = "HS256"
	DefaultRefreshTTLDays   = 7
	DefaultAccessTTLSeconds = 3600
	DefaultRateBurst        = 20
	DefaultRatePerSecond    = 10
	DefaultMaxBodyBytes     = 1 << 20
)

// Config is the full service configuration.
type Config struct {
	Addr  string `yaml:"addr"`
	PGDSN string `yaml:"pg_dsn"`

	Token TokenConfig `yaml:"token"`
	HTTP  HTTPConfig  `yaml:"http"`
	Admin AdminSeed   `yaml:"admin"`
}

// TokenConfig drives the token engine.
type TokenConfig struct {
	Secret           string `yaml:"secret"`
	Algorithm        string `yaml:"algorithm"`
	RefreshTTLDays   int    `yaml:"refresh_ttl_days"`
	AccessTTLSeconds int    `yaml:"access_ttl_seconds"`
}

// HTTPConfig drives the middleware stack.
type HTTPConfig struct {
	RateBurst     int      `yaml:"rate_burst"`
	RatePerSecond int      `yaml:"rate_per_second"`
	MaxBodyBytes  int64    `yaml:"max_body_bytes"`
	CORSOrigins   []string `yaml:"cors_origins"`
}

// AdminSeed is the bootstrap admin account created by the seed command.
type AdminSeed struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

// RefreshTTL returns the refresh token lifetime as a duration.
func (c TokenConfig) RefreshTTL() time.Duration {
	return time.Duration(c.RefreshTTLDays) * 24 * time.Hour
}

// AccessTTL returns the access token lifetime as a duration.
func (c TokenConfig) AccessTTL() time.Duration {
	return time.Duration(c.AccessTTLSeconds) * time.Second
}

// Load reads path (when non-empty), applies environment overrides and fills
// defaults. A missing file is an error only when the path was explicit.
func Load(path string) (Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.Addr, "GATEKEEP_ADDR")
	setString(&c.PGDSN, "GATEKEEP_PG_DSN")
	setString(&c.Token.Secret, "GATEKEEP_SECRET_KEY")
	setString(&c.Token.Algorithm, "GATEKEEP_ALGORITHM")
	setInt(&c.Token.RefreshTTLDays, "GATEKEEP_REFRESH_TTL_DAYS")
	setInt(&c.Token.AccessTTLSeconds, "GATEKEEP_ACCESS_TTL_SECONDS")
	setInt(&c.HTTP.RateBurst, "GATEKEEP_RATE_BURST")
	setInt(&c.HTTP.RatePerSecond, "GATEKEEP_RATE_PER_SECOND")
	setString(&c.Admin.Email, "GATEKEEP_ADMIN_EMAIL")
	setString(&c.Admin.Password, "GATEKEEP_ADMIN_PASSWORD")
	if v := os.Getenv("GATEKEEP_CORS_ORIGINS"); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		c.HTTP.CORSOrigins = origins
	}
}

func (c *Config) applyDefaults() {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.Token.Algorithm == "" {
		c.Token.Algorithm = DefaultAlgorithm
	}
	if c.Token.RefreshTTLDays <= 0 {
		c.Token.RefreshTTLDays = DefaultRefreshTTLDays
	}
	if c.Token.AccessTTLSeconds <= 0 {
		c.Token.AccessTTLSeconds = DefaultAccessTTLSeconds
	}
	if c.HTTP.RateBurst <= 0 {
		c.HTTP.RateBurst = DefaultRateBurst
	}
	if c.HTTP.RatePerSecond <= 0 {
		c.HTTP.RatePerSecond = DefaultRatePerSecond
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		c.HTTP.MaxBodyBytes = DefaultMaxBodyBytes
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
