// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-passkeygate.
//
// go-passkeygate is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package config loads the passkeygate server configuration from YAML with
// environment variable overrides.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jeremyhahn/go-passkeygate/pkg/docstore/sanity"
	"github.com/jeremyhahn/go-passkeygate/pkg/passkey"
	"github.com/jeremyhahn/go-passkeygate/pkg/ratelimit"
	"github.com/jeremyhahn/go-passkeygate/pkg/session"
	"github.com/jeremyhahn/go-passkeygate/pkg/storage/postgres"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "PASSKEYGATE_"

// Backend names.
const (
	BackendMemory   = "memory"
	BackendSanity   = "sanity"
	BackendPostgres = "postgres"
)

// Config represents the complete server configuration
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Logging     LoggingConfig     `yaml:"logging"`
	TLS         TLSConfig         `yaml:"tls"`
	WebAuthn    passkey.Config    `yaml:"webauthn"`
	Session     session.Config    `yaml:"session"`
	Invitations InvitationsConfig `yaml:"invitations"`
	DocStore    DocStoreConfig    `yaml:"docstore"`
	Database    DatabaseConfig    `yaml:"database"`
	Admin       AdminConfig       `yaml:"admin"`
	RateLimit   ratelimit.Config  `yaml:"ratelimit"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Health      HealthConfig      `yaml:"health"`
}

// ServerConfig contains server-level settings
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	CORSOrigins     []string      `yaml:"cors_origins"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LoggingConfig controls logging behavior
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// InvitationsConfig controls invitation links
type InvitationsConfig struct {
	// SiteURL is the public site that serves /register.
	SiteURL string `yaml:"site_url"`
}

// DocStoreConfig selects the document store holding invitations and posts
type DocStoreConfig struct {
	Backend string        `yaml:"backend"`
	Sanity  sanity.Config `yaml:"sanity"`
}

// DatabaseConfig selects the relational store holding users and credentials
type DatabaseConfig struct {
	Backend  string              `yaml:"backend"`
	Postgres postgres.PoolConfig `yaml:"postgres"`
}

// AdminConfig controls authentication of admin endpoints. Either mechanism
// may be used; with neither configured the admin endpoints reject all
// requests.
type AdminConfig struct {
	// APIKeys maps key names to secret values.
	APIKeys map[string]string `yaml:"api_keys"`

	// JWTSecret enables HS256 bearer tokens.
	JWTSecret string `yaml:"jwt_secret"`

	// JWTIssuer is the required issuer claim.
	JWTIssuer string `yaml:"jwt_issuer"`

	// JWTAudience is the required audience claim.
	JWTAudience string `yaml:"jwt_audience"`
}

// MetricsConfig controls metrics endpoint
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// HealthConfig controls health check endpoints
type HealthConfig struct {
	Enabled bool          `yaml:"enabled"`
	Timeout time.Duration `yaml:"timeout"`
}

// Default returns a configuration suitable for local development. The
// session secret is left empty and must be supplied.
func Default() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Logging:  LoggingConfig{Level: "info", Format: "json"},
		DocStore: DocStoreConfig{Backend: BackendMemory},
		Database: DatabaseConfig{Backend: BackendMemory},
		RateLimit: ratelimit.Config{
			Enabled:           true,
			RequestsPerMinute: 60,
		},
		Metrics: MetricsConfig{Enabled: true, Path: "/metrics"},
		Health:  HealthConfig{Enabled: true},
	}
	cfg.SetDefaults()
	return cfg
}

// Load reads configuration from a YAML file, applies environment variable
// overrides and validates the result. An empty path loads defaults plus
// environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		// #nosec G304 - Config file path is provided by admin/user
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)
	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 15 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 60 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 30 * time.Second
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.DocStore.Backend == "" {
		c.DocStore.Backend = BackendMemory
	}
	if c.Database.Backend == "" {
		c.Database.Backend = BackendMemory
	}
	if c.Invitations.SiteURL == "" && len(c.WebAuthn.RPOrigins) > 0 {
		c.Invitations.SiteURL = c.WebAuthn.RPOrigins[0]
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.Health.Timeout == 0 {
		c.Health.Timeout = 5 * time.Second
	}
	c.WebAuthn.SetDefaults()
	c.Session.SetDefaults()
	c.Database.Postgres.SetDefaults()
}

// applyEnvOverrides applies environment variable overrides to the configuration
func applyEnvOverrides(cfg *Config) {
	str := func(name string, dst *string) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			*dst = v
		}
	}
	boolean := func(name string, dst *bool) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				log.Printf("Warning: invalid %s%s value %q, keeping %t: %v", EnvPrefix, name, v, *dst, err)
				return
			}
			*dst = b
		}
	}
	list := func(name string, dst *[]string) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			var out []string
			for _, item := range strings.Split(v, ",") {
				if item = strings.TrimSpace(item); item != "" {
					out = append(out, item)
				}
			}
			*dst = out
		}
	}

	// Server settings
	str("HOST", &cfg.Server.Host)
	if v := os.Getenv(EnvPrefix + "PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			log.Printf("Warning: invalid %sPORT value %q, using default %d: %v", EnvPrefix, v, cfg.Server.Port, err)
		} else if port < 1 || port > 65535 {
			log.Printf("Warning: invalid %sPORT value %q (out of range 1-65535), using default %d", EnvPrefix, v, cfg.Server.Port)
		} else {
			cfg.Server.Port = port
		}
	}
	list("CORS_ORIGINS", &cfg.Server.CORSOrigins)

	// Logging
	str("LOG_LEVEL", &cfg.Logging.Level)
	str("LOG_FORMAT", &cfg.Logging.Format)

	// TLS
	boolean("TLS_ENABLED", &cfg.TLS.Enabled)
	str("TLS_CERT_FILE", &cfg.TLS.CertFile)
	str("TLS_KEY_FILE", &cfg.TLS.KeyFile)

	// Relying party
	str("RP_ID", &cfg.WebAuthn.RPID)
	str("RP_DISPLAY_NAME", &cfg.WebAuthn.RPDisplayName)
	list("RP_ORIGINS", &cfg.WebAuthn.RPOrigins)
	str("USER_VERIFICATION", &cfg.WebAuthn.UserVerification)

	// Session
	str("SESSION_SECRET", &cfg.Session.Secret)
	str("SESSION_COOKIE_NAME", &cfg.Session.CookieName)
	boolean("SESSION_SECURE", &cfg.Session.Secure)

	// Invitations and stores
	str("SITE_URL", &cfg.Invitations.SiteURL)
	str("DOCSTORE_BACKEND", &cfg.DocStore.Backend)
	str("SANITY_PROJECT_ID", &cfg.DocStore.Sanity.ProjectID)
	str("SANITY_DATASET", &cfg.DocStore.Sanity.Dataset)
	str("SANITY_API_VERSION", &cfg.DocStore.Sanity.APIVersion)
	str("SANITY_TOKEN", &cfg.DocStore.Sanity.Token)
	str("DATABASE_BACKEND", &cfg.Database.Backend)
	str("DATABASE_URL", &cfg.Database.Postgres.URL)

	// Admin
	str("ADMIN_JWT_SECRET", &cfg.Admin.JWTSecret)
	str("ADMIN_JWT_ISSUER", &cfg.Admin.JWTIssuer)
	if v := os.Getenv(EnvPrefix + "ADMIN_API_KEY"); v != "" {
		if cfg.Admin.APIKeys == nil {
			cfg.Admin.APIKeys = make(map[string]string)
		}
		cfg.Admin.APIKeys["env"] = v
	}

	boolean("RATELIMIT_ENABLED", &cfg.RateLimit.Enabled)
	boolean("METRICS_ENABLED", &cfg.Metrics.Enabled)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}

	// Validate logging level
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	// Validate logging format
	validFormats := map[string]bool{
		"json": true, "text": true,
	}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		return fmt.Errorf("invalid log format: %s (must be json or text)", c.Logging.Format)
	}

	if c.TLS.Enabled {
		if c.TLS.CertFile == "" {
			return fmt.Errorf("TLS cert_file is required when TLS is enabled")
		}
		if c.TLS.KeyFile == "" {
			return fmt.Errorf("TLS key_file is required when TLS is enabled")
		}
	}

	if err := c.WebAuthn.Validate(); err != nil {
		return fmt.Errorf("webauthn: %w", err)
	}
	if err := c.Session.Validate(); err != nil {
		return fmt.Errorf("session: %w", err)
	}
	if c.Invitations.SiteURL == "" {
		return fmt.Errorf("invitations.site_url must be specified")
	}

	switch c.DocStore.Backend {
	case BackendMemory:
	case BackendSanity:
		if c.DocStore.Sanity.ProjectID == "" && c.DocStore.Sanity.BaseURL == "" {
			return fmt.Errorf("docstore.sanity.project_id is required")
		}
		if c.DocStore.Sanity.Dataset == "" {
			return fmt.Errorf("docstore.sanity.dataset is required")
		}
	default:
		return fmt.Errorf("unknown docstore backend: %s", c.DocStore.Backend)
	}

	switch c.Database.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.Database.Postgres.URL == "" {
			return fmt.Errorf("database.postgres.url is required")
		}
	default:
		return fmt.Errorf("unknown database backend: %s", c.Database.Backend)
	}

	if c.Admin.JWTSecret != "" && len(c.Admin.JWTSecret) < 32 {
		return fmt.Errorf("admin.jwt_secret must be at least 32 bytes")
	}
	for name, key := range c.Admin.APIKeys {
		if len(key) < 16 {
			return fmt.Errorf("admin api key %q must be at least 16 characters", name)
		}
	}

	if c.RateLimit.Enabled && c.RateLimit.RequestsPerMinute <= 0 {
		return fmt.Errorf("ratelimit.requests_per_min must be positive when enabled")
	}
	return nil
}
