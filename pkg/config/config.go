// Package config provides configuration management for the hyrax-auth server.
// It supports loading configuration from YAML files, from the legacy Hyrax
// XML access configuration, and from environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/OPENDAP/hyrax-auth/pkg/validation"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration structure.
// It includes settings for the server, logging, sessions, outbound HTTP,
// identity providers and the policy decision point.
type Config struct {
	Server         ServerConfig         `yaml:"server"`
	Logging        LoggingConfig        `yaml:"logging"`
	Security       SecurityConfig       `yaml:"security"`
	Session        SessionConfig        `yaml:"session"`
	HTTPClient     HTTPClientConfig     `yaml:"http_client"`
	Authentication AuthenticationConfig `yaml:"authentication"`
	Authorization  AuthorizationConfig  `yaml:"authorization"`
	PDPService     PDPServiceConfig     `yaml:"pdp_service"`
}

// ServerConfig contains HTTP server configuration settings.
type ServerConfig struct {
	Host        string `yaml:"host"`
	Port        string `yaml:"port"`
	ContextPath string `yaml:"context_path"`
	// PublicPaths are path prefixes the filters never intercept.
	PublicPaths []string `yaml:"public_paths"`
}

// LoggingConfig contains logging configuration settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig contains security-related configuration settings.
type SecurityConfig struct {
	RateLimitRPS   int `yaml:"rate_limit_rps"`
	RateLimitBurst int `yaml:"rate_limit_burst"`
	// TrustedRemoteUserHeader names a header set by a fronting server that
	// the authorization filter accepts as the authenticated user. Empty
	// disables the fallback.
	TrustedRemoteUserHeader string `yaml:"trusted_remote_user_header"`
}

// SessionConfig controls the server-side session store and its cookie.
type SessionConfig struct {
	CookieName  string        `yaml:"cookie_name"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxSessions int           `yaml:"max_sessions"`
	HashKey     string        `yaml:"hash_key"`
	BlockKey    string        `yaml:"block_key"`
	Secure      bool          `yaml:"secure"`
}

// HTTPClientConfig controls outbound calls to identity providers and remote PDPs.
type HTTPClientConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// AuthenticationConfig configures the authentication filter and its identity providers.
type AuthenticationConfig struct {
	LoginBanner  string           `yaml:"login_banner"`
	LoginPath    string           `yaml:"login_path"`
	LogoutPath   string           `yaml:"logout_path"`
	GuestEnabled bool             `yaml:"guest_enabled"`
	Providers    []ProviderConfig `yaml:"providers"`
}

// ProviderConfig describes one identity provider. Class selects the variant,
// the remaining fields are interpreted by that variant.
type ProviderConfig struct {
	Class       string `yaml:"class"`
	AuthContext string `yaml:"auth_context"`
	Description string `yaml:"description"`
	Default     bool   `yaml:"default"`
	Login       string `yaml:"login"`
	Logout      string `yaml:"logout"`

	// Apache and Tomcat variants
	RemoteUserHeader string `yaml:"remote_user_header"`
	GroupsHeader     string `yaml:"groups_header"`

	// EarthData Login variant
	URSURL                        string `yaml:"urs_url"`
	ClientID                      string `yaml:"client_id"`
	ClientAuthCode                string `yaml:"client_auth_code"`
	RejectUnsupportedAuthzSchemes bool   `yaml:"reject_unsupported_authz_schemes"`
}

// AuthorizationConfig configures the policy enforcement filter.
type AuthorizationConfig struct {
	EveryoneMustHaveID   bool      `yaml:"everyone_must_have_id"`
	DefaultLoginEndpoint string    `yaml:"default_login_endpoint"`
	PDP                  PDPConfig `yaml:"pdp"`
}

// PDPConfig selects and configures a policy decision point.
type PDPConfig struct {
	Class       string            `yaml:"class"`
	Endpoint    string            `yaml:"endpoint"`
	Policies    []PolicyConfig    `yaml:"policies"`
	Memberships MembershipsConfig `yaml:"memberships"`
}

// PolicyConfig describes one access rule.
type PolicyConfig struct {
	Class    string   `yaml:"class"`
	Role     string   `yaml:"role"`
	Resource string   `yaml:"resource"`
	Query    string   `yaml:"query"`
	Actions  []string `yaml:"actions"`
}

// MembershipsConfig holds group and role definitions.
type MembershipsConfig struct {
	Groups []GroupConfig `yaml:"groups"`
	Roles  []RoleConfig  `yaml:"roles"`
}

// GroupConfig is a named set of user rules.
type GroupConfig struct {
	ID    string           `yaml:"id"`
	Users []UserRuleConfig `yaml:"users"`
}

// UserRuleConfig matches users. Exactly one of ID/IDPattern and exactly one
// of AuthContext/AuthContextPattern must be set.
type UserRuleConfig struct {
	ID                 string `yaml:"id"`
	IDPattern          string `yaml:"id_pattern"`
	AuthContext        string `yaml:"auth_context"`
	AuthContextPattern string `yaml:"auth_context_pattern"`
}

// RoleConfig maps a role to the groups that hold it.
type RoleConfig struct {
	ID     string   `yaml:"id"`
	Groups []string `yaml:"groups"`
}

// PDPServiceConfig exposes the local PDP over HTTP for remote enforcement points.
type PDPServiceConfig struct {
	Enabled                bool   `yaml:"enabled"`
	Path                   string `yaml:"path"`
	RequireSecureTransport bool   `yaml:"require_secure_transport"`
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "127.0.0.1",
			Port:        "8080",
			ContextPath: "/opendap",
			PublicPaths: []string{},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
		Security: SecurityConfig{
			RateLimitRPS:   100,
			RateLimitBurst: 20,
		},
		Session: SessionConfig{
			CookieName:  "hyrax_session",
			Timeout:     30 * time.Minute,
			MaxSessions: 10000,
		},
		HTTPClient: HTTPClientConfig{
			Timeout: 5 * time.Second,
		},
		Authentication: AuthenticationConfig{
			LoginBanner:  "Welcome to The Burrow.",
			LoginPath:    "/login",
			LogoutPath:   "/logout",
			GuestEnabled: true,
		},
		Authorization: AuthorizationConfig{
			PDP: PDPConfig{
				Class: "local",
			},
		},
		PDPService: PDPServiceConfig{
			Enabled: false,
			Path:    "/pdpService",
		},
	}
}

// LoadConfig loads configuration from a YAML (or legacy XML) file and applies
// environment variable overrides. It returns the merged configuration or an
// error if loading fails.
//
// Environment variables override configuration file values using the HA_ prefix:
//   - HA_HOST, HA_PORT, HA_CONTEXT_PATH for server settings
//   - HA_LOG_LEVEL, HA_LOG_FORMAT, HA_LOG_OUTPUT for logging
//   - HA_RATE_LIMIT_RPS for security settings
//   - HA_SESSION_TIMEOUT, HA_SESSION_HASH_KEY, HA_SESSION_BLOCK_KEY for sessions
//   - HA_HTTP_TIMEOUT for outbound calls
//   - HA_LOGIN_BANNER for the login landing page
//
// If configPath is empty, only default values and environment variables are used.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		if err := validation.ValidateConfigPath(configPath); err != nil {
			return nil, fmt.Errorf("invalid config path: %w", err)
		}

		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if strings.EqualFold(filepath.Ext(configPath), ".xml") {
			if err := ParseXMLConfig(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("HA_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("HA_PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v, ok := os.LookupEnv("HA_CONTEXT_PATH"); ok {
		cfg.Server.ContextPath = v
	}

	if v := os.Getenv("HA_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("HA_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("HA_LOG_OUTPUT"); v != "" {
		cfg.Logging.Output = v
	}

	if v := os.Getenv("HA_RATE_LIMIT_RPS"); v != "" {
		if rps, err := strconv.Atoi(v); err == nil {
			cfg.Security.RateLimitRPS = rps
		}
	}

	if v := os.Getenv("HA_SESSION_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Session.Timeout = d
		}
	}
	if v := os.Getenv("HA_SESSION_HASH_KEY"); v != "" {
		cfg.Session.HashKey = v
	}
	if v := os.Getenv("HA_SESSION_BLOCK_KEY"); v != "" {
		cfg.Session.BlockKey = v
	}

	if v := os.Getenv("HA_HTTP_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.HTTPClient.Timeout = d
		}
	}

	if v := os.Getenv("HA_LOGIN_BANNER"); v != "" {
		cfg.Authentication.LoginBanner = v
	}
}

// Validate checks if the configuration is valid.
// Identity provider, membership and policy rules are validated by the
// components that build them.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port cannot be empty")
	}
	if c.Server.ContextPath != "" && !strings.HasPrefix(c.Server.ContextPath, "/") {
		return fmt.Errorf("context path must start with '/': %s", c.Server.ContextPath)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true, "fatal": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	if c.Security.RateLimitRPS <= 0 {
		return fmt.Errorf("rate limit RPS must be positive")
	}
	if c.Security.RateLimitBurst < 0 {
		return fmt.Errorf("rate limit burst cannot be negative")
	}

	if c.Session.CookieName == "" {
		return fmt.Errorf("session cookie name cannot be empty")
	}
	if c.Session.Timeout <= 0 {
		return fmt.Errorf("session timeout must be positive")
	}
	if c.Session.MaxSessions <= 0 {
		return fmt.Errorf("max sessions must be positive")
	}
	if n := len(c.Session.BlockKey); n != 0 && n != 16 && n != 24 && n != 32 {
		return fmt.Errorf("session block key must be 16, 24 or 32 bytes, got %d", n)
	}

	if c.HTTPClient.Timeout <= 0 {
		return fmt.Errorf("http client timeout must be positive")
	}

	for name, p := range map[string]string{
		"login path":  c.Authentication.LoginPath,
		"logout path": c.Authentication.LogoutPath,
	} {
		if !strings.HasPrefix(p, "/") {
			return fmt.Errorf("%s must start with '/': %q", name, p)
		}
	}

	if c.Authorization.PDP.Class == "" {
		return fmt.Errorf("pdp class cannot be empty")
	}

	if c.PDPService.Enabled && !strings.HasPrefix(c.PDPService.Path, "/") {
		return fmt.Errorf("pdp service path must start with '/': %q", c.PDPService.Path)
	}

	return nil
}

// NormalizedContextPath returns the server context path without a trailing slash.
// The root context is the empty string.
func (s ServerConfig) NormalizedContextPath() string {
	return strings.TrimRight(s.ContextPath, "/")
}
