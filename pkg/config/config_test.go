package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Default host = %v, want %v", cfg.Server.Host, "127.0.0.1")
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("Default port = %v, want %v", cfg.Server.Port, "8080")
	}
	if cfg.Server.ContextPath != "/opendap" {
		t.Errorf("Default context path = %v, want %v", cfg.Server.ContextPath, "/opendap")
	}

	if cfg.Logging.Level != "info" {
		t.Errorf("Default log level = %v, want %v", cfg.Logging.Level, "info")
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Default log format = %v, want %v", cfg.Logging.Format, "text")
	}

	if cfg.HTTPClient.Timeout != 5*time.Second {
		t.Errorf("Default http timeout = %v, want %v", cfg.HTTPClient.Timeout, 5*time.Second)
	}
	if cfg.Session.Timeout != 30*time.Minute {
		t.Errorf("Default session timeout = %v, want %v", cfg.Session.Timeout, 30*time.Minute)
	}

	if cfg.Authentication.LoginBanner != "Welcome to The Burrow." {
		t.Errorf("Default banner = %q", cfg.Authentication.LoginBanner)
	}
	if cfg.Authentication.LoginPath != "/login" || cfg.Authentication.LogoutPath != "/logout" {
		t.Errorf("Default login/logout = %q/%q", cfg.Authentication.LoginPath, cfg.Authentication.LogoutPath)
	}
	if !cfg.Authentication.GuestEnabled {
		t.Error("Guest login should be enabled by default")
	}
	if cfg.Authorization.PDP.Class != "local" {
		t.Errorf("Default PDP class = %v, want local", cfg.Authorization.PDP.Class)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config should validate: %v", err)
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "auth.yaml")

	configContent := `
server:
  host: "0.0.0.0"
  port: "9090"
  context_path: "/hyrax"

logging:
  level: "debug"
  format: "json"

http_client:
  timeout: "2s"

authentication:
  login_banner: "Hello"
  providers:
    - class: urs
      auth_context: urs
      description: "EarthData Login"
      default: true
      urs_url: "https://urs.earthdata.nasa.gov"
      client_id: "abc"
      client_auth_code: "c2VjcmV0"
      reject_unsupported_authz_schemes: true
    - class: apache
      auth_context: apache

authorization:
  everyone_must_have_id: true
  pdp:
    class: local
    policies:
      - class: regex
        role: "users"
        resource: "^/hyrax/data/.*$"
        actions: [GET, HEAD]
    memberships:
      groups:
        - id: edl
          users:
            - id_pattern: ".*"
              auth_context: urs
      roles:
        - id: users
          groups: [edl]
`

	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("Port = %v, want %v", cfg.Server.Port, "9090")
	}
	if cfg.Server.ContextPath != "/hyrax" {
		t.Errorf("Context path = %v, want /hyrax", cfg.Server.ContextPath)
	}
	if cfg.HTTPClient.Timeout != 2*time.Second {
		t.Errorf("HTTP timeout = %v, want 2s", cfg.HTTPClient.Timeout)
	}
	// unspecified values keep their defaults
	if cfg.Authentication.LoginPath != "/login" {
		t.Errorf("Login path = %v, want /login", cfg.Authentication.LoginPath)
	}

	if len(cfg.Authentication.Providers) != 2 {
		t.Fatalf("Provider count = %d, want 2", len(cfg.Authentication.Providers))
	}
	urs := cfg.Authentication.Providers[0]
	if urs.Class != "urs" || !urs.Default || urs.ClientID != "abc" || !urs.RejectUnsupportedAuthzSchemes {
		t.Errorf("Unexpected URS provider config: %+v", urs)
	}

	if !cfg.Authorization.EveryoneMustHaveID {
		t.Error("everyone_must_have_id should be true")
	}
	pol := cfg.Authorization.PDP.Policies
	if len(pol) != 1 || len(pol[0].Actions) != 2 {
		t.Fatalf("Unexpected policies: %+v", pol)
	}
	m := cfg.Authorization.PDP.Memberships
	if len(m.Groups) != 1 || m.Groups[0].Users[0].IDPattern != ".*" {
		t.Errorf("Unexpected groups: %+v", m.Groups)
	}
	if len(m.Roles) != 1 || m.Roles[0].Groups[0] != "edl" {
		t.Errorf("Unexpected roles: %+v", m.Roles)
	}
}

func TestLoadConfigWithEnvOverrides(t *testing.T) {
	t.Setenv("HA_HOST", "192.168.1.1")
	t.Setenv("HA_PORT", "9000")
	t.Setenv("HA_CONTEXT_PATH", "")
	t.Setenv("HA_LOG_LEVEL", "warn")
	t.Setenv("HA_LOG_FORMAT", "json")
	t.Setenv("HA_RATE_LIMIT_RPS", "500")
	t.Setenv("HA_SESSION_TIMEOUT", "5m")
	t.Setenv("HA_HTTP_TIMEOUT", "750ms")
	t.Setenv("HA_LOGIN_BANNER", "Staging")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Server.Host != "192.168.1.1" {
		t.Errorf("Host = %v, want %v", cfg.Server.Host, "192.168.1.1")
	}
	if cfg.Server.Port != "9000" {
		t.Errorf("Port = %v, want %v", cfg.Server.Port, "9000")
	}
	if cfg.Server.ContextPath != "" {
		t.Errorf("Context path = %q, want root", cfg.Server.ContextPath)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Log level = %v, want %v", cfg.Logging.Level, "warn")
	}
	if cfg.Security.RateLimitRPS != 500 {
		t.Errorf("Rate limit RPS = %v, want %v", cfg.Security.RateLimitRPS, 500)
	}
	if cfg.Session.Timeout != 5*time.Minute {
		t.Errorf("Session timeout = %v, want 5m", cfg.Session.Timeout)
	}
	if cfg.HTTPClient.Timeout != 750*time.Millisecond {
		t.Errorf("HTTP timeout = %v, want 750ms", cfg.HTTPClient.Timeout)
	}
	if cfg.Authentication.LoginBanner != "Staging" {
		t.Errorf("Banner = %v, want Staging", cfg.Authentication.LoginBanner)
	}
}

func TestLoadConfigInvalidFile(t *testing.T) {
	_, err := LoadConfig("/nonexistent/config.yaml")
	if err == nil {
		t.Error("LoadConfig() should fail with nonexistent file")
	}
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")
	if err := os.WriteFile(configPath, []byte("server: [unterminated"), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	if _, err := LoadConfig(configPath); err == nil {
		t.Error("LoadConfig() should fail with invalid YAML")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"empty port", func(c *Config) { c.Server.Port = "" }, true},
		{"relative context path", func(c *Config) { c.Server.ContextPath = "opendap" }, true},
		{"root context path", func(c *Config) { c.Server.ContextPath = "" }, false},
		{"bad log level", func(c *Config) { c.Logging.Level = "chatty" }, true},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, true},
		{"zero rps", func(c *Config) { c.Security.RateLimitRPS = 0 }, true},
		{"zero session timeout", func(c *Config) { c.Session.Timeout = 0 }, true},
		{"no cookie name", func(c *Config) { c.Session.CookieName = "" }, true},
		{"bad block key", func(c *Config) { c.Session.BlockKey = "short" }, true},
		{"good block key", func(c *Config) { c.Session.BlockKey = "0123456789abcdef" }, false},
		{"zero http timeout", func(c *Config) { c.HTTPClient.Timeout = 0 }, true},
		{"relative login path", func(c *Config) { c.Authentication.LoginPath = "login" }, true},
		{"empty pdp class", func(c *Config) { c.Authorization.PDP.Class = "" }, true},
		{"bad pdp service path", func(c *Config) {
			c.PDPService.Enabled = true
			c.PDPService.Path = "pdp"
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNormalizedContextPath(t *testing.T) {
	tests := map[string]string{
		"/opendap":  "/opendap",
		"/opendap/": "/opendap",
		"/":         "",
		"":          "",
	}
	for in, want := range tests {
		if got := (ServerConfig{ContextPath: in}).NormalizedContextPath(); got != want {
			t.Errorf("NormalizedContextPath(%q) = %q, want %q", in, got, want)
		}
	}
}
