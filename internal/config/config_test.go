package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, SourceRemote, cfg.Source.Mode)
	assert.Equal(t, "https://api.redemly.com/api", cfg.Source.BaseURL)
	assert.Equal(t, 60*time.Second, cfg.CacheTTL())
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_YAMLFile(t *testing.T) {
	path := writeFile(t, "config.yaml", `
server:
  port: "9090"
source:
  mode: sqlite
cache:
  ttl: 5
features:
  exports: false
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, SourceSQLite, cfg.Source.Mode)
	assert.Equal(t, 5*time.Second, cfg.CacheTTL())
	assert.Equal(t, map[string]bool{"exports": false}, cfg.Features)
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "config.json", `{"server":{"port":"9090"},"rate_limit":{"rate":5}}`)
	t.Setenv("SERVER_PORT", "7070")
	t.Setenv("FEATURES", "record_cache=false, exports=true,broken")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "7070", cfg.Server.Port)
	assert.Equal(t, 5, cfg.RateLimit.Rate)
	assert.Equal(t, map[string]bool{"record_cache": false, "exports": true}, cfg.Features)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"unknown mode", func(c *Config) { c.Source.Mode = "ftp" }, "unknown source mode"},
		{"relative base url", func(c *Config) { c.Source.BaseURL = "/api" }, "not an absolute URL"},
		{"sqlite without path", func(c *Config) { c.Source.Mode = SourceSQLite; c.Database.Path = "" }, "database path is required"},
		{"bad rate", func(c *Config) { c.RateLimit.Rate = 0 }, "rate limit rate"},
		{"half tls pair", func(c *Config) { c.Server.EnableTLS = true; c.Server.CertFile = "cert.pem" }, "must be set together"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadConfig("")
			require.NoError(t, err)

			tt.mutate(cfg)
			err = cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
