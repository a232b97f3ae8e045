package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Source modes.
const (
	SourceRemote = "remote"
	SourceSQLite = "sqlite"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `json:"server" yaml:"server"`
	Database  DatabaseConfig  `json:"database" yaml:"database"`
	Security  SecurityConfig  `json:"security" yaml:"security"`
	RateLimit RateLimitConfig `json:"rate_limit" yaml:"rate_limit"`
	Source    SourceConfig    `json:"source" yaml:"source"`
	Cache     CacheConfig     `json:"cache" yaml:"cache"`
	Tracing   TracingConfig   `json:"tracing" yaml:"tracing"`
	Log       LogConfig       `json:"log" yaml:"log"`
	Features  map[string]bool `json:"features" yaml:"features"`
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Port            string `json:"port" yaml:"port"`
	Host            string `json:"host" yaml:"host"`
	EnableTLS       bool   `json:"enable_tls" yaml:"enable_tls"`
	CertFile        string `json:"cert_file" yaml:"cert_file"`
	KeyFile         string `json:"key_file" yaml:"key_file"`
	ShutdownTimeout int    `json:"shutdown_timeout" yaml:"shutdown_timeout"` // in seconds
}

// DatabaseConfig holds database-related configuration.
type DatabaseConfig struct {
	Path string `json:"path" yaml:"path"`
}

// SecurityConfig holds security-related configuration.
type SecurityConfig struct {
	// Max request body size in bytes (default: 10MB)
	MaxRequestBodySize int64 `json:"max_request_body_size" yaml:"max_request_body_size"`
	// Allowed CORS origins (comma-separated)
	AllowedOrigins string `json:"allowed_origins" yaml:"allowed_origins"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
	Rate    int  `json:"rate" yaml:"rate"`
	Window  int  `json:"window" yaml:"window"` // in seconds
}

// SourceConfig selects where vendor records come from.
type SourceConfig struct {
	Mode string `json:"mode" yaml:"mode"`
	// BaseURL of the vendor REST API, e.g. https://api.redemly.com/api
	BaseURL string `json:"base_url" yaml:"base_url"`
	// PaymentsBaseURL overrides BaseURL for the payment endpoints.
	PaymentsBaseURL   string `json:"payments_base_url" yaml:"payments_base_url"`
	Timeout           int    `json:"timeout" yaml:"timeout"` // in seconds
	NotificationLimit int    `json:"notification_limit" yaml:"notification_limit"`
}

// CacheConfig configures the record set cache. An empty RedisAddr selects
// the in-memory cache.
type CacheConfig struct {
	RedisAddr     string `json:"redis_addr" yaml:"redis_addr"`
	RedisPassword string `json:"redis_password" yaml:"redis_password"`
	RedisDB       int    `json:"redis_db" yaml:"redis_db"`
	TTL           int    `json:"ttl" yaml:"ttl"` // in seconds
	Prefix        string `json:"prefix" yaml:"prefix"`
}

// TracingConfig holds Jaeger tracing configuration.
type TracingConfig struct {
	Enabled     bool   `json:"enabled" yaml:"enabled"`
	Endpoint    string `json:"endpoint" yaml:"endpoint"`
	Environment string `json:"environment" yaml:"environment"`
}

// LogConfig holds logger configuration.
type LogConfig struct {
	Env   string `json:"env" yaml:"env"`
	Level string `json:"level" yaml:"level"`
}

// LoadConfig loads configuration from environment variables and/or config file.
// Environment variables take precedence over config file values. A .env file
// in the working directory is loaded first when present.
func LoadConfig(configFile string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "8080"),
			Host:            getEnv("SERVER_HOST", ""),
			EnableTLS:       getEnvBool("SERVER_ENABLE_TLS", false),
			CertFile:        getEnv("SERVER_CERT_FILE", ""),
			KeyFile:         getEnv("SERVER_KEY_FILE", ""),
			ShutdownTimeout: getEnvInt("SERVER_SHUTDOWN_TIMEOUT", 15),
		},
		Database: DatabaseConfig{
			Path: getEnv("DATABASE_PATH", "./vendor_dashboard.db"),
		},
		Security: SecurityConfig{
			MaxRequestBodySize: getEnvInt64("MAX_REQUEST_BODY_SIZE", 10<<20), // 10MB default
			AllowedOrigins:     getEnv("ALLOWED_ORIGINS", "*"),
		},
		RateLimit: RateLimitConfig{
			Enabled: getEnvBool("RATE_LIMIT_ENABLED", true),
			Rate:    getEnvInt("RATE_LIMIT_RATE", 100),
			Window:  getEnvInt("RATE_LIMIT_WINDOW", 60),
		},
		Source: SourceConfig{
			Mode:              getEnv("SOURCE_MODE", SourceRemote),
			BaseURL:           getEnv("SOURCE_BASE_URL", "https://api.redemly.com/api"),
			PaymentsBaseURL:   getEnv("SOURCE_PAYMENTS_BASE_URL", ""),
			Timeout:           getEnvInt("SOURCE_TIMEOUT", 10),
			NotificationLimit: getEnvInt("SOURCE_NOTIFICATION_LIMIT", 100),
		},
		Cache: CacheConfig{
			RedisAddr:     getEnv("REDIS_ADDR", ""),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       getEnvInt("REDIS_DB", 0),
			TTL:           getEnvInt("CACHE_TTL", 60),
			Prefix:        getEnv("CACHE_PREFIX", "vdash:"),
		},
		Tracing: TracingConfig{
			Enabled:     getEnvBool("TRACING_ENABLED", false),
			Endpoint:    getEnv("JAEGER_ENDPOINT", "http://localhost:14268/api/traces"),
			Environment: getEnv("ENVIRONMENT", "development"),
		},
		Log: LogConfig{
			Env:   getEnv("ENVIRONMENT", "development"),
			Level: getEnv("LOG_LEVEL", ""),
		},
		Features: map[string]bool{},
	}

	// Load from config file if provided
	if configFile != "" {
		if err := loadFromFile(configFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	// Override with environment variables (they take precedence)
	overrideFromEnv(cfg)

	return cfg, nil
}

// loadFromFile loads configuration from a JSON or YAML file, chosen by
// extension.
func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, cfg)
	default:
		return json.Unmarshal(data, cfg)
	}
}

// overrideFromEnv overrides configuration with environment variables.
func overrideFromEnv(cfg *Config) {
	setString(&cfg.Server.Port, "SERVER_PORT")
	setString(&cfg.Server.Host, "SERVER_HOST")
	setBool(&cfg.Server.EnableTLS, "SERVER_ENABLE_TLS")
	setString(&cfg.Server.CertFile, "SERVER_CERT_FILE")
	setString(&cfg.Server.KeyFile, "SERVER_KEY_FILE")
	setInt(&cfg.Server.ShutdownTimeout, "SERVER_SHUTDOWN_TIMEOUT")
	setString(&cfg.Database.Path, "DATABASE_PATH")
	if maxBodySize := os.Getenv("MAX_REQUEST_BODY_SIZE"); maxBodySize != "" {
		if size, err := strconv.ParseInt(maxBodySize, 10, 64); err == nil {
			cfg.Security.MaxRequestBodySize = size
		}
	}
	setString(&cfg.Security.AllowedOrigins, "ALLOWED_ORIGINS")
	setBool(&cfg.RateLimit.Enabled, "RATE_LIMIT_ENABLED")
	setInt(&cfg.RateLimit.Rate, "RATE_LIMIT_RATE")
	setInt(&cfg.RateLimit.Window, "RATE_LIMIT_WINDOW")
	setString(&cfg.Source.Mode, "SOURCE_MODE")
	setString(&cfg.Source.BaseURL, "SOURCE_BASE_URL")
	setString(&cfg.Source.PaymentsBaseURL, "SOURCE_PAYMENTS_BASE_URL")
	setInt(&cfg.Source.Timeout, "SOURCE_TIMEOUT")
	setInt(&cfg.Source.NotificationLimit, "SOURCE_NOTIFICATION_LIMIT")
	setString(&cfg.Cache.RedisAddr, "REDIS_ADDR")
	setString(&cfg.Cache.RedisPassword, "REDIS_PASSWORD")
	setInt(&cfg.Cache.RedisDB, "REDIS_DB")
	setInt(&cfg.Cache.TTL, "CACHE_TTL")
	setString(&cfg.Cache.Prefix, "CACHE_PREFIX")
	setBool(&cfg.Tracing.Enabled, "TRACING_ENABLED")
	setString(&cfg.Tracing.Endpoint, "JAEGER_ENDPOINT")
	setString(&cfg.Tracing.Environment, "ENVIRONMENT")
	setString(&cfg.Log.Env, "ENVIRONMENT")
	setString(&cfg.Log.Level, "LOG_LEVEL")

	// FEATURES=exports=false,record_cache=true
	if features := os.Getenv("FEATURES"); features != "" {
		if cfg.Features == nil {
			cfg.Features = map[string]bool{}
		}
		for _, pair := range strings.Split(features, ",") {
			name, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
			if !ok || name == "" {
				continue
			}
			if enabled, err := strconv.ParseBool(value); err == nil {
				cfg.Features[name] = enabled
			}
		}
	}
}

func setString(dst *string, key string) {
	if value := os.Getenv(key); value != "" {
		*dst = value
	}
}

func setBool(dst *bool, key string) {
	if value := os.Getenv(key); value != "" {
		*dst = strings.ToLower(value) == "true" || value == "1"
	}
}

func setInt(dst *int, key string) {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			*dst = i
		}
	}
}

// getEnv gets an environment variable or returns the default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable or returns the default value.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable or returns the default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

// getEnvInt64 gets an int64 environment variable or returns the default value.
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port == "" {
		errs = append(errs, errors.New("server port is required"))
	}
	if c.Server.EnableTLS && (c.Server.CertFile == "") != (c.Server.KeyFile == "") {
		errs = append(errs, errors.New("cert file and key file must be set together"))
	}
	if c.RateLimit.Enabled {
		if c.RateLimit.Rate <= 0 {
			errs = append(errs, errors.New("rate limit rate must be positive"))
		}
		if c.RateLimit.Window <= 0 {
			errs = append(errs, errors.New("rate limit window must be positive"))
		}
	}

	switch c.Source.Mode {
	case SourceRemote:
		if u, err := url.Parse(c.Source.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("source base url %q is not an absolute URL", c.Source.BaseURL))
		}
		if c.Source.Timeout <= 0 {
			errs = append(errs, errors.New("source timeout must be positive"))
		}
	case SourceSQLite:
		if c.Database.Path == "" {
			errs = append(errs, errors.New("database path is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown source mode %q", c.Source.Mode))
	}

	if c.Cache.TTL < 0 {
		errs = append(errs, errors.New("cache ttl must not be negative"))
	}

	return errors.Join(errs...)
}

// ShutdownTimeout returns the graceful shutdown timeout.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeout) * time.Second
}

// CacheTTL returns the record cache TTL.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTL) * time.Second
}

// SourceTimeout returns the upstream request timeout.
func (c *Config) SourceTimeout() time.Duration {
	return time.Duration(c.Source.Timeout) * time.Second
}
