// Package config loads and validates application configuration from YAML files
// and environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Config is the root application configuration.
type Config struct {
	Server        ServerConfig             `yaml:"server"`
	Definitions   DefinitionsConfig        `yaml:"definitions"`
	Specs         SpecsConfig              `yaml:"specs"`
	Services      map[string]ServiceConfig `yaml:"services"`
	Options       OptionsConfig            `yaml:"options"`
	Sessions      SessionsConfig           `yaml:"sessions"`
	Listing       ListingConfig            `yaml:"listing"`
	Observability ObservabilityConfig      `yaml:"observability"`
}

// ServerConfig describes HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	HandlerTimeout  time.Duration `yaml:"handler_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	CORS            CORSConfig    `yaml:"cors"`
}

// CORSConfig describes Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
	MaxAge         int      `yaml:"max_age"`
}

// DefinitionsConfig describes where to find definition YAML files.
type DefinitionsConfig struct {
	Directories []string `yaml:"directories"`
	// ValidateLabels checks custom label names against the OpenAPI query
	// parameters of each view's list operation.
	ValidateLabels bool `yaml:"validate_labels"`
}

// SpecsConfig describes where to find OpenAPI specification files.
type SpecsConfig struct {
	Directory string       `yaml:"directory"`
	Sources   []SpecSource `yaml:"sources"`
}

// SpecSource maps a service ID to an OpenAPI spec file.
type SpecSource struct {
	ServiceID string `yaml:"service_id"`
	SpecFile  string `yaml:"spec_file"`
}

// ServiceConfig describes a backend service.
type ServiceConfig struct {
	BaseURL        string               `yaml:"base_url"`
	Timeout        time.Duration        `yaml:"timeout"`
	Pagination     PaginationConfig     `yaml:"pagination"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
	Retry          RetryConfig          `yaml:"retry"`
}

// PaginationConfig names the paging query parameters of a backend service.
type PaginationConfig struct {
	PageParam string `yaml:"page_param"`
	SizeParam string `yaml:"size_param"`
}

// CircuitBreakerConfig describes circuit breaker settings per service.
type CircuitBreakerConfig struct {
	FailureThreshold int           `yaml:"failure_threshold"`
	SuccessThreshold int           `yaml:"success_threshold"`
	Timeout          time.Duration `yaml:"timeout"`
}

// RetryConfig describes retry settings per service.
type RetryConfig struct {
	MaxAttempts       int           `yaml:"max_attempts"`
	BackoffInitial    time.Duration `yaml:"backoff_initial"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
	BackoffMax        time.Duration `yaml:"backoff_max"`
}

// CacheConfig describes cache settings.
type CacheConfig struct {
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"max_entries"`
}

// OptionsConfig describes remote option resolution.
type OptionsConfig struct {
	Cache  CacheConfig       `yaml:"cache"`
	Store  OptionStoreConfig `yaml:"store"`
	Warmup WarmupConfig      `yaml:"warmup"`
}

// OptionStoreConfig selects where cached option sets live.
type OptionStoreConfig struct {
	Driver    string `yaml:"driver"`
	AddrEnv   string `yaml:"addr_env"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// WarmupConfig schedules option cache pre-fetching. Schedule is a cron
// expression with a leading seconds field.
type WarmupConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Schedule string `yaml:"schedule"`
}

// SessionsConfig describes server-side filter sessions.
type SessionsConfig struct {
	TTL           time.Duration `yaml:"ttl"`
	MaxSessions   int           `yaml:"max_sessions"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// ListingConfig describes list fetch defaults.
type ListingConfig struct {
	DefaultPageSize int           `yaml:"default_page_size"`
	MaxPageSize     int           `yaml:"max_page_size"`
	DefaultLocale   string        `yaml:"default_locale"`
	FetchTimeout    time.Duration `yaml:"fetch_timeout"`
}

// ObservabilityConfig describes logging, tracing, and metrics settings.
type ObservabilityConfig struct {
	LogLevel string        `yaml:"log_level"`
	LogFile  LogFileConfig `yaml:"log_file"`
	Tracing  TracingConfig `yaml:"tracing"`
	Metrics  MetricsConfig `yaml:"metrics"`
}

// LogFileConfig enables a rotating log file next to stdout.
type LogFileConfig struct {
	Path       string `yaml:"path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// TracingConfig describes distributed tracing settings.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"sampling_rate"`
}

// MetricsConfig describes Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Defaults returns a Config with sensible default values.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			HandlerTimeout:  25 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			CORS: CORSConfig{
				AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
				AllowedHeaders: []string{"Content-Type", "Accept-Language", "X-Tenant-Id",
					"X-Partition-Id", "X-Subject-Id", "X-Correlation-Id"},
				MaxAge: 86400,
			},
		},
		Definitions: DefinitionsConfig{
			Directories: []string{"/definitions"},
		},
		Specs: SpecsConfig{
			Directory: "/specs",
		},
		Options: OptionsConfig{
			Cache: CacheConfig{
				TTL:        5 * time.Minute,
				MaxEntries: 1000,
			},
			Store: OptionStoreConfig{
				Driver:    "memory",
				KeyPrefix: "options",
			},
			Warmup: WarmupConfig{
				Schedule: "0 */5 * * * *",
			},
		},
		Sessions: SessionsConfig{
			TTL:           30 * time.Minute,
			MaxSessions:   10000,
			SweepInterval: time.Minute,
		},
		Listing: ListingConfig{
			DefaultPageSize: 20,
			MaxPageSize:     200,
			DefaultLocale:   "en",
			FetchTimeout:    10 * time.Second,
		},
		Observability: ObservabilityConfig{
			LogLevel: "info",
			LogFile: LogFileConfig{
				MaxSizeMB:  100,
				MaxBackups: 5,
				MaxAgeDays: 30,
			},
			Tracing: TracingConfig{
				Exporter:     "otlp",
				SamplingRate: 0.1,
			},
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
	}
}

// Load reads a YAML config file, applies environment variable overrides,
// and validates required fields.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation: %w", err)
	}

	return cfg, nil
}

// warmupParser matches the parser used by the option cache warmer.
var warmupParser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Validate checks that all required fields are present and valid.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}
	if len(c.Definitions.Directories) == 0 {
		errs = append(errs, "definitions.directories must not be empty")
	}

	switch c.Options.Store.Driver {
	case "memory":
	case "redis":
		if c.Options.Store.AddrEnv == "" {
			errs = append(errs, "options.store.addr_env is required for the redis driver")
		}
	default:
		errs = append(errs, fmt.Sprintf("options.store.driver %q is not one of memory, redis", c.Options.Store.Driver))
	}
	if c.Options.Warmup.Enabled {
		if _, err := warmupParser.Parse(c.Options.Warmup.Schedule); err != nil {
			errs = append(errs, fmt.Sprintf("options.warmup.schedule: %v", err))
		}
	}

	if c.Sessions.TTL <= 0 {
		errs = append(errs, "sessions.ttl must be positive")
	}
	if c.Listing.DefaultPageSize < 1 {
		errs = append(errs, "listing.default_page_size must be at least 1")
	}
	if c.Listing.MaxPageSize < c.Listing.DefaultPageSize {
		errs = append(errs, "listing.max_page_size must not be below listing.default_page_size")
	}

	for id, svc := range c.Services {
		if svc.BaseURL == "" {
			errs = append(errs, fmt.Sprintf("services.%s.base_url is required", id))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// applyEnvOverrides reads BACKOFFICE_* environment variables and overrides
// config values. Only the most commonly overridden fields are supported.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("BACKOFFICE_SERVER_PORT"); v != "" {
		var port int
		if _, err := fmt.Sscanf(v, "%d", &port); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("BACKOFFICE_DEFINITIONS_DIRECTORIES"); v != "" {
		cfg.Definitions.Directories = strings.Split(v, ",")
	}
	if v := os.Getenv("BACKOFFICE_SPECS_DIRECTORY"); v != "" {
		cfg.Specs.Directory = v
	}
	if v := os.Getenv("BACKOFFICE_OPTIONS_STORE_DRIVER"); v != "" {
		cfg.Options.Store.Driver = v
	}
	if v := os.Getenv("BACKOFFICE_OBSERVABILITY_LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}
	if v := os.Getenv("BACKOFFICE_OBSERVABILITY_LOG_FILE"); v != "" {
		cfg.Observability.LogFile.Path = v
	}
	if v := os.Getenv("BACKOFFICE_LISTING_DEFAULT_LOCALE"); v != "" {
		cfg.Listing.DefaultLocale = v
	}
}
