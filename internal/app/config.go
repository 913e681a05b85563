package app

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/specialistvlad/pipegrid/internal/runcontext"
)

// EnvPrefix prefixes every environment variable read into Config.
const EnvPrefix = "PIPEGRID_"

// Audit backends.
const (
	AuditNone  = "none"
	AuditFile  = "file"
	AuditRedis = "redis"
)

// Config holds all the necessary configuration for an App instance to run.
// Defaults come from PIPEGRID_* variables; CLI flags override them.
type Config struct {
	// DescriptorPath is an .hcl file or directory, or a single .yaml, .yml,
	// .json or .jsonc file.
	DescriptorPath string `env:"DESCRIPTOR"`

	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`

	Workers        int           `env:"WORKERS" envDefault:"4"`
	FailFast       bool          `env:"FAIL_FAST"`
	DefaultTimeout time.Duration `env:"DEFAULT_TIMEOUT"`
	WorkDir        string        `env:"WORK_DIR"`
	LogDir         string        `env:"LOG_DIR"`
	RunID          string        `env:"RUN_ID"`

	// HealthcheckPort serves /health, /metrics and /status. 0 disables it.
	HealthcheckPort int `env:"HEALTHCHECK_PORT" envDefault:"0"`

	AuditBackend string        `env:"AUDIT_BACKEND" envDefault:"none"`
	AuditPath    string        `env:"AUDIT_PATH" envDefault:"pipegrid-audit.cbor"`
	RedisURL     string        `env:"REDIS_URL"`
	AuditTTL     time.Duration `env:"AUDIT_TTL" envDefault:"720h"`

	NotifyURL       string `env:"NOTIFY_URL"`
	NotifyNamespace string `env:"NOTIFY_NAMESPACE" envDefault:"/"`
	NotifyVerbose   bool   `env:"NOTIFY_VERBOSE"`

	Trigger runcontext.Trigger
	// Env overlays the pipeline env. Only set from flags.
	Env map[string]string
}

// LoadConfig reads defaults from the environment. A nil environ means the
// process environment.
func LoadConfig(environ map[string]string) (*Config, error) {
	cfg := &Config{}
	opts := env.Options{Prefix: EnvPrefix}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

var (
	validLogLevels  = []string{"debug", "info", "warn", "error"}
	validLogFormats = []string{"text", "json"}
	validBackends   = []string{AuditNone, AuditFile, AuditRedis}
)

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.DescriptorPath == "" {
		return errors.New("descriptor path is required")
	}
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}
	if !slices.Contains(validLogFormats, c.LogFormat) {
		return fmt.Errorf("invalid log format: %s (must be text or json)", c.LogFormat)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.DefaultTimeout < 0 {
		return fmt.Errorf("default timeout must not be negative, got %s", c.DefaultTimeout)
	}
	if c.HealthcheckPort < 0 || c.HealthcheckPort > 65535 {
		return fmt.Errorf("invalid healthcheck port: %d", c.HealthcheckPort)
	}
	if !slices.Contains(validBackends, c.AuditBackend) {
		return fmt.Errorf("invalid audit backend: %s (must be none, file, or redis)", c.AuditBackend)
	}
	if c.AuditBackend == AuditFile && c.AuditPath == "" {
		return errors.New("audit path is required for the file audit backend")
	}
	if c.AuditBackend == AuditRedis && c.RedisURL == "" {
		return errors.New("redis URL is required for the redis audit backend")
	}
	return nil
}
