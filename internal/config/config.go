package config

import (
	"fmt"
	"os"
	"time"

	config_pkg "github.com/kumarabd/gokit/config"
	"github.com/kumarabd/ingestion-plane/logcontract/internal/metrics"
	"github.com/kumarabd/ingestion-plane/logcontract/pkg/contract"
	"github.com/kumarabd/ingestion-plane/logcontract/pkg/server"
	"github.com/kumarabd/ingestion-plane/logcontract/pkg/source"
)

var (
	ApplicationName    = "logcontract"
	ApplicationVersion = "dev"
)

// EnvLogPath names the file or directory of log lines to check
const EnvLogPath = "LOG"

// Mode selects what the process does
type Mode string

const (
	// ModeCheck checks the configured source once and exits
	ModeCheck Mode = "check"
	// ModeServe serves checks over HTTP
	ModeServe Mode = "serve"
)

type Config struct {
	Mode     Mode             `json:"mode" yaml:"mode" default:"check"`
	Contract *contract.Config `json:"contract" yaml:"contract"`
	Source   *source.Config   `json:"source" yaml:"source"`
	Server   *server.Config   `json:"server,omitempty" yaml:"server,omitempty"`
	Metrics  *metrics.Options `json:"metrics,omitempty" yaml:"metrics,omitempty"`
}

// Default returns the configuration used before any overrides are loaded
func Default() *Config {
	return &Config{
		Mode:     ModeCheck,
		Contract: contract.DefaultConfig(),
		Source: &source.Config{
			Suffix: ".log",
		},
		Server: &server.Config{
			HTTP: &server.HTTPConfig{
				Host:         "0.0.0.0",
				Port:         "8080",
				ReadTimeout:  30 * time.Second,
				WriteTimeout: 30 * time.Second,
				IdleTimeout:  60 * time.Second,
				MaxBodyBytes: 10485760, // 10MB
			},
		},
		Metrics: &metrics.Options{},
	}
}

// New creates a new config instance
func New() (*Config, error) {
	configObject := Default()

	// Load config using gokit config package
	finalConfig, err := config_pkg.New(configObject)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Safe type assertion
	if finalConfig == nil {
		return nil, fmt.Errorf("config is nil")
	}

	cfg, ok := finalConfig.(*Config)
	if !ok {
		return nil, fmt.Errorf("config type assertion failed: expected *Config, got %T", finalConfig)
	}

	cfg.applyEnvironment(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// applyEnvironment overrides the source path from the LOG variable
func (c *Config) applyEnvironment(lookup func(string) (string, bool)) {
	path, ok := lookup(EnvLogPath)
	if !ok || path == "" {
		return
	}
	if c.Source == nil {
		c.Source = &source.Config{Suffix: ".log"}
	}
	c.Source.Path = path
}

// Validate checks the configuration for the selected mode
func (c *Config) Validate() error {
	if c.Contract == nil {
		return fmt.Errorf("contract config cannot be nil")
	}
	if err := c.Contract.Validate(); err != nil {
		return fmt.Errorf("contract: %w", err)
	}

	switch c.Mode {
	case ModeCheck:
		if c.Source == nil || c.Source.Path == "" {
			return fmt.Errorf("check mode needs a source path, set %s or source.path", EnvLogPath)
		}
	case ModeServe:
		if c.Server == nil || c.Server.HTTP == nil {
			return fmt.Errorf("serve mode needs server.http")
		}
	default:
		return fmt.Errorf("unknown mode %q, must be %q or %q", c.Mode, ModeCheck, ModeServe)
	}
	return nil
}
