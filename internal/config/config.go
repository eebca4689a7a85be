// Package config handles YAML and environment configuration for azruntime.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
type Config struct {
	Azure     AzureConfig     `yaml:"azure"`
	Inventory InventoryConfig `yaml:"inventory"`
	Output    OutputConfig    `yaml:"output"`
	OTEL      OTELConfig      `yaml:"otel"`
	Log       LogConfig       `yaml:"log"`
}

// AzureConfig holds Azure access settings.
type AzureConfig struct {
	// Subscriptions restricts the pass to these subscription ids. Empty
	// means every subscription the credential can see.
	Subscriptions []string `yaml:"subscriptions"`
	// Credential is one of "default", "cli" or "browser".
	Credential string `yaml:"credential"`
}

// InventoryConfig holds settings for the inventory pass.
type InventoryConfig struct {
	Concurrency     int           `yaml:"concurrency"`
	QueryRate       float64       `yaml:"query_rate"`
	QueryBurst      int           `yaml:"query_burst"`
	QueryTimeoutStr string        `yaml:"query_timeout"`
	QueryTimeout    time.Duration `yaml:"-"`
	RunningOnly     bool          `yaml:"running_only"`

	// Resource group and location filters; names are case-insensitive.
	ResourceGroups        []string `yaml:"resource_groups"`
	ExcludeResourceGroups []string `yaml:"exclude_resource_groups"`
	Locations             []string `yaml:"locations"`
}

// OutputConfig holds presentation settings.
type OutputConfig struct {
	Format string `yaml:"format"`
	Color  string `yaml:"color"`
}

// OTELConfig holds OpenTelemetry settings.
type OTELConfig struct {
	Endpoint    string        `yaml:"endpoint"`
	Insecure    bool          `yaml:"insecure"`
	ServiceName string        `yaml:"service_name"`
	Traces      TracesConfig  `yaml:"traces"`
	Metrics     MetricsConfig `yaml:"metrics"`
}

// TracesConfig holds tracing settings.
type TracesConfig struct {
	Enabled    bool    `yaml:"enabled"`
	SampleRate float64 `yaml:"sample_rate"`
}

// MetricsConfig holds metrics settings.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	// Textfile, when set, receives the pass metrics in Prometheus text
	// format for the node_exporter textfile collector.
	Textfile string `yaml:"textfile"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"`
}

var (
	validFormats     = []string{"table", "json", "csv"}
	validColors      = []string{"auto", "always", "never"}
	validCredentials = []string{"default", "cli", "browser"}
	validLevels      = []string{"debug", "info", "warn", "error"}
)

// LoadEnvFiles loads .env files into the process environment. Missing files
// are not an error; variables already set win.
func LoadEnvFiles(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load env file %s: %w", p, err)
		}
	}
	return nil
}

// Load reads the YAML file at path, when given, then applies environment
// overrides and defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path) // #nosec G304 -- path is intentional user input
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)

	if err := parseTimeout(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("AZRUNTIME_SUBSCRIPTIONS"); v != "" {
		cfg.Azure.Subscriptions = splitList(v)
	}
	if v := os.Getenv("AZRUNTIME_CREDENTIAL"); v != "" {
		cfg.Azure.Credential = v
	}
	if v := os.Getenv("AZRUNTIME_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid AZRUNTIME_CONCURRENCY: %w", err)
		}
		cfg.Inventory.Concurrency = n
	}
	if v := os.Getenv("AZRUNTIME_RESOURCE_GROUPS"); v != "" {
		cfg.Inventory.ResourceGroups = splitList(v)
	}
	if v := os.Getenv("AZRUNTIME_OUTPUT"); v != "" {
		cfg.Output.Format = v
	}
	if v := os.Getenv("AZRUNTIME_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		cfg.OTEL.Endpoint = v
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Azure.Credential == "" {
		cfg.Azure.Credential = "default"
	}
	if cfg.Inventory.Concurrency == 0 {
		cfg.Inventory.Concurrency = 8
	}
	if cfg.Inventory.QueryRate == 0 {
		cfg.Inventory.QueryRate = 5
	}
	if cfg.Inventory.QueryBurst == 0 {
		cfg.Inventory.QueryBurst = 10
	}
	if cfg.Inventory.QueryTimeoutStr == "" {
		cfg.Inventory.QueryTimeoutStr = "60s"
	}
	if cfg.Output.Format == "" {
		cfg.Output.Format = "table"
	}
	if cfg.Output.Color == "" {
		cfg.Output.Color = "auto"
	}
	if cfg.OTEL.ServiceName == "" {
		cfg.OTEL.ServiceName = "azruntime"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

func parseTimeout(cfg *Config) error {
	d, err := time.ParseDuration(cfg.Inventory.QueryTimeoutStr)
	if err != nil {
		return fmt.Errorf("parse query_timeout %q: %w", cfg.Inventory.QueryTimeoutStr, err)
	}
	cfg.Inventory.QueryTimeout = d
	return nil
}

// Validate checks the configuration is valid.
func (c *Config) Validate() error {
	if !oneOf(validCredentials, c.Azure.Credential) {
		return fmt.Errorf("azure: invalid credential %q (must be one of: %s)",
			c.Azure.Credential, strings.Join(validCredentials, ", "))
	}
	if c.Inventory.Concurrency < 1 {
		return fmt.Errorf("inventory: concurrency must be at least 1 (got %d)", c.Inventory.Concurrency)
	}
	if c.Inventory.QueryRate <= 0 {
		return fmt.Errorf("inventory: query_rate must be positive (got %v)", c.Inventory.QueryRate)
	}
	if c.Inventory.QueryBurst < 1 {
		return fmt.Errorf("inventory: query_burst must be at least 1 (got %d)", c.Inventory.QueryBurst)
	}
	if c.Inventory.QueryTimeout <= 0 {
		return fmt.Errorf("inventory: query_timeout must be positive (got %s)", c.Inventory.QueryTimeout)
	}
	if !oneOf(validFormats, c.Output.Format) {
		return fmt.Errorf("invalid output format: %s (must be one of: %s)",
			c.Output.Format, strings.Join(validFormats, ", "))
	}
	if !oneOf(validColors, c.Output.Color) {
		return fmt.Errorf("invalid color mode: %s (must be one of: %s)",
			c.Output.Color, strings.Join(validColors, ", "))
	}
	if !oneOf(validLevels, c.Log.Level) {
		return fmt.Errorf("log: invalid level %q", c.Log.Level)
	}
	if c.OTEL.Traces.SampleRate < 0.0 || c.OTEL.Traces.SampleRate > 1.0 {
		return fmt.Errorf("otel: traces.sample_rate must be between 0.0 and 1.0 (got %v)", c.OTEL.Traces.SampleRate)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func oneOf(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
