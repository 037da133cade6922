// Package config loads the daemon configuration from a YAML file, applies
// defaults, and validates the result.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/openfleet/openfleet/pkg/events"
	"github.com/openfleet/openfleet/pkg/fleet"
	"github.com/openfleet/openfleet/pkg/telemetry"
)

// Config is the full daemon configuration.
type Config struct {
	Provider  ProviderConfig   `yaml:"provider" validate:"required"`
	Store     StoreConfig      `yaml:"store"`
	Sweep     SweepConfig      `yaml:"sweep"`
	Events    events.Config    `yaml:"events"`
	Telemetry telemetry.Config `yaml:"telemetry"`

	// Catalog overrides the built-in instance type catalog when non-empty.
	Catalog []fleet.InstanceSpec `yaml:"catalog" validate:"omitempty,dive"`
}

// ProviderConfig configures the cloud provider client.
type ProviderConfig struct {
	// Token is the provider API token. The OPENFLEET_PROVIDER_TOKEN
	// environment variable takes precedence over the file value.
	// Commands that talk to the provider require it; read-only local
	// commands do not.
	Token string `yaml:"token"`

	// Location is the datacenter location new instances are placed in.
	Location string `yaml:"location"`

	// Image is the OS image new instances boot from.
	Image string `yaml:"image"`
}

// StoreConfig configures the SQLite store.
type StoreConfig struct {
	Path string `yaml:"path" validate:"required"`
}

// SweepConfig configures the reconciliation sweeper.
type SweepConfig struct {
	// Interval between sweeps. Zero means the default of 5 minutes.
	Interval Duration `yaml:"interval"`

	// ProviderTimeout bounds each provider call made during a sweep.
	ProviderTimeout Duration `yaml:"provider_timeout"`
}

// Duration wraps time.Duration so YAML values like "5m" parse.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}

	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// tokenEnvVar overrides the provider token from the environment.
const tokenEnvVar = "OPENFLEET_PROVIDER_TOKEN"

// Default returns a configuration with all defaults applied and no
// provider token.
func Default() *Config {
	return &Config{
		Provider: ProviderConfig{
			Location: "nbg1",
			Image:    "ubuntu-24.04",
		},
		Store: StoreConfig{
			Path: "openfleet.db",
		},
		Sweep: SweepConfig{
			Interval:        Duration(5 * time.Minute),
			ProviderTimeout: Duration(30 * time.Second),
		},
		Telemetry: telemetry.DefaultConfig(),
	}
}

// Load reads the configuration file at path, merges it over the defaults,
// applies environment overrides, and validates the result. A missing file
// is not an error; the defaults (plus environment) are returned.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	cfg.applyDefaults()
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Provider.Location == "" {
		c.Provider.Location = "nbg1"
	}
	if c.Provider.Image == "" {
		c.Provider.Image = "ubuntu-24.04"
	}
	if c.Store.Path == "" {
		c.Store.Path = "openfleet.db"
	}
	if c.Sweep.Interval == 0 {
		c.Sweep.Interval = Duration(5 * time.Minute)
	}
	if c.Sweep.ProviderTimeout == 0 {
		c.Sweep.ProviderTimeout = Duration(30 * time.Second)
	}
}

func (c *Config) applyEnv() {
	if token := os.Getenv(tokenEnvVar); token != "" {
		c.Provider.Token = token
	}
}

// Validate checks the configuration for structural errors.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if err := c.Telemetry.Validate(); err != nil {
		return fmt.Errorf("invalid telemetry configuration: %w", err)
	}

	return nil
}

// BuildCatalog returns the instance type catalog: the configured override
// when present, the built-in default otherwise.
func (c *Config) BuildCatalog() *fleet.Catalog {
	if len(c.Catalog) == 0 {
		return fleet.DefaultCatalog()
	}
	return fleet.NewCatalog(c.Catalog)
}
