// Package config loads and validates the Kodama configuration file.
package config

import (
	"fmt"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"

	"github.com/shizukutanaka/kodama/internal/logging"
	"github.com/shizukutanaka/kodama/internal/yescrypt"
)

// Config is the application configuration.
type Config struct {
	Logging    logging.Config   `yaml:"logging"`
	Mining     MiningConfig     `yaml:"mining"`
	Yescrypt   yescrypt.Params  `yaml:"yescrypt"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
}

// MiningConfig configures the dataset-backed hashing context.
type MiningConfig struct {
	// Key seeds the cache; a pool would rotate it on epoch change.
	Key string `yaml:"key"`
	// Threads is the VM pool size, clamped by the engine to [1, 64].
	Threads int `yaml:"threads"`
}

// MonitoringConfig configures the Prometheus endpoint.
type MonitoringConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ListenAddr string `yaml:"listen_addr"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Logging: logging.DefaultConfig(),
		Mining: MiningConfig{
			Threads: runtime.NumCPU(),
		},
		Yescrypt: yescrypt.DefaultParams(),
		Monitoring: MonitoringConfig{
			Enabled:    false,
			ListenAddr: ":9090",
		},
	}
}

// Load reads a YAML config file over the defaults. An empty path returns the
// defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the engines would reject.
func (c *Config) Validate() error {
	if c.Mining.Threads < 0 {
		return fmt.Errorf("mining.threads must not be negative, got %d", c.Mining.Threads)
	}
	if err := c.Yescrypt.Validate(); err != nil {
		return fmt.Errorf("yescrypt: %w", err)
	}
	if c.Monitoring.Enabled && c.Monitoring.ListenAddr == "" {
		return fmt.Errorf("monitoring.listen_addr required when monitoring is enabled")
	}
	return nil
}
