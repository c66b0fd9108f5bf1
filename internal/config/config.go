package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config models choreline.yml.
type Config struct {
	Server struct {
		Listen   string `yaml:"listen"`
		BasePath string `yaml:"base_path"`
	} `yaml:"server"`
	Redis struct {
		Addr    string `yaml:"addr"`
		Channel string `yaml:"channel"`
	} `yaml:"redis"`
	Daemon struct {
		Sleep   int    `yaml:"sleep"`
		API     string `yaml:"api"`
		Timeout int    `yaml:"timeout"`
	} `yaml:"daemon"`
}

// Load reads and validates config from workspace, falling back to
// defaults when the file does not exist.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Server.Listen == "" {
		return fmt.Errorf("config.server.listen is required")
	}
	if c.Daemon.Sleep <= 0 {
		return fmt.Errorf("config.daemon.sleep must be positive")
	}
	if c.Daemon.API == "" {
		return fmt.Errorf("config.daemon.api is required")
	}
	if c.Daemon.Timeout <= 0 {
		return fmt.Errorf("config.daemon.timeout must be positive")
	}
	if c.Redis.Addr != "" && c.Redis.Channel == "" {
		return fmt.Errorf("config.redis.channel is required when redis.addr is set")
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "choreline.yml")
}

// Default returns the built-in configuration. Redis stays off until an
// address is configured.
func Default() *Config {
	var cfg Config
	cfg.Server.Listen = ":8080"
	cfg.Server.BasePath = "/"
	cfg.Redis.Channel = "chore"
	cfg.Daemon.Sleep = 30
	cfg.Daemon.API = "http://localhost:8080"
	cfg.Daemon.Timeout = 10
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes. Missing
// fields take their defaults.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}
