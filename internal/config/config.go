package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config models taskdeck.yml.
type Config struct {
	Server struct {
		Addr     string `yaml:"addr"`
		BasePath string `yaml:"base_path"`
	} `yaml:"server"`
	Auth struct {
		JWTSecret       string `yaml:"jwt_secret"`
		TokenTTLMinutes int    `yaml:"token_ttl_minutes"`
		DevLogin        bool   `yaml:"dev_login"`
	} `yaml:"auth"`
	Dashboard struct {
		RecentWindow int `yaml:"recent_window"`
	} `yaml:"dashboard"`
	Logging struct {
		Development bool `yaml:"development"`
	} `yaml:"logging"`
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("config.server.addr is required")
	}
	if c.Auth.TokenTTLMinutes < 0 {
		return fmt.Errorf("config.auth.token_ttl_minutes must be >= 0")
	}
	if c.Dashboard.RecentWindow < 0 {
		return fmt.Errorf("config.dashboard.recent_window must be >= 0")
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "taskdeck.yml")
}

// Load reads and validates config from the workspace, falling back to
// defaults when no file exists.
func Load(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the default Config.
func Default() *Config {
	var cfg Config
	_ = yaml.Unmarshal([]byte(defaultTemplate), &cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
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

// TokenTTLMinutesOrDefault returns the configured JWT lifetime.
func (c *Config) TokenTTLMinutesOrDefault() int {
	if c.Auth.TokenTTLMinutes == 0 {
		return 8 * 60
	}
	return c.Auth.TokenTTLMinutes
}

// RecentWindowOrDefault returns the dashboard recent-tasks window size.
func (c *Config) RecentWindowOrDefault() int {
	if c.Dashboard.RecentWindow == 0 {
		return 10
	}
	return c.Dashboard.RecentWindow
}

const defaultTemplate = `server:
  addr: 127.0.0.1:8700
  base_path: /v1

auth:
  jwt_secret: ""
  token_ttl_minutes: 480
  dev_login: false

dashboard:
  recent_window: 10

logging:
  development: false
`
