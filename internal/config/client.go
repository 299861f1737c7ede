package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultClientFile is the config file name under the user's home directory.
const DefaultClientFile = ".devchat.yaml"

// Client is what cmd/devchat persists between runs.
type Client struct {
	Server   string        `yaml:"server"`
	Token    string        `yaml:"token,omitempty"`
	Username string        `yaml:"username,omitempty"`
	Resync   time.Duration `yaml:"resync,omitempty"`
}

// DefaultClientPath returns ~/.devchat.yaml.
func DefaultClientPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locate home dir: %w", err)
	}
	return filepath.Join(home, DefaultClientFile), nil
}

// LoadClient reads path. A missing file yields the defaults.
func LoadClient(path string) (Client, error) {
	cfg := Client{Server: "http://localhost:8080", Resync: 30 * time.Second}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	if cfg.Resync <= 0 {
		cfg.Resync = 30 * time.Second
	}
	return cfg, nil
}

// Save writes the config with owner-only permissions since it holds a token.
func (c Client) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
