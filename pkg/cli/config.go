package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Profile holds connection settings for one quarry host.
type Profile struct {
	Host   string `json:"host,omitempty" yaml:"host,omitempty"`
	APIKey string `json:"api-key,omitempty" yaml:"api-key,omitempty"`
	Token  string `json:"token,omitempty" yaml:"token,omitempty"`
	Output string `json:"output,omitempty" yaml:"output,omitempty"`
}

// UserConfig is the on-disk CLI configuration with named profiles.
type UserConfig struct {
	CurrentProfile string             `json:"current-profile" yaml:"current-profile"`
	Profiles       map[string]Profile `json:"profiles" yaml:"profiles"`
}

// NewUserConfig returns an empty config pointing at the default profile.
func NewUserConfig() *UserConfig {
	return &UserConfig{
		CurrentProfile: "default",
		Profiles:       map[string]Profile{},
	}
}

// ActiveProfile resolves the profile to use. An explicit override must
// exist; the current profile may be absent so a fresh install works with
// flag and environment settings alone.
func (c *UserConfig) ActiveProfile(override string) (Profile, error) {
	if override != "" {
		p, ok := c.Profiles[override]
		if !ok {
			return Profile{}, fmt.Errorf("profile %q not found", override)
		}
		return p, nil
	}
	return c.Profiles[c.CurrentProfile], nil
}

// ConfigDir returns the directory holding the CLI config file.
func ConfigDir() (string, error) {
	if base := os.Getenv("XDG_CONFIG_HOME"); base != "" {
		return filepath.Join(base, "quarry"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".config", "quarry"), nil
}

// ConfigPath returns the full path of the CLI config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// LoadUserConfig reads the config file. A missing file is an error so
// callers can fall back to NewUserConfig.
func LoadUserConfig() (*UserConfig, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := NewUserConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.Profiles == nil {
		cfg.Profiles = map[string]Profile{}
	}
	if cfg.CurrentProfile == "" {
		cfg.CurrentProfile = "default"
	}
	return cfg, nil
}

// SaveUserConfig writes the config file, creating the directory if needed.
// The file holds credentials, so it is not group or world readable.
func SaveUserConfig(cfg *UserConfig) error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
