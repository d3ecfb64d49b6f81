// Package config loads the program configuration from YAML files and
// the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

// Config contains the program configuration.
type Config struct {
	OutputDir            string `yaml:"output_dir"`
	CompatibilityMode    bool   `yaml:"compatibility_mode"`
	EnableMetadata       bool   `yaml:"metadata"`
	EnableFingerprinting bool   `yaml:"fingerprinting"`
	AcoustIDAPIKey       string `yaml:"acoustid_api_key"`
	LastfmAPIKey         string `yaml:"lastfm_api_key"`
	Verbose              bool   `yaml:"verbose"`
	DryRun               bool   `yaml:"dry_run"`
	LogFile              string `yaml:"log_file"`
	ListenAddr           string `yaml:"listen_addr"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		OutputDir:            "FLAC CONVERTER 2",
		EnableMetadata:       true,
		EnableFingerprinting: true,
		ListenAddr:           ":8080",
	}
}

// LoadConfigFile loads configuration from a YAML file. If path is
// empty, standard locations are searched. Missing files yield the
// defaults. API keys absent from the file fall back to the
// ACOUSTID_API_KEY and LASTFM_API_KEY environment variables.
func LoadConfigFile(path string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = FindConfigFile()
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("failed to read config file %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if cfg.AcoustIDAPIKey == "" {
		cfg.AcoustIDAPIKey = os.Getenv("ACOUSTID_API_KEY")
	}
	if cfg.LastfmAPIKey == "" {
		cfg.LastfmAPIKey = os.Getenv("LASTFM_API_KEY")
	}

	cfg.OutputDir = ExpandHome(cfg.OutputDir)
	cfg.LogFile = ExpandHome(cfg.LogFile)

	return cfg, nil
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(xdg.Home, path[2:])
	}
	return path
}

// FindConfigFile searches for a config file in standard locations.
func FindConfigFile() string {
	locations := []string{
		"./flacify.yaml",
		"./flacify.yml",
		filepath.Join(xdg.ConfigHome, "flacify", "config.yaml"),
		filepath.Join(xdg.ConfigHome, "flacify", "config.yml"),
		filepath.Join(xdg.Home, ".flacify.yaml"),
		filepath.Join(xdg.Home, ".flacify.yml"),
	}

	for _, path := range locations {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// SaveConfigFile writes the configuration to a YAML file.
func SaveConfigFile(cfg Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GetDefaultConfigPath returns the default config file path.
func GetDefaultConfigPath() string {
	return filepath.Join(xdg.ConfigHome, "flacify", "config.yaml")
}

// GetDefaultLogPath returns the default log directory path.
func GetDefaultLogPath() string {
	return filepath.Join(xdg.DataHome, "flacify", "logs")
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.OutputDir == "" {
		return fmt.Errorf("output_dir cannot be empty")
	}
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr cannot be empty")
	}
	return nil
}
