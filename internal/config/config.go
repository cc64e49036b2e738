package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/altinukshini/pankti/internal/gurbani"
	"github.com/altinukshini/pankti/internal/model"
)

type Config struct {
	ServerURL        string        `yaml:"server_url"`
	Timeout          time.Duration `yaml:"timeout"`
	DefaultMode      model.Mode    `yaml:"default_mode"`
	PassageCacheSize int           `yaml:"passage_cache_size"`
	LogLevel         string        `yaml:"log_level"`
	LogFile          string        `yaml:"log_file"`
}

func DefaultConfig() Config {
	return Config{
		ServerURL:        gurbani.DefaultBaseURL,
		Timeout:          10 * time.Second,
		DefaultMode:      model.ModeText,
		PassageCacheSize: 64,
		LogLevel:         "info",
		LogFile:          DefaultLogFile(),
	}
}

// DefaultPath returns the config file path under XDG_CONFIG_HOME.
func DefaultPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, _ := os.UserHomeDir()
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "pankti", "config.yaml")
}

// DefaultLogFile returns the log path under XDG_STATE_HOME.
func DefaultLogFile() string {
	stateHome := os.Getenv("XDG_STATE_HOME")
	if stateHome == "" {
		home, _ := os.UserHomeDir()
		stateHome = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(stateHome, "pankti", "pankti.log")
}

// Load reads the YAML file at path over the defaults. A missing file is
// not an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// applyDefaults fills fields a config file left empty.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()
	if c.ServerURL == "" {
		c.ServerURL = defaults.ServerURL
	}
	if c.Timeout == 0 {
		c.Timeout = defaults.Timeout
	}
	if c.DefaultMode == "" {
		c.DefaultMode = defaults.DefaultMode
	}
	if c.LogLevel == "" {
		c.LogLevel = defaults.LogLevel
	}
	if c.LogFile == "" {
		c.LogFile = defaults.LogFile
	}
}

func (c Config) Validate() error {
	var errs []error
	if _, err := gurbani.ParseBaseURL(c.ServerURL); err != nil {
		errs = append(errs, err)
	}
	if c.Timeout < 0 {
		errs = append(errs, fmt.Errorf("timeout must not be negative, got %s", c.Timeout))
	}
	if !c.DefaultMode.Valid() {
		errs = append(errs, fmt.Errorf("default_mode %q must be text, fuzzy or first_each_word", c.DefaultMode))
	}
	if c.PassageCacheSize < 0 {
		errs = append(errs, fmt.Errorf("passage_cache_size must not be negative, got %d", c.PassageCacheSize))
	}
	return errors.Join(errs...)
}
