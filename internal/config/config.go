// Package config loads the spotify-mcp configuration file.
//
// Configuration lives in a single YAML file under the per-user application
// directory (~/.spotify-mcp/config.yaml). Values from the file are merged
// over built-in defaults; a missing file is not an error.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	userConfigDir  = ".spotify-mcp"
	configFileName = "config.yaml"
)

// DefaultScopes is the set of Spotify scopes requested when the config file
// does not narrow them down. It covers every tool the server exposes.
var DefaultScopes = []string{
	"user-read-private",
	"user-read-email",
	"user-library-read",
	"user-library-modify",
	"playlist-read-private",
	"playlist-read-collaborative",
	"playlist-modify-public",
	"playlist-modify-private",
	"user-top-read",
	"user-read-recently-played",
	"user-read-playback-state",
	"user-modify-playback-state",
	"user-read-currently-playing",
}

// Config is the top-level configuration for spotify-mcp.
type Config struct {
	// ClientID is the Spotify application client ID from
	// https://developer.spotify.com/dashboard.
	ClientID string `yaml:"clientID,omitempty"`

	// CallbackPort is the loopback port for the OAuth redirect
	// (default: 8888). The redirect URI registered with Spotify must be
	// http://127.0.0.1:<port>/callback.
	CallbackPort int `yaml:"callbackPort,omitempty"`

	// CacheDir is the directory holding the token cache
	// (default: ~/.spotify-mcp).
	CacheDir string `yaml:"cacheDir,omitempty"`

	// Scopes narrows the requested Spotify API scopes.
	Scopes []string `yaml:"scopes,omitempty"`

	// CallbackTimeout bounds the wait for the browser redirect, as a Go
	// duration string such as "5m" (default: 5m).
	CallbackTimeout string `yaml:"callbackTimeout,omitempty"`
}

// CallbackTimeoutDuration parses CallbackTimeout. It returns zero when the
// value is unset or malformed, letting the authenticator apply its default.
func (c Config) CallbackTimeoutDuration() time.Duration {
	if c.CallbackTimeout == "" {
		return 0
	}
	d, err := time.ParseDuration(c.CallbackTimeout)
	if err != nil {
		slog.Warn("Invalid callbackTimeout in config, using default",
			"value", c.CallbackTimeout,
			"error", err.Error(),
		)
		return 0
	}
	return d
}

// GetDefaultConfigPath returns the per-user configuration directory.
func GetDefaultConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine user config directory: %w", err)
	}
	return filepath.Join(homeDir, userConfigDir), nil
}

// GetDefaultConfig returns the built-in defaults.
func GetDefaultConfig() Config {
	return Config{
		CallbackPort: 8888,
		Scopes:       DefaultScopes,
	}
}

// LoadConfig loads configuration from the specified directory, merging the
// file over the defaults. An absent config.yaml yields the defaults; a
// malformed one is an error.
func LoadConfig(configPath string) (Config, error) {
	configFilePath := filepath.Join(configPath, configFileName)
	config := GetDefaultConfig()

	data, err := os.ReadFile(configFilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			slog.Debug("No config.yaml found, using defaults",
				"path", configFilePath,
			)
			return config, nil
		}
		return Config{}, fmt.Errorf("error reading config from %s: %w", configFilePath, err)
	}

	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("error loading config from %s: %w", configFilePath, err)
	}

	if len(config.Scopes) == 0 {
		config.Scopes = DefaultScopes
	}

	slog.Debug("Loaded configuration",
		"path", configFilePath,
	)
	return config, nil
}
