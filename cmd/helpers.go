package cmd

import (
	"fmt"
	"os"

	"spotify-mcp/internal/config"
	"spotify-mcp/internal/oauth"
)

// Flags shared by commands that need a Spotify session.
var (
	clientID     string
	configPath   string
	callbackPort int
)

// loadConfig resolves the configuration directory and loads config.yaml,
// applying flag and environment overrides.
func loadConfig() (config.Config, error) {
	path := configPath
	if path == "" {
		defaultPath, err := config.GetDefaultConfigPath()
		if err != nil {
			return config.Config{}, err
		}
		path = defaultPath
	}

	cfg, err := config.LoadConfig(path)
	if err != nil {
		return config.Config{}, err
	}

	// Flag beats environment beats file.
	if clientID != "" {
		cfg.ClientID = clientID
	} else if envID := os.Getenv("SPOTIFY_CLIENT_ID"); envID != "" && cfg.ClientID == "" {
		cfg.ClientID = envID
	}

	if callbackPort != 0 {
		cfg.CallbackPort = callbackPort
	}

	if cfg.ClientID == "" {
		return config.Config{}, fmt.Errorf("no Spotify client ID configured: set clientID in %s/config.yaml, pass --client-id, or export SPOTIFY_CLIENT_ID", path)
	}

	return cfg, nil
}

// newAuthenticator builds the authenticator from the resolved configuration.
func newAuthenticator(cfg config.Config) (*oauth.Authenticator, error) {
	return oauth.NewAuthenticator(oauth.Config{
		ClientID:        cfg.ClientID,
		Scopes:          cfg.Scopes,
		CallbackPort:    cfg.CallbackPort,
		CacheDir:        cfg.CacheDir,
		CallbackTimeout: cfg.CallbackTimeoutDuration(),
	})
}
