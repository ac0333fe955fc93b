// Package config loads the application configuration from an optional YAML
// file with environment variable overrides. Configuration is static for the
// process lifetime.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Defaults applied when neither the config file nor the environment provides
// a value. The client id fallback matches the registered desktop application.
const (
	DefaultClientID    = "a53c8535d69c4f0d9109b007bf10ca2d"
	DefaultRedirectURI = "http://127.0.0.1:8888/callback"
	DefaultManageAddr  = "127.0.0.1:9866"
)

// defaultScopes covers playback, library, and profile access for the desktop client.
var defaultScopes = []string{
	"user-read-private",
	"user-read-email",
	"user-read-playback-state",
	"user-modify-playback-state",
	"user-read-currently-playing",
	"user-library-read",
	"user-library-modify",
	"playlist-read-private",
	"playlist-read-collaborative",
	"playlist-modify-public",
	"playlist-modify-private",
	"user-read-recently-played",
	"user-top-read",
	"user-follow-read",
	"user-follow-modify",
	"streaming",
}

// Config holds the process-wide settings. YAML keys map the config file;
// env tags define the override variables.
type Config struct {
	// ClientID is the OAuth client identifier for the Spotify application.
	ClientID string `yaml:"client-id" env:"SPOTIFY_CLIENT_ID"`

	// RedirectURI is the registered loopback redirect endpoint. Its host and
	// port determine where the callback listener binds.
	RedirectURI string `yaml:"redirect-uri" env:"SPOTIFY_REDIRECT_URI"`

	// Scopes are the authorization scopes requested on login.
	Scopes []string `yaml:"scopes" env:"SPOTIFY_SCOPES" envSeparator:","`

	// DataDir overrides the OS-standard directory for the credential file.
	DataDir string `yaml:"data-dir" env:"SPOTIFY_DATA_DIR"`

	// ManagementAddr is the bind address of the local management API.
	ManagementAddr string `yaml:"management-addr" env:"SPOTIFY_MANAGEMENT_ADDR"`

	// LoggingToFile enables rotated file logging next to the credential data.
	LoggingToFile bool `yaml:"logging-to-file" env:"SPOTIFY_LOG_TO_FILE"`
}

// DefaultConfig returns a configuration populated with the fixed fallbacks.
func DefaultConfig() *Config {
	scopes := make([]string, len(defaultScopes))
	copy(scopes, defaultScopes)
	return &Config{
		ClientID:       DefaultClientID,
		RedirectURI:    DefaultRedirectURI,
		Scopes:         scopes,
		ManagementAddr: DefaultManageAddr,
	}
}

// Load builds the configuration: fixed defaults, then the YAML file at path
// (if it exists), then environment overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err = yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if cfg.RedirectURI == "" {
		cfg.RedirectURI = DefaultRedirectURI
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = append(cfg.Scopes, defaultScopes...)
	}
	if cfg.ManagementAddr == "" {
		cfg.ManagementAddr = DefaultManageAddr
	}

	return cfg, nil
}

// CallbackHostPort extracts the bind address for the callback listener from
// the redirect URI.
func (c *Config) CallbackHostPort() (string, int, error) {
	parsed, err := url.Parse(c.RedirectURI)
	if err != nil {
		return "", 0, fmt.Errorf("invalid redirect URI %q: %w", c.RedirectURI, err)
	}
	host := parsed.Hostname()
	if host == "" {
		return "", 0, fmt.Errorf("redirect URI %q has no host", c.RedirectURI)
	}
	portText := parsed.Port()
	if portText == "" {
		return "", 0, fmt.Errorf("redirect URI %q has no port", c.RedirectURI)
	}
	port, err := strconv.Atoi(portText)
	if err != nil {
		return "", 0, fmt.Errorf("redirect URI %q has invalid port: %w", c.RedirectURI, err)
	}
	return host, port, nil
}
