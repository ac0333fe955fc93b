package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.ClientID != DefaultClientID {
		t.Errorf("ClientID = %q, want %q", cfg.ClientID, DefaultClientID)
	}
	if cfg.RedirectURI != DefaultRedirectURI {
		t.Errorf("RedirectURI = %q, want %q", cfg.RedirectURI, DefaultRedirectURI)
	}
	if cfg.ManagementAddr != DefaultManageAddr {
		t.Errorf("ManagementAddr = %q, want %q", cfg.ManagementAddr, DefaultManageAddr)
	}
	if len(cfg.Scopes) == 0 {
		t.Error("default scopes are empty")
	}

	found := false
	for _, scope := range cfg.Scopes {
		if scope == "streaming" {
			found = true
			break
		}
	}
	if !found {
		t.Error("default scopes lack streaming")
	}
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load with a missing file failed: %v", err)
	}
	if cfg.ClientID != DefaultClientID {
		t.Errorf("ClientID = %q, want the default", cfg.ClientID)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "client-id: \"yaml-client\"\nredirect-uri: \"http://127.0.0.1:9999/callback\"\nlogging-to-file: true\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.ClientID != "yaml-client" {
		t.Errorf("ClientID = %q, want yaml-client", cfg.ClientID)
	}
	if cfg.RedirectURI != "http://127.0.0.1:9999/callback" {
		t.Errorf("RedirectURI = %q, want the file value", cfg.RedirectURI)
	}
	if !cfg.LoggingToFile {
		t.Error("LoggingToFile = false, want true from the file")
	}
	if cfg.ManagementAddr != DefaultManageAddr {
		t.Errorf("ManagementAddr = %q, want the default preserved", cfg.ManagementAddr)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("client-id: \"yaml-client\"\n"), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	t.Setenv("SPOTIFY_CLIENT_ID", "env-client")
	t.Setenv("SPOTIFY_SCOPES", "streaming,user-read-private")
	t.Setenv("SPOTIFY_MANAGEMENT_ADDR", "127.0.0.1:9999")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.ClientID != "env-client" {
		t.Errorf("ClientID = %q, want the environment to win over the file", cfg.ClientID)
	}
	if len(cfg.Scopes) != 2 || cfg.Scopes[0] != "streaming" || cfg.Scopes[1] != "user-read-private" {
		t.Errorf("Scopes = %v, want the comma-separated environment list", cfg.Scopes)
	}
	if cfg.ManagementAddr != "127.0.0.1:9999" {
		t.Errorf("ManagementAddr = %q, want the environment value", cfg.ManagementAddr)
	}
}

func TestCallbackHostPort(t *testing.T) {
	tests := []struct {
		name        string
		redirectURI string
		wantHost    string
		wantPort    int
		wantErr     bool
	}{
		{"Default loopback", "http://127.0.0.1:8888/callback", "127.0.0.1", 8888, false},
		{"Localhost name", "http://localhost:9000/callback", "localhost", 9000, false},
		{"No port", "http://127.0.0.1/callback", "", 0, true},
		{"No host", "http://:8888/callback", "", 0, true},
		{"Garbage", "not a url at\nall", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.RedirectURI = tt.redirectURI

			host, port, err := cfg.CallbackHostPort()
			if tt.wantErr {
				if err == nil {
					t.Fatalf("CallbackHostPort() = %q:%d, want error", host, port)
				}
				return
			}
			if err != nil {
				t.Fatalf("CallbackHostPort failed: %v", err)
			}
			if host != tt.wantHost || port != tt.wantPort {
				t.Errorf("CallbackHostPort() = %q:%d, want %q:%d", host, port, tt.wantHost, tt.wantPort)
			}
		})
	}
}
