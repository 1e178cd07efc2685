package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "cilaos.yaml")

	tests := []struct {
		name          string
		setup         func()
		validate      func(*testing.T, *Config)
		checkFile     func(*testing.T)
		expectedError bool
	}{
		{
			name:  "NewFile_Defaults",
			setup: func() {},
			validate: func(t *testing.T, cfg *Config) {
				if cfg.Routing.Provider != "osrm" {
					t.Errorf("expected default routing provider 'osrm', got '%s'", cfg.Routing.Provider)
				}
				if len(cfg.Narrative.Segments) != 4 {
					t.Errorf("expected 4 default segments, got %d", len(cfg.Narrative.Segments))
				}
				if time.Duration(cfg.Narrative.POIStagger) != 100*time.Millisecond {
					t.Errorf("expected POI stagger 100ms, got %v", time.Duration(cfg.Narrative.POIStagger))
				}
			},
			checkFile: func(t *testing.T) {
				content, err := os.ReadFile(configPath)
				if err != nil {
					t.Fatalf("failed to read config file: %v", err)
				}
				if !strings.Contains(string(content), "provider: osrm") {
					t.Error("config file missing default values")
				}
				if !strings.Contains(string(content), "# Options: none, pois, office") {
					t.Error("config file missing reveal options comment")
				}
			},
		},
		{
			name: "ExistingFile_Override",
			setup: func() {
				err := os.WriteFile(configPath, []byte("routing:\n  provider: none\nnarrative:\n  settle_delay: 2s\n"), 0o644)
				if err != nil {
					t.Fatalf("failed to setup test file: %v", err)
				}
			},
			validate: func(t *testing.T, cfg *Config) {
				if cfg.Routing.Provider != "none" {
					t.Errorf("expected provider 'none', got '%s'", cfg.Routing.Provider)
				}
				if time.Duration(cfg.Narrative.SettleDelay) != 2*time.Second {
					t.Errorf("expected settle delay 2s, got %v", time.Duration(cfg.Narrative.SettleDelay))
				}
				// Untouched sections keep their defaults
				if cfg.Auth.User != "mayza" {
					t.Errorf("expected default user, got '%s'", cfg.Auth.User)
				}
			},
			checkFile: func(t *testing.T) {
				content, err := os.ReadFile(configPath)
				if err != nil {
					t.Fatalf("failed to read config file: %v", err)
				}
				if strings.Contains(string(content), "auth:") {
					t.Error("existing config file should not be rewritten")
				}
			},
		},
		{
			name: "Password_Env_Override",
			setup: func() {
				t.Setenv("CILAOS_ADMIN_PASSWORD", "env_secret")
				err := os.WriteFile(configPath, []byte("auth:\n  password: \"\"\n"), 0o644)
				if err != nil {
					t.Fatalf("failed to setup test file: %v", err)
				}
			},
			validate: func(t *testing.T, cfg *Config) {
				if cfg.Auth.Password != "env_secret" {
					t.Errorf("expected password from env, got '%s'", cfg.Auth.Password)
				}
			},
			checkFile: func(t *testing.T) {
				content, err := os.ReadFile(configPath)
				if err != nil {
					t.Fatalf("failed to read config file: %v", err)
				}
				if strings.Contains(string(content), "env_secret") {
					t.Error("environment secret should NOT be persisted to config file")
				}
			},
		},
		{
			name: "Path_Env_Expansion",
			setup: func() {
				t.Setenv("CILAOS_HOME", "/srv/cilaos")
				err := os.WriteFile(configPath, []byte("db:\n  path: \"$CILAOS_HOME/db.sqlite\"\n"), 0o644)
				if err != nil {
					t.Fatalf("failed to setup test file: %v", err)
				}
			},
			validate: func(t *testing.T, cfg *Config) {
				if cfg.DB.Path != "/srv/cilaos/db.sqlite" {
					t.Errorf("expected expanded DB path, got '%s'", cfg.DB.Path)
				}
			},
		},
		{
			name: "Invalid_YAML",
			setup: func() {
				err := os.WriteFile(configPath, []byte("narrative: [not a map]"), 0o644)
				if err != nil {
					t.Fatalf("failed to setup test file: %v", err)
				}
			},
			expectedError: true,
		},
		{
			name: "Invalid_Breakpoints",
			setup: func() {
				err := os.WriteFile(configPath, []byte("narrative:\n  breakpoints: [0.5, 0.4, 0.6]\n"), 0o644)
				if err != nil {
					t.Fatalf("failed to setup test file: %v", err)
				}
			},
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_ = os.Remove(configPath)
			tt.setup()

			cfg, err := Load(configPath)
			if (err != nil) != tt.expectedError {
				t.Fatalf("Load() error = %v, expectedError %v", err, tt.expectedError)
			}
			if tt.expectedError {
				return
			}
			if tt.validate != nil {
				tt.validate(t, cfg)
			}
			if tt.checkFile != nil {
				tt.checkFile(t)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "Defaults",
			mutate: func(*Config) {},
		},
		{
			name: "RevealBeforeCameraSettles",
			mutate: func(c *Config) {
				c.Narrative.Segments[2].RevealDelay = Duration(1200 * time.Millisecond)
			},
			wantErr: "shorter than camera duration",
		},
		{
			name: "OfficeNotLaterThanPOIs",
			mutate: func(c *Config) {
				c.Narrative.Segments[3].Camera.Duration = Duration(1 * time.Second)
				c.Narrative.Segments[3].RevealDelay = Duration(1500 * time.Millisecond)
			},
			wantErr: "must exceed POI reveal_delay",
		},
		{
			name: "NoActivationBand",
			mutate: func(c *Config) {
				c.Narrative.Band = BandConfig{Top: 0.5, Bottom: 0.5}
			},
			wantErr: "leave no activation band",
		},
		{
			name: "UnknownReveal",
			mutate: func(c *Config) {
				c.Narrative.Segments[0].Reveal = "fireworks"
			},
			wantErr: "unknown reveal",
		},
		{
			name: "SegmentOutOfRange",
			mutate: func(c *Config) {
				c.Narrative.Segments[0].ID = 7
			},
			wantErr: "outside 1..4",
		},
		{
			name: "UnknownProvider",
			mutate: func(c *Config) {
				c.Routing.Provider = "valhalla"
			},
			wantErr: "unknown provider",
		},
		{
			name: "RetriedRouteFetch",
			mutate: func(c *Config) {
				c.Request.Retries = 3
			},
			wantErr: "single attempt",
		},
		{
			name: "RetriesWithoutRouting",
			mutate: func(c *Config) {
				c.Routing.Provider = "none"
				c.Request.Retries = 3
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}
