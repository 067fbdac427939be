package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	c := Config{
		Server: ServerConfig{URI: "tcp://0.0.0.0:10300"},
		Models: []ModelConfig{
			{Tag: "en", Name: "nemo-parakeet-tdt-0.6b-v2", Type: BackendTypeStub},
		},
		Recognition: RecognitionConfig{Timeout: 60},
		HTTP:        HTTPConfig{Enabled: true, Address: "127.0.0.1", Port: 9090},
		Logging:     LoggingConfig{Level: "info", Format: "json", Output: "stdout"},
	}
	c.applyDefaults()
	return c
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		expectError bool
		errorMsg    string
	}{
		{
			name:   "valid configuration",
			mutate: func(c *Config) {},
		},
		{
			name:        "empty uri",
			mutate:      func(c *Config) { c.Server.URI = "" },
			expectError: true,
			errorMsg:    "uri cannot be empty",
		},
		{
			name:        "unsupported scheme",
			mutate:      func(c *Config) { c.Server.URI = "udp://0.0.0.0:10300" },
			expectError: true,
			errorMsg:    "unsupported uri scheme",
		},
		{
			name:        "tcp without host",
			mutate:      func(c *Config) { c.Server.URI = "tcp://" },
			expectError: true,
			errorMsg:    "must include host:port",
		},
		{
			name:   "unix socket uri",
			mutate: func(c *Config) { c.Server.URI = "unix:///tmp/asr.sock" },
		},
		{
			name:   "stdio uri",
			mutate: func(c *Config) { c.Server.URI = "stdio://" },
		},
		{
			name:        "no models",
			mutate:      func(c *Config) { c.Models = nil },
			expectError: true,
			errorMsg:    "at least one backend",
		},
		{
			name: "duplicate tags",
			mutate: func(c *Config) {
				c.Models = append(c.Models, ModelConfig{Tag: "en", Type: BackendTypeStub})
			},
			expectError: true,
			errorMsg:    "duplicate tag",
		},
		{
			name: "model without tag",
			mutate: func(c *Config) {
				c.Models = []ModelConfig{{Type: BackendTypeStub}}
			},
			expectError: true,
			errorMsg:    "tag cannot be empty",
		},
		{
			name: "unknown backend type",
			mutate: func(c *Config) {
				c.Models = []ModelConfig{{Tag: "en", Type: "grpc"}}
			},
			expectError: true,
			errorMsg:    "type must be one of",
		},
		{
			name: "command backend without command",
			mutate: func(c *Config) {
				c.Models = []ModelConfig{{Tag: "en", Type: BackendTypeCommand}}
			},
			expectError: true,
			errorMsg:    "requires a command",
		},
		{
			name: "http backend without endpoint",
			mutate: func(c *Config) {
				c.Models = []ModelConfig{{Tag: "en", Type: BackendTypeHTTP}}
			},
			expectError: true,
			errorMsg:    "requires an endpoint",
		},
		{
			name:        "negative recognition timeout",
			mutate:      func(c *Config) { c.Recognition.Timeout = -1 },
			expectError: true,
			errorMsg:    "timeout cannot be negative",
		},
		{
			name:        "invalid http port",
			mutate:      func(c *Config) { c.HTTP.Port = 70000 },
			expectError: true,
			errorMsg:    "http port must be between",
		},
		{
			name:        "invalid log level",
			mutate:      func(c *Config) { c.Logging.Level = "verbose" },
			expectError: true,
			errorMsg:    "level must be one of",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.expectError {
				if err == nil {
					t.Fatal("Expected validation error, got none")
				}
				if !strings.Contains(err.Error(), tt.errorMsg) {
					t.Errorf("Expected error containing %q, got %q", tt.errorMsg, err.Error())
				}
			} else if err != nil {
				t.Errorf("Expected no error, got %v", err)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	content := `
server:
  uri: tcp://127.0.0.1:10300
models:
  - tag: en
    name: nemo-parakeet-tdt-0.6b-v2
    type: stub
  - tag: multi
    name: whisper-large-v3
    type: stub
recognition:
  timeout: 120
logging:
  level: debug
  format: text
  output: stderr
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.URI != "tcp://127.0.0.1:10300" {
		t.Errorf("Unexpected uri: %q", cfg.Server.URI)
	}
	if len(cfg.Models) != 2 {
		t.Fatalf("Expected 2 models, got %d", len(cfg.Models))
	}
	if cfg.Recognition.GetTimeoutDuration() != 2*time.Minute {
		t.Errorf("Expected 2m timeout, got %v", cfg.Recognition.GetTimeoutDuration())
	}

	// Defaults applied to optional model fields.
	if cfg.Models[0].Device != "cpu" {
		t.Errorf("Expected default device cpu, got %q", cfg.Models[0].Device)
	}
	if len(cfg.Models[0].Languages) != 1 || cfg.Models[0].Languages[0] != "en" {
		t.Errorf("Expected languages [en], got %v", cfg.Models[0].Languages)
	}
	if len(cfg.Models[1].Languages) != 1 || cfg.Models[1].Languages[0] != "*" {
		t.Errorf("Expected wildcard languages for multi, got %v", cfg.Models[1].Languages)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for missing file, got none")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("server: ["), 0o644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Expected error for malformed YAML, got none")
	}
}
