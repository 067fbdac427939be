package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Backend loader types.
const (
	BackendTypeStub    = "stub"
	BackendTypeCommand = "command"
	BackendTypeHTTP    = "http"
)

// Config represents the complete service configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Models      []ModelConfig     `yaml:"models"`
	Recognition RecognitionConfig `yaml:"recognition"`
	HTTP        HTTPConfig        `yaml:"http"`
	Discovery   DiscoveryConfig   `yaml:"discovery"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// ServerConfig contains the protocol listener configuration.
type ServerConfig struct {
	// URI selects the transport: tcp://host:port, unix:///path, or stdio://
	URI string `yaml:"uri"`
}

// ModelConfig describes one recognition backend to load at startup.
type ModelConfig struct {
	// Tag is the language tag the backend is registered under ("en",
	// "multi", ...).
	Tag         string `yaml:"tag"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	// Type selects the backend loader: stub, command, or http.
	Type string `yaml:"type"`
	// Device is the compute profile requested from the loader ("cpu",
	// "gpu", ...).
	Device string `yaml:"device"`
	// Languages lists supported language tags for the capability
	// descriptor; ["*"] marks a multilingual backend. Defaults to [Tag].
	Languages []string `yaml:"languages"`
	Version   string   `yaml:"version"`

	// Command backend: executable invoked per utterance with WAV on stdin.
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`

	// HTTP backend: remote transcription endpoint.
	Endpoint   string `yaml:"endpoint"`
	APIKey     string `yaml:"api_key"`
	MaxRetries int    `yaml:"max_retries"`

	// Stub backend: fixed transcript returned for every utterance.
	Transcript string `yaml:"transcript"`
}

// RecognitionConfig bounds a single recognition call.
type RecognitionConfig struct {
	Timeout int `yaml:"timeout"` // seconds; 0 disables the deadline
}

// HTTPConfig contains the monitoring HTTP server configuration.
type HTTPConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
}

// DiscoveryConfig controls mDNS announcement of the TCP listener.
type DiscoveryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Name    string `yaml:"name"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads and parses the configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// applyDefaults fills in optional fields before validation.
func (c *Config) applyDefaults() {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stderr"
	}
	for i := range c.Models {
		m := &c.Models[i]
		if m.Device == "" {
			m.Device = "cpu"
		}
		if m.Name == "" {
			m.Name = m.Tag
		}
		if len(m.Languages) == 0 && m.Tag != "" {
			if m.Tag == "multi" {
				m.Languages = []string{"*"}
			} else {
				m.Languages = []string{m.Tag}
			}
		}
		if m.Version == "" {
			m.Version = "0.1"
		}
	}
}

// Validate performs comprehensive validation of the configuration.
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if len(c.Models) == 0 {
		return fmt.Errorf("models: at least one backend must be configured")
	}
	seen := make(map[string]bool, len(c.Models))
	for i := range c.Models {
		if err := c.Models[i].Validate(); err != nil {
			return fmt.Errorf("models[%d]: %w", i, err)
		}
		if seen[c.Models[i].Tag] {
			return fmt.Errorf("models[%d]: duplicate tag %q", i, c.Models[i].Tag)
		}
		seen[c.Models[i].Tag] = true
	}

	if err := c.Recognition.Validate(); err != nil {
		return fmt.Errorf("recognition config: %w", err)
	}

	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates the listener configuration.
func (s *ServerConfig) Validate() error {
	if s.URI == "" {
		return fmt.Errorf("uri cannot be empty")
	}

	u, err := url.Parse(s.URI)
	if err != nil {
		return fmt.Errorf("invalid uri %q: %w", s.URI, err)
	}

	switch u.Scheme {
	case "tcp":
		if u.Host == "" {
			return fmt.Errorf("tcp uri must include host:port, got %q", s.URI)
		}
	case "unix":
		if u.Host == "" && u.Path == "" {
			return fmt.Errorf("unix uri must include a socket path, got %q", s.URI)
		}
	case "stdio":
	default:
		return fmt.Errorf("unsupported uri scheme %q (supported: tcp, unix, stdio)", u.Scheme)
	}

	return nil
}

// Validate validates one backend definition.
func (m *ModelConfig) Validate() error {
	if m.Tag == "" {
		return fmt.Errorf("tag cannot be empty")
	}

	switch m.Type {
	case BackendTypeStub:
	case BackendTypeCommand:
		if m.Command == "" {
			return fmt.Errorf("command backend %q requires a command", m.Tag)
		}
	case BackendTypeHTTP:
		if m.Endpoint == "" {
			return fmt.Errorf("http backend %q requires an endpoint", m.Tag)
		}
		if m.MaxRetries < 0 {
			return fmt.Errorf("max_retries cannot be negative, got %d", m.MaxRetries)
		}
	default:
		return fmt.Errorf("type must be one of [stub, command, http], got %q", m.Type)
	}

	return nil
}

// Validate validates the recognition limits.
func (r *RecognitionConfig) Validate() error {
	if r.Timeout < 0 {
		return fmt.Errorf("timeout cannot be negative, got %d", r.Timeout)
	}
	return nil
}

// Validate validates the monitoring HTTP configuration.
func (h *HTTPConfig) Validate() error {
	if h.Enabled {
		if h.Port < 1 || h.Port > 65535 {
			return fmt.Errorf("http port must be between 1 and 65535, got %d", h.Port)
		}
		if h.Address == "" {
			return fmt.Errorf("http address cannot be empty when HTTP is enabled")
		}
	}
	return nil
}

// Validate validates logging configuration.
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	return nil
}

// GetTimeoutDuration returns the recognition timeout as a time.Duration.
func (r *RecognitionConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(r.Timeout) * time.Second
}
