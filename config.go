package lmbridge

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	defaults "github.com/Paranoid-AF/lmbridge/default"
)

// Config represents the user's lmbridge configuration.
type Config struct {
	Version    int              `json:"version"`
	Endpoint   EndpointConfig   `json:"endpoint"`
	Attachment AttachmentConfig `json:"attachment"`
}

// EndpointConfig holds settings for the completion endpoint.
type EndpointConfig struct {
	BaseURL        string `json:"base_url"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"`
}

// AttachmentConfig controls how attached files are labelled in messages.
type AttachmentConfig struct {
	// Label is a fmt format with one %s for the file name.
	Label string `json:"label,omitempty"`
}

// ConfigDir returns the config directory path.
// Resolution order: $LMBRIDGE_CONFIG_DIR > $XDG_CONFIG_HOME/lmbridge > ~/.config/lmbridge
func ConfigDir() string {
	if dir := os.Getenv("LMBRIDGE_CONFIG_DIR"); dir != "" {
		return dir
	}
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, "lmbridge")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join("/tmp", "lmbridge-config")
	}
	return filepath.Join(home, ".config", "lmbridge")
}

// ConfigPath returns the full path to the config file.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

// DefaultConfig returns the default configuration from the embedded default_config.json.
func DefaultConfig() *Config {
	var cfg Config
	if err := json.Unmarshal(defaults.DefaultConfigJSON, &cfg); err != nil {
		panic("lmbridge: invalid embedded default_config.json: " + err.Error())
	}
	return &cfg
}

// LoadConfig loads config from disk or returns defaults if not found.
func LoadConfig() (*Config, error) {
	return LoadConfigFrom(ConfigPath())
}

// LoadConfigFrom loads config from path, filling missing fields from defaults.
func LoadConfigFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, &ConfigError{Op: "read", Err: err}
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, &ConfigError{Op: "parse", Err: fmt.Errorf("%s: %w", path, err)}
	}

	// Apply defaults for missing fields
	defaults := DefaultConfig()
	if cfg.Version == 0 {
		cfg.Version = defaults.Version
	}
	if cfg.Endpoint.BaseURL == "" {
		cfg.Endpoint.BaseURL = defaults.Endpoint.BaseURL
	}
	if cfg.Endpoint.TimeoutSeconds == 0 {
		cfg.Endpoint.TimeoutSeconds = defaults.Endpoint.TimeoutSeconds
	}
	if cfg.Attachment.Label == "" {
		cfg.Attachment.Label = defaults.Attachment.Label
	}

	return &cfg, nil
}

// SaveConfig writes cfg to path as indented JSON, creating the directory.
func SaveConfig(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return &ConfigError{Op: "save", Err: err}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return &ConfigError{Op: "save", Err: err}
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return &ConfigError{Op: "save", Err: err}
	}
	return nil
}

// ValidateEndpoint checks that raw is an http(s) base URL with a host.
func ValidateEndpoint(raw string) error {
	if strings.TrimSpace(raw) != raw {
		return &ConfigurationInvalid{Value: raw, Reason: "surrounding whitespace"}
	}
	u, err := url.Parse(raw)
	if err != nil {
		return &ConfigurationInvalid{Value: raw, Reason: err.Error()}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return &ConfigurationInvalid{Value: raw, Reason: "scheme must be http or https"}
	}
	if u.Host == "" {
		return &ConfigurationInvalid{Value: raw, Reason: "host is required"}
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return &ConfigurationInvalid{Value: raw, Reason: "query and fragment are not allowed"}
	}
	return nil
}

// ValidateConfig checks configuration for potential issues and returns warnings.
func ValidateConfig(cfg *Config) []string {
	var warnings []string
	if cfg == nil {
		return warnings
	}
	if err := ValidateEndpoint(cfg.Endpoint.BaseURL); err != nil {
		warnings = append(warnings, err.Error()+"; requests will fail until it is corrected")
	}
	if cfg.Endpoint.TimeoutSeconds < 0 {
		warnings = append(warnings, "timeout_seconds is negative; the default timeout is used")
	}
	if cfg.Attachment.Label != "" && !strings.Contains(cfg.Attachment.Label, "%s") {
		warnings = append(warnings, "attachment label has no %s; the file name is appended instead")
	}
	return warnings
}

// ResolveBaseURL returns the completion endpoint base URL.
// Priority: $LMBRIDGE_BASE_URL env > config value.
func ResolveBaseURL(cfg *Config) string {
	if base := os.Getenv("LMBRIDGE_BASE_URL"); base != "" {
		return base
	}
	if cfg != nil {
		return cfg.Endpoint.BaseURL
	}
	return ""
}

// ResolveTimeout returns the request timeout for the completion client.
func ResolveTimeout(cfg *Config) time.Duration {
	if cfg == nil || cfg.Endpoint.TimeoutSeconds <= 0 {
		return time.Duration(DefaultConfig().Endpoint.TimeoutSeconds) * time.Second
	}
	return time.Duration(cfg.Endpoint.TimeoutSeconds) * time.Second
}

// Store owns the process-wide configuration at runtime. Readers see the
// value current at call time; updates apply to the next submission.
type Store struct {
	mu   sync.RWMutex
	path string
	cfg  *Config

	// fileBaseURL is the base_url last read from or written to path.
	fileBaseURL string
}

// NewStore loads the config at path. The $LMBRIDGE_BASE_URL override, if
// set, seeds the in-memory endpoint until it is updated at runtime.
func NewStore(path string) (*Store, error) {
	cfg, err := LoadConfigFrom(path)
	if err != nil {
		return nil, err
	}
	fileBaseURL := cfg.Endpoint.BaseURL
	cfg.Endpoint.BaseURL = ResolveBaseURL(cfg)
	return &Store{path: path, cfg: cfg, fileBaseURL: fileBaseURL}, nil
}

// NewMemoryStore returns a store that never touches disk.
func NewMemoryStore(cfg *Config) *Store {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	c := *cfg
	return &Store{cfg: &c}
}

// Path returns the backing file path, or "" for a memory store.
func (s *Store) Path() string {
	return s.path
}

// Config returns a copy of the current configuration.
func (s *Store) Config() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return *s.cfg
}

// BaseURL returns the endpoint base URL currently in effect.
func (s *Store) BaseURL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Endpoint.BaseURL
}

// Timeout returns the completion request timeout.
func (s *Store) Timeout() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ResolveTimeout(s.cfg)
}

// AttachmentLabel returns the label format for attached files.
func (s *Store) AttachmentLabel() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Attachment.Label
}

// SetBaseURL validates and applies a new endpoint base URL. An empty value
// restores the default. On validation failure the prior value is kept and
// a *ConfigurationInvalid is returned. A save failure is returned as a
// *ConfigError but the new value stays in effect.
func (s *Store) SetBaseURL(raw string) (string, error) {
	if raw == "" {
		raw = DefaultConfig().Endpoint.BaseURL
	}
	if err := ValidateEndpoint(raw); err != nil {
		return s.BaseURL(), err
	}
	normalized := strings.TrimRight(raw, "/")

	s.mu.Lock()
	s.cfg.Endpoint.BaseURL = normalized
	snapshot := *s.cfg
	s.mu.Unlock()

	if s.path == "" {
		return normalized, nil
	}
	if err := SaveConfig(s.path, &snapshot); err != nil {
		return normalized, err
	}
	s.mu.Lock()
	s.fileBaseURL = normalized
	s.mu.Unlock()
	return normalized, nil
}

// Reload re-reads the backing file. On error the prior config is kept.
// The endpoint in effect, including a $LMBRIDGE_BASE_URL seed, survives
// unless the file's base_url itself changed.
func (s *Store) Reload() error {
	if s.path == "" {
		return nil
	}
	cfg, err := LoadConfigFrom(s.path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	if cfg.Endpoint.BaseURL == s.fileBaseURL {
		cfg.Endpoint.BaseURL = s.cfg.Endpoint.BaseURL
	} else {
		s.fileBaseURL = cfg.Endpoint.BaseURL
	}
	s.cfg = cfg
	s.mu.Unlock()
	return nil
}
