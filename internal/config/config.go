// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/scribe-tui/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete scribe-tui configuration.
type Config struct {
	Version string `toml:"version" json:"version"`

	// API is the backend connection configuration
	API APIConfig `toml:"api" json:"api"`

	// Send holds defaults applied to outgoing messages
	Send SendConfig `toml:"send" json:"send"`

	// UI configuration
	UI UIConfig `toml:"ui" json:"ui"`

	// Logging configuration
	Logging LoggingConfig `toml:"logging" json:"logging"`

	// Report configuration
	Report ReportConfig `toml:"report" json:"report"`
}

// APIConfig contains backend connection settings.
type APIConfig struct {
	// BaseURL is the scribe backend base URL
	BaseURL string `toml:"base_url" json:"base_url"`
	// Token is the bearer token used for authentication
	Token string `toml:"token" json:"token"`
	// MaxRetries is the retry budget for transient request failures
	MaxRetries int `toml:"max_retries" json:"max_retries"`
}

// SendConfig contains defaults for outgoing messages.
type SendConfig struct {
	// Provider is the preferred model provider, empty lets the server choose
	Provider string `toml:"provider" json:"provider"`
	// Model is the preferred model name, empty lets the server choose
	Model string `toml:"model" json:"model"`
	// ForcePipeline always routes sends through the full report pipeline
	ForcePipeline bool `toml:"force_pipeline" json:"force_pipeline"`
}

// UIConfig contains terminal UI settings.
type UIConfig struct {
	// Theme is the color theme: "dark", "light", or "auto"
	Theme string `toml:"theme" json:"theme"`
	// RenderMarkdown enables glamour rendering of report text
	RenderMarkdown bool `toml:"render_markdown" json:"render_markdown"`
	// CompactMode reduces padding for small terminals
	CompactMode bool `toml:"compact_mode" json:"compact_mode"`
}

// LoggingConfig contains log output settings.
type LoggingConfig struct {
	// Level is one of "debug", "info", "warn", "error"
	Level string `toml:"level" json:"level"`
	// Path is the log file location (empty = ~/.scribe/logs/scribe.log)
	Path string `toml:"path" json:"path"`
}

// ReportConfig contains local report storage settings.
type ReportConfig struct {
	// StorePath is the report database location (empty = ~/.scribe/reports.db)
	StorePath string `toml:"store_path" json:"store_path"`
	// ExportDir is where exported reports are written (empty = working dir)
	ExportDir string `toml:"export_dir" json:"export_dir"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// CurrentVersion is the config schema version.
const CurrentVersion = "1"

// Default returns a config with built-in defaults.
func Default() *Config {
	return &Config{
		Version: CurrentVersion,
		API: APIConfig{
			BaseURL:    "https://api.scribe.dev",
			MaxRetries: 3,
		},
		UI: UIConfig{
			Theme:          "auto",
			RenderMarkdown: true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// =============================================================================
// PATHS
// =============================================================================

// ConfigDir returns the scribe configuration directory.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".scribe"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// ensureSecurePermissions checks and fixes permissions on config files.
// SECURITY: Config files should be 0600 (owner read/write only) to protect the API token.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the config file(s).
// Tries TOML first, then JSON, and falls back to defaults.
// Environment overrides are applied last.
func Load() (*Config, error) {
	cfg := Default()

	tomlPath, err := ConfigPathTOML()
	if err == nil {
		if _, statErr := os.Stat(tomlPath); statErr == nil {
			if err := LoadTOML(cfg, tomlPath); err != nil {
				return nil, fmt.Errorf("failed to load TOML config: %w", err)
			}
			return finishLoad(cfg)
		}
	}

	jsonPath, err := ConfigPathJSON()
	if err == nil {
		if _, statErr := os.Stat(jsonPath); statErr == nil {
			if err := LoadJSON(cfg, jsonPath); err != nil {
				return nil, fmt.Errorf("failed to load JSON config: %w", err)
			}
			return finishLoad(cfg)
		}
	}

	return finishLoad(cfg)
}

// LoadFromPath loads configuration from an explicit file path, choosing the
// decoder by extension.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = LoadJSON(cfg, path)
	default:
		err = LoadTOML(cfg, path)
	}
	if err != nil {
		return nil, err
	}
	return finishLoad(cfg)
}

// finishLoad applies env overrides, fills defaults, and validates.
func finishLoad(cfg *Config) (*Config, error) {
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML loads configuration from a TOML file.
// SECURITY: Checks and fixes file permissions on load.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// LoadJSON loads configuration from a JSON file.
// SECURITY: Checks and fixes file permissions on load.
func LoadJSON(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save writes the config to the default TOML path.
func Save(cfg *Config) error {
	if err := EnsureConfigDir(); err != nil {
		return err
	}
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes the config to a TOML file atomically with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode TOML: %w", err)
	}
	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError describes a single invalid config field.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors aggregates validation failures.
type ValidateErrors []ValidationError

// Error implements the error interface.
func (e ValidateErrors) Error() string {
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if c.API.BaseURL != "" {
		u, err := url.Parse(c.API.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, ValidationError{"api.base_url", "must be a valid URL"})
		} else if u.Scheme != "http" && u.Scheme != "https" {
			errs = append(errs, ValidationError{"api.base_url", "scheme must be http or https"})
		}
	} else {
		errs = append(errs, ValidationError{"api.base_url", "is required"})
	}

	if c.API.MaxRetries < 0 || c.API.MaxRetries > 10 {
		errs = append(errs, ValidationError{"api.max_retries", "must be between 0 and 10"})
	}

	switch c.UI.Theme {
	case "dark", "light", "auto":
	default:
		errs = append(errs, ValidationError{"ui.theme", "must be dark, light, or auto"})
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, ValidationError{"logging.level", "must be debug, info, warn, or error"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// SetDefaults fills in zero values with defaults.
func (c *Config) SetDefaults() {
	if c.Version == "" {
		c.Version = CurrentVersion
	}
	if c.API.BaseURL == "" {
		c.API.BaseURL = Default().API.BaseURL
	}
	if c.API.MaxRetries == 0 {
		c.API.MaxRetries = 3
	}
	if c.UI.Theme == "" {
		c.UI.Theme = "auto"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies SCRIBE_* environment variables over file values.
func (c *Config) ApplyEnvOverrides() {
	if base := os.Getenv("SCRIBE_API_URL"); base != "" {
		c.API.BaseURL = base
	}
	if token := os.Getenv("SCRIBE_TOKEN"); token != "" {
		c.API.Token = token
	}
	if provider := os.Getenv("SCRIBE_PROVIDER"); provider != "" {
		c.Send.Provider = provider
	}
	if model := os.Getenv("SCRIBE_MODEL"); model != "" {
		c.Send.Model = model
	}
	if pipeline := os.Getenv("SCRIBE_FORCE_PIPELINE"); pipeline != "" {
		c.Send.ForcePipeline = envBool(pipeline)
	}
	if theme := os.Getenv("SCRIBE_THEME"); theme != "" {
		c.UI.Theme = theme
	}
	if level := os.Getenv("SCRIBE_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if path := os.Getenv("SCRIBE_LOG_PATH"); path != "" {
		c.Logging.Path = path
	}
}

func envBool(v string) bool {
	return v == "1" || strings.EqualFold(v, "true")
}

// =============================================================================
// HELPERS
// =============================================================================

// Clone returns a deep copy of the config.
func (c *Config) Clone() *Config {
	out := *c
	return &out
}

// String returns a printable form with the token redacted.
func (c *Config) String() string {
	redacted := c.Clone()
	if redacted.API.Token != "" {
		redacted.API.Token = "***"
	}
	data, err := json.MarshalIndent(redacted, "", "  ")
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}

// LogPath resolves the effective log file path.
func (c *Config) LogPath() (string, error) {
	if c.Logging.Path != "" {
		return c.Logging.Path, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "logs", "scribe.log"), nil
}

// ReportStorePath resolves the effective report database path.
func (c *Config) ReportStorePath() (string, error) {
	if c.Report.StorePath != "" {
		return c.Report.StorePath, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "reports.db"), nil
}
