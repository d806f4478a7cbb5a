// Package config provides application configuration management for curios.
package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultAPIBase is the backend address used when nothing else is configured.
const DefaultAPIBase = "http://localhost:8787"

// Config holds the curios configuration.
type Config struct {
	APIBase     string        `json:"api_base"`           // Backend base URL
	Theme       string        `json:"theme"`              // Initial theme when none is stored ("dark" or "light")
	Language    string        `json:"language,omitempty"` // UI language (BCP 47)
	Context     string        `json:"context"`            // Active context sent as X-Curios-Context
	HTTPTimeout string        `json:"http_timeout"`       // Per-request timeout (e.g. "30s")
	Storage     StorageConfig `json:"storage"`            // Durable client storage
	Auth        AuthConfig    `json:"auth"`               // Third-party identity provider
}

// StorageConfig selects the backend for durable client state.
type StorageConfig struct {
	Backend string `json:"backend"`        // "file" or "sqlite"
	Path    string `json:"path,omitempty"` // Defaults to ~/.curios/state.json or state.db
}

// AuthConfig holds identity provider settings. URL and AnonKey select the
// Supabase-compatible provider; AccessToken selects the static provider.
type AuthConfig struct {
	URL         string `json:"url,omitempty"`
	AnonKey     string `json:"anon_key,omitempty"`
	AccessToken string `json:"access_token,omitempty"`
	UserID      string `json:"user_id,omitempty"`
	Email       string `json:"email,omitempty"`
}

// Timeout returns the parsed HTTP timeout (default: 30s).
func (c Config) Timeout() time.Duration {
	if c.HTTPTimeout != "" {
		if d, err := time.ParseDuration(c.HTTPTimeout); err == nil && d > 0 {
			return d
		}
	}
	return 30 * time.Second
}

// StoragePath returns the storage path, filling in the default for the backend.
func (c Config) StoragePath() (string, error) {
	if c.Storage.Path != "" {
		return c.Storage.Path, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	if c.Storage.Backend == "sqlite" {
		return filepath.Join(dir, "state.db"), nil
	}
	return filepath.Join(dir, "state.json"), nil
}

// Validate reports configuration that cannot work at all.
func (c Config) Validate() error {
	if !IsHTTPURL(c.APIBase) {
		return fmt.Errorf("invalid api_base %q: must be an http(s) URL", c.APIBase)
	}
	switch c.Storage.Backend {
	case "", "file", "sqlite":
	default:
		return fmt.Errorf("invalid storage backend %q (file|sqlite)", c.Storage.Backend)
	}
	return nil
}

// AuthStatus describes whether the Supabase-compatible provider can be used.
// A non-empty reason means it cannot.
func (a AuthConfig) AuthStatus() (usable bool, reason string) {
	u := strings.TrimSpace(a.URL)
	key := strings.TrimSpace(a.AnonKey)
	if u == "" || key == "" {
		return false, "auth is not configured: set CURIOS_SUPABASE_URL and CURIOS_SUPABASE_ANON_KEY"
	}
	if !IsHTTPURL(u) {
		return false, fmt.Sprintf("auth is not configured: invalid CURIOS_SUPABASE_URL (%q), it must be a valid http(s) URL", u)
	}
	return true, ""
}

// IsHTTPURL reports whether s parses as an absolute http or https URL.
func IsHTTPURL(s string) bool {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Dir returns the path to the .curios directory. CURIOS_HOME overrides it.
func Dir() (string, error) {
	if v := os.Getenv("CURIOS_HOME"); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".curios"), nil
}

// Path returns the path to the main config file.
func Path() (string, error) {
	configDir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.json"), nil
}

// Load loads the configuration from ~/.curios/config.json and applies
// environment overrides. A missing file is created with defaults.
func Load() (Config, error) {
	configPath, err := Path()
	if err != nil {
		return Config{}, err
	}

	cfg := Default()
	data, err := os.ReadFile(configPath)
	switch {
	case os.IsNotExist(err):
		// Persist the initial config; defaults are still usable if this fails.
		_ = Save(cfg)
	case err != nil:
		return Config{}, err
	default:
		// Start from defaults so missing keys keep their default values.
		if err := json.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", configPath, err)
		}
	}

	cfg.applyEnv()
	if cfg.Theme != "light" {
		cfg.Theme = "dark"
	}
	if cfg.Context == "" {
		cfg.Context = "system"
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := envValue("CURIOS_API_BASE"); v != "" {
		c.APIBase = v
	}
	if v := envValue("CURIOS_SUPABASE_URL"); v != "" {
		c.Auth.URL = v
	}
	if v := envValue("CURIOS_SUPABASE_ANON_KEY"); v != "" {
		c.Auth.AnonKey = v
	}
	if v := envValue("CURIOS_ACCESS_TOKEN"); v != "" {
		c.Auth.AccessToken = v
	}
	if v := envValue("CURIOS_LANG"); v != "" {
		c.Language = v
	}
}

// envValue returns the trimmed environment value, treating blanks as unset.
func envValue(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

// Default returns a default configuration with all defaults set.
func Default() Config {
	return Config{
		APIBase:     DefaultAPIBase,
		Theme:       "dark",
		Context:     "system",
		HTTPTimeout: "30s",
		Storage: StorageConfig{
			Backend: "file",
		},
	}
}

// Save saves the configuration to ~/.curios/config.json.
func Save(config Config) error {
	configPath, err := Path()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}

	// 0600: the file may hold an access token.
	return os.WriteFile(configPath, data, 0600)
}

// ResolveAPIBase picks the backend URL: the flag value wins, then the loaded
// config (which already includes CURIOS_API_BASE). When the config still holds
// the default and a `curios dev-backend` is registered, its address is used.
func (c Config) ResolveAPIBase(flagValue string) string {
	if v := strings.TrimSpace(flagValue); v != "" {
		return strings.TrimRight(v, "/")
	}
	if c.APIBase == DefaultAPIBase {
		if inst := FindInstance(InstanceDevBackend); inst != nil {
			return inst.URL()
		}
	}
	return strings.TrimRight(c.APIBase, "/")
}
