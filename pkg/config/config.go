// Package config handles loading and saving treescope configuration.
//
// Configuration follows the XDG Base Directory specification:
//   - Config:  ~/.config/treescope/config.yaml (or any .toml path)
//   - State:   ~/.local/state/treescope/ (snapshots written by the TUI)
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/vanderheijden86/treescope/pkg/explorer"
	"github.com/vanderheijden86/treescope/pkg/layout"
	"github.com/vanderheijden86/treescope/pkg/reconcile"
	"github.com/vanderheijden86/treescope/pkg/render"
	"github.com/vanderheijden86/treescope/pkg/search"
)

// Environment overrides.
const (
	AddrEnvVar    = "TREESCOPE_ADDR"
	BackendEnvVar = "TREESCOPE_BACKEND"
)

// MaxRecent bounds the recent payload list.
const MaxRecent = 10

// ViewConfig holds drawing surface settings.
type ViewConfig struct {
	Width      int           `yaml:"width,omitempty" toml:"width,omitempty"`
	Height     int           `yaml:"height,omitempty" toml:"height,omitempty"`
	Duration   time.Duration `yaml:"duration,omitempty" toml:"duration,omitempty"` // transition length, e.g. 750ms
	LabelWidth int           `yaml:"label_width,omitempty" toml:"label_width,omitempty"`
	MinScale   float64       `yaml:"min_scale,omitempty" toml:"min_scale,omitempty"`
	MaxScale   float64       `yaml:"max_scale,omitempty" toml:"max_scale,omitempty"`
}

// SearchConfig holds the initial search field.
type SearchConfig struct {
	Field        string `yaml:"field,omitempty" toml:"field,omitempty"` // name or attribute
	AttributeKey string `yaml:"attribute_key,omitempty" toml:"attribute_key,omitempty"`
}

// ServerConfig controls `treescope serve`.
type ServerConfig struct {
	Addr           string        `yaml:"addr,omitempty" toml:"addr,omitempty"`
	Backend        string        `yaml:"backend,omitempty" toml:"backend,omitempty"` // analysis backend base URL
	BackendTimeout time.Duration `yaml:"backend_timeout,omitempty" toml:"backend_timeout,omitempty"`
}

// WatchConfig controls reloading on file changes.
type WatchConfig struct {
	Enabled      bool          `yaml:"enabled" toml:"enabled"`
	Debounce     time.Duration `yaml:"debounce,omitempty" toml:"debounce,omitempty"`
	PollInterval time.Duration `yaml:"poll_interval,omitempty" toml:"poll_interval,omitempty"`
	ForcePoll    bool          `yaml:"force_poll,omitempty" toml:"force_poll,omitempty"`
}

// Config is the top-level configuration for treescope.
type Config struct {
	Layout layout.Spacing `yaml:"layout" toml:"layout"`
	View   ViewConfig     `yaml:"view,omitempty" toml:"view,omitempty"`
	Search SearchConfig   `yaml:"search,omitempty" toml:"search,omitempty"`
	Server ServerConfig   `yaml:"server,omitempty" toml:"server,omitempty"`
	Watch  WatchConfig    `yaml:"watch" toml:"watch"`
	Recent []string       `yaml:"recent,omitempty" toml:"recent,omitempty"` // most recent first
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Layout: layout.DefaultSpacing(),
		View: ViewConfig{
			Width:      render.DefaultWidth,
			Height:     render.DefaultHeight,
			Duration:   reconcile.DefaultDuration,
			LabelWidth: render.DefaultLabelWidth,
			MinScale:   explorer.DefaultMinScale,
			MaxScale:   explorer.DefaultMaxScale,
		},
		Search: SearchConfig{
			Field:        string(search.FieldName),
			AttributeKey: search.DefaultAttributeKey,
		},
		Server: ServerConfig{
			Addr:           "127.0.0.1:5050",
			Backend:        "http://127.0.0.1:5000",
			BackendTimeout: 5 * time.Minute,
		},
		Watch: WatchConfig{
			Enabled:      true,
			Debounce:     300 * time.Millisecond,
			PollInterval: 2 * time.Second,
		},
	}
}

// ConfigDir returns the XDG config directory for treescope.
func ConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "treescope")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "treescope")
}

// StateDir returns the XDG state directory for treescope.
func StateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "treescope")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "state", "treescope")
}

// ConfigPath returns the full path to config.yaml.
func ConfigPath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// Load reads the config file from the XDG config directory and applies
// environment overrides. Returns DefaultConfig if the file doesn't exist.
func Load() (Config, error) {
	path := ConfigPath()
	if path == "" {
		cfg := DefaultConfig()
		cfg.applyEnv()
		return cfg, nil
	}
	return LoadFrom(path)
}

// LoadFrom reads config from a specific path; a .toml extension selects
// TOML, anything else YAML. Returns DefaultConfig if the file doesn't exist.
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnv()
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if isTOML(path) {
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	for i := range cfg.Recent {
		cfg.Recent[i] = expandHome(cfg.Recent[i])
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv(AddrEnvVar)); v != "" {
		c.Server.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv(BackendEnvVar)); v != "" {
		c.Server.Backend = v
	}
}

// Validate checks the values a user can get wrong.
func (c Config) Validate() error {
	if err := c.Layout.Validate(); err != nil {
		return fmt.Errorf("invalid config: layout: %w", err)
	}
	if c.View.Width <= 0 || c.View.Height <= 0 {
		return fmt.Errorf("invalid config: view size %dx%d", c.View.Width, c.View.Height)
	}
	if c.View.MinScale > 0 && c.View.MaxScale > 0 && c.View.MinScale > c.View.MaxScale {
		return fmt.Errorf("invalid config: min_scale %v > max_scale %v", c.View.MinScale, c.View.MaxScale)
	}
	if _, err := search.ParseField(c.Search.Field); err != nil {
		return fmt.Errorf("invalid config: search: %w", err)
	}
	return nil
}

// Save writes the config to the XDG config directory.
func Save(cfg Config) error {
	path := ConfigPath()
	if path == "" {
		return fmt.Errorf("cannot determine config directory")
	}
	return SaveTo(cfg, path)
}

// SaveTo writes the config to a specific path in the format its extension
// selects.
func SaveTo(cfg Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	var data []byte
	if isTOML(path) {
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
			return fmt.Errorf("marshaling config: %w", err)
		}
		data = buf.Bytes()
	} else {
		var err error
		if data, err = yaml.Marshal(cfg); err != nil {
			return fmt.Errorf("marshaling config: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// AddRecent moves path to the front of the recent list.
func (c *Config) AddRecent(path string) {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	c.Recent = slices.DeleteFunc(c.Recent, func(p string) bool { return p == path })
	c.Recent = slices.Insert(c.Recent, 0, path)
	if len(c.Recent) > MaxRecent {
		c.Recent = c.Recent[:MaxRecent]
	}
}

// LastPayload returns the most recently opened payload, or "".
func (c Config) LastPayload() string {
	if len(c.Recent) == 0 {
		return ""
	}
	return c.Recent[0]
}

// SessionOptions maps the config onto explorer options.
func (c Config) SessionOptions() explorer.Options {
	o := explorer.DefaultOptions()
	o.Spacing = c.Layout
	if c.View.Width > 0 && c.View.Height > 0 {
		o.Surface.X, o.Surface.Y = float64(c.View.Width), float64(c.View.Height)
	}
	if c.View.Duration > 0 {
		o.Duration = c.View.Duration
	}
	if c.View.MinScale > 0 {
		o.MinScale = c.View.MinScale
	}
	if c.View.MaxScale > 0 {
		o.MaxScale = c.View.MaxScale
	}
	if c.Search.AttributeKey != "" {
		o.AttributeKey = c.Search.AttributeKey
	}
	return o
}

// SearchField returns the configured default field.
func (c Config) SearchField() search.Field {
	f, err := search.ParseField(c.Search.Field)
	if err != nil {
		return search.FieldName
	}
	return f
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
