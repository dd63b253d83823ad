package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/vanderheijden86/treescope/pkg/layout"
	"github.com/vanderheijden86/treescope/pkg/search"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Layout.Horizontal != 350 || cfg.Layout.Vertical != 50 {
		t.Errorf("expected 350/50 spacing, got %+v", cfg.Layout)
	}
	if cfg.View.Width != 1200 || cfg.View.Height != 800 {
		t.Errorf("expected 1200x800 surface, got %dx%d", cfg.View.Width, cfg.View.Height)
	}
	if cfg.View.Duration != 750*time.Millisecond {
		t.Errorf("expected 750ms transitions, got %v", cfg.View.Duration)
	}
	if cfg.Search.AttributeKey != "file_analysis" {
		t.Errorf("expected file_analysis, got %q", cfg.Search.AttributeKey)
	}
	if !cfg.Watch.Enabled {
		t.Error("expected watching to be enabled by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate, got %v", err)
	}
}

func TestLoadFrom_NonExistent(t *testing.T) {
	cfg, err := LoadFrom("/nonexistent/path/config.yaml")
	if err != nil {
		t.Fatalf("expected no error for missing file, got: %v", err)
	}
	if cfg.Server.Addr != "127.0.0.1:5050" {
		t.Errorf("expected default config, got addr %q", cfg.Server.Addr)
	}
}

func TestLoadFrom_ValidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
layout:
  horizontal: 200
  vertical: 80
view:
  width: 1600
  height: 900
  duration: 300ms
search:
  field: attribute
server:
  backend: http://analysis.local:5000
watch:
  enabled: false
  poll_interval: 5s
recent:
  - ~/trees/saasco.json
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Layout != (layout.Spacing{Horizontal: 200, Vertical: 80}) {
		t.Errorf("unexpected layout %+v", cfg.Layout)
	}
	if cfg.View.Width != 1600 || cfg.View.Duration != 300*time.Millisecond {
		t.Errorf("unexpected view %+v", cfg.View)
	}
	if cfg.SearchField() != search.FieldAttribute {
		t.Errorf("expected attribute field, got %q", cfg.SearchField())
	}
	if cfg.Server.Backend != "http://analysis.local:5000" {
		t.Errorf("unexpected backend %q", cfg.Server.Backend)
	}
	if cfg.Watch.Enabled || cfg.Watch.PollInterval != 5*time.Second {
		t.Errorf("unexpected watch %+v", cfg.Watch)
	}
	home, _ := os.UserHomeDir()
	if want := filepath.Join(home, "trees/saasco.json"); cfg.LastPayload() != want {
		t.Errorf("expected expanded path %q, got %q", want, cfg.LastPayload())
	}
}

func TestLoadFrom_TOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "treescope.toml")
	content := `
[layout]
horizontal = 250.0
vertical = 40.0

[view]
width = 800
height = 600

[server]
addr = ":9000"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Layout.Horizontal != 250 || cfg.Layout.Vertical != 40 {
		t.Errorf("unexpected layout %+v", cfg.Layout)
	}
	if cfg.View.Width != 800 || cfg.Server.Addr != ":9000" {
		t.Errorf("unexpected config %+v", cfg)
	}
}

func TestLoadFrom_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("{{invalid yaml"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFrom(path); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestLoadFrom_InvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"negative spacing", "layout:\n  horizontal: -1\n  vertical: 50\n"},
		{"zero width", "view:\n  width: 0\n  height: 10\n"},
		{"inverted scale", "view:\n  min_scale: 4\n  max_scale: 2\n"},
		{"unknown field", "search:\n  field: size\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			os.WriteFile(path, []byte(tt.content), 0o644)
			if _, err := LoadFrom(path); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoadFrom_EnvOverrides(t *testing.T) {
	t.Setenv(AddrEnvVar, ":7000")
	t.Setenv(BackendEnvVar, "http://backend:5000")

	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Addr != ":7000" || cfg.Server.Backend != "http://backend:5000" {
		t.Errorf("env overrides not applied: %+v", cfg.Server)
	}
}

func TestSaveAndLoad_RoundTrip(t *testing.T) {
	for _, name := range []string{"config.yaml", "config.toml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", name)

			cfg := DefaultConfig()
			cfg.Layout = layout.Spacing{Horizontal: 420, Vertical: 65}
			cfg.Search.Field = "attribute"
			cfg.Recent = []string{"/trees/a.json", "/trees/b.json"}

			if err := SaveTo(cfg, path); err != nil {
				t.Fatalf("Save failed: %v", err)
			}
			loaded, err := LoadFrom(path)
			if err != nil {
				t.Fatalf("Load after save failed: %v", err)
			}
			if loaded.Layout != cfg.Layout {
				t.Errorf("expected layout %+v, got %+v", cfg.Layout, loaded.Layout)
			}
			if loaded.Search.Field != "attribute" {
				t.Errorf("expected 'attribute', got %q", loaded.Search.Field)
			}
			if len(loaded.Recent) != 2 || loaded.Recent[1] != "/trees/b.json" {
				t.Errorf("unexpected recent list %v", loaded.Recent)
			}
		})
	}
}

func TestAddRecent(t *testing.T) {
	var cfg Config
	for i := range MaxRecent + 3 {
		cfg.AddRecent(filepath.Join("/trees", string(rune('a'+i))+".json"))
	}
	if len(cfg.Recent) != MaxRecent {
		t.Fatalf("expected %d entries, got %d", MaxRecent, len(cfg.Recent))
	}
	cfg.AddRecent("/trees/e.json")
	if cfg.LastPayload() != "/trees/e.json" {
		t.Errorf("expected e.json first, got %q", cfg.LastPayload())
	}
	count := 0
	for _, p := range cfg.Recent {
		if p == "/trees/e.json" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("expected no duplicates, found %d", count)
	}
}

func TestSessionOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.View.Width, cfg.View.Height = 1000, 500
	cfg.View.MaxScale = 4
	cfg.Search.AttributeKey = "summary"

	o := cfg.SessionOptions()
	if o.Surface.X != 1000 || o.Surface.Y != 500 {
		t.Errorf("unexpected surface %v", o.Surface)
	}
	if o.MaxScale != 4 || o.AttributeKey != "summary" {
		t.Errorf("unexpected options %+v", o)
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	tests := []struct {
		input    string
		expected string
	}{
		{"~/trees", filepath.Join(home, "trees")},
		{"/absolute/path", "/absolute/path"},
		{"relative/path", "relative/path"},
	}
	for _, tc := range tests {
		if got := expandHome(tc.input); got != tc.expected {
			t.Errorf("expandHome(%q) = %q, expected %q", tc.input, got, tc.expected)
		}
	}
}

func TestConfigDir_XDGOverride(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	if got := ConfigDir(); got != "/custom/config/treescope" {
		t.Errorf("expected /custom/config/treescope, got %q", got)
	}
	if got := ConfigPath(); got != "/custom/config/treescope/config.yaml" {
		t.Errorf("unexpected config path %q", got)
	}
}

func TestStateDir_XDGOverride(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", "/custom/state")
	if got := StateDir(); got != "/custom/state/treescope" {
		t.Errorf("expected /custom/state/treescope, got %q", got)
	}
}

func TestLoad_UsesXDG(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	if err := SaveTo(Config{Layout: layout.Spacing{Horizontal: 100, Vertical: 10}, View: DefaultConfig().View}, ConfigPath()); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Layout.Horizontal != 100 {
		t.Errorf("expected config from XDG dir, got %+v", cfg.Layout)
	}
}
