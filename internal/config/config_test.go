package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/signalsfoundry/stockflow-editor/timectrl"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stockflow.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultsMatchOriginalDeployment(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error: %v", err)
	}
	if cfg.Store.Collection != "objects" || cfg.Server.Port != 49152 {
		t.Fatalf("defaults = %+v", cfg)
	}
	if cfg.Layout.Width != 600 || cfg.Layout.Height != 400 || cfg.Layout.CollideRadius != 30 {
		t.Fatalf("layout defaults = %+v", cfg.Layout)
	}
	if cfg.ClockMode() != timectrl.RealTime {
		t.Fatalf("clock mode = %v, want realtime", cfg.ClockMode())
	}
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	t.Setenv("STOCKFLOW_TEST_BUCKET", "diagrams")
	path := writeConfig(t, `
store:
  connect_string: nats://localhost:4222/${STOCKFLOW_TEST_BUCKET}
  collection: population
layout:
  width: 800
clock:
  mode: accelerated
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Store.ConnectString != "nats://localhost:4222/diagrams" {
		t.Fatalf("connect string = %q", cfg.Store.ConnectString)
	}
	if cfg.Store.Collection != "population" {
		t.Fatalf("collection = %q, want population", cfg.Store.Collection)
	}
	if cfg.Layout.Width != 800 || cfg.Layout.Height != 400 {
		t.Fatalf("viewport = %vx%v, want 800x400", cfg.Layout.Width, cfg.Layout.Height)
	}
	if cfg.ClockMode() != timectrl.Accelerated {
		t.Fatalf("clock mode = %v, want accelerated", cfg.ClockMode())
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, "store:\n  colection: typo\n")
	if _, err := Load(path); err == nil {
		t.Fatalf("Load accepted an unknown key")
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "store:\n  collection: population\n")
	t.Setenv("STOCKFLOW_COLLECTION", "ecology")
	t.Setenv("STOCKFLOW_PORT", "50000")
	t.Setenv("STOCKFLOW_TRACING_ENABLED", "true")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Store.Collection != "ecology" || cfg.Server.Port != 50000 {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
	if !cfg.TracingConfig().Enabled {
		t.Fatalf("tracing not enabled by env")
	}
}

func TestApplyEnvRejectsBadNumbers(t *testing.T) {
	cfg := Default()
	env := map[string]string{"STOCKFLOW_PORT": "many", "STOCKFLOW_WIDTH": "wide"}
	err := cfg.ApplyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("ApplyEnv error = %v, want ErrInvalid", err)
	}
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"reserved collection": func(c *Config) { c.Store.Collection = "system.indexes" },
		"empty connect":       func(c *Config) { c.Store.ConnectString = "" },
		"bad port":            func(c *Config) { c.Server.Port = 70000 },
		"bad clock":           func(c *Config) { c.Clock.Mode = "sometimes" },
		"bad ratio":           func(c *Config) { c.Tracing.SampleRatio = 3 },
		"bad log level":       func(c *Config) { c.Logging.Level = "verbose" },
		"bad log format":      func(c *Config) { c.Logging.Format = "xml" },
		"bad exporter":        func(c *Config) { c.Tracing.Exporter = "zipkin" },
		"bad decay":           func(c *Config) { c.Layout.AlphaDecay = 1 },
	}
	for name, mutate := range cases {
		cfg := Default()
		mutate(&cfg)
		if err := cfg.Validate(); !errors.Is(err, ErrInvalid) {
			t.Fatalf("%s: Validate error = %v, want ErrInvalid", name, err)
		}
	}
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
}

func TestWikiURL(t *testing.T) {
	cfg := Default()
	cfg.Wiki.Host = "https://wiki.example.org/index.php/"
	if got := cfg.WikiURL("b3"); got != "https://wiki.example.org/index.php/b3" {
		t.Fatalf("WikiURL = %q", got)
	}
}
