package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("geoplotter-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Map.CenterLon != 90.4125 || cfg.Map.CenterLat != 23.8103 || cfg.Map.Zoom != 9 {
		t.Errorf("unexpected map defaults: %+v", cfg.Map)
	}
	if cfg.Render.FillOpacity != 0.4 {
		t.Errorf("expected fill opacity 0.4, got %v", cfg.Render.FillOpacity)
	}
	if cfg.Telemetry.ServiceName != "geoplotter-test" {
		t.Errorf("expected service name geoplotter-test, got %s", cfg.Telemetry.ServiceName)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("GEOPLOTTER_MAP_ACCESS_TOKEN", "pk.test")
	t.Setenv("GEOPLOTTER_FETCH_MAX_CONCURRENCY", "4")

	cfg, err := Load("geoplotter-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Map.AccessToken != "pk.test" {
		t.Errorf("expected access token from env, got %q", cfg.Map.AccessToken)
	}
	if cfg.Fetch.MaxConcurrency != 4 {
		t.Errorf("expected max concurrency 4, got %d", cfg.Fetch.MaxConcurrency)
	}
}

func TestValidate(t *testing.T) {
	cfg := Config{
		Server: ServerConfig{Port: 0, ReadTimeout: 10, WriteTimeout: 10},
		Fetch:  FetchConfig{TimeoutSeconds: 10},
		Render: RenderConfig{FillOpacity: 2, DefaultMode: "dots"},
		Map:    MapConfig{CenterLat: 91, Zoom: 9},
	}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"server.port", "render.fill_opacity", "render.default_mode", "map center"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %q in error, got %v", want, err)
		}
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeConfig(t, dir, "render:\n  default_mode: markers\nmap:\n  zoom: 12\n")

	cfg, err := Load("geoplotter-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Render.DefaultMode != "markers" || cfg.Map.Zoom != 12 {
		t.Errorf("expected values from config.yaml, got mode=%s zoom=%v", cfg.Render.DefaultMode, cfg.Map.Zoom)
	}
}

func TestWatch_NoFile(t *testing.T) {
	t.Chdir(t.TempDir())
	if err := Watch("geoplotter-test", func(*Config) {}); err == nil {
		t.Error("expected an error without a config file")
	}
}

func TestWatch_Reload(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeConfig(t, dir, "log:\n  level: info\n")

	changed := make(chan *Config, 4)
	if err := Watch("geoplotter-test", func(c *Config) {
		select {
		case changed <- c:
		default:
		}
	}); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	writeConfig(t, dir, "log:\n  level: debug\n")

	deadline := time.After(5 * time.Second)
	for {
		select {
		case c := <-changed:
			if c.Log.Level == "debug" {
				return
			}
		case <-deadline:
			t.Fatal("no reload observed")
		}
	}
}

func writeConfig(t *testing.T, dir, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}
