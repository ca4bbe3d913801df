package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Render    RenderConfig    `mapstructure:"render"`
	Map       MapConfig       `mapstructure:"map"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

// FetchConfig controls remote source retrieval.
type FetchConfig struct {
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	MaxConcurrency int    `mapstructure:"max_concurrency"` // 0 = unbounded
	UserAgent      string `mapstructure:"user_agent"`
}

func (f FetchConfig) Timeout() time.Duration {
	return time.Duration(f.TimeoutSeconds) * time.Second
}

// RenderConfig controls how runs are drawn.
type RenderConfig struct {
	FillOpacity float64 `mapstructure:"fill_opacity"`
	DefaultMode string  `mapstructure:"default_mode"`
	// WaitForWidget keeps new surfaces not-ready until a widget reports in
	// over the websocket or POST /v1/views/:id/ready.
	WaitForWidget bool `mapstructure:"wait_for_widget"`
	MirrorTTL     int  `mapstructure:"mirror_ttl_seconds"`
}

// MapConfig is handed to browser widgets as-is.
type MapConfig struct {
	AccessToken string  `mapstructure:"access_token" json:"access_token,omitempty"`
	Style       string  `mapstructure:"style" json:"style"`
	CenterLon   float64 `mapstructure:"center_lon" json:"center_lon"`
	CenterLat   float64 `mapstructure:"center_lat" json:"center_lat"`
	Zoom        float64 `mapstructure:"zoom" json:"zoom"`
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type ValkeyConfig struct {
	Addr string `mapstructure:"addr"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	OTLPAddr    string `mapstructure:"otlp_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := newViper(service)
	_ = v.ReadInConfig() // OK if missing
	return decode(v)
}

// Watch re-reads the config file whenever it changes and hands every valid
// result to onChange. It fails when there is no config file to watch.
func Watch(service string, onChange func(*Config)) error {
	v := newViper(service)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := decode(v)
		if err != nil {
			slog.Warn("config reload rejected", "file", e.Name, "error", err)
			return
		}
		slog.Info("config reloaded", "file", e.Name)
		onChange(cfg)
	})
	v.WatchConfig()
	return nil
}

func newViper(service string) *viper.Viper {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("fetch.timeout_seconds", 10)
	v.SetDefault("fetch.max_concurrency", 0)
	v.SetDefault("fetch.user_agent", "geoplotter/1.0")
	v.SetDefault("render.fill_opacity", 0.4)
	v.SetDefault("render.default_mode", "boxes")
	v.SetDefault("render.wait_for_widget", false)
	v.SetDefault("render.mirror_ttl_seconds", 3600)
	v.SetDefault("map.access_token", "")
	v.SetDefault("map.style", "mapbox://styles/mapbox/streets-v12")
	v.SetDefault("map.center_lon", 90.4125)
	v.SetDefault("map.center_lat", 23.8103)
	v.SetDefault("map.zoom", 9)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.otlp_addr", "localhost:4317")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")

	// Environment variables: GEOPLOTTER_MAP_ACCESS_TOKEN → map.access_token
	v.SetEnvPrefix("GEOPLOTTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		errs = append(errs, "fetch.timeout_seconds must be positive")
	}
	if c.Fetch.MaxConcurrency < 0 {
		errs = append(errs, "fetch.max_concurrency must not be negative")
	}
	if c.Render.FillOpacity < 0 || c.Render.FillOpacity > 1 {
		errs = append(errs, fmt.Sprintf("render.fill_opacity must be 0-1, got %v", c.Render.FillOpacity))
	}
	if c.Render.DefaultMode != "boxes" && c.Render.DefaultMode != "markers" {
		errs = append(errs, fmt.Sprintf("render.default_mode must be boxes or markers, got %q", c.Render.DefaultMode))
	}
	if c.Map.CenterLat < -90 || c.Map.CenterLat > 90 || c.Map.CenterLon < -180 || c.Map.CenterLon > 180 {
		errs = append(errs, "map center out of range")
	}
	if c.Map.Zoom < 0 || c.Map.Zoom > 24 {
		errs = append(errs, fmt.Sprintf("map.zoom must be 0-24, got %v", c.Map.Zoom))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
