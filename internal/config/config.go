package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/atlo/dashboard/internal/geo"
	"github.com/atlo/dashboard/pkg/core"
)

// FileName is the config file looked up in the config directory.
const FileName = "atlo.cfg.json"

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Addr           string        `json:"addr" mapstructure:"addr"`
	AllowedOrigins []string      `json:"allowedOrigins" mapstructure:"allowedOrigins"`
	ReadTimeout    time.Duration `json:"readTimeout" mapstructure:"readTimeout"`
	WriteTimeout   time.Duration `json:"writeTimeout" mapstructure:"writeTimeout"`
	StartTimeout   time.Duration `json:"startTimeout" mapstructure:"startTimeout"`
}

// SQLiteConfig holds SQLite storage settings
type SQLiteConfig struct {
	Path string `json:"path" mapstructure:"path"`
}

// PostgresConfig holds PostgreSQL connection settings
type PostgresConfig struct {
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
	Database string `json:"database" mapstructure:"database"`
}

// StorageConfig selects and configures the activity store
type StorageConfig struct {
	Type     string         `json:"type" mapstructure:"type"`
	SQLite   SQLiteConfig   `json:"sqlite" mapstructure:"sqlite"`
	Postgres PostgresConfig `json:"postgres" mapstructure:"postgres"`
}

// FitConfig holds camera fit settings
type FitConfig struct {
	Padding  float64
	MaxZoom  float64
	Duration time.Duration
}

// MapConfig holds map surface settings
type MapConfig struct {
	Style         string
	DefaultCenter core.Coordinate2D
	DefaultZoom   float64
	Fit           FitConfig
	Focus         FitConfig
	MapTilerKey   string
}

// SmoothingConfig holds route smoothing settings
type SmoothingConfig struct {
	SamplesPerSegment int
	Alpha             float64
}

// StravaConfig holds activity provider settings
type StravaConfig struct {
	BaseURL     string
	AccessToken string
	PerPage     int
	Timeout     time.Duration
}

// CardConfig holds route card poster settings. Sizes are in metres.
type CardConfig struct {
	Width   float64
	Height  float64
	Spacing float64
	DPI     int
}

// MonitorConfig holds status monitor settings. A relative StatusFile is
// placed in the logs dir.
type MonitorConfig struct {
	Enabled    bool
	Interval   time.Duration
	StatusFile string
}

// OTelConfig holds OpenTelemetry log export settings.
type OTelConfig struct {
	Enabled      bool
	ServiceName  string
	BatchTimeout time.Duration
	Endpoint     string
	Insecure     bool
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	SetDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// SetDefaults registers the default for every key. Load calls it; commands
// that run without a config file call it directly.
func SetDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./atlologs")

	viper.SetDefault("server.addr", ":8080")
	viper.SetDefault("server.allowedOrigins", []string{})
	viper.SetDefault("server.readTimeout", "15s")
	viper.SetDefault("server.writeTimeout", "30s")
	viper.SetDefault("server.startTimeout", "30s")

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.sqlite.path", "atlo.db")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "atlo")

	viper.SetDefault("map.style", "bright")
	viper.SetDefault("map.defaultCenter", "0,0")
	viper.SetDefault("map.defaultZoom", 1.5)
	viper.SetDefault("map.fitPadding", 60)
	viper.SetDefault("map.fitMaxZoom", 12)
	viper.SetDefault("map.fitDuration", "900ms")
	viper.SetDefault("map.focusPadding", 40)
	viper.SetDefault("map.focusMaxZoom", 15)
	viper.SetDefault("map.focusDuration", "900ms")
	viper.SetDefault("map.maptilerKey", "")

	viper.SetDefault("smoothing.samplesPerSegment", geo.DefaultSamplesPerSegment)
	viper.SetDefault("smoothing.alpha", geo.DefaultAlpha)

	viper.SetDefault("strava.baseUrl", "https://www.strava.com/api/v3")
	viper.SetDefault("strava.accessToken", "")
	viper.SetDefault("strava.perPage", 200)
	viper.SetDefault("strava.timeout", "30s")

	viper.SetDefault("card.width", 0.148)
	viper.SetDefault("card.height", 0.105)
	viper.SetDefault("card.spacing", 0.001)
	viper.SetDefault("card.dpi", 300)

	viper.SetDefault("monitor.enabled", true)
	viper.SetDefault("monitor.interval", "1m")
	viper.SetDefault("monitor.statusFile", "status.json")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "atlo")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetServerConfig returns the HTTP server settings.
func GetServerConfig() ServerConfig {
	return ServerConfig{
		Addr:           viper.GetString("server.addr"),
		AllowedOrigins: viper.GetStringSlice("server.allowedOrigins"),
		ReadTimeout:    viper.GetDuration("server.readTimeout"),
		WriteTimeout:   viper.GetDuration("server.writeTimeout"),
		StartTimeout:   viper.GetDuration("server.startTimeout"),
	}
}

// GetStorageConfig returns the activity store settings. Postgres
// credentials live under the top-level "db" key.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		SQLite: SQLiteConfig{
			Path: viper.GetString("storage.sqlite.path"),
		},
		Postgres: PostgresConfig{
			Host:     viper.GetString("db.host"),
			Port:     viper.GetString("db.port"),
			Username: viper.GetString("db.username"),
			Password: viper.GetString("db.password"),
			Database: viper.GetString("db.database"),
		},
	}
}

// GetMapConfig returns the map surface settings.
func GetMapConfig() (MapConfig, error) {
	center, err := geo.ParseLonLat(viper.GetString("map.defaultCenter"))
	if err != nil {
		return MapConfig{}, fmt.Errorf("map.defaultCenter: %w", err)
	}
	return MapConfig{
		Style:         viper.GetString("map.style"),
		DefaultCenter: center,
		DefaultZoom:   viper.GetFloat64("map.defaultZoom"),
		Fit: FitConfig{
			Padding:  viper.GetFloat64("map.fitPadding"),
			MaxZoom:  viper.GetFloat64("map.fitMaxZoom"),
			Duration: viper.GetDuration("map.fitDuration"),
		},
		Focus: FitConfig{
			Padding:  viper.GetFloat64("map.focusPadding"),
			MaxZoom:  viper.GetFloat64("map.focusMaxZoom"),
			Duration: viper.GetDuration("map.focusDuration"),
		},
		MapTilerKey: viper.GetString("map.maptilerKey"),
	}, nil
}

// GetSmoothingConfig returns the route smoothing settings.
func GetSmoothingConfig() SmoothingConfig {
	return SmoothingConfig{
		SamplesPerSegment: viper.GetInt("smoothing.samplesPerSegment"),
		Alpha:             viper.GetFloat64("smoothing.alpha"),
	}
}

// GetStravaConfig returns the activity provider settings.
func GetStravaConfig() StravaConfig {
	return StravaConfig{
		BaseURL:     viper.GetString("strava.baseUrl"),
		AccessToken: viper.GetString("strava.accessToken"),
		PerPage:     viper.GetInt("strava.perPage"),
		Timeout:     viper.GetDuration("strava.timeout"),
	}
}

// GetCardConfig returns the poster settings.
func GetCardConfig() CardConfig {
	return CardConfig{
		Width:   viper.GetFloat64("card.width"),
		Height:  viper.GetFloat64("card.height"),
		Spacing: viper.GetFloat64("card.spacing"),
		DPI:     viper.GetInt("card.dpi"),
	}
}

// GetMonitorConfig returns the status monitor settings.
func GetMonitorConfig() MonitorConfig {
	path := viper.GetString("monitor.statusFile")
	if path != "" && !filepath.IsAbs(path) {
		path = filepath.Join(viper.GetString("logsDir"), path)
	}
	return MonitorConfig{
		Enabled:    viper.GetBool("monitor.enabled"),
		Interval:   viper.GetDuration("monitor.interval"),
		StatusFile: path,
	}
}

// GetOTelConfig returns the OpenTelemetry settings.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}
