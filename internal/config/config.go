package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// FileName is the config file looked up in the config directory
const FileName = "bannerrecalc.cfg.json"

// DBConfig holds Postgres connection settings
type DBConfig struct {
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
	Database string `json:"database" mapstructure:"database"`
}

// SQLiteConfig holds local database settings
type SQLiteConfig struct {
	Path string `json:"path" mapstructure:"path"`
}

// StorageConfig selects and configures the database backend
type StorageConfig struct {
	Type   string       `json:"type" mapstructure:"type"`
	DB     DBConfig     `json:"db" mapstructure:"db"`
	SQLite SQLiteConfig `json:"sqlite" mapstructure:"sqlite"`
}

// PictureConfig holds banner picture rendering settings
type PictureConfig struct {
	Quality          int           `json:"quality" mapstructure:"quality"`
	Workers          int           `json:"workers" mapstructure:"workers"`
	Expiry           time.Duration `json:"expiry" mapstructure:"expiry"`
	ThumbnailTimeout time.Duration `json:"thumbnailTimeout" mapstructure:"thumbnailTimeout"`
	GCInterval       time.Duration `json:"gcInterval" mapstructure:"gcInterval"`
}

// InfluxConfig holds InfluxDB connection settings
type InfluxConfig struct {
	Enabled  bool   `json:"enabled" mapstructure:"enabled"`
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Protocol string `json:"protocol" mapstructure:"protocol"`
	Token    string `json:"token" mapstructure:"token"`
	Org      string `json:"org" mapstructure:"org"`
	Bucket   string `json:"bucket" mapstructure:"bucket"`
}

// SetDefaults registers the default value of every key.
func SetDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./logs")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "bannergress")

	viper.SetDefault("storage.type", "postgres")
	viper.SetDefault("storage.sqlite.path", "./bannerrecalc.db")

	viper.SetDefault("picture.quality", 90)
	viper.SetDefault("picture.workers", 16)
	viper.SetDefault("picture.expiry", "168h")
	viper.SetDefault("picture.thumbnailTimeout", "5s")
	viper.SetDefault("picture.gcInterval", "1h")

	viper.SetDefault("timezone.default", "UTC")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "bannergress")
	viper.SetDefault("influx.bucket", "recalc")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")
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
		return fmt.Errorf("error reading config file: %w", err)
	}

	return nil
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

// GetStorageConfig returns the database backend settings.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		DB: DBConfig{
			Host:     viper.GetString("db.host"),
			Port:     viper.GetString("db.port"),
			Username: viper.GetString("db.username"),
			Password: viper.GetString("db.password"),
			Database: viper.GetString("db.database"),
		},
		SQLite: SQLiteConfig{
			Path: viper.GetString("storage.sqlite.path"),
		},
	}
}

// GetPictureConfig returns the picture rendering settings.
// Out of range values fall back to their defaults.
func GetPictureConfig() PictureConfig {
	cfg := PictureConfig{
		Quality:          viper.GetInt("picture.quality"),
		Workers:          viper.GetInt("picture.workers"),
		Expiry:           viper.GetDuration("picture.expiry"),
		ThumbnailTimeout: viper.GetDuration("picture.thumbnailTimeout"),
		GCInterval:       viper.GetDuration("picture.gcInterval"),
	}
	if cfg.Quality < 1 || cfg.Quality > 100 {
		cfg.Quality = 90
	}
	if cfg.Workers < 1 {
		cfg.Workers = 16
	}
	if cfg.Expiry <= 0 {
		cfg.Expiry = 7 * 24 * time.Hour
	}
	if cfg.ThumbnailTimeout <= 0 {
		cfg.ThumbnailTimeout = 5 * time.Second
	}
	if cfg.GCInterval <= 0 {
		cfg.GCInterval = time.Hour
	}
	return cfg
}

// GetInfluxConfig returns the InfluxDB settings.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:  viper.GetBool("influx.enabled"),
		Host:     viper.GetString("influx.host"),
		Port:     viper.GetString("influx.port"),
		Protocol: viper.GetString("influx.protocol"),
		Token:    viper.GetString("influx.token"),
		Org:      viper.GetString("influx.org"),
		Bucket:   viper.GetString("influx.bucket"),
	}
}

// GetDefaultZone returns the configured fallback time zone.
func GetDefaultZone() (*time.Location, error) {
	name := viper.GetString("timezone.default")
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone.default %q: %w", name, err)
	}
	return loc, nil
}
