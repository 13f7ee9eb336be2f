// Package config provides file-based configuration for the GPS logger.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. GPSLOG_DATABASE_FILENAME.
const EnvPrefix = "GPSLOG"

// DefaultPath is where the CLI looks for its config file.
const DefaultPath = "./config/config.json"

// AppConfig represents the root configuration structure
type AppConfig struct {
	// Database configuration
	DatabaseFilename string `mapstructure:"database_filename" json:"database_filename" yaml:"database_filename"`
	DatabaseDriver   string `mapstructure:"database_driver" json:"database_driver" yaml:"database_driver"`
	TableName        string `mapstructure:"table_name" json:"table_name" yaml:"table_name"`

	// Logging configuration
	Log LogConfig `mapstructure:"log" json:"log" yaml:"log"`

	// Recorder configuration
	Recorder RecorderConfig `mapstructure:"recorder" json:"recorder" yaml:"recorder"`

	// BirdNET web form configuration
	Birdnet BirdnetConfig `mapstructure:"birdnet" json:"birdnet" yaml:"birdnet"`
}

// LogConfig contains logger settings
type LogConfig struct {
	Level      string `mapstructure:"level" json:"level" yaml:"level"`
	File       string `mapstructure:"file" json:"file" yaml:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" json:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" json:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" json:"max_age_days" yaml:"max_age_days"`
	NoColor    bool   `mapstructure:"no_color" json:"no_color" yaml:"no_color"`
}

// RecorderConfig contains GPS sampling settings
type RecorderConfig struct {
	Device          string `mapstructure:"device" json:"device" yaml:"device"`
	IntervalSeconds int    `mapstructure:"interval_seconds" json:"interval_seconds" yaml:"interval_seconds"`
}

// BirdnetConfig contains settings for pushing the latest fix to a BirdNET-Pi
type BirdnetConfig struct {
	SettingsURL    string `mapstructure:"settings_url" json:"settings_url" yaml:"settings_url"`
	Username       string `mapstructure:"username" json:"username" yaml:"username"`
	Password       string `mapstructure:"password" json:"password" yaml:"password"`
	FormID         string `mapstructure:"form_id" json:"form_id" yaml:"form_id"`
	Precision      int    `mapstructure:"precision" json:"precision" yaml:"precision"`
	StatusLog      string `mapstructure:"status_log" json:"status_log" yaml:"status_log"`
	StateFile      string `mapstructure:"state_file" json:"state_file" yaml:"state_file"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" json:"timeout_seconds" yaml:"timeout_seconds"`
}

// DatabaseConfig is the subset of AppConfig the storage layer needs.
type DatabaseConfig struct {
	Filename string
	Driver   string
	Table    string
}

// DefaultConfig returns the default configuration
func DefaultConfig() *AppConfig {
	return &AppConfig{
		DatabaseFilename: "./data/gps.db",
		DatabaseDriver:   "sqlite3",
		TableName:        "locations",
		Log: LogConfig{
			Level:      "info",
			File:       "",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Recorder: RecorderConfig{
			Device:          "/dev/ttyACM0",
			IntervalSeconds: 60,
		},
		Birdnet: BirdnetConfig{
			SettingsURL:    "http://localhost/views.php?view=Settings",
			Username:       "birdnet",
			Password:       "",
			FormID:         "basicform",
			Precision:      4,
			StatusLog:      "./data/birdnet_gps.log",
			StateFile:      "./data/birdnet_state.msgpack",
			TimeoutSeconds: 30,
		},
	}
}

// setDefaults registers every key so env overrides apply to keys missing from the file.
func setDefaults(v *viper.Viper, c *AppConfig) {
	v.SetDefault("database_filename", c.DatabaseFilename)
	v.SetDefault("database_driver", c.DatabaseDriver)
	v.SetDefault("table_name", c.TableName)

	v.SetDefault("log.level", c.Log.Level)
	v.SetDefault("log.file", c.Log.File)
	v.SetDefault("log.max_size_mb", c.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", c.Log.MaxBackups)
	v.SetDefault("log.max_age_days", c.Log.MaxAgeDays)
	v.SetDefault("log.no_color", c.Log.NoColor)

	v.SetDefault("recorder.device", c.Recorder.Device)
	v.SetDefault("recorder.interval_seconds", c.Recorder.IntervalSeconds)

	v.SetDefault("birdnet.settings_url", c.Birdnet.SettingsURL)
	v.SetDefault("birdnet.username", c.Birdnet.Username)
	v.SetDefault("birdnet.password", c.Birdnet.Password)
	v.SetDefault("birdnet.form_id", c.Birdnet.FormID)
	v.SetDefault("birdnet.precision", c.Birdnet.Precision)
	v.SetDefault("birdnet.status_log", c.Birdnet.StatusLog)
	v.SetDefault("birdnet.state_file", c.Birdnet.StateFile)
	v.SetDefault("birdnet.timeout_seconds", c.Birdnet.TimeoutSeconds)
}

// LoadConfig loads configuration from a JSON or YAML file
func LoadConfig(configPath string) (*AppConfig, error) {
	// If file doesn't exist, create default
	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		if err := DefaultConfig().Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	}

	v := viper.New()
	setDefaults(v, DefaultConfig())
	v.SetConfigFile(configPath)
	if ext := strings.TrimPrefix(filepath.Ext(configPath), "."); ext == "" {
		v.SetConfigType("json")
	}

	// Apply environment variable overrides
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := &AppConfig{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	// Resolve relative paths
	config.resolvePaths(filepath.Dir(configPath))

	return config, nil
}

// Validate checks values that have no usable fallback.
func (c *AppConfig) Validate() error {
	if c.DatabaseFilename == "" {
		return errors.New("database_filename must be set")
	}
	switch c.DatabaseDriver {
	case "sqlite3", "duckdb":
	default:
		return fmt.Errorf("unsupported database_driver %q (want sqlite3 or duckdb)", c.DatabaseDriver)
	}
	if c.Recorder.IntervalSeconds <= 0 {
		return fmt.Errorf("recorder.interval_seconds must be positive, got %d", c.Recorder.IntervalSeconds)
	}
	return nil
}

// Save saves the configuration; the file extension selects JSON or YAML
func (c *AppConfig) Save(configPath string) error {
	var (
		output []byte
		err    error
	)
	switch strings.ToLower(filepath.Ext(configPath)) {
	case ".yaml", ".yml":
		output, err = yaml.Marshal(c)
	default:
		output, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(configPath, output, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// resolvePaths converts relative paths to absolute based on config file location
func (c *AppConfig) resolvePaths(configDir string) {
	for _, p := range []*string{
		&c.DatabaseFilename,
		&c.Log.File,
		&c.Birdnet.StatusLog,
		&c.Birdnet.StateFile,
	} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(configDir, *p)
		}
	}
}

// Database returns the storage settings
func (c *AppConfig) Database() DatabaseConfig {
	return DatabaseConfig{
		Filename: c.DatabaseFilename,
		Driver:   c.DatabaseDriver,
		Table:    c.TableName,
	}
}

// EnsureDirectories creates the directories of every configured output file
func (c *AppConfig) EnsureDirectories() error {
	for _, file := range []string{c.DatabaseFilename, c.Log.File, c.Birdnet.StatusLog, c.Birdnet.StateFile} {
		if file == "" {
			continue
		}
		dir := filepath.Dir(file)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
