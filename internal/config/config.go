// Package config handles configuration loading and management for dailyshuffle.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ShayCichocki/dailyshuffle/pkg/models"
)

// EnvPrefix prefixes environment overrides, e.g. DAILYSHUFFLE_STORE_DRIVER.
const EnvPrefix = "DAILYSHUFFLE"

const projectConfigName = ".dailyshuffle.yaml"

// Config holds all configuration for dailyshuffle.
type Config struct {
	Store      StoreConfig      `mapstructure:"store"`
	Roster     RosterConfig     `mapstructure:"roster"`
	Allocation AllocationConfig `mapstructure:"allocation"`
	Archive    ArchiveConfig    `mapstructure:"archive"`
	Notify     NotifyConfig     `mapstructure:"notify"`
	Publish    PublishConfig    `mapstructure:"publish"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

// StoreConfig selects the state database.
type StoreConfig struct {
	// Driver is sqlite, postgres or memory.
	Driver      string `mapstructure:"driver"`
	SQLitePath  string `mapstructure:"sqlite_path"`
	PostgresDSN string `mapstructure:"postgres_dsn"`
}

// RosterConfig controls where people and rooms come from.
type RosterConfig struct {
	// File is a YAML/JSON roster document. Empty reads the roster tables.
	File       string `mapstructure:"file"`
	MiscMarker string `mapstructure:"misc_marker"`
}

// AllocationConfig holds allocator settings.
type AllocationConfig struct {
	// Seed fixes the random source. Zero derives a seed from the date.
	Seed         uint64 `mapstructure:"seed"`
	AvoidRepeats bool   `mapstructure:"avoid_repeats"`
}

// ArchiveConfig selects the snapshot archive.
type ArchiveConfig struct {
	// Driver is none, fs, s3 or memory.
	Driver string   `mapstructure:"driver"`
	FSRoot string   `mapstructure:"fs_root"`
	S3     S3Config `mapstructure:"s3"`
}

// S3Config holds the bucket settings for the s3 archive driver.
type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint"`
	PathStyle bool   `mapstructure:"path_style"`
}

// NotifyConfig holds notifier settings.
type NotifyConfig struct {
	WebhookURL string `mapstructure:"webhook_url"`
	Console    bool   `mapstructure:"console"`
}

// PublishConfig holds publication settings.
type PublishConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// MetricsConfig holds metrics export settings.
type MetricsConfig struct {
	// Textfile is written after every run when set.
	Textfile  string `mapstructure:"textfile"`
	Namespace string `mapstructure:"namespace"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (DAILYSHUFFLE_*, WEBHOOK_URL)
// 2. Project config (.dailyshuffle.yaml in current directory or parent)
// 3. User config (~/.config/dailyshuffle/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading project config %s: %w", projectConfig, err)
		}
		if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
			return nil, fmt.Errorf("merging project config: %w", err)
		}
	}

	bindEnv(v)

	return unmarshal(v)
}

// LoadFromPath loads configuration from a specific file path, on top of the
// defaults and environment.
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	bindEnv(v)

	return unmarshal(v)
}

func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The webhook URL is commonly provided unprefixed.
	v.BindEnv("notify.webhook_url", EnvPrefix+"_NOTIFY_WEBHOOK_URL", "WEBHOOK_URL")
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Expand ${VAR} references
	cfg.Notify.WebhookURL = expandEnv(cfg.Notify.WebhookURL)
	cfg.Store.SQLitePath = expandEnv(cfg.Store.SQLitePath)
	cfg.Store.PostgresDSN = expandEnv(cfg.Store.PostgresDSN)

	return cfg, nil
}

// Save writes the configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	return SaveTo(cfg, filepath.Join(userConfigDir, "config.yaml"))
}

// SaveTo writes the configuration to path.
func SaveTo(cfg *Config, path string) error {
	v := viper.New()
	v.SetConfigFile(path)

	v.Set("store.driver", cfg.Store.Driver)
	v.Set("store.sqlite_path", cfg.Store.SQLitePath)
	v.Set("store.postgres_dsn", cfg.Store.PostgresDSN)
	v.Set("roster.file", cfg.Roster.File)
	v.Set("roster.misc_marker", cfg.Roster.MiscMarker)
	v.Set("allocation.seed", cfg.Allocation.Seed)
	v.Set("allocation.avoid_repeats", cfg.Allocation.AvoidRepeats)
	v.Set("archive.driver", cfg.Archive.Driver)
	v.Set("archive.fs_root", cfg.Archive.FSRoot)
	v.Set("archive.s3.bucket", cfg.Archive.S3.Bucket)
	v.Set("archive.s3.region", cfg.Archive.S3.Region)
	v.Set("archive.s3.endpoint", cfg.Archive.S3.Endpoint)
	v.Set("archive.s3.path_style", cfg.Archive.S3.PathStyle)
	v.Set("notify.webhook_url", cfg.Notify.WebhookURL)
	v.Set("notify.console", cfg.Notify.Console)
	v.Set("publish.timeout", cfg.Publish.Timeout.String())
	v.Set("metrics.textfile", cfg.Metrics.Textfile)
	v.Set("metrics.namespace", cfg.Metrics.Namespace)

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if found.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// Validate reports settings that would make a run impossible.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "sqlite", "postgres", "memory":
	default:
		return &models.ConfigurationError{Reason: fmt.Sprintf("unknown store.driver %q", c.Store.Driver)}
	}

	switch c.Archive.Driver {
	case "none", "fs", "memory":
	case "s3":
		if c.Archive.S3.Bucket == "" {
			return &models.ConfigurationError{Reason: "archive.s3.bucket is required for the s3 driver"}
		}
	default:
		return &models.ConfigurationError{Reason: fmt.Sprintf("unknown archive.driver %q", c.Archive.Driver)}
	}

	if c.Publish.Timeout <= 0 {
		return &models.ConfigurationError{Reason: fmt.Sprintf("publish.timeout must be positive, got %s", c.Publish.Timeout)}
	}

	if strings.TrimSpace(c.Roster.MiscMarker) == "" {
		return &models.ConfigurationError{Reason: "roster.misc_marker must not be empty"}
	}

	return nil
}

func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("store.driver", d.Store.Driver)
	v.SetDefault("store.sqlite_path", d.Store.SQLitePath)
	v.SetDefault("store.postgres_dsn", d.Store.PostgresDSN)

	v.SetDefault("roster.file", d.Roster.File)
	v.SetDefault("roster.misc_marker", d.Roster.MiscMarker)

	v.SetDefault("allocation.seed", d.Allocation.Seed)
	v.SetDefault("allocation.avoid_repeats", d.Allocation.AvoidRepeats)

	v.SetDefault("archive.driver", d.Archive.Driver)
	v.SetDefault("archive.fs_root", d.Archive.FSRoot)
	v.SetDefault("archive.s3.bucket", d.Archive.S3.Bucket)
	v.SetDefault("archive.s3.region", d.Archive.S3.Region)
	v.SetDefault("archive.s3.endpoint", d.Archive.S3.Endpoint)
	v.SetDefault("archive.s3.path_style", d.Archive.S3.PathStyle)

	v.SetDefault("notify.webhook_url", "${WEBHOOK_URL}")
	v.SetDefault("notify.console", d.Notify.Console)

	v.SetDefault("publish.timeout", "30s")

	v.SetDefault("metrics.textfile", d.Metrics.Textfile)
	v.SetDefault("metrics.namespace", d.Metrics.Namespace)
}

// getUserConfigDir returns the XDG config directory for dailyshuffle.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "dailyshuffle")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "dailyshuffle")
	}
	return filepath.Join(home, ".config", "dailyshuffle")
}

// getUserDataDir returns the XDG data directory for dailyshuffle.
func getUserDataDir() string {
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "dailyshuffle")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".local", "share", "dailyshuffle")
	}
	return filepath.Join(home, ".local", "share", "dailyshuffle")
}

// findProjectConfig searches for .dailyshuffle.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, projectConfigName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// expandEnv expands ${VAR} and $VAR references in a string.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Default returns a Config with all default values.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Driver:      "sqlite",
			SQLitePath:  filepath.Join(getUserDataDir(), "dailyshuffle.db"),
			PostgresDSN: "postgres://localhost/dailyshuffle?sslmode=disable",
		},
		Roster: RosterConfig{
			MiscMarker: models.DefaultMiscMarker,
		},
		Allocation: AllocationConfig{
			AvoidRepeats: true,
		},
		Archive: ArchiveConfig{
			Driver: "none",
			FSRoot: "./archive",
			S3: S3Config{
				Region: "us-east-1",
			},
		},
		Notify: NotifyConfig{
			WebhookURL: os.Getenv("WEBHOOK_URL"),
			Console:    true,
		},
		Publish: PublishConfig{
			Timeout: 30 * time.Second,
		},
		Metrics: MetricsConfig{
			Namespace: "dailyshuffle",
		},
	}
}
