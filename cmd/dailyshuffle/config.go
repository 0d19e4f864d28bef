package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/dailyshuffle/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify dailyshuffle configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

Configuration is stored at ~/.config/dailyshuffle/config.yaml
Project-specific overrides can be placed in .dailyshuffle.yaml
Environment variables DAILYSHUFFLE_<SECTION>_<KEY> override both.`,
	Args: cobra.MaximumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		switch len(args) {
		case 0:
			displayAllConfig(cfg)
		case 1:
			displayConfigKey(cfg, args[0])
		default:
			setConfigKey(cfg, args[0], args[1])
		}
	},
}

// configKeys lists every key in display order.
var configKeys = []string{
	"store.driver",
	"store.sqlite_path",
	"store.postgres_dsn",
	"roster.file",
	"roster.misc_marker",
	"allocation.seed",
	"allocation.avoid_repeats",
	"archive.driver",
	"archive.fs_root",
	"archive.s3.bucket",
	"archive.s3.region",
	"archive.s3.endpoint",
	"archive.s3.path_style",
	"notify.webhook_url",
	"notify.console",
	"publish.timeout",
	"metrics.textfile",
	"metrics.namespace",
}

// displayAllConfig prints all configuration values.
func displayAllConfig(cfg *config.Config) {
	for _, key := range configKeys {
		value, _ := getConfigValue(cfg, key)
		fmt.Printf("%s: %s\n", key, value)
	}
	if p := config.GetProjectConfigPath(); p != "" {
		fmt.Printf("\n(project overrides from %s)\n", p)
	}
}

// displayConfigKey prints a single configuration value.
func displayConfigKey(cfg *config.Config, key string) {
	value, err := getConfigValue(cfg, key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(value)
}

// setConfigKey sets a configuration value and saves the config.
func setConfigKey(cfg *config.Config, key, value string) {
	if err := setConfigValue(cfg, key, value); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := config.Save(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		os.Exit(1)
	}

	if strings.EqualFold(key, "notify.webhook_url") {
		value = config.MaskWebhookURL(value)
	}
	fmt.Printf("Set %s = %s\n", key, value)
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.Config, key string) (string, error) {
	switch strings.ToLower(key) {
	case "store.driver":
		return cfg.Store.Driver, nil
	case "store.sqlite_path":
		return cfg.Store.SQLitePath, nil
	case "store.postgres_dsn":
		return cfg.Store.PostgresDSN, nil
	case "roster.file":
		return cfg.Roster.File, nil
	case "roster.misc_marker":
		return cfg.Roster.MiscMarker, nil
	case "allocation.seed":
		return strconv.FormatUint(cfg.Allocation.Seed, 10), nil
	case "allocation.avoid_repeats":
		return strconv.FormatBool(cfg.Allocation.AvoidRepeats), nil
	case "archive.driver":
		return cfg.Archive.Driver, nil
	case "archive.fs_root":
		return cfg.Archive.FSRoot, nil
	case "archive.s3.bucket":
		return cfg.Archive.S3.Bucket, nil
	case "archive.s3.region":
		return cfg.Archive.S3.Region, nil
	case "archive.s3.endpoint":
		return cfg.Archive.S3.Endpoint, nil
	case "archive.s3.path_style":
		return strconv.FormatBool(cfg.Archive.S3.PathStyle), nil
	case "notify.webhook_url":
		return config.MaskWebhookURL(cfg.Notify.WebhookURL), nil
	case "notify.console":
		return strconv.FormatBool(cfg.Notify.Console), nil
	case "publish.timeout":
		return cfg.Publish.Timeout.String(), nil
	case "metrics.textfile":
		return cfg.Metrics.Textfile, nil
	case "metrics.namespace":
		return cfg.Metrics.Namespace, nil
	default:
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
}

// setConfigValue sets a configuration value by dot-notation key.
func setConfigValue(cfg *config.Config, key, value string) error {
	switch strings.ToLower(key) {
	case "store.driver":
		cfg.Store.Driver = value
	case "store.sqlite_path":
		cfg.Store.SQLitePath = value
	case "store.postgres_dsn":
		cfg.Store.PostgresDSN = value
	case "roster.file":
		cfg.Roster.File = value
	case "roster.misc_marker":
		cfg.Roster.MiscMarker = value
	case "allocation.seed":
		n, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid value for allocation.seed: %w", err)
		}
		cfg.Allocation.Seed = n
	case "allocation.avoid_repeats":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for allocation.avoid_repeats: %w", err)
		}
		cfg.Allocation.AvoidRepeats = b
	case "archive.driver":
		cfg.Archive.Driver = value
	case "archive.fs_root":
		cfg.Archive.FSRoot = value
	case "archive.s3.bucket":
		cfg.Archive.S3.Bucket = value
	case "archive.s3.region":
		cfg.Archive.S3.Region = value
	case "archive.s3.endpoint":
		cfg.Archive.S3.Endpoint = value
	case "archive.s3.path_style":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for archive.s3.path_style: %w", err)
		}
		cfg.Archive.S3.PathStyle = b
	case "notify.webhook_url":
		if value != "" {
			if err := config.ValidateWebhookURL(value); err != nil {
				return err
			}
		}
		cfg.Notify.WebhookURL = value
	case "notify.console":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for notify.console: %w", err)
		}
		cfg.Notify.Console = b
	case "publish.timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for publish.timeout: %w", err)
		}
		cfg.Publish.Timeout = d
	case "metrics.textfile":
		cfg.Metrics.Textfile = value
	case "metrics.namespace":
		cfg.Metrics.Namespace = value
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}
