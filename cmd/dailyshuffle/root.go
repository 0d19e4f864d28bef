package main

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/dailyshuffle/internal/config"
	"github.com/ShayCichocki/dailyshuffle/pkg/models"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "dailyshuffle",
	Short: "Daily room seating allocator",
	Long: `dailyshuffle assigns people to rooms once a day.

Project teams are kept together where capacity allows, everyone else
fills the remaining seats at random, and people who sat in a room
yesterday are swapped elsewhere when a partner is available. Anyone
who does not fit is listed in an overflow row.

The result is stored, optionally archived, and announced on a
webhook and in the terminal.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: user config, then .dailyshuffle.yaml)")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(previewCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig honours --config and falls back to the layered lookup.
func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFromPath(configPath)
	}
	return config.Load()
}

// parseDate accepts YYYY-MM-DD in local time. Empty means today.
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Now(), nil
	}
	d, err := time.ParseInLocation(models.DayLayout, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return d, nil
}

// printStatus prints a colored status line.
func printStatus(symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Printf("%s %s\n", c.Sprint(symbol), message)
}
