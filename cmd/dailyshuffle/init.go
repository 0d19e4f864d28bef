package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/dailyshuffle/internal/config"
	"github.com/ShayCichocki/dailyshuffle/internal/pipeline"
)

var (
	initForce      bool
	initWithRoster bool
	initProject    bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Set up configuration and the database",
	Long: `Prepare dailyshuffle for its first run.

This command:
  - Creates the user config file if it does not exist
  - Creates and migrates the state database
  - Checks the webhook URL and the archive settings
  - Optionally writes an example roster and a project config

Examples:
  dailyshuffle init
  dailyshuffle init --with-roster   # write roster.yaml to start from
  dailyshuffle init --project       # write .dailyshuffle.yaml here
  dailyshuffle init --force         # overwrite the user config with defaults`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing user config with defaults")
	initCmd.Flags().BoolVar(&initWithRoster, "with-roster", false, "Write an example roster.yaml in the current directory")
	initCmd.Flags().BoolVar(&initProject, "project", false, "Write a .dailyshuffle.yaml template in the current directory")
}

func runInit(cmd *cobra.Command, args []string) error {
	fmt.Println("Initializing dailyshuffle...")
	fmt.Println()

	// Step 1: User config
	userConfig := config.GetUserConfigPath()
	if _, err := os.Stat(userConfig); err == nil && !initForce {
		printStatus("✓", fmt.Sprintf("Config exists at %s", userConfig), color.FgGreen)
	} else {
		defaults := config.Default()
		// Keep the secret out of the file.
		defaults.Notify.WebhookURL = "${WEBHOOK_URL}"
		if err := config.Save(defaults); err != nil {
			printStatus("✗", "Could not write config", color.FgRed)
			return fmt.Errorf("writing config: %w", err)
		}
		printStatus("✓", fmt.Sprintf("Wrote default config to %s", userConfig), color.FgGreen)
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		printStatus("✗", "Configuration is invalid", color.FgRed)
		return err
	}

	// Step 2: Database
	db, err := pipeline.OpenStore(cfg)
	if err != nil {
		printStatus("✗", fmt.Sprintf("Could not open %s store", cfg.Store.Driver), color.FgRed)
		return err
	}
	defer db.Close()
	where := db.Path()
	if where == "" {
		where = "postgres"
	}
	printStatus("✓", fmt.Sprintf("Database ready (%s)", where), color.FgGreen)

	rooms, err := db.ReadRooms(context.Background())
	if err != nil {
		return err
	}
	if len(rooms) == 0 && cfg.Roster.File == "" {
		printStatus("⚠", "No rooms stored yet (run: dailyshuffle import roster.yaml)", color.FgYellow)
	}

	// Step 3: Notification and archive
	if u, err := config.GetWebhookURL(cfg); err != nil {
		printStatus("⚠", "WEBHOOK_URL not set (results are only printed)", color.FgYellow)
	} else if err := config.ValidateWebhookURL(u); err != nil {
		printStatus("✗", err.Error(), color.FgRed)
	} else {
		printStatus("✓", fmt.Sprintf("Webhook configured from %s: %s", config.GetWebhookURLSource(cfg), config.MaskWebhookURL(u)), color.FgGreen)
	}

	if cfg.Archive.Driver == "none" {
		printStatus("•", "Archive disabled", color.FgCyan)
	} else {
		printStatus("✓", fmt.Sprintf("Archive driver: %s", cfg.Archive.Driver), color.FgGreen)
	}

	// Step 4: Optional files
	if initWithRoster {
		if err := writeIfAbsent("roster.yaml", exampleRoster); err != nil {
			return err
		}
		printStatus("✓", "Created roster.yaml", color.FgGreen)
	}
	if initProject {
		if err := writeIfAbsent(".dailyshuffle.yaml", projectTemplate); err != nil {
			return err
		}
		printStatus("✓", "Created .dailyshuffle.yaml template", color.FgGreen)
	}

	fmt.Printf("\n%s dailyshuffle is ready.\n\n", color.GreenString("✓"))
	fmt.Println("Next steps:")
	fmt.Println("  1. Load people and rooms:")
	fmt.Println("     dailyshuffle import roster.yaml")
	fmt.Println("  2. Check an allocation:")
	fmt.Println("     dailyshuffle preview")
	fmt.Println("  3. Schedule the daily run, e.g. from cron:")
	fmt.Println("     0 8 * * 1-5 dailyshuffle run")

	return nil
}

// writeIfAbsent refuses to overwrite unless --force is set.
func writeIfAbsent(name, content string) error {
	path, err := filepath.Abs(name)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil && !initForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", name)
	}
	return os.WriteFile(path, []byte(content), 0644)
}

const exampleRoster = `# Rooms are filled in random order each day.
rooms:
  - {name: "Room 1", capacity: 4}
  - {name: "Room 2", capacity: 4}
  - {name: "Room 3", capacity: 2}

# People sharing a project are seated together when a room fits them.
# A project containing "Miscellaneous" marks people with no team.
people:
  - {name: "Ada", project: "Apollo"}
  - {name: "Bo", project: "Apollo"}
  - {name: "Cy", project: "Gemini"}
  - {name: "Di", project: "Gemini"}
  - {name: "Ed", project: "Gemini"}
  - {name: "Fay", project: "Miscellaneous"}
  - {name: "Gus", project: "Miscellaneous"}

# Names listed here are skipped (leave, travel).
exclusions: []
`

const projectTemplate = `# dailyshuffle project configuration
# Overrides ~/.config/dailyshuffle/config.yaml for this directory.

roster:
  file: roster.yaml
  # misc_marker: Miscellaneous

# archive:
#   driver: fs
#   fs_root: ./archive

# notify:
#   console: true

# publish:
#   timeout: 30s
`
