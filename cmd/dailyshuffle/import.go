package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/dailyshuffle/internal/grouping"
	"github.com/ShayCichocki/dailyshuffle/internal/pipeline"
	"github.com/ShayCichocki/dailyshuffle/internal/roster"
	"github.com/ShayCichocki/dailyshuffle/pkg/models"
)

var importCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Load a roster file into the store",
	Long: `Replace the stored people, rooms and exclusions with the contents
of a YAML, JSON or JSONC roster document. The replacement is atomic:
a rejected file leaves the store unchanged.

Example document:

  rooms:
    - {name: "Room 1", capacity: 4}
  people:
    - {name: "Ada", project: "Apollo"}
    - {name: "Bo", project: "Miscellaneous"}
  exclusions: ["Cy"]`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	doc, err := roster.ReadFile(args[0])
	if err != nil {
		printStatus("✗", "Roster rejected", color.FgRed)
		return err
	}

	// Catch duplicate names and bad rooms before touching the store.
	groups, err := grouping.Group(doc.People, doc.Exclusions,
		grouping.WithMiscMarker(cfg.Roster.MiscMarker), grouping.WithSource(args[0]))
	if err != nil {
		printStatus("✗", "Roster rejected", color.FgRed)
		return err
	}
	if err := models.RoomSet(doc.Rooms).Validate(); err != nil {
		printStatus("✗", "Rooms rejected", color.FgRed)
		return err
	}

	db, err := pipeline.OpenStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.ReplaceRoster(context.Background(), doc.People, doc.Rooms, doc.Exclusions); err != nil {
		return fmt.Errorf("import roster: %w", err)
	}

	printStatus("✓", fmt.Sprintf("Imported %d people in %d projects (%d unassigned), %d rooms, %d exclusions",
		len(doc.People), len(groups.Projects), len(groups.Misc), len(doc.Rooms), len(doc.Exclusions)), color.FgGreen)

	capacity := models.RoomSet(doc.Rooms).TotalCapacity()
	if head := groups.Headcount(); head > capacity {
		printStatus("⚠", fmt.Sprintf("%d people for %d seats: %d will overflow each day", head, capacity, head-capacity), color.FgYellow)
	}
	return nil
}
