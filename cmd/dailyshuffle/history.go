package main

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/dailyshuffle/internal/notify"
	"github.com/ShayCichocki/dailyshuffle/internal/pipeline"
	"github.com/ShayCichocki/dailyshuffle/internal/state"
	"github.com/ShayCichocki/dailyshuffle/pkg/models"
)

var (
	historyLimit int
	historyRooms bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent runs",
	Long: `Show the most recent runs, newest first, with their seating
statistics and publication status. With --rooms the stored table for
each listed day is printed as well.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "Number of runs to show")
	historyCmd.Flags().BoolVar(&historyRooms, "rooms", false, "Print each day's stored allocation")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	db, err := pipeline.OpenStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	runs, err := db.ListRuns(ctx, historyLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded yet.")
		return nil
	}

	shown := make(map[string]bool)
	for _, r := range runs {
		printRun(r)

		if !historyRooms || shown[r.Day] {
			continue
		}
		shown[r.Day] = true

		day, err := time.ParseInLocation(models.DayLayout, r.Day, time.Local)
		if err != nil {
			continue
		}
		stored, err := db.ReadDay(ctx, day)
		if err != nil {
			return err
		}
		if stored != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "  written %s\n%s\n", stored.WrittenAt, notify.RenderTable(stored.Rows))
		}
	}
	return nil
}

func printRun(r state.Run) {
	symbol, attr := "✓", color.FgGreen
	if r.Status == state.RunDegraded {
		symbol, attr = "⚠", color.FgYellow
	}
	printStatus(symbol, fmt.Sprintf("%s  %-8s seated %d  overflow %d  repeats %d->%d  swaps %d  errors %d  (%s)",
		r.Day, r.Status, r.Seated, r.Shortfall, r.RepeatsBefore, r.RepeatsAfter, r.Swaps, r.PublishErrors,
		r.StartedAt.Local().Format(models.TimestampLayout)), attr)
}
