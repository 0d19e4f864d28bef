package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/dailyshuffle/internal/notify"
	"github.com/ShayCichocki/dailyshuffle/internal/pipeline"
	"github.com/ShayCichocki/dailyshuffle/internal/roster"
	"github.com/ShayCichocki/dailyshuffle/pkg/models"
)

var (
	previewDate   string
	previewSeed   uint64
	previewRoster string
	previewWatch  bool
)

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Show an allocation without publishing it",
	Long: `Allocate seating and print the table. Nothing is stored or sent.

With --watch, the roster file is watched and the table is redrawn
whenever it changes. Press Ctrl+C to stop.

Examples:
  dailyshuffle preview
  dailyshuffle preview --roster office.yaml --watch`,
	Args: cobra.NoArgs,
	RunE: runPreview,
}

func init() {
	previewCmd.Flags().StringVar(&previewDate, "date", "", "Day to allocate (YYYY-MM-DD, default today)")
	previewCmd.Flags().Uint64Var(&previewSeed, "seed", 0, "Random seed (default derived from the date)")
	previewCmd.Flags().StringVar(&previewRoster, "roster", "", "Roster file (default roster.file from config)")
	previewCmd.Flags().BoolVar(&previewWatch, "watch", false, "Redraw when the roster file changes")
}

func runPreview(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	date, err := parseDate(previewDate)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rc, res, err := pipeline.Build(ctx, cfg, pipeline.Overrides{
		Date:       date,
		Seed:       previewSeed,
		RosterFile: previewRoster,
		DryRun:     true,
	})
	if err != nil {
		return err
	}
	defer res.Close()

	console := notify.NewConsole(cmd.OutOrStdout())
	render := func() error {
		report, err := rc.Run(ctx)
		if err != nil {
			return err
		}
		return console.Send(ctx, report.Rows, models.DateLabel(date))
	}

	if !previewWatch {
		return render()
	}

	file, ok := rc.Roster.(*roster.File)
	if !ok {
		return fmt.Errorf("--watch needs a roster file (--roster or roster.file)")
	}

	w, err := roster.Watch(file.Path)
	if err != nil {
		return err
	}
	defer w.Close()

	if err := render(); err != nil {
		printStatus("✗", err.Error(), color.FgRed)
	}
	printStatus("•", fmt.Sprintf("Watching %s", file.Path), color.FgCyan)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.Changes():
			fmt.Fprintln(cmd.OutOrStdout())
			if err := render(); err != nil {
				// Keep watching; the next save may fix the file.
				printStatus("✗", err.Error(), color.FgRed)
			}
		}
	}
}
