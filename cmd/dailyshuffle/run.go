package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/dailyshuffle/internal/notify"
	"github.com/ShayCichocki/dailyshuffle/internal/pipeline"
	"github.com/ShayCichocki/dailyshuffle/internal/state"
	"github.com/ShayCichocki/dailyshuffle/pkg/models"
)

var (
	runDate     string
	runSeed     uint64
	runDryRun   bool
	runRoster   string
	runNoNotify bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Allocate today's seating and publish it",
	Long: `Run the full pipeline for one day:

  1. Read people, rooms and exclusions (store or --roster file)
  2. Group people by project; "Miscellaneous" people are pooled
  3. Seat groups, fill with the pool, swap away from yesterday's rooms
  4. Store, archive and announce the result

Publication failures are reported but do not fail the command. Bad roster
data or configuration aborts before anything is written.

Examples:
  dailyshuffle run
  dailyshuffle run --date 2024-03-04 --dry-run
  dailyshuffle run --roster office.yaml --no-notify`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runDate, "date", "", "Day to allocate (YYYY-MM-DD, default today)")
	runCmd.Flags().Uint64Var(&runSeed, "seed", 0, "Random seed (default derived from the date)")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "Allocate and print without writing or notifying")
	runCmd.Flags().StringVar(&runRoster, "roster", "", "Read the roster from a YAML/JSON file instead of the store")
	runCmd.Flags().BoolVar(&runNoNotify, "no-notify", false, "Skip the webhook and console notifiers")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	date, err := parseDate(runDate)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rc, res, err := pipeline.Build(ctx, cfg, pipeline.Overrides{
		Date:       date,
		Seed:       runSeed,
		RosterFile: runRoster,
		DryRun:     runDryRun,
		NoNotify:   runNoNotify,
		Out:        cmd.OutOrStdout(),
	})
	if err != nil {
		return err
	}
	defer res.Close()

	report, err := rc.Run(ctx)
	if err != nil {
		if pipeline.IsInputError(err) {
			printStatus("✗", "Roster or configuration rejected", color.FgRed)
		}
		return err
	}

	if runDryRun {
		console := notify.NewConsole(cmd.OutOrStdout())
		if err := console.Send(ctx, report.Rows, models.DateLabel(date)); err != nil {
			return err
		}
	}

	printReport(report)
	return nil
}

// printReport prints the run summary.
func printReport(r *pipeline.Report) {
	fmt.Println()
	fmt.Printf("Run %s for %s (seed %d)\n", r.RunID, r.Day, r.Seed)

	printStatus("✓", fmt.Sprintf("Seated %d people (%d projects, %d unassigned to a project)", r.Seated, r.Projects, r.Misc), color.FgGreen)

	if r.Shortfall > 0 {
		printStatus("⚠", fmt.Sprintf("%d people placed outside rooms: not enough seats", r.Shortfall), color.FgYellow)
	}
	if len(r.SplitProjects) > 0 {
		printStatus("⚠", fmt.Sprintf("Split across rooms: %s", strings.Join(r.SplitProjects, ", ")), color.FgYellow)
	}
	if r.RepeatsBefore > 0 {
		printStatus("↻", fmt.Sprintf("Repeats from last allocation: %d -> %d (%d swaps)", r.RepeatsBefore, r.RepeatsAfter, r.Swaps), color.FgCyan)
	}

	switch {
	case r.Status == state.RunDryRun:
		printStatus("•", "Dry run: nothing written", color.FgCyan)
	case len(r.PublishErrors) == 0:
		printStatus("✓", "Published", color.FgGreen)
	default:
		for _, e := range r.PublishErrors {
			printStatus("✗", e.Error(), color.FgRed)
		}
		printStatus("⚠", "Allocation computed; publication degraded", color.FgYellow)
	}
}
