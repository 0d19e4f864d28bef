// Package pipeline runs one day's seating: it reads the roster, groups people,
// allocates rooms against the prior allocation, then publishes and records
// the outcome.
package pipeline

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"

	"github.com/ShayCichocki/dailyshuffle/internal/allocator"
	"github.com/ShayCichocki/dailyshuffle/internal/grouping"
	"github.com/ShayCichocki/dailyshuffle/internal/metrics"
	"github.com/ShayCichocki/dailyshuffle/internal/publish"
	"github.com/ShayCichocki/dailyshuffle/internal/roster"
	"github.com/ShayCichocki/dailyshuffle/internal/state"
	"github.com/ShayCichocki/dailyshuffle/pkg/models"
)

// PriorStore returns the most recent allocation strictly before a day.
// An empty result on the first run is not an error.
type PriorStore interface {
	ReadPrior(ctx context.Context, before time.Time) (models.PriorAllocation, error)
}

// RunRecorder stores the run log.
type RunRecorder interface {
	RecordRun(ctx context.Context, r *state.Run) error
}

// textfileWriter is implemented by collectors that can export to a file.
type textfileWriter interface {
	WriteTextfile(path string) error
}

// RunContext carries everything a run needs. Zero-valued optional fields
// disable the matching step.
type RunContext struct {
	// Date is the day being allocated.
	Date time.Time
	// Seed drives the allocator. Zero derives one from Date.
	Seed uint64

	Roster     roster.Source
	MiscMarker string

	// Priors are consulted in order; the first non-empty result wins.
	// Empty disables the anti-repeat pass.
	Priors []PriorStore

	// Publisher is skipped when nil or when DryRun is set.
	Publisher *publish.Publisher
	DryRun    bool

	// Runs records the run log. Dry runs are never recorded.
	Runs RunRecorder

	Metrics         metrics.Collector
	MetricsTextfile string

	// Now defaults to time.Now.
	Now func() time.Time
}

// Report is the outcome of a run that got as far as an allocation.
type Report struct {
	RunID string
	Day   string
	Seed  uint64

	Allocation *models.Allocation
	Rows       []models.Row

	Projects      int
	Misc          int
	Seated        int
	Shortfall     int
	RepeatsBefore int
	RepeatsAfter  int
	Swaps         int
	SplitProjects []string

	// PublishErrors holds every non-fatal failure after allocation.
	PublishErrors []*models.PublicationError
	Status        state.RunStatus

	StartedAt  time.Time
	FinishedAt time.Time
}

// Degraded reports whether any publication step failed.
func (r *Report) Degraded() bool {
	return r.Status == state.RunDegraded
}

// DeriveSeed maps a day to a stable seed so reruns of the same day
// reproduce the same allocation.
func DeriveSeed(day time.Time) uint64 {
	sum := blake3.Sum256([]byte("dailyshuffle/" + models.DayKey(day)))
	seed := binary.LittleEndian.Uint64(sum[:8])
	if seed == 0 {
		seed = 1
	}
	return seed
}

// NewRand returns the allocator's random source for seed.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Run executes the pipeline. Roster, prior and allocation failures are
// returned as errors before anything is written; publication failures are
// collected in the report.
func (rc *RunContext) Run(ctx context.Context) (*Report, error) {
	now := rc.Now
	if now == nil {
		now = time.Now
	}
	collector := rc.Metrics
	if collector == nil {
		collector = metrics.NewNop()
	}

	date := rc.Date
	if date.IsZero() {
		date = now()
	}
	seed := rc.Seed
	if seed == 0 {
		seed = DeriveSeed(date)
	}

	report := &Report{
		RunID:     uuid.New().String(),
		Day:       models.DayKey(date),
		Seed:      seed,
		StartedAt: now(),
	}

	if rc.Roster == nil {
		return nil, &models.ConfigurationError{Reason: "no roster source configured"}
	}

	groups, rooms, err := rc.readRoster(ctx)
	if err != nil {
		return nil, err
	}
	report.Projects = len(groups.Projects)
	report.Misc = len(groups.Misc)

	prior, err := rc.readPrior(ctx, date)
	if err != nil {
		return nil, err
	}

	result, err := allocator.Allocate(groups, rooms, allocator.Options{
		Rand:  NewRand(seed),
		Prior: prior,
	})
	if err != nil {
		return nil, fmt.Errorf("allocate: %w", err)
	}

	report.Allocation = result.Allocation
	report.Rows = result.Allocation.Rows()
	report.Seated = result.Allocation.Seated()
	report.Shortfall = result.Shortfall
	report.RepeatsBefore = result.RepeatsBefore
	report.RepeatsAfter = result.RepeatsAfter
	report.Swaps = result.Swaps
	report.SplitProjects = result.SplitProjects

	log.Printf("[pipeline] %s: seated %d, shortfall %d, repeats %d -> %d (%d swaps)",
		report.Day, report.Seated, report.Shortfall, report.RepeatsBefore, report.RepeatsAfter, report.Swaps)
	if report.Shortfall > 0 {
		log.Printf("[pipeline] %d people placed in overflow", report.Shortfall)
	}

	collector.RecordAllocation(metrics.Allocation{
		Seated:        report.Seated,
		Shortfall:     report.Shortfall,
		RepeatsBefore: report.RepeatsBefore,
		RepeatsAfter:  report.RepeatsAfter,
		Swaps:         report.Swaps,
		SplitProjects: len(report.SplitProjects),
	})

	report.Status = state.RunOK
	switch {
	case rc.DryRun:
		report.Status = state.RunDryRun
	case rc.Publisher != nil:
		pub := rc.Publisher.Publish(ctx, result.Allocation, date, now())
		report.Rows = pub.Rows
		report.PublishErrors = append(report.PublishErrors, pub.Errors...)
		for _, e := range pub.Errors {
			collector.RecordPublishFailure(e.Stage, e.Target)
		}
		if pub.Status == publish.StatusDegraded {
			report.Status = state.RunDegraded
		}
	}

	report.FinishedAt = now()
	rc.finish(ctx, report, collector)

	return report, nil
}

func (rc *RunContext) readRoster(ctx context.Context) (*grouping.Groups, models.RoomSet, error) {
	entries, err := rc.Roster.ReadRoster(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("read roster: %w", err)
	}
	rooms, err := rc.Roster.ReadRooms(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("read rooms: %w", err)
	}
	exclusions, err := rc.Roster.ReadExclusions(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("read exclusions: %w", err)
	}

	groups, err := grouping.Group(entries, exclusions, grouping.WithMiscMarker(rc.MiscMarker))
	if err != nil {
		return nil, nil, err
	}

	log.Printf("[pipeline] roster: %d people, %d rooms, %d excluded, %d projects, %d misc",
		len(entries), len(rooms), len(exclusions), len(groups.Projects), len(groups.Misc))

	return groups, models.RoomSet(rooms), nil
}

func (rc *RunContext) readPrior(ctx context.Context, date time.Time) (models.PriorAllocation, error) {
	for _, store := range rc.Priors {
		prior, err := store.ReadPrior(ctx, date)
		if err != nil {
			return nil, fmt.Errorf("read prior allocation: %w", err)
		}
		if prior.Len() > 0 {
			return prior, nil
		}
	}
	return nil, nil
}

// finish records the run and exports metrics. Failures here are logged and
// added to the report; the allocation already stands.
func (rc *RunContext) finish(ctx context.Context, report *Report, collector metrics.Collector) {
	if rc.Runs != nil && !rc.DryRun {
		run := &state.Run{
			ID:            report.RunID,
			Day:           report.Day,
			Seed:          report.Seed,
			Seated:        report.Seated,
			Shortfall:     report.Shortfall,
			RepeatsBefore: report.RepeatsBefore,
			RepeatsAfter:  report.RepeatsAfter,
			Swaps:         report.Swaps,
			PublishErrors: len(report.PublishErrors),
			Status:        report.Status,
			StartedAt:     report.StartedAt,
			FinishedAt:    report.FinishedAt,
		}
		if err := rc.Runs.RecordRun(ctx, run); err != nil {
			log.Printf("[pipeline] record run %s: %v", report.RunID, err)
			report.PublishErrors = append(report.PublishErrors, &models.PublicationError{Stage: "record", Target: "runs", Err: err})
			report.Status = state.RunDegraded
		}
	}

	collector.ObserveRun(string(report.Status), report.FinishedAt.Sub(report.StartedAt).Seconds())

	if rc.MetricsTextfile == "" {
		return
	}
	w, ok := collector.(textfileWriter)
	if !ok {
		return
	}
	if err := w.WriteTextfile(rc.MetricsTextfile); err != nil {
		log.Printf("[pipeline] %v", err)
	}
}

// IsInputError reports whether err came from bad roster data or
// configuration rather than an I/O failure.
func IsInputError(err error) bool {
	var dataErr *models.DataFormatError
	var cfgErr *models.ConfigurationError
	return errors.As(err, &dataErr) || errors.As(err, &cfgErr)
}
