package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ShayCichocki/dailyshuffle/internal/archive"
	"github.com/ShayCichocki/dailyshuffle/internal/config"
	"github.com/ShayCichocki/dailyshuffle/internal/metrics"
	"github.com/ShayCichocki/dailyshuffle/internal/notify"
	"github.com/ShayCichocki/dailyshuffle/internal/publish"
	"github.com/ShayCichocki/dailyshuffle/internal/roster"
	"github.com/ShayCichocki/dailyshuffle/internal/state"
)

var (
	_ PriorStore   = (*state.DB)(nil)
	_ PriorStore   = (*archive.Archive)(nil)
	_ RunRecorder  = (*state.DB)(nil)
	_ publish.Sink = (*state.DB)(nil)
	_ publish.Sink = (*archive.Archive)(nil)
)

// Overrides are per-invocation settings layered over the config.
type Overrides struct {
	Date       time.Time
	Seed       uint64
	RosterFile string
	DryRun     bool
	NoNotify   bool
	// Out receives the console notifier's table. Nil means stdout.
	Out io.Writer
}

// Resources holds what Build opened. Close releases all of it.
type Resources struct {
	DB      *state.DB
	Archive *archive.Archive
}

// Close closes the archive and the database.
func (r *Resources) Close() error {
	var errs []error
	if r.Archive != nil {
		errs = append(errs, r.Archive.Close())
	}
	if r.DB != nil {
		errs = append(errs, r.DB.Close())
	}
	return errors.Join(errs...)
}

// OpenStore opens and migrates the state database named by cfg.
func OpenStore(cfg *config.Config) (*state.DB, error) {
	db, err := state.OpenWith(state.Options{
		Driver: state.Driver(cfg.Store.Driver),
		Path:   cfg.Store.SQLitePath,
		DSN:    cfg.Store.PostgresDSN,
	})
	if err != nil {
		return nil, fmt.Errorf("open state store: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate state store: %w", err)
	}
	return db, nil
}

// OpenArchive opens the snapshot archive named by cfg. It returns nil when
// the archive is disabled.
func OpenArchive(ctx context.Context, cfg *config.Config) (*archive.Archive, error) {
	store, err := archive.Open(ctx, archive.Config{
		Driver: archive.Driver(cfg.Archive.Driver),
		FSRoot: cfg.Archive.FSRoot,
		S3: archive.S3Config{
			Bucket:    cfg.Archive.S3.Bucket,
			Region:    cfg.Archive.S3.Region,
			Endpoint:  cfg.Archive.S3.Endpoint,
			PathStyle: cfg.Archive.S3.PathStyle,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	if store == nil {
		return nil, nil
	}
	return archive.New(store)
}

// Build wires a RunContext from cfg. The caller must Close the returned
// Resources.
func Build(ctx context.Context, cfg *config.Config, o Overrides) (*RunContext, *Resources, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	db, err := OpenStore(cfg)
	if err != nil {
		return nil, nil, err
	}
	res := &Resources{DB: db}

	arch, err := OpenArchive(ctx, cfg)
	if err != nil {
		res.Close()
		return nil, nil, err
	}
	res.Archive = arch

	notifier, err := buildNotifier(cfg, o)
	if err != nil {
		res.Close()
		return nil, nil, err
	}

	rc := &RunContext{
		Date:       o.Date,
		Seed:       cfg.Allocation.Seed,
		MiscMarker: cfg.Roster.MiscMarker,
		DryRun:     o.DryRun,
		Runs:       db,
		Metrics:    metrics.NewNop(),
	}
	if o.Seed != 0 {
		rc.Seed = o.Seed
	}

	rosterFile := cfg.Roster.File
	if o.RosterFile != "" {
		rosterFile = o.RosterFile
	}
	if rosterFile != "" {
		rc.Roster = roster.NewFile(rosterFile)
	} else {
		rc.Roster = db
	}

	sinks := []publish.Sink{db}
	if cfg.Allocation.AvoidRepeats {
		rc.Priors = []PriorStore{db}
	}
	if arch != nil {
		sinks = append(sinks, arch)
		if cfg.Allocation.AvoidRepeats {
			rc.Priors = append(rc.Priors, arch)
		}
	}
	rc.Publisher = &publish.Publisher{
		Sinks:    sinks,
		Notifier: notifier,
		Timeout:  cfg.Publish.Timeout,
	}

	if cfg.Metrics.Textfile != "" {
		rc.Metrics = metrics.NewPrometheus(nil, cfg.Metrics.Namespace)
		rc.MetricsTextfile = cfg.Metrics.Textfile
	}

	return rc, res, nil
}

// buildNotifier returns nil when nothing is configured.
func buildNotifier(cfg *config.Config, o Overrides) (publish.Notifier, error) {
	if o.NoNotify {
		return nil, nil
	}

	var targets notify.Multi
	if cfg.Notify.WebhookURL != "" {
		teams, err := notify.NewTeams(notify.TeamsConfig{WebhookURL: cfg.Notify.WebhookURL})
		if err != nil {
			return nil, err
		}
		targets = append(targets, teams)
	}
	if cfg.Notify.Console {
		targets = append(targets, notify.NewConsole(o.Out))
	}

	switch len(targets) {
	case 0:
		return nil, nil
	case 1:
		return targets[0], nil
	default:
		return targets, nil
	}
}
