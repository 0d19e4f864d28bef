package state

import (
	"context"
	"io"
	"time"

	"github.com/ShayCichocki/dailyshuffle/pkg/models"
)

// RosterStore reads and replaces the roster.
type RosterStore interface {
	ReplaceRoster(ctx context.Context, entries []models.RosterEntry, rooms []models.Room, exclusions []string) error
	ReadRoster(ctx context.Context) ([]models.RosterEntry, error)
	ReadRooms(ctx context.Context) ([]models.Room, error)
	ReadExclusions(ctx context.Context) ([]string, error)
}

// AllocationStore persists one allocation per day.
type AllocationStore interface {
	Write(ctx context.Context, rows []models.Row, day, at time.Time) error
	ReadDay(ctx context.Context, day time.Time) (*StoredDay, error)
	ReadPrior(ctx context.Context, before time.Time) (models.PriorAllocation, error)
	ListDays(ctx context.Context, limit int) ([]string, error)
}

// RunStore records pipeline runs.
type RunStore interface {
	RecordRun(ctx context.Context, r *Run) error
	ListRuns(ctx context.Context, limit int) ([]Run, error)
}

// Migrator handles database schema migrations.
type Migrator interface {
	// Migrate applies all pending schema migrations.
	Migrate() error
}

// Store composes everything the CLI needs from a backend.
type Store interface {
	io.Closer
	Migrator
	RosterStore
	AllocationStore
	RunStore
}

// Compile-time verification that DB implements all interfaces.
var (
	_ Store           = (*DB)(nil)
	_ Migrator        = (*DB)(nil)
	_ RosterStore     = (*DB)(nil)
	_ AllocationStore = (*DB)(nil)
	_ RunStore        = (*DB)(nil)
)
