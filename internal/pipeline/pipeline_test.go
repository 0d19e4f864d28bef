package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/ShayCichocki/dailyshuffle/internal/config"
	"github.com/ShayCichocki/dailyshuffle/internal/metrics"
	"github.com/ShayCichocki/dailyshuffle/internal/publish"
	"github.com/ShayCichocki/dailyshuffle/internal/state"
	"github.com/ShayCichocki/dailyshuffle/pkg/models"
)

type fakeSource struct {
	entries    []models.RosterEntry
	rooms      []models.Room
	exclusions []string
	err        error
}

func (f *fakeSource) ReadRoster(context.Context) ([]models.RosterEntry, error) {
	return f.entries, f.err
}

func (f *fakeSource) ReadRooms(context.Context) ([]models.Room, error) {
	return f.rooms, nil
}

func (f *fakeSource) ReadExclusions(context.Context) ([]string, error) {
	return f.exclusions, nil
}

type fakePrior struct {
	prior  models.PriorAllocation
	err    error
	called []time.Time
}

func (f *fakePrior) ReadPrior(_ context.Context, before time.Time) (models.PriorAllocation, error) {
	f.called = append(f.called, before)
	return f.prior, f.err
}

type countingSink struct {
	name   string
	err    error
	writes int
}

func (s *countingSink) Name() string { return s.name }

func (s *countingSink) Write(context.Context, []models.Row, time.Time, time.Time) error {
	s.writes++
	return s.err
}

var monday = time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)

func office() *fakeSource {
	return &fakeSource{
		entries: []models.RosterEntry{
			{Name: "ada", Project: "Apollo"},
			{Name: "bo", Project: "Apollo"},
			{Name: "cy", Project: "Gemini"},
			{Name: "di", Project: "Miscellaneous"},
			{Name: "ed", Project: "Miscellaneous"},
			{Name: "fay", Project: "Miscellaneous"},
		},
		rooms: []models.Room{
			{Name: "Room 1", Capacity: 3},
			{Name: "Room 2", Capacity: 3},
		},
		exclusions: []string{"fay"},
	}
}

func setupTestDB(t *testing.T) *state.DB {
	t.Helper()
	db, err := state.OpenMemory()
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	if err := db.Migrate(); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})
	return db
}

func fixedClock() func() time.Time {
	t := monday
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func TestRun_PublishesAndRecords(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	rc := &RunContext{
		Date:      monday,
		Roster:    office(),
		Priors:    []PriorStore{db},
		Publisher: &publish.Publisher{Sinks: []publish.Sink{db}},
		Runs:      db,
		Now:       fixedClock(),
	}

	report, err := rc.Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if report.Status != state.RunOK {
		t.Errorf("Status = %s, want ok (errors %v)", report.Status, report.PublishErrors)
	}
	if report.Seated != 5 || report.Shortfall != 0 {
		t.Errorf("seated %d shortfall %d, want 5 and 0", report.Seated, report.Shortfall)
	}
	if report.Projects != 2 || report.Misc != 2 {
		t.Errorf("projects %d misc %d, want 2 and 2", report.Projects, report.Misc)
	}
	if _, ok := report.Allocation.RoomOf("fay"); ok {
		t.Error("excluded person was seated")
	}
	if report.Seed != DeriveSeed(monday) {
		t.Errorf("Seed = %d, want derived seed", report.Seed)
	}

	stored, err := db.ReadDay(ctx, monday)
	if err != nil || stored == nil {
		t.Fatalf("ReadDay = %v, %v", stored, err)
	}
	if !reflect.DeepEqual(stored.Rows, report.Rows) {
		t.Errorf("stored rows %+v, want %+v", stored.Rows, report.Rows)
	}

	runs, err := db.ListRuns(ctx, 10)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != report.RunID || runs[0].Status != state.RunOK || runs[0].Seated != 5 {
		t.Errorf("unexpected run log %+v", runs)
	}
}

func TestRun_StampsWriteTime(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	date := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	written := time.Date(2024, 3, 6, 9, 15, 0, 0, time.UTC)

	rc := &RunContext{
		Date:      date,
		Roster:    office(),
		Publisher: &publish.Publisher{Sinks: []publish.Sink{db}},
		Now:       func() time.Time { return written },
	}
	if _, err := rc.Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	stored, err := db.ReadDay(ctx, date)
	if err != nil || stored == nil {
		t.Fatalf("ReadDay = %v, %v", stored, err)
	}
	if stored.Day != "2024-03-04" {
		t.Errorf("Day = %q, want the run date", stored.Day)
	}
	if stored.WrittenAt != "2024-03-06 09:15:00" {
		t.Errorf("WrittenAt = %q, want the clock time 2024-03-06 09:15:00", stored.WrittenAt)
	}

	if later, _ := db.ReadDay(ctx, written); later != nil {
		t.Errorf("allocation stored under the write day: %+v", later)
	}
}

func TestRun_ConsecutiveDaysUsePrior(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	source := office()

	for i := 0; i < 5; i++ {
		day := monday.AddDate(0, 0, i)
		rc := &RunContext{
			Date:      day,
			Roster:    source,
			Priors:    []PriorStore{db},
			Publisher: &publish.Publisher{Sinks: []publish.Sink{db}},
			Runs:      db,
		}
		report, err := rc.Run(ctx)
		if err != nil {
			t.Fatalf("day %d: Run failed: %v", i, err)
		}
		if report.RepeatsAfter > report.RepeatsBefore {
			t.Errorf("day %d: repeats rose from %d to %d", i, report.RepeatsBefore, report.RepeatsAfter)
		}
		if i == 0 && report.RepeatsBefore != 0 {
			t.Errorf("first day reported %d repeats without a prior", report.RepeatsBefore)
		}
	}

	days, err := db.ListDays(ctx, 10)
	if err != nil {
		t.Fatalf("ListDays failed: %v", err)
	}
	if len(days) != 5 || days[0] != "2024-03-08" {
		t.Errorf("ListDays = %v", days)
	}
}

func TestRun_PriorFallsThroughToNextStore(t *testing.T) {
	empty := &fakePrior{prior: models.PriorAllocation{}}
	full := &fakePrior{prior: models.PriorAllocation{}}
	full.prior.Add("Room 1", "ada")

	rc := &RunContext{Date: monday, Roster: office(), Priors: []PriorStore{empty, full}, DryRun: true}
	if _, err := rc.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(empty.called) != 1 || len(full.called) != 1 {
		t.Fatalf("prior stores called %d and %d times", len(empty.called), len(full.called))
	}
	if !full.called[0].Equal(monday) {
		t.Errorf("ReadPrior got %v, want run date", full.called[0])
	}
}

func TestRun_FatalErrorsWriteNothing(t *testing.T) {
	bad := office()
	bad.entries = append(bad.entries, models.RosterEntry{Name: "gus"})

	noRooms := office()
	noRooms.rooms = nil

	zeroCap := office()
	zeroCap.rooms = []models.Room{{Name: "Closet", Capacity: 0}}

	tests := []struct {
		name      string
		source    *fakeSource
		prior     *fakePrior
		wantInput bool
	}{
		{"missing project", bad, nil, true},
		{"no rooms", noRooms, nil, true},
		{"zero capacity", zeroCap, nil, true},
		{"roster unreadable", &fakeSource{err: errors.New("connection refused")}, nil, false},
		{"prior unreadable", office(), &fakePrior{err: errors.New("timeout")}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &countingSink{name: "db"}
			rc := &RunContext{
				Date:      monday,
				Roster:    tt.source,
				Publisher: &publish.Publisher{Sinks: []publish.Sink{sink}},
			}
			if tt.prior != nil {
				rc.Priors = []PriorStore{tt.prior}
			}

			report, err := rc.Run(context.Background())
			if err == nil {
				t.Fatalf("expected error, got report %+v", report)
			}
			if IsInputError(err) != tt.wantInput {
				t.Errorf("IsInputError(%v) = %v, want %v", err, !tt.wantInput, tt.wantInput)
			}
			if sink.writes != 0 {
				t.Errorf("sink written %d times after fatal error", sink.writes)
			}
		})
	}
}

func TestRun_DegradedPublication(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	failing := &countingSink{name: "archive:s3", err: errors.New("access denied")}
	collector := metrics.NewPrometheus(nil, "")
	textfile := filepath.Join(t.TempDir(), "metrics", "dailyshuffle.prom")

	rc := &RunContext{
		Date:            monday,
		Roster:          office(),
		Publisher:       &publish.Publisher{Sinks: []publish.Sink{failing, db}},
		Runs:            db,
		Metrics:         collector,
		MetricsTextfile: textfile,
	}

	report, err := rc.Run(ctx)
	if err != nil {
		t.Fatalf("publication failure must not be fatal: %v", err)
	}
	if !report.Degraded() || len(report.PublishErrors) != 1 {
		t.Fatalf("Status = %s, errors %v", report.Status, report.PublishErrors)
	}
	if report.PublishErrors[0].Target != "archive:s3" {
		t.Errorf("error target = %q", report.PublishErrors[0].Target)
	}

	if stored, _ := db.ReadDay(ctx, monday); stored == nil {
		t.Error("later sink skipped after an earlier failure")
	}

	runs, _ := db.ListRuns(ctx, 1)
	if len(runs) != 1 || runs[0].Status != state.RunDegraded || runs[0].PublishErrors != 1 {
		t.Errorf("run log = %+v", runs)
	}

	data, err := os.ReadFile(textfile)
	if err != nil {
		t.Fatalf("metrics textfile not written: %v", err)
	}
	for _, want := range []string{"dailyshuffle_allocation_seated 5", `target="archive:s3"`} {
		if !strings.Contains(string(data), want) {
			t.Errorf("metrics missing %q:\n%s", want, data)
		}
	}
}

func TestRun_DryRun(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	sink := &countingSink{name: "db"}

	rc := &RunContext{
		Date:      monday,
		Roster:    office(),
		Publisher: &publish.Publisher{Sinks: []publish.Sink{sink}},
		Runs:      db,
		DryRun:    true,
	}
	report, err := rc.Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.Status != state.RunDryRun {
		t.Errorf("Status = %s, want dry_run", report.Status)
	}
	if sink.writes != 0 {
		t.Error("dry run wrote to a sink")
	}
	if runs, _ := db.ListRuns(ctx, 10); len(runs) != 0 {
		t.Errorf("dry run recorded %d runs", len(runs))
	}
	if len(report.Rows) == 0 {
		t.Error("dry run returned no rows")
	}
}

func TestRun_SameDaySameAllocation(t *testing.T) {
	run := func(seed uint64, day time.Time) []models.Row {
		rc := &RunContext{Date: day, Seed: seed, Roster: office(), DryRun: true}
		report, err := rc.Run(context.Background())
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		return report.Rows
	}

	if a, b := run(0, monday), run(0, monday.Add(9*time.Hour)); !reflect.DeepEqual(a, b) {
		t.Errorf("same day produced different allocations:\n%v\n%v", a, b)
	}
	if a, b := run(77, monday), run(77, monday.AddDate(0, 1, 0)); !reflect.DeepEqual(a, b) {
		t.Errorf("explicit seed did not pin the allocation:\n%v\n%v", a, b)
	}
}

func TestDeriveSeed(t *testing.T) {
	a := DeriveSeed(monday)
	if a == 0 {
		t.Fatal("derived seed is zero")
	}
	if b := DeriveSeed(monday.Add(10 * time.Hour)); a != b {
		t.Errorf("seed changed within the day: %d vs %d", a, b)
	}
	if c := DeriveSeed(monday.AddDate(0, 0, 1)); a == c {
		t.Error("consecutive days share a seed")
	}
}

func TestRun_MissingRoster(t *testing.T) {
	_, err := (&RunContext{Date: monday}).Run(context.Background())
	var cfgErr *models.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Errorf("expected ConfigurationError, got %v", err)
	}
}

const rosterYAML = `
rooms:
  - {name: "Room 1", capacity: 2}
  - {name: "Room 2", capacity: 2}
people:
  - {name: ada, project: Apollo}
  - {name: bo, project: Apollo}
  - {name: cy, project: Miscellaneous}
  - {name: di, project: Miscellaneous}
  - {name: ed, project: Miscellaneous}
exclusions: []
`

func TestBuild(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	rosterPath := filepath.Join(dir, "roster.yaml")
	if err := os.WriteFile(rosterPath, []byte(rosterYAML), 0644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("WEBHOOK_URL", "")
	cfg := config.Default()
	cfg.Store.Driver = "memory"
	cfg.Archive.Driver = "fs"
	cfg.Archive.FSRoot = filepath.Join(dir, "archive")
	cfg.Notify.WebhookURL = ""

	var out bytes.Buffer
	rc, res, err := Build(ctx, cfg, Overrides{Date: monday, RosterFile: rosterPath, Seed: 5, Out: &out})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer res.Close()

	if rc.Seed != 5 || len(rc.Priors) != 2 || len(rc.Publisher.Sinks) != 2 {
		t.Fatalf("unexpected wiring: seed %d, %d priors, %d sinks", rc.Seed, len(rc.Priors), len(rc.Publisher.Sinks))
	}

	report, err := rc.Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.Status != state.RunOK {
		t.Fatalf("Status = %s, errors %v", report.Status, report.PublishErrors)
	}
	if report.Shortfall != 1 {
		t.Errorf("Shortfall = %d, want 1", report.Shortfall)
	}

	snap, err := res.Archive.ReadDay(ctx, monday)
	if err != nil || snap == nil {
		t.Fatalf("archive ReadDay = %v, %v", snap, err)
	}
	if !reflect.DeepEqual(snap.Rows, report.Rows) {
		t.Errorf("archived rows %+v, want %+v", snap.Rows, report.Rows)
	}
	if stored, _ := res.DB.ReadDay(ctx, monday); stored == nil {
		t.Error("state store has no allocation")
	}
	if !strings.Contains(out.String(), "Outside Space") {
		t.Errorf("console output missing overflow row:\n%s", out.String())
	}
}

func TestBuild_InvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Archive.Driver = "s3"

	_, _, err := Build(context.Background(), cfg, Overrides{})
	var cfgErr *models.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Errorf("expected ConfigurationError, got %v", err)
	}
}

func TestBuild_NoNotify(t *testing.T) {
	cfg := config.Default()
	cfg.Store.Driver = "memory"
	cfg.Notify.WebhookURL = "https://hooks.example.com/x"

	rc, res, err := Build(context.Background(), cfg, Overrides{NoNotify: true})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer res.Close()

	if rc.Publisher.Notifier != nil {
		t.Errorf("notifier = %v, want none", rc.Publisher.Notifier)
	}
	if _, ok := rc.Roster.(*state.DB); !ok {
		t.Error("without a roster file the state store should be the roster source")
	}
}
