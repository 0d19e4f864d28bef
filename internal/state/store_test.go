package state

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/ShayCichocki/dailyshuffle/pkg/models"
)

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.ParseInLocation("2006-01-02 15:04", s, time.Local)
	if err != nil {
		t.Fatalf("bad test time %q: %v", s, err)
	}
	return d
}

func TestReplaceRoster(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	entries := []models.RosterEntry{
		{Name: "zoe", Project: "Apollo"},
		{Name: "adam", Project: "Miscellaneous"},
		{Name: "mia", Project: "Apollo"},
	}
	rooms := []models.Room{{Name: "Room 2", Capacity: 4}, {Name: "Room 1", Capacity: 2}}

	if err := db.ReplaceRoster(ctx, entries, rooms, []string{"adam"}); err != nil {
		t.Fatalf("ReplaceRoster failed: %v", err)
	}

	gotEntries, err := db.ReadRoster(ctx)
	if err != nil {
		t.Fatalf("ReadRoster failed: %v", err)
	}
	if !reflect.DeepEqual(gotEntries, entries) {
		t.Errorf("ReadRoster() = %v, want %v (import order)", gotEntries, entries)
	}

	gotRooms, err := db.ReadRooms(ctx)
	if err != nil {
		t.Fatalf("ReadRooms failed: %v", err)
	}
	if !reflect.DeepEqual(gotRooms, rooms) {
		t.Errorf("ReadRooms() = %v, want %v", gotRooms, rooms)
	}

	excl, err := db.ReadExclusions(ctx)
	if err != nil {
		t.Fatalf("ReadExclusions failed: %v", err)
	}
	if !reflect.DeepEqual(excl, []string{"adam"}) {
		t.Errorf("ReadExclusions() = %v, want [adam]", excl)
	}

	// A second import replaces everything.
	if err := db.ReplaceRoster(ctx, entries[:1], rooms[:1], nil); err != nil {
		t.Fatalf("second ReplaceRoster failed: %v", err)
	}
	gotEntries, _ = db.ReadRoster(ctx)
	gotRooms, _ = db.ReadRooms(ctx)
	excl, _ = db.ReadExclusions(ctx)
	if len(gotEntries) != 1 || len(gotRooms) != 1 || len(excl) != 0 {
		t.Errorf("after replace: %d entries, %d rooms, %d exclusions; want 1, 1, 0", len(gotEntries), len(gotRooms), len(excl))
	}
}

func TestReplaceRoster_DuplicateRollsBack(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	rooms := []models.Room{{Name: "A", Capacity: 1}}
	if err := db.ReplaceRoster(ctx, []models.RosterEntry{{Name: "x", Project: "P"}}, rooms, nil); err != nil {
		t.Fatalf("ReplaceRoster failed: %v", err)
	}

	dup := []models.RosterEntry{{Name: "y", Project: "P"}, {Name: "y", Project: "Q"}}
	if err := db.ReplaceRoster(ctx, dup, rooms, nil); err == nil {
		t.Fatal("expected error for duplicate employee")
	}

	got, err := db.ReadRoster(ctx)
	if err != nil {
		t.Fatalf("ReadRoster failed: %v", err)
	}
	if len(got) != 1 || got[0].Name != "x" {
		t.Errorf("roster after failed import = %v, want original [x]", got)
	}
}

func TestWriteAndReadDay(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	date := day(t, "2024-03-04 00:00")
	// Backfilled two days later.
	at := day(t, "2024-03-06 10:15")

	rows := []models.Row{
		{Label: "A", People: []string{"x", "y"}},
		{Label: "B", People: []string{}},
		{Label: "A (Outside Space)", People: []string{"z"}, Overflow: true},
	}
	if err := db.Write(ctx, rows, date, at); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	stored, err := db.ReadDay(ctx, date)
	if err != nil {
		t.Fatalf("ReadDay failed: %v", err)
	}
	if stored == nil {
		t.Fatal("ReadDay returned nil")
	}
	if stored.Day != "2024-03-04" {
		t.Errorf("Day = %q, want 2024-03-04", stored.Day)
	}
	if stored.WrittenAt != "2024-03-06 10:15:00" {
		t.Errorf("WrittenAt = %q, want 2024-03-06 10:15:00", stored.WrittenAt)
	}
	if !reflect.DeepEqual(stored.Rows, rows) {
		t.Errorf("Rows = %+v, want %+v", stored.Rows, rows)
	}

	missing, err := db.ReadDay(ctx, at)
	if err != nil {
		t.Fatalf("ReadDay failed: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for a day with no allocation, got %+v", missing)
	}
}

func TestWrite_OverwritesSameDay(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	first := []models.Row{{Label: "A", People: []string{"x"}}, {Label: "B", People: []string{"y"}}}
	second := []models.Row{{Label: "A", People: []string{"y"}}}

	date := day(t, "2024-03-04 00:00")
	if err := db.Write(ctx, first, date, day(t, "2024-03-04 08:00")); err != nil {
		t.Fatalf("first Write failed: %v", err)
	}
	if err := db.Write(ctx, second, date, day(t, "2024-03-04 17:00")); err != nil {
		t.Fatalf("second Write failed: %v", err)
	}

	stored, err := db.ReadDay(ctx, day(t, "2024-03-04 12:00"))
	if err != nil {
		t.Fatalf("ReadDay failed: %v", err)
	}
	if !reflect.DeepEqual(stored.Rows, second) {
		t.Errorf("Rows = %+v, want %+v", stored.Rows, second)
	}
	if stored.WrittenAt != "2024-03-04 17:00:00" {
		t.Errorf("WrittenAt = %q, want the second write time", stored.WrittenAt)
	}
}

func TestReadPrior(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	prior, err := db.ReadPrior(ctx, day(t, "2024-03-04 09:00"))
	if err != nil {
		t.Fatalf("ReadPrior on empty store failed: %v", err)
	}
	if prior.Len() != 0 {
		t.Errorf("expected empty prior on first run, got %v", prior)
	}

	older := []models.Row{{Label: "A", People: []string{"old"}}}
	yesterday := []models.Row{
		{Label: "A", People: []string{"x"}},
		{Label: "B", People: []string{"y"}},
		{Label: "B (Outside Space)", People: []string{"z"}, Overflow: true},
	}
	today := []models.Row{{Label: "A", People: []string{"y"}}}

	for _, w := range []struct {
		at   string
		rows []models.Row
	}{
		{"2024-03-01 09:00", older},
		{"2024-03-03 09:00", yesterday},
		{"2024-03-04 08:00", today},
	} {
		at := day(t, w.at)
		if err := db.Write(ctx, w.rows, at, at); err != nil {
			t.Fatalf("Write %s failed: %v", w.at, err)
		}
	}

	prior, err = db.ReadPrior(ctx, day(t, "2024-03-04 09:00"))
	if err != nil {
		t.Fatalf("ReadPrior failed: %v", err)
	}
	if !prior.Contains("A", "x") || !prior.Contains("B", "y") {
		t.Errorf("prior missing yesterday's seats: %v", prior)
	}
	if prior.Contains("A", "y") || prior.Contains("A", "old") {
		t.Errorf("prior includes the wrong day: %v", prior)
	}
	if prior.Len() != 2 {
		t.Errorf("prior.Len() = %d, want 2 (overflow excluded)", prior.Len())
	}
}

func TestListDays(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	rows := []models.Row{{Label: "A", People: []string{"x"}}}

	for _, at := range []string{"2024-03-01 09:00", "2024-03-03 09:00", "2024-03-02 09:00"} {
		d := day(t, at)
		if err := db.Write(ctx, rows, d, d); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}

	days, err := db.ListDays(ctx, 2)
	if err != nil {
		t.Fatalf("ListDays failed: %v", err)
	}
	if !reflect.DeepEqual(days, []string{"2024-03-03", "2024-03-02"}) {
		t.Errorf("ListDays() = %v, want newest two", days)
	}
}

func TestRecordAndListRuns(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

	runs := []*Run{
		{ID: "run-1", Day: "2024-03-03", Seed: 18446744073709551615, Seated: 10, Status: RunOK,
			StartedAt: base.Add(-24 * time.Hour), FinishedAt: base.Add(-24*time.Hour + time.Second)},
		{ID: "run-2", Day: "2024-03-04", Seed: 7, Seated: 9, Shortfall: 1, RepeatsBefore: 3, RepeatsAfter: 1,
			Swaps: 2, PublishErrors: 1, Status: RunDegraded, StartedAt: base, FinishedAt: base.Add(time.Second)},
	}
	for _, r := range runs {
		if err := db.RecordRun(ctx, r); err != nil {
			t.Fatalf("RecordRun(%s) failed: %v", r.ID, err)
		}
	}

	got, err := db.ListRuns(ctx, 10)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ListRuns returned %d runs, want 2", len(got))
	}
	if got[0].ID != "run-2" {
		t.Errorf("newest run = %s, want run-2", got[0].ID)
	}
	want := *runs[1]
	gotRun := got[0]
	if !gotRun.StartedAt.Equal(want.StartedAt) || !gotRun.FinishedAt.Equal(want.FinishedAt) {
		t.Errorf("run-2 times = %v..%v, want %v..%v", gotRun.StartedAt, gotRun.FinishedAt, want.StartedAt, want.FinishedAt)
	}
	gotRun.StartedAt, gotRun.FinishedAt = time.Time{}, time.Time{}
	want.StartedAt, want.FinishedAt = time.Time{}, time.Time{}
	if !reflect.DeepEqual(gotRun, want) {
		t.Errorf("run-2 = %+v, want %+v", gotRun, want)
	}
	if got[1].Seed != runs[0].Seed {
		t.Errorf("seed = %d, want %d", got[1].Seed, runs[0].Seed)
	}
}
