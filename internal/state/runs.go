package state

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

// RunStatus is the outcome of a pipeline run.
type RunStatus string

const (
	RunOK       RunStatus = "ok"
	RunDegraded RunStatus = "degraded"
	RunDryRun   RunStatus = "dry_run"
)

// Run is one recorded pipeline invocation.
type Run struct {
	ID            string    `json:"id"`
	Day           string    `json:"day"`
	Seed          uint64    `json:"seed"`
	Seated        int       `json:"seated"`
	Shortfall     int       `json:"shortfall"`
	RepeatsBefore int       `json:"repeats_before"`
	RepeatsAfter  int       `json:"repeats_after"`
	Swaps         int       `json:"swaps"`
	PublishErrors int       `json:"publish_errors"`
	Status        RunStatus `json:"status"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
}

// RecordRun stores a finished run.
func (db *DB) RecordRun(ctx context.Context, r *Run) error {
	_, err := db.Exec(ctx, `
		INSERT INTO runs (id, day, seed, seated, shortfall, repeats_before, repeats_after, swaps, publish_errors, status, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.Day, strconv.FormatUint(r.Seed, 10), r.Seated, r.Shortfall, r.RepeatsBefore, r.RepeatsAfter,
		r.Swaps, r.PublishErrors, string(r.Status), formatTime(r.StartedAt), formatTime(r.FinishedAt))
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (db *DB) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := db.Query(ctx, `
		SELECT id, day, seed, seated, shortfall, repeats_before, repeats_after, swaps, publish_errors, status, started_at, finished_at
		FROM runs ORDER BY started_at DESC, id LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var seed, startedAt, finishedAt string
		if err := rows.Scan(&r.ID, &r.Day, &seed, &r.Seated, &r.Shortfall, &r.RepeatsBefore, &r.RepeatsAfter,
			&r.Swaps, &r.PublishErrors, &r.Status, &startedAt, &finishedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Seed, _ = strconv.ParseUint(seed, 10, 64)
		r.StartedAt, _ = parseTime(startedAt)
		r.FinishedAt, _ = parseTime(finishedAt)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
