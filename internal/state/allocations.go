package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ShayCichocki/dailyshuffle/pkg/models"
)

// StoredDay is one day's published allocation.
type StoredDay struct {
	Day       string
	Rows      []models.Row
	WrittenAt string
}

// Write stores rows as the allocation for the calendar day of date,
// replacing anything already written for that day. at is recorded as the
// write time.
func (db *DB) Write(ctx context.Context, rows []models.Row, date, at time.Time) error {
	day := models.DayKey(date)
	stamp := at.Format(models.TimestampLayout)

	return db.Transaction(ctx, func(tx *Tx) error {
		if _, err := tx.Exec(ctx, "DELETE FROM allocations WHERE day = ?", day); err != nil {
			return fmt.Errorf("clear allocation %s: %w", day, err)
		}
		for i, row := range rows {
			people, err := json.Marshal(row.People)
			if err != nil {
				return fmt.Errorf("marshal people for %s: %w", row.Label, err)
			}
			overflow := 0
			if row.Overflow {
				overflow = 1
			}
			if _, err := tx.Exec(ctx, `
				INSERT INTO allocations (day, position, label, people, overflow, written_at)
				VALUES (?, ?, ?, ?, ?, ?)
			`, day, i, row.Label, string(people), overflow, stamp); err != nil {
				return fmt.Errorf("insert allocation row %s: %w", row.Label, err)
			}
		}
		return nil
	})
}

// ReadDay returns the allocation stored for the calendar day of day, or nil
// when nothing was written.
func (db *DB) ReadDay(ctx context.Context, day time.Time) (*StoredDay, error) {
	return db.readDayKey(ctx, models.DayKey(day))
}

func (db *DB) readDayKey(ctx context.Context, key string) (*StoredDay, error) {
	rows, err := db.Query(ctx, `
		SELECT label, people, overflow, written_at
		FROM allocations WHERE day = ? ORDER BY position
	`, key)
	if err != nil {
		return nil, fmt.Errorf("read allocation %s: %w", key, err)
	}
	defer rows.Close()

	var stored *StoredDay
	n := 0
	for rows.Next() {
		n++
		var row models.Row
		var people, writtenAt string
		var overflow int
		if err := rows.Scan(&row.Label, &people, &overflow, &writtenAt); err != nil {
			return nil, fmt.Errorf("scan allocation row: %w", err)
		}
		if err := json.Unmarshal([]byte(people), &row.People); err != nil {
			return nil, &models.DataFormatError{Source: "allocations " + key, Row: n, Reason: err.Error()}
		}
		row.Overflow = overflow != 0
		if stored == nil {
			stored = &StoredDay{Day: key, WrittenAt: writtenAt}
		}
		stored.Rows = append(stored.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read allocation %s: %w", key, err)
	}
	return stored, nil
}

// ReadPrior returns the latest allocation stored for a day strictly before
// the calendar day of before. It is empty when there is none.
func (db *DB) ReadPrior(ctx context.Context, before time.Time) (models.PriorAllocation, error) {
	var day sql.NullString
	row := db.QueryRow(ctx, "SELECT MAX(day) FROM allocations WHERE day < ?", models.DayKey(before))
	if err := row.Scan(&day); err != nil {
		return nil, fmt.Errorf("find prior allocation: %w", err)
	}
	if !day.Valid {
		return models.PriorAllocation{}, nil
	}

	stored, err := db.readDayKey(ctx, day.String)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return models.PriorAllocation{}, nil
	}
	return models.PriorFromRows(stored.Rows), nil
}

// ListDays returns the most recent days with a stored allocation, newest
// first.
func (db *DB) ListDays(ctx context.Context, limit int) ([]string, error) {
	rows, err := db.Query(ctx, `
		SELECT DISTINCT day FROM allocations ORDER BY day DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list days: %w", err)
	}
	defer rows.Close()

	var days []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan day: %w", err)
		}
		days = append(days, d)
	}
	return days, rows.Err()
}
