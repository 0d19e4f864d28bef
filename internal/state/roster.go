package state

import (
	"context"
	"fmt"

	"github.com/ShayCichocki/dailyshuffle/pkg/models"
)

// ReplaceRoster swaps the stored employees, rooms and exclusions for the
// given ones in a single transaction.
func (db *DB) ReplaceRoster(ctx context.Context, entries []models.RosterEntry, rooms []models.Room, exclusions []string) error {
	return db.Transaction(ctx, func(tx *Tx) error {
		for _, table := range []string{"employees", "rooms", "exclusions"} {
			if _, err := tx.Exec(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}
		for i, e := range entries {
			if _, err := tx.Exec(ctx, `
				INSERT INTO employees (name, project, position) VALUES (?, ?, ?)
			`, e.Name, e.Project, i); err != nil {
				return fmt.Errorf("insert employee %s: %w", e.Name, err)
			}
		}
		for i, r := range rooms {
			if _, err := tx.Exec(ctx, `
				INSERT INTO rooms (name, capacity, position) VALUES (?, ?, ?)
			`, r.Name, r.Capacity, i); err != nil {
				return fmt.Errorf("insert room %s: %w", r.Name, err)
			}
		}
		for _, name := range exclusions {
			if _, err := tx.Exec(ctx, "INSERT INTO exclusions (name) VALUES (?)", name); err != nil {
				return fmt.Errorf("insert exclusion %s: %w", name, err)
			}
		}
		return nil
	})
}

// ReadRoster returns employees in import order.
func (db *DB) ReadRoster(ctx context.Context) ([]models.RosterEntry, error) {
	rows, err := db.Query(ctx, "SELECT name, project FROM employees ORDER BY position")
	if err != nil {
		return nil, fmt.Errorf("read roster: %w", err)
	}
	defer rows.Close()

	var entries []models.RosterEntry
	for rows.Next() {
		var e models.RosterEntry
		if err := rows.Scan(&e.Name, &e.Project); err != nil {
			return nil, fmt.Errorf("scan employee: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ReadRooms returns rooms in import order.
func (db *DB) ReadRooms(ctx context.Context) ([]models.Room, error) {
	rows, err := db.Query(ctx, "SELECT name, capacity FROM rooms ORDER BY position")
	if err != nil {
		return nil, fmt.Errorf("read rooms: %w", err)
	}
	defer rows.Close()

	var rooms []models.Room
	for rows.Next() {
		var r models.Room
		if err := rows.Scan(&r.Name, &r.Capacity); err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		if r.Name == "" {
			return nil, &models.DataFormatError{Source: "rooms", Row: len(rooms) + 1, Reason: "missing room name"}
		}
		rooms = append(rooms, r)
	}
	return rooms, rows.Err()
}

// ReadExclusions returns the names excluded from allocation.
func (db *DB) ReadExclusions(ctx context.Context) ([]string, error) {
	rows, err := db.Query(ctx, "SELECT name FROM exclusions ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("read exclusions: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan exclusion: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
