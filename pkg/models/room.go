package models

import "fmt"

// Room is a named space with a seating capacity.
type Room struct {
	Name     string `json:"name" yaml:"name"`
	Capacity int    `json:"capacity" yaml:"capacity"`
}

// RoomSet is the fixed list of rooms for a run.
type RoomSet []Room

// Validate checks that the set is usable for allocation.
func (rs RoomSet) Validate() error {
	if len(rs) == 0 {
		return &ConfigurationError{Reason: "no rooms configured"}
	}
	seen := make(map[string]bool, len(rs))
	for _, r := range rs {
		if r.Name == "" {
			return &ConfigurationError{Reason: "room with empty name"}
		}
		if seen[r.Name] {
			return &ConfigurationError{Reason: fmt.Sprintf("room %q listed twice", r.Name)}
		}
		seen[r.Name] = true
		if r.Capacity <= 0 {
			return &ConfigurationError{Reason: fmt.Sprintf("room %q has non-positive capacity %d", r.Name, r.Capacity)}
		}
	}
	return nil
}

// TotalCapacity sums the capacity of every room.
func (rs RoomSet) TotalCapacity() int {
	total := 0
	for _, r := range rs {
		total += r.Capacity
	}
	return total
}

// Names returns the room names in set order.
func (rs RoomSet) Names() []string {
	names := make([]string, len(rs))
	for i, r := range rs {
		names[i] = r.Name
	}
	return names
}
