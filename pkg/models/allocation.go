package models

import "sort"

// OverflowSuffix is appended to a room name to label its overflow bucket.
const OverflowSuffix = " (Outside Space)"

// OverflowLabel returns the synthetic room label for a room's overflow bucket.
func OverflowLabel(room string) string {
	return room + OverflowSuffix
}

// Allocation maps rooms to the people seated there, plus an overflow bucket
// per room for people who could not be seated under capacity.
type Allocation struct {
	// Order is the room processing order for this run.
	Order    []string            `json:"order"`
	Rooms    map[string][]string `json:"rooms"`
	Overflow map[string][]string `json:"overflow,omitempty"`
}

// NewAllocation creates an empty allocation over the given rooms.
func NewAllocation(order []string) *Allocation {
	a := &Allocation{
		Order:    append([]string(nil), order...),
		Rooms:    make(map[string][]string, len(order)),
		Overflow: make(map[string][]string),
	}
	for _, room := range order {
		a.Rooms[room] = []string{}
	}
	return a
}

// Seat appends people to a room.
func (a *Allocation) Seat(room string, names ...string) {
	a.Rooms[room] = append(a.Rooms[room], names...)
}

// AddOverflow appends people to a room's overflow bucket.
func (a *Allocation) AddOverflow(room string, names ...string) {
	if len(names) == 0 {
		return
	}
	a.Overflow[room] = append(a.Overflow[room], names...)
}

// Seated returns the number of people placed in rooms.
func (a *Allocation) Seated() int {
	n := 0
	for _, people := range a.Rooms {
		n += len(people)
	}
	return n
}

// OverflowCount returns the number of people in overflow buckets.
func (a *Allocation) OverflowCount() int {
	n := 0
	for _, people := range a.Overflow {
		n += len(people)
	}
	return n
}

// RoomOf returns the room a person is seated in. Overflow does not count.
func (a *Allocation) RoomOf(name string) (string, bool) {
	for room, people := range a.Rooms {
		for _, p := range people {
			if p == name {
				return room, true
			}
		}
	}
	return "", false
}

// RepeatCount returns how many seated people are in the same room as in prior.
func (a *Allocation) RepeatCount(prior PriorAllocation) int {
	n := 0
	for room, people := range a.Rooms {
		for _, p := range people {
			if prior.Contains(room, p) {
				n++
			}
		}
	}
	return n
}

// Row is one published line: a room (or overflow bucket) and its people.
type Row struct {
	Label    string   `json:"label"`
	People   []string `json:"people"`
	Overflow bool     `json:"overflow,omitempty"`
}

// Rows flattens the allocation for publication: rooms in processing order,
// then every non-empty overflow bucket as a synthetic room.
func (a *Allocation) Rows() []Row {
	rows := make([]Row, 0, len(a.Order)+len(a.Overflow))
	for _, room := range a.Order {
		rows = append(rows, Row{Label: room, People: append([]string{}, a.Rooms[room]...)})
	}
	for _, room := range a.overflowOrder() {
		people := a.Overflow[room]
		if len(people) == 0 {
			continue
		}
		rows = append(rows, Row{Label: OverflowLabel(room), People: append([]string{}, people...), Overflow: true})
	}
	return rows
}

// overflowOrder lists overflow keys in room order, with unknown keys last.
func (a *Allocation) overflowOrder() []string {
	known := make(map[string]bool, len(a.Order))
	keys := make([]string, 0, len(a.Overflow))
	for _, room := range a.Order {
		known[room] = true
		if _, ok := a.Overflow[room]; ok {
			keys = append(keys, room)
		}
	}
	var extra []string
	for room := range a.Overflow {
		if !known[room] {
			extra = append(extra, room)
		}
	}
	sort.Strings(extra)
	return append(keys, extra...)
}

// PriorAllocation is a previous run's room to people mapping. It is only
// consulted to reduce repeats and is never mutated by allocation.
type PriorAllocation map[string]map[string]struct{}

// Add records that a person sat in a room.
func (p PriorAllocation) Add(room, name string) {
	if p[room] == nil {
		p[room] = make(map[string]struct{})
	}
	p[room][name] = struct{}{}
}

// Contains reports whether a person sat in the room.
func (p PriorAllocation) Contains(room, name string) bool {
	_, ok := p[room][name]
	return ok
}

// Len returns the number of (room, person) pairs.
func (p PriorAllocation) Len() int {
	n := 0
	for _, people := range p {
		n += len(people)
	}
	return n
}

// PriorFromRows rebuilds a prior allocation from published rows. Overflow
// rows are skipped: nobody actually sat in them.
func PriorFromRows(rows []Row) PriorAllocation {
	prior := make(PriorAllocation)
	for _, row := range rows {
		if row.Overflow {
			continue
		}
		for _, name := range row.People {
			prior.Add(row.Label, name)
		}
	}
	return prior
}
