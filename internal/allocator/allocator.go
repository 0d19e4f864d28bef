// Package allocator seats project groups and miscellaneous people into rooms.
//
// The allocation runs in three passes over a single in-memory Allocation:
//
//  1. Groups are bin-packed largest first, each into the room with the most
//     remaining capacity, splitting only when no room can take the group whole.
//  2. Miscellaneous people fill the remaining seats in random order.
//  3. When a prior allocation is supplied, people sitting in yesterday's room
//     are swapped one-for-one with someone in another room, provided neither
//     ends up somewhere they sat yesterday and no whole group is broken up.
//
// Anyone who cannot be seated lands in a per-room overflow bucket. Overflow is
// reported as a shortfall, never as an error.
package allocator

import (
	"math/rand/v2"
	"sort"

	"github.com/ShayCichocki/dailyshuffle/internal/grouping"
	"github.com/ShayCichocki/dailyshuffle/pkg/models"
)

// Options configures a single allocation.
type Options struct {
	// Rand drives room order and misc order. Required.
	Rand *rand.Rand
	// Prior is the previous run's allocation. Nil or empty disables the
	// anti-repeat pass.
	Prior models.PriorAllocation
}

// Result is the outcome of Allocate.
type Result struct {
	Allocation *models.Allocation
	// Shortfall is the number of people left in overflow.
	Shortfall int
	// RepeatsBefore and RepeatsAfter count people seated in the same room as
	// in the prior allocation, before and after the swap pass.
	RepeatsBefore int
	RepeatsAfter  int
	Swaps         int
	// SplitProjects lists projects that could not be seated in one room.
	SplitProjects []string
}

// Allocate seats everyone in groups into rooms. It fails only on unusable
// configuration; capacity shortfall is returned in Result.Shortfall.
func Allocate(groups *grouping.Groups, rooms models.RoomSet, opts Options) (*Result, error) {
	if err := rooms.Validate(); err != nil {
		return nil, err
	}
	if opts.Rand == nil {
		return nil, &models.ConfigurationError{Reason: "allocator requires a random source"}
	}
	if groups == nil {
		groups = &grouping.Groups{}
	}

	order := rooms.Names()
	opts.Rand.Shuffle(len(order), func(i, j int) {
		order[i], order[j] = order[j], order[i]
	})

	s := &seating{
		alloc:     models.NewAllocation(order),
		order:     order,
		remaining: make(map[string]int, len(rooms)),
		prior:     opts.Prior,
		pinned:    make(map[string]bool),
	}
	for _, r := range rooms {
		s.remaining[r.Name] = r.Capacity
	}

	s.placeGroups(groups.Projects)
	s.fillMisc(groups.Misc, opts.Rand)

	res := &Result{
		Allocation:    s.alloc,
		SplitProjects: s.split,
	}
	if len(s.prior) > 0 {
		res.RepeatsBefore = s.alloc.RepeatCount(s.prior)
		res.Swaps = s.reduceRepeats()
		res.RepeatsAfter = s.alloc.RepeatCount(s.prior)
	}
	res.Shortfall = s.alloc.OverflowCount()
	return res, nil
}

// seating is the allocation under construction.
type seating struct {
	alloc     *models.Allocation
	order     []string
	remaining map[string]int
	prior     models.PriorAllocation
	// pinned holds members of multi-person groups seated whole in one room.
	pinned map[string]bool
	split  []string
}

// placeGroups seats project groups largest first, ties by project name.
func (s *seating) placeGroups(projects []models.ProjectGroup) {
	sorted := append([]models.ProjectGroup(nil), projects...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Size() != sorted[j].Size() {
			return sorted[i].Size() > sorted[j].Size()
		}
		return sorted[i].Project < sorted[j].Project
	})
	for _, g := range sorted {
		s.placeGroup(g)
	}
}

func (s *seating) placeGroup(g models.ProjectGroup) {
	pending := g.Members
	var used []string
	for len(pending) > 0 {
		room := s.roomiest(pending)
		if room == "" {
			break
		}
		n := min(len(pending), s.remaining[room])
		s.alloc.Seat(room, pending[:n]...)
		s.remaining[room] -= n
		pending = pending[n:]
		used = append(used, room)
	}

	if len(pending) > 0 {
		key := s.order[len(s.order)-1]
		if len(used) > 0 {
			key = used[len(used)-1]
		}
		s.alloc.AddOverflow(key, pending...)
	}

	if len(used) == 1 && len(pending) == 0 {
		if g.Size() > 1 {
			for _, m := range g.Members {
				s.pinned[m] = true
			}
		}
		return
	}
	if g.Size() > 0 {
		s.split = append(s.split, g.Project)
	}
}

// roomiest returns the room with the most remaining capacity, or "" when
// every room is full. Ties prefer the room fewer of the members sat in
// yesterday, then the shuffled room order.
func (s *seating) roomiest(members []string) string {
	best := ""
	bestFree, bestRepeats := 0, 0
	for _, room := range s.order {
		free := s.remaining[room]
		if free <= 0 {
			continue
		}
		repeats := s.repeatsIn(room, members)
		if best == "" || free > bestFree || (free == bestFree && repeats < bestRepeats) {
			best, bestFree, bestRepeats = room, free, repeats
		}
	}
	return best
}

func (s *seating) repeatsIn(room string, members []string) int {
	if len(s.prior) == 0 {
		return 0
	}
	n := 0
	for _, m := range members {
		if s.prior.Contains(room, m) {
			n++
		}
	}
	return n
}

// fillMisc seats misc people in random order into the remaining seats.
// Leftovers overflow into the last room in processing order.
func (s *seating) fillMisc(misc []string, rng *rand.Rand) {
	pool := append([]string(nil), misc...)
	rng.Shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})

	next := 0
	for _, room := range s.order {
		for s.remaining[room] > 0 && next < len(pool) {
			s.alloc.Seat(room, pool[next])
			s.remaining[room]--
			next++
		}
	}
	if next < len(pool) {
		s.alloc.AddOverflow(s.order[len(s.order)-1], pool[next:]...)
	}
}

// reduceRepeats swaps repeat-seated people with partners in other rooms and
// returns the number of swaps. Every swap strictly lowers the repeat count
// and leaves room sizes unchanged.
func (s *seating) reduceRepeats() int {
	swaps := 0
	for _, room := range s.order {
		for i := range s.alloc.Rooms[room] {
			x := s.alloc.Rooms[room][i]
			if s.pinned[x] || !s.prior.Contains(room, x) {
				continue
			}
			if s.swapOut(room, i) {
				swaps++
			}
		}
	}
	return swaps
}

// swapOut exchanges the person at Rooms[from][i] with a movable person in
// another room. Neither may land in a room they sat in yesterday.
func (s *seating) swapOut(from string, i int) bool {
	x := s.alloc.Rooms[from][i]
	for _, to := range s.order {
		if to == from || s.prior.Contains(to, x) {
			continue
		}
		for j, y := range s.alloc.Rooms[to] {
			if s.pinned[y] || s.prior.Contains(from, y) {
				continue
			}
			s.alloc.Rooms[from][i] = y
			s.alloc.Rooms[to][j] = x
			return true
		}
	}
	return false
}
