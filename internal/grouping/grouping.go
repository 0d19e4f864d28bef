// Package grouping partitions a roster into project groups and a
// miscellaneous pool, dropping excluded people.
package grouping

import (
	"fmt"
	"strings"

	"github.com/ShayCichocki/dailyshuffle/pkg/models"
)

// Groups is the output of Group.
type Groups struct {
	// Projects are in first-appearance order; members keep roster order.
	Projects []models.ProjectGroup
	// Misc holds people with no cohesion requirement.
	Misc []string
}

// Headcount returns the number of people across groups and the misc pool.
func (g *Groups) Headcount() int {
	n := len(g.Misc)
	for _, p := range g.Projects {
		n += p.Size()
	}
	return n
}

type options struct {
	marker string
	source string
}

// Option configures Group.
type Option func(*options)

// WithMiscMarker overrides the project tag that marks misc people.
func WithMiscMarker(marker string) Option {
	return func(o *options) {
		if marker != "" {
			o.marker = marker
		}
	}
}

// WithSource names the roster origin used in DataFormatError messages.
func WithSource(source string) Option {
	return func(o *options) {
		if source != "" {
			o.source = source
		}
	}
}

// Group splits entries into project groups and the misc pool. Rows with a
// missing name or project, and names listed twice, fail with
// *models.DataFormatError rather than being dropped.
func Group(entries []models.RosterEntry, exclusions []string, opts ...Option) (*Groups, error) {
	o := options{marker: models.DefaultMiscMarker, source: "roster"}
	for _, opt := range opts {
		opt(&o)
	}

	excluded := make(map[string]bool, len(exclusions))
	for _, name := range exclusions {
		excluded[strings.TrimSpace(name)] = true
	}

	groups := &Groups{}
	index := make(map[string]int)
	seen := make(map[string]int, len(entries))

	for i, entry := range entries {
		name := strings.TrimSpace(entry.Name)
		project := strings.TrimSpace(entry.Project)
		row := i + 1
		if name == "" {
			return nil, &models.DataFormatError{Source: o.source, Row: row, Reason: "missing name"}
		}
		if project == "" {
			return nil, &models.DataFormatError{Source: o.source, Row: row, Reason: "missing project for " + name}
		}
		if first, dup := seen[name]; dup {
			return nil, &models.DataFormatError{
				Source: o.source,
				Row:    row,
				Reason: fmt.Sprintf("duplicate name %s (first seen on row %d)", name, first),
			}
		}
		seen[name] = row

		if excluded[name] {
			continue
		}
		if (models.RosterEntry{Name: name, Project: project}).IsMisc(o.marker) {
			groups.Misc = append(groups.Misc, name)
			continue
		}
		idx, ok := index[project]
		if !ok {
			idx = len(groups.Projects)
			index[project] = idx
			groups.Projects = append(groups.Projects, models.ProjectGroup{Project: project})
		}
		groups.Projects[idx].Members = append(groups.Projects[idx].Members, name)
	}

	return groups, nil
}
