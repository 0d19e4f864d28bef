// Package models defines the domain types shared by the grouping, allocation
// and publication stages.
package models

import "strings"

// DefaultMiscMarker is the project tag that places a person in the
// miscellaneous pool instead of a project group.
const DefaultMiscMarker = "Miscellaneous"

// RosterEntry is one person and the project they belong to.
type RosterEntry struct {
	Name    string `json:"name" yaml:"name"`
	Project string `json:"project" yaml:"project"`
}

// IsMisc reports whether the entry's project contains the marker.
// An empty marker falls back to DefaultMiscMarker.
func (e RosterEntry) IsMisc(marker string) bool {
	if marker == "" {
		marker = DefaultMiscMarker
	}
	return strings.Contains(e.Project, marker)
}

// ProjectGroup is the set of people sharing a non-miscellaneous project.
type ProjectGroup struct {
	Project string
	Members []string
}

// Size returns the number of members.
func (g ProjectGroup) Size() int {
	return len(g.Members)
}
