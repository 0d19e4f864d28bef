// Package roster reads people, rooms and exclusions.
//
// A roster can come from the state database or from a document on disk.
// Documents are YAML (.yaml, .yml) or JSON with comments (.json, .jsonc):
//
//	rooms:
//	  - {name: "Room 1", capacity: 4}
//	people:
//	  - {name: "Ada", project: "Apollo"}
//	  - {name: "Bo", project: "Miscellaneous"}
//	exclusions: ["Cy"]
package roster

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"go.yaml.in/yaml/v3"

	"github.com/ShayCichocki/dailyshuffle/pkg/models"
)

// Source supplies the inputs of a run.
type Source interface {
	ReadRoster(ctx context.Context) ([]models.RosterEntry, error)
	ReadRooms(ctx context.Context) ([]models.Room, error)
	ReadExclusions(ctx context.Context) ([]string, error)
}

// Document is the on-disk roster layout.
type Document struct {
	Rooms      []models.Room        `json:"rooms" yaml:"rooms"`
	People     []models.RosterEntry `json:"people" yaml:"people"`
	Exclusions []string             `json:"exclusions" yaml:"exclusions"`
}

// roomEntry is a room as written in a document. A nil Capacity means the
// key was missing, which is distinct from an explicit zero.
type roomEntry struct {
	Name     string `json:"name" yaml:"name"`
	Capacity *int   `json:"capacity" yaml:"capacity"`
}

type rawDocument struct {
	Rooms      []roomEntry          `json:"rooms" yaml:"rooms"`
	People     []models.RosterEntry `json:"people" yaml:"people"`
	Exclusions []string             `json:"exclusions" yaml:"exclusions"`
}

func (raw *rawDocument) document(source string) (*Document, error) {
	doc := &Document{
		Rooms:      make([]models.Room, 0, len(raw.Rooms)),
		People:     raw.People,
		Exclusions: raw.Exclusions,
	}
	for i, r := range raw.Rooms {
		if strings.TrimSpace(r.Name) == "" {
			return nil, &models.DataFormatError{Source: source + " rooms", Row: i + 1, Reason: "missing room name"}
		}
		if r.Capacity == nil {
			return nil, &models.DataFormatError{Source: source + " rooms", Row: i + 1, Reason: "missing capacity for " + r.Name}
		}
		doc.Rooms = append(doc.Rooms, models.Room{Name: r.Name, Capacity: *r.Capacity})
	}
	return doc, nil
}

// Validate reports the first incomplete room or person.
func (d *Document) Validate(source string) error {
	for i, r := range d.Rooms {
		if strings.TrimSpace(r.Name) == "" {
			return &models.DataFormatError{Source: source + " rooms", Row: i + 1, Reason: "missing room name"}
		}
	}
	for i, p := range d.People {
		if strings.TrimSpace(p.Name) == "" {
			return &models.DataFormatError{Source: source + " people", Row: i + 1, Reason: "missing name"}
		}
		if strings.TrimSpace(p.Project) == "" {
			return &models.DataFormatError{Source: source + " people", Row: i + 1, Reason: "missing project for " + p.Name}
		}
	}
	return nil
}

// Parse decodes a roster document. The format is picked from the file
// extension of name; unknown extensions are tried as YAML.
func Parse(name string, data []byte) (*Document, error) {
	var raw rawDocument
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json", ".jsonc":
		if err := json.Unmarshal(jsonc.ToJSON(data), &raw); err != nil {
			return nil, &models.DataFormatError{Source: name, Reason: err.Error()}
		}
	default:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, &models.DataFormatError{Source: name, Reason: err.Error()}
		}
	}
	doc, err := raw.document(name)
	if err != nil {
		return nil, err
	}
	if err := doc.Validate(name); err != nil {
		return nil, err
	}
	return doc, nil
}

// ReadFile reads and parses a roster document from disk.
func ReadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roster %s: %w", path, err)
	}
	return Parse(path, data)
}

// File is a Source backed by a roster document. The file is re-read on
// every call so edits are picked up between runs.
type File struct {
	Path string
}

// NewFile returns a Source for the document at path.
func NewFile(path string) *File {
	return &File{Path: path}
}

func (f *File) load(ctx context.Context) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return ReadFile(f.Path)
}

// ReadRoster returns the people in document order.
func (f *File) ReadRoster(ctx context.Context) ([]models.RosterEntry, error) {
	doc, err := f.load(ctx)
	if err != nil {
		return nil, err
	}
	return doc.People, nil
}

// ReadRooms returns the rooms in document order.
func (f *File) ReadRooms(ctx context.Context) ([]models.Room, error) {
	doc, err := f.load(ctx)
	if err != nil {
		return nil, err
	}
	return doc.Rooms, nil
}

// ReadExclusions returns the excluded names.
func (f *File) ReadExclusions(ctx context.Context) ([]string, error) {
	doc, err := f.load(ctx)
	if err != nil {
		return nil, err
	}
	return doc.Exclusions, nil
}

var _ Source = (*File)(nil)
