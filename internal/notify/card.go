// Package notify announces a published allocation: as an Adaptive Card to
// a Teams incoming webhook, and as a table on the terminal.
package notify

import (
	"strings"

	"github.com/ShayCichocki/dailyshuffle/pkg/models"
)

// Card is an Adaptive Card message body.
type Card struct {
	Type string  `json:"type"`
	Body []Block `json:"body"`
}

// Block is a top-level card element: a TextBlock or a Table.
type Block struct {
	Type string `json:"type"`

	// TextBlock
	Text   string `json:"text,omitempty"`
	Weight string `json:"weight,omitempty"`
	Size   string `json:"size,omitempty"`
	Wrap   bool   `json:"wrap,omitempty"`

	// Table
	Columns                        []Column   `json:"columns,omitempty"`
	Rows                           []TableRow `json:"rows,omitempty"`
	Spacing                        string     `json:"spacing,omitempty"`
	Separator                      bool       `json:"separator,omitempty"`
	HorizontalAlignment            string     `json:"horizontalAlignment,omitempty"`
	HorizontalCellContentAlignment string     `json:"horizontalCellContentAlignment,omitempty"`
}

// Column sizes a table column.
type Column struct {
	Width int `json:"width"`
}

// TableRow is one row of a table.
type TableRow struct {
	Type  string      `json:"type"`
	Cells []TableCell `json:"cells"`
}

// TableCell holds the text of one cell.
type TableCell struct {
	Type  string      `json:"type"`
	Items []TextBlock `json:"items"`
}

// TextBlock is the text inside a cell.
type TextBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
	Wrap bool   `json:"wrap"`
}

// Title returns the card heading for a date label.
func Title(dateLabel string) string {
	return "Seating Arrangements for Today (" + dateLabel + ")"
}

// JoinPeople renders a room's people as one cell.
func JoinPeople(people []string) string {
	return strings.Join(people, ", ")
}

func textRow(left, right string) TableRow {
	return TableRow{
		Type: "TableRow",
		Cells: []TableCell{
			{Type: "TableCell", Items: []TextBlock{{Type: "TextBlock", Text: left, Wrap: true}}},
			{Type: "TableCell", Items: []TextBlock{{Type: "TextBlock", Text: right, Wrap: true}}},
		},
	}
}

// BuildCard renders rows as a two-column room/names table under a dated
// heading.
func BuildCard(rows []models.Row, dateLabel string) *Card {
	table := Block{
		Type:                           "Table",
		Columns:                        []Column{{Width: 1}, {Width: 1}},
		Rows:                           []TableRow{textRow("Room No.", "Names")},
		Spacing:                        "Small",
		Separator:                      true,
		HorizontalAlignment:            "Center",
		HorizontalCellContentAlignment: "Center",
	}
	for _, row := range rows {
		table.Rows = append(table.Rows, textRow(row.Label, JoinPeople(row.People)))
	}

	return &Card{
		Type: "AdaptiveCard",
		Body: []Block{
			{Type: "TextBlock", Text: Title(dateLabel), Weight: "Bolder", Size: "Medium", Wrap: true},
			table,
		},
	}
}
