package notify

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/ShayCichocki/dailyshuffle/pkg/models"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	headerStyle   = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle     = lipgloss.NewStyle().Padding(0, 1)
	overflowStyle = lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("11"))
	borderStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// Console prints the allocation as a table.
type Console struct {
	Out io.Writer
}

// NewConsole writes to out, or stdout when out is nil.
func NewConsole(out io.Writer) *Console {
	if out == nil {
		out = os.Stdout
	}
	return &Console{Out: out}
}

// Name identifies the notifier in publication errors.
func (c *Console) Name() string { return "console" }

// Send renders the table.
func (c *Console) Send(ctx context.Context, rows []models.Row, dateLabel string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(c.Out, "%s\n%s\n", titleStyle.Render(Title(dateLabel)), RenderTable(rows))
	return err
}

// RenderTable lays rows out as a bordered Room No. / Names table. Overflow
// rows are highlighted.
func RenderTable(rows []models.Row) string {
	data := make([][]string, 0, len(rows))
	for _, row := range rows {
		data = append(data, []string{row.Label, JoinPeople(row.People)})
	}

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers("Room No.", "Names").
		Rows(data...).
		StyleFunc(func(r, _ int) lipgloss.Style {
			switch {
			case r == table.HeaderRow:
				return headerStyle
			case r >= 0 && r < len(rows) && rows[r].Overflow:
				return overflowStyle
			default:
				return cellStyle
			}
		}).
		String()
}
