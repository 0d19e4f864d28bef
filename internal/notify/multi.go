package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ShayCichocki/dailyshuffle/pkg/models"
)

// Notifier is anything Multi can fan out to.
type Notifier interface {
	Name() string
	Send(ctx context.Context, rows []models.Row, dateLabel string) error
}

// Multi sends to every notifier in order. A failure does not stop the rest.
type Multi []Notifier

var (
	_ Notifier = Multi(nil)
	_ Notifier = (*Teams)(nil)
	_ Notifier = (*Console)(nil)
)

// Name lists the wrapped notifiers.
func (m Multi) Name() string {
	names := make([]string, len(m))
	for i, n := range m {
		names[i] = n.Name()
	}
	return strings.Join(names, "+")
}

// Send returns the joined errors of every failing notifier.
func (m Multi) Send(ctx context.Context, rows []models.Row, dateLabel string) error {
	var errs []error
	for _, n := range m {
		if err := n.Send(ctx, rows, dateLabel); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
		}
	}
	return errors.Join(errs...)
}
