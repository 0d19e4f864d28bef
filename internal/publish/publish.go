// Package publish writes a finished allocation to its sinks and announces
// it. Publication never changes the allocation: failures are collected and
// returned so the caller can report a degraded run.
package publish

import (
	"context"
	"log"
	"time"

	"github.com/ShayCichocki/dailyshuffle/pkg/models"
)

// DefaultTimeout bounds each sink or notifier call.
const DefaultTimeout = 30 * time.Second

// Sink persists the rows of one day. The record is keyed by the calendar
// day of day and stamped with at, the wall-clock write time. Writing the
// same day again replaces the earlier record.
type Sink interface {
	Name() string
	Write(ctx context.Context, rows []models.Row, day, at time.Time) error
}

// Notifier announces the rows.
type Notifier interface {
	Name() string
	Send(ctx context.Context, rows []models.Row, dateLabel string) error
}

// Status summarizes a publication.
type Status string

const (
	StatusOK       Status = "ok"
	StatusDegraded Status = "degraded"
)

// Result is the outcome of Publish.
type Result struct {
	Rows   []models.Row
	Errors []*models.PublicationError
	Status Status
}

// Publisher fans an allocation out to sinks and a notifier.
type Publisher struct {
	Sinks    []Sink
	Notifier Notifier
	// Timeout per external call. Zero means DefaultTimeout.
	Timeout time.Duration
}

// Publish renders alloc as the allocation for day and hands it to every
// sink, then to the notifier. at is the write time recorded by the sinks.
func (p *Publisher) Publish(ctx context.Context, alloc *models.Allocation, day, at time.Time) *Result {
	res := &Result{Rows: alloc.Rows(), Status: StatusOK}

	for _, sink := range p.Sinks {
		err := p.call(ctx, func(ctx context.Context) error {
			return sink.Write(ctx, res.Rows, day, at)
		})
		if err != nil {
			log.Printf("[publish] sink %s failed: %v", sink.Name(), err)
			res.Errors = append(res.Errors, &models.PublicationError{Stage: "sink", Target: sink.Name(), Err: err})
			continue
		}
		log.Printf("[publish] wrote %d rows to %s", len(res.Rows), sink.Name())
	}

	if p.Notifier != nil {
		err := p.call(ctx, func(ctx context.Context) error {
			return p.Notifier.Send(ctx, res.Rows, models.DateLabel(day))
		})
		if err != nil {
			log.Printf("[publish] notifier %s failed: %v", p.Notifier.Name(), err)
			res.Errors = append(res.Errors, &models.PublicationError{Stage: "notify", Target: p.Notifier.Name(), Err: err})
		}
	}

	if len(res.Errors) > 0 {
		res.Status = StatusDegraded
	}
	return res
}

func (p *Publisher) call(ctx context.Context, fn func(context.Context) error) error {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(ctx)
}
