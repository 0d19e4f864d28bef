package publish

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/ShayCichocki/dailyshuffle/pkg/models"
)

type recordingSink struct {
	name string
	err  error
	rows []models.Row
	day  time.Time
	at   time.Time
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Write(_ context.Context, rows []models.Row, day, at time.Time) error {
	if s.err != nil {
		return s.err
	}
	s.rows, s.day, s.at = rows, day, at
	// A careless sink must not be able to reach back into the allocation.
	if len(rows) > 0 && len(rows[0].People) > 0 {
		rows[0].People[0] = "mutated"
	}
	return nil
}

type recordingNotifier struct {
	err       error
	dateLabel string
	rows      []models.Row
}

func (n *recordingNotifier) Name() string { return "recorder" }

func (n *recordingNotifier) Send(_ context.Context, rows []models.Row, dateLabel string) error {
	n.rows, n.dateLabel = rows, dateLabel
	return n.err
}

type blockingSink struct{}

func (blockingSink) Name() string { return "slow" }

func (blockingSink) Write(ctx context.Context, _ []models.Row, _, _ time.Time) error {
	<-ctx.Done()
	return ctx.Err()
}

func sampleAllocation() *models.Allocation {
	a := models.NewAllocation([]string{"B", "A"})
	a.Seat("A", "x", "y")
	a.Seat("B", "z")
	a.AddOverflow("A", "w")
	return a
}

var (
	today = time.Date(2024, 3, 4, 0, 0, 0, 0, time.Local)
	when  = time.Date(2024, 3, 5, 9, 30, 0, 0, time.Local)
)

func TestPublish_OK(t *testing.T) {
	alloc := sampleAllocation()
	before := sampleAllocation()
	sink := &recordingSink{name: "db"}
	notifier := &recordingNotifier{}

	p := &Publisher{Sinks: []Sink{sink}, Notifier: notifier}
	res := p.Publish(context.Background(), alloc, today, when)

	if res.Status != StatusOK || len(res.Errors) != 0 {
		t.Fatalf("Publish = %s %v, want ok", res.Status, res.Errors)
	}
	if !sink.day.Equal(today) {
		t.Errorf("sink day = %v, want %v", sink.day, today)
	}
	if !sink.at.Equal(when) {
		t.Errorf("sink timestamp = %v, want %v", sink.at, when)
	}
	// The card is dated by the allocation day, not the write time.
	if notifier.dateLabel != "04-03-2024" {
		t.Errorf("dateLabel = %q, want 04-03-2024", notifier.dateLabel)
	}

	wantLabels := []string{"B", "A", "A (Outside Space)"}
	var labels []string
	for _, r := range notifier.rows {
		labels = append(labels, r.Label)
	}
	if !reflect.DeepEqual(labels, wantLabels) {
		t.Errorf("labels = %v, want %v", labels, wantLabels)
	}

	if !reflect.DeepEqual(alloc, before) {
		t.Errorf("allocation changed during publish:\n%+v\n%+v", alloc, before)
	}
}

func TestPublish_CollectsFailures(t *testing.T) {
	good := &recordingSink{name: "archive"}
	bad := &recordingSink{name: "db", err: errors.New("disk full")}
	notifier := &recordingNotifier{err: errors.New("webhook 500")}

	p := &Publisher{Sinks: []Sink{bad, good}, Notifier: notifier}
	res := p.Publish(context.Background(), sampleAllocation(), today, when)

	if res.Status != StatusDegraded {
		t.Errorf("Status = %s, want degraded", res.Status)
	}
	if len(res.Errors) != 2 {
		t.Fatalf("got %d errors, want 2: %v", len(res.Errors), res.Errors)
	}
	if res.Errors[0].Stage != "sink" || res.Errors[0].Target != "db" {
		t.Errorf("first error = %+v", res.Errors[0])
	}
	if res.Errors[1].Stage != "notify" || res.Errors[1].Target != "recorder" {
		t.Errorf("second error = %+v", res.Errors[1])
	}
	if good.rows == nil {
		t.Error("later sink was skipped after an earlier failure")
	}
	if notifier.rows == nil {
		t.Error("notifier was skipped after a sink failure")
	}
}

func TestPublish_Timeout(t *testing.T) {
	p := &Publisher{Sinks: []Sink{blockingSink{}}, Timeout: 20 * time.Millisecond}

	start := time.Now()
	res := p.Publish(context.Background(), sampleAllocation(), today, when)
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("Publish took %v, timeout not applied", elapsed)
	}
	if len(res.Errors) != 1 || !errors.Is(res.Errors[0], context.DeadlineExceeded) {
		t.Errorf("errors = %v, want deadline exceeded", res.Errors)
	}
}

func TestPublish_NoTargets(t *testing.T) {
	res := (&Publisher{}).Publish(context.Background(), sampleAllocation(), today, when)
	if res.Status != StatusOK || len(res.Rows) != 3 {
		t.Errorf("Publish with no targets = %+v", res)
	}
}
