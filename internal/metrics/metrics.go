// Package metrics records run outcomes. The Prometheus collector is meant
// for the node-exporter textfile collector: dailyshuffle is a batch job, so
// metrics are written to a file at the end of a run rather than scraped.
package metrics

// Collector receives run measurements.
type Collector interface {
	// RecordAllocation records the outcome of one allocation.
	RecordAllocation(a Allocation)
	// RecordPublishFailure counts a failed sink or notifier call.
	RecordPublishFailure(stage, target string)
	// ObserveRun records the wall time of a run by final status.
	ObserveRun(status string, seconds float64)
}

// Allocation is the per-run allocation summary.
type Allocation struct {
	Seated        int
	Shortfall     int
	RepeatsBefore int
	RepeatsAfter  int
	Swaps         int
	SplitProjects int
}

// Nop discards everything.
type Nop struct{}

var _ Collector = (*Nop)(nil)

// NewNop returns a collector that discards all measurements.
func NewNop() *Nop {
	return &Nop{}
}

func (n *Nop) RecordAllocation(Allocation) {}

func (n *Nop) RecordPublishFailure(_, _ string) {}

func (n *Nop) ObserveRun(_ string, _ float64) {}
