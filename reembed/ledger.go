package reembed

import (
	"cmp"
	"slices"
	"sync"

	"github.com/poiesic/servicefinder/core"
)

// Ledger collects per-record failures from concurrent workers.
type Ledger struct {
	mu       sync.Mutex
	failures []core.Failure
}

// Add records a failure for record.
func (l *Ledger) Add(record *core.Record, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failures = append(l.failures, core.Failure{ID: record.ID, Name: record.Name, Error: err.Error()})
}

// Len returns the number of failures recorded.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.failures)
}

// Failures returns a copy of the recorded failures ordered by record ID.
func (l *Ledger) Failures() []core.Failure {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := slices.Clone(l.failures)
	slices.SortStableFunc(out, func(a, b core.Failure) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}
