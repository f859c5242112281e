package metrics

import (
	"time"

	"github.com/poiesic/servicefinder/core"
	"github.com/poiesic/servicefinder/search"
	"github.com/poiesic/servicefinder/storage"
)

// searchMonitor times a single search. It is not safe to share between
// concurrent searches.
type searchMonitor struct {
	m     *Metrics
	mode  string
	start time.Time
}

var _ search.SearchMonitor = (*searchMonitor)(nil)

// SearchMonitor returns a monitor for one search call.
func (m *Metrics) SearchMonitor() search.SearchMonitor {
	return &searchMonitor{m: m}
}

func (s *searchMonitor) Start(_ string, mode search.Mode) {
	s.mode = string(mode)
	s.start = time.Now()
}

func (s *searchMonitor) AfterEmbedding(int) {}

func (s *searchMonitor) AfterCandidates(candidates []storage.Candidate) {
	s.m.searchCandidates.WithLabelValues(s.mode).Observe(float64(len(candidates)))
}

func (s *searchMonitor) AfterFilter(int) {}

func (s *searchMonitor) Finish(results []*core.SearchResult, err error) {
	s.m.searchesTotal.WithLabelValues(s.mode, status(err)).Inc()
	s.m.searchDuration.WithLabelValues(s.mode).Observe(time.Since(s.start).Seconds())
	if err == nil {
		s.m.searchResults.WithLabelValues(s.mode).Observe(float64(len(results)))
	}
}
