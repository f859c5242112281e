package search

import (
	"github.com/poiesic/servicefinder/core"
	"github.com/poiesic/servicefinder/storage"
)

// SearchMonitor provides hooks to observe the search process.
// Implement this interface to track intermediate steps and results during search.
type SearchMonitor interface {
	Start(query string, mode Mode)
	AfterEmbedding(dims int)
	AfterCandidates(candidates []storage.Candidate)
	AfterFilter(kept int)
	Finish(results []*core.SearchResult, err error)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string, _ Mode)                 {}
func (n *noopMonitor) AfterEmbedding(_ int)                   {}
func (n *noopMonitor) AfterCandidates(_ []storage.Candidate)  {}
func (n *noopMonitor) AfterFilter(_ int)                      {}
func (n *noopMonitor) Finish(_ []*core.SearchResult, _ error) {}
