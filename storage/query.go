package storage

import (
	"fmt"
	"slices"

	"github.com/poiesic/servicefinder/core"
)

// SortOrder names the ordering of query results.
type SortOrder int

const (
	// SortSimilarityDesc orders candidates by descending similarity.
	SortSimilarityDesc SortOrder = iota
)

// QueryFilters are pre-filters evaluated by the index before ranking.
type QueryFilters struct {
	Locations   []string
	SubtopicIDs []string
	ExcludeIDs  []string
}

// Matches reports whether record passes the pre-filters.
// Location and subtopic sets match when they share any element.
func (f QueryFilters) Matches(record *core.Record) bool {
	if record == nil {
		return false
	}
	if slices.Contains(f.ExcludeIDs, record.ID) {
		return false
	}
	if len(f.Locations) > 0 && !anyOf(record.Locations, f.Locations) {
		return false
	}
	if len(f.SubtopicIDs) > 0 && !anyOf(record.SubtopicIDs, f.SubtopicIDs) {
		return false
	}
	return true
}

// QuerySpec is a backend-agnostic nearest-neighbour request.
type QuerySpec struct {
	Vector  []float32
	Filters QueryFilters
	Sort    SortOrder
	// Limit is the number of candidates returned.
	Limit int
	// CandidatePoolSize is the number of neighbours considered before Limit applies.
	CandidatePoolSize int
}

// QueryBuilder assembles a QuerySpec.
type QueryBuilder struct {
	spec QuerySpec
}

// NewQuery starts a query for vector.
func NewQuery(vector []float32) *QueryBuilder {
	return &QueryBuilder{spec: QuerySpec{Vector: vector, Sort: SortSimilarityDesc}}
}

// CandidatePool sets how many neighbours the index considers.
func (b *QueryBuilder) CandidatePool(n int) *QueryBuilder {
	b.spec.CandidatePoolSize = n
	return b
}

// TopK sets how many candidates are returned.
func (b *QueryBuilder) TopK(k int) *QueryBuilder {
	b.spec.Limit = k
	return b
}

// WithLocations restricts candidates to records tagged with any of locations.
func (b *QueryBuilder) WithLocations(locations ...string) *QueryBuilder {
	b.spec.Filters.Locations = append(b.spec.Filters.Locations, locations...)
	return b
}

// WithSubtopics restricts candidates to records linked to any of ids.
func (b *QueryBuilder) WithSubtopics(ids ...string) *QueryBuilder {
	b.spec.Filters.SubtopicIDs = append(b.spec.Filters.SubtopicIDs, ids...)
	return b
}

// Exclude drops the given record IDs from the candidates.
func (b *QueryBuilder) Exclude(ids ...string) *QueryBuilder {
	b.spec.Filters.ExcludeIDs = append(b.spec.Filters.ExcludeIDs, ids...)
	return b
}

// Build validates and returns the query.
// The candidate pool is raised to Limit when smaller.
func (b *QueryBuilder) Build() (QuerySpec, error) {
	spec := b.spec
	if len(spec.Vector) == 0 {
		return QuerySpec{}, fmt.Errorf("%w: empty query vector", ErrInvalidQuery)
	}
	if spec.Limit <= 0 {
		return QuerySpec{}, fmt.Errorf("%w: limit must be positive, got %d", ErrInvalidQuery, spec.Limit)
	}
	if spec.CandidatePoolSize < spec.Limit {
		spec.CandidatePoolSize = spec.Limit
	}
	return spec, nil
}
