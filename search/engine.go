package search

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/poiesic/servicefinder/ai"
	"github.com/poiesic/servicefinder/core"
	"github.com/poiesic/servicefinder/storage"
)

// Mode selects how candidates are scored.
type Mode string

const (
	// ModeVector ranks by vector similarity alone.
	ModeVector Mode = "vector"
	// ModeHybrid adds a lexical boost to the vector similarity.
	ModeHybrid Mode = "hybrid"
)

// ParseMode converts a user-supplied mode name. An empty name selects ModeVector.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeVector:
		return ModeVector, nil
	case ModeHybrid:
		return ModeHybrid, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
}

const (
	DefaultLimit          = 10
	DefaultSimilarLimit   = 5
	DefaultHybridBoost    = 0.2
	DefaultVectorMinScore = 0.5
	DefaultHybridMinScore = 0.3

	// MaxLimit is the largest result count callers may request.
	MaxLimit = 100
)

// Options controls a single search call. The zero value searches in vector
// mode with the engine's defaults.
type Options struct {
	Limit       int
	MinScore    *float64
	Locations   []string
	SubtopicIDs []string
	Mode        Mode
	Monitor     SearchMonitor
}

// Engine runs vector and hybrid searches against a VectorIndex.
type Engine struct {
	store   storage.RecordStore
	index   storage.VectorIndex
	client  *ai.Client
	monitor SearchMonitor
	logger  *slog.Logger

	hybridBoost    float64
	vectorMinScore float64
	hybridMinScore float64
}

// Option configures an Engine.
type Option func(*Engine) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger
		return nil
	}
}

// WithHybridBoost sets the score added to hybrid candidates whose name or
// description contains the query.
func WithHybridBoost(boost float64) Option {
	return func(e *Engine) error {
		if boost < 0 {
			return fmt.Errorf("hybrid boost must be non-negative, got %v", boost)
		}
		e.hybridBoost = boost
		return nil
	}
}

// WithDefaultMinScores overrides the similarity floors used when a call
// does not set Options.MinScore.
func WithDefaultMinScores(vector, hybrid float64) Option {
	return func(e *Engine) error {
		e.vectorMinScore = vector
		e.hybridMinScore = hybrid
		return nil
	}
}

// WithMonitor installs a monitor used by every call that does not carry its own.
func WithMonitor(monitor SearchMonitor) Option {
	return func(e *Engine) error {
		if monitor == nil {
			monitor = &noopMonitor{}
		}
		e.monitor = monitor
		return nil
	}
}

// NewEngine creates a search engine. The store is used by FindSimilar to
// look up the source record.
func NewEngine(store storage.RecordStore, index storage.VectorIndex, client *ai.Client, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if index == nil {
		return nil, ErrIndexRequired
	}
	if client == nil {
		return nil, ErrEmbedderRequired
	}

	e := &Engine{
		store:          store,
		index:          index,
		client:         client,
		monitor:        &noopMonitor{},
		logger:         slog.Default().With("component", "search"),
		hybridBoost:    DefaultHybridBoost,
		vectorMinScore: DefaultVectorMinScore,
		hybridMinScore: DefaultHybridMinScore,
	}

	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}

	return e, nil
}

// scored is a candidate that survived filtering, with its final score.
type scored struct {
	record      *core.Record
	similarity  float64
	vectorScore float64
	order       int
}

// Search embeds the query and returns up to opts.Limit ranked records.
// An empty result is not an error.
func (e *Engine) Search(ctx context.Context, query string, opts Options) (results []*core.SearchResult, err error) {
	mode, err := ParseMode(string(opts.Mode))
	if err != nil {
		return nil, err
	}
	limit := min(cmp.Or(max(opts.Limit, 0), DefaultLimit), MaxLimit)
	minScore := e.MinScore(mode, opts.MinScore)

	monitor := opts.Monitor
	if monitor == nil {
		monitor = e.monitor
	}
	monitor.Start(query, mode)
	defer func() { monitor.Finish(results, err) }()

	start := time.Now()
	vector, err := e.client.Embed(ctx, query)
	if err != nil {
		e.logger.Error("error generating embedding for query", "mode", mode, "err", err)
		return nil, fmt.Errorf("search: vector search failed: %w", err)
	}
	monitor.AfterEmbedding(len(vector))

	pool, topK := max(100, limit*5), limit*2
	if mode == ModeHybrid {
		pool, topK = max(200, limit*10), limit*5
	}

	spec, err := storage.NewQuery(vector).
		CandidatePool(pool).
		TopK(topK).
		WithLocations(opts.Locations...).
		WithSubtopics(opts.SubtopicIDs...).
		Build()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrQuery, err)
	}

	candidates, err := e.index.Query(ctx, spec)
	if err != nil {
		e.logger.Error("error querying vector index", "mode", mode, "err", err)
		return nil, fmt.Errorf("%w: %w", core.ErrQuery, err)
	}
	monitor.AfterCandidates(candidates)

	var match func(*core.Record) bool
	if mode == ModeHybrid {
		re := literalMatcher(query)
		match = func(r *core.Record) bool { return re.MatchString(lexicalText(r)) }
	}

	kept := make([]scored, 0, len(candidates))
	for i, c := range candidates {
		if c.Record == nil || c.Similarity < minScore {
			continue
		}
		if !spec.Filters.Matches(c.Record) {
			continue
		}
		s := scored{record: c.Record, similarity: c.Similarity, vectorScore: c.Similarity, order: i}
		if match != nil && match(c.Record) {
			s.similarity += e.hybridBoost
		}
		kept = append(kept, s)
	}
	monitor.AfterFilter(len(kept))

	results = rank(kept, limit)
	e.logger.Debug("search completed",
		"mode", mode,
		"candidates", len(candidates),
		"results", len(results),
		"elapsed", time.Since(start))
	return results, nil
}

// MinScore returns the similarity floor a search in mode applies, given the
// caller's override.
func (e *Engine) MinScore(mode Mode, override *float64) float64 {
	if override != nil {
		return *override
	}
	if mode == ModeHybrid {
		return e.hybridMinScore
	}
	return e.vectorMinScore
}

// rank sorts by similarity, then vector score, then candidate order, and
// assigns 1-based ranks to the first limit entries.
func rank(items []scored, limit int) []*core.SearchResult {
	slices.SortStableFunc(items, func(a, b scored) int {
		if c := cmp.Compare(b.similarity, a.similarity); c != 0 {
			return c
		}
		if c := cmp.Compare(b.vectorScore, a.vectorScore); c != 0 {
			return c
		}
		return cmp.Compare(a.order, b.order)
	})
	if len(items) > limit {
		items = items[:limit]
	}

	results := make([]*core.SearchResult, len(items))
	for i, it := range items {
		results[i] = &core.SearchResult{
			Record:      it.record,
			Similarity:  it.similarity,
			VectorScore: it.vectorScore,
			Rank:        i + 1,
		}
	}
	return results
}

// IsClientError reports whether err was caused by the caller's input rather
// than by the provider or the index.
func IsClientError(err error) bool {
	return errors.Is(err, core.ErrInvalidInput) || errors.Is(err, ErrInvalidMode)
}
