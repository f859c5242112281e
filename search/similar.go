package search

import (
	"cmp"
	"context"
	"errors"
	"fmt"

	"github.com/poiesic/servicefinder/core"
	"github.com/poiesic/servicefinder/storage"
)

// FindSimilar returns up to limit records closest to the stored vector of
// the record with the given id. The source record never appears in the
// result. A limit <= 0 selects DefaultSimilarLimit and a limit above
// MaxLimit is capped.
func (e *Engine) FindSimilar(ctx context.Context, id string, limit int) ([]*core.SearchResult, error) {
	limit = min(cmp.Or(max(limit, 0), DefaultSimilarLimit), MaxLimit)

	source, err := e.store.GetRecord(ctx, id)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", core.ErrNotFound, id)
		}
		return nil, fmt.Errorf("%w: %w", core.ErrQuery, err)
	}
	if !source.HasEmbedding() {
		return nil, fmt.Errorf("%w: %s", core.ErrNoEmbedding, id)
	}

	spec, err := storage.NewQuery(source.Embedding.Vector).
		CandidatePool(max(100, limit*5)).
		TopK(limit + 1).
		Exclude(id).
		Build()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrQuery, err)
	}

	candidates, err := e.index.Query(ctx, spec)
	if err != nil {
		e.logger.Error("error querying for similar records", "id", id, "err", err)
		return nil, fmt.Errorf("%w: %w", core.ErrQuery, err)
	}

	kept := make([]scored, 0, len(candidates))
	for i, c := range candidates {
		if c.Record == nil || c.Record.ID == id {
			continue
		}
		kept = append(kept, scored{record: c.Record, similarity: c.Similarity, vectorScore: c.Similarity, order: i})
	}

	return rank(kept, limit), nil
}
