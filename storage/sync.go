package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/servicefinder/core"
	"golang.org/x/sync/errgroup"
)

const (
	defaultSyncBatchSize   = 100
	defaultSyncConcurrency = 4
)

// SyncIndex copies every embedded record of src into dst.
// Upserts run with at most four batches in flight; the first failure cancels the rest.
// Returns the number of records written.
func SyncIndex(ctx context.Context, src RecordStore, dst IndexWriter, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = defaultSyncBatchSize
	}
	logger := slog.Default().With("component", "index-sync")

	filter := Filter{EmbeddedOnly: true}
	total, err := src.CountRecords(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("counting embedded records: %w", err)
	}
	if total == 0 {
		logger.Info("no embedded records to sync")
		return 0, nil
	}

	first, err := src.ListRecords(ctx, filter, Page{Limit: 1})
	if err != nil {
		return 0, fmt.Errorf("listing records: %w", err)
	}
	if len(first) == 0 {
		return 0, nil
	}
	if err := dst.EnsureCollection(ctx, len(first[0].Embedding.Vector)); err != nil {
		return 0, fmt.Errorf("ensuring collection: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(defaultSyncConcurrency)

	written := 0
	for offset := 0; offset < total; offset += batchSize {
		batch, err := src.ListRecords(gctx, filter, Page{Offset: offset, Limit: batchSize})
		if err != nil {
			if werr := g.Wait(); werr != nil {
				return 0, werr
			}
			return 0, fmt.Errorf("listing records: %w", err)
		}
		if len(batch) == 0 {
			break
		}
		written += len(batch)
		g.Go(func() error {
			if err := dst.Upsert(gctx, batch...); err != nil {
				return fmt.Errorf("upserting %d records at offset %d: %w", len(batch), offset, err)
			}
			logger.Debug("batch synced", "offset", offset, "count", len(batch))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return 0, err
	}
	logger.Info("index sync complete", "records", written)
	return written, nil
}

// Embedded drops records without a vector.
func Embedded(records []*core.Record) []*core.Record {
	out := make([]*core.Record, 0, len(records))
	for _, r := range records {
		if r.HasEmbedding() {
			out = append(out, r)
		}
	}
	return out
}
