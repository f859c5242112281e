package reembed

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/servicefinder/ai"
	"github.com/poiesic/servicefinder/compose"
	"github.com/poiesic/servicefinder/core"
	"github.com/poiesic/servicefinder/storage"
)

// BatchProcessor embeds the records of one batch concurrently.
// A failing record is written to the ledger and never stops its siblings.
type BatchProcessor struct {
	store    storage.RecordStore
	client   *ai.Client
	pool     *ants.Pool
	backoff  Backoff
	ledger   *Ledger
	observer Observer
	logger   *slog.Logger
}

// NewBatchProcessor creates a new batch processor with a worker pool of size workers.
func NewBatchProcessor(store storage.RecordStore, client *ai.Client, workers int, backoff Backoff, ledger *Ledger, observer Observer, logger *slog.Logger) (*BatchProcessor, error) {
	if workers < 1 {
		workers = 1
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, err
	}
	if observer == nil {
		observer = noopObserver{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchProcessor{
		store:    store,
		client:   client,
		pool:     pool,
		backoff:  backoff,
		ledger:   ledger,
		observer: observer,
		logger:   logger,
	}, nil
}

// Release releases the worker pool.
func (bp *BatchProcessor) Release() {
	bp.pool.Release()
}

// Process embeds every record of the batch and waits for all of them.
// Returns the number of records that succeeded and failed.
func (bp *BatchProcessor) Process(ctx context.Context, records []*core.Record) (succeeded, failed int) {
	var (
		wg       sync.WaitGroup
		okCount  atomic.Int64
		errCount atomic.Int64
	)

	for _, record := range records {
		wg.Add(1)
		err := bp.pool.Submit(func() {
			defer wg.Done()
			if bp.processRecord(ctx, record) {
				okCount.Add(1)
			} else {
				errCount.Add(1)
			}
		})
		if err != nil {
			wg.Done()
			bp.fail(record, fmt.Errorf("submit: %w", err), 0)
			errCount.Add(1)
		}
	}
	wg.Wait()

	return int(okCount.Load()), int(errCount.Load())
}

// processRecord runs compose, embed with retry and store for one record.
func (bp *BatchProcessor) processRecord(ctx context.Context, record *core.Record) bool {
	start := time.Now()

	text, err := compose.Compose(record)
	if err != nil {
		bp.fail(record, err, time.Since(start))
		return false
	}

	var vector []float32
	err = bp.backoff.Retry(ctx, func() error {
		var embedErr error
		vector, embedErr = bp.client.Embed(ctx, text)
		return embedErr
	})
	if err != nil {
		bp.fail(record, err, time.Since(start))
		return false
	}

	embedding := core.Embedding{Vector: vector, Model: bp.client.Model()}
	if err := bp.store.SetEmbedding(ctx, record.ID, embedding); err != nil {
		bp.fail(record, fmt.Errorf("store embedding: %w", err), time.Since(start))
		return false
	}

	bp.logger.Debug("record embedded", "id", record.ID, "dimensions", len(vector))
	bp.observer.OnRecord(record.ID, nil, time.Since(start))
	return true
}

func (bp *BatchProcessor) fail(record *core.Record, err error, elapsed time.Duration) {
	bp.logger.Warn("record failed", "id", record.ID, "name", record.Name, "err", err)
	bp.ledger.Add(record, err)
	bp.observer.OnRecord(record.ID, err, elapsed)
}
