package ingestion

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/servicefinder/ai"
	"github.com/poiesic/servicefinder/compose"
	"github.com/poiesic/servicefinder/core"
	"github.com/poiesic/servicefinder/reembed"
	"github.com/poiesic/servicefinder/storage"
)

// Pipeline writes service records to a store and optionally embeds them.
type Pipeline struct {
	store      storage.RecordStore
	client     *ai.Client
	pool       *ants.Pool
	poolSize   int
	maxRetries int
	retryDelay time.Duration
	logger     *slog.Logger

	wg       sync.WaitGroup
	embedded atomic.Int64
	failed   atomic.Int64
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size for background embedding.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		p.poolSize = max(size, 1)
		return nil
	}
}

// WithEmbedOnImport embeds every record that lacks a vector after it is written.
func WithEmbedOnImport(client *ai.Client) Option {
	return func(p *Pipeline) error {
		p.client = client
		return nil
	}
}

// WithRetry sets how often a background embedding is attempted.
func WithRetry(maxAttempts int, baseDelay time.Duration) Option {
	return func(p *Pipeline) error {
		if maxAttempts < 1 {
			return reembed.ErrInvalidMaxAttempts
		}
		p.maxRetries = maxAttempts
		p.retryDelay = baseDelay
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(store storage.RecordStore, opts ...Option) (*Pipeline, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}

	p := &Pipeline{
		store:      store,
		poolSize:   max(runtime.NumCPU()/2, 1),
		maxRetries: 3,
		retryDelay: time.Second,
		logger:     slog.Default().With("component", "ingestion"),
	}

	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}

	if p.client != nil {
		pool, err := ants.NewPool(p.poolSize)
		if err != nil {
			return nil, err
		}
		p.pool = pool
	}

	return p, nil
}

// Ingest writes records to the store in a single call. When embedding on
// import is enabled, records are then queued for background embedding and
// Ingest returns without waiting for them.
func (p *Pipeline) Ingest(ctx context.Context, records ...*core.Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := p.store.PutRecords(ctx, records...); err != nil {
		return err
	}
	if p.pool == nil {
		return nil
	}

	for _, record := range records {
		id := record.ID
		p.wg.Add(1)
		err := p.pool.Submit(func() {
			defer p.wg.Done()
			p.embed(context.WithoutCancel(ctx), id)
		})
		if err != nil {
			p.wg.Done()
			p.logger.Error("error submitting record for embedding", "id", id, "err", err)
		}
	}
	return nil
}

// embed fills in the vector for one record unless it already has one.
func (p *Pipeline) embed(ctx context.Context, id string) {
	record, err := p.store.GetRecord(ctx, id)
	if err != nil {
		p.failed.Add(1)
		p.logger.Error("error retrieving record for embedding", "id", id, "err", err)
		return
	}
	if record.HasEmbedding() {
		return
	}

	text, err := compose.Compose(record)
	if err != nil {
		p.failed.Add(1)
		p.logger.Warn("record has no text to embed", "id", id, "err", err)
		return
	}

	var vector []float32
	err = reembed.RetryWithBackoff(ctx, func() error {
		var embedErr error
		vector, embedErr = p.client.Embed(ctx, text)
		return embedErr
	}, p.maxRetries, p.retryDelay)
	if err == nil {
		err = p.store.SetEmbedding(ctx, id, core.Embedding{Vector: vector, Model: p.client.Model()})
	}
	if err != nil {
		p.failed.Add(1)
		if !errors.Is(err, context.Canceled) {
			p.logger.Warn("error embedding record on import", "id", id, "err", err)
		}
		return
	}
	p.embedded.Add(1)
}

// Wait blocks until every queued embedding has finished and reports how
// many succeeded and failed since the pipeline was created.
func (p *Pipeline) Wait() (embedded, failed int) {
	p.wg.Wait()
	return int(p.embedded.Load()), int(p.failed.Load())
}

// EmbedsOnImport reports whether background embedding is enabled.
func (p *Pipeline) EmbedsOnImport() bool {
	return p.pool != nil
}

// Release waits for queued work and releases the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	p.wg.Wait()
	if p.pool != nil {
		p.pool.Release()
	}
}
