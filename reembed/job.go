// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package reembed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/servicefinder/ai"
	"github.com/poiesic/servicefinder/core"
	"github.com/poiesic/servicefinder/storage"
)

// Config holds configuration for the embedding job.
type Config struct {
	// BatchSize is the number of records embedded concurrently
	BatchSize int

	// BatchDelay is the pause between the end of one batch and the start
	// of the next
	BatchDelay time.Duration

	// ReportInterval is how often to report progress (number of records)
	ReportInterval int

	// MaxRetries is the maximum number of attempts for a transient provider failure
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration

	// RetryJitter spreads retry delays by ± this fraction
	RetryJitter float64

	// Force re-embeds every record instead of only those without a vector
	Force bool

	// JobName keys the checkpoint
	JobName string

	// ProgressFile, when set, receives a JSON copy of the checkpoint after every batch
	ProgressFile string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      10,
		BatchDelay:     1 * time.Second,
		ReportInterval: 10,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
		RetryJitter:    0.2,
		JobName:        "embeddings",
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	switch {
	case c.BatchSize <= 0:
		return fmt.Errorf("%w: BatchSize must be positive", ErrInvalidConfig)
	case c.BatchDelay < 0:
		return fmt.Errorf("%w: BatchDelay must not be negative", ErrInvalidConfig)
	case c.MaxRetries <= 0:
		return fmt.Errorf("%w: MaxRetries must be positive", ErrInvalidConfig)
	case c.RetryDelay < 0:
		return fmt.Errorf("%w: RetryDelay must not be negative", ErrInvalidConfig)
	case c.RetryJitter < 0 || c.RetryJitter > 1:
		return fmt.Errorf("%w: RetryJitter must be within [0, 1]", ErrInvalidConfig)
	case c.JobName == "":
		return fmt.Errorf("%w: JobName is required", ErrInvalidConfig)
	}
	return nil
}

// Summary is the outcome of a job run.
type Summary struct {
	RunID       string
	Total       int
	Succeeded   int
	Failed      int
	Failures    []core.Failure
	SuccessRate float64 // percent of Total
	Batches     int
	Elapsed     time.Duration
	// Embedded and StoreTotal describe store coverage after the run.
	Embedded   int
	StoreTotal int
}

// Option configures a Job.
type Option func(*Job)

// WithCheckpointStore persists a checkpoint after every batch.
func WithCheckpointStore(checkpoints storage.CheckpointStore) Option {
	return func(j *Job) {
		j.checkpoints = checkpoints
	}
}

// WithObserver sets the event observer.
func WithObserver(observer Observer) Option {
	return func(j *Job) {
		if observer != nil {
			j.observer = observer
		}
	}
}

// WithProgress sets where progress lines are written.
func WithProgress(w io.Writer) Option {
	return func(j *Job) {
		j.progress = w
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(j *Job) {
		if logger == nil {
			logger = slog.Default()
		}
		j.logger = logger
	}
}

// Job embeds every record that needs a vector.
type Job struct {
	store       storage.RecordStore
	client      *ai.Client
	config      *Config
	checkpoints storage.CheckpointStore
	observer    Observer
	progress    io.Writer
	logger      *slog.Logger
}

// NewJob creates a new embedding job.
func NewJob(store storage.RecordStore, client *ai.Client, config *Config, opts ...Option) (*Job, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if client == nil {
		return nil, ErrClientRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	j := &Job{
		store:    store,
		client:   client,
		config:   config,
		observer: noopObserver{},
		progress: io.Discard,
		logger:   slog.Default().With("component", "embedding-job"),
	}
	for _, opt := range opts {
		opt(j)
	}
	return j, nil
}

// Run executes the job. Per-record failures are reported in the Summary and
// never returned as an error; setup failures and cancellation are.
// On cancellation the partial Summary is returned with the context error.
func (j *Job) Run(ctx context.Context) (*Summary, error) {
	filter := storage.Filter{MissingEmbedding: !j.config.Force}

	storeTotal, err := j.store.CountRecords(ctx, storage.Filter{})
	if err != nil {
		return nil, fmt.Errorf("failed to count records: %w", err)
	}
	records, err := j.store.ListRecords(ctx, filter, storage.Page{})
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}

	summary := &Summary{
		RunID:      uuid.NewString(),
		Total:      len(records),
		StoreTotal: storeTotal,
	}
	logger := j.logger.With("run", summary.RunID)

	if len(records) == 0 {
		logger.Info("no records need embeddings", "force", j.config.Force, "records", storeTotal)
		summary.Embedded, err = j.store.CountRecords(ctx, storage.Filter{EmbeddedOnly: true})
		return summary, err
	}

	ledger := &Ledger{}
	processor, err := NewBatchProcessor(j.store, j.client, j.config.BatchSize, j.backoff(), ledger, j.observer, logger)
	if err != nil {
		return nil, err
	}
	defer processor.Release()

	iterator := NewRecordIterator(records, j.config.BatchSize)
	logger.Info("starting embedding job",
		"records", len(records),
		"batches", iterator.Batches(),
		"batchSize", j.config.BatchSize,
		"model", j.client.Model(),
		"dimensions", j.client.Dimensions(),
		"force", j.config.Force)

	tracker := NewProgressTracker(j.progress, len(records), j.config.ReportInterval)
	tracker.Start()

	checkpoint := &core.Checkpoint{JobName: j.config.JobName, RunID: summary.RunID, Total: len(records)}

	last := iterator.Batches() - 1
	runErr := iterator.ForEach(ctx, func(index int, batch []*core.Record) error {
		start := time.Now()
		succeeded, failed := processor.Process(ctx, batch)

		summary.Succeeded += succeeded
		summary.Failed += failed
		summary.Batches++
		tracker.Add(succeeded, failed)
		j.observer.OnBatch(index, len(batch), failed, time.Since(start))

		checkpoint.Processed = summary.Succeeded + summary.Failed
		checkpoint.Succeeded = summary.Succeeded
		checkpoint.Failed = summary.Failed
		checkpoint.Batches = summary.Batches
		checkpoint.Failures = ledger.Failures()
		j.saveCheckpoint(ctx, checkpoint, logger)

		logger.Debug("batch complete", "batch", index+1, "succeeded", succeeded, "failed", failed)
		if index < last {
			return pause(ctx, j.config.BatchDelay)
		}
		return ctx.Err()
	})
	tracker.Finish()

	summary.Failures = ledger.Failures()
	summary.Elapsed = tracker.Elapsed()
	summary.SuccessRate = float64(summary.Succeeded) / float64(summary.Total) * 100

	if runErr != nil {
		logger.Warn("embedding job interrupted", "processed", summary.Succeeded+summary.Failed, "err", runErr)
		return summary, runErr
	}

	summary.Embedded, err = j.store.CountRecords(ctx, storage.Filter{EmbeddedOnly: true})
	if err != nil {
		return summary, fmt.Errorf("failed to count embedded records: %w", err)
	}
	logger.Info("embedding job complete",
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"elapsed", summary.Elapsed.Round(time.Millisecond))
	return summary, nil
}

func (j *Job) backoff() Backoff {
	return Backoff{
		MaxAttempts: j.config.MaxRetries,
		BaseDelay:   j.config.RetryDelay,
		MaxDelay:    30 * time.Second,
		Jitter:      j.config.RetryJitter,
		Retryable:   IsTransient,
	}
}

// saveCheckpoint persists progress, including for the batch that finished
// as the job was interrupted. Failures are logged, not returned.
func (j *Job) saveCheckpoint(ctx context.Context, checkpoint *core.Checkpoint, logger *slog.Logger) {
	checkpoint.UpdatedAt = storage.Now()
	if j.checkpoints != nil {
		if err := j.checkpoints.SaveCheckpoint(context.WithoutCancel(ctx), checkpoint); err != nil {
			logger.Error("failed to save checkpoint", "err", err)
		}
	}
	if j.config.ProgressFile != "" {
		if err := storage.WriteJSONFile(j.config.ProgressFile, checkpoint); err != nil {
			logger.Error("failed to write progress file", "path", j.config.ProgressFile, "err", err)
		}
	}
}

// LastCheckpoint loads the checkpoint of the previous run, if any.
func (j *Job) LastCheckpoint(ctx context.Context) (*core.Checkpoint, error) {
	if j.checkpoints == nil {
		return nil, nil
	}
	return j.checkpoints.LoadCheckpoint(ctx, j.config.JobName)
}

// pause waits d after the batch barrier, returning early with ctx's error.
func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
