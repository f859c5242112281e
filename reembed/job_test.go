package reembed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/servicefinder/ai"
	"github.com/poiesic/servicefinder/ai/mock"
	"github.com/poiesic/servicefinder/core"
	"github.com/poiesic/servicefinder/storage"
	"github.com/poiesic/servicefinder/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T, n int) (*badger.RecordRepository, *badger.CheckpointRepository) {
	t.Helper()
	records, checkpoints, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	if n > 0 {
		require.NoError(t, records.PutRecords(context.Background(), makeRecords(n)...))
	}
	return records, checkpoints
}

func testConfig() *Config {
	config := DefaultConfig()
	config.BatchDelay = 0
	config.RetryDelay = time.Millisecond
	return config
}

type batchObserver struct {
	mu      sync.Mutex
	batches []int
	records int
	failed  int
	after   func(index int)
}

func (o *batchObserver) OnRecord(id string, err error, elapsed time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.records++
	if err != nil {
		o.failed++
	}
}

func (o *batchObserver) OnBatch(index, size, failed int, elapsed time.Duration) {
	o.mu.Lock()
	o.batches = append(o.batches, size)
	o.mu.Unlock()
	if o.after != nil {
		o.after(index)
	}
}

func TestNewJob_Validation(t *testing.T) {
	records, _ := setupTestDB(t, 0)
	client := ai.NewClient(mock.NewMockEmbedder())

	_, err := NewJob(nil, client, nil)
	assert.ErrorIs(t, err, ErrStoreRequired)

	_, err = NewJob(records, nil, nil)
	assert.ErrorIs(t, err, ErrClientRequired)

	bad := DefaultConfig()
	bad.BatchSize = 0
	_, err = NewJob(records, client, bad)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	bad = DefaultConfig()
	bad.RetryJitter = 1.5
	_, err = NewJob(records, client, bad)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	job, err := NewJob(records, client, nil)
	require.NoError(t, err)
	assert.Equal(t, 10, job.config.BatchSize)
	assert.Equal(t, time.Second, job.config.BatchDelay)
}

func TestJob_Run(t *testing.T) {
	records, checkpoints := setupTestDB(t, 23)
	ctx := context.Background()

	embedder := mock.NewMockEmbedder()
	observer := &batchObserver{}
	var progress bytes.Buffer

	job, err := NewJob(records, ai.NewClient(embedder), testConfig(),
		WithCheckpointStore(checkpoints),
		WithObserver(observer),
		WithProgress(&progress))
	require.NoError(t, err)

	summary, err := job.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 23, summary.Total)
	assert.Equal(t, 23, summary.Succeeded)
	assert.Zero(t, summary.Failed)
	assert.Empty(t, summary.Failures)
	assert.Equal(t, 3, summary.Batches)
	assert.InDelta(t, 100.0, summary.SuccessRate, 1e-9)
	assert.Equal(t, 23, summary.Embedded)
	assert.Equal(t, 23, summary.StoreTotal)
	assert.NotEmpty(t, summary.RunID)

	assert.Equal(t, []int{10, 10, 3}, observer.batches)
	assert.Equal(t, 23, observer.records)
	assert.Equal(t, 23, embedder.CallCount())

	got, err := records.GetRecord(ctx, "S001")
	require.NoError(t, err)
	require.True(t, got.HasEmbedding())
	assert.Equal(t, mock.DefaultModel, got.Embedding.Model)
	assert.Len(t, got.Embedding.Vector, mock.DefaultDimensions)

	cp, err := job.LastCheckpoint(ctx)
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, summary.RunID, cp.RunID)
	assert.Equal(t, 23, cp.Processed)
	assert.Equal(t, 3, cp.Batches)

	assert.Contains(t, progress.String(), "23/23")
}

func TestJob_Idempotent(t *testing.T) {
	records, _ := setupTestDB(t, 12)
	ctx := context.Background()
	embedder := mock.NewMockEmbedder()

	job, err := NewJob(records, ai.NewClient(embedder), testConfig())
	require.NoError(t, err)

	_, err = job.Run(ctx)
	require.NoError(t, err)
	embedder.Reset()

	summary, err := job.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, summary.Total)
	assert.Zero(t, summary.Batches)
	assert.Equal(t, 12, summary.Embedded)
	assert.Zero(t, embedder.CallCount(), "a fully embedded store makes no provider calls")
}

func TestJob_Force(t *testing.T) {
	records, _ := setupTestDB(t, 5)
	ctx := context.Background()
	embedder := mock.NewMockEmbedder()

	job, err := NewJob(records, ai.NewClient(embedder), testConfig())
	require.NoError(t, err)
	_, err = job.Run(ctx)
	require.NoError(t, err)
	embedder.Reset()

	config := testConfig()
	config.Force = true
	forced, err := NewJob(records, ai.NewClient(embedder), config)
	require.NoError(t, err)

	summary, err := forced.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, summary.Total)
	assert.Equal(t, 5, embedder.CallCount())
}

func TestJob_ResumeAfterInterruption(t *testing.T) {
	records, checkpoints := setupTestDB(t, 23)
	progressFile := filepath.Join(t.TempDir(), "embed-progress.json")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	observer := &batchObserver{after: func(index int) {
		if index == 1 {
			cancel()
		}
	}}

	config := testConfig()
	config.ProgressFile = progressFile
	embedder := mock.NewMockEmbedder()

	job, err := NewJob(records, ai.NewClient(embedder), config,
		WithCheckpointStore(checkpoints),
		WithObserver(observer))
	require.NoError(t, err)

	summary, err := job.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, summary)
	assert.Equal(t, 2, summary.Batches)
	assert.Equal(t, 20, summary.Succeeded)

	var saved core.Checkpoint
	found, err := storage.ReadJSONFile(progressFile, &saved)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 20, saved.Processed)
	assert.Equal(t, 2, saved.Batches)

	stored, err := checkpoints.LoadCheckpoint(context.Background(), config.JobName)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, 20, stored.Processed)

	remaining, err := records.CountRecords(context.Background(), storage.Filter{MissingEmbedding: true})
	require.NoError(t, err)
	assert.Equal(t, 3, remaining)

	embedder.Reset()
	resumed, err := NewJob(records, ai.NewClient(embedder), config, WithCheckpointStore(checkpoints))
	require.NoError(t, err)

	summary, err = resumed.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 3, summary.Succeeded)
	assert.Equal(t, 1, summary.Batches)
	assert.Equal(t, 23, summary.Embedded)
	assert.Equal(t, 3, embedder.CallCount(), "only the remaining records are embedded")
}

func TestJob_FailuresGoToLedger(t *testing.T) {
	records, _ := setupTestDB(t, 10)
	ctx := context.Background()
	require.NoError(t, records.PutRecords(ctx, &core.Record{ID: "S000", Name: "<p></p>"}))

	var mu sync.Mutex
	attempts := map[string]int{}
	embedder := mock.NewMockEmbedder().WithEmbedTextFunc(func(ctx context.Context, text string) ([]float32, error) {
		mu.Lock()
		attempts[text]++
		mu.Unlock()
		if strings.HasPrefix(text, "Service S004") {
			return nil, errors.New("rate limited")
		}
		return mock.Vector(text, mock.DefaultDimensions), nil
	})

	job, err := NewJob(records, ai.NewClient(embedder), testConfig())
	require.NoError(t, err)

	summary, err := job.Run(ctx)
	require.NoError(t, err, "per-record failures are not job errors")

	assert.Equal(t, 11, summary.Total)
	assert.Equal(t, 9, summary.Succeeded)
	assert.Equal(t, 2, summary.Failed)
	require.Len(t, summary.Failures, 2)

	assert.Equal(t, "S000", summary.Failures[0].ID)
	assert.Contains(t, summary.Failures[0].Error, core.ErrCompose.Error())
	assert.Equal(t, "S004", summary.Failures[1].ID)
	assert.Equal(t, "Service S004", summary.Failures[1].Name)
	assert.Contains(t, summary.Failures[1].Error, "rate limited")

	mu.Lock()
	defer mu.Unlock()
	for text, n := range attempts {
		if strings.HasPrefix(text, "Service S004") {
			assert.Equal(t, 3, n, "transient failures are retried MaxRetries times")
		} else {
			assert.Equal(t, 1, n)
		}
	}

	failed, err := records.GetRecord(ctx, "S004")
	require.NoError(t, err)
	assert.False(t, failed.HasEmbedding())
	assert.InDelta(t, 9.0/11.0*100, summary.SuccessRate, 1e-9)
}

func TestJob_MissingCredentialsNotRetried(t *testing.T) {
	records, _ := setupTestDB(t, 3)
	embedder := mock.NewMockEmbedder().WithEmbedTextFunc(func(ctx context.Context, text string) ([]float32, error) {
		return nil, fmt.Errorf("%w: OPENAI_API_KEY", core.ErrMissingCredentials)
	})

	job, err := NewJob(records, ai.NewClient(embedder), testConfig())
	require.NoError(t, err)

	summary, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Failed)
	assert.Equal(t, 3, embedder.CallCount())
}

func TestJob_DimensionMismatchNotRetried(t *testing.T) {
	records, _ := setupTestDB(t, 3)
	embedder := mock.NewMockEmbedder().WithDimensions(4).WithEmbedTextFunc(func(ctx context.Context, text string) ([]float32, error) {
		return []float32{1, 2}, nil
	})

	job, err := NewJob(records, ai.NewClient(embedder), testConfig())
	require.NoError(t, err)

	summary, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Failed)
	assert.Equal(t, 3, embedder.CallCount())
}

func TestJob_BatchPacing(t *testing.T) {
	records, _ := setupTestDB(t, 6)

	config := testConfig()
	config.BatchSize = 2
	config.BatchDelay = 30 * time.Millisecond

	job, err := NewJob(records, ai.NewClient(mock.NewMockEmbedder()), config)
	require.NoError(t, err)

	start := time.Now()
	summary, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Batches)
	assert.GreaterOrEqual(t, time.Since(start), 55*time.Millisecond, "two waits between three batches")
}

func TestJob_BatchDelayAfterSlowBatch(t *testing.T) {
	records, _ := setupTestDB(t, 4)

	config := testConfig()
	config.BatchSize = 2
	config.BatchDelay = 100 * time.Millisecond

	var mu sync.Mutex
	var calls []time.Time
	embedder := mock.NewMockEmbedder().WithEmbedTextFunc(func(ctx context.Context, text string) ([]float32, error) {
		mu.Lock()
		calls = append(calls, time.Now())
		mu.Unlock()
		time.Sleep(150 * time.Millisecond)
		return mock.Vector(text, mock.DefaultDimensions), nil
	})

	var barrier time.Time
	observer := &batchObserver{after: func(index int) {
		if index == 0 {
			barrier = time.Now()
		}
	}}

	job, err := NewJob(records, ai.NewClient(embedder), config, WithObserver(observer))
	require.NoError(t, err)

	summary, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Batches)
	require.False(t, barrier.IsZero())

	mu.Lock()
	defer mu.Unlock()
	var next []time.Time
	for _, c := range calls {
		if c.After(barrier) {
			next = append(next, c)
		}
	}
	require.Len(t, next, 2, "second batch starts after the first batch finishes")
	for _, c := range next {
		assert.GreaterOrEqual(t, c.Sub(barrier), config.BatchDelay)
	}
}

func TestJob_NoDelayAfterLastBatch(t *testing.T) {
	records, _ := setupTestDB(t, 2)

	config := testConfig()
	config.BatchSize = 2
	config.BatchDelay = time.Second

	job, err := NewJob(records, ai.NewClient(mock.NewMockEmbedder()), config)
	require.NoError(t, err)

	start := time.Now()
	summary, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Batches)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestJob_EmptyStore(t *testing.T) {
	records, _ := setupTestDB(t, 0)
	var progress bytes.Buffer

	job, err := NewJob(records, ai.NewClient(mock.NewMockEmbedder()), testConfig(), WithProgress(&progress))
	require.NoError(t, err)

	summary, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.Total)
	assert.Zero(t, summary.StoreTotal)
	assert.Empty(t, progress.String())
}
