package badger

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/poiesic/servicefinder/core"
	"github.com/poiesic/servicefinder/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenBackend_InMemory(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	require.NotNil(t, backend)
	defer backend.Close()

	assert.False(t, backend.IsClosed())
}

func TestOpenBackend_FileSystem(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "db")
	backend, err := OpenBackend(dir, false)
	require.NoError(t, err)
	require.NotNil(t, backend)
	defer backend.Close()

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestOpenBackend_NotADirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	_, err := OpenBackend(path, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is not a directory")
}

func TestBackendClose(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)

	assert.False(t, backend.IsClosed())
	require.NoError(t, backend.Close())
	assert.True(t, backend.IsClosed())

	repo := NewRecordRepository(backend)
	_, err = repo.GetRecord(context.Background(), "S1")
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
}

func TestCheckpointRepository(t *testing.T) {
	_, checkpoints, backend, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()
	ctx := context.Background()

	loaded, err := checkpoints.LoadCheckpoint(ctx, "embeddings")
	require.NoError(t, err)
	assert.Nil(t, loaded)

	cp := &core.Checkpoint{
		JobName:   "embeddings",
		RunID:     "run-1",
		Total:     23,
		Processed: 10,
		Succeeded: 9,
		Failed:    1,
		Batches:   1,
		Failures:  []core.Failure{{ID: "S3", Name: "Clinic", Error: "provider error"}},
	}
	require.NoError(t, checkpoints.SaveCheckpoint(ctx, cp))
	assert.False(t, cp.UpdatedAt.IsZero())

	loaded, err = checkpoints.LoadCheckpoint(ctx, "embeddings")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, cp.RunID, loaded.RunID)
	assert.Equal(t, 10, loaded.Processed)
	assert.Equal(t, cp.Failures, loaded.Failures)
	assert.True(t, cp.UpdatedAt.Equal(loaded.UpdatedAt))

	cp.Processed = 23
	cp.Batches = 3
	require.NoError(t, checkpoints.SaveCheckpoint(ctx, cp))
	loaded, err = checkpoints.LoadCheckpoint(ctx, "embeddings")
	require.NoError(t, err)
	assert.Equal(t, 23, loaded.Processed)
	assert.Equal(t, 3, loaded.Batches)

	other, err := checkpoints.LoadCheckpoint(ctx, "enrichment")
	require.NoError(t, err)
	assert.Nil(t, other)

	t.Run("job name required", func(t *testing.T) {
		assert.ErrorIs(t, checkpoints.SaveCheckpoint(ctx, &core.Checkpoint{}), storage.ErrInvalidQuery)
		assert.ErrorIs(t, checkpoints.SaveCheckpoint(ctx, nil), storage.ErrInvalidQuery)
	})

	t.Run("checkpoints stay out of record scans", func(t *testing.T) {
		require.NoError(t, checkpoints.SaveCheckpoint(ctx, &core.Checkpoint{JobName: "svc"}))
		count, err := NewRecordRepository(backend).CountRecords(ctx, storage.Filter{})
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		assert.ErrorIs(t, checkpoints.SaveCheckpoint(cancelled, cp), context.Canceled)
		_, err := checkpoints.LoadCheckpoint(cancelled, "embeddings")
		assert.ErrorIs(t, err, context.Canceled)
	})
}
