package storage

import (
	"context"

	"github.com/poiesic/servicefinder/core"
)

// RecordStore is the authoritative store of service records.
// Implementations must be thread-safe and support concurrent access.
type RecordStore interface {
	// GetRecord retrieves a single record by ID.
	// Returns ErrNotFound if the record doesn't exist.
	GetRecord(ctx context.Context, id string) (*core.Record, error)

	// PutRecords inserts or replaces records by ID.
	// Sets InsertedAt on first insert and UpdatedAt on every write.
	// An embedding already stored for a record is preserved when the
	// incoming record carries none.
	PutRecords(ctx context.Context, records ...*core.Record) error

	// SetEmbedding stores the vector and model of a record in one write.
	// Returns ErrNotFound if the record doesn't exist.
	SetEmbedding(ctx context.Context, id string, embedding core.Embedding) error

	// CountRecords counts the records matching filter.
	CountRecords(ctx context.Context, filter Filter) (int, error)

	// ListRecords returns the records matching filter ordered by ID.
	ListRecords(ctx context.Context, filter Filter, page Page) ([]*core.Record, error)

	// Close releases resources held by the store.
	Close() error
}

// VectorIndex answers nearest-neighbour queries over embedded records.
type VectorIndex interface {
	// Query returns candidates ordered by descending similarity.
	// Records without an embedding are never returned.
	Query(ctx context.Context, spec QuerySpec) ([]Candidate, error)
}

// IndexWriter maintains an external vector index.
type IndexWriter interface {
	// EnsureCollection creates the backing collection when missing.
	EnsureCollection(ctx context.Context, dimensions int) error

	// Upsert writes the embedded records into the index.
	Upsert(ctx context.Context, records ...*core.Record) error
}

// CheckpointStore persists batch job progress.
type CheckpointStore interface {
	// SaveCheckpoint persists the checkpoint of a job.
	SaveCheckpoint(ctx context.Context, checkpoint *core.Checkpoint) error

	// LoadCheckpoint retrieves the checkpoint of a job.
	// Returns nil, nil if no checkpoint exists.
	LoadCheckpoint(ctx context.Context, jobName string) (*core.Checkpoint, error)
}

// Candidate is a record returned by a VectorIndex with its similarity to the query vector.
type Candidate struct {
	Record     *core.Record
	Similarity float64
}

// Page selects a window of a listing. A zero Limit means no limit.
type Page struct {
	Offset int
	Limit  int
}
