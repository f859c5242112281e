package badger

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/servicefinder/core"
	"github.com/poiesic/servicefinder/storage"
)

// RecordRepository implements storage.RecordStore and storage.VectorIndex for BadgerDB.
type RecordRepository struct {
	backend *Backend
}

var (
	_ storage.RecordStore = (*RecordRepository)(nil)
	_ storage.VectorIndex = (*RecordRepository)(nil)
)

// NewRecordRepository creates a new RecordRepository.
func NewRecordRepository(backend *Backend) *RecordRepository {
	return &RecordRepository{backend: backend}
}

// Close is a no-op; the backend owns the database handle.
func (r *RecordRepository) Close() error {
	return nil
}

// GetRecord retrieves a single record by ID.
func (r *RecordRepository) GetRecord(ctx context.Context, id string) (*core.Record, error) {
	var record *core.Record
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		record, err = readRecord(tx, id)
		return err
	}, false)
	if err != nil {
		return nil, err
	}
	return record, nil
}

// PutRecords inserts or replaces records in a single transaction.
func (r *RecordRepository) PutRecords(ctx context.Context, records ...*core.Record) error {
	for _, record := range records {
		if err := core.ValidateRecord(record); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	return r.backend.WithTx(func(tx *badger.Txn) error {
		now := storage.Now()
		for _, record := range records {
			old, err := readRecord(tx, record.ID)
			if err != nil && !errors.Is(err, storage.ErrNotFound) {
				return err
			}

			stored := *record
			if old != nil {
				stored.InsertedAt = old.InsertedAt
				if stored.Embedding == nil {
					stored.Embedding = old.Embedding
				}
			}
			if stored.InsertedAt.IsZero() {
				stored.InsertedAt = now
			}
			stored.UpdatedAt = now

			if err := tx.Set(makeRecordKey(stored.ID), storage.MarshalRecord(&stored)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// SetEmbedding stores the vector and model of a record together.
func (r *RecordRepository) SetEmbedding(ctx context.Context, id string, embedding core.Embedding) error {
	if err := core.ValidateEmbedding(embedding.Vector, 0); err != nil {
		return err
	}
	return r.backend.WithTx(func(tx *badger.Txn) error {
		record, err := readRecord(tx, id)
		if err != nil {
			return err
		}
		record.Embedding = &core.Embedding{
			Vector: slices.Clone(embedding.Vector),
			Model:  embedding.Model,
		}
		record.UpdatedAt = storage.Now()
		if err := tx.Set(makeRecordKey(id), storage.MarshalRecord(record)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// CountRecords counts the records matching filter.
func (r *RecordRepository) CountRecords(ctx context.Context, filter storage.Filter) (int, error) {
	count := 0
	err := r.backend.scanRecords(ctx, func(record *core.Record) error {
		if filter.Matches(record) {
			count++
		}
		return nil
	})
	return count, err
}

// ListRecords returns the records matching filter ordered by ID.
func (r *RecordRepository) ListRecords(ctx context.Context, filter storage.Filter, page storage.Page) ([]*core.Record, error) {
	var (
		results []*core.Record
		skipped int
	)
	err := r.backend.scanRecords(ctx, func(record *core.Record) error {
		if !filter.Matches(record) {
			return nil
		}
		if skipped < page.Offset {
			skipped++
			return nil
		}
		if page.Limit > 0 && len(results) >= page.Limit {
			return errStopScan
		}
		results = append(results, record)
		return nil
	})
	if err != nil && !errors.Is(err, errStopScan) {
		return nil, err
	}
	return results, nil
}

// Query scores every embedded record that passes the pre-filters, keeps the
// CandidatePoolSize best and returns the first Limit of them.
func (r *RecordRepository) Query(ctx context.Context, spec storage.QuerySpec) ([]storage.Candidate, error) {
	if len(spec.Vector) == 0 || spec.Limit <= 0 {
		return nil, fmt.Errorf("%w: vector and limit are required", storage.ErrInvalidQuery)
	}

	var candidates []storage.Candidate
	err := r.backend.scanRecords(ctx, func(record *core.Record) error {
		if !record.HasEmbedding() || !spec.Filters.Matches(record) {
			return nil
		}
		candidates = append(candidates, storage.Candidate{
			Record:     record,
			Similarity: storage.CosineSimilarity(spec.Vector, record.Embedding.Vector),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortStableFunc(candidates, func(a, b storage.Candidate) int {
		return cmp.Compare(b.Similarity, a.Similarity)
	})

	pool := max(spec.CandidatePoolSize, spec.Limit)
	if len(candidates) > pool {
		candidates = candidates[:pool]
	}
	if len(candidates) > spec.Limit {
		candidates = candidates[:spec.Limit]
	}
	return candidates, nil
}

var errStopScan = errors.New("stop scan")

// readRecord loads a record inside tx.
func readRecord(tx *badger.Txn, id string) (*core.Record, error) {
	item, err := tx.Get(makeRecordKey(id))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, id)
		}
		return nil, err
	}

	var record *core.Record
	err = item.Value(func(val []byte) error {
		var err error
		record, err = storage.UnmarshalRecord(val)
		return err
	})
	return record, err
}
