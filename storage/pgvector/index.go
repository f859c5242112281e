package pgvector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/poiesic/servicefinder/core"
	"github.com/poiesic/servicefinder/storage"
)

// DefaultTable holds service records.
const DefaultTable = "services"

// Index implements storage.VectorIndex and storage.IndexWriter on PostgreSQL with pgvector.
type Index struct {
	pool   *pgxpool.Pool
	table  string
	logger *slog.Logger
}

var (
	_ storage.VectorIndex = (*Index)(nil)
	_ storage.IndexWriter = (*Index)(nil)
)

// NewIndex connects to the database at dsn.
func NewIndex(ctx context.Context, dsn string) (*Index, error) {
	if dsn == "" {
		return nil, errors.New("pgvector config: DSN is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgvector: open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgvector: ping: %w", err)
	}
	return &Index{
		pool:   pool,
		table:  DefaultTable,
		logger: slog.Default().With("component", "pgvector"),
	}, nil
}

// Close releases the pool.
func (i *Index) Close() error {
	i.pool.Close()
	return nil
}

// EnsureCollection creates the extension, table and HNSW index when missing.
func (i *Index) EnsureCollection(ctx context.Context, dimensions int) error {
	if dimensions <= 0 {
		return fmt.Errorf("%w: dimensions must be positive", storage.ErrInvalidQuery)
	}
	for _, stmt := range migrations(i.table, dimensions) {
		if _, err := i.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("pgvector: migrate: %w", err)
		}
	}
	return nil
}

func migrations(table string, dimensions int) []string {
	return []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			payload JSONB NOT NULL DEFAULT '{}',
			locations TEXT[] NOT NULL DEFAULT '{}',
			subtopic_ids TEXT[] NOT NULL DEFAULT '{}',
			embedding vector(%d),
			embedding_model TEXT
		)`, table, dimensions),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%[1]s_embedding ON %[1]s USING hnsw (embedding vector_cosine_ops)`, table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%[1]s_locations ON %[1]s USING gin (locations)`, table),
	}
}

// Upsert writes embedded records; records without a vector are skipped.
func (i *Index) Upsert(ctx context.Context, records ...*core.Record) error {
	records = storage.Embedded(records)
	if len(records) == 0 {
		return nil
	}

	query := fmt.Sprintf(`INSERT INTO %s (id, name, description, payload, locations, subtopic_ids, embedding, embedding_model)
		VALUES ($1, $2, $3, $4, $5, $6, $7::vector, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			payload = EXCLUDED.payload,
			locations = EXCLUDED.locations,
			subtopic_ids = EXCLUDED.subtopic_ids,
			embedding = EXCLUDED.embedding,
			embedding_model = EXCLUDED.embedding_model`, i.table)

	batch := &pgx.Batch{}
	for _, r := range records {
		payload, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("pgvector: marshal payload: %w", err)
		}
		batch.Queue(query, r.ID, r.Name, r.Description, payload,
			nonNil(r.Locations), nonNil(r.SubtopicIDs),
			FormatVector(r.Embedding.Vector), r.Embedding.Model)
	}

	if err := i.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("pgvector: upsert: %w", err)
	}
	return nil
}

// Query ranks rows by cosine distance inside a transaction that widens the
// HNSW search to CandidatePoolSize.
func (i *Index) Query(ctx context.Context, spec storage.QuerySpec) ([]storage.Candidate, error) {
	if len(spec.Vector) == 0 || spec.Limit <= 0 {
		return nil, fmt.Errorf("%w: vector and limit are required", storage.ErrInvalidQuery)
	}

	query, args := buildSearchSQL(i.table, spec)
	var candidates []storage.Candidate

	err := pgx.BeginFunc(ctx, i.pool, func(tx pgx.Tx) error {
		ef := max(spec.CandidatePoolSize, spec.Limit)
		if _, err := tx.Exec(ctx, "SET LOCAL hnsw.ef_search = "+strconv.Itoa(ef)); err != nil {
			return err
		}

		rows, err := tx.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var (
				payload    []byte
				literal    string
				model      *string
				similarity float64
			)
			if err := rows.Scan(&payload, &literal, &model, &similarity); err != nil {
				return err
			}
			record := &core.Record{}
			if err := json.Unmarshal(payload, record); err != nil {
				return fmt.Errorf("%w: payload: %w", storage.ErrSerializationFailed, err)
			}
			vector, err := ParseVector(literal)
			if err != nil {
				return err
			}
			record.Embedding = &core.Embedding{Vector: vector}
			if model != nil {
				record.Embedding.Model = *model
			}
			candidates = append(candidates, storage.Candidate{Record: record, Similarity: similarity})
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("pgvector: query: %w", err)
	}
	return candidates, nil
}

// buildSearchSQL renders the ranked query for spec. The first argument is the query vector.
func buildSearchSQL(table string, spec storage.QuerySpec) (string, []any) {
	args := []any{FormatVector(spec.Vector)}
	where := []string{"embedding IS NOT NULL"}

	if len(spec.Filters.Locations) > 0 {
		args = append(args, spec.Filters.Locations)
		where = append(where, fmt.Sprintf("locations && $%d", len(args)))
	}
	if len(spec.Filters.SubtopicIDs) > 0 {
		args = append(args, spec.Filters.SubtopicIDs)
		where = append(where, fmt.Sprintf("subtopic_ids && $%d", len(args)))
	}
	if len(spec.Filters.ExcludeIDs) > 0 {
		args = append(args, spec.Filters.ExcludeIDs)
		where = append(where, fmt.Sprintf("id <> ALL($%d)", len(args)))
	}
	args = append(args, spec.Limit)

	query := fmt.Sprintf(`SELECT payload, embedding::text, embedding_model, 1 - (embedding <=> $1::vector) AS similarity
		FROM %s
		WHERE %s
		ORDER BY embedding <=> $1::vector
		LIMIT $%d`, table, strings.Join(where, " AND "), len(args))
	return query, args
}

// FormatVector renders a vector literal such as "[0.1,0.2,0.3]".
func FormatVector(vector []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range vector {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(v), 'g', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

// ParseVector reads a vector literal produced by FormatVector.
func ParseVector(s string) ([]float32, error) {
	s = strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(s), "["), "]")
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]float32, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, fmt.Errorf("%w: vector element %d: %w", storage.ErrSerializationFailed, i, err)
		}
		out[i] = float32(v)
	}
	return out, nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
