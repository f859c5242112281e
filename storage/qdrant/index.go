package qdrant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/poiesic/servicefinder/core"
	"github.com/poiesic/servicefinder/storage"
	"github.com/qdrant/go-client/qdrant"
)

const (
	// DefaultPort is the Qdrant gRPC port.
	DefaultPort = 6334
	// DefaultCollection holds service records.
	DefaultCollection = "services"
)

// Config holds the connection settings of a Qdrant index.
type Config struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
}

// Validate checks the configuration and fills defaults.
func (c *Config) Validate() error {
	if c.Host == "" {
		return errors.New("qdrant config: Host is required")
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.Collection == "" {
		c.Collection = DefaultCollection
	}
	return nil
}

// pointsAPI is the subset of the Qdrant client used by Index.
type pointsAPI interface {
	CollectionExists(ctx context.Context, collectionName string) (bool, error)
	CreateCollection(ctx context.Context, request *qdrant.CreateCollection) error
	Upsert(ctx context.Context, request *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	Query(ctx context.Context, request *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
	Close() error
}

// Index implements storage.VectorIndex and storage.IndexWriter on a Qdrant collection.
type Index struct {
	api        pointsAPI
	collection string
	logger     *slog.Logger
}

var (
	_ storage.VectorIndex = (*Index)(nil)
	_ storage.IndexWriter = (*Index)(nil)
)

// NewIndex connects to Qdrant.
func NewIndex(cfg Config) (*Index, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to initialize client: %w", err)
	}
	return newIndex(client, cfg.Collection), nil
}

func newIndex(api pointsAPI, collection string) *Index {
	return &Index{
		api:        api,
		collection: collection,
		logger:     slog.Default().With("component", "qdrant", "collection", collection),
	}
}

// Close releases the client connection.
func (i *Index) Close() error {
	return i.api.Close()
}

// EnsureCollection creates a cosine collection of the given dimension when missing.
func (i *Index) EnsureCollection(ctx context.Context, dimensions int) error {
	if dimensions <= 0 {
		return fmt.Errorf("%w: dimensions must be positive", storage.ErrInvalidQuery)
	}
	exists, err := i.api.CollectionExists(ctx, i.collection)
	if err != nil {
		return fmt.Errorf("qdrant: failed to check collection: %w", err)
	}
	if exists {
		return nil
	}

	i.logger.Info("creating collection", "dimensions", dimensions)
	err = i.api.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: i.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimensions),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: failed to create collection: %w", err)
	}
	return nil
}

// Upsert writes embedded records as points; records without a vector are skipped.
func (i *Index) Upsert(ctx context.Context, records ...*core.Record) error {
	records = storage.Embedded(records)
	if len(records) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, 0, len(records))
	for _, r := range records {
		points = append(points, buildPoint(r))
	}

	wait := true
	_, err := i.api.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: i.collection,
		Points:         points,
		Wait:           &wait,
	})
	if err != nil {
		return fmt.Errorf("qdrant: upsert failed: %w", err)
	}
	return nil
}

// Query runs an approximate nearest-neighbour search.
// CandidatePoolSize becomes the HNSW search breadth.
func (i *Index) Query(ctx context.Context, spec storage.QuerySpec) ([]storage.Candidate, error) {
	if len(spec.Vector) == 0 || spec.Limit <= 0 {
		return nil, fmt.Errorf("%w: vector and limit are required", storage.ErrInvalidQuery)
	}

	limit := uint64(spec.Limit)
	ef := uint64(max(spec.CandidatePoolSize, spec.Limit))
	points, err := i.api.Query(ctx, &qdrant.QueryPoints{
		CollectionName: i.collection,
		Query:          qdrant.NewQuery(spec.Vector...),
		Limit:          &limit,
		Filter:         buildFilter(spec.Filters),
		Params:         &qdrant.SearchParams{HnswEf: &ef},
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: query failed: %w", err)
	}

	candidates := make([]storage.Candidate, 0, len(points))
	for _, p := range points {
		record := recordFromPayload(p.GetPayload())
		if !spec.Filters.Matches(record) {
			continue
		}
		candidates = append(candidates, storage.Candidate{
			Record:     record,
			Similarity: float64(p.GetScore()),
		})
	}
	return candidates, nil
}
