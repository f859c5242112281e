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

package servicefinder

import (
	"errors"
	"log/slog"

	"github.com/poiesic/servicefinder/ai"
	"github.com/poiesic/servicefinder/ai/openai"
	"github.com/poiesic/servicefinder/api"
	"github.com/poiesic/servicefinder/ingestion"
	"github.com/poiesic/servicefinder/reembed"
	"github.com/poiesic/servicefinder/search"
	"github.com/poiesic/servicefinder/storage"
	"github.com/poiesic/servicefinder/storage/badger"
)

// Database bundles the record store, the checkpoint store and the
// embedding client, and builds the components that use them.
type Database struct {
	backend     *badger.Backend
	records     *badger.RecordRepository
	checkpoints *badger.CheckpointRepository
	index       storage.VectorIndex
	provider    ai.AIProvider
	client      *ai.Client
	logger      *slog.Logger
}

// DatabaseOption configures a Database.
type DatabaseOption func(*databaseOptions)

type databaseOptions struct {
	aiConfig *ai.Config
	provider ai.AIProvider
	index    storage.VectorIndex
	inMemory bool
	logger   *slog.Logger
}

// WithAIConfig sets the embedding provider configuration.
// Default is ai.DefaultConfig().
func WithAIConfig(cfg *ai.Config) DatabaseOption {
	return func(o *databaseOptions) {
		o.aiConfig = cfg
	}
}

// WithProvider uses an already constructed provider instead of the OpenAI one.
func WithProvider(provider ai.AIProvider) DatabaseOption {
	return func(o *databaseOptions) {
		o.provider = provider
	}
}

// WithVectorIndex searches an external index instead of the embedded store.
func WithVectorIndex(index storage.VectorIndex) DatabaseOption {
	return func(o *databaseOptions) {
		o.index = index
	}
}

// WithInMemory keeps all data in memory; the path is ignored.
func WithInMemory() DatabaseOption {
	return func(o *databaseOptions) {
		o.inMemory = true
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) DatabaseOption {
	return func(o *databaseOptions) {
		o.logger = logger
	}
}

// NewDatabase opens the store at filePath and prepares the embedding client.
func NewDatabase(filePath string, opts ...DatabaseOption) (*Database, error) {
	options := &databaseOptions{
		aiConfig: ai.DefaultConfig(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	backend, err := badger.OpenBackend(filePath, options.inMemory)
	if err != nil {
		return nil, err
	}

	provider := options.provider
	if provider == nil {
		provider, err = openai.NewProvider(options.aiConfig)
		if err != nil {
			backend.Close()
			return nil, err
		}
	}

	records := badger.NewRecordRepository(backend)
	var index storage.VectorIndex = records
	if options.index != nil {
		index = options.index
	}

	return &Database{
		backend:     backend,
		records:     records,
		checkpoints: badger.NewCheckpointRepository(backend),
		index:       index,
		provider:    provider,
		client:      ai.NewClient(provider.Embedder(), ai.WithLogger(options.logger.With("component", "embedding-client"))),
		logger:      options.logger,
	}, nil
}

// Close releases the provider and the store.
func (db *Database) Close() error {
	var errs []error
	if err := db.provider.Close(); err != nil {
		db.logger.Error("error closing AI provider", "err", err)
		errs = append(errs, err)
	}
	if err := db.records.Close(); err != nil {
		db.logger.Error("error closing record repository", "err", err)
		errs = append(errs, err)
	}
	if err := db.backend.Close(); err != nil {
		db.logger.Error("error closing backend storage", "err", err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (db *Database) Records() storage.RecordStore {
	return db.records
}

func (db *Database) Checkpoints() storage.CheckpointStore {
	return db.checkpoints
}

// Index returns the vector index searches run against.
func (db *Database) Index() storage.VectorIndex {
	return db.index
}

func (db *Database) Client() *ai.Client {
	return db.client
}

func (db *Database) NewSearchEngine(opts ...search.Option) (*search.Engine, error) {
	opts = append([]search.Option{search.WithLogger(db.logger.With("component", "search"))}, opts...)
	return search.NewEngine(db.records, db.index, db.client, opts...)
}

// NewEmbeddingJob builds a batch embedding job that checkpoints into this database.
func (db *Database) NewEmbeddingJob(config *reembed.Config, opts ...reembed.Option) (*reembed.Job, error) {
	opts = append([]reembed.Option{
		reembed.WithLogger(db.logger.With("component", "embedding-job")),
		reembed.WithCheckpointStore(db.checkpoints),
	}, opts...)
	return reembed.NewJob(db.records, db.client, config, opts...)
}

func (db *Database) NewIngestionPipeline(opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	opts = append([]ingestion.Option{ingestion.WithLogger(db.logger.With("component", "ingestion"))}, opts...)
	return ingestion.NewPipeline(db.records, opts...)
}

// NewAPIServer builds the HTTP API over a search engine created with engineOpts.
func (db *Database) NewAPIServer(engineOpts []search.Option, opts ...api.Option) (*api.Server, error) {
	engine, err := db.NewSearchEngine(engineOpts...)
	if err != nil {
		return nil, err
	}
	opts = append([]api.Option{api.WithLogger(db.logger.With("component", "api"))}, opts...)
	return api.NewServer(db.records, engine, db.client, opts...)
}
