package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/poiesic/servicefinder"
	"github.com/poiesic/servicefinder/ai"
	"github.com/poiesic/servicefinder/api"
	"github.com/poiesic/servicefinder/ingestion"
	"github.com/poiesic/servicefinder/metrics"
	"github.com/poiesic/servicefinder/reembed"
	"github.com/poiesic/servicefinder/search"
	"github.com/poiesic/servicefinder/storage"
	"github.com/poiesic/servicefinder/storage/badger"
	"github.com/poiesic/servicefinder/storage/pgvector"
	"github.com/poiesic/servicefinder/storage/qdrant"
	"github.com/urfave/cli/v2"
)

func aiConfig(c *cli.Context) *ai.Config {
	return ai.NewConfig(
		ai.WithHost(c.String("embedding-host")),
		ai.WithModel(c.String("embedding-model")),
		ai.WithDimensions(c.Int("embedding-dimensions")),
		ai.WithAPIKey(c.String("api-key")),
		ai.WithAnonymous(c.Bool("allow-anonymous")),
	)
}

// externalIndex is a vector index backed by a remote service.
type externalIndex interface {
	storage.VectorIndex
	storage.IndexWriter
	Close() error
}

// openIndex returns the external index selected by flags, or nil when
// neither --qdrant-host nor --pg-dsn is set.
func openIndex(ctx context.Context, c *cli.Context) (externalIndex, error) {
	host, dsn := c.String("qdrant-host"), c.String("pg-dsn")
	switch {
	case host != "" && dsn != "":
		return nil, errors.New("--qdrant-host and --pg-dsn are mutually exclusive")
	case host != "":
		idx, err := qdrant.NewIndex(qdrant.Config{
			Host:       host,
			Port:       c.Int("qdrant-port"),
			APIKey:     c.String("qdrant-api-key"),
			UseTLS:     c.Bool("qdrant-tls"),
			Collection: c.String("qdrant-collection"),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to qdrant: %w", err)
		}
		return idx, nil
	case dsn != "":
		idx, err := pgvector.NewIndex(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		return idx, nil
	}
	return nil, nil
}

// openDatabase opens the store and, when requested by flags, an external
// index. The returned cleanup closes both.
func openDatabase(c *cli.Context, withIndex bool) (*servicefinder.Database, func(), error) {
	opts := []servicefinder.DatabaseOption{servicefinder.WithAIConfig(aiConfig(c))}

	var idx externalIndex
	if withIndex {
		var err error
		idx, err = openIndex(c.Context, c)
		if err != nil {
			return nil, nil, err
		}
		if idx != nil {
			opts = append(opts, servicefinder.WithVectorIndex(idx))
		}
	}

	db, err := servicefinder.NewDatabase(c.String("db"), opts...)
	if err != nil {
		if idx != nil {
			idx.Close()
		}
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}

	cleanup := func() {
		db.Close()
		if idx != nil {
			idx.Close()
		}
	}
	return db, cleanup, nil
}

func embedCommand(c *cli.Context) error {
	config := &reembed.Config{
		BatchSize:      c.Int("batch-size"),
		BatchDelay:     c.Duration("batch-delay"),
		ReportInterval: c.Int("report-interval"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
		RetryJitter:    reembed.DefaultConfig().RetryJitter,
		Force:          c.Bool("force"),
		JobName:        c.String("job-name"),
		ProgressFile:   c.String("progress-file"),
	}
	if err := config.Validate(); err != nil {
		return err
	}

	db, cleanup, err := openDatabase(c, false)
	if err != nil {
		return err
	}
	defer cleanup()

	job, err := db.NewEmbeddingJob(config, reembed.WithProgress(os.Stderr))
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Database: %s\n", c.String("db"))
	fmt.Fprintf(os.Stderr, "Embedding host: %s\n", c.String("embedding-host"))
	fmt.Fprintf(os.Stderr, "Embedding model: %s\n", db.Client().Model())
	fmt.Fprintln(os.Stderr)

	summary, err := job.Run(c.Context)
	if summary != nil {
		printSummary(os.Stdout, summary)
	}
	if err != nil {
		return fmt.Errorf("embedding job failed: %w", err)
	}
	if summary.Failed > 0 {
		return cli.Exit(fmt.Sprintf("%d record(s) failed to embed", summary.Failed), 1)
	}
	return nil
}

func searchCommand(c *cli.Context) error {
	query := c.Args().First()
	if query == "" {
		return errors.New("a search query is required")
	}
	if err := checkLimit(c.Int("limit")); err != nil {
		return err
	}

	db, cleanup, err := openDatabase(c, true)
	if err != nil {
		return err
	}
	defer cleanup()

	engine, err := db.NewSearchEngine()
	if err != nil {
		return err
	}

	opts := search.Options{
		Limit:       c.Int("limit"),
		Locations:   c.StringSlice("location"),
		SubtopicIDs: c.StringSlice("subtopic"),
		Mode:        search.ModeVector,
	}
	if c.Bool("hybrid") {
		opts.Mode = search.ModeHybrid
	}
	if c.IsSet("min-score") {
		score := c.Float64("min-score")
		opts.MinScore = &score
	}

	results, err := engine.Search(c.Context, query, opts)
	if err != nil {
		return err
	}
	printResults(os.Stdout, results)
	return nil
}

func checkLimit(limit int) error {
	if limit < 1 || limit > search.MaxLimit {
		return fmt.Errorf("--limit must be between 1 and %d", search.MaxLimit)
	}
	return nil
}

func similarCommand(c *cli.Context) error {
	id := c.Args().First()
	if id == "" {
		return errors.New("a record id is required")
	}
	if err := checkLimit(c.Int("limit")); err != nil {
		return err
	}

	db, cleanup, err := openDatabase(c, true)
	if err != nil {
		return err
	}
	defer cleanup()

	engine, err := db.NewSearchEngine()
	if err != nil {
		return err
	}
	results, err := engine.FindSimilar(c.Context, id, c.Int("limit"))
	if err != nil {
		return err
	}
	printResults(os.Stdout, results)
	return nil
}

func importCommand(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return errors.New("an import file is required")
	}

	db, cleanup, err := openDatabase(c, false)
	if err != nil {
		return err
	}
	defer cleanup()

	pipelineOpts := []ingestion.Option{ingestion.WithPoolSize(c.Int("workers"))}
	if c.Bool("embed") {
		pipelineOpts = append(pipelineOpts, ingestion.WithEmbedOnImport(db.Client()))
	}
	pipeline, err := db.NewIngestionPipeline(pipelineOpts...)
	if err != nil {
		return err
	}
	defer pipeline.Release()

	importer, err := ingestion.NewImporter(pipeline,
		ingestion.WithBatchSize(c.Int("batch-size")),
		ingestion.WithProgressFile(c.String("progress-file")),
		ingestion.WithOutput(os.Stderr),
	)
	if err != nil {
		return err
	}

	summary, err := importer.ImportFile(c.Context, path)
	if summary != nil {
		embedded, failed := pipeline.Wait()
		printImportSummary(os.Stdout, summary, pipeline.EmbedsOnImport(), embedded, failed)
	}
	return err
}

func syncIndexCommand(c *cli.Context) error {
	idx, err := openIndex(c.Context, c)
	if err != nil {
		return err
	}
	if idx == nil {
		return errors.New("one of --qdrant-host or --pg-dsn is required")
	}
	defer idx.Close()

	backend, err := badger.OpenBackend(c.String("db"), false)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer backend.Close()

	written, err := storage.SyncIndex(c.Context, badger.NewRecordRepository(backend), idx, c.Int("batch-size"))
	if err != nil {
		return fmt.Errorf("index sync failed after %d records: %w", written, err)
	}
	fmt.Fprintf(os.Stdout, "Synced %d embedded records\n", written)
	return nil
}

func serveCommand(c *cli.Context) error {
	db, cleanup, err := openDatabase(c, true)
	if err != nil {
		return err
	}
	defer cleanup()

	var apiOpts []api.Option
	if c.Bool("metrics") {
		apiOpts = append(apiOpts, api.WithMetrics(metrics.New(metrics.DefaultConfig())))
	}
	if c.Bool("otel") {
		apiOpts = append(apiOpts, api.WithOTel("servicefinder"))
	}
	apiOpts = append(apiOpts, api.WithCORSOrigin(c.String("cors-origin")))
	if limit := c.Float64("rate-limit"); limit != 0 {
		apiOpts = append(apiOpts, api.WithRateLimit(limit, c.Int("rate-burst")))
	}

	server, err := db.NewAPIServer([]search.Option{search.WithHybridBoost(c.Float64("hybrid-boost"))}, apiOpts...)
	if err != nil {
		return err
	}
	return server.ListenAndServe(c.Context, c.String("addr"))
}

func statsCommand(c *cli.Context) error {
	backend, err := badger.OpenBackend(c.String("db"), false)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer backend.Close()

	records := badger.NewRecordRepository(backend)
	checkpoints := badger.NewCheckpointRepository(backend)

	stats, err := collectStats(c.Context, records, c.StringSlice("location"))
	if err != nil {
		return err
	}
	checkpoint, err := checkpoints.LoadCheckpoint(c.Context, c.String("job-name"))
	if err != nil {
		return err
	}
	printStats(os.Stdout, stats, checkpoint)
	return nil
}
