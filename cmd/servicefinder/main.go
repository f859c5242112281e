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

package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/poiesic/servicefinder/ai"
	"github.com/poiesic/servicefinder/ingestion"
	"github.com/poiesic/servicefinder/reembed"
	"github.com/poiesic/servicefinder/search"
	"github.com/urfave/cli/v2"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "servicefinder",
		Usage: "Embed community service records and search them by meaning",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Usage:   "Path to BadgerDB database directory",
				Value:   "data/servicefinder.db",
				EnvVars: []string{"SERVICEFINDER_DB"},
			},
		},
		Before:   setupLogger,
		Commands: commands(),
	}
}

func commands() []*cli.Command {
	return []*cli.Command{
		{
			Name:   "embed",
			Usage:  "Generate embeddings for records that do not have one",
			Action: embedCommand,
			Flags: withFlags(providerFlags(),
				&cli.BoolFlag{
					Name:    "force",
					Aliases: []string{"all"},
					Usage:   "Re-embed every record, including those that already have a vector",
				},
				&cli.IntFlag{
					Name:  "batch-size",
					Usage: "Number of records embedded concurrently in each batch",
					Value: reembed.DefaultBatchSize,
				},
				&cli.DurationFlag{
					Name:  "batch-delay",
					Usage: "Minimum spacing between batch starts",
					Value: time.Second,
				},
				&cli.IntFlag{
					Name:  "report-interval",
					Usage: "Log progress every N records",
					Value: 10,
				},
				&cli.IntFlag{
					Name:  "max-retries",
					Usage: "Maximum attempts for a transient provider failure",
					Value: 3,
				},
				&cli.DurationFlag{
					Name:  "retry-delay",
					Usage: "Base delay for exponential backoff",
					Value: time.Second,
				},
				&cli.StringFlag{
					Name:  "job-name",
					Usage: "Checkpoint key for this job",
					Value: "embeddings",
				},
				&cli.StringFlag{
					Name:  "progress-file",
					Usage: "Write a JSON checkpoint to this file after every batch",
				},
			),
		},
		{
			Name:      "search",
			Usage:     "Search records by meaning",
			ArgsUsage: "QUERY",
			Action:    searchCommand,
			Flags: withFlags(providerFlags(), indexFlags(),
				&cli.IntFlag{
					Name:  "limit",
					Usage: "Maximum number of results",
					Value: search.DefaultLimit,
				},
				&cli.Float64Flag{
					Name:  "min-score",
					Usage: "Similarity floor (default 0.5 for vector, 0.3 for hybrid)",
				},
				&cli.StringSliceFlag{
					Name:  "location",
					Usage: "Only return records in this location (repeatable)",
				},
				&cli.StringSliceFlag{
					Name:  "subtopic",
					Usage: "Only return records tagged with this subtopic id (repeatable)",
				},
				&cli.BoolFlag{
					Name:  "hybrid",
					Usage: "Boost records whose name or description contains the query",
				},
			),
		},
		{
			Name:      "similar",
			Usage:     "List records similar to an existing record",
			ArgsUsage: "ID",
			Action:    similarCommand,
			Flags: withFlags(providerFlags(), indexFlags(),
				&cli.IntFlag{
					Name:  "limit",
					Usage: "Maximum number of results",
					Value: search.DefaultSimilarLimit,
				},
			),
		},
		{
			Name:      "import",
			Usage:     "Import records from a JSON file",
			ArgsUsage: "FILE",
			Action:    importCommand,
			Flags: withFlags(providerFlags(),
				&cli.StringFlag{
					Name:  "progress-file",
					Usage: "Resume from and record progress in this file",
				},
				&cli.IntFlag{
					Name:  "batch-size",
					Usage: "Records written per batch",
					Value: ingestion.DefaultBatchSize,
				},
				&cli.BoolFlag{
					Name:  "embed",
					Usage: "Embed new records in the background while importing",
				},
				&cli.IntFlag{
					Name:  "workers",
					Usage: "Background embedding workers (with --embed)",
					Value: 4,
				},
			),
		},
		{
			Name:   "sync-index",
			Usage:  "Copy embedded records into Qdrant or pgvector",
			Action: syncIndexCommand,
			Flags: withFlags(indexFlags(),
				&cli.IntFlag{
					Name:  "batch-size",
					Usage: "Records upserted per request",
					Value: 100,
				},
			),
		},
		{
			Name:   "serve",
			Usage:  "Run the HTTP API",
			Action: serveCommand,
			Flags: withFlags(providerFlags(), indexFlags(),
				&cli.StringFlag{
					Name:    "addr",
					Usage:   "Listen address",
					Value:   ":8080",
					EnvVars: []string{"SERVICEFINDER_ADDR"},
				},
				&cli.BoolFlag{
					Name:  "metrics",
					Usage: "Serve Prometheus metrics on /metrics",
				},
				&cli.BoolFlag{
					Name:  "otel",
					Usage: "Wrap requests in OpenTelemetry spans",
				},
				&cli.StringFlag{
					Name:  "cors-origin",
					Usage: "Access-Control-Allow-Origin value",
					Value: "*",
				},
				&cli.Float64Flag{
					Name:  "hybrid-boost",
					Usage: "Score added to hybrid results that contain the query",
					Value: search.DefaultHybridBoost,
				},
				&cli.Float64Flag{
					Name:  "rate-limit",
					Usage: "Search and embed requests per second (0 disables)",
				},
				&cli.IntFlag{
					Name:  "rate-burst",
					Usage: "Requests allowed above --rate-limit in a burst",
					Value: 10,
				},
			),
		},
		{
			Name:   "stats",
			Usage:  "Show record and embedding counts",
			Action: statsCommand,
			Flags: []cli.Flag{
				&cli.StringSliceFlag{
					Name:  "location",
					Usage: "Locations to break counts down by",
					Value: cli.NewStringSlice("Halton", "Mississauga"),
				},
				&cli.StringFlag{
					Name:  "job-name",
					Usage: "Checkpoint key of the embedding job",
					Value: "embeddings",
				},
			},
		},
	}
}

func providerFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "embedding-host",
			Usage:   "Embedding service host URL",
			Value:   "https://api.openai.com/v1",
			EnvVars: []string{"EMBEDDING_HOST"},
		},
		&cli.StringFlag{
			Name:    "embedding-model",
			Usage:   "Embedding model name",
			Value:   ai.ModelEmbedding3Large,
			EnvVars: []string{"EMBEDDING_MODEL"},
		},
		&cli.IntFlag{
			Name:    "embedding-dimensions",
			Usage:   "Vector length; required for models the tool does not know",
			EnvVars: []string{"EMBEDDING_DIMENSIONS"},
		},
		&cli.StringFlag{
			Name:    "api-key",
			Usage:   "Embedding provider API key",
			EnvVars: []string{ai.APIKeyEnv},
		},
		&cli.BoolFlag{
			Name:  "allow-anonymous",
			Usage: "Run without an API key against a local OpenAI-compatible server",
		},
	}
}

func indexFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "qdrant-host",
			Usage:   "Use the Qdrant collection on this host as the vector index",
			EnvVars: []string{"QDRANT_HOST"},
		},
		&cli.IntFlag{
			Name:  "qdrant-port",
			Usage: "Qdrant gRPC port",
			Value: 6334,
		},
		&cli.StringFlag{
			Name:    "qdrant-api-key",
			Usage:   "Qdrant API key",
			EnvVars: []string{"QDRANT_API_KEY"},
		},
		&cli.BoolFlag{
			Name:  "qdrant-tls",
			Usage: "Connect to Qdrant over TLS",
		},
		&cli.StringFlag{
			Name:  "qdrant-collection",
			Usage: "Qdrant collection name",
			Value: "services",
		},
		&cli.StringFlag{
			Name:    "pg-dsn",
			Usage:   "Use the pgvector table in this PostgreSQL database as the vector index",
			EnvVars: []string{"DATABASE_URL"},
		},
	}
}

func withFlags(groups ...any) []cli.Flag {
	var flags []cli.Flag
	for _, g := range groups {
		switch v := g.(type) {
		case []cli.Flag:
			flags = append(flags, v...)
		case cli.Flag:
			flags = append(flags, v)
		}
	}
	return flags
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
