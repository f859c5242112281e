package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/poiesic/servicefinder/ai"
	"github.com/poiesic/servicefinder/core"
	"github.com/poiesic/servicefinder/reembed"
	"github.com/poiesic/servicefinder/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func findCommand(t *testing.T, app *cli.App, name string) *cli.Command {
	t.Helper()
	for _, cmd := range app.Commands {
		if cmd.Name == name {
			return cmd
		}
	}
	t.Fatalf("command %q not registered", name)
	return nil
}

func findFlag[T cli.Flag](t *testing.T, flags []cli.Flag, name string) T {
	t.Helper()
	for _, flag := range flags {
		if f, ok := flag.(T); ok {
			for _, n := range flag.Names() {
				if n == name {
					return f
				}
			}
		}
	}
	var zero T
	t.Fatalf("flag %q not found", name)
	return zero
}

func TestCommandsRegistered(t *testing.T) {
	app := newApp()
	for _, name := range []string{"embed", "search", "similar", "import", "sync-index", "serve", "stats"} {
		t.Run(name, func(t *testing.T) {
			cmd := findCommand(t, app, name)
			assert.NotNil(t, cmd.Action)
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	app := newApp()

	t.Run("log-level defaults to info", func(t *testing.T) {
		f := findFlag[*cli.StringFlag](t, app.Flags, "log-level")
		assert.Equal(t, "info", f.Value)
		assert.Contains(t, f.Aliases, "l")
	})

	t.Run("db reads SERVICEFINDER_DB", func(t *testing.T) {
		f := findFlag[*cli.StringFlag](t, app.Flags, "db")
		assert.Equal(t, []string{"SERVICEFINDER_DB"}, f.EnvVars)
		assert.NotEmpty(t, f.Value)
	})

	t.Run("invalid log level", func(t *testing.T) {
		err := newApp().Run([]string{"servicefinder", "--log-level", "loud", "stats"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid log level")
	})
}

func TestEmbedCommandFlags(t *testing.T) {
	cmd := findCommand(t, newApp(), "embed")

	tests := []struct {
		name  string
		check func(t *testing.T)
	}{
		{"batch-size default", func(t *testing.T) {
			assert.Equal(t, reembed.DefaultBatchSize, findFlag[*cli.IntFlag](t, cmd.Flags, "batch-size").Value)
		}},
		{"batch-delay default", func(t *testing.T) {
			assert.Equal(t, time.Second, findFlag[*cli.DurationFlag](t, cmd.Flags, "batch-delay").Value)
		}},
		{"max-retries default", func(t *testing.T) {
			assert.Equal(t, 3, findFlag[*cli.IntFlag](t, cmd.Flags, "max-retries").Value)
		}},
		{"force has all alias", func(t *testing.T) {
			f := findFlag[*cli.BoolFlag](t, cmd.Flags, "all")
			assert.Equal(t, "force", f.Name)
		}},
		{"api-key reads the provider env var", func(t *testing.T) {
			f := findFlag[*cli.StringFlag](t, cmd.Flags, "api-key")
			assert.Equal(t, []string{ai.APIKeyEnv}, f.EnvVars)
			assert.Empty(t, f.Value)
		}},
		{"embedding-model default", func(t *testing.T) {
			f := findFlag[*cli.StringFlag](t, cmd.Flags, "embedding-model")
			assert.Equal(t, ai.ModelEmbedding3Large, f.Value)
			assert.Equal(t, []string{"EMBEDDING_MODEL"}, f.EnvVars)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, tt.check)
	}
}

func TestSearchCommandFlags(t *testing.T) {
	cmd := findCommand(t, newApp(), "search")
	findFlag[*cli.StringSliceFlag](t, cmd.Flags, "location")
	findFlag[*cli.StringSliceFlag](t, cmd.Flags, "subtopic")
	findFlag[*cli.BoolFlag](t, cmd.Flags, "hybrid")
	findFlag[*cli.Float64Flag](t, cmd.Flags, "min-score")
	findFlag[*cli.StringFlag](t, cmd.Flags, "qdrant-host")
	findFlag[*cli.StringFlag](t, cmd.Flags, "pg-dsn")
	assert.Equal(t, 10, findFlag[*cli.IntFlag](t, cmd.Flags, "limit").Value)

	similar := findCommand(t, newApp(), "similar")
	assert.Equal(t, 5, findFlag[*cli.IntFlag](t, similar.Flags, "limit").Value)
}

func TestCommandArgumentErrors(t *testing.T) {
	db := filepath.Join(t.TempDir(), "db")

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"search needs a query", []string{"search"}, "search query is required"},
		{"similar needs an id", []string{"similar"}, "record id is required"},
		{"search limit too large", []string{"search", "--limit", "1000000", "food"}, "--limit must be between 1 and 100"},
		{"search limit not positive", []string{"search", "--limit", "0", "food"}, "--limit must be between 1 and 100"},
		{"similar limit too large", []string{"similar", "--limit", "101", "S001"}, "--limit must be between 1 and 100"},
		{"import needs a file", []string{"import"}, "import file is required"},
		{"sync-index needs a target", []string{"sync-index"}, "--qdrant-host or --pg-dsn"},
		{"sync-index targets are exclusive", []string{"sync-index", "--qdrant-host", "localhost", "--pg-dsn", "postgres://x"}, "mutually exclusive"},
		{"embed validates config", []string{"embed", "--batch-size", "0"}, "BatchSize must be positive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"servicefinder", "--log-level", "error", "--db", db}, tt.args...)
			err := newApp().Run(args)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestStatsCommand(t *testing.T) {
	db := filepath.Join(t.TempDir(), "db")
	err := newApp().Run([]string{"servicefinder", "--log-level", "error", "--db", db, "stats"})
	assert.NoError(t, err)
}

func TestCollectStats(t *testing.T) {
	records, _, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()

	ctx := context.Background()
	require.NoError(t, records.PutRecords(ctx,
		&core.Record{ID: "a", Name: "A", Locations: []string{"Halton"}},
		&core.Record{ID: "b", Name: "B", Locations: []string{"Halton", "Mississauga"}},
		&core.Record{ID: "c", Name: "C", Locations: []string{"Mississauga"}},
	))
	require.NoError(t, records.SetEmbedding(ctx, "a", core.Embedding{Vector: []float32{1}, Model: "m"}))

	stats, err := collectStats(ctx, records, []string{"Halton", "Mississauga"})
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 1, stats.Embedded)
	assert.Equal(t, 2, stats.Missing)
	assert.Equal(t, 1, stats.InAll)
	assert.Equal(t, []locationCount{
		{Location: "Halton", Total: 2, Only: 1},
		{Location: "Mississauga", Total: 2, Only: 1},
	}, stats.Locations)

	color.NoColor = true
	var out bytes.Buffer
	printStats(&out, stats, &core.Checkpoint{RunID: "run-1", Total: 3, Processed: 3})
	assert.Contains(t, out.String(), "Without embeddings: 2")
	assert.Contains(t, out.String(), "Halton: 2 (1 only)")
	assert.Contains(t, out.String(), "run-1")
}

func TestPrintOutput(t *testing.T) {
	color.NoColor = true

	t.Run("results", func(t *testing.T) {
		var out bytes.Buffer
		printResults(&out, []*core.SearchResult{
			{Record: &core.Record{ID: "a", Name: "Food Bank", Locations: []string{"Halton"}}, Similarity: 0.8765, Rank: 1},
		})
		assert.Contains(t, out.String(), " 1. Food Bank (similarity: 0.88)")
		assert.Contains(t, out.String(), "locations: Halton")
	})

	t.Run("no results", func(t *testing.T) {
		var out bytes.Buffer
		printResults(&out, nil)
		assert.Contains(t, out.String(), "No matching services found.")
	})

	t.Run("summary with failures", func(t *testing.T) {
		var out bytes.Buffer
		printSummary(&out, &reembed.Summary{
			Total: 2, Succeeded: 1, Failed: 1, SuccessRate: 50,
			Failures: []core.Failure{{ID: "S1", Name: "Broken", Error: "record has no text to embed"}},
		})
		assert.Contains(t, out.String(), "Failed:     1")
		assert.Contains(t, out.String(), "S1 Broken: record has no text to embed")
	})
}
