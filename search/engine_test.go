package search

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/poiesic/servicefinder/ai"
	"github.com/poiesic/servicefinder/ai/mock"
	"github.com/poiesic/servicefinder/core"
	"github.com/poiesic/servicefinder/storage"
	"github.com/poiesic/servicefinder/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var queryVector = []float32{1, 0, 0}

type fixture struct {
	id        string
	name      string
	desc      string
	locations []string
	subtopics []string
	vector    []float32
}

// Similarities to queryVector: A 1.0, B 0.8, C 0.6, E 0.35, D 0.
var fixtures = []fixture{
	{"A", "Food Bank", "Free groceries", []string{"Oakville"}, []string{"food"}, []float32{1, 0, 0}},
	{"B", "Shelter", "Emergency beds", []string{"Burlington"}, []string{"housing"}, []float32{0.8, 0.6, 0}},
	{"C", "Legal Clinic", "Tenant advice", []string{"Oakville", "Burlington"}, []string{"legal", "housing"}, []float32{0.6, 0.8, 0}},
	{"D", "Food Pantry", "Canned goods", []string{"Oakville"}, []string{"food"}, []float32{0, 1, 0}},
	{"E", "Meal Program", "Hot food daily", []string{"Oakville"}, []string{"food"}, []float32{0.35, 0.9367496, 0}},
	{"F", "Drop-in Centre", "Not yet embedded", []string{"Oakville"}, nil, nil},
}

func setupEngine(t *testing.T, opts ...Option) (*Engine, *mock.MockEmbedder, *badger.RecordRepository) {
	t.Helper()
	records, _, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	ctx := context.Background()
	for _, f := range fixtures {
		require.NoError(t, records.PutRecords(ctx, &core.Record{
			ID:          f.id,
			Name:        f.name,
			Description: f.desc,
			Locations:   f.locations,
			SubtopicIDs: f.subtopics,
		}))
		if f.vector != nil {
			require.NoError(t, records.SetEmbedding(ctx, f.id, core.Embedding{Vector: f.vector, Model: "test"}))
		}
	}

	embedder := mock.NewMockEmbedder().
		WithDimensions(3).
		WithEmbedTextFunc(func(ctx context.Context, text string) ([]float32, error) {
			return queryVector, nil
		})
	engine, err := NewEngine(records, records, ai.NewClient(embedder), opts...)
	require.NoError(t, err)
	return engine, embedder, records
}

func ids(results []*core.SearchResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Record.ID
	}
	return out
}

func float(v float64) *float64 { return &v }

func TestNewEngine(t *testing.T) {
	records, _, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()
	client := ai.NewClient(mock.NewMockEmbedder())

	t.Run("valid configuration", func(t *testing.T) {
		engine, err := NewEngine(records, records, client)
		require.NoError(t, err)
		assert.Equal(t, DefaultHybridBoost, engine.hybridBoost)
		assert.Equal(t, DefaultVectorMinScore, engine.vectorMinScore)
		assert.Equal(t, DefaultHybridMinScore, engine.hybridMinScore)
	})

	t.Run("options applied", func(t *testing.T) {
		engine, err := NewEngine(records, records, client,
			WithLogger(nil),
			WithHybridBoost(0.5),
			WithDefaultMinScores(0.7, 0.1),
		)
		require.NoError(t, err)
		assert.Equal(t, 0.5, engine.hybridBoost)
		assert.Equal(t, 0.7, engine.vectorMinScore)
		assert.Equal(t, 0.1, engine.hybridMinScore)
	})

	t.Run("negative boost rejected", func(t *testing.T) {
		_, err := NewEngine(records, records, client, WithHybridBoost(-1))
		assert.Error(t, err)
	})

	t.Run("nil store", func(t *testing.T) {
		_, err := NewEngine(nil, records, client)
		assert.Equal(t, ErrStoreRequired, err)
	})

	t.Run("nil index", func(t *testing.T) {
		_, err := NewEngine(records, nil, client)
		assert.Equal(t, ErrIndexRequired, err)
	})

	t.Run("nil client", func(t *testing.T) {
		_, err := NewEngine(records, records, nil)
		assert.Equal(t, ErrEmbedderRequired, err)
	})
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"", ModeVector, false},
		{"vector", ModeVector, false},
		{"hybrid", ModeHybrid, false},
		{"keyword", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMode(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidMode)
				assert.True(t, IsClientError(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSearch_VectorMode(t *testing.T) {
	engine, _, _ := setupEngine(t)
	ctx := context.Background()

	tests := []struct {
		name string
		opts Options
		want []string
	}{
		{"default floor", Options{}, []string{"A", "B", "C"}},
		{"limit", Options{Limit: 2}, []string{"A", "B"}},
		{"floor override", Options{MinScore: float(0)}, []string{"A", "B", "C", "E", "D"}},
		{"high floor", Options{MinScore: float(0.9)}, []string{"A"}},
		{"location filter", Options{Locations: []string{"Burlington"}}, []string{"B", "C"}},
		{"subtopic filter", Options{SubtopicIDs: []string{"food"}, MinScore: float(0)}, []string{"A", "E", "D"}},
		{"no matches", Options{Locations: []string{"Milton"}}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := engine.Search(ctx, "groceries", tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(results))
			for i, r := range results {
				assert.Equal(t, i+1, r.Rank)
				assert.Equal(t, r.VectorScore, r.Similarity)
			}
		})
	}

	t.Run("similarities", func(t *testing.T) {
		results, err := engine.Search(ctx, "groceries", Options{})
		require.NoError(t, err)
		require.Len(t, results, 3)
		assert.InDelta(t, 1.0, results[0].Similarity, 1e-6)
		assert.InDelta(t, 0.8, results[1].Similarity, 1e-6)
		assert.Equal(t, 0.8, results[1].DisplaySimilarity())
	})
}

func TestSearch_HybridMode(t *testing.T) {
	ctx := context.Background()

	t.Run("boost reorders", func(t *testing.T) {
		engine, _, _ := setupEngine(t)
		// "food" hits A (name), D (name) and E (description); D is under the floor.
		results, err := engine.Search(ctx, "FOOD", Options{Mode: ModeHybrid})
		require.NoError(t, err)
		assert.Equal(t, []string{"A", "B", "C", "E"}, ids(results))
		assert.InDelta(t, 1.2, results[0].Similarity, 1e-6)
		assert.InDelta(t, 1.0, results[0].VectorScore, 1e-6)
		assert.InDelta(t, 0.55, results[3].Similarity, 1e-6)
	})

	t.Run("boost can overtake", func(t *testing.T) {
		engine, _, _ := setupEngine(t, WithHybridBoost(0.5))
		results, err := engine.Search(ctx, "meal", Options{Mode: ModeHybrid})
		require.NoError(t, err)
		assert.Equal(t, []string{"A", "E", "B", "C"}, ids(results))
	})

	t.Run("floor applies to vector score", func(t *testing.T) {
		engine, _, _ := setupEngine(t)
		results, err := engine.Search(ctx, "food", Options{Mode: ModeHybrid, MinScore: float(0.5)})
		require.NoError(t, err)
		assert.Equal(t, []string{"A", "B", "C"}, ids(results))
	})

	t.Run("regex metacharacters are literal", func(t *testing.T) {
		engine, _, _ := setupEngine(t)
		results, err := engine.Search(ctx, ".*", Options{Mode: ModeHybrid})
		require.NoError(t, err)
		require.NotEmpty(t, results)
		for _, r := range results {
			assert.Equal(t, r.VectorScore, r.Similarity)
		}
	})

	t.Run("unbalanced pattern does not fail", func(t *testing.T) {
		engine, _, _ := setupEngine(t)
		_, err := engine.Search(ctx, "food (bank", Options{Mode: ModeHybrid})
		assert.NoError(t, err)
	})

	t.Run("ties keep vector order", func(t *testing.T) {
		items := []scored{
			{record: &core.Record{ID: "x"}, similarity: 0.7, vectorScore: 0.5, order: 0},
			{record: &core.Record{ID: "y"}, similarity: 0.7, vectorScore: 0.7, order: 1},
			{record: &core.Record{ID: "z"}, similarity: 0.7, vectorScore: 0.7, order: 2},
		}
		assert.Equal(t, []string{"y", "z", "x"}, ids(rank(items, 10)))
	})
}

type failingIndex struct{}

func (failingIndex) Query(context.Context, storage.QuerySpec) ([]storage.Candidate, error) {
	return nil, errors.New("connection refused")
}

func TestSearch_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("provider failure", func(t *testing.T) {
		engine, embedder, _ := setupEngine(t)
		embedder.WithEmbedTextFunc(func(ctx context.Context, text string) ([]float32, error) {
			return nil, errors.New("quota exceeded")
		})
		_, err := engine.Search(ctx, "food", Options{})
		require.Error(t, err)
		assert.ErrorIs(t, err, core.ErrProvider)
		assert.Contains(t, err.Error(), "search: vector search failed")
		assert.False(t, IsClientError(err))
	})

	t.Run("blank query", func(t *testing.T) {
		engine, embedder, _ := setupEngine(t)
		_, err := engine.Search(ctx, "  ", Options{})
		assert.ErrorIs(t, err, core.ErrInvalidInput)
		assert.True(t, IsClientError(err))
		assert.Zero(t, embedder.CallCount())
	})

	t.Run("index failure", func(t *testing.T) {
		_, _, records := setupEngine(t)
		engine, err := NewEngine(records, failingIndex{}, ai.NewClient(mock.NewMockEmbedder()))
		require.NoError(t, err)
		_, err = engine.Search(ctx, "food", Options{})
		assert.ErrorIs(t, err, core.ErrQuery)
	})

	t.Run("invalid mode", func(t *testing.T) {
		engine, _, _ := setupEngine(t)
		_, err := engine.Search(ctx, "food", Options{Mode: "fuzzy"})
		assert.ErrorIs(t, err, ErrInvalidMode)
	})
}

type recordingMonitor struct {
	mu         sync.Mutex
	stages     []string
	dims       int
	candidates int
	kept       int
	results    int
	err        error
}

func (m *recordingMonitor) add(stage string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stages = append(m.stages, stage)
}

func (m *recordingMonitor) Start(string, Mode) { m.add("start") }
func (m *recordingMonitor) AfterEmbedding(dims int) {
	m.dims = dims
	m.add("embedding")
}
func (m *recordingMonitor) AfterCandidates(c []storage.Candidate) {
	m.candidates = len(c)
	m.add("candidates")
}
func (m *recordingMonitor) AfterFilter(kept int) {
	m.kept = kept
	m.add("filter")
}
func (m *recordingMonitor) Finish(results []*core.SearchResult, err error) {
	m.results = len(results)
	m.err = err
	m.add("finish")
}

func TestSearch_Monitor(t *testing.T) {
	ctx := context.Background()

	t.Run("per call monitor", func(t *testing.T) {
		engine, _, _ := setupEngine(t)
		monitor := &recordingMonitor{}
		results, err := engine.Search(ctx, "food", Options{Limit: 2, Monitor: monitor})
		require.NoError(t, err)
		assert.Equal(t, []string{"start", "embedding", "candidates", "filter", "finish"}, monitor.stages)
		assert.Equal(t, 3, monitor.dims)
		assert.Equal(t, 4, monitor.candidates) // TopK = limit*2
		assert.Equal(t, 3, monitor.kept)
		assert.Equal(t, len(results), monitor.results)
	})

	t.Run("engine monitor sees failures", func(t *testing.T) {
		monitor := &recordingMonitor{}
		engine, embedder, _ := setupEngine(t, WithMonitor(monitor))
		embedder.WithEmbedTextFunc(func(ctx context.Context, text string) ([]float32, error) {
			return nil, errors.New("boom")
		})
		_, err := engine.Search(ctx, "food", Options{})
		require.Error(t, err)
		assert.Equal(t, []string{"start", "finish"}, monitor.stages)
		assert.ErrorIs(t, monitor.err, core.ErrProvider)
	})
}
