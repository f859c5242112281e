package core

import (
	"errors"
	"testing"
)

func TestPointID(t *testing.T) {
	tests := []struct {
		name string
		id   string
	}{
		{name: "short id", id: "S1"},
		{name: "empty id", id: ""},
		{name: "long id", id: "halton-community-legal-services-0001-with-a-long-suffix"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if PointID(tt.id) != PointID(tt.id) {
				t.Errorf("PointID() is not deterministic for %q", tt.id)
			}
		})
	}
}

func TestPointID_Different(t *testing.T) {
	if PointID("S1") == PointID("S2") {
		t.Errorf("PointID() produced same value for different ids")
	}
}

func TestRecord_HasEmbedding(t *testing.T) {
	tests := []struct {
		name   string
		record *Record
		want   bool
	}{
		{name: "nil record", record: nil, want: false},
		{name: "no embedding", record: &Record{ID: "S1"}, want: false},
		{name: "empty vector", record: &Record{ID: "S1", Embedding: &Embedding{Model: "m"}}, want: false},
		{name: "with vector", record: &Record{ID: "S1", Embedding: &Embedding{Vector: []float32{1}, Model: "m"}}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.record.HasEmbedding(); got != tt.want {
				t.Errorf("HasEmbedding() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRecord_IsComplete(t *testing.T) {
	if (&Record{ID: "S1"}).IsComplete() {
		t.Errorf("IsComplete() = true for record without locations")
	}
	if !(&Record{ID: "S1", Locations: []string{"Halton"}}).IsComplete() {
		t.Errorf("IsComplete() = false for record with locations")
	}
}

func TestSearchResult_DisplaySimilarity(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{in: 0.8349, want: 0.83},
		{in: 0.836, want: 0.84},
		{in: 1.0123, want: 1.01},
		{in: 0, want: 0},
	}

	for _, tt := range tests {
		r := &SearchResult{Similarity: tt.in}
		if got := r.DisplaySimilarity(); got != tt.want {
			t.Errorf("DisplaySimilarity(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestResult(t *testing.T) {
	ok := Ok([]float32{1, 2})
	if !ok.IsOk() {
		t.Fatalf("Ok().IsOk() = false")
	}
	v, err := ok.Unwrap()
	if err != nil || len(v) != 2 {
		t.Errorf("Ok().Unwrap() = %v, %v", v, err)
	}

	cause := errors.New("boom")
	failed := Err[[]float32](cause)
	if failed.IsOk() {
		t.Fatalf("Err().IsOk() = true")
	}
	if !errors.Is(failed.Error(), cause) {
		t.Errorf("Err().Error() = %v, want %v", failed.Error(), cause)
	}
	if got := failed.UnwrapOr(nil); got != nil {
		t.Errorf("Err().UnwrapOr(nil) = %v, want nil", got)
	}
}
