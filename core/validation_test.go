package core

import (
	"errors"
	"testing"
)

func TestValidateRecord(t *testing.T) {
	tests := []struct {
		name    string
		record  *Record
		wantErr error
	}{
		{
			name:    "valid record",
			record:  &Record{ID: "S1", Name: "Food Bank", Locations: []string{"Halton"}},
			wantErr: nil,
		},
		{
			name:    "valid record without locations",
			record:  &Record{ID: "S1", Name: "Food Bank"},
			wantErr: nil,
		},
		{
			name:    "valid record without embedding",
			record:  &Record{ID: "S1", Name: "Food Bank", Embedding: nil},
			wantErr: nil,
		},
		{
			name:    "nil record",
			record:  nil,
			wantErr: ErrInvalidRecord,
		},
		{
			name:    "empty id",
			record:  &Record{Name: "Food Bank"},
			wantErr: ErrEmptyID,
		},
		{
			name:    "blank id",
			record:  &Record{ID: "   ", Name: "Food Bank"},
			wantErr: ErrEmptyID,
		},
		{
			name:    "empty name",
			record:  &Record{ID: "S1"},
			wantErr: ErrEmptyName,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRecord(tt.record)

			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateRecord() error = %v, want nil", err)
				}
				return
			}

			if err == nil {
				t.Errorf("ValidateRecord() error = nil, want %v", tt.wantErr)
				return
			}

			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateRecord() error = %v, want %v", err, tt.wantErr)
			}
			if !errors.Is(err, ErrInvalidRecord) {
				t.Errorf("ValidateRecord() error = %v, want wrapped %v", err, ErrInvalidRecord)
			}
		})
	}
}

func TestValidateEmbedding(t *testing.T) {
	tests := []struct {
		name    string
		vector  []float32
		dims    int
		wantErr bool
	}{
		{name: "matching length", vector: []float32{0.1, 0.2, 0.3}, dims: 3},
		{name: "unchecked length", vector: []float32{0.1}, dims: 0},
		{name: "empty vector", vector: nil, dims: 3, wantErr: true},
		{name: "empty vector unchecked", vector: []float32{}, dims: 0, wantErr: true},
		{name: "too short", vector: []float32{0.1, 0.2}, dims: 3, wantErr: true},
		{name: "too long", vector: []float32{0.1, 0.2, 0.3, 0.4}, dims: 3, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEmbedding(tt.vector, tt.dims)
			if tt.wantErr {
				if !errors.Is(err, ErrDimensionMismatch) {
					t.Errorf("ValidateEmbedding() error = %v, want %v", err, ErrDimensionMismatch)
				}
				return
			}
			if err != nil {
				t.Errorf("ValidateEmbedding() error = %v, want nil", err)
			}
		})
	}
}
