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

package ingestion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/poiesic/servicefinder/core"
	"github.com/poiesic/servicefinder/storage"
)

// DefaultBatchSize is the number of records written per store call.
const DefaultBatchSize = 100

// Document is the on-disk shape of an import file. Extra top-level fields
// such as merge statistics are ignored.
type Document struct {
	Services []*core.Record `json:"services"`
}

// Progress is persisted after every completed batch.
type Progress struct {
	Source           string    `json:"source"`
	CompletedBatches int       `json:"completedBatches"`
	Imported         int       `json:"imported"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// ImportSummary describes one ImportFile call.
type ImportSummary struct {
	Source   string
	Total    int
	Imported int
	Skipped  int
	Invalid  int
	Batches  int
	Resumed  int
	Elapsed  time.Duration
}

// Importer loads JSON service documents through a Pipeline.
type Importer struct {
	pipeline     *Pipeline
	batchSize    int
	progressFile string
	output       io.Writer
	logger       *slog.Logger
}

// ImporterOption configures an Importer.
type ImporterOption func(*Importer) error

// WithBatchSize sets how many records go into one store write.
func WithBatchSize(size int) ImporterOption {
	return func(i *Importer) error {
		if size < 1 {
			return fmt.Errorf("batch size must be positive, got %d", size)
		}
		i.batchSize = size
		return nil
	}
}

// WithProgressFile enables resumable imports. Progress is written to path
// after every batch and removed once the file has been fully imported.
func WithProgressFile(path string) ImporterOption {
	return func(i *Importer) error {
		i.progressFile = path
		return nil
	}
}

// WithOutput sets where the "\rProgress:" line is written. Default is no output.
func WithOutput(w io.Writer) ImporterOption {
	return func(i *Importer) error {
		i.output = w
		return nil
	}
}

// NewImporter creates an importer that writes through pipeline.
func NewImporter(pipeline *Pipeline, opts ...ImporterOption) (*Importer, error) {
	if pipeline == nil {
		return nil, ErrPipelineRequired
	}
	i := &Importer{
		pipeline:  pipeline,
		batchSize: DefaultBatchSize,
		output:    io.Discard,
		logger:    pipeline.logger.With("stage", "import"),
	}
	for _, opt := range opts {
		if err := opt(i); err != nil {
			return nil, err
		}
	}
	return i, nil
}

// ImportFile reads path and upserts every valid record it contains.
// Records failing validation are skipped and counted as Invalid.
func (i *Importer) ImportFile(ctx context.Context, path string) (*ImportSummary, error) {
	start := time.Now()
	records, err := ReadDocument(path)
	if err != nil {
		return nil, err
	}

	source, err := filepath.Abs(path)
	if err != nil {
		source = path
	}
	summary := &ImportSummary{Source: source, Total: len(records)}

	valid := make([]*core.Record, 0, len(records))
	for _, record := range records {
		if err := core.ValidateRecord(record); err != nil {
			summary.Invalid++
			i.logger.Warn("skipping invalid record", "id", recordID(record), "err", err)
			continue
		}
		normalize(record)
		valid = append(valid, record)
	}

	progress, err := i.loadProgress(source)
	if err != nil {
		return nil, err
	}
	summary.Resumed = progress.CompletedBatches
	if progress.CompletedBatches > 0 {
		i.logger.Info("resuming import", "source", source, "completedBatches", progress.CompletedBatches)
	}

	for index := 0; index*i.batchSize < len(valid); index++ {
		lo := index * i.batchSize
		hi := min(lo+i.batchSize, len(valid))
		if index < progress.CompletedBatches {
			summary.Skipped += hi - lo
			continue
		}
		if err := ctx.Err(); err != nil {
			summary.Elapsed = time.Since(start)
			return summary, err
		}

		if err := i.pipeline.Ingest(ctx, valid[lo:hi]...); err != nil {
			summary.Elapsed = time.Since(start)
			return summary, fmt.Errorf("import batch %d: %w", index, err)
		}
		summary.Imported += hi - lo
		summary.Batches++

		progress.CompletedBatches = index + 1
		progress.Imported += hi - lo
		progress.UpdatedAt = time.Now().UTC()
		i.saveProgress(progress)

		done := hi
		fmt.Fprintf(i.output, "\rProgress: %d/%d (%d%%)", done, len(valid), done*100/len(valid))
	}
	if summary.Batches > 0 {
		fmt.Fprintln(i.output)
	}
	i.clearProgress()

	summary.Elapsed = time.Since(start)
	i.logger.Info("import completed",
		"source", source,
		"imported", summary.Imported,
		"skipped", summary.Skipped,
		"invalid", summary.Invalid,
		"elapsed", summary.Elapsed)
	return summary, nil
}

func (i *Importer) loadProgress(source string) (*Progress, error) {
	progress := &Progress{Source: source}
	if i.progressFile == "" {
		return progress, nil
	}

	var saved Progress
	found, err := storage.ReadJSONFile(i.progressFile, &saved)
	if err != nil {
		return nil, fmt.Errorf("read import progress: %w", err)
	}
	if !found {
		return progress, nil
	}
	if saved.Source != source {
		i.logger.Warn("ignoring progress file for a different source", "progressSource", saved.Source, "source", source)
		return progress, nil
	}
	return &saved, nil
}

func (i *Importer) saveProgress(progress *Progress) {
	if i.progressFile == "" {
		return
	}
	if err := storage.WriteJSONFile(i.progressFile, progress); err != nil {
		i.logger.Error("error saving import progress", "path", i.progressFile, "err", err)
	}
}

func (i *Importer) clearProgress() {
	if i.progressFile == "" {
		return
	}
	if err := os.Remove(i.progressFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		i.logger.Error("error removing import progress", "path", i.progressFile, "err", err)
	}
}

// ReadDocument parses an import file. Both {"services": [...]} and a bare
// JSON array are accepted.
func ReadDocument(path string) ([]*core.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseDocument(data)
}

// ParseDocument is ReadDocument over an in-memory buffer.
func ParseDocument(data []byte) ([]*core.Record, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrInvalidDocument)
	}

	switch trimmed[0] {
	case '[':
		var records []*core.Record
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
		}
		return records, nil
	case '{':
		var doc Document
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
		}
		if doc.Services == nil {
			return nil, fmt.Errorf("%w: missing \"services\" array", ErrInvalidDocument)
		}
		return doc.Services, nil
	}
	return nil, fmt.Errorf("%w: expected object or array", ErrInvalidDocument)
}

// normalize replaces absent collections with empty ones and drops an
// all-empty details block.
func normalize(record *core.Record) {
	if record.Locations == nil {
		record.Locations = []string{}
	}
	if record.SubtopicIDs == nil {
		record.SubtopicIDs = []string{}
	}
	if record.Details != nil && *record.Details == (core.Details{}) {
		record.Details = nil
	}
}

func recordID(record *core.Record) string {
	if record == nil {
		return ""
	}
	return record.ID
}
