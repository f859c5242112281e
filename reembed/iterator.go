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

package reembed

import (
	"context"

	"github.com/poiesic/servicefinder/core"
)

const (
	// DefaultBatchSize is the default number of records embedded concurrently.
	DefaultBatchSize = 10
)

// RecordIterator walks a fixed working set in batches.
// The set is captured before iteration, so records embedded along the way
// do not shift later batches.
type RecordIterator struct {
	records   []*core.Record
	batchSize int
}

// NewRecordIterator creates a new record iterator.
// batchSize: number of records in each batch (defaults when <= 0)
func NewRecordIterator(records []*core.Record, batchSize int) *RecordIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return &RecordIterator{
		records:   records,
		batchSize: batchSize,
	}
}

// Batches returns the number of batches ForEach will produce.
func (it *RecordIterator) Batches() int {
	return (len(it.records) + it.batchSize - 1) / it.batchSize
}

// ForEach calls fn for each batch with its 0-based index.
// Iteration stops on first error from fn or when ctx is done.
func (it *RecordIterator) ForEach(ctx context.Context, fn func(index int, batch []*core.Record) error) error {
	for i := 0; i < len(it.records); i += it.batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}

		end := min(i+it.batchSize, len(it.records))
		if err := fn(i/it.batchSize, it.records[i:end]); err != nil {
			return err
		}
	}
	return nil
}
