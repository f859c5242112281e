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

// Package storage provides the storage abstraction layer for servicefinder.
//
// This package defines the interfaces that decouple the record store and
// vector indexes from the embedding job and the search engine:
//
//   - RecordStore: authoritative storage of service records and embeddings
//   - VectorIndex: nearest-neighbour queries described by a QuerySpec
//   - IndexWriter: maintenance of an external vector index
//   - CheckpointStore: batch job progress
//
// # Backends
//
// The badger subpackage is the embedded default and implements all of the
// interfaces above. The qdrant and pgvector subpackages implement
// VectorIndex and IndexWriter against external services; SyncIndex copies
// embedded records into them.
//
//	backend, err := badger.OpenBackend("/path/to/db", false)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//	records := badger.NewRecordRepository(backend)
//
// Use in tests with in-memory storage:
//
//	backend, err := badger.OpenBackend("", true)
//
// # Queries
//
// Queries are assembled with the builder:
//
//	spec, err := storage.NewQuery(vector).
//	    CandidatePool(100).
//	    TopK(20).
//	    WithLocations("Halton").
//	    Build()
//
// CandidatePoolSize is the number of neighbours the index considers before
// Limit applies. For approximate indexes it maps onto the search breadth.
//
// # Thread Safety
//
// All implementations must be thread-safe and support concurrent access
// from multiple goroutines.
package storage
