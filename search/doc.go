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

// Package search answers free-text and similar-record queries over embedded
// service records.
//
// The Engine embeds the query text, asks a storage.VectorIndex for a
// candidate pool and then filters, scores and ranks the candidates:
//   - ModeVector ranks by the similarity reported by the index
//   - ModeHybrid adds a flat boost when the query text appears literally in
//     the record's name or description
//
// FindSimilar reuses a record's stored vector and never calls the
// embedding provider.
package search
