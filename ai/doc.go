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

// Package ai provides the embedding client used to turn text and service
// records into vectors.
//
// The package is split into the provider boundary and the client that wraps it:
//
//   - Embedder: the external embedding provider (text in, fixed-length vector out)
//   - AIProvider: owns the provider connection for the process lifetime
//   - Client: validates input, shapes batch requests, composes records into
//     text and classifies provider failures
//
// # Implementation Packages
//
//   - ai/openai: production provider using OpenAI-compatible APIs via langchaingo
//   - ai/mock: deterministic test doubles
//
// # Error Classification
//
// Client methods wrap failures with the sentinel errors from package core:
// blank input yields core.ErrInvalidInput, a batch with no usable entries
// yields core.ErrNoValidInput, and any transport, auth or quota failure from
// the provider yields core.ErrProvider. The client never retries; retrying is
// the batch job's responsibility.
//
// # Usage Example
//
//	provider, err := openai.NewProvider(ai.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	client := ai.NewClient(provider.Embedder())
//	vector, err := client.EmbedRecord(ctx, record)
package ai
