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

package core

import "errors"

// Domain validation errors
var (
	// ErrInvalidRecord indicates a Record failed validation.
	ErrInvalidRecord = errors.New("invalid record")

	// ErrEmptyID indicates the record ID is empty.
	ErrEmptyID = errors.New("record id cannot be empty")

	// ErrEmptyName indicates the record Name is empty.
	ErrEmptyName = errors.New("record name cannot be empty")
)

// Embedding and search errors
var (
	// ErrCompose indicates a record produced no usable text for embedding.
	ErrCompose = errors.New("record has no text to embed")

	// ErrInvalidInput indicates empty or otherwise unusable caller input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNoValidInput indicates a batch contained no non-blank texts.
	ErrNoValidInput = errors.New("no valid texts provided")

	// ErrMissingCredentials indicates the embedding provider is not configured.
	ErrMissingCredentials = errors.New("embedding provider credentials missing")

	// ErrProvider indicates a transport, auth or quota failure from the embedding provider.
	ErrProvider = errors.New("embedding provider failure")

	// ErrUnauthorized indicates the embedding provider rejected the configured
	// credentials. It is always reported together with ErrProvider.
	ErrUnauthorized = errors.New("embedding provider rejected credentials")

	// ErrDimensionMismatch indicates a vector length differs from the model dimensionality.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrQuery indicates a vector store query failure.
	ErrQuery = errors.New("vector query failed")

	// ErrNotFound indicates an unknown record ID.
	ErrNotFound = errors.New("record not found")

	// ErrNoEmbedding indicates a record has no stored embedding.
	ErrNoEmbedding = errors.New("record does not have an embedding")
)
