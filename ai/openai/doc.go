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

// Package openai provides the embedding provider for OpenAI-compatible APIs.
//
// This package implements ai.AIProvider using the langchaingo library to
// communicate with OpenAI or OpenAI-compatible services (such as Ollama,
// LocalAI, or vLLM).
//
// The HTTP client is constructed lazily on the first embedding call and then
// reused for the lifetime of the provider. If no API key is configured and
// OPENAI_API_KEY is unset, the first call fails with
// core.ErrMissingCredentials without touching the network.
//
// # Usage
//
//	config := ai.NewConfig(ai.WithModel(ai.ModelEmbedding3Small))
//	provider, err := openai.NewProvider(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	vector, err := provider.Embedder().EmbedText(ctx, "food bank in Oakville")
package openai
