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

package ai

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// APIKeyEnv is the environment variable consulted when no API key is configured.
const APIKeyEnv = "OPENAI_API_KEY"

// Model identifiers with well-known dimensionality.
const (
	ModelEmbedding3Large = "text-embedding-3-large"
	ModelEmbedding3Small = "text-embedding-3-small"
	ModelAda002          = "text-embedding-ada-002"
)

// ModelDimensions maps known embedding models to their output vector length.
var ModelDimensions = map[string]int{
	ModelEmbedding3Large: 3072,
	ModelEmbedding3Small: 1536,
	ModelAda002:          1536,
}

// Config holds configuration for the embedding provider.
type Config struct {
	// Host is the base URL for the embedding service API.
	// Example: "https://api.openai.com/v1" or "http://localhost:11434/v1"
	Host string

	// APIKey authenticates against the provider. If empty, APIKeyEnv is
	// consulted when the provider connection is first used.
	APIKey string

	// Model is the embedding model identifier.
	// Default: "text-embedding-3-large"
	Model string

	// Dimensions is the vector length produced by Model. Resolved from
	// ModelDimensions when zero; required for models not listed there.
	Dimensions int

	// Timeout bounds each provider call.
	// Default: 30s
	Timeout time.Duration

	// AllowAnonymous permits a missing API key, for local OpenAI-compatible
	// servers that do not authenticate.
	AllowAnonymous bool
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithHost sets the embedding service host URL.
func WithHost(host string) ConfigOption {
	return func(c *Config) {
		c.Host = host
	}
}

// WithAPIKey sets the provider API key.
func WithAPIKey(key string) ConfigOption {
	return func(c *Config) {
		c.APIKey = key
	}
}

// WithModel sets the embedding model identifier.
func WithModel(model string) ConfigOption {
	return func(c *Config) {
		c.Model = model
	}
}

// WithDimensions sets the expected vector length.
func WithDimensions(dims int) ConfigOption {
	return func(c *Config) {
		c.Dimensions = dims
	}
}

// WithTimeout sets the per-call timeout.
func WithTimeout(timeout time.Duration) ConfigOption {
	return func(c *Config) {
		c.Timeout = timeout
	}
}

// WithAnonymous allows running without an API key.
func WithAnonymous(allow bool) ConfigOption {
	return func(c *Config) {
		c.AllowAnonymous = allow
	}
}

// DefaultConfig returns a Config targeting the OpenAI API with the large embedding model.
func DefaultConfig() *Config {
	return &Config{
		Host:    "https://api.openai.com/v1",
		Model:   ModelEmbedding3Large,
		Timeout: 30 * time.Second,
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
//
// Example:
//
//	cfg := NewConfig(
//	    WithHost("http://localhost:11434/v1"),
//	    WithModel("text-embedding-3-small"),
//	)
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize ensures the configuration is in a canonical form.
// It adds the /v1 suffix to the host if missing and resolves Dimensions
// for known models.
func (c *Config) Normalize() {
	if c.Host != "" && !strings.HasSuffix(c.Host, "/v1") {
		c.Host = strings.TrimSuffix(c.Host, "/") + "/v1"
	}
	if c.Dimensions == 0 {
		c.Dimensions = ModelDimensions[c.Model]
	}
}

// Validate checks that the configuration is valid and complete.
// It automatically normalizes the configuration before validation.
// Credentials are not checked here; they are resolved on first use.
func (c *Config) Validate() error {
	c.Normalize()

	if c.Host == "" {
		return errors.New("ai config: Host is required")
	}
	if c.Model == "" {
		return errors.New("ai config: Model is required")
	}
	if c.Dimensions <= 0 {
		return fmt.Errorf("ai config: Dimensions is required for model %q", c.Model)
	}
	if c.Timeout <= 0 {
		return errors.New("ai config: Timeout must be positive")
	}
	return nil
}

// ResolveAPIKey returns the configured key, falling back to APIKeyEnv.
func (c *Config) ResolveAPIKey() string {
	if c.APIKey != "" {
		return c.APIKey
	}
	return os.Getenv(APIKeyEnv)
}
