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

package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/poiesic/servicefinder/ai"
	"github.com/poiesic/servicefinder/metrics"
	"github.com/poiesic/servicefinder/search"
	"github.com/poiesic/servicefinder/storage"
	"golang.org/x/time/rate"
)

var (
	// ErrStoreRequired is returned when a record store is not provided.
	ErrStoreRequired = errors.New("record store required")

	// ErrEngineRequired is returned when a search engine is not provided.
	ErrEngineRequired = errors.New("search engine required")

	// ErrClientRequired is returned when an embedding client is not provided.
	ErrClientRequired = errors.New("embedding client required")

	// ErrInvalidRateLimit is returned when a rate limit is not positive.
	ErrInvalidRateLimit = errors.New("rate limit must be positive")
)

// DefaultLocations are the service areas reported in listing statistics.
var DefaultLocations = []string{"Halton", "Mississauga"}

// Server exposes search, embedding and listing over HTTP.
type Server struct {
	store     storage.RecordStore
	engine    *search.Engine
	client    *ai.Client
	metrics   *metrics.Metrics
	limiter   *rate.Limiter
	locations []string
	origin    string
	otelName  string
	shutdown  time.Duration
	logger    *slog.Logger
}

// Option configures a Server.
type Option func(*Server) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithMetrics serves /metrics and records per-request and per-search metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) error {
		s.metrics = m
		return nil
	}
}

// WithOTel wraps the handler in OpenTelemetry instrumentation.
func WithOTel(serviceName string) Option {
	return func(s *Server) error {
		s.otelName = serviceName
		return nil
	}
}

// WithCORSOrigin sets the Access-Control-Allow-Origin value. Default is "*".
func WithCORSOrigin(origin string) Option {
	return func(s *Server) error {
		s.origin = origin
		return nil
	}
}

// WithLocations sets the service areas used for listing statistics.
func WithLocations(locations ...string) Option {
	return func(s *Server) error {
		s.locations = locations
		return nil
	}
}

// WithShutdownTimeout bounds how long in-flight requests get after the
// serve context is cancelled.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) error {
		s.shutdown = d
		return nil
	}
}

// WithRateLimit caps the routes that call the embedding provider (search
// and embed) at perSecond requests with the given burst. Unlimited by default.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(s *Server) error {
		if perSecond <= 0 || burst < 1 {
			return ErrInvalidRateLimit
		}
		s.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		return nil
	}
}

// NewServer creates an API server.
func NewServer(store storage.RecordStore, engine *search.Engine, client *ai.Client, opts ...Option) (*Server, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if engine == nil {
		return nil, ErrEngineRequired
	}
	if client == nil {
		return nil, ErrClientRequired
	}

	s := &Server{
		store:     store,
		engine:    engine,
		client:    client,
		locations: DefaultLocations,
		origin:    "*",
		shutdown:  10 * time.Second,
		logger:    slog.Default().With("component", "api"),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Handler returns the routed handler with the middleware chain applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("POST /api/search", s.limited(s.handleSearchPost))
	mux.Handle("GET /api/search", s.limited(s.handleSearchGet))
	mux.Handle("POST /api/embed", s.limited(s.handleEmbed))
	mux.HandleFunc("GET /api/services", s.handleListServices)
	mux.HandleFunc("GET /api/services/{id}", s.handleGetService)
	mux.HandleFunc("GET /api/services/{id}/similar", s.handleSimilar)
	mux.HandleFunc("GET /api/health", s.handleHealth)

	var obs RequestObserver
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
		obs = s.metrics
	}

	chain := []Middleware{Recover(s.logger), Logger(s.logger, obs), CORS(s.origin)}
	if s.otelName != "" {
		chain = append(chain, OTel(s.otelName))
	}
	return Chain(mux, chain...)
}

func (s *Server) limited(h http.HandlerFunc) http.Handler {
	if s.limiter == nil {
		return h
	}
	return RateLimit(s.limiter)(h)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("API server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("API server shutting down")
	shutCtx, cancel := context.WithTimeout(context.Background(), s.shutdown)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		return err
	}
	return <-errCh
}
