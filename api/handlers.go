package api

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/poiesic/servicefinder/compose"
	"github.com/poiesic/servicefinder/core"
	"github.com/poiesic/servicefinder/search"
	"github.com/poiesic/servicefinder/storage"
)

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "err", err)
	}
	writeJSON(w, status, errorBody{Error: errorMessage(err)})
}

// errorMessage strips the errBadRequest marker from client-facing messages.
func errorMessage(err error) string {
	msg := err.Error()
	return strings.TrimPrefix(msg, errBadRequest.Error()+": ")
}

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

type searchRequest struct {
	Query       string   `json:"query"`
	Limit       int      `json:"limit"`
	MinScore    *float64 `json:"minScore"`
	Locations   []string `json:"locations"`
	SubtopicIDs []string `json:"subtopicIds"`
	SearchType  string   `json:"searchType"`
}

type searchParams struct {
	Limit       int      `json:"limit"`
	MinScore    float64  `json:"minScore"`
	Locations   []string `json:"locations,omitempty"`
	SubtopicIDs []string `json:"subtopicIds,omitempty"`
}

type searchResponse struct {
	Success      bool          `json:"success"`
	Query        string        `json:"query"`
	Results      []serviceView `json:"results"`
	TotalResults int           `json:"totalResults"`
	SearchType   search.Mode   `json:"searchType"`
	Params       searchParams  `json:"params"`
}

func (s *Server) handleSearchPost(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.fail(w, r, badRequest("invalid JSON body"))
		return
	}
	s.runSearch(w, r, req)
}

func (s *Server) handleSearchGet(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := searchRequest{
		Query:      q.Get("q"),
		SearchType: q.Get("type"),
		Locations:  splitList(q.Get("locations")),
	}
	if req.Query == "" {
		s.fail(w, r, badRequest(`Query parameter "q" is required`))
		return
	}

	var err error
	if req.Limit, err = intParam(q.Get("limit"), 0); err != nil {
		s.fail(w, r, badRequest("limit must be an integer"))
		return
	}
	if raw := q.Get("minScore"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			s.fail(w, r, badRequest("minScore must be a number"))
			return
		}
		req.MinScore = &v
	}
	s.runSearch(w, r, req)
}

func (s *Server) runSearch(w http.ResponseWriter, r *http.Request, req searchRequest) {
	if strings.TrimSpace(req.Query) == "" {
		s.fail(w, r, badRequest("Query is required and must be a non-empty string"))
		return
	}
	if req.Limit < 0 || req.Limit > search.MaxLimit {
		s.fail(w, r, badRequest("limit must be between 1 and %d", search.MaxLimit))
		return
	}
	mode, err := search.ParseMode(req.SearchType)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	opts := search.Options{
		Limit:       req.Limit,
		MinScore:    req.MinScore,
		Locations:   req.Locations,
		SubtopicIDs: req.SubtopicIDs,
		Mode:        mode,
	}
	if s.metrics != nil {
		opts.Monitor = s.metrics.SearchMonitor()
	}

	results, err := s.engine.Search(r.Context(), req.Query, opts)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, searchResponse{
		Success:      true,
		Query:        req.Query,
		Results:      resultViews(results),
		TotalResults: len(results),
		SearchType:   mode,
		Params: searchParams{
			Limit:       cmp.Or(req.Limit, search.DefaultLimit),
			MinScore:    s.engine.MinScore(mode, req.MinScore),
			Locations:   req.Locations,
			SubtopicIDs: req.SubtopicIDs,
		},
	})
}

type embedRequest struct {
	Text    *string      `json:"text"`
	Texts   []string     `json:"texts"`
	Service *core.Record `json:"service"`
	// Headline also embeds the service's name and subtitle on their own.
	Headline bool `json:"headline"`
}

func (s *Server) handleEmbed(w http.ResponseWriter, r *http.Request) {
	var req embedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.fail(w, r, badRequest("invalid JSON body"))
		return
	}

	given := 0
	for _, set := range []bool{req.Text != nil, req.Texts != nil, req.Service != nil} {
		if set {
			given++
		}
	}
	if given != 1 {
		s.fail(w, r, badRequest(`Invalid request. Provide exactly one of "text", "texts", or "service" in the request body.`))
		return
	}

	ctx := r.Context()
	switch {
	case req.Text != nil:
		vector, err := s.client.Embed(ctx, *req.Text)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success":    true,
			"embedding":  vector,
			"dimensions": len(vector),
		})

	case req.Texts != nil:
		batch, err := s.client.EmbedBatch(ctx, req.Texts)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		dims := 0
		if len(batch.Vectors) > 0 {
			dims = len(batch.Vectors[0])
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success":    true,
			"embeddings": batch.Vectors,
			"indices":    batch.Indices,
			"count":      len(batch.Vectors),
			"dimensions": dims,
		})

	default:
		text, err := compose.Compose(req.Service)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		vector, err := s.client.Embed(ctx, text)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		body := map[string]any{
			"success":    true,
			"embedding":  vector,
			"dimensions": len(vector),
			"text":       text,
		}
		if req.Headline {
			if headline := s.client.HeadlineEmbedding(ctx, req.Service); headline.IsOk() {
				body["headlineEmbedding"] = headline.UnwrapOr(nil)
			}
		}
		writeJSON(w, http.StatusOK, body)
	}
}

type pagination struct {
	CurrentPage   int `json:"currentPage"`
	TotalPages    int `json:"totalPages"`
	TotalServices int `json:"totalServices"`
	Limit         int `json:"limit"`
}

func (s *Server) handleListServices(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := intParam(q.Get("page"), 1)
	if err != nil || page < 1 {
		s.fail(w, r, badRequest("page must be a positive integer"))
		return
	}
	limit, err := intParam(q.Get("limit"), 10)
	if err != nil || limit < 1 || limit > search.MaxLimit {
		s.fail(w, r, badRequest("limit must be between 1 and %d", search.MaxLimit))
		return
	}

	filter := storage.Filter{Text: q.Get("search")}
	if loc := q.Get("location"); loc != "" && loc != "all" {
		filter.Locations = []string{loc}
	}

	ctx := r.Context()
	total, err := s.store.CountRecords(ctx, filter)
	if err != nil {
		s.fail(w, r, fmt.Errorf("%w: %w", core.ErrQuery, err))
		return
	}
	records, err := s.store.ListRecords(ctx, filter, storage.Page{Offset: (page - 1) * limit, Limit: limit})
	if err != nil {
		s.fail(w, r, fmt.Errorf("%w: %w", core.ErrQuery, err))
		return
	}
	stats, err := s.locationStats(r)
	if err != nil {
		s.fail(w, r, fmt.Errorf("%w: %w", core.ErrQuery, err))
		return
	}

	views := make([]serviceView, len(records))
	for i, rec := range records {
		views[i] = newServiceView(rec)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"services": views,
		"pagination": pagination{
			CurrentPage:   page,
			TotalPages:    (total + limit - 1) / limit,
			TotalServices: total,
			Limit:         limit,
		},
		"stats":     stats,
		"locations": s.locations,
	})
}

// locationStats counts all records, records tagged with every configured
// location, and records tagged with exactly one of them.
func (s *Server) locationStats(r *http.Request) (map[string]int, error) {
	ctx := r.Context()
	stats := make(map[string]int, len(s.locations)+2)

	total, err := s.store.CountRecords(ctx, storage.Filter{})
	if err != nil {
		return nil, err
	}
	stats["totalUniqueServices"] = total

	if len(s.locations) == 0 {
		return stats, nil
	}
	all, err := s.store.CountRecords(ctx, storage.Filter{AllLocations: s.locations})
	if err != nil {
		return nil, err
	}
	key := "servicesInBothLocations"
	if len(s.locations) != 2 {
		key = "servicesInAllLocations"
	}
	stats[key] = all

	for i, loc := range s.locations {
		others := make([]string, 0, len(s.locations)-1)
		others = append(others, s.locations[:i]...)
		others = append(others, s.locations[i+1:]...)
		only, err := s.store.CountRecords(ctx, storage.Filter{Locations: []string{loc}, ExcludeLocations: others})
		if err != nil {
			return nil, err
		}
		stats["servicesOnlyIn"+loc] = only
	}
	return stats, nil
}

func (s *Server) handleGetService(w http.ResponseWriter, r *http.Request) {
	record, err := s.store.GetRecord(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody{Error: "Service not found"})
			return
		}
		s.fail(w, r, fmt.Errorf("%w: %w", core.ErrQuery, err))
		return
	}
	writeJSON(w, http.StatusOK, newServiceView(record))
}

func (s *Server) handleSimilar(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	limit, err := intParam(r.URL.Query().Get("limit"), search.DefaultSimilarLimit)
	if err != nil || limit < 1 || limit > search.MaxLimit {
		s.fail(w, r, badRequest("limit must be between 1 and %d", search.MaxLimit))
		return
	}

	results, err := s.engine.FindSimilar(r.Context(), id, limit)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody{Error: "Service not found"})
			return
		}
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"serviceId":    id,
		"results":      resultViews(results),
		"totalResults": len(results),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"model":      s.client.Model(),
		"dimensions": s.client.Dimensions(),
	})
}

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
