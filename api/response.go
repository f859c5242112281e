package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/poiesic/servicefinder/core"
	"github.com/poiesic/servicefinder/search"
)

// errBadRequest marks request decoding and parameter errors.
var errBadRequest = errors.New("bad request")

type errorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// serviceView is the wire form of a record. Collections are never null.
type serviceView struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Subtitle     string        `json:"subtitle"`
	Description  string        `json:"description"`
	Address      string        `json:"address"`
	Phone        string        `json:"phone,omitempty"`
	Website      string        `json:"website"`
	Locations    []string      `json:"locations"`
	SubtopicIDs  []string      `json:"subtopicIds"`
	Details      *core.Details `json:"details,omitempty"`
	HasEmbedding bool          `json:"hasEmbedding"`
	CreatedAt    *time.Time    `json:"createdAt,omitempty"`
	UpdatedAt    *time.Time    `json:"updatedAt,omitempty"`
	Similarity   *float64      `json:"similarity,omitempty"`
	Rank         int           `json:"rank,omitempty"`
}

func newServiceView(r *core.Record) serviceView {
	v := serviceView{
		ID:           r.ID,
		Name:         r.Name,
		Subtitle:     r.Subtitle,
		Description:  r.Description,
		Address:      r.Address,
		Phone:        r.Phone,
		Website:      r.Website,
		Locations:    nonNil(r.Locations),
		SubtopicIDs:  nonNil(r.SubtopicIDs),
		Details:      r.Details,
		HasEmbedding: r.HasEmbedding(),
	}
	if !r.InsertedAt.IsZero() {
		v.CreatedAt = &r.InsertedAt
	}
	if !r.UpdatedAt.IsZero() {
		v.UpdatedAt = &r.UpdatedAt
	}
	return v
}

func resultViews(results []*core.SearchResult) []serviceView {
	views := make([]serviceView, len(results))
	for i, res := range results {
		v := newServiceView(res.Record)
		sim := res.DisplaySimilarity()
		v.Similarity = &sim
		v.Rank = res.Rank
		views[i] = v
	}
	return views
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorStatus maps the error taxonomy onto HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, core.ErrInvalidInput),
		errors.Is(err, core.ErrNoValidInput),
		errors.Is(err, core.ErrCompose),
		errors.Is(err, core.ErrInvalidRecord),
		errors.Is(err, search.ErrInvalidMode):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrNoEmbedding):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}
