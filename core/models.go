package core

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// PointID derives a stable numeric identifier from a record ID using BLAKE2b hashing.
// External vector indexes that only accept numeric point IDs key records by it.
func PointID(id string) uint64 {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(id))
	sum := h.Sum(nil)
	return binary.LittleEndian.Uint64(sum)
}

// Details holds the optional long-form fields of a service record.
// Any field may contain HTML markup.
type Details struct {
	FullDescription    string `json:"fullDescription,omitempty"`
	Eligibility        string `json:"eligibility,omitempty"`
	ApplicationProcess string `json:"applicationProcess,omitempty"`
	DocumentsRequired  string `json:"documentsRequired,omitempty"`
	Languages          string `json:"languages,omitempty"`
	Fees               string `json:"fees,omitempty"`
	Accessibility      string `json:"accessibility,omitempty"`
	HoursOfOperation   string `json:"hoursOfOperation,omitempty"`
	ServiceAreas       string `json:"serviceAreas,omitempty"`
	MailingAddress     string `json:"mailingAddress,omitempty"`
}

// Embedding is a vector together with the model that produced it.
// The two are always written together.
type Embedding struct {
	Vector []float32 `json:"vector"`
	Model  string    `json:"model"`
}

// Record is a community service entry.
type Record struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Subtitle    string     `json:"subtitle,omitempty"`
	Description string     `json:"description,omitempty"`
	Address     string     `json:"address,omitempty"`
	Phone       string     `json:"phone,omitempty"`
	Website     string     `json:"website,omitempty"`
	Locations   []string   `json:"locations"`
	SubtopicIDs []string   `json:"subtopicIds"`
	Details     *Details   `json:"details,omitempty"`
	Embedding   *Embedding `json:"-"`
	InsertedAt  time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// HasEmbedding reports whether the record carries a non-empty vector.
func (r *Record) HasEmbedding() bool {
	return r != nil && r.Embedding != nil && len(r.Embedding.Vector) > 0
}

// IsComplete reports whether the record is tagged with at least one location.
func (r *Record) IsComplete() bool {
	return r != nil && len(r.Locations) > 0
}

// SearchResult is a ranked match for a single query. It is never persisted.
type SearchResult struct {
	Record      *Record
	Similarity  float64 // ranking key, unrounded
	VectorScore float64 // similarity reported by the vector index
	Rank        int     // 1-based
}

// DisplaySimilarity returns the similarity rounded to two decimal places.
func (r *SearchResult) DisplaySimilarity() float64 {
	return math.Round(r.Similarity*100) / 100
}

// Failure is a single entry of a batch job failure ledger.
type Failure struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Error string `json:"error"`
}

// Checkpoint records the state of a batch job after its last completed batch.
type Checkpoint struct {
	JobName   string    `json:"jobName"`
	RunID     string    `json:"runId"`
	Total     int       `json:"total"`
	Processed int       `json:"processed"`
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
	Batches   int       `json:"batches"`
	Failures  []Failure `json:"failures"`
	UpdatedAt time.Time `json:"updatedAt"`
}
