package storage

import (
	"slices"
	"strings"

	"github.com/poiesic/servicefinder/core"
)

// Filter selects records for listing and counting. Zero values match everything.
type Filter struct {
	// Text is matched case-insensitively as a literal against name, subtitle and description.
	Text string
	// Locations matches records tagged with any of the given locations.
	Locations []string
	// AllLocations matches records tagged with every given location.
	AllLocations []string
	// ExcludeLocations rejects records tagged with any of the given locations.
	ExcludeLocations []string
	// MissingEmbedding matches only records without a vector.
	MissingEmbedding bool
	// EmbeddedOnly matches only records with a vector.
	EmbeddedOnly bool
}

// Matches reports whether record satisfies every clause of the filter.
func (f Filter) Matches(record *core.Record) bool {
	if record == nil {
		return false
	}
	if f.MissingEmbedding && record.HasEmbedding() {
		return false
	}
	if f.EmbeddedOnly && !record.HasEmbedding() {
		return false
	}
	if len(f.Locations) > 0 && !anyOf(record.Locations, f.Locations) {
		return false
	}
	for _, loc := range f.AllLocations {
		if !slices.Contains(record.Locations, loc) {
			return false
		}
	}
	if len(f.ExcludeLocations) > 0 && anyOf(record.Locations, f.ExcludeLocations) {
		return false
	}
	if f.Text != "" {
		needle := strings.ToLower(f.Text)
		if !strings.Contains(strings.ToLower(record.Name), needle) &&
			!strings.Contains(strings.ToLower(record.Subtitle), needle) &&
			!strings.Contains(strings.ToLower(record.Description), needle) {
			return false
		}
	}
	return true
}

// anyOf reports whether have and want share at least one element.
func anyOf(have, want []string) bool {
	for _, w := range want {
		if slices.Contains(have, w) {
			return true
		}
	}
	return false
}
