package search

import (
	"regexp"

	"github.com/poiesic/servicefinder/core"
)

// literalMatcher compiles the query into a case-insensitive pattern that
// matches the query text verbatim. Regex metacharacters in the query carry
// no meaning.
func literalMatcher(query string) *regexp.Regexp {
	return regexp.MustCompile("(?i)" + regexp.QuoteMeta(query))
}

// lexicalText is the haystack the hybrid boost is matched against.
func lexicalText(record *core.Record) string {
	return record.Name + " " + record.Description
}
