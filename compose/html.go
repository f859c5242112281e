package compose

import (
	"regexp"
	"strings"
)

var (
	tagPattern        = regexp.MustCompile(`<[^>]*>`)
	whitespacePattern = regexp.MustCompile(`\s+`)

	entityReplacer = strings.NewReplacer(
		"&nbsp;", " ",
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
	)
)

// maxCleanPasses bounds re-decoding of doubly-escaped input such as "&amp;lt;".
const maxCleanPasses = 4

// CleanHTML strips markup from s: tags are replaced by a space, the common
// HTML entities are decoded, whitespace is collapsed and the result trimmed.
// Entities that decode into further markup are stripped as well.
func CleanHTML(s string) string {
	if s == "" {
		return ""
	}

	out := s
	for range maxCleanPasses {
		next := tagPattern.ReplaceAllString(out, " ")
		next = entityReplacer.Replace(next)
		if next == out {
			break
		}
		out = next
	}
	out = tagPattern.ReplaceAllString(out, " ")

	return strings.TrimSpace(whitespacePattern.ReplaceAllString(out, " "))
}
