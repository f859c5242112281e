package compose

import (
	"fmt"
	"strings"

	"github.com/poiesic/servicefinder/core"
)

// Separator joins composed lines.
const Separator = "\n"

// labeled is one optional field of the composed text.
type labeled struct {
	label string
	value string
}

// Compose produces the canonical embedding text for a record.
//
// Order: name, subtitle, description, address, locations, phone, then the
// populated details fields. Returns core.ErrCompose if nothing remains after
// cleaning, so callers never send empty input to the embedding provider.
func Compose(record *core.Record) (string, error) {
	if record == nil {
		return "", fmt.Errorf("%w: record is nil", core.ErrCompose)
	}

	var parts []string
	add := func(label, value string) {
		cleaned := CleanHTML(value)
		if cleaned == "" {
			return
		}
		if label != "" {
			cleaned = label + ": " + cleaned
		}
		parts = append(parts, cleaned)
	}

	add("", record.Name)
	add("", record.Subtitle)
	add("", record.Description)
	add("Address", record.Address)
	add("Locations", joinNonEmpty(record.Locations))
	add("Phone", record.Phone)

	for _, f := range detailFields(record.Details) {
		add(f.label, f.value)
	}

	if len(parts) == 0 {
		return "", fmt.Errorf("%w: id %q", core.ErrCompose, record.ID)
	}
	return strings.Join(parts, Separator), nil
}

// ComposeHeadline returns the cleaned name and subtitle on one line.
// It is used for best-effort headline embeddings.
func ComposeHeadline(record *core.Record) (string, error) {
	if record == nil {
		return "", fmt.Errorf("%w: record is nil", core.ErrCompose)
	}
	headline := strings.TrimSpace(CleanHTML(record.Name) + " " + CleanHTML(record.Subtitle))
	if headline == "" {
		return "", fmt.Errorf("%w: id %q has no headline", core.ErrCompose, record.ID)
	}
	return headline, nil
}

func detailFields(d *core.Details) []labeled {
	if d == nil {
		return nil
	}
	return []labeled{
		{"Full Description", d.FullDescription},
		{"Eligibility", d.Eligibility},
		{"Application Process", d.ApplicationProcess},
		{"Documents Required", d.DocumentsRequired},
		{"Languages", d.Languages},
		{"Fees", d.Fees},
		{"Accessibility", d.Accessibility},
		{"Hours", d.HoursOfOperation},
		{"Service Areas", d.ServiceAreas},
		{"Mailing Address", d.MailingAddress},
	}
}

func joinNonEmpty(values []string) string {
	kept := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			kept = append(kept, v)
		}
	}
	return strings.Join(kept, ", ")
}
