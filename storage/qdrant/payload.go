package qdrant

import (
	"github.com/poiesic/servicefinder/core"
	"github.com/poiesic/servicefinder/storage"
	"github.com/qdrant/go-client/qdrant"
)

// Payload keys.
const (
	keyID          = "id"
	keyName        = "name"
	keySubtitle    = "subtitle"
	keyDescription = "description"
	keyAddress     = "address"
	keyPhone       = "phone"
	keyWebsite     = "website"
	keyLocations   = "locations"
	keySubtopicIDs = "subtopicIds"
	keyDetails     = "details"
	keyModel       = "embeddingModel"
)

// buildFilter turns the pre-filters into Must and MustNot conditions.
// Returns nil when nothing is filtered.
func buildFilter(f storage.QueryFilters) *qdrant.Filter {
	filter := &qdrant.Filter{}
	if len(f.Locations) > 0 {
		filter.Must = append(filter.Must, qdrant.NewMatchKeywords(keyLocations, f.Locations...))
	}
	if len(f.SubtopicIDs) > 0 {
		filter.Must = append(filter.Must, qdrant.NewMatchKeywords(keySubtopicIDs, f.SubtopicIDs...))
	}
	if len(f.ExcludeIDs) > 0 {
		ids := make([]*qdrant.PointId, 0, len(f.ExcludeIDs))
		for _, id := range f.ExcludeIDs {
			ids = append(ids, qdrant.NewIDNum(core.PointID(id)))
		}
		filter.MustNot = append(filter.MustNot, qdrant.NewHasID(ids...))
	}
	if len(filter.Must) == 0 && len(filter.MustNot) == 0 {
		return nil
	}
	return filter
}

func buildPoint(r *core.Record) *qdrant.PointStruct {
	return &qdrant.PointStruct{
		Id:      qdrant.NewIDNum(core.PointID(r.ID)),
		Vectors: qdrant.NewVectors(r.Embedding.Vector...),
		Payload: qdrant.NewValueMap(buildPayload(r)),
	}
}

func buildPayload(r *core.Record) map[string]any {
	payload := map[string]any{
		keyID:          r.ID,
		keyName:        r.Name,
		keySubtitle:    r.Subtitle,
		keyDescription: r.Description,
		keyAddress:     r.Address,
		keyPhone:       r.Phone,
		keyWebsite:     r.Website,
		keyLocations:   anySlice(r.Locations),
		keySubtopicIDs: anySlice(r.SubtopicIDs),
	}
	if r.Embedding != nil {
		payload[keyModel] = r.Embedding.Model
	}
	if d := r.Details; d != nil {
		details := map[string]any{}
		for key, value := range detailFields(d) {
			if *value != "" {
				details[key] = *value
			}
		}
		payload[keyDetails] = details
	}
	return payload
}

// recordFromPayload hydrates a record from a point payload.
// The vector is not carried in the payload.
func recordFromPayload(p map[string]*qdrant.Value) *core.Record {
	r := &core.Record{
		ID:          p[keyID].GetStringValue(),
		Name:        p[keyName].GetStringValue(),
		Subtitle:    p[keySubtitle].GetStringValue(),
		Description: p[keyDescription].GetStringValue(),
		Address:     p[keyAddress].GetStringValue(),
		Phone:       p[keyPhone].GetStringValue(),
		Website:     p[keyWebsite].GetStringValue(),
		Locations:   stringList(p[keyLocations]),
		SubtopicIDs: stringList(p[keySubtopicIDs]),
	}
	if fields := p[keyDetails].GetStructValue().GetFields(); fields != nil {
		r.Details = &core.Details{}
		for key, value := range detailFields(r.Details) {
			*value = fields[key].GetStringValue()
		}
	}
	return r
}

func detailFields(d *core.Details) map[string]*string {
	return map[string]*string{
		"fullDescription":    &d.FullDescription,
		"eligibility":        &d.Eligibility,
		"applicationProcess": &d.ApplicationProcess,
		"documentsRequired":  &d.DocumentsRequired,
		"languages":          &d.Languages,
		"fees":               &d.Fees,
		"accessibility":      &d.Accessibility,
		"hoursOfOperation":   &d.HoursOfOperation,
		"serviceAreas":       &d.ServiceAreas,
		"mailingAddress":     &d.MailingAddress,
	}
}

func stringList(v *qdrant.Value) []string {
	values := v.GetListValue().GetValues()
	if len(values) == 0 {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, item := range values {
		out = append(out, item.GetStringValue())
	}
	return out
}

func anySlice(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
