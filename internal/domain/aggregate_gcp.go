package domain

import (
	"fmt"
	"time"

	"github.com/tidwall/gjson"
)

// gcpSyntheticIDPrefix is used when an incident carries no identifier at all.
const gcpSyntheticIDPrefix = "gcp-"

// GCPAggregator reads the Google Cloud status incidents.json array.
type GCPAggregator struct {
	StartFields    []string
	EndFields      []string
	IDFields       []string
	TitleFields    []string
	DefaultTitle   string
	SeverityFields []string
	URLFields      []string
}

// NewGCPAggregator returns an aggregator for status.cloud.google.com.
func NewGCPAggregator() *GCPAggregator {
	return &GCPAggregator{
		StartFields:    []string{"begin"},
		EndFields:      []string{"end", "most_recent_update"},
		IDFields:       []string{"number", "id", "external_desc"},
		TitleFields:    []string{"title", "service_name"},
		DefaultTitle:   "GCP incident",
		SeverityFields: []string{"severity", "impact"},
		URLFields:      []string{"uri"},
	}
}

// Provider reports ProviderGCP.
func (a *GCPAggregator) Provider() Provider { return ProviderGCP }

// Aggregate builds one incident per array element. Elements without a
// parseable begin time are skipped.
func (a *GCPAggregator) Aggregate(payload []byte, query Window) (Aggregation, error) {
	if !gjson.ValidBytes(payload) {
		return Aggregation{}, fmt.Errorf("parse gcp incidents: %w", errMalformedPayload)
	}
	doc := gjson.ParseBytes(payload)
	if !doc.IsArray() {
		return Aggregation{}, fmt.Errorf("parse gcp incidents: %w: expected array", errMalformedPayload)
	}

	var agg Aggregation
	doc.ForEach(func(_, item gjson.Result) bool {
		if !item.IsObject() {
			agg.Skipped++
			return true
		}
		begin, ok := firstTime(item, a.StartFields)
		if !ok {
			agg.Skipped++
			return true
		}
		end, ok := firstTime(item, a.EndFields)
		if !ok {
			end = begin
		}

		id := firstString(item, a.IDFields)
		if id == "" {
			id = gcpSyntheticIDPrefix + isoNaive(begin)
		}
		title := firstString(item, a.TitleFields)
		if title == "" {
			title = a.DefaultTitle
		}

		agg.appendClamped(Incident{
			Provider:   ProviderGCP,
			IncidentID: id,
			Title:      title,
			Start:      begin,
			End:        end,
			Severity:   firstString(item, a.SeverityFields),
			URL:        firstString(item, a.URLFields),
		}, query)
		return true
	})
	return agg, nil
}

// isoNaive formats a UTC instant without an offset, with microseconds only
// when they are non-zero.
func isoNaive(t time.Time) string {
	t = t.UTC()
	if t.Nanosecond() == 0 {
		return t.Format("2006-01-02T15:04:05")
	}
	return t.Format("2006-01-02T15:04:05.000000")
}
