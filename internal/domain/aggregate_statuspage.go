package domain

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

var errMalformedPayload = errors.New("malformed json payload")

// StatuspageAggregator reads a Statuspage v2 incidents document (Cloudflare).
// Field lists are tried in order; the first usable value wins.
type StatuspageAggregator struct {
	StartFields    []string
	EndFields      []string
	IDFields       []string
	TitleFields    []string
	SeverityFields []string
	URLFields      []string
}

// NewStatuspageAggregator returns an aggregator for cloudflarestatus.com.
func NewStatuspageAggregator() *StatuspageAggregator {
	return &StatuspageAggregator{
		StartFields:    []string{"created_at"},
		EndFields:      []string{"resolved_at", "updated_at"},
		IDFields:       []string{"id"},
		TitleFields:    []string{"name"},
		SeverityFields: []string{"impact"},
		URLFields:      []string{"shortlink", "url"},
	}
}

// Provider reports the statuspage this aggregator reads, Cloudflare.
func (a *StatuspageAggregator) Provider() Provider { return ProviderCloudflare }

// Aggregate builds one incident per entry of the "incidents" array. Entries
// without a parseable creation time are skipped; a missing end falls back to
// the start.
func (a *StatuspageAggregator) Aggregate(payload []byte, query Window) (Aggregation, error) {
	if !gjson.ValidBytes(payload) {
		return Aggregation{}, fmt.Errorf("parse cloudflare incidents: %w", errMalformedPayload)
	}

	var agg Aggregation
	gjson.GetBytes(payload, "incidents").ForEach(func(_, item gjson.Result) bool {
		if !item.IsObject() {
			agg.Skipped++
			return true
		}
		start, ok := firstTime(item, a.StartFields)
		if !ok {
			agg.Skipped++
			return true
		}
		end, ok := firstTime(item, a.EndFields)
		if !ok {
			end = start
		}

		agg.appendClamped(Incident{
			Provider:   ProviderCloudflare,
			IncidentID: firstString(item, a.IDFields),
			Title:      firstString(item, a.TitleFields),
			Start:      start,
			End:        end,
			Severity:   firstString(item, a.SeverityFields),
			URL:        firstString(item, a.URLFields),
		}, query)
		return true
	})
	return agg, nil
}
