package domain

import "time"

// Provider identifies the status source an incident came from.
type Provider string

const (
	ProviderAWS        Provider = "AWS"
	ProviderGCP        Provider = "GCP"
	ProviderCloudflare Provider = "Cloudflare"
)

// Incident is a provider outage window after normalization and clamping.
// Start and End are UTC and Start <= End always holds.
type Incident struct {
	Provider   Provider  `json:"provider"`
	IncidentID string    `json:"incident_id"`
	Title      string    `json:"title"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	Severity   string    `json:"severity"` // empty when unknown
	URL        string    `json:"url"`
}

// Duration returns the length of the clamped incident window.
func (i Incident) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// Aggregation is the output of one Aggregator run.
type Aggregation struct {
	Incidents []Incident
	// Skipped counts records dropped for a missing identifier or timestamp.
	Skipped int
	// Outside counts incidents that did not overlap the query window.
	Outside int
}

// Aggregator groups a raw provider payload into incidents clamped to the query window.
type Aggregator interface {
	Provider() Provider
	Aggregate(payload []byte, query Window) (Aggregation, error)
}

// appendClamped clamps the raw window and appends the incident when it overlaps.
func (a *Aggregation) appendClamped(inc Incident, query Window) {
	w, ok := Clamp(inc.Start, inc.End, query)
	if !ok {
		a.Outside++
		return
	}
	inc.Start, inc.End = w.Start, w.End
	a.Incidents = append(a.Incidents, inc)
}
