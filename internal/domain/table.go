package domain

import (
	"sort"
	"time"
)

// IncidentColumns is the header of the normalized incident table.
var IncidentColumns = []string{
	"provider", "incident_id", "title", "start", "end", "duration_minutes", "severity", "url",
}

// IncidentRow is one row of the normalized incident table.
type IncidentRow struct {
	Provider        Provider  `json:"provider"`
	IncidentID      string    `json:"incident_id"`
	Title           string    `json:"title"`
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	DurationMinutes float64   `json:"duration_minutes"`
	Severity        string    `json:"severity"`
	URL             string    `json:"url"`
}

// AssembleIncidents merges per-provider incident lists into one slice sorted
// by (start, provider). Ties are broken by incident ID and end so the order
// does not depend on which provider finished first.
func AssembleIncidents(groups ...[]Incident) []Incident {
	var n int
	for _, g := range groups {
		n += len(g)
	}
	all := make([]Incident, 0, n)
	for _, g := range groups {
		all = append(all, g...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		a, b := all[i], all[j]
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		if a.Provider != b.Provider {
			return a.Provider < b.Provider
		}
		if a.IncidentID != b.IncidentID {
			return a.IncidentID < b.IncidentID
		}
		return a.End.Before(b.End)
	})
	return all
}

// IncidentTable converts sorted incidents to table rows.
func IncidentTable(incidents []Incident) []IncidentRow {
	rows := make([]IncidentRow, len(incidents))
	for i, inc := range incidents {
		rows[i] = IncidentRow{
			Provider:        inc.Provider,
			IncidentID:      inc.IncidentID,
			Title:           inc.Title,
			Start:           inc.Start,
			End:             inc.End,
			DurationMinutes: inc.Duration().Seconds() / 60,
			Severity:        inc.Severity,
			URL:             inc.URL,
		}
	}
	return rows
}
