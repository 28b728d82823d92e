package domain

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssembleIncidents_Order(t *testing.T) {
	aws := []Incident{
		{Provider: ProviderAWS, IncidentID: "b", Start: hour(1, 5), End: hour(1, 6)},
		{Provider: ProviderAWS, IncidentID: "a", Start: hour(1, 5), End: hour(1, 7)},
	}
	cloudflare := []Incident{
		{Provider: ProviderCloudflare, IncidentID: "z", Start: hour(1, 5), End: hour(1, 5)},
		{Provider: ProviderCloudflare, IncidentID: "y", Start: hour(1, 1), End: hour(1, 2)},
	}
	gcp := []Incident{
		{Provider: ProviderGCP, IncidentID: "1", Start: hour(1, 3), End: hour(1, 4)},
	}

	got := AssembleIncidents(gcp, aws, cloudflare)

	ids := make([]string, len(got))
	for i, inc := range got {
		ids[i] = string(inc.Provider) + "/" + inc.IncidentID
	}
	assert.Equal(t, []string{"Cloudflare/y", "GCP/1", "AWS/a", "AWS/b", "Cloudflare/z"}, ids)

	again := AssembleIncidents(cloudflare, aws, gcp)
	if diff := cmp.Diff(got, again); diff != "" {
		t.Errorf("order depends on input order (-first +second):\n%s", diff)
	}
}

func TestAssembleIncidents_Empty(t *testing.T) {
	got := AssembleIncidents(nil, []Incident{})
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.Empty(t, IncidentTable(got))
}

func TestIncidentTable(t *testing.T) {
	incidents := []Incident{
		{
			Provider:   ProviderAWS,
			IncidentID: "1",
			Title:      "Resolved",
			Start:      hour(1, 0),
			End:        hour(1, 2),
			Severity:   "resolved",
			URL:        "http://status.aws.amazon.com/#1",
		},
		{
			Provider:   ProviderGCP,
			IncidentID: "x",
			Start:      hour(1, 3),
			End:        hour(1, 3).Add(90 * time.Second),
		},
	}

	rows := IncidentTable(incidents)
	require.Len(t, rows, 2)

	assert.Equal(t, IncidentRow{
		Provider:        ProviderAWS,
		IncidentID:      "1",
		Title:           "Resolved",
		Start:           hour(1, 0),
		End:             hour(1, 2),
		DurationMinutes: 120,
		Severity:        "resolved",
		URL:             "http://status.aws.amazon.com/#1",
	}, rows[0])
	assert.InDelta(t, 1.5, rows[1].DurationMinutes, 1e-9)
	assert.Len(t, IncidentColumns, 8)
}
