package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const goodIncidents = `provider,incident_id,title,start,end,duration_minutes,severity,url
GCP,18045,Cloud SQL,2024-01-02 09:00:00,2024-01-02 12:00:00,180,medium,https://status.cloud.google.com/incidents/18045
AWS,ec2-us-east-1_1704190800,"Increased latency, us-east-1",2024-01-02 09:05:00,2024-01-02 11:40:00,155,resolved,http://status.aws.amazon.com/#ec2-us-east-1_1704190800
Cloudflare,m7q1,Dashboard,2024-01-04 23:00:00,2024-01-05 00:00:00,60,minor,https://stspg.io/m7q1
`

const goodSeries = `date,new_devices
2024-01-01,3100
2024-01-02,5000
2024-01-03,0
2024-01-04,50
2024-01-05,0
`

func writeFiles(t *testing.T, incidents, series string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	ip := filepath.Join(dir, "outages.csv")
	sp := filepath.Join(dir, "series.csv")
	require.NoError(t, os.WriteFile(ip, []byte(incidents), 0o644))
	require.NoError(t, os.WriteFile(sp, []byte(series), 0o644))
	return ip, sp
}

func TestRun_Passes(t *testing.T) {
	ip, sp := writeFiles(t, goodIncidents, goodSeries)
	var out bytes.Buffer

	code := run(&out, ip, sp, "2024-01-01", "2024-01-05")
	assert.Equal(t, 0, code, out.String())
	assert.Contains(t, out.String(), "Records: 3 incidents, 5 series days")
	assert.Contains(t, out.String(), "All validations passed.")
}

func TestRun_HeaderOnlyPasses(t *testing.T) {
	ip, sp := writeFiles(t,
		"provider,incident_id,title,start,end,duration_minutes,severity,url\n",
		"date,new_devices\n")
	var out bytes.Buffer

	assert.Equal(t, 0, run(&out, ip, sp, "", ""), out.String())
}

func TestRun_Failures(t *testing.T) {
	tests := []struct {
		name      string
		incidents string
		series    string
		start     string
		end       string
		want      string
	}{
		{
			name:      "bad header",
			incidents: "provider,id\nAWS,1\n",
			series:    goodSeries,
			want:      "header: expected",
		},
		{
			name: "unsorted",
			incidents: `provider,incident_id,title,start,end,duration_minutes,severity,url
AWS,b,t,2024-01-03 00:00:00,2024-01-03 00:00:00,0,,
AWS,a,t,2024-01-02 00:00:00,2024-01-02 00:00:00,0,,
`,
			series: goodSeries,
			want:   "not sorted by (start, provider)",
		},
		{
			name: "provider tie out of order",
			incidents: `provider,incident_id,title,start,end,duration_minutes,severity,url
GCP,b,t,2024-01-03 00:00:00,2024-01-03 00:00:00,0,,
AWS,a,t,2024-01-03 00:00:00,2024-01-03 00:00:00,0,,
`,
			series: goodSeries,
			want:   "not sorted by (start, provider)",
		},
		{
			name: "end before start",
			incidents: `provider,incident_id,title,start,end,duration_minutes,severity,url
AWS,a,t,2024-01-03 00:00:00,2024-01-02 00:00:00,0,,
`,
			series: goodSeries,
			want:   "before start",
		},
		{
			name: "duration mismatch",
			incidents: `provider,incident_id,title,start,end,duration_minutes,severity,url
AWS,a,t,2024-01-03 00:00:00,2024-01-03 01:00:00,30,,
`,
			series: goodSeries,
			want:   "does not match end-start",
		},
		{
			name: "unknown provider",
			incidents: `provider,incident_id,title,start,end,duration_minutes,severity,url
Azure,a,t,2024-01-03 00:00:00,2024-01-03 00:00:00,0,,
`,
			series: goodSeries,
			want:   `unknown provider "Azure"`,
		},
		{
			name:      "series gap",
			incidents: goodIncidents,
			series:    "date,new_devices\n2024-01-01,1\n2024-01-03,2\n",
			want:      "does not follow 2024-01-01",
		},
		{
			name:      "negative total",
			incidents: goodIncidents,
			series:    "date,new_devices\n2024-01-01,-1\n",
			want:      "negative new_devices",
		},
		{
			name:      "series shorter than window",
			incidents: goodIncidents,
			series:    "date,new_devices\n2024-01-01,1\n",
			start:     "2024-01-01",
			end:       "2024-01-05",
			want:      "series has 1 days, window has 5",
		},
		{
			name:      "incident outside window",
			incidents: goodIncidents,
			series:    "date,new_devices\n2024-01-02,1\n2024-01-03,1\n2024-01-04,1\n2024-01-05,1\n",
			start:     "2024-01-03",
			end:       "2024-01-05",
			want:      "outside window",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ip, sp := writeFiles(t, tt.incidents, tt.series)
			var out bytes.Buffer

			code := run(&out, ip, sp, tt.start, tt.end)
			assert.Equal(t, 1, code)
			assert.Contains(t, out.String(), tt.want)
			assert.Contains(t, out.String(), "Validation FAILED.")
		})
	}
}

func TestRun_Fatal(t *testing.T) {
	ip, sp := writeFiles(t, goodIncidents, goodSeries)

	tests := []struct {
		name      string
		incidents string
		start     string
		end       string
		want      string
	}{
		{"missing file", filepath.Join(t.TempDir(), "nope.csv"), "", "", "FATAL: load incidents"},
		{"half window", ip, "2024-01-01", "", "must be given together"},
		{"inverted window", ip, "2024-01-05", "2024-01-01", "invalid window"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			assert.Equal(t, 1, run(&out, tt.incidents, sp, tt.start, tt.end))
			assert.Contains(t, out.String(), tt.want)
		})
	}
}
