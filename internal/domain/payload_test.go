package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

const (
	entryA = `{"date":"2024-01-01","sources":"1,200","records":10}`
	entryB = `{"date":"2024-01-02","sources":"5","records":"n/a"}`
)

func TestParseDailyRecords_ShapeInvariance(t *testing.T) {
	payloads := map[Shape]string{
		ShapeList:        `[` + entryA + `,` + entryB + `]`,
		ShapePortinfo:    `{"portinfo":[` + entryA + `,` + entryB + `]}`,
		ShapePorthistory: `{"porthistory":{"portinfo":[` + entryB + `,` + entryA + `]}}`,
		ShapeIndexed:     `{"1":` + entryB + `,"0":` + entryA + `}`,
	}

	expected := []DailyRecord{
		{Date: day(1), Value: 1200, Key: 23},
		{Date: day(2), Value: 5, Key: 23},
	}

	for shape, payload := range payloads {
		t.Run(string(shape), func(t *testing.T) {
			records, stats := ParseDailyRecords(gjson.Parse(payload), 23, MetricSources)
			assert.Equal(t, shape, stats.Shape)
			assert.Equal(t, 2, stats.Entries)
			assert.Zero(t, stats.Skipped)
			assert.Equal(t, expected, records)
		})
	}
}

func TestParseDailyRecords_IndexedScenario(t *testing.T) {
	payload := `{"0":{"date":"2024-01-01","sources":"1,200"},"1":{"date":"2024-01-02","sources":"5"}}`
	records, stats := ParseDailyRecords(gjson.Parse(payload), 445, MetricSources)

	assert.Equal(t, ShapeIndexed, stats.Shape)
	require.Len(t, records, 2)
	assert.Equal(t, int64(1200), records[0].Value)
	assert.Equal(t, int64(5), records[1].Value)
	assert.Equal(t, 445, records[0].Key)
}

func TestParseDailyRecords_UnparseableValueIsZero(t *testing.T) {
	payload := `[` + entryA + `,` + entryB + `]`
	records, _ := ParseDailyRecords(gjson.Parse(payload), 80, MetricRecords)

	require.Len(t, records, 2, "entry with a bad value is retained")
	assert.Equal(t, int64(10), records[0].Value)
	assert.Equal(t, int64(0), records[1].Value)
}

func TestParseDailyRecords_SkipsBadDates(t *testing.T) {
	payload := `[{"date":"2024-01-03","tcp":1},{"tcp":2},{"date":"yesterday-ish","tcp":3},{"date":"2024-01-01","tcp":4}]`
	records, stats := ParseDailyRecords(gjson.Parse(payload), 80, MetricTCP)

	assert.Equal(t, 4, stats.Entries)
	assert.Equal(t, 2, stats.Skipped)
	require.Len(t, records, 2)
	assert.Equal(t, day(1), records[0].Date, "sorted by date")
	assert.Equal(t, day(3), records[1].Date)
}

func TestResolveEntries(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		shape   Shape
		count   int
	}{
		{"list skips non-objects", `[1, {"date":"2024-01-01"}, "x"]`, ShapeList, 1},
		{"portinfo single object", `{"portinfo":{"date":"2024-01-01"}}`, ShapePortinfo, 1},
		{"porthistory data field", `{"porthistory":{"data":[{"date":"2024-01-01"},{"date":"2024-01-02"}]}}`, ShapePorthistory, 2},
		{"porthistory series field", `{"porthistory":{"series":[{"date":"2024-01-01"}]}}`, ShapePorthistory, 1},
		{"porthistory list of containers", `{"porthistory":[{"other":1},{"portinfo":[{"date":"2024-01-01"}]}]}`, ShapePorthistory, 1},
		{"portinfo wins over indexed", `{"portinfo":[{"date":"2024-01-01"}],"0":{"date":"2024-01-02"}}`, ShapePortinfo, 1},
		{"empty portinfo falls through", `{"portinfo":[],"0":{"date":"2024-01-02"}}`, ShapeIndexed, 1},
		{"no known layout", `{"error":"rate limited"}`, ShapeNone, 0},
		{"scalar", `42`, ShapeNone, 0},
		{"empty list", `[]`, ShapeNone, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, shape := ResolveEntries(gjson.Parse(tt.payload))
			assert.Equal(t, tt.shape, shape)
			assert.Len(t, entries, tt.count)
		})
	}
}

func TestParseCount(t *testing.T) {
	tests := []struct {
		raw      string
		expected int64
	}{
		{`1200`, 1200},
		{`"1200"`, 1200},
		{`"1,200,300"`, 1200300},
		{`" 7 "`, 7},
		{`"n/a"`, 0},
		{`null`, 0},
		{`-3`, 0},
		{`1.5`, 0},
		{`5.0`, 0},
		{`"5.0"`, 0},
		{`1e3`, 0},
		{`true`, 0},
		{`""`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			v := gjson.Parse(`{"v":` + tt.raw + `}`).Get("v")
			assert.Equal(t, tt.expected, parseCount(v))
		})
	}

	assert.Equal(t, int64(0), parseCount(gjson.Parse(`{}`).Get("v")), "missing")
}
