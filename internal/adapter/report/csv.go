// Package report renders run results as CSV files, an overlay chart and a
// console summary.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/couchcryptid/outage-overlay/internal/domain"
)

// TimeLayout is the timestamp format used in CSV output.
const TimeLayout = "2006-01-02 15:04:05"

// SeriesColumns is the header of the daily series CSV.
var SeriesColumns = []string{"date", "new_devices"}

// WriteIncidentsCSV writes the incident table with its header. An empty
// table still produces the header row.
func WriteIncidentsCSV(w io.Writer, rows []domain.IncidentRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(domain.IncidentColumns); err != nil {
		return fmt.Errorf("write incident header: %w", err)
	}
	for i := range rows {
		r := &rows[i]
		record := []string{
			string(r.Provider),
			r.IncidentID,
			r.Title,
			r.Start.UTC().Format(TimeLayout),
			r.End.UTC().Format(TimeLayout),
			strconv.FormatFloat(r.DurationMinutes, 'f', -1, 64),
			r.Severity,
			r.URL,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write incident row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteSeriesCSV writes the daily series with its header.
func WriteSeriesCSV(w io.Writer, series domain.DailySeries) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(SeriesColumns); err != nil {
		return fmt.Errorf("write series header: %w", err)
	}
	for _, p := range series {
		if err := cw.Write([]string{p.Date.Format("2006-01-02"), strconv.FormatInt(p.Total, 10)}); err != nil {
			return fmt.Errorf("write series row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFile creates path and writes to it with fn.
func WriteFile(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := fn(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
