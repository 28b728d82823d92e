// Command validate checks the artifacts of an overlay run: the incident
// table CSV and the daily series CSV. It verifies headers, timestamp
// ordering, duration arithmetic, the series calendar and, when a window is
// given, that both files stay inside it.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -incidents outages.csv \
//	  -series botnet_daily.csv \
//	  -start 2024-01-01 -end 2024-01-31
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"slices"
	"strconv"
	"time"

	"github.com/couchcryptid/outage-overlay/internal/adapter/report"
	"github.com/couchcryptid/outage-overlay/internal/config"
	"github.com/couchcryptid/outage-overlay/internal/domain"
)

// Durations are written from full-precision timestamps while the CSV keeps
// whole seconds, so allow up to a second of drift.
const durationTolerance = 1.0/60 + 1e-9

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	incidents := flag.String("incidents", "", "path to the incident table CSV")
	series := flag.String("series", "", "path to the daily series CSV")
	start := flag.String("start", "", "expected window start, YYYY-MM-DD (optional)")
	end := flag.String("end", "", "expected window end, YYYY-MM-DD (optional)")
	flag.Parse()

	if *incidents == "" || *series == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(os.Stdout, *incidents, *series, *start, *end); code != 0 {
		os.Exit(code)
	}
}

func run(w io.Writer, incidentsPath, seriesPath, start, end string) int {
	fmt.Fprintln(w, "=== Outage Overlay Artifact Validation ===")
	fmt.Fprintln(w)

	window, hasWindow, err := parseWindow(start, end)
	if err != nil {
		fmt.Fprintf(w, "FATAL: %v\n", err)
		return 1
	}

	incidentRows, err := loadCSV(incidentsPath)
	if err != nil {
		fmt.Fprintf(w, "FATAL: load incidents: %v\n", err)
		return 1
	}
	seriesRows, err := loadCSV(seriesPath)
	if err != nil {
		fmt.Fprintf(w, "FATAL: load series: %v\n", err)
		return 1
	}

	table := &phase{name: "Phase 1: Incident Table"}
	rows := validateIncidents(table, incidentRows)

	daily := &phase{name: "Phase 2: Daily Series"}
	points := validateSeries(daily, seriesRows)

	phases := []*phase{table, daily}
	if hasWindow {
		phases = append(phases, validateWindow(window, rows, points))
	}

	fmt.Fprintln(w)
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(w, "  %-42s %s\n", p.name, status)
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Records: %d incidents, %d series days\n", len(rows), len(points))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(w, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(w, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(w, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(w, "\nValidation FAILED.")
	return 1
}

func parseWindow(start, end string) (domain.Window, bool, error) {
	if start == "" && end == "" {
		return domain.Window{}, false, nil
	}
	if start == "" || end == "" {
		return domain.Window{}, false, fmt.Errorf("-start and -end must be given together")
	}
	s, err := config.ParseDate(start)
	if err != nil {
		return domain.Window{}, false, fmt.Errorf("-start: %w", err)
	}
	e, err := config.ParseDate(end)
	if err != nil {
		return domain.Window{}, false, fmt.Errorf("-end: %w", err)
	}
	w, err := domain.NewWindow(s, e)
	if err != nil {
		return domain.Window{}, false, err
	}
	return w, true, nil
}

func loadCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	all, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("%s is empty (expected at least a header)", path)
	}
	return all, nil
}

// incidentRow is the subset of a table row the cross checks need.
type incidentRow struct {
	line     int
	provider string
	start    time.Time
	end      time.Time
}

var providers = map[string]bool{
	string(domain.ProviderAWS):        true,
	string(domain.ProviderCloudflare): true,
	string(domain.ProviderGCP):        true,
}

// ── Phase 1: Incident Table ──

func validateIncidents(p *phase, records [][]string) []incidentRow {
	if !slices.Equal(records[0], domain.IncidentColumns) {
		p.errorf("header: expected %v, got %v", domain.IncidentColumns, records[0])
		return nil
	}

	rows := make([]incidentRow, 0, len(records)-1)
	for i, rec := range records[1:] {
		line := i + 2
		if len(rec) != len(domain.IncidentColumns) {
			p.errorf("line %d: expected %d fields, got %d", line, len(domain.IncidentColumns), len(rec))
			continue
		}
		row, ok := checkIncident(p, line, rec)
		if ok {
			rows = append(rows, row)
		}
	}

	for i := 1; i < len(rows); i++ {
		prev, cur := rows[i-1], rows[i]
		if cur.start.Before(prev.start) || (cur.start.Equal(prev.start) && cur.provider < prev.provider) {
			p.errorf("line %d: not sorted by (start, provider) after line %d", cur.line, prev.line)
		}
	}
	return rows
}

func checkIncident(p *phase, line int, rec []string) (incidentRow, bool) {
	provider, id, start, end, duration := rec[0], rec[1], rec[3], rec[4], rec[5]
	ok := true

	if !providers[provider] {
		p.errorf("line %d: unknown provider %q", line, provider)
		ok = false
	}
	if id == "" {
		p.errorf("line %d: empty incident_id", line)
		ok = false
	}
	s, err := time.Parse(report.TimeLayout, start)
	if err != nil {
		p.errorf("line %d: start %q: %v", line, start, err)
		ok = false
	}
	e, err := time.Parse(report.TimeLayout, end)
	if err != nil {
		p.errorf("line %d: end %q: %v", line, end, err)
		ok = false
	}
	if !ok {
		return incidentRow{}, false
	}

	if e.Before(s) {
		p.errorf("line %d: end %s before start %s", line, end, start)
	}
	minutes, err := strconv.ParseFloat(duration, 64)
	switch {
	case err != nil:
		p.errorf("line %d: duration_minutes %q: %v", line, duration, err)
	case minutes < 0:
		p.errorf("line %d: negative duration_minutes %s", line, duration)
	case math.Abs(minutes-e.Sub(s).Minutes()) > durationTolerance:
		p.errorf("line %d: duration_minutes %s does not match end-start (%.3f)", line, duration, e.Sub(s).Minutes())
	}

	return incidentRow{line: line, provider: provider, start: s, end: e}, true
}

// ── Phase 2: Daily Series ──

func validateSeries(p *phase, records [][]string) domain.DailySeries {
	if !slices.Equal(records[0], report.SeriesColumns) {
		p.errorf("header: expected %v, got %v", report.SeriesColumns, records[0])
		return nil
	}

	points := make(domain.DailySeries, 0, len(records)-1)
	for i, rec := range records[1:] {
		line := i + 2
		if len(rec) != len(report.SeriesColumns) {
			p.errorf("line %d: expected %d fields, got %d", line, len(report.SeriesColumns), len(rec))
			continue
		}
		date, err := time.Parse(config.DateLayout, rec[0])
		if err != nil {
			p.errorf("line %d: date %q: %v", line, rec[0], err)
			continue
		}
		total, err := strconv.ParseInt(rec[1], 10, 64)
		if err != nil {
			p.errorf("line %d: new_devices %q is not an integer", line, rec[1])
			continue
		}
		if total < 0 {
			p.errorf("line %d: negative new_devices %d", line, total)
		}
		if n := len(points); n > 0 && !date.Equal(points[n-1].Date.AddDate(0, 0, 1)) {
			p.errorf("line %d: date %s does not follow %s", line, rec[0], points[n-1].Date.Format(config.DateLayout))
		}
		points = append(points, domain.DailyPoint{Date: date, Total: total})
	}
	return points
}

// ── Phase 3: Window Coverage ──

func validateWindow(w domain.Window, rows []incidentRow, points domain.DailySeries) *phase {
	p := &phase{name: "Phase 3: Window Coverage"}

	for _, r := range rows {
		if r.start.Before(w.Start) || r.end.After(w.End) {
			p.errorf("line %d: %s incident %s..%s outside window", r.line, r.provider,
				r.start.Format(report.TimeLayout), r.end.Format(report.TimeLayout))
		}
	}

	days := w.Days()
	if len(points) != len(days) {
		p.errorf("series has %d days, window has %d", len(points), len(days))
		return p
	}
	for i, d := range days {
		if !points[i].Date.Equal(d) {
			p.errorf("series day %d is %s, expected %s", i+1,
				points[i].Date.Format(config.DateLayout), d.Format(config.DateLayout))
		}
	}
	return p
}
