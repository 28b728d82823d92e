package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/couchcryptid/outage-overlay/internal/domain"
	"github.com/olekukonko/tablewriter"
)

// providerOrder fixes the row order of the summary table.
var providerOrder = []domain.Provider{domain.ProviderAWS, domain.ProviderCloudflare, domain.ProviderGCP}

// Summary is the subset of a run result printed to the console.
type Summary struct {
	Window     domain.Window
	Metric     domain.Metric
	Rows       []domain.IncidentRow
	Series     domain.DailySeries
	EmptyPorts []int
}

// WriteSummary prints per-provider incident totals and the series totals.
func WriteSummary(w io.Writer, s Summary) error {
	if _, err := fmt.Fprintf(w, "Window %s .. %s, metric %s\n",
		s.Window.Start.Format("2006-01-02"), s.Window.End.Format("2006-01-02"), s.Metric); err != nil {
		return err
	}

	type stats struct {
		count   int
		minutes float64
		longest float64
	}
	byProvider := make(map[domain.Provider]*stats)
	for _, r := range s.Rows {
		st, ok := byProvider[r.Provider]
		if !ok {
			st = &stats{}
			byProvider[r.Provider] = st
		}
		st.count++
		st.minutes += r.DurationMinutes
		if r.DurationMinutes > st.longest {
			st.longest = r.DurationMinutes
		}
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"PROVIDER", "INCIDENTS", "TOTAL MIN", "LONGEST MIN"})
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetColumnAlignment([]int{
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_RIGHT,
		tablewriter.ALIGN_RIGHT,
		tablewriter.ALIGN_RIGHT,
	})
	for _, p := range providerOrder {
		st := byProvider[p]
		if st == nil {
			st = &stats{}
		}
		table.Append([]string{
			string(p),
			strconv.Itoa(st.count),
			strconv.FormatFloat(st.minutes, 'f', 1, 64),
			strconv.FormatFloat(st.longest, 'f', 1, 64),
		})
	}
	table.SetFooter([]string{"TOTAL", strconv.Itoa(len(s.Rows)), "", ""})
	table.Render()

	peak, maxTotal := "n/a", s.Series.Max()
	for _, p := range s.Series {
		if p.Total == maxTotal && p.Total > 0 {
			peak = fmt.Sprintf("%s (%d)", p.Date.Format("2006-01-02"), p.Total)
			break
		}
	}
	_, err := fmt.Fprintf(w, "Series: %d days, total %d, peak %s, empty ports %v\n",
		len(s.Series), s.Series.Sum(), peak, s.EmptyPorts)
	return err
}
