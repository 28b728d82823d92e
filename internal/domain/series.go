package domain

import "time"

// DailyPoint is the summed activity for one calendar day.
type DailyPoint struct {
	Date  time.Time `json:"date"`
	Total int64     `json:"total"`
}

// DailySeries is ordered by ascending date with exactly one point per day.
type DailySeries []DailyPoint

// BuildDailySeries sums record values per calendar day across all ports and
// emits one point for every day of the query window, zero where no port
// reported. It returns an empty series when records is empty.
func BuildDailySeries(records []DailyRecord, query Window) DailySeries {
	if len(records) == 0 {
		return DailySeries{}
	}

	totals := make(map[time.Time]int64)
	for _, r := range records {
		totals[DateOf(r.Date)] += r.Value
	}

	days := query.Days()
	series := make(DailySeries, 0, len(days))
	for _, d := range days {
		series = append(series, DailyPoint{Date: d, Total: totals[d]})
	}
	return series
}

// Sum returns the total over all points.
func (s DailySeries) Sum() int64 {
	var sum int64
	for _, p := range s {
		sum += p.Total
	}
	return sum
}

// Max returns the largest daily total, or 0 for an empty series.
func (s DailySeries) Max() int64 {
	var m int64
	for _, p := range s {
		if p.Total > m {
			m = p.Total
		}
	}
	return m
}
