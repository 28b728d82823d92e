package domain

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Shape names the payload layout an entry list was found in.
type Shape string

const (
	ShapeNone        Shape = ""
	ShapeList        Shape = "list"
	ShapePortinfo    Shape = "portinfo"
	ShapePorthistory Shape = "porthistory"
	ShapeIndexed     Shape = "indexed"
)

// porthistoryListFields are the alternate names the entry list has been
// observed under inside a "porthistory" object.
var porthistoryListFields = []string{"data", "history", "timeseries", "series"}

type shapeMatcher struct {
	shape Shape
	match func(gjson.Result) []gjson.Result
}

// entryShapes are tried in priority order.
var entryShapes = []shapeMatcher{
	{shape: ShapeList, match: matchList},
	{shape: ShapePortinfo, match: matchPortinfo},
	{shape: ShapePorthistory, match: matchPorthistory},
	{shape: ShapeIndexed, match: matchIndexed},
}

// ResolveEntries extracts the daily entry objects from a porthistory payload
// of unknown layout. It returns the first non-empty match and its shape, or
// (nil, ShapeNone) when no known layout applies.
func ResolveEntries(payload gjson.Result) ([]gjson.Result, Shape) {
	for _, m := range entryShapes {
		if entries := m.match(payload); len(entries) > 0 {
			return entries, m.shape
		}
	}
	return nil, ShapeNone
}

// objects returns v as a list of objects: array elements that are objects,
// or v itself when it is a single object.
func objects(v gjson.Result) []gjson.Result {
	switch {
	case v.IsArray():
		var out []gjson.Result
		for _, el := range v.Array() {
			if el.IsObject() {
				out = append(out, el)
			}
		}
		return out
	case v.IsObject():
		return []gjson.Result{v}
	default:
		return nil
	}
}

func matchList(payload gjson.Result) []gjson.Result {
	if !payload.IsArray() {
		return nil
	}
	return objects(payload)
}

func matchPortinfo(payload gjson.Result) []gjson.Result {
	if !payload.IsObject() {
		return nil
	}
	return objects(payload.Get("portinfo"))
}

func matchPorthistory(payload gjson.Result) []gjson.Result {
	if !payload.IsObject() {
		return nil
	}
	ph := payload.Get("porthistory")
	switch {
	case ph.IsObject():
		if out := objects(ph.Get("portinfo")); len(out) > 0 {
			return out
		}
		for _, f := range porthistoryListFields {
			if out := objects(ph.Get(f)); len(out) > 0 {
				return out
			}
		}
	case ph.IsArray():
		for _, el := range ph.Array() {
			if !el.IsObject() {
				continue
			}
			if out := objects(el.Get("portinfo")); len(out) > 0 {
				return out
			}
		}
	}
	return nil
}

// matchIndexed handles {"0": {...}, "1": {...}}. Object key order is not
// meaningful, so entries are ordered by their raw "date" string.
func matchIndexed(payload gjson.Result) []gjson.Result {
	if !payload.IsObject() {
		return nil
	}
	var out []gjson.Result
	payload.ForEach(func(key, value gjson.Result) bool {
		if isDigits(key.String()) && value.IsObject() {
			out = append(out, value)
		}
		return true
	})
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Get("date").String() < out[j].Get("date").String()
	})
	return out
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// DailyRecord is one day of one port's porthistory.
type DailyRecord struct {
	Date  time.Time `json:"date"`
	Value int64     `json:"value"`
	Key   int       `json:"key"` // port number
}

// EntryStats describes how a resolved entry list converted to records.
type EntryStats struct {
	Shape   Shape
	Entries int
	Skipped int
}

// ParseDailyRecords resolves the entry list of a porthistory payload and
// converts it to records for the given port and metric, sorted by date.
// Entries without a usable date are skipped; unparseable metric values
// become zero.
func ParseDailyRecords(payload gjson.Result, key int, metric Metric) ([]DailyRecord, EntryStats) {
	entries, shape := ResolveEntries(payload)
	stats := EntryStats{Shape: shape, Entries: len(entries)}

	records := make([]DailyRecord, 0, len(entries))
	for _, e := range entries {
		date, ok, err := ParseTimestamp(e.Get("date").String())
		if err != nil || !ok {
			stats.Skipped++
			continue
		}
		records = append(records, DailyRecord{
			Date:  DateOf(date),
			Value: parseCount(e.Get(string(metric))),
			Key:   key,
		})
	}
	sort.SliceStable(records, func(i, j int) bool { return records[i].Date.Before(records[j].Date) })
	return records, stats
}

// parseCount reads an integer count such as 1200, "1200" or "1,200".
// Anything else, including negatives, fractions and exponents, yields 0.
func parseCount(v gjson.Result) int64 {
	if !v.Exists() || v.Type == gjson.Null {
		return 0
	}
	// Raw keeps number literals as written; String reformats 5.0 as "5".
	text := v.Str
	if v.Type == gjson.Number {
		text = v.Raw
	}
	s := strings.TrimSpace(strings.ReplaceAll(text, ",", ""))
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
