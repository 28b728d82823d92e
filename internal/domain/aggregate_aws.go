package domain

import (
	"bytes"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

// SeverityRule labels an incident whose title matches Pattern.
type SeverityRule struct {
	Label   string
	Pattern *regexp.Regexp
}

// awsSeverityRules are evaluated in order against the latest update title.
var awsSeverityRules = []SeverityRule{
	{Label: "resolved", Pattern: keywordPattern("resolved")},
	{Label: "impact", Pattern: keywordPattern("service disruption", "service degradation", "increased errors")},
}

// keywordPattern matches any of the phrases as whole words, case-insensitively.
func keywordPattern(phrases ...string) *regexp.Regexp {
	quoted := make([]string, len(phrases))
	for i, p := range phrases {
		quoted[i] = regexp.QuoteMeta(p)
	}
	return regexp.MustCompile(`(?i)\b(` + strings.Join(quoted, "|") + `)\b`)
}

// AWSAggregator groups AWS Health Dashboard RSS updates into incidents.
type AWSAggregator struct {
	KeySeparator  string
	URLBase       string
	SeverityRules []SeverityRule
}

// NewAWSAggregator returns an aggregator with the public dashboard conventions.
func NewAWSAggregator() *AWSAggregator {
	return &AWSAggregator{
		KeySeparator:  "#",
		URLBase:       "http://status.aws.amazon.com/#",
		SeverityRules: awsSeverityRules,
	}
}

// Provider reports ProviderAWS.
func (a *AWSAggregator) Provider() Provider { return ProviderAWS }

type feedUpdate struct {
	at    time.Time
	title string
}

// Aggregate parses an RSS document and builds one incident per incident key.
// The window spans the earliest to the latest update; title and severity come
// from the latest update.
func (a *AWSAggregator) Aggregate(payload []byte, query Window) (Aggregation, error) {
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(payload))
	if err != nil {
		return Aggregation{}, fmt.Errorf("parse aws feed: %w", err)
	}

	var agg Aggregation
	grouped := make(map[string][]feedUpdate)
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		guid := strings.TrimSpace(item.GUID)
		at, ok := itemTimestamp(item)
		if guid == "" || !ok {
			agg.Skipped++
			continue
		}
		key := a.IncidentKey(guid)
		grouped[key] = append(grouped[key], feedUpdate{at: at, title: strings.TrimSpace(item.Title)})
	}

	keys := make([]string, 0, len(grouped))
	for k := range grouped {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		updates := grouped[key]
		sort.SliceStable(updates, func(i, j int) bool { return updates[i].at.Before(updates[j].at) })
		latestUpdate := updates[len(updates)-1]

		agg.appendClamped(Incident{
			Provider:   ProviderAWS,
			IncidentID: key,
			Title:      latestUpdate.title,
			Start:      updates[0].at,
			End:        latestUpdate.at,
			Severity:   a.Severity(latestUpdate.title),
			URL:        a.URLBase + key,
		}, query)
	}
	return agg, nil
}

// IncidentKey extracts the incident key from an RSS guid: the text after the
// first separator, or the whole guid when there is none.
func (a *AWSAggregator) IncidentKey(guid string) string {
	if _, after, found := strings.Cut(guid, a.KeySeparator); found {
		return strings.TrimSpace(after)
	}
	return strings.TrimSpace(guid)
}

// Severity returns the label of the first rule matching title, or "".
func (a *AWSAggregator) Severity(title string) string {
	for _, r := range a.SeverityRules {
		if r.Pattern.MatchString(title) {
			return r.Label
		}
	}
	return ""
}

// itemTimestamp prefers the published date over the updated date. The raw
// string is parsed first so zone abbreviations resolve consistently.
func itemTimestamp(item *gofeed.Item) (time.Time, bool) {
	candidates := []struct {
		raw    string
		parsed *time.Time
	}{
		{item.Published, item.PublishedParsed},
		{item.Updated, item.UpdatedParsed},
	}
	for _, c := range candidates {
		if t, ok, err := ParseTimestamp(c.raw); err == nil && ok {
			return t, true
		}
		if t, ok := NormalizeTime(c.parsed); ok {
			return t, true
		}
	}
	return time.Time{}, false
}
