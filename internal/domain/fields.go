package domain

import (
	"time"

	"github.com/tidwall/gjson"
)

// firstString returns the first non-empty string among the named fields.
func firstString(obj gjson.Result, fields []string) string {
	for _, f := range fields {
		if v := obj.Get(f); v.Exists() && v.Type != gjson.Null {
			if s := v.String(); s != "" {
				return s
			}
		}
	}
	return ""
}

// firstTime returns the first named field that holds a parseable timestamp.
// Fields that are missing, empty or unparseable are passed over.
func firstTime(obj gjson.Result, fields []string) (time.Time, bool) {
	for _, f := range fields {
		v := obj.Get(f)
		if !v.Exists() || v.Type == gjson.Null {
			continue
		}
		if t, ok, err := ParseTimestamp(v.String()); err == nil && ok {
			return t, true
		}
	}
	return time.Time{}, false
}
