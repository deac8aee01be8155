package sesevent

import (
	"fmt"
	"strings"
	"time"
)

// Payload values come from encoding/json, so objects are map[string]any
// and arrays are []any. Every accessor tolerates missing keys and
// unexpected shapes by returning the zero value.

func mapAt(m map[string]any, key string) map[string]any {
	if m == nil {
		return nil
	}
	v, _ := m[key].(map[string]any)
	return v
}

func stringAt(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	v, _ := m[key].(string)
	return v
}

func listAt(m map[string]any, key string) []any {
	if m == nil {
		return nil
	}
	v, _ := m[key].([]any)
	return v
}

// stringList returns the string elements of m[key]; other elements are skipped.
func stringList(m map[string]any, key string) []string {
	var out []string
	for _, v := range listAt(m, key) {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// addressList returns m[key][].emailAddress. An object without an address
// still counts as a recipient with an empty address.
func addressList(m map[string]any, key string) []string {
	var out []string
	for _, v := range listAt(m, key) {
		obj, ok := v.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, stringAt(obj, "emailAddress"))
	}
	return out
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// ParseTimestamp parses an ISO-8601 timestamp. Values without a zone are
// taken as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
