package roster

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Cell converters. Spreadsheet cells arrive as raw strings; each converter
// coerces one into a typed value and falls back to the provided default on
// blank or unparseable input. They never fail.

// ToString returns the trimmed cell value, or def when blank.
func ToString(v, def string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return def
	}
	return v
}

// ToNumber parses the cell as a float, or returns def.
func ToNumber(v string, def float64) float64 {
	v = strings.TrimSpace(v)
	if v == "" {
		return def
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return n
}

// ToInt parses the cell as an integer, or returns def. A cell holding a
// float (spreadsheets love "42.0") is truncated.
func ToInt(v string, def int) int {
	v = strings.TrimSpace(v)
	if v == "" {
		return def
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return int(f)
	}
	return def
}

// ToBool accepts true/1/yes and false/0/no case-insensitively; anything
// else (including blank) yields def.
func ToBool(v string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	}
	return def
}

// ToStringSlice parses the cell as a JSON array; a non-JSON scalar becomes a
// one-element slice; blank yields def.
func ToStringSlice(v string, def []string) []string {
	v = strings.TrimSpace(v)
	if v == "" {
		return def
	}

	var raw []interface{}
	if err := json.Unmarshal([]byte(v), &raw); err == nil {
		out := make([]string, 0, len(raw))
		for _, el := range raw {
			if s, ok := el.(string); ok {
				out = append(out, s)
			} else {
				out = append(out, fmt.Sprint(el))
			}
		}
		return out
	}
	// not a JSON array: treat the whole cell as a single element
	return []string{v}
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006",
}

// ToTime parses the cell as a timestamp. Missing or invalid input yields the
// given default, or the current time (UTC) when no default is provided.
func ToTime(v string, def ...time.Time) time.Time {
	v = strings.TrimSpace(v)
	if v != "" {
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, v); err == nil {
				return t.UTC()
			}
		}
	}
	if len(def) > 0 {
		return def[0]
	}
	return time.Now().UTC()
}
