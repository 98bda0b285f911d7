package model

import (
	"encoding/json"
	"time"
)

// Document is an open key/value metadata map. Values are restricted by
// construction to JSON-representable shapes (string, number, bool, nested
// map/slice); Sanitize coerces anything else through a JSON round trip.
type Document map[string]any

// Encode serializes the document to its stored JSON form.
func (d Document) Encode() string {
	if len(d) == 0 {
		return "{}"
	}
	b, err := json.Marshal(d)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// DecodeDocument parses the stored JSON form, returning an empty document on
// malformed input.
func DecodeDocument(s string) Document {
	if s == "" {
		return Document{}
	}
	var d Document
	if err := json.Unmarshal([]byte(s), &d); err != nil {
		return Document{}
	}
	return d
}

// Sanitize forces every value into a JSON-safe shape. Types json cannot
// express are dropped rather than stored as opaque strings.
func (d Document) Sanitize() Document {
	out := make(Document, len(d))
	for k, v := range d {
		b, err := json.Marshal(v)
		if err != nil {
			continue
		}
		var safe any
		if err := json.Unmarshal(b, &safe); err != nil {
			continue
		}
		out[k] = safe
	}
	return out
}

// StringFromAny extracts a string value from loosely typed metadata.
func StringFromAny(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

// FloatFromAny extracts a numeric value from loosely typed metadata.
func FloatFromAny(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case float32:
		return float64(t)
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case json.Number:
		f, _ := t.Float64()
		return f
	}
	return 0
}

// TimeFromAny extracts a timestamp from loosely typed metadata.
func TimeFromAny(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		if ts, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return ts
		}
	}
	return time.Time{}
}
