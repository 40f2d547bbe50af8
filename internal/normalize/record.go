package normalize

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// record is one raw JSON object whose fields are decoded lazily so a single
// malformed field never spoils the rest of the object.
type record map[string]json.RawMessage

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

func decodeRecord(raw []byte) (record, bool) {
	var r record
	if err := json.Unmarshal(raw, &r); err != nil || r == nil {
		return nil, false
	}
	return r, true
}

// decodeArray returns the elements of a JSON array, or nil for anything else
func decodeArray(raw []byte) []json.RawMessage {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	return items
}

func (r record) has(key string) bool {
	raw, ok := r[key]
	return ok && string(raw) != "null"
}

// str returns the first non-empty string found under keys. Numbers are
// accepted and rendered in their JSON form.
func (r record) str(keys ...string) string {
	for _, key := range keys {
		raw, ok := r[key]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
			continue
		}
		var n json.Number
		if err := json.Unmarshal(raw, &n); err == nil {
			return n.String()
		}
	}
	return ""
}

func (r record) number(key string) (float64, bool) {
	raw, ok := r[key]
	if !ok {
		return 0, false
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, false
	}
	f, err := n.Float64()
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// count decodes a non-negative counter, defaulting to 0. MaxInt64 rounds
// up to 2^63 as a float64, so the bound must be exclusive.
func (r record) count(key string) int64 {
	f, ok := r.number(key)
	if !ok || f < 0 || f >= math.MaxInt64 {
		return 0
	}
	return int64(f)
}

func (r record) port(key string) int {
	f, ok := r.number(key)
	if !ok || f < 0 || f > 65535 {
		return 0
	}
	return int(f)
}

func (r record) seconds(key string) float64 {
	f, ok := r.number(key)
	if !ok || f < 0 {
		return 0
	}
	return f
}

// time accepts RFC 3339 style strings and unix seconds
func (r record) time(key string) time.Time {
	if f, ok := r.number(key); ok {
		if f <= 0 || f > math.MaxInt32*4 {
			return time.Time{}
		}
		sec, frac := math.Modf(f)
		return time.Unix(int64(sec), int64(frac*1e9)).UTC()
	}
	s := r.str(key)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// flag renders a classification flag that may arrive as bool, number or string
func (r record) flag(key string) string {
	raw, ok := r[key]
	if !ok {
		return ""
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return strconv.FormatBool(b)
	}
	return r.str(key)
}

func (r record) object(key string) (record, bool) {
	raw, ok := r[key]
	if !ok {
		return nil, false
	}
	return decodeRecord(raw)
}
