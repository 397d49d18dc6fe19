// internal/provider/decode.go
package provider

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rovshanmuradov/token-scanner/internal/domain"
)

// number decodes a JSON number, numeric string, {"usd": n} object or null.
// Anything else decodes to unknown instead of failing the record.
type number struct {
	v *float64
}

func (n *number) UnmarshalJSON(b []byte) error {
	n.v = nil
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] == '{' {
		var obj struct {
			USD number `json:"usd"`
		}
		if err := json.Unmarshal(b, &obj); err == nil {
			n.v = obj.USD.v
		}
		return nil
	}
	s := strings.Trim(string(b), `"`)
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil
	}
	n.v = domain.Amount(v)
	return nil
}

// Ptr returns the decoded value or nil.
func (n number) Ptr() *float64 { return n.v }

// timestamp decodes unix seconds, unix milliseconds or RFC 3339 strings.
type timestamp struct {
	t *time.Time
}

// anything with more digits than this is treated as milliseconds
const msThreshold = 1e11

// listing times outside this window are garbage, not data
var (
	minListingTime = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	maxListingTime = time.Date(2100, 1, 1, 0, 0, 0, 0, time.UTC)
)

func plausible(t time.Time) *time.Time {
	if t.Before(minListingTime) || t.After(maxListingTime) {
		return nil
	}
	t = t.UTC()
	return &t
}

func (ts *timestamp) UnmarshalJSON(b []byte) error {
	ts.t = nil
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	s := strings.Trim(string(b), `"`)
	if s == "" {
		return nil
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		secs := v
		if v > msThreshold {
			secs = v / 1000
		}
		// диапазон проверяем до конвертации в int64, иначе переполнение
		if math.IsNaN(secs) || secs < float64(minListingTime.Unix()) || secs > float64(maxListingTime.Unix()) {
			return nil
		}
		if v > msThreshold {
			ts.t = plausible(time.UnixMilli(int64(v)))
		} else {
			ts.t = plausible(time.Unix(int64(v), 0))
		}
		return nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		ts.t = plausible(t)
		return nil
	}
	bare := strings.TrimSuffix(s, "Z")
	for _, layout := range []string{"2006-01-02T15:04:05.999999999", "2006-01-02 15:04:05"} {
		if t, err := time.ParseInLocation(layout, bare, time.UTC); err == nil {
			ts.t = plausible(t)
			return nil
		}
	}
	return nil
}

// Ptr returns the decoded time or nil.
func (ts timestamp) Ptr() *time.Time { return ts.t }

// count decodes a non-negative integer from a number or numeric string.
// Fractions and values beyond int64 decode to unknown.
type count struct {
	v *int64
}

func (c *count) UnmarshalJSON(b []byte) error {
	var n number
	_ = n.UnmarshalJSON(b)
	if n.v == nil {
		c.v = nil
		return nil
	}
	f := *n.v
	if f != math.Trunc(f) || f >= math.MaxInt64 {
		c.v = nil
		return nil
	}
	v := int64(f)
	c.v = &v
	return nil
}

// Ptr returns the decoded count or nil.
func (c count) Ptr() *int64 { return c.v }

// firstOf returns the first known value.
func firstOf(values ...number) *float64 {
	for _, v := range values {
		if v.v != nil {
			return v.v
		}
	}
	return nil
}

// decodeEach decodes every raw entry into T via parse, dropping the ones that
// fail. It returns the survivors and how many were dropped.
func decodeEach[T any](raw []json.RawMessage, parse func(json.RawMessage) (T, error)) ([]T, int) {
	out := make([]T, 0, len(raw))
	skipped := 0
	for _, r := range raw {
		v, err := parse(r)
		if err != nil {
			skipped++
			continue
		}
		out = append(out, v)
	}
	return out, skipped
}
