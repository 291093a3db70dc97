// Package timex turns the loosely shaped time values found in service
// payloads into canonical epoch milliseconds.
package timex

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// SecondsThreshold separates epoch seconds from epoch milliseconds. A
// positive number below it is read as seconds; anything else as
// milliseconds. Payloads contain both, and this is the only discriminator.
const SecondsThreshold = 1e12

var ErrInvalidTimestamp = errors.New("invalid timestamp")

// Layouts tried in order for string input. Zone-less layouts are UTC.
var layouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02",
}

// ToCanonicalMs converts raw into epoch milliseconds. nil, NaN, infinities,
// unparseable strings and numbers outside int64 fail with
// ErrInvalidTimestamp; nothing becomes 0 silently.
//
// Feeding a result back in returns it unchanged for instants from
// 2001-09-09T01:46:40Z (SecondsThreshold ms) onwards. An earlier positive
// result is below the threshold and would be read again as seconds.
func ToCanonicalMs(raw any) (int64, error) {
	switch v := raw.(type) {
	case nil:
		return 0, ErrInvalidTimestamp
	case time.Time:
		if v.IsZero() {
			return 0, ErrInvalidTimestamp
		}
		return v.UnixMilli(), nil
	case *time.Time:
		if v == nil {
			return 0, ErrInvalidTimestamp
		}
		return ToCanonicalMs(*v)
	case string:
		return parseString(v)
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return fromInt(i), nil
		}
		f, err := v.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidTimestamp, v.String())
		}
		return fromFloat(f)
	case int:
		return fromInt(int64(v)), nil
	case int32:
		return fromInt(int64(v)), nil
	case int64:
		return fromInt(v), nil
	case uint:
		return fromInt(int64(v)), nil
	case uint32:
		return fromInt(int64(v)), nil
	case uint64:
		if v > math.MaxInt64 {
			return 0, ErrInvalidTimestamp
		}
		return fromInt(int64(v)), nil
	case float32:
		return fromFloat(float64(v))
	case float64:
		return fromFloat(v)
	}
	return 0, fmt.Errorf("%w: unsupported type %T", ErrInvalidTimestamp, raw)
}

func fromInt(n int64) int64 {
	if n > 0 && n < SecondsThreshold {
		return n * 1000
	}
	return n
}

func fromFloat(f float64) (int64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, ErrInvalidTimestamp
	}
	// outside int64 the conversion below is undefined
	if f >= math.MaxInt64 || f < math.MinInt64 {
		return 0, fmt.Errorf("%w: %g out of range", ErrInvalidTimestamp, f)
	}
	if f > 0 && f < SecondsThreshold {
		return int64(math.Round(f * 1000)), nil
	}
	return int64(math.Round(f)), nil
}

func parseString(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidTimestamp
	}
	// Numeric strings are common for epoch values.
	if n := json.Number(s); isNumeric(s) {
		return ToCanonicalMs(n)
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UnixMilli(), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidTimestamp, s)
}

func isNumeric(s string) bool {
	seenDigit := false
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9':
			seenDigit = true
		case r == '-' && i == 0, r == '.', r == 'e', r == 'E', r == '+':
		default:
			return false
		}
	}
	return seenDigit
}

// FromJSON decodes a raw payload value (number, string or null) and
// normalizes it.
func FromJSON(raw json.RawMessage) (int64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, ErrInvalidTimestamp
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidTimestamp, err)
	}
	return ToCanonicalMs(v)
}

// First normalizes the first present value among candidates, in order.
// Payloads name their time field timestamp, ts or time interchangeably.
func First(candidates ...json.RawMessage) (int64, error) {
	for _, c := range candidates {
		c = bytes.TrimSpace(c)
		if len(c) == 0 || bytes.Equal(c, []byte("null")) {
			continue
		}
		return FromJSON(c)
	}
	return 0, ErrInvalidTimestamp
}
