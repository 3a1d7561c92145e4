// Package validation turns untyped request payloads into typed inputs.
//
// Every validator checks its fields in a fixed order and returns the first violated rule
// as an *Error. Validators never touch storage.
package validation

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxID is the largest accepted reference id.
const MaxID = 9999999999

// Bag is a decoded JSON object of unknown shape.
type Bag map[string]any

// Error describes the first rule a payload violated.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func fail(field, format string, args ...any) *Error {
	return &Error{Field: field, Message: fmt.Sprintf("%q ", field) + fmt.Sprintf(format, args...)}
}

// Nullable records a key that may be absent, explicitly null (Value nil), or set.
type Nullable[T any] struct {
	Set   bool
	Value *T
}

func (b Bag) has(key string) bool {
	_, ok := b[key]
	return ok
}

// allowOnly rejects keys outside allowed. Unknown keys are reported in sorted order.
func (b Bag) allowOnly(allowed ...string) error {
	known := make(map[string]bool, len(allowed))
	for _, key := range allowed {
		known[key] = true
	}
	var unknown []string
	for key := range b {
		if !known[key] {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	sort.Strings(unknown)
	return fail(unknown[0], "is not allowed")
}

// atLeastOne rejects an empty patch.
func (b Bag) atLeastOne(keys ...string) error {
	for _, key := range keys {
		if b.has(key) {
			return nil
		}
	}
	return &Error{Field: "value", Message: fmt.Sprintf(`"value" must contain at least one of [%s]`, strings.Join(keys, ", "))}
}

// stringField reads key as a string. A missing key returns present=false.
func (b Bag) stringField(key string, required bool) (value string, present bool, err error) {
	raw, ok := b[key]
	if !ok {
		if required {
			return "", false, fail(key, "is required")
		}
		return "", false, nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", true, fail(key, "must be a string")
	}
	return s, true, nil
}

// nullableString reads key as a string or null.
func (b Bag) nullableString(key string) (Nullable[string], error) {
	raw, ok := b[key]
	if !ok {
		return Nullable[string]{}, nil
	}
	if raw == nil {
		return Nullable[string]{Set: true}, nil
	}
	s, ok := raw.(string)
	if !ok {
		return Nullable[string]{}, fail(key, "must be a string")
	}
	return Nullable[string]{Set: true, Value: &s}, nil
}

func checkText(key, value string, min, max int) error {
	length := utf8.RuneCountInString(value)
	if min > 0 && strings.TrimSpace(value) == "" {
		return fail(key, "is not allowed to be empty")
	}
	if length < min {
		return fail(key, "length must be at least %d characters long", min)
	}
	if max > 0 && length > max {
		return fail(key, "length must be less than or equal to %d characters long", max)
	}
	return nil
}

// number converts a decoded JSON value to float64.
func number(key string, raw any) (float64, error) {
	switch v := raw.(type) {
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, fail(key, "must be a number")
		}
		return f, nil
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint:
		return float64(v), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fail(key, "must be a number")
		}
		return f, nil
	default:
		return 0, fail(key, "must be a number")
	}
}

func integer(key string, raw any) (int64, error) {
	f, err := number(key, raw)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, fail(key, "must be an integer")
	}
	// Saturate so callers' range checks still see the sign and size.
	switch {
	case f >= math.MaxInt64:
		return math.MaxInt64, nil
	case f <= math.MinInt64:
		return math.MinInt64, nil
	}
	return int64(f), nil
}

func boundedFloat(key string, raw any, min, max float64) (float64, error) {
	f, err := number(key, raw)
	if err != nil {
		return 0, err
	}
	if f < min {
		return 0, fail(key, "must be greater than or equal to %s", strconv.FormatFloat(min, 'f', -1, 64))
	}
	if f > max {
		return 0, fail(key, "must be less than or equal to %s", strconv.FormatFloat(max, 'f', -1, 64))
	}
	return f, nil
}

// ID validates a reference id taken from a body, path or query value.
func ID(key string, raw any) (uint, error) {
	n, err := integer(key, raw)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fail(key, "must be a positive number")
	}
	if n > MaxID {
		return 0, fail(key, "must be less than or equal to %d", int64(MaxID))
	}
	return uint(n), nil
}

func (b Bag) nullableID(key string) (Nullable[uint], error) {
	raw, ok := b[key]
	if !ok {
		return Nullable[uint]{}, nil
	}
	if raw == nil {
		return Nullable[uint]{Set: true}, nil
	}
	id, err := ID(key, raw)
	if err != nil {
		return Nullable[uint]{}, err
	}
	return Nullable[uint]{Set: true, Value: &id}, nil
}

func (b Bag) nullableFloat(key string, min, max float64) (Nullable[float64], error) {
	raw, ok := b[key]
	if !ok {
		return Nullable[float64]{}, nil
	}
	if raw == nil {
		return Nullable[float64]{Set: true}, nil
	}
	f, err := boundedFloat(key, raw, min, max)
	if err != nil {
		return Nullable[float64]{}, err
	}
	return Nullable[float64]{Set: true, Value: &f}, nil
}

func (b Bag) boolField(key string) (*bool, error) {
	raw, ok := b[key]
	if !ok {
		return nil, nil
	}
	v, ok := raw.(bool)
	if !ok {
		return nil, fail(key, "must be a boolean")
	}
	return &v, nil
}

// dateLayouts are tried in order when parsing dates.
var dateLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"}

func parseDate(key string, raw any) (time.Time, error) {
	s, ok := raw.(string)
	if !ok {
		return time.Time{}, fail(key, "must be a valid date")
	}
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fail(key, "must be a valid date")
}

func (b Bag) nullableDate(key string) (Nullable[time.Time], error) {
	raw, ok := b[key]
	if !ok {
		return Nullable[time.Time]{}, nil
	}
	if raw == nil {
		return Nullable[time.Time]{Set: true}, nil
	}
	t, err := parseDate(key, raw)
	if err != nil {
		return Nullable[time.Time]{}, err
	}
	return Nullable[time.Time]{Set: true, Value: &t}, nil
}
