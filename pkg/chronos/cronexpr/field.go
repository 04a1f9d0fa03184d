// Package cronexpr parses, validates, expands, describes, and computes the
// next fire time of a five-field cron expression (minute hour
// day-of-month month day-of-week): wildcard, comma-list, range, step, and
// three-letter month/day-of-week aliases, with the classical Vixie-cron
// union rule when both day fields are restricted.
//
// The field-level parser, validator, and describer below are hand-written,
// since no available library exposes per-field error classification
// (INVALID_FORMAT / OUT_OF_RANGE / INVALID_STEP / INVALID_RANGE) or a
// Describe() sentence, so there is nothing to delegate to for that surface.
// The actual next-fire walk, where the tricky union semantics live, is
// delegated to github.com/robfig/cron/v3 (see nextfire.go) once a field has
// validated, since that library already implements the identical rule
// correctly.
package cronexpr

import (
	"fmt"
	"strconv"
	"strings"
)

// ErrorKind classifies why a single cron field failed to parse.
type ErrorKind string

const (
	InvalidFormat ErrorKind = "INVALID_FORMAT"
	OutOfRange    ErrorKind = "OUT_OF_RANGE"
	InvalidStep   ErrorKind = "INVALID_STEP"
	InvalidRange  ErrorKind = "INVALID_RANGE"
)

// FieldName identifies which of the five fields an error belongs to.
type FieldName string

const (
	FieldMinute FieldName = "minute"
	FieldHour   FieldName = "hour"
	FieldDom    FieldName = "dom"
	FieldMonth  FieldName = "month"
	FieldDow    FieldName = "dow"
)

// FieldError reports a single field's parse failure.
type FieldError struct {
	Field FieldName
	Kind  ErrorKind
	Raw   string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("cron field %s (%q): %s", e.Field, e.Raw, e.Kind)
}

// bounds describes the domain of a field.
type bounds struct {
	min, max int
	names    map[string]int
}

var (
	minuteBounds = bounds{min: 0, max: 59}
	hourBounds   = bounds{min: 0, max: 23}
	domBounds    = bounds{min: 1, max: 31}
	monthBounds  = bounds{min: 1, max: 12, names: map[string]int{
		"jan": 1, "feb": 2, "mar": 3, "apr": 4, "may": 5, "jun": 6,
		"jul": 7, "aug": 8, "sep": 9, "oct": 10, "nov": 11, "dec": 12,
	}}
	dowBounds = bounds{min: 0, max: 6, names: map[string]int{
		"sun": 0, "mon": 1, "tue": 2, "wed": 3, "thu": 4, "fri": 5, "sat": 6,
	}}
)

// Field holds the parsed-and-expanded state of one cron field.
type Field struct {
	Name     FieldName
	Raw      string
	Wildcard bool
	Values   []int // sorted, unique, within the field's domain
}

// parseField validates and expands a single comma-separated field.
func parseField(name FieldName, raw string, b bounds) (Field, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Field{}, &FieldError{Field: name, Kind: InvalidFormat, Raw: raw}
	}

	f := Field{Name: name, Raw: raw}
	set := make(map[int]struct{})

	parts := strings.Split(raw, ",")
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			return Field{}, &FieldError{Field: name, Kind: InvalidFormat, Raw: raw}
		}
		if part == "*" {
			f.Wildcard = true
			for v := b.min; v <= b.max; v++ {
				set[v] = struct{}{}
			}
			continue
		}

		base, step, hasStep, err := splitStep(part)
		if err != nil {
			return Field{}, &FieldError{Field: name, Kind: InvalidFormat, Raw: raw}
		}
		if hasStep && step < 1 {
			return Field{}, &FieldError{Field: name, Kind: InvalidStep, Raw: raw}
		}

		var lo, hi int
		switch {
		case base == "*":
			lo, hi = b.min, b.max
			// robfig/cron keeps its star bit for "*/1" since the step
			// covers every value in range; DayMatches must agree or the
			// two union-rule paths can diverge on this field.
			if step == 1 {
				f.Wildcard = true
			}
		case strings.Contains(base, "-"):
			a, z, ok := splitRange(base, b)
			if !ok {
				return Field{}, &FieldError{Field: name, Kind: InvalidRange, Raw: raw}
			}
			if a > z {
				return Field{}, &FieldError{Field: name, Kind: InvalidRange, Raw: raw}
			}
			if a < b.min || z > b.max {
				return Field{}, &FieldError{Field: name, Kind: OutOfRange, Raw: raw}
			}
			lo, hi = a, z
		default:
			v, ok := resolveValue(base, b)
			if !ok {
				return Field{}, &FieldError{Field: name, Kind: InvalidFormat, Raw: raw}
			}
			if v < b.min || v > b.max {
				return Field{}, &FieldError{Field: name, Kind: OutOfRange, Raw: raw}
			}
			if !hasStep {
				set[v] = struct{}{}
				continue
			}
			lo, hi = v, b.max
		}

		if !hasStep {
			for v := lo; v <= hi; v++ {
				set[v] = struct{}{}
			}
			continue
		}
		for v := lo; v <= hi; v += step {
			set[v] = struct{}{}
		}
	}

	f.Values = sortedKeys(set)
	if len(f.Values) == 0 {
		return Field{}, &FieldError{Field: name, Kind: InvalidFormat, Raw: raw}
	}
	return f, nil
}

// splitStep splits "base/k" into (base, k, true) or returns (part, 0, false)
// when there is no step suffix.
func splitStep(part string) (string, int, bool, error) {
	idx := strings.IndexByte(part, '/')
	if idx < 0 {
		return part, 0, false, nil
	}
	base := part[:idx]
	stepStr := part[idx+1:]
	if base == "" || stepStr == "" {
		return "", 0, false, fmt.Errorf("malformed step")
	}
	step, err := strconv.Atoi(stepStr)
	if err != nil {
		return "", 0, false, err
	}
	return base, step, true, nil
}

// splitRange parses "a-b" against the field's domain, resolving names.
func splitRange(base string, b bounds) (int, int, bool) {
	idx := strings.IndexByte(base, '-')
	if idx <= 0 || idx == len(base)-1 {
		return 0, 0, false
	}
	a, ok1 := resolveValue(base[:idx], b)
	z, ok2 := resolveValue(base[idx+1:], b)
	if !ok1 || !ok2 {
		return 0, 0, false
	}
	return a, z, true
}

// resolveValue turns a numeric literal or a three-letter alias into an int.
func resolveValue(s string, b bounds) (int, bool) {
	s = strings.TrimSpace(s)
	if b.names != nil {
		if v, ok := b.names[strings.ToLower(s)]; ok {
			return v, true
		}
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return v, true
}

func sortedKeys(set map[int]struct{}) []int {
	out := make([]int, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	// insertion sort is fine; field domains are at most 60 elements.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] > out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}
