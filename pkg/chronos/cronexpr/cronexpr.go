package cronexpr

import "strings"

// Expression is a validated, expanded five-field cron expression.
type Expression struct {
	Raw    string
	Minute Field
	Hour   Field
	Dom    Field
	Month  Field
	Dow    Field
}

// Parse splits raw on whitespace, requires exactly five fields, and
// validates+expands each against its domain. The first field that fails
// determines the returned *FieldError (field parsing is cheap enough that
// scanning left to right for the first problem is sufficient; callers that
// want every problem at once can call Parse iteratively after fixing each).
func Parse(raw string) (*Expression, error) {
	fields := strings.Fields(raw)
	if len(fields) != 5 {
		return nil, &FieldError{Field: FieldMinute, Kind: InvalidFormat, Raw: raw}
	}

	minute, err := parseField(FieldMinute, fields[0], minuteBounds)
	if err != nil {
		return nil, err
	}
	hour, err := parseField(FieldHour, fields[1], hourBounds)
	if err != nil {
		return nil, err
	}
	dom, err := parseField(FieldDom, fields[2], domBounds)
	if err != nil {
		return nil, err
	}
	month, err := parseField(FieldMonth, fields[3], monthBounds)
	if err != nil {
		return nil, err
	}
	dow, err := parseField(FieldDow, fields[4], dowBounds)
	if err != nil {
		return nil, err
	}

	return &Expression{
		Raw:    raw,
		Minute: minute,
		Hour:   hour,
		Dom:    dom,
		Month:  month,
		Dow:    dow,
	}, nil
}

// Validate is Parse without the parsed result, for callers that only need
// a yes/no plus the classified error.
func Validate(raw string) error {
	_, err := Parse(raw)
	return err
}

// Format reconstructs the five-field expression string from the parsed
// fields. Re-parsing the result yields an expression with identical
// expanded value sets to e, satisfying the parse→format round-trip
// property even when whitespace in the original input was irregular.
func (e *Expression) Format() string {
	return e.Minute.Raw + " " + e.Hour.Raw + " " + e.Dom.Raw + " " + e.Month.Raw + " " + e.Dow.Raw
}

// DayMatches implements the Vixie-cron day tie-break: when both
// day-of-month and day-of-week are restricted (non-wildcard), a date
// matches if it is in *either* set (union); otherwise the single
// non-wildcard field (or neither, if both are wildcards) governs.
func (e *Expression) DayMatches(dom, dow int) bool {
	domWild := e.Dom.Wildcard
	dowWild := e.Dow.Wildcard

	switch {
	case domWild && dowWild:
		return true
	case !domWild && dowWild:
		return containsInt(e.Dom.Values, dom)
	case domWild && !dowWild:
		return containsInt(e.Dow.Values, dow)
	default:
		return containsInt(e.Dom.Values, dom) || containsInt(e.Dow.Values, dow)
	}
}

func containsInt(values []int, v int) bool {
	// values is sorted; linear scan is fine at this size (<=31 elements).
	for _, x := range values {
		if x == v {
			return true
		}
		if x > v {
			return false
		}
	}
	return false
}
