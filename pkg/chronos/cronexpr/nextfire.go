package cronexpr

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

var standardParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Next advances to the next minute boundary strictly after from at which
// every field matches, optionally interpreting the fields against the wall
// clock of the named IANA zone (empty means from's own location). The
// search is bounded (robfig/cron's standard Schedule gives up after five
// years of no match); the second return is false when nothing matches
// within that horizon.
func (e *Expression) Next(from time.Time, tz string) (time.Time, bool) {
	spec := e.Raw
	if tz != "" {
		spec = fmt.Sprintf("CRON_TZ=%s %s", tz, e.Raw)
	}

	sched, err := standardParser.Parse(spec)
	if err != nil {
		// The fields already passed our own classified validation; a
		// failure here would mean robfig disagrees about syntax we
		// accepted (e.g. an alias it doesn't know). Treat as no match
		// rather than panicking the caller.
		return time.Time{}, false
	}

	next := sched.Next(from)
	if next.IsZero() {
		return time.Time{}, false
	}
	return next, true
}

// NextN returns the next n fire times strictly after from, each one
// strictly later than the last (used by getNextCronTimes-style callers and
// by the strict-monotonicity property test).
func (e *Expression) NextN(from time.Time, tz string, n int) []time.Time {
	out := make([]time.Time, 0, n)
	cursor := from
	for i := 0; i < n; i++ {
		next, ok := e.Next(cursor, tz)
		if !ok {
			break
		}
		out = append(out, next)
		cursor = next
	}
	return out
}

// Matches reports whether the wall-clock instant t, interpreted in the
// given IANA zone (empty means t's own location), satisfies every field of
// e, applying the Vixie-cron day union rule from DayMatches. t must fall
// on an exact minute boundary to match, matching cron's own granularity.
func (e *Expression) Matches(t time.Time, tz string) bool {
	loc := t.Location()
	if tz != "" {
		if l, err := time.LoadLocation(tz); err == nil {
			loc = l
		}
	}
	local := t.In(loc)

	if local.Second() != 0 || local.Nanosecond() != 0 {
		return false
	}
	if !containsInt(e.Minute.Values, local.Minute()) {
		return false
	}
	if !containsInt(e.Hour.Values, local.Hour()) {
		return false
	}
	if !containsInt(e.Month.Values, int(local.Month())) {
		return false
	}
	return e.DayMatches(local.Day(), int(local.Weekday()))
}
