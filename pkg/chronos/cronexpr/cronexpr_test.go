package cronexpr

import (
	"testing"
	"time"
)

func mustParse(t *testing.T, expr string) *Expression {
	t.Helper()
	e, err := Parse(expr)
	if err != nil {
		t.Fatalf("Parse(%q) = %v", expr, err)
	}
	return e
}

func TestParseRejectsWrongFieldCount(t *testing.T) {
	_, err := Parse("* * * *")
	if err == nil {
		t.Fatal("expected error for a four-field expression")
	}
	fe, ok := err.(*FieldError)
	if !ok || fe.Kind != InvalidFormat {
		t.Fatalf("want InvalidFormat, got %#v", err)
	}
}

func TestFieldErrorClassification(t *testing.T) {
	cases := []struct {
		expr string
		kind ErrorKind
	}{
		{"60 * * * *", OutOfRange},
		{"*/0 * * * *", InvalidStep},
		{"10-5 * * * *", InvalidRange},
		{"x * * * *", InvalidFormat},
	}
	for _, tc := range cases {
		_, err := Parse(tc.expr)
		if err == nil {
			t.Fatalf("Parse(%q): expected error", tc.expr)
		}
		fe, ok := err.(*FieldError)
		if !ok {
			t.Fatalf("Parse(%q): want *FieldError, got %T", tc.expr, err)
		}
		if fe.Kind != tc.kind {
			t.Fatalf("Parse(%q): want %s, got %s", tc.expr, tc.kind, fe.Kind)
		}
	}
}

func TestExpandWildcardAndStep(t *testing.T) {
	e := mustParse(t, "*/15 * * * *")
	want := []int{0, 15, 30, 45}
	if len(e.Minute.Values) != len(want) {
		t.Fatalf("got %v, want %v", e.Minute.Values, want)
	}
	for i, v := range want {
		if e.Minute.Values[i] != v {
			t.Fatalf("got %v, want %v", e.Minute.Values, want)
		}
	}
}

func TestDayUnionSemantics(t *testing.T) {
	// "0 0 1 * 1" fires on the 1st of the month OR every Monday.
	e := mustParse(t, "0 0 1 * 1")
	if !e.DayMatches(1, 2) { // day-of-month matches (1st), arbitrary weekday
		t.Fatal("expected dom match to satisfy the union")
	}
	if !e.DayMatches(15, 1) { // weekday matches (Monday=1), arbitrary day
		t.Fatal("expected dow match to satisfy the union")
	}
	if e.DayMatches(15, 2) {
		t.Fatal("neither field matches; should not satisfy the union")
	}
}

func TestDayOnlyOneRestricted(t *testing.T) {
	// dom restricted, dow wildcard: only dom governs.
	e := mustParse(t, "0 0 15 * *")
	if !e.DayMatches(15, 3) {
		t.Fatal("dom=15 should match regardless of weekday")
	}
	if e.DayMatches(16, 3) {
		t.Fatal("dom=16 should not match")
	}
}

// S1: cron next fire across a boundary.
func TestNextFireAcrossBoundary(t *testing.T) {
	e := mustParse(t, "0 9 * * *")
	from := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

	next, ok := e.Next(from, "")
	if !ok {
		t.Fatal("expected a match")
	}
	want := time.Date(2024, 1, 16, 9, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("got %v, want %v", next, want)
	}

	times := e.NextN(from, "", 3)
	if len(times) != 3 {
		t.Fatalf("expected 3 fire times, got %d", len(times))
	}
	for i := 1; i < len(times); i++ {
		if !times[i].After(times[i-1]) {
			t.Fatalf("fire times not strictly increasing: %v", times)
		}
		if times[i].Hour() != times[0].Hour() || times[i].Minute() != times[0].Minute() {
			t.Fatalf("fire times not at the same minute/hour: %v", times)
		}
	}
}

// Property 1 & 2: strict monotonicity and self-consistency.
func TestPropertyMonotonicAndMatches(t *testing.T) {
	exprs := []string{"*/7 * * * *", "0 9 * * 1-5", "30 2 1,15 * *", "0 0 1 1 *"}
	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	for _, expr := range exprs {
		e := mustParse(t, expr)
		first, ok := e.Next(from, "")
		if !ok {
			t.Fatalf("%s: expected a match", expr)
		}
		second, ok := e.Next(first, "")
		if !ok {
			t.Fatalf("%s: expected a second match", expr)
		}
		if !second.After(first) {
			t.Fatalf("%s: not strictly monotonic: %v -> %v", expr, first, second)
		}
		if !e.Matches(first, "") {
			t.Fatalf("%s: computed next-fire %v does not self-match", expr, first)
		}
	}
}

func TestParseRoundTrip(t *testing.T) {
	e := mustParse(t, "*/5 9-17 * * 1-5")
	again := mustParse(t, e.Format())
	if again.Minute.Raw != e.Minute.Raw || again.Dow.Raw != e.Dow.Raw {
		t.Fatalf("round trip mismatch: %q vs %q", e.Format(), again.Format())
	}
}

func TestDescribe(t *testing.T) {
	cases := map[string]string{
		"* * * * *":     "every minute",
		"*/5 * * * *":   "every 5 minutes",
		"0 9 * * 1-5":   "weekdays at 9:00",
		"0 9 * * *":     "at 9:00",
		"0 0 1 * *":     "at 0:00 on day 1",
	}
	for expr, want := range cases {
		e := mustParse(t, expr)
		if got := e.Describe(); got != want {
			t.Errorf("Describe(%q) = %q, want %q", expr, got, want)
		}
	}
}

func TestNamedAliases(t *testing.T) {
	e := mustParse(t, "0 0 1 jan sun")
	if e.Month.Values[0] != 1 {
		t.Fatalf("jan should resolve to 1, got %v", e.Month.Values)
	}
	if e.Dow.Values[0] != 0 {
		t.Fatalf("sun should resolve to 0, got %v", e.Dow.Values)
	}
}
