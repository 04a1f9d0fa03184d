package scheduler

import (
	"testing"
	"time"

	"github.com/jholhewres/chronos/pkg/chronos"
)

func TestParseNaturalLanguage(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		input     string
		matched   bool
		wantType  chronos.TriggerType
		wantExpr  string
		wantMs    int64
		wantRunIn time.Duration
	}{
		{"every 5 minutes", true, chronos.TriggerInterval, "", (5 * time.Minute).Milliseconds(), 0},
		{"every 30 seconds", true, chronos.TriggerInterval, "", (30 * time.Second).Milliseconds(), 0},
		{"every 2 hours", true, chronos.TriggerInterval, "", (2 * time.Hour).Milliseconds(), 0},
		{"every minute", true, chronos.TriggerInterval, "", time.Minute.Milliseconds(), 0},
		{"every hour", true, chronos.TriggerInterval, "", time.Hour.Milliseconds(), 0},
		{"every day", true, chronos.TriggerInterval, "", (24 * time.Hour).Milliseconds(), 0},

		{"daily", true, chronos.TriggerCron, "0 0 * * *", 0, 0},
		{"daily at 9:00", true, chronos.TriggerCron, "0 9 * * *", 0, 0},
		{"daily at 14:30", true, chronos.TriggerCron, "30 14 * * *", 0, 0},
		{"daily at 3pm", true, chronos.TriggerCron, "0 15 * * *", 0, 0},
		{"hourly", true, chronos.TriggerInterval, "", time.Hour.Milliseconds(), 0},

		{"weekly on monday", true, chronos.TriggerCron, "0 0 * * 1", 0, 0},
		{"weekly on sunday at 9:00", true, chronos.TriggerCron, "0 9 * * 0", 0, 0},

		{"in 5 minutes", true, chronos.TriggerOnce, "", 0, 5 * time.Minute},
		{"in 2 hours", true, chronos.TriggerOnce, "", 0, 2 * time.Hour},

		{"Every 5 Minutes", true, chronos.TriggerInterval, "", (5 * time.Minute).Milliseconds(), 0},
		{"DAILY AT 9:00", true, chronos.TriggerCron, "0 9 * * *", 0, 0},

		{"every 0 minutes", false, "", "", 0, 0},
		{"in 0 seconds", false, "", "", 0, 0},
		{"daily at 25:00", false, "", "", 0, 0},
		{"weekly on invalidday", false, "", "", 0, 0},
		{"0 9 * * *", false, "", "", 0, 0},
		{"", false, "", "", 0, 0},
		{"something random", false, "", "", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			trigger, matched := ParseNaturalLanguage(tt.input, now)
			if matched != tt.matched {
				t.Fatalf("matched = %v, want %v", matched, tt.matched)
			}
			if !matched {
				return
			}
			if trigger.Type != tt.wantType {
				t.Errorf("Type = %q, want %q", trigger.Type, tt.wantType)
			}
			switch tt.wantType {
			case chronos.TriggerInterval:
				if trigger.IntervalMs != tt.wantMs {
					t.Errorf("IntervalMs = %d, want %d", trigger.IntervalMs, tt.wantMs)
				}
			case chronos.TriggerCron:
				if trigger.Expression != tt.wantExpr {
					t.Errorf("Expression = %q, want %q", trigger.Expression, tt.wantExpr)
				}
			case chronos.TriggerOnce:
				want := now.Add(tt.wantRunIn)
				if !trigger.RunAt.Equal(want) {
					t.Errorf("RunAt = %v, want %v", trigger.RunAt, want)
				}
			}
		})
	}
}

func TestParseTimeComponents(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input  string
		hour   int
		minute int
	}{
		{"9:00", 9, 0},
		{"14:30", 14, 30},
		{"9am", 9, 0},
		{"3pm", 15, 0},
		{"3:30pm", 15, 30},
		{"12am", 0, 0},
		{"12pm", 12, 0},
		{"0:00", 0, 0},
		{"23:59", 23, 59},
		{"12:30am", 0, 30},
		{"12:30pm", 12, 30},
		{"", -1, 0},
		{"abc", -1, 0},
		{"24:00", -1, 0},
		{"9:60", -1, 0},
		{"-1:00", -1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			hour, minute := parseTimeComponents(tt.input)
			if hour != tt.hour || minute != tt.minute {
				t.Errorf("parseTimeComponents(%q) = (%d, %d), want (%d, %d)",
					tt.input, hour, minute, tt.hour, tt.minute)
			}
		})
	}
}

func TestParseDayOfWeek(t *testing.T) {
	t.Parallel()

	tests := []struct {
		day string
		dow int
	}{
		{"sunday", 0}, {"sun", 0},
		{"monday", 1}, {"mon", 1},
		{"tuesday", 2}, {"tue", 2},
		{"wednesday", 3}, {"wed", 3},
		{"thursday", 4}, {"thu", 4},
		{"friday", 5}, {"fri", 5},
		{"saturday", 6}, {"sat", 6},
		{"invalid", -1},
	}

	for _, tt := range tests {
		t.Run(tt.day, func(t *testing.T) {
			t.Parallel()
			got := parseDayOfWeek(tt.day)
			if got != tt.dow {
				t.Errorf("parseDayOfWeek(%q) = %d, want %d", tt.day, got, tt.dow)
			}
		})
	}
}

func TestUnitDuration(t *testing.T) {
	t.Parallel()

	tests := []struct {
		unit string
		n    int
		want time.Duration
		ok   bool
	}{
		{"second", 1, time.Second, true},
		{"seconds", 30, 30 * time.Second, true},
		{"minute", 1, time.Minute, true},
		{"minutes", 5, 5 * time.Minute, true},
		{"hour", 2, 2 * time.Hour, true},
		{"day", 1, 24 * time.Hour, true},
		{"unknown", 1, 0, false},
		{"minute", 0, 0, false},
	}

	for _, tt := range tests {
		got, ok := unitDuration(tt.unit, tt.n)
		if ok != tt.ok || got != tt.want {
			t.Errorf("unitDuration(%q, %d) = (%v, %v), want (%v, %v)", tt.unit, tt.n, got, ok, tt.want, tt.ok)
		}
	}
}
