// nlp_schedule.go parses natural-language schedule phrases (as a task
// creation UI would accept) into a chronos.TaskTrigger. Falls through with
// ok=false if no pattern matches, letting the caller fall back to a raw
// cron expression or ISO timestamp.
package scheduler

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jholhewres/chronos/pkg/chronos"
)

// ParseNaturalLanguage attempts to interpret a natural language schedule
// expression as of now (used to resolve "in N minutes" relative phrases).
//
// Supported patterns:
//   - "every N minutes/hours/days" -> interval trigger
//   - "every minute/hour/day" -> interval trigger
//   - "daily at HH:MM" -> cron trigger
//   - "weekly on Monday [at HH:MM]" -> cron trigger
//   - "hourly" / "daily" -> cron/interval trigger
//   - "in N minutes/hours" -> once trigger
func ParseNaturalLanguage(input string, now time.Time) (chronos.TaskTrigger, bool) {
	normalized := strings.TrimSpace(strings.ToLower(input))
	if normalized == "" {
		return chronos.TaskTrigger{}, false
	}

	if m := reEveryInterval.FindStringSubmatch(normalized); m != nil {
		n, _ := strconv.Atoi(m[1])
		if d, ok := unitDuration(m[2], n); ok {
			return intervalTrigger(d), true
		}
	}

	if m := reEverySingular.FindStringSubmatch(normalized); m != nil {
		if d, ok := unitDuration(m[1], 1); ok {
			return intervalTrigger(d), true
		}
	}

	if m := reDailyAt.FindStringSubmatch(normalized); m != nil {
		hour, minute := parseTimeComponents(m[1])
		if hour >= 0 {
			return cronTrigger(fmt.Sprintf("%d %d * * *", minute, hour)), true
		}
	}

	if normalized == "daily" {
		return cronTrigger("0 0 * * *"), true
	}

	if normalized == "hourly" {
		return intervalTrigger(time.Hour), true
	}

	if m := reWeeklyOn.FindStringSubmatch(normalized); m != nil {
		dow := parseDayOfWeek(m[1])
		if dow >= 0 {
			hour, minute := 0, 0
			if m[2] != "" {
				if h, mi := parseTimeComponents(m[2]); h >= 0 {
					hour, minute = h, mi
				}
			}
			return cronTrigger(fmt.Sprintf("%d %d * * %d", minute, hour, dow)), true
		}
	}

	if m := reInDuration.FindStringSubmatch(normalized); m != nil {
		n, _ := strconv.Atoi(m[1])
		if d, ok := unitDuration(m[2], n); ok {
			return chronos.TaskTrigger{Type: chronos.TriggerOnce, RunAt: now.Add(d)}, true
		}
	}

	return chronos.TaskTrigger{}, false
}

func intervalTrigger(d time.Duration) chronos.TaskTrigger {
	return chronos.TaskTrigger{Type: chronos.TriggerInterval, IntervalMs: d.Milliseconds()}
}

func cronTrigger(expr string) chronos.TaskTrigger {
	return chronos.TaskTrigger{Type: chronos.TriggerCron, Expression: expr}
}

// ---------- Regex patterns ----------

var (
	reEveryInterval = regexp.MustCompile(`^every\s+(\d+)\s+(second|minute|hour|day|sec|min)s?$`)
	reEverySingular = regexp.MustCompile(`^every\s+(second|minute|hour|day)$`)
	reDailyAt       = regexp.MustCompile(`^daily\s+at\s+(.+)$`)
	reWeeklyOn      = regexp.MustCompile(`^weekly\s+on\s+(\w+)(?:\s+at\s+(.+))?$`)
	reInDuration    = regexp.MustCompile(`^in\s+(\d+)\s+(second|minute|hour|sec|min)s?$`)
)

// ---------- Helpers ----------

// unitDuration converts a count and a time unit word into a duration. Day
// units are expanded to hours since time.Duration has no native day unit.
func unitDuration(unit string, n int) (time.Duration, bool) {
	if n <= 0 {
		return 0, false
	}
	switch strings.TrimSuffix(strings.ToLower(unit), "s") {
	case "second", "sec":
		return time.Duration(n) * time.Second, true
	case "minute", "min":
		return time.Duration(n) * time.Minute, true
	case "hour":
		return time.Duration(n) * time.Hour, true
	case "day":
		return time.Duration(n) * 24 * time.Hour, true
	default:
		return 0, false
	}
}

// parseTimeComponents parses a time string like "9:00", "14:30", "9am", "3:30pm".
// Returns hour (0-23) and minute, or (-1, 0) on failure.
func parseTimeComponents(s string) (int, int) {
	s = strings.TrimSpace(strings.ToLower(s))

	isPM := strings.HasSuffix(s, "pm")
	isAM := strings.HasSuffix(s, "am")
	if isPM {
		s = strings.TrimSuffix(s, "pm")
	} else if isAM {
		s = strings.TrimSuffix(s, "am")
	}
	s = strings.TrimSpace(s)

	parts := strings.SplitN(s, ":", 2)
	hour, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || hour < 0 || hour > 23 {
		return -1, 0
	}

	minute := 0
	if len(parts) == 2 {
		minute, err = strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil || minute < 0 || minute > 59 {
			return -1, 0
		}
	}

	if isPM && hour < 12 {
		hour += 12
	}
	if isAM && hour == 12 {
		hour = 0
	}

	return hour, minute
}

// parseDayOfWeek converts a day name to cron day-of-week number (0=Sunday).
func parseDayOfWeek(day string) int {
	switch strings.ToLower(day) {
	case "sunday", "sun":
		return 0
	case "monday", "mon":
		return 1
	case "tuesday", "tue":
		return 2
	case "wednesday", "wed":
		return 3
	case "thursday", "thu":
		return 4
	case "friday", "fri":
		return 5
	case "saturday", "sat":
		return 6
	default:
		return -1
	}
}
