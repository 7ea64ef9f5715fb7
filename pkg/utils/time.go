package utils

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const DayLayout = "2006-01-02"

func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func DatesEqual(t1, t2 time.Time) bool {
	return StartOfDay(t1).Equal(StartOfDay(t2))
}

// DayKey formats t as the calendar date used by daily stats.
func DayKey(t time.Time) string {
	return t.Format(DayLayout)
}

// LoadLocationOrUTC never fails: an empty or unknown timezone falls back to UTC.
func LoadLocationOrUTC(timezone string) *time.Location {
	if timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func ToUserTimezone(t time.Time, timezone string) time.Time {
	return t.In(LoadLocationOrUTC(timezone))
}

// ParseClock parses "HH:MM" into minutes since midnight.
func ParseClock(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid clock %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid clock hour %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid clock minute %q", s)
	}
	return h*60 + m, nil
}

func MinuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}
