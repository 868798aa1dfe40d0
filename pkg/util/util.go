package util

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	// PromptTimeLayout renders timestamps for the reasoning service: local wall
	// time, no zone, no sub-second part.
	PromptTimeLayout = "2006-01-02 15:04:05"
	// SlotClockLayout renders the clock part of a task's timeSlot.
	SlotClockLayout = "15:04"
)

// maxEstimateHours keeps hour estimates well inside time.Duration's range.
const maxEstimateHours = 100000

var isoDurationRe = regexp.MustCompile(`^(?:(\d+(?:\.\d+)?)H)?(?:(\d+(?:\.\d+)?)M)?(?:(\d+(?:\.\d+)?)S)?$`)

// ParseDuration parses ISO 8601 time durations (PT1H, PT30M, PT1H30M).
func ParseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}

	if len(s) < 2 || s[0] != 'P' {
		return 0, fmt.Errorf("invalid ISO 8601 duration format: %s", s)
	}

	s = s[1:]
	if len(s) == 0 || s[0] != 'T' {
		return 0, fmt.Errorf("invalid ISO 8601 duration (missing T): P%s", s)
	}
	s = s[1:]

	match := isoDurationRe.FindStringSubmatch(s)
	if match == nil {
		return 0, fmt.Errorf("invalid ISO 8601 duration: PT%s", s)
	}

	var total time.Duration
	for i, unit := range []time.Duration{time.Hour, time.Minute, time.Second} {
		if match[i+1] == "" {
			continue
		}
		value, _ := strconv.ParseFloat(match[i+1], 64)
		if value*float64(unit) > maxEstimateHours*float64(time.Hour) {
			return 0, fmt.Errorf("ISO 8601 duration out of range: PT%s", s)
		}
		total += time.Duration(value * float64(unit))
	}

	if total <= 0 {
		return 0, fmt.Errorf("invalid ISO 8601 duration: PT%s", s)
	}

	return total, nil
}

// ParseEstimate parses a task's estimatedTime. Accepted forms are bare hours
// ("2", "1.5"), Go durations ("90m", "1h30m") and ISO 8601 ("PT1H30M").
// An empty string yields 0 and no error.
func ParseEstimate(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if strings.HasPrefix(strings.ToUpper(s), "P") {
		return ParseDuration(strings.ToUpper(s))
	}
	if hours, err := strconv.ParseFloat(s, 64); err == nil {
		if math.IsNaN(hours) || math.IsInf(hours, 0) || !(hours > 0) || hours > maxEstimateHours {
			return 0, fmt.Errorf("estimate must be a positive number of hours: %s", s)
		}
		return time.Duration(hours * float64(time.Hour)), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid estimate %q: %w", s, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("estimate must be positive: %s", s)
	}
	return d, nil
}

// FormatPromptTime renders t in loc with PromptTimeLayout.
func FormatPromptTime(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(PromptTimeLayout)
}

// ParsePromptTime accepts PromptTimeLayout (interpreted in loc), and RFC 3339
// with or without a zone offset.
func ParsePromptTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	for _, layout := range []string{PromptTimeLayout, "2006-01-02T15:04:05", "2006-01-02 15:04"} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// TimeSlot renders the stored timeSlot string, e.g. "09:00 - 10:30".
func TimeSlot(start, end time.Time, loc *time.Location) string {
	return fmt.Sprintf("%s - %s", start.In(loc).Format(SlotClockLayout), end.In(loc).Format(SlotClockLayout))
}
