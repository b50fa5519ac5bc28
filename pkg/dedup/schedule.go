// ABOUTME: Cadence computation for the deduplication scheduler
// ABOUTME: Daily, weekly (Monday) and monthly (1st) runs at a fixed HH:MM

package dedup

import (
	"fmt"
	"time"
)

// Cadence intervals
const (
	IntervalDaily   = "daily"
	IntervalWeekly  = "weekly"
	IntervalMonthly = "monthly"
)

// Schedule configures the scan cadence. Times are UTC.
type Schedule struct {
	Enabled  bool
	Interval string // daily, weekly, monthly
	At       string // HH:MM
}

// parseAt splits the HH:MM run time
func parseAt(at string) (hour, minute int, err error) {
	if _, err := fmt.Sscanf(at, "%d:%d", &hour, &minute); err != nil {
		return 0, 0, fmt.Errorf("invalid run time %q: %w", at, err)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid run time %q", at)
	}
	return hour, minute, nil
}

// nextRun computes the first cadence boundary strictly after now.
// Weekly runs fall on Mondays, monthly runs on the first of the month.
func nextRun(now time.Time, interval, at string) (time.Time, error) {
	hour, minute, err := parseAt(at)
	if err != nil {
		return time.Time{}, err
	}

	now = now.UTC()
	candidate := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, time.UTC)

	switch interval {
	case IntervalDaily:
		if !candidate.After(now) {
			candidate = candidate.AddDate(0, 0, 1)
		}
	case IntervalWeekly:
		offset := (int(time.Monday) - int(candidate.Weekday()) + 7) % 7
		candidate = candidate.AddDate(0, 0, offset)
		if !candidate.After(now) {
			candidate = candidate.AddDate(0, 0, 7)
		}
	case IntervalMonthly:
		candidate = time.Date(now.Year(), now.Month(), 1, hour, minute, 0, 0, time.UTC)
		if !candidate.After(now) {
			candidate = candidate.AddDate(0, 1, 0)
		}
	default:
		return time.Time{}, fmt.Errorf("invalid schedule interval %q", interval)
	}
	return candidate, nil
}
