// Package quota provides pure functions for daily quota enforcement.
// All functions are deterministic with no side effects.
package quota

import (
	"time"
)

// DayLayout is the calendar-day format used for counter keys.
const DayLayout = "2006-01-02"

// DefaultWarningThreshold is the fraction of quota at which usage alerts fire.
const DefaultWarningThreshold = 0.8

// Key identifies one usage counter: an account on one calendar day.
type Key struct {
	AccountID string
	Day       string // DayLayout in the reference timezone
}

// KeyFor builds the counter key for accountID at now in loc.
func KeyFor(accountID string, now time.Time, loc *time.Location) Key {
	return Key{AccountID: accountID, Day: Day(now, loc)}
}

// Day returns the calendar day of t in loc.
// This is a PURE function.
func Day(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(DayLayout)
}

// DayBounds returns the first and last instant of the calendar day of t in loc.
// This is a PURE function.
func DayBounds(t time.Time, loc *time.Location) (start, end time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	lt := t.In(loc)
	start = time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
	end = start.AddDate(0, 0, 1).Add(-time.Nanosecond)
	return
}

// Admission is the outcome of a quota check (value type).
type Admission struct {
	Admitted  bool
	Unlimited bool
	Used      int64 // counter value after the decision
	Limit     int64 // -1 when unlimited
}

// Remaining returns the requests left today, or -1 when unlimited.
func (a Admission) Remaining() int64 {
	if a.Unlimited || a.Limit < 0 {
		return -1
	}
	return Remaining(a.Used, a.Limit)
}

// Remaining returns limit-used clamped at zero.
// This is a PURE function.
func Remaining(used, limit int64) int64 {
	if limit < 0 {
		return -1
	}
	if used >= limit {
		return 0
	}
	return limit - used
}

// Decide reports whether a request may be admitted given the count before it.
// The ledger performs this comparison atomically; Decide states the rule.
// This is a PURE function.
func Decide(usedBefore, limit int64) bool {
	if limit < 0 {
		return true
	}
	return usedBefore < limit
}

// ThresholdReached reports whether used/limit is at or above threshold.
// Unlimited and zero quotas never reach the threshold.
// This is a PURE function.
func ThresholdReached(used, limit int64, threshold float64) bool {
	if limit <= 0 || threshold <= 0 {
		return false
	}
	return float64(used)/float64(limit) >= threshold
}
