// Package audit provides audit record types and summary functions.
// All functions are pure - no side effects.
package audit

import (
	"sort"
	"time"
)

// Record describes one processed request (immutable value type).
// Records always carry a valid account id.
type Record struct {
	ID         string
	AccountID  string
	SecretKey  string // key presented by the caller
	Endpoint   string
	Subject    string // may be empty
	Timestamp  time.Time
	RemoteIP   string
	UserAgent  string
	StatusCode int
	LatencyMs  int64
}

// IsSuccess reports whether the record's status is 2xx.
func (r Record) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// SubjectCount is a subject and how many audited requests named it.
type SubjectCount struct {
	Subject string
	Count   int64
}

// Summary is a per-account digest of audited requests (value type).
type Summary struct {
	AccountID    string
	Total        int64
	Today        int64
	ErrorCount   int64
	AvgLatencyMs int64
}

// Summarize digests records for one account. dayStart and dayEnd bound
// "today" inclusively.
// This is a PURE function.
func Summarize(records []Record, dayStart, dayEnd time.Time) Summary {
	var s Summary
	var totalLatency int64
	for _, r := range records {
		if s.AccountID == "" {
			s.AccountID = r.AccountID
		}
		s.Total++
		totalLatency += r.LatencyMs
		if r.StatusCode >= 400 {
			s.ErrorCount++
		}
		if !r.Timestamp.Before(dayStart) && !r.Timestamp.After(dayEnd) {
			s.Today++
		}
	}
	if s.Total > 0 {
		s.AvgLatencyMs = totalLatency / s.Total
	}
	return s
}

// TopSubjects counts non-empty subjects and returns the n most frequent,
// ties broken by subject name.
// This is a PURE function.
func TopSubjects(records []Record, n int) []SubjectCount {
	counts := make(map[string]int64)
	for _, r := range records {
		if r.Subject == "" {
			continue
		}
		counts[r.Subject]++
	}

	out := make([]SubjectCount, 0, len(counts))
	for subj, c := range counts {
		out = append(out, SubjectCount{Subject: subj, Count: c})
	}
	SortSubjectCounts(out)

	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// SortSubjectCounts orders by count descending, then subject ascending.
func SortSubjectCounts(sc []SubjectCount) {
	sort.Slice(sc, func(i, j int) bool {
		if sc[i].Count != sc[j].Count {
			return sc[i].Count > sc[j].Count
		}
		return sc[i].Subject < sc[j].Subject
	})
}
