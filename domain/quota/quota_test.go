package quota

import (
	"testing"
	"time"
)

func TestDay(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}

	ts := time.Date(2024, 3, 10, 2, 30, 0, 0, time.UTC)

	tests := []struct {
		name string
		loc  *time.Location
		want string
	}{
		{"utc", time.UTC, "2024-03-10"},
		{"nil means utc", nil, "2024-03-10"},
		{"behind utc", ny, "2024-03-09"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Day(ts, tt.loc); got != tt.want {
				t.Errorf("Day() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestDayBounds(t *testing.T) {
	ts := time.Date(2024, 5, 17, 13, 45, 0, 0, time.UTC)
	start, end := DayBounds(ts, time.UTC)

	if !start.Equal(time.Date(2024, 5, 17, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("start = %v", start)
	}
	if !end.Equal(time.Date(2024, 5, 18, 0, 0, 0, 0, time.UTC).Add(-time.Nanosecond)) {
		t.Errorf("end = %v", end)
	}
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name  string
		used  int64
		limit int64
		want  bool
	}{
		{"under", 3, 10, true},
		{"last unit", 9, 10, true},
		{"at limit", 10, 10, false},
		{"over limit", 11, 10, false},
		{"zero quota", 0, 0, false},
		{"unlimited", 1_000_000, -1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Decide(tt.used, tt.limit); got != tt.want {
				t.Errorf("Decide(%d, %d) = %v, want %v", tt.used, tt.limit, got, tt.want)
			}
		})
	}
}

func TestThresholdReached(t *testing.T) {
	tests := []struct {
		name      string
		used      int64
		limit     int64
		threshold float64
		want      bool
	}{
		{"below", 7, 10, 0.8, false},
		{"exactly at", 8, 10, 0.8, true},
		{"above", 10, 10, 0.8, true},
		{"unlimited", 500, -1, 0.8, false},
		{"zero quota", 0, 0, 0.8, false},
		{"disabled", 10, 10, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ThresholdReached(tt.used, tt.limit, tt.threshold); got != tt.want {
				t.Errorf("ThresholdReached() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAdmission_Remaining(t *testing.T) {
	if got := (Admission{Used: 4, Limit: 10}).Remaining(); got != 6 {
		t.Errorf("Remaining = %d, want 6", got)
	}
	if got := (Admission{Used: 12, Limit: 10}).Remaining(); got != 0 {
		t.Errorf("over-limit Remaining = %d, want 0", got)
	}
	if got := (Admission{Unlimited: true, Limit: -1}).Remaining(); got != -1 {
		t.Errorf("unlimited Remaining = %d, want -1", got)
	}
}
