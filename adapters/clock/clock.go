// Package clock provides Clock implementations.
package clock

import (
	"sync"
	"time"

	"github.com/artpar/quotagate/ports"
)

// Real returns the actual current time.
type Real struct{}

// Now returns the current time.
func (Real) Now() time.Time {
	return time.Now()
}

// Ensure interface compliance.
var _ ports.Clock = Real{}

// Fake provides a controllable clock for testing.
// Safe for concurrent use so gate tests can drive it from many goroutines.
type Fake struct {
	mu      sync.RWMutex
	current time.Time
}

// NewFake creates a fake clock set to the given time.
func NewFake(t time.Time) *Fake {
	return &Fake{current: t}
}

// Now returns the fake current time.
func (f *Fake) Now() time.Time {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.current
}

// Set sets the fake current time.
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	f.current = t
	f.mu.Unlock()
}

// Advance moves the fake time forward by d.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	f.current = f.current.Add(d)
	f.mu.Unlock()
}

// NextDay moves the fake time to midnight of the following day in loc,
// which rolls every daily usage counter over.
func (f *Fake) NextDay(loc *time.Location) {
	if loc == nil {
		loc = time.UTC
	}
	f.mu.Lock()
	lt := f.current.In(loc)
	f.current = time.Date(lt.Year(), lt.Month(), lt.Day()+1, 0, 0, 0, 0, loc)
	f.mu.Unlock()
}

// Ensure interface compliance.
var _ ports.Clock = (*Fake)(nil)
