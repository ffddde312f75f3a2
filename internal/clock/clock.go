// Package clock supplies the current instant and calendar date.
//
// Every "once per day" and expiry decision goes through a Clock so tests can
// pin time and production can pin the business time zone.
package clock

import (
	"sync"
	"time"
)

// Clock returns the current instant and the location calendar dates are
// computed in.
type Clock interface {
	Now() time.Time
	Location() *time.Location
}

// System is the wall clock in a fixed location.
type System struct {
	loc *time.Location
}

// NewSystem returns a wall clock. A nil location means UTC.
func NewSystem(loc *time.Location) *System {
	if loc == nil {
		loc = time.UTC
	}
	return &System{loc: loc}
}

func (s *System) Now() time.Time           { return time.Now().In(s.loc) }
func (s *System) Location() *time.Location { return s.loc }

// Fixed is a manually advanced clock for tests.
type Fixed struct {
	mu  sync.Mutex
	now time.Time
}

// NewFixed returns a clock frozen at now, in now's location.
func NewFixed(now time.Time) *Fixed {
	return &Fixed{now: now}
}

func (f *Fixed) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fixed) Location() *time.Location {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now.Location()
}

// Set moves the clock to t.
func (f *Fixed) Set(t time.Time) {
	f.mu.Lock()
	f.now = t
	f.mu.Unlock()
}

// Advance moves the clock forward by d.
func (f *Fixed) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

// DateOf returns the calendar date of t in loc, as midnight UTC.
// Dates are compared and stored in this normalised form.
func DateOf(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Today is DateOf(c.Now(), c.Location()).
func Today(c Clock) time.Time {
	return DateOf(c.Now(), c.Location())
}
