// Package clock provides an injectable time source so command timers,
// device backoff, and condition timeouts can be driven deterministically
// in tests instead of sleeping on the wall clock.
package clock

import (
	"sync"
	"time"
)

// Alarm is a single scheduled callback. It is returned by Clock.AfterFunc
// so the caller can disarm it, mirroring the way a Sent command arms
// exactly one timeout timer and disarms it on any state transition.
type Alarm interface {
	// Stop prevents the alarm from firing, if it hasn't already.
	// It returns true if the alarm was stopped before firing.
	Stop() bool
}

// Clock abstracts time so production code uses the wall clock and tests
// use a virtual one.
type Clock interface {
	Now() time.Time
	// AfterFunc schedules fn to run after d elapses and returns an Alarm
	// that can cancel it.
	AfterFunc(d time.Duration, fn func()) Alarm
}

// Real is the wall-clock Clock used outside of tests.
type Real struct{}

// Now returns time.Now().
func (Real) Now() time.Time { return time.Now() }

// AfterFunc delegates to time.AfterFunc.
func (Real) AfterFunc(d time.Duration, fn func()) Alarm {
	return realAlarm{time.AfterFunc(d, fn)}
}

type realAlarm struct{ t *time.Timer }

func (a realAlarm) Stop() bool { return a.t.Stop() }

// Virtual is a manually-advanced Clock for deterministic tests. Zero value
// starts at the zero time.Time (January 1, year 1 UTC); use NewVirtual to
// pick a starting instant.
type Virtual struct {
	mu      sync.Mutex
	now     time.Time
	pending []*virtualAlarm
	seq     uint64
}

type virtualAlarm struct {
	at      time.Time
	fn      func()
	fired   bool
	stopped bool
	seq     uint64
}

func (a *virtualAlarm) Stop() bool {
	if a.fired || a.stopped {
		return false
	}
	a.stopped = true
	return true
}

// NewVirtual creates a Virtual clock starting at t.
func NewVirtual(t time.Time) *Virtual {
	return &Virtual{now: t}
}

// Now returns the current virtual time.
func (v *Virtual) Now() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.now
}

// AfterFunc schedules fn to run once the virtual clock reaches now+d.
// Advance or AdvanceTo must be called for it to ever fire.
func (v *Virtual) AfterFunc(d time.Duration, fn func()) Alarm {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.seq++
	a := &virtualAlarm{at: v.now.Add(d), fn: fn, seq: v.seq}
	v.pending = append(v.pending, a)
	return a
}

// Advance moves the virtual clock forward by d, firing any alarms whose
// deadline has been reached, in deadline order (ties broken by schedule
// order).
func (v *Virtual) Advance(d time.Duration) {
	v.AdvanceTo(v.Now().Add(d))
}

// AdvanceTo moves the virtual clock to t (must not be before the current
// time) and fires any alarms due by then.
func (v *Virtual) AdvanceTo(t time.Time) {
	for {
		v.mu.Lock()
		if v.now.After(t) {
			v.mu.Unlock()
			return
		}
		v.now = t

		var due *virtualAlarm
		dueIdx := -1
		for i, a := range v.pending {
			if a.stopped || a.fired {
				continue
			}
			if a.at.After(t) {
				continue
			}
			if due == nil || a.at.Before(due.at) || (a.at.Equal(due.at) && a.seq < due.seq) {
				due = a
				dueIdx = i
			}
		}
		if due == nil {
			v.mu.Unlock()
			return
		}
		due.fired = true
		v.pending = append(v.pending[:dueIdx], v.pending[dueIdx+1:]...)
		fn := due.fn
		v.mu.Unlock()
		if fn != nil {
			fn()
		}
	}
}
