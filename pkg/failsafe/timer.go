// Package failsafe implements a communication-loss safety timer: once
// a device disconnects, a grace timer starts, and if the device has
// not reconnected by the time it expires, a configured safety action
// fires (e.g. stopping whatever experiment is using the device).
// Reconnection before expiry cancels the timer outright; reconnection
// after the action has fired still imposes a grace period before the
// device is considered trustworthy again, since a flapping connection
// shouldn't immediately clear a safety condition.
//
// Not present in original_source (the Python backend has no
// analogous watchdog); adapted from a power-cutoff failsafe timer
// elsewhere in this corpus's stack, which carries the identical
// Normal/TimerRunning/Failsafe/GracePeriod shape for a different
// domain (grid disconnection safety limits rather than instrument
// communication loss). The state machine and timer plumbing are kept;
// the domain-specific power Limits payload is replaced with a plain
// trip/clear callback pair, since what needs to happen on a trip here
// is "stop issuing commands to this device", not "apply a wattage
// cap".
package failsafe

import (
	"errors"
	"sync"
	"time"
)

// Default timing, chosen to match a human operator's reasonable
// patience for a reconnect before assuming the instrument needs
// manual intervention.
const (
	DefaultGraceBeforeTrip = 30 * time.Second
	DefaultGraceAfterClear = 10 * time.Second
)

var ErrTimerNotRunning = errors.New("failsafe: timer not running")

// State is the watchdog's current phase.
type State uint8

const (
	StateNormal State = iota
	StateTimerRunning
	StateTripped
	StateGracePeriod
)

func (s State) String() string {
	switch s {
	case StateNormal:
		return "NORMAL"
	case StateTimerRunning:
		return "TIMER_RUNNING"
	case StateTripped:
		return "TRIPPED"
	case StateGracePeriod:
		return "GRACE_PERIOD"
	default:
		return "UNKNOWN"
	}
}

// Config configures a Timer.
type Config struct {
	// GraceBeforeTrip is how long a device may stay disconnected before
	// the failsafe action fires.
	GraceBeforeTrip time.Duration
	// GraceAfterClear is how long a reconnection is held in
	// StateGracePeriod, after a trip, before returning to StateNormal.
	GraceAfterClear time.Duration
}

// Timer watches a single device's connectivity and fires a safety
// action if it stays disconnected too long.
type Timer struct {
	mu sync.Mutex

	state State

	graceBeforeTrip time.Duration
	graceAfterClear time.Duration

	tripTimer  *time.Timer
	clearTimer *time.Timer
	startedAt  time.Time

	onStateChange func(old, new State)
	onTrip        func()
	onClear       func()
}

// NewTimer builds a Timer with cfg, defaulting any zero duration.
func NewTimer(cfg Config) *Timer {
	if cfg.GraceBeforeTrip == 0 {
		cfg.GraceBeforeTrip = DefaultGraceBeforeTrip
	}
	if cfg.GraceAfterClear == 0 {
		cfg.GraceAfterClear = DefaultGraceAfterClear
	}
	return &Timer{
		state:           StateNormal,
		graceBeforeTrip: cfg.GraceBeforeTrip,
		graceAfterClear: cfg.GraceAfterClear,
	}
}

// OnStateChange registers a state-transition callback.
func (t *Timer) OnStateChange(fn func(old, new State)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onStateChange = fn
}

// OnTrip registers the action to run once the grace period before a
// trip elapses without reconnection.
func (t *Timer) OnTrip(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onTrip = fn
}

// OnClear registers the action to run once a post-trip grace period
// elapses without a further disconnection.
func (t *Timer) OnClear(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onClear = fn
}

// State returns the current phase.
func (t *Timer) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// NotifyDisconnected starts (or restarts) the grace-before-trip timer.
// Call this from a device's disconnect callback.
func (t *Timer) NotifyDisconnected() {
	t.mu.Lock()
	if t.state == StateTimerRunning || t.state == StateTripped {
		t.mu.Unlock()
		return
	}
	t.state = StateTimerRunning
	t.startedAt = time.Now()
	t.tripTimer = time.AfterFunc(t.graceBeforeTrip, t.trip)
	cb := t.onStateChange
	t.mu.Unlock()
	if cb != nil {
		cb(StateNormal, StateTimerRunning)
	}
}

// NotifyConnected cancels a pending trip, or if already tripped, moves
// into a grace period before fully clearing. Call this from a
// device's connect callback.
func (t *Timer) NotifyConnected() {
	t.mu.Lock()
	switch t.state {
	case StateTimerRunning:
		if t.tripTimer != nil {
			t.tripTimer.Stop()
			t.tripTimer = nil
		}
		old := t.state
		t.state = StateNormal
		cb := t.onStateChange
		t.mu.Unlock()
		if cb != nil {
			cb(old, StateNormal)
		}
	case StateTripped:
		old := t.state
		t.state = StateGracePeriod
		t.clearTimer = time.AfterFunc(t.graceAfterClear, t.clear)
		cb := t.onStateChange
		t.mu.Unlock()
		if cb != nil {
			cb(old, StateGracePeriod)
		}
	default:
		t.mu.Unlock()
	}
}

// Reset forces the timer back to Normal, cancelling any pending timer.
func (t *Timer) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.tripTimer != nil {
		t.tripTimer.Stop()
		t.tripTimer = nil
	}
	if t.clearTimer != nil {
		t.clearTimer.Stop()
		t.clearTimer = nil
	}
	old := t.state
	t.state = StateNormal
	if t.onStateChange != nil && old != StateNormal {
		t.onStateChange(old, StateNormal)
	}
}

// RemainingBeforeTrip reports how long until the failsafe action
// fires, or zero if the timer isn't currently counting down.
func (t *Timer) RemainingBeforeTrip() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StateTimerRunning {
		return 0
	}
	remaining := t.graceBeforeTrip - time.Since(t.startedAt)
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (t *Timer) trip() {
	t.mu.Lock()
	if t.state != StateTimerRunning {
		t.mu.Unlock()
		return
	}
	old := t.state
	t.state = StateTripped
	t.tripTimer = nil
	stateCb := t.onStateChange
	tripCb := t.onTrip
	t.mu.Unlock()

	if stateCb != nil {
		stateCb(old, StateTripped)
	}
	if tripCb != nil {
		tripCb()
	}
}

func (t *Timer) clear() {
	t.mu.Lock()
	if t.state != StateGracePeriod {
		t.mu.Unlock()
		return
	}
	old := t.state
	t.state = StateNormal
	t.clearTimer = nil
	stateCb := t.onStateChange
	clearCb := t.onClear
	t.mu.Unlock()

	if stateCb != nil {
		stateCb(old, StateNormal)
	}
	if clearCb != nil {
		clearCb()
	}
}
