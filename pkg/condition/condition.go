// Package condition implements the latching condition system (spec
// §4.G) a WaitCommand or RepeatedCommand's stop-condition is built
// from.
//
// Grounded on original_source's backend/conditions/conditions.py:
// ABCondition's latch-once-true __call__, CombinedCondition (AND),
// OngoingCondition (true for a continuous duration), the three
// Observable*Condition threshold checks, DevicesStateEqualsCondition,
// and TimeCondition.
package condition

import (
	"strconv"
	"sync"
	"time"

	"github.com/labstation/orchestrator/internal/clock"
	"github.com/labstation/orchestrator/pkg/devicestate"
	"github.com/labstation/orchestrator/pkg/observable"
)

// Condition is checked repeatedly (normally by a Handler reacting to
// observable updates) until it latches true. Once Check returns true
// it keeps returning true until Reset is called, mirroring the
// source's _turned_true latch.
type Condition interface {
	Title() string
	Start(at time.Time)
	Check(now time.Time) bool
	Reset()
	// ObservableObjects lists the producers this condition reacts to;
	// a Handler subscribes to each one and re-checks the condition
	// whenever any of them updates.
	ObservableObjects() []*observable.Substrate
}

// ObservableEquals latches true once producer's latest sample for
// name equals value, at or after the condition started.
type ObservableEquals struct {
	title        string
	producer     *observable.Substrate
	name         string
	value        string
	startingTime time.Time
	started      bool
	turnedTrue   bool
}

// NewObservableEquals builds an ObservableEquals condition.
func NewObservableEquals(title string, producer *observable.Substrate, name, value string) *ObservableEquals {
	return &ObservableEquals{title: title, producer: producer, name: name, value: value}
}

func (c *ObservableEquals) Title() string { return c.title }
func (c *ObservableEquals) Start(at time.Time) {
	if !c.started {
		c.started = true
		c.startingTime = at
	}
}
func (c *ObservableEquals) Reset()                                   { c.turnedTrue = false }
func (c *ObservableEquals) ObservableObjects() []*observable.Substrate { return []*observable.Substrate{c.producer} }
func (c *ObservableEquals) Check(now time.Time) bool {
	c.turnedTrue = c.turnedTrue || c.checkOnce()
	return c.turnedTrue
}
func (c *ObservableEquals) checkOnce() bool {
	s, err := c.producer.GetLatest(c.name)
	if err != nil {
		return false
	}
	return s.Value == c.value && !s.Time.Before(c.startingTime)
}

// thresholdBase is shared by the >= and <= numeric conditions.
type thresholdBase struct {
	title        string
	producer     *observable.Substrate
	name         string
	threshold    float64
	startingTime time.Time
	started      bool
	turnedTrue   bool
}

func (c *thresholdBase) Title() string { return c.title }
func (c *thresholdBase) Start(at time.Time) {
	if !c.started {
		c.started = true
		c.startingTime = at
	}
}
func (c *thresholdBase) Reset()                                   { c.turnedTrue = false }
func (c *thresholdBase) ObservableObjects() []*observable.Substrate { return []*observable.Substrate{c.producer} }
func (c *thresholdBase) latest() (float64, bool) {
	s, err := c.producer.GetLatest(c.name)
	if err != nil || s.Time.Before(c.startingTime) {
		return 0, false
	}
	v, err := strconv.ParseFloat(s.Value, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ObservableGreaterOrEqual latches true once the latest sample is >= threshold.
type ObservableGreaterOrEqual struct{ thresholdBase }

// NewObservableGreaterOrEqual builds the condition.
func NewObservableGreaterOrEqual(title string, producer *observable.Substrate, name string, threshold float64) *ObservableGreaterOrEqual {
	return &ObservableGreaterOrEqual{thresholdBase{title: title, producer: producer, name: name, threshold: threshold}}
}
func (c *ObservableGreaterOrEqual) Check(now time.Time) bool {
	if v, ok := c.latest(); ok && v >= c.threshold {
		c.turnedTrue = true
	}
	return c.turnedTrue
}

// ObservableLessOrEqual latches true once the latest sample is <= threshold.
type ObservableLessOrEqual struct{ thresholdBase }

// NewObservableLessOrEqual builds the condition.
func NewObservableLessOrEqual(title string, producer *observable.Substrate, name string, threshold float64) *ObservableLessOrEqual {
	return &ObservableLessOrEqual{thresholdBase{title: title, producer: producer, name: name, threshold: threshold}}
}
func (c *ObservableLessOrEqual) Check(now time.Time) bool {
	if v, ok := c.latest(); ok && v <= c.threshold {
		c.turnedTrue = true
	}
	return c.turnedTrue
}

// ObservableInsideInterval latches true once the latest sample strictly
// falls within (lower, upper).
type ObservableInsideInterval struct {
	title                  string
	producer               *observable.Substrate
	name                   string
	lower, upper           float64
	startingTime           time.Time
	started, turnedTrue    bool
}

// NewObservableInsideInterval builds the condition.
func NewObservableInsideInterval(title string, producer *observable.Substrate, name string, lower, upper float64) *ObservableInsideInterval {
	return &ObservableInsideInterval{title: title, producer: producer, name: name, lower: lower, upper: upper}
}
func (c *ObservableInsideInterval) Title() string { return c.title }
func (c *ObservableInsideInterval) Start(at time.Time) {
	if !c.started {
		c.started = true
		c.startingTime = at
	}
}
func (c *ObservableInsideInterval) Reset() { c.turnedTrue = false }
func (c *ObservableInsideInterval) ObservableObjects() []*observable.Substrate {
	return []*observable.Substrate{c.producer}
}
func (c *ObservableInsideInterval) Check(now time.Time) bool {
	s, err := c.producer.GetLatest(c.name)
	if err == nil && !s.Time.Before(c.startingTime) {
		if v, perr := strconv.ParseFloat(s.Value, 64); perr == nil && v > c.lower && v < c.upper {
			c.turnedTrue = true
		}
	}
	return c.turnedTrue
}

// CombinedCondition latches true once every child condition has
// latched true (logical AND).
type CombinedCondition struct {
	title      string
	children   []Condition
	turnedTrue bool
}

// NewCombinedCondition builds an AND of children.
func NewCombinedCondition(title string, children ...Condition) *CombinedCondition {
	return &CombinedCondition{title: title, children: children}
}
func (c *CombinedCondition) Title() string { return c.title }
func (c *CombinedCondition) Start(at time.Time) {
	for _, child := range c.children {
		child.Start(at)
	}
}
func (c *CombinedCondition) Reset() {
	c.turnedTrue = false
	for _, child := range c.children {
		child.Reset()
	}
}
func (c *CombinedCondition) ObservableObjects() []*observable.Substrate {
	var out []*observable.Substrate
	for _, child := range c.children {
		out = append(out, child.ObservableObjects()...)
	}
	return out
}
func (c *CombinedCondition) Check(now time.Time) bool {
	all := true
	for _, child := range c.children {
		if !child.Check(now) {
			all = false
		}
	}
	c.turnedTrue = c.turnedTrue || all
	return c.turnedTrue
}

// OngoingCondition latches true once its inner condition has stayed
// continuously true for at least duration.
type OngoingCondition struct {
	title      string
	inner      Condition
	duration   time.Duration
	trueSince  time.Time
	hasSince   bool
	turnedTrue bool
}

// NewOngoingCondition builds the condition.
func NewOngoingCondition(title string, duration time.Duration, inner Condition) *OngoingCondition {
	return &OngoingCondition{title: title, inner: inner, duration: duration}
}
func (c *OngoingCondition) Title() string                            { return c.title }
func (c *OngoingCondition) Start(at time.Time)                       { c.inner.Start(at) }
func (c *OngoingCondition) Reset()                                   { c.turnedTrue = false; c.hasSince = false; c.inner.Reset() }
func (c *OngoingCondition) ObservableObjects() []*observable.Substrate { return c.inner.ObservableObjects() }
func (c *OngoingCondition) Check(now time.Time) bool {
	if c.inner.Check(now) {
		if !c.hasSince {
			c.hasSince = true
			c.trueSince = now
		}
		if now.Sub(c.trueSince) >= c.duration {
			c.turnedTrue = true
		}
	} else {
		c.hasSince = false
	}
	return c.turnedTrue
}

// StateProvider is the subset of *device.Device a
// DevicesStateEqualsCondition needs. Declared locally (rather than
// importing pkg/device) so pkg/condition has no dependency in that
// direction; *device.Device satisfies it structurally.
type StateProvider interface {
	State() devicestate.Name
	StateEntryAvailable(target devicestate.Name) bool
	ConsumeStateEntry(target devicestate.Name) bool
	Observable() *observable.Substrate
}

// DevicesStateEqualsCondition latches true once every listed device is
// in target, consuming that state entry so it cannot also satisfy a
// second, independent waiter for the same entry (grounded on the
// source's triggered_condition one-shot gate).
type DevicesStateEqualsCondition struct {
	title      string
	devices    []StateProvider
	target     devicestate.Name
	turnedTrue bool
}

// NewDevicesStateEquals builds the condition.
func NewDevicesStateEquals(title string, devices []StateProvider, target devicestate.Name) *DevicesStateEqualsCondition {
	return &DevicesStateEqualsCondition{title: title, devices: devices, target: target}
}

// NewDevicesWaiting is DevicesStateEqualsCondition pinned to
// devicestate.Waiting, matching the source's DevicesWaitingCondition.
func NewDevicesWaiting(title string, devices []StateProvider) *DevicesStateEqualsCondition {
	return NewDevicesStateEquals(title, devices, devicestate.Waiting)
}

func (c *DevicesStateEqualsCondition) Title() string        { return c.title }
func (c *DevicesStateEqualsCondition) Start(at time.Time)    {}
func (c *DevicesStateEqualsCondition) Reset()                { c.turnedTrue = false }
func (c *DevicesStateEqualsCondition) ObservableObjects() []*observable.Substrate {
	out := make([]*observable.Substrate, len(c.devices))
	for i, d := range c.devices {
		out[i] = d.Observable()
	}
	return out
}
func (c *DevicesStateEqualsCondition) Check(now time.Time) bool {
	c.turnedTrue = c.turnedTrue || c.checkOnce()
	return c.turnedTrue
}
func (c *DevicesStateEqualsCondition) checkOnce() bool {
	for _, d := range c.devices {
		if d.State() != c.target || !d.StateEntryAvailable(c.target) {
			return false
		}
	}
	ok := true
	for _, d := range c.devices {
		if !d.ConsumeStateEntry(c.target) {
			ok = false
		}
	}
	return ok
}

// TimeCondition latches true once its duration elapses since Start,
// independent of being polled: it arms a clock alarm immediately and
// also publishes a "waited time" sample on its own observable so a
// Handler watching it wakes up and re-checks, grounded on
// original_source's TimeCondition, which is itself a BaseObservable
// and schedules reactor.callLater(time_to_wait, self._done) in start().
type TimeCondition struct {
	mu sync.Mutex

	title    string
	duration time.Duration
	clk      clock.Clock
	obs      *observable.Substrate

	started bool
	done    bool
	alarm   clock.Alarm
}

// NewTimeCondition builds a TimeCondition that latches duration after
// Start is called.
func NewTimeCondition(title string, duration time.Duration, clk clock.Clock) *TimeCondition {
	return &TimeCondition{title: title, duration: duration, clk: clk, obs: observable.NewSubstrate()}
}

func (c *TimeCondition) Title() string { return c.title }

func (c *TimeCondition) Start(at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return
	}
	c.started = true
	c.alarm = c.clk.AfterFunc(c.duration, c.onDue)
}

func (c *TimeCondition) onDue() {
	c.mu.Lock()
	c.done = true
	c.mu.Unlock()
	c.obs.UpdateOne("waited time", "true", c.clk.Now())
}

func (c *TimeCondition) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.alarm != nil {
		c.alarm.Stop()
		c.alarm = nil
	}
	c.started = false
	c.done = false
}

func (c *TimeCondition) ObservableObjects() []*observable.Substrate {
	return []*observable.Substrate{c.obs}
}

func (c *TimeCondition) Check(now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}
