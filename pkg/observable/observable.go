// Package observable implements the publish-subscribe substrate that
// devices, channels, and derived observables use to emit timestamped
// key/value samples. It is the foundation the condition system polls
// against.
//
// Adapted from a feature-indexed subscriber registry elsewhere in this
// corpus's stack (pkg/subscription.Manager) and from original_source's
// BaseObservable, whose append-only per-key history and synchronous
// per-key fan-out this package reproduces.
package observable

import (
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrNotFound is returned by GetLatest when a variable has no recorded
// samples.
var ErrNotFound = errors.New("observable: no samples for variable")

// Sample is a single timestamped observation. Value is numeric or
// textual; callers that need a number parse Value themselves (mirrors
// the source, where observables are stored as strings and interpreted
// by whoever reads them, e.g. conditions comparing against thresholds).
type Sample struct {
	Time  time.Time
	Value string
}

// Observer receives one notification per updated key. Implementations
// must not block; the substrate calls Observers synchronously and in
// the order they subscribed.
type Observer interface {
	Update(producer *Substrate, key string, value string, at time.Time)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(producer *Substrate, key string, value string, at time.Time)

// Update calls f.
func (f ObserverFunc) Update(producer *Substrate, key string, value string, at time.Time) {
	f(producer, key, value, at)
}

// Substrate is a single producer's observable history plus its
// subscriber list. Devices, channels, and derived observables each own
// one.
type Substrate struct {
	mu          sync.RWMutex
	history     map[string][]Sample
	subscribers []Observer
}

// NewSubstrate creates an empty observable substrate.
func NewSubstrate() *Substrate {
	return &Substrate{history: make(map[string][]Sample)}
}

// Subscribe registers an observer. Safe to call from within an Update
// callback; the new observer only sees subsequent updates.
func (s *Substrate) Subscribe(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, o)
}

// Unsubscribe removes an observer. It is idempotent: unsubscribing an
// observer that isn't present (including a second call for the same
// observer) is a no-op.
func (s *Substrate) Unsubscribe(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, sub := range s.subscribers {
		if sub == o {
			s.subscribers = append(s.subscribers[:i], s.subscribers[i+1:]...)
			return
		}
	}
}

// Update appends one sample per key and notifies subscribers, one
// notification per key, in map key order (Go map iteration is
// randomized, so keys are sorted first to give deterministic,
// reproducible test behavior instead of the source's dict-iteration-order
// guarantee).
func (s *Substrate) Update(values map[string]string, at time.Time) {
	if len(values) == 0 {
		return
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	s.mu.Lock()
	for _, k := range keys {
		s.history[k] = append(s.history[k], Sample{Time: at, Value: values[k]})
	}
	subs := make([]Observer, len(s.subscribers))
	copy(subs, s.subscribers)
	s.mu.Unlock()

	for _, k := range keys {
		v := values[k]
		for _, sub := range subs {
			sub.Update(s, k, v, at)
		}
	}
}

// UpdateOne is a convenience wrapper around Update for a single key.
func (s *Substrate) UpdateOne(key, value string, at time.Time) {
	s.Update(map[string]string{key: value}, at)
}

// GetUpdates returns samples for name with timestamp in the half-open
// window (from, to]. A zero from means "since the beginning"; a zero to
// means "through now" is NOT assumed — callers pass time.Now()
// explicitly (Open Question (a): no implicit defaulting).
func (s *Substrate) GetUpdates(name string, from, to time.Time) []Sample {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.history[name]
	out := make([]Sample, 0, len(all))
	for _, sample := range all {
		if sample.Time.After(from) && !sample.Time.After(to) {
			out = append(out, sample)
		}
	}
	return out
}

// GetAll returns the full recorded history for name, oldest first.
func (s *Substrate) GetAll(name string) []Sample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.history[name]
	out := make([]Sample, len(all))
	copy(out, all)
	return out
}

// GetLatest returns the most recent sample for name, or ErrNotFound if
// none have been recorded.
func (s *Substrate) GetLatest(name string) (Sample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.history[name]
	if len(all) == 0 {
		return Sample{}, ErrNotFound
	}
	return all[len(all)-1], nil
}

// Keys returns the set of variable names that have ever been recorded.
func (s *Substrate) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.history))
	for k := range s.history {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Snapshot returns a deep copy of the full history, keyed by variable
// name, suitable for persisting to values.json.
func (s *Substrate) Snapshot() map[string][]Sample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]Sample, len(s.history))
	for k, v := range s.history {
		cp := make([]Sample, len(v))
		copy(cp, v)
		out[k] = cp
	}
	return out
}
