package condition

import (
	"sync"
	"time"

	"github.com/labstation/orchestrator/pkg/observable"
)

// Callback is invoked once a condition latches true.
type Callback func(now time.Time)

// Handler watches a set of conditions against the observable updates
// they depend on and fires each one's callbacks the first time it
// latches true. Grounded on original_source's ConditionHandler: the
// busy re-entrance guard and the "re-check the full remaining
// condition set after firing" fixpoint recursion reproduce
// check_conditions_and_callback/update exactly.
type Handler struct {
	mu sync.Mutex

	busy       bool
	conditions map[Condition][]Callback
	observed   map[*observable.Substrate]bool
}

// NewHandler builds an empty Handler.
func NewHandler() *Handler {
	return &Handler{
		conditions: make(map[Condition][]Callback),
		observed:   make(map[*observable.Substrate]bool),
	}
}

// AddCondition registers cond, subscribing to any of its observable
// objects the Handler isn't already watching, starts it, and arranges
// for cb to run once cond latches true. Multiple callbacks can be
// registered against the same condition (mirrors the source keeping a
// list of Deferreds per condition).
func (h *Handler) AddCondition(cond Condition, at time.Time, cb Callback) {
	h.mu.Lock()
	h.conditions[cond] = append(h.conditions[cond], cb)
	for _, obs := range cond.ObservableObjects() {
		if !h.observed[obs] {
			h.observed[obs] = true
			obs.Subscribe(h)
		}
	}
	h.mu.Unlock()

	cond.Start(at)
	h.checkAndCallback(at)
}

// RemoveCondition drops cond and its pending callbacks without firing
// them. It does not unsubscribe from shared observables, since another
// condition may still depend on the same one.
func (h *Handler) RemoveCondition(cond Condition) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conditions, cond)
}

// Update implements observable.Observer. A busy guard prevents
// re-entrant firing while a previous Update's callbacks are still
// running (mirrors the source's self._busy check).
func (h *Handler) Update(producer *observable.Substrate, key string, value string, at time.Time) {
	h.checkAndCallback(at)
}

// checkAndCallback evaluates every still-registered condition, fires
// the callbacks of every one that has newly latched true, then
// recurses against the full remaining condition map so a callback that
// itself depends on the just-fired conditions' side effects still gets
// a chance to latch in the same pass (mirrors
// check_conditions_and_callback recursing with self._conditions, not
// just the conditions it was originally passed).
func (h *Handler) checkAndCallback(now time.Time) {
	h.mu.Lock()
	if h.busy {
		h.mu.Unlock()
		return
	}

	type due struct {
		cond Condition
		cbs  []Callback
	}
	var fired []due
	for cond, cbs := range h.conditions {
		if cond.Check(now) {
			fired = append(fired, due{cond, cbs})
		}
	}
	if len(fired) == 0 {
		h.mu.Unlock()
		return
	}
	h.busy = true
	for _, f := range fired {
		delete(h.conditions, f.cond)
	}
	h.mu.Unlock()

	for _, f := range fired {
		for _, cb := range f.cbs {
			cb(now)
		}
	}

	h.mu.Lock()
	h.busy = false
	h.mu.Unlock()

	h.checkAndCallback(now)
}
