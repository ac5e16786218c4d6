// Package derived implements observables computed from other
// observables: a running rectangular time integral and a math
// expression recomputed whenever any of its referenced variables
// updates.
//
// Grounded on original_source's backend/combined_observables/
// combined_observables.py (_update_integral and the expression
// evaluator), republished through pkg/observable's existing
// Subscribe/Update mechanism instead of a bespoke notification path.
package derived

import (
	"strconv"
	"time"

	"github.com/labstation/orchestrator/pkg/mathexpr"
	"github.com/labstation/orchestrator/pkg/observable"
)

// TimeIntegral publishes a running rectangular integral of a source
// variable into its own observable substrate, under name: each update
// advances the accumulator by (t - t_prev) × the newly observed value.
type TimeIntegral struct {
	source    *observable.Substrate
	sourceKey string
	out       *observable.Substrate
	name      string

	started  bool
	prevTime time.Time
	running  float64
}

// NewTimeIntegral builds a TimeIntegral reading sourceKey off source
// and publishing name into out.
func NewTimeIntegral(source *observable.Substrate, sourceKey string, out *observable.Substrate, name string) *TimeIntegral {
	return &TimeIntegral{source: source, sourceKey: sourceKey, out: out, name: name}
}

// Start back-fills the integral from every sample of sourceKey
// recorded at or after since, then subscribes for future updates.
func (ti *TimeIntegral) Start(since time.Time) {
	for _, s := range ti.source.GetAll(ti.sourceKey) {
		if s.Time.Before(since) {
			continue
		}
		ti.advance(s.Time, s.Value)
	}
	ti.source.Subscribe(observable.ObserverFunc(func(producer *observable.Substrate, key string, value string, at time.Time) {
		if key == ti.sourceKey {
			ti.advance(at, value)
		}
	}))
}

func (ti *TimeIntegral) advance(at time.Time, rawValue string) {
	v, err := strconv.ParseFloat(rawValue, 64)
	if err != nil {
		v = 0
	}
	if !ti.started {
		ti.started = true
		ti.prevTime = at
		ti.out.UpdateOne(ti.name, strconv.FormatFloat(ti.running, 'g', -1, 64), at)
		return
	}
	dt := at.Sub(ti.prevTime).Seconds()
	ti.running += dt * v
	ti.prevTime = at
	ti.out.UpdateOne(ti.name, strconv.FormatFloat(ti.running, 'g', -1, 64), at)
}

// MathExpression recomputes an expression and republishes it as name
// whenever any variable it references updates, as long as every
// referenced variable has at least one recorded sample.
type MathExpression struct {
	source *observable.Substrate
	out    *observable.Substrate
	name   string
	expr   mathexpr.Expression
	vars   []string

	lastAt time.Time
	has    bool
}

// NewMathExpression builds a MathExpression over expr, reading its
// variables from source and publishing name into out.
func NewMathExpression(source *observable.Substrate, out *observable.Substrate, name string, expr mathexpr.Expression) *MathExpression {
	return &MathExpression{source: source, out: out, name: name, expr: expr, vars: expr.Variables()}
}

// Start subscribes to source for updates to any referenced variable.
func (m *MathExpression) Start() {
	m.source.Subscribe(observable.ObserverFunc(func(producer *observable.Substrate, key string, value string, at time.Time) {
		if !m.references(key) {
			return
		}
		if m.has && !at.After(m.lastAt) {
			return
		}
		m.recompute(at)
	}))
}

func (m *MathExpression) references(key string) bool {
	for _, v := range m.vars {
		if v == key {
			return true
		}
	}
	return false
}

func (m *MathExpression) recompute(at time.Time) {
	values := make(map[string]float64, len(m.vars))
	for _, v := range m.vars {
		s, err := m.source.GetLatest(v)
		if err != nil {
			return
		}
		f, err := strconv.ParseFloat(s.Value, 64)
		if err != nil {
			return
		}
		values[v] = f
	}
	result, err := m.expr.Evaluate(values)
	if err != nil {
		return
	}
	m.has = true
	m.lastAt = at
	m.out.UpdateOne(m.name, strconv.FormatFloat(result, 'g', -1, 64), at)
}
