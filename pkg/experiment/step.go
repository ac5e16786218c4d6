package experiment

// Step is one entry in an experiment's ordered command list (spec
// §4.K): either a bound device command or a nested sub-experiment.
// Grounded on original_source's Experiment._run_command, which
// type-switches each entry between a (function, args, kwargs) tuple
// and a sub-experiment object; Go makes that an explicit interface
// instead of a runtime TypeError catch.
type Step interface {
	// run invokes the step. done is called exactly once, with a
	// non-nil error if the step failed outright; a CommandStep calls
	// done synchronously (dispatching a device command only enqueues
	// it, it does not wait for a reply), a SubexperimentStep calls
	// done once the sub-experiment reaches a terminal state.
	run(e *Experiment, done func(err error))
}

// CommandStep dispatches a single bound device command. Dispatch is
// typically a closure built by pkg/config resolving a
// (device, method, args, kwargs) tuple against a device registry.
type CommandStep struct {
	Dispatch func() error
}

func (c CommandStep) run(e *Experiment, done func(err error)) {
	done(c.Dispatch())
}

// SubexperimentStep runs a nested Experiment to completion before the
// parent continues. The sub-experiment shares the parent's device set
// is caller-configured; this step only sequences it.
type SubexperimentStep struct {
	Sub *Experiment
}

func (s SubexperimentStep) run(e *Experiment, done func(err error)) {
	s.Sub.parent = e
	s.Sub.onDone(func(final State) {
		if final == Failed || final == Stopped {
			done(errFromState(final))
			return
		}
		done(nil)
	})
	s.Sub.Start(e.clk.Now())
}
