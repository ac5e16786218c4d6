package experiment

import (
	"errors"
	"sync"

	"github.com/labstation/orchestrator/internal/clock"
)

// ErrUnknownExperiment is returned when EnqueueAfter names an id that
// is neither running nor queued.
var ErrUnknownExperiment = errors.New("experiment: unknown experiment id")

// Scheduler runs at most one experiment at a time, advancing to the
// next queued experiment whenever the running one reaches a terminal
// state.
type Scheduler struct {
	mu      sync.Mutex
	queue   []*Experiment
	running *Experiment
	clk     clock.Clock
}

// NewScheduler builds an empty Scheduler.
func NewScheduler(clk clock.Clock) *Scheduler {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Scheduler{clk: clk}
}

// Enqueue appends exp to the tail of the queue and starts it
// immediately if nothing is currently running.
func (s *Scheduler) Enqueue(exp *Experiment) {
	s.mu.Lock()
	s.queue = append(s.queue, exp)
	s.mu.Unlock()
	s.maybeAdvance()
}

// EnqueueAfter inserts exp immediately after the experiment identified
// by afterID, whether that experiment is currently running or merely
// queued. Since the running experiment has no queue position, this is
// the only supported way to target it; there is no operation to insert
// before the currently-running experiment ("insertion before
// the currently-running experiment is rejected").
func (s *Scheduler) EnqueueAfter(exp *Experiment, afterID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running != nil && s.running.ID() == afterID {
		s.queue = append([]*Experiment{exp}, s.queue...)
		return nil
	}
	for i, q := range s.queue {
		if q.ID() == afterID {
			s.queue = append(s.queue[:i+1], append([]*Experiment{exp}, s.queue[i+1:]...)...)
			return nil
		}
	}
	return ErrUnknownExperiment
}

// Running returns the currently executing experiment, or nil.
func (s *Scheduler) Running() *Experiment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Queued returns a snapshot of the pending queue, not including the
// currently running experiment.
func (s *Scheduler) Queued() []*Experiment {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Experiment, len(s.queue))
	copy(out, s.queue)
	return out
}

func (s *Scheduler) maybeAdvance() {
	s.mu.Lock()
	if s.running != nil || len(s.queue) == 0 {
		s.mu.Unlock()
		return
	}
	next := s.queue[0]
	s.queue = s.queue[1:]
	s.running = next
	s.mu.Unlock()

	next.onDone(func(State) {
		s.mu.Lock()
		s.running = nil
		s.mu.Unlock()
		s.maybeAdvance()
	})
	next.Start(s.clk.Now())
}
