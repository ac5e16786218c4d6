package command

import (
	"log/slog"
	"sync"
	"time"

	"github.com/labstation/orchestrator/internal/clock"
	"github.com/labstation/orchestrator/internal/future"
	"github.com/labstation/orchestrator/pkg/result"
)

// RepeatedCommand re-dispatches a freshly built child at a fixed
// interval until Stop is called (normally by a condition handler
// reacting to the series' stop-condition) or a child
// fails outright. Grounded on original_source's RepeatedCommand, whose
// deferred_result callback chaining this reimplements as a Future
// chain plus an injected Clock instead of `reactor.callLater`.
//
// Cancel is intentionally unsupported (Open Question (b)): the source
// raises NotImplementedError from RepeatedCommand.cancel, on the
// reasoning that a repeated command is stopped declaratively via its
// stop condition, not by an imperative cancel from an unrelated
// caller.
type RepeatedCommand struct {
	mu sync.Mutex

	makeChild func() Instance
	interval  time.Duration
	clk       clock.Clock
	log       *slog.Logger
	params    Params

	state   State
	stopped bool
	current Instance
	timer   clock.Alarm

	execFuture   *future.Future[struct{}]
	resultFuture *future.Future[*result.Result]
}

// NewRepeated builds a RepeatedCommand. makeChild is called once per
// dispatch to produce the Instance to run that round (it typically
// closes over the same Transmitter/parser/bytestring and returns a
// fresh *Command, since a settled Command cannot be re-executed).
func NewRepeated(makeChild func() Instance, interval time.Duration, clk clock.Clock, params Params, log *slog.Logger) *RepeatedCommand {
	if log == nil {
		log = slog.Default()
	}
	return &RepeatedCommand{
		makeChild:    makeChild,
		interval:     interval,
		clk:          clk,
		log:          log,
		params:       params,
		execFuture:   future.New[struct{}](),
		resultFuture: future.New[*result.Result](),
	}
}

var _ Instance = (*RepeatedCommand)(nil)

func (rc *RepeatedCommand) Params() *Params { return &rc.params }

func (rc *RepeatedCommand) State() State {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.state
}

func (rc *RepeatedCommand) Bytestring() []byte {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if rc.current == nil {
		return nil
	}
	return rc.current.Bytestring()
}

func (rc *RepeatedCommand) ExecFuture() *future.Future[struct{}]        { return rc.execFuture }
func (rc *RepeatedCommand) ResultFuture() *future.Future[*result.Result] { return rc.resultFuture }

// Execute dispatches the first round.
func (rc *RepeatedCommand) Execute() {
	rc.mu.Lock()
	rc.state = Sent
	rc.mu.Unlock()
	rc.execFuture.Settle(struct{}{}, nil)
	rc.dispatchRound()
}

func (rc *RepeatedCommand) dispatchRound() {
	rc.mu.Lock()
	if rc.stopped {
		rc.mu.Unlock()
		return
	}
	child := rc.makeChild()
	rc.current = child
	rc.mu.Unlock()

	child.Execute()
	child.ResultFuture().Then(rc.onRoundSettled)
}

func (rc *RepeatedCommand) onRoundSettled(r *result.Result, err error) {
	if err != nil {
		rc.mu.Lock()
		rc.state = Fail
		rc.mu.Unlock()
		rc.resultFuture.Settle(nil, err)
		return
	}

	rc.mu.Lock()
	if rc.stopped {
		rc.state = Success
		rc.mu.Unlock()
		rc.resultFuture.Settle(r, nil)
		return
	}
	var alarm clock.Alarm
	alarm = rc.clk.AfterFunc(rc.interval, func() { rc.onTimerDue(alarm) })
	rc.timer = alarm
	rc.mu.Unlock()
}

func (rc *RepeatedCommand) onTimerDue(alarm clock.Alarm) {
	rc.mu.Lock()
	if rc.timer != alarm {
		rc.mu.Unlock()
		return
	}
	rc.timer = nil
	rc.mu.Unlock()
	rc.dispatchRound()
}

// Stop requests that no further rounds be dispatched. If a round is
// currently in flight, the repeated command settles Success once that
// round completes; if idle between rounds (waiting on the interval
// timer), it settles immediately.
func (rc *RepeatedCommand) Stop() {
	rc.mu.Lock()
	if rc.stopped {
		rc.mu.Unlock()
		return
	}
	rc.stopped = true
	if rc.timer != nil {
		rc.timer.Stop()
		rc.timer = nil
		rc.state = Success
		rc.mu.Unlock()
		rc.resultFuture.Settle(nil, nil)
		return
	}
	rc.mu.Unlock()
}

// HandleReply delegates to the round currently in flight.
func (rc *RepeatedCommand) HandleReply(reply *result.Result) bool {
	rc.mu.Lock()
	child := rc.current
	rc.mu.Unlock()
	if child == nil {
		return false
	}
	return child.HandleReply(reply)
}

// SetTempResult delegates to the round currently in flight.
func (rc *RepeatedCommand) SetTempResult(v any) error {
	rc.mu.Lock()
	child := rc.current
	rc.mu.Unlock()
	if child == nil {
		return ErrNoCurrentCommand
	}
	return child.SetTempResult(v)
}

// Cancel always fails; see the type doc comment.
func (rc *RepeatedCommand) Cancel() error {
	return ErrRepeatedCommandCancelUnsupported
}
