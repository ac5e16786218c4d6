package command

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/labstation/orchestrator/internal/future"
	"github.com/labstation/orchestrator/pkg/result"
)

// CommandSeries runs a fixed ordered list of child Instances as one
// logical transaction: each child dispatches only once its predecessor
// has succeeded, and the series succeeds once its last child does.
// A child failing does not fail the series outright: the whole series
// restarts from its first child, up to its own Params.Retries times,
// before settling Fail with a SeriesError. Series nest naturally: a
// CommandSeries satisfies Instance, so a child may itself be a
// *CommandSeries.
//
// Children are supplied as factories rather than ready-made Instances:
// a settled Command cannot be re-executed (its futures resolve once),
// so a series-level retry needs a fresh child set, the same reason
// RepeatedCommand takes a makeChild closure instead of a bare Instance.
// Grounded on original_source's CommandSeries._retry (commands.py),
// which resets cmd_counter to 0 and zeroes every child's fail_count
// before re-dispatching from the first command; this rebuilds the
// children instead, since Go's Command has no in-place reset.
//
// The source's CommandSeries is also a Python context manager
// (`with CommandSeries(): ...`) that collects whatever commands run in
// its `with` block. Go has no equivalent scoped-collection construct,
// so this is built with an explicit Add, the idiomatic Go builder
// shape used for teacher's ParserParameterFactory-equivalent configs.
type CommandSeries struct {
	mu           sync.Mutex
	makeChildren []func() Instance
	children     []Instance
	index        int
	failCount    int
	params       Params
	state        State
	log          *slog.Logger

	execFuture   *future.Future[struct{}]
	resultFuture *future.Future[*result.Result]
}

// NewSeries creates an empty series. Add children before calling
// Execute.
func NewSeries(params Params, log *slog.Logger) *CommandSeries {
	if log == nil {
		log = slog.Default()
	}
	return &CommandSeries{
		params:       params,
		log:          log,
		execFuture:   future.New[struct{}](),
		resultFuture: future.New[*result.Result](),
	}
}

// Add appends a child factory and returns the series, for chaining.
// makeChild is called once per attempt (the first execution, and again
// for every series-level retry), so it typically closes over the same
// Transmitter/parser/bytestring and returns a fresh *Command.
func (cs *CommandSeries) Add(makeChild func() Instance) *CommandSeries {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.makeChildren = append(cs.makeChildren, makeChild)
	return cs
}

var _ Instance = (*CommandSeries)(nil)

func (cs *CommandSeries) Params() *Params { return &cs.params }

func (cs *CommandSeries) State() State {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.state
}

// Bytestring returns the current child's wire payload, or nil if the
// series hasn't started or has no children.
func (cs *CommandSeries) Bytestring() []byte {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if cs.index >= len(cs.children) {
		return nil
	}
	return cs.children[cs.index].Bytestring()
}

func (cs *CommandSeries) ExecFuture() *future.Future[struct{}]        { return cs.execFuture }
func (cs *CommandSeries) ResultFuture() *future.Future[*result.Result] { return cs.resultFuture }

// Execute dispatches the first child. An empty series succeeds
// immediately with a nil result.
func (cs *CommandSeries) Execute() {
	cs.mu.Lock()
	if len(cs.makeChildren) == 0 {
		cs.state = Success
		cs.mu.Unlock()
		cs.execFuture.Settle(struct{}{}, nil)
		cs.resultFuture.Settle(nil, nil)
		return
	}
	cs.buildChildrenLocked()
	cs.state = Sent
	first := cs.children[0]
	cs.mu.Unlock()
	cs.execFuture.Settle(struct{}{}, nil)
	cs.dispatch(first)
}

// buildChildrenLocked instantiates a fresh child Instance per factory
// and resets the cursor to 0, for the first attempt and for every
// series-level retry alike.
func (cs *CommandSeries) buildChildrenLocked() {
	cs.children = make([]Instance, len(cs.makeChildren))
	for i, makeChild := range cs.makeChildren {
		cs.children[i] = makeChild()
	}
	cs.index = 0
}

func (cs *CommandSeries) dispatch(child Instance) {
	child.Execute()
	child.ResultFuture().Then(func(r *result.Result, err error) {
		cs.onChildSettled(r, err)
	})
}

func (cs *CommandSeries) onChildSettled(r *result.Result, err error) {
	cs.mu.Lock()
	if err != nil {
		if errors.Is(err, future.ErrCancelled) {
			cs.state = Cancelled
			cs.mu.Unlock()
			cs.resultFuture.Cancel()
			return
		}

		cs.failCount++
		if cs.failCount > cs.params.Retries {
			cs.state = Fail
			cs.mu.Unlock()
			seriesErr := result.NewSeriesError(replyFromErr(err), err)
			cs.resultFuture.Settle(nil, seriesErr)
			return
		}

		cs.log.Info("series: child failed, retrying from the first command",
			slog.Int("attempt", cs.failCount), slog.String("error", err.Error()))
		cs.buildChildrenLocked()
		first := cs.children[0]
		cs.mu.Unlock()
		cs.dispatch(first)
		return
	}

	cs.index++
	if cs.index >= len(cs.children) {
		cs.state = Success
		cs.mu.Unlock()
		cs.resultFuture.Settle(r, nil)
		return
	}
	next := cs.children[cs.index]
	cs.mu.Unlock()
	cs.dispatch(next)
}

// HandleReply delegates to whichever child is currently in flight.
func (cs *CommandSeries) HandleReply(reply *result.Result) bool {
	cs.mu.Lock()
	if cs.index >= len(cs.children) {
		cs.mu.Unlock()
		return false
	}
	child := cs.children[cs.index]
	cs.mu.Unlock()
	return child.HandleReply(reply)
}

// SetTempResult delegates to whichever child is currently in flight.
func (cs *CommandSeries) SetTempResult(v any) error {
	cs.mu.Lock()
	if cs.index >= len(cs.children) {
		cs.mu.Unlock()
		return ErrNoCurrentCommand
	}
	child := cs.children[cs.index]
	cs.mu.Unlock()
	return child.SetTempResult(v)
}

// Cancel cancels whichever child is currently in flight; the series
// itself settles Cancelled once that propagates through onChildSettled.
func (cs *CommandSeries) Cancel() error {
	cs.mu.Lock()
	if cs.state.Terminal() {
		cs.mu.Unlock()
		return ErrAlreadyTerminal
	}
	if cs.index >= len(cs.children) {
		cs.mu.Unlock()
		return ErrNoCurrentCommand
	}
	child := cs.children[cs.index]
	cs.mu.Unlock()
	return child.Cancel()
}

func replyFromErr(err error) *result.Result {
	var ce result.CommandError
	if errors.As(err, &ce) {
		return ce.Reply()
	}
	return nil
}
