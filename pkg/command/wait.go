package command

import (
	"sync"

	"github.com/labstation/orchestrator/internal/future"
	"github.com/labstation/orchestrator/pkg/result"
)

// WaitCommand is a synchronization point, not a wire command: Execute
// completes immediately (there is nothing to transmit), and the
// command stays Sent until something external — normally
// pkg/condition.Handler, once the condition WaitCommand was built for
// evaluates true — calls Fulfil or Fail. Grounded on original_source's
// WaitCommand, whose execute() fires deferred_execution immediately
// while deferred_result is fulfilled later by the condition handler.
type WaitCommand struct {
	mu sync.Mutex

	params Params
	state  State

	execFuture   *future.Future[struct{}]
	resultFuture *future.Future[*result.Result]
}

// NewWait builds a WaitCommand. A Device holds devicestate.Waiting while
// a WaitCommand is in flight, whatever DeviceStateWhileExecuting in
// params says.
func NewWait(params Params) *WaitCommand {
	return &WaitCommand{
		params:       params,
		execFuture:   future.New[struct{}](),
		resultFuture: future.New[*result.Result](),
	}
}

var _ Instance = (*WaitCommand)(nil)

func (w *WaitCommand) Params() *Params { return &w.params }

func (w *WaitCommand) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Bytestring is always nil: a WaitCommand transmits nothing.
func (w *WaitCommand) Bytestring() []byte { return nil }

func (w *WaitCommand) ExecFuture() *future.Future[struct{}]        { return w.execFuture }
func (w *WaitCommand) ResultFuture() *future.Future[*result.Result] { return w.resultFuture }

// Execute immediately marks the command Sent and fulfils ExecFuture;
// ResultFuture stays unsettled until Fulfil or Fail.
func (w *WaitCommand) Execute() {
	w.mu.Lock()
	w.state = Sent
	w.mu.Unlock()
	w.execFuture.Settle(struct{}{}, nil)
}

// Fulfil settles the wait successfully, normally called by the
// condition handler once its condition evaluates true.
func (w *WaitCommand) Fulfil(r *result.Result) {
	w.mu.Lock()
	if w.state.Terminal() {
		w.mu.Unlock()
		return
	}
	w.state = Success
	w.mu.Unlock()
	w.resultFuture.Settle(r, nil)
}

// Fail settles the wait with err, e.g. if the device it was waiting on
// entered Error before the condition became true.
func (w *WaitCommand) Fail(err error) {
	w.mu.Lock()
	if w.state.Terminal() {
		w.mu.Unlock()
		return
	}
	w.state = Fail
	w.mu.Unlock()
	w.resultFuture.Settle(nil, err)
}

// SetTempResult always returns ErrNoCurrentCommand and records nothing:
// a WaitCommand never receives a framed device reply, only an external
// Fulfil/Fail.
func (w *WaitCommand) SetTempResult(v any) error {
	return ErrNoCurrentCommand
}

// HandleReply never consumes: a WaitCommand settles only via an
// external Fulfil/Fail from the condition handler.
func (w *WaitCommand) HandleReply(reply *result.Result) bool {
	return false
}

// Cancel aborts the wait.
func (w *WaitCommand) Cancel() error {
	w.mu.Lock()
	if w.state.Terminal() {
		w.mu.Unlock()
		return ErrAlreadyTerminal
	}
	w.state = Cancelled
	w.mu.Unlock()
	w.resultFuture.Cancel()
	return nil
}
