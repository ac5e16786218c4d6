package command

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/labstation/orchestrator/internal/clock"
	"github.com/labstation/orchestrator/internal/future"
	"github.com/labstation/orchestrator/pkg/result"
)

// Command is a single dispatched command: one wire write, one reply
// (or timeout), with retry governed by Params. Grounded on
// original_source's Command + the CommandState subclasses.
type Command struct {
	mu sync.Mutex

	device Transmitter
	clk    clock.Clock
	log    *slog.Logger

	bytestring []byte
	params     Params
	parser     Parser

	state      State
	failCount  int
	tempResult any
	result     *result.Result

	sentAt time.Time
	timer  clock.Alarm

	execFuture   *future.Future[struct{}]
	resultFuture *future.Future[*result.Result]
}

// New builds a Command in NotSent state. dev is the owning device's
// Transmitter; bytestring is the fully-formatted wire payload.
func New(dev Transmitter, clk clock.Clock, bytestring []byte, params Params, parser Parser, log *slog.Logger) *Command {
	if log == nil {
		log = slog.Default()
	}
	return &Command{
		device:       dev,
		clk:          clk,
		log:          log,
		bytestring:   bytestring,
		params:       params,
		parser:       parser,
		state:        NotSent,
		execFuture:   future.New[struct{}](),
		resultFuture: future.New[*result.Result](),
	}
}

var _ Instance = (*Command)(nil)

// Params returns the command's configuration.
func (c *Command) Params() *Params { return &c.params }

// Bytestring returns the wire payload to send.
func (c *Command) Bytestring() []byte { return c.bytestring }

// ExecFuture settles once Execute has run.
func (c *Command) ExecFuture() *future.Future[struct{}] { return c.execFuture }

// ResultFuture settles once the command reaches Success or a failure.
func (c *Command) ResultFuture() *future.Future[*result.Result] { return c.resultFuture }

// State returns the current command state.
func (c *Command) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Execute writes the command to the device and arms the timeout timer.
func (c *Command) Execute() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.doExecuteLocked()
	c.execFuture.Settle(struct{}{}, nil)
}

func (c *Command) doExecuteLocked() {
	if err := c.device.TransmitCommand(c); err != nil {
		c.log.Error("command: transmit failed", slog.String("error", err.Error()))
	}
	c.state = Sent
	c.sentAt = c.clk.Now()
	var alarm clock.Alarm
	alarm = c.clk.AfterFunc(c.params.Timeout, func() { c.onTimeout(alarm) })
	c.timer = alarm
}

func (c *Command) onTimeout(alarm clock.Alarm) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Sent || c.timer != alarm {
		return
	}
	c.timer = nil
	reply := result.New("", c.clk.Now())
	c.tempResult = result.NewTimeoutError(reply)
	c.transitionLocked(Retry)
}

// SetTempResult records a parsed reply or classified error and
// disarms the timeout timer. Callers (pkg/device, after matching a
// framed reply to this command) then drive the transition implied by
// the parser's NextState via Transition.
func (c *Command) SetTempResult(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == NotSent {
		return ErrWrongState
	}
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.tempResult = v
	if r, ok := v.(*result.Result); ok {
		r.Command = c
	}
	return nil
}

// Transition drives the command to next. Exported so pkg/device can
// apply the NextState a Parser returned.
func (c *Command) Transition(next State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transitionLocked(next)
}

// HandleReply runs reply through the command's parser and applies the
// resulting transition. Always returns true: a plain Command always
// consumes whatever reply it receives while Sent.
func (c *Command) HandleReply(reply *result.Result) bool {
	c.mu.Lock()
	parser := c.parser
	c.mu.Unlock()

	parsed, next := parser.Parse(reply)
	_ = c.SetTempResult(parsed)
	c.Transition(next)
	return true
}

func (c *Command) transitionLocked(next State) {
	switch next {
	case Sent:
		c.doExecuteLocked()
	case Retry:
		c.enterRetryLocked()
	case Success:
		c.state = Success
		if r, ok := c.tempResult.(*result.Result); ok {
			c.result = r
		}
		c.resultFuture.Settle(c.result, nil)
	case Fail:
		c.state = Fail
		var err error
		if ce, ok := c.tempResult.(result.CommandError); ok {
			err = ce
		} else {
			err = fmt.Errorf("command: failed: %v", c.tempResult)
		}
		c.resultFuture.Settle(nil, err)
	case Cancelled:
		c.state = Cancelled
		if c.timer != nil {
			c.timer.Stop()
			c.timer = nil
		}
		c.resultFuture.Cancel()
	default:
		c.state = next
	}
}

// enterRetryLocked implements the source's Retry.__new__ dispatch:
// Retry is never actually held as a resting state, it immediately
// resolves to Sent (re-dispatch) or Fail.
func (c *Command) enterRetryLocked() {
	c.failCount++

	if ce, ok := c.tempResult.(result.CommandError); ok {
		if c.failCount > c.params.Retries {
			reply := ce.Reply()
			c.tempResult = result.NewRetryError(reply, ce)
			c.transitionLocked(Fail)
			return
		}
		switch ce.(type) {
		case *result.DeviceError:
			if c.params.OnError == ActionFail {
				c.transitionLocked(Fail)
				return
			}
		case *result.TimeoutError:
			if c.params.OnTimeout == ActionFail {
				c.transitionLocked(Fail)
				return
			}
		}
	} else if c.failCount > c.params.Retries {
		c.tempResult = result.NewRetryError(nil, nil)
		c.transitionLocked(Fail)
		return
	}

	c.state = Retry
	c.doExecuteLocked()
}

// Cancel aborts the command. A no-op error if already terminal.
func (c *Command) Cancel() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Terminal() {
		return ErrAlreadyTerminal
	}
	c.transitionLocked(Cancelled)
	return nil
}
