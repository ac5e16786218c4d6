// Package device implements the device lifecycle state machine and the
// line-oriented wire protocol a Device speaks to an instrument.
//
// Grounded on original_source's backend/devices/devicestate.py (the
// state classes) and backend/devices/base.py (AbstractBaseDevice's
// connect/write/receive dispatch); reconnection is delegated to
// pkg/connection.Manager, kept close to verbatim since its
// exponential-backoff reconnect loop is domain-agnostic and exactly
// what a "reconnect with backoff" behavior needs.
package device

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/labstation/orchestrator/internal/clock"
	"github.com/labstation/orchestrator/pkg/command"
	"github.com/labstation/orchestrator/pkg/connection"
	"github.com/labstation/orchestrator/pkg/devicestate"
	"github.com/labstation/orchestrator/pkg/failsafe"
	"github.com/labstation/orchestrator/pkg/observable"
	"github.com/labstation/orchestrator/pkg/result"
	"github.com/labstation/orchestrator/pkg/transport"
)

// EventSink receives device lifecycle notifications for logging, kept
// as a narrow local interface rather than importing pkg/runlog
// directly so pkg/device has no dependency on how events end up
// persisted. *runlog.Recorder satisfies this structurally.
type EventSink interface {
	DeviceStateChanged(device string, from, to devicestate.Name, at time.Time)
	CommandDispatched(device string, bytestring []byte, at time.Time)
	CommandReplyReceived(device string, line string, at time.Time)
}

// Conn is the minimal surface Device needs from a dialed connection.
type Conn interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
}

// Config configures a new Device.
type Config struct {
	Name                string
	Address             string
	Delimiter           byte
	NonDelimitedReplies []string
	DialTimeout         time.Duration
	Clock               clock.Clock
	Log                 *slog.Logger
	Sink                EventSink
	// InitSeries, if set, is called once per successful connect to
	// build a command run before the device becomes Ready (spec
	// §4.F's Initializing state).
	InitSeries func(d *Device) command.Instance
	// Failsafe, if set, is armed on disconnect and cleared on
	// reconnect; if the device stays unreachable past its grace
	// period, the trip is logged as a warning. The device enters Error
	// as soon as it disconnects, whether or not a Failsafe is set.
	Failsafe *failsafe.Timer
}

// Device is one instrument connection plus its command queue and
// lifecycle state.
type Device struct {
	mu sync.Mutex

	name        string
	address     string
	delim       byte
	nonDelim    []string
	dialTimeout time.Duration
	clk         clock.Clock
	log         *slog.Logger
	sink        EventSink
	initFactory func(d *Device) command.Instance

	obs *observable.Substrate

	st          state
	stateGen    int
	consumedGen int
	queue       []command.Instance
	current     command.Instance

	writeMu sync.Mutex
	conn    Conn
	writer  *transport.LineWriter
	reader  *transport.LineReader

	reconn             *connection.Manager
	startReconnectOnce sync.Once

	failsafe *failsafe.Timer

	channels *channels
}

// New builds a Device in its NotReady state.
func New(cfg Config) *Device {
	if cfg.Delimiter == 0 {
		cfg.Delimiter = '\n'
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real{}
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	d := &Device{
		name:        cfg.Name,
		address:     cfg.Address,
		delim:       cfg.Delimiter,
		nonDelim:    cfg.NonDelimitedReplies,
		dialTimeout: cfg.DialTimeout,
		clk:         cfg.Clock,
		log:         cfg.Log,
		sink:        cfg.Sink,
		initFactory: cfg.InitSeries,
		failsafe:    cfg.Failsafe,
		obs:         observable.NewSubstrate(),
		st:          notReadyState{},
		channels:    newChannels(),
	}
	d.reconn = connection.NewManager(d.dial)
	d.reconn.OnConnected(d.onConnected)
	d.reconn.OnDisconnected(d.onDisconnected)
	if d.failsafe != nil {
		d.failsafe.OnTrip(d.onFailsafeTrip)
	}
	return d
}

// Name returns the device's configured name.
func (d *Device) Name() string { return d.name }

// Observable returns the device's own observable substrate.
func (d *Device) Observable() *observable.Substrate { return d.obs }

// State returns the current lifecycle state name.
func (d *Device) State() devicestate.Name {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.st.name()
}

// Connect dials the device and, once connected, runs its
// initialization series (if any) before becoming Ready. Subsequent
// connection loss triggers the reconnect manager's backoff loop
// automatically.
func (d *Device) Connect(ctx context.Context) error {
	d.startReconnectOnce.Do(d.reconn.StartReconnectLoop)
	return d.reconn.Connect(ctx)
}

// dial is the connection.ConnectFunc passed to the reconnect manager.
func (d *Device) dial(ctx context.Context) error {
	conn, err := transport.Dial(d.address, d.dialTimeout)
	if err != nil {
		return fmt.Errorf("device %s: dial %s: %w", d.name, d.address, err)
	}
	d.writeMu.Lock()
	d.conn = conn
	d.writer = transport.NewLineWriter(conn)
	d.reader = transport.NewLineReader(conn, d.delim, d.nonDelim)
	d.writeMu.Unlock()
	return nil
}

func (d *Device) onConnected() {
	go d.readLoop()

	if d.failsafe != nil {
		d.failsafe.NotifyConnected()
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.setStateLocked(initializingState{})
}

func (d *Device) onDisconnected() {
	if d.failsafe != nil {
		d.failsafe.NotifyDisconnected()
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.setStateLocked(errorState{})
}

// onFailsafeTrip fires once the device has stayed disconnected past
// its configured grace period; the device is already in Error from
// onDisconnected, so this only logs the safety trip for the operator.
func (d *Device) onFailsafeTrip() {
	d.log.Warn("device: failsafe tripped, device unreachable past grace period", slog.String("device", d.name))
}

// Stop disconnects and prevents automatic reconnection.
func (d *Device) Stop() {
	d.reconn.SetAutoReconnect(false)
	d.reconn.Disconnect()
	d.mu.Lock()
	defer d.mu.Unlock()
	d.setStateLocked(stoppedState{})
}

// Shutdown is the terminal lifecycle transition: no further reconnect,
// no further commands.
func (d *Device) Shutdown() {
	d.reconn.Close()
	d.mu.Lock()
	defer d.mu.Unlock()
	d.setStateLocked(shutdownState{})
}

// SendCommand is the public entry point drivers and experiments use to
// submit a command. Whether it dispatches immediately or queues
// depends on the device's current state.
func (d *Device) SendCommand(cmd command.Instance) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.st.accept(d, cmd)
}

// TransmitCommand implements command.Transmitter: it writes the
// command's wire bytes, serialized against any concurrent write by a
// dedicated lock independent of the state-machine mutex, so a command
// retrying on a timer never risks deadlocking against Device.mu.
func (d *Device) TransmitCommand(cmd command.Instance) error {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()
	if d.writer == nil {
		return ErrNotConnected
	}
	bs := cmd.Bytestring()
	_, err := d.writer.Write(bs)
	if d.sink != nil {
		d.sink.CommandDispatched(d.name, bs, d.clk.Now())
	}
	return err
}

func (d *Device) readLoop() {
	for {
		line, err := d.reader.ReadLine()
		if err != nil {
			d.log.Warn("device: connection lost", slog.String("device", d.name), slog.String("error", err.Error()))
			d.reconn.NotifyConnectionLost()
			return
		}
		d.handleLine(line)
	}
}

// handleLine routes an incoming reply line to whichever command is
// currently in flight; a line that no in-flight command consumes is
// published as an "event" observable instead, mirroring
// original_source's _was_event/_was_error classification fallthrough.
func (d *Device) handleLine(line string) {
	at := d.clk.Now()
	if d.sink != nil {
		d.sink.CommandReplyReceived(d.name, line, at)
	}
	reply := result.New(line, at)

	d.mu.Lock()
	current := d.current
	d.mu.Unlock()

	if current != nil && current.HandleReply(reply) {
		return
	}
	d.obs.UpdateOne("event", line, at)
}

// dispatchLocked assumes d.mu is held on entry and returns with it held
// again, but releases it around cmd.Execute(): a series or repeated
// command can settle its result future synchronously during Execute,
// and the settlement callback (onCommandSettled) needs to acquire
// d.mu itself. Holding the lock across Execute would deadlock against
// that same-goroutine re-entry, since sync.Mutex isn't reentrant.
func (d *Device) dispatchLocked(cmd command.Instance) {
	d.current = cmd
	if _, waiting := cmd.(*command.WaitCommand); waiting {
		d.setStateLocked(waitingState{})
	} else {
		d.setStateLocked(busyState{})
	}
	cmd.ResultFuture().Then(func(r *result.Result, err error) {
		d.onCommandSettled(cmd, r, err)
	})

	d.mu.Unlock()
	cmd.Execute()
	d.mu.Lock()
}

func (d *Device) enqueueLocked(cmd command.Instance) {
	if !cmd.Params().Urgent {
		d.queue = append(d.queue, cmd)
		return
	}
	pos := 0
	for pos < len(d.queue) && d.queue[pos].Params().Urgent {
		pos++
	}
	d.queue = append(d.queue[:pos:pos], append([]command.Instance{cmd}, d.queue[pos:]...)...)
}

func (d *Device) onCommandSettled(cmd command.Instance, r *result.Result, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.current != cmd {
		return
	}
	d.current = nil

	if err != nil {
		d.log.Debug("device: command failed", slog.String("device", d.name), slog.String("error", err.Error()))
	}

	if len(d.queue) > 0 {
		next := d.queue[0]
		d.queue = d.queue[1:]
		d.dispatchLocked(next)
		return
	}

	d.setStateLocked(stateFromName(cmd.Params().NextDeviceState))
}

func (d *Device) runInitSeriesLocked() {
	if d.initFactory == nil {
		d.setStateLocked(readyState{})
		return
	}
	d.dispatchLocked(d.initFactory(d))
}

func (d *Device) setStateLocked(next state) {
	old := d.st
	d.st = next
	d.stateGen++
	at := d.clk.Now()
	d.obs.UpdateOne("state", string(next.name()), at)
	if d.sink != nil {
		d.sink.DeviceStateChanged(d.name, old.name(), next.name(), at)
	}
	next.enter(d)
}

// ConsumeStateEntry reports whether the device is currently in target
// and this particular entry into that state has not yet been claimed
// by a DevicesStateEqualsCondition, claiming it if so. Grounded on
// original_source's DevicesStateEqualsCondition, which stamps a
// one-shot `triggered_condition` attribute onto the device's state
// object (a fresh object per state entry) so two waiters don't both
// fire for the same entry; stateGen/consumedGen reproduce that without
// needing per-state-object attributes.
func (d *Device) ConsumeStateEntry(target devicestate.Name) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.st.name() != target || d.consumedGen == d.stateGen {
		return false
	}
	d.consumedGen = d.stateGen
	return true
}

// StateEntryAvailable peeks whether ConsumeStateEntry would currently
// succeed, without claiming it.
func (d *Device) StateEntryAvailable(target devicestate.Name) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.st.name() == target && d.consumedGen != d.stateGen
}

func stateFromName(name devicestate.Name) state {
	switch name {
	case devicestate.Ready:
		return readyState{}
	case devicestate.Busy:
		return busyState{}
	case devicestate.Waiting:
		return waitingState{}
	case devicestate.CollectingCommands:
		return collectingCommandsState{}
	case devicestate.Initializing:
		return initializingState{}
	case devicestate.Stopped:
		return stoppedState{}
	case devicestate.Error:
		return errorState{}
	case devicestate.Shutdown:
		return shutdownState{}
	default:
		return readyState{}
	}
}
