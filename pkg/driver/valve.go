package driver

import (
	"log/slog"

	"github.com/labstation/orchestrator/internal/clock"
	"github.com/labstation/orchestrator/pkg/command"
	"github.com/labstation/orchestrator/pkg/parser"
)

// Transmitter is the subset of *device.Device a driver needs to submit
// commands, declared locally so pkg/driver has no dependency on the
// rest of pkg/device's surface.
type Transmitter interface {
	command.Transmitter
	SendCommand(cmd command.Instance) error
}

// TwoWayValve is a reference driver for a two-state (open/closed) air
// valve, grounded on original_source's airvalve.py: a two-entry
// command catalog, a SuccessParser (the device never replies with
// anything meaningful beyond acknowledging receipt), and a
// command_execution_time short enough that retries rarely trigger.
type TwoWayValve struct {
	dev      Transmitter
	clk      clock.Clock
	log      *slog.Logger
	catalog  MapCatalog
	isOpen   bool
}

// NewTwoWayValve builds a TwoWayValve driving dev.
func NewTwoWayValve(dev Transmitter, clk clock.Clock, log *slog.Logger) *TwoWayValve {
	return &TwoWayValve{
		dev: dev,
		clk: clk,
		log: log,
		catalog: MapCatalog{
			"OPEN":  "AIRVALVE_OPEN",
			"CLOSE": "AIRVALVE_CLOSE",
		},
	}
}

func (v *TwoWayValve) params() command.Params {
	p := command.DefaultParams()
	p.CommandExecutionTime = 0
	p.Query = false
	return p
}

// Open sends the open command and optimistically records the new
// state; a real driver would instead update IsOpen from the command's
// settled result.
func (v *TwoWayValve) Open() error {
	tmpl, _ := v.catalog.Lookup("OPEN")
	cmd := command.New(v.dev, v.clk, []byte(tmpl), v.params(), parser.SuccessParser{}, v.log)
	if err := v.dev.SendCommand(cmd); err != nil {
		return err
	}
	v.isOpen = true
	return nil
}

// Close sends the close command.
func (v *TwoWayValve) Close() error {
	tmpl, _ := v.catalog.Lookup("CLOSE")
	cmd := command.New(v.dev, v.clk, []byte(tmpl), v.params(), parser.SuccessParser{}, v.log)
	if err := v.dev.SendCommand(cmd); err != nil {
		return err
	}
	v.isOpen = false
	return nil
}

// IsOpen reports the last commanded state.
func (v *TwoWayValve) IsOpen() bool { return v.isOpen }
