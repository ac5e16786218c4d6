package driver

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"

	"github.com/labstation/orchestrator/internal/clock"
	"github.com/labstation/orchestrator/pkg/command"
	"github.com/labstation/orchestrator/pkg/parser"
)

// Thermostat is a reference driver for a simple setpoint-controlled
// thermostat, grounded on original_source's thermostat_base.py's
// abstract contract (set_temperature/get_current_temperature/
// stop_tempering), with a concrete command catalog and reply parser
// supplied here since the abstract base leaves the wire format to a
// concrete subclass.
type Thermostat struct {
	dev Transmitter
	clk clock.Clock
	log *slog.Logger
}

// NewThermostat builds a Thermostat driving dev.
func NewThermostat(dev Transmitter, clk clock.Clock, log *slog.Logger) *Thermostat {
	return &Thermostat{dev: dev, clk: clk, log: log}
}

// SetTemperature sends the setpoint command.
func (t *Thermostat) SetTemperature(celsius float64) error {
	cmd := command.New(t.dev, t.clk, []byte(fmt.Sprintf("SET_TEMP %.2f", celsius)), command.DefaultParams(), parser.SuccessParser{}, t.log)
	return t.dev.SendCommand(cmd)
}

// GetCurrentTemperature queries the device's current reading; the
// parsed value lands in the command's settled result under the
// "temperature" capture group.
func (t *Thermostat) GetCurrentTemperature() (command.Instance, error) {
	params := command.DefaultParams()
	params.Query = true
	p := &parser.RegexParser{Pattern: regexp.MustCompile(`^TEMP=(?P<temperature>-?\d+(\.\d+)?)$`)}
	cmd := command.New(t.dev, t.clk, []byte("GET_TEMP"), params, p, t.log)
	err := t.dev.SendCommand(cmd)
	return cmd, err
}

// StopTempering sends the stop command.
func (t *Thermostat) StopTempering() error {
	cmd := command.New(t.dev, t.clk, []byte("STOP_TEMP"), command.DefaultParams(), parser.SuccessParser{}, t.log)
	return t.dev.SendCommand(cmd)
}

// ParseTemperature extracts the numeric reading from a settled
// GetCurrentTemperature result.
func ParseTemperature(params map[string]string) (float64, error) {
	raw, ok := params["temperature"]
	if !ok {
		return 0, fmt.Errorf("driver: no temperature capture in reply")
	}
	return strconv.ParseFloat(raw, 64)
}
