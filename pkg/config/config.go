// Package config loads the station's YAML configuration and resolves
// it into the device registry and experiment factories the rest of
// the program runs against.
//
// Grounded on original_source's main.py (`yaml.load(config.yml,
// SafeLoader)` feeding straight into Setup.__init__) and setup.py's
// device/experiment construction loop. Uses gopkg.in/yaml.v3, the same
// library pkg/pics/parser_yaml.go elsewhere in this corpus's stack
// decodes its own domain documents with: YAML is the config format, so
// that's the natural fit.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/labstation/orchestrator/internal/clock"
	"github.com/labstation/orchestrator/pkg/device"
	"github.com/labstation/orchestrator/pkg/driver"
	"github.com/labstation/orchestrator/pkg/experiment"
)

// Raw is the top-level shape of config.yml, mirroring the four keys
// original_source's Setup.__init__ reads off self.config.
type Raw struct {
	ListenPort  int                       `yaml:"listen_port"`
	LogLevel    string                    `yaml:"log_level"`
	Devices     map[string]DeviceEntry    `yaml:"devices"`
	Experiments map[string]ExperimentDoc  `yaml:"experiments"`
}

// DeviceEntry is one entry of the `devices` map: the driver name that
// selects a construction recipe, the instrument's network address,
// and any driver-specific overrides.
type DeviceEntry struct {
	Driver    string        `yaml:"driver"`
	Address   string        `yaml:"address"`
	Delimiter string        `yaml:"delimiter"`
	Timeout   time.Duration `yaml:"dial_timeout"`
}

// ExperimentDoc is one entry of the `experiments` map: an ordered list
// of command tuples, mirroring original_source's `commands` list.
// Each entry decodes as a raw YAML sequence since its shape varies
// between the 4-tuple device-command form and the 2-tuple
// subexperiment form.
type ExperimentDoc struct {
	Commands []CommandEntry `yaml:"commands"`
}

// CommandEntry is one line of an experiment's commands list, either
// [device, method, args, kwargs] or [experiment_type, kwargs].
type CommandEntry []interface{}

// Load reads and parses the YAML file at path.
func Load(path string) (*Raw, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var raw Raw
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return &raw, nil
}

// DriverInvoker dispatches a named method call with keyword arguments
// onto a constructed driver instance, standing in for Python's
// `getattr(device, method)(**kwargs)` in a statically-typed language.
type DriverInvoker interface {
	Invoke(method string, kwargs map[string]any) error
}

// Registry holds every device built from config, keyed by name, plus
// its driver-level invoker for resolving experiment command tuples.
type Registry struct {
	Devices  map[string]*device.Device
	Invokers map[string]DriverInvoker
}

// BuildDevices constructs every configured device and its driver
// wrapper. Devices are returned in the NotReady state; the caller is
// responsible for calling Connect on each.
func BuildDevices(raw *Raw, clk clock.Clock, log *slog.Logger, sink device.EventSink) (*Registry, error) {
	reg := &Registry{
		Devices:  make(map[string]*device.Device, len(raw.Devices)),
		Invokers: make(map[string]DriverInvoker, len(raw.Devices)),
	}
	for name, entry := range raw.Devices {
		delim := byte('\n')
		if entry.Delimiter != "" {
			delim = entry.Delimiter[0]
		}
		dev := device.New(device.Config{
			Name:        name,
			Address:     entry.Address,
			Delimiter:   delim,
			DialTimeout: entry.Timeout,
			Clock:       clk,
			Log:         log,
			Sink:        sink,
		})
		invoker, err := buildInvoker(entry.Driver, dev, clk, log)
		if err != nil {
			return nil, fmt.Errorf("config: device %q: %w", name, err)
		}
		reg.Devices[name] = dev
		reg.Invokers[name] = invoker
	}
	return reg, nil
}

// buildInvoker constructs the reference driver named by kind and wraps
// it as a DriverInvoker. Unknown driver names fail loudly: unlike
// original_source's DeviceFactory, which can import any module on the
// Python path, this registry only knows the two reference drivers in
// pkg/driver, since a full instrument wire catalog is out of scope.
func buildInvoker(kind string, dev *device.Device, clk clock.Clock, log *slog.Logger) (DriverInvoker, error) {
	switch kind {
	case "two_way_valve":
		return valveInvoker{v: driver.NewTwoWayValve(dev, clk, log)}, nil
	case "thermostat":
		return thermostatInvoker{t: driver.NewThermostat(dev, clk, log)}, nil
	default:
		return nil, fmt.Errorf("unknown driver %q", kind)
	}
}

type valveInvoker struct{ v *driver.TwoWayValve }

func (i valveInvoker) Invoke(method string, kwargs map[string]any) error {
	switch method {
	case "open":
		return i.v.Open()
	case "close":
		return i.v.Close()
	default:
		return fmt.Errorf("two_way_valve has no method %q", method)
	}
}

type thermostatInvoker struct{ t *driver.Thermostat }

func (i thermostatInvoker) Invoke(method string, kwargs map[string]any) error {
	switch method {
	case "set_temperature":
		celsius, ok := floatArg(kwargs, "celsius")
		if !ok {
			return fmt.Errorf("thermostat set_temperature requires a celsius argument")
		}
		return i.t.SetTemperature(celsius)
	case "get_current_temperature":
		_, err := i.t.GetCurrentTemperature()
		return err
	case "stop_tempering":
		return i.t.StopTempering()
	default:
		return fmt.Errorf("thermostat has no method %q", method)
	}
}

func floatArg(kwargs map[string]any, key string) (float64, bool) {
	v, ok := kwargs[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

// Resolve builds the *experiment.Experiment named by experimentType
// with the given instance id, recursively resolving any subexperiment
// tuples it contains.
func Resolve(raw *Raw, reg *Registry, cfg experiment.Config, experimentType string) (*experiment.Experiment, error) {
	doc, ok := raw.Experiments[experimentType]
	if !ok {
		return nil, fmt.Errorf("config: unknown experiment type %q", experimentType)
	}

	devices := make(map[string]experiment.Device, len(reg.Devices))
	for name, dev := range reg.Devices {
		devices[name] = dev
	}
	cfg.Devices = devices

	steps := make([]experiment.Step, 0, len(doc.Commands))
	for i, entry := range doc.Commands {
		step, err := resolveCommand(raw, reg, cfg, entry)
		if err != nil {
			return nil, fmt.Errorf("config: experiment %q command %d: %w", experimentType, i, err)
		}
		steps = append(steps, step)
	}
	cfg.Steps = steps

	return experiment.New(cfg), nil
}

func resolveCommand(raw *Raw, reg *Registry, parentCfg experiment.Config, entry CommandEntry) (experiment.Step, error) {
	if len(entry) == 2 {
		experimentType, ok := entry[0].(string)
		if !ok {
			return nil, fmt.Errorf("subexperiment tuple's first element must be a string")
		}
		subID := fmt.Sprintf("%s/%s", parentCfg.ID, experimentType)
		subCfg := experiment.Config{
			ID:       subID,
			Name:     experimentType,
			Handler:  parentCfg.Handler,
			Clock:    parentCfg.Clock,
			Recorder: parentCfg.Recorder,
		}
		sub, err := Resolve(raw, reg, subCfg, experimentType)
		if err != nil {
			return nil, err
		}
		return experiment.SubexperimentStep{Sub: sub}, nil
	}

	if len(entry) < 2 {
		return nil, fmt.Errorf("command tuple needs at least [device, method]")
	}
	deviceName, ok := entry[0].(string)
	if !ok {
		return nil, fmt.Errorf("command tuple's first element must be a device name")
	}
	method, ok := entry[1].(string)
	if !ok {
		return nil, fmt.Errorf("command tuple's second element must be a method name")
	}
	invoker, ok := reg.Invokers[deviceName]
	if !ok {
		return nil, fmt.Errorf("no such device %q", deviceName)
	}
	var kwargs map[string]any
	if len(entry) >= 4 {
		if m, ok := entry[3].(map[string]any); ok {
			kwargs = m
		}
	}
	return experiment.CommandStep{Dispatch: func() error {
		return invoker.Invoke(method, kwargs)
	}}, nil
}
