package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/labstation/orchestrator/internal/clock"
	"github.com/labstation/orchestrator/pkg/config"
	"github.com/labstation/orchestrator/pkg/experiment"
)

const sample = `
listen_port: 8080
log_level: info
devices:
  valve1:
    driver: two_way_valve
    address: "tcp://127.0.0.1:9001"
  heater1:
    driver: thermostat
    address: "tcp://127.0.0.1:9002"
experiments:
  warmup:
    commands:
      - [heater1, set_temperature, [], {celsius: 42.0}]
      - [valve1, open, [], {}]
  full_run:
    commands:
      - [warmup, {}]
      - [valve1, close, [], {}]
`

func writeSample(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0644))
	return path
}

func TestLoad_ParsesDevicesAndExperiments(t *testing.T) {
	path := writeSample(t)
	raw, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, 8080, raw.ListenPort)
	require.Len(t, raw.Devices, 2)
	require.Len(t, raw.Experiments, 2)
}

func TestBuildDevices_ConstructsKnownDrivers(t *testing.T) {
	raw, err := config.Load(writeSample(t))
	require.NoError(t, err)

	clk := clock.NewVirtual(time.Unix(0, 0))
	reg, err := config.BuildDevices(raw, clk, nil, nil)
	require.NoError(t, err)
	require.Contains(t, reg.Devices, "valve1")
	require.Contains(t, reg.Devices, "heater1")
	require.Contains(t, reg.Invokers, "valve1")
}

func TestBuildDevices_UnknownDriverErrors(t *testing.T) {
	raw := &config.Raw{Devices: map[string]config.DeviceEntry{
		"mystery": {Driver: "no_such_driver", Address: "x"},
	}}
	clk := clock.NewVirtual(time.Unix(0, 0))
	_, err := config.BuildDevices(raw, clk, nil, nil)
	require.Error(t, err)
}

func TestResolve_BuildsStepsFromCommandTuples(t *testing.T) {
	raw, err := config.Load(writeSample(t))
	require.NoError(t, err)
	clk := clock.NewVirtual(time.Unix(0, 0))
	reg, err := config.BuildDevices(raw, clk, nil, nil)
	require.NoError(t, err)

	exp, err := config.Resolve(raw, reg, experiment.Config{ID: "run-1", Clock: clk}, "warmup")
	require.NoError(t, err)
	require.NotNil(t, exp)
}

func TestResolve_RecursesIntoSubexperiments(t *testing.T) {
	raw, err := config.Load(writeSample(t))
	require.NoError(t, err)
	clk := clock.NewVirtual(time.Unix(0, 0))
	reg, err := config.BuildDevices(raw, clk, nil, nil)
	require.NoError(t, err)

	exp, err := config.Resolve(raw, reg, experiment.Config{ID: "run-2", Clock: clk}, "full_run")
	require.NoError(t, err)
	require.NotNil(t, exp)
}

func TestResolve_UnknownExperimentTypeErrors(t *testing.T) {
	raw, err := config.Load(writeSample(t))
	require.NoError(t, err)
	clk := clock.NewVirtual(time.Unix(0, 0))
	reg, err := config.BuildDevices(raw, clk, nil, nil)
	require.NoError(t, err)

	_, err = config.Resolve(raw, reg, experiment.Config{ID: "run-3", Clock: clk}, "no_such_experiment")
	require.Error(t, err)
}
