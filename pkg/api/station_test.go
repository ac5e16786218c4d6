package api_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/labstation/orchestrator/internal/clock"
	"github.com/labstation/orchestrator/pkg/api"
	"github.com/labstation/orchestrator/pkg/config"
	"github.com/labstation/orchestrator/pkg/experiment"
)

func TestStation_AddExperimentOpensARunDirectory(t *testing.T) {
	raw := &config.Raw{
		Devices: map[string]config.DeviceEntry{
			"valve1": {Driver: "two_way_valve", Address: "tcp://127.0.0.1:1"},
		},
		Experiments: map[string]config.ExperimentDoc{
			"open_valve": {Commands: []config.CommandEntry{
				{"valve1", "open", []interface{}{}, map[string]interface{}{}},
			}},
		},
	}
	clk := clock.NewVirtual(time.Unix(0, 0))
	reg, err := config.BuildDevices(raw, clk, nil, nil)
	require.NoError(t, err)
	sched := experiment.NewScheduler(clk)

	runsDir := t.TempDir()
	station := api.NewStation(raw, reg, sched, clk, runsDir)

	_, err = station.AddExperiment("run-1", "open_valve")
	require.NoError(t, err)

	entries, err := os.ReadDir(runsDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Contains(t, entries[0].Name(), "run-1-")

	logPath := filepath.Join(runsDir, entries[0].Name(), "log.json")
	_, err = os.Stat(logPath)
	require.NoError(t, err)
}

func TestStation_AddExperimentUnknownTypeDoesNotLeaveOrphanedRun(t *testing.T) {
	raw := &config.Raw{
		Devices:     map[string]config.DeviceEntry{},
		Experiments: map[string]config.ExperimentDoc{},
	}
	clk := clock.NewVirtual(time.Unix(0, 0))
	reg, err := config.BuildDevices(raw, clk, nil, nil)
	require.NoError(t, err)
	sched := experiment.NewScheduler(clk)

	runsDir := t.TempDir()
	station := api.NewStation(raw, reg, sched, clk, runsDir)

	_, err = station.AddExperiment("run-1", "no_such_experiment")
	require.Error(t, err)
}
