package driver_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/labstation/orchestrator/internal/clock"
	"github.com/labstation/orchestrator/pkg/command"
	"github.com/labstation/orchestrator/pkg/driver"
)

type fakeTransmitter struct {
	writes [][]byte
}

func (f *fakeTransmitter) TransmitCommand(cmd command.Instance) error {
	f.writes = append(f.writes, cmd.Bytestring())
	return nil
}
func (f *fakeTransmitter) SendCommand(cmd command.Instance) error {
	cmd.Execute()
	return nil
}

func TestTwoWayValve_OpenAndClose(t *testing.T) {
	tx := &fakeTransmitter{}
	clk := clock.NewVirtual(time.Unix(0, 0))
	v := driver.NewTwoWayValve(tx, clk, nil)

	require.NoError(t, v.Open())
	require.True(t, v.IsOpen())
	require.Equal(t, "AIRVALVE_OPEN", string(tx.writes[0]))

	require.NoError(t, v.Close())
	require.False(t, v.IsOpen())
	require.Equal(t, "AIRVALVE_CLOSE", string(tx.writes[1]))
}

func TestThermostat_SetAndQuery(t *testing.T) {
	tx := &fakeTransmitter{}
	clk := clock.NewVirtual(time.Unix(0, 0))
	th := driver.NewThermostat(tx, clk, nil)

	require.NoError(t, th.SetTemperature(37.5))
	require.Contains(t, string(tx.writes[0]), "37.50")

	cmd, err := th.GetCurrentTemperature()
	require.NoError(t, err)
	require.Equal(t, "GET_TEMP", string(cmd.Bytestring()))
}
