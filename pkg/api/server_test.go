package api_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/labstation/orchestrator/internal/clock"
	"github.com/labstation/orchestrator/pkg/api"
	"github.com/labstation/orchestrator/pkg/config"
	"github.com/labstation/orchestrator/pkg/experiment"
)

func newTestStation(t *testing.T) *api.Station {
	t.Helper()
	raw := &config.Raw{
		Devices: map[string]config.DeviceEntry{
			"valve1": {Driver: "two_way_valve", Address: "tcp://127.0.0.1:1"},
		},
		Experiments: map[string]config.ExperimentDoc{},
	}
	clk := clock.NewVirtual(time.Unix(0, 0))
	reg, err := config.BuildDevices(raw, clk, nil, nil)
	require.NoError(t, err)
	sched := experiment.NewScheduler(clk)
	return api.NewStation(raw, reg, sched, clk, "")
}

func TestServer_UnknownFunctionReturns501(t *testing.T) {
	station := newTestStation(t)

	req := httptest.NewRequest(http.MethodGet, "/api/no_such_thing", nil)
	rr := httptest.NewRecorder()
	newHandler(station).ServeHTTP(rr, req)
	require.Equal(t, http.StatusNotImplemented, rr.Code)
}

func TestServer_StationOverviewSucceeds(t *testing.T) {
	station := newTestStation(t)
	req := httptest.NewRequest(http.MethodGet, "/api/station_overview", nil)
	rr := httptest.NewRecorder()
	newHandler(station).ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "total_experiments_queued")
}

func TestServer_StationComponentsListsDevices(t *testing.T) {
	station := newTestStation(t)
	req := httptest.NewRequest(http.MethodGet, "/api/station_components", nil)
	rr := httptest.NewRecorder()
	newHandler(station).ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "valve1")
}

// newHandler builds a fresh Server per call and returns it as an
// http.Handler through its ServeHTTP method.
func newHandler(station *api.Station) http.Handler {
	return api.NewServer(":0", station)
}
