// Package api implements the station's HTTP control surface.
//
// Grounded on original_source's backend/setup/setuptofrontend.py
// (SetupHandledRequest.process: `/api/<function>` dispatches to a
// `remote_<function>` method, query args are JSON-decoded, 501 for an
// unknown function, 500 plus the error text for a handler failure)
// and setup.py's `remote_*` method set. A control-plane HTTP server
// elsewhere in this corpus's stack reaches for net/http directly
// rather than a router library, so this package does the same.
package api

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/labstation/orchestrator/internal/clock"
	"github.com/labstation/orchestrator/pkg/config"
	"github.com/labstation/orchestrator/pkg/experiment"
	"github.com/labstation/orchestrator/pkg/runlog"
)

// Station is the orchestration root the control API operates on: a
// device registry, the resolved experiment catalog, and the single
// scheduler that runs experiments one at a time. Grounded on
// setup.py's Setup class, minus its own Twisted-specific HTTP
// listener (that lives in Server below) and its log bootstrap (that
// lives in pkg/runlog).
type Station struct {
	Raw      *config.Raw
	Registry *config.Registry
	Sched    *experiment.Scheduler
	Clock    clock.Clock

	// RunsDir is the directory each experiment's log.txt/log.json/
	// log.cbor/values.json bundle is written under, one subdirectory
	// per run. Run recording is skipped if empty.
	RunsDir string

	stopped bool
}

// NewStation builds a Station ready to accept experiments. runsDir may
// be empty to disable per-run log recording.
func NewStation(raw *config.Raw, reg *config.Registry, sched *experiment.Scheduler, clk clock.Clock, runsDir string) *Station {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Station{Raw: raw, Registry: reg, Sched: sched, Clock: clk, RunsDir: runsDir}
}

// newExperimentConfig builds the experiment.Config shared by
// AddExperiment and InsertExperimentAfter: the station's clock, and,
// when RunsDir is set, a freshly opened runlog.Run keyed by a
// generated run id so concurrent runs of the same experiment type
// never collide on disk.
func (s *Station) newExperimentConfig(experimentID string) (experiment.Config, *runlog.Run, error) {
	cfg := experiment.Config{ID: experimentID, Clock: s.Clock}
	if s.RunsDir == "" {
		return cfg, nil, nil
	}
	runID := uuid.NewString()
	run, err := runlog.OpenRun(filepath.Join(s.RunsDir, fmt.Sprintf("%s-%s", experimentID, runID)))
	if err != nil {
		return cfg, nil, err
	}
	cfg.Run = run
	cfg.Recorder = runlog.NewRecorder(runID, run.Logger)
	return cfg, run, nil
}

// Start is the remote_start equivalent. It clears the flag set by Stop,
// so StationOverview reports Ready again when nothing is running; the
// scheduler itself needs no signal to keep advancing through its queue.
func (s *Station) Start() (any, error) {
	s.stopped = false
	return nil, nil
}

// Stop is the remote_stop equivalent: stops every device directly if
// nothing is running, or stops the currently running experiment
// (which itself stops its devices on the way to Failed/Stopped).
func (s *Station) Stop() (any, error) {
	s.stopped = true
	running := s.Sched.Running()
	if running == nil {
		for _, dev := range s.Registry.Devices {
			dev.Stop()
		}
		return nil, nil
	}
	running.Stop(time.Now())
	return nil, nil
}

// Pause is the remote_pause equivalent: original_source's own
// implementation is `pass`, so this mirrors that exactly.
func (s *Station) Pause() (any, error) { return nil, nil }

// Shutdown is the remote_shutdown equivalent: every device is driven
// to its terminal Shutdown state.
func (s *Station) Shutdown() (any, error) {
	for _, dev := range s.Registry.Devices {
		dev.Shutdown()
	}
	return nil, nil
}

// AddExperiment resolves experimentType against the config's
// experiment catalog and enqueues it under experimentID.
func (s *Station) AddExperiment(experimentID, experimentType string) (any, error) {
	cfg, run, err := s.newExperimentConfig(experimentID)
	if err != nil {
		return nil, err
	}
	exp, err := config.Resolve(s.Raw, s.Registry, cfg, experimentType)
	if err != nil {
		if run != nil {
			_ = run.Close()
		}
		return nil, err
	}
	s.Sched.Enqueue(exp)
	return nil, nil
}

// InsertExperimentAfter resolves experimentType and inserts it
// immediately after existingID in the queue.
func (s *Station) InsertExperimentAfter(existingID, experimentID, experimentType string) (any, error) {
	cfg, run, err := s.newExperimentConfig(experimentID)
	if err != nil {
		return nil, err
	}
	exp, err := config.Resolve(s.Raw, s.Registry, cfg, experimentType)
	if err != nil {
		if run != nil {
			_ = run.Close()
		}
		return nil, err
	}
	if err := s.Sched.EnqueueAfter(exp, existingID); err != nil {
		if run != nil {
			_ = run.Close()
		}
		return nil, err
	}
	return nil, nil
}

// StationOverview is the remote_station_overview equivalent.
func (s *Station) StationOverview() (any, error) {
	running := s.Sched.Running()
	overview := map[string]any{
		"total_experiments_queued": len(s.Sched.Queued()),
	}
	if running == nil {
		overview["status"] = s.statusName()
		overview["running_experiment_name"] = ""
	} else {
		overview["status"] = "Busy"
		overview["running_experiment_name"] = running.ID()
	}
	return overview, nil
}

func (s *Station) statusName() string {
	if s.stopped {
		return "Stopped"
	}
	return "Ready"
}

// StationComponents is the remote_station_components equivalent.
func (s *Station) StationComponents() (any, error) {
	components := make([]map[string]any, 0, len(s.Registry.Devices))
	for name, dev := range s.Registry.Devices {
		components = append(components, map[string]any{
			"component_name":  name,
			"component_state": string(dev.State()),
		})
	}
	return components, nil
}

// GetExperimentTypes is the remote_get_experiment_types equivalent:
// the configured experiment catalog's names plus step counts, since
// (unlike original_source's ExperimentFactory) this implementation has
// no declared parameter/observable schema to report beyond what the
// YAML document itself names.
func (s *Station) GetExperimentTypes() (any, error) {
	types := make(map[string]any, len(s.Raw.Experiments))
	for name, doc := range s.Raw.Experiments {
		types[name] = map[string]any{"command_count": len(doc.Commands)}
	}
	return types, nil
}

// StationRunTables is the remote_station_run_tables equivalent.
func (s *Station) StationRunTables() (any, error) {
	rows := make([]map[string]any, 0)
	if running := s.Sched.Running(); running != nil {
		rows = append(rows, map[string]any{
			"name":  running.ID(),
			"type":  running.Name(),
			"state": running.State().String(),
		})
	}
	for _, q := range s.Sched.Queued() {
		rows = append(rows, map[string]any{
			"name":  q.ID(),
			"type":  q.Name(),
			"state": q.State().String(),
		})
	}
	return rows, nil
}

// GetUpdates is the remote_get_updates equivalent: component name to
// observable key to timestamped samples, filtered by the optional
// from/to window.
func (s *Station) GetUpdates(components []string, from, to time.Time) (any, error) {
	if len(components) == 0 {
		for name := range s.Registry.Devices {
			components = append(components, name)
		}
	}
	updates := make(map[string]any, len(components))
	for _, name := range components {
		dev, ok := s.Registry.Devices[name]
		if !ok {
			return nil, fmt.Errorf("no such component %q", name)
		}
		perKey := make(map[string]any)
		for _, key := range dev.Observable().Keys() {
			perKey[key] = dev.Observable().GetUpdates(key, from, to)
		}
		updates[name] = perKey
	}
	return map[string]any{
		"timestamp": time.Now(),
		"updates":   updates,
	}, nil
}
