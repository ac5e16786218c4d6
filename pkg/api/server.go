package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Server is the station's HTTP control surface: a single `/api/`
// prefix dispatching to Station methods by name, exactly mirroring
// SetupHandledRequest.process's `/api/<function>` -> `remote_<function>`
// routing, with net/http.ServeMux standing in for Twisted's HTTPChannel.
type Server struct {
	station *Station
	mux     *http.ServeMux
	server  *http.Server
}

// NewServer builds a Server listening on addr and dispatching against
// station.
func NewServer(addr string, station *Station) *Server {
	s := &Server{station: station, mux: http.NewServeMux()}
	s.mux.HandleFunc("/api/", s.handleAPI)
	s.server = &http.Server{Addr: addr, Handler: s.mux}
	return s
}

// ListenAndServe starts the HTTP server, blocking until it stops.
func (s *Server) ListenAndServe() error { return s.server.ListenAndServe() }

// ServeHTTP lets Server be exercised directly against an
// httptest.Server or recorder without a real listener.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

// Close shuts the server down.
func (s *Server) Close() error { return s.server.Close() }

// handleAPI dispatches /api/<name> to the matching Station method,
// JSON-decoding query values the way setuptofrontend.py does (each
// query value is tried as JSON first, falling back to the raw string),
// and writing 501 for an unknown function or 500 plus the error text
// for one that fails.
func (s *Server) handleAPI(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/api/")
	args := decodeQuery(r)

	result, err := s.dispatch(name, args)
	if err != nil {
		if err == errUnknownFunction {
			w.WriteHeader(http.StatusNotImplemented)
			fmt.Fprintf(w, "Not Found. Sorry, no such function.")
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

func decodeQuery(r *http.Request) map[string]any {
	out := make(map[string]any)
	for key, values := range r.URL.Query() {
		if len(values) == 0 {
			continue
		}
		raw := values[0]
		var decoded any
		if err := json.Unmarshal([]byte(raw), &decoded); err == nil {
			out[key] = decoded
		} else {
			out[key] = raw
		}
	}
	return out
}

var errUnknownFunction = fmt.Errorf("api: no such function")

// dispatch is the explicit getattr(setup, f"remote_{name}") stand-in:
// Go has no attribute reflection over a handler method set worth
// using here, so the remote_* method names are enumerated directly.
func (s *Server) dispatch(name string, args map[string]any) (any, error) {
	switch name {
	case "start":
		return s.station.Start()
	case "stop":
		return s.station.Stop()
	case "pause":
		return s.station.Pause()
	case "shutdown":
		return s.station.Shutdown()
	case "add_experiment":
		id, _ := args["experiment_id"].(string)
		typ, _ := args["experiment_type"].(string)
		return s.station.AddExperiment(id, typ)
	case "insert_experiment_after":
		existing, _ := args["existing_id"].(string)
		id, _ := args["experiment_id"].(string)
		typ, _ := args["experiment_type"].(string)
		return s.station.InsertExperimentAfter(existing, id, typ)
	case "station_overview":
		return s.station.StationOverview()
	case "station_components":
		return s.station.StationComponents()
	case "get_experiment_types":
		return s.station.GetExperimentTypes()
	case "station_run_tables":
		return s.station.StationRunTables()
	case "get_updates":
		components := stringSlice(args["component_names"])
		from := parseTimestamp(args["from_timestamp"])
		to := parseTimestamp(args["to_timestamp"])
		if to.IsZero() {
			to = time.Now()
		}
		return s.station.GetUpdates(components, from, to)
	default:
		return nil, errUnknownFunction
	}
}

func stringSlice(v any) []string {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func parseTimestamp(v any) time.Time {
	switch t := v.(type) {
	case float64:
		return time.Unix(0, int64(t*float64(time.Second)))
	case string:
		if f, err := strconv.ParseFloat(t, 64); err == nil {
			return time.Unix(0, int64(f*float64(time.Second)))
		}
	}
	return time.Time{}
}
