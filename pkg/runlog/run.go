package runlog

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/labstation/orchestrator/pkg/observable"
)

// Run bundles the four per-run artifacts a run directory holds:
// log.txt (slog text), log.json (slog JSON), log.cbor (binary event
// stream), and values.json (written once at Close via WriteValues).
type Run struct {
	Dir string

	txtFile  *os.File
	jsonFile *os.File
	cborLog  *FileLogger

	Logger Logger
}

// OpenRun creates dir (and any parents) and opens the three streaming
// log files, returning a Run whose Logger fans events out to all
// three.
func OpenRun(dir string) (*Run, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("runlog: create run dir: %w", err)
	}

	txtFile, err := os.OpenFile(filepath.Join(dir, "log.txt"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("runlog: open log.txt: %w", err)
	}
	jsonFile, err := os.OpenFile(filepath.Join(dir, "log.json"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		txtFile.Close()
		return nil, fmt.Errorf("runlog: open log.json: %w", err)
	}
	cborLog, err := NewFileLogger(filepath.Join(dir, "log.cbor"))
	if err != nil {
		txtFile.Close()
		jsonFile.Close()
		return nil, fmt.Errorf("runlog: open log.cbor: %w", err)
	}

	txtAdapter := NewSlogAdapter(slog.New(slog.NewTextHandler(txtFile, nil)))
	jsonAdapter := NewSlogAdapter(slog.New(slog.NewJSONHandler(jsonFile, nil)))

	return &Run{
		Dir:      dir,
		txtFile:  txtFile,
		jsonFile: jsonFile,
		cborLog:  cborLog,
		Logger:   MultiLogger{txtAdapter, jsonAdapter, cborLog},
	}, nil
}

// WriteValues snapshots every named producer's full observable history
// to values.json.
func (r *Run) WriteValues(producers map[string]*observable.Substrate) error {
	out := make(map[string]map[string][]observable.Sample, len(producers))
	for name, sub := range producers {
		out[name] = sub.Snapshot()
	}
	f, err := os.Create(filepath.Join(r.Dir, "values.json"))
	if err != nil {
		return fmt.Errorf("runlog: create values.json: %w", err)
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// Close closes every open file.
func (r *Run) Close() error {
	err1 := r.txtFile.Close()
	err2 := r.jsonFile.Close()
	err3 := r.cborLog.Close()
	if err1 != nil {
		return err1
	}
	if err2 != nil {
		return err2
	}
	return err3
}
