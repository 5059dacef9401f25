// Package report defines the build's structured status output: a
// per-node result summary, serialized as JSON and written atomically,
// plus the textual one-line summary distri prints to the terminal.
package report

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/renameio"
	"golang.org/x/xerrors"
)

// NodeResult records the outcome for a single graph node.
type NodeResult struct {
	Name     string        `json:"name"`
	Kind     string        `json:"kind"`
	Built    bool          `json:"built"`
	Failed   bool          `json:"failed"`
	Error    string        `json:"error,omitempty"`
	Jobs     int           `json:"jobs"`
	Duration time.Duration `json:"duration_ns"`
}

// Report is the outcome of one build_all invocation.
type Report struct {
	Nodes     []NodeResult `json:"nodes"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
	Total     int          `json:"total"`
}

// Summary renders the one-line textual status §2/§6 call for: "N of M
// packages: B built, F failed".
func (r *Report) Summary() string {
	done := r.Succeeded + r.Failed
	return fmt.Sprintf("%d of %d packages: %d built, %d failed", done, r.Total, r.Succeeded, r.Failed)
}

// WriteAtomic serializes r as indented JSON and writes it to path
// atomically: a crash or concurrent reader never observes a partially
// written report, the same guarantee distri's package builder gets
// from renameio.TempFile when writing build artifacts.
func WriteAtomic(path string, r *Report) error {
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return xerrors.Errorf("marshal report: %w", err)
	}

	f, err := renameio.TempFile("", path)
	if err != nil {
		return xerrors.Errorf("report: %w", err)
	}
	defer f.Cleanup()

	if _, err := f.Write(b); err != nil {
		return xerrors.Errorf("report: %w", err)
	}
	if err := f.CloseAtomicallyReplace(); err != nil {
		return xerrors.Errorf("report: %w", err)
	}
	return nil
}
