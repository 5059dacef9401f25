// Package trace emits Chrome trace-event JSON for compile/link jobs,
// so a build can be loaded into a trace viewer to see exactly which
// worker ran which job and for how long. Lifted from distri's
// internal/trace, trimmed to the event-emission core: distri's
// CPU/memory sampling traced the whole machine, which has no
// equivalent concept in a single compile/link job.
package trace

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

var start = time.Now()

var (
	sinkMu sync.Mutex
	sink   io.Writer = io.Discard
)

// Sink writes all following Event()s as a Chrome trace event file into w.
func Sink(w io.Writer) {
	sinkMu.Lock()
	defer sinkMu.Unlock()
	sink = w
	w.Write([]byte{'['}) // open the JSON Array Format; the closing ] is optional
}

// Enable creates a trace file at $TMPDIR/beaverbuild.traces/prefix.$PID
// and directs subsequent events there.
func Enable(prefix string) error {
	fn := filepath.Join(os.TempDir(), "beaverbuild.traces", fmt.Sprintf("%s.%d", prefix, os.Getpid()))
	if err := os.MkdirAll(filepath.Dir(fn), 0o755); err != nil {
		return err
	}
	f, err := os.Create(fn)
	if err != nil {
		return err
	}
	Sink(f)
	return nil
}

// PendingEvent is a trace-event duration event ("ph": "X") in progress.
type PendingEvent struct {
	Name           string      `json:"name"`
	Categories     string      `json:"cat"`
	Type           string      `json:"ph"`
	ClockTimestamp uint64      `json:"ts"`
	Duration       uint64      `json:"dur"`
	Pid            uint64      `json:"pid"`
	Tid            uint64      `json:"tid"`
	Args           interface{} `json:"args,omitempty"`

	start time.Time
}

// Done finalizes the event's duration and writes it to the sink.
func (pe *PendingEvent) Done() {
	pe.Duration = uint64(time.Since(pe.start) / time.Microsecond)
	b, err := json.Marshal(pe)
	if err != nil {
		panic(err)
	}
	sinkMu.Lock()
	defer sinkMu.Unlock()
	if _, err := sink.Write(append(b, ',')); err != nil {
		log.Printf("[trace] %v", err)
	}
}

// Event starts a duration event named name, attributed to worker tid.
func Event(name string, tid int) *PendingEvent {
	return &PendingEvent{
		Name:           name,
		Type:           "X",
		ClockTimestamp: uint64(time.Since(start) / time.Microsecond),
		Tid:            uint64(tid),
		start:          time.Now(),
	}
}
