package blog

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// StatusPrinter renders one line per worker plus an overview line,
// redrawing them in place on a terminal — the same "move cursor back
// up N lines" trick distri's batch scheduler uses. Off a terminal (a
// log file, CI), it falls back to emitting a logrus line roughly once
// a second instead of redrawing, so piped output stays readable.
type StatusPrinter struct {
	log *Logger

	mu         sync.Mutex
	lines      []string // lines[0] is the overview, lines[1:] are workers
	lastRedraw time.Time
	lastFallback time.Time
}

// NewStatusPrinter allocates a printer with one worker line per
// numWorkers, plus the leading overview line.
func NewStatusPrinter(log *Logger, numWorkers int) *StatusPrinter {
	return &StatusPrinter{
		log:   log,
		lines: make([]string, numWorkers+1),
	}
}

// SetOverview updates the shared line-0 summary (e.g. "3 of 10
// packages: 2 built, 1 failed").
func (s *StatusPrinter) SetOverview(text string) {
	s.set(0, text)
}

// SetWorker updates the status line for worker index i (0-based; line
// i+1 in the grid).
func (s *StatusPrinter) SetWorker(i int, text string) {
	s.set(i+1, text)
}

func (s *StatusPrinter) set(idx int, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx >= len(s.lines) {
		return
	}
	if diff := len(s.lines[idx]) - len(text); diff > 0 {
		text += strings.Repeat(" ", diff) // overwrite stale characters
	}
	s.lines[idx] = text

	if !IsTerminal() {
		if time.Since(s.lastFallback) < time.Second {
			return
		}
		s.lastFallback = time.Now()
		s.log.Info(strings.TrimRight(s.lines[0], " "))
		return
	}

	if time.Since(s.lastRedraw) < 100*time.Millisecond {
		return
	}
	s.redrawLocked()
}

func (s *StatusPrinter) redrawLocked() {
	s.lastRedraw = time.Now()
	for _, line := range s.lines {
		fmt.Println(line)
	}
	fmt.Printf("\033[%dA", len(s.lines)) // restore cursor position
}
