// Package blog is the build's logging wrapper: a *logrus.Logger with
// fields for the target name / job id / worker index attached
// consistently, the way ossb/engine.StructuredLogger wraps logrus for
// its build observability. The scheduler and work pool log exclusively
// through this package, never the bare standard-library "log" package.
package blog

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is the build's structured logger.
type Logger struct {
	*logrus.Logger
}

// New constructs a Logger. level is one of logrus's level names
// ("debug", "info", "warn", ...); format is "text" or "json".
func New(level, format string, out io.Writer) (*Logger, error) {
	l := logrus.New()
	if out != nil {
		l.SetOutput(out)
	}

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	l.SetLevel(parsed)

	if format == "json" {
		l.SetFormatter(&logrus.JSONFormatter{
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	return &Logger{Logger: l}, nil
}

// Discard returns a Logger that drops every message; used by tests and
// as the scheduler's default when the caller supplies nil.
func Discard() *Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return &Logger{Logger: l}
}

// WithTarget scopes subsequent log fields to a single graph node.
func (l *Logger) WithTarget(name string) *logrus.Entry {
	return l.WithField("target", name)
}

// WithJob scopes subsequent log fields to a single scheduled job.
func (l *Logger) WithJob(jobID uint64) *logrus.Entry {
	return l.WithField("job_id", jobID)
}

// isTerminal reports whether standard output is an interactive
// terminal, the same ioctl-based check distri's batch scheduler uses
// to decide whether redrawing status lines is safe.
var isTerminal = func() bool {
	return checkTerminal(os.Stdout)
}()

// IsTerminal reports whether standard output is a terminal.
func IsTerminal() bool { return isTerminal }
