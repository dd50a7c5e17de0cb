package store

import (
	"errors"
	"time"
)

// ErrRunNotFound is returned by GetRun for an unknown run ID.
var ErrRunNotFound = errors.New("run not found")

// Run is one suite run.
type Run struct {
	ID         string
	Suite      string
	Driver     string
	StartedAt  time.Time
	FinishedAt time.Time // zero while running
	Passed     int
	Failed     int
	Skipped    int
	ExitCode   int // -1 while running
}

// Finished reports whether the run's report was saved.
func (r Run) Finished() bool { return r.ExitCode >= 0 }

// CaseRecord is the stored outcome of one case.
type CaseRecord struct {
	RunID       string
	Seq         int64
	FullName    string
	Status      string
	FailureCode string
	Message     string
	HookErrors  []string
	Elapsed     time.Duration
	TraceHash   string
}
