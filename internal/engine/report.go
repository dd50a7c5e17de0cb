package engine

import (
	"strings"
	"time"
)

// Status is the outcome of one case.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// CaseInfo identifies a case within a run.
type CaseInfo struct {
	Seq  int64    // execution order, from the runner Clock
	Path []string // enclosing Context names, outermost first
	Name string
}

// FullName joins the context path and case name with " > ".
func (c CaseInfo) FullName() string {
	parts := append(append([]string{}, c.Path...), c.Name)
	return strings.Join(parts, " > ")
}

// CaseResult is the recorded outcome of one case.
type CaseResult struct {
	CaseInfo
	Status     Status
	Err        error   // first failure: beforeEach hook, body, or environment
	HookErrors []error // afterEach failures, in the order attempted
	SkipReason string
	Elapsed    time.Duration
}

// Errors returns Err followed by the afterEach failures.
func (r CaseResult) Errors() []error {
	var errs []error
	if r.Err != nil {
		errs = append(errs, r.Err)
	}
	return append(errs, r.HookErrors...)
}

// Report is the outcome of a full run.
type Report struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Cases      []CaseResult
	Passed     int
	Failed     int
	Skipped    int
}

func (r *Report) add(res CaseResult) {
	r.Cases = append(r.Cases, res)
	switch res.Status {
	case StatusPassed:
		r.Passed++
	case StatusFailed:
		r.Failed++
	case StatusSkipped:
		r.Skipped++
	}
}

// Total returns the number of cases seen, skipped included.
func (r *Report) Total() int { return len(r.Cases) }

// OK reports whether no case failed.
func (r *Report) OK() bool { return r.Failed == 0 }

// ExitCode returns 0 when no case failed and 1 otherwise.
func (r *Report) ExitCode() int {
	if r.Failed > 0 {
		return 1
	}
	return 0
}

// Failures returns the failed cases in execution order.
func (r *Report) Failures() []CaseResult {
	var out []CaseResult
	for _, c := range r.Cases {
		if c.Status == StatusFailed {
			out = append(out, c)
		}
	}
	return out
}
