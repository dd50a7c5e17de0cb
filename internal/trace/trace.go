// Package trace records what a run did, step by step, and serializes it
// deterministically.
//
// A Recorder listens to the runner (case boundaries) and to sessions (steps)
// and builds a Trace. Traces serialize as RFC 8785 canonical JSON, one line
// per case, so golden files and stored hashes are byte-stable across runs.
// Timings and error messages are absent from the serialized form; a failed
// case carries only its failure code.
package trace

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/roach88/todocheck/internal/engine"
	"github.com/roach88/todocheck/internal/failure"
	"github.com/roach88/todocheck/internal/session"
)

// Step is one recorded harness step.
type Step struct {
	Kind    string
	Subject string
	Detail  string
	Outcome string
}

func (s Step) object() map[string]any {
	return map[string]any{
		"kind":    s.Kind,
		"subject": s.Subject,
		"detail":  s.Detail,
		"outcome": s.Outcome,
	}
}

// CaseTrace is the trace of one case.
type CaseTrace struct {
	Path   []string
	Name   string
	Status engine.Status
	Code   string // failure code of the case error, if any
	Steps  []Step
}

// FullName joins path and name like engine.CaseInfo.FullName.
func (c CaseTrace) FullName() string {
	return engine.CaseInfo{Path: c.Path, Name: c.Name}.FullName()
}

func (c CaseTrace) object() map[string]any {
	steps := make([]any, len(c.Steps))
	for i, s := range c.Steps {
		steps[i] = s.object()
	}
	path := c.Path
	if path == nil {
		path = []string{}
	}
	obj := map[string]any{
		"path":   path,
		"name":   c.Name,
		"status": string(c.Status),
		"steps":  steps,
	}
	if c.Code != "" {
		obj["failure"] = c.Code
	}
	return obj
}

// Trace is the trace of a run, cases in execution order.
type Trace struct {
	Cases []CaseTrace
}

// MarshalLines renders the trace as canonical JSON, one case per line.
func (t Trace) MarshalLines() ([]byte, error) {
	var buf bytes.Buffer
	for _, c := range t.Cases {
		line, err := MarshalCanonical(c.object())
		if err != nil {
			return nil, fmt.Errorf("case %q: %w", c.FullName(), err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// Case returns the trace of the case with the given full name.
func (t Trace) Case(fullName string) (CaseTrace, bool) {
	for _, c := range t.Cases {
		if c.FullName() == fullName {
			return c, true
		}
	}
	return CaseTrace{}, false
}

// Recorder builds a Trace. It implements engine.Observer and session.Tracer;
// register the same Recorder with both.
type Recorder struct {
	mu      sync.Mutex
	cases   []CaseTrace
	current *CaseTrace
}

var (
	_ engine.Observer = (*Recorder)(nil)
	_ session.Tracer  = (*Recorder)(nil)
)

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// CaseStarted opens a new case trace.
func (r *Recorder) CaseStarted(info engine.CaseInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = &CaseTrace{
		Path: append([]string(nil), info.Path...),
		Name: info.Name,
	}
}

// CaseFinished closes the current case trace.
func (r *Recorder) CaseFinished(res engine.CaseResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.current
	if c == nil || c.Name != res.Name {
		// Skipped cases never start.
		c = &CaseTrace{Path: append([]string(nil), res.Path...), Name: res.Name}
	}
	c.Status = res.Status
	if res.Err != nil {
		c.Code = string(failure.CodeOf(res.Err))
		if c.Code == "" {
			c.Code = "ERROR"
		}
	}
	r.cases = append(r.cases, *c)
	r.current = nil
}

// Record appends a step to the current case. Steps outside a case are dropped.
func (r *Recorder) Record(ev session.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return
	}
	r.current.Steps = append(r.current.Steps, Step{
		Kind:    ev.Kind,
		Subject: ev.Subject,
		Detail:  ev.Detail,
		Outcome: ev.Outcome,
	})
}

// Trace returns a copy of everything recorded so far.
func (r *Recorder) Trace() Trace {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Trace{Cases: append([]CaseTrace(nil), r.cases...)}
}
