package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/todocheck/internal/engine"
	"github.com/roach88/todocheck/internal/todoapp"
	"github.com/roach88/todocheck/internal/trace"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Case     string       // Full case name, empty for final_state
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Steps    []trace.Step // The case's steps for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s", e.Type)
	if e.Case != "" {
		fmt.Fprintf(&buf, " (%s)", e.Case)
	}
	buf.WriteString("\n")

	// Expected vs Actual (most important info)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Steps) > 0 {
		fmt.Fprintf(&buf, "\nCase trace:\n")
		for i, s := range e.Steps {
			fmt.Fprintf(&buf, "  [%d] %s\n", i+1, formatStep(s))
		}
	}
	return buf.String()
}

func formatStep(s trace.Step) string {
	return fmt.Sprintf("%s %s %s -> %s", s.Kind, s.Subject, s.Detail, s.Outcome)
}

func (m StepMatch) String() string {
	var parts []string
	for _, f := range []struct{ name, value string }{
		{"kind", m.Kind}, {"subject", m.Subject}, {"detail", m.Detail}, {"outcome", m.Outcome},
	} {
		if f.value != "" {
			parts = append(parts, fmt.Sprintf("%s=%q", f.name, f.value))
		}
	}
	return "{" + strings.Join(parts, " ") + "}"
}

// matches reports whether s has every non-empty field of m.
func (m StepMatch) matches(s trace.Step) bool {
	return (m.Kind == "" || m.Kind == s.Kind) &&
		(m.Subject == "" || m.Subject == s.Subject) &&
		(m.Detail == "" || m.Detail == s.Detail) &&
		(m.Outcome == "" || m.Outcome == s.Outcome)
}

// assertCaseStatus checks a case's status and, for failures, its code.
func assertCaseStatus(c trace.CaseTrace, assertion Assertion) error {
	if string(c.Status) != assertion.Status {
		return &AssertionError{
			Type:     AssertCaseStatus,
			Case:     assertion.Case,
			Expected: "status " + assertion.Status,
			Actual:   "status " + string(c.Status),
			Steps:    c.Steps,
		}
	}
	if assertion.Code != "" && c.Code != assertion.Code {
		return &AssertionError{
			Type:     AssertCaseStatus,
			Case:     assertion.Case,
			Expected: "failure code " + assertion.Code,
			Actual:   "failure code " + c.Code,
			Steps:    c.Steps,
		}
	}
	return nil
}

// assertTraceContains checks if the case recorded a matching step.
func assertTraceContains(c trace.CaseTrace, assertion Assertion) error {
	for _, s := range c.Steps {
		if assertion.StepMatch.matches(s) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Case:     assertion.Case,
		Expected: "step " + assertion.StepMatch.String(),
		Actual:   "not found in trace",
		Steps:    c.Steps,
	}
}

// assertTraceOrder checks that the listed steps occur in order.
// Steps don't need to be consecutive (intervening steps are allowed).
func assertTraceOrder(c trace.CaseTrace, assertion Assertion) error {
	next := 0
	for _, s := range c.Steps {
		if next < len(assertion.Steps) && assertion.Steps[next].matches(s) {
			next++
		}
	}
	if next == len(assertion.Steps) {
		return nil
	}
	return &AssertionError{
		Type:     AssertTraceOrder,
		Case:     assertion.Case,
		Expected: fmt.Sprintf("%d steps in order", len(assertion.Steps)),
		Actual:   fmt.Sprintf("no match for step %d %s after the first %d", next+1, assertion.Steps[next], next),
		Steps:    c.Steps,
	}
}

// assertTraceCount checks that exactly Count steps match.
func assertTraceCount(c trace.CaseTrace, assertion Assertion) error {
	count := 0
	for _, s := range c.Steps {
		if assertion.StepMatch.matches(s) {
			count++
		}
	}
	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Case:     assertion.Case,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, assertion.StepMatch),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Steps:    c.Steps,
		}
	}
	return nil
}

// assertFinalState compares the application's items, in order, by title and
// completion. IDs are ignored.
func assertFinalState(items []todoapp.Item, assertion Assertion) error {
	want := make([]string, len(assertion.Items))
	for i, it := range assertion.Items {
		want[i] = formatItem(it.Title, it.Completed)
	}
	got := make([]string, len(items))
	for i, it := range items {
		got[i] = formatItem(it.Title, it.Completed)
	}
	if slices.Equal(want, got) {
		return nil
	}
	return &AssertionError{
		Type:     AssertFinalState,
		Expected: "items [" + strings.Join(want, ", ") + "]",
		Actual:   "items [" + strings.Join(got, ", ") + "]",
	}
}

func formatItem(title string, completed bool) string {
	if completed {
		return fmt.Sprintf("%q (completed)", title)
	}
	return fmt.Sprintf("%q", title)
}

// AssertionContext provides what assertions beyond the trace need.
type AssertionContext struct {
	Report *engine.Report
	Items  []todoapp.Item
}

// EvaluateAssertions evaluates all assertions against the trace.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(tr trace.Trace, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		var c trace.CaseTrace
		if assertion.Type != AssertFinalState {
			var ok bool
			if c, ok = tr.Case(assertion.Case); !ok {
				errors = append(errors, fmt.Sprintf("assertion[%d]: no case named %q", i, assertion.Case))
				continue
			}
		}

		switch assertion.Type {
		case AssertCaseStatus:
			err = assertCaseStatus(c, assertion)
		case AssertTraceContains:
			err = assertTraceContains(c, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(c, assertion)
		case AssertTraceCount:
			err = assertTraceCount(c, assertion)
		case AssertFinalState:
			if actx == nil {
				err = fmt.Errorf("assertion[%d]: final_state requires application state", i)
			} else {
				err = assertFinalState(actx.Items, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
