package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/todocheck/internal/engine"
	"github.com/roach88/todocheck/internal/todoapp"
	"github.com/roach88/todocheck/internal/trace"
)

func sampleTrace() trace.Trace {
	return trace.Trace{Cases: []trace.CaseTrace{
		{
			Path:   []string{"Todo"},
			Name:   "adds",
			Status: engine.StatusPassed,
			Steps: []trace.Step{
				{Kind: "command", Detail: `visit("/")`, Outcome: "ok"},
				{Kind: "command", Subject: `get(".new-todo")`, Detail: `type("a")`, Outcome: "ok"},
				{Kind: "command", Subject: `get(".new-todo")`, Detail: "pressKey(Enter)", Outcome: "ok"},
				{Kind: "assert", Subject: `get(".todo-list li")`, Detail: "have length 1", Outcome: "ok"},
			},
		},
		{
			Path:   []string{"Todo"},
			Name:   "times out",
			Status: engine.StatusFailed,
			Code:   "TIMEOUT",
			Steps: []trace.Step{
				{Kind: "assert", Subject: `get(".main")`, Detail: "be visible", Outcome: "TIMEOUT"},
			},
		},
	}}
}

func TestStepMatch_EmptyFieldsMatchAnything(t *testing.T) {
	s := trace.Step{Kind: "command", Subject: "x", Detail: "click()", Outcome: "ok"}
	assert.True(t, StepMatch{}.matches(s))
	assert.True(t, StepMatch{Kind: "command", Detail: "click()"}.matches(s))
	assert.False(t, StepMatch{Kind: "assert"}.matches(s))
	assert.Equal(t, `{kind="command" outcome="ok"}`, StepMatch{Kind: "command", Outcome: "ok"}.String())
}

func TestEvaluateAssertions_Pass(t *testing.T) {
	assertions := []Assertion{
		{Type: AssertCaseStatus, Case: "Todo > adds", Status: "passed"},
		{Type: AssertCaseStatus, Case: "Todo > times out", Status: "failed", Code: "TIMEOUT"},
		{Type: AssertTraceContains, Case: "Todo > adds", StepMatch: StepMatch{Kind: "assert", Detail: "have length 1"}},
		{Type: AssertTraceCount, Case: "Todo > adds", StepMatch: StepMatch{Kind: "command"}, Count: 3},
		{Type: AssertTraceCount, Case: "Todo > adds", StepMatch: StepMatch{Outcome: "TIMEOUT"}, Count: 0},
		{Type: AssertTraceOrder, Case: "Todo > adds", Steps: []StepMatch{
			{Detail: `visit("/")`},
			{Detail: "pressKey(Enter)"},
			{Kind: "assert"},
		}},
		{Type: AssertFinalState, Items: []SeedItem{{Title: "a"}}},
	}
	errs := EvaluateAssertions(sampleTrace(), assertions, &AssertionContext{
		Items: []todoapp.Item{{ID: 7, Title: "a"}},
	})
	assert.Empty(t, errs)
}

func TestEvaluateAssertions_CaseStatusCode(t *testing.T) {
	errs := EvaluateAssertions(sampleTrace(), []Assertion{
		{Type: AssertCaseStatus, Case: "Todo > times out", Status: "failed", Code: "ELEMENT_NOT_FOUND"},
	}, nil)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "Expected: failure code ELEMENT_NOT_FOUND")
	assert.Contains(t, errs[0], "Actual: failure code TIMEOUT")
	assert.Contains(t, errs[0], "[1] assert get(\".main\") be visible -> TIMEOUT")
}

func TestEvaluateAssertions_FinalStateNeedsContext(t *testing.T) {
	errs := EvaluateAssertions(sampleTrace(), []Assertion{{Type: AssertFinalState}}, nil)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "requires application state")
}

func TestEvaluateAssertions_FinalStateCompletion(t *testing.T) {
	errs := EvaluateAssertions(sampleTrace(), []Assertion{
		{Type: AssertFinalState, Items: []SeedItem{{Title: "a", Completed: true}}},
	}, &AssertionContext{Items: []todoapp.Item{{Title: "a"}}})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], `Expected: items ["a" (completed)]`)
}
