package compiler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/roach88/todocheck/internal/engine"
	"github.com/roach88/todocheck/internal/failure"
	"github.com/roach88/todocheck/internal/session"
	"github.com/roach88/todocheck/internal/testutil"
	"github.com/roach88/todocheck/internal/todoapp"
)

func parseTree(t *testing.T, src string) ContextSpec {
	t.Helper()
	var spec ContextSpec
	require.NoError(t, yaml.Unmarshal([]byte(src), &spec))
	return spec
}

func runTree(t *testing.T, root *Group) *engine.Report {
	t.Helper()
	app := todoapp.New()
	t.Cleanup(func() { _ = app.Close() })
	open := session.Opener(app, session.Options{
		Timeout:  200 * time.Millisecond,
		Interval: 5 * time.Millisecond,
	})
	return engine.NewRunner(open, engine.WithRunIDGenerator(engine.NewFixedGenerator("run-1"))).
		Run(context.Background(), root)
}

const editingTree = `
name: Todo
before_each:
  - clear_storage:
  - visit: /
after_each:
  - blur_active:
cases:
  - name: focuses the input on load
    steps:
      - focused:
        should:
          - assert: have.class
            value: new-todo
contexts:
  - name: Editing
    before_each:
      - get: .new-todo
        do: type
        text: "buy some cheese{enter}"
      - get: .new-todo
        do: type
        text: "feed the cat{enter}"
      - get: .todo-list li
        as: todos
    cases:
      - name: edits the second item
        steps:
          - get: "@todos"
            eq: 1
            find: label
            do: dblclick
          - get: "@todos"
            eq: 1
            find: .edit
            do: type
            text: "{backspace}{backspace}{backspace}dog{enter}"
          - get: "@todos"
            eq: 1
            should:
              - assert: contain
                value: feed the dog
      - name: toggles inside the item
        steps:
          - get: "@todos"
            first: true
            within:
              - get: .toggle
                do: check
          - get: "@todos"
            first: true
            should:
              - assert: have.class
                value: completed
      - name: not yet
        skip: true
`

func TestCompile_RunsAgainstApp(t *testing.T) {
	root, err := Compile(parseTree(t, editingTree))
	require.NoError(t, err)
	assert.Equal(t, 4, root.CaseCount())

	report := runTree(t, root)
	require.Len(t, report.Cases, 4)
	for _, c := range report.Cases {
		if c.Status == engine.StatusFailed {
			t.Errorf("%s: %v", c.FullName(), c.Err)
		}
	}
	assert.Equal(t, 3, report.Passed)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 0, report.ExitCode())
}

func TestCompile_FailingAssertionTimesOut(t *testing.T) {
	root, err := Compile(parseTree(t, `
name: Todo
cases:
  - name: expects an item
    steps:
      - visit: /
      - get: .todo-list li
        should:
          - assert: have.length
            value: 1
      - get: .new-todo
        do: type
        text: never typed
`))
	require.NoError(t, err)

	report := runTree(t, root)
	require.Len(t, report.Cases, 1)
	assert.Equal(t, engine.StatusFailed, report.Cases[0].Status)
	assert.True(t, failure.Is(report.Cases[0].Err, failure.CodeTimeout))
	assert.Equal(t, 1, report.ExitCode())
}

func TestCompile_RejectsInvalidTree(t *testing.T) {
	_, err := Compile(parseTree(t, `
name: Todo
cases:
  - name: broken
    steps:
      - get: .new-todo
        do: shout
`))
	require.Error(t, err)
	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	require.Len(t, verrs, 1)
	assert.Equal(t, ErrUnknownAction, verrs[0].Code)
	assert.Equal(t, "cases[0].steps[0].do", verrs[0].Field)
}

func TestCompile_AfterEachAttemptsEveryStep(t *testing.T) {
	root, err := Compile(parseTree(t, `
name: Todo
after_each:
  - get: .missing
    do: click
  - clear_storage:
  - blur_active:
cases:
  - name: expects a missing item
    steps:
      - get: .missing
        should:
          - assert: exist
`))
	require.NoError(t, err)

	d := testutil.NewStaticDriver(`<html><body><input class="new-todo"></body></html>`)
	open := session.Opener(d, session.Options{Timeout: 50 * time.Millisecond, Interval: 5 * time.Millisecond})
	report := engine.NewRunner(open).Run(context.Background(), root)

	require.Len(t, report.Cases, 1)
	res := report.Cases[0]
	assert.True(t, failure.Is(res.Err, failure.CodeTimeout), "the body failure stays primary")
	require.Len(t, res.HookErrors, 1)
	assert.True(t, failure.Is(res.HookErrors[0], failure.CodeHook))
	assert.Contains(t, res.HookErrors[0].Error(), "step 0")

	var methods []string
	for _, c := range d.Calls() {
		methods = append(methods, c.Method)
	}
	assert.Equal(t, []string{"clearStorage", "blurActive"}, methods)
}
