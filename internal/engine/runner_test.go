package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/todocheck/internal/failure"
)

// env records the order things ran in and carries a per-case value.
type env struct {
	log   *[]string
	value map[string]string
}

func newRunner(t *testing.T, log *[]string, opts ...Option) *Runner[*env] {
	t.Helper()
	open := func(ctx context.Context, info CaseInfo) (*env, func(), error) {
		e := &env{log: log, value: map[string]string{}}
		return e, func() { *log = append(*log, "close "+info.Name) }, nil
	}
	opts = append([]Option{WithRunIDGenerator(NewFixedGenerator("run-1"))}, opts...)
	return NewRunner(open, opts...)
}

func step(name string) Func[*env] {
	return func(ctx context.Context, e *env) error {
		*e.log = append(*e.log, name)
		return nil
	}
}

func fail(name string) Func[*env] {
	return func(ctx context.Context, e *env) error {
		*e.log = append(*e.log, name)
		return errors.New(name + " failed")
	}
}

func TestRun_HookOrder(t *testing.T) {
	var log []string
	root := Describe("root", func(c *Context[*env]) {
		c.OnBeforeEach("", step("before outer"))
		c.OnAfterEach("", step("after outer"))
		c.Describe("inner", func(c *Context[*env]) {
			c.OnBeforeEach("", step("before inner"))
			c.OnAfterEach("", step("after inner"))
			c.It("case", step("body"))
		})
	})

	report := newRunner(t, &log).Run(context.Background(), root)

	assert.Equal(t, []string{
		"before outer", "before inner", "body", "after inner", "after outer", "close case",
	}, log)
	assert.Equal(t, 1, report.Passed)
	assert.Equal(t, "run-1", report.RunID)
	assert.Equal(t, []string{"root", "inner"}, report.Cases[0].Path)
	assert.Equal(t, "root > inner > case", report.Cases[0].FullName())
}

func TestRun_DepthFirstCasesBeforeChildren(t *testing.T) {
	var log []string
	root := Describe("", func(c *Context[*env]) {
		c.Describe("A", func(c *Context[*env]) {
			c.Describe("A1", func(c *Context[*env]) {
				c.It("a1", step("a1"))
			})
			c.It("a", step("a"))
		})
		c.Describe("B", func(c *Context[*env]) {
			c.It("b", step("b"))
		})
	})

	report := newRunner(t, &log).Run(context.Background(), root)

	var bodies []string
	for _, l := range log {
		if !strings.HasPrefix(l, "close") {
			bodies = append(bodies, l)
		}
	}
	assert.Equal(t, []string{"a", "a1", "b"}, bodies)
	require.Len(t, report.Cases, 3)
	for i, c := range report.Cases {
		assert.Equal(t, int64(i+1), c.Seq)
	}
}

func TestRun_FailureIsolatedToCase(t *testing.T) {
	var log []string
	root := Describe("root", func(c *Context[*env]) {
		c.It("first", fail("first"))
		c.It("second", step("second"))
	})

	report := newRunner(t, &log).Run(context.Background(), root)

	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Passed)
	assert.Equal(t, 1, report.ExitCode())
	assert.False(t, report.OK())
	assert.EqualError(t, report.Failures()[0].Err, "first failed")
}

func TestRun_BeforeEachFailureSkipsBodyButRunsAfterEach(t *testing.T) {
	var log []string
	root := Describe("root", func(c *Context[*env]) {
		c.OnBeforeEach("seed", fail("seed"))
		c.OnBeforeEach("visit", step("visit"))
		c.OnAfterEach("teardown", step("teardown"))
		c.It("case", step("body"))
	})

	report := newRunner(t, &log).Run(context.Background(), root)

	assert.Equal(t, []string{"seed", "teardown", "close case"}, log)
	require.Equal(t, 1, report.Failed)
	res := report.Cases[0]
	assert.True(t, failure.Is(res.Err, failure.CodeHook))
	assert.Contains(t, res.Err.Error(), `beforeEach hook in "root: seed" failed`)
}

func TestRun_AfterEachFailuresDoNotBlockLaterHooks(t *testing.T) {
	var log []string
	root := Describe("root", func(c *Context[*env]) {
		c.OnAfterEach("outer", step("after outer"))
		c.Describe("inner", func(c *Context[*env]) {
			c.OnAfterEach("first", fail("after inner 1"))
			c.OnAfterEach("second", fail("after inner 2"))
			c.It("case", step("body"))
		})
	})

	report := newRunner(t, &log).Run(context.Background(), root)

	assert.Equal(t, []string{"body", "after inner 1", "after inner 2", "after outer", "close case"}, log)
	res := report.Cases[0]
	assert.Equal(t, StatusFailed, res.Status)
	assert.NoError(t, res.Err)
	assert.Len(t, res.HookErrors, 2)
	assert.Len(t, res.Errors(), 2)
}

// stickyEnv ignores every step once one has failed.
type stickyEnv struct {
	log      *[]string
	failed   bool
	teardown bool
}

func (e *stickyEnv) Teardown() *stickyEnv { return &stickyEnv{log: e.log, teardown: true} }

func (e *stickyEnv) do(name string, err error) error {
	if e.failed {
		return nil
	}
	*e.log = append(*e.log, name)
	if err != nil {
		e.failed = true
	}
	return err
}

func TestRun_AfterEachGetsTeardownView(t *testing.T) {
	var log []string
	var views []bool
	open := func(ctx context.Context, info CaseInfo) (*stickyEnv, func(), error) {
		return &stickyEnv{log: &log}, nil, nil
	}
	root := Describe("root", func(c *Context[*stickyEnv]) {
		c.OnAfterEach("blur", func(ctx context.Context, e *stickyEnv) error {
			views = append(views, e.teardown)
			return e.do("blur", errors.New("blur failed"))
		})
		c.OnAfterEach("clear", func(ctx context.Context, e *stickyEnv) error {
			views = append(views, e.teardown)
			return e.do("clear", nil)
		})
		c.It("case", func(ctx context.Context, e *stickyEnv) error {
			if err := e.do("body", errors.New("body failed")); err != nil {
				return err
			}
			return e.do("unreached", nil)
		})
	})

	report := NewRunner(open).Run(context.Background(), root)

	assert.Equal(t, []string{"body", "blur", "clear"}, log)
	assert.Equal(t, []bool{true, true}, views)
	res := report.Cases[0]
	assert.EqualError(t, res.Err, "body failed")
	require.Len(t, res.HookErrors, 1)
	assert.True(t, failure.Is(res.HookErrors[0], failure.CodeHook))
}

func TestRun_PanicBecomesFailure(t *testing.T) {
	var log []string
	root := Describe("root", func(c *Context[*env]) {
		c.It("boom", func(ctx context.Context, e *env) error { panic("kaboom") })
		c.It("after", step("after"))
	})

	report := newRunner(t, &log).Run(context.Background(), root)

	assert.Equal(t, 1, report.Failed)
	assert.Contains(t, report.Cases[0].Err.Error(), "panic: kaboom")
	assert.Equal(t, StatusPassed, report.Cases[1].Status)
}

func TestRun_SkipAndFilter(t *testing.T) {
	var log []string
	root := Describe("root", func(c *Context[*env]) {
		c.It("adds items", step("adds"))
		c.It("edits items", step("edits"))
		c.Skip("flaky thing", step("flaky"))
	})

	report := newRunner(t, &log, WithFilter("ADDS")).Run(context.Background(), root)

	assert.Equal(t, 1, report.Passed)
	assert.Equal(t, 2, report.Skipped)
	assert.Equal(t, 0, report.ExitCode())
	assert.Equal(t, "filtered out", report.Cases[1].SkipReason)
	assert.Equal(t, "marked skip", report.Cases[2].SkipReason)
	assert.NotContains(t, log, "flaky")
}

func TestRun_GlobFilter(t *testing.T) {
	var log []string
	root := Describe("root", func(c *Context[*env]) {
		c.Describe("Editing", func(c *Context[*env]) { c.It("saves", step("saves")) })
		c.Describe("Routing", func(c *Context[*env]) { c.It("back", step("back")) })
	})

	report := newRunner(t, &log, WithFilter("root > Editing > *")).Run(context.Background(), root)
	assert.Equal(t, 1, report.Passed)
	assert.Equal(t, 1, report.Skipped)
}

func TestRun_EnvironmentIsPerCase(t *testing.T) {
	var mu sync.Mutex
	var seen []int
	open := func(ctx context.Context, info CaseInfo) (map[string]int, func(), error) {
		return map[string]int{}, nil, nil
	}
	body := func(ctx context.Context, m map[string]int) error {
		m["n"]++
		mu.Lock()
		seen = append(seen, m["n"])
		mu.Unlock()
		return nil
	}
	root := Describe("root", func(c *Context[map[string]int]) {
		c.It("one", body)
		c.It("two", body)
	})

	NewRunner(open).Run(context.Background(), root)
	assert.Equal(t, []int{1, 1}, seen, "nothing leaks between cases")
}

func TestRun_OpenFailure(t *testing.T) {
	open := func(ctx context.Context, info CaseInfo) (*env, func(), error) {
		return nil, nil, errors.New("browser gone")
	}
	root := Describe("root", func(c *Context[*env]) { c.It("case", step("body")) })

	report := NewRunner(open).Run(context.Background(), root)
	require.Equal(t, 1, report.Failed)
	assert.Contains(t, report.Cases[0].Err.Error(), "browser gone")
}

type recordingObserver struct {
	started  []string
	finished []Status
}

func (o *recordingObserver) CaseStarted(info CaseInfo)   { o.started = append(o.started, info.Name) }
func (o *recordingObserver) CaseFinished(res CaseResult) { o.finished = append(o.finished, res.Status) }

func TestRun_Observer(t *testing.T) {
	var log []string
	obs := &recordingObserver{}
	root := Describe("root", func(c *Context[*env]) {
		c.It("ok", step("ok"))
		c.It("bad", fail("bad"))
		c.Skip("skipped", step("skipped"))
	})

	newRunner(t, &log, WithObserver(obs)).Run(context.Background(), root)

	assert.Equal(t, []string{"ok", "bad"}, obs.started, "skipped cases never start")
	assert.Equal(t, []Status{StatusPassed, StatusFailed, StatusSkipped}, obs.finished)
}

func TestRun_CancelledContextSkipsRemaining(t *testing.T) {
	var log []string
	ctx, cancel := context.WithCancel(context.Background())
	root := Describe("root", func(c *Context[*env]) {
		c.It("cancels", func(ctx context.Context, e *env) error { cancel(); return nil })
		c.It("never", step("never"))
	})

	report := newRunner(t, &log).Run(ctx, root)
	assert.Equal(t, 1, report.Passed)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, "run cancelled", report.Cases[1].SkipReason)
}

func TestContext_CaseCount(t *testing.T) {
	root := Describe("root", func(c *Context[*env]) {
		c.It("a", nil)
		c.Describe("x", func(c *Context[*env]) {
			c.It("b", nil)
			c.Skip("c", nil)
		})
	})
	assert.Equal(t, 3, root.CaseCount())
}
