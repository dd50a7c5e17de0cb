package session

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/todocheck/internal/browser"
	"github.com/roach88/todocheck/internal/engine"
	"github.com/roach88/todocheck/internal/expect"
	"github.com/roach88/todocheck/internal/failure"
	"github.com/roach88/todocheck/internal/testutil"
)

const page = `<html><body data-hx-bg="#ffffff">` +
	`<input class="new-todo" placeholder="What needs to be done?">` +
	`<ul class="todo-list">` +
	`<li data-id="1"><input class="toggle" type="checkbox" aria-label="Toggle"><label data-hx-color="#4d4d4d">buy milk</label></li>` +
	`<li data-id="2" class="completed"><input class="toggle" type="checkbox" aria-label="Toggle" checked><label data-hx-color="#4d4d4d">feed cat</label></li>` +
	`</ul>` +
	`<input class="edit" data-hx-visible="false">` +
	`<ul class="filters"><li><a class="selected" href="#/">All</a></li><li><a href="#/active">Active</a></li></ul>` +
	`</body></html>`

type traceLog struct{ events []Event }

func (l *traceLog) Record(ev Event) { l.events = append(l.events, ev) }

func newSession(t *testing.T, d browser.Driver, tr Tracer) *Session {
	t.Helper()
	return New(context.Background(), d, Options{
		Timeout:  150 * time.Millisecond,
		Interval: 10 * time.Millisecond,
		Tracer:   tr,
	})
}

func TestShould_Passes(t *testing.T) {
	s := newSession(t, testutil.NewStaticDriver(page), nil)

	s.Get(".todo-list li").Should(expect.HaveLength(2))
	s.Get(".todo-list li").Eq(1).Should(expect.HaveClass("completed"))
	s.Get(".todo-list li").Eq(0).Find("label").Should(expect.HaveText("buy milk"))
	s.Get(".todo-list li").Last().Find(".toggle").Should(expect.BeChecked)
	s.Get(".edit").Should(expect.Not(expect.BeVisible))
	s.Get(".nothing").Should(expect.Not(expect.Exist))

	assert.NoError(t, s.Err())
}

func TestShould_RetriesUntilPageChanges(t *testing.T) {
	d := testutil.NewStaticDriver(page)
	s := newSession(t, d, nil)

	go func() {
		time.Sleep(30 * time.Millisecond)
		d.SetHTML(`<html><body><ul class="todo-list"><li>only</li></ul></body></html>`)
	}()

	s.Get(".todo-list li").Should(expect.HaveLength(1))
	assert.NoError(t, s.Err())
}

func TestShould_TimeoutIsSticky(t *testing.T) {
	d := testutil.NewStaticDriver(page)
	s := newSession(t, d, nil)

	s.Get(".todo-list li").Should(expect.HaveLength(3))
	require.Error(t, s.Err())
	assert.True(t, failure.Is(s.Err(), failure.CodeTimeout))

	// later steps are no-ops
	s.Get(".new-todo").Type("x")
	assert.Empty(t, d.Calls())
	assert.True(t, failure.Is(s.Err(), failure.CodeTimeout))
}

func TestType_SplitsSpecialKeys(t *testing.T) {
	d := testutil.NewStaticDriver(page)
	s := newSession(t, d, nil)

	s.Get(".new-todo").Type("buy milk{enter}")
	require.NoError(t, s.Err())

	calls := d.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, browser.Input{Kind: browser.InputType, Text: "buy milk"}, calls[0].Input)
	assert.Equal(t, browser.Input{Kind: browser.InputKey, Key: browser.KeyEnter}, calls[1].Input)
}

func TestType_BadKeySequence(t *testing.T) {
	d := testutil.NewStaticDriver(page)
	s := newSession(t, d, nil)

	s.Get(".new-todo").Type("x{enter")
	require.Error(t, s.Err())
	assert.Empty(t, d.Calls())
}

func TestAct_MissingTarget(t *testing.T) {
	s := newSession(t, testutil.NewStaticDriver(page), nil)

	s.Get(".clear-completed").Click()
	err := s.Err()
	require.Error(t, err)
	assert.True(t, failure.Is(err, failure.CodeElementNotFound))

	var fe *failure.Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "click()", fe.Command)
	assert.Greater(t, fe.Elapsed, time.Duration(0))
}

func TestAct_HiddenTarget(t *testing.T) {
	s := newSession(t, testutil.NewStaticDriver(page), nil)

	s.Get(".edit").Type("x")
	assert.True(t, failure.Is(s.Err(), failure.CodeElementNotInteractable))
}

func TestAct_BlurDoesNotNeedVisibility(t *testing.T) {
	d := testutil.NewStaticDriver(page)
	s := newSession(t, d, nil)

	s.Get(".edit").Blur()
	require.NoError(t, s.Err())
	require.Len(t, d.Calls(), 1)
	assert.Equal(t, browser.InputBlur, d.Calls()[0].Input.Kind)
}

func TestAct_SeveralTargets(t *testing.T) {
	s := newSession(t, testutil.NewStaticDriver(page), nil)

	s.Get(".toggle").Check()
	assert.True(t, failure.Is(s.Err(), failure.CodeElementNotInteractable))
}

func TestAlias_RecallReResolves(t *testing.T) {
	d := testutil.NewStaticDriver(page)
	s := newSession(t, d, nil)

	s.Get(".todo-list li").As("todos")
	s.Get("@todos").Should(expect.HaveLength(2))

	d.SetHTML(`<html><body><ul class="todo-list"><li>a</li><li>b</li><li>c</li></ul></body></html>`)
	s.Get("@todos").Should(expect.HaveLength(3))
	s.Get("@todos").Eq(2).Should(expect.HaveText("c"))
	require.NoError(t, s.Err())

	v, err := s.Aliases().Recall("todos")
	require.NoError(t, err)
	assert.Equal(t, 3, v.Resolved.Len(), "a re-run query updates the alias")
}

func TestAlias_AttachedElementsSurviveTextChanges(t *testing.T) {
	d := testutil.NewStaticDriver(page)
	s := newSession(t, d, nil)

	s.Get(".todo-list li").ContainsMatching("li", "buy milk").As("first")
	d.SetHTML(strings.Replace(page, "buy milk", "buy bread", 1))

	// the contains query no longer matches, but the element is still attached
	s.Get("@first").Should(expect.Contain("buy bread"))
	s.Get("@first").Find(".toggle").Should(expect.Not(expect.BeChecked))
	assert.NoError(t, s.Err())
}

func TestAlias_Unknown(t *testing.T) {
	s := newSession(t, testutil.NewStaticDriver(page), nil)

	s.Get("@missing").Find("label").Should(expect.Exist)
	assert.True(t, failure.Is(s.Err(), failure.CodeAliasNotFound))
}

func TestWithin_ScopesQueries(t *testing.T) {
	s := newSession(t, testutil.NewStaticDriver(page), nil)

	s.Get(".filters").Within(func(s *Session) {
		s.Contains("All").Should(expect.HaveClass("selected"))
		s.Get("a").Should(expect.HaveLength(2))
		s.Contains("buy milk").Should(expect.Not(expect.Exist))
	})
	s.Contains("buy milk").Should(expect.Exist)
	assert.NoError(t, s.Err())
}

func TestContainsMatching(t *testing.T) {
	s := newSession(t, testutil.NewStaticDriver(page), nil)

	s.Get(".todo-list li").ContainsMatching("li", "feed cat").Should(expect.HaveClass("completed"))
	assert.NoError(t, s.Err())
}

func TestBrowserCommands(t *testing.T) {
	d := testutil.NewStaticDriver(page)
	s := newSession(t, d, nil)

	s.ClearStorage().Visit("/").Reload().Back().BlurActive()
	require.NoError(t, s.Err())

	var methods []string
	for _, c := range d.Calls() {
		methods = append(methods, c.Method)
	}
	assert.Equal(t, []string{"clearStorage", "visit", "reload", "back", "blurActive"}, methods)
}

func TestCheckA11y(t *testing.T) {
	s := newSession(t, testutil.NewStaticDriver(page), nil)
	s.CheckA11y("cat.color")
	assert.NoError(t, s.Err())

	s = newSession(t, testutil.NewStaticDriver(
		`<html><body><p data-hx-color="#d9d9d9">faint</p></body></html>`), nil)
	s.CheckA11y()
	assert.True(t, failure.Is(s.Err(), failure.CodeAccessibilityViolation))
}

func TestTracer(t *testing.T) {
	tr := &traceLog{}
	s := newSession(t, testutil.NewStaticDriver(page), tr)

	s.Visit("/")
	s.Get(".new-todo").Type("a")
	s.Get(".todo-list li").As("todos")
	s.Get("@todos").Should(expect.HaveLength(5))

	require.Len(t, tr.events, 5)
	assert.Equal(t, Event{Kind: StepCommand, Detail: `visit("/")`, Outcome: "ok"}, tr.events[0])
	assert.Equal(t, Event{Kind: StepCommand, Subject: `get(".new-todo")`, Detail: `type("a")`, Outcome: "ok"}, tr.events[1])
	assert.Equal(t, StepAlias, tr.events[2].Kind)
	assert.Equal(t, "as @todos", tr.events[2].Detail)
	assert.Equal(t, "recall", tr.events[3].Detail)
	assert.Equal(t, Event{Kind: StepAssert, Subject: "@todos", Detail: "have length 5", Outcome: "TIMEOUT"}, tr.events[4])
}

func TestOpener_RunsCasesWithFreshSessions(t *testing.T) {
	d := testutil.NewStaticDriver(page)
	root := engine.Describe("todos", func(c *engine.Context[*Session]) {
		c.It("remembers", func(ctx context.Context, s *Session) error {
			s.Get(".todo-list li").As("todos")
			return s.Err()
		})
		c.It("starts clean", func(ctx context.Context, s *Session) error {
			s.Get("@todos").Should(expect.Exist)
			return s.Err()
		})
	})

	report := engine.NewRunner(Opener(d, Options{Timeout: 50 * time.Millisecond})).Run(context.Background(), root)
	require.Len(t, report.Cases, 2)
	assert.Equal(t, engine.StatusPassed, report.Cases[0].Status)
	assert.Equal(t, engine.StatusFailed, report.Cases[1].Status)
	assert.True(t, failure.Is(report.Cases[1].Err, failure.CodeAliasNotFound))
}

func TestTeardown_HasOwnFailureSlot(t *testing.T) {
	d := testutil.NewStaticDriver(page)
	s := newSession(t, d, nil)
	s.Get("@missing")
	require.True(t, s.Failed())

	td := s.Teardown()
	assert.False(t, td.Failed())
	td.BlurActive()
	require.NoError(t, td.Err())
	assert.Equal(t, "blurActive", d.Calls()[0].Method)

	td.Get(".missing").Click()
	assert.True(t, failure.Is(td.Err(), failure.CodeElementNotFound))
	assert.True(t, failure.Is(s.Err(), failure.CodeAliasNotFound), "the body failure stays primary")
}

func TestOpener_AfterEachRunsWhenBodyFails(t *testing.T) {
	d := testutil.NewStaticDriver(page)
	root := engine.Describe("todos", func(c *engine.Context[*Session]) {
		c.OnAfterEach("blur", func(ctx context.Context, s *Session) error {
			s.BlurActive()
			return s.Err()
		})
		c.OnAfterEach("clear", func(ctx context.Context, s *Session) error {
			s.ClearStorage()
			return s.Err()
		})
		c.It("clicks nothing", func(ctx context.Context, s *Session) error {
			s.Get(".missing").Click()
			return s.Err()
		})
	})

	report := engine.NewRunner(Opener(d, Options{Timeout: 50 * time.Millisecond})).Run(context.Background(), root)
	require.Len(t, report.Cases, 1)
	res := report.Cases[0]
	assert.Equal(t, engine.StatusFailed, res.Status)
	assert.True(t, failure.Is(res.Err, failure.CodeElementNotFound))
	assert.Empty(t, res.HookErrors)

	var methods []string
	for _, c := range d.Calls() {
		methods = append(methods, c.Method)
	}
	assert.Equal(t, []string{"blurActive", "clearStorage"}, methods)
}

func TestAs_RecordsResolveError(t *testing.T) {
	tr := &traceLog{}
	s := newSession(t, testutil.NewStaticDriver(page), tr)

	s.Get("li[").As("broken")
	require.NoError(t, s.Err())
	require.Len(t, tr.events, 1)
	assert.Equal(t, Event{Kind: StepAlias, Subject: `get("li[")`, Detail: "as @broken", Outcome: "ERROR"}, tr.events[0])

	v, err := s.Aliases().Recall("broken")
	require.NoError(t, err)
	assert.True(t, v.Resolved.Empty())
}
