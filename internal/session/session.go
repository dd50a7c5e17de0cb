// Package session is the per-test-case facade scenarios are written against.
//
// A Session binds the driver, locator, retrying assertions, command executor,
// alias registry and accessibility auditor for one test case. Steps execute in
// call order. The first failing step is remembered and every later step becomes
// a no-op, so a case body reads as a straight list of steps and returns Err().
// AfterEach hooks run against Teardown(), which starts with a clean slate.
//
// Sessions keep the case context so chained calls need not repeat it; a Session
// must not outlive its case.
package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/roach88/todocheck/internal/a11y"
	"github.com/roach88/todocheck/internal/alias"
	"github.com/roach88/todocheck/internal/browser"
	"github.com/roach88/todocheck/internal/command"
	"github.com/roach88/todocheck/internal/dom"
	"github.com/roach88/todocheck/internal/engine"
	"github.com/roach88/todocheck/internal/expect"
	"github.com/roach88/todocheck/internal/failure"
	"github.com/roach88/todocheck/internal/locator"
)

// Step kinds recorded by a Tracer.
const (
	StepCommand = "command"
	StepAssert  = "assert"
	StepAlias   = "alias"
	StepAudit   = "audit"
)

// Event is one executed step.
type Event struct {
	Kind    string
	Subject string
	Detail  string
	Outcome string // "ok" or a failure code
}

// Tracer receives one Event per executed step.
type Tracer interface {
	Record(ev Event)
}

// Options configures sessions.
type Options struct {
	Timeout  time.Duration // per assertion and per command target (default expect.DefaultTimeout)
	Interval time.Duration // polling interval (default expect.DefaultInterval)
	Logger   *slog.Logger
	Auditor  a11y.Auditor
	Tracer   Tracer
}

type state struct {
	err error
}

// Session is the per-case step API.
type Session struct {
	ctx     context.Context
	driver  browser.Driver
	exec    *command.Executor
	aliases *alias.Registry
	auditor a11y.Auditor
	tracer  Tracer
	logger  *slog.Logger
	wait    expect.Options

	scope *locator.Query
	st    *state
}

// New creates a session for one case.
func New(ctx context.Context, d browser.Driver, opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	auditor := opts.Auditor
	if auditor == nil {
		auditor = a11y.NewAuditor()
	}
	return &Session{
		ctx:     ctx,
		driver:  d,
		exec:    command.NewExecutor(d, command.WithLogger(logger)),
		aliases: alias.NewRegistry(),
		auditor: auditor,
		tracer:  opts.Tracer,
		logger:  logger,
		wait:    expect.Options{Timeout: opts.Timeout, Interval: opts.Interval},
		st:      &state{},
	}
}

// Opener adapts New to the engine: every case gets a fresh session whose
// aliases are dropped when the case ends.
func Opener(d browser.Driver, opts Options) engine.OpenFunc[*Session] {
	return func(ctx context.Context, info engine.CaseInfo) (*Session, func(), error) {
		s := New(ctx, d, opts)
		s.logger = s.logger.With("case", info.FullName())
		return s, s.Close, nil
	}
}

// Err returns the first failure, or nil.
func (s *Session) Err() error { return s.st.err }

// Failed reports whether a step has failed.
func (s *Session) Failed() bool { return s.st.err != nil }

// Teardown returns a view of the session for afterEach hooks. It shares the
// driver, aliases and tracer but has its own failure slot, so teardown steps
// execute even after the case body failed. Its errors never reach Err.
func (s *Session) Teardown() *Session {
	t := *s
	t.scope = nil
	t.st = &state{}
	return &t
}

var _ engine.TeardownEnv[*Session] = (*Session)(nil)

// Aliases exposes the case's alias registry.
func (s *Session) Aliases() *alias.Registry { return s.aliases }

// Close destroys the case's aliases.
func (s *Session) Close() { s.aliases.Reset() }

func (s *Session) fail(err error) {
	if s.st.err == nil {
		s.st.err = err
		s.logger.Debug("step failed", "err", err)
	}
}

func (s *Session) record(kind, subject, detail string, err error) {
	if s.tracer == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = string(failure.CodeOf(err))
		if outcome == "" {
			outcome = "ERROR"
		}
	}
	s.tracer.Record(Event{Kind: kind, Subject: subject, Detail: detail, Outcome: outcome})
}

func (s *Session) resolver(q locator.Query) expect.Resolver {
	return func(ctx context.Context) (dom.Set, error) {
		doc, err := s.driver.Snapshot(ctx)
		if err != nil {
			return dom.Set{}, err
		}
		return s.resolve(doc, q)
	}
}

// resolve evaluates q against doc. A query that starts from an alias starts
// from the alias's elements while they are all still attached; once any is
// detached the alias's query runs again and the alias is updated.
func (s *Session) resolve(doc *dom.Document, q locator.Query) (dom.Set, error) {
	name := q.Alias()
	if name == "" {
		return q.Resolve(doc)
	}
	v, err := s.aliases.Recall(name)
	if err != nil {
		return dom.Set{}, err
	}
	base, ok := v.Rebind(doc)
	if !ok {
		if base, err = v.Query.Resolve(doc); err != nil {
			return dom.Set{}, err
		}
		s.aliases.Remember(name, alias.Value{Query: v.Query, Resolved: base})
	}
	return q.ResolveFrom(doc, base)
}

// Get starts a chain from a selector, or from an alias when selector is "@name".
// Inside Within the selector is searched below the scope.
func (s *Session) Get(selector string) *Chain {
	if alias.IsRef(selector) {
		v, err := s.aliases.Recall(selector)
		s.record(StepAlias, selector, "recall", err)
		if err != nil {
			s.fail(err)
			return &Chain{s: s}
		}
		return &Chain{s: s, q: v.Query.Named(selector[1:])}
	}
	if s.scope != nil {
		return &Chain{s: s, q: s.scope.Find(selector)}
	}
	return &Chain{s: s, q: locator.Get(selector)}
}

// Contains starts a chain at the first deepest element containing text.
func (s *Session) Contains(text string) *Chain {
	if s.scope != nil {
		return &Chain{s: s, q: s.scope.Contains(text)}
	}
	return &Chain{s: s, q: locator.ContainsText(text)}
}

// Focused starts a chain at the focused element.
func (s *Session) Focused() *Chain {
	return &Chain{s: s, q: locator.Focused()}
}

func (s *Session) browserCommand(cmd command.Command) *Session {
	if s.Failed() {
		return s
	}
	_, err := s.exec.Execute(s.ctx, cmd, "", dom.Set{})
	s.record(StepCommand, "", cmd.String(), err)
	if err != nil {
		s.fail(err)
	}
	return s
}

// Visit loads path fresh.
func (s *Session) Visit(path string) *Session { return s.browserCommand(command.Visit(path)) }

// Reload reloads the page.
func (s *Session) Reload() *Session { return s.browserCommand(command.Reload()) }

// Back navigates one history entry back.
func (s *Session) Back() *Session { return s.browserCommand(command.NavigateBack()) }

// ClearStorage wipes the application's persisted state.
func (s *Session) ClearStorage() *Session { return s.browserCommand(command.ClearStorage()) }

// BlurActive removes focus from the active element.
func (s *Session) BlurActive() *Session { return s.browserCommand(command.BlurActive()) }

// CheckA11y audits the current page with the rules or tags in runOnly (all
// rules when empty). Any violation fails the case.
func (s *Session) CheckA11y(runOnly ...string) *Session {
	if s.Failed() {
		return s
	}
	detail := "all rules"
	if len(runOnly) > 0 {
		detail = strings.Join(runOnly, ",")
	}
	err := s.audit(runOnly)
	s.record(StepAudit, "", detail, err)
	if err != nil {
		s.fail(err)
	}
	return s
}

func (s *Session) audit(runOnly []string) error {
	doc, err := s.driver.Snapshot(s.ctx)
	if err != nil {
		return err
	}
	res, err := s.auditor.Audit(s.ctx, doc, a11y.Options{RunOnly: runOnly})
	if err != nil {
		return err
	}
	return res.Err()
}

// actionable waits until the target can receive cmd: present and, except for
// blur, visible. A timeout reports why the last state was not actionable.
func (s *Session) actionable(q locator.Query, cmd command.Command) (dom.Set, error) {
	pred := expect.Exist
	if cmd.Kind != command.KindBlur {
		pred = expect.BeVisible
	}
	set, err := expect.Until(s.ctx, q.String(), s.resolver(q), pred, s.wait)
	var timeout *failure.Error
	if err == nil || !errors.As(err, &timeout) || timeout.Code != failure.CodeTimeout {
		return set, err
	}
	var fe *failure.Error
	if set.Empty() {
		fe = failure.ElementNotFound(q.String(), cmd.String())
	} else {
		fe = failure.ElementNotInteractable(q.String(), cmd.String(), "element is not visible")
	}
	fe.Elapsed = timeout.Elapsed
	fe.LastState = timeout.LastState
	fe.Err = err
	return set, fe
}

