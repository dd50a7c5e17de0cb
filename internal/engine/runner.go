package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/roach88/todocheck/internal/failure"
)

// OpenFunc creates the environment for one case. The returned close function
// runs after the last afterEach hook. Whatever the case remembers (aliases)
// must live in the environment so it dies with the case.
type OpenFunc[E any] func(ctx context.Context, info CaseInfo) (env E, closeEnv func(), err error)

// TeardownEnv is implemented by environments that give afterEach hooks their
// own view of the case. Each afterEach hook runs against a fresh Teardown(), so
// a failure in the body or an earlier hook does not suppress the hook's work.
type TeardownEnv[E any] interface {
	Teardown() E
}

// Observer is notified as cases start and finish.
// Implementations must not block; they run on the runner goroutine.
type Observer interface {
	CaseStarted(info CaseInfo)
	CaseFinished(res CaseResult)
}

type config struct {
	logger    *slog.Logger
	observers []Observer
	filter    string
	ids       RunIDGenerator
	clock     *Clock
}

// Option configures a Runner.
type Option func(*config)

// WithLogger sets the runner logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithObserver adds an observer.
func WithObserver(o Observer) Option {
	return func(c *config) { c.observers = append(c.observers, o) }
}

// WithFilter restricts execution to cases whose full name matches pattern.
// Patterns containing glob metacharacters are matched with filepath.Match;
// anything else is a case-insensitive substring. Non-matching cases are
// reported as skipped.
func WithFilter(pattern string) Option {
	return func(c *config) { c.filter = pattern }
}

// WithRunIDGenerator sets the run ID source (default UUIDv7Generator).
func WithRunIDGenerator(g RunIDGenerator) Option {
	return func(c *config) { c.ids = g }
}

// WithClock sets the clock numbering cases.
func WithClock(clock *Clock) Option {
	return func(c *config) { c.clock = clock }
}

// Runner executes Context trees.
type Runner[E any] struct {
	config
	open OpenFunc[E]
}

// NewRunner creates a Runner that opens a fresh environment per case with open.
func NewRunner[E any](open OpenFunc[E], opts ...Option) *Runner[E] {
	r := &Runner[E]{
		config: config{
			logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
			ids:    UUIDv7Generator{},
			clock:  NewClock(),
		},
		open: open,
	}
	for _, opt := range opts {
		opt(&r.config)
	}
	return r
}

// scopedHook is a hook together with the name of the Context declaring it.
type scopedHook[E any] struct {
	Hook[E]
	context string
}

// Run executes root depth-first and returns the report. Run never fails as a
// whole: every error is recorded against the case it happened in.
func (r *Runner[E]) Run(ctx context.Context, root *Context[E]) *Report {
	report := &Report{RunID: r.ids.Generate(), StartedAt: time.Now()}
	r.logger.Info("run started", "run_id", report.RunID, "cases", root.CaseCount())

	r.walk(ctx, root, nil, nil, nil, report)

	report.FinishedAt = time.Now()
	r.logger.Info("run finished",
		"run_id", report.RunID,
		"passed", report.Passed,
		"failed", report.Failed,
		"skipped", report.Skipped,
		"elapsed", report.FinishedAt.Sub(report.StartedAt))
	return report
}

func (r *Runner[E]) walk(ctx context.Context, c *Context[E], path []string, before, after []scopedHook[E], report *Report) {
	if c.Name != "" {
		path = append(append([]string{}, path...), c.Name)
	}

	// beforeEach accumulates outer to inner; afterEach inner to outer.
	b := append([]scopedHook[E]{}, before...)
	for _, h := range c.BeforeEach {
		b = append(b, scopedHook[E]{Hook: h, context: c.Name})
	}
	a := make([]scopedHook[E], 0, len(c.AfterEach)+len(after))
	for _, h := range c.AfterEach {
		a = append(a, scopedHook[E]{Hook: h, context: c.Name})
	}
	a = append(a, after...)

	for _, cs := range c.Cases {
		res := r.runCase(ctx, cs, path, b, a)
		report.add(res)
	}
	for _, child := range c.Children {
		r.walk(ctx, child, path, b, a, report)
	}
}

func (r *Runner[E]) runCase(ctx context.Context, cs *Case[E], path []string, before, after []scopedHook[E]) CaseResult {
	info := CaseInfo{Seq: r.clock.Next(), Path: path, Name: cs.Name}
	res := CaseResult{CaseInfo: info}

	switch {
	case cs.Skip:
		res.Status, res.SkipReason = StatusSkipped, "marked skip"
	case !r.matches(info):
		res.Status, res.SkipReason = StatusSkipped, "filtered out"
	case ctx.Err() != nil:
		res.Status, res.SkipReason = StatusSkipped, "run cancelled"
	}
	if res.Status == StatusSkipped {
		r.finish(res)
		return res
	}

	for _, o := range r.observers {
		o.CaseStarted(info)
	}
	r.logger.Debug("case started", "seq", info.Seq, "case", info.FullName())
	start := time.Now()

	env, closeEnv, err := r.open(ctx, info)
	if err != nil {
		res.Err = fmt.Errorf("open case environment: %w", err)
	} else {
		res.Err = r.runBody(ctx, env, cs, before)
		for _, h := range after {
			if err := call(ctx, teardownEnv(env), h.Fn); err != nil {
				res.HookErrors = append(res.HookErrors, failure.Hook("afterEach", hookLabel(h), err))
			}
		}
		if closeEnv != nil {
			closeEnv()
		}
	}

	res.Elapsed = time.Since(start)
	res.Status = StatusPassed
	if res.Err != nil || len(res.HookErrors) > 0 {
		res.Status = StatusFailed
	}
	r.finish(res)
	return res
}

func (r *Runner[E]) runBody(ctx context.Context, env E, cs *Case[E], before []scopedHook[E]) error {
	for _, h := range before {
		if err := call(ctx, env, h.Fn); err != nil {
			return failure.Hook("beforeEach", hookLabel(h), err)
		}
	}
	return call(ctx, env, cs.Body)
}

func teardownEnv[E any](env E) E {
	if t, ok := any(env).(TeardownEnv[E]); ok {
		return t.Teardown()
	}
	return env
}

func (r *Runner[E]) finish(res CaseResult) {
	switch res.Status {
	case StatusFailed:
		r.logger.Warn("case failed", "seq", res.Seq, "case", res.FullName(), "err", res.Errors())
	case StatusSkipped:
		r.logger.Debug("case skipped", "seq", res.Seq, "case", res.FullName(), "reason", res.SkipReason)
	default:
		r.logger.Debug("case passed", "seq", res.Seq, "case", res.FullName(), "elapsed", res.Elapsed)
	}
	for _, o := range r.observers {
		o.CaseFinished(res)
	}
}

func (r *Runner[E]) matches(info CaseInfo) bool {
	if r.filter == "" {
		return true
	}
	name := info.FullName()
	if strings.ContainsAny(r.filter, "*?[") {
		ok, err := filepath.Match(r.filter, name)
		return err == nil && ok
	}
	return strings.Contains(strings.ToLower(name), strings.ToLower(r.filter))
}

// call runs fn, converting a panic into an error so one broken case cannot
// take down the run.
func call[E any](ctx context.Context, env E, fn Func[E]) (err error) {
	if fn == nil {
		return nil
	}
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return fn(ctx, env)
}

func hookLabel[E any](h scopedHook[E]) string {
	if h.Name == "" {
		return h.context
	}
	if h.context == "" {
		return h.Name
	}
	return h.context + ": " + h.Name
}
