package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/todocheck/internal/compiler"
	"github.com/roach88/todocheck/internal/engine"
	"github.com/roach88/todocheck/internal/session"
	"github.com/roach88/todocheck/internal/todoapp"
	"github.com/roach88/todocheck/internal/trace"
)

// Default polling for scenario runs. The in-process application renders in
// well under the timeout even with latency_ms set.
const (
	DefaultTimeout  = 2 * time.Second
	DefaultInterval = 5 * time.Millisecond
)

// Options configures Run.
type Options struct {
	Timeout  time.Duration
	Interval time.Duration
	Filter   string // engine.WithFilter pattern
	Logger   *slog.Logger

	// Observers are notified alongside the trace recorder.
	Observers []engine.Observer
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every assertion held and every failed case was
	// expected to fail.
	Pass bool `json:"pass"`

	// Trace holds one entry per case, in execution order.
	Trace trace.Trace `json:"-"`

	// Errors contains assertion failures and unexpected case failures.
	Errors []string `json:"errors,omitempty"`

	// Items is the application's list after the last case.
	Items []todoapp.Item `json:"items"`

	Report *engine.Report `json:"-"`
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Run executes a scenario against a fresh in-process application and returns
// the result. An error means the scenario could not run at all; failing cases
// and assertions are reported in Result.
func Run(ctx context.Context, scenario *Scenario, opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	logger = logger.With("scenario", scenario.Name)

	root, err := compiler.Compile(scenario.Root())
	if err != nil {
		return nil, fmt.Errorf("compile scenario %s: %w", scenario.Name, err)
	}

	storage := todoapp.NewMemoryStorage()
	if len(scenario.Seed) > 0 {
		items := make([]todoapp.Item, len(scenario.Seed))
		for i, s := range scenario.Seed {
			items[i] = todoapp.Item{Title: s.Title, Completed: s.Completed}
		}
		if err := todoapp.Seed(ctx, storage, items); err != nil {
			return nil, fmt.Errorf("seed scenario %s: %w", scenario.Name, err)
		}
	}
	app := todoapp.New(
		todoapp.WithStorage(storage),
		todoapp.WithLatency(time.Duration(scenario.LatencyMS)*time.Millisecond),
		todoapp.WithLogger(logger),
	)
	defer app.Close()

	timeout, interval := opts.Timeout, opts.Interval
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if interval <= 0 {
		interval = DefaultInterval
	}

	rec := trace.NewRecorder()
	runnerOpts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithObserver(rec),
		engine.WithRunIDGenerator(engine.NewFixedGenerator("scenario-" + scenario.Name)),
		engine.WithFilter(opts.Filter),
	}
	for _, o := range opts.Observers {
		runnerOpts = append(runnerOpts, engine.WithObserver(o))
	}
	open := session.Opener(app, session.Options{
		Timeout:  timeout,
		Interval: interval,
		Logger:   logger,
		Tracer:   rec,
	})
	report := engine.NewRunner(open, runnerOpts...).Run(ctx, root)

	result := &Result{
		Pass:   true,
		Trace:  rec.Trace(),
		Items:  app.Items(),
		Report: report,
	}

	expectedFailures := map[string]bool{}
	for _, a := range scenario.Assertions {
		if a.Type == AssertCaseStatus && a.Status == string(engine.StatusFailed) {
			expectedFailures[a.Case] = true
		}
	}
	for _, c := range report.Failures() {
		if !expectedFailures[c.FullName()] {
			result.AddError(fmt.Sprintf("case %q failed: %v", c.FullName(), c.Errors()))
		}
	}

	actx := &AssertionContext{Report: report, Items: result.Items}
	for _, msg := range EvaluateAssertions(result.Trace, scenario.Assertions, actx) {
		result.AddError(msg)
	}

	logger.Info("scenario finished",
		"pass", result.Pass,
		"passed", report.Passed,
		"failed", report.Failed,
		"skipped", report.Skipped)
	return result, nil
}
