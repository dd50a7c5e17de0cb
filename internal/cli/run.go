package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/roach88/todocheck/internal/browser"
	"github.com/roach88/todocheck/internal/browser/chrome"
	"github.com/roach88/todocheck/internal/config"
	"github.com/roach88/todocheck/internal/engine"
	"github.com/roach88/todocheck/internal/failure"
	"github.com/roach88/todocheck/internal/logging"
	"github.com/roach88/todocheck/internal/metrics"
	"github.com/roach88/todocheck/internal/session"
	"github.com/roach88/todocheck/internal/store"
	"github.com/roach88/todocheck/internal/todoapp"
	"github.com/roach88/todocheck/internal/todospec"
	"github.com/roach88/todocheck/internal/trace"
)

// suiteName labels stored runs and metrics of the built-in suite.
const suiteName = "todomvc"

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	ConfigPath string

	// flags holds flag values; only flags the user set override the config.
	flags config.Config

	// RunIDs allows overriding the run ID generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDs engine.RunIDGenerator
}

// CaseSummary is one case in the run output.
type CaseSummary struct {
	Name       string   `json:"name"`
	Status     string   `json:"status"`
	Code       string   `json:"code,omitempty"`
	Message    string   `json:"message,omitempty"`
	HookErrors []string `json:"hook_errors,omitempty"`
	ElapsedMS  int64    `json:"elapsed_ms"`
	TraceHash  string   `json:"trace_hash,omitempty"`
}

// RunSummary is the run command's JSON payload.
type RunSummary struct {
	RunID   string        `json:"run_id"`
	Driver  string        `json:"driver"`
	Passed  int           `json:"passed"`
	Failed  int           `json:"failed"`
	Skipped int           `json:"skipped"`
	Total   int           `json:"total"`
	Cases   []CaseSummary `json:"cases"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	opts.flags = config.Default()

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the TodoMVC suite",
		Long: `Run the TodoMVC suite against the in-process application or a browser.

Settings come from the defaults, then --config, then flags. With --db the
run and every case outcome are stored for "todocheck trace".

Exit codes:
  0 - All cases passed
  1 - One or more cases failed
  2 - Command error (bad config, driver did not start, etc.)

Examples:
  todocheck run
  todocheck run --filter routing
  todocheck run --filter "Todo > Routing > *"
  todocheck run --storage sqlite --db ./todocheck.db
  todocheck run --driver chrome --base-url http://localhost:8888/
  todocheck run --driver chrome --remote-url ws://127.0.0.1:9222 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSuite(opts, cmd)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.ConfigPath, "config", "", "path to a YAML config file")
	f.StringVar(&opts.flags.Driver, "driver", opts.flags.Driver, "system under test (inproc|chrome)")
	f.StringVar(&opts.flags.BaseURL, "base-url", opts.flags.BaseURL, "application URL for the chrome driver")
	f.StringVar(&opts.flags.RemoteURL, "remote-url", "", "DevTools websocket of a running browser")
	f.DurationVar(&opts.flags.Timeout, "timeout", opts.flags.Timeout, "assertion and actionability timeout")
	f.DurationVar(&opts.flags.Poll, "poll", opts.flags.Poll, "retry interval")
	f.StringVar(&opts.flags.Storage, "storage", opts.flags.Storage, "in-process app storage (memory|sqlite|redis)")
	f.StringVar(&opts.flags.RedisAddr, "redis-addr", "", "redis address for --storage redis")
	f.DurationVar(&opts.flags.Latency, "latency", 0, "in-process re-render delay")
	f.StringVar(&opts.flags.DB, "db", "", "SQLite database for run history")
	f.StringVar(&opts.flags.MetricsFile, "metrics-file", "", "write Prometheus samples to this file")
	f.StringVar(&opts.flags.Filter, "filter", "", "run only cases whose full name matches (glob or substring)")

	return cmd
}

// flagFields maps flag names to the config fields they set.
var flagFields = map[string]func(dst *config.Config, src config.Config){
	"driver":       func(d *config.Config, s config.Config) { d.Driver = s.Driver },
	"base-url":     func(d *config.Config, s config.Config) { d.BaseURL = s.BaseURL },
	"remote-url":   func(d *config.Config, s config.Config) { d.RemoteURL = s.RemoteURL },
	"timeout":      func(d *config.Config, s config.Config) { d.Timeout = s.Timeout },
	"poll":         func(d *config.Config, s config.Config) { d.Poll = s.Poll },
	"storage":      func(d *config.Config, s config.Config) { d.Storage = s.Storage },
	"redis-addr":   func(d *config.Config, s config.Config) { d.RedisAddr = s.RedisAddr },
	"latency":      func(d *config.Config, s config.Config) { d.Latency = s.Latency },
	"db":           func(d *config.Config, s config.Config) { d.DB = s.DB },
	"metrics-file": func(d *config.Config, s config.Config) { d.MetricsFile = s.MetricsFile },
	"filter":       func(d *config.Config, s config.Config) { d.Filter = s.Filter },
}

// resolveConfig layers the config file and the flags the user set over the
// defaults, then validates the result.
func (o *RunOptions) resolveConfig(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()
	if o.ConfigPath != "" {
		loaded, err := config.Load(o.ConfigPath)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}
	for name, apply := range flagFields {
		if cmd.Flags().Changed(name) {
			apply(&cfg, o.flags)
		}
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func runSuite(opts *RunOptions, cmd *cobra.Command) error {
	cfg, err := opts.resolveConfig(cmd)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}

	logger := logging.New(cmd.ErrOrStderr(), opts.Verbose)
	out := newFormatter(cmd, opts.RootOptions)

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var st *store.Store
	if cfg.DB != "" {
		logger.Debug("opening database", "path", cfg.DB)
		st, err = store.Open(cfg.DB)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()
	}

	driver, err := openDriver(ctx, cfg, st, logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start driver", err)
	}
	defer func() {
		if closeErr := driver.Close(); closeErr != nil {
			logger.Error("error closing driver", "error", closeErr)
		}
	}()

	rec := trace.NewRecorder()
	met := metrics.New(suiteName)
	runnerOpts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithObserver(rec),
		engine.WithObserver(met),
		engine.WithFilter(cfg.Filter),
	}
	if opts.RunIDs != nil {
		runnerOpts = append(runnerOpts, engine.WithRunIDGenerator(opts.RunIDs))
	}
	if out.Format != "json" {
		runnerOpts = append(runnerOpts, engine.WithObserver(&progress{
			w:       out.Writer,
			p:       newPainter(out.Writer, opts.NoColor),
			verbose: opts.Verbose,
		}))
	}

	runner := engine.NewRunner(session.Opener(driver, session.Options{
		Timeout:  cfg.Timeout,
		Interval: cfg.Poll,
		Logger:   logger,
		Tracer:   rec,
	}), runnerOpts...)
	report := runner.Run(ctx, todospec.Suite())

	hashes, err := caseHashes(rec.Trace())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to hash traces", err)
	}
	if st != nil {
		// A cancelled run is still worth keeping.
		if err := st.SaveReport(context.WithoutCancel(ctx), suiteName, cfg.Driver, report, hashes); err != nil {
			return WrapExitError(ExitCommandError, "failed to save run", err)
		}
		out.VerboseLog("run %s saved to %s", report.RunID, cfg.DB)
	}
	if cfg.MetricsFile != "" {
		if err := met.WriteTextfile(cfg.MetricsFile); err != nil {
			return WrapExitError(ExitCommandError, "failed to write metrics", err)
		}
	}

	summary := summarize(report, cfg.Driver, hashes)
	if out.Format == "json" {
		var failed *CLIError
		if !report.OK() {
			failed = &CLIError{Code: "E_RUN_FAILED", Message: fmt.Sprintf("%d case(s) failed", report.Failed)}
		}
		if err := out.Result(summary, failed, report.RunID); err != nil {
			return err
		}
	} else {
		writeRunSummary(out.Writer, newPainter(out.Writer, opts.NoColor), summary, report)
	}

	if err := ctx.Err(); err != nil {
		return WrapExitError(ExitFailure, "run interrupted", err)
	}
	if !report.OK() {
		return NewExitError(ExitFailure, fmt.Sprintf("%d case(s) failed", report.Failed))
	}
	return nil
}

// openDriver builds the system under test for cfg. The in-process app keeps
// its list in the configured storage; sqlite storage shares the run history
// database.
func openDriver(ctx context.Context, cfg config.Config, st *store.Store, logger *slog.Logger) (browser.Driver, error) {
	if cfg.Driver == config.DriverChrome {
		d, err := chrome.New(ctx, chrome.Options{
			BaseURL:   cfg.BaseURL,
			RemoteURL: cfg.RemoteURL,
			Logger:    logger,
		})
		if err != nil {
			return nil, err
		}
		return d, nil
	}

	appOpts := []todoapp.Option{
		todoapp.WithLatency(cfg.Latency),
		todoapp.WithLogger(logger),
	}
	switch cfg.Storage {
	case config.StorageSQLite:
		if st == nil {
			return nil, fmt.Errorf("sqlite storage needs a database")
		}
		appOpts = append(appOpts, todoapp.WithStorage(st.AppStorage(suiteName)))
	case config.StorageRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis %s: %w", cfg.RedisAddr, err)
		}
		appOpts = append(appOpts, todoapp.WithStorage(todoapp.NewRedisStorage(client, todoapp.DefaultRedisKey)))
		return &closingDriver{Driver: todoapp.New(appOpts...), close: client.Close}, nil
	default:
		appOpts = append(appOpts, todoapp.WithStorage(todoapp.NewMemoryStorage()))
	}
	return todoapp.New(appOpts...), nil
}

// closingDriver releases an extra resource after the driver.
type closingDriver struct {
	browser.Driver
	close func() error
}

func (d *closingDriver) Close() error {
	err := d.Driver.Close()
	if cerr := d.close(); err == nil {
		err = cerr
	}
	return err
}

func caseHashes(tr trace.Trace) (map[string]string, error) {
	hashes := make(map[string]string, len(tr.Cases))
	for _, c := range tr.Cases {
		if c.Status == engine.StatusSkipped {
			continue
		}
		h, err := trace.CaseHash(c)
		if err != nil {
			return nil, err
		}
		hashes[c.FullName()] = h
	}
	return hashes, nil
}

func summarize(report *engine.Report, driver string, hashes map[string]string) RunSummary {
	s := RunSummary{
		RunID:   report.RunID,
		Driver:  driver,
		Passed:  report.Passed,
		Failed:  report.Failed,
		Skipped: report.Skipped,
		Total:   report.Total(),
		Cases:   make([]CaseSummary, 0, len(report.Cases)),
	}
	for _, c := range report.Cases {
		cs := CaseSummary{
			Name:      c.FullName(),
			Status:    string(c.Status),
			ElapsedMS: c.Elapsed.Milliseconds(),
			TraceHash: hashes[c.FullName()],
		}
		if c.Err != nil {
			cs.Code = string(failure.CodeOf(c.Err))
			cs.Message = c.Err.Error()
		}
		for _, err := range c.HookErrors {
			cs.HookErrors = append(cs.HookErrors, err.Error())
		}
		s.Cases = append(s.Cases, cs)
	}
	return s
}

// progress prints one line per finished case; errors follow in the summary.
// Filtered cases are only shown with --verbose.
type progress struct {
	w       io.Writer
	p       *painter
	verbose bool
}

func (pr *progress) CaseStarted(engine.CaseInfo) {}

func (pr *progress) CaseFinished(res engine.CaseResult) {
	if res.Status == engine.StatusSkipped && res.SkipReason == "filtered out" && !pr.verbose {
		return
	}
	line := fmt.Sprintf("%s %s", pr.p.mark(res.Status), res.FullName())
	if res.Status != engine.StatusSkipped {
		line += " " + pr.p.faint(fmt.Sprintf("(%s)", res.Elapsed.Round(time.Millisecond)))
	}
	fmt.Fprintln(pr.w, line)
}

func writeRunSummary(w io.Writer, p *painter, s RunSummary, report *engine.Report) {
	fmt.Fprintln(w)
	if failures := report.Failures(); len(failures) > 0 {
		fmt.Fprintln(w, "Failures:")
		for i, c := range failures {
			fmt.Fprintf(w, "  %d) %s\n", i+1, c.FullName())
			for _, err := range c.Errors() {
				fmt.Fprintf(w, "     %s\n", indent(err.Error(), "     "))
			}
		}
		fmt.Fprintln(w)
	}
	status := p.pass("passed")
	if s.Failed > 0 {
		status = p.fail("failed")
	}
	fmt.Fprintf(w, "Run %s %s: %d passed, %d failed, %d skipped, %d total (%s)\n",
		s.RunID, status, s.Passed, s.Failed, s.Skipped, s.Total,
		report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond))
}
