package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/todocheck/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	RunID    string
	Against  string // optional - second run to compare with
	Limit    int
	Failures bool
}

// RunRow is one stored run in trace output.
type RunRow struct {
	ID         string `json:"id"`
	Suite      string `json:"suite"`
	Driver     string `json:"driver"`
	StartedAt  string `json:"started_at"`
	FinishedAt string `json:"finished_at,omitempty"`
	Passed     int    `json:"passed"`
	Failed     int    `json:"failed"`
	Skipped    int    `json:"skipped"`
	ExitCode   int    `json:"exit_code"`
}

// CaseRow is one stored case in trace output.
type CaseRow struct {
	Seq         int64    `json:"seq"`
	Name        string   `json:"name"`
	Status      string   `json:"status"`
	FailureCode string   `json:"failure_code,omitempty"`
	Message     string   `json:"message,omitempty"`
	HookErrors  []string `json:"hook_errors,omitempty"`
	ElapsedMS   int64    `json:"elapsed_ms"`
	TraceHash   string   `json:"trace_hash,omitempty"`
}

// RunDetail is one run with its cases.
type RunDetail struct {
	Run   RunRow    `json:"run"`
	Cases []CaseRow `json:"cases"`
}

// CaseDiff is a case whose status or trace differs between two runs.
type CaseDiff struct {
	Name       string `json:"name"`
	Status     string `json:"status"`
	Against    string `json:"against_status"`
	SameTrace  bool   `json:"same_trace"`
	OnlyInRun  bool   `json:"only_in_run,omitempty"`
	OnlyInPrev bool   `json:"only_in_against,omitempty"`
}

// RunComparison lists the differences between two runs.
type RunComparison struct {
	Run     string     `json:"run"`
	Against string     `json:"against"`
	Same    int        `json:"same"`
	Diffs   []CaseDiff `json:"diffs"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show stored runs",
		Long: `Show runs recorded by "todocheck run --db".

Without --run, lists runs newest first. With --run, shows that run's
cases in execution order. With --against, compares two runs case by
case: a case differs when its status or its trace hash changed, which
is how a flaky or regressed case shows up.

Examples:
  todocheck trace --db ./todocheck.db
  todocheck trace --db ./todocheck.db --run 0192...
  todocheck trace --db ./todocheck.db --run 0192... --failures
  todocheck trace --db ./todocheck.db --run 0192... --against 0191... --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run ID to show")
	cmd.Flags().StringVar(&opts.Against, "against", "", "run ID to compare --run with")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "number of runs to list (0 for all)")
	cmd.Flags().BoolVar(&opts.Failures, "failures", false, "show only failed cases")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	if opts.Against != "" && opts.RunID == "" {
		return NewExitError(ExitCommandError, "--against needs --run")
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	out := newFormatter(cmd, opts.RootOptions)
	p := newPainter(out.Writer, opts.NoColor)

	switch {
	case opts.Against != "":
		cmp, err := compareRuns(ctx, st, opts.RunID, opts.Against)
		if err != nil {
			return runLookupError(err)
		}
		if out.Format == "json" {
			if err := out.Result(cmp, nil, cmp.Run); err != nil {
				return err
			}
		} else {
			writeComparisonText(out.Writer, p, cmp)
		}
		if len(cmp.Diffs) > 0 {
			return NewExitError(ExitFailure, fmt.Sprintf("%d case(s) differ", len(cmp.Diffs)))
		}
		return nil

	case opts.RunID != "":
		detail, err := loadRun(ctx, st, opts.RunID, opts.Failures)
		if err != nil {
			return runLookupError(err)
		}
		if out.Format == "json" {
			return out.Result(detail, nil, detail.Run.ID)
		}
		writeRunDetailText(out.Writer, p, detail, opts.Verbose)
		return nil

	default:
		runs, err := st.ListRuns(ctx, opts.Limit)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list runs", err)
		}
		rows := make([]RunRow, len(runs))
		for i, r := range runs {
			rows[i] = runRow(r)
		}
		if out.Format == "json" {
			return out.Result(rows, nil, "")
		}
		writeRunListText(out.Writer, p, rows)
		return nil
	}
}

func runLookupError(err error) error {
	if errors.Is(err, store.ErrRunNotFound) {
		return WrapExitError(ExitCommandError, "unknown run", err)
	}
	return WrapExitError(ExitCommandError, "failed to read run", err)
}

func loadRun(ctx context.Context, st *store.Store, id string, failuresOnly bool) (RunDetail, error) {
	run, err := st.GetRun(ctx, id)
	if err != nil {
		return RunDetail{}, err
	}
	var recs []store.CaseRecord
	if failuresOnly {
		recs, err = st.ReadFailures(ctx, id)
	} else {
		recs, err = st.ReadCaseResults(ctx, id)
	}
	if err != nil {
		return RunDetail{}, err
	}
	detail := RunDetail{Run: runRow(run), Cases: make([]CaseRow, len(recs))}
	for i, rec := range recs {
		detail.Cases[i] = CaseRow{
			Seq:         rec.Seq,
			Name:        rec.FullName,
			Status:      rec.Status,
			FailureCode: rec.FailureCode,
			Message:     rec.Message,
			HookErrors:  rec.HookErrors,
			ElapsedMS:   rec.Elapsed.Milliseconds(),
			TraceHash:   rec.TraceHash,
		}
	}
	return detail, nil
}

// compareRuns matches cases by full name. Skipped cases carry no trace hash,
// so only their status is compared.
func compareRuns(ctx context.Context, st *store.Store, id, against string) (RunComparison, error) {
	cur, err := loadRun(ctx, st, id, false)
	if err != nil {
		return RunComparison{}, err
	}
	prev, err := loadRun(ctx, st, against, false)
	if err != nil {
		return RunComparison{}, err
	}

	cmp := RunComparison{Run: id, Against: against, Diffs: []CaseDiff{}}
	prevByName := make(map[string]CaseRow, len(prev.Cases))
	for _, c := range prev.Cases {
		prevByName[c.Name] = c
	}
	seen := make(map[string]bool, len(cur.Cases))
	for _, c := range cur.Cases {
		seen[c.Name] = true
		old, ok := prevByName[c.Name]
		if !ok {
			cmp.Diffs = append(cmp.Diffs, CaseDiff{Name: c.Name, Status: c.Status, OnlyInRun: true})
			continue
		}
		sameTrace := c.TraceHash == old.TraceHash
		if c.Status == old.Status && sameTrace {
			cmp.Same++
			continue
		}
		cmp.Diffs = append(cmp.Diffs, CaseDiff{Name: c.Name, Status: c.Status, Against: old.Status, SameTrace: sameTrace})
	}
	for _, c := range prev.Cases {
		if !seen[c.Name] {
			cmp.Diffs = append(cmp.Diffs, CaseDiff{Name: c.Name, Against: c.Status, OnlyInPrev: true})
		}
	}
	return cmp, nil
}

func runRow(r store.Run) RunRow {
	row := RunRow{
		ID:        r.ID,
		Suite:     r.Suite,
		Driver:    r.Driver,
		StartedAt: r.StartedAt.UTC().Format(time.RFC3339),
		Passed:    r.Passed,
		Failed:    r.Failed,
		Skipped:   r.Skipped,
		ExitCode:  r.ExitCode,
	}
	if r.Finished() {
		row.FinishedAt = r.FinishedAt.UTC().Format(time.RFC3339)
	}
	return row
}

func writeRunListText(w io.Writer, p *painter, rows []RunRow) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return
	}
	for _, r := range rows {
		status := p.pass("passed")
		switch {
		case r.FinishedAt == "":
			status = p.skip("running")
		case r.Failed > 0:
			status = p.fail("failed")
		}
		fmt.Fprintf(w, "%s  %s  %s/%s  %s  %d passed, %d failed, %d skipped\n",
			r.ID, r.StartedAt, r.Suite, r.Driver, status, r.Passed, r.Failed, r.Skipped)
	}
}

func writeRunDetailText(w io.Writer, p *painter, d RunDetail, verbose bool) {
	fmt.Fprintf(w, "Run: %s\n", d.Run.ID)
	fmt.Fprintf(w, "Suite: %s (%s)\n", d.Run.Suite, d.Run.Driver)
	fmt.Fprintf(w, "Started: %s\n", d.Run.StartedAt)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Cases ===")
	if len(d.Cases) == 0 {
		fmt.Fprintln(w, "  (no cases)")
	}
	for _, c := range d.Cases {
		var mark string
		switch c.Status {
		case "passed":
			mark = p.pass("PASS")
		case "failed":
			mark = p.fail("FAIL")
		default:
			mark = p.skip("SKIP")
		}
		fmt.Fprintf(w, "  [%d] %s %s\n", c.Seq, mark, c.Name)
		if c.Message != "" {
			fmt.Fprintf(w, "       %s\n", indent(c.Message, "       "))
		}
		for _, h := range c.HookErrors {
			fmt.Fprintf(w, "       %s\n", indent(h, "       "))
		}
		if verbose && c.TraceHash != "" {
			fmt.Fprintf(w, "       %s\n", p.faint(c.TraceHash))
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Totals ===")
	fmt.Fprintf(w, "  Passed:  %d\n", d.Run.Passed)
	fmt.Fprintf(w, "  Failed:  %d\n", d.Run.Failed)
	fmt.Fprintf(w, "  Skipped: %d\n", d.Run.Skipped)
}

func writeComparisonText(w io.Writer, p *painter, c RunComparison) {
	fmt.Fprintf(w, "Comparing %s against %s\n", c.Run, c.Against)
	for _, d := range c.Diffs {
		switch {
		case d.OnlyInRun:
			fmt.Fprintf(w, "  %s %s (only in %s)\n", p.skip("+"), d.Name, c.Run)
		case d.OnlyInPrev:
			fmt.Fprintf(w, "  %s %s (only in %s)\n", p.skip("-"), d.Name, c.Against)
		case d.Status != d.Against:
			fmt.Fprintf(w, "  %s %s: %s -> %s\n", p.fail("~"), d.Name, d.Against, d.Status)
		default:
			fmt.Fprintf(w, "  %s %s: trace changed\n", p.fail("~"), d.Name)
		}
	}
	fmt.Fprintf(w, "%d same, %d different\n", c.Same, len(c.Diffs))
}
