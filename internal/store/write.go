package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/roach88/todocheck/internal/engine"
	"github.com/roach88/todocheck/internal/failure"
)

// CreateRun inserts a run row for a run that is starting.
// Uses ON CONFLICT(id) DO NOTHING for idempotency.
func (s *Store) CreateRun(ctx context.Context, run Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, suite, driver, started_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, run.ID, run.Suite, run.Driver, toMillis(run.StartedAt))
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

// WriteCaseResult inserts one case row. Duplicate (run_id, seq) writes are
// silently ignored. The run must exist (foreign key constraint).
func (s *Store) WriteCaseResult(ctx context.Context, rec CaseRecord) error {
	return writeCaseResult(ctx, s.db, rec)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func writeCaseResult(ctx context.Context, db execer, rec CaseRecord) error {
	hooks, err := marshalHookErrors(rec.HookErrors)
	if err != nil {
		return fmt.Errorf("write case result: %w", err)
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO case_results
		(run_id, seq, full_name, status, failure_code, message, hook_errors, elapsed_ms, trace_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, seq) DO NOTHING
	`,
		rec.RunID,
		rec.Seq,
		rec.FullName,
		rec.Status,
		rec.FailureCode,
		rec.Message,
		hooks,
		rec.Elapsed.Milliseconds(),
		rec.TraceHash,
	)
	if err != nil {
		return fmt.Errorf("write case result: %w", err)
	}
	return nil
}

// FinishRun records the final counts and exit code of a run.
func (s *Store) FinishRun(ctx context.Context, id string, finishedAt time.Time, passed, failed, skipped, exitCode int) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs
		SET finished_at = ?, passed = ?, failed = ?, skipped = ?, exit_code = ?
		WHERE id = ?
	`, toMillis(finishedAt), passed, failed, skipped, exitCode, id)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finish run %s: %w", id, ErrRunNotFound)
	}
	return nil
}

// SaveReport stores a finished report in one transaction: the run row, every
// case row and the final counts. traceHashes maps case full names to trace
// hashes and may be nil.
func (s *Store) SaveReport(ctx context.Context, suite, driver string, report *engine.Report, traceHashes map[string]string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save report: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO runs (id, suite, driver, started_at, finished_at, passed, failed, skipped, exit_code)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			finished_at = excluded.finished_at,
			passed = excluded.passed,
			failed = excluded.failed,
			skipped = excluded.skipped,
			exit_code = excluded.exit_code
	`,
		report.RunID, suite, driver,
		toMillis(report.StartedAt), toMillis(report.FinishedAt),
		report.Passed, report.Failed, report.Skipped, report.ExitCode(),
	); err != nil {
		return fmt.Errorf("save report: run: %w", err)
	}

	for _, c := range report.Cases {
		if err := writeCaseResult(ctx, tx, recordOf(report.RunID, c, traceHashes[c.FullName()])); err != nil {
			return fmt.Errorf("save report: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save report: commit: %w", err)
	}
	return nil
}

func recordOf(runID string, c engine.CaseResult, traceHash string) CaseRecord {
	rec := CaseRecord{
		RunID:     runID,
		Seq:       c.Seq,
		FullName:  c.FullName(),
		Status:    string(c.Status),
		Elapsed:   c.Elapsed,
		TraceHash: traceHash,
	}
	if c.Err != nil {
		rec.FailureCode = string(failure.CodeOf(c.Err))
		rec.Message = c.Err.Error()
	}
	for _, err := range c.HookErrors {
		rec.HookErrors = append(rec.HookErrors, err.Error())
	}
	return rec
}
