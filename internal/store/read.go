package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const runColumns = `id, suite, driver, started_at, finished_at, passed, failed, skipped, exit_code`

// ListRuns returns up to limit runs, newest first. limit <= 0 means all.
// Returns an empty slice (not nil) when there are no runs.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+runColumns+`
		FROM runs
		ORDER BY started_at DESC, id COLLATE BINARY ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// GetRun returns one run. Returns ErrRunNotFound if the ID is unknown.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return run, err
}

// ReadCaseResults returns a run's cases ORDER BY seq ASC.
// Returns an empty slice (not nil) for a run without cases.
func (s *Store) ReadCaseResults(ctx context.Context, runID string) ([]CaseRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, seq, full_name, status, failure_code, message, hook_errors, elapsed_ms, trace_hash
		FROM case_results
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query case results: %w", err)
	}
	defer rows.Close()

	recs := []CaseRecord{}
	for rows.Next() {
		var rec CaseRecord
		var hooks string
		var elapsedMS int64
		if err := rows.Scan(&rec.RunID, &rec.Seq, &rec.FullName, &rec.Status, &rec.FailureCode,
			&rec.Message, &hooks, &elapsedMS, &rec.TraceHash); err != nil {
			return nil, fmt.Errorf("scan case result: %w", err)
		}
		if rec.HookErrors, err = unmarshalHookErrors(hooks); err != nil {
			return nil, err
		}
		rec.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate case results: %w", err)
	}
	return recs, nil
}

// ReadFailures returns the failed cases of a run ORDER BY seq ASC.
func (s *Store) ReadFailures(ctx context.Context, runID string) ([]CaseRecord, error) {
	all, err := s.ReadCaseResults(ctx, runID)
	if err != nil {
		return nil, err
	}
	failed := []CaseRecord{}
	for _, rec := range all {
		if rec.Status == "failed" {
			failed = append(failed, rec)
		}
	}
	return failed, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var run Run
	var started, finished int64
	err := row.Scan(&run.ID, &run.Suite, &run.Driver, &started, &finished,
		&run.Passed, &run.Failed, &run.Skipped, &run.ExitCode)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	run.StartedAt = fromMillis(started)
	run.FinishedAt = fromMillis(finished)
	return run, nil
}
