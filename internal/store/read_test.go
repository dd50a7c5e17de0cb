package store

import (
	"context"
	"errors"
	"testing"
)

func TestListRuns_NewestFirst(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	createTestRun(t, s, "run-b", 2000)
	createTestRun(t, s, "run-c", 3000)
	createTestRun(t, s, "run-a", 2000)

	runs, err := s.ListRuns(ctx, 0)
	if err != nil {
		t.Fatalf("ListRuns() failed: %v", err)
	}
	var ids []string
	for _, r := range runs {
		ids = append(ids, r.ID)
	}
	want := []string{"run-c", "run-a", "run-b"}
	if len(ids) != len(want) {
		t.Fatalf("ids = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("ids = %v, want %v", ids, want)
			break
		}
	}

	limited, err := s.ListRuns(ctx, 1)
	if err != nil {
		t.Fatalf("ListRuns(1) failed: %v", err)
	}
	if len(limited) != 1 || limited[0].ID != "run-c" {
		t.Errorf("ListRuns(1) = %v", limited)
	}
}

func TestListRuns_EmptyIsNotNil(t *testing.T) {
	s := createTestStore(t)

	runs, err := s.ListRuns(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListRuns() failed: %v", err)
	}
	if runs == nil || len(runs) != 0 {
		t.Errorf("ListRuns() = %#v, want empty slice", runs)
	}
}

func TestGetRun_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.GetRun(context.Background(), "nope")
	if !errors.Is(err, ErrRunNotFound) {
		t.Errorf("GetRun() error = %v, want ErrRunNotFound", err)
	}
}

func TestReadCaseResults_OrderedBySeq(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestRun(t, s, "run-1", 1000)

	for _, seq := range []int64{3, 1, 2} {
		rec := CaseRecord{RunID: "run-1", Seq: seq, FullName: "case", Status: "passed"}
		if seq == 2 {
			rec.Status = "failed"
			rec.FailureCode = "TIMEOUT"
		}
		if err := s.WriteCaseResult(ctx, rec); err != nil {
			t.Fatalf("WriteCaseResult(%d) failed: %v", seq, err)
		}
	}

	recs, err := s.ReadCaseResults(ctx, "run-1")
	if err != nil {
		t.Fatalf("ReadCaseResults() failed: %v", err)
	}
	for i, rec := range recs {
		if rec.Seq != int64(i+1) {
			t.Errorf("recs[%d].Seq = %d", i, rec.Seq)
		}
	}

	failed, err := s.ReadFailures(ctx, "run-1")
	if err != nil {
		t.Fatalf("ReadFailures() failed: %v", err)
	}
	if len(failed) != 1 || failed[0].Seq != 2 {
		t.Errorf("ReadFailures() = %+v", failed)
	}

	none, err := s.ReadCaseResults(ctx, "other")
	if err != nil {
		t.Fatalf("ReadCaseResults(other) failed: %v", err)
	}
	if none == nil || len(none) != 0 {
		t.Errorf("ReadCaseResults(other) = %#v, want empty slice", none)
	}
}
