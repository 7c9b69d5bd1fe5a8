package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/michaelbrown/runbox/internal/storage"
)

func testStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("opening memory db: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndGetRun(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	start := time.Now().Add(-2 * time.Second).UTC()
	run := &storage.Run{
		ID:         "abc12345-0000-0000-0000-000000000000",
		Language:   "python",
		Reason:     storage.ReasonCompleted,
		ExitCode:   0,
		Output:     "John\n25",
		Error:      "",
		StartedAt:  start,
		FinishedAt: start.Add(time.Second),
	}

	if err := s.RecordRun(ctx, run); err != nil {
		t.Fatalf("RecordRun: %v", err)
	}

	got, err := s.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}

	if got.Language != "python" {
		t.Errorf("language = %q, want python", got.Language)
	}
	if got.Reason != storage.ReasonCompleted {
		t.Errorf("reason = %q, want %q", got.Reason, storage.ReasonCompleted)
	}
	if got.Output != "John\n25" {
		t.Errorf("output = %q", got.Output)
	}
	if got.Duration() != time.Second {
		t.Errorf("duration = %v, want 1s", got.Duration())
	}
}

func TestRecordRunDefaultsTimes(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	run := &storage.Run{ID: "notime", Reason: storage.ReasonReaped}
	if err := s.RecordRun(ctx, run); err != nil {
		t.Fatalf("RecordRun: %v", err)
	}
	got, err := s.GetRun(ctx, "notime")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.FinishedAt.IsZero() || got.StartedAt.IsZero() {
		t.Errorf("times should be defaulted, got %v / %v", got.StartedAt, got.FinishedAt)
	}
}

func TestRecordRunRejectsUnknownReason(t *testing.T) {
	s := testStore(t)
	err := s.RecordRun(context.Background(), &storage.Run{ID: "x", Reason: "exploded"})
	if err == nil {
		t.Fatal("expected CHECK constraint failure")
	}
}

func TestGetRunByPrefix(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	run := &storage.Run{ID: "abc12345-0000-0000-0000-000000000000", Reason: storage.ReasonCompleted}
	if err := s.RecordRun(ctx, run); err != nil {
		t.Fatalf("RecordRun: %v", err)
	}

	got, err := s.GetRun(ctx, "abc12345")
	if err != nil {
		t.Fatalf("GetRun by prefix: %v", err)
	}
	if got.ID != run.ID {
		t.Errorf("got ID %q, want %q", got.ID, run.ID)
	}
}

func TestGetRunAmbiguousPrefix(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	for _, id := range []string{
		"abc00000-0000-0000-0000-000000000000",
		"abc11111-0000-0000-0000-000000000000",
	} {
		if err := s.RecordRun(ctx, &storage.Run{ID: id, Reason: storage.ReasonCompleted}); err != nil {
			t.Fatalf("RecordRun: %v", err)
		}
	}

	if _, err := s.GetRun(ctx, "abc"); err == nil {
		t.Fatal("expected error for ambiguous prefix")
	}
	if _, err := s.GetRun(ctx, "zzz"); err == nil {
		t.Fatal("expected error for missing run")
	}
}

func TestListRunsOrderAndFilter(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	runs := []storage.Run{
		{ID: "r1", Reason: storage.ReasonCompleted, FinishedAt: base},
		{ID: "r2", Reason: storage.ReasonTerminated, FinishedAt: base.Add(time.Minute)},
		{ID: "r3", Reason: storage.ReasonCompleted, FinishedAt: base.Add(500 * time.Millisecond)},
	}
	for i := range runs {
		if err := s.RecordRun(ctx, &runs[i]); err != nil {
			t.Fatalf("RecordRun: %v", err)
		}
	}

	all, err := s.ListRuns(ctx, storage.RunListOptions{})
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d runs, want 3", len(all))
	}
	if all[0].ID != "r2" || all[1].ID != "r3" || all[2].ID != "r1" {
		t.Errorf("order = %s,%s,%s; want r2,r3,r1", all[0].ID, all[1].ID, all[2].ID)
	}

	completed, err := s.ListRuns(ctx, storage.RunListOptions{Reason: storage.ReasonCompleted})
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(completed) != 2 {
		t.Errorf("got %d completed runs, want 2", len(completed))
	}

	page, err := s.ListRuns(ctx, storage.RunListOptions{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(page) != 1 || page[0].ID != "r3" {
		t.Errorf("page = %+v, want [r3]", page)
	}
}

func TestDeleteRun(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.RecordRun(ctx, &storage.Run{ID: "del1", Reason: storage.ReasonCompleted}); err != nil {
		t.Fatalf("RecordRun: %v", err)
	}
	if err := s.DeleteRun(ctx, "del1"); err != nil {
		t.Fatalf("DeleteRun: %v", err)
	}
	if _, err := s.GetRun(ctx, "del1"); err == nil {
		t.Fatal("expected error after delete")
	}
	if err := s.DeleteRun(ctx, "del1"); err == nil {
		t.Fatal("deleting a missing run should fail")
	}
}

func TestOpenFileCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "runbox.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if err := s.RecordRun(context.Background(), &storage.Run{ID: "f1", Reason: storage.ReasonCompleted}); err != nil {
		t.Fatalf("RecordRun: %v", err)
	}

	// Reopening must not re-run the schema or lose data.
	s.Close()
	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	if _, err := s2.GetRun(context.Background(), "f1"); err != nil {
		t.Fatalf("GetRun after reopen: %v", err)
	}
}
