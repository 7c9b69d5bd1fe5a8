package storage

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestExportMarkdown(t *testing.T) {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	r := &Run{
		ID:         "run-1",
		Language:   "python",
		Reason:     ReasonCompleted,
		Output:     "Hello, World!",
		StartedAt:  start,
		FinishedAt: start.Add(1500 * time.Millisecond),
	}

	md := ExportMarkdown(r)
	for _, want := range []string{"# Run run-1", "**Language:** python", "Hello, World!", "1.5s"} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q:\n%s", want, md)
		}
	}
	if strings.Contains(md, "## Error") {
		t.Error("empty error section should be omitted")
	}
}

func TestExportJSON(t *testing.T) {
	r := &Run{ID: "run-2", Reason: ReasonTerminated, ExitCode: -1}
	data, err := ExportJSON(r)
	if err != nil {
		t.Fatalf("ExportJSON: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if got["reason"] != "terminated" {
		t.Errorf("reason = %v", got["reason"])
	}
}
