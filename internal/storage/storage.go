package storage

import (
	"context"
	"time"
)

// Reason records how a run's session was finalized.
type Reason string

const (
	ReasonCompleted  Reason = "completed"
	ReasonTerminated Reason = "terminated"
	ReasonReaped     Reason = "reaped"
)

// Run is the history record of one finished execution.
type Run struct {
	ID         string    `json:"id"`
	Language   string    `json:"language"`
	Reason     Reason    `json:"reason"`
	ExitCode   int       `json:"exit_code"`
	Output     string    `json:"output"`
	Error      string    `json:"error"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Duration is how long the run's process was alive.
func (r *Run) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// RunListOptions controls filtering and pagination for ListRuns.
type RunListOptions struct {
	Reason Reason
	Limit  int
	Offset int
}

// Store is the persistence interface for run history.
type Store interface {
	// RecordRun inserts a finished run. The ID field must be set by the caller.
	RecordRun(ctx context.Context, r *Run) error

	// GetRun returns a run by ID or unique ID prefix.
	GetRun(ctx context.Context, id string) (*Run, error)

	// ListRuns returns runs ordered by finished_at descending.
	ListRuns(ctx context.Context, opts RunListOptions) ([]Run, error)

	// DeleteRun removes a run.
	DeleteRun(ctx context.Context, id string) error

	// Close releases resources.
	Close() error
}
