// Package state records aggregation run history in SQLite.
// Graphs and positions are never stored, only run summaries.
package state

import "time"

// RunStatus is the lifecycle state of a run.
type RunStatus string

// Run statuses.
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Run is one aggregation of a source.
type Run struct {
	ID             string     `json:"id"`
	Source         string     `json:"source"`
	Status         RunStatus  `json:"status"`
	StartedAt      time.Time  `json:"started_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	FileCount      int        `json:"file_count"`
	FailedCount    int        `json:"failed_count"`
	NodeCount      int        `json:"node_count"`
	EdgeCount      int        `json:"edge_count"`
	RecordsSeen    int        `json:"records_seen"`
	RecordsSkipped int        `json:"records_skipped"`
	Error          string     `json:"error,omitempty"`
}

// Duration returns the run time, or zero while running.
func (r *Run) Duration() time.Duration {
	if r.CompletedAt == nil {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

// Summary is the outcome recorded when a run completes.
type Summary struct {
	FileCount      int
	FailedCount    int
	NodeCount      int
	EdgeCount      int
	RecordsSeen    int
	RecordsSkipped int
}

// Store is the run history contract.
type Store interface {
	CreateRun(source string) (*Run, error)
	CompleteRun(id string, status RunStatus, summary Summary, errMsg string) error
	GetRun(id string) (*Run, error)
	GetLatestRun(source string) (*Run, error)
	ListRuns(limit int) ([]*Run, error)
	Close() error
}
