package model

import "time"

// RunStatus represents the state of a logged engine run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// RunKind distinguishes the two engine flows in the run log.
type RunKind string

const (
	RunKindAggregate RunKind = "aggregate"
	RunKindSweep     RunKind = "quality_sweep"
)

// Run is a row of run_log.
type Run struct {
	ID          string         `json:"id"`
	Kind        RunKind        `json:"kind"`
	Target      string         `json:"target"`
	Status      RunStatus      `json:"status"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	Stats       map[string]any `json:"stats,omitempty"`
	Error       string         `json:"error,omitempty"`
}
