package amqp

import (
	"time"

	"github.com/aretw0/langrun/pkg/domain"
	"github.com/aretw0/langrun/pkg/runner"
)

// Result statuses.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// RunJob asks the worker to run a flow.
type RunJob struct {
	ID        string         `json:"id"`
	Request   runner.Request `json:"request"`
	CreatedAt time.Time      `json:"created_at"`
}

// RunResult is published once per job.
type RunResult struct {
	JobID      string              `json:"job_id"`
	Status     string              `json:"status"`
	Text       string              `json:"text,omitempty"`
	Response   *domain.RunResponse `json:"response,omitempty"`
	Error      string              `json:"error,omitempty"`
	FinishedAt time.Time           `json:"finished_at"`
}
