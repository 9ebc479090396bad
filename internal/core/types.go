package core

import "time"

// JobType distinguishes deferred background work from quick inline requests.
type JobType string

const (
	JobTypeTask  JobType = "task"
	JobTypeQuick JobType = "quick"
)

// JobStatus is the lifecycle state of a job.
// pending -> running -> completed | failed. Terminal states never revert;
// retrying a failed job creates a new pending job instead.
type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
)

// IsTerminal reports whether s is a final state.
func (s JobStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Job is one unit of deferred work.
type Job struct {
	ID           string    `json:"id"`
	Type         JobType   `json:"type"`
	Status       JobStatus `json:"status"`
	Input        string    `json:"input"`
	Output       *string   `json:"output,omitempty"` // nil until completed or failed
	ChatID       string    `json:"chat_id"`
	ScheduleID   *int64    `json:"schedule_id,omitempty"` // set when spawned by a schedule
	SkillContext string    `json:"skill_context,omitempty"`
	Delivered    bool      `json:"delivered"`
	RetryCount   int       `json:"retry_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
