package domain

import (
	"strings"
	"time"
)

// JobState tracks where a job sits in its lifecycle.
type JobState string

const (
	JobStateQueued   JobState = "queued"
	JobStateActive   JobState = "active"
	JobStateComplete JobState = "complete"
	JobStateFailed   JobState = "failed"
)

// Terminal reports whether no further transitions are allowed.
func (s JobState) Terminal() bool {
	return s == JobStateComplete || s == JobStateFailed
}

// CanTransition reports whether moving from s to next is a legal step.
func (s JobState) CanTransition(next JobState) bool {
	switch s {
	case JobStateQueued:
		return next == JobStateActive
	case JobStateActive:
		return next == JobStateComplete || next == JobStateFailed
	default:
		return false
	}
}

// JobSpec is the producer-side description of a job before it is enqueued.
type JobSpec struct {
	Type    string
	Payload map[string]any
}

// Job is one unit of queued work. Values handed out by the queue are
// snapshots; only the queue and dispatcher move a job between states.
type Job struct {
	ID         int64     `json:"id"`
	Queue      string    `json:"queue,omitempty"`
	Type       string    `json:"type"`
	Payload    JSONMap   `json:"payload"`
	State      JobState  `json:"state"`
	Progress   int       `json:"progress"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	StartedAt  time.Time `json:"started_at,omitempty"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

// NewJob builds a queued job from a spec. The payload is copied.
func NewJob(id int64, queue string, spec JobSpec, now time.Time) *Job {
	return &Job{
		ID:        id,
		Queue:     queue,
		Type:      strings.TrimSpace(spec.Type),
		Payload:   JSONMap(spec.Payload).Clone(),
		State:     JobStateQueued,
		CreatedAt: now,
	}
}

// Snapshot returns a copy that does not share the payload map.
func (j *Job) Snapshot() Job {
	if j == nil {
		return Job{}
	}
	out := *j
	out.Payload = j.Payload.Clone()
	return out
}
