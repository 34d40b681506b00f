package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RecordMeta captures identifiers and audit fields shared across persisted records.
type RecordMeta struct {
	ID        uuid.UUID `bun:",pk,type:uuid" json:"id"`
	CreatedAt time.Time `bun:",nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt time.Time `bun:",nullzero,notnull,default:current_timestamp" json:"updated_at"`
}

// EnsureID assigns a UUID when the struct is about to be persisted.
func (m *RecordMeta) EnsureID() {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
}

// JSONMap persists arbitrary payload fields as JSON.
type JSONMap map[string]any

// Value implements driver.Valuer.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return []byte("null"), nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner.
func (m *JSONMap) Scan(value any) error {
	if m == nil {
		return errors.New("JSONMap: Scan on nil pointer")
	}
	switch v := value.(type) {
	case nil:
		*m = nil
		return nil
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return fmt.Errorf("JSONMap: unsupported type %T", value)
	}
}

// Clone returns a shallow copy so snapshots never share the backing map.
func (m JSONMap) Clone() JSONMap {
	if m == nil {
		return nil
	}
	out := make(JSONMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// String returns the value stored under key when it is a string.
func (m JSONMap) String(key string) string {
	if m == nil {
		return ""
	}
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

// JobRecord is the execution journal entry written by the dispatcher.
type JobRecord struct {
	bun.BaseModel `bun:"table:job_records"`
	RecordMeta

	JobID      int64     `bun:",notnull" json:"job_id"`
	Queue      string    `bun:",nullzero" json:"queue"`
	Type       string    `bun:",nullzero,notnull" json:"type"`
	Payload    JSONMap   `bun:"type:jsonb,nullzero" json:"payload"`
	State      JobState  `bun:",nullzero,notnull" json:"state"`
	Progress   int       `bun:",notnull,default:0" json:"progress"`
	Error      string    `bun:",nullzero" json:"error,omitempty"`
	StartedAt  time.Time `bun:",nullzero" json:"started_at,omitempty"`
	FinishedAt time.Time `bun:",nullzero" json:"finished_at,omitempty"`
}

// NewJobRecord builds a journal entry from a job snapshot.
func NewJobRecord(job Job) *JobRecord {
	return &JobRecord{
		JobID:      job.ID,
		Queue:      job.Queue,
		Type:       job.Type,
		Payload:    job.Payload.Clone(),
		State:      job.State,
		Progress:   job.Progress,
		Error:      job.Error,
		StartedAt:  job.StartedAt,
		FinishedAt: job.FinishedAt,
	}
}

// Apply copies mutable lifecycle fields from the job snapshot.
func (r *JobRecord) Apply(job Job) {
	r.State = job.State
	r.Progress = job.Progress
	r.Error = job.Error
	r.StartedAt = job.StartedAt
	r.FinishedAt = job.FinishedAt
}
