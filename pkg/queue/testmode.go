package queue

import "github.com/goliatone/go-jobqueue/pkg/domain"

// TestMode captures enqueued jobs for inspection instead of releasing them
// to consumers. It is bound to a single Queue, so queues in different modes
// do not interfere. Entering is non-reentrant.
type TestMode struct {
	q *Queue
}

// Enter arms test mode. It fails with ErrTestModeActive when already armed.
func (m *TestMode) Enter() error {
	m.q.mu.Lock()
	if m.q.armed {
		m.q.mu.Unlock()
		return ErrTestModeActive
	}
	m.q.armed = true
	m.q.mu.Unlock()
	m.q.logger.Debug("test mode entered", "queue", m.q.name)
	return nil
}

// Exit disarms test mode and wakes blocked consumers. Captured jobs stay in
// the buffer until Clear.
func (m *TestMode) Exit() {
	m.q.mu.Lock()
	if !m.q.armed {
		m.q.mu.Unlock()
		return
	}
	m.q.armed = false
	m.q.signalLocked()
	m.q.mu.Unlock()
	m.q.logger.Debug("test mode exited", "queue", m.q.name)
}

// Clear empties the capture buffer. It has no effect on pending or active jobs.
func (m *TestMode) Clear() {
	m.q.mu.Lock()
	defer m.q.mu.Unlock()
	for i := range m.q.captured {
		m.q.captured[i] = nil
	}
	m.q.captured = nil
}

// Armed reports whether test mode is active.
func (m *TestMode) Armed() bool {
	m.q.mu.Lock()
	defer m.q.mu.Unlock()
	return m.q.armed
}

// Jobs returns the captured jobs in enqueue order.
func (m *TestMode) Jobs() []domain.Job {
	m.q.mu.Lock()
	defer m.q.mu.Unlock()
	out := make([]domain.Job, len(m.q.captured))
	for i, job := range m.q.captured {
		out[i] = job.Snapshot()
	}
	return out
}

// Len returns the number of captured jobs.
func (m *TestMode) Len() int {
	m.q.mu.Lock()
	defer m.q.mu.Unlock()
	return len(m.q.captured)
}
