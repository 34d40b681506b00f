package dispatcher

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-jobqueue/pkg/config"
	"github.com/goliatone/go-jobqueue/pkg/domain"
	"github.com/goliatone/go-jobqueue/pkg/interfaces/broadcaster"
	"github.com/goliatone/go-jobqueue/pkg/interfaces/store"
	"github.com/goliatone/go-jobqueue/pkg/queue"
	"github.com/goliatone/go-jobqueue/pkg/workers"
	"github.com/google/uuid"
)

const testType = "push_notification_code_3"

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []broadcaster.Event
	ch     chan broadcaster.Event
}

func newRecordingBroadcaster() *recordingBroadcaster {
	return &recordingBroadcaster{ch: make(chan broadcaster.Event, 256)}
}

func (b *recordingBroadcaster) Broadcast(ctx context.Context, evt broadcaster.Event) error {
	b.mu.Lock()
	b.events = append(b.events, evt)
	b.mu.Unlock()
	b.ch <- evt
	return nil
}

func (b *recordingBroadcaster) topics(jobID int64) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for _, evt := range b.events {
		if job, ok := evt.Payload.(domain.Job); ok && job.ID == jobID {
			out = append(out, evt.Topic)
		}
	}
	return out
}

// waitTerminal blocks until n complete/failed events were observed.
func (b *recordingBroadcaster) waitTerminal(t *testing.T, n int) []domain.Job {
	t.Helper()
	var out []domain.Job
	timeout := time.After(2 * time.Second)
	for len(out) < n {
		select {
		case evt := <-b.ch:
			if evt.Topic == broadcaster.TopicJobComplete || evt.Topic == broadcaster.TopicJobFailed {
				out = append(out, evt.Payload.(domain.Job))
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %d terminal events, got %d", n, len(out))
		}
	}
	return out
}

type journalStub struct {
	mu      sync.Mutex
	records map[uuid.UUID]domain.JobRecord
	updates int
}

func newJournalStub() *journalStub {
	return &journalStub{records: make(map[uuid.UUID]domain.JobRecord)}
}

func (s *journalStub) Create(ctx context.Context, record *domain.JobRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record.EnsureID()
	s.records[record.ID] = *record
	return nil
}

func (s *journalStub) Update(ctx context.Context, record *domain.JobRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[record.ID]; !ok {
		return store.ErrNotFound
	}
	s.records[record.ID] = *record
	s.updates++
	return nil
}

func (s *journalStub) GetByID(ctx context.Context, id uuid.UUID) (*domain.JobRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &rec, nil
}

func (s *journalStub) List(ctx context.Context, opts store.ListOptions) (store.ListResult[domain.JobRecord], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var items []domain.JobRecord
	for _, rec := range s.records {
		items = append(items, rec)
	}
	return store.ListResult[domain.JobRecord]{Items: items, Total: len(items)}, nil
}

func (s *journalStub) GetByJob(ctx context.Context, queueName string, jobID int64) (*domain.JobRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.records {
		if rec.Queue == queueName && rec.JobID == jobID {
			return &rec, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *journalStub) ListByState(ctx context.Context, state domain.JobState, opts store.ListOptions) (store.ListResult[domain.JobRecord], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var items []domain.JobRecord
	for _, rec := range s.records {
		if rec.State == state {
			items = append(items, rec)
		}
	}
	return store.ListResult[domain.JobRecord]{Items: items, Total: len(items)}, nil
}

func newService(t *testing.T, q *queue.Queue, reg *workers.Registry, b broadcaster.Broadcaster, workersN int) *Service {
	t.Helper()
	svc, err := New(Dependencies{
		Queue:       q,
		Registry:    reg,
		Broadcaster: b,
		Config:      config.DispatcherConfig{MaxWorkers: workersN},
	})
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}
	return svc
}

func start(t *testing.T, svc *Service) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-errCh:
		case <-time.After(2 * time.Second):
			t.Errorf("dispatcher did not stop")
		}
	})
}

func enqueue(t *testing.T, q *queue.Queue, typ string) domain.Job {
	t.Helper()
	job, err := q.Enqueue(context.Background(), domain.JobSpec{Type: typ, Payload: map[string]any{"phoneNumber": "+15555550100"}})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	return job
}

func TestNewRequiresQueueAndRegistry(t *testing.T) {
	if _, err := New(Dependencies{Registry: workers.NewRegistry()}); !errors.Is(err, ErrMissingQueue) {
		t.Fatalf("expected ErrMissingQueue, got %v", err)
	}
	if _, err := New(Dependencies{Queue: queue.New()}); !errors.Is(err, ErrMissingRegistry) {
		t.Fatalf("expected ErrMissingRegistry, got %v", err)
	}
}

func TestRunCompletesJobsAndReportsProgress(t *testing.T) {
	q := queue.New()
	reg := workers.NewRegistry()
	_ = reg.RegisterFunc(testType, func(ctx context.Context, job domain.Job, progress workers.Progress) error {
		progress(0)
		progress(50)
		progress(100)
		return nil
	})
	b := newRecordingBroadcaster()
	svc := newService(t, q, reg, b, 1)
	start(t, svc)

	first := enqueue(t, q, testType)
	second := enqueue(t, q, testType)

	done := b.waitTerminal(t, 2)
	if done[0].ID != first.ID || done[1].ID != second.ID {
		t.Fatalf("expected FIFO completion, got %d then %d", done[0].ID, done[1].ID)
	}
	for _, job := range done {
		if job.State != domain.JobStateComplete || job.Progress != 100 {
			t.Fatalf("expected complete at 100%%, got %s at %d", job.State, job.Progress)
		}
	}

	topics := b.topics(first.ID)
	want := []string{
		broadcaster.TopicJobActive,
		broadcaster.TopicJobProgress,
		broadcaster.TopicJobProgress,
		broadcaster.TopicJobProgress,
		broadcaster.TopicJobComplete,
	}
	if strings.Join(topics, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected lifecycle %v", topics)
	}
}

func TestRunFailsUnregisteredTypeAndContinues(t *testing.T) {
	q := queue.New()
	reg := workers.NewRegistry()
	_ = reg.RegisterFunc(testType, func(ctx context.Context, job domain.Job, progress workers.Progress) error {
		return nil
	})
	b := newRecordingBroadcaster()
	start(t, newService(t, q, reg, b, 1))

	orphan := enqueue(t, q, "unknown_type")
	ok := enqueue(t, q, testType)

	done := b.waitTerminal(t, 2)
	if done[0].ID != orphan.ID || done[0].State != domain.JobStateFailed {
		t.Fatalf("expected orphan to fail, got %+v", done[0])
	}
	if !strings.Contains(done[0].Error, "unknown_type") {
		t.Fatalf("expected error to name the type, got %q", done[0].Error)
	}
	if done[1].ID != ok.ID || done[1].State != domain.JobStateComplete {
		t.Fatalf("expected registered job to complete, got %+v", done[1])
	}
}

func TestRunRecordsHandlerErrorsAndPanics(t *testing.T) {
	q := queue.New()
	reg := workers.NewRegistry()
	_ = reg.RegisterFunc("fails", func(ctx context.Context, job domain.Job, progress workers.Progress) error {
		return errors.New("push: phone number is blacklisted: +1*******00")
	})
	_ = reg.RegisterFunc("panics", func(ctx context.Context, job domain.Job, progress workers.Progress) error {
		panic("boom")
	})
	_ = reg.RegisterFunc(testType, func(ctx context.Context, job domain.Job, progress workers.Progress) error {
		return nil
	})
	b := newRecordingBroadcaster()
	start(t, newService(t, q, reg, b, 1))

	enqueue(t, q, "fails")
	enqueue(t, q, "panics")
	enqueue(t, q, testType)

	done := b.waitTerminal(t, 3)
	if done[0].State != domain.JobStateFailed || !strings.Contains(done[0].Error, "is blacklisted") {
		t.Fatalf("expected handler error recorded, got %+v", done[0])
	}
	if done[1].State != domain.JobStateFailed || !strings.Contains(done[1].Error, "panic: boom") {
		t.Fatalf("expected panic recorded, got %+v", done[1])
	}
	if done[2].State != domain.JobStateComplete {
		t.Fatalf("expected dispatcher to keep going, got %+v", done[2])
	}
}

func TestRunWaitsWhileArmedAndResumesOnExit(t *testing.T) {
	q := queue.New()
	reg := workers.NewRegistry()
	_ = reg.RegisterFunc(testType, func(ctx context.Context, job domain.Job, progress workers.Progress) error {
		return nil
	})
	mode := q.TestMode()
	if err := mode.Enter(); err != nil {
		t.Fatalf("enter: %v", err)
	}
	b := newRecordingBroadcaster()
	svc := newService(t, q, reg, b, 1)
	start(t, svc)

	captured := enqueue(t, q, testType)
	select {
	case evt := <-b.ch:
		t.Fatalf("no job may run while armed, got %s", evt.Topic)
	case <-time.After(100 * time.Millisecond):
	}
	if !svc.Running() {
		t.Fatalf("expected dispatcher to keep running while armed")
	}

	mode.Exit()
	mode.Clear()
	job := enqueue(t, q, testType)

	done := b.waitTerminal(t, 1)
	if done[0].ID != job.ID || done[0].State != domain.JobStateComplete {
		t.Fatalf("expected job enqueued after exit to complete, got %+v", done[0])
	}
	if got, ok := q.Get(captured.ID); ok {
		t.Fatalf("captured job must never reach the queue, got %+v", got)
	}
}

func TestEnterWhileRunningPausesDispatch(t *testing.T) {
	q := queue.New()
	reg := workers.NewRegistry()
	_ = reg.RegisterFunc(testType, func(ctx context.Context, job domain.Job, progress workers.Progress) error {
		return nil
	})
	b := newRecordingBroadcaster()
	svc := newService(t, q, reg, b, 2)
	start(t, svc)

	first := enqueue(t, q, testType)
	if done := b.waitTerminal(t, 1); done[0].ID != first.ID {
		t.Fatalf("expected first job to complete, got %+v", done[0])
	}

	mode := q.TestMode()
	if err := mode.Enter(); err != nil {
		t.Fatalf("enter: %v", err)
	}
	enqueue(t, q, testType)
	if mode.Len() != 1 || q.PendingCount() != 0 {
		t.Fatalf("expected job captured, captured=%d pending=%d", mode.Len(), q.PendingCount())
	}

	mode.Exit()
	mode.Clear()
	last := enqueue(t, q, testType)
	done := b.waitTerminal(t, 1)
	if done[0].ID != last.ID || done[0].State != domain.JobStateComplete {
		t.Fatalf("expected dispatch to resume after exit, got %+v", done[0])
	}
}

func TestRunDisabled(t *testing.T) {
	q := queue.New()
	svc, err := New(Dependencies{
		Queue:    q,
		Registry: workers.NewRegistry(),
		Config:   config.DispatcherConfig{Disabled: true},
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := svc.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
}

func TestRunRejectsSecondRun(t *testing.T) {
	q := queue.New()
	svc := newService(t, q, workers.NewRegistry(), nil, 1)
	start(t, svc)

	deadline := time.Now().Add(time.Second)
	for !svc.Running() {
		if time.Now().After(deadline) {
			t.Fatalf("dispatcher never started")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if err := svc.Run(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
}

func TestShutdownWaitsForInFlightHandler(t *testing.T) {
	q := queue.New()
	reg := workers.NewRegistry()
	started := make(chan struct{})
	release := make(chan struct{})
	var handlerCtxErr error
	_ = reg.RegisterFunc(testType, func(ctx context.Context, job domain.Job, progress workers.Progress) error {
		close(started)
		<-release
		handlerCtxErr = ctx.Err()
		return nil
	})
	svc := newService(t, q, reg, nil, 1)
	start(t, svc)

	job := enqueue(t, q, testType)
	<-started

	shutdownErr := make(chan error, 1)
	go func() { shutdownErr <- svc.Shutdown(context.Background()) }()

	select {
	case err := <-shutdownErr:
		t.Fatalf("shutdown returned before handler finished: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case err := <-shutdownErr:
		if err != nil {
			t.Fatalf("shutdown: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("shutdown did not return")
	}
	if handlerCtxErr != nil {
		t.Fatalf("handler context should survive shutdown, got %v", handlerCtxErr)
	}
	got, _ := q.Get(job.ID)
	if got.State != domain.JobStateComplete {
		t.Fatalf("expected in-flight job to complete, got %s", got.State)
	}

	after := enqueue(t, q, testType)
	time.Sleep(20 * time.Millisecond)
	if got, _ := q.Get(after.ID); got.State != domain.JobStateQueued {
		t.Fatalf("expected job enqueued after shutdown to stay queued, got %s", got.State)
	}
}

func TestShutdownHonoursDeadline(t *testing.T) {
	q := queue.New()
	reg := workers.NewRegistry()
	started := make(chan struct{})
	release := make(chan struct{})
	_ = reg.RegisterFunc(testType, func(ctx context.Context, job domain.Job, progress workers.Progress) error {
		close(started)
		<-release
		return nil
	})
	svc := newService(t, q, reg, nil, 1)
	start(t, svc)
	defer close(release)

	enqueue(t, q, testType)
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := svc.Shutdown(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestShutdownWhenIdle(t *testing.T) {
	svc := newService(t, queue.New(), workers.NewRegistry(), nil, 1)
	if err := svc.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestMultipleWorkersRunConcurrently(t *testing.T) {
	q := queue.New()
	reg := workers.NewRegistry()
	release := make(chan struct{})
	_ = reg.RegisterFunc("slow", func(ctx context.Context, job domain.Job, progress workers.Progress) error {
		<-release
		return nil
	})
	_ = reg.RegisterFunc(testType, func(ctx context.Context, job domain.Job, progress workers.Progress) error {
		return nil
	})
	b := newRecordingBroadcaster()
	start(t, newService(t, q, reg, b, 2))
	defer close(release)

	enqueue(t, q, "slow")
	fast := enqueue(t, q, testType)

	done := b.waitTerminal(t, 1)
	if done[0].ID != fast.ID {
		t.Fatalf("expected fast job to finish while slow one runs, got %d", done[0].ID)
	}
}

func TestProcessOneAndDrain(t *testing.T) {
	q := queue.New()
	reg := workers.NewRegistry()
	var calls int
	_ = reg.RegisterFunc(testType, func(ctx context.Context, job domain.Job, progress workers.Progress) error {
		calls++
		return nil
	})
	svc := newService(t, q, reg, nil, 1)

	ok, err := svc.ProcessOne(context.Background())
	if err != nil || ok {
		t.Fatalf("expected empty queue, got ok=%v err=%v", ok, err)
	}

	for range 3 {
		enqueue(t, q, testType)
	}
	n, err := svc.Drain(context.Background())
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if n != 3 || calls != 3 {
		t.Fatalf("expected 3 processed, got n=%d calls=%d", n, calls)
	}
	if q.PendingCount() != 0 {
		t.Fatalf("expected queue drained")
	}
}

func TestProcessOneWhileArmed(t *testing.T) {
	q := queue.New()
	_ = q.TestMode().Enter()
	svc := newService(t, q, workers.NewRegistry(), nil, 1)
	if _, err := svc.ProcessOne(context.Background()); !errors.Is(err, queue.ErrTestModeArmed) {
		t.Fatalf("expected ErrTestModeArmed, got %v", err)
	}
}

func TestJournalTracksTerminalState(t *testing.T) {
	q := queue.New(queue.WithName("push"))
	reg := workers.NewRegistry()
	_ = reg.RegisterFunc(testType, func(ctx context.Context, job domain.Job, progress workers.Progress) error {
		return nil
	})
	_ = reg.RegisterFunc("fails", func(ctx context.Context, job domain.Job, progress workers.Progress) error {
		return errors.New("gateway down")
	})
	journal := newJournalStub()
	svc, err := New(Dependencies{Queue: q, Registry: reg, Jobs: journal})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	okJob := enqueue(t, q, testType)
	badJob := enqueue(t, q, "fails")
	if _, err := svc.Drain(context.Background()); err != nil {
		t.Fatalf("drain: %v", err)
	}

	rec, err := journal.GetByJob(context.Background(), "push", okJob.ID)
	if err != nil {
		t.Fatalf("journal lookup: %v", err)
	}
	if rec.State != domain.JobStateComplete || rec.Progress != 100 {
		t.Fatalf("unexpected journal entry %+v", rec)
	}
	rec, err = journal.GetByJob(context.Background(), "push", badJob.ID)
	if err != nil {
		t.Fatalf("journal lookup: %v", err)
	}
	if rec.State != domain.JobStateFailed || !strings.Contains(rec.Error, "gateway down") {
		t.Fatalf("unexpected failed journal entry %+v", rec)
	}
	if journal.updates != 2 {
		t.Fatalf("expected 2 journal updates, got %d", journal.updates)
	}
}
