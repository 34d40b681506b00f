package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/goliatone/go-jobqueue/pkg/domain"
	"github.com/goliatone/go-jobqueue/pkg/interfaces/store"
	"github.com/google/uuid"
)

func TestJobRepositoryMemory(t *testing.T) {
	repo := NewJobRepository()
	ctx := context.Background()

	rec := &domain.JobRecord{
		JobID:   1,
		Queue:   "push",
		Type:    "push_notification_code_3",
		Payload: domain.JSONMap{"phoneNumber": "4153518743"},
	}
	if err := repo.Create(ctx, rec); err != nil {
		t.Fatalf("create: %v", err)
	}
	if rec.ID == uuid.Nil || rec.CreatedAt.IsZero() {
		t.Fatalf("expected id and timestamps to be assigned")
	}
	if rec.State != domain.JobStateActive {
		t.Fatalf("expected default active state, got %s", rec.State)
	}

	rec.State = domain.JobStateComplete
	rec.Progress = 100
	if err := repo.Update(ctx, rec); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := repo.GetByJob(ctx, "push", 1)
	if err != nil {
		t.Fatalf("get by job: %v", err)
	}
	if got.State != domain.JobStateComplete || got.Progress != 100 {
		t.Fatalf("unexpected record %+v", got)
	}

	byID, err := repo.GetByID(ctx, rec.ID)
	if err != nil || byID.JobID != 1 {
		t.Fatalf("get by id: %v", err)
	}

	if _, err := repo.GetByJob(ctx, "other", 1); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := repo.Update(ctx, &domain.JobRecord{}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on unknown update, got %v", err)
	}
}

func TestJobRepositoryListByState(t *testing.T) {
	repo := NewJobRepository()
	ctx := context.Background()

	states := []domain.JobState{domain.JobStateComplete, domain.JobStateFailed, domain.JobStateComplete}
	for i, state := range states {
		if err := repo.Create(ctx, &domain.JobRecord{JobID: int64(i + 1), Queue: "push", Type: "t", State: state}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	complete, err := repo.ListByState(ctx, domain.JobStateComplete, store.ListOptions{})
	if err != nil {
		t.Fatalf("list by state: %v", err)
	}
	if complete.Total != 2 {
		t.Fatalf("expected 2 complete records, got %d", complete.Total)
	}

	page, err := repo.List(ctx, store.ListOptions{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 3 || len(page.Items) != 1 {
		t.Fatalf("unexpected page total=%d items=%d", page.Total, len(page.Items))
	}
}
