package bunrepo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/goliatone/go-jobqueue/pkg/domain"
	"github.com/goliatone/go-jobqueue/pkg/interfaces/store"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func setupSQLiteDB(t *testing.T) *bun.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	sqldb, err := sql.Open(sqliteshim.DriverName(), fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	if err != nil {
		t.Fatalf("sql open: %v", err)
	}
	sqldb.SetMaxOpenConns(1)
	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	models := []any{
		(*domain.JobRecord)(nil),
	}
	for _, model := range models {
		_, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx)
		if err != nil {
			t.Fatalf("create table: %v", err)
		}
	}
	return db
}

func TestJobRepositoryBun(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewJobRepository(db)
	ctx := context.Background()

	rec := &domain.JobRecord{
		JobID:   1,
		Queue:   "push",
		Type:    "push_notification_code_3",
		Payload: domain.JSONMap{"phoneNumber": "4153518743", "message": "This is the code 1234 to verify your account"},
	}
	if err := repo.Create(ctx, rec); err != nil {
		t.Fatalf("create: %v", err)
	}

	rec.State = domain.JobStateFailed
	rec.Error = "push: phone number is blacklisted: 41******43"
	if err := repo.Update(ctx, rec); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := repo.GetByJob(ctx, "push", 1)
	if err != nil {
		t.Fatalf("get by job: %v", err)
	}
	if got.State != domain.JobStateFailed || got.Error != rec.Error {
		t.Fatalf("unexpected record %+v", got)
	}
	if got.Payload.String("phoneNumber") != "4153518743" {
		t.Fatalf("expected payload round trip, got %v", got.Payload)
	}

	byID, err := repo.GetByID(ctx, rec.ID)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if byID.JobID != 1 {
		t.Fatalf("unexpected job id %d", byID.JobID)
	}

	if _, err := repo.GetByJob(ctx, "push", 99); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestJobRepositoryBunListByState(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewJobRepository(db)
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
	if complete.Total != 2 || len(complete.Items) != 2 {
		t.Fatalf("expected 2 complete records, got total=%d items=%d", complete.Total, len(complete.Items))
	}

	list, err := repo.List(ctx, store.ListOptions{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if list.Total != 3 {
		t.Fatalf("expected total 3, got %d", list.Total)
	}
}
