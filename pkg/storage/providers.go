package storage

import (
	"context"
	"database/sql"
	"fmt"

	bunrepo "github.com/goliatone/go-jobqueue/internal/storage/bun"
	"github.com/goliatone/go-jobqueue/internal/storage/memory"
	"github.com/goliatone/go-jobqueue/pkg/config"
	"github.com/goliatone/go-jobqueue/pkg/domain"
	"github.com/goliatone/go-jobqueue/pkg/interfaces/store"
	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// Providers exposes the repositories used by the dispatcher.
type Providers struct {
	Jobs store.JobRepository

	closeFn func() error
}

// Close releases resources opened by Open. It is safe on any Providers.
func (p Providers) Close() error {
	if p.closeFn == nil {
		return nil
	}
	return p.closeFn()
}

// NewMemoryProviders returns repositories backed by in-memory maps.
func NewMemoryProviders() Providers {
	return Providers{
		Jobs: memory.NewJobRepository(),
	}
}

// NewBunProviders wires Bun-backed repositories using go-repository-bun.
// The caller owns the *bun.DB lifecycle and schema; go-persistence-bun
// migrations pick up the registered models.
func NewBunProviders(db *bun.DB) Providers {
	if db == nil {
		panic("storage: bun DB is required")
	}
	persistence.RegisterModel(
		(*domain.JobRecord)(nil),
	)
	return Providers{
		Jobs: bunrepo.NewJobRepository(db),
	}
}

// Open builds providers for the configured driver. For sqlite it opens the
// DSN through sqliteshim and creates the journal table when missing.
func Open(ctx context.Context, cfg config.StorageConfig) (Providers, error) {
	switch cfg.Driver {
	case "", config.StorageDriverMemory:
		return NewMemoryProviders(), nil
	case config.StorageDriverSQLite:
		sqldb, err := sql.Open(sqliteshim.DriverName(), cfg.DSN)
		if err != nil {
			return Providers{}, fmt.Errorf("storage: open sqlite: %w", err)
		}
		db := bun.NewDB(sqldb, sqlitedialect.New())
		if err := EnsureSchema(ctx, db); err != nil {
			_ = db.Close()
			return Providers{}, err
		}
		providers := NewBunProviders(db)
		providers.closeFn = db.Close
		return providers, nil
	default:
		return Providers{}, fmt.Errorf("storage: unsupported driver %q", cfg.Driver)
	}
}

// EnsureSchema creates the job journal table if it does not exist.
func EnsureSchema(ctx context.Context, db *bun.DB) error {
	_, err := db.NewCreateTable().Model((*domain.JobRecord)(nil)).IfNotExists().Exec(ctx)
	if err != nil {
		return fmt.Errorf("storage: create job_records: %w", err)
	}
	return nil
}
