package core

import (
	"context"
	"fmt"

	"crisprcore/internal/infra/persistence/memory"
	"crisprcore/internal/infra/persistence/postgres"
	"crisprcore/internal/infra/persistence/sqlite"
	"crisprcore/pkg/domain"
)

// StorageDriver identifies a concrete table store implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// StorageConfig selects and configures the table store backend.
type StorageConfig struct {
	Driver      StorageDriver
	SQLitePath  string
	PostgresDSN string
}

// OpenTableStore constructs the backend named by cfg.Driver. The sqlite
// driver is used when none is set. SQL-backed stores also implement io.Closer.
func OpenTableStore(ctx context.Context, cfg StorageConfig) (domain.TableStore, error) {
	switch cfg.Driver {
	case StorageMemory:
		return memory.NewStore(), nil
	case "", StorageSQLite:
		store, err := sqlite.NewStore(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return store, nil
	case StoragePostgres:
		store, err := postgres.NewStore(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %s", cfg.Driver)
	}
}
