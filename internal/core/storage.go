package core

import (
	"context"
	"fmt"

	"heredity/internal/config"
	"heredity/internal/infra/persistence/memory"
	"heredity/internal/infra/persistence/postgres"
	"heredity/internal/infra/persistence/sqlite"
)

// NewMemoryStore constructs an in-memory store bound to engine.
func NewMemoryStore(engine *RulesEngine) *memory.Store {
	return memory.NewStore(engine)
}

// OpenPersistentStore builds the backend selected by cfg.Driver.
func OpenPersistentStore(ctx context.Context, cfg config.Storage, engine *RulesEngine) (PersistentStore, error) {
	switch cfg.Driver {
	case "", config.StorageMemory:
		return memory.NewStore(engine), nil
	case config.StorageSQLite:
		store, err := sqlite.NewStore(cfg.SQLitePath, engine)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.StoragePostgres:
		store, err := postgres.NewStore(ctx, cfg.PostgresDSN, engine)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %s", cfg.Driver)
	}
}
