package backend

import (
	"context"
	"fmt"

	"gastos/internal/log"
	"gastos/internal/memory"
	"gastos/internal/seed"
	"gastos/internal/storage"
)

// Create opens the configured store. When a seed file is set its expenses are
// loaded into a fresh memory store, or into an empty sqlite database.
func Create(ctx context.Context, config Config, logger *log.Logger) (*BackendResult, error) {
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentStorage)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		return createSQLiteBackend(ctx, config, logger)
	case MemoryBackend:
		return createMemoryBackend(config, logger)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func createSQLiteBackend(ctx context.Context, config Config, logger *log.Logger) (*BackendResult, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	if config.SeedFile != "" {
		existing, err := repo.ListAllExpenses(ctx)
		if err != nil {
			repo.Close()
			return nil, fmt.Errorf("check existing expenses: %w", err)
		}
		if len(existing) == 0 {
			if err := seedStore(ctx, repo, config.SeedFile, logger); err != nil {
				repo.Close()
				return nil, err
			}
		} else {
			logger.Info("Skipping seed, database already has expenses", log.FieldEntries, len(existing))
		}
	}

	logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)

	return &BackendResult{
		Store:   repo,
		Cleanup: repo.Close,
	}, nil
}

func createMemoryBackend(config Config, logger *log.Logger) (*BackendResult, error) {
	store := memory.New()
	if config.SeedFile != "" {
		if err := seedStore(context.Background(), store, config.SeedFile, logger); err != nil {
			return nil, err
		}
	}

	logger.Info("Initialized memory backend", "seed_file", config.SeedFile)

	return &BackendResult{
		Store:   store,
		Cleanup: store.Close,
	}, nil
}

func seedStore(ctx context.Context, store Store, path string, logger *log.Logger) error {
	expenses, err := seed.Load(path)
	if err != nil {
		return err
	}
	if _, err := store.CreateExpenses(ctx, expenses); err != nil {
		return fmt.Errorf("seed store: %w", err)
	}
	logger.Info("Seeded store", log.FieldOperation, log.OpImport, log.FieldEntries, len(expenses), "seed_file", path)
	return nil
}

var (
	_ Store = (*storage.SQLiteRepository)(nil)
	_ Store = (*memory.Store)(nil)
)
