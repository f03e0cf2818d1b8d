package backend

import (
	"context"

	"gastos/internal/core"
)

// Store is the persistence surface shared by the sqlite and memory backends.
type Store interface {
	CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error)
	CreateExpenses(ctx context.Context, expenses []core.Expense) ([]core.Expense, error)
	SaveExpenses(ctx context.Context, expenses []core.Expense) ([]core.Expense, error)
	GetExpense(ctx context.Context, id int64) (core.Expense, error)
	ListExpenses(ctx context.Context, from, to core.Date) ([]core.Expense, error)
	ListAllExpenses(ctx context.Context) ([]core.Expense, error)
	ListRecurringTemplates(ctx context.Context, until core.Date) ([]core.Expense, error)
	SetActive(ctx context.Context, id int64, active bool) error
	DeleteExpense(ctx context.Context, id int64) error
	Ping(ctx context.Context) error
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the backend instance and optional cleanup function
type BackendResult struct {
	Store   Store
	Cleanup CleanupFunc
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Optional YAML fixture loaded into the store on creation
	SeedFile string
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
