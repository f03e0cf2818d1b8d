package services

import (
	"context"
	"fmt"

	"gastos/internal/amqp"
	"gastos/internal/core"
	"gastos/internal/log"
)

// ExpenseWriter is the write side of the expense store.
type ExpenseWriter interface {
	// SaveExpenses upserts by ID: known IDs are updated, the rest inserted.
	SaveExpenses(ctx context.Context, expenses []core.Expense) ([]core.Expense, error)
	SetActive(ctx context.Context, id int64, active bool) error
	DeleteExpense(ctx context.Context, id int64) error
}

// ChangePublisher announces expense writes to other processes.
type ChangePublisher interface {
	PublishExpensesChanged(ctx context.Context, msg *amqp.ExpensesChangedMessage) error
}

// ExpenseService writes expenses and tells report caches, local and remote,
// that their data is stale.
type ExpenseService struct {
	store     ExpenseWriter
	publisher ChangePublisher
	reports   *ReportService
	logger    *log.Logger
}

// NewExpenseService creates the service. publisher and reports may be nil.
func NewExpenseService(store ExpenseWriter, publisher ChangePublisher, reports *ReportService, logger *log.Logger) *ExpenseService {
	if logger == nil {
		logger = log.Discard()
	}
	return &ExpenseService{
		store:     store,
		publisher: publisher,
		reports:   reports,
		logger:    logger.WithComponent(log.ComponentStorage),
	}
}

// Import saves a batch of expenses atomically, then announces the change.
// Expenses carrying the ID of a stored expense replace it, so an edited
// export can be imported again without duplicating rows.
func (s *ExpenseService) Import(ctx context.Context, expenses []core.Expense, source string) ([]core.Expense, error) {
	saved, err := s.store.SaveExpenses(ctx, expenses)
	if err != nil {
		return nil, fmt.Errorf("import expenses: %w", err)
	}

	s.logger.InfoContext(ctx, "Expenses imported",
		log.FieldOperation, log.OpImport,
		log.FieldEntries, len(saved),
		"source", source)

	s.changed(ctx, len(saved), source)
	return saved, nil
}

// SetActive pauses or resumes a recurring template.
func (s *ExpenseService) SetActive(ctx context.Context, id int64, active bool) error {
	if err := s.store.SetActive(ctx, id, active); err != nil {
		return fmt.Errorf("set active: %w", err)
	}
	s.changed(ctx, 1, "set-active")
	return nil
}

func (s *ExpenseService) DeleteExpense(ctx context.Context, id int64) error {
	if err := s.store.DeleteExpense(ctx, id); err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	s.logger.InfoContext(ctx, "Expense deleted", log.FieldOperation, log.OpDelete, log.FieldExpenseID, id)
	s.changed(ctx, 1, "delete")
	return nil
}

// changed never fails the write: the expense is already stored.
func (s *ExpenseService) changed(ctx context.Context, count int, source string) {
	if s.reports != nil {
		s.reports.Invalidate()
	}

	if s.publisher == nil {
		s.logger.DebugContext(ctx, "AMQP publisher not available, skipping change message")
		return
	}
	if err := s.publisher.PublishExpensesChanged(ctx, amqp.NewExpensesChangedMessage(count, source)); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish expenses changed message",
			log.FieldOperation, log.OpPublish,
			log.FieldError, err)
	}
}
