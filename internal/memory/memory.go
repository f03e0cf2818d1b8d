// Package memory is an in-process expense store, used for demos, tests and
// when no database is configured.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"gastos/internal/core"
	"gastos/internal/storage"
)

type Store struct {
	mu     sync.RWMutex
	items  map[int64]core.Expense
	nextID int64
}

func New() *Store {
	return &Store{items: make(map[int64]core.Expense), nextID: 1}
}

// NewWithExpenses returns a store preloaded with expenses. Expenses without an
// ID get the next free one.
func NewWithExpenses(expenses []core.Expense) (*Store, error) {
	s := New()
	if _, err := s.CreateExpenses(context.Background(), expenses); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) CreateExpense(_ context.Context, e core.Expense) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(e)
}

// CreateExpenses stores all expenses or none of them.
func (s *Store) CreateExpenses(_ context.Context, expenses []core.Expense) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot, next := maps.Clone(s.items), s.nextID
	saved := make([]core.Expense, 0, len(expenses))
	for i, e := range expenses {
		stored, err := s.insertLocked(e)
		if err != nil {
			s.items, s.nextID = snapshot, next
			return nil, fmt.Errorf("expense %d: %w", i, err)
		}
		saved = append(saved, stored)
	}
	return saved, nil
}

// SaveExpenses upserts a batch atomically: expenses whose ID is already
// stored replace it, the rest are inserted.
func (s *Store) SaveExpenses(_ context.Context, expenses []core.Expense) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot, next := maps.Clone(s.items), s.nextID
	saved := make([]core.Expense, 0, len(expenses))
	for i, e := range expenses {
		if _, ok := s.items[e.ID]; ok {
			if err := validate(e); err != nil {
				s.items, s.nextID = snapshot, next
				return nil, fmt.Errorf("expense %d: %w", i, err)
			}
			e.Extra = maps.Clone(e.Extra)
			s.items[e.ID] = e
			saved = append(saved, e)
			continue
		}
		stored, err := s.insertLocked(e)
		if err != nil {
			s.items, s.nextID = snapshot, next
			return nil, fmt.Errorf("expense %d: %w", i, err)
		}
		saved = append(saved, stored)
	}
	return saved, nil
}

func validate(e core.Expense) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("validate expense: %w", err)
	}
	if e.ID < 0 {
		return fmt.Errorf("validate expense: negative id %d", e.ID)
	}
	return nil
}

func (s *Store) insertLocked(e core.Expense) (core.Expense, error) {
	if err := validate(e); err != nil {
		return core.Expense{}, err
	}
	if e.ID == 0 {
		e.ID = s.nextID
	}
	if _, exists := s.items[e.ID]; exists {
		return core.Expense{}, fmt.Errorf("expense %d: %w", e.ID, storage.ErrDuplicate)
	}
	if e.ID >= s.nextID {
		s.nextID = e.ID + 1
	}
	e.Extra = maps.Clone(e.Extra)
	s.items[e.ID] = e
	return e, nil
}

func (s *Store) GetExpense(_ context.Context, id int64) (core.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.items[id]
	if !ok {
		return core.Expense{}, fmt.Errorf("get expense %d: %w", id, storage.ErrNotFound)
	}
	e.Extra = maps.Clone(e.Extra)
	return e, nil
}

func (s *Store) ListExpenses(_ context.Context, from, to core.Date) ([]core.Expense, error) {
	return s.filter(func(e core.Expense) bool {
		return !e.Date.Before(from.Time) && !e.Date.After(to.Time)
	}), nil
}

func (s *Store) ListAllExpenses(_ context.Context) ([]core.Expense, error) {
	return s.filter(func(core.Expense) bool { return true }), nil
}

func (s *Store) ListRecurringTemplates(_ context.Context, until core.Date) ([]core.Expense, error) {
	return s.filter(func(e core.Expense) bool {
		return e.Recurring && e.Active && !e.Date.After(until.Time)
	}), nil
}

func (s *Store) SetActive(_ context.Context, id int64, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.items[id]
	if !ok {
		return fmt.Errorf("expense %d: %w", id, storage.ErrNotFound)
	}
	e.Active = active
	s.items[id] = e
	return nil
}

func (s *Store) DeleteExpense(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[id]; !ok {
		return fmt.Errorf("expense %d: %w", id, storage.ErrNotFound)
	}
	delete(s.items, id)
	return nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

// filter returns copies of the matching expenses ordered by date, then ID.
func (s *Store) filter(keep func(core.Expense) bool) []core.Expense {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []core.Expense
	for _, e := range s.items {
		if keep(e) {
			e.Extra = maps.Clone(e.Extra)
			out = append(out, e)
		}
	}
	slices.SortFunc(out, func(a, b core.Expense) int {
		if c := a.Date.Compare(b.Date.Time); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}
