package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"gastos/internal/core"
)

func newTestRepo(t *testing.T) (*SQLiteRepository, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gastos.db")
	repo, err := NewSQLiteRepository(path, nil)
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo, path
}

func amount(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func TestSQLiteRepository_CreateAndGet(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	in := core.Expense{
		Date:        core.NewDate(2024, 1, 31),
		Amount:      amount("120.50"),
		Recurring:   true,
		Frequency:   "mensual",
		Active:      true,
		Description: "Alquiler oficina",
		Category:    "Inmuebles",
		Currency:    "EUR",
		Extra:       map[string]string{"proveedor": "acme"},
	}
	saved, err := repo.CreateExpense(ctx, in)
	if err != nil {
		t.Fatalf("CreateExpense() error = %v", err)
	}
	if saved.ID == 0 {
		t.Fatal("CreateExpense() returned zero ID")
	}

	got, err := repo.GetExpense(ctx, saved.ID)
	if err != nil {
		t.Fatalf("GetExpense() error = %v", err)
	}
	if !got.Date.Equal(in.Date.Time) {
		t.Errorf("Date = %v, want %v", got.Date, in.Date)
	}
	if !got.Amount.Valid || !got.Amount.Decimal.Equal(in.Amount.Decimal) {
		t.Errorf("Amount = %v, want %v", got.Amount, in.Amount)
	}
	if !got.Recurring || !got.Active || got.Frequency != "mensual" {
		t.Errorf("recurrence fields = %v/%v/%q", got.Recurring, got.Active, got.Frequency)
	}
	if got.Extra["proveedor"] != "acme" || got.Currency != "EUR" || got.Description != "Alquiler oficina" {
		t.Errorf("payload not preserved: %+v", got)
	}
}

func TestSQLiteRepository_MissingAmount(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	saved, err := repo.CreateExpense(ctx, core.Expense{Date: core.NewDate(2024, 2, 1), Active: true})
	if err != nil {
		t.Fatalf("CreateExpense() error = %v", err)
	}
	got, err := repo.GetExpense(ctx, saved.ID)
	if err != nil {
		t.Fatalf("GetExpense() error = %v", err)
	}
	if got.Amount.Valid {
		t.Errorf("Amount = %v, want missing", got.Amount)
	}
	if got.Extra != nil {
		t.Errorf("Extra = %v, want nil", got.Extra)
	}
}

func TestSQLiteRepository_RejectsInvalid(t *testing.T) {
	repo, _ := newTestRepo(t)

	_, err := repo.CreateExpense(context.Background(), core.Expense{
		Date:      core.NewDate(2024, 1, 1),
		Recurring: true,
		Frequency: "BIMESTRAL",
	})
	if !errors.Is(err, core.ErrInvalidFrequency) {
		t.Errorf("CreateExpense() error = %v, want ErrInvalidFrequency", err)
	}
}

func TestSQLiteRepository_ListWindowAndTemplates(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	seed := []core.Expense{
		{Date: core.NewDate(2024, 1, 15), Amount: amount("10"), Active: true},
		{Date: core.NewDate(2024, 2, 1), Amount: amount("20"), Recurring: true, Frequency: "MENSUAL", Active: true},
		{Date: core.NewDate(2024, 2, 29), Amount: amount("30"), Active: true},
		{Date: core.NewDate(2024, 3, 1), Amount: amount("40"), Recurring: true, Frequency: "ANUAL", Active: false},
		{Date: core.NewDate(2024, 4, 1), Amount: amount("50"), Recurring: true, Frequency: "SEMANAL", Active: true},
	}
	if _, err := repo.CreateExpenses(ctx, seed); err != nil {
		t.Fatalf("CreateExpenses() error = %v", err)
	}

	inWindow, err := repo.ListExpenses(ctx, core.NewDate(2024, 2, 1), core.NewDate(2024, 3, 1))
	if err != nil {
		t.Fatalf("ListExpenses() error = %v", err)
	}
	if len(inWindow) != 3 {
		t.Fatalf("ListExpenses() returned %d, want 3", len(inWindow))
	}
	if !inWindow[0].Date.Equal(core.NewDate(2024, 2, 1).Time) || !inWindow[2].Date.Equal(core.NewDate(2024, 3, 1).Time) {
		t.Errorf("window bounds not inclusive or not ordered: %v .. %v", inWindow[0].Date, inWindow[2].Date)
	}

	templates, err := repo.ListRecurringTemplates(ctx, core.NewDate(2024, 3, 31))
	if err != nil {
		t.Fatalf("ListRecurringTemplates() error = %v", err)
	}
	if len(templates) != 1 || templates[0].Frequency != "MENSUAL" {
		t.Errorf("ListRecurringTemplates() = %+v, want only the active monthly template", templates)
	}

	all, err := repo.ListAllExpenses(ctx)
	if err != nil {
		t.Fatalf("ListAllExpenses() error = %v", err)
	}
	if len(all) != len(seed) {
		t.Errorf("ListAllExpenses() returned %d, want %d", len(all), len(seed))
	}
}

func TestSQLiteRepository_CreateExpensesIsAtomic(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.CreateExpenses(ctx, []core.Expense{
		{Date: core.NewDate(2024, 1, 1), Active: true},
		{Active: true},
	})
	if err == nil {
		t.Fatal("CreateExpenses() error = nil, want validation error")
	}

	all, err := repo.ListAllExpenses(ctx)
	if err != nil {
		t.Fatalf("ListAllExpenses() error = %v", err)
	}
	if len(all) != 0 {
		t.Errorf("ListAllExpenses() returned %d after failed batch, want 0", len(all))
	}
}

func TestSQLiteRepository_SetActiveAndDelete(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	saved, err := repo.CreateExpense(ctx, core.Expense{
		Date: core.NewDate(2024, 1, 1), Recurring: true, Frequency: "MENSUAL", Active: true,
	})
	if err != nil {
		t.Fatalf("CreateExpense() error = %v", err)
	}

	if err := repo.SetActive(ctx, saved.ID, false); err != nil {
		t.Fatalf("SetActive() error = %v", err)
	}
	templates, _ := repo.ListRecurringTemplates(ctx, core.NewDate(2030, 1, 1))
	if len(templates) != 0 {
		t.Errorf("inactive template still listed: %+v", templates)
	}

	if err := repo.DeleteExpense(ctx, saved.ID); err != nil {
		t.Fatalf("DeleteExpense() error = %v", err)
	}
	if _, err := repo.GetExpense(ctx, saved.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetExpense() after delete error = %v, want ErrNotFound", err)
	}
	if err := repo.DeleteExpense(ctx, saved.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("DeleteExpense() twice error = %v, want ErrNotFound", err)
	}
	if err := repo.SetActive(ctx, 999, true); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetActive() unknown id error = %v, want ErrNotFound", err)
	}
}

func TestRunMigrations_Idempotent(t *testing.T) {
	_, path := newTestRepo(t)

	if err := RunMigrations(path); err != nil {
		t.Fatalf("RunMigrations() second run error = %v", err)
	}
	version, dirty, err := SchemaVersion(path)
	if err != nil {
		t.Fatalf("SchemaVersion() error = %v", err)
	}
	if version != 1 || dirty {
		t.Errorf("SchemaVersion() = %d, %v, want 1, false", version, dirty)
	}
}

func TestSQLiteRepository_KeepsExplicitIDs(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	saved, err := repo.CreateExpenses(ctx, []core.Expense{
		{ID: 10, Date: core.NewDate(2024, 1, 2), Active: true},
		{Date: core.NewDate(2024, 1, 3), Active: true},
	})
	if err != nil {
		t.Fatalf("CreateExpenses() error = %v", err)
	}
	if saved[0].ID != 10 || saved[1].ID != 11 {
		t.Errorf("IDs = %d, %d, want 10, 11", saved[0].ID, saved[1].ID)
	}

	_, err = repo.CreateExpense(ctx, core.Expense{ID: 10, Date: core.NewDate(2024, 1, 4)})
	if !errors.Is(err, ErrDuplicate) {
		t.Errorf("CreateExpense() with taken ID error = %v, want ErrDuplicate", err)
	}
}

func TestSQLiteRepository_SaveExpensesUpserts(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	first, err := repo.CreateExpense(ctx, core.Expense{
		Date: core.NewDate(2024, 1, 31), Amount: amount("100"), Recurring: true, Frequency: "MENSUAL", Active: true,
	})
	if err != nil {
		t.Fatalf("CreateExpense() error = %v", err)
	}

	edited := first
	edited.Amount = amount("10.125")
	edited.Extra = map[string]string{"proveedor": "acme"}
	saved, err := repo.SaveExpenses(ctx, []core.Expense{
		edited,
		{ID: 50, Date: core.NewDate(2024, 2, 1), Active: true},
		{Date: core.NewDate(2024, 2, 2), Active: true},
	})
	if err != nil {
		t.Fatalf("SaveExpenses() error = %v", err)
	}
	if saved[0].ID != first.ID || saved[1].ID != 50 || saved[2].ID != 51 {
		t.Errorf("IDs = %d, %d, %d, want %d, 50, 51", saved[0].ID, saved[1].ID, saved[2].ID, first.ID)
	}

	all, _ := repo.ListAllExpenses(ctx)
	if len(all) != 3 {
		t.Fatalf("ListAllExpenses() = %d, want 3 (no duplicate of the updated row)", len(all))
	}
	got, err := repo.GetExpense(ctx, first.ID)
	if err != nil {
		t.Fatalf("GetExpense() error = %v", err)
	}
	if !got.Amount.Decimal.Equal(decimal.RequireFromString("10.125")) || got.Extra["proveedor"] != "acme" {
		t.Errorf("updated expense = %+v", got)
	}
}

func TestSQLiteRepository_SaveExpensesIsAtomic(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	first, _ := repo.CreateExpense(ctx, core.Expense{Date: core.NewDate(2024, 1, 1), Amount: amount("5"), Active: true})

	edited := first
	edited.Amount = amount("6")
	if _, err := repo.SaveExpenses(ctx, []core.Expense{edited, {Active: true}}); err == nil {
		t.Fatal("SaveExpenses() error = nil, want validation error")
	}

	got, _ := repo.GetExpense(ctx, first.ID)
	if !got.Amount.Decimal.Equal(decimal.NewFromInt(5)) {
		t.Errorf("amount after failed batch = %v, want 5", got.Amount)
	}
}
