package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"

	"gastos/internal/core"
	"gastos/internal/log"

	_ "modernc.org/sqlite"
)

var (
	// ErrNotFound is returned when no expense has the requested ID.
	ErrNotFound = errors.New("expense not found")
	// ErrDuplicate is returned when creating an expense whose explicit ID is taken.
	ErrDuplicate = errors.New("expense already exists")
)

type SQLiteRepository struct {
	db     *sql.DB
	logger *log.Logger
}

func NewSQLiteRepository(dbPath string, logger *log.Logger) (*SQLiteRepository, error) {
	if logger == nil {
		logger = log.Discard()
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:     db,
		logger: logger.WithComponent(log.ComponentStorage),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks that the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

const insertExpense = `INSERT INTO gastos
	(fecha, monto, descripcion, categoria, moneda, notas, extra, es_recurrente, frecuencia, activo)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const insertExpenseWithID = `INSERT INTO gastos
	(fecha, monto, descripcion, categoria, moneda, notas, extra, es_recurrente, frecuencia, activo, id)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const updateExpense = `UPDATE gastos SET
	fecha = ?, monto = ?, descripcion = ?, categoria = ?, moneda = ?, notas = ?, extra = ?,
	es_recurrente = ?, frecuencia = ?, activo = ?, updated_at = CURRENT_TIMESTAMP
	WHERE id = ?`

const selectExpense = `SELECT id, fecha, monto, descripcion, categoria, moneda, notas, extra,
	es_recurrente, frecuencia, activo FROM gastos`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// CreateExpense validates and stores e, returning it with its ID. A non-zero
// e.ID is kept; ErrDuplicate is returned when it is already taken.
func (r *SQLiteRepository) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	id, err := r.insert(ctx, r.db, e)
	if err != nil {
		return core.Expense{}, err
	}
	e.ID = id

	r.logger.DebugContext(ctx, "Expense saved to SQLite",
		log.FieldExpenseID, id,
		"fecha", e.Date.String(),
		"monto", core.FormatAmount(e.Amount),
		"recurring", e.Recurring)

	return e, nil
}

// CreateExpenses stores a batch atomically: either every expense is saved or none.
// Explicit IDs are kept as in CreateExpense.
func (r *SQLiteRepository) CreateExpenses(ctx context.Context, expenses []core.Expense) ([]core.Expense, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	saved := make([]core.Expense, 0, len(expenses))
	for i, e := range expenses {
		id, err := r.insert(ctx, tx, e)
		if err != nil {
			return nil, fmt.Errorf("expense %d: %w", i, err)
		}
		e.ID = id
		saved = append(saved, e)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	r.logger.InfoContext(ctx, "Expenses imported", log.FieldEntries, len(saved))
	return saved, nil
}

// SaveExpenses upserts a batch atomically. Expenses whose ID already exists
// are updated in place; the rest are inserted, keeping any explicit ID.
func (r *SQLiteRepository) SaveExpenses(ctx context.Context, expenses []core.Expense) ([]core.Expense, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	saved := make([]core.Expense, 0, len(expenses))
	updated := 0
	for i, e := range expenses {
		exists, err := r.exists(ctx, tx, e.ID)
		if err != nil {
			return nil, fmt.Errorf("expense %d: %w", i, err)
		}
		if exists {
			if err := r.update(ctx, tx, e); err != nil {
				return nil, fmt.Errorf("expense %d: %w", i, err)
			}
			updated++
		} else {
			if e.ID, err = r.insert(ctx, tx, e); err != nil {
				return nil, fmt.Errorf("expense %d: %w", i, err)
			}
		}
		saved = append(saved, e)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	r.logger.InfoContext(ctx, "Expenses saved",
		log.FieldEntries, len(saved),
		"inserted", len(saved)-updated,
		"updated", updated)
	return saved, nil
}

func (r *SQLiteRepository) exists(ctx context.Context, db execer, id int64) (bool, error) {
	if id == 0 {
		return false, nil
	}
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM gastos WHERE id = ?`, id).Scan(&n); err != nil {
		return false, fmt.Errorf("check expense %d: %w", id, err)
	}
	return n > 0, nil
}

func (r *SQLiteRepository) insert(ctx context.Context, db execer, e core.Expense) (int64, error) {
	args, err := expenseArgs(e)
	if err != nil {
		return 0, err
	}

	query := insertExpense
	if e.ID != 0 {
		exists, err := r.exists(ctx, db, e.ID)
		if err != nil {
			return 0, err
		}
		if exists {
			return 0, fmt.Errorf("expense %d: %w", e.ID, ErrDuplicate)
		}
		query = insertExpenseWithID
		args = append(args, e.ID)
	}

	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("create expense: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read expense id: %w", err)
	}
	return id, nil
}

func (r *SQLiteRepository) update(ctx context.Context, db execer, e core.Expense) error {
	args, err := expenseArgs(e)
	if err != nil {
		return err
	}
	res, err := db.ExecContext(ctx, updateExpense, append(args, e.ID)...)
	if err != nil {
		return fmt.Errorf("update expense %d: %w", e.ID, err)
	}
	return expectOne(res, e.ID)
}

// expenseArgs validates e and returns its column values in insertExpense order.
func expenseArgs(e core.Expense) ([]any, error) {
	if err := e.Validate(); err != nil {
		return nil, fmt.Errorf("validate expense: %w", err)
	}
	if e.ID < 0 {
		return nil, fmt.Errorf("validate expense: negative id %d", e.ID)
	}
	extra, err := encodeExtra(e.Extra)
	if err != nil {
		return nil, err
	}
	return []any{
		e.Date.String(),
		nullAmount(e.Amount),
		e.Description,
		e.Category,
		e.Currency,
		e.Notes,
		extra,
		e.Recurring,
		nullString(strings.TrimSpace(e.Frequency)),
		e.Active,
	}, nil
}

func (r *SQLiteRepository) GetExpense(ctx context.Context, id int64) (core.Expense, error) {
	row := r.db.QueryRowContext(ctx, selectExpense+` WHERE id = ?`, id)
	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, fmt.Errorf("get expense %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense %d: %w", id, err)
	}
	return e, nil
}

// ListExpenses returns every stored expense dated within [from, to], oldest first.
func (r *SQLiteRepository) ListExpenses(ctx context.Context, from, to core.Date) ([]core.Expense, error) {
	return r.query(ctx, selectExpense+` WHERE fecha BETWEEN ? AND ? ORDER BY fecha, id`,
		from.String(), to.String())
}

// ListAllExpenses returns every stored expense, oldest first.
func (r *SQLiteRepository) ListAllExpenses(ctx context.Context) ([]core.Expense, error) {
	return r.query(ctx, selectExpense+` ORDER BY fecha, id`)
}

// ListRecurringTemplates returns active recurring expenses anchored on or before until.
func (r *SQLiteRepository) ListRecurringTemplates(ctx context.Context, until core.Date) ([]core.Expense, error) {
	return r.query(ctx, selectExpense+` WHERE es_recurrente = 1 AND activo = 1 AND fecha <= ? ORDER BY fecha, id`,
		until.String())
}

func (r *SQLiteRepository) SetActive(ctx context.Context, id int64, active bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE gastos SET activo = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, active, id)
	if err != nil {
		return fmt.Errorf("set active for expense %d: %w", id, err)
	}
	return expectOne(res, id)
}

func (r *SQLiteRepository) DeleteExpense(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM gastos WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete expense %d: %w", id, err)
	}
	if err := expectOne(res, id); err != nil {
		return err
	}
	r.logger.InfoContext(ctx, "Expense deleted", log.FieldExpenseID, id)
	return nil
}

func (r *SQLiteRepository) query(ctx context.Context, q string, args ...any) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var out []core.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanExpense(s scanner) (core.Expense, error) {
	var (
		e          core.Expense
		fecha      string
		monto      sql.NullString
		extra      string
		frecuencia sql.NullString
	)
	if err := s.Scan(&e.ID, &fecha, &monto, &e.Description, &e.Category, &e.Currency,
		&e.Notes, &extra, &e.Recurring, &frecuencia, &e.Active); err != nil {
		return core.Expense{}, err
	}

	date, err := core.ParseDate(fecha)
	if err != nil {
		return core.Expense{}, err
	}
	e.Date = date

	if monto.Valid {
		d, err := decimal.NewFromString(monto.String)
		if err != nil {
			return core.Expense{}, fmt.Errorf("%w: %q", core.ErrInvalidAmount, monto.String)
		}
		e.Amount = decimal.NewNullDecimal(d)
	}
	e.Frequency = frecuencia.String

	if extra != "" && extra != "{}" {
		if err := json.Unmarshal([]byte(extra), &e.Extra); err != nil {
			return core.Expense{}, fmt.Errorf("decode extra: %w", err)
		}
	}
	return e, nil
}

func encodeExtra(m map[string]string) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encode extra: %w", err)
	}
	return string(b), nil
}

func nullAmount(a decimal.NullDecimal) sql.NullString {
	if !a.Valid {
		return sql.NullString{}
	}
	return sql.NullString{String: a.Decimal.String(), Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func expectOne(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("expense %d: %w", id, ErrNotFound)
	}
	return nil
}
