package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the wire and storage layout for calendar dates.
const DateLayout = "2006-01-02"

// Recurrence tags as stored by the data layer.
const (
	FrequencyMonthly    Frequency = "MENSUAL"
	FrequencyQuarterly  Frequency = "TRIMESTRAL"
	FrequencySemiannual Frequency = "SEMESTRAL"
	FrequencyAnnual     Frequency = "ANUAL"
	FrequencyWeekly     Frequency = "SEMANAL"
	FrequencyBiweekly   Frequency = "QUINCENAL"

	// FrequencyNone is an empty tag. Recurring templates without a tag are never projected.
	FrequencyNone Frequency = ""
	// FrequencyUnrecognized is any non-empty tag outside the known set.
	// It advances like FrequencyMonthly.
	FrequencyUnrecognized Frequency = "?"
)

type (
	Frequency string

	Date struct {
		time.Time
	}

	// Expense is a ledger entry for an operating expense (a "gasto").
	// Recurring, active entries act as templates for projections.
	Expense struct {
		ID          int64               `json:"id"`
		Date        Date                `json:"fecha"`
		Amount      decimal.NullDecimal `json:"monto"`
		Recurring   bool                `json:"esRecurrente"`
		Frequency   string              `json:"frecuencia,omitempty"`
		Active      bool                `json:"activo"`
		Description string              `json:"descripcion,omitempty"`
		Category    string              `json:"categoria,omitempty"`
		Currency    string              `json:"moneda,omitempty"`
		Notes       string              `json:"notas,omitempty"`
		Extra       map[string]string   `json:"extra,omitempty"`
	}

	// ExpenseView is one row of a combined listing: either a stored expense
	// or a projected (never persisted) occurrence of a recurring template.
	ExpenseView struct {
		Expense
		IsProjection bool  `json:"esProyeccion"`
		OriginID     int64 `json:"gastoOrigenId,omitempty"`
		OriginalDate Date  `json:"fechaOriginal,omitzero"`
	}
)

var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidDate        = errors.New("invalid date")
	ErrInvalidFrequency   = errors.New("invalid frequency")
	ErrDescriptionTooLong = errors.New("description too long (max 200 characters)")
)

var knownFrequencies = map[Frequency]struct{}{
	FrequencyMonthly:    {},
	FrequencyQuarterly:  {},
	FrequencySemiannual: {},
	FrequencyAnnual:     {},
	FrequencyWeekly:     {},
	FrequencyBiweekly:   {},
}

// ParseFrequency normalizes a recurrence tag case-insensitively.
// Unknown non-empty tags map to FrequencyUnrecognized.
func ParseFrequency(tag string) Frequency {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return FrequencyNone
	}
	f := Frequency(strings.ToUpper(tag))
	if _, ok := knownFrequencies[f]; ok {
		return f
	}
	return FrequencyUnrecognized
}

// IsKnown reports whether f is one of the six recurrence tags.
func (f Frequency) IsKnown() bool {
	_, ok := knownFrequencies[f]
	return ok
}

func (f Frequency) String() string {
	return string(f)
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf drops the clock part of t, keeping its calendar day.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses a date string in YYYY-MM-DD format.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

// AddDate returns the date shifted by the given calendar amounts.
// Day-of-month overflow normalizes forward (Jan 31 + 1 month = Mar 2 or 3).
func (d Date) AddDate(years, months, days int) Date {
	return Date{Time: d.Time.AddDate(years, months, days)}
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.Format(DateLayout) + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return fmt.Errorf("%w: date cannot be zero", ErrInvalidDate)
	}
	return nil
}

// MarshalJSON always writes gastoOrigenId for projections, including a zero
// template ID, and omits it for stored expenses.
func (v ExpenseView) MarshalJSON() ([]byte, error) {
	type view ExpenseView
	out := struct {
		view
		OriginID *int64 `json:"gastoOrigenId,omitempty"`
	}{view: view(v)}
	if v.IsProjection {
		out.OriginID = &v.OriginID
	}
	return json.Marshal(out)
}

// AmountOrZero coalesces a missing amount to zero.
func (e Expense) AmountOrZero() decimal.Decimal {
	if !e.Amount.Valid {
		return decimal.Zero
	}
	return e.Amount.Decimal
}

// Validate checks an expense at the persistence boundary. Projection code
// never calls it: bad input there degrades instead of failing.
func (e Expense) Validate() error {
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if e.Amount.Valid && e.Amount.Decimal.IsNegative() {
		return ErrInvalidAmount
	}
	if len(e.Description) > 200 {
		return ErrDescriptionTooLong
	}
	if e.Recurring && !ParseFrequency(e.Frequency).IsKnown() {
		return fmt.Errorf("%w: %q", ErrInvalidFrequency, e.Frequency)
	}
	return nil
}
