package services

import (
	"maps"
	"slices"

	"gastos/internal/core"

	"github.com/shopspring/decimal"
)

// MaxOccurrences bounds the occurrences computed for a single template,
// whether or not they fall inside the window.
const MaxOccurrences = 100

// ProjectOne enumerates the occurrences of a recurring template that fall in
// the inclusive window [from, to]. Occurrences start one period after the
// template's own date. Non-recurring templates and templates without a
// frequency tag produce nothing.
func ProjectOne(tmpl core.Expense, from, to core.Date) []core.ExpenseView {
	if !tmpl.Recurring || tmpl.Frequency == "" {
		return nil
	}

	anchor := tmpl.Date
	frequency := core.ParseFrequency(tmpl.Frequency)

	var out []core.ExpenseView
	for i := 1; i <= MaxOccurrences; i++ {
		next := Advance(anchor, frequency, i)
		if next.After(to.Time) {
			break
		}
		if !next.Before(from.Time) {
			out = append(out, projectAt(tmpl, next))
		}
	}
	return out
}

// projectAt copies the template and moves the copy to date.
// The ID stays the template's; see OriginID for the back-reference.
func projectAt(tmpl core.Expense, date core.Date) core.ExpenseView {
	e := tmpl
	e.Extra = maps.Clone(tmpl.Extra)
	e.Date = date
	return core.ExpenseView{
		Expense:      e,
		IsProjection: true,
		OriginID:     tmpl.ID,
		OriginalDate: tmpl.Date,
	}
}

// ProjectMany projects every recurring, active template in the window.
// Results are grouped by template in input order.
func ProjectMany(templates []core.Expense, from, to core.Date) []core.ExpenseView {
	var out []core.ExpenseView
	for _, tmpl := range templates {
		if !tmpl.Recurring || !tmpl.Active {
			continue
		}
		out = append(out, ProjectOne(tmpl, from, to)...)
	}
	return out
}

// Combine lists every stored expense plus the projections of its recurring,
// active subset, most recent first.
func Combine(stored []core.Expense, from, to core.Date) []core.ExpenseView {
	return Merge(stored, ProjectMany(stored, from, to))
}

// Merge tags stored expenses as real, appends the projections and sorts the
// result by date descending. Entries on the same date keep their relative order.
func Merge(stored []core.Expense, projected []core.ExpenseView) []core.ExpenseView {
	out := make([]core.ExpenseView, 0, len(stored)+len(projected))
	for _, e := range stored {
		out = append(out, core.ExpenseView{Expense: e})
	}
	out = append(out, projected...)

	slices.SortStableFunc(out, func(a, b core.ExpenseView) int {
		return b.Date.Compare(a.Date.Time)
	})
	return out
}

// Totals sums the combined listing split by real and projected entries.
func Totals(stored []core.Expense, from, to core.Date) core.Summary {
	return Summarize(Combine(stored, from, to))
}

// Summarize sums amounts of a combined listing. Missing amounts count as zero.
func Summarize(entries []core.ExpenseView) core.Summary {
	actual, projected := decimal.Zero, decimal.Zero
	for _, e := range entries {
		if e.IsProjection {
			projected = projected.Add(e.AmountOrZero())
		} else {
			actual = actual.Add(e.AmountOrZero())
		}
	}
	return core.Summary{
		TotalReal:      actual,
		TotalProjected: projected,
		Total:          actual.Add(projected),
	}
}
