package core

import "github.com/shopspring/decimal"

// Summary splits the amount of a combined listing by origin.
type Summary struct {
	TotalReal      decimal.Decimal `json:"totalReal"`
	TotalProjected decimal.Decimal `json:"totalProjected"`
	Total          decimal.Decimal `json:"total"`
}

// Report is a combined listing for an inclusive date window.
type Report struct {
	From    Date          `json:"desde"`
	To      Date          `json:"hasta"`
	Entries []ExpenseView `json:"gastos"`
	Summary Summary       `json:"totales"`
}

// Projections returns only the projected entries of the report.
func (r Report) Projections() []ExpenseView {
	out := make([]ExpenseView, 0, len(r.Entries))
	for _, e := range r.Entries {
		if e.IsProjection {
			out = append(out, e)
		}
	}
	return out
}
