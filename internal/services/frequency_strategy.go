// Package services provides business logic and orchestration services.
//
// This file implements the Strategy Pattern for advancing a recurring
// expense's anchor date. Each frequency tag has its own advancer that knows
// how far one occurrence moves the calendar.

package services

import (
	"gastos/internal/core"
)

// Advancer is the strategy interface for computing occurrence dates.
type Advancer interface {
	// Advance returns the date of the n-th occurrence after anchor (n >= 1).
	Advance(anchor core.Date, n int) core.Date
}

// MonthsAdvancer moves the anchor by a fixed number of calendar months per occurrence.
type MonthsAdvancer struct {
	Months int
}

// Advance adds n*Months calendar months. Day overflow rolls into the next month.
func (a MonthsAdvancer) Advance(anchor core.Date, n int) core.Date {
	return anchor.AddDate(0, n*a.Months, 0)
}

// YearsAdvancer moves the anchor by calendar years.
type YearsAdvancer struct {
	Years int
}

// Advance adds n*Years calendar years. Feb 29 rolls to Mar 1 in common years.
func (a YearsAdvancer) Advance(anchor core.Date, n int) core.Date {
	return anchor.AddDate(n*a.Years, 0, 0)
}

// DaysAdvancer moves the anchor by calendar days.
type DaysAdvancer struct {
	Days int
}

// Advance adds n*Days calendar days.
func (a DaysAdvancer) Advance(anchor core.Date, n int) core.Date {
	return anchor.AddDate(0, 0, n*a.Days)
}

// advancers maps frequencies to their strategy. Tags that are missing or
// not recognized advance monthly.
var advancers = map[core.Frequency]Advancer{
	core.FrequencyMonthly:    MonthsAdvancer{Months: 1},
	core.FrequencyQuarterly:  MonthsAdvancer{Months: 3},
	core.FrequencySemiannual: MonthsAdvancer{Months: 6},
	core.FrequencyAnnual:     YearsAdvancer{Years: 1},
	core.FrequencyWeekly:     DaysAdvancer{Days: 7},
	core.FrequencyBiweekly:   DaysAdvancer{Days: 15},

	core.FrequencyUnrecognized: MonthsAdvancer{Months: 1},
	core.FrequencyNone:         MonthsAdvancer{Months: 1},
}

// GetAdvancer returns the advancer registered for a frequency, falling back
// to the monthly advancer.
func GetAdvancer(frequency core.Frequency) Advancer {
	if a, ok := advancers[frequency]; ok {
		return a
	}
	return advancers[core.FrequencyMonthly]
}

// RegisterAdvancer registers a custom advancer for a frequency.
// Not safe to call while projections are running.
func RegisterAdvancer(frequency core.Frequency, advancer Advancer) {
	advancers[frequency] = advancer
}

// Advance computes the calendar date of the iteration-th occurrence after anchor.
func Advance(anchor core.Date, frequency core.Frequency, iteration int) core.Date {
	return GetAdvancer(frequency).Advance(anchor, iteration)
}
