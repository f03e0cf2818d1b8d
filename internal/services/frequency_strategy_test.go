package services

import (
	"testing"

	"gastos/internal/core"
)

func TestAdvance(t *testing.T) {
	anchor := core.NewDate(2024, 1, 15)

	tests := []struct {
		name      string
		frequency core.Frequency
		iteration int
		want      core.Date
	}{
		{"monthly first", core.FrequencyMonthly, 1, core.NewDate(2024, 2, 15)},
		{"monthly across year", core.FrequencyMonthly, 12, core.NewDate(2025, 1, 15)},
		{"quarterly", core.FrequencyQuarterly, 2, core.NewDate(2024, 7, 15)},
		{"semiannual", core.FrequencySemiannual, 1, core.NewDate(2024, 7, 15)},
		{"annual", core.FrequencyAnnual, 3, core.NewDate(2027, 1, 15)},
		{"weekly", core.FrequencyWeekly, 2, core.NewDate(2024, 1, 29)},
		{"biweekly is fifteen days", core.FrequencyBiweekly, 2, core.NewDate(2024, 2, 14)},
		{"unrecognized falls back to monthly", core.FrequencyUnrecognized, 1, core.NewDate(2024, 2, 15)},
		{"none falls back to monthly", core.FrequencyNone, 2, core.NewDate(2024, 3, 15)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Advance(anchor, tt.frequency, tt.iteration)
			if !got.Equal(tt.want.Time) {
				t.Errorf("Advance(%s, %s, %d) = %s, want %s", anchor, tt.frequency, tt.iteration, got, tt.want)
			}
		})
	}
}

func TestAdvanceDoesNotMutateAnchor(t *testing.T) {
	anchor := core.NewDate(2024, 1, 15)
	_ = Advance(anchor, core.FrequencyAnnual, 5)
	if !anchor.Equal(core.NewDate(2024, 1, 15).Time) {
		t.Fatalf("anchor changed to %s", anchor)
	}
}

// Month-end anchors roll forward instead of clamping to the last day.
func TestAdvanceMonthEndOverflow(t *testing.T) {
	anchor := core.NewDate(2024, 1, 31)

	tests := []struct {
		iteration int
		want      core.Date
	}{
		{1, core.NewDate(2024, 3, 2)},
		{2, core.NewDate(2024, 3, 31)},
		{3, core.NewDate(2024, 5, 1)},
	}
	for _, tt := range tests {
		got := Advance(anchor, core.FrequencyMonthly, tt.iteration)
		if !got.Equal(tt.want.Time) {
			t.Errorf("Advance(2024-01-31, MENSUAL, %d) = %s, want %s", tt.iteration, got, tt.want)
		}
	}

	leap := core.NewDate(2024, 2, 29)
	if got := Advance(leap, core.FrequencyAnnual, 1); !got.Equal(core.NewDate(2025, 3, 1).Time) {
		t.Errorf("Advance(2024-02-29, ANUAL, 1) = %s, want 2025-03-01", got)
	}
}

func TestAdvanceIsStrictlyIncreasing(t *testing.T) {
	anchor := core.NewDate(2023, 6, 10)
	frequencies := []core.Frequency{
		core.FrequencyMonthly,
		core.FrequencyQuarterly,
		core.FrequencySemiannual,
		core.FrequencyAnnual,
		core.FrequencyWeekly,
		core.FrequencyBiweekly,
	}

	for _, f := range frequencies {
		t.Run(f.String(), func(t *testing.T) {
			prev := anchor
			for i := 1; i <= MaxOccurrences; i++ {
				next := Advance(anchor, f, i)
				if !next.After(prev.Time) {
					t.Fatalf("iteration %d: %s is not after %s", i, next, prev)
				}
				prev = next
			}
		})
	}
}

func TestGetAdvancer(t *testing.T) {
	if _, ok := GetAdvancer(core.FrequencyWeekly).(DaysAdvancer); !ok {
		t.Error("GetAdvancer(SEMANAL) should be a DaysAdvancer")
	}
	if a, ok := GetAdvancer(core.Frequency("UNREGISTERED")).(MonthsAdvancer); !ok || a.Months != 1 {
		t.Error("GetAdvancer() for an unregistered frequency should fall back to monthly")
	}
}

func TestRegisterAdvancer(t *testing.T) {
	custom := core.Frequency("BIMESTRAL")
	RegisterAdvancer(custom, MonthsAdvancer{Months: 2})
	defer delete(advancers, custom)

	got := Advance(core.NewDate(2024, 1, 15), custom, 1)
	if !got.Equal(core.NewDate(2024, 3, 15).Time) {
		t.Errorf("Advance() with registered advancer = %s, want 2024-03-15", got)
	}
}
