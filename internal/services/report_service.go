package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"gastos/internal/cache"
	"gastos/internal/core"
	"gastos/internal/log"
)

// ErrInvalidWindow is returned when a report window is empty or reversed.
var ErrInvalidWindow = errors.New("invalid window: desde must not be after hasta")

// ExpenseSource is the read side of the expense store used for reports.
type ExpenseSource interface {
	ListExpenses(ctx context.Context, from, to core.Date) ([]core.Expense, error)
	ListRecurringTemplates(ctx context.Context, until core.Date) ([]core.Expense, error)
}

// ReportService builds combined real + projected listings for a date window.
type ReportService struct {
	source ExpenseSource
	cache  cache.Cache[core.Report]
	group  singleflight.Group
	// generation changes on every Invalidate and is part of every cache and
	// singleflight key, so reports built before an Invalidate are unreachable.
	generation atomic.Uint64
	logger     *log.Logger
}

// NewReportService creates a report service. A nil cache disables caching.
func NewReportService(source ExpenseSource, reportCache cache.Cache[core.Report], logger *log.Logger) *ReportService {
	if logger == nil {
		logger = log.Discard()
	}
	return &ReportService{
		source: source,
		cache:  reportCache,
		logger: logger.WithComponent(log.ComponentReport),
	}
}

// Build returns the report for [from, to]: stored expenses dated in the window
// plus projections of every active recurring template anchored up to to.
func (s *ReportService) Build(ctx context.Context, from, to core.Date) (core.Report, error) {
	if from.IsZero() || to.IsZero() || from.After(to.Time) {
		return core.Report{}, fmt.Errorf("%w: %s..%s", ErrInvalidWindow, from, to)
	}

	key := strconv.FormatUint(s.generation.Load(), 10) + "/" + from.String() + ".." + to.String()

	if s.cache != nil {
		if r, ok := s.cache.Get(key); ok {
			s.logger.DebugContext(ctx, "Report served from cache", log.FieldWindowFrom, from.String(), log.FieldWindowTo, to.String())
			return cloneReport(r), nil
		}
	}

	v, err, shared := s.group.Do(key, func() (any, error) {
		// One caller giving up must not fail the others sharing this build.
		r, err := s.build(context.WithoutCancel(ctx), from, to)
		if err != nil {
			return core.Report{}, err
		}
		if s.cache != nil {
			s.cache.Set(key, r)
		}
		return r, nil
	})
	if err != nil {
		return core.Report{}, err
	}
	if shared {
		s.logger.DebugContext(ctx, "Report build shared with concurrent caller", log.FieldWindowFrom, from.String())
	}
	return cloneReport(v.(core.Report)), nil
}

func (s *ReportService) build(ctx context.Context, from, to core.Date) (core.Report, error) {
	start := time.Now()

	var stored, templates []core.Expense
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		stored, err = s.source.ListExpenses(gctx, from, to)
		if err != nil {
			return fmt.Errorf("list expenses: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		templates, err = s.source.ListRecurringTemplates(gctx, to)
		if err != nil {
			return fmt.Errorf("list recurring templates: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		s.logger.ErrorContext(ctx, "Failed to load expenses for report",
			log.FieldError, err, log.FieldWindowFrom, from.String(), log.FieldWindowTo, to.String())
		return core.Report{}, err
	}

	entries := Merge(stored, ProjectMany(templates, from, to))
	r := core.Report{
		From:    from,
		To:      to,
		Entries: entries,
		Summary: Summarize(entries),
	}

	fields := log.NewFields().WithReport(r).WithOperation(log.OpProject)
	fields[log.FieldDuration] = time.Since(start).Milliseconds()
	s.logger.InfoContext(ctx, "Report built", fields.ToSlice()...)

	return r, nil
}

// Invalidate drops every cached report.
func (s *ReportService) Invalidate() {
	s.generation.Add(1)
	if s.cache == nil {
		return
	}
	if n := s.cache.Purge(); n > 0 {
		s.logger.Info("Report cache invalidated", "evicted", n)
	}
}

// cloneReport gives callers their own entries slice so cached reports stay intact.
func cloneReport(r core.Report) core.Report {
	r.Entries = slices.Clone(r.Entries)
	return r
}
