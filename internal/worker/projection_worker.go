package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"gastos/internal/amqp"
	"gastos/internal/core"
	"gastos/internal/log"
)

// ReportBuilder builds the combined report for a window.
type ReportBuilder interface {
	Build(ctx context.Context, from, to core.Date) (core.Report, error)
}

// SummaryPublisher announces the outcome of a run.
type SummaryPublisher interface {
	PublishProjectionSummary(ctx context.Context, msg *amqp.ProjectionSummaryMessage) error
}

// Exporter is a report sink such as a spreadsheet.
type Exporter interface {
	Name() string
	Export(ctx context.Context, r core.Report) error
}

type Config struct {
	// Schedule is a standard five-field cron expression.
	Schedule      string
	HorizonMonths int
	Location      *time.Location
}

// ProjectionWorker periodically builds the report for the upcoming horizon
// and pushes it to every configured sink.
type ProjectionWorker struct {
	cfg       Config
	reports   ReportBuilder
	publisher SummaryPublisher
	exporters []Exporter
	logger    *log.Logger
}

// NewProjectionWorker creates a worker. publisher may be nil.
func NewProjectionWorker(cfg Config, reports ReportBuilder, publisher SummaryPublisher, exporters []Exporter, logger *log.Logger) *ProjectionWorker {
	if logger == nil {
		logger = log.Discard()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.HorizonMonths < 1 {
		cfg.HorizonMonths = 1
	}
	return &ProjectionWorker{
		cfg:       cfg,
		reports:   reports,
		publisher: publisher,
		exporters: exporters,
		logger:    logger.WithComponent(log.ComponentWorker),
	}
}

// Window returns [today, today + horizon months - 1 day] in loc.
func Window(now time.Time, loc *time.Location, horizonMonths int) (core.Date, core.Date) {
	today := core.DateOf(now.In(loc))
	return today, today.AddDate(0, horizonMonths, -1)
}

// RunOnce builds the report for the horizon starting at now and hands it to
// the publisher and every exporter. A failing sink is logged and does not
// stop the others; all sink errors are returned joined.
func (w *ProjectionWorker) RunOnce(ctx context.Context, now time.Time) (core.Report, error) {
	from, to := Window(now, w.cfg.Location, w.cfg.HorizonMonths)

	r, err := w.reports.Build(ctx, from, to)
	if err != nil {
		w.logger.ErrorContext(ctx, "Projection run failed",
			log.FieldError, err, log.FieldWindowFrom, from.String(), log.FieldWindowTo, to.String())
		return core.Report{}, fmt.Errorf("build report: %w", err)
	}

	var errs []error
	if w.publisher != nil {
		if err := w.publisher.PublishProjectionSummary(ctx, amqp.NewProjectionSummaryMessage(r)); err != nil {
			w.logger.ErrorContext(ctx, "Failed to publish projection summary", log.FieldError, err)
			errs = append(errs, fmt.Errorf("publish summary: %w", err))
		}
	}

	for _, exp := range w.exporters {
		if err := exp.Export(ctx, r); err != nil {
			w.logger.ErrorContext(ctx, "Report export failed", "exporter", exp.Name(), log.FieldError, err)
			errs = append(errs, fmt.Errorf("export %s: %w", exp.Name(), err))
		}
	}

	w.logger.InfoContext(ctx, "Projection run completed",
		append(log.NewFields().WithReport(r).ToSlice(), "sink_errors", len(errs))...)

	return r, errors.Join(errs...)
}

// Run schedules RunOnce on the configured cron expression and blocks until
// ctx is cancelled, then waits for a running job to finish.
func (w *ProjectionWorker) Run(ctx context.Context) error {
	cl := cronLogger{w.logger}
	c := cron.New(
		cron.WithLocation(w.cfg.Location),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	if _, err := c.AddFunc(w.cfg.Schedule, func() {
		w.RunOnce(ctx, time.Now())
	}); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", w.cfg.Schedule, err)
	}

	c.Start()
	w.logger.Info("Projection worker started",
		"schedule", w.cfg.Schedule,
		"horizon_months", w.cfg.HorizonMonths,
		"timezone", w.cfg.Location.String())

	<-ctx.Done()
	w.logger.Info("Projection worker stopping", log.FieldOperation, log.OpShutdown)
	<-c.Stop().Done()
	return nil
}

// cronLogger routes cron's own messages into the structured logger.
type cronLogger struct {
	logger *log.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append([]any{log.FieldError, err}, keysAndValues...)...)
}
