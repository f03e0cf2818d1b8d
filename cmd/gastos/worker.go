package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"gastos/internal/cli"
	"gastos/internal/log"
	"gastos/internal/services"
	"gastos/internal/worker"
)

var flagOnce bool

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Publish and export the projection for the upcoming months on a schedule",
	RunE:  runWorker,
}

func init() {
	workerCmd.Flags().BoolVar(&flagOnce, "once", false, "Run a single projection now and exit")
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, _ []string) error {
	ctx, cancel := cli.SignalContext(cmd.Context(), logger)
	defer cancel()

	res, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer res.Cleanup()

	sinks, err := exporters(ctx)
	if err != nil {
		return err
	}

	var publisher worker.SummaryPublisher
	mq, err := openAMQP()
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
	} else if mq != nil {
		defer mq.Close()
		publisher = mq
	}

	if publisher == nil && len(sinks) == 0 {
		logger.Warn("No sinks configured: set AMQP_URL, EXPORT_DIR or GOOGLE_SPREADSHEET_ID")
	}

	w := worker.NewProjectionWorker(worker.Config{
		Schedule:      cfg.ProjectionSchedule,
		HorizonMonths: cfg.ProjectionHorizonMonths,
		Location:      cfg.Location(),
	}, services.NewReportService(res.Store, nil, logger), publisher, sinks, logger)

	if flagOnce {
		r, err := w.RunOnce(ctx, time.Now())
		if r.From.IsZero() {
			return err
		}
		fmt.Print(renderSummary(r.From, r.To, len(r.Entries), r.Summary))
		return err
	}
	return w.Run(ctx)
}
