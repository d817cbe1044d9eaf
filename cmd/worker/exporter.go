package worker

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmehdipour/orderdesk/internal/app"
	"github.com/jmehdipour/orderdesk/internal/config"
	"github.com/jmehdipour/orderdesk/internal/logger"
	"github.com/jmehdipour/orderdesk/internal/metrics"
	"github.com/jmehdipour/orderdesk/internal/repository"
	"github.com/jmehdipour/orderdesk/internal/service/queue"
	"github.com/jmehdipour/orderdesk/internal/worker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var exporterCmd = &cobra.Command{
	Use:   "exporter",
	Short: "Run the order export worker",
	RunE:  runExporter,
}

func runExporter(cmd *cobra.Command, args []string) error {
	// 1) load config
	cfgPath, _ := cmd.Root().PersistentFlags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.Init(cfg.Log.Level)
	defer func() { _ = log.Sync() }()

	metrics.MustRegister(prometheus.DefaultRegisterer)

	// 2) graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3) stores
	mysqlDB, err := app.OpenMySQL(cfg)
	if err != nil {
		return err
	}
	defer mysqlDB.Close()

	redisClient, err := app.OpenRedis(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = redisClient.Close() }()

	var runs worker.RunRecorder
	if cfg.Export.History {
		chDB, err := app.OpenClickHouse(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = chDB.Close() }()
		runs = repository.NewExportRunsRepository(chDB)
	}

	// 4) job
	job, err := app.NewOrdersJob(ctx, cfg, mysqlDB, redisClient, log)
	if err != nil {
		return err
	}

	// 5) kafka
	consumer := app.NewExportConsumer(cfg, log)
	defer consumer.Close()
	producer := app.NewExportProducer(cfg)
	defer func() { _ = producer.Close() }()

	w := worker.NewExporter(consumer, queue.New(producer), job, runs, log)

	// tune knobs
	if cfg.Export.WorkerCount > 0 {
		w.Workers = cfg.Export.WorkerCount
	}
	if cfg.Export.MaxAttempts > 0 {
		w.MaxAttempts = cfg.Export.MaxAttempts
	}
	if cfg.Export.RetryBackoff > 0 {
		w.RetryBackoff = cfg.Export.RetryBackoff
	}

	log.Info("exporter started",
		zap.String("topic", app.ExportTopic(cfg)),
		zap.Int("workers", w.Workers),
		zap.Int("max_attempts", w.MaxAttempts),
		zap.Duration("retry_backoff", w.RetryBackoff),
	)

	return w.Run(ctx)
}
