package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmehdipour/orderdesk/internal/app"
	"github.com/jmehdipour/orderdesk/internal/cache"
	"github.com/jmehdipour/orderdesk/internal/config"
	httpSrv "github.com/jmehdipour/orderdesk/internal/http"
	"github.com/jmehdipour/orderdesk/internal/logger"
	"github.com/jmehdipour/orderdesk/internal/metrics"
	"github.com/jmehdipour/orderdesk/internal/repository"
	"github.com/jmehdipour/orderdesk/internal/service/queue"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		log := logger.Init(cfg.Log.Level)
		defer func() { _ = log.Sync() }()

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

		var runs httpSrv.ExportHistory
		if cfg.Export.History {
			chDB, err := app.OpenClickHouse(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = chDB.Close() }()
			runs = repository.NewExportRunsRepository(chDB)
		}

		producer := app.NewExportProducer(cfg)
		defer func() { _ = producer.Close() }()

		metrics.MustRegister(prometheus.DefaultRegisterer)

		server := httpSrv.NewServer(cfg, httpSrv.Deps{
			Users:    repository.NewUsersRepository(mysqlDB),
			Queue:    queue.New(producer),
			Status:   cache.NewStatusStore(redisClient),
			Runs:     runs,
			Notifier: app.NewNotifier(cfg, log),
			Redis:    redisClient,
			Log:      log,
		})

		errCh := make(chan error, 1)
		go func() {
			errCh <- server.Start(cfg.HTTP.Addr)
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-sigCh:
			log.Info("signal received, shutting down", zap.String("signal", sig.String()))
		case err := <-errCh:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("http server exited", zap.Error(err))
			}
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)

		return nil
	},
}
