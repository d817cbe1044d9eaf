package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmehdipour/orderdesk/internal/app"
	"github.com/jmehdipour/orderdesk/internal/config"
	"github.com/jmehdipour/orderdesk/internal/logger"
	"github.com/jmehdipour/orderdesk/internal/model"
	"github.com/jmehdipour/orderdesk/internal/util"
	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Run exports in the foreground",
}

var exportOrdersOpts struct {
	requesterID int64
	search      string
	sort        string
	dateRange   string
}

var exportOrdersCmd = &cobra.Command{
	Use:   "orders",
	Short: "Export orders to CSV now and print the file URL",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		log := logger.Init(cfg.Log.Level)
		defer func() { _ = log.Sync() }()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

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

		job, err := app.NewOrdersJob(ctx, cfg, mysqlDB, redisClient, log)
		if err != nil {
			return err
		}

		params := map[string]string{}
		for k, v := range map[string]string{
			"search":     exportOrdersOpts.search,
			"sort":       exportOrdersOpts.sort,
			"date_range": exportOrdersOpts.dateRange,
		} {
			if v != "" {
				params[k] = v
			}
		}

		req := model.ExportRequest{
			RequesterID: exportOrdersOpts.requesterID,
			Params:      params,
			ExportID:    util.NewID(),
		}
		res, err := job.Handle(ctx, req)
		if err != nil {
			return fmt.Errorf("export %s: %w", req.ExportID, err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "export_id=%s rows=%d url=%s\n", req.ExportID, res.Rows, res.URL)
		return nil
	},
}

func init() {
	f := exportOrdersCmd.Flags()
	f.Int64Var(&exportOrdersOpts.requesterID, "user-id", 0, "requester id the status record is keyed by")
	f.StringVar(&exportOrdersOpts.search, "search", "", "match order number, buyer name or buyer email")
	f.StringVar(&exportOrdersOpts.sort, "sort", "", "sort field, prefix with - for descending")
	f.StringVar(&exportOrdersOpts.dateRange, "date-range", "", `"YYYY-MM-DD" or "YYYY-MM-DD to YYYY-MM-DD"`)
	exportCmd.AddCommand(exportOrdersCmd)
}
