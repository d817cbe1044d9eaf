package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmehdipour/orderdesk/internal/app"
	"github.com/jmehdipour/orderdesk/internal/config"
	"github.com/jmehdipour/orderdesk/internal/logger"
	"github.com/jmehdipour/orderdesk/internal/notification"
	"github.com/jmehdipour/orderdesk/internal/repository"
	"github.com/jmehdipour/orderdesk/internal/util"
	"github.com/spf13/cobra"
)

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Send notifications",
}

var notifyWhatsAppOpts struct {
	to       string
	userID   int64
	template string
	language string
	message  string
	url      string
}

var notifyWhatsAppCmd = &cobra.Command{
	Use:   "whatsapp",
	Short: "Send an order update template over WhatsApp",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		log := logger.Init(cfg.Log.Level)
		defer func() { _ = log.Sync() }()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		phone := notifyWhatsAppOpts.to
		if phone == "" && notifyWhatsAppOpts.userID > 0 {
			mysqlDB, err := app.OpenMySQL(cfg)
			if err != nil {
				return err
			}
			defer mysqlDB.Close()

			u, err := repository.NewUsersRepository(mysqlDB).GetByID(ctx, notifyWhatsAppOpts.userID)
			if err != nil {
				return fmt.Errorf("load user: %w", err)
			}
			if u == nil {
				return fmt.Errorf("user %d not found", notifyWhatsAppOpts.userID)
			}
			phone = u.Mobile
		}
		if phone == "" {
			return errors.New("either --to or --user-id with a mobile number is required")
		}

		to := notification.Recipient{Phone: util.NormalizePhone(phone, cfg.WhatsApp.DefaultCountry)}
		err = app.NewNotifier(cfg, log).Send(ctx, to, notification.OrderUpdateNotification{
			Message:  notifyWhatsAppOpts.message,
			URL:      notifyWhatsAppOpts.url,
			Template: notifyWhatsAppOpts.template,
			Language: notifyWhatsAppOpts.language,
		})
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "sent to %s\n", to.Phone)
		return nil
	},
}

func init() {
	f := notifyWhatsAppCmd.Flags()
	f.StringVar(&notifyWhatsAppOpts.to, "to", "", "recipient phone number")
	f.Int64Var(&notifyWhatsAppOpts.userID, "user-id", 0, "send to this user's mobile number")
	f.StringVar(&notifyWhatsAppOpts.template, "template", "order_update", "approved template name")
	f.StringVar(&notifyWhatsAppOpts.language, "language", "en", "template language code")
	f.StringVar(&notifyWhatsAppOpts.message, "message", "", "first body parameter")
	f.StringVar(&notifyWhatsAppOpts.url, "url", "", "second body parameter")
	notifyCmd.AddCommand(notifyWhatsAppCmd)
}
