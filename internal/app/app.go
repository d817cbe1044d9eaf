// Package app assembles components from config for the commands.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jmehdipour/orderdesk/internal/cache"
	"github.com/jmehdipour/orderdesk/internal/config"
	"github.com/jmehdipour/orderdesk/internal/csvwriter"
	"github.com/jmehdipour/orderdesk/internal/db"
	"github.com/jmehdipour/orderdesk/internal/export"
	"github.com/jmehdipour/orderdesk/internal/kafka"
	"github.com/jmehdipour/orderdesk/internal/notification"
	"github.com/jmehdipour/orderdesk/internal/repository"
	"github.com/jmehdipour/orderdesk/internal/service/queue"
	"github.com/jmehdipour/orderdesk/internal/storage"
	"github.com/jmehdipour/orderdesk/internal/whatsapp"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func OpenMySQL(cfg config.Config) (*sqlx.DB, error) {
	d, err := db.NewMySQLConnection(cfg.MySQL.DSN, db.PoolOptsFrom(cfg.MySQL))
	if err != nil {
		return nil, fmt.Errorf("mysql connect: %w", err)
	}
	return d, nil
}

func OpenClickHouse(cfg config.Config) (*sqlx.DB, error) {
	d, err := db.NewClickHouseConnection(cfg.ClickHouse.DSN, db.PoolOptsFrom(cfg.ClickHouse))
	if err != nil {
		return nil, fmt.Errorf("clickhouse connect: %w", err)
	}
	return d, nil
}

func OpenRedis(cfg config.Config) (*redis.Client, error) {
	r, err := db.NewRedisClient(cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("redis connect: %w", err)
	}
	return r, nil
}

// ExportTopic falls back to the default topic when none is configured.
func ExportTopic(cfg config.Config) string {
	if cfg.Kafka.ExportTopic != "" {
		return cfg.Kafka.ExportTopic
	}
	return queue.ExportOrdersKafkaTopic
}

func NewExportConsumer(cfg config.Config, log *zap.Logger) *kafka.Consumer {
	return kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers:        cfg.Kafka.Brokers,
		Topic:          ExportTopic(cfg),
		GroupID:        cfg.Kafka.GroupID,
		MinBytes:       cfg.Kafka.MinBytes,
		MaxBytes:       cfg.Kafka.MaxBytes,
		CommitInterval: time.Duration(cfg.Kafka.CommitInterval) * time.Millisecond,
		Log:            log,
	})
}

func NewExportProducer(cfg config.Config) *kafka.Producer {
	return kafka.NewProducer(cfg.Kafka.Brokers, ExportTopic(cfg))
}

// NewOrdersJob wires the export job to MySQL, the configured disk and the
// Redis status store.
func NewOrdersJob(ctx context.Context, cfg config.Config, mysqlDB *sqlx.DB, rdb redis.Cmdable, log *zap.Logger) (*export.OrdersJob, error) {
	disk, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}

	return export.NewOrdersJob(
		repository.NewOrdersRepository(mysqlDB),
		csvwriter.New(),
		disk,
		cache.NewStatusStore(rdb),
		log,
		export.Options{
			Label:        cfg.Export.Label,
			BatchSize:    cfg.Export.BatchSize,
			StatusTTL:    cfg.Export.StatusTTL,
			Production:   cfg.App.IsProduction(),
			TenantDomain: cfg.App.TenantDomain,
			Location:     cfg.App.Location(),
		},
	), nil
}

func NewWhatsAppClient(cfg config.WhatsAppConfig) (*whatsapp.Client, error) {
	return whatsapp.NewClient(whatsapp.Config{
		PhoneNumberID:     cfg.PhoneNumberID,
		AccessToken:       cfg.AccessToken,
		BusinessAccountID: cfg.BusinessAccountID,
		BaseURL:           cfg.BaseURL,
		APIVersion:        cfg.APIVersion,
		Timeout:           time.Duration(cfg.TimeoutMs) * time.Millisecond,
		FailThreshold:     cfg.Breaker.FailThreshold,
		OpenFor:           time.Duration(cfg.Breaker.OpenForMs) * time.Millisecond,
	})
}

// NewNotifier registers every channel that is configured. An unconfigured
// WhatsApp account leaves the channel out; sends to it then fail with
// notification.ErrUnknownChannel.
func NewNotifier(cfg config.Config, log *zap.Logger) *notification.Dispatcher {
	d := notification.NewDispatcher()

	client, err := NewWhatsAppClient(cfg.WhatsApp)
	if err != nil {
		log.Warn("whatsapp channel disabled", zap.Error(err))
		return d
	}
	return d.Register(notification.ChannelWhatsApp, notification.NewWhatsAppChannel(client, log))
}
