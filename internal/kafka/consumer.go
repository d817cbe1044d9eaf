package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const DefaultGroupID = "orderdesk-exporter"

type Message = kafka.Message

// ConsumerConfig describes a group reader for one topic. CommitInterval 0
// commits each offset synchronously.
type ConsumerConfig struct {
	Brokers        []string
	Topic          string
	GroupID        string // default DefaultGroupID
	MinBytes       int    // default 1B
	MaxBytes       int    // default 10MB
	CommitInterval time.Duration
	MaxWait        time.Duration // default 250ms
	Log            *zap.Logger
}

// Consumer reads export envelopes for a consumer group. Offsets are committed
// by the caller once an export attempt has settled.
type Consumer struct {
	r     *kafka.Reader
	topic string
}

func NewConsumer(c ConsumerConfig) *Consumer {
	rc := readerConfig(c)
	return &Consumer{r: kafka.NewReader(rc), topic: rc.Topic}
}

func readerConfig(c ConsumerConfig) kafka.ReaderConfig {
	rc := kafka.ReaderConfig{
		Brokers:        c.Brokers,
		Topic:          c.Topic,
		GroupID:        c.GroupID,
		MinBytes:       c.MinBytes,
		MaxBytes:       c.MaxBytes,
		MaxWait:        c.MaxWait,
		CommitInterval: c.CommitInterval,
		// a fresh group picks up exports enqueued before any worker ran
		StartOffset: kafka.FirstOffset,
	}
	if rc.GroupID == "" {
		rc.GroupID = DefaultGroupID
	}
	if rc.MinBytes <= 0 {
		rc.MinBytes = 1
	}
	if rc.MaxBytes <= 0 {
		rc.MaxBytes = 10 << 20
	}
	if rc.MaxWait <= 0 {
		rc.MaxWait = 250 * time.Millisecond
	}
	if rc.CommitInterval < 0 {
		rc.CommitInterval = 0
	}
	if c.Log != nil {
		sl := c.Log.With(zap.String("topic", rc.Topic), zap.String("group", rc.GroupID)).Sugar()
		rc.Logger = kafka.LoggerFunc(sl.Debugf)
		rc.ErrorLogger = kafka.LoggerFunc(sl.Warnf)
	}
	return rc
}

func (c *Consumer) Fetch(ctx context.Context) (Message, error) {
	m, err := c.r.FetchMessage(ctx)
	if err != nil {
		return Message{}, fmt.Errorf("kafka fetch %s: %w", c.topic, err)
	}
	return m, nil
}

func (c *Consumer) Commit(ctx context.Context, m Message) error {
	if err := c.r.CommitMessages(ctx, m); err != nil {
		return fmt.Errorf("kafka commit %s/%d@%d: %w", m.Topic, m.Partition, m.Offset, err)
	}
	return nil
}

func (c *Consumer) Close() error { return c.r.Close() }
