package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmehdipour/orderdesk/internal/model"
	"github.com/jmehdipour/orderdesk/internal/util"
)

const ExportOrdersKafkaTopic = "exports.orders"

type Publisher interface {
	Publish(ctx context.Context, key string, value []byte) error
}

// Service hands export requests to the exporter workers.
type Service struct {
	pub Publisher
	now func() time.Time
}

func New(pub Publisher) *Service {
	return &Service{pub: pub, now: time.Now}
}

// EnqueueExport assigns a new export id and publishes the first attempt.
// The returned id is what callers poll with.
func (s *Service) EnqueueExport(ctx context.Context, requesterID int64, params map[string]string) (string, error) {
	req := model.ExportRequest{
		RequesterID: requesterID,
		Params:      params,
		ExportID:    util.NewID(),
	}
	if err := s.Publish(ctx, model.ExportEnvelope{Request: req}); err != nil {
		return "", err
	}
	return req.ExportID, nil
}

// Publish writes env keyed by export id so every attempt of one export lands
// on the same partition.
func (s *Service) Publish(ctx context.Context, env model.ExportEnvelope) error {
	env.EnqueuedAt = s.now().UTC()

	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	if err := s.pub.Publish(ctx, env.Request.ExportID, payload); err != nil {
		return fmt.Errorf("publish export %s: %w", env.Request.ExportID, err)
	}
	return nil
}
