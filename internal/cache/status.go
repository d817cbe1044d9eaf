// Package cache holds the short-lived export status records callers poll.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmehdipour/orderdesk/internal/model"
	"github.com/redis/go-redis/v9"
)

// StatusStore keeps model.ExportStatus values as JSON strings with a TTL.
type StatusStore struct {
	rdb redis.Cmdable
}

func NewStatusStore(rdb redis.Cmdable) *StatusStore {
	return &StatusStore{rdb: rdb}
}

// Put overwrites any previous status under key.
func (s *StatusStore) Put(ctx context.Context, key string, st model.ExportStatus, ttl time.Duration) error {
	b, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal export status: %w", err)
	}
	if err := s.rdb.Set(ctx, key, b, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Get returns (nil, nil) when the key is absent or expired.
func (s *StatusStore) Get(ctx context.Context, key string) (*model.ExportStatus, error) {
	b, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}

	var st model.ExportStatus
	if err := json.Unmarshal(b, &st); err != nil {
		return nil, fmt.Errorf("decode export status %s: %w", key, err)
	}
	return &st, nil
}
