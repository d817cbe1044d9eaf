// Package storage writes export artifacts to a blob store and hands out the
// URLs they can be downloaded from.
package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmehdipour/orderdesk/internal/config"
)

type Visibility string

const (
	VisibilityPublic  Visibility = "public-read"
	VisibilityPrivate Visibility = "private"
)

// Disk is a write-only view of a blob store.
type Disk interface {
	Put(ctx context.Context, path string, data []byte, vis Visibility) error
	URL(path string) string
}

// New picks the driver named in config.
func New(ctx context.Context, cfg config.StorageConfig) (Disk, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "s3":
		return NewS3Disk(ctx, cfg.S3)
	case "", "local":
		return NewLocalDisk(cfg.Local.Root, cfg.Local.BaseURL)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}
