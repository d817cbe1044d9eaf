package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LocalDisk stores files below Root and serves them from BaseURL.
type LocalDisk struct {
	root    string
	baseURL string
}

func NewLocalDisk(root, baseURL string) (*LocalDisk, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("local storage: empty root")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("local storage root: %w", err)
	}
	return &LocalDisk{root: abs, baseURL: baseURL}, nil
}

func (d *LocalDisk) Put(ctx context.Context, path string, data []byte, vis Visibility) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	full, err := d.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", path, err)
	}

	mode := os.FileMode(0o600)
	if vis == VisibilityPublic {
		mode = 0o644
	}
	if err := os.WriteFile(full, data, mode); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	// WriteFile keeps the mode of an existing file
	return os.Chmod(full, mode)
}

func (d *LocalDisk) URL(path string) string {
	return joinURL(d.baseURL, path)
}

// resolve keeps path inside root.
func (d *LocalDisk) resolve(path string) (string, error) {
	full := filepath.Join(d.root, filepath.FromSlash(path))
	rel, err := filepath.Rel(d.root, full)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("local storage: path %q escapes root", path)
	}
	return full, nil
}
