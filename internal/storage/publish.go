package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// PublishFile uploads the video at path as <runID><ext> and returns its URL.
func PublishFile(ctx context.Context, s Storage, path, runID string) (string, error) {
	f, err := os.Open(path) // #nosec G304 - path is the rendered output file
	if err != nil {
		return "", fmt.Errorf("open video: %w", err)
	}
	defer func() { _ = f.Close() }()

	ext := filepath.Ext(path)
	if ext == "" {
		ext = ".mp4"
	}
	return s.Publish(ctx, runID+ext, f)
}
