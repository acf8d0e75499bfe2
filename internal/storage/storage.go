// Package storage keeps the scratch files of a render and publishes
// finished videos. LocalStorage spills embedded motion-photo streams to
// disk; S3Storage adds publishing to an S3 bucket.
package storage

import (
	"context"
	"io"
)

// Storage defines the interface for scratch files and video publishing.
type Storage interface {
	// SaveTemp saves data to a temporary file and returns the file path.
	// The name parameter is used as a hint for the filename.
	SaveTemp(ctx context.Context, name string, data io.Reader) (path string, err error)

	// CleanupTemp removes the specified temporary files.
	// It continues cleanup even if some files fail to delete.
	CleanupTemp(ctx context.Context, paths []string) error

	// Publish uploads a finished video under name and returns its URL.
	// Returns ErrS3NotConfigured if no bucket is configured.
	Publish(ctx context.Context, name string, data io.Reader) (url string, err error)
}
