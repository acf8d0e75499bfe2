package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/maauso/slideshow/internal/media"
)

// ErrS3NotConfigured is returned when publishing is attempted
// without a bucket.
var ErrS3NotConfigured = errors.New("S3 storage is not configured")

// DefaultTempDirName is the directory created under os.TempDir() when no
// temp directory is configured.
const DefaultTempDirName = "slideshow"

var (
	_ Storage         = (*LocalStorage)(nil)
	_ media.TempStore = (*LocalStorage)(nil)
)

// LocalStorage keeps scratch files in a local directory. It cannot publish.
type LocalStorage struct {
	tempDir string
}

// NewLocalStorage creates a LocalStorage rooted at tempDir, creating the
// directory when needed. An empty tempDir selects os.TempDir()/slideshow.
func NewLocalStorage(tempDir string) (*LocalStorage, error) {
	if tempDir == "" {
		tempDir = filepath.Join(os.TempDir(), DefaultTempDirName)
	}

	if err := os.MkdirAll(tempDir, 0750); err != nil {
		return nil, fmt.Errorf("create temp directory: %w", err)
	}

	return &LocalStorage{tempDir: tempDir}, nil
}

// TempDir returns the temporary directory path.
func (s *LocalStorage) TempDir() string {
	return s.tempDir
}

// SaveTemp writes data to a new file named after name with a unique suffix.
// A partially written file is removed.
func (s *LocalStorage) SaveTemp(ctx context.Context, name string, data io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("context cancelled: %w", err)
	}

	f, err := os.CreateTemp(s.tempDir, name+"_*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	fileName := f.Name()
	_, copyErr := io.Copy(f, data)
	closeErr := f.Close()
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(fileName)
		if copyErr != nil {
			return "", fmt.Errorf("write temp file: %w", copyErr)
		}
		return "", fmt.Errorf("close temp file: %w", closeErr)
	}

	return fileName, nil
}

// CleanupTemp removes the specified temporary files.
// Missing files are ignored; the first other error is returned after
// every path has been tried.
func (s *LocalStorage) CleanupTemp(ctx context.Context, paths []string) error {
	var firstErr error
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("context cancelled: %w", err)
		}

		if err := os.Remove(p); err != nil && !os.IsNotExist(err) && firstErr == nil {
			firstErr = fmt.Errorf("remove temp file %s: %w", p, err)
		}
	}
	return firstErr
}

// Publish is not supported by LocalStorage and returns ErrS3NotConfigured.
func (s *LocalStorage) Publish(_ context.Context, _ string, _ io.Reader) (string, error) {
	return "", ErrS3NotConfigured
}
