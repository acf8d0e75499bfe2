// Package scan lists the media files of a slideshow folder.
package scan

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Files returns every readable, non-hidden regular file under dir,
// recursively, sorted by path. Hidden directories are skipped entirely.
// A missing dir yields an empty list.
func Files(dir string) ([]string, error) {
	dir = filepath.Clean(dir)
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}

	files := make([]string, 0, 64)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			// Unreadable subdirectories are skipped, the root is not.
			if path != dir && errors.Is(walkErr, fs.ErrPermission) {
				return filepath.SkipDir
			}
			return walkErr
		}

		if path != dir && isHidden(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if !readable(path) {
			return nil
		}

		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

func readable(path string) bool {
	f, err := os.Open(path) // #nosec G304 - path comes from walking the slideshow folder
	if err != nil {
		return false
	}
	_ = f.Close()
	return true
}
