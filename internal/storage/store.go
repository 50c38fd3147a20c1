// Package storage provides sandboxed access to the video asset store.
// All file operations are restricted to the configured base directory to
// prevent path traversal.
package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// AssetStore holds stream media files under a single base directory.
// Playlist item paths are relative to it.
type AssetStore struct {
	baseDir string
}

// NewAssetStore creates an AssetStore rooted at baseDir, creating the
// directory if needed.
func NewAssetStore(baseDir string) (*AssetStore, error) {
	absPath, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("getting absolute path: %w", err)
	}
	if err := os.MkdirAll(absPath, 0750); err != nil {
		return nil, fmt.Errorf("creating base directory: %w", err)
	}
	return &AssetStore{baseDir: absPath}, nil
}

// BaseDir returns the absolute path of the asset store root.
func (s *AssetStore) BaseDir() string {
	return s.baseDir
}

// Resolve resolves a relative asset path inside the store. Absolute paths
// and paths escaping the base directory are rejected.
func (s *AssetStore) Resolve(relativePath string) (string, error) {
	if filepath.IsAbs(relativePath) {
		return "", fmt.Errorf("path escapes asset store: %s (absolute paths not allowed)", relativePath)
	}

	cleanPath := filepath.Clean(relativePath)
	absPath, err := filepath.Abs(filepath.Join(s.baseDir, cleanPath))
	if err != nil {
		return "", fmt.Errorf("getting absolute path: %w", err)
	}

	if !strings.HasPrefix(absPath, s.baseDir+string(filepath.Separator)) && absPath != s.baseDir {
		return "", fmt.Errorf("path escapes asset store: %s", relativePath)
	}
	return absPath, nil
}

// Exists reports whether an asset exists.
func (s *AssetStore) Exists(relativePath string) (bool, error) {
	path, err := s.Resolve(relativePath)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking path: %w", err)
	}
	return true, nil
}

// WriteFile stores an asset, creating parent directories as needed.
func (s *AssetStore) WriteFile(relativePath string, r io.Reader) (int64, error) {
	path, err := s.Resolve(relativePath)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return 0, fmt.Errorf("creating parent directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0640)
	if err != nil {
		return 0, fmt.Errorf("creating file: %w", err)
	}
	defer f.Close()

	n, err := io.Copy(f, r)
	if err != nil {
		return n, fmt.Errorf("writing file: %w", err)
	}
	return n, nil
}

// Remove deletes a single asset. Missing files are not an error, so removal
// is idempotent.
func (s *AssetStore) Remove(relativePath string) error {
	path, err := s.Resolve(relativePath)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing file: %w", err)
	}
	return nil
}

// RemoveDir deletes a directory subtree inside the store. Missing
// directories are not an error.
func (s *AssetStore) RemoveDir(relativePath string) error {
	path, err := s.Resolve(relativePath)
	if err != nil {
		return err
	}
	if path == s.baseDir {
		return fmt.Errorf("refusing to remove asset store root")
	}
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("removing directory: %w", err)
	}
	return nil
}

// DiskUsage returns the total size in bytes of assets under a relative path.
func (s *AssetStore) DiskUsage(relativePath string) (int64, error) {
	path, err := s.Resolve(relativePath)
	if err != nil {
		return 0, err
	}

	var total int64
	err = filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return 0, fmt.Errorf("walking asset directory: %w", err)
	}
	return total, nil
}
