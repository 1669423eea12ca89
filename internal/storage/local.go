package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// File and directory permissions.
const (
	filePermissions = 0o600
	dirPermissions  = 0o750
)

// LocalStore implements core.BlobStore on the local filesystem. Keys are
// slash-separated paths relative to the store root.
type LocalStore struct {
	baseDir string
}

// NewLocalStore creates a filesystem-backed blob store rooted at baseDir,
// creating the directory if needed.
func NewLocalStore(baseDir string) (*LocalStore, error) {
	err := os.MkdirAll(baseDir, dirPermissions)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage directory %s: %w", baseDir, err)
	}

	return &LocalStore{baseDir: baseDir}, nil
}

// Put writes a blob, creating intermediate directories as needed.
func (s *LocalStore) Put(_ context.Context, key string, data []byte) error {
	path, err := s.resolve(key)
	if err != nil {
		return err
	}

	dirErr := os.MkdirAll(filepath.Dir(path), dirPermissions)
	if dirErr != nil {
		return fmt.Errorf("failed to create directory for blob '%s': %w", key, dirErr)
	}

	writeErr := os.WriteFile(path, data, filePermissions)
	if writeErr != nil {
		return fmt.Errorf("failed to write blob '%s': %w", key, writeErr)
	}

	return nil
}

// Get reads a blob. A missing file is reported as ErrNotFound.
func (s *LocalStore) Get(_ context.Context, key string) ([]byte, error) {
	path, err := s.resolve(key)
	if err != nil {
		return nil, err
	}

	data, readErr := os.ReadFile(path)
	if readErr != nil {
		if os.IsNotExist(readErr) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}

		return nil, fmt.Errorf("failed to read blob '%s': %w", key, readErr)
	}

	return data, nil
}

// Delete removes a blob. Deleting an absent blob is not an error, so
// best-effort cleanup paths stay simple.
func (s *LocalStore) Delete(_ context.Context, key string) error {
	path, err := s.resolve(key)
	if err != nil {
		return err
	}

	removeErr := os.Remove(path)
	if removeErr != nil && !os.IsNotExist(removeErr) {
		return fmt.Errorf("failed to delete blob '%s': %w", key, removeErr)
	}

	return nil
}

// resolve maps a key to an absolute path under the store root, rejecting
// keys that would escape it.
func (s *LocalStore) resolve(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("%w: empty key", ErrInvalidKey)
	}

	cleaned := filepath.Clean(filepath.FromSlash(key))
	if filepath.IsAbs(cleaned) || strings.HasPrefix(cleaned, "..") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}

	return filepath.Join(s.baseDir, cleaned), nil
}
