// Package local implements the default cache.Store: a content-addressed
// directory tree on the local filesystem.
package local

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/architect-io/zenboard/pkg/zfile/cache"
	"github.com/google/uuid"
)

func init() {
	cache.Register("local", NewStore)
}

// Store implements cache.Store over the local filesystem. It's the default
// backend: a single developer's machine needs nothing more than a directory
// under the user's cache home.
//
// Unlike a mutable state backend, entries here are content-addressed: the
// same key always names the same content, so Write is write-once and Lock
// only has to arbitrate between separate zenboard processes racing the same
// fetch — in-process coalescing already happens one layer up, in
// zfile.DefaultProvider's keyMutex, before Lock is ever called.
type Store struct {
	basePath string
}

// NewStore creates a new local store. config["path"] overrides the default
// location (~/.cache/zenboard/fetch).
func NewStore(config map[string]string) (cache.Store, error) {
	path := config["path"]
	if path == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, ".cache", "zenboard", "fetch")
	}

	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	return &Store{basePath: path}, nil
}

func (s *Store) Type() string {
	return "local"
}

func (s *Store) Read(ctx context.Context, key string) (io.ReadCloser, error) {
	fullPath := s.fullPath(key)

	file, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, cache.ErrNotFound
		}
		return nil, fmt.Errorf("failed to read %s: %w", fullPath, err)
	}

	return file, nil
}

// Write commits data under key. A content-addressed key never changes
// meaning once written, so an entry that's already present is left alone
// rather than re-staged — the behavior that makes a losing racer's Fetch of
// the same ref (after the winner released the lock) a cheap no-op instead
// of a redundant write.
func (s *Store) Write(ctx context.Context, key string, data io.Reader) error {
	fullPath := s.fullPath(key)
	if _, err := os.Stat(fullPath); err == nil {
		return nil
	}

	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	// Stage then rename, so a concurrent reader never observes a partially
	// written cache entry.
	tempFile, err := os.CreateTemp(dir, ".zenboard-fetch-*")
	if err != nil {
		return fmt.Errorf("failed to create staging file: %w", err)
	}
	tempPath := tempFile.Name()

	_, copyErr := io.Copy(tempFile, data)
	closeErr := tempFile.Close()
	if copyErr == nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to write cache entry: %w", copyErr)
	}

	if err := os.Rename(tempPath, fullPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to commit cache entry: %w", err)
	}

	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	fullPath := s.fullPath(key)

	if err := os.Remove(fullPath); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to delete %s: %w", fullPath, err)
	}

	return nil
}

func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	fullPrefix := s.fullPath(prefix)

	var paths []string
	err := filepath.Walk(fullPrefix, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if !info.IsDir() {
			relPath, _ := filepath.Rel(s.basePath, path)
			paths = append(paths, relPath)
		}
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", fullPrefix, err)
	}

	return paths, nil
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	fullPath := s.fullPath(key)

	_, err := os.Stat(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check %s: %w", fullPath, err)
	}

	return true, nil
}

// Lock implements the fetch-coalescing lock from spec.md §5. It creates the
// lock file with O_EXCL so the create itself is the atomic test — two
// zenboard processes racing the same key can't both observe "no lock file"
// and then both write one, the race a plain stat-then-write pair would
// leave open.
func (s *Store) Lock(ctx context.Context, key string, info cache.LockInfo) (cache.Lock, error) {
	lockPath := s.fullPath(key + ".lock")

	if existing, ok := s.readLockInfo(lockPath); ok {
		if time.Since(existing.Created) < time.Hour {
			return nil, &cache.LockError{Info: existing, Err: cache.ErrLocked}
		}
		// Stale: the previous holder crashed or its fetch hung. Reclaim it.
		if err := os.Remove(lockPath); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to reclaim stale lock: %w", err)
		}
	}

	info.ID = uuid.New().String()
	info.Path = key
	info.Created = time.Now()

	lockData, err := json.Marshal(info)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal lock info: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(lockPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if os.IsExist(err) {
			if existing, ok := s.readLockInfo(lockPath); ok {
				return nil, &cache.LockError{Info: existing, Err: cache.ErrLocked}
			}
		}
		return nil, fmt.Errorf("failed to create lock file: %w", err)
	}
	if _, err := f.Write(lockData); err != nil {
		f.Close()
		os.Remove(lockPath)
		return nil, fmt.Errorf("failed to write lock file: %w", err)
	}
	f.Close()

	return &localLock{path: lockPath, info: info}, nil
}

func (s *Store) readLockInfo(lockPath string) (cache.LockInfo, bool) {
	data, err := os.ReadFile(lockPath)
	if err != nil {
		return cache.LockInfo{}, false
	}
	var info cache.LockInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return cache.LockInfo{}, false
	}
	return info, true
}

func (s *Store) fullPath(key string) string {
	return filepath.Join(s.basePath, key)
}

type localLock struct {
	path string
	info cache.LockInfo
}

func (l *localLock) ID() string { return l.info.ID }

func (l *localLock) Unlock(ctx context.Context) error {
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lock file: %w", err)
	}
	return nil
}

func (l *localLock) Info() cache.LockInfo { return l.info }

var _ cache.Store = (*Store)(nil)
