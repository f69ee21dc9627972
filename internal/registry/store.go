package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"twin/internal/constants"
	"twin/internal/errors"
	"twin/internal/logger"
)

// Store reads and writes the registry document
type Store struct {
	path        string
	lockTimeout time.Duration
}

// PathFor returns the registry location for a repository's git common dir,
// which is shared by the main checkout and all of its worktrees.
func PathFor(commonDir string) string {
	return filepath.Join(commonDir, constants.RegistryFileName)
}

// NewStore creates a store for the document at path. A non-positive
// lockTimeout uses the default.
func NewStore(path string, lockTimeout time.Duration) *Store {
	if lockTimeout <= 0 {
		lockTimeout = constants.DefaultLockTimeout
	}
	return &Store{path: path, lockTimeout: lockTimeout}
}

// Path returns the document path
func (s *Store) Path() string {
	return s.path
}

// LockPath returns the path of the advisory lock file
func (s *Store) LockPath() string {
	return s.path + constants.LockFileSuffix
}

// Load reads the document. A missing file is an empty registry.
func (s *Store) Load() (*Registry, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return New(), nil
	}
	if err != nil {
		return nil, errors.Persistence(s.path, err)
	}

	reg := New()
	if len(data) == 0 {
		return reg, nil
	}
	if err := json.Unmarshal(data, reg); err != nil {
		return nil, errors.Persistence(s.path, fmt.Errorf("parse registry: %w", err))
	}
	reg.normalize()
	return reg, nil
}

// Save replaces the document with reg. The new content is written to a
// temporary file in the same directory, synced and renamed over the old
// document, so readers never observe a partial write.
func (s *Store) Save(reg *Registry) error {
	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return errors.Persistence(s.path, err)
	}
	data = append(data, '\n')

	if err := writeFileAtomic(s.path, data); err != nil {
		return errors.Persistence(s.path, err)
	}

	logger.WithFields(logger.Fields{
		"path":         s.path,
		"environments": reg.Len(),
	}).Debug("Registry saved")
	return nil
}

// Lock takes the exclusive advisory lock guarding read-modify-write cycles
// on the document. It polls until the lock is free, ctx is done or the lock
// timeout elapses. The returned func releases the lock.
func (s *Store) Lock(ctx context.Context) (func(), error) {
	lockPath := s.LockPath()
	if err := os.MkdirAll(filepath.Dir(lockPath), constants.DirPermissions); err != nil {
		return nil, errors.Lock(lockPath, err)
	}

	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, constants.FilePermissions)
	if err != nil {
		return nil, errors.Lock(lockPath, err)
	}

	deadline := time.Now().Add(s.lockTimeout)
	ticker := time.NewTicker(constants.LockRetryInterval)
	defer ticker.Stop()

	for {
		ok, err := tryLock(f)
		if err != nil {
			f.Close()
			return nil, errors.Lock(lockPath, err)
		}
		if ok {
			break
		}

		if time.Now().After(deadline) {
			f.Close()
			return nil, errors.Lock(lockPath, fmt.Errorf("still held after %s", s.lockTimeout)).
				WithContext("timeout", s.lockTimeout.String())
		}

		select {
		case <-ctx.Done():
			f.Close()
			return nil, errors.Lock(lockPath, ctx.Err())
		case <-ticker.C:
		}
	}

	logger.WithField("path", lockPath).Debug("Registry lock acquired")
	return func() {
		if err := unlock(f); err != nil {
			logger.WithError(err).WithField("path", lockPath).Warn("Failed to release registry lock")
		}
		f.Close()
	}, nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, constants.DirPermissions); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		_ = tmp.Close()
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Chmod(constants.FilePermissions); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	committed = true
	return nil
}
