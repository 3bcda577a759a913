// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sys/unix"
)

// ErrLocked means another process holds the card file.
var ErrLocked = errors.New("memory: card is in use by another process")

// FileBackend stores the card in a local file. Opening it takes an
// exclusive advisory lock on a sibling ".lock" file, held until Close,
// so two puppets cannot share one session memory.
type FileBackend struct {
	path string

	mu   sync.Mutex
	lock *os.File
}

var _ Backend = (*FileBackend)(nil)

// OpenFile locks path for this process. The parent directory must
// exist. Returns an error wrapping ErrLocked when the lock is held
// elsewhere.
func OpenFile(path string) (*FileBackend, error) {
	lockPath := path + ".lock"
	lock, err := os.OpenFile(lockPath, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("memory: opening lock file: %w", err)
	}
	if err := unix.Flock(int(lock.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		lock.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, fmt.Errorf("%w: %s", ErrLocked, path)
		}
		return nil, fmt.Errorf("memory: locking %s: %w", lockPath, err)
	}
	return &FileBackend{path: path, lock: lock}, nil
}

// Path returns the card file path.
func (b *FileBackend) Path() string { return b.path }

// Load reads the card file.
func (b *FileBackend) Load(ctx context.Context) ([]byte, error) {
	if err := b.usable(ctx); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(b.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, b.path)
	}
	if err != nil {
		return nil, fmt.Errorf("memory: reading %s: %w", b.path, err)
	}
	return data, nil
}

// Save writes blob to a temporary file in the same directory, syncs
// it, and renames it into place. The file is created with mode 0600.
func (b *FileBackend) Save(ctx context.Context, blob []byte) error {
	if err := b.usable(ctx); err != nil {
		return err
	}

	temporaryPath := b.path + ".tmp"
	file, err := os.OpenFile(temporaryPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("memory: creating temporary card file: %w", err)
	}

	// Write, sync, close, in that order. On any failure remove the
	// temporary file and report the first error.
	if _, err := file.Write(blob); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("memory: writing temporary card file: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("memory: syncing temporary card file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("memory: closing temporary card file: %w", err)
	}

	if err := os.Rename(temporaryPath, b.path); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("memory: renaming card file into place: %w", err)
	}

	// Sync the directory so the rename survives a power loss.
	if directory, err := os.Open(filepath.Dir(b.path)); err == nil {
		directory.Sync()
		directory.Close()
	}
	return nil
}

// Destroy removes the card file. Idempotent.
func (b *FileBackend) Destroy(ctx context.Context) error {
	if err := b.usable(ctx); err != nil {
		return err
	}
	if err := os.Remove(b.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("memory: removing %s: %w", b.path, err)
	}
	return nil
}

// Close releases the lock. The backend is unusable afterwards.
func (b *FileBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.lock == nil {
		return nil
	}
	err := b.lock.Close()
	b.lock = nil
	return err
}

func (b *FileBackend) usable(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.lock == nil {
		return errors.New("memory: file backend is closed")
	}
	return nil
}
