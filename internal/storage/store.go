package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/semaphore"

	"github.com/sbilibin2017/gw-settlement-ledger/internal/logger"
)

var (
	// ErrLockTimeout is returned when the store lock could not be acquired
	// within the configured retry budget. Transient: callers may retry.
	ErrLockTimeout = errors.New("storage: lock acquisition timed out")

	// ErrIntegrity is returned when persisted content is unreadable or fails
	// round-trip verification. Fatal: the store is never auto-repaired.
	ErrIntegrity = errors.New("storage: persisted content failed integrity verification")

	errLockBusy = errors.New("storage: lock busy")
)

const (
	archiveDir = "archive"
	backupDir  = "backup"
	timeLayout = "20060102T150405"
)

// Options tunes lock acquisition, rotation and clock behavior for a store.
type Options struct {
	MaxBytes    int64            // Rotation threshold; 0 disables rotation
	LockRetries uint64           // Bounded retry ceiling for lock acquisition
	LockBackoff time.Duration    // Initial backoff between acquisition attempts
	Now         func() time.Time // Injectable clock; defaults to time.Now
}

// Store is a durable JSON store for a single value of type T, either a
// sequence ([]E) or a keyed record. Writers serialize behind a process-local
// lock; readers take lock-free snapshots. All writes are atomic: content goes
// to a temporary file in the same directory and is renamed into place.
type Store[T any] struct {
	path        string
	name        string
	empty       func() T
	sem         *semaphore.Weighted
	maxBytes    int64
	lockRetries uint64
	lockBackoff time.Duration
	now         func() time.Time
}

// New creates a store persisting to dir/name.json, with co-located archive/
// and backup/ subdirectories. empty produces the value an absent or freshly
// rotated store holds, fixing the semantic shape of the file.
func New[T any](dir, name string, empty func() T, opts Options) (*Store[T], error) {
	for _, sub := range []string{dir, filepath.Join(dir, archiveDir), filepath.Join(dir, backupDir)} {
		if err := os.MkdirAll(sub, 0o755); err != nil {
			return nil, fmt.Errorf("storage: create %s: %w", sub, err)
		}
	}

	s := &Store[T]{
		path:        filepath.Join(dir, name+".json"),
		name:        name,
		empty:       empty,
		sem:         semaphore.NewWeighted(1),
		maxBytes:    opts.MaxBytes,
		lockRetries: opts.LockRetries,
		lockBackoff: opts.LockBackoff,
		now:         opts.Now,
	}
	if s.lockRetries == 0 {
		s.lockRetries = 10
	}
	if s.lockBackoff == 0 {
		s.lockBackoff = 10 * time.Millisecond
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// Path returns the location of the backing file.
func (s *Store[T]) Path() string {
	return s.path
}

// Read returns a best-effort snapshot without taking the mutation lock.
// A missing file reads as the empty shape.
func (s *Store[T]) Read(ctx context.Context) (T, error) {
	return s.load()
}

// Update acquires the mutation lock, applies fn to the current value and
// atomically persists the result. The lock is released on every exit path.
// When fn returns an error nothing is written.
func (s *Store[T]) Update(ctx context.Context, fn func(T) (T, error)) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.sem.Release(1)

	cur, err := s.load()
	if err != nil {
		return err
	}

	next, err := fn(cur)
	if err != nil {
		return err
	}

	if err := s.write(next); err != nil {
		return err
	}

	return s.rotateIfOversized()
}

// Rotate moves the backing file to a timestamped archive location and
// replaces it with an empty store of the same shape. It returns the archive
// path, or an empty string when there was nothing to rotate.
func (s *Store[T]) Rotate(ctx context.Context) (string, error) {
	if err := s.acquire(ctx); err != nil {
		return "", err
	}
	defer s.sem.Release(1)

	return s.rotateLocked()
}

// Backup copies the current content to a timestamped file under backup/.
func (s *Store[T]) Backup(ctx context.Context) (string, error) {
	if err := s.acquire(ctx); err != nil {
		return "", err
	}
	defer s.sem.Release(1)

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			data, err = marshal(s.empty())
			if err != nil {
				return "", err
			}
		} else {
			return "", fmt.Errorf("storage: read for backup: %w", err)
		}
	}

	dst := filepath.Join(filepath.Dir(s.path), backupDir,
		fmt.Sprintf("%s.%s.json", s.name, s.now().UTC().Format(timeLayout)))
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return "", fmt.Errorf("storage: write backup: %w", err)
	}

	logger.Log.Infow("store backed up", "store", s.name, "backup", dst)
	return dst, nil
}

// SweepBackups removes backup files older than maxAge and reports how many
// were removed. Archives produced by rotation are not touched.
func (s *Store[T]) SweepBackups(ctx context.Context, maxAge time.Duration) (int, error) {
	dir := filepath.Join(filepath.Dir(s.path), backupDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("storage: read backup dir: %w", err)
	}

	cutoff := s.now().Add(-maxAge)
	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
				return removed, fmt.Errorf("storage: remove backup %s: %w", e.Name(), err)
			}
			removed++
		}
	}

	if removed > 0 {
		logger.Log.Infow("backup retention sweep", "store", s.name, "removed", removed)
	}
	return removed, nil
}

// acquire takes the mutation lock with bounded wait: TryAcquire under
// exponential backoff up to the configured retry ceiling.
func (s *Store[T]) acquire(ctx context.Context) error {
	attempt := func() error {
		if s.sem.TryAcquire(1) {
			return nil
		}
		return errLockBusy
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.lockBackoff

	err := backoff.Retry(attempt, backoff.WithContext(backoff.WithMaxRetries(bo, s.lockRetries), ctx))
	if err != nil {
		logger.Log.Warnw("store lock acquisition failed", "store", s.name, "error", err)
		return ErrLockTimeout
	}
	return nil
}

// load reads and verifies the backing file. Verification re-serializes the
// decoded value and compares it against the compacted file content; any
// mismatch means the persisted bytes do not round-trip and is fatal.
func (s *Store[T]) load() (T, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return s.empty(), nil
		}
		var zero T
		return zero, fmt.Errorf("storage: read %s: %w", s.path, err)
	}

	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		var zero T
		logger.Log.Errorw("store unreadable", "store", s.name, "audit", "critical", "error", err)
		return zero, fmt.Errorf("%w: %s: %v", ErrIntegrity, s.name, err)
	}

	reencoded, err := marshal(v)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("%w: %s: re-serialize: %v", ErrIntegrity, s.name, err)
	}

	var compacted bytes.Buffer
	if err := json.Compact(&compacted, data); err != nil {
		var zero T
		return zero, fmt.Errorf("%w: %s: %v", ErrIntegrity, s.name, err)
	}
	var canonical bytes.Buffer
	if err := json.Compact(&canonical, reencoded); err != nil {
		var zero T
		return zero, fmt.Errorf("%w: %s: %v", ErrIntegrity, s.name, err)
	}
	if !bytes.Equal(compacted.Bytes(), canonical.Bytes()) {
		logger.Log.Errorw("store failed round-trip verification", "store", s.name, "audit", "critical")
		var zero T
		return zero, fmt.Errorf("%w: %s: content does not round-trip", ErrIntegrity, s.name)
	}

	return v, nil
}

// write persists v atomically: temp file in the store directory, fsync-free
// rename into place. Readers never observe partial content.
func (s *Store[T]) write(v T) error {
	data, err := marshal(v)
	if err != nil {
		return fmt.Errorf("storage: marshal %s: %w", s.name, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), s.name+".*.tmp")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("storage: close temp: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("storage: rename into place: %w", err)
	}
	return nil
}

// rotateIfOversized rotates the store when it exceeds the size threshold.
// Caller must hold the lock.
func (s *Store[T]) rotateIfOversized() error {
	if s.maxBytes <= 0 {
		return nil
	}
	info, err := os.Stat(s.path)
	if err != nil {
		return nil
	}
	if info.Size() <= s.maxBytes {
		return nil
	}
	_, err = s.rotateLocked()
	return err
}

// rotateLocked archives the backing file and writes a fresh empty store.
// Caller must hold the lock.
func (s *Store[T]) rotateLocked() (string, error) {
	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		return "", nil
	}

	dst := filepath.Join(filepath.Dir(s.path), archiveDir,
		fmt.Sprintf("%s.%s.json", s.name, s.now().UTC().Format(timeLayout)))
	if err := os.Rename(s.path, dst); err != nil {
		return "", fmt.Errorf("storage: archive %s: %w", s.name, err)
	}

	if err := s.write(s.empty()); err != nil {
		return dst, err
	}

	logger.Log.Infow("store rotated", "store", s.name, "archive", dst)
	return dst, nil
}

func marshal(v any) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}
