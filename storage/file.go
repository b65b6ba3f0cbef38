package storage

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	log "github.com/sirupsen/logrus"

	"tasks-api/domain"
)

const defaultLockRetryDelay = 10 * time.Millisecond

var errLockNotAcquired = errors.New("lock not acquired")

// FileStore persists the task collection as a single JSON document on disk.
// Writes made through Update are serialized within the process by a mutex and
// across processes by an advisory lock on "<path>.lock".
type FileStore struct {
	path       string
	retryDelay time.Duration
	logger     *log.Logger

	mu   sync.Mutex
	lock *flock.Flock
}

// FileOption customizes a FileStore.
type FileOption func(*FileStore)

// WithLockRetryDelay sets how often a blocked Update polls the file lock.
func WithLockRetryDelay(d time.Duration) FileOption {
	return func(s *FileStore) {
		if d > 0 {
			s.retryDelay = d
		}
	}
}

// WithLogger attaches a logger used for cleanup failures.
func WithLogger(logger *log.Logger) FileOption {
	return func(s *FileStore) { s.logger = logger }
}

// NewFile returns a store backed by the document at path. The document is not
// created; it must exist before the first operation.
func NewFile(path string, opts ...FileOption) *FileStore {
	s := &FileStore{
		path:       path,
		retryDelay: defaultLockRetryDelay,
		lock:       flock.New(path + ".lock"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the location of the backing document.
func (s *FileStore) Path() string { return s.path }

// LoadAll reads and decodes the document. Renames are atomic, so readers take
// no lock and observe either the previous or the next document.
func (s *FileStore) LoadAll(ctx context.Context) ([]domain.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, &ReadError{Source: s.path, Err: err}
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, &ReadError{Source: s.path, Err: err}
	}
	return decodeDocument(s.path, data)
}

// ReplaceAll overwrites the document with tasks.
func (s *FileStore) ReplaceAll(ctx context.Context, tasks []domain.Task) error {
	unlock, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer unlock()
	return s.replaceLocked(tasks)
}

// Update runs fn over the current collection and persists its result while
// holding the write locks. When fn fails nothing is written and its error is
// returned as is.
func (s *FileStore) Update(ctx context.Context, fn func([]domain.Task) ([]domain.Task, error)) error {
	unlock, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	tasks, err := s.LoadAll(ctx)
	if err != nil {
		return err
	}
	next, err := fn(tasks)
	if err != nil {
		return err
	}
	return s.replaceLocked(next)
}

func (s *FileStore) acquire(ctx context.Context) (func(), error) {
	s.mu.Lock()
	locked, err := s.lock.TryLockContext(ctx, s.retryDelay)
	if err != nil || !locked {
		s.mu.Unlock()
		if err == nil {
			err = errLockNotAcquired
		}
		return nil, &ReadError{Source: s.lock.Path(), Err: err}
	}
	return func() {
		if err := s.lock.Unlock(); err != nil && s.logger != nil {
			s.logger.WithError(err).Warnf("failed to release lock %s", s.lock.Path())
		}
		s.mu.Unlock()
	}, nil
}

func (s *FileStore) replaceLocked(tasks []domain.Task) error {
	data, err := encodeDocument(tasks)
	if err != nil {
		return &WriteError{Source: s.path, Err: err}
	}
	if err := s.writeAtomic(data); err != nil {
		return &WriteError{Source: s.path, Err: err}
	}
	return nil
}

// writeAtomic writes data next to the document, flushes it and renames it over
// the document, so a failure at any step leaves the previous content intact.
func (s *FileStore) writeAtomic(data []byte) (err error) {
	dir := filepath.Dir(s.path)
	mode := fs.FileMode(0o644)
	if fi, statErr := os.Stat(s.path); statErr == nil {
		mode = fi.Mode().Perm()
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer func() {
		if err == nil {
			return
		}
		if rmErr := os.Remove(tmpPath); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) && s.logger != nil {
			s.logger.WithError(rmErr).Warnf("failed to remove temp file %s", tmpPath)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err = tmp.Chmod(mode); err != nil {
		tmp.Close()
		return err
	}
	if err = tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Rename(tmpPath, s.path); err != nil {
		return err
	}
	if syncErr := syncDir(dir); syncErr != nil && s.logger != nil {
		s.logger.WithError(syncErr).Warnf("failed to sync directory %s", dir)
	}
	return nil
}

func syncDir(path string) error {
	dir, err := os.Open(path)
	if err != nil {
		return err
	}
	defer dir.Close()
	return dir.Sync()
}

// Ensure creates the document with an empty collection when it does not exist
// yet. It reports whether a document was created. An existing document is
// never touched, even when it does not parse.
func (s *FileStore) Ensure(ctx context.Context) (bool, error) {
	unlock, err := s.acquire(ctx)
	if err != nil {
		return false, err
	}
	defer unlock()

	if _, err := os.Stat(s.path); err == nil {
		return false, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return false, &ReadError{Source: s.path, Err: err}
	}
	if err := s.replaceLocked(nil); err != nil {
		return false, err
	}
	return true, nil
}
