package storage

import (
	"context"
	"sync"

	"tasks-api/domain"
)

const memorySource = "memory"

// MemoryStore keeps the encoded document in process memory. It follows the
// same codec as the file backend, so a document seeded with Seed decodes with
// the same leniency and fails with the same errors.
type MemoryStore struct {
	mu   sync.Mutex
	data []byte
}

// NewMemory returns a store holding an empty collection.
func NewMemory() *MemoryStore {
	data, _ := encodeDocument(nil)
	return &MemoryStore{data: data}
}

// Seed replaces the raw document. It is meant for tests and fixtures.
func (m *MemoryStore) Seed(data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = append([]byte(nil), data...)
}

// Bytes returns a copy of the raw document.
func (m *MemoryStore) Bytes() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.data...)
}

// LoadAll decodes the held document.
func (m *MemoryStore) LoadAll(ctx context.Context) ([]domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadLocked(ctx)
}

// ReplaceAll encodes tasks as the new document.
func (m *MemoryStore) ReplaceAll(ctx context.Context, tasks []domain.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.replaceLocked(ctx, tasks)
}

// Update runs fn over the current collection and stores its result. When fn
// fails the document is left as it was.
func (m *MemoryStore) Update(ctx context.Context, fn func([]domain.Task) ([]domain.Task, error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tasks, err := m.loadLocked(ctx)
	if err != nil {
		return err
	}
	next, err := fn(tasks)
	if err != nil {
		return err
	}
	return m.replaceLocked(ctx, next)
}

func (m *MemoryStore) loadLocked(ctx context.Context) ([]domain.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, &ReadError{Source: memorySource, Err: err}
	}
	if m.data == nil {
		return nil, &ReadError{Source: memorySource, Err: errDocumentMissing}
	}
	return decodeDocument(memorySource, m.data)
}

func (m *MemoryStore) replaceLocked(ctx context.Context, tasks []domain.Task) error {
	if err := ctx.Err(); err != nil {
		return &WriteError{Source: memorySource, Err: err}
	}
	data, err := encodeDocument(tasks)
	if err != nil {
		return &WriteError{Source: memorySource, Err: err}
	}
	m.data = data
	return nil
}

// Ensure installs an empty collection when the document is missing.
func (m *MemoryStore) Ensure(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data != nil {
		return false, nil
	}
	if err := m.replaceLocked(ctx, nil); err != nil {
		return false, err
	}
	return true, nil
}
