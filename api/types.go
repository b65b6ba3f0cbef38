package api

import (
	"context"

	"tasks-api/domain"
)

// Storage abstracts persistence of the task collection for handlers.
type Storage interface {
	LoadAll(ctx context.Context) ([]domain.Task, error)
	ReplaceAll(ctx context.Context, tasks []domain.Task) error
	// Update loads the collection, applies fn and persists the result as one
	// step. An error from fn aborts the write and is returned unchanged.
	Update(ctx context.Context, fn func([]domain.Task) ([]domain.Task, error)) error
}

// StorageError is implemented by storage failures that know which step failed:
// "read", "parse" or "write".
type StorageError interface {
	error
	StorageStage() string
}
