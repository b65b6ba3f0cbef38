package storage

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"tasks-api/domain"
)

const defaultMaxTxAttempts = 16

var errTooManyConflicts = errors.New("too many concurrent modifications")

// getter is satisfied by both *redis.Client and *redis.Tx.
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// RedisStore keeps the task document under a single Redis key. Updates use
// WATCH/MULTI so a concurrent write makes the transaction run again against
// the fresh document instead of overwriting it.
type RedisStore struct {
	client      *redis.Client
	key         string
	maxAttempts int
}

// NewRedis creates a store backed by key. Like the file backend it does not
// create the document; a missing key is a read failure.
func NewRedis(client *redis.Client, key string) *RedisStore {
	if client == nil {
		panic("storage.NewRedis: client is nil")
	}
	return &RedisStore{client: client, key: key, maxAttempts: defaultMaxTxAttempts}
}

func (r *RedisStore) source() string {
	return "redis key " + r.key
}

// LoadAll reads and decodes the document stored under the key.
func (r *RedisStore) LoadAll(ctx context.Context) ([]domain.Task, error) {
	return r.load(ctx, r.client)
}

// ReplaceAll overwrites the value under the key with tasks.
func (r *RedisStore) ReplaceAll(ctx context.Context, tasks []domain.Task) error {
	data, err := encodeDocument(tasks)
	if err != nil {
		return &WriteError{Source: r.source(), Err: err}
	}
	if err := r.client.Set(ctx, r.key, data, 0).Err(); err != nil {
		return &WriteError{Source: r.source(), Err: err}
	}
	return nil
}

// Update runs fn over the current collection inside a WATCH transaction and
// runs it again when another client changed the key first.
func (r *RedisStore) Update(ctx context.Context, fn func([]domain.Task) ([]domain.Task, error)) error {
	for attempt := 0; attempt < r.maxAttempts; attempt++ {
		var opErr error
		err := r.client.Watch(ctx, func(tx *redis.Tx) error {
			tasks, err := r.load(ctx, tx)
			if err != nil {
				opErr = err
				return err
			}
			next, err := fn(tasks)
			if err != nil {
				opErr = err
				return err
			}
			data, err := encodeDocument(next)
			if err != nil {
				opErr = &WriteError{Source: r.source(), Err: err}
				return opErr
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, r.key, data, 0)
				return nil
			})
			return err
		}, r.key)

		switch {
		case err == nil:
			return nil
		case opErr != nil:
			return opErr
		case errors.Is(err, redis.TxFailedErr):
			continue
		default:
			return &WriteError{Source: r.source(), Err: err}
		}
	}
	return &WriteError{Source: r.source(), Err: errTooManyConflicts}
}

func (r *RedisStore) load(ctx context.Context, c getter) ([]domain.Task, error) {
	data, err := c.Get(ctx, r.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			err = errDocumentMissing
		}
		return nil, &ReadError{Source: r.source(), Err: err}
	}
	return decodeDocument(r.source(), data)
}

// Ensure stores an empty collection under the key unless a value is already
// there, and reports whether it did.
func (r *RedisStore) Ensure(ctx context.Context) (bool, error) {
	data, err := encodeDocument(nil)
	if err != nil {
		return false, &WriteError{Source: r.source(), Err: err}
	}
	created, err := r.client.SetNX(ctx, r.key, data, 0).Result()
	if err != nil {
		return false, &WriteError{Source: r.source(), Err: err}
	}
	return created, nil
}
