package storage

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"tasks-api/domain"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *RedisStore) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		if cerr := client.Close(); cerr != nil {
			t.Logf("redis close: %v", cerr)
		}
	})
	return mr, NewRedis(client, "tasks")
}

func TestRedisStoreMissingKeyIsReadError(t *testing.T) {
	_, store := newTestRedis(t)

	_, err := store.LoadAll(context.Background())
	var readErr *ReadError
	if !errors.As(err, &readErr) {
		t.Fatalf("expected ReadError, got %v", err)
	}
}

func TestRedisStoreLoadAllMalformed(t *testing.T) {
	mr, store := newTestRedis(t)
	if err := mr.Set("tasks", "not json"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	_, err := store.LoadAll(context.Background())
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected ParseError, got %v", err)
	}
}

func TestRedisStoreReplaceThenLoad(t *testing.T) {
	mr, store := newTestRedis(t)
	ctx := context.Background()
	tasks := []domain.Task{{ID: 1, Title: "A", Description: "d"}}

	if err := store.ReplaceAll(ctx, tasks); err != nil {
		t.Fatalf("replace: %v", err)
	}
	got, err := store.LoadAll(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(got, tasks) {
		t.Fatalf("unexpected tasks: %#v", got)
	}

	raw, err := mr.Get("tasks")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	want, _ := encodeDocument(tasks)
	if raw != string(want) {
		t.Fatalf("unexpected stored document: %s", raw)
	}
	if ttl := mr.TTL("tasks"); ttl != 0 {
		t.Fatalf("expected document without expiry, got %v", ttl)
	}
}

func TestRedisStoreUpdateErrorSkipsWrite(t *testing.T) {
	mr, store := newTestRedis(t)
	if err := mr.Set("tasks", seedDocument); err != nil {
		t.Fatalf("seed: %v", err)
	}

	err := store.Update(context.Background(), func(tasks []domain.Task) ([]domain.Task, error) {
		return nil, domain.ErrTaskNotFound
	})
	if !errors.Is(err, domain.ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
	raw, _ := mr.Get("tasks")
	if raw != seedDocument {
		t.Fatalf("document modified: %s", raw)
	}
}

func TestRedisStoreConcurrentUpdatesDoNotLoseWrites(t *testing.T) {
	mr, store := newTestRedis(t)
	if err := mr.Set("tasks", `{"tasks":[]}`); err != nil {
		t.Fatalf("seed: %v", err)
	}
	store.maxAttempts = 1000
	const writers = 10

	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- store.Update(context.Background(), func(tasks []domain.Task) ([]domain.Task, error) {
				return append(tasks, domain.Task{ID: domain.NextID(tasks, domain.IDFromLast)}), nil
			})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("update: %v", err)
		}
	}

	tasks, err := store.LoadAll(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(tasks) != writers {
		t.Fatalf("expected %d tasks, got %d", writers, len(tasks))
	}
	seen := make(map[int64]bool, len(tasks))
	for _, task := range tasks {
		if seen[task.ID] {
			t.Fatalf("duplicate id %d", task.ID)
		}
		seen[task.ID] = true
	}
}

func TestRedisStoreEnsure(t *testing.T) {
	mr, store := newTestRedis(t)
	ctx := context.Background()

	created, err := store.Ensure(ctx)
	if err != nil || !created {
		t.Fatalf("ensure: created=%v err=%v", created, err)
	}
	if tasks, err := store.LoadAll(ctx); err != nil || len(tasks) != 0 {
		t.Fatalf("expected empty collection, got %v, %v", tasks, err)
	}

	if err := mr.Set("tasks", seedDocument); err != nil {
		t.Fatalf("seed: %v", err)
	}
	created, err = store.Ensure(ctx)
	if err != nil || created {
		t.Fatalf("second ensure: created=%v err=%v", created, err)
	}
	got, _ := mr.Get("tasks")
	if got != seedDocument {
		t.Fatalf("existing value overwritten: %q", got)
	}
}
