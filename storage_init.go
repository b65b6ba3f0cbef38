package main

import (
	"context"

	log "github.com/sirupsen/logrus"

	"tasks-api/api"
)

// taskStore is a backend the server can serve from and provision.
type taskStore interface {
	api.Storage
	Ensure(ctx context.Context) (bool, error)
}

// initStorage creates an empty task document on the configured backend unless
// one already exists. It never rewrites an existing document.
func initStorage(ctx context.Context, store taskStore, cfg config, logger *log.Logger) error {
	logger.Infof("storage init starting, backend: %s", cfg.backend)
	created, err := store.Ensure(ctx)
	if err != nil {
		return err
	}
	if created {
		logger.WithField("target", storageTarget(cfg)).Info("created empty task document")
	} else {
		logger.WithField("target", storageTarget(cfg)).Debug("task document already exists")
	}
	logger.Info("storage init complete")
	return nil
}

func storageTarget(cfg config) string {
	switch cfg.backend {
	case backendRedis:
		return "redis key " + cfg.redisKey
	case backendMemory:
		return "memory"
	default:
		return cfg.tasksFile
	}
}
