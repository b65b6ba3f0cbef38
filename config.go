package main

import (
	"crypto/tls"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"tasks-api/domain"
)

const (
	backendFile   = "file"
	backendRedis  = "redis"
	backendMemory = "memory"
)

type config struct {
	listenAddr      string
	backend         string
	tasksFile       string
	redisConn       string
	redisKey        string
	idStrategy      domain.IDStrategy
	lockRetryDelay  time.Duration
	shutdownTimeout time.Duration
	debug           bool
	jsonLogs        bool
	tracing         bool
	pprof           bool
}

func loadConfig() (config, error) {
	cfg := config{
		listenAddr: ":" + envString("PORT", "3000"),
		backend:    strings.ToLower(envString("STORE_BACKEND", backendFile)),
		tasksFile:  envString("TASKS_FILE", "task.json"),
		redisConn:  os.Getenv("REDIS_CONNECTION_STRING"),
		redisKey:   envString("REDIS_TASKS_KEY", "tasks"),
		jsonLogs:   strings.EqualFold(os.Getenv("LOG_FORMAT"), "json"),
	}

	var err error
	if cfg.idStrategy, err = domain.ParseIDStrategy(os.Getenv("ID_STRATEGY")); err != nil {
		return config{}, fmt.Errorf("invalid ID_STRATEGY: %w", err)
	}
	if cfg.lockRetryDelay, err = envDur("LOCK_RETRY_DELAY", 10*time.Millisecond); err != nil {
		return config{}, err
	}
	if cfg.shutdownTimeout, err = envDur("SHUTDOWN_TIMEOUT", 10*time.Second); err != nil {
		return config{}, err
	}
	for name, dst := range map[string]*bool{
		"DEBUG":           &cfg.debug,
		"TRACING_ENABLED": &cfg.tracing,
		"PPROF_ENABLED":   &cfg.pprof,
	} {
		if *dst, err = envBool(name); err != nil {
			return config{}, err
		}
	}

	switch cfg.backend {
	case backendFile:
		if cfg.tasksFile == "" {
			return config{}, fmt.Errorf("missing TASKS_FILE")
		}
	case backendRedis:
		if cfg.redisConn == "" {
			return config{}, fmt.Errorf("missing redis config")
		}
	case backendMemory:
	default:
		return config{}, fmt.Errorf("unknown STORE_BACKEND %q", cfg.backend)
	}
	return cfg, nil
}

func envString(name, def string) string {
	if v, ok := os.LookupEnv(name); ok && v != "" {
		return v
	}
	return def
}

func envBool(name string) (bool, error) {
	v := os.Getenv(name)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", name, err)
	}
	return b, nil
}

func envDur(name string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", name, v)
	}
	return d, nil
}

// redisOptions accepts a redis:// URL or the "host:port,password=...,ssl=true"
// form used by hosted Redis connection strings.
func redisOptions(conn string) *redis.Options {
	if opts, err := redis.ParseURL(conn); err == nil {
		return opts
	}
	parts := strings.Split(conn, ",")
	opts := &redis.Options{Addr: strings.TrimSpace(parts[0])}
	for _, p := range parts[1:] {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(kv[0])) {
		case "password":
			opts.Password = kv[1]
		case "ssl":
			if strings.EqualFold(kv[1], "true") {
				opts.TLSConfig = &tls.Config{}
			}
		}
	}
	return opts
}
