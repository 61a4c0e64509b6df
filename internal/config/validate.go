package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/shaiso/jobpilot/internal/scheduler"
)

// ErrInvalidConfig — конфигурация не прошла проверку.
var ErrInvalidConfig = errors.New("invalid config")

// Validate проверяет конфигурацию и возвращает все найденные проблемы.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.Queue.BaseURL == "" {
		add("queue.base_url is required")
	} else if u, err := url.Parse(c.Queue.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		add("queue.base_url %q is not an absolute URL", c.Queue.BaseURL)
	}
	if c.Queue.RequestTimeout <= 0 {
		add("queue.request_timeout must be positive")
	}

	if c.Poll.Cron != "" {
		if err := scheduler.ValidateCronExpr(c.Poll.Cron); err != nil {
			add("poll.cron: %v", err)
		}
	} else if c.Poll.Interval < scheduler.MinInterval {
		add("poll.interval must be at least %s", scheduler.MinInterval)
	}
	if c.Poll.MaxActiveJobs < 1 {
		add("poll.max_active_jobs must be >= 1")
	}

	if c.Jobs.Timeout <= 0 {
		add("jobs.timeout must be positive")
	}
	if c.Jobs.ReadyInterval <= 0 || c.Jobs.ReadyAttempts <= 0 {
		add("jobs.ready_interval and jobs.ready_attempts must be positive")
	}
	if c.Jobs.AckTimeout <= 0 {
		add("jobs.ack_timeout must be positive")
	}
	if c.Jobs.LocalRetryDelay < 0 || c.Jobs.LocalRetryMaxDelay < 0 {
		add("jobs local retry delays must be >= 0")
	}
	if c.Jobs.HistoryCapacity < 1 {
		add("jobs.history_capacity must be >= 1")
	}

	switch c.Executor.Mode {
	case ExecutorModeProcess:
		if c.Executor.Command == "" {
			add("executor.command is required in process mode")
		}
	case ExecutorModeInProcess:
	default:
		add("executor.mode %q: want %s or %s", c.Executor.Mode, ExecutorModeProcess, ExecutorModeInProcess)
	}

	switch c.State.Backend {
	case StateBackendMemory:
	case StateBackendFile:
		if c.State.Path == "" {
			add("state.path is required for the file backend")
		}
	case StateBackendRedis:
		if c.State.Redis.Address == "" {
			add("state.redis.address is required for the redis backend")
		}
	case StateBackendPostgres:
		if c.State.Postgres.DSN == "" {
			add("state.postgres.dsn is required for the postgres backend")
		}
	default:
		add("state.backend %q: want memory, file, redis or postgres", c.State.Backend)
	}

	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		add("log.format %q: want json or text", c.Log.Format)
	}

	if c.HTTP.Addr == "" {
		add("http.addr is required")
	}
	if c.ShutdownGrace < 0 {
		add("shutdown_grace must be >= 0")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// Reloadable — настройки, которые можно менять без рестарта.
type Reloadable struct {
	PollInterval time.Duration
	LogLevel     string
}

// Reloadable возвращает настройки, применяемые при hot reload.
// Остальные изменения требуют рестарта.
func (c *Config) Reloadable() Reloadable {
	return Reloadable{PollInterval: c.Poll.Interval, LogLevel: c.Log.Level}
}
