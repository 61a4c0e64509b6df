package config

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/jobpilot/internal/telemetry"
)

const minimalYAML = `
queue:
  base_url: https://queue.example.com/api/jobs
`

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_DefaultsFromMinimalFile(t *testing.T) {
	path := writeConfig(t, t.TempDir(), minimalYAML)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://queue.example.com/api/jobs", cfg.Queue.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.Queue.RequestTimeout)
	assert.Equal(t, 10*time.Second, cfg.Poll.Interval)
	assert.Equal(t, 1, cfg.Poll.MaxActiveJobs)
	assert.Equal(t, 120*time.Second, cfg.Jobs.Timeout)
	assert.Equal(t, 500*time.Millisecond, cfg.Jobs.ReadyInterval)
	assert.Equal(t, 20, cfg.Jobs.ReadyAttempts)
	assert.Equal(t, 10*time.Second, cfg.Jobs.AckTimeout)
	assert.Equal(t, 3, cfg.Jobs.MaxLocalRetries)
	assert.False(t, cfg.Jobs.PersistLocalRetries)
	assert.Equal(t, 50, cfg.Jobs.HistoryCapacity)
	assert.Equal(t, ExecutorModeProcess, cfg.Executor.Mode)
	assert.Equal(t, StateBackendFile, cfg.State.Backend)
}

func TestLoad_FileValues(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
queue:
  base_url: http://localhost:9000/jobs
  token: secret
  request_timeout: 5s
poll:
  interval: 3s
  max_active_jobs: 2
jobs:
  timeout: 45s
  max_local_retries: 5
  persist_local_retries: true
executor:
  mode: inprocess
  args: ["--verbose"]
state:
  backend: redis
  redis:
    address: localhost:6379
    db: 2
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "secret", cfg.Queue.Token)
	assert.Equal(t, 5*time.Second, cfg.Queue.RequestTimeout)
	assert.Equal(t, 3*time.Second, cfg.Poll.Interval)
	assert.Equal(t, 2, cfg.Poll.MaxActiveJobs)
	assert.Equal(t, 45*time.Second, cfg.Jobs.Timeout)
	assert.Equal(t, 5, cfg.Jobs.MaxLocalRetries)
	assert.True(t, cfg.Jobs.PersistLocalRetries)
	assert.Equal(t, ExecutorModeInProcess, cfg.Executor.Mode)
	assert.Equal(t, []string{"--verbose"}, cfg.Executor.Args)
	assert.Equal(t, "localhost:6379", cfg.State.Redis.Address)
	assert.Equal(t, 2, cfg.State.Redis.DB)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, t.TempDir(), minimalYAML)

	t.Setenv("JOBPILOT_QUEUE_URL", "https://other.example.com/jobs")
	t.Setenv("JOBPILOT_POLL_INTERVAL", "30s")
	t.Setenv("JOBPILOT_POLL_ENABLED", "false")
	t.Setenv("JOBPILOT_MAX_LOCAL_RETRIES", "1")
	t.Setenv("JOBPILOT_STATE_BACKEND", "memory")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://other.example.com/jobs", cfg.Queue.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.Poll.Interval)
	assert.False(t, cfg.Poll.Enabled)
	assert.Equal(t, 1, cfg.Jobs.MaxLocalRetries)
	assert.Equal(t, StateBackendMemory, cfg.State.Backend)
	assert.Equal(t, "DEBUG", cfg.Log.Level)
}

func TestLoad_MissingFileUsesEnv(t *testing.T) {
	t.Setenv("JOBPILOT_QUEUE_URL", "https://queue.example.com/jobs")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
	require.NoError(t, err)
	assert.Equal(t, "https://queue.example.com/jobs", cfg.Queue.BaseURL)
}

func TestLoad_EnvFile(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(envPath, []byte("JOBPILOT_QUEUE_URL=https://from-env-file.example.com/jobs\n"), 0o644))
	t.Setenv("ENV_FILE", envPath)
	t.Cleanup(func() { os.Unsetenv("JOBPILOT_QUEUE_URL") })

	cfg, err := Load(filepath.Join(dir, "absent.yml"))
	require.NoError(t, err)
	assert.Equal(t, "https://from-env-file.example.com/jobs", cfg.Queue.BaseURL)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "queue: [unclosed")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		c := Default()
		c.Queue.BaseURL = "https://queue.example.com/jobs"
		return c
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing queue url", func(c *Config) { c.Queue.BaseURL = "" }, "queue.base_url is required"},
		{"relative queue url", func(c *Config) { c.Queue.BaseURL = "/jobs" }, "not an absolute URL"},
		{"interval too small", func(c *Config) { c.Poll.Interval = 100 * time.Millisecond }, "poll.interval"},
		{"bad cron", func(c *Config) { c.Poll.Cron = "every minute" }, "poll.cron"},
		{"zero ceiling", func(c *Config) { c.Poll.MaxActiveJobs = 0 }, "max_active_jobs"},
		{"unknown executor mode", func(c *Config) { c.Executor.Mode = "docker" }, "executor.mode"},
		{"process without command", func(c *Config) { c.Executor.Command = "" }, "executor.command"},
		{"unknown backend", func(c *Config) { c.State.Backend = "etcd" }, "state.backend"},
		{"redis without address", func(c *Config) { c.State.Backend = StateBackendRedis }, "state.redis.address"},
		{"postgres without dsn", func(c *Config) { c.State.Backend = StateBackendPostgres }, "state.postgres.dsn"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			err := c.Validate()
			require.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	c := valid()
	assert.NoError(t, c.Validate())

	// Cron заменяет проверку интервала.
	c.Poll.Interval = 0
	c.Poll.Cron = "*/30 * * * * *"
	assert.NoError(t, c.Validate())
}

func TestValidate_ReportsAllProblems(t *testing.T) {
	c := Default()
	c.State.Backend = "etcd"
	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "queue.base_url")
	assert.Contains(t, err.Error(), "state.backend")
}

func TestPath(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	assert.Equal(t, DefaultPath, Path())

	t.Setenv("CONFIG_PATH", "/etc/jobpilot.yml")
	assert.Equal(t, "/etc/jobpilot.yml", Path())
}

func TestWatch_ReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, minimalYAML)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var reloaded []*Config
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, telemetry.DiscardLogger(), func(c *Config) {
			mu.Lock()
			defer mu.Unlock()
			reloaded = append(reloaded, c)
		})
	}()

	// Даём watcher'у подписаться на каталог.
	time.Sleep(100 * time.Millisecond)

	// Невалидная правка пропускается.
	writeConfig(t, dir, "queue:\n  base_url: \"\"\n")
	time.Sleep(2 * reloadDebounce)

	writeConfig(t, dir, minimalYAML+"poll:\n  interval: 42s\n")

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(reloaded) > 0
	}, 3*time.Second, 20*time.Millisecond)

	mu.Lock()
	assert.Equal(t, 42*time.Second, reloaded[len(reloaded)-1].Reloadable().PollInterval)
	for _, c := range reloaded {
		assert.NotEmpty(t, c.Queue.BaseURL)
	}
	mu.Unlock()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}
