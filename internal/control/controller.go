package control

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/jobpilot/internal/domain"
	"github.com/shaiso/jobpilot/internal/orchestrator"
	"github.com/shaiso/jobpilot/internal/scheduler"
	"github.com/shaiso/jobpilot/internal/state"
)

// QueueOps — операторские вызовы очереди.
type QueueOps interface {
	HealthCheck(ctx context.Context) (string, error)
	ResetStuck(ctx context.Context, exclude []string) (int, error)
	CancelPending(ctx context.Context) (int, error)
}

// Poller — планировщик.
type Poller interface {
	Enable(ctx context.Context) error
	Disable(ctx context.Context) error
	Enabled() bool
	PollNow(ctx context.Context) (scheduler.TickResult, error)
	Interval() time.Duration
	NextTick() time.Time
}

// Jobs — реестр задач в работе.
type Jobs interface {
	ActiveJobIDs() []string
	ActiveJobs() []orchestrator.ActiveJob
}

// StatsSource — статистика и история.
type StatsSource interface {
	Stats() domain.Stats
	History() []domain.HistoryItem
	Reset(ctx context.Context)
}

// Controller — единая точка операторского управления для HTTP API,
// control-очереди и CLI.
type Controller struct {
	queue    QueueOps
	poller   Poller
	jobs     Jobs
	stats    StatsSource
	store    state.Store
	clientID string
	logger   *slog.Logger
}

// Config — зависимости Controller.
type Config struct {
	Queue        QueueOps
	Scheduler    Poller
	Orchestrator Jobs
	Recorder     StatsSource
	Store        state.Store
	ClientID     string
	Logger       *slog.Logger
}

// New создаёт Controller.
func New(cfg Config) *Controller {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		queue:    cfg.Queue,
		poller:   cfg.Scheduler,
		jobs:     cfg.Orchestrator,
		stats:    cfg.Recorder,
		store:    cfg.Store,
		clientID: cfg.ClientID,
		logger:   logger,
	}
}

// Status — сводка состояния демона.
type Status struct {
	Enabled      bool                     `json:"enabled"`
	PollInterval string                   `json:"pollInterval"`
	NextPollAt   *time.Time               `json:"nextPollAt,omitempty"`
	ClientID     string                   `json:"clientId"`
	ActiveJobs   []orchestrator.ActiveJob `json:"activeJobs"`
	Stats        domain.Stats             `json:"stats"`
}

// Start включает поллинг.
func (c *Controller) Start(ctx context.Context) error {
	if err := c.poller.Enable(ctx); err != nil {
		return err
	}
	c.logger.Info("polling started by operator")
	return nil
}

// Stop выключает поллинг. Задачи в работе не прерываются.
func (c *Controller) Stop(ctx context.Context) error {
	if err := c.poller.Disable(ctx); err != nil {
		return err
	}
	c.logger.Info("polling stopped by operator", "active_jobs", len(c.jobs.ActiveJobIDs()))
	return nil
}

// Poll выполняет один внеочередной тик.
func (c *Controller) Poll(ctx context.Context) (scheduler.TickResult, error) {
	return c.poller.PollNow(ctx)
}

// ResetStuck просит backend вернуть зависшие задачи в очередь.
// Задачи, которые оркестратор ещё ведёт, исключаются.
func (c *Controller) ResetStuck(ctx context.Context) (int, error) {
	exclude := c.jobs.ActiveJobIDs()
	n, err := c.queue.ResetStuck(ctx, exclude)
	if err != nil {
		return 0, fmt.Errorf("reset stuck jobs: %w", err)
	}
	c.logger.Info("stuck jobs reset", "count", n, "excluded", len(exclude))
	return n, nil
}

// CancelPending отменяет все ожидающие задачи на стороне backend.
func (c *Controller) CancelPending(ctx context.Context) (int, error) {
	n, err := c.queue.CancelPending(ctx)
	if err != nil {
		return 0, fmt.Errorf("cancel pending jobs: %w", err)
	}
	c.logger.Info("pending jobs cancelled", "count", n)
	return n, nil
}

// Status возвращает сводку состояния.
func (c *Controller) Status() Status {
	st := Status{
		Enabled:      c.poller.Enabled(),
		PollInterval: c.poller.Interval().String(),
		ClientID:     c.clientID,
		ActiveJobs:   c.jobs.ActiveJobs(),
		Stats:        c.stats.Stats(),
	}
	if next := c.poller.NextTick(); !next.IsZero() && st.Enabled {
		st.NextPollAt = &next
	}
	if st.ActiveJobs == nil {
		st.ActiveJobs = []orchestrator.ActiveJob{}
	}
	return st
}

// History возвращает историю, новые записи первыми.
func (c *Controller) History() []domain.HistoryItem {
	return c.stats.History()
}

// ResetStats обнуляет счётчики и историю завершённых задач.
func (c *Controller) ResetStats(ctx context.Context) {
	c.stats.Reset(ctx)
	c.logger.Info("stats reset by operator")
}

// RetrySettings возвращает настройки backend retry.
func (c *Controller) RetrySettings(ctx context.Context) (domain.RetrySettings, error) {
	return state.LoadRetrySettings(ctx, c.store)
}

// SetRetrySettings сохраняет настройки backend retry. Применяются к
// следующим отчётам о неудаче.
func (c *Controller) SetRetrySettings(ctx context.Context, rs domain.RetrySettings) error {
	if err := rs.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	if err := state.SaveRetrySettings(ctx, c.store, rs); err != nil {
		return err
	}
	c.logger.Info("retry settings updated", "max_attempts", rs.MaxAttempts, "max_backoff_ms", rs.MaxBackoffMs)
	return nil
}

// QueueHealth проверяет доступность очереди.
func (c *Controller) QueueHealth(ctx context.Context) (string, error) {
	return c.queue.HealthCheck(ctx)
}
