package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"

	"github.com/shaiso/jobpilot/internal/domain"
	"github.com/shaiso/jobpilot/internal/orchestrator"
	"github.com/shaiso/jobpilot/internal/queue"
	"github.com/shaiso/jobpilot/internal/state"
	"github.com/shaiso/jobpilot/internal/telemetry"
)

const (
	defaultInterval      = 10 * time.Second
	defaultMaxActiveJobs = 1
)

// Fetcher — получение следующей задачи из очереди. ReportFailure нужен
// для задач, которые очередь выдала в непригодном виде.
type Fetcher interface {
	FetchNext(ctx context.Context, clientID string) (*domain.Job, error)
	ReportFailure(ctx context.Context, jobID, message string, rs domain.RetrySettings) (bool, error)
}

// Dispatcher — оркестратор.
type Dispatcher interface {
	Dispatch(ctx context.Context, job *domain.Job) error
	ActiveCount() int
}

// TickResult — итог одного тика.
type TickResult string

const (
	TickDisabled   TickResult = "disabled"
	TickBusy       TickResult = "busy"
	TickEmpty      TickResult = "empty"
	TickDispatched TickResult = "dispatched"
	TickError      TickResult = "error"
)

// Scheduler периодически забирает одну задачу из очереди и передаёт
// её оркестратору.
//
// Тик никогда не крутится в цикле и не пересекается с предыдущим:
// cron.SkipIfStillRunning для периодических тиков, singleflight для
// ручных PollNow.
type Scheduler struct {
	queue         Fetcher
	orchestrator  Dispatcher
	store         state.Store
	clientID      string
	maxActiveJobs int
	defaultOn     bool
	logger        *slog.Logger

	enabled atomic.Bool
	group   singleflight.Group

	mu       sync.Mutex
	cron     *cron.Cron
	entryID  cron.EntryID
	interval time.Duration
	cronExpr string
	runCtx   context.Context
	cancel   context.CancelFunc
}

// Config — конфигурация Scheduler.
type Config struct {
	Queue        Fetcher
	Orchestrator Dispatcher
	Store        state.Store
	ClientID     string

	Interval time.Duration // default: 10s, минимум 1s
	// CronExpr — расписание вместо фиксированного интервала (опционально).
	CronExpr string

	// MaxActiveJobs — сколько задач может быть в работе одновременно (default: 1).
	MaxActiveJobs int

	// EnabledByDefault — значение флага, если он ещё не сохранён.
	EnabledByDefault bool

	Logger *slog.Logger
}

// New создаёт Scheduler.
func New(cfg Config) (*Scheduler, error) {
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	if _, err := ScheduleFor(interval, cfg.CronExpr); err != nil {
		return nil, err
	}

	maxActive := cfg.MaxActiveJobs
	if maxActive <= 0 {
		maxActive = defaultMaxActiveJobs
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		queue:         cfg.Queue,
		orchestrator:  cfg.Orchestrator,
		store:         cfg.Store,
		clientID:      cfg.ClientID,
		maxActiveJobs: maxActive,
		defaultOn:     cfg.EnabledByDefault,
		logger:        logger,
		interval:      ClampInterval(interval),
		cronExpr:      cfg.CronExpr,
	}, nil
}

// Start загружает флаг включённости и запускает периодические тики.
func (s *Scheduler) Start(ctx context.Context) error {
	enabled, err := state.LoadEnabled(ctx, s.store, s.defaultOn)
	if err != nil {
		return fmt.Errorf("load enabled flag: %w", err)
	}
	s.enabled.Store(enabled)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.runCtx, s.cancel = context.WithCancel(ctx)

	clog := cronLogger{logger: s.logger}
	s.cron = cron.New(
		cron.WithLogger(clog),
		cron.WithChain(cron.Recover(clog), cron.SkipIfStillRunning(clog)),
	)

	if err := s.scheduleLocked(); err != nil {
		s.cancel()
		return err
	}

	s.cron.Start()

	s.logger.Info("scheduler started",
		"enabled", enabled,
		"interval", s.interval,
		"cron", s.cronExpr,
		"max_active_jobs", s.maxActiveJobs,
	)
	return nil
}

// Stop останавливает новые тики и ждёт текущий.
// Задачи в работе не затрагиваются.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c, cancel := s.cron, s.cancel
	s.mu.Unlock()

	if c == nil {
		return
	}

	stopped := c.Stop()
	cancel()
	<-stopped.Done()

	s.logger.Info("scheduler stopped")
}

// SetInterval меняет период поллинга на лету.
func (s *Scheduler) SetInterval(interval time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	interval = ClampInterval(interval)
	if interval == s.interval && s.cronExpr == "" {
		return nil
	}

	s.interval = interval
	s.cronExpr = ""

	if s.cron == nil {
		return nil
	}
	s.cron.Remove(s.entryID)
	if err := s.scheduleLocked(); err != nil {
		return err
	}

	s.logger.Info("poll interval changed", "interval", interval)
	return nil
}

// Interval возвращает текущий период поллинга.
func (s *Scheduler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// NextTick возвращает время следующего тика (нулевое, если не запущен).
func (s *Scheduler) NextTick() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron == nil {
		return time.Time{}
	}
	return s.cron.Entry(s.entryID).Next
}

func (s *Scheduler) scheduleLocked() error {
	schedule, err := ScheduleFor(s.interval, s.cronExpr)
	if err != nil {
		return err
	}
	ctx := s.runCtx
	s.entryID = s.cron.Schedule(schedule, cron.FuncJob(func() {
		if _, err := s.PollNow(ctx); err != nil {
			s.logger.Warn("poll tick failed", "error", err)
		}
	}))
	return nil
}

// Enable включает поллинг и сохраняет флаг.
func (s *Scheduler) Enable(ctx context.Context) error {
	return s.setEnabled(ctx, true)
}

// Disable выключает поллинг и сохраняет флаг.
// Задачи в работе доходят до своего терминального состояния.
func (s *Scheduler) Disable(ctx context.Context) error {
	return s.setEnabled(ctx, false)
}

func (s *Scheduler) setEnabled(ctx context.Context, enabled bool) error {
	if err := state.SaveEnabled(ctx, s.store, enabled); err != nil {
		return fmt.Errorf("save enabled flag: %w", err)
	}
	if s.enabled.Swap(enabled) != enabled {
		s.logger.Info("polling toggled", "enabled", enabled)
	}
	return nil
}

// Enabled возвращает флаг включённости поллинга.
func (s *Scheduler) Enabled() bool {
	return s.enabled.Load()
}

// PollNow выполняет один тик. Одновременные вызовы объединяются.
func (s *Scheduler) PollNow(ctx context.Context) (TickResult, error) {
	v, err, _ := s.group.Do("tick", func() (any, error) {
		return s.Tick(ctx)
	})
	result, _ := v.(TickResult)
	return result, err
}

// Tick — одна попытка fetch+dispatch.
func (s *Scheduler) Tick(ctx context.Context) (result TickResult, err error) {
	defer func() {
		telemetry.PollTicks.WithLabelValues(string(result)).Inc()
	}()

	if !s.enabled.Load() {
		return TickDisabled, nil
	}

	if active := s.orchestrator.ActiveCount(); active >= s.maxActiveJobs {
		s.logger.Debug("skipping poll, active job ceiling reached", "active_jobs", active)
		return TickBusy, nil
	}

	job, err := s.queue.FetchNext(ctx, s.clientID)
	var invalid *queue.InvalidJobError
	if errors.As(err, &invalid) {
		s.rejectInvalid(ctx, invalid)
		return TickError, fmt.Errorf("fetch next job: %w", err)
	}
	if err != nil {
		return TickError, fmt.Errorf("fetch next job: %w", err)
	}
	if job == nil {
		s.logger.Debug("no job available")
		return TickEmpty, nil
	}

	s.logger.Info("job fetched", "job_id", job.ID, "title", job.Title, "backend_attempts", job.Attempts)

	if err := s.orchestrator.Dispatch(ctx, job); err != nil {
		if errors.Is(err, orchestrator.ErrJobAlreadyActive) {
			s.logger.Debug("fetched job already active", "job_id", job.ID)
			return TickBusy, nil
		}
		return TickError, fmt.Errorf("dispatch job %s: %w", job.ID, err)
	}

	return TickDispatched, nil
}

// rejectInvalid отчитывается о задаче, которую backend уже выдал, но
// выполнить нельзя. Иначе она висит до reset-stuck.
func (s *Scheduler) rejectInvalid(ctx context.Context, invalid *queue.InvalidJobError) {
	logger := telemetry.WithJobID(s.logger, invalid.Job.ID)

	rs, err := state.LoadRetrySettings(ctx, s.store)
	if err != nil {
		logger.Warn("failed to load retry settings, using backend defaults", "error", err)
	}

	willRetry, err := s.queue.ReportFailure(ctx, invalid.Job.ID, "invalid job: "+invalid.Err.Error(), rs)
	if err != nil {
		logger.Error("failed to report invalid job", "error", err)
		return
	}
	logger.Warn("invalid job rejected", "reason", invalid.Err, "will_retry", willRetry)
}
