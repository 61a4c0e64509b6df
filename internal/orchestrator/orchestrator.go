package orchestrator

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/shaiso/jobpilot/internal/domain"
	"github.com/shaiso/jobpilot/internal/executor"
	"github.com/shaiso/jobpilot/internal/state"
	"github.com/shaiso/jobpilot/internal/telemetry"
)

// Default configuration values.
const (
	defaultJobTimeout         = 120 * time.Second
	defaultReadyInterval      = 500 * time.Millisecond
	defaultReadyAttempts      = 20
	defaultAckTimeout         = 10 * time.Second
	defaultMaxLocalRetries    = 3
	defaultLocalRetryDelay    = 2 * time.Second
)

// Queue — часть клиента очереди, нужная для финализации.
type Queue interface {
	ReportSuccess(ctx context.Context, jobID string) error
	ReportFailure(ctx context.Context, jobID, message string, rs domain.RetrySettings) (bool, error)
}

// Recorder — статистика и история (stats.Recorder).
type Recorder interface {
	JobStarted(ctx context.Context, job *domain.Job)
	JobFinished(ctx context.Context, job *domain.Job, succeeded bool, reason string)
}

// EventPublisher публикует события жизненного цикла (mq.Publisher).
type EventPublisher interface {
	PublishJobEvent(ctx context.Context, event domain.JobEvent) error
}

// Orchestrator ведёт задачу от получения до терминального состояния.
//
// Orchestrator:
//   - Создаёт executor и проводит readiness handshake
//   - Доставляет задачу и требует подтверждения
//   - Ждёт результат, crash или таймаут, что наступит раньше
//   - Повторяет задачу локально при crash executor'а
//   - Отчитывается в очередь и обновляет статистику
//
// Реестр активных задач, резервации job id и счётчики локальных
// повторов защищены одним мьютексом.
type Orchestrator struct {
	queue     Queue
	launcher  executor.Launcher
	recorder  Recorder
	store     state.Store
	publisher EventPublisher

	jobTimeout          time.Duration
	readyInterval       time.Duration
	readyAttempts       int
	ackTimeout          time.Duration
	maxLocalRetries     int
	localRetryDelay     time.Duration
	localRetryMaxDelay  time.Duration
	persistLocalRetries bool

	// active — записи реестра (executorID → entry).
	active map[string]*activeJob
	// byJob — jobID → executorID. Пустая строка — задача зарезервирована
	// на время задержки перед локальным retry.
	byJob map[string]string
	// retries — счётчики локальных повторов (jobID → count).
	retries map[string]int
	closed  bool
	mu      sync.Mutex

	persistMu sync.Mutex

	logger *slog.Logger
	wg     sync.WaitGroup
	now    func() time.Time
	// after — ожидание перед локальным retry (time.After).
	after func(time.Duration) <-chan time.Time
}

// Config — конфигурация Orchestrator.
type Config struct {
	Queue    Queue
	Launcher executor.Launcher
	Recorder Recorder

	// Store — источник настроек backend retry и, при
	// PersistLocalRetries, хранилище счётчиков локальных повторов.
	Store state.Store

	// Publisher — опционально.
	Publisher EventPublisher

	JobTimeout    time.Duration // default: 120s
	ReadyInterval time.Duration // интервал PING (default: 500ms)
	ReadyAttempts int           // потолок PING (default: 20)
	AckTimeout    time.Duration // ожидание ACK (default: 10s)

	// MaxLocalRetries — потолок локальных повторов при crash.
	// 0 — default (3), отрицательное значение отключает повторы.
	MaxLocalRetries    int
	// LocalRetryDelay — фиксированная пауза перед локальным повтором (default: 2s).
	LocalRetryDelay time.Duration
	// LocalRetryMaxDelay > 0 включает рост паузы: Backoff(attempt,
	// LocalRetryDelay, LocalRetryMaxDelay). 0 — пауза постоянная.
	LocalRetryMaxDelay time.Duration

	// PersistLocalRetries сохраняет счётчики в Store, чтобы рестарт
	// не обнулял бюджет локальных повторов.
	PersistLocalRetries bool

	Logger *slog.Logger
}

// New создаёт Orchestrator.
func New(cfg Config) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	o := &Orchestrator{
		queue:               cfg.Queue,
		launcher:            cfg.Launcher,
		recorder:            cfg.Recorder,
		store:               cfg.Store,
		publisher:           cfg.Publisher,
		jobTimeout:          orDefault(cfg.JobTimeout, defaultJobTimeout),
		readyInterval:       orDefault(cfg.ReadyInterval, defaultReadyInterval),
		ackTimeout:          orDefault(cfg.AckTimeout, defaultAckTimeout),
		localRetryDelay:     orDefault(cfg.LocalRetryDelay, defaultLocalRetryDelay),
		localRetryMaxDelay:  max(cfg.LocalRetryMaxDelay, 0),
		readyAttempts:       cfg.ReadyAttempts,
		maxLocalRetries:     cfg.MaxLocalRetries,
		persistLocalRetries: cfg.PersistLocalRetries && cfg.Store != nil,
		active:              make(map[string]*activeJob),
		byJob:               make(map[string]string),
		retries:             make(map[string]int),
		logger:              logger,
		now:                 time.Now,
		after:               time.After,
	}

	if o.readyAttempts <= 0 {
		o.readyAttempts = defaultReadyAttempts
	}
	switch {
	case o.maxLocalRetries == 0:
		o.maxLocalRetries = defaultMaxLocalRetries
	case o.maxLocalRetries < 0:
		o.maxLocalRetries = 0
	}

	if o.persistLocalRetries {
		counters, err := state.LoadLocalRetries(context.Background(), o.store)
		if err != nil {
			logger.Warn("failed to load local retry counters", "error", err)
		} else {
			o.retries = counters
		}
	}

	return o
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

// Close запрещает новые Dispatch. Задачи в работе продолжаются
// до своего терминального перехода.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
}

// Drain ждёт завершения всех задач в работе или отмены ctx.
func (o *Orchestrator) Drain(ctx context.Context) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		if o.ActiveCount() == 0 {
			o.wg.Wait()
			return nil
		}
		select {
		case <-ctx.Done():
			o.logger.Warn("drain interrupted", "active_jobs", o.ActiveCount())
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// ActiveCount возвращает число задач в работе, включая ожидающие
// локального retry.
func (o *Orchestrator) ActiveCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.byJob)
}

// IsJobActive проверяет, находится ли задача в работе.
func (o *Orchestrator) IsJobActive(jobID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.byJob[jobID]
	return ok
}

// ActiveJobIDs возвращает id задач в работе.
func (o *Orchestrator) ActiveJobIDs() []string {
	o.mu.Lock()
	defer o.mu.Unlock()

	ids := make([]string, 0, len(o.byJob))
	for id := range o.byJob {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ActiveJobs возвращает снимок реестра, старые записи первыми.
func (o *Orchestrator) ActiveJobs() []ActiveJob {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]ActiveJob, 0, len(o.active))
	for _, e := range o.active {
		out = append(out, e.snapshot())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].DispatchedAt.Before(out[j].DispatchedAt)
	})
	return out
}

// LocalRetries возвращает счётчик локальных повторов задачи.
func (o *Orchestrator) LocalRetries(jobID string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.retries[jobID]
}

// updateActiveGauge вызывается под o.mu.
func (o *Orchestrator) updateActiveGauge() {
	telemetry.ActiveJobs.Set(float64(len(o.byJob)))
}

// persistRetries сохраняет счётчики локальных повторов, если включено.
func (o *Orchestrator) persistRetries(ctx context.Context) {
	if !o.persistLocalRetries {
		return
	}

	o.persistMu.Lock()
	defer o.persistMu.Unlock()

	o.mu.Lock()
	counters := make(map[string]int, len(o.retries))
	for id, n := range o.retries {
		counters[id] = n
	}
	o.mu.Unlock()

	if err := state.SaveLocalRetries(ctx, o.store, counters); err != nil {
		o.logger.Warn("failed to persist local retry counters", "error", err)
	}
}

// retrySettings читает настройки backend retry. Ошибка — значения backend'а.
func (o *Orchestrator) retrySettings(ctx context.Context) domain.RetrySettings {
	if o.store == nil {
		return domain.RetrySettings{}
	}
	rs, err := state.LoadRetrySettings(ctx, o.store)
	if err != nil {
		o.logger.Warn("failed to load retry settings", "error", err)
		return domain.RetrySettings{}
	}
	return rs
}

func (o *Orchestrator) publish(ctx context.Context, event domain.JobEvent) {
	if o.publisher == nil {
		return
	}
	event.Timestamp = o.now()
	if err := o.publisher.PublishJobEvent(ctx, event); err != nil {
		o.logger.Warn("failed to publish job event",
			"type", event.Type,
			"job_id", event.JobID,
			"error", err,
		)
	}
}
