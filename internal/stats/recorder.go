package stats

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shaiso/jobpilot/internal/domain"
	"github.com/shaiso/jobpilot/internal/state"
)

// DefaultHistoryCapacity — размер истории по умолчанию.
const DefaultHistoryCapacity = 50

// Recorder ведёт счётчики и историю обработанных задач.
//
// Каждая мутация сразу записывается в state.Store. Ошибки записи
// логируются: локальная статистика вспомогательная, источник истины —
// backend очереди.
type Recorder struct {
	store    state.Store
	capacity int
	logger   *slog.Logger
	now      func() time.Time

	mu       sync.Mutex
	stats    domain.Stats
	history  []domain.HistoryItem // новые первыми
	inFlight map[string]domain.CurrentJob
}

// NewRecorder создаёт Recorder и загружает сохранённое состояние.
func NewRecorder(ctx context.Context, store state.Store, capacity int, logger *slog.Logger) (*Recorder, error) {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	if logger == nil {
		logger = slog.Default()
	}

	r := &Recorder{
		store:    store,
		capacity: capacity,
		logger:   logger,
		now:      time.Now,
		inFlight: make(map[string]domain.CurrentJob),
	}

	if _, err := store.Get(ctx, state.KeyStats, &r.stats); err != nil {
		return nil, fmt.Errorf("load stats: %w", err)
	}
	if _, err := store.Get(ctx, state.KeyHistory, &r.history); err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	// После рестарта в работе ничего нет.
	r.stats.CurrentJob = nil
	if len(r.history) > capacity {
		r.history = r.history[:capacity]
	}

	return r, nil
}

// JobStarted фиксирует начало обработки: currentJob и запись processing.
func (r *Recorder) JobStarted(ctx context.Context, job *domain.Job) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.inFlight[job.ID] = domain.CurrentJob{ID: job.ID, Title: job.Title}
	r.updateCurrentJob()

	// Незавершённая запись с тем же id (например, с прошлого запуска)
	// заменяется, чтобы задача не появилась в processing дважды.
	if i := r.findProcessing(job.ID); i >= 0 {
		r.history = append(r.history[:i], r.history[i+1:]...)
	}

	item := domain.HistoryItem{
		ID:        job.ID,
		Title:     job.Title,
		URL:       job.TargetURL,
		Status:    domain.HistoryStatusProcessing,
		Timestamp: r.now(),
		Price:     job.Price,
	}
	r.history = append([]domain.HistoryItem{item}, r.history...)
	if len(r.history) > r.capacity {
		r.history = r.history[:r.capacity]
	}

	r.persist(ctx)
}

// JobFinished фиксирует терминальный переход задачи.
//
// Запись processing обновляется на месте. Если её уже нет (вытеснена
// или осталась до рестарта), добавляется новая терминальная запись.
func (r *Recorder) JobFinished(ctx context.Context, job *domain.Job, succeeded bool, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()

	delete(r.inFlight, job.ID)
	r.updateCurrentJob()

	r.stats.Processed++
	status := domain.HistoryStatusFailed
	if succeeded {
		r.stats.Succeeded++
		status = domain.HistoryStatusCompleted
		reason = ""
	} else {
		r.stats.Failed++
	}
	r.stats.LastProcessedAt = &now

	if i := r.findProcessing(job.ID); i >= 0 {
		r.history[i].Status = status
		r.history[i].Timestamp = now
		r.history[i].Error = reason
	} else {
		item := domain.HistoryItem{
			ID:        job.ID,
			Title:     job.Title,
			URL:       job.TargetURL,
			Status:    status,
			Timestamp: now,
			Price:     job.Price,
			Error:     reason,
		}
		r.history = append([]domain.HistoryItem{item}, r.history...)
		if len(r.history) > r.capacity {
			r.history = r.history[:r.capacity]
		}
	}

	r.persist(ctx)
}

// Stats возвращает копию счётчиков.
func (r *Recorder) Stats() domain.Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.copyStats()
}

// History возвращает копию истории, новые записи первыми.
func (r *Recorder) History() []domain.HistoryItem {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.HistoryItem, len(r.history))
	copy(out, r.history)
	return out
}

// Reset обнуляет счётчики и очищает историю.
// Задачи в работе остаются в currentJob.
func (r *Recorder) Reset(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stats = domain.Stats{}
	r.history = nil
	r.updateCurrentJob()

	r.persist(ctx)
	r.logger.Info("stats reset")
}

func (r *Recorder) copyStats() domain.Stats {
	s := r.stats
	if s.CurrentJob != nil {
		cj := *s.CurrentJob
		s.CurrentJob = &cj
	}
	if s.LastProcessedAt != nil {
		t := *s.LastProcessedAt
		s.LastProcessedAt = &t
	}
	return s
}

// updateCurrentJob: currentJob есть, только если в работе ровно одна задача.
func (r *Recorder) updateCurrentJob() {
	if len(r.inFlight) != 1 {
		r.stats.CurrentJob = nil
		return
	}
	for _, cj := range r.inFlight {
		r.stats.CurrentJob = &cj
	}
}

func (r *Recorder) findProcessing(jobID string) int {
	for i := range r.history {
		if r.history[i].ID == jobID && r.history[i].Status == domain.HistoryStatusProcessing {
			return i
		}
	}
	return -1
}

// persist вызывается под r.mu.
func (r *Recorder) persist(ctx context.Context) {
	if err := r.store.Set(ctx, state.KeyStats, r.stats); err != nil {
		r.logger.Warn("failed to persist stats", "error", err)
	}
	if err := r.store.Set(ctx, state.KeyHistory, r.history); err != nil {
		r.logger.Warn("failed to persist history", "error", err)
	}
}
