package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shaiso/jobpilot/internal/domain"
	"github.com/shaiso/jobpilot/internal/executor"
	"github.com/shaiso/jobpilot/internal/telemetry"
)

// timeout срабатывает, если терминальный сигнал не пришёл вовремя.
// Запись уже удалена — no-op.
func (o *Orchestrator) timeout(executorID string) {
	o.finalize(executorID, timedOut())
}

// finalize выполняет терминальный переход экземпляра задачи.
//
// Идемпотентен: запись удаляется из реестра под мьютексом до любых
// дальнейших действий, поэтому повторный вызов (дубликат сигнала,
// гонка с таймаутом) ничего не делает.
func (o *Orchestrator) finalize(executorID string, res result) {
	o.mu.Lock()
	entry, ok := o.active[executorID]
	if !ok {
		o.mu.Unlock()
		return
	}
	delete(o.active, executorID)
	if entry.timer != nil {
		entry.timer.Stop()
	}

	job := entry.job
	handle := entry.handle
	logger := telemetry.WithExecutorID(telemetry.WithJobID(o.logger, job.ID), executorID)

	if res.kind == domain.OutcomeCrashed {
		count := o.retries[job.ID]
		if count < o.maxLocalRetries {
			count++
			o.retries[job.ID] = count
			// job id остаётся зарезервированным на время задержки
			o.byJob[job.ID] = ""
			o.mu.Unlock()

			destroy(handle, logger)
			o.scheduleRetry(job, count)
			return
		}
		res = failed(domain.FailureCrash, reasonClosedRepeatedly)
	}

	delete(o.retries, job.ID)
	if res.kind == domain.OutcomeSucceeded {
		entry.state = domain.JobStateSucceeded
	} else {
		entry.state = domain.JobStateFailed
	}
	o.mu.Unlock()

	ctx := context.Background()
	success := res.kind == domain.OutcomeSucceeded

	event := domain.JobEvent{
		JobID:        job.ID,
		ExecutorID:   executorID,
		LocalAttempt: entry.localAttempt,
	}

	if success {
		logger.Info("job succeeded", "duration", o.now().Sub(entry.dispatchedAt))
		if err := o.queue.ReportSuccess(ctx, job.ID); err != nil {
			logger.Error("failed to report success", "error", err)
		}
		event.Type = domain.JobEventSucceeded
	} else {
		logger.Warn("job failed",
			"reason", res.reason,
			"failure_class", res.class,
			"duration", o.now().Sub(entry.dispatchedAt),
		)
		willRetry, err := o.queue.ReportFailure(ctx, job.ID, res.reason, o.retrySettings(ctx))
		switch {
		case err != nil:
			logger.Error("failed to report failure", "error", err)
		case willRetry:
			logger.Info("backend will retry job")
		default:
			logger.Info("backend will not retry job")
		}
		event.Type = domain.JobEventFailed
		event.Reason = res.reason
		event.FailureClass = res.class
		event.WillRetry = willRetry
	}

	o.recorder.JobFinished(ctx, job, success, res.reason)
	telemetry.JobsFinalized.WithLabelValues(string(res.kind)).Inc()
	o.publish(ctx, event)
	o.persistRetries(ctx)

	o.mu.Lock()
	if id, reserved := o.byJob[job.ID]; reserved && id == executorID {
		delete(o.byJob, job.ID)
	}
	o.updateActiveGauge()
	o.mu.Unlock()

	destroy(handle, logger)
}

// scheduleRetry повторно запускает задачу после задержки.
// Без обращения к backend и без изменения статистики.
func (o *Orchestrator) scheduleRetry(job *domain.Job, attempt int) {
	delay := o.retryDelay(attempt)
	logger := telemetry.WithJobID(o.logger, job.ID)

	logger.Warn("executor closed without outcome, retrying locally",
		"attempt", attempt,
		"max_local_retries", o.maxLocalRetries,
		"delay", delay,
	)
	telemetry.LocalRetries.Inc()

	ctx := context.Background()
	o.publish(ctx, domain.JobEvent{
		Type:         domain.JobEventRetrying,
		JobID:        job.ID,
		LocalAttempt: attempt,
		FailureClass: domain.FailureCrash,
	})
	o.persistRetries(ctx)

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()

		<-o.after(delay)

		if err := o.dispatch(ctx, job, attempt); err != nil {
			logger.Warn("local retry dispatch failed", "attempt", attempt, "error", err)
		}
	}()
}

// retryDelay — пауза перед локальным повтором attempt.
func (o *Orchestrator) retryDelay(attempt int) time.Duration {
	if o.localRetryMaxDelay <= 0 {
		return o.localRetryDelay
	}
	return Backoff(attempt, o.localRetryDelay, o.localRetryMaxDelay)
}

func destroy(handle executor.Handle, logger *slog.Logger) {
	if handle == nil {
		return
	}
	if err := handle.Destroy(); err != nil && !errors.Is(err, executor.ErrClosed) {
		logger.Warn("failed to destroy executor", "error", err)
	}
}
