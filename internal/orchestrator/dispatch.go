package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/jobpilot/internal/domain"
	"github.com/shaiso/jobpilot/internal/executor"
	"github.com/shaiso/jobpilot/internal/telemetry"
)

// Dispatch передаёт задачу изолированному executor'у.
//
// Возвращается, как только доставка подтверждена или не удалась;
// выполнение ожидается в отдельной горутине. Отмена ctx после
// возврата на задачу не влияет.
func (o *Orchestrator) Dispatch(ctx context.Context, job *domain.Job) error {
	if job == nil {
		return fmt.Errorf("%w: nil job", ErrInvalidJob)
	}
	if err := job.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidJob, err)
	}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return ErrOrchestratorClosed
	}
	if _, busy := o.byJob[job.ID]; busy {
		o.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrJobAlreadyActive, job.ID)
	}
	o.byJob[job.ID] = ""
	o.updateActiveGauge()
	attempt := o.retries[job.ID]
	o.mu.Unlock()

	ctx = context.WithoutCancel(ctx)
	o.recorder.JobStarted(ctx, job)

	return o.dispatch(ctx, job, attempt)
}

// dispatch создаёт новый экземпляр задачи. Резервация job id уже
// сделана вызывающим (Dispatch или локальный retry).
func (o *Orchestrator) dispatch(ctx context.Context, job *domain.Job, attempt int) error {
	executorID := uuid.NewString()
	logger := telemetry.WithExecutorID(telemetry.WithJobID(o.logger, job.ID), executorID)

	entry := &activeJob{
		job:          job,
		executorID:   executorID,
		dispatchedAt: o.now(),
		state:        domain.JobStateFetched,
		localAttempt: attempt,
	}

	o.mu.Lock()
	o.active[executorID] = entry
	o.byJob[job.ID] = executorID
	entry.timer = time.AfterFunc(o.jobTimeout, func() { o.timeout(executorID) })
	entry.state = domain.JobStateDispatching
	o.mu.Unlock()

	telemetry.JobsDispatched.Inc()
	logger.Info("dispatching job",
		"target_url", job.TargetURL,
		"price", job.Price,
		"backend_attempts", job.Attempts,
		"local_attempt", attempt,
	)
	o.publish(ctx, domain.JobEvent{
		Type:         domain.JobEventDispatched,
		JobID:        job.ID,
		ExecutorID:   executorID,
		LocalAttempt: attempt,
	})

	handle, err := o.launcher.Launch(ctx, executorID, job)
	if err != nil {
		logger.Error("failed to launch executor", "error", err)
		o.finalize(executorID, failed(domain.FailureDelivery, fmt.Sprintf("executor launch failed: %v", err)))
		return fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
	}

	o.mu.Lock()
	_, alive := o.active[executorID]
	if alive {
		entry.handle = handle
	}
	o.mu.Unlock()

	if !alive {
		// таймаут сработал, пока executor запускался
		handle.Destroy()
		return fmt.Errorf("%w: %s", ErrDispatchInterrupted, reasonTimedOut)
	}

	if err := o.waitReady(ctx, handle); err != nil {
		return o.dispatchFailed(executorID, err, reasonNotReady, logger)
	}

	received, err := o.deliver(ctx, handle, job)
	if err == nil && !received {
		err = errors.New("executor rejected job")
	}
	if err != nil {
		return o.dispatchFailed(executorID, err, reasonNoAck, logger)
	}

	o.mu.Lock()
	_, alive = o.active[executorID]
	if alive {
		entry.state = domain.JobStateExecuting
	}
	o.mu.Unlock()

	if !alive {
		return fmt.Errorf("%w: %s", ErrDispatchInterrupted, reasonTimedOut)
	}

	logger.Info("job acknowledged by executor")

	o.wg.Add(1)
	go o.await(executorID, job, handle)

	return nil
}

// dispatchFailed разбирает ошибку handshake или доставки.
//
// Закрытие executor'а — crash (локальный retry). Остальное —
// DeliveryFailure, бюджет локальных повторов не тратится.
func (o *Orchestrator) dispatchFailed(executorID string, err error, reason string, logger *slog.Logger) error {
	if errors.Is(err, executor.ErrClosed) {
		logger.Warn("executor closed during dispatch", "error", err)
		o.finalize(executorID, crashed())
		return fmt.Errorf("%w: %w", ErrDispatchInterrupted, err)
	}

	logger.Warn("job delivery failed", "reason", reason, "error", err)
	o.finalize(executorID, failed(domain.FailureDelivery, reason))
	return fmt.Errorf("%w: %s: %w", ErrDeliveryFailed, reason, err)
}

// waitReady опрашивает executor PING'ом с фиксированным интервалом
// до ready=true или потолка попыток.
func (o *Orchestrator) waitReady(ctx context.Context, handle executor.Handle) error {
	var lastErr error

	for attempt := 1; attempt <= o.readyAttempts; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, o.ackTimeout)
		ready, err := handle.Ping(pingCtx)
		cancel()

		switch {
		case errors.Is(err, executor.ErrClosed):
			return err
		case err != nil:
			lastErr = err
		case ready:
			return nil
		default:
			lastErr = errors.New("executor reported not ready")
		}

		if attempt == o.readyAttempts {
			break
		}

		select {
		case <-time.After(o.readyInterval):
		case <-handle.Done():
			return executor.ErrClosed
		}
	}

	return fmt.Errorf("no ready signal after %d attempts: %w", o.readyAttempts, lastErr)
}

// deliver отправляет START ровно один раз и ждёт ACK не дольше ackTimeout.
func (o *Orchestrator) deliver(ctx context.Context, handle executor.Handle, job *domain.Job) (bool, error) {
	ackCtx, cancel := context.WithTimeout(ctx, o.ackTimeout)
	defer cancel()

	return handle.Start(ackCtx, job)
}

// await ждёт результат executor'а. Таймаут обрабатывается таймером
// записи: он уничтожает executor, и Done() закрывается.
func (o *Orchestrator) await(executorID string, job *domain.Job, handle executor.Handle) {
	defer o.wg.Done()

	for {
		select {
		case out := <-handle.Outcomes():
			if out.JobID != job.ID {
				o.logger.Warn("ignoring outcome for another job",
					"executor_id", executorID,
					"job_id", job.ID,
					"outcome_job_id", out.JobID,
				)
				continue
			}
			o.finalize(executorID, outcomeResult(out))
			return

		case <-handle.Done():
			// Результат, пришедший до закрытия, уже в канале.
			select {
			case out := <-handle.Outcomes():
				if out.JobID == job.ID {
					o.finalize(executorID, outcomeResult(out))
					return
				}
			default:
			}
			o.finalize(executorID, crashed())
			return
		}
	}
}

func outcomeResult(out executor.Outcome) result {
	if out.Success {
		return succeeded()
	}
	return failed(domain.FailureExecution, out.Error)
}
