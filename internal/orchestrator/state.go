package orchestrator

import (
	"time"

	"github.com/shaiso/jobpilot/internal/domain"
	"github.com/shaiso/jobpilot/internal/executor"
)

// activeJob — запись реестра активных задач (ключ — id executor'а).
//
// Создаётся при dispatch, удаляется при любом терминальном переходе.
// Все поля меняются только под Orchestrator.mu.
type activeJob struct {
	job          *domain.Job
	executorID   string
	handle       executor.Handle
	dispatchedAt time.Time
	timer        *time.Timer
	state        domain.JobState

	// localAttempt — номер экземпляра задачи (0 — первый, >0 — локальный retry).
	localAttempt int
}

// ActiveJob — снимок записи реестра для операторских поверхностей.
type ActiveJob struct {
	JobID        string          `json:"jobId"`
	Title        string          `json:"title,omitempty"`
	ExecutorID   string          `json:"executorId,omitempty"`
	State        domain.JobState `json:"state"`
	DispatchedAt time.Time       `json:"dispatchedAt"`
	LocalAttempt int             `json:"localAttempt"`
}

func (e *activeJob) snapshot() ActiveJob {
	return ActiveJob{
		JobID:        e.job.ID,
		Title:        e.job.Title,
		ExecutorID:   e.executorID,
		State:        e.state,
		DispatchedAt: e.dispatchedAt,
		LocalAttempt: e.localAttempt,
	}
}

// result — терминальный сигнал для finalize.
type result struct {
	kind   domain.OutcomeKind
	class  domain.FailureClass
	reason string
}

func succeeded() result {
	return result{kind: domain.OutcomeSucceeded}
}

func failed(class domain.FailureClass, reason string) result {
	return result{kind: domain.OutcomeFailed, class: class, reason: reason}
}

func crashed() result {
	return result{kind: domain.OutcomeCrashed, class: domain.FailureCrash}
}

func timedOut() result {
	return result{kind: domain.OutcomeTimedOut, class: domain.FailureTimeout, reason: reasonTimedOut}
}

// Причины неудачи, уходящие в backend.
const (
	reasonTimedOut         = "timed out"
	reasonNoAck            = "no acknowledgment"
	reasonNotReady         = "executor not ready"
	reasonClosedRepeatedly = "executor closed repeatedly"
)
