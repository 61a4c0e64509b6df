package domain

import "time"

// JobEventType — тип события жизненного цикла задачи.
type JobEventType string

const (
	JobEventDispatched JobEventType = "job.dispatched"
	JobEventSucceeded  JobEventType = "job.succeeded"
	JobEventFailed     JobEventType = "job.failed"
	JobEventRetrying   JobEventType = "job.retrying"
)

// JobEvent — событие жизненного цикла, публикуемое наружу (AMQP).
type JobEvent struct {
	Type       JobEventType `json:"type"`
	JobID      string       `json:"job_id"`
	ExecutorID string       `json:"executor_id,omitempty"`

	// LocalAttempt — номер локальной попытки (0 — первая).
	LocalAttempt int `json:"local_attempt"`

	Reason       string       `json:"reason,omitempty"`
	FailureClass FailureClass `json:"failure_class,omitempty"`

	// WillRetry — ответ backend'а на отчёт о неудаче.
	WillRetry bool `json:"will_retry,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}
