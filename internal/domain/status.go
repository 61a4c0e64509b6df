package domain

// JobState — состояние экземпляра задачи внутри оркестратора.
//
// Жизненный цикл:
//
//	FETCHED → DISPATCHING → EXECUTING → SUCCEEDED
//	                                  ↘ FAILED
//
// Финальные состояния не посещаются повторно. Локальный retry создаёт
// новый экземпляр с тем же ID задачи.
type JobState string

const (
	// JobStateFetched — задача получена из очереди.
	JobStateFetched JobState = "FETCHED"

	// JobStateDispatching — создание executor и readiness handshake.
	JobStateDispatching JobState = "DISPATCHING"

	// JobStateExecuting — executor подтвердил получение задачи.
	JobStateExecuting JobState = "EXECUTING"

	// JobStateSucceeded — задача выполнена.
	JobStateSucceeded JobState = "SUCCEEDED"

	// JobStateFailed — задача завершилась ошибкой.
	JobStateFailed JobState = "FAILED"
)

// IsTerminal возвращает true, если состояние финальное.
func (s JobState) IsTerminal() bool {
	switch s {
	case JobStateSucceeded, JobStateFailed:
		return true
	default:
		return false
	}
}

// HistoryStatus — статус записи в истории.
type HistoryStatus string

const (
	HistoryStatusProcessing HistoryStatus = "processing"
	HistoryStatusCompleted  HistoryStatus = "completed"
	HistoryStatusFailed     HistoryStatus = "failed"
)

// IsTerminal возвращает true для completed и failed.
func (s HistoryStatus) IsTerminal() bool {
	return s == HistoryStatusCompleted || s == HistoryStatusFailed
}

// OutcomeKind — тип терминального сигнала для finalize.
type OutcomeKind string

const (
	// OutcomeSucceeded — executor сообщил SUCCESS.
	OutcomeSucceeded OutcomeKind = "succeeded"

	// OutcomeFailed — executor сообщил FAILURE либо доставка не удалась.
	OutcomeFailed OutcomeKind = "failed"

	// OutcomeCrashed — executor закрылся, не сообщив результат.
	OutcomeCrashed OutcomeKind = "crashed"

	// OutcomeTimedOut — результат не пришёл за отведённое время.
	OutcomeTimedOut OutcomeKind = "timed_out"
)

// FailureClass — класс ошибки для логов и метрик.
type FailureClass string

const (
	FailureDelivery  FailureClass = "delivery"
	FailureExecution FailureClass = "execution"
	FailureCrash     FailureClass = "crash"
	FailureTimeout   FailureClass = "timeout"
)
