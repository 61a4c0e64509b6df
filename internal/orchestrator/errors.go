package orchestrator

import "errors"

// Ошибки оркестратора.
var (
	// ErrInvalidJob — задача не прошла валидацию.
	ErrInvalidJob = errors.New("invalid job")

	// ErrJobAlreadyActive — задача с таким id уже в работе.
	ErrJobAlreadyActive = errors.New("job already active")

	// ErrDeliveryFailed — executor не готов или не подтвердил START.
	// Задача уже финализирована как FAILED.
	ErrDeliveryFailed = errors.New("job delivery failed")

	// ErrDispatchInterrupted — executor закрылся или истёк таймаут во время
	// dispatch. Дальнейшую судьбу задачи решает crash/timeout путь.
	ErrDispatchInterrupted = errors.New("dispatch interrupted")

	// ErrOrchestratorClosed — оркестратор не принимает новые задачи.
	ErrOrchestratorClosed = errors.New("orchestrator closed")
)
