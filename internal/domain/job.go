package domain

import "fmt"

// Job — единица работы, полученная из удалённой очереди.
//
// Job неизменяем после получения: Orchestrator только ссылается на него
// на всё время жизненного цикла и никогда не модифицирует.
type Job struct {
	// ID — непрозрачный уникальный идентификатор задачи на стороне backend.
	ID string `json:"id"`

	// TargetURL — адрес страницы, с которой работает executor.
	TargetURL string `json:"targetUrl"`

	// Price — цена в минимальных единицах валюты (копейки, центы).
	Price int64 `json:"price"`

	// Attempts — счётчик попыток, который ведёт backend.
	// Для оркестратора только для чтения.
	Attempts int `json:"attempts"`

	// Title — заголовок для отображения.
	Title string `json:"title,omitempty"`
}

// Validate проверяет, что задача пригодна для dispatch.
func (j *Job) Validate() error {
	if j.ID == "" {
		return fmt.Errorf("job id is required")
	}
	if j.TargetURL == "" {
		return fmt.Errorf("job %s: target url is required", j.ID)
	}
	return nil
}

// RetrySettings — настройки backend retry для задач.
//
// Передаются в очередь вместе с отчётом о неудаче, backend сам решает,
// будет ли повтор. Нулевые значения означают "по умолчанию backend'а".
type RetrySettings struct {
	// MaxAttempts — потолок попыток на стороне backend.
	MaxAttempts int `json:"maxAttempts,omitempty" yaml:"max_attempts"`

	// MaxBackoffMs — максимальная задержка между попытками backend'а.
	MaxBackoffMs int64 `json:"maxBackoffMs,omitempty" yaml:"max_backoff_ms"`
}

// IsZero возвращает true, если настройки не заданы.
func (s RetrySettings) IsZero() bool {
	return s.MaxAttempts == 0 && s.MaxBackoffMs == 0
}

// Validate проверяет, что значения неотрицательны.
func (s RetrySettings) Validate() error {
	if s.MaxAttempts < 0 {
		return fmt.Errorf("max attempts must be >= 0, got %d", s.MaxAttempts)
	}
	if s.MaxBackoffMs < 0 {
		return fmt.Errorf("max backoff must be >= 0, got %d", s.MaxBackoffMs)
	}
	return nil
}
