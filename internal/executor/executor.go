package executor

import (
	"context"

	"github.com/shaiso/jobpilot/internal/domain"
)

// Handle — изолированный контекст выполнения одной задачи.
//
// Оркестратор отправляет ровно одну инструкцию START и ждёт ровно один
// ACK, а затем ровно один результат в Outcomes(). Закрытие Done() без
// результата означает crash.
type Handle interface {
	// ID — идентификатор executor'а (ключ в реестре активных задач).
	ID() string

	// Ping — readiness probe: PING → {ready}.
	Ping(ctx context.Context) (bool, error)

	// Start отправляет задачу и ждёт подтверждения {received}.
	Start(ctx context.Context, job *domain.Job) (bool, error)

	// Outcomes — терминальные сигналы executor'а.
	Outcomes() <-chan Outcome

	// Done закрывается, когда контекст executor'а уничтожен или закрыт.
	// Результат, полученный до закрытия, уже лежит в Outcomes().
	Done() <-chan struct{}

	// Destroy принудительно освобождает ресурсы. Идемпотентен.
	Destroy() error
}

// Launcher создаёт executor'ы.
type Launcher interface {
	Launch(ctx context.Context, id string, job *domain.Job) (Handle, error)
}

// Outcome — терминальный сигнал executor'а: SUCCESS(jobID) или
// FAILURE(jobID, error).
type Outcome struct {
	JobID   string
	Success bool
	Error   string
}
