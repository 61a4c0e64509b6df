package queue

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/shaiso/jobpilot/internal/domain"
)

// Ошибки клиента очереди.
var (
	// ErrUnauthorized — 401, неверный или просроченный токен.
	ErrUnauthorized = errors.New("queue: unauthorized")

	// ErrForbidden — 403, у клиента нет доступа.
	ErrForbidden = errors.New("queue: forbidden")

	// ErrNotFound — 404, задача или endpoint не найдены.
	ErrNotFound = errors.New("queue: not found")

	// ErrUnreachable — сетевая ошибка: DNS, connection refused, таймаут.
	ErrUnreachable = errors.New("queue: unreachable")

	// ErrMalformedResponse — 2xx ответ, который не удалось разобрать.
	ErrMalformedResponse = errors.New("queue: malformed response")
)

// APIError — ответ очереди со статусом не 2xx.
type APIError struct {
	Operation  string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("queue %s: HTTP %d", e.Operation, e.StatusCode)
	}
	return fmt.Sprintf("queue %s: HTTP %d: %s", e.Operation, e.StatusCode, e.Message)
}

// Unwrap позволяет проверять класс ошибки через errors.Is.
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	default:
		return nil
	}
}

// IsAuthError возвращает true для 401 и 403.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrForbidden)
}

// InvalidJobError — очередь выдала задачу, которую нельзя выполнить.
// Задача уже закреплена за клиентом на стороне backend, поэтому
// вызывающий должен отчитаться о ней через ReportFailure.
type InvalidJobError struct {
	Job *domain.Job
	Err error
}

func (e *InvalidJobError) Error() string {
	return fmt.Sprintf("%v: invalid job %s: %v", ErrMalformedResponse, e.Job.ID, e.Err)
}

// Unwrap сохраняет совместимость с errors.Is(err, ErrMalformedResponse).
func (e *InvalidJobError) Unwrap() []error {
	return []error{ErrMalformedResponse, e.Err}
}
