// Package queue — HTTP клиент удалённой очереди задач.
//
// Контракт:
//
//	GET  {base}/next?clientId=…   → {item: Job|null}
//	POST {base}/{id}/complete     → 2xx
//	POST {base}/{id}/fail         → {willRetry: bool}
//	GET  {base}/health            → {status}
//	POST {base}/reset-stuck       → {count}
//	POST {base}/cancel-pending    → {count}
//
// Аутентификация — bearer токен. Ответы не 2xx разбираются как
// {message|error}, иначе как текст, и возвращаются как *APIError.
// 401/403/404 доступны через errors.Is (ErrUnauthorized, ErrForbidden,
// ErrNotFound), сетевые ошибки — через ErrUnreachable.
package queue
