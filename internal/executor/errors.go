package executor

import "errors"

// Ошибки executor'а.
var (
	// ErrClosed — executor уничтожен или его поток закрылся.
	ErrClosed = errors.New("executor closed")

	// ErrMalformedReply — ответ executor'а не соответствует протоколу.
	ErrMalformedReply = errors.New("malformed executor reply")

	// ErrLaunch — не удалось запустить executor.
	ErrLaunch = errors.New("executor launch failed")
)
