package api

import "github.com/shaiso/jobpilot/internal/scheduler"

// PollerResponse — ответ на start/stop.
type PollerResponse struct {
	Enabled bool `json:"enabled"`
}

// PollResponse — итог ручного тика.
type PollResponse struct {
	Result scheduler.TickResult `json:"result"`
}

// CountResponse — число задач, затронутых операцией.
type CountResponse struct {
	Count int `json:"count"`
}

// QueueHealthResponse — состояние очереди.
type QueueHealthResponse struct {
	Status string `json:"status"`
}

// RetrySettingsRequest — частичное обновление настроек backend retry.
type RetrySettingsRequest struct {
	MaxAttempts  *int   `json:"maxAttempts,omitempty"`
	MaxBackoffMs *int64 `json:"maxBackoffMs,omitempty"`
}
