package api

import (
	"encoding/json"
	"net/http"

	"github.com/shaiso/jobpilot/internal/domain"
)

// GetStatus возвращает сводку состояния.
// GET /api/v1/status
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	Success(w, h.ctrl.Status())
}

// GetHistory возвращает историю задач, новые первыми.
// GET /api/v1/history
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	history := h.ctrl.History()
	if history == nil {
		history = []domain.HistoryItem{}
	}
	List(w, history, len(history))
}

// ResetStuck возвращает зависшие задачи в очередь (кроме задач в работе).
// POST /api/v1/jobs/reset-stuck
func (h *Handler) ResetStuck(w http.ResponseWriter, r *http.Request) {
	n, err := h.ctrl.ResetStuck(r.Context())
	if err != nil {
		HandleError(w, h.logger, err)
		return
	}
	Success(w, CountResponse{Count: n})
}

// CancelPending отменяет все ожидающие задачи.
// POST /api/v1/jobs/cancel-pending
func (h *Handler) CancelPending(w http.ResponseWriter, r *http.Request) {
	n, err := h.ctrl.CancelPending(r.Context())
	if err != nil {
		HandleError(w, h.logger, err)
		return
	}
	Success(w, CountResponse{Count: n})
}

// QueueHealth проверяет доступность очереди.
// GET /api/v1/queue/health
func (h *Handler) QueueHealth(w http.ResponseWriter, r *http.Request) {
	status, err := h.ctrl.QueueHealth(r.Context())
	if err != nil {
		HandleError(w, h.logger, err)
		return
	}
	Success(w, QueueHealthResponse{Status: status})
}

// ResetStats обнуляет счётчики и историю.
// POST /api/v1/stats/reset
func (h *Handler) ResetStats(w http.ResponseWriter, r *http.Request) {
	h.ctrl.ResetStats(r.Context())
	NoContent(w)
}

// GetRetrySettings возвращает настройки backend retry.
// GET /api/v1/settings/retry
func (h *Handler) GetRetrySettings(w http.ResponseWriter, r *http.Request) {
	rs, err := h.ctrl.RetrySettings(r.Context())
	if err != nil {
		HandleError(w, h.logger, err)
		return
	}
	Success(w, rs)
}

// UpdateRetrySettings обновляет настройки backend retry.
// Незаданные поля сохраняют текущие значения.
// PUT /api/v1/settings/retry
func (h *Handler) UpdateRetrySettings(w http.ResponseWriter, r *http.Request) {
	var req RetrySettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	rs, err := h.ctrl.RetrySettings(r.Context())
	if err != nil {
		HandleError(w, h.logger, err)
		return
	}
	if req.MaxAttempts != nil {
		rs.MaxAttempts = *req.MaxAttempts
	}
	if req.MaxBackoffMs != nil {
		rs.MaxBackoffMs = *req.MaxBackoffMs
	}

	if err := h.ctrl.SetRetrySettings(r.Context(), rs); err != nil {
		HandleError(w, h.logger, err)
		return
	}
	Success(w, rs)
}
