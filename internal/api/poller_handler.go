package api

import "net/http"

// StartPoller включает поллинг.
// POST /api/v1/poller/start
func (h *Handler) StartPoller(w http.ResponseWriter, r *http.Request) {
	if err := h.ctrl.Start(r.Context()); err != nil {
		HandleError(w, h.logger, err)
		return
	}
	Success(w, PollerResponse{Enabled: true})
}

// StopPoller выключает поллинг. Задачи в работе продолжаются.
// POST /api/v1/poller/stop
func (h *Handler) StopPoller(w http.ResponseWriter, r *http.Request) {
	if err := h.ctrl.Stop(r.Context()); err != nil {
		HandleError(w, h.logger, err)
		return
	}
	Success(w, PollerResponse{Enabled: false})
}

// PollNow выполняет один тик вне расписания.
// POST /api/v1/poller/poll
func (h *Handler) PollNow(w http.ResponseWriter, r *http.Request) {
	result, err := h.ctrl.Poll(r.Context())
	if err != nil {
		HandleError(w, h.logger, err)
		return
	}
	Success(w, PollResponse{Result: result})
}
