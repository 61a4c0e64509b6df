package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
// token — bearer token для /api/v1 (пустой — без авторизации).
func (h *Handler) RegisterRoutes(mux *http.ServeMux, token string) {
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
		BearerAuth(token),
	)

	// Status
	mux.Handle("GET /api/v1/status", chain(http.HandlerFunc(h.GetStatus)))
	mux.Handle("GET /api/v1/history", chain(http.HandlerFunc(h.GetHistory)))

	// Poller
	mux.Handle("POST /api/v1/poller/start", chain(http.HandlerFunc(h.StartPoller)))
	mux.Handle("POST /api/v1/poller/stop", chain(http.HandlerFunc(h.StopPoller)))
	mux.Handle("POST /api/v1/poller/poll", chain(http.HandlerFunc(h.PollNow)))

	// Queue
	mux.Handle("POST /api/v1/jobs/reset-stuck", chain(http.HandlerFunc(h.ResetStuck)))
	mux.Handle("POST /api/v1/jobs/cancel-pending", chain(http.HandlerFunc(h.CancelPending)))
	mux.Handle("GET /api/v1/queue/health", chain(http.HandlerFunc(h.QueueHealth)))

	// Settings & stats
	mux.Handle("GET /api/v1/settings/retry", chain(http.HandlerFunc(h.GetRetrySettings)))
	mux.Handle("PUT /api/v1/settings/retry", chain(http.HandlerFunc(h.UpdateRetrySettings)))
	mux.Handle("POST /api/v1/stats/reset", chain(http.HandlerFunc(h.ResetStats)))

	mux.Handle("/api/", chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		NotFound(w, "route not found")
	})))
}
