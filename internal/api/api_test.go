package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/jobpilot/internal/control"
	"github.com/shaiso/jobpilot/internal/domain"
	"github.com/shaiso/jobpilot/internal/queue"
	"github.com/shaiso/jobpilot/internal/scheduler"
	"github.com/shaiso/jobpilot/internal/telemetry"
)

type fakeController struct {
	enabled  bool
	settings domain.RetrySettings
	history  []domain.HistoryItem
	resets   int
	err      error
}

func (c *fakeController) Start(context.Context) error {
	c.enabled = true
	return c.err
}

func (c *fakeController) Stop(context.Context) error {
	c.enabled = false
	return c.err
}

func (c *fakeController) Poll(context.Context) (scheduler.TickResult, error) {
	return scheduler.TickDispatched, c.err
}

func (c *fakeController) ResetStuck(context.Context) (int, error)    { return 2, c.err }
func (c *fakeController) CancelPending(context.Context) (int, error) { return 4, c.err }

func (c *fakeController) Status() control.Status {
	return control.Status{Enabled: c.enabled, PollInterval: "10s", ClientID: "client-1"}
}

func (c *fakeController) History() []domain.HistoryItem { return c.history }
func (c *fakeController) ResetStats(context.Context)    { c.resets++ }

func (c *fakeController) RetrySettings(context.Context) (domain.RetrySettings, error) {
	return c.settings, nil
}

func (c *fakeController) SetRetrySettings(_ context.Context, rs domain.RetrySettings) error {
	if err := rs.Validate(); err != nil {
		return fmt.Errorf("%w: %v", control.ErrInvalidSettings, err)
	}
	c.settings = rs
	return nil
}

func (c *fakeController) QueueHealth(context.Context) (string, error) { return "ok", c.err }

func newTestServer(t *testing.T, ctrl *fakeController, token string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	NewHandler(Config{Controller: ctrl, Logger: telemetry.DiscardLogger()}).RegisterRoutes(mux, token)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	if resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	}
	return resp, decoded
}

func TestPollerStartStop(t *testing.T) {
	ctrl := &fakeController{}
	srv := newTestServer(t, ctrl, "")

	resp, body := do(t, srv, http.MethodPost, "/api/v1/poller/start", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]any{"enabled": true}, body["data"])
	assert.True(t, ctrl.enabled)

	resp, body = do(t, srv, http.MethodPost, "/api/v1/poller/stop", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]any{"enabled": false}, body["data"])
	assert.False(t, ctrl.enabled)
}

func TestPollNow(t *testing.T) {
	srv := newTestServer(t, &fakeController{}, "")

	resp, body := do(t, srv, http.MethodPost, "/api/v1/poller/poll", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]any{"result": "dispatched"}, body["data"])
}

func TestGetStatus(t *testing.T) {
	srv := newTestServer(t, &fakeController{enabled: true}, "")

	resp, body := do(t, srv, http.MethodGet, "/api/v1/status", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	data := body["data"].(map[string]any)
	assert.Equal(t, true, data["enabled"])
	assert.Equal(t, "10s", data["pollInterval"])
}

func TestGetHistory_EmptyIsArray(t *testing.T) {
	srv := newTestServer(t, &fakeController{}, "")

	resp, body := do(t, srv, http.MethodGet, "/api/v1/history", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []any{}, body["data"])
}

func TestQueueOperations(t *testing.T) {
	srv := newTestServer(t, &fakeController{}, "")

	_, body := do(t, srv, http.MethodPost, "/api/v1/jobs/reset-stuck", "")
	assert.Equal(t, map[string]any{"count": float64(2)}, body["data"])

	_, body = do(t, srv, http.MethodPost, "/api/v1/jobs/cancel-pending", "")
	assert.Equal(t, map[string]any{"count": float64(4)}, body["data"])

	_, body = do(t, srv, http.MethodGet, "/api/v1/queue/health", "")
	assert.Equal(t, map[string]any{"status": "ok"}, body["data"])
}

func TestQueueErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
		status   int
	}{
		{"unreachable", fmt.Errorf("reset: %w", queue.ErrUnreachable), string(ErrCodeQueueUnavailable), http.StatusBadGateway},
		{"api error", &queue.APIError{Operation: "reset_stuck", StatusCode: 500, Message: "boom"}, string(ErrCodeQueueError), http.StatusBadGateway},
		{"internal", errors.New("unexpected"), string(ErrCodeInternalError), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, &fakeController{err: tt.err}, "")

			resp, body := do(t, srv, http.MethodPost, "/api/v1/jobs/reset-stuck", "")
			assert.Equal(t, tt.status, resp.StatusCode)
			errBody := body["error"].(map[string]any)
			assert.Equal(t, tt.wantCode, errBody["code"])
		})
	}
}

func TestRetrySettings(t *testing.T) {
	ctrl := &fakeController{settings: domain.RetrySettings{MaxAttempts: 3, MaxBackoffMs: 10000}}
	srv := newTestServer(t, ctrl, "")

	// Частичное обновление сохраняет незаданные поля.
	resp, body := do(t, srv, http.MethodPut, "/api/v1/settings/retry", `{"maxAttempts": 6}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]any{"maxAttempts": float64(6), "maxBackoffMs": float64(10000)}, body["data"])
	assert.Equal(t, domain.RetrySettings{MaxAttempts: 6, MaxBackoffMs: 10000}, ctrl.settings)

	_, body = do(t, srv, http.MethodGet, "/api/v1/settings/retry", "")
	assert.Equal(t, map[string]any{"maxAttempts": float64(6), "maxBackoffMs": float64(10000)}, body["data"])

	resp, body = do(t, srv, http.MethodPut, "/api/v1/settings/retry", `{"maxAttempts": -1}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, string(ErrCodeBadRequest), body["error"].(map[string]any)["code"])

	resp, _ = do(t, srv, http.MethodPut, "/api/v1/settings/retry", `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestResetStats(t *testing.T) {
	ctrl := &fakeController{}
	srv := newTestServer(t, ctrl, "")

	resp, _ := do(t, srv, http.MethodPost, "/api/v1/stats/reset", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, 1, ctrl.resets)
}

func TestUnknownRoute(t *testing.T) {
	srv := newTestServer(t, &fakeController{}, "")

	resp, body := do(t, srv, http.MethodGet, "/api/v1/flows", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, string(ErrCodeNotFound), body["error"].(map[string]any)["code"])
}

func TestBearerAuth(t *testing.T) {
	srv := newTestServer(t, &fakeController{}, "secret")

	resp, body := do(t, srv, http.MethodGet, "/api/v1/status", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, string(ErrCodeUnauthorized), body["error"].(map[string]any)["code"])

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/v1/status", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer secret")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRecovery(t *testing.T) {
	h := Recovery(telemetry.DiscardLogger())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestChainOrder(t *testing.T) {
	var order []string
	mw := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Chain(mw("a"), mw("b"))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		order = append(order, "handler")
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, []string{"a", "b", "handler"}, order)
}
