package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shaiso/jobpilot/internal/domain"
	"github.com/shaiso/jobpilot/internal/telemetry"
)

const (
	defaultRequestTimeout = 30 * time.Second

	// maxErrorBody — сколько байт тела ошибки читаем для сообщения.
	maxErrorBody = 4096
)

// Операции (метка operation в метриках).
const (
	opFetchNext     = "fetch_next"
	opComplete      = "complete"
	opFail          = "fail"
	opHealth        = "health"
	opResetStuck    = "reset_stuck"
	opCancelPending = "cancel_pending"
)

// Config — конфигурация клиента очереди.
type Config struct {
	// BaseURL — базовый адрес API очереди, например https://queue.example.com/api/jobs.
	BaseURL string

	// Token — bearer credential.
	Token string

	// RequestTimeout ограничивает каждый запрос (default: 30s).
	RequestTimeout time.Duration

	// HTTPClient — опционально, для тестов.
	HTTPClient *http.Client

	Logger *slog.Logger
}

// Client — типизированная обёртка над HTTP API очереди.
//
// Каждая операция — ровно одна попытка. Политика повторов — забота
// вызывающего.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient создаёт клиент очереди.
func NewClient(cfg Config) *Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		httpClient: httpClient,
		logger:     logger,
	}
}

// --- Wire types ---

type nextResponse struct {
	Item *domain.Job `json:"item"`
}

type failRequest struct {
	ErrorMessage string `json:"errorMessage"`
	domain.RetrySettings
}

type failResponse struct {
	WillRetry bool `json:"willRetry"`
}

type healthResponse struct {
	Status string `json:"status"`
}

type resetStuckRequest struct {
	ExcludeIDs []string `json:"excludeIds,omitempty"`
}

type countResponse struct {
	Count int `json:"count"`
}

type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// --- Operations ---

// FetchNext запрашивает следующую задачу для clientID.
// Возвращает nil, nil, если очередь пуста. Задача с id, но без
// обязательных полей возвращается как *InvalidJobError.
func (c *Client) FetchNext(ctx context.Context, clientID string) (*domain.Job, error) {
	params := url.Values{}
	params.Set("clientId", clientID)

	var resp nextResponse
	status, err := c.call(ctx, opFetchNext, http.MethodGet, "/next?"+params.Encode(), nil, &resp)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNoContent || resp.Item == nil {
		return nil, nil
	}

	if resp.Item.ID == "" {
		return nil, fmt.Errorf("%w: job without id", ErrMalformedResponse)
	}
	if err := resp.Item.Validate(); err != nil {
		return nil, &InvalidJobError{Job: resp.Item, Err: err}
	}

	return resp.Item, nil
}

// ReportSuccess сообщает очереди об успешном выполнении.
func (c *Client) ReportSuccess(ctx context.Context, jobID string) error {
	_, err := c.call(ctx, opComplete, http.MethodPost, "/"+url.PathEscape(jobID)+"/complete", nil, nil)
	return err
}

// ReportFailure сообщает очереди о неудаче.
// Возвращает решение backend'а: будет ли повтор.
func (c *Client) ReportFailure(ctx context.Context, jobID, message string, settings domain.RetrySettings) (bool, error) {
	body := failRequest{ErrorMessage: message, RetrySettings: settings}

	var resp failResponse
	if _, err := c.call(ctx, opFail, http.MethodPost, "/"+url.PathEscape(jobID)+"/fail", body, &resp); err != nil {
		return false, err
	}
	return resp.WillRetry, nil
}

// HealthCheck возвращает статус очереди.
func (c *Client) HealthCheck(ctx context.Context) (string, error) {
	var resp healthResponse
	if _, err := c.call(ctx, opHealth, http.MethodGet, "/health", nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

// ResetStuck просит backend вернуть в очередь зависшие задачи.
// exclude — задачи, которые сейчас в работе у этого клиента.
func (c *Client) ResetStuck(ctx context.Context, exclude []string) (int, error) {
	var resp countResponse
	if _, err := c.call(ctx, opResetStuck, http.MethodPost, "/reset-stuck", resetStuckRequest{ExcludeIDs: exclude}, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

// CancelPending отменяет все ожидающие задачи.
func (c *Client) CancelPending(ctx context.Context) (int, error) {
	var resp countResponse
	if _, err := c.call(ctx, opCancelPending, http.MethodPost, "/cancel-pending", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

// --- HTTP helpers ---

// call выполняет запрос, проверяет статус и декодирует ответ в result.
// Возвращает HTTP статус.
func (c *Client) call(ctx context.Context, op, method, path string, body, result any) (int, error) {
	start := time.Now()
	status, err := c.doCall(ctx, op, method, path, body, result)

	telemetry.QueueRequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	telemetry.QueueRequests.WithLabelValues(op, resultLabel(err)).Inc()

	if err != nil {
		c.logger.Debug("queue request failed", "operation", op, "status", status, "error", err)
	}
	return status, err
}

func (c *Client) doCall(ctx context.Context, op, method, path string, body, result any) (int, error) {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrUnreachable, op, err)
	}
	defer resp.Body.Close()

	if err := checkError(op, resp); err != nil {
		return resp.StatusCode, err
	}

	if result == nil || resp.StatusCode == http.StatusNoContent {
		return resp.StatusCode, nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("%w: %s: read body: %w", ErrUnreachable, op, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return resp.StatusCode, nil
	}
	if err := json.Unmarshal(data, result); err != nil {
		return resp.StatusCode, fmt.Errorf("%w: %s: %v", ErrMalformedResponse, op, err)
	}

	return resp.StatusCode, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	return c.httpClient.Do(req)
}

// checkError превращает не-2xx ответ в *APIError.
// Тело разбирается как {message|error}, иначе берётся как текст.
func checkError(op string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	apiErr := &APIError{Operation: op, StatusCode: resp.StatusCode}

	var eb errorBody
	if err := json.Unmarshal(data, &eb); err == nil && (eb.Message != "" || eb.Error != "") {
		apiErr.Message = eb.Message
		if apiErr.Message == "" {
			apiErr.Message = eb.Error
		}
	} else {
		apiErr.Message = strings.TrimSpace(string(data))
	}

	return apiErr
}

func resultLabel(err error) string {
	var apiErr *APIError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrUnreachable):
		return "unreachable"
	case IsAuthError(err):
		return "auth"
	case errors.As(err, &apiErr):
		return "http_error"
	default:
		return "error"
	}
}
