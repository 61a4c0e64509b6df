package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// --- Response types (дублируются из api/control, CLI не импортирует internal/api) ---

// CurrentJob — задача в работе.
type CurrentJob struct {
	ID    string `json:"id"`
	Title string `json:"title,omitempty"`
}

// Stats — счётчики обработки.
type Stats struct {
	Processed       int64       `json:"processed"`
	Succeeded       int64       `json:"succeeded"`
	Failed          int64       `json:"failed"`
	CurrentJob      *CurrentJob `json:"currentJob,omitempty"`
	LastProcessedAt string      `json:"lastProcessedAt,omitempty"`
}

// ActiveJob — задача, которую ведёт оркестратор.
type ActiveJob struct {
	JobID        string `json:"jobId"`
	Title        string `json:"title,omitempty"`
	ExecutorID   string `json:"executorId,omitempty"`
	State        string `json:"state"`
	DispatchedAt string `json:"dispatchedAt"`
	LocalAttempt int    `json:"localAttempt"`
}

// StatusResponse — сводка состояния демона.
type StatusResponse struct {
	Enabled      bool        `json:"enabled"`
	PollInterval string      `json:"pollInterval"`
	NextPollAt   string      `json:"nextPollAt,omitempty"`
	ClientID     string      `json:"clientId"`
	ActiveJobs   []ActiveJob `json:"activeJobs"`
	Stats        Stats       `json:"stats"`
}

// HistoryItem — запись истории.
type HistoryItem struct {
	ID        string `json:"id"`
	Title     string `json:"title,omitempty"`
	URL       string `json:"url"`
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Price     int64  `json:"price"`
	Error     string `json:"error,omitempty"`
}

// RetrySettings — настройки backend retry.
type RetrySettings struct {
	MaxAttempts  int   `json:"maxAttempts"`
	MaxBackoffMs int64 `json:"maxBackoffMs"`
}

// RetrySettingsUpdate — частичное обновление настроек.
type RetrySettingsUpdate struct {
	MaxAttempts  *int   `json:"maxAttempts,omitempty"`
	MaxBackoffMs *int64 `json:"maxBackoffMs,omitempty"`
}

type pollerResponse struct {
	Enabled bool `json:"enabled"`
}

type pollResponse struct {
	Result string `json:"result"`
}

type countResponse struct {
	Count int `json:"count"`
}

type healthResponse struct {
	Status string `json:"status"`
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// APIError — ответ API с ошибкой.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("API error: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// --- Client ---

// Client — HTTP-клиент для операторского API jobpilot.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient создаёт клиент для API. token может быть пустым.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			// reset-stuck/cancel-pending ждут ответа очереди (до 30s)
			Timeout: 45 * time.Second,
		},
	}
}

// Status возвращает сводку состояния.
func (c *Client) Status() (*StatusResponse, error) {
	var st StatusResponse
	err := c.get("/api/v1/status", &st)
	return &st, err
}

// History возвращает историю задач.
func (c *Client) History() ([]HistoryItem, error) {
	var items []HistoryItem
	err := c.get("/api/v1/history", &items)
	return items, err
}

// Start включает поллинг.
func (c *Client) Start() error {
	return c.post("/api/v1/poller/start", nil, &pollerResponse{})
}

// Stop выключает поллинг.
func (c *Client) Stop() error {
	return c.post("/api/v1/poller/stop", nil, &pollerResponse{})
}

// Poll выполняет один внеочередной тик.
func (c *Client) Poll() (string, error) {
	var resp pollResponse
	err := c.post("/api/v1/poller/poll", nil, &resp)
	return resp.Result, err
}

// ResetStuck возвращает зависшие задачи в очередь.
func (c *Client) ResetStuck() (int, error) {
	var resp countResponse
	err := c.post("/api/v1/jobs/reset-stuck", nil, &resp)
	return resp.Count, err
}

// CancelPending отменяет ожидающие задачи.
func (c *Client) CancelPending() (int, error) {
	var resp countResponse
	err := c.post("/api/v1/jobs/cancel-pending", nil, &resp)
	return resp.Count, err
}

// QueueHealth проверяет очередь.
func (c *Client) QueueHealth() (string, error) {
	var resp healthResponse
	err := c.get("/api/v1/queue/health", &resp)
	return resp.Status, err
}

// RetrySettings возвращает настройки backend retry.
func (c *Client) RetrySettings() (*RetrySettings, error) {
	var rs RetrySettings
	err := c.get("/api/v1/settings/retry", &rs)
	return &rs, err
}

// UpdateRetrySettings обновляет настройки backend retry.
func (c *Client) UpdateRetrySettings(req RetrySettingsUpdate) (*RetrySettings, error) {
	var rs RetrySettings
	err := c.put("/api/v1/settings/retry", req, &rs)
	return &rs, err
}

// ResetStats обнуляет статистику.
func (c *Client) ResetStats() error {
	return c.post("/api/v1/stats/reset", nil, nil)
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) put(path string, body any, result any) error {
	return c.doData(http.MethodPut, path, body, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	// 204 No Content
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	apiErr := &APIError{StatusCode: resp.StatusCode}
	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err == nil {
		apiErr.Code = er.Error.Code
		apiErr.Message = er.Error.Message
	}
	return apiErr
}
