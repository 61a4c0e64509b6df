package executor

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/shaiso/jobpilot/internal/domain"
)

const defaultHTTPTimeout = 30 * time.Second

// HTTPWorkConfig — конфигурация HTTPWork.
type HTTPWorkConfig struct {
	// Method — HTTP-метод. Default: GET.
	Method string
	// Timeout — таймаут запроса. Default: 30s.
	Timeout   time.Duration
	UserAgent string
	Client    *http.Client
}

// HTTPWork — эталонная нагрузка: запрос на job.TargetURL.
//
// HTTP >= 400 — FAILURE с кодом и началом тела ответа.
func HTTPWork(cfg HTTPWorkConfig) Work {
	if cfg.Method == "" {
		cfg.Method = http.MethodGet
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultHTTPTimeout
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{}
	}

	return func(ctx context.Context, job *domain.Job) error {
		if job.TargetURL == "" {
			return fmt.Errorf("target url is required")
		}

		ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, cfg.Method, job.TargetURL, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		if cfg.UserAgent != "" {
			req.Header.Set("User-Agent", cfg.UserAgent)
		}

		resp, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("request: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}

		if resp.StatusCode >= 400 {
			return fmt.Errorf("HTTP %d: %s", resp.StatusCode, truncate(string(body), 200))
		}
		return nil
	}
}

// truncate обрезает строку до maxLen байт, не разрезая UTF-8 символ.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
