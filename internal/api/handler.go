package api

import (
	"context"
	"log/slog"

	"github.com/shaiso/jobpilot/internal/control"
	"github.com/shaiso/jobpilot/internal/domain"
	"github.com/shaiso/jobpilot/internal/scheduler"
)

// Controller — операторские команды (control.Controller).
type Controller interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Poll(ctx context.Context) (scheduler.TickResult, error)
	ResetStuck(ctx context.Context) (int, error)
	CancelPending(ctx context.Context) (int, error)
	Status() control.Status
	History() []domain.HistoryItem
	ResetStats(ctx context.Context)
	RetrySettings(ctx context.Context) (domain.RetrySettings, error)
	SetRetrySettings(ctx context.Context, rs domain.RetrySettings) error
	QueueHealth(ctx context.Context) (string, error)
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	ctrl   Controller
	logger *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Controller Controller
	Logger     *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		ctrl:   cfg.Controller,
		logger: logger,
	}
}
