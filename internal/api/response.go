package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/shaiso/jobpilot/internal/control"
	"github.com/shaiso/jobpilot/internal/queue"
)

// ErrorCode — код ошибки API.
type ErrorCode string

const (
	ErrCodeBadRequest       ErrorCode = "BAD_REQUEST"
	ErrCodeUnauthorized     ErrorCode = "UNAUTHORIZED"
	ErrCodeNotFound         ErrorCode = "NOT_FOUND"
	ErrCodeQueueUnavailable ErrorCode = "QUEUE_UNAVAILABLE"
	ErrCodeQueueError       ErrorCode = "QUEUE_ERROR"
	ErrCodeInternalError    ErrorCode = "INTERNAL_ERROR"
)

// ErrorResponse — структура ответа с ошибкой.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail — детали ошибки.
type ErrorDetail struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// DataResponse — структура успешного ответа.
type DataResponse struct {
	Data any `json:"data"`
}

// ListResponse — структура ответа со списком.
type ListResponse struct {
	Data  any `json:"data"`
	Total int `json:"total,omitempty"`
}

// JSON отправляет JSON ответ.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Success отправляет успешный ответ с данными.
func Success(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, DataResponse{Data: data})
}

// NoContent отправляет ответ без тела (204).
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// List отправляет ответ со списком.
func List(w http.ResponseWriter, data any, total int) {
	JSON(w, http.StatusOK, ListResponse{Data: data, Total: total})
}

// Error отправляет ответ с ошибкой.
func Error(w http.ResponseWriter, status int, code ErrorCode, message string) {
	JSON(w, status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// BadRequest отправляет ошибку 400.
func BadRequest(w http.ResponseWriter, message string) {
	Error(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// NotFound отправляет ошибку 404.
func NotFound(w http.ResponseWriter, message string) {
	Error(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// InternalError отправляет ошибку 500.
func InternalError(w http.ResponseWriter, logger *slog.Logger, err error) {
	if err != nil {
		logger.Error("internal error", "error", err)
	}
	Error(w, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")
}

// BadGateway отправляет ошибку 502 (очередь недоступна или ответила ошибкой).
func BadGateway(w http.ResponseWriter, code ErrorCode, message string) {
	Error(w, http.StatusBadGateway, code, message)
}

// HandleError преобразует ошибку контроллера в HTTP ответ.
func HandleError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var apiErr *queue.APIError

	switch {
	case errors.Is(err, control.ErrInvalidSettings):
		BadRequest(w, err.Error())
	case errors.Is(err, queue.ErrUnreachable):
		logger.Warn("queue unreachable", "error", err)
		BadGateway(w, ErrCodeQueueUnavailable, "queue unreachable")
	case errors.As(err, &apiErr), errors.Is(err, queue.ErrMalformedResponse):
		logger.Warn("queue request failed", "error", err)
		BadGateway(w, ErrCodeQueueError, err.Error())
	default:
		InternalError(w, logger, err)
	}
}
