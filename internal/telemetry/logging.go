package telemetry

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// LogOptions — параметры логгера.
type LogOptions struct {
	// Level: DEBUG, INFO, WARN, ERROR. По умолчанию: INFO.
	Level string

	// Format: "json" (по умолчанию) или "text".
	Format string

	// Output — куда писать. По умолчанию os.Stdout.
	// Executor-процесс пишет в stderr: stdout занят протоколом.
	Output io.Writer

	// LevelVar — если задан, уровень можно менять на лету (hot reload).
	LevelVar *slog.LevelVar
}

// ParseLevel преобразует строку в slog.Level.
func ParseLevel(level string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger создаёт логгер без изменения глобального.
func NewLogger(opts LogOptions) *slog.Logger {
	level := ParseLevel(opts.Level)
	var leveler slog.Leveler = level
	if opts.LevelVar != nil {
		opts.LevelVar.Set(level)
		leveler = opts.LevelVar
	}
	handlerOpts := &slog.HandlerOptions{
		Level:     leveler,
		AddSource: level == slog.LevelDebug,
	}

	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	var handler slog.Handler
	if strings.EqualFold(opts.Format, "text") {
		handler = slog.NewTextHandler(out, handlerOpts)
	} else {
		handler = slog.NewJSONHandler(out, handlerOpts)
	}

	return slog.New(handler)
}

// SetupLogger инициализирует глобальный логгер.
//
// Пустые поля берутся из окружения: LOG_LEVEL и LOG_FORMAT.
func SetupLogger(opts LogOptions) *slog.Logger {
	if opts.Level == "" {
		opts.Level = os.Getenv("LOG_LEVEL")
	}
	if opts.Format == "" {
		opts.Format = os.Getenv("LOG_FORMAT")
	}

	logger := NewLogger(opts)
	slog.SetDefault(logger)

	return logger
}

// DiscardLogger возвращает логгер, который ничего не пишет. Для тестов.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// WithJobID возвращает логгер с добавленным job_id.
func WithJobID(logger *slog.Logger, jobID string) *slog.Logger {
	return logger.With("job_id", jobID)
}

// WithExecutorID возвращает логгер с добавленным executor_id.
func WithExecutorID(logger *slog.Logger, executorID string) *slog.Logger {
	return logger.With("executor_id", executorID)
}
