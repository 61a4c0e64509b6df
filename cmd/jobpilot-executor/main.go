// jobpilot-executor — изолированный исполнитель одной задачи.
//
// Executor:
//   - Общается с демоном по NDJSON через stdin/stdout
//   - Отвечает на PING, принимает задачу по START
//   - Выполняет HTTP-запрос на target URL задачи
//   - Отправляет SUCCESS или FAILURE и завершается
//
// Логи пишутся в stderr: stdout занят протоколом.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shaiso/jobpilot/internal/executor"
	"github.com/shaiso/jobpilot/internal/telemetry"
)

// EnvHTTPTimeout — таймаут запроса к target URL (формат time.ParseDuration).
const EnvHTTPTimeout = "JOBPILOT_EXECUTOR_HTTP_TIMEOUT"

func main() {
	logger := telemetry.SetupLogger(telemetry.LogOptions{Output: os.Stderr})
	logger = telemetry.WithExecutorID(logger, os.Getenv(executor.EnvExecutorID))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	work := executor.HTTPWork(executor.HTTPWorkConfig{
		Timeout:   httpTimeout(),
		UserAgent: "jobpilot-executor/1.0",
	})

	if err := executor.Serve(ctx, os.Stdin, os.Stdout, work, logger); err != nil {
		logger.Error("executor failed", "error", err)
		os.Exit(1)
	}
}

func httpTimeout() time.Duration {
	v := os.Getenv(EnvHTTPTimeout)
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}
