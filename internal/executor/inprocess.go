package executor

import (
	"context"
	"io"
	"log/slog"

	"github.com/shaiso/jobpilot/internal/domain"
)

// InProcessLauncher запускает executor в горутине того же процесса,
// соединённой с оркестратором через io.Pipe.
//
// Протокол тот же, что у ProcessLauncher. Паника в Work закрывает
// executor без результата и воспринимается оркестратором как crash.
type InProcessLauncher struct {
	work   Work
	logger *slog.Logger
}

// NewInProcessLauncher создаёт InProcessLauncher.
func NewInProcessLauncher(work Work, logger *slog.Logger) *InProcessLauncher {
	if logger == nil {
		logger = slog.Default()
	}
	return &InProcessLauncher{work: work, logger: logger}
}

// Launch запускает in-process executor.
func (l *InProcessLauncher) Launch(_ context.Context, id string, _ *domain.Job) (Handle, error) {
	logger := l.logger.With("executor_id", id)

	toExecR, toExecW := io.Pipe()
	fromExecR, fromExecW := io.Pipe()

	agentCtx, cancel := context.WithCancel(context.Background())

	go func() {
		if err := Serve(agentCtx, toExecR, fromExecW, l.work, logger); err != nil {
			logger.Debug("in-process executor stopped", "error", err)
		}
		fromExecW.Close()
		toExecR.Close()
	}()

	closeFn := func() error {
		cancel()
		toExecW.Close()
		fromExecR.Close()
		return nil
	}

	return newStreamHandle(id, fromExecR, toExecW, closeFn, logger), nil
}
