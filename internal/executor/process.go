package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"

	"github.com/shaiso/jobpilot/internal/domain"
)

// Переменные окружения дочернего executor'а.
const (
	EnvExecutorID = "JOBPILOT_EXECUTOR_ID"
	EnvTargetURL  = "JOBPILOT_TARGET_URL"
)

// ProcessConfig — конфигурация ProcessLauncher.
type ProcessConfig struct {
	// Command — путь к бинарнику executor'а.
	Command string
	Args    []string
	// Env добавляется к окружению текущего процесса.
	Env    []string
	Dir    string
	Logger *slog.Logger
}

// ProcessLauncher запускает каждый executor как отдельный процесс.
// Протокол идёт через stdin/stdout, stderr пишется в лог.
type ProcessLauncher struct {
	cfg    ProcessConfig
	logger *slog.Logger
}

// NewProcessLauncher создаёт ProcessLauncher.
func NewProcessLauncher(cfg ProcessConfig) *ProcessLauncher {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ProcessLauncher{cfg: cfg, logger: logger}
}

// Launch запускает процесс executor'а.
//
// Процесс не привязан к ctx: его время жизни ограничивает Destroy.
func (l *ProcessLauncher) Launch(_ context.Context, id string, job *domain.Job) (Handle, error) {
	if l.cfg.Command == "" {
		return nil, fmt.Errorf("%w: command is not configured", ErrLaunch)
	}

	logger := l.logger.With("executor_id", id)

	cmd := exec.Command(l.cfg.Command, l.cfg.Args...)
	cmd.Dir = l.cfg.Dir
	cmd.Env = append(os.Environ(), l.cfg.Env...)
	cmd.Env = append(cmd.Env, EnvExecutorID+"="+id)
	if job != nil {
		cmd.Env = append(cmd.Env, EnvTargetURL+"="+job.TargetURL)
	}
	cmd.Stderr = &logWriter{logger: logger}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLaunch, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLaunch, err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLaunch, err)
	}

	logger.Debug("executor process started", "pid", cmd.Process.Pid)

	kill := func() error {
		stdin.Close()
		if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			return fmt.Errorf("kill executor: %w", err)
		}
		return nil
	}

	h := newStreamHandle(id, stdout, stdin, kill, logger)

	// Wait можно вызывать только после того, как чтение stdout завершено.
	go func() {
		<-h.readFinished()
		err := cmd.Wait()
		if err != nil {
			logger.Debug("executor process exited", "error", err)
		} else {
			logger.Debug("executor process exited")
		}
	}()

	return h, nil
}

// logWriter пишет stderr executor'а в лог построчно.
type logWriter struct {
	mu     sync.Mutex
	logger *slog.Logger
	buf    bytes.Buffer
}

func (w *logWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Write(p)
	for {
		line, err := w.buf.ReadBytes('\n')
		if err != nil {
			// неполная строка остаётся в буфере
			w.buf.Reset()
			w.buf.Write(line)
			break
		}
		if text := bytes.TrimSpace(line); len(text) > 0 {
			w.logger.Info("executor stderr", "line", string(text))
		}
	}
	return len(p), nil
}
