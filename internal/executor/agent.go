package executor

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/shaiso/jobpilot/internal/domain"
)

// Work — полезная нагрузка executor'а над одной задачей.
// nil — SUCCESS, ошибка — FAILURE с её текстом.
type Work func(ctx context.Context, job *domain.Job) error

// errWorkPanicked — Work упал с паникой; executor закрывается без результата.
var errWorkPanicked = errors.New("work panicked")

// Serve — сторона executor'а: отвечает на PING, принимает одну задачу
// по START, выполняет Work и отправляет SUCCESS или FAILURE.
//
// Возвращается после отправки результата, при закрытии входного потока
// или отмене ctx.
func Serve(ctx context.Context, r io.Reader, w io.Writer, work Work, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	writer := newMessageWriter(w)

	stop := make(chan struct{})
	defer close(stop)

	msgs := make(chan Message)
	readErr := make(chan error, 1)

	go func() {
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), maxMessageSize)
		for scanner.Scan() {
			var msg Message
			if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
				logger.Warn("malformed orchestrator message", "error", err)
				continue
			}
			select {
			case msgs <- msg:
			case <-stop:
				return
			}
		}
		readErr <- scanner.Err()
	}()

	var (
		started  bool
		finished = make(chan error, 1)
		job      *domain.Job
	)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-readErr:
			if err != nil {
				return fmt.Errorf("read: %w", err)
			}
			if started {
				return ErrClosed
			}
			return nil

		case msg := <-msgs:
			switch msg.Type {
			case MsgPing:
				if err := writer.Write(Message{Seq: msg.Seq, Type: MsgPong, Ready: boolPtr(true)}); err != nil {
					return err
				}

			case MsgStart:
				if started || msg.Job == nil {
					logger.Warn("rejecting start", "already_started", started)
					if err := writer.Write(Message{Seq: msg.Seq, Type: MsgAck, Received: boolPtr(false)}); err != nil {
						return err
					}
					continue
				}
				started = true
				job = msg.Job
				if err := writer.Write(Message{Seq: msg.Seq, Type: MsgAck, Received: boolPtr(true)}); err != nil {
					return err
				}

				logger.Info("job received", "job_id", job.ID)
				go func(job *domain.Job) {
					finished <- runWork(ctx, work, job)
				}(job)

			default:
				logger.Warn("unexpected orchestrator message", "type", msg.Type)
			}

		case err := <-finished:
			if errors.Is(err, errWorkPanicked) {
				return err
			}
			if err != nil {
				logger.Info("job failed", "job_id", job.ID, "error", err)
				return writer.Write(Message{Type: MsgFailure, JobID: job.ID, Error: err.Error()})
			}
			logger.Info("job succeeded", "job_id", job.ID)
			return writer.Write(Message{Type: MsgSuccess, JobID: job.ID})
		}
	}
}

func runWork(ctx context.Context, work Work, job *domain.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", errWorkPanicked, r)
		}
	}()
	return work(ctx, job)
}
