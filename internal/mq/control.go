package mq

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shaiso/jobpilot/internal/scheduler"
)

// ControlTarget — операции, доступные через control-очередь
// (control.Controller).
type ControlTarget interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Poll(ctx context.Context) (scheduler.TickResult, error)
	ResetStuck(ctx context.Context) (int, error)
	CancelPending(ctx context.Context) (int, error)
}

// NewControlHandler возвращает Handler для очереди jobpilot.control.
// Неизвестные типы сообщений уходят в DLQ.
func NewControlHandler(target ControlTarget, logger *slog.Logger) Handler {
	if logger == nil {
		logger = slog.Default()
	}

	return func(ctx context.Context, msg Message) error {
		log := logger.With("message_id", msg.ID, "type", msg.Type)

		switch msg.Type {
		case MessageTypeControlStart:
			return target.Start(ctx)

		case MessageTypeControlStop:
			return target.Stop(ctx)

		case MessageTypeControlPoll:
			result, err := target.Poll(ctx)
			if err != nil {
				return err
			}
			log.Info("manual poll via control queue", "result", result)
			return nil

		case MessageTypeControlResetStuck:
			n, err := target.ResetStuck(ctx)
			if err != nil {
				return err
			}
			log.Info("stuck jobs reset via control queue", "count", n)
			return nil

		case MessageTypeControlCancelPending:
			n, err := target.CancelPending(ctx)
			if err != nil {
				return err
			}
			log.Info("pending jobs cancelled via control queue", "count", n)
			return nil

		default:
			return fmt.Errorf("%w: %s", ErrUnknownMessage, msg.Type)
		}
	}
}

// NewControlConsumer создаёт consumer очереди jobpilot.control.
// Ошибки команд не повторяются: сообщение уходит в DLQ.
func NewControlConsumer(conn *Connection, target ControlTarget, logger *slog.Logger) *Consumer {
	return NewConsumer(conn, logger, ConsumerConfig{
		Queue:    string(QueueControl),
		Handler:  NewControlHandler(target, logger),
		Prefetch: 1,
	})
}
