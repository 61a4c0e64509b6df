package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/jobpilot/internal/telemetry"
)

// Handler обрабатывает одно распарсенное сообщение.
// Ошибка — nack; вернётся ли сообщение в очередь, решает Consumer.
type Handler func(ctx context.Context, msg Message) error

// Исход обработки сообщения (метка result).
const (
	settleAcked      = "acked"
	settleRequeued   = "requeued"
	settleDeadLetter = "dead_lettered"
	settleMalformed  = "malformed"
)

// ConsumerConfig — конфигурация consumer.
type ConsumerConfig struct {
	Queue   string
	Handler Handler

	// Prefetch — сколько сообщений брокер отдаёт без ack (default: 1).
	Prefetch int

	// RequeueOnError возвращает сообщение в очередь при ошибке обработчика.
	// false — сразу в DLQ. ErrUnknownMessage в очередь не возвращается никогда.
	RequeueOnError bool
}

// Consumer читает очередь RabbitMQ и переподключается вместе с Connection.
type Consumer struct {
	conn   *Connection
	logger *slog.Logger
	cfg    ConsumerConfig
}

// NewConsumer создаёт Consumer.
func NewConsumer(conn *Connection, logger *slog.Logger, cfg ConsumerConfig) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 1
	}
	return &Consumer{
		conn:   conn,
		logger: logger.With("queue", cfg.Queue),
		cfg:    cfg,
	}
}

// Start читает очередь до отмены ctx. После обрыва канала ждёт
// переподключения Connection и подписывается заново.
func (c *Consumer) Start(ctx context.Context) error {
	for ctx.Err() == nil {
		deliveries, err := c.subscribe()
		if err != nil {
			c.logger.Error("failed to subscribe", "error", err)
		} else {
			c.logger.Info("consumer started")
			c.drain(ctx, deliveries)
			if ctx.Err() != nil {
				break
			}
			c.logger.Warn("deliveries channel closed, waiting for reconnect")
		}

		select {
		case <-ctx.Done():
		case <-c.conn.ReconnectNotify():
			c.logger.Info("reconnected, resubscribing")
		}
	}
	return ctx.Err()
}

func (c *Consumer) subscribe() (<-chan amqp.Delivery, error) {
	ch := c.conn.Channel()
	if ch == nil || ch.IsClosed() {
		return nil, ErrNoChannel
	}
	if err := ch.Qos(c.cfg.Prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("set qos: %w", err)
	}

	// autoAck=false: settle подтверждает каждое сообщение сам.
	deliveries, err := ch.Consume(c.cfg.Queue, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume %s: %w", c.cfg.Queue, err)
	}
	return deliveries, nil
}

// drain обрабатывает сообщения, пока канал открыт и ctx жив.
func (c *Consumer) drain(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			c.handle(ctx, d)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
	msg, err := decodeMessage(d.Body)
	if err == nil {
		c.logger.Debug("received message", "message_id", msg.ID, "type", msg.Type, "redelivered", d.Redelivered)
		err = c.cfg.Handler(ctx, msg)
	}

	result := settle(d, err, c.cfg.RequeueOnError)
	msgType := string(msg.Type)
	if msgType == "" {
		msgType = "unknown"
	}
	telemetry.ConsumedMessages.WithLabelValues(c.cfg.Queue, msgType, result).Inc()

	if err != nil {
		c.logger.Error("message not processed",
			"message_id", msg.ID,
			"type", msg.Type,
			"result", result,
			"error", err,
		)
	}
}

// errMalformed — тело сообщения не разбирается.
var errMalformed = errors.New("malformed message")

func decodeMessage(body []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return msg, fmt.Errorf("%w: %w", errMalformed, err)
	}
	return msg, nil
}

// acknowledger — часть amqp.Delivery, нужная settle.
type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

// settle подтверждает или отклоняет сообщение по результату обработки
// и возвращает исход для метрик.
func settle(d acknowledger, err error, requeueOnError bool) string {
	switch {
	case err == nil:
		d.Ack(false)
		return settleAcked
	case errors.Is(err, errMalformed):
		d.Nack(false, false)
		return settleMalformed
	case requeueOnError && !errors.Is(err, ErrUnknownMessage):
		d.Nack(false, true)
		return settleRequeued
	default:
		d.Nack(false, false)
		return settleDeadLetter
	}
}
