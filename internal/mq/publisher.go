package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/jobpilot/internal/domain"
)

// publishTimeout ограничивает публикацию, чтобы медленный брокер не
// задерживал терминальные переходы задач.
const publishTimeout = 5 * time.Second

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы управляющих сообщений.
const (
	MessageTypeControlStart         MessageType = "control.start"
	MessageTypeControlStop          MessageType = "control.stop"
	MessageTypeControlPoll          MessageType = "control.poll"
	MessageTypeControlResetStuck    MessageType = "control.reset_stuck"
	MessageTypeControlCancelPending MessageType = "control.cancel_pending"
)

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// Message — конверт сообщения.
type Message struct {
	ID        string      `json:"id"`
	Type      MessageType `json:"type"`
	Payload   any         `json:"payload,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewMessage создаёт конверт с новым ID.
func NewMessage(msgType MessageType, payload any) *Message {
	return &Message{
		ID:        uuid.New().String(),
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}

// Publish публикует сообщение в указанный exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(exchange),   // exchange
			string(routingKey), // routing key
			false,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				MessageId:    msg.ID,
				Timestamp:    msg.Timestamp,
				Type:         string(msg.Type),
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
		)

		return nil
	})
}

// PublishJobEvent публикует событие жизненного цикла задачи в
// jobpilot.events. Routing key совпадает с типом события.
func (p *Publisher) PublishJobEvent(ctx context.Context, event domain.JobEvent) error {
	exchange, key, msg := jobEventMessage(event)
	return p.Publish(ctx, exchange, key, msg)
}

func jobEventMessage(event domain.JobEvent) (Exchange, RoutingKey, *Message) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	msg := NewMessage(MessageType(event.Type), event)
	msg.Timestamp = event.Timestamp
	return ExchangeEvents, RoutingKey(event.Type), msg
}
