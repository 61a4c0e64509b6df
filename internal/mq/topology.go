package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// Exchanges — имена обменников.
const (
	ExchangeEvents  Exchange = "jobpilot.events"
	ExchangeControl Exchange = "jobpilot.control"
	ExchangeDLQ     Exchange = "jobpilot.dlq"
)

// Queues — имена очередей.
const (
	QueueControl    Queue = "jobpilot.control"
	QueueDLQControl Queue = "jobpilot.dlq.control"
)

// Routing keys.
const (
	RoutingKeyControl    RoutingKey = "control"
	RoutingKeyDLQControl RoutingKey = "control"
)

// SetupTopology объявляет обменники, очереди и привязки jobpilot.
// Операция идемпотентна.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		if err := declareExchanges(ch); err != nil {
			return err
		}
		if err := declareQueues(ch); err != nil {
			return err
		}
		return bindQueues(ch)
	})
}

func declareExchanges(ch *amqp.Channel) error {
	exchanges := []struct {
		name Exchange
		kind string
	}{
		// события жизненного цикла: job.dispatched, job.succeeded, ...
		{ExchangeEvents, "topic"},
		{ExchangeControl, "direct"},
		{ExchangeDLQ, "direct"},
	}

	for _, ex := range exchanges {
		err := ch.ExchangeDeclare(
			string(ex.name), // name
			ex.kind,         // type
			true,            // durable
			false,           // auto-deleted
			false,           // internal
			false,           // no-wait
			nil,             // arguments
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex.name, err)
		}
	}

	return nil
}

func declareQueues(ch *amqp.Channel) error {
	// Необработанные команды уходят в DLQ, а не крутятся в очереди.
	dlqArgs := amqp.Table{
		"x-dead-letter-exchange":    string(ExchangeDLQ),
		"x-dead-letter-routing-key": string(RoutingKeyDLQControl),
	}

	queues := []struct {
		name Queue
		args amqp.Table
	}{
		{QueueControl, dlqArgs},
		{QueueDLQControl, nil},
	}

	for _, q := range queues {
		_, err := ch.QueueDeclare(
			string(q.name), // name
			true,           // durable
			false,          // delete when unused
			false,          // exclusive
			false,          // no-wait
			q.args,         // arguments
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", q.name, err)
		}
	}

	return nil
}

func bindQueues(ch *amqp.Channel) error {
	bindings := []struct {
		queue      Queue
		routingKey RoutingKey
		exchange   Exchange
	}{
		{QueueControl, RoutingKeyControl, ExchangeControl},
		{QueueDLQControl, RoutingKeyDLQControl, ExchangeDLQ},
	}

	for _, b := range bindings {
		err := ch.QueueBind(
			string(b.queue),      // queue name
			string(b.routingKey), // routing key
			string(b.exchange),   // exchange
			false,                // no-wait
			nil,                  // arguments
		)
		if err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
		}
	}

	return nil
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo() string {
	return `
  jobpilot RabbitMQ topology:

    jobpilot.events (topic)
    └── job.dispatched | job.succeeded | job.failed | job.retrying
            Consumers: external (dashboards, audit)

    jobpilot.control (direct)
    └── jobpilot.control [routing: control]
            Consumer: jobpilot daemon
            DLQ: jobpilot.dlq.control

    jobpilot.dlq (direct)
    └── jobpilot.dlq.control [routing: control]
            Manual processing
  `
}
