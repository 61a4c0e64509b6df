package mq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	reconnectBaseDelay = time.Second
	reconnectMaxDelay  = 30 * time.Second
)

// Connection — AMQP соединение jobpilot с автоматическим reconnect.
//
// Брокер опционален: если он недоступен при старте, демон работает без
// событий и control-очереди. После старта разрывы переживаются
// переподключением с экспоненциальной задержкой.
type Connection struct {
	url    string
	logger *slog.Logger

	mu      sync.RWMutex
	conn    *amqp.Connection
	channel *amqp.Channel

	closed   bool
	closedCh chan struct{}

	// reconnectCh получает сигнал после каждого успешного переподключения.
	reconnectCh chan struct{}
}

// NewConnection создаёт новое соединение с RabbitMQ.
func NewConnection(amqpURL string, logger *slog.Logger) (*Connection, error) {
	if amqpURL == "" {
		return nil, ErrNoURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &Connection{
		url:         amqpURL,
		logger:      logger,
		closedCh:    make(chan struct{}),
		reconnectCh: make(chan struct{}, 1),
	}

	if err := c.connect(); err != nil {
		return nil, err
	}
	go c.watchConnection()

	return c, nil
}

// connect открывает соединение и канал и подменяет текущие.
func (c *Connection) connect() error {
	conn, err := amqp.DialConfig(c.url, amqp.Config{
		Heartbeat:  10 * time.Second,
		Properties: amqp.Table{"connection_name": "jobpilot"},
	})
	if err != nil {
		return fmt.Errorf("dial %s: %w", redactURL(c.url), err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		conn.Close()
		return ErrNoChannel
	}
	c.conn = conn
	c.channel = ch
	c.mu.Unlock()

	c.logger.Info("connected to RabbitMQ", "host", redactURL(c.url))
	return nil
}

// watchConnection переподключается после каждого обрыва, пока
// Connection не закрыт.
func (c *Connection) watchConnection() {
	for {
		c.mu.RLock()
		conn := c.conn
		c.mu.RUnlock()

		lost := conn.NotifyClose(make(chan *amqp.Error, 1))
		select {
		case <-c.closedCh:
			return
		case err := <-lost:
			if err != nil {
				c.logger.Warn("connection lost", "error", err)
			}
		}

		if !c.reconnect() {
			return
		}
		// Non-blocking: consumer может ещё не ждать уведомления.
		select {
		case c.reconnectCh <- struct{}{}:
		default:
		}
	}
}

// reconnect повторяет connect с задержкой reconnectBaseDelay*2^n, не более
// reconnectMaxDelay. false — Connection закрыли раньше.
func (c *Connection) reconnect() bool {
	delay := reconnectBaseDelay
	for attempt := 1; ; attempt++ {
		c.logger.Info("reconnecting to RabbitMQ", "attempt", attempt, "delay", delay)
		select {
		case <-c.closedCh:
			return false
		case <-time.After(delay):
		}

		if err := c.connect(); err != nil {
			c.logger.Warn("reconnect failed", "attempt", attempt, "error", err)
			delay = min(delay*2, reconnectMaxDelay)
			continue
		}
		return true
	}
}

// Channel возвращает текущий AMQP канал.
func (c *Connection) Channel() *amqp.Channel {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.channel
}

// ReconnectNotify возвращает канал для уведомлений о переподключении.
func (c *Connection) ReconnectNotify() <-chan struct{} {
	return c.reconnectCh
}

// Close закрывает канал и соединение. Повторный вызов — no-op.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	close(c.closedCh)

	var chErr, connErr error
	if c.channel != nil && !c.channel.IsClosed() {
		chErr = c.channel.Close()
	}
	if c.conn != nil && !c.conn.IsClosed() {
		connErr = c.conn.Close()
	}
	if err := errors.Join(chErr, connErr); err != nil {
		return fmt.Errorf("close amqp: %w", err)
	}

	c.logger.Info("RabbitMQ connection closed")
	return nil
}

// WithChannel выполняет функцию с текущим каналом.
func (c *Connection) WithChannel(ctx context.Context, fn func(ch *amqp.Channel) error) error {
	c.mu.RLock()
	ch := c.channel
	c.mu.RUnlock()

	if ch == nil || ch.IsClosed() {
		return ErrNoChannel
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	return fn(ch)
}

// redactURL убирает учётные данные из URL для логов.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "invalid"
	}
	return u.Host + u.Path
}
