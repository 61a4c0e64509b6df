package mq

import "errors"

var (
	// ErrNoURL — URL брокера не задан.
	ErrNoURL = errors.New("amqp url is required")

	// ErrNoChannel — канал недоступен (соединение разорвано).
	ErrNoChannel = errors.New("no channel available")

	// ErrUnknownMessage — тип сообщения не поддерживается.
	ErrUnknownMessage = errors.New("unknown message type")
)
