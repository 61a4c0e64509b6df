package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Ключи персистентного состояния.
const (
	KeyEnabled       = "enabled"
	KeyStats         = "stats"
	KeyHistory       = "history"
	KeyRetrySettings = "retry_settings"
	KeyClientID      = "client_id"
	KeyLocalRetries  = "local_retries"
)

// ErrUnknownBackend — неизвестный тип хранилища в конфигурации.
var ErrUnknownBackend = errors.New("unknown state backend")

// Store — key→value хранилище состояния, переживающее рестарт.
//
// Значения сериализуются в JSON (по json-тегам доменных типов).
// Реализации безопасны для конкурентного использования.
type Store interface {
	// Get декодирует значение ключа в dst. false — ключа нет.
	Get(ctx context.Context, key string, dst any) (bool, error)

	// Set сохраняет значение ключа.
	Set(ctx context.Context, key string, value any) error

	// Delete удаляет ключ. Отсутствие ключа — не ошибка.
	Delete(ctx context.Context, key string) error

	Close() error
}

func encode(key string, value any) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", key, err)
	}
	return data, nil
}

func decode(key string, data []byte, dst any) error {
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}
