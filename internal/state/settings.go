package state

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/shaiso/jobpilot/internal/domain"
)

// ClientID возвращает идентификатор клиента очереди.
// Генерируется один раз и дальше не меняется.
func ClientID(ctx context.Context, s Store) (string, error) {
	var id string
	found, err := s.Get(ctx, KeyClientID, &id)
	if err != nil {
		return "", err
	}
	if found && id != "" {
		return id, nil
	}

	id = uuid.NewString()
	if err := s.Set(ctx, KeyClientID, id); err != nil {
		return "", fmt.Errorf("save client id: %w", err)
	}
	return id, nil
}

// LoadEnabled читает флаг включённости поллинга.
// Если флаг ещё не сохранялся, возвращает def.
func LoadEnabled(ctx context.Context, s Store, def bool) (bool, error) {
	enabled := def
	if _, err := s.Get(ctx, KeyEnabled, &enabled); err != nil {
		return def, err
	}
	return enabled, nil
}

// SaveEnabled сохраняет флаг включённости поллинга.
func SaveEnabled(ctx context.Context, s Store, enabled bool) error {
	return s.Set(ctx, KeyEnabled, enabled)
}

// LoadRetrySettings читает настройки backend retry.
func LoadRetrySettings(ctx context.Context, s Store) (domain.RetrySettings, error) {
	var rs domain.RetrySettings
	if _, err := s.Get(ctx, KeyRetrySettings, &rs); err != nil {
		return domain.RetrySettings{}, err
	}
	return rs, nil
}

// SaveRetrySettings валидирует и сохраняет настройки backend retry.
func SaveRetrySettings(ctx context.Context, s Store, rs domain.RetrySettings) error {
	if err := rs.Validate(); err != nil {
		return err
	}
	return s.Set(ctx, KeyRetrySettings, rs)
}

// LoadLocalRetries читает счётчики локальных повторов (jobs.persist_local_retries).
func LoadLocalRetries(ctx context.Context, s Store) (map[string]int, error) {
	counters := make(map[string]int)
	if _, err := s.Get(ctx, KeyLocalRetries, &counters); err != nil {
		return nil, err
	}
	if counters == nil {
		counters = make(map[string]int)
	}
	return counters, nil
}

// SaveLocalRetries сохраняет счётчики локальных повторов.
func SaveLocalRetries(ctx context.Context, s Store, counters map[string]int) error {
	return s.Set(ctx, KeyLocalRetries, counters)
}
