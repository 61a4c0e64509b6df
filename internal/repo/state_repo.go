package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/jobpilot/internal/state"
)

var _ state.Store = (*StateRepo)(nil)

// schema — таблица key→JSONB для персистентного состояния.
const schema = `
	CREATE TABLE IF NOT EXISTS jobpilot_state (
		key        TEXT PRIMARY KEY,
		value      JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)
`

// StateRepo — postgres-бэкенд state.Store.
type StateRepo struct {
	pool *pgxpool.Pool
}

// NewStateRepo создаёт StateRepo. Пул переходит во владение репозитория
// и закрывается в Close.
func NewStateRepo(pool *pgxpool.Pool) *StateRepo {
	return &StateRepo{pool: pool}
}

// EnsureSchema создаёт таблицу состояния, если её нет.
func (r *StateRepo) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create state table: %w", err)
	}
	return nil
}

// Get декодирует значение ключа в dst.
func (r *StateRepo) Get(ctx context.Context, key string, dst any) (bool, error) {
	data, err := r.getRaw(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (r *StateRepo) getRaw(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := r.pool.QueryRow(ctx, `SELECT value FROM jobpilot_state WHERE key = $1`, key).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select state %s: %w", key, err)
	}
	return data, nil
}

// Set сохраняет значение ключа (upsert).
func (r *StateRepo) Set(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}

	query := `
		INSERT INTO jobpilot_state (key, value, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
	`
	if _, err := r.pool.Exec(ctx, query, key, data); err != nil {
		return fmt.Errorf("upsert state %s: %w", key, err)
	}
	return nil
}

// Delete удаляет ключ.
func (r *StateRepo) Delete(ctx context.Context, key string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM jobpilot_state WHERE key = $1`, key); err != nil {
		return fmt.Errorf("delete state %s: %w", key, err)
	}
	return nil
}

// Close закрывает пул.
func (r *StateRepo) Close() error {
	r.pool.Close()
	return nil
}
