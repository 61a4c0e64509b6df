package repo

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/jobpilot/internal/domain"
	"github.com/shaiso/jobpilot/internal/state"
)

// Интеграционный тест: нужен живой postgres в JOBPILOT_TEST_DB_URL.
func newTestRepo(t *testing.T) *StateRepo {
	t.Helper()
	dsn := os.Getenv("JOBPILOT_TEST_DB_URL")
	if dsn == "" {
		t.Skip("JOBPILOT_TEST_DB_URL not set")
	}

	ctx := context.Background()
	pool, err := NewPool(ctx, PoolConfig{DSN: dsn})
	require.NoError(t, err)

	r := NewStateRepo(pool)
	require.NoError(t, r.EnsureSchema(ctx))
	_, err = pool.Exec(ctx, `DELETE FROM jobpilot_state WHERE key LIKE 'test_%'`)
	require.NoError(t, err)

	t.Cleanup(func() { r.Close() })
	return r
}

func TestStateRepo_RoundTrip(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	var got domain.RetrySettings
	ok, err := r.Get(ctx, "test_retry", &got)
	require.NoError(t, err)
	assert.False(t, ok)

	want := domain.RetrySettings{MaxAttempts: 5, MaxBackoffMs: 60000}
	require.NoError(t, r.Set(ctx, "test_retry", want))
	require.NoError(t, r.Set(ctx, "test_retry", want))

	ok, err = r.Get(ctx, "test_retry", &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, want, got)

	require.NoError(t, r.Delete(ctx, "test_retry"))
	ok, err = r.Get(ctx, "test_retry", &got)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStateRepo_Settings(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, state.SaveEnabled(ctx, r, true))
	enabled, err := state.LoadEnabled(ctx, r, false)
	require.NoError(t, err)
	assert.True(t, enabled)
}

func TestNewPool_EmptyDSN(t *testing.T) {
	_, err := NewPool(context.Background(), PoolConfig{})
	assert.ErrorIs(t, err, ErrEmptyDSN)
}
