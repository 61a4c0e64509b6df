package state

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/jobpilot/internal/domain"
)

func TestMemoryStore_MissingKey(t *testing.T) {
	s := NewMemoryStore()

	var v string
	found, err := s.Get(context.Background(), "missing", &v)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestFileStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "state.yaml")

	s, err := NewFileStore(path)
	require.NoError(t, err)

	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	stats := domain.Stats{Processed: 3, Succeeded: 2, Failed: 1, LastProcessedAt: &ts}
	history := []domain.HistoryItem{
		{ID: "j1", URL: "https://example.com/1", Status: domain.HistoryStatusCompleted, Timestamp: ts, Price: 500},
	}

	require.NoError(t, s.Set(ctx, KeyStats, stats))
	require.NoError(t, s.Set(ctx, KeyHistory, history))
	require.NoError(t, s.Set(ctx, KeyEnabled, true))

	reopened, err := NewFileStore(path)
	require.NoError(t, err)

	var gotStats domain.Stats
	found, err := reopened.Get(ctx, KeyStats, &gotStats)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, int64(3), gotStats.Processed)
	require.NotNil(t, gotStats.LastProcessedAt)
	assert.True(t, ts.Equal(*gotStats.LastProcessedAt))

	var gotHistory []domain.HistoryItem
	_, err = reopened.Get(ctx, KeyHistory, &gotHistory)
	require.NoError(t, err)
	require.Len(t, gotHistory, 1)
	assert.Equal(t, domain.HistoryStatusCompleted, gotHistory[0].Status)
	assert.Equal(t, int64(500), gotHistory[0].Price)

	enabled, err := LoadEnabled(ctx, reopened, false)
	require.NoError(t, err)
	assert.True(t, enabled)
}

func TestFileStore_DeleteAndNoTempLeftovers(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "state.yaml")

	s, err := NewFileStore(path)
	require.NoError(t, err)

	require.NoError(t, s.Set(ctx, "a", 1))
	require.NoError(t, s.Delete(ctx, "a"))
	require.NoError(t, s.Delete(ctx, "never-set"))

	var v int
	found, err := s.Get(ctx, "a", &v)
	require.NoError(t, err)
	assert.False(t, found)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "state.yaml", entries[0].Name())
}

func TestFileStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.yaml")
	require.NoError(t, os.WriteFile(path, []byte("::: not yaml :::\n\t- ["), 0o644))

	_, err := NewFileStore(path)
	assert.Error(t, err)
}

func TestClientID_GeneratedOnce(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	first, err := ClientID(ctx, s)
	require.NoError(t, err)
	require.NotEmpty(t, first)

	second, err := ClientID(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestLoadEnabled_Default(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	enabled, err := LoadEnabled(ctx, s, true)
	require.NoError(t, err)
	assert.True(t, enabled)

	require.NoError(t, SaveEnabled(ctx, s, false))
	enabled, err = LoadEnabled(ctx, s, true)
	require.NoError(t, err)
	assert.False(t, enabled)
}

func TestRetrySettings(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	rs, err := LoadRetrySettings(ctx, s)
	require.NoError(t, err)
	assert.True(t, rs.IsZero())

	require.NoError(t, SaveRetrySettings(ctx, s, domain.RetrySettings{MaxAttempts: 5, MaxBackoffMs: 60000}))
	rs, err = LoadRetrySettings(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, domain.RetrySettings{MaxAttempts: 5, MaxBackoffMs: 60000}, rs)

	err = SaveRetrySettings(ctx, s, domain.RetrySettings{MaxAttempts: -1})
	assert.Error(t, err)
}

func TestLocalRetries(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	counters, err := LoadLocalRetries(ctx, s)
	require.NoError(t, err)
	assert.Empty(t, counters)

	require.NoError(t, SaveLocalRetries(ctx, s, map[string]int{"j2": 2}))
	counters, err = LoadLocalRetries(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"j2": 2}, counters)
}
