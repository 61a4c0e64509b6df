// Package state — персистентное key→value состояние jobpilot.
//
// Ключи: enabled, stats, history, retry_settings, client_id,
// local_retries. Backend выбирается конфигурацией:
//   - memory — MemoryStore, теряется при рестарте
//   - file — FileStore, YAML файл с атомарной записью
//   - redis — RedisStore
//   - postgres — repo.StateRepo (таблица state, JSONB)
package state
