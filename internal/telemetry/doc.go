// Package telemetry обеспечивает наблюдаемость jobpilot.
//
// Включает:
//   - logging.go — structured logging через slog
//   - metrics.go — Prometheus метрики
//
// Все бинарники используют единый формат логирования,
// демон экспортирует метрики на /metrics endpoint.
package telemetry
