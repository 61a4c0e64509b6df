// Package repo — postgres-бэкенд персистентного состояния.
//
// Состояние (флаг поллинга, статистика, история, настройки повторов)
// хранится в одной таблице jobpilot_state: key → JSONB.
package repo
