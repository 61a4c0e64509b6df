// Package control — операторские команды: start/stop поллинга, ручной
// тик, reset-stuck, cancel-pending, статус, история, настройки повторов.
package control
