// Package mq — RabbitMQ-инфраструктура jobpilot.
//
// Структура:
//   - connection.go — соединение с автоматическим reconnect
//   - topology.go   — exchanges, queues, bindings
//   - publisher.go  — публикация событий жизненного цикла задач
//   - consumer.go   — потребление сообщений
//   - control.go    — обработчик управляющих команд
//
// События (exchange jobpilot.events, topic; routing key = тип):
//   - job.dispatched — executor запущен и подтвердил задачу
//   - job.succeeded  — задача успешно завершена
//   - job.failed     — задача завершена неудачно
//   - job.retrying   — executor упал, запланирован локальный повтор
//
// Команды (очередь jobpilot.control):
//   - control.start, control.stop, control.poll
//   - control.reset_stuck, control.cancel_pending
//
// Брокер опционален: без него демон работает в режиме только поллинга.
package mq
