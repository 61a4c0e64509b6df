// Package api содержит операторский HTTP API демона.
//
// Структура:
//   - handler.go        — Handler с DI (контроллер, logger)
//   - routes.go         — регистрация маршрутов
//   - middleware.go     — middleware (logging, recovery, bearer auth)
//   - response.go       — унифицированные JSON-ответы и обработка ошибок
//   - dto.go            — Data Transfer Objects
//   - poller_handler.go — start/stop/poll
//   - jobs_handler.go   — статус, история, операции очереди, настройки
//
// Ответы: {"data": ...} или {"error": {"code", "message"}}.
package api
