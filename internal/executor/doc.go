// Package executor — изолированные контексты выполнения задач.
//
// Оркестратор общается с executor'ом по newline-delimited JSON:
//
//	→ {"seq":1,"type":"PING"}
//	← {"seq":1,"type":"PONG","ready":true}
//	→ {"seq":2,"type":"START","job":{...}}
//	← {"seq":2,"type":"ACK","received":true}
//	← {"type":"SUCCESS","job_id":"..."}
//	← {"type":"FAILURE","job_id":"...","error":"..."}
//
// Закрытие потока executor'а без SUCCESS/FAILURE — crash.
//
// Реализации Launcher:
//   - ProcessLauncher — отдельный процесс (cmd/jobpilot-executor), stdin/stdout
//   - InProcessLauncher — горутина в том же процессе, io.Pipe
//
// Serve — сторона executor'а, HTTPWork — эталонная нагрузка.
package executor
