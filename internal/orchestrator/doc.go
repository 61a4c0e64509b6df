// Package orchestrator — жизненный цикл задачи.
//
// Состояния экземпляра задачи:
//
//	FETCHED → DISPATCHING → EXECUTING → SUCCEEDED | FAILED
//
// DISPATCHING — запуск executor'а, readiness handshake (PING с
// фиксированным интервалом и потолком попыток) и доставка START с
// обязательным ACK. EXECUTING — ожидание SUCCESS/FAILURE.
//
// Ошибки:
//   - DeliveryFailure (нет готовности, нет ACK) — сразу FAILED
//   - ExecutionFailure (FAILURE от executor'а) — FAILED с причиной
//   - ExecutorCrash (закрытие без результата) — локальный retry до
//     MaxLocalRetries, затем FAILED "executor closed repeatedly"
//   - Timeout — FAILED "timed out" и принудительное уничтожение executor'а
//
// Локальные повторы не трогают backend и статистику. Решение backend'а
// о своём повторе (willRetry) только логируется.
package orchestrator
