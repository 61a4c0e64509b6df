// Package scheduler — периодический триггер fetch+dispatch.
//
// Каждый тик:
//   - поллинг выключен → ничего
//   - достигнут потолок активных задач → ничего
//   - иначе один FetchNext; задача есть → Dispatch
//
// Тик не крутится в цикле и не пересекается с предыдущим. Флаг
// включённости хранится в state.Store и переживает рестарт.
//
// Использование:
//
//	sched, err := scheduler.New(scheduler.Config{
//	    Queue:        queueClient,
//	    Orchestrator: orch,
//	    Store:        store,
//	    ClientID:     clientID,
//	    Interval:     10 * time.Second,
//	    Logger:       logger,
//	})
//	if err := sched.Start(ctx); err != nil { ... }
//	defer sched.Stop()
//
// Stop останавливает только новые fetch'и: задачи в работе доходят до
// своего терминального состояния.
package scheduler
