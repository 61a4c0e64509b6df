package orchestrator

import "time"

// Backoff вычисляет задержку перед попыткой attempt: base * 2^(attempt-1),
// не больше limit. attempt <= 1 — base. limit <= 0 — без ограничения.
func Backoff(attempt int, base, limit time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}

	delay := base
	for i := 1; i < attempt; i++ {
		if delay > (1<<62)/2 {
			break
		}
		delay *= 2
		if limit > 0 && delay > limit {
			return limit
		}
	}

	if limit > 0 && delay > limit {
		return limit
	}
	return delay
}
