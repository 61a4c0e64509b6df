package scheduler

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// MinInterval — минимальный период поллинга.
const MinInterval = time.Second

// cronParser — парсер cron-выражений (секунды опциональны).
var cronParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ScheduleFor возвращает расписание поллинга.
//
// Непустое cron-выражение имеет приоритет над интервалом. Интервал
// меньше секунды поднимается до MinInterval (cron.Every округляет до
// целых секунд).
func ScheduleFor(interval time.Duration, cronExpr string) (cron.Schedule, error) {
	if cronExpr != "" {
		schedule, err := cronParser.Parse(cronExpr)
		if err != nil {
			return nil, fmt.Errorf("parse cron expression %q: %w", cronExpr, err)
		}
		return schedule, nil
	}
	return cron.Every(ClampInterval(interval)), nil
}

// ClampInterval приводит интервал к допустимому значению.
func ClampInterval(interval time.Duration) time.Duration {
	if interval < MinInterval {
		return MinInterval
	}
	return interval.Truncate(time.Second)
}

// ValidateCronExpr проверяет валидность cron-выражения.
func ValidateCronExpr(cronExpr string) error {
	if _, err := cronParser.Parse(cronExpr); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", cronExpr, err)
	}
	return nil
}

// cronLogger — адаптер slog для robfig/cron.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
