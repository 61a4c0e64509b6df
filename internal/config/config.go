package config

import (
	"time"
)

// Config — конфигурация демона jobpilot.
//
// Источники по возрастанию приоритета: значения по умолчанию, YAML-файл
// (CONFIG_PATH, default config.yml), переменные окружения (.env
// подгружается автоматически).
type Config struct {
	Log      LogConfig      `yaml:"log"`
	Queue    QueueConfig    `yaml:"queue"`
	Poll     PollConfig     `yaml:"poll"`
	Jobs     JobsConfig     `yaml:"jobs"`
	Executor ExecutorConfig `yaml:"executor"`
	State    StateConfig    `yaml:"state"`
	AMQP     AMQPConfig     `yaml:"amqp"`
	HTTP     HTTPConfig     `yaml:"http"`

	// ShutdownGrace — сколько ждать задачи в работе при остановке.
	ShutdownGrace time.Duration `yaml:"shutdown_grace" env:"JOBPILOT_SHUTDOWN_GRACE"`
}

// LogConfig — логирование (telemetry.SetupLogger).
type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Format string `yaml:"format" env:"LOG_FORMAT"`
}

// QueueConfig — HTTP API очереди.
type QueueConfig struct {
	BaseURL        string        `yaml:"base_url" env:"JOBPILOT_QUEUE_URL"`
	Token          string        `yaml:"token" env:"JOBPILOT_QUEUE_TOKEN"`
	RequestTimeout time.Duration `yaml:"request_timeout" env:"JOBPILOT_QUEUE_TIMEOUT"`
}

// PollConfig — планировщик.
type PollConfig struct {
	Interval time.Duration `yaml:"interval" env:"JOBPILOT_POLL_INTERVAL"`
	// Cron — расписание вместо interval (опционально).
	Cron string `yaml:"cron" env:"JOBPILOT_POLL_CRON"`
	// Enabled — начальное значение флага, пока он не сохранён в state.
	Enabled       bool `yaml:"enabled" env:"JOBPILOT_POLL_ENABLED"`
	MaxActiveJobs int  `yaml:"max_active_jobs" env:"JOBPILOT_MAX_ACTIVE_JOBS"`
}

// JobsConfig — жизненный цикл задачи.
type JobsConfig struct {
	Timeout             time.Duration `yaml:"timeout" env:"JOBPILOT_JOB_TIMEOUT"`
	ReadyInterval       time.Duration `yaml:"ready_interval"`
	ReadyAttempts       int           `yaml:"ready_attempts"`
	AckTimeout          time.Duration `yaml:"ack_timeout"`
	MaxLocalRetries     int           `yaml:"max_local_retries" env:"JOBPILOT_MAX_LOCAL_RETRIES"`
	LocalRetryDelay     time.Duration `yaml:"local_retry_delay"`
	// LocalRetryMaxDelay > 0 включает рост паузы между локальными повторами.
	LocalRetryMaxDelay  time.Duration `yaml:"local_retry_max_delay"`
	PersistLocalRetries bool          `yaml:"persist_local_retries" env:"JOBPILOT_PERSIST_LOCAL_RETRIES"`
	HistoryCapacity     int           `yaml:"history_capacity"`
}

// Режимы executor'а.
const (
	ExecutorModeProcess   = "process"
	ExecutorModeInProcess = "inprocess"
)

// ExecutorConfig — как запускаются executor'ы.
type ExecutorConfig struct {
	// Mode: process (дочерний процесс) или inprocess (горутина с HTTPWork).
	Mode    string   `yaml:"mode" env:"JOBPILOT_EXECUTOR_MODE"`
	Command string   `yaml:"command" env:"JOBPILOT_EXECUTOR_COMMAND"`
	Args    []string `yaml:"args"`
	Env     []string `yaml:"env"`
	Dir     string   `yaml:"dir"`

	// Для inprocess.
	HTTPTimeout time.Duration `yaml:"http_timeout"`
	UserAgent   string        `yaml:"user_agent"`
}

// Бэкенды состояния.
const (
	StateBackendMemory   = "memory"
	StateBackendFile     = "file"
	StateBackendRedis    = "redis"
	StateBackendPostgres = "postgres"
)

// StateConfig — персистентное состояние.
type StateConfig struct {
	Backend  string         `yaml:"backend" env:"JOBPILOT_STATE_BACKEND"`
	Path     string         `yaml:"path" env:"JOBPILOT_STATE_PATH"`
	Redis    RedisConfig    `yaml:"redis"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// RedisConfig — бэкенд redis.
type RedisConfig struct {
	Address  string `yaml:"address" env:"REDIS_ADDR"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB"`
	Prefix   string `yaml:"prefix"`
}

// PostgresConfig — бэкенд postgres.
type PostgresConfig struct {
	DSN      string `yaml:"dsn" env:"DB_URL"`
	MaxConns int32  `yaml:"max_conns"`
}

// AMQPConfig — RabbitMQ (опционально).
type AMQPConfig struct {
	// URL — пустой отключает брокер.
	URL            string `yaml:"url" env:"RABBITMQ_URL"`
	PublishEvents  bool   `yaml:"publish_events"`
	ConsumeControl bool   `yaml:"consume_control"`
}

// HTTPConfig — операторский API.
type HTTPConfig struct {
	Addr  string `yaml:"addr" env:"JOBPILOT_HTTP_ADDR"`
	Token string `yaml:"token" env:"JOBPILOT_API_TOKEN"`
}

// Default возвращает конфигурацию по умолчанию.
func Default() Config {
	return Config{
		Log: LogConfig{Level: "INFO", Format: "json"},
		Queue: QueueConfig{
			RequestTimeout: 30 * time.Second,
		},
		Poll: PollConfig{
			Interval:      10 * time.Second,
			Enabled:       true,
			MaxActiveJobs: 1,
		},
		Jobs: JobsConfig{
			Timeout:         120 * time.Second,
			ReadyInterval:   500 * time.Millisecond,
			ReadyAttempts:   20,
			AckTimeout:      10 * time.Second,
			MaxLocalRetries: 3,
			LocalRetryDelay: 2 * time.Second,
			HistoryCapacity: 50,
		},
		Executor: ExecutorConfig{
			Mode:        ExecutorModeProcess,
			Command:     "jobpilot-executor",
			HTTPTimeout: 60 * time.Second,
			UserAgent:   "jobpilot-executor/1.0",
		},
		State: StateConfig{
			Backend: StateBackendFile,
			Path:    "jobpilot-state.yaml",
		},
		AMQP: AMQPConfig{
			PublishEvents:  true,
			ConsumeControl: true,
		},
		HTTP: HTTPConfig{
			Addr: ":8080",
		},
		ShutdownGrace: 150 * time.Second,
	}
}
