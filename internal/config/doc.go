// Package config загружает конфигурацию демона.
//
// Порядок: Default() → YAML-файл → переменные окружения (`env` теги,
// .env/.env.local подгружаются через godotenv) → Validate().
//
// Пример config.yml:
//
//	queue:
//	  base_url: https://queue.example.com/api/jobs
//	  request_timeout: 30s
//	poll:
//	  interval: 10s
//	jobs:
//	  timeout: 120s
//	  max_local_retries: 3
//	executor:
//	  mode: process
//	  command: jobpilot-executor
//	state:
//	  backend: redis
//	  redis:
//	    address: localhost:6379
//
// Watch перечитывает файл при изменении; на лету применяются только
// poll.interval и log.level (см. Reloadable).
package config
