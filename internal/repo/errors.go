package repo

import "errors"

var (
	// ErrEmptyDSN — строка подключения к БД не задана.
	ErrEmptyDSN = errors.New("database dsn is required")

	// ErrNotFound — ключ не найден в таблице состояния.
	ErrNotFound = errors.New("not found")
)
