package control

import "errors"

// ErrInvalidSettings — настройки не прошли валидацию.
var ErrInvalidSettings = errors.New("invalid settings")
