package models

import "github.com/pkg/errors"

var (
	// ErrValidation плохой ввод пользователя: символ, число, направление.
	ErrValidation = errors.New("validation error")
	// ErrStaleSelection нажата кнопка от устаревшей подсказки.
	ErrStaleSelection = errors.New("stale selection")
	// ErrUpstreamFetch биржа или Telegram недоступны / таймаут.
	ErrUpstreamFetch = errors.New("upstream fetch error")
	// ErrConfiguration фатально только при старте.
	ErrConfiguration = errors.New("configuration error")
)
