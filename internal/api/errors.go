package api

import (
	"errors"
	"fmt"
)

// ErrorKind классифицирует ошибки REST-вызовов.
type ErrorKind int

const (
	// KindNetwork — транспортная ошибка или 5xx; состояние не меняется,
	// операция повторяется вручную (автоматических retry нет).
	KindNetwork ErrorKind = iota
	// KindAuthExpired — 401; единственная ошибка с глобальным эффектом (logout).
	KindAuthExpired
	// KindValidation — 4xx или локальная проверка входных данных.
	KindValidation
	// KindUploadTooLarge — файл превышает потолок, проверяется до отправки.
	KindUploadTooLarge
)

func (k ErrorKind) String() string {
	switch k {
	case KindAuthExpired:
		return "auth_expired"
	case KindValidation:
		return "validation"
	case KindUploadTooLarge:
		return "upload_too_large"
	default:
		return "network"
	}
}

// Error — ошибка REST-вызова с классом и HTTP-статусом, если он был.
type Error struct {
	Kind    ErrorKind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("api: %s: %v", e.Kind, e.Err)
	}
	if e.Status != 0 {
		return fmt.Sprintf("api: %s (%d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("api: %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf возвращает класс ошибки; не-api ошибки считаются сетевыми.
func KindOf(err error) ErrorKind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindNetwork
}

// IsAuthExpired reports whether the error must force a logout.
func IsAuthExpired(err error) bool {
	return KindOf(err) == KindAuthExpired
}
