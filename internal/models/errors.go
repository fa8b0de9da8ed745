package models

import (
	"errors"
	"fmt"
)

// Виды ошибок, которые сервисы отдают наружу. Нижние слои оборачивают их
// через fmt.Errorf("...: %w", ...), проверка: errors.Is.
var (
	ErrNotFound          = errors.New("not found")
	ErrAlreadyExists     = errors.New("already exists")
	ErrInvalidCredential = errors.New("invalid password")
	ErrInvalidIdentifier = errors.New("invalid identifier")
	ErrExpired           = errors.New("otp expired")
	ErrMismatch          = errors.New("otp mismatch")
	ErrDeliveryFailed    = errors.New("otp delivery failed")
	ErrUploadFailed      = errors.New("file upload failed")
	ErrInvalidToken      = errors.New("invalid token")
	ErrStoreUnavailable  = errors.New("store unavailable")
	ErrValidation        = errors.New("validation failed")
)

// ErrNoPendingOTP: частный случай ErrNotFound: кода для аккаунта нет или он уже погашен.
var ErrNoPendingOTP = fmt.Errorf("no pending otp: %w", ErrNotFound)

// ValidationError: ошибка входных данных с сообщением для клиента.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func Invalid(format string, args ...interface{}) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}
