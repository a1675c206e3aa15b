package domain

import (
	"errors"
	"fmt"
)

// Ошибки сервиса коротких ссылок.
var (
	ErrInvalidInput        = errors.New("invalid input")                  // некорректный URL или код
	ErrNotFound            = errors.New("not found")                      // код не зарегистрирован
	ErrAlreadyExists       = errors.New("code already exists")            // код уже занят
	ErrAllocationExhausted = errors.New("failed to generate unique code") // исчерпаны попытки выделить код
	ErrStoreUnavailable    = errors.New("store unavailable")              // ошибка обращения к хранилищу
)

// StoreError определяет ошибку обращения к хранилищу.
// Сопоставляется с ErrStoreUnavailable и сохраняет исходную причину.
type StoreError struct {
	err error
	op  string
}

// NewStoreError создает экземпляр ошибки для операции op.
func NewStoreError(op string, err error) *StoreError {
	return &StoreError{
		err: err,
		op:  op,
	}
}

// Error возвращает текст ошибки.
func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.op, ErrStoreUnavailable, e.err)
}

// Unwrap возвращает исходную ошибку.
func (e *StoreError) Unwrap() error {
	return e.err
}

// Is сообщает, что ошибка является ErrStoreUnavailable.
func (e *StoreError) Is(target error) bool {
	return target == ErrStoreUnavailable
}
