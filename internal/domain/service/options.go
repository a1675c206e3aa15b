package service

import (
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/nestjam/yap-shortlink/internal/code"
	"github.com/nestjam/yap-shortlink/internal/domain"
)

const defaultStoreTimeout = 5 * time.Second

type options struct {
	logger       *zap.Logger
	generator    *code.Generator
	now          func() time.Time
	codeLength   int
	storeTimeout time.Duration
}

// Option определяет опцию настройки сервиса.
type Option func(*options)

func newOptions(opts []Option) options {
	o := options{
		logger:       zap.NewNop(),
		generator:    code.New(nil),
		now:          time.Now,
		codeLength:   code.DefaultLength,
		storeTimeout: defaultStoreTimeout,
	}

	for _, opt := range opts {
		opt(&o)
	}

	return o
}

// WithLogger задает логер сервиса.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithCodeGenerator задает генератор коротких кодов.
func WithCodeGenerator(g *code.Generator) Option {
	return func(o *options) {
		o.generator = g
	}
}

// WithCodeLength задает длину генерируемого кода.
func WithCodeLength(length int) Option {
	return func(o *options) {
		if length > 0 {
			o.codeLength = length
		}
	}
}

// WithStoreTimeout ограничивает время каждого обращения к хранилищу.
func WithStoreTimeout(timeout time.Duration) Option {
	return func(o *options) {
		if timeout > 0 {
			o.storeTimeout = timeout
		}
	}
}

// WithClock задает источник текущего времени.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// asStoreError оставляет ошибки предметной области как есть, остальные считает ошибками хранилища.
func asStoreError(op string, err error) error {
	if errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrAlreadyExists) ||
		errors.Is(err, domain.ErrStoreUnavailable) {
		return err
	}
	return domain.NewStoreError(op, err)
}
