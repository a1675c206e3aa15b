package service

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/nestjam/yap-shortlink/internal/domain"
)

// Redirector возвращает исходную ссылку по коду и учитывает переходы.
type Redirector struct {
	store    domain.Store
	recorder *ClickRecorder
	options
}

// NewRedirector создает сервис переходов по коротким ссылкам.
func NewRedirector(store domain.Store, opts ...Option) *Redirector {
	return &Redirector{
		store:   store,
		options: newOptions(opts),
	}
}

// SetClickRecorder задает компонент, который учитывает переходы асинхронно.
func (r *Redirector) SetClickRecorder(recorder *ClickRecorder) {
	r.recorder = recorder
}

// Resolve возвращает исходную ссылку по коду и учитывает переход.
// Ошибка учета перехода не влияет на результат.
func (r *Redirector) Resolve(ctx context.Context, code string) (string, error) {
	const op = "resolve code"

	link, err := r.lookup(ctx, code)
	if err != nil {
		return "", errors.Wrap(err, op)
	}

	if r.recorder != nil {
		r.recorder.Record(code)
	} else {
		incrementClicks(context.WithoutCancel(ctx), r.store, code, r.storeTimeout, r.logger)
	}

	return link.LongURL, nil
}

// Describe возвращает ссылку по коду без учета перехода.
func (r *Redirector) Describe(ctx context.Context, code string) (domain.ShortLink, error) {
	const op = "describe code"

	link, err := r.lookup(ctx, code)
	if err != nil {
		return domain.ShortLink{}, errors.Wrap(err, op)
	}

	return link, nil
}

func (r *Redirector) lookup(ctx context.Context, code string) (domain.ShortLink, error) {
	const op = "get link"

	if code == "" {
		return domain.ShortLink{}, errors.Wrap(domain.ErrInvalidInput, "code required")
	}

	ctx, cancel := context.WithTimeout(ctx, r.storeTimeout)
	defer cancel()

	link, err := r.store.Get(ctx, code)
	if err != nil {
		return domain.ShortLink{}, asStoreError(op, err)
	}

	return link, nil
}

// incrementClicks увеличивает счетчик переходов. Ошибки и паники записываются в лог и не возвращаются.
func incrementClicks(ctx context.Context, store domain.Store, code string, timeout time.Duration, logger *zap.Logger) {
	defer func() {
		if v := recover(); v != nil {
			logger.Warn("Failed to increment clicks",
				zap.String("code", code),
				zap.String("panic", fmt.Sprint(v)))
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if _, err := store.IncrementClicks(ctx, code, 1); err != nil {
		logger.Warn("Failed to increment clicks", zap.String("code", code), zap.Error(err))
	}
}
