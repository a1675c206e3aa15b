package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/nestjam/yap-shortlink/internal/domain"
)

const defaultClickQueueSize = 1024

// ClickRecorder учитывает переходы в фоновой горутине, не задерживая ответ.
// Если очередь заполнена, переход не учитывается.
type ClickRecorder struct {
	clickCh   chan string
	doneCh    <-chan struct{}
	stoppedCh chan struct{}
	logger    *zap.Logger
}

// NewClickRecorder запускает обработчик переходов. Обработчик останавливается при закрытии doneCh,
// предварительно учтя переходы, которые уже находятся в очереди.
func NewClickRecorder(ctx context.Context, doneCh <-chan struct{}, store domain.Store, opts ...Option) *ClickRecorder {
	o := newOptions(opts)
	r := &ClickRecorder{
		clickCh:   make(chan string, defaultClickQueueSize),
		doneCh:    doneCh,
		stoppedCh: make(chan struct{}),
		logger:    o.logger,
	}

	increment := func(code string) {
		incrementClicks(ctx, store, code, o.storeTimeout, o.logger)
	}

	go func() {
		defer close(r.stoppedCh)
		for {
			select {
			case <-r.doneCh:
				r.drain(increment)
				return
			case code := <-r.clickCh:
				increment(code)
			}
		}
	}()

	return r
}

// Record ставит переход в очередь. Возвращает false, если переход не будет учтен.
func (r *ClickRecorder) Record(code string) bool {
	select {
	case <-r.doneCh:
		return false
	default:
	}

	select {
	case r.clickCh <- code:
		return true
	default:
		r.logger.Warn("Click queue is full", zap.String("code", code))
		return false
	}
}

// Wait ожидает остановки обработчика.
func (r *ClickRecorder) Wait() {
	<-r.stoppedCh
}

func (r *ClickRecorder) drain(increment func(string)) {
	for {
		select {
		case code := <-r.clickCh:
			increment(code)
		default:
			return
		}
	}
}
