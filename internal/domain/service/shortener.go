package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/nestjam/yap-shortlink/internal/domain"
)

// maxAttempts ограничивает количество попыток выделить свободный код.
const maxAttempts = 5

// ShortenResult содержит короткий и исходный URL.
type ShortenResult struct {
	ShortURL string // короткий URL
	LongURL  string // исходный URL
}

// Shortener выполняет сокращение ссылок.
type Shortener struct {
	store   domain.Store
	baseURL string
	options
}

// NewShortener создает сервис сокращения ссылок. Короткие URL строятся от baseURL.
func NewShortener(store domain.Store, baseURL string, opts ...Option) *Shortener {
	return &Shortener{
		store:   store,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		options: newOptions(opts),
	}
}

// Shorten сокращает исходную ссылку.
// Возвращает ErrInvalidInput для URL без схемы http(s) и ErrAllocationExhausted,
// если свободный код не найден за maxAttempts попыток.
func (s *Shortener) Shorten(ctx context.Context, url string) (ShortenResult, error) {
	const op = "shorten url"

	if !domain.HasHTTPScheme(url) {
		return ShortenResult{}, errors.Wrap(domain.ErrInvalidInput, "valid URL required")
	}

	code, err := s.allocate(ctx, url)
	if err != nil {
		return ShortenResult{}, errors.Wrap(err, op)
	}

	return ShortenResult{
		ShortURL: joinPath(s.baseURL, code),
		LongURL:  url,
	}, nil
}

func (s *Shortener) allocate(ctx context.Context, url string) (string, error) {
	var (
		lastErr       error
		storeFailures int
	)

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", errors.Wrap(err, "allocate code")
		}

		candidate := s.generator.Generate(s.codeLength)
		err := s.create(ctx, domain.NewShortLink(candidate, url, s.now()))
		if err == nil {
			return candidate, nil
		}

		if errors.Is(err, domain.ErrAlreadyExists) {
			s.logger.Debug("Code is taken", zap.String("code", candidate), zap.Int("attempt", attempt))
			continue
		}

		storeFailures++
		lastErr = err
		s.logger.Warn("Failed to allocate code",
			zap.String("code", candidate),
			zap.Int("attempt", attempt),
			zap.Error(err))
	}

	if storeFailures == maxAttempts {
		return "", fmt.Errorf("%w: %w", domain.ErrAllocationExhausted, lastErr)
	}

	return "", domain.ErrAllocationExhausted
}

// create проверяет, что код свободен, и сохраняет ссылку условной записью.
// Занятый код при проверке или при записи дает ErrAlreadyExists.
func (s *Shortener) create(ctx context.Context, link domain.ShortLink) error {
	const op = "create link"

	getCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	_, err := s.store.Get(getCtx, link.Code)
	cancel()

	switch {
	case err == nil:
		return domain.ErrAlreadyExists
	case !errors.Is(err, domain.ErrNotFound):
		return asStoreError(op, err)
	}

	putCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	if err := s.store.PutIfAbsent(putCtx, link); err != nil {
		return asStoreError(op, err)
	}

	return nil
}

func joinPath(base, elem string) string {
	return fmt.Sprintf("%s/%s", base, elem)
}
