package domain

import (
	"context"
	"net/url"
	"strings"
	"time"
)

// ShortLink описывает короткую ссылку.
type ShortLink struct {
	CreatedAt time.Time // время создания, не изменяется
	Code      string    // короткий код, первичный ключ
	LongURL   string    // исходный URL
	Clicks    int64     // количество переходов
}

// NewShortLink создает ссылку с нулевым счетчиком переходов.
func NewShortLink(code, longURL string, createdAt time.Time) ShortLink {
	return ShortLink{
		Code:      code,
		LongURL:   longURL,
		CreatedAt: createdAt.UTC(),
	}
}

// Store определяет хранилище коротких ссылок.
type Store interface {
	// Get возвращает ссылку по коду или ErrNotFound.
	Get(ctx context.Context, code string) (ShortLink, error)
	// PutIfAbsent сохраняет ссылку, если код свободен, иначе возвращает ErrAlreadyExists.
	PutIfAbsent(ctx context.Context, link ShortLink) error
	// IncrementClicks атомарно увеличивает счетчик переходов и возвращает новое значение.
	IncrementClicks(ctx context.Context, code string, delta int64) (int64, error)
	// IsAvailable возвращает true, если хранилище доступно.
	IsAvailable(ctx context.Context) bool
}

// HasHTTPScheme возвращает true, если URL начинается со схемы http или https и содержит хост.
func HasHTTPScheme(rawURL string) bool {
	lower := strings.ToLower(rawURL)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return false
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	return u.Host != ""
}
