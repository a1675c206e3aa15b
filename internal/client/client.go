package client

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
)

const defaultServerAddress = "http://localhost:8080"

// Client представляет клиент сервиса коротких ссылок.
type Client struct {
	inner *resty.Client
}

// ShortenResult содержит короткий и исходный URL.
type ShortenResult struct {
	ShortURL string `json:"shortUrl"`
	LongURL  string `json:"longUrl"`
}

// Stats содержит сведения о короткой ссылке.
type Stats struct {
	CreatedAt time.Time `json:"createdAt"`
	Code      string    `json:"code"`
	LongURL   string    `json:"longUrl"`
	Clicks    int64     `json:"clicks"`
}

// ResponseError описывает ответ сервера с ошибкой.
type ResponseError struct {
	Message    string `json:"error"`
	StatusCode int    `json:"-"`
}

func (e *ResponseError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("%d: %s", e.StatusCode, e.Message)
}

// Option определяет опцию настройки клиента.
type Option func(*Client)

// New создает экземпляр клиента с переданными опциями.
func New(options ...Option) *Client {
	client := &Client{
		inner: resty.New().SetBaseURL(defaultServerAddress),
	}

	client.inner.SetRedirectPolicy(
		resty.RedirectPolicyFunc(func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}),
	)

	for _, opt := range options {
		opt(client)
	}

	return client
}

// WithServerAddress возвращает опцию клиента с указанным адресом сервера.
func WithServerAddress(addr string) Option {
	return func(client *Client) {
		client.inner.SetBaseURL(addr)
	}
}

// WithTimeout ограничивает время выполнения запроса.
func WithTimeout(timeout time.Duration) Option {
	return func(client *Client) {
		client.inner.SetTimeout(timeout)
	}
}

// Shorten выполняет сокращение URL.
func (c *Client) Shorten(ctx context.Context, url string) (ShortenResult, error) {
	const op = "shorten URL"

	var result ShortenResult
	response, err := c.inner.R().
		SetContext(ctx).
		SetBody(map[string]string{"url": url}).
		SetResult(&result).
		SetError(&ResponseError{}).
		Post("/shorten")
	if err != nil {
		return ShortenResult{}, errors.Wrap(err, op)
	}

	if response.StatusCode() != http.StatusOK {
		return ShortenResult{}, errors.Wrap(responseError(response), op)
	}

	return result, nil
}

// Expand возвращает исходный URL по короткому коду, не выполняя перехода.
func (c *Client) Expand(ctx context.Context, code string) (string, error) {
	const op = "expand URL"

	response, err := c.inner.R().
		SetContext(ctx).
		SetError(&ResponseError{}).
		SetPathParam("code", code).
		Get("/{code}")
	if err != nil {
		return "", errors.Wrap(err, op)
	}

	if response.StatusCode() != http.StatusMovedPermanently {
		return "", errors.Wrap(responseError(response), op)
	}

	return response.Header().Get("Location"), nil
}

// Stats возвращает сведения о короткой ссылке.
func (c *Client) Stats(ctx context.Context, code string) (Stats, error) {
	const op = "get stats"

	var stats Stats
	response, err := c.inner.R().
		SetContext(ctx).
		SetResult(&stats).
		SetError(&ResponseError{}).
		SetPathParam("code", code).
		Get("/stats/{code}")
	if err != nil {
		return Stats{}, errors.Wrap(err, op)
	}

	if response.StatusCode() != http.StatusOK {
		return Stats{}, errors.Wrap(responseError(response), op)
	}

	return stats, nil
}

func responseError(response *resty.Response) error {
	respErr, ok := response.Error().(*ResponseError)
	if !ok || respErr == nil {
		respErr = &ResponseError{}
	}
	respErr.StatusCode = response.StatusCode()
	return respErr
}
