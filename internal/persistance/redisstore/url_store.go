package redisstore

import (
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/nestjam/yap-shortlink/internal/domain"
)

const (
	fieldLongURL   = "long_url"
	fieldClicks    = "clicks"
	fieldCreatedAt = "created_at"
)

var putIfAbsentScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  return 0
end
redis.call('HSET', KEYS[1], 'long_url', ARGV[1], 'clicks', ARGV[2], 'created_at', ARGV[3])
return 1
`)

var incrementClicksScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return false
end
return redis.call('HINCRBY', KEYS[1], 'clicks', ARGV[1])
`)

// Store хранит каждую ссылку в отдельном хеше Redis с ключом prefix:code.
type Store struct {
	client redis.UniversalClient
	prefix string
}

// New создает хранилище поверх клиента Redis.
func New(client redis.UniversalClient, prefix string) *Store {
	return &Store{client: client, prefix: prefix}
}

// Get возвращает ссылку по коду.
func (s *Store) Get(ctx context.Context, code string) (domain.ShortLink, error) {
	const op = "get link"

	values, err := s.client.HGetAll(ctx, s.key(code)).Result()
	if err != nil {
		return domain.ShortLink{}, domain.NewStoreError(op, err)
	}
	if len(values) == 0 {
		return domain.ShortLink{}, domain.ErrNotFound
	}

	link, err := parseLink(code, values)
	if err != nil {
		return domain.ShortLink{}, domain.NewStoreError(op, err)
	}

	return link, nil
}

// PutIfAbsent сохраняет ссылку. Если код занят, возвращает ErrAlreadyExists.
func (s *Store) PutIfAbsent(ctx context.Context, link domain.ShortLink) error {
	const op = "put link"

	created, err := putIfAbsentScript.Run(ctx, s.client, []string{s.key(link.Code)},
		link.LongURL, link.Clicks, link.CreatedAt.UnixNano()).Int()
	if err != nil {
		return domain.NewStoreError(op, err)
	}
	if created == 0 {
		return domain.ErrAlreadyExists
	}

	return nil
}

// IncrementClicks атомарно увеличивает счетчик переходов.
func (s *Store) IncrementClicks(ctx context.Context, code string, delta int64) (int64, error) {
	const op = "increment clicks"

	clicks, err := incrementClicksScript.Run(ctx, s.client, []string{s.key(code)}, delta).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, domain.ErrNotFound
	}
	if err != nil {
		return 0, domain.NewStoreError(op, err)
	}

	return clicks, nil
}

// IsAvailable проверяет соединение с Redis.
func (s *Store) IsAvailable(ctx context.Context) bool {
	return s.client.Ping(ctx).Err() == nil
}

func (s *Store) key(code string) string {
	return s.prefix + ":" + code
}

func parseLink(code string, values map[string]string) (domain.ShortLink, error) {
	clicks, err := strconv.ParseInt(values[fieldClicks], 10, 64)
	if err != nil {
		return domain.ShortLink{}, errors.Wrap(err, "parse clicks")
	}

	createdAt, err := strconv.ParseInt(values[fieldCreatedAt], 10, 64)
	if err != nil {
		return domain.ShortLink{}, errors.Wrap(err, "parse created at")
	}

	return domain.ShortLink{
		Code:      code,
		LongURL:   values[fieldLongURL],
		Clicks:    clicks,
		CreatedAt: time.Unix(0, createdAt).UTC(),
	}, nil
}
