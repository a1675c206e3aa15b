package cached

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"

	"github.com/nestjam/yap-shortlink/internal/domain"
)

// Store кеширует результаты Get в LRU-кеше поверх другого хранилища.
// Приращение счетчика удаляет ссылку из кеша.
type Store struct {
	next  domain.Store
	cache *lru.Cache[string, domain.ShortLink]
}

// New создает кеширующее хранилище на size записей.
func New(next domain.Store, size int) (*Store, error) {
	const op = "new cached store"

	cache, err := lru.New[string, domain.ShortLink](size)
	if err != nil {
		return nil, errors.Wrap(err, op)
	}

	return &Store{next: next, cache: cache}, nil
}

// Get возвращает ссылку из кеша или из хранилища.
func (s *Store) Get(ctx context.Context, code string) (domain.ShortLink, error) {
	if link, ok := s.cache.Get(code); ok {
		return link, nil
	}

	link, err := s.next.Get(ctx, code)
	if err != nil {
		return domain.ShortLink{}, err
	}

	s.cache.Add(code, link)
	return link, nil
}

// PutIfAbsent сохраняет ссылку в хранилище.
func (s *Store) PutIfAbsent(ctx context.Context, link domain.ShortLink) error {
	if err := s.next.PutIfAbsent(ctx, link); err != nil {
		return err
	}

	s.cache.Add(link.Code, link)
	return nil
}

// IncrementClicks увеличивает счетчик в хранилище и сбрасывает запись кеша.
func (s *Store) IncrementClicks(ctx context.Context, code string, delta int64) (int64, error) {
	clicks, err := s.next.IncrementClicks(ctx, code, delta)
	s.cache.Remove(code)
	return clicks, err
}

// IsAvailable проверяет доступность хранилища.
func (s *Store) IsAvailable(ctx context.Context) bool {
	return s.next.IsAvailable(ctx)
}
