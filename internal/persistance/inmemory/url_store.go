package inmemory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/nestjam/yap-shortlink/internal/domain"
)

// InmemoryStore хранит короткие ссылки в памяти процесса.
type InmemoryStore struct {
	m sync.Map
}

type linkRecord struct {
	link   domain.ShortLink
	clicks atomic.Int64
}

// New создает пустое хранилище.
func New() *InmemoryStore {
	return &InmemoryStore{}
}

// Get возвращает ссылку по коду.
func (s *InmemoryStore) Get(ctx context.Context, code string) (domain.ShortLink, error) {
	rec, err := s.load(code)
	if err != nil {
		return domain.ShortLink{}, err
	}

	link := rec.link
	link.Clicks = rec.clicks.Load()
	return link, nil
}

// PutIfAbsent сохраняет ссылку, если код свободен.
func (s *InmemoryStore) PutIfAbsent(ctx context.Context, link domain.ShortLink) error {
	rec := &linkRecord{link: link}
	rec.clicks.Store(link.Clicks)

	if _, loaded := s.m.LoadOrStore(link.Code, rec); loaded {
		return domain.ErrAlreadyExists
	}

	return nil
}

// IncrementClicks атомарно увеличивает счетчик переходов.
func (s *InmemoryStore) IncrementClicks(ctx context.Context, code string, delta int64) (int64, error) {
	rec, err := s.load(code)
	if err != nil {
		return 0, err
	}

	return rec.clicks.Add(delta), nil
}

// IsAvailable всегда возвращает true.
func (s *InmemoryStore) IsAvailable(ctx context.Context) bool {
	return true
}

func (s *InmemoryStore) load(code string) (*linkRecord, error) {
	value, ok := s.m.Load(code)
	if !ok {
		return nil, domain.ErrNotFound
	}

	rec, ok := value.(*linkRecord)
	if !ok {
		return nil, errors.New("failed type assertion")
	}

	return rec, nil
}
