package domain

import (
	"context"
	"fmt"
)

// A StoreDelegate allows to extend the behavior of the test double for negative scenarios
// for Store consumers.
type StoreDelegate struct {
	GetFunc             func(ctx context.Context, code string) (ShortLink, error)
	PutIfAbsentFunc     func(ctx context.Context, link ShortLink) error
	IncrementClicksFunc func(ctx context.Context, code string, delta int64) (int64, error)
	IsAvailableFunc     func(ctx context.Context) bool
	delegate            Store
}

func NewStoreDelegate(delegate Store) *StoreDelegate {
	return &StoreDelegate{delegate: delegate}
}

func (s *StoreDelegate) Get(ctx context.Context, code string) (ShortLink, error) {
	if s.GetFunc != nil {
		return s.GetFunc(ctx, code)
	}

	link, err := s.delegate.Get(ctx, code)
	if err != nil {
		return ShortLink{}, fmt.Errorf("get link from store delegate: %w", err)
	}

	return link, nil
}

func (s *StoreDelegate) PutIfAbsent(ctx context.Context, link ShortLink) error {
	if s.PutIfAbsentFunc != nil {
		return s.PutIfAbsentFunc(ctx, link)
	}

	if err := s.delegate.PutIfAbsent(ctx, link); err != nil {
		return fmt.Errorf("put link to store delegate: %w", err)
	}

	return nil
}

func (s *StoreDelegate) IncrementClicks(ctx context.Context, code string, delta int64) (int64, error) {
	if s.IncrementClicksFunc != nil {
		return s.IncrementClicksFunc(ctx, code, delta)
	}

	clicks, err := s.delegate.IncrementClicks(ctx, code, delta)
	if err != nil {
		return 0, fmt.Errorf("increment clicks in store delegate: %w", err)
	}

	return clicks, nil
}

func (s *StoreDelegate) IsAvailable(ctx context.Context) bool {
	if s.IsAvailableFunc != nil {
		return s.IsAvailableFunc(ctx)
	}

	return s.delegate.IsAvailable(ctx)
}
