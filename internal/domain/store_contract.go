package domain

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// StoreContract is a test suite every Store implementation must pass.
type StoreContract struct {
	NewStore func() (Store, func())
}

func (c StoreContract) Test(t *testing.T) {
	createdAt := time.Date(2024, time.March, 1, 12, 30, 0, 0, time.UTC)

	t.Run("put new link", func(t *testing.T) {
		want := NewShortLink("AbC123", "https://example.com/page", createdAt)
		sut, tearDown := c.NewStore()
		t.Cleanup(tearDown)
		ctx := context.Background()

		err := sut.PutIfAbsent(ctx, want)

		require.NoError(t, err)

		got, err := sut.Get(ctx, want.Code)

		require.NoError(t, err)
		assertLink(t, want, got)
	})

	t.Run("link not found by code", func(t *testing.T) {
		sut, tearDown := c.NewStore()
		t.Cleanup(tearDown)

		_, err := sut.Get(context.Background(), "doesnotexist")

		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("code is already taken", func(t *testing.T) {
		first := NewShortLink("xYz789", "https://example.com/first", createdAt)
		second := NewShortLink("xYz789", "https://example.com/second", createdAt.Add(time.Hour))
		sut, tearDown := c.NewStore()
		t.Cleanup(tearDown)
		ctx := context.Background()
		require.NoError(t, sut.PutIfAbsent(ctx, first))

		err := sut.PutIfAbsent(ctx, second)

		assert.ErrorIs(t, err, ErrAlreadyExists)

		got, err := sut.Get(ctx, first.Code)

		require.NoError(t, err)
		assertLink(t, first, got)
	})

	t.Run("increment clicks", func(t *testing.T) {
		link := NewShortLink("clk001", "http://example.com", createdAt)
		sut, tearDown := c.NewStore()
		t.Cleanup(tearDown)
		ctx := context.Background()
		require.NoError(t, sut.PutIfAbsent(ctx, link))

		clicks, err := sut.IncrementClicks(ctx, link.Code, 1)

		require.NoError(t, err)
		assert.Equal(t, int64(1), clicks)

		clicks, err = sut.IncrementClicks(ctx, link.Code, 2)

		require.NoError(t, err)
		assert.Equal(t, int64(3), clicks)

		got, err := sut.Get(ctx, link.Code)

		require.NoError(t, err)
		assert.Equal(t, int64(3), got.Clicks)
		assert.Equal(t, link.LongURL, got.LongURL)
	})

	t.Run("increment clicks of unknown code", func(t *testing.T) {
		sut, tearDown := c.NewStore()
		t.Cleanup(tearDown)
		ctx := context.Background()

		_, err := sut.IncrementClicks(ctx, "nope42", 1)

		assert.ErrorIs(t, err, ErrNotFound)

		_, err = sut.Get(ctx, "nope42")

		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("concurrent increments are not lost", func(t *testing.T) {
		const count = 20
		link := NewShortLink("par001", "https://example.com", createdAt)
		sut, tearDown := c.NewStore()
		t.Cleanup(tearDown)
		ctx := context.Background()
		require.NoError(t, sut.PutIfAbsent(ctx, link))

		var wg sync.WaitGroup
		for i := 0; i < count; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := sut.IncrementClicks(ctx, link.Code, 1)
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		got, err := sut.Get(ctx, link.Code)

		require.NoError(t, err)
		assert.Equal(t, int64(count), got.Clicks)
	})

	t.Run("only one of concurrent puts wins", func(t *testing.T) {
		const count = 10
		sut, tearDown := c.NewStore()
		t.Cleanup(tearDown)
		ctx := context.Background()

		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			created int
			taken   int
		)
		for i := 0; i < count; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				link := NewShortLink("race01", "https://example.com/"+strconv.Itoa(i), createdAt)
				err := sut.PutIfAbsent(ctx, link)

				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					created++
				case assert.ErrorIs(t, err, ErrAlreadyExists):
					taken++
				}
			}(i)
		}
		wg.Wait()

		assert.Equal(t, 1, created)
		assert.Equal(t, count-1, taken)
	})

	t.Run("store is available", func(t *testing.T) {
		sut, tearDown := c.NewStore()
		t.Cleanup(tearDown)

		got := sut.IsAvailable(context.Background())

		assert.True(t, got)
	})
}

func assertLink(t *testing.T, want, got ShortLink) {
	t.Helper()
	assert.Equal(t, want.Code, got.Code)
	assert.Equal(t, want.LongURL, got.LongURL)
	assert.Equal(t, want.Clicks, got.Clicks)
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt), "created at: want %v, got %v", want.CreatedAt, got.CreatedAt)
}
