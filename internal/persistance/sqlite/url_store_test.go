package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nestjam/yap-shortlink/internal/domain"
)

func TestStore(t *testing.T) {
	domain.StoreContract{
		NewStore: func() (domain.Store, func()) {
			t.Helper()
			path := filepath.Join(t.TempDir(), "links.db")

			store, err := Open(context.Background(), path, "short_links")
			require.NoError(t, err)

			return store, func() {
				_ = store.Close()
			}
		},
	}.Test(t)
}

func TestOpen(t *testing.T) {
	t.Run("links survive reopening", func(t *testing.T) {
		ctx := context.Background()
		path := filepath.Join(t.TempDir(), "links.db")
		createdAt := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)

		store, err := Open(ctx, path, "short_links")
		require.NoError(t, err)
		require.NoError(t, store.PutIfAbsent(ctx, domain.NewShortLink("abc123", "http://example.com", createdAt)))
		_, err = store.IncrementClicks(ctx, "abc123", 1)
		require.NoError(t, err)
		require.NoError(t, store.Close())

		sut, err := Open(ctx, path, "short_links")
		require.NoError(t, err)
		defer func() {
			_ = sut.Close()
		}()

		got, err := sut.Get(ctx, "abc123")
		require.NoError(t, err)
		assert.Equal(t, int64(1), got.Clicks)
		assert.True(t, createdAt.Equal(got.CreatedAt))
	})

	t.Run("tables are separated by name", func(t *testing.T) {
		ctx := context.Background()
		path := filepath.Join(t.TempDir(), "links.db")

		first, err := Open(ctx, path, "first")
		require.NoError(t, err)
		defer func() {
			_ = first.Close()
		}()
		require.NoError(t, first.PutIfAbsent(ctx, domain.NewShortLink("abc123", "http://example.com", time.Now())))

		second, err := Open(ctx, path, "second")
		require.NoError(t, err)
		defer func() {
			_ = second.Close()
		}()

		_, err = second.Get(ctx, "abc123")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, `"links"`, quoteIdent("links"))
	assert.Equal(t, `"a""b"`, quoteIdent(`a"b`))
}
