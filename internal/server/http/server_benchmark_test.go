package server

import (
	"context"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nestjam/yap-shortlink/internal/domain"
	"github.com/nestjam/yap-shortlink/internal/persistance/inmemory"
)

func BenchmarkServer(b *testing.B) {
	b.Run("with in memory store", func(b *testing.B) {
		ServerTest{
			CreateDependencies: func() (domain.Store, Cleanup) {
				return inmemory.New(), func() {
				}
			},
		}.Benchmark(b)
	})
}

func (u ServerTest) Benchmark(b *testing.B) {
	b.Run("redirect to long url", func(b *testing.B) {
		const code = "EwHXdJ"
		store, cleanup := u.CreateDependencies()
		b.Cleanup(cleanup)
		err := store.PutIfAbsent(context.Background(), domain.NewShortLink(code, testURL, time.Now()))
		require.NoError(b, err)
		sut := New(store, baseURL)

		b.ResetTimer()

		for i := 0; i < b.N; i++ {
			b.StopTimer()
			request := newGetRequest("/" + code)
			response := httptest.NewRecorder()
			b.StartTimer()

			sut.ServeHTTP(response, request)
		}
	})

	b.Run("shorten url", func(b *testing.B) {
		store, cleanup := u.CreateDependencies()
		b.Cleanup(cleanup)
		sut := New(store, baseURL)

		b.ResetTimer()

		for i := 0; i < b.N; i++ {
			b.StopTimer()
			request := newShortenRequest(b, testURL+strconv.Itoa(i))
			response := httptest.NewRecorder()
			b.StartTimer()

			sut.ServeHTTP(response, request)
		}
	})
}
