package server

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nestjam/yap-shortlink/internal/domain"
	"github.com/nestjam/yap-shortlink/internal/domain/service"
	"github.com/nestjam/yap-shortlink/internal/persistance/cached"
	"github.com/nestjam/yap-shortlink/internal/persistance/inmemory"
)

const (
	testURL               = "https://practicum.yandex.ru/"
	baseURL               = "https://yourdomain.com"
	acceptEncodingHeader  = "Accept-Encoding"
	contentEncodingHeader = "Content-Encoding"
	gzipEncoding          = "gzip"
	shortenPath           = "/shorten"
)

func TestServer(t *testing.T) {
	t.Run("with in memory store", func(t *testing.T) {
		ServerTest{
			CreateDependencies: func() (domain.Store, Cleanup) {
				return inmemory.New(), func() {
				}
			},
		}.Test(t)
	})

	t.Run("with cached store", func(t *testing.T) {
		ServerTest{
			CreateDependencies: func() (domain.Store, Cleanup) {
				store, err := cached.New(inmemory.New(), 128)
				require.NoError(t, err)
				return store, func() {
				}
			},
		}.Test(t)
	})
}

type Cleanup func()

type ServerTest struct {
	CreateDependencies func() (domain.Store, Cleanup)
}

func (u ServerTest) Test(t *testing.T) {
	t.Run("shortening url", func(t *testing.T) {
		t.Run("shorten url", func(t *testing.T) {
			store, cleanup := u.CreateDependencies()
			t.Cleanup(cleanup)
			sut := New(store, baseURL)
			request := newShortenRequest(t, testURL)
			response := httptest.NewRecorder()

			sut.ServeHTTP(response, request)

			assert.Equal(t, http.StatusOK, response.Code)
			assertContentType(t, applicationJSON, response)
			got := getShortenResponse(t, response.Body)
			assert.Equal(t, testURL, got.LongURL)
			assert.Regexp(t, `^https://yourdomain\.com/[a-zA-Z0-9]{6}$`, got.ShortURL)
			assertStoredLink(t, store, got.ShortURL, testURL)
		})

		t.Run("invalid url", func(t *testing.T) {
			urls := []string{"", "not-a-url", "ftp://example.com"}
			for _, url := range urls {
				store, cleanup := u.CreateDependencies()
				t.Cleanup(cleanup)
				delegate := domain.NewStoreDelegate(store)
				delegate.PutIfAbsentFunc = func(ctx context.Context, link domain.ShortLink) error {
					t.Error("store must not be called")
					return nil
				}
				sut := New(delegate, baseURL)
				request := newShortenRequest(t, url)
				response := httptest.NewRecorder()

				sut.ServeHTTP(response, request)

				assert.Equal(t, http.StatusBadRequest, response.Code)
				assertError(t, validURLRequiredMessage, response)
			}
		})

		t.Run("invalid json", func(t *testing.T) {
			store, cleanup := u.CreateDependencies()
			t.Cleanup(cleanup)
			sut := New(store, baseURL)
			request := httptest.NewRequest(http.MethodPost, shortenPath, strings.NewReader("{url:"))
			request.Header.Set(contentTypeHeader, applicationJSON)
			response := httptest.NewRecorder()

			sut.ServeHTTP(response, request)

			assert.Equal(t, http.StatusBadRequest, response.Code)
			assertError(t, invalidBodyMessage, response)
		})

		t.Run("content type is not checked", func(t *testing.T) {
			contentTypes := []string{"", "text/plain", "application/x-www-form-urlencoded"}
			for _, contentType := range contentTypes {
				store, cleanup := u.CreateDependencies()
				t.Cleanup(cleanup)
				sut := New(store, baseURL)
				request := newShortenRequest(t, testURL)
				request.Header.Set(contentTypeHeader, contentType)
				response := httptest.NewRecorder()

				sut.ServeHTTP(response, request)

				assert.Equal(t, http.StatusOK, response.Code, contentType)
				got := getShortenResponse(t, response.Body)
				assert.Equal(t, testURL, got.LongURL)
			}
		})

		t.Run("form encoded body is rejected", func(t *testing.T) {
			store, cleanup := u.CreateDependencies()
			t.Cleanup(cleanup)
			sut := New(store, baseURL)
			request := httptest.NewRequest(http.MethodPost, shortenPath, strings.NewReader("url=https://example.com/page"))
			request.Header.Set(contentTypeHeader, "application/x-www-form-urlencoded")
			response := httptest.NewRecorder()

			sut.ServeHTTP(response, request)

			assert.Equal(t, http.StatusBadRequest, response.Code)
			assertError(t, invalidBodyMessage, response)
		})

		t.Run("shorten encoded url", func(t *testing.T) {
			store, cleanup := u.CreateDependencies()
			t.Cleanup(cleanup)
			sut := New(store, baseURL)
			request := newEncodedShortenRequest(t, testURL)
			request.Header.Set(acceptEncodingHeader, gzipEncoding)
			response := httptest.NewRecorder()

			sut.ServeHTTP(response, request)

			assert.Equal(t, http.StatusOK, response.Code)
			assert.Equal(t, gzipEncoding, response.Header().Get(contentEncodingHeader))
			got := getShortenResponse(t, strings.NewReader(getDecoded(t, response.Body)))
			assert.Equal(t, testURL, got.LongURL)
			assertStoredLink(t, store, got.ShortURL, testURL)
		})

		t.Run("failed to generate unique code", func(t *testing.T) {
			store, cleanup := u.CreateDependencies()
			t.Cleanup(cleanup)
			delegate := domain.NewStoreDelegate(store)
			delegate.GetFunc = func(ctx context.Context, code string) (domain.ShortLink, error) {
				return domain.NewShortLink(code, testURL, time.Now()), nil
			}
			sut := New(delegate, baseURL)
			request := newShortenRequest(t, testURL)
			response := httptest.NewRecorder()

			sut.ServeHTTP(response, request)

			assert.Equal(t, http.StatusInternalServerError, response.Code)
			assertError(t, failedToGenerateMessage, response)
		})

		t.Run("store is unavailable", func(t *testing.T) {
			store, cleanup := u.CreateDependencies()
			t.Cleanup(cleanup)
			delegate := domain.NewStoreDelegate(store)
			delegate.PutIfAbsentFunc = func(ctx context.Context, link domain.ShortLink) error {
				return errors.New("connection refused")
			}
			sut := New(delegate, baseURL)
			request := newShortenRequest(t, testURL)
			response := httptest.NewRecorder()

			sut.ServeHTTP(response, request)

			assert.Equal(t, http.StatusInternalServerError, response.Code)
			assert.NotContains(t, response.Body.String(), "connection refused")
		})
	})

	t.Run("redirecting", func(t *testing.T) {
		t.Run("redirect to long url", func(t *testing.T) {
			store, cleanup := u.CreateDependencies()
			t.Cleanup(cleanup)
			putLink(t, store, "EwHXdJ")
			sut := New(store, baseURL)
			request := newGetRequest("/EwHXdJ")
			response := httptest.NewRecorder()

			sut.ServeHTTP(response, request)

			assert.Equal(t, http.StatusMovedPermanently, response.Code)
			assertLocation(t, testURL, response)
			assert.Zero(t, response.Body.Len())
			assertClicks(t, store, "EwHXdJ", 1)
		})

		t.Run("redirect with gzip accepted", func(t *testing.T) {
			store, cleanup := u.CreateDependencies()
			t.Cleanup(cleanup)
			putLink(t, store, "EwHXdJ")
			sut := New(store, baseURL)
			request := newGetRequest("/EwHXdJ")
			request.Header.Set(acceptEncodingHeader, gzipEncoding)
			response := httptest.NewRecorder()

			sut.ServeHTTP(response, request)

			assert.Equal(t, http.StatusMovedPermanently, response.Code)
			assert.Zero(t, response.Body.Len())
		})

		t.Run("code is empty", func(t *testing.T) {
			store, cleanup := u.CreateDependencies()
			t.Cleanup(cleanup)
			sut := New(store, baseURL)
			request := newGetRequest("/")
			response := httptest.NewRecorder()

			sut.ServeHTTP(response, request)

			assert.Equal(t, http.StatusBadRequest, response.Code)
			assertLocation(t, "", response)
			assertError(t, codeRequiredMessage, response)
		})

		t.Run("code not found", func(t *testing.T) {
			store, cleanup := u.CreateDependencies()
			t.Cleanup(cleanup)
			sut := New(store, baseURL)
			request := newGetRequest("/EwHXdJ")
			response := httptest.NewRecorder()

			sut.ServeHTTP(response, request)

			assert.Equal(t, http.StatusNotFound, response.Code)
			assertLocation(t, "", response)
			assertError(t, notFoundMessage, response)
		})

		t.Run("store is unavailable", func(t *testing.T) {
			store, cleanup := u.CreateDependencies()
			t.Cleanup(cleanup)
			delegate := domain.NewStoreDelegate(store)
			delegate.GetFunc = func(ctx context.Context, code string) (domain.ShortLink, error) {
				return domain.ShortLink{}, errors.New("connection refused")
			}
			sut := New(delegate, baseURL)
			request := newGetRequest("/EwHXdJ")
			response := httptest.NewRecorder()

			sut.ServeHTTP(response, request)

			assert.Equal(t, http.StatusInternalServerError, response.Code)
			assertError(t, internalErrorMessage, response)
		})

		t.Run("failed increment does not affect redirect", func(t *testing.T) {
			store, cleanup := u.CreateDependencies()
			t.Cleanup(cleanup)
			putLink(t, store, "EwHXdJ")
			delegate := domain.NewStoreDelegate(store)
			delegate.IncrementClicksFunc = func(ctx context.Context, code string, delta int64) (int64, error) {
				return 0, errors.New("throttled")
			}
			sut := New(delegate, baseURL)
			request := newGetRequest("/EwHXdJ")
			response := httptest.NewRecorder()

			sut.ServeHTTP(response, request)

			assert.Equal(t, http.StatusMovedPermanently, response.Code)
			assertLocation(t, testURL, response)
		})

		t.Run("record clicks asynchronously", func(t *testing.T) {
			const count = 3
			store, cleanup := u.CreateDependencies()
			t.Cleanup(cleanup)
			putLink(t, store, "EwHXdJ")
			doneCh := make(chan struct{})
			recorder := service.NewClickRecorder(context.Background(), doneCh, store)
			sut := New(store, baseURL, WithClickRecorder(recorder))

			for i := 0; i < count; i++ {
				response := httptest.NewRecorder()
				sut.ServeHTTP(response, newGetRequest("/EwHXdJ"))
				assert.Equal(t, http.StatusMovedPermanently, response.Code)
			}

			close(doneCh)
			recorder.Wait()
			assertClicks(t, store, "EwHXdJ", count)
		})
	})

	t.Run("stats", func(t *testing.T) {
		t.Run("get stats", func(t *testing.T) {
			store, cleanup := u.CreateDependencies()
			t.Cleanup(cleanup)
			createdAt := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
			require.NoError(t, store.PutIfAbsent(context.Background(), domain.NewShortLink("EwHXdJ", testURL, createdAt)))
			_, err := store.IncrementClicks(context.Background(), "EwHXdJ", 2)
			require.NoError(t, err)
			sut := New(store, baseURL)
			request := newGetRequest("/stats/EwHXdJ")
			response := httptest.NewRecorder()

			sut.ServeHTTP(response, request)

			assert.Equal(t, http.StatusOK, response.Code)
			var got StatsResponse
			require.NoError(t, json.NewDecoder(response.Body).Decode(&got))
			assert.Equal(t, "EwHXdJ", got.Code)
			assert.Equal(t, testURL, got.LongURL)
			assert.Equal(t, int64(2), got.Clicks)
			assert.True(t, createdAt.Equal(got.CreatedAt))
			assertClicks(t, store, "EwHXdJ", 2)
		})

		t.Run("code not found", func(t *testing.T) {
			store, cleanup := u.CreateDependencies()
			t.Cleanup(cleanup)
			sut := New(store, baseURL)
			request := newGetRequest("/stats/EwHXdJ")
			response := httptest.NewRecorder()

			sut.ServeHTTP(response, request)

			assert.Equal(t, http.StatusNotFound, response.Code)
			assertError(t, notFoundMessage, response)
		})
	})

	t.Run("shorten then redirect", func(t *testing.T) {
		store, cleanup := u.CreateDependencies()
		t.Cleanup(cleanup)
		sut := New(store, baseURL)

		response := httptest.NewRecorder()
		sut.ServeHTTP(response, newShortenRequest(t, testURL))
		require.Equal(t, http.StatusOK, response.Code)
		shortURL := getShortenResponse(t, response.Body).ShortURL
		code := strings.TrimPrefix(shortURL, baseURL+"/")

		response = httptest.NewRecorder()
		sut.ServeHTTP(response, newGetRequest("/"+code))

		assert.Equal(t, http.StatusMovedPermanently, response.Code)
		assertLocation(t, testURL, response)
		assertClicks(t, store, code, 1)
	})

	t.Run("ping", func(t *testing.T) {
		t.Run("store is available", func(t *testing.T) {
			store, cleanup := u.CreateDependencies()
			t.Cleanup(cleanup)
			sut := New(store, baseURL)
			response := httptest.NewRecorder()

			sut.ServeHTTP(response, newGetRequest("/ping"))

			assert.Equal(t, http.StatusOK, response.Code)
		})

		t.Run("store is not available", func(t *testing.T) {
			store, cleanup := u.CreateDependencies()
			t.Cleanup(cleanup)
			delegate := domain.NewStoreDelegate(store)
			delegate.IsAvailableFunc = func(ctx context.Context) bool {
				return false
			}
			sut := New(delegate, baseURL)
			response := httptest.NewRecorder()

			sut.ServeHTTP(response, newGetRequest("/ping"))

			assert.Equal(t, http.StatusInternalServerError, response.Code)
		})
	})
}

func newGetRequest(path string) *http.Request {
	return httptest.NewRequest(http.MethodGet, path, nil)
}

func newShortenRequest(t testing.TB, url string) *http.Request {
	t.Helper()
	body, err := json.Marshal(ShortenRequest{URL: url})
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodPost, shortenPath, bytes.NewReader(body))
	r.Header.Set(contentTypeHeader, applicationJSON)
	return r
}

func newEncodedShortenRequest(t *testing.T, url string) *http.Request {
	t.Helper()
	body, err := json.Marshal(ShortenRequest{URL: url})
	require.NoError(t, err)

	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	_, err = gw.Write(body)
	require.NoError(t, err, "failed to write encoded: %v", err)
	require.NoError(t, gw.Close())

	r := httptest.NewRequest(http.MethodPost, shortenPath, &buf)
	r.Header.Set(contentTypeHeader, applicationJSON)
	r.Header.Set(contentEncodingHeader, gzipEncoding)
	return r
}

func putLink(t *testing.T, store domain.Store, code string) {
	t.Helper()
	err := store.PutIfAbsent(context.Background(), domain.NewShortLink(code, testURL, time.Now()))
	require.NoError(t, err)
}

func getShortenResponse(t *testing.T, r io.Reader) ShortenResponse {
	t.Helper()
	var resp ShortenResponse
	err := json.NewDecoder(r).Decode(&resp)
	require.NoError(t, err, "unable to parse response from server: %v", err)
	return resp
}

func getDecoded(t *testing.T, r io.Reader) string {
	t.Helper()
	gz, err := gzip.NewReader(r)
	require.NoError(t, err, "failed to decode: %v", err)
	defer func() {
		_ = gz.Close()
	}()

	b, err := io.ReadAll(gz)
	require.NoError(t, err, "failed to read decoded: %v", err)
	return string(b)
}

func assertStoredLink(t *testing.T, store domain.Store, shortURL, want string) {
	t.Helper()
	code := strings.TrimPrefix(shortURL, baseURL+"/")
	got, err := store.Get(context.Background(), code)
	require.NoError(t, err)
	assert.Equal(t, want, got.LongURL)
	assert.Zero(t, got.Clicks)
}

func assertClicks(t *testing.T, store domain.Store, code string, want int64) {
	t.Helper()
	got, err := store.Get(context.Background(), code)
	require.NoError(t, err)
	assert.Equal(t, want, got.Clicks)
}

func assertLocation(t *testing.T, want string, r *httptest.ResponseRecorder) {
	t.Helper()
	assert.Equal(t, want, r.Header().Get(locationHeader))
}

func assertContentType(t *testing.T, want string, r *httptest.ResponseRecorder) {
	t.Helper()
	assert.Equal(t, want, r.Header().Get(contentTypeHeader))
}

func assertError(t *testing.T, want string, r *httptest.ResponseRecorder) {
	t.Helper()
	var resp ErrorResponse
	err := json.NewDecoder(r.Body).Decode(&resp)
	require.NoError(t, err, "unable to parse error response: %v", err)
	assert.Equal(t, want, resp.Error)
}
