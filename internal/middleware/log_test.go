package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestResponseLogger(t *testing.T) {
	t.Run("log response", func(t *testing.T) {
		core, logs := observer.New(zap.InfoLevel)
		var requestID string
		sut := ResponseLogger(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID = GetRequestID(r.Context())
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte("Not found"))
		}))
		request := httptest.NewRequest(http.MethodGet, "/abc123", nil)
		response := httptest.NewRecorder()

		sut.ServeHTTP(response, request)

		require.Equal(t, 1, logs.Len())
		fields := logs.All()[0].ContextMap()
		assert.Equal(t, int64(http.StatusNotFound), fields["status"])
		assert.Equal(t, int64(len("Not found")), fields["size"])
		assert.Equal(t, http.MethodGet, fields["method"])
		assert.Equal(t, "/abc123", fields["uri"])
		assert.NotEmpty(t, requestID)
		assert.Equal(t, requestID, fields["request_id"])
		assert.Equal(t, requestID, response.Header().Get(RequestIDHeader))
	})

	t.Run("keep request id from client", func(t *testing.T) {
		core, logs := observer.New(zap.InfoLevel)
		sut := ResponseLogger(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		}))
		request := httptest.NewRequest(http.MethodGet, "/ping", nil)
		request.Header.Set(RequestIDHeader, "req-42")
		response := httptest.NewRecorder()

		sut.ServeHTTP(response, request)

		require.Equal(t, 1, logs.Len())
		fields := logs.All()[0].ContextMap()
		assert.Equal(t, "req-42", fields["request_id"])
		assert.Equal(t, int64(http.StatusOK), fields["status"])
		assert.Equal(t, "req-42", response.Header().Get(RequestIDHeader))
	})
}
