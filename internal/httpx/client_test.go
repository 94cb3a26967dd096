package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestClient_RetriesOnRetryableStatus(t *testing.T) {
	var attempts atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := attempts.Add(1)
		if n < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	client := NewClient(RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, AttemptDeadline: time.Second})

	resp, err := client.Do(context.Background(), &Request{Method: http.MethodGet, URL: srv.URL, Headers: make(http.Header)})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, int32(3), attempts.Load())
}

func TestClient_DoesNotRetryOnNonRetryableStatus(t *testing.T) {
	var attempts atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"bad"}`))
	}))
	defer srv.Close()

	client := NewClient(RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, AttemptDeadline: time.Second})

	_, err := client.Do(context.Background(), &Request{Method: http.MethodGet, URL: srv.URL, Headers: make(http.Header)})
	require.Error(t, err)

	var httpErr *Error
	require.ErrorAs(t, err, &httpErr)
	require.Equal(t, http.StatusBadRequest, httpErr.StatusCode)
	require.Equal(t, int32(1), attempts.Load())
}

func TestClient_GivesUpAfterMaxAttempts(t *testing.T) {
	var attempts atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewClient(RetryPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond, AttemptDeadline: time.Second})

	_, err := client.Do(context.Background(), &Request{Method: http.MethodGet, URL: srv.URL, Headers: make(http.Header)})
	require.Error(t, err)
	require.Equal(t, int32(2), attempts.Load())
}

func TestRequest_Redacted_MasksSensitiveHeaders(t *testing.T) {
	req := &Request{
		Headers: http.Header{
			"Authorization": []string{"Bearer secret"},
			"X-Api-Key":     []string{"abc123"},
			"X-Goog-Api-Key": []string{"xyz"},
			"Content-Type":  []string{"application/json"},
		},
	}

	redacted := req.Redacted()

	require.Equal(t, "[redacted]", redacted.Headers.Get("Authorization"))
	require.Equal(t, "[redacted]", redacted.Headers.Get("X-Api-Key"))
	require.Equal(t, "[redacted]", redacted.Headers.Get("X-Goog-Api-Key"))
	require.Equal(t, "application/json", redacted.Headers.Get("Content-Type"))

	require.Equal(t, "Bearer secret", req.Headers.Get("Authorization"))
}

func TestFinalizeAuthHeaders_Bearer(t *testing.T) {
	req := &Request{Auth: &AuthConfig{Type: AuthTypeBearer, APIKey: "tok"}}
	FinalizeAuthHeaders(req)
	require.Equal(t, "Bearer tok", req.Headers.Get("Authorization"))
}

func TestFinalizeAuthHeaders_APIKeyHeader(t *testing.T) {
	req := &Request{Auth: &AuthConfig{Type: AuthTypeAPIKeyHeader, HeaderKey: "x-goog-api-key", APIKey: "tok"}}
	FinalizeAuthHeaders(req)
	require.Equal(t, "tok", req.Headers.Get("x-goog-api-key"))
}
