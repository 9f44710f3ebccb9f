package httpx

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoWithRetryGivesUpAfterMaxAttempts(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(time.Second, map[string]string{"X-Test": "1"})
	c.Backoff = time.Millisecond
	ctx := context.Background()

	_, err := c.DoWithRetry(ctx, func() (*http.Request, error) {
		return c.NewRequest(ctx, http.MethodGet, srv.URL, nil)
	})

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusTooManyRequests, se.Code)
	assert.Equal(t, int32(4), hits.Load())
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(&StatusError{Code: 503}))
	assert.False(t, Retryable(&StatusError{Code: 404}))
	assert.False(t, Retryable(context.Canceled))
	assert.False(t, Retryable(errors.New("decode")))
}

func TestNewRequestSetsHeaders(t *testing.T) {
	c := NewClient(time.Second, map[string]string{"Authorization": "k"})
	req, err := c.NewRequest(context.Background(), http.MethodPost, "http://example.invalid", http.NoBody)
	require.NoError(t, err)
	assert.Equal(t, "k", req.Header.Get("Authorization"))
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
	assert.Equal(t, "application/json", req.Header.Get("Accept"))
}
