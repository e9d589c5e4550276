package infrastructure

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
	"go.uber.org/zap"

	"github.com/yourusername/twitch-vod-go/internal/domain"
)

func testClient(t *testing.T, handler http.Handler, maxRetries int) (*ResilientClient, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewResilientClient(srv.Client(), ResilientClientConfig{
		MaxRetries: maxRetries,
		BaseDelay:  time.Millisecond,
		Timeout:    time.Second,
		Classify:   domain.ClassifyStatus,
	}, zap.NewNop())
	return c, srv
}

func TestFetch_Success(t *testing.T) {
	c, srv := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("segment data"))
	}), 3)

	body, err := c.Fetch(context.Background(), srv.URL+"/0.ts")
	require.NoError(t, err)
	assert.Equal(t, []byte("segment data"), body)
}

func TestFetch_RetriesTransientThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	c, srv := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	}), 3)

	body, err := c.Fetch(context.Background(), srv.URL+"/0.ts")
	require.NoError(t, err)
	assert.Equal(t, []byte("ok"), body)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetch_TransientExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	c, srv := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}), 2)

	_, err := c.Fetch(context.Background(), srv.URL+"/0.ts")
	require.Error(t, err)

	var ferr *domain.SegmentFetchError
	require.True(t, errors.As(err, &ferr))
	assert.Equal(t, domain.FailureTransient, ferr.Class)
	assert.Equal(t, http.StatusInternalServerError, ferr.StatusCode)
	assert.Equal(t, 3, ferr.Attempts)
	assert.Equal(t, int32(3), calls.Load(), "initial attempt plus two retries")
}

func TestFetch_ForbiddenIsBlockedAndNotRetried(t *testing.T) {
	var calls atomic.Int32
	c, srv := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}), 3)

	_, err := c.Fetch(context.Background(), srv.URL+"/0.ts")
	require.Error(t, err)

	var ferr *domain.SegmentFetchError
	require.True(t, errors.As(err, &ferr))
	assert.Equal(t, domain.FailureBlocked, ferr.Class)
	assert.Equal(t, int32(1), calls.Load(), "403 must not be retried")
}

func TestFetch_CancelledContext(t *testing.T) {
	c, srv := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}), 3)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Fetch(ctx, srv.URL+"/0.ts")
	require.Error(t, err)
	assert.True(t, IsCancellation(err))
}

func TestFetch_RotatesUserAgents(t *testing.T) {
	seen := make(map[string]bool)
	c, srv := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen[r.UserAgent()] = true
		w.WriteHeader(http.StatusBadGateway)
	}), 3)

	c.Fetch(context.Background(), srv.URL+"/0.ts")
	assert.GreaterOrEqual(t, len(seen), 2, "attempts should rotate the User-Agent pool")
}

func TestIsCancellation(t *testing.T) {
	assert.True(t, IsCancellation(&domain.SegmentFetchError{Class: domain.FailureCancelled}))
	assert.True(t, IsCancellation(context.Canceled))
	assert.False(t, IsCancellation(&domain.SegmentFetchError{Class: domain.FailureTransient}))
	assert.False(t, IsCancellation(errors.New("boom")))
}
