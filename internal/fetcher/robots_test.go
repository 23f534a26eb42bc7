package fetcher_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/docscraper/internal/fetcher"
)

func newRobotsServer(t *testing.T, status int, body string, hits *atomic.Int32) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/robots.txt" {
			w.WriteHeader(http.StatusOK)
			return
		}
		if hits != nil {
			hits.Add(1)
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func newChecker() *fetcher.RobotsChecker {
	return fetcher.NewRobotsChecker(&http.Client{}, testUserAgent, time.Second, time.Hour)
}

func TestRobots_AllowedAndDisallowed(t *testing.T) {
	t.Parallel()

	server := newRobotsServer(t, http.StatusOK, "User-agent: *\nDisallow: /private/\n", nil)
	checker := newChecker()

	allowed, err := checker.IsAllowed(context.Background(), server.URL+"/public/book.pdf")
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = checker.IsAllowed(context.Background(), server.URL+"/private/secret")
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestRobots_MissingAllowsAll(t *testing.T) {
	t.Parallel()

	server := newRobotsServer(t, http.StatusNotFound, "", nil)

	allowed, err := newChecker().IsAllowed(context.Background(), server.URL+"/anything")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestRobots_CachedPerHost(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	server := newRobotsServer(t, http.StatusOK, "User-agent: *\nAllow: /\n", &hits)
	checker := newChecker()

	for range 3 {
		_, err := checker.IsAllowed(context.Background(), server.URL+"/page")
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), hits.Load())
}

func TestRobots_EmptyHost(t *testing.T) {
	t.Parallel()

	_, err := newChecker().IsAllowed(context.Background(), "/relative")
	require.Error(t, err)
}

func TestHostLimiter_NilNeverWaits(t *testing.T) {
	t.Parallel()

	var l *fetcher.HostLimiter
	require.NoError(t, l.Wait(context.Background(), "https://x.test/"))
	assert.Nil(t, fetcher.NewHostLimiter(0, 1))
}

func TestHostLimiter_CancelledWhileWaiting(t *testing.T) {
	t.Parallel()

	l := fetcher.NewHostLimiter(0.001, 1)
	require.NoError(t, l.Wait(context.Background(), "https://x.test/a"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.Error(t, l.Wait(ctx, "https://x.test/b"))

	require.NoError(t, l.Wait(context.Background(), "https://other.test/"))
}
