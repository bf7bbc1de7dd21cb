package fetcher

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func newTestFetcher(retries int) *HTTPFetcher {
	return NewHTTPFetcher(HTTPOptions{
		UserAgent:  "test-agent",
		Timeout:    5 * time.Second,
		MaxRetries: retries,
		HostRate:   1000,
		MaxBackoff: time.Millisecond,
	})
}

func TestDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte("hello world"))
	}))
	defer srv.Close()

	body, err := newTestFetcher(3).Download(context.Background(), srv.URL+"/data")
	require.NoError(t, err)
	defer body.Close() //nolint:errcheck

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))
}

func TestDownloadToFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("file content here"))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "out.xlsx")
	n, err := newTestFetcher(3).DownloadToFile(context.Background(), srv.URL+"/file", path)
	require.NoError(t, err)
	assert.Equal(t, int64(17), n)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "file content here", string(data))
}

func TestDownload_RetriesTransientStatuses(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		switch attempts.Add(1) {
		case 1:
			w.WriteHeader(http.StatusServiceUnavailable)
		case 2:
			w.WriteHeader(http.StatusTooManyRequests)
		default:
			_, _ = w.Write([]byte("success"))
		}
	}))
	defer srv.Close()

	f := newTestFetcher(3)
	body, err := f.Download(context.Background(), srv.URL+"/retry")
	require.NoError(t, err)
	defer body.Close() //nolint:errcheck

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "success", string(data))
	assert.Equal(t, int32(3), attempts.Load())

	// 1000 → 500 after the 429, then +20% on success.
	assert.InDelta(t, 600.0, float64(f.limiterFor(srv.URL).Limit()), 0.1)
}

func TestDownload_RetryExhausted(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestFetcher(2).Download(context.Background(), srv.URL+"/fail")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all retries exhausted")
	assert.Equal(t, int32(2), attempts.Load())
}

func TestDownload_PermanentStatusNotRetried(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestFetcher(3).Download(context.Background(), srv.URL+"/missing.xlsx")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 404")
	assert.Equal(t, int32(1), attempts.Load())
}

func TestDownload_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("late"))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestFetcher(3).Download(ctx, srv.URL+"/data")
	require.Error(t, err)
}

func TestDownload_InvalidURL(t *testing.T) {
	_, err := newTestFetcher(1).Download(context.Background(), "://bad")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create request")
}

func TestNewHTTPFetcher_Defaults(t *testing.T) {
	f := NewHTTPFetcher(HTTPOptions{})
	assert.Equal(t, "dpgf-extract/1.0", f.opts.UserAgent)
	assert.Equal(t, 3, f.opts.MaxRetries)
	assert.Equal(t, 60*time.Second, f.opts.Timeout)
	assert.Equal(t, rate.Limit(5), f.opts.HostRate)

	transport, ok := f.client.Transport.(*http.Transport)
	require.True(t, ok)
	assert.Equal(t, 4, transport.MaxIdleConnsPerHost)
}

func TestLimiterFor_PerHost(t *testing.T) {
	f := newTestFetcher(1)
	a := f.limiterFor("https://marches.example.fr/dce/a.xlsx")
	b := f.limiterFor("https://marches.example.fr/dce/b.xlsx")
	c := f.limiterFor("https://autre.example.fr/x.xlsx")
	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
}

func TestAdaptiveLimiter(t *testing.T) {
	t.Run("success raises up to 2x", func(t *testing.T) {
		lim := NewAdaptiveLimiter(10, 10)
		lim.OnSuccess()
		assert.InDelta(t, 12.0, float64(lim.Limit()), 0.1)
		for range 20 {
			lim.OnSuccess()
		}
		assert.InDelta(t, 20.0, float64(lim.Limit()), 0.1)
	})

	t.Run("429 halves down to a quarter", func(t *testing.T) {
		lim := NewAdaptiveLimiter(10, 10)
		lim.OnRateLimit()
		assert.InDelta(t, 5.0, float64(lim.Limit()), 0.1)
		for range 10 {
			lim.OnRateLimit()
		}
		assert.InDelta(t, 2.5, float64(lim.Limit()), 0.1)
	})

	t.Run("wait honours context", func(t *testing.T) {
		lim := NewAdaptiveLimiter(0.001, 0)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.Error(t, lim.Wait(ctx))
	})
}
