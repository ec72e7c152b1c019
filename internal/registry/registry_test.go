package registry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sec-scan/depscan/internal/cache"
)

const npmPackument = `{
	"name": "left-pad",
	"dist-tags": {"latest": "1.3.0"},
	"time": {"created": "2015-01-01T00:00:00.000Z", "modified": "2016-06-01T00:00:00.000Z", "1.3.0": "2016-06-01T00:00:00.000Z"},
	"author": {"name": "azer"},
	"maintainers": [{"name": "azer"}, {"name": "cool"}],
	"repository": {"url": "git+https://github.com/left-pad/left-pad.git"},
	"versions": {"1.3.0": {"dependencies": {}}}
}`

func newNPMTestServer(t *testing.T, handler http.HandlerFunc) (*NPM, func()) {
	t.Helper()
	srv := httptest.NewServer(handler)
	n := NewNPM(cache.NewMemory(100, 0), 1000, time.Minute)
	n.baseURL = srv.URL
	n.http.limiters = newLimiterSet(1000)
	return n, srv.Close
}

func TestNPM_FetchNPM_Success(t *testing.T) {
	n, closeFn := newNPMTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/left-pad" {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(npmPackument))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"downloads": 42}`))
	})
	defer closeFn()

	md, err := n.FetchNPM(context.Background(), "left-pad", "")
	require.NoError(t, err)
	assert.Equal(t, "azer", md.Author)
	assert.Equal(t, "git+https://github.com/left-pad/left-pad.git", md.RepositoryURL)
	assert.ElementsMatch(t, []string{"azer", "cool"}, md.Maintainers)
	assert.False(t, md.PublishedAt.IsZero())
}

func TestNPM_FetchNPM_NotFound(t *testing.T) {
	n, closeFn := newNPMTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	defer closeFn()

	_, err := n.FetchNPM(context.Background(), "does-not-exist", "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNPM_FetchNPM_UnknownVersionIsNotFound(t *testing.T) {
	n, closeFn := newNPMTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(npmPackument))
	})
	defer closeFn()

	_, err := n.FetchNPM(context.Background(), "left-pad", "9.9.9")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNPM_FetchNPM_RetriesOn5xxThenSucceeds(t *testing.T) {
	attempts := 0
	n, closeFn := newNPMTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/left-pad" {
			_, _ = w.Write([]byte(`{"downloads": 0}`))
			return
		}
		attempts++
		if attempts < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(npmPackument))
	})
	defer closeFn()
	n.http.baseDelay = time.Millisecond

	md, err := n.FetchNPM(context.Background(), "left-pad", "")
	require.NoError(t, err)
	assert.Equal(t, "azer", md.Author)
	assert.Equal(t, 2, attempts)
}

func TestNPM_FetchNPM_GivesUpAfterMaxRetries(t *testing.T) {
	attempts := 0
	n, closeFn := newNPMTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/left-pad" {
			return
		}
		attempts++
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	defer closeFn()
	n.http.baseDelay = time.Millisecond

	_, err := n.FetchNPM(context.Background(), "left-pad", "")
	require.Error(t, err)
	assert.Equal(t, maxRetries+1, attempts)
}

func TestNPM_FetchNPM_CachesResponse(t *testing.T) {
	calls := 0
	n, closeFn := newNPMTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/left-pad" {
			calls++
		}
		if r.URL.Path == "/left-pad" {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(npmPackument))
			return
		}
		_, _ = w.Write([]byte(`{"downloads": 0}`))
	})
	defer closeFn()

	_, err := n.FetchNPM(context.Background(), "left-pad", "")
	require.NoError(t, err)
	_, err = n.FetchNPM(context.Background(), "left-pad", "")
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

const pypiDoc = `{
	"info": {
		"name": "requests",
		"author": "Kenneth Reitz",
		"project_urls": {"Source": "https://github.com/psf/requests"},
		"requires_dist": ["charset-normalizer (<4,>=2)", "idna (<4,>=2.5)", "PySocks (!=1.5.7,<2.0,>=1.5.6) ; extra == \"socks\""]
	},
	"releases": {
		"2.0.0": [{"upload_time_iso_8601": "2013-01-01T00:00:00Z"}],
		"2.31.0": [{"upload_time_iso_8601": "2023-05-22T00:00:00Z"}]
	},
	"urls": [{"upload_time_iso_8601": "2023-05-22T00:00:00Z"}]
}`

func newPyPITestServer(t *testing.T, handler http.HandlerFunc) (*PyPI, func()) {
	t.Helper()
	srv := httptest.NewServer(handler)
	p := NewPyPI(cache.NewMemory(100, 0), 1000, time.Minute)
	p.baseURL = srv.URL
	return p, srv.Close
}

func TestPyPI_FetchPyPI_Success(t *testing.T) {
	p, closeFn := newPyPITestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(pypiDoc))
	})
	defer closeFn()

	md, err := p.FetchPyPI(context.Background(), "requests", "")
	require.NoError(t, err)
	assert.Equal(t, "Kenneth Reitz", md.Author)
	assert.Equal(t, "https://github.com/psf/requests", md.RepositoryURL)
	assert.Equal(t, "(<4,>=2)", md.Dependencies["charset-normalizer"])
	_, hasSocks := md.Dependencies["PySocks"]
	assert.False(t, hasSocks, "extra-gated dependency should be excluded")
	assert.Equal(t, 2013, md.PublishedAt.Year())
	assert.Equal(t, 2023, md.LastUpdatedAt.Year())
}

func TestPyPI_FetchPyPI_NotFound(t *testing.T) {
	p, closeFn := newPyPITestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	defer closeFn()

	_, err := p.FetchPyPI(context.Background(), "does-not-exist", "")
	assert.ErrorIs(t, err, ErrNotFound)
}
