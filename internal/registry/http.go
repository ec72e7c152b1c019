package registry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/sec-scan/depscan/internal/cache"
)

// retryBaseDelay, retryFactor and maxRetries implement the bounded
// exponential backoff from spec.md §4.2: base 1s, factor 2, max 2 retries.
const (
	retryBaseDelay = time.Second
	retryFactor    = 2
	maxRetries     = 2
)

// httpStatusError wraps a non-2xx, non-404 response so the retry loop can
// distinguish retryable (5xx) from terminal (4xx other than 404) failures.
type httpStatusError struct {
	statusCode int
	url        string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("registry: %s returned %d", e.url, e.statusCode)
}

func (e *httpStatusError) retryable() bool {
	return e.statusCode >= 500
}

// limiterSet hands out one per-host token-bucket limiter, grounded on the
// teacher's quay-claircore rhcc mapper.go rate.Limiter usage, generalized
// from a single fixed host to an arbitrary set of registry hosts.
type limiterSet struct {
	mu           sync.Mutex
	perSecond    float64
	byHost       map[string]*rate.Limiter
}

func newLimiterSet(requestsPerSecond float64) *limiterSet {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 10
	}
	return &limiterSet{perSecond: requestsPerSecond, byHost: make(map[string]*rate.Limiter)}
}

func (l *limiterSet) wait(ctx context.Context, host string) error {
	l.mu.Lock()
	lim, ok := l.byHost[host]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(l.perSecond), 1)
		l.byHost[host] = lim
	}
	l.mu.Unlock()
	return lim.Wait(ctx)
}

// httpClient performs a cached, rate-limited, retried GET and returns the
// response body bytes. A 404 yields ErrNotFound without consuming a retry.
type httpClient struct {
	client    *http.Client
	limiters  *limiterSet
	store     cache.Store
	cacheTTL  time.Duration
	baseDelay time.Duration // overridable by tests; zero means retryBaseDelay
}

func newHTTPClient(store cache.Store, requestsPerSecond float64, cacheTTL time.Duration) *httpClient {
	return &httpClient{
		client:    &http.Client{Timeout: 30 * time.Second},
		limiters:  newLimiterSet(requestsPerSecond),
		store:     store,
		cacheTTL:  cacheTTL,
		baseDelay: retryBaseDelay,
	}
}

func (h *httpClient) getJSON(ctx context.Context, rawURL, cacheKey string, accept string) ([]byte, error) {
	if h.store != nil {
		if v, ok := h.store.Get(cacheKey); ok {
			return v, nil
		}
	}

	host := ""
	if u, err := url.Parse(rawURL); err == nil {
		host = u.Host
	}

	var body []byte
	delay := h.baseDelay
	if delay <= 0 {
		delay = retryBaseDelay
	}
	for attempt := 0; ; attempt++ {
		if err := h.limiters.wait(ctx, host); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}

		b, err := h.doOnce(ctx, rawURL, accept)
		if err == nil {
			body = b
			break
		}
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}

		var statusErr *httpStatusError
		retryable := errors.As(err, &statusErr) && statusErr.retryable()
		retryable = retryable || errors.Is(err, context.DeadlineExceeded)
		if !retryable || attempt >= maxRetries {
			return nil, err
		}

		slog.Debug("registry: retrying after transport error", "url", rawURL, "attempt", attempt+1, "error", err)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		delay *= retryFactor
	}

	if h.store != nil {
		h.store.Put(cacheKey, body, h.cacheTTL)
	}
	return body, nil
}

func (h *httpClient) doOnce(ctx context.Context, rawURL, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", rawURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &httpStatusError{statusCode: resp.StatusCode, url: rawURL}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", rawURL, err)
	}
	return data, nil
}
