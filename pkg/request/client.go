package request

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"cilaosgo/pkg/cache"
	"cilaosgo/pkg/tracker"
	"cilaosgo/pkg/version"
)

var (
	defaultUserAgent = fmt.Sprintf("CilaosGo/%s (+https://www.cilaos.re)", version.Version)
)

// requestGap is the pause between two requests to the same provider.
const requestGap = 100 * time.Millisecond

// ClientConfig tunes timeouts and retries.
type ClientConfig struct {
	// Retries is the number of attempts per request; values below 1 mean 1.
	Retries   int
	Timeout   time.Duration
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// Client handles HTTP requests with queuing, caching, and tracking.
type Client struct {
	httpClient *http.Client
	cache      cache.Cacher
	tracker    *tracker.Tracker
	backoff    *ProviderBackoff
	cfg        ClientConfig

	// Queues per provider (domain)
	queues map[string]chan job
	mu     sync.Mutex // Protects queues map
}

// job represents a queued request.
type job struct {
	req      *http.Request
	provider string
	headers  map[string]string
	cacheKey string
	respChan chan jobResult
}

type jobResult struct {
	body []byte
	err  error
}

// New creates a new Client. c may be nil to disable caching.
func New(c cache.Cacher, t *tracker.Tracker, cfg ClientConfig) *Client {
	if cfg.Retries < 1 {
		cfg.Retries = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 500 * time.Millisecond
	}
	if cfg.MaxDelay < cfg.BaseDelay {
		cfg.MaxDelay = cfg.BaseDelay
	}
	if t == nil {
		t = tracker.New()
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cache:      c,
		tracker:    t,
		backoff:    NewProviderBackoff(cfg.BaseDelay, cfg.MaxDelay),
		cfg:        cfg,
		queues:     make(map[string]chan job),
	}
}

// Tracker returns the usage tracker of the client.
func (c *Client) Tracker() *tracker.Tracker {
	return c.tracker
}

// Get performs a GET request with queuing and caching if key is provided.
func (c *Client) Get(ctx context.Context, u, cacheKey string) ([]byte, error) {
	return c.GetWithHeaders(ctx, u, nil, cacheKey)
}

// GetWithHeaders performs a GET request with custom headers and optional caching.
func (c *Client) GetWithHeaders(ctx context.Context, u string, headers map[string]string, cacheKey string) ([]byte, error) {
	parsedURL, err := url.Parse(u)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	provider := NormalizeProvider(parsedURL.Host)

	if body, hit := c.cached(ctx, provider, cacheKey); hit {
		return body, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	respChan := make(chan jobResult, 1)
	c.dispatch(job{req: req, provider: provider, headers: headers, cacheKey: cacheKey, respChan: respChan})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-respChan:
		return res.body, res.err
	}
}

// Cached returns a cached body without touching the network.
func (c *Client) Cached(ctx context.Context, provider, cacheKey string) ([]byte, bool) {
	return c.cached(ctx, provider, cacheKey)
}

// Store caches a body the caller has validated.
func (c *Client) Store(ctx context.Context, cacheKey string, body []byte) {
	if c.cache == nil || cacheKey == "" {
		return
	}
	if err := c.cache.SetCache(ctx, cacheKey, body); err != nil {
		slog.Error("Failed to cache response", "key", cacheKey, "error", err)
	}
}

func (c *Client) cached(ctx context.Context, provider, cacheKey string) ([]byte, bool) {
	if c.cache == nil || cacheKey == "" {
		return nil, false
	}
	if val, hit := c.cache.GetCache(ctx, cacheKey); hit {
		c.tracker.TrackCacheHit(provider)
		slog.Debug("Cache Hit", "provider", provider, "key", cacheKey)
		return val, true
	}
	c.tracker.TrackCacheMiss(provider)
	slog.Debug("Cache Miss", "provider", provider, "key", cacheKey)
	return nil, false
}

// NormalizeProvider groups hosts into the provider names used for queues and stats.
func NormalizeProvider(host string) string {
	h := strings.ToLower(host)
	if hostOnly, _, err := net.SplitHostPort(h); err == nil {
		h = hostOnly
	}
	if strings.Contains(h, "osrm") {
		return "osrm"
	}
	if h == "localhost" || h == "127.0.0.1" || h == "::1" {
		return "local"
	}
	return h
}

// dispatch sends the job to the provider's queue, creating the queue/worker if needed.
func (c *Client) dispatch(j job) {
	c.mu.Lock()
	q, ok := c.queues[j.provider]
	if !ok {
		q = make(chan job, 100)
		c.queues[j.provider] = q
		go c.worker(j.provider, q)
	}
	c.mu.Unlock()

	// Blocks while the queue is full, throttling the caller
	select {
	case q <- j:
	case <-j.req.Context().Done():
		j.respChan <- jobResult{err: j.req.Context().Err()}
	}
}

// worker processes requests for a specific provider sequentially.
func (c *Client) worker(provider string, q <-chan job) {
	for j := range q {
		ctx := j.req.Context()
		if ctx.Err() != nil {
			slog.Warn("Job dropped from queue (context expired)", "provider", provider, "error", ctx.Err())
			j.respChan <- jobResult{err: ctx.Err()}
			continue
		}
		if err := c.backoff.Wait(ctx, provider); err != nil {
			j.respChan <- jobResult{err: err}
			continue
		}

		uaSet := false
		for k, v := range j.headers {
			j.req.Header.Set(k, v)
			if http.CanonicalHeaderKey(k) == "User-Agent" {
				uaSet = true
			}
		}
		if !uaSet {
			j.req.Header.Set("User-Agent", defaultUserAgent)
		}

		body, err := c.execute(j.req)
		if err == nil {
			c.tracker.TrackAPISuccess(provider)
			c.backoff.RecordSuccess(provider)
			c.Store(context.Background(), j.cacheKey, body)
		} else {
			c.tracker.TrackAPIFailure(provider)
			if ctx.Err() == nil {
				c.backoff.RecordFailure(provider)
			}
		}

		j.respChan <- jobResult{body: body, err: err}

		time.Sleep(requestGap)
	}
}

// execute attempts the request up to cfg.Retries times, backing off on retryable errors.
func (c *Client) execute(req *http.Request) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < c.cfg.Retries; attempt++ {
		if attempt > 0 {
			sleepDur := time.Duration(math.Pow(2, float64(attempt-1))) * c.cfg.BaseDelay
			select {
			case <-time.After(sleepDur):
			case <-req.Context().Done():
				return nil, req.Context().Err()
			}
		}
		if req.Context().Err() != nil {
			return nil, req.Context().Err()
		}

		slog.Debug("Network Request", "host", req.URL.Host, "path", req.URL.Path, "attempt", attempt+1)
		resp, err := c.httpClient.Do(req)
		if err != nil {
			if req.Context().Err() != nil {
				return nil, req.Context().Err()
			}
			slog.Warn("Request failed", "url", req.URL, "attempt", attempt+1, "error", err)
			lastErr = err
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			resp.Body.Close()
			slog.Warn("API Backoff", "status", resp.StatusCode, "url", req.URL, "attempt", attempt+1)
			lastErr = fmt.Errorf("api error: status %d", resp.StatusCode)
			continue
		}

		if resp.StatusCode >= 400 {
			resp.Body.Close()
			return nil, fmt.Errorf("api error: status %d", resp.StatusCode)
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("read error: %w", err)
		}
		return body, nil
	}

	return nil, fmt.Errorf("request failed after %d attempt(s): %w", c.cfg.Retries, lastErr)
}
