// Package gateway provides the throttled, cached, authenticated HTTP client
// used by every other component for non-push server I/O.
//
// Reads within the cache TTL are answered from the cache without touching the
// network; a request with no cached fallback always goes out. Mutating calls
// are never cached and invalidate nothing; staleness is tolerated until the
// next natural refresh.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/campusdesk/notisync/internal/logging"
	"github.com/campusdesk/notisync/internal/ports"
)

// DefaultCacheTTL is how long a cached response satisfies new requests.
const DefaultCacheTTL = 5 * time.Second

// DefaultRequestTimeout bounds a single request when the caller's context
// carries no deadline.
const DefaultRequestTimeout = 10 * time.Second

// Gateway is the single choke point for REST calls to the portal.
type Gateway struct {
	baseURL string
	client  *http.Client
	tokens  ports.TokenSource
	clock   ports.Clock
	log     logging.Logger
	ttl     time.Duration
	timeout time.Duration
	cache   *responseCache
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithCacheTTL overrides the response cache TTL.
func WithCacheTTL(ttl time.Duration) Option {
	return func(g *Gateway) { g.ttl = ttl }
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(g *Gateway) { g.timeout = d }
}

// WithTransport overrides the HTTP transport, used by tests.
func WithTransport(rt http.RoundTripper) Option {
	return func(g *Gateway) { g.client.Transport = rt }
}

// WithClock overrides the clock, used by tests.
func WithClock(clock ports.Clock) Option {
	return func(g *Gateway) { g.clock = clock }
}

// New creates a Gateway for the given API base URL.
func New(baseURL string, tokens ports.TokenSource, log logging.Logger, opts ...Option) *Gateway {
	g := &Gateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{},
		tokens:  tokens,
		clock:   ports.SystemClock{},
		log:     log,
		ttl:     DefaultCacheTTL,
		timeout: DefaultRequestTimeout,
		cache:   newResponseCache(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Get issues an authenticated GET, serving from the cache when a fresh entry
// exists for the same endpoint signature.
func (g *Gateway) Get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	sig := signature(endpoint, params)
	if payload, ok := g.cache.get(sig, g.clock.Now(), g.ttl); ok {
		g.log.Debug("gateway: cache hit", "endpoint", endpoint)
		return payload, nil
	}

	target := g.baseURL + endpoint
	if len(params) > 0 {
		target += "?" + params.Encode()
	}
	payload, err := g.do(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	g.cache.put(sig, payload, g.clock.Now())
	return payload, nil
}

// Post issues an authenticated POST with a JSON body. Responses are never
// cached.
func (g *Gateway) Post(ctx context.Context, endpoint string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("gateway: encode body: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	return g.do(ctx, http.MethodPost, g.baseURL+endpoint, reader)
}

// ResetCache drops all cached responses. Used on logout and after bulk
// resynchronization.
func (g *Gateway) ResetCache() {
	g.cache.reset()
}

func (g *Gateway) do(ctx context.Context, method, target string, body io.Reader) ([]byte, error) {
	tok := g.tokens.Token()
	if tok == "" {
		return nil, ErrNoToken
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("gateway: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway: %s %s: %w", method, target, err)
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("gateway: read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		// Cross-cutting signal: the token is dead for every caller.
		g.log.Warn("gateway: token rejected", "target", target)
		g.tokens.Invalidate()
		return nil, ErrUnauthorized
	case resp.StatusCode >= 400:
		return nil, &StatusError{Code: resp.StatusCode, Body: string(payload)}
	}
	return payload, nil
}
