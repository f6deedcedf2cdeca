package gateway

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusdesk/notisync/internal/logging"
	"github.com/campusdesk/notisync/internal/ports"
	"github.com/campusdesk/notisync/internal/token"
)

// fakeTransport scripts HTTP responses and records every request.
type fakeTransport struct {
	mu      sync.Mutex
	calls   []string
	handler func(req *http.Request) *http.Response
}

func (f *fakeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req.Method+" "+req.URL.Path)
	f.mu.Unlock()
	return f.handler(req), nil
}

func (f *fakeTransport) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func jsonResponse(code int, body string) *http.Response {
	return &http.Response{
		StatusCode: code,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func newTestGateway(t *testing.T, transport *fakeTransport) (*Gateway, *token.StaticSource, *ports.FakeClock) {
	t.Helper()
	tokens := token.NewStaticSource("secret")
	clock := ports.NewFakeClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	gw := New("http://portal.test/api", tokens, logging.Noop(),
		WithTransport(transport),
		WithClock(clock),
	)
	return gw, tokens, clock
}

func TestGateway_CacheHit(t *testing.T) {
	transport := &fakeTransport{handler: func(*http.Request) *http.Response {
		return jsonResponse(200, `{"total_unread": 4}`)
	}}
	gw, _, clock := newTestGateway(t, transport)

	first, err := gw.Get(context.Background(), EndpointUnreadCount, nil)
	require.NoError(t, err)

	// Within the TTL the cached payload answers without a network call.
	clock.Advance(time.Second)
	second, err := gw.Get(context.Background(), EndpointUnreadCount, nil)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, transport.callCount())
}

func TestGateway_CacheExpiry(t *testing.T) {
	transport := &fakeTransport{handler: func(*http.Request) *http.Response {
		return jsonResponse(200, `{"total_unread": 4}`)
	}}
	gw, _, clock := newTestGateway(t, transport)

	_, err := gw.Get(context.Background(), EndpointUnreadCount, nil)
	require.NoError(t, err)

	clock.Advance(DefaultCacheTTL)
	_, err = gw.Get(context.Background(), EndpointUnreadCount, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, transport.callCount())
}

func TestGateway_CacheKeyIncludesParams(t *testing.T) {
	transport := &fakeTransport{handler: func(*http.Request) *http.Response {
		return jsonResponse(200, `{}`)
	}}
	gw, _, _ := newTestGateway(t, transport)

	_, err := gw.Get(context.Background(), EndpointList, url.Values{"page": {"1"}})
	require.NoError(t, err)
	_, err = gw.Get(context.Background(), EndpointList, url.Values{"page": {"2"}})
	require.NoError(t, err)

	assert.Equal(t, 2, transport.callCount())
}

func TestGateway_PostNeverCached(t *testing.T) {
	transport := &fakeTransport{handler: func(*http.Request) *http.Response {
		return jsonResponse(200, `{}`)
	}}
	gw, _, _ := newTestGateway(t, transport)

	require.NoError(t, gw.MarkRead(context.Background(), 7))
	require.NoError(t, gw.MarkRead(context.Background(), 7))

	assert.Equal(t, 2, transport.callCount())
	transport.mu.Lock()
	defer transport.mu.Unlock()
	assert.Equal(t, "POST /api/notifications/7/mark-read/", transport.calls[0])
}

func TestGateway_AttachesBearerToken(t *testing.T) {
	var gotAuth string
	transport := &fakeTransport{handler: func(req *http.Request) *http.Response {
		gotAuth = req.Header.Get("Authorization")
		return jsonResponse(200, `{}`)
	}}
	gw, _, _ := newTestGateway(t, transport)

	_, err := gw.Get(context.Background(), EndpointUnreadCount, nil)
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret", gotAuth)
}

func TestGateway_UnauthorizedInvalidatesToken(t *testing.T) {
	transport := &fakeTransport{handler: func(*http.Request) *http.Response {
		return jsonResponse(401, `{"detail": "invalid token"}`)
	}}
	gw, tokens, _ := newTestGateway(t, transport)

	_, err := gw.Get(context.Background(), EndpointUnreadCount, nil)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Empty(t, tokens.Token())

	select {
	case <-tokens.Invalidated():
	default:
		t.Fatal("expected invalidation signal")
	}
}

func TestGateway_NoTokenFailsFast(t *testing.T) {
	transport := &fakeTransport{handler: func(*http.Request) *http.Response {
		return jsonResponse(200, `{}`)
	}}
	gw, tokens, _ := newTestGateway(t, transport)
	tokens.Invalidate()

	_, err := gw.Get(context.Background(), EndpointUnreadCount, nil)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Zero(t, transport.callCount())
}

func TestGateway_StatusErrors(t *testing.T) {
	tests := []struct {
		name      string
		code      int
		retryable bool
	}{
		{"server error", 500, true},
		{"bad gateway", 502, true},
		{"not found", 404, false},
		{"forbidden", 403, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := &fakeTransport{handler: func(*http.Request) *http.Response {
				return jsonResponse(tt.code, `{}`)
			}}
			gw, _, _ := newTestGateway(t, transport)

			_, err := gw.Get(context.Background(), EndpointUnreadCount, nil)
			var se *StatusError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.code, se.Code)
			assert.Equal(t, tt.retryable, IsRetryable(err))
		})
	}
}

func TestGateway_List(t *testing.T) {
	transport := &fakeTransport{handler: func(req *http.Request) *http.Response {
		assert.Equal(t, "2", req.URL.Query().Get("page"))
		assert.Equal(t, "false", req.URL.Query().Get("is_read"))
		return jsonResponse(200, `{
			"count": 2,
			"next": "",
			"previous": "http://portal.test/api/notifications/?page=1",
			"results": [
				{"id": 1, "notification_type": "task_assigned", "title": "Task",
				 "priority": "medium", "is_read": false, "created_at": "2026-03-01T09:00:00Z"},
				{"id": 2, "notification_type": "not_a_type", "title": "Broken",
				 "priority": "medium", "is_read": false, "created_at": "2026-03-01T09:05:00Z"}
			]
		}`)
	}}
	gw, _, _ := newTestGateway(t, transport)

	unread := false
	result, err := gw.List(context.Background(), ListParams{Page: 2, IsRead: &unread})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Count)
	// The malformed entry is dropped, not fatal.
	require.Len(t, result.Notifications, 1)
	assert.Equal(t, 1, result.Notifications[0].ID)
}

func TestGateway_ListAllWalksPages(t *testing.T) {
	transport := &fakeTransport{handler: func(req *http.Request) *http.Response {
		if req.URL.Query().Get("page") == "1" {
			return jsonResponse(200, `{"count": 2, "next": "p2", "results": [
				{"id": 1, "notification_type": "task_assigned", "title": "a",
				 "priority": "low", "is_read": true, "created_at": "2026-03-01T09:00:00Z"}]}`)
		}
		return jsonResponse(200, `{"count": 2, "next": "", "results": [
			{"id": 2, "notification_type": "task_assigned", "title": "b",
			 "priority": "low", "is_read": false, "created_at": "2026-03-01T10:00:00Z"}]}`)
	}}
	gw, _, _ := newTestGateway(t, transport)

	all, err := gw.ListAll(context.Background(), ListParams{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, 1, all[0].ID)
	assert.Equal(t, 2, all[1].ID)
}

func TestGateway_UnreadCount(t *testing.T) {
	transport := &fakeTransport{handler: func(*http.Request) *http.Response {
		return jsonResponse(200, `{"total_unread": 12}`)
	}}
	gw, _, _ := newTestGateway(t, transport)

	count, err := gw.UnreadCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 12, count)
}

func TestGateway_ResetCache(t *testing.T) {
	transport := &fakeTransport{handler: func(*http.Request) *http.Response {
		return jsonResponse(200, `{"total_unread": 1}`)
	}}
	gw, _, _ := newTestGateway(t, transport)

	_, err := gw.Get(context.Background(), EndpointUnreadCount, nil)
	require.NoError(t, err)
	gw.ResetCache()
	_, err = gw.Get(context.Background(), EndpointUnreadCount, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, transport.callCount())
}

func TestSignature_Normalizes(t *testing.T) {
	a := signature("/notifications/", url.Values{"page": {"1"}, "is_read": {"false"}})
	b := signature("/notifications/", url.Values{"is_read": {"false"}, "page": {"1"}})
	assert.Equal(t, a, b)

	c := signature("/notifications/", url.Values{"page": {"2"}, "is_read": {"false"}})
	assert.NotEqual(t, a, c)

	assert.Equal(t, "/notifications/", signature("/notifications/", nil))
}

func TestIsRetryable_NonStatusError(t *testing.T) {
	assert.False(t, IsRetryable(errors.New("boom")))
	assert.False(t, IsRetryable(ErrUnauthorized))
}
