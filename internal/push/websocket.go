package push

import (
	"context"
	"fmt"
	"net/url"

	"github.com/gorilla/websocket"
)

// WebsocketDialer is the production Dialer. The token travels as a query
// parameter because the portal's websocket endpoint does not read headers
// from browser clients.
type WebsocketDialer struct {
	dialer *websocket.Dialer
}

// NewWebsocketDialer creates a websocket dialer with default settings.
func NewWebsocketDialer() *WebsocketDialer {
	return &WebsocketDialer{dialer: websocket.DefaultDialer}
}

// Dial opens a websocket connection to target, authenticated by token.
func (d *WebsocketDialer) Dial(ctx context.Context, target, token string) (Transport, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("push: parse url: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	conn, resp, err := d.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("push: dial %s: status %d: %w", u.Host, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("push: dial %s: %w", u.Host, err)
	}
	return &websocketTransport{conn: conn}, nil
}

type websocketTransport struct {
	conn *websocket.Conn
}

func (t *websocketTransport) ReadFrame(ctx context.Context) ([]byte, error) {
	// ReadMessage has no context form; cancellation closes the connection,
	// which unblocks the read.
	stop := context.AfterFunc(ctx, func() { _ = t.conn.Close() })
	defer stop()

	_, data, err := t.conn.ReadMessage()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("push: read frame: %w", err)
	}
	return data, nil
}

func (t *websocketTransport) Close() error {
	return t.conn.Close()
}
