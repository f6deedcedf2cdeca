// Package push manages the lifecycle of the notification push channel:
// connect, authenticate, receive, detect failure, and reconnect with
// exponential backoff.
package push

import (
	"context"
	"sync"
	"time"

	"github.com/campusdesk/notisync/internal/logging"
	"github.com/campusdesk/notisync/internal/notification"
	"github.com/campusdesk/notisync/internal/ports"
)

// State is the push connection state. Exactly one is active at any instant.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
)

// String returns the string representation of the state.
func (s State) String() string {
	return string(s)
}

// EventKind discriminates manager events.
type EventKind string

const (
	// EventState reports a state transition.
	EventState EventKind = "state"
	// EventNotification delivers an inbound notification with the server's
	// reported unread count.
	EventNotification EventKind = "notification"
	// EventAuthFailure reports that no usable token exists: connect was
	// called without one, or the server rejected it. No retry is scheduled.
	EventAuthFailure EventKind = "auth_failure"
)

// Event is a typed message from the manager to its consumer.
type Event struct {
	Kind         EventKind
	State        State
	Notification notification.Notification
	UnreadCount  int
}

// DefaultAckTimeout bounds the wait for the server's auth ack frame.
const DefaultAckTimeout = 10 * time.Second

// Manager owns exactly one logical push connection.
type Manager struct {
	url        string
	dialer     Dialer
	tokens     ports.TokenSource
	clock      ports.Clock
	log        logging.Logger
	backoff    *Backoff
	ackTimeout time.Duration

	mu      sync.Mutex
	state   State
	running bool
	cancel  context.CancelFunc
	done    chan struct{}

	events chan Event
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithClock overrides the clock, used by tests.
func WithClock(clock ports.Clock) ManagerOption {
	return func(m *Manager) { m.clock = clock }
}

// WithBackoff overrides the reconnect backoff schedule.
func WithBackoff(b *Backoff) ManagerOption {
	return func(m *Manager) { m.backoff = b }
}

// WithAckTimeout overrides the auth ack wait bound.
func WithAckTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) { m.ackTimeout = d }
}

// NewManager creates a Manager for the given push URL.
func NewManager(url string, dialer Dialer, tokens ports.TokenSource, log logging.Logger, opts ...ManagerOption) *Manager {
	m := &Manager{
		url:        url,
		dialer:     dialer,
		tokens:     tokens,
		clock:      ports.SystemClock{},
		log:        log,
		backoff:    NewBackoff(5*time.Second, 60*time.Second),
		ackTimeout: DefaultAckTimeout,
		state:      StateDisconnected,
		events:     make(chan Event, 32),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Events returns the manager's event stream. The consumer must drain it
// while the manager runs.
func (m *Manager) Events() <-chan Event {
	return m.events
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Connect starts the connection loop. A call while already Connecting or
// Connected is a no-op. With no token available it fails fast: the state
// stays Disconnected, no retry is scheduled, and an auth failure event is
// emitted so the coordinator can fall back to polling immediately.
func (m *Manager) Connect() {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	tok := m.tokens.Token()
	if tok == "" {
		m.state = StateDisconnected
		m.mu.Unlock()
		m.log.Warn("push: no token available, not connecting")
		m.emit(context.Background(), Event{Kind: EventAuthFailure, State: StateDisconnected})
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.running = true
	m.cancel = cancel
	m.done = make(chan struct{})
	m.mu.Unlock()

	go m.run(ctx)
}

// Teardown stops the connection loop from any state, canceling any pending
// reconnect timer. Idempotent.
func (m *Manager) Teardown() {
	m.mu.Lock()
	cancel := m.cancel
	done := m.done
	m.cancel = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	m.mu.Lock()
	m.state = StateDisconnected
	m.mu.Unlock()
}

// run is the connection loop. It exits on teardown or on a fatal auth
// failure; transport failures keep it looping through Reconnecting.
func (m *Manager) run(ctx context.Context) {
	defer func() {
		m.mu.Lock()
		m.running = false
		m.state = StateDisconnected
		done := m.done
		m.mu.Unlock()
		close(done)
	}()

	for {
		// A token can disappear between attempts; a doomed connection is
		// not retried.
		tok := m.tokens.Token()
		if tok == "" {
			m.log.Warn("push: token gone, stopping connection attempts")
			m.emit(ctx, Event{Kind: EventAuthFailure, State: StateDisconnected})
			return
		}

		m.setState(ctx, StateConnecting)
		transport, err := m.dialer.Dial(ctx, m.url, tok)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			m.log.Warn("push: connect failed", "error", err)
			if !m.waitRetry(ctx) {
				return
			}
			continue
		}

		authed, fatal := m.awaitAck(ctx, transport)
		if fatal {
			_ = transport.Close()
			return
		}
		if !authed {
			_ = transport.Close()
			if !m.waitRetry(ctx) {
				return
			}
			continue
		}

		m.backoff.Reset()
		m.setState(ctx, StateConnected)
		m.log.Info("push: connected")

		normalClose := m.receive(ctx, transport)
		_ = transport.Close()
		if normalClose {
			return
		}
		if !m.waitRetry(ctx) {
			return
		}
	}
}

// awaitAck waits for the server's auth frame. Returns authed=true on
// auth_success; fatal=true when the loop must stop (teardown or rejected
// token).
func (m *Manager) awaitAck(ctx context.Context, transport Transport) (authed, fatal bool) {
	ackCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	timer := m.clock.NewTimer(m.ackTimeout)
	defer timer.Stop()
	go func() {
		select {
		case <-timer.C():
			cancel()
		case <-ackCtx.Done():
		}
	}()

	raw, err := transport.ReadFrame(ackCtx)
	if err != nil {
		if ctx.Err() != nil {
			return false, true
		}
		m.log.Warn("push: no auth ack", "error", err)
		return false, false
	}

	frame, err := notification.DecodeFrame(raw)
	if err != nil {
		m.log.Warn("push: malformed ack frame", "error", err)
		return false, false
	}
	switch frame.Type {
	case notification.FrameAuthSuccess:
		return true, false
	case notification.FrameAuthError:
		m.log.Warn("push: server rejected token", "message", frame.ErrorMessage)
		m.tokens.Invalidate()
		m.emit(ctx, Event{Kind: EventAuthFailure, State: StateDisconnected})
		return false, true
	default:
		// Server skipped the ack and went straight to delivery; treat the
		// connection as live and process the frame.
		m.handleFrame(ctx, frame)
		return true, false
	}
}

// receive dispatches inbound frames until the transport closes. Returns true
// for a normal closure (teardown), false for an abnormal one.
func (m *Manager) receive(ctx context.Context, transport Transport) bool {
	for {
		raw, err := transport.ReadFrame(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return true
			}
			m.log.Warn("push: connection lost", "error", err)
			return false
		}
		frame, err := notification.DecodeFrame(raw)
		if err != nil {
			// Malformed payloads are dropped, never fatal.
			m.log.Warn("push: dropping malformed frame", "error", err)
			continue
		}
		m.handleFrame(ctx, frame)
	}
}

func (m *Manager) handleFrame(ctx context.Context, frame notification.Frame) {
	if frame.Type != notification.FrameNotification {
		return
	}
	n, err := frame.Notification.ToNotification()
	if err != nil {
		m.log.Warn("push: dropping invalid notification", "id", frame.Notification.ID, "error", err)
		return
	}
	m.emit(ctx, Event{
		Kind:         EventNotification,
		State:        StateConnected,
		Notification: n,
		UnreadCount:  frame.UnreadCount,
	})
}

// waitRetry enters Reconnecting and sleeps the backoff delay. Returns false
// when torn down during the wait.
func (m *Manager) waitRetry(ctx context.Context) bool {
	m.setState(ctx, StateReconnecting)
	delay := m.backoff.Next()
	m.log.Info("push: reconnecting", "delay", delay)
	timer := m.clock.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C():
		return true
	case <-ctx.Done():
		return false
	}
}

func (m *Manager) setState(ctx context.Context, s State) {
	m.mu.Lock()
	if m.state == s {
		m.mu.Unlock()
		return
	}
	m.state = s
	m.mu.Unlock()
	m.emit(ctx, Event{Kind: EventState, State: s})
}

// emit delivers an event without blocking past teardown.
func (m *Manager) emit(ctx context.Context, ev Event) {
	select {
	case m.events <- ev:
	case <-ctx.Done():
	}
}
