package push

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusdesk/notisync/internal/logging"
	"github.com/campusdesk/notisync/internal/ports"
	"github.com/campusdesk/notisync/internal/token"
)

// scriptTransport is an in-memory Transport fed frame by frame from the test.
type scriptTransport struct {
	frames chan []byte

	closeOnce sync.Once
	closed    chan struct{}
}

func newScriptTransport() *scriptTransport {
	return &scriptTransport{
		frames: make(chan []byte, 16),
		closed: make(chan struct{}),
	}
}

func (t *scriptTransport) ReadFrame(ctx context.Context) ([]byte, error) {
	select {
	case raw := <-t.frames:
		return raw, nil
	case <-t.closed:
		return nil, errors.New("connection closed")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (t *scriptTransport) Close() error {
	t.closeOnce.Do(func() { close(t.closed) })
	return nil
}

func (t *scriptTransport) send(raw string) {
	t.frames <- []byte(raw)
}

// dropConnection simulates an abnormal server-side close.
func (t *scriptTransport) dropConnection() {
	t.Close()
}

// scriptDialer hands out pre-queued dial outcomes and counts attempts.
type scriptDialer struct {
	mu       sync.Mutex
	outcomes []dialOutcome
	dials    int
}

type dialOutcome struct {
	transport *scriptTransport
	err       error
}

func (d *scriptDialer) queue(t *scriptTransport) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.outcomes = append(d.outcomes, dialOutcome{transport: t})
}

func (d *scriptDialer) queueErr(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.outcomes = append(d.outcomes, dialOutcome{err: err})
}

func (d *scriptDialer) Dial(_ context.Context, _, _ string) (Transport, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if len(d.outcomes) == 0 {
		return nil, errors.New("no scripted outcome")
	}
	out := d.outcomes[0]
	d.outcomes = d.outcomes[1:]
	if out.err != nil {
		return nil, out.err
	}
	return out.transport, nil
}

func (d *scriptDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func notificationFrame(id int) string {
	return fmt.Sprintf(`{
		"type": "notification",
		"unread_count": %d,
		"notification": {
			"id": %d,
			"notification_type": "task_assigned",
			"title": "New task",
			"priority": "medium",
			"is_read": false,
			"created_at": "2026-03-01T10:00:00Z"
		}
	}`, id, id)
}

func newTestManager(t *testing.T, dialer Dialer, tokens ports.TokenSource) (*Manager, *ports.FakeClock) {
	t.Helper()
	clock := ports.NewFakeClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	m := NewManager("ws://portal.test/ws/notifications/", dialer, tokens, logging.Noop(),
		WithClock(clock),
		WithBackoff(NewBackoff(time.Second, time.Second)),
	)
	t.Cleanup(m.Teardown)
	return m, clock
}

// waitEvent drains the event stream until match accepts an event.
func waitEvent(t *testing.T, events <-chan Event, match func(Event) bool) Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-events:
			if match(ev) {
				return ev
			}
		case <-deadline:
			t.Fatal("timed out waiting for event")
		}
	}
}

func waitState(t *testing.T, events <-chan Event, want State) {
	t.Helper()
	waitEvent(t, events, func(ev Event) bool {
		return ev.Kind == EventState && ev.State == want
	})
}

func TestManager_ConnectDeliversNotifications(t *testing.T) {
	transport := newScriptTransport()
	dialer := &scriptDialer{}
	dialer.queue(transport)
	m, _ := newTestManager(t, dialer, token.NewStaticSource("tok"))

	m.Connect()
	transport.send(`{"type": "auth_success"}`)
	waitState(t, m.Events(), StateConnected)

	transport.send(notificationFrame(42))
	ev := waitEvent(t, m.Events(), func(ev Event) bool { return ev.Kind == EventNotification })
	assert.Equal(t, 42, ev.Notification.ID)
	assert.Equal(t, 42, ev.UnreadCount)
	assert.Equal(t, StateConnected, m.State())
	assert.Equal(t, 1, dialer.dialCount())
}

func TestManager_FirstFrameWithoutAck(t *testing.T) {
	// Some servers skip the auth ack and deliver immediately; the first
	// notification frame must count as both ack and delivery.
	transport := newScriptTransport()
	dialer := &scriptDialer{}
	dialer.queue(transport)
	m, _ := newTestManager(t, dialer, token.NewStaticSource("tok"))

	m.Connect()
	transport.send(notificationFrame(7))

	ev := waitEvent(t, m.Events(), func(ev Event) bool { return ev.Kind == EventNotification })
	assert.Equal(t, 7, ev.Notification.ID)
	waitState(t, m.Events(), StateConnected)
}

func TestManager_NoTokenFailsFast(t *testing.T) {
	dialer := &scriptDialer{}
	m, clock := newTestManager(t, dialer, token.NewStaticSource(""))

	m.Connect()

	ev := waitEvent(t, m.Events(), func(ev Event) bool { return ev.Kind == EventAuthFailure })
	assert.Equal(t, StateDisconnected, ev.State)
	assert.Equal(t, StateDisconnected, m.State())
	// No dial, no retry timer: the coordinator falls back to polling.
	assert.Equal(t, 0, dialer.dialCount())
	assert.Equal(t, 0, clock.PendingTimers())
}

func TestManager_MalformedFramesDropped(t *testing.T) {
	transport := newScriptTransport()
	dialer := &scriptDialer{}
	dialer.queue(transport)
	m, _ := newTestManager(t, dialer, token.NewStaticSource("tok"))

	m.Connect()
	transport.send(`{"type": "auth_success"}`)
	waitState(t, m.Events(), StateConnected)

	transport.send(`{not json`)
	transport.send(`{"type": "mystery"}`)
	transport.send(`{"type": "notification"}`)
	transport.send(notificationFrame(9))

	ev := waitEvent(t, m.Events(), func(ev Event) bool { return ev.Kind == EventNotification })
	assert.Equal(t, 9, ev.Notification.ID)
	assert.Equal(t, StateConnected, m.State())
}

func TestManager_ReconnectsAfterConnectionLoss(t *testing.T) {
	first := newScriptTransport()
	second := newScriptTransport()
	dialer := &scriptDialer{}
	dialer.queue(first)
	dialer.queue(second)
	m, clock := newTestManager(t, dialer, token.NewStaticSource("tok"))

	m.Connect()
	first.send(`{"type": "auth_success"}`)
	waitState(t, m.Events(), StateConnected)

	first.dropConnection()
	waitState(t, m.Events(), StateReconnecting)

	// The retry delay runs on the injected clock.
	require.True(t, clock.WaitForTimer(2*time.Second))
	clock.Advance(time.Second)

	second.send(`{"type": "auth_success"}`)
	waitState(t, m.Events(), StateConnected)
	assert.Equal(t, 2, dialer.dialCount())
}

func TestManager_RetriesFailedDial(t *testing.T) {
	transport := newScriptTransport()
	dialer := &scriptDialer{}
	dialer.queueErr(errors.New("connection refused"))
	dialer.queue(transport)
	m, clock := newTestManager(t, dialer, token.NewStaticSource("tok"))

	m.Connect()
	waitState(t, m.Events(), StateReconnecting)

	require.True(t, clock.WaitForTimer(2*time.Second))
	clock.Advance(time.Second)

	transport.send(`{"type": "auth_success"}`)
	waitState(t, m.Events(), StateConnected)
	assert.Equal(t, 2, dialer.dialCount())
}

func TestManager_AuthErrorInvalidatesTokenAndHalts(t *testing.T) {
	transport := newScriptTransport()
	dialer := &scriptDialer{}
	dialer.queue(transport)
	tokens := token.NewStaticSource("stale")
	m, _ := newTestManager(t, dialer, tokens)

	m.Connect()
	transport.send(`{"type": "auth_error", "message": "token expired"}`)

	waitEvent(t, m.Events(), func(ev Event) bool { return ev.Kind == EventAuthFailure })

	select {
	case <-tokens.Invalidated():
	case <-time.After(time.Second):
		t.Fatal("token was not invalidated")
	}
	assert.Empty(t, tokens.Token())
	require.Eventually(t, func() bool {
		return m.State() == StateDisconnected
	}, 2*time.Second, 10*time.Millisecond)
	// A rejected token is not retried.
	assert.Equal(t, 1, dialer.dialCount())
}

func TestManager_ConnectWhileRunningIsNoOp(t *testing.T) {
	transport := newScriptTransport()
	dialer := &scriptDialer{}
	dialer.queue(transport)
	m, _ := newTestManager(t, dialer, token.NewStaticSource("tok"))

	m.Connect()
	transport.send(`{"type": "auth_success"}`)
	waitState(t, m.Events(), StateConnected)

	m.Connect()
	assert.Equal(t, 1, dialer.dialCount())
}

func TestManager_TeardownDuringReconnectWait(t *testing.T) {
	dialer := &scriptDialer{}
	dialer.queueErr(errors.New("connection refused"))
	m, clock := newTestManager(t, dialer, token.NewStaticSource("tok"))

	m.Connect()
	waitState(t, m.Events(), StateReconnecting)
	require.True(t, clock.WaitForTimer(2*time.Second))

	// Teardown cancels the pending retry without firing it.
	m.Teardown()
	assert.Equal(t, StateDisconnected, m.State())
	assert.Equal(t, 1, dialer.dialCount())
}

func TestManager_TeardownIdempotent(t *testing.T) {
	transport := newScriptTransport()
	dialer := &scriptDialer{}
	dialer.queue(transport)
	m, _ := newTestManager(t, dialer, token.NewStaticSource("tok"))

	m.Teardown()

	m.Connect()
	transport.send(`{"type": "auth_success"}`)
	waitState(t, m.Events(), StateConnected)

	m.Teardown()
	m.Teardown()
	assert.Equal(t, StateDisconnected, m.State())
}

func TestManager_ReconnectWhenTokenGone(t *testing.T) {
	// The token disappears while the channel is down; the next attempt must
	// fail fast instead of dialing with nothing.
	first := newScriptTransport()
	dialer := &scriptDialer{}
	dialer.queue(first)
	tokens := token.NewStaticSource("tok")
	m, clock := newTestManager(t, dialer, tokens)

	m.Connect()
	first.send(`{"type": "auth_success"}`)
	waitState(t, m.Events(), StateConnected)

	tokens.Invalidate()
	first.dropConnection()
	waitState(t, m.Events(), StateReconnecting)

	require.True(t, clock.WaitForTimer(2*time.Second))
	clock.Advance(time.Second)

	waitEvent(t, m.Events(), func(ev Event) bool { return ev.Kind == EventAuthFailure })
	require.Eventually(t, func() bool {
		return m.State() == StateDisconnected
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, dialer.dialCount())
}
