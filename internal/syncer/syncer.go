// Package syncer arbitrates between the push channel and the polling
// fallback so exactly one delivery channel is active at a time, and routes
// inbound events into the notification store.
package syncer

import (
	"context"
	"sync"

	"github.com/campusdesk/notisync/internal/logging"
	"github.com/campusdesk/notisync/internal/notification"
	"github.com/campusdesk/notisync/internal/ports"
	"github.com/campusdesk/notisync/internal/push"
	"github.com/campusdesk/notisync/internal/store"
)

// Mode is the active delivery channel. Push and Poll are never active
// simultaneously.
type Mode string

const (
	ModeNone Mode = "none"
	ModePush Mode = "push"
	ModePoll Mode = "poll"
)

// PushChannel is the push connection lifecycle consumed by the coordinator.
// *push.Manager satisfies it.
type PushChannel interface {
	Connect()
	Teardown()
	Events() <-chan push.Event
	State() push.State
}

// Fallback is the polling fallback lifecycle. *poll.Poller satisfies it.
type Fallback interface {
	Start()
	Stop()
	Running() bool
}

// Refresher supplies full list fetches for the initial load.
// *gateway.Gateway satisfies it.
type Refresher interface {
	FetchAll(ctx context.Context) ([]notification.Notification, error)
}

// Snapshotter persists the notification set for offline use. Optional.
type Snapshotter interface {
	Save(notifications []notification.Notification) error
}

// Coordinator owns the channel choice. It holds no notification data itself.
type Coordinator struct {
	channel   PushChannel
	fallback  Fallback
	store     *store.Store
	refresher Refresher
	snapshots Snapshotter
	alerts    ports.AlertSink
	log       logging.Logger

	mu       sync.Mutex
	mode     Mode
	cancel   context.CancelFunc
	done     chan struct{}
	snapDone chan struct{}
	unsub    func()
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithAlertSink routes high-priority arrivals to a local alert sink.
func WithAlertSink(sink ports.AlertSink) Option {
	return func(c *Coordinator) { c.alerts = sink }
}

// WithSnapshotter persists store changes for offline use.
func WithSnapshotter(s Snapshotter) Option {
	return func(c *Coordinator) { c.snapshots = s }
}

// WithRefresher enables the initial full list load on Start.
func WithRefresher(r Refresher) Option {
	return func(c *Coordinator) { c.refresher = r }
}

// New creates a Coordinator.
func New(channel PushChannel, fallback Fallback, st *store.Store, log logging.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		channel:  channel,
		fallback: fallback,
		store:    st,
		log:      log,
		mode:     ModeNone,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start attempts the push channel and begins routing events. A call while
// already started is a no-op.
func (c *Coordinator) Start() {
	c.mu.Lock()
	if c.cancel != nil {
		c.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})
	c.mu.Unlock()

	if c.snapshots != nil {
		events, unsub := c.store.Subscribe()
		c.mu.Lock()
		c.unsub = unsub
		c.snapDone = make(chan struct{})
		c.mu.Unlock()
		go c.persistLoop(events, c.snapDone)
	}

	if c.refresher != nil {
		go c.initialLoad(ctx)
	}

	go c.routeLoop(ctx, c.done)
	c.channel.Connect()
}

// Stop tears down both channels. Idempotent.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	cancel := c.cancel
	done := c.done
	unsub := c.unsub
	snapDone := c.snapDone
	c.cancel = nil
	c.done = nil
	c.unsub = nil
	c.snapDone = nil
	c.mu.Unlock()

	if cancel == nil {
		return
	}

	c.channel.Teardown()
	c.fallback.Stop()
	cancel()
	<-done
	if unsub != nil {
		unsub()
		<-snapDone
	}

	c.mu.Lock()
	c.mode = ModeNone
	c.mu.Unlock()
}

// Mode returns the currently active delivery channel.
func (c *Coordinator) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// IsLive reports whether the push channel is delivering. UI indicators hang
// off this signal.
func (c *Coordinator) IsLive() bool {
	return c.Mode() == ModePush
}

// routeLoop translates manager events into channel mode changes and store
// mutations.
func (c *Coordinator) routeLoop(ctx context.Context, done chan struct{}) {
	defer close(done)
	events := c.channel.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			c.handle(ev)
		}
	}
}

func (c *Coordinator) handle(ev push.Event) {
	switch ev.Kind {
	case push.EventState:
		c.handleState(ev.State)
	case push.EventAuthFailure:
		// Token is gone; push attempts are halted. Polling keeps a degraded
		// view until the host supplies a new token and restarts.
		c.log.Warn("sync: push authentication failed, falling back to polling")
		c.setMode(ModePoll)
	case push.EventNotification:
		c.handleNotification(ev)
	}
}

func (c *Coordinator) handleState(s push.State) {
	switch s {
	case push.StateConnected:
		c.setMode(ModePush)
	case push.StateReconnecting:
		c.setMode(ModePoll)
	}
}

func (c *Coordinator) handleNotification(ev push.Event) {
	fresh := func() bool {
		_, known := c.store.Get(ev.Notification.ID)
		return !known
	}()
	c.store.ApplyInbound(ev.Notification)

	if ev.UnreadCount != c.store.UnreadCount() {
		// The client view has drifted from the server (missed events while
		// offline, or a partial local set). Logged only; the polling pass
		// or the next full refresh squares it.
		c.log.Debug("sync: unread drift",
			"server", ev.UnreadCount, "local", c.store.UnreadCount())
	}

	if fresh && c.alerts != nil && !ev.Notification.Read && ev.Notification.Priority.IsAlertworthy() {
		c.alerts.Alert(ev.Notification)
	}
}

// setMode enforces channel mutual exclusion: entering Push stops the
// fallback, entering Poll starts it.
func (c *Coordinator) setMode(m Mode) {
	c.mu.Lock()
	if c.cancel == nil {
		// Stopped; late events do not restart channels.
		c.mu.Unlock()
		return
	}
	prev := c.mode
	c.mode = m
	c.mu.Unlock()

	switch m {
	case ModePush:
		c.fallback.Stop()
	case ModePoll:
		c.fallback.Start()
	}
	if prev != m {
		c.log.Info("sync: channel mode changed", "from", prev, "to", m)
	}
}

// initialLoad seeds the store with the server's full list. Failures are
// absorbed; the active channel converges later.
func (c *Coordinator) initialLoad(ctx context.Context) {
	notifications, err := c.refresher.FetchAll(ctx)
	if err != nil {
		c.log.Warn("sync: initial load failed", "error", err)
		return
	}
	c.store.ReplaceAll(notifications)
}

// persistLoop mirrors store changes into the offline snapshot.
func (c *Coordinator) persistLoop(events <-chan store.Event, done chan struct{}) {
	defer close(done)
	for ev := range events {
		if err := c.snapshots.Save(ev.Notifications); err != nil {
			c.log.Warn("sync: snapshot save failed", "error", err)
		}
	}
}
