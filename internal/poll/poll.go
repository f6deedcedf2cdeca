// Package poll approximates push delivery with a periodic unread-count pull,
// used while the push channel is unavailable.
package poll

import (
	"context"
	"sync"
	"time"

	"github.com/campusdesk/notisync/internal/logging"
	"github.com/campusdesk/notisync/internal/notification"
	"github.com/campusdesk/notisync/internal/ports"
)

// DefaultInterval is the baseline polling cadence.
const DefaultInterval = 30 * time.Second

// Source supplies the unread count and full list. *gateway.Gateway
// satisfies it.
type Source interface {
	UnreadCount(ctx context.Context) (int, error)
	FetchAll(ctx context.Context) ([]notification.Notification, error)
}

// Reconciler receives the full list when drift is detected.
// *store.Store satisfies it.
type Reconciler interface {
	ReplaceAll(notifications []notification.Notification)
	UnreadCount() int
}

// Poller periodically compares the server's unread count to the store's and
// refreshes the full list on drift. The full refresh is a deliberately
// conservative reconciliation: it is idempotent against anything the push
// channel already delivered.
type Poller struct {
	source   Source
	store    Reconciler
	clock    ports.Clock
	log      logging.Logger
	interval time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	lastObs int
	hasObs  bool
}

// Option configures a Poller.
type Option func(*Poller)

// WithInterval overrides the polling cadence.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithClock overrides the clock, used by tests.
func WithClock(clock ports.Clock) Option {
	return func(p *Poller) { p.clock = clock }
}

// New creates a Poller.
func New(source Source, store Reconciler, log logging.Logger, opts ...Option) *Poller {
	p := &Poller{
		source:   source,
		store:    store,
		clock:    ports.SystemClock{},
		log:      log,
		interval: DefaultInterval,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start begins polling. A call while already running is a no-op.
func (p *Poller) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.loop(ctx, p.done)
	p.log.Info("poll: started", "interval", p.interval)
}

// Stop cancels the polling timer. Idempotent, safe from any state.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	done := p.done
	p.cancel = nil
	p.done = nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	p.log.Info("poll: stopped")
}

// Running reports whether the poller is active.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

func (p *Poller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	// One immediate pass so fallback activation is not delayed by a full
	// interval.
	p.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			p.tick(ctx)
		}
	}
}

// tick fetches the unread count and reconciles on drift.
func (p *Poller) tick(ctx context.Context) {
	count, err := p.source.UnreadCount(ctx)
	if err != nil {
		// Absorbed: polling keeps its cadence, the next tick retries.
		p.log.Warn("poll: unread count fetch failed", "error", err)
		return
	}

	p.mu.Lock()
	drifted := !p.hasObs || count != p.lastObs
	p.lastObs = count
	p.hasObs = true
	p.mu.Unlock()

	if !drifted && count == p.store.UnreadCount() {
		return
	}

	notifications, err := p.source.FetchAll(ctx)
	if err != nil {
		p.log.Warn("poll: list refresh failed", "error", err)
		return
	}
	p.store.ReplaceAll(notifications)
	p.log.Debug("poll: reconciled", "unread", count, "total", len(notifications))
}
