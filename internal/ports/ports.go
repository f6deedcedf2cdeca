// Package ports defines application boundary interfaces used by the sync
// engine. The host environment supplies implementations at construction time.
package ports

import (
	"time"

	"github.com/campusdesk/notisync/internal/notification"
)

// TokenSource supplies the current bearer token and accepts invalidation
// signals. The token itself is owned by the host environment; the sync engine
// only reads it and reports when the server rejects it.
type TokenSource interface {
	// Token returns the current bearer token, or an empty string when no
	// token is available.
	Token() string

	// Invalidate discards the current token after a server-side rejection.
	Invalidate()

	// Invalidated returns a channel that receives a signal each time the
	// token is invalidated.
	Invalidated() <-chan struct{}
}

// AlertSink receives best-effort local alerts for high-priority arrivals.
// Implementations must not block; delivery failures are ignored.
type AlertSink interface {
	Alert(n notification.Notification)
}

// Clock abstracts time so TTL and backoff logic are testable without
// wall-clock sleeps.
type Clock interface {
	Now() time.Time
	NewTimer(d time.Duration) Timer
	NewTicker(d time.Duration) Ticker
}

// Timer is a cancellable single-shot timer.
type Timer interface {
	C() <-chan time.Time
	Stop() bool
}

// Ticker is a cancellable repeating timer.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// SystemClock is the wall-clock implementation of Clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

func (SystemClock) NewTimer(d time.Duration) Timer { return systemTimer{time.NewTimer(d)} }

func (SystemClock) NewTicker(d time.Duration) Ticker { return systemTicker{time.NewTicker(d)} }

type systemTimer struct{ t *time.Timer }

func (t systemTimer) C() <-chan time.Time { return t.t.C }
func (t systemTimer) Stop() bool          { return t.t.Stop() }

type systemTicker struct{ t *time.Ticker }

func (t systemTicker) C() <-chan time.Time { return t.t.C }
func (t systemTicker) Stop()               { t.t.Stop() }
