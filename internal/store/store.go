// Package store holds the canonical client-side notification state.
//
// The store is the only authority over read flags and the unread counter:
// the counter is adjusted atomically with every mutation and always equals
// the number of unread entries in the set.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/campusdesk/notisync/internal/logging"
	"github.com/campusdesk/notisync/internal/notification"
)

// ErrNotFound is returned when a mutation targets an unknown notification.
var ErrNotFound = errors.New("notification not found")

// Remote confirms optimistic mutations against the server and supplies full
// refreshes. *gateway.Gateway satisfies it.
type Remote interface {
	MarkRead(ctx context.Context, id int) error
	MarkAllRead(ctx context.Context) error
	FetchAll(ctx context.Context) ([]notification.Notification, error)
}

// Reason describes what changed in an Event.
type Reason string

const (
	ReasonApplied       Reason = "applied"
	ReasonMarkedRead    Reason = "marked_read"
	ReasonMarkedAllRead Reason = "marked_all_read"
	ReasonRolledBack    Reason = "rolled_back"
	ReasonReplaced      Reason = "replaced"
	ReasonReset         Reason = "reset"
)

// Event is published to subscribers on every state change. Notifications is
// a sorted snapshot; subscribers own it.
type Event struct {
	Reason        Reason
	Notifications []notification.Notification
	UnreadCount   int
	// Err carries the failure that caused a rollback event.
	Err error
}

// Store is the canonical notification set plus denormalized unread counter.
type Store struct {
	mu     sync.Mutex
	byID   map[int]notification.Notification
	unread int

	remote Remote
	log    logging.Logger

	subMu  sync.Mutex
	subs   map[int]chan Event
	nextID int
}

// New creates an empty store. remote may be nil for read-only consumers;
// mutations then fail their confirmation step.
func New(remote Remote, log logging.Logger) *Store {
	return &Store{
		byID:   make(map[int]notification.Notification),
		remote: remote,
		log:    log,
		subs:   make(map[int]chan Event),
	}
}

// Subscribe registers a listener for state changes. The returned function
// unregisters it. Slow subscribers drop events rather than blocking the
// store; every event carries a full snapshot, so a dropped event is made up
// for by the next one.
func (s *Store) Subscribe() (<-chan Event, func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	id := s.nextID
	s.nextID++
	ch := make(chan Event, 16)
	s.subs[id] = ch
	return ch, func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		if existing, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(existing)
		}
	}
}

// ApplyInbound inserts a notification delivered by the active channel.
// Re-delivery of a known id is ignored so a locally confirmed read state is
// never regressed.
func (s *Store) ApplyInbound(n notification.Notification) {
	s.mu.Lock()
	if _, exists := s.byID[n.ID]; exists {
		s.mu.Unlock()
		s.log.Debug("store: duplicate inbound ignored", "id", n.ID)
		return
	}
	s.byID[n.ID] = n
	if !n.Read {
		s.unread++
	}
	event := s.eventLocked(ReasonApplied, nil)
	s.mu.Unlock()
	s.publish(event)
}

// MarkRead optimistically flips a notification to read, then confirms with
// the server. On confirmed failure the flip is rolled back and the error is
// returned and surfaced to subscribers.
func (s *Store) MarkRead(ctx context.Context, id int) error {
	s.mu.Lock()
	n, ok := s.byID[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("mark read %d: %w", id, ErrNotFound)
	}
	if n.Read {
		// Already read; re-applying is a no-op.
		s.mu.Unlock()
		return nil
	}
	n.Read = true
	s.byID[id] = n
	s.unread--
	event := s.eventLocked(ReasonMarkedRead, nil)
	s.mu.Unlock()
	s.publish(event)

	if err := s.confirmMarkRead(ctx, id); err != nil {
		s.rollbackMarkRead(id, err)
		return fmt.Errorf("mark read %d: %w", id, err)
	}
	return nil
}

func (s *Store) confirmMarkRead(ctx context.Context, id int) error {
	if s.remote == nil {
		return errors.New("no remote configured")
	}
	return s.remote.MarkRead(ctx, id)
}

// rollbackMarkRead undoes an optimistic single-item flip. The entry may have
// disappeared under a concurrent ReplaceAll; then there is nothing to undo.
func (s *Store) rollbackMarkRead(id int, cause error) {
	s.mu.Lock()
	n, ok := s.byID[id]
	if !ok || !n.Read {
		s.mu.Unlock()
		return
	}
	n.Read = false
	s.byID[id] = n
	s.unread++
	event := s.eventLocked(ReasonRolledBack, cause)
	s.mu.Unlock()
	s.log.Warn("store: mark-read rolled back", "id", id, "error", cause)
	s.publish(event)
}

// MarkAllRead optimistically flips every entry to read and zeroes the
// counter. On confirmed failure the store resynchronizes from a full server
// fetch instead of replaying an inverse; bulk operations are reconciled by
// re-read.
func (s *Store) MarkAllRead(ctx context.Context) error {
	s.mu.Lock()
	changed := false
	for id, n := range s.byID {
		if !n.Read {
			n.Read = true
			s.byID[id] = n
			changed = true
		}
	}
	s.unread = 0
	var event Event
	if changed {
		event = s.eventLocked(ReasonMarkedAllRead, nil)
	}
	s.mu.Unlock()
	if changed {
		s.publish(event)
	}

	if err := s.confirmMarkAllRead(ctx); err != nil {
		s.resyncAfterBulkFailure(ctx, err)
		return fmt.Errorf("mark all read: %w", err)
	}
	return nil
}

func (s *Store) confirmMarkAllRead(ctx context.Context) error {
	if s.remote == nil {
		return errors.New("no remote configured")
	}
	return s.remote.MarkAllRead(ctx)
}

func (s *Store) resyncAfterBulkFailure(ctx context.Context, cause error) {
	s.log.Warn("store: mark-all-read failed, resynchronizing", "error", cause)
	if s.remote == nil {
		return
	}
	notifications, err := s.remote.FetchAll(ctx)
	if err != nil {
		s.log.Error("store: resynchronization fetch failed", "error", err)
		return
	}
	s.replaceAll(notifications, cause)
}

// ReplaceAll swaps in a full server state and recomputes the counter from
// scratch. Used by polling reconciliation and initial load.
func (s *Store) ReplaceAll(notifications []notification.Notification) {
	s.replaceAll(notifications, nil)
}

func (s *Store) replaceAll(notifications []notification.Notification, cause error) {
	s.mu.Lock()
	s.byID = make(map[int]notification.Notification, len(notifications))
	s.unread = 0
	for _, n := range notifications {
		s.byID[n.ID] = n
		if !n.Read {
			s.unread++
		}
	}
	event := s.eventLocked(ReasonReplaced, cause)
	s.mu.Unlock()
	s.publish(event)
}

// Reset empties the store, e.g. on logout.
func (s *Store) Reset() {
	s.mu.Lock()
	s.byID = make(map[int]notification.Notification)
	s.unread = 0
	event := s.eventLocked(ReasonReset, nil)
	s.mu.Unlock()
	s.publish(event)
}

// Snapshot returns a copy of the set sorted newest-first.
func (s *Store) Snapshot() []notification.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// UnreadCount returns the current unread counter.
func (s *Store) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread
}

// Len returns the number of notifications held.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}

// Get returns a notification by id.
func (s *Store) Get(id int) (notification.Notification, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.byID[id]
	return n, ok
}

func (s *Store) snapshotLocked() []notification.Notification {
	out := make([]notification.Notification, 0, len(s.byID))
	for _, n := range s.byID {
		out = append(out, n)
	}
	notification.SortForDisplay(out)
	return out
}

func (s *Store) eventLocked(reason Reason, err error) Event {
	return Event{
		Reason:        reason,
		Notifications: s.snapshotLocked(),
		UnreadCount:   s.unread,
		Err:           err,
	}
}

func (s *Store) publish(event Event) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- event:
		default:
			// Subscriber is behind; it catches up on the next event.
		}
	}
}
