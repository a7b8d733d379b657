// Package session holds the client-side state of one signed-in session: the
// live channel subscription and the notification cache it is reconciled
// into. A Session is constructed at login and torn down at logout; nothing
// here is process-global.
package session

import (
	"github.com/xeiaaa/charity_backend/models"
)

// DefaultPageSize is the notification cache bound when none is configured.
const DefaultPageSize = 10

// Alert is a transient, user-visible notice raised for a live event.
type Alert struct {
	Type    string
	Message string
}

// AlertSink receives transient alerts. Called from the reconciliation loop;
// implementations must not block.
type AlertSink interface {
	Alert(a Alert)
}

// AlertFunc adapts a function to the AlertSink interface.
type AlertFunc func(a Alert)

func (f AlertFunc) Alert(a Alert) { f(a) }

// Snapshot is a read-only copy of the cache state for UI observers.
type Snapshot struct {
	Notifications []models.Notification
	UnreadCount   int
}

type msgKind int

const (
	msgNotification msgKind = iota
	msgUnreadCount
	msgSeed
	msgSnapshot
)

type reconcileMsg struct {
	kind         msgKind
	notification models.Notification
	count        int
	seed         []models.Notification
	reply        chan Snapshot
}

// Reconciler merges the live event stream into the session's notification
// cache. All mutation happens on a single goroutine fed by a message
// channel, so the single-writer invariant is enforced by structure rather
// than by locking; entry points only enqueue.
//
// The cache is newest-first, deduplicated by id and bounded to pageSize
// entries; an insert past capacity evicts the oldest entry.
type Reconciler struct {
	pageSize int
	alerts   AlertSink
	events   chan reconcileMsg
	done     chan struct{}
}

// NewReconciler creates a reconciler and starts its loop. Close releases it.
func NewReconciler(pageSize int, alerts AlertSink) *Reconciler {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	r := &Reconciler{
		pageSize: pageSize,
		alerts:   alerts,
		events:   make(chan reconcileMsg, 16),
		done:     make(chan struct{}),
	}
	go r.run()
	return r
}

// OnNewNotification is the entry point for "new-notification" events.
// Delivery is at-least-once; duplicates by id are discarded so the cache
// behaves as if delivery were exactly-once.
func (r *Reconciler) OnNewNotification(n models.Notification) {
	r.enqueue(reconcileMsg{kind: msgNotification, notification: n})
}

// OnUnreadCountUpdate is the entry point for "unread-count-update" events.
// The server-provided count is authoritative and overwrites the local
// counter; this is a reconciliation point against drift, not an increment.
func (r *Reconciler) OnUnreadCountUpdate(count int) {
	r.enqueue(reconcileMsg{kind: msgUnreadCount, count: count})
}

// Seed replaces the cache with the first page fetched at session start. The
// seeded unread count comes from the same response.
func (r *Reconciler) Seed(notifications []models.Notification, unreadCount int) {
	seed := append([]models.Notification(nil), notifications...)
	r.enqueue(reconcileMsg{kind: msgSeed, seed: seed, count: unreadCount})
}

// Snapshot returns a copy of the current cache state, observed after every
// previously enqueued event. Observers must not mutate cache entries
// through it.
func (r *Reconciler) Snapshot() Snapshot {
	reply := make(chan Snapshot, 1)
	select {
	case r.events <- reconcileMsg{kind: msgSnapshot, reply: reply}:
		select {
		case snap := <-reply:
			return snap
		case <-r.done:
			return Snapshot{}
		}
	case <-r.done:
		return Snapshot{}
	}
}

// Close stops the reconciliation loop. Entry points called after Close are
// no-ops.
func (r *Reconciler) Close() {
	select {
	case <-r.done:
	default:
		close(r.done)
	}
}

func (r *Reconciler) enqueue(m reconcileMsg) {
	select {
	case r.events <- m:
	case <-r.done:
	}
}

func (r *Reconciler) run() {
	var (
		cache  []models.Notification
		ids    = make(map[string]bool)
		unread int
	)

	for {
		select {
		case <-r.done:
			return
		case m := <-r.events:
			switch m.kind {
			case msgSnapshot:
				m.reply <- Snapshot{
					Notifications: append([]models.Notification(nil), cache...),
					UnreadCount:   unread,
				}
			case msgSeed:
				cache = m.seed
				if len(cache) > r.pageSize {
					cache = cache[:r.pageSize]
				}
				ids = make(map[string]bool, len(cache))
				for _, n := range cache {
					ids[n.ID] = true
				}
				unread = m.count
			case msgUnreadCount:
				unread = m.count
			case msgNotification:
				n := m.notification
				if ids[n.ID] {
					// Duplicate delivery of an event already seen (or
					// already fetched): one cache entry, one counter
					// increment, one alert in total.
					continue
				}
				cache = append([]models.Notification{n}, cache...)
				if len(cache) > r.pageSize {
					evicted := cache[len(cache)-1]
					delete(ids, evicted.ID)
					cache = cache[:len(cache)-1]
				}
				ids[n.ID] = true
				unread++
				if r.alerts != nil {
					r.alerts.Alert(Alert{Type: n.Type, Message: n.Message()})
				}
			}
		}
	}
}
