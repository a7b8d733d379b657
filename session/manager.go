package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"sync/atomic"

	"github.com/xeiaaa/charity_backend/models"
	"github.com/xeiaaa/charity_backend/realtime"
	"github.com/xeiaaa/charity_backend/services"
)

// State of the session's single logical subscription.
type State int

const (
	Unsubscribed State = iota
	Authorizing
	Subscribed
	Failed
)

func (s State) String() string {
	switch s {
	case Unsubscribed:
		return "unsubscribed"
	case Authorizing:
		return "authorizing"
	case Subscribed:
		return "subscribed"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// ErrRetryExhausted is returned when Retry is attempted more than once for
// the same failure. Repeated automatic retries would mask a persistent
// authorization misconfiguration, so exactly one manual retry is allowed.
var ErrRetryExhausted = errors.New("subscription retry already attempted")

// Manager owns the session's single logical channel subscription: it drives
// the authorize/subscribe handshake through the transport, binds the
// reconciler entry points, and releases everything on identity switch or
// stop.
//
// Start, Stop and Retry are not safe for concurrent use; the owning session
// serializes calls.
type Manager struct {
	transport  realtime.Transport
	reconciler *Reconciler

	state      State
	identityID string
	conn       realtime.Conn
	sub        realtime.Subscription
	guard      *atomic.Bool
	retried    bool
}

// NewManager creates a manager dispatching events into the reconciler.
func NewManager(transport realtime.Transport, reconciler *Reconciler) *Manager {
	return &Manager{transport: transport, reconciler: reconciler}
}

// State returns the current subscription state.
func (m *Manager) State() State { return m.state }

// IdentityID returns the identity of the current (or last attempted)
// subscription.
func (m *Manager) IdentityID() string { return m.identityID }

// Start subscribes to identityID's private channel. If a subscription is
// live or in flight it is fully released first, so no handler bound for a
// previous identity can fire once Start begins establishing the new one.
func (m *Manager) Start(ctx context.Context, identityID string) error {
	if m.state == Subscribed || m.state == Authorizing {
		m.release()
	}

	m.state = Authorizing
	m.identityID = identityID

	if m.conn == nil {
		conn, err := m.transport.Connect(ctx)
		if err != nil {
			m.state = Failed
			return fmt.Errorf("realtime connect failed: %w", err)
		}
		m.conn = conn
	}

	channel := services.PrivateUserChannel(identityID)
	cred, err := m.transport.AuthorizeSubscription(ctx, m.conn, channel)
	if err != nil {
		m.state = Failed
		return fmt.Errorf("channel authorization failed: %w", err)
	}

	sub, err := m.transport.Subscribe(ctx, m.conn, channel, cred)
	if err != nil {
		// A failed subscribe usually means the connection itself died, and a
		// retry over the same connection would fail the same way. Drop it so
		// Retry dials fresh. Authorization rejections above keep the
		// connection; it was never the problem there.
		m.dropConn()
		m.state = Failed
		return fmt.Errorf("subscribe failed: %w", err)
	}

	// The guard is flipped off before unsubscribe during release, so an
	// event a sloppy provider replays after the switch cannot reach the
	// reconciler through a stale binding.
	guard := &atomic.Bool{}
	guard.Store(true)

	sub.Bind(realtime.EventNewNotification, func(data json.RawMessage) {
		if !guard.Load() {
			return
		}
		n, err := decodeNotification(data)
		if err != nil {
			log.Printf("session: dropping malformed new-notification event: %v", err)
			return
		}
		m.reconciler.OnNewNotification(n)
	})
	sub.Bind(realtime.EventUnreadCountUpdate, func(data json.RawMessage) {
		if !guard.Load() {
			return
		}
		count, err := strconv.Atoi(string(data))
		if err != nil {
			log.Printf("session: dropping malformed unread-count-update event: %v", err)
			return
		}
		m.reconciler.OnUnreadCountUpdate(count)
	})

	m.sub = sub
	m.guard = guard
	m.state = Subscribed
	m.retried = false
	return nil
}

// Retry re-attempts the last failed Start. Exactly one retry is allowed per
// failure; further attempts return ErrRetryExhausted.
func (m *Manager) Retry(ctx context.Context) error {
	if m.state != Failed {
		return fmt.Errorf("retry only valid from failed state, current state is %s", m.state)
	}
	if m.retried {
		return ErrRetryExhausted
	}
	m.retried = true
	return m.Start(ctx, m.identityID)
}

// Stop releases the subscription and returns to Unsubscribed. Idempotent and
// callable from any state.
func (m *Manager) Stop() {
	m.release()
	m.state = Unsubscribed
	m.retried = false
}

// Close stops the manager and drops the underlying connection.
func (m *Manager) Close() {
	m.Stop()
	m.dropConn()
}

func (m *Manager) dropConn() {
	if m.conn != nil {
		if err := m.conn.Close(); err != nil {
			log.Printf("session: connection close failed: %v", err)
		}
		m.conn = nil
	}
}

func (m *Manager) release() {
	if m.guard != nil {
		m.guard.Store(false)
		m.guard = nil
	}
	if m.sub != nil {
		if err := m.transport.Unsubscribe(m.sub); err != nil {
			log.Printf("session: unsubscribe failed: %v", err)
		}
		m.sub = nil
	}
}

// decodeNotification validates the inbound event payload. A payload missing
// required fields must never reach the cache, so decode failures are
// terminal for the event.
func decodeNotification(data json.RawMessage) (models.Notification, error) {
	var n models.Notification
	if err := json.Unmarshal(data, &n); err != nil {
		return models.Notification{}, err
	}
	if n.ID == "" || n.UserID == "" || n.Type == "" {
		return models.Notification{}, errors.New("missing required notification fields")
	}
	return n, nil
}
