package session

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/xeiaaa/charity_backend/models"
	"github.com/xeiaaa/charity_backend/realtime"
)

// NotificationFetcher loads one page of persisted notifications, used to
// seed the cache at session start. The backend's paginated listing endpoint
// satisfies this.
type NotificationFetcher interface {
	FetchPage(ctx context.Context, page, pageSize int) (*models.NotificationPage, error)
}

// Session ties together the subscription manager and the reconciler for one
// signed-in identity. Construct at login, Close at logout. Methods are
// driven by the session's own lifecycle and are not goroutine-safe.
type Session struct {
	manager    *Manager
	reconciler *Reconciler
	fetcher    NotificationFetcher
	pageSize   int
}

// NewSession builds a session over the given transport. alerts receives the
// transient notices raised for live events; pageSize bounds the cache.
func NewSession(transport realtime.Transport, fetcher NotificationFetcher, alerts AlertSink, pageSize int) *Session {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	reconciler := NewReconciler(pageSize, alerts)
	return &Session{
		manager:    NewManager(transport, reconciler),
		reconciler: reconciler,
		fetcher:    fetcher,
		pageSize:   pageSize,
	}
}

// Start seeds the cache from the first notification page and subscribes to
// the identity's private channel. Also used to switch identities mid-session:
// the previous subscription is fully released before the new one is
// established, and the cache is re-seeded for the new identity.
func (s *Session) Start(ctx context.Context, identityID string) error {
	page, err := s.fetcher.FetchPage(ctx, 1, s.pageSize)
	if err != nil {
		return fmt.Errorf("failed to seed notification cache: %w", err)
	}
	s.reconciler.Seed(page.Notifications, int(page.UnreadCount))
	return s.manager.Start(ctx, identityID)
}

// Retry re-attempts a failed subscription, once.
func (s *Session) Retry(ctx context.Context) error {
	return s.manager.Retry(ctx)
}

// Stop releases the subscription but keeps the session usable for a later
// Start. Idempotent.
func (s *Session) Stop() {
	s.manager.Stop()
}

// Close tears the session down at logout.
func (s *Session) Close() {
	s.manager.Close()
	s.reconciler.Close()
}

// State returns the subscription state.
func (s *Session) State() State { return s.manager.State() }

// Snapshot returns a copy of the cache for rendering.
func (s *Session) Snapshot() Snapshot { return s.reconciler.Snapshot() }

// HTTPFetcher fetches notification pages from the backend listing endpoint
// with the session's bearer token.
type HTTPFetcher struct {
	URL        string
	Token      string
	HTTPClient *http.Client
}

// FetchPage implements NotificationFetcher.
func (f *HTTPFetcher) FetchPage(ctx context.Context, page, pageSize int) (*models.NotificationPage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
	if err != nil {
		return nil, err
	}
	q := req.URL.Query()
	q.Set("page", strconv.Itoa(page))
	q.Set("pageSize", strconv.Itoa(pageSize))
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Authorization", "Bearer "+f.Token)

	client := f.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("notification fetch returned status %d", resp.StatusCode)
	}

	var result models.NotificationPage
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("malformed notification page: %w", err)
	}
	return &result, nil
}
