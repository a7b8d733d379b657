package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/xeiaaa/charity_backend/services"
)

// WSTransport is the concrete Transport speaking the hub's websocket frame
// protocol. Authorization round-trips go to the channel-auth HTTP endpoint
// with the session's bearer token.
type WSTransport struct {
	wsURL      string
	authURL    string
	token      string
	httpClient *http.Client
	dialer     *websocket.Dialer
}

// NewWSTransport creates a transport for one signed-in session. token is the
// session's JWT, presented to the channel authorization endpoint.
func NewWSTransport(wsURL, authURL, token string) *WSTransport {
	return &WSTransport{
		wsURL:      wsURL,
		authURL:    authURL,
		token:      token,
		httpClient: http.DefaultClient,
		dialer:     websocket.DefaultDialer,
	}
}

type wsConn struct {
	ws       *websocket.Conn
	socketID string

	mu      sync.Mutex
	writeMu sync.Mutex
	subs    map[string]*wsSubscription
	pending map[string]chan error
}

func (c *wsConn) SocketID() string { return c.socketID }

func (c *wsConn) Close() error { return c.ws.Close() }

func (c *wsConn) writeFrame(f frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteJSON(f)
}

// Connect dials the hub and waits for the connection_established frame
// carrying the socket id, then starts the single dispatch loop for this
// connection. Handlers bound on any subscription of this connection are
// invoked from that loop, one at a time.
func (t *WSTransport) Connect(ctx context.Context) (Conn, error) {
	ws, resp, err := t.dialer.DialContext(ctx, t.wsURL, nil)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return nil, fmt.Errorf("realtime dial failed: %w", err)
	}

	var f frame
	if err := ws.ReadJSON(&f); err != nil {
		ws.Close()
		return nil, fmt.Errorf("realtime handshake failed: %w", err)
	}
	if f.Event != EventConnEstablished {
		ws.Close()
		return nil, fmt.Errorf("realtime handshake failed: unexpected event %q", f.Event)
	}
	var established connEstablishedData
	if err := json.Unmarshal(f.Data, &established); err != nil || established.SocketID == "" {
		ws.Close()
		return nil, fmt.Errorf("realtime handshake failed: bad connection_established payload")
	}

	conn := &wsConn{
		ws:       ws,
		socketID: established.SocketID,
		subs:     make(map[string]*wsSubscription),
		pending:  make(map[string]chan error),
	}
	go conn.readLoop()
	return conn, nil
}

func (c *wsConn) readLoop() {
	for {
		var f frame
		if err := c.ws.ReadJSON(&f); err != nil {
			c.failPending(fmt.Errorf("realtime connection lost: %w", err))
			return
		}

		switch f.Event {
		case EventSubscribeSucceeded:
			c.resolvePending(f.Channel, nil)
		case EventSubscribeError:
			var ed errorData
			_ = json.Unmarshal(f.Data, &ed)
			c.resolvePending(f.Channel, fmt.Errorf("subscription rejected: %s", ed.Message))
		default:
			c.mu.Lock()
			sub := c.subs[f.Channel]
			c.mu.Unlock()
			if sub != nil {
				sub.dispatch(f.Event, f.Data)
			}
		}
	}
}

func (c *wsConn) resolvePending(channel string, err error) {
	c.mu.Lock()
	ack := c.pending[channel]
	delete(c.pending, channel)
	c.mu.Unlock()
	if ack != nil {
		ack <- err
	}
}

func (c *wsConn) discardPending(channel string) {
	c.mu.Lock()
	delete(c.pending, channel)
	c.mu.Unlock()
}

func (c *wsConn) failPending(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for channel, ack := range c.pending {
		delete(c.pending, channel)
		ack <- err
	}
}

// AuthorizeSubscription requests a signed credential for this connection and
// channel from the channel authorization endpoint. HTTP error statuses map
// back onto the authorization error taxonomy.
func (t *WSTransport) AuthorizeSubscription(ctx context.Context, conn Conn, channel string) (Credential, error) {
	form := url.Values{}
	form.Set("socket_id", conn.SocketID())
	form.Set("channel_name", channel)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.authURL, strings.NewReader(form.Encode()))
	if err != nil {
		return Credential{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+t.token)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return Credential{}, fmt.Errorf("%w: %v", services.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var body struct {
			Error string `json:"error"`
		}
		raw, _ := io.ReadAll(resp.Body)
		_ = json.Unmarshal(raw, &body)

		var taxonomy error
		switch resp.StatusCode {
		case http.StatusBadRequest:
			taxonomy = services.ErrInvalidChannelFormat
		case http.StatusUnauthorized:
			taxonomy = services.ErrUnauthorized
		case http.StatusForbidden:
			taxonomy = services.ErrForbiddenChannelAccess
		default:
			taxonomy = services.ErrServiceUnavailable
		}
		return Credential{}, fmt.Errorf("%w: %s", taxonomy, body.Error)
	}

	var cred Credential
	if err := json.NewDecoder(resp.Body).Decode(&cred); err != nil {
		return Credential{}, fmt.Errorf("%w: malformed authorization response", services.ErrServiceUnavailable)
	}
	return cred, nil
}

// Subscribe completes the subscribe handshake and returns the live
// subscription once the hub acknowledges it.
func (t *WSTransport) Subscribe(ctx context.Context, conn Conn, channel string, cred Credential) (Subscription, error) {
	c, ok := conn.(*wsConn)
	if !ok {
		return nil, fmt.Errorf("connection was not created by this transport")
	}

	ack := make(chan error, 1)
	c.mu.Lock()
	if _, dup := c.pending[channel]; dup {
		c.mu.Unlock()
		return nil, fmt.Errorf("subscription to %s already in flight", channel)
	}
	c.pending[channel] = ack
	c.mu.Unlock()

	data, _ := json.Marshal(subscribeData{Channel: channel, Auth: cred.Auth})
	if err := c.writeFrame(frame{Event: EventSubscribe, Data: data}); err != nil {
		c.discardPending(channel)
		return nil, fmt.Errorf("subscribe send failed: %w", err)
	}

	select {
	case <-ctx.Done():
		c.discardPending(channel)
		return nil, ctx.Err()
	case err := <-ack:
		if err != nil {
			return nil, err
		}
	}

	sub := &wsSubscription{channel: channel, conn: c, handlers: make(map[string][]EventHandler)}
	c.mu.Lock()
	c.subs[channel] = sub
	c.mu.Unlock()
	return sub, nil
}

// Unsubscribe tears down the subscription and drops its bindings, so frames
// still queued for the old channel cannot reach handlers afterwards.
func (t *WSTransport) Unsubscribe(sub Subscription) error {
	s, ok := sub.(*wsSubscription)
	if !ok {
		return fmt.Errorf("subscription was not created by this transport")
	}

	s.conn.mu.Lock()
	delete(s.conn.subs, s.channel)
	s.conn.mu.Unlock()
	s.clearBindings()

	data, _ := json.Marshal(subscribeData{Channel: s.channel})
	return s.conn.writeFrame(frame{Event: EventUnsubscribe, Data: data})
}

type wsSubscription struct {
	channel string
	conn    *wsConn

	mu       sync.Mutex
	handlers map[string][]EventHandler
}

func (s *wsSubscription) Channel() string { return s.channel }

func (s *wsSubscription) Bind(eventName string, handler EventHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[eventName] = append(s.handlers[eventName], handler)
}

func (s *wsSubscription) clearBindings() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = make(map[string][]EventHandler)
}

func (s *wsSubscription) dispatch(eventName string, data json.RawMessage) {
	s.mu.Lock()
	handlers := append([]EventHandler(nil), s.handlers[eventName]...)
	s.mu.Unlock()
	for _, h := range handlers {
		h(data)
	}
}
