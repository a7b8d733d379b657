// Package realtime implements the event delivery path between backend
// business logic and signed-in clients: a websocket hub fanning out events on
// private per-user channels, and a provider-agnostic transport abstraction
// the client session code is written against.
package realtime

import (
	"context"
	"encoding/json"
)

// Event names delivered on private user channels.
const (
	EventNewNotification    = "new-notification"
	EventUnreadCountUpdate  = "unread-count-update"
	EventConnEstablished    = "connection_established"
	EventSubscribe          = "subscribe"
	EventUnsubscribe        = "unsubscribe"
	EventSubscribeSucceeded = "subscription_succeeded"
	EventSubscribeError     = "subscription_error"
)

// Credential is the signed authorization payload issued for one
// socket/channel pair. Opaque to everything but the hub.
type Credential struct {
	Auth string `json:"auth"`
}

// EventHandler receives the raw payload of a bound event. Handlers for a
// given connection are invoked one at a time and must not block.
type EventHandler func(data json.RawMessage)

// Conn is a live connection to the realtime provider.
type Conn interface {
	// SocketID returns the provider-assigned connection identifier used in
	// subscription authorization.
	SocketID() string
	Close() error
}

// Subscription is a live subscription to a single channel.
type Subscription interface {
	Channel() string
	// Bind registers a handler for an event name on this subscription.
	Bind(eventName string, handler EventHandler)
}

// Transport wraps the realtime provider's connect/authorize/subscribe
// primitives. Components above this boundary never see provider types, so
// the concrete provider stays swappable and mockable.
type Transport interface {
	Connect(ctx context.Context) (Conn, error)
	AuthorizeSubscription(ctx context.Context, conn Conn, channel string) (Credential, error)
	Subscribe(ctx context.Context, conn Conn, channel string, cred Credential) (Subscription, error)
	Unsubscribe(sub Subscription) error
}

// frame is the wire envelope exchanged over the websocket.
type frame struct {
	Event   string          `json:"event"`
	Channel string          `json:"channel,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type connEstablishedData struct {
	SocketID string `json:"socket_id"`
}

type subscribeData struct {
	Channel string `json:"channel"`
	Auth    string `json:"auth,omitempty"`
}

type errorData struct {
	Message string `json:"message"`
}
