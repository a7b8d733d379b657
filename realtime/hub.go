package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/go-redis/redis/v8"

	"github.com/xeiaaa/charity_backend/services"
)

// redisChannelPrefix namespaces realtime traffic inside Redis pub/sub.
const redisChannelPrefix = "realtime:"

// socketConn is the write side of a connected client. Satisfied by
// *websocket.Conn; faked in tests.
type socketConn interface {
	WriteJSON(v interface{}) error
	Close() error
}

// Client represents a connected websocket client.
type Client struct {
	SocketID string
	conn     socketConn
	writeMu  sync.Mutex

	// channels this socket has been authorized for and subscribed to
	channels map[string]bool
}

func (c *Client) send(f frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(f)
}

// Hub maintains the set of connected sockets and their channel
// subscriptions, and fans published events out to them. When a Redis client
// is configured, publishes go through Redis pub/sub so every node delivers
// to its own sockets; without Redis the hub degrades to local-only fanout.
type Hub struct {
	authorizer *services.ChannelAuthorizer
	rdb        *redis.Client

	clients    map[*Client]bool
	channels   map[string]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
}

// NewHub creates a new Hub instance.
func NewHub(authorizer *services.ChannelAuthorizer, rdb *redis.Client) *Hub {
	return &Hub{
		authorizer: authorizer,
		rdb:        rdb,
		clients:    make(map[*Client]bool),
		channels:   make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run starts the hub's event loop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				for channel := range client.channels {
					h.removeFromChannel(client, channel)
				}
				delete(h.clients, client)
			}
			h.mu.Unlock()
			client.conn.Close()
		}
	}
}

// RunRedis consumes the Redis side of the fanout until ctx is cancelled.
// Only called when a Redis client is configured.
func (h *Hub) RunRedis(ctx context.Context) {
	sub := h.rdb.PSubscribe(ctx, redisChannelPrefix+services.PrivateUserChannelPrefix+"*")
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-sub.Channel():
			if !ok {
				return
			}
			var f frame
			if err := json.Unmarshal([]byte(msg.Payload), &f); err != nil {
				log.Printf("realtime: dropping malformed redis payload on %s: %v", msg.Channel, err)
				continue
			}
			h.deliverLocal(f)
		}
	}
}

// Subscribe completes the subscribe handshake for a connected socket. The
// credential must have been issued by the channel authorizer for this exact
// socket/channel pair.
func (h *Hub) Subscribe(client *Client, channel, auth string) error {
	if _, err := services.ParsePrivateUserChannel(channel); err != nil {
		return err
	}
	if !h.authorizer.VerifySignature(auth, client.SocketID, channel) {
		return services.ErrForbiddenChannelAccess
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.channels[channel] == nil {
		h.channels[channel] = make(map[*Client]bool)
	}
	h.channels[channel][client] = true
	client.channels[channel] = true
	return nil
}

// Unsubscribe removes the socket from a channel. Safe to call for channels
// the socket never joined.
func (h *Hub) Unsubscribe(client *Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeFromChannel(client, channel)
	delete(client.channels, channel)
}

// removeFromChannel requires h.mu to be held.
func (h *Hub) removeFromChannel(client *Client, channel string) {
	if subs, ok := h.channels[channel]; ok {
		delete(subs, client)
		if len(subs) == 0 {
			delete(h.channels, channel)
		}
	}
}

// Publish sends an event to every subscriber of a channel. With Redis
// configured the envelope goes through pub/sub and comes back via RunRedis on
// each node; otherwise it is delivered to local sockets directly.
func (h *Hub) Publish(channel, event string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", event, err)
	}
	f := frame{Event: event, Channel: channel, Data: payload}

	if h.rdb != nil {
		envelope, err := json.Marshal(f)
		if err != nil {
			return fmt.Errorf("failed to encode event envelope: %w", err)
		}
		return h.rdb.Publish(context.Background(), redisChannelPrefix+channel, envelope).Err()
	}

	h.deliverLocal(f)
	return nil
}

func (h *Hub) deliverLocal(f frame) {
	h.mu.RLock()
	subs := make([]*Client, 0, len(h.channels[f.Channel]))
	for client := range h.channels[f.Channel] {
		subs = append(subs, client)
	}
	h.mu.RUnlock()

	for _, client := range subs {
		if err := client.send(f); err != nil {
			log.Printf("realtime: write to socket %s failed: %v", client.SocketID, err)
		}
	}
}
