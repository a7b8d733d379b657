package realtime

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/xeiaaa/charity_backend/services"
)

const testSocketID = "1b4e28ba-2fa1-11d2-883f-0016d3cca427"

type fakeSocket struct {
	mu     sync.Mutex
	frames []frame
	closed bool
}

func (s *fakeSocket) WriteJSON(v interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, v.(frame))
	return nil
}

func (s *fakeSocket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSocket) received() []frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]frame(nil), s.frames...)
}

func newTestHub() (*Hub, *services.ChannelAuthorizer) {
	authorizer := services.NewChannelAuthorizerWithKeys("app-key", "app-secret")
	return NewHub(authorizer, nil), authorizer
}

func newTestClient(socketID string) (*Client, *fakeSocket) {
	sock := &fakeSocket{}
	return &Client{SocketID: socketID, conn: sock, channels: make(map[string]bool)}, sock
}

func signedAuth(t *testing.T, a *services.ChannelAuthorizer, userID, socketID, channel string) string {
	t.Helper()
	auth, err := a.Authorize(userID, socketID, channel)
	if err != nil {
		t.Fatalf("Failed to issue credential: %v", err)
	}
	return auth.Auth
}

func TestHubSubscribeAndPublish(t *testing.T) {
	hub, authorizer := newTestHub()
	client, sock := newTestClient(testSocketID)

	channel := services.PrivateUserChannel("user-a")
	auth := signedAuth(t, authorizer, "user-a", testSocketID, channel)

	if err := hub.Subscribe(client, channel, auth); err != nil {
		t.Fatalf("Expected subscribe to succeed, got %v", err)
	}

	if err := hub.Publish(channel, EventUnreadCountUpdate, 5); err != nil {
		t.Fatalf("Expected publish to succeed, got %v", err)
	}

	frames := sock.received()
	if len(frames) != 1 {
		t.Fatalf("Expected one delivered frame, got %d", len(frames))
	}
	f := frames[0]
	if f.Event != EventUnreadCountUpdate || f.Channel != channel {
		t.Errorf("Unexpected frame %+v", f)
	}
	var count int
	if err := json.Unmarshal(f.Data, &count); err != nil || count != 5 {
		t.Errorf("Expected bare integer 5 payload, got %s", f.Data)
	}
}

func TestHubRejectsBadCredential(t *testing.T) {
	hub, authorizer := newTestHub()
	client, sock := newTestClient(testSocketID)

	channelB := services.PrivateUserChannel("user-b")

	// Credential was signed for A's channel; presenting it for B's must be
	// rejected regardless of what the socket claims.
	authA := signedAuth(t, authorizer, "user-a", testSocketID, services.PrivateUserChannel("user-a"))
	if err := hub.Subscribe(client, channelB, authA); !errors.Is(err, services.ErrForbiddenChannelAccess) {
		t.Errorf("Expected ForbiddenChannelAccess, got %v", err)
	}

	if err := hub.Subscribe(client, channelB, "app-key:forged"); !errors.Is(err, services.ErrForbiddenChannelAccess) {
		t.Errorf("Expected ForbiddenChannelAccess for forged signature, got %v", err)
	}

	hub.Publish(channelB, EventUnreadCountUpdate, 1)
	if len(sock.received()) != 0 {
		t.Error("Expected no delivery to unauthorized socket")
	}
}

func TestHubRejectsMalformedChannel(t *testing.T) {
	hub, _ := newTestHub()
	client, _ := newTestClient(testSocketID)

	if err := hub.Subscribe(client, "notifications", "app-key:sig"); !errors.Is(err, services.ErrInvalidChannelFormat) {
		t.Errorf("Expected InvalidChannelFormat, got %v", err)
	}
}

func TestHubCredentialBoundToSocket(t *testing.T) {
	hub, authorizer := newTestHub()
	otherSocket := "2b4e28ba-2fa1-11d2-883f-0016d3cca427"
	client, _ := newTestClient(otherSocket)

	channel := services.PrivateUserChannel("user-a")
	// Signed for a different socket id: replaying it from another socket
	// must fail.
	auth := signedAuth(t, authorizer, "user-a", testSocketID, channel)
	if err := hub.Subscribe(client, channel, auth); !errors.Is(err, services.ErrForbiddenChannelAccess) {
		t.Errorf("Expected ForbiddenChannelAccess for replayed credential, got %v", err)
	}
}

func TestHubUnsubscribeStopsDelivery(t *testing.T) {
	hub, authorizer := newTestHub()
	client, sock := newTestClient(testSocketID)

	channel := services.PrivateUserChannel("user-a")
	auth := signedAuth(t, authorizer, "user-a", testSocketID, channel)
	if err := hub.Subscribe(client, channel, auth); err != nil {
		t.Fatalf("Expected subscribe to succeed, got %v", err)
	}

	hub.Unsubscribe(client, channel)
	hub.Publish(channel, EventNewNotification, map[string]string{"id": "n-1"})

	if len(sock.received()) != 0 {
		t.Error("Expected no delivery after unsubscribe")
	}

	// Unsubscribing a channel that was never joined is a no-op.
	hub.Unsubscribe(client, services.PrivateUserChannel("user-b"))
}

func TestHubFansOutToAllSubscribers(t *testing.T) {
	hub, authorizer := newTestHub()
	channel := services.PrivateUserChannel("user-a")

	// Two devices of the same user, each with its own socket.
	socketIDs := []string{testSocketID, "2b4e28ba-2fa1-11d2-883f-0016d3cca427"}
	socks := make([]*fakeSocket, len(socketIDs))
	for i, id := range socketIDs {
		client, sock := newTestClient(id)
		socks[i] = sock
		auth := signedAuth(t, authorizer, "user-a", id, channel)
		if err := hub.Subscribe(client, channel, auth); err != nil {
			t.Fatalf("Expected subscribe to succeed, got %v", err)
		}
	}

	hub.Publish(channel, EventNewNotification, map[string]string{"id": "n-1"})

	for i, sock := range socks {
		if len(sock.received()) != 1 {
			t.Errorf("Expected socket %d to receive the event, got %d frames", i, len(sock.received()))
		}
	}
}
