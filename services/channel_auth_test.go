package services

import (
	"errors"
	"strings"
	"testing"
)

const testSocketID = "1b4e28ba-2fa1-11d2-883f-0016d3cca427"

func newTestAuthorizer() *ChannelAuthorizer {
	return NewChannelAuthorizerWithKeys("app-key", "app-secret")
}

func TestAuthorizeOwnChannel(t *testing.T) {
	a := newTestAuthorizer()

	auth, err := a.Authorize("user-a", testSocketID, "private-user-user-a")
	if err != nil {
		t.Fatalf("Expected authorization to succeed, got %v", err)
	}
	if !strings.HasPrefix(auth.Auth, "app-key:") {
		t.Errorf("Expected credential to carry the app key, got %q", auth.Auth)
	}
	if !a.VerifySignature(auth.Auth, testSocketID, "private-user-user-a") {
		t.Error("Expected issued credential to verify")
	}
}

func TestAuthorizeIsDeterministic(t *testing.T) {
	// The operation is stateless per request and must be safe to retry.
	a := newTestAuthorizer()

	first, err := a.Authorize("user-a", testSocketID, "private-user-user-a")
	if err != nil {
		t.Fatalf("Expected authorization to succeed, got %v", err)
	}
	second, err := a.Authorize("user-a", testSocketID, "private-user-user-a")
	if err != nil {
		t.Fatalf("Expected retry to succeed, got %v", err)
	}
	if first.Auth != second.Auth {
		t.Error("Expected retried authorization to produce the same credential")
	}
}

func TestAuthorizeFailures(t *testing.T) {
	testCases := []struct {
		name     string
		userID   string
		socketID string
		channel  string
		wantErr  error
	}{
		{"no resolved identity", "", testSocketID, "private-user-user-a", ErrUnauthorized},
		{"other user's channel", "user-a", testSocketID, "private-user-user-b", ErrForbiddenChannelAccess},
		{"wrong prefix", "user-a", testSocketID, "presence-user-user-a", ErrInvalidChannelFormat},
		{"empty embedded id", "user-a", testSocketID, "private-user-", ErrInvalidChannelFormat},
		{"public channel", "user-a", testSocketID, "notifications", ErrInvalidChannelFormat},
		{"embedded separator", "user-a", testSocketID, "private-user-a:b", ErrInvalidChannelFormat},
		{"malformed socket id", "user-a", "not-a-socket-id", "private-user-user-a", ErrInvalidSocketID},
		{"empty socket id", "user-a", "", "private-user-user-a", ErrInvalidSocketID},
	}

	a := newTestAuthorizer()
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := a.Authorize(tc.userID, tc.socketID, tc.channel)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("Expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestAuthorizeTenantIsolation(t *testing.T) {
	// For all identities A != B, a request by A for B's channel is
	// forbidden, even though the channel name is well formed and knowable.
	a := newTestAuthorizer()
	identities := []string{"alice", "bob", "carol"}

	for _, caller := range identities {
		for _, target := range identities {
			_, err := a.Authorize(caller, testSocketID, PrivateUserChannel(target))
			if caller == target {
				if err != nil {
					t.Errorf("Expected %s to access own channel, got %v", caller, err)
				}
			} else if !errors.Is(err, ErrForbiddenChannelAccess) {
				t.Errorf("Expected ForbiddenChannelAccess for %s -> %s, got %v", caller, target, err)
			}
		}
	}
}

func TestAuthorizeUnconfiguredSecret(t *testing.T) {
	a := NewChannelAuthorizerWithKeys("", "")
	_, err := a.Authorize("user-a", testSocketID, "private-user-user-a")
	if !errors.Is(err, ErrServiceUnavailable) {
		t.Errorf("Expected ServiceUnavailable with no secret, got %v", err)
	}
}

func TestVerifySignatureRejectsTampering(t *testing.T) {
	a := newTestAuthorizer()
	auth, err := a.Authorize("user-a", testSocketID, "private-user-user-a")
	if err != nil {
		t.Fatalf("Expected authorization to succeed, got %v", err)
	}

	if a.VerifySignature(auth.Auth, testSocketID, "private-user-user-b") {
		t.Error("Expected credential to fail for a different channel")
	}
	if a.VerifySignature(auth.Auth, "2b4e28ba-2fa1-11d2-883f-0016d3cca427", "private-user-user-a") {
		t.Error("Expected credential to fail for a different socket")
	}
	if a.VerifySignature("other-key:deadbeef", testSocketID, "private-user-user-a") {
		t.Error("Expected credential with wrong app key to fail")
	}
}

func TestParsePrivateUserChannel(t *testing.T) {
	id, err := ParsePrivateUserChannel("private-user-42")
	if err != nil || id != "42" {
		t.Errorf("Expected id 42, got %q (%v)", id, err)
	}
	if _, err := ParsePrivateUserChannel("private-user-"); !errors.Is(err, ErrInvalidChannelFormat) {
		t.Errorf("Expected InvalidChannelFormat for empty id, got %v", err)
	}
}
