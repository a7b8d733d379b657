package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// PrivateUserChannelPrefix is the fixed prefix of per-user private channels.
// The full channel name is "private-user-{userID}".
const PrivateUserChannelPrefix = "private-user-"

// Authorization error taxonomy. All are terminal for a single authorization
// attempt; none are retried server-side. The two malformed-parameter errors
// both map to HTTP 400.
var (
	ErrUnauthorized           = errors.New("no authenticated identity")
	ErrInvalidChannelFormat   = errors.New("invalid channel name format")
	ErrInvalidSocketID        = errors.New("invalid socket id format")
	ErrForbiddenChannelAccess = errors.New("channel does not belong to the authenticated user")
	ErrServiceUnavailable     = errors.New("realtime authorization service unavailable")
)

// socketIDPattern matches the socket identifiers the realtime hub assigns
// (UUID v4). Anything else is rejected as malformed input.
var socketIDPattern = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// ChannelAuthorizer validates subscription requests for private per-user
// channels and signs the credential the realtime hub verifies on subscribe.
type ChannelAuthorizer struct {
	appKey string
	secret string
}

// ChannelAuth is the signed payload returned to the client on success. The
// format is "{appKey}:{hex hmac-sha256 of socketID:channel}".
type ChannelAuth struct {
	Auth string `json:"auth"`
}

// NewChannelAuthorizer reads the realtime app key and signing secret from the
// environment. A missing secret is reported at authorize time as
// ErrServiceUnavailable rather than at startup, so the rest of the API keeps
// serving.
func NewChannelAuthorizer() *ChannelAuthorizer {
	return &ChannelAuthorizer{
		appKey: os.Getenv("REALTIME_APP_KEY"),
		secret: os.Getenv("REALTIME_APP_SECRET"),
	}
}

// NewChannelAuthorizerWithKeys creates an authorizer with explicit keys.
func NewChannelAuthorizerWithKeys(appKey, secret string) *ChannelAuthorizer {
	return &ChannelAuthorizer{appKey: appKey, secret: secret}
}

// Authorize validates that userID may subscribe to channel from the socket
// identified by socketID, and returns the signed credential. Validation
// short-circuits on the first failure, in the documented order. Stateless and
// safe to retry.
func (a *ChannelAuthorizer) Authorize(userID, socketID, channel string) (*ChannelAuth, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}

	channelUserID, err := ParsePrivateUserChannel(channel)
	if err != nil {
		return nil, err
	}
	if !socketIDPattern.MatchString(socketID) {
		return nil, ErrInvalidSocketID
	}

	// Tenant isolation: a user can only ever be authorized for their own
	// channel, even if they know another user's channel name.
	if channelUserID != userID {
		return nil, ErrForbiddenChannelAccess
	}

	if a.appKey == "" || a.secret == "" {
		// Do not include key material (present or absent) in the error.
		return nil, ErrServiceUnavailable
	}

	return &ChannelAuth{Auth: fmt.Sprintf("%s:%s", a.appKey, a.sign(socketID, channel))}, nil
}

// VerifySignature checks a credential previously issued by Authorize. Used by
// the realtime hub when completing the subscribe handshake.
func (a *ChannelAuthorizer) VerifySignature(auth, socketID, channel string) bool {
	key, sig, ok := strings.Cut(auth, ":")
	if !ok || key != a.appKey || a.secret == "" {
		return false
	}
	expected := a.sign(socketID, channel)
	return hmac.Equal([]byte(sig), []byte(expected))
}

func (a *ChannelAuthorizer) sign(socketID, channel string) string {
	mac := hmac.New(sha256.New, []byte(a.secret))
	fmt.Fprintf(mac, "%s:%s", socketID, channel)
	return hex.EncodeToString(mac.Sum(nil))
}

// ParsePrivateUserChannel extracts the user id embedded in a
// "private-user-{id}" channel name. Returns ErrInvalidChannelFormat when the
// name does not match the pattern.
func ParsePrivateUserChannel(channel string) (string, error) {
	id, ok := strings.CutPrefix(channel, PrivateUserChannelPrefix)
	if !ok || id == "" {
		return "", ErrInvalidChannelFormat
	}
	// The embedded id is an opaque token but never contains separators;
	// reject anything that smells like a nested or malformed name.
	if strings.ContainsAny(id, " \t\n:") {
		return "", ErrInvalidChannelFormat
	}
	return id, nil
}

// PrivateUserChannel builds the channel name for a user id.
func PrivateUserChannel(userID string) string {
	return PrivateUserChannelPrefix + userID
}
