package models

import (
	"fmt"
	"time"
)

// Notification type constants. Each type maps to exactly one message
// template; anything outside this set renders the fallback template.
const (
	NotificationTypeDonationReceived         = "donation_received"
	NotificationTypeFundraiserGoalReached    = "fundraiser_goal_reached"
	NotificationTypeGroupInvitation          = "group_invitation"
	NotificationTypeInvitationAccepted       = "invitation_accepted"
	NotificationTypeVerificationReqSubmitted = "verification_request_submitted"
	NotificationTypeVerificationApproved     = "verification_approved"
	NotificationTypeVerificationRejected     = "verification_rejected"
	NotificationTypeUserRemovedFromGroup     = "user_removed_from_group"
	NotificationTypeUserRoleChanged          = "user_role_changed"
)

// Notification model
type Notification struct {
	ID        string                 `json:"id" bson:"_id"`
	UserID    string                 `json:"userId" bson:"userId"`       // The user who receives the notification
	Type      string                 `json:"type" bson:"type"`           // One of the NotificationType constants
	Data      map[string]interface{} `json:"data,omitempty" bson:"data"` // Optional additional data
	Read      bool                   `json:"read" bson:"read"`           // Whether the notification has been read
	CreatedAt time.Time              `json:"createdAt" bson:"createdAt"` // Timestamp of notification creation
}

// Pagination describes one page of a paginated listing.
type Pagination struct {
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
}

// NotificationPage is the response shape of the paginated notification
// listing, also consumed client-side to seed the session cache.
type NotificationPage struct {
	Notifications []Notification `json:"notifications"`
	Pagination    Pagination     `json:"pagination"`
	UnreadCount   int64          `json:"unreadCount"`
}

// messageTemplates maps each notification type to the template used for both
// transient alerts and persisted list rendering. Templates pull their
// arguments from the notification's data map.
var messageTemplates = map[string]func(data map[string]interface{}) string{
	NotificationTypeDonationReceived: func(d map[string]interface{}) string {
		return fmt.Sprintf("%s received a donation of %s", str(d, "fundraiserName", "Your fundraiser"), str(d, "amount", "a new amount"))
	},
	NotificationTypeFundraiserGoalReached: func(d map[string]interface{}) string {
		return fmt.Sprintf("%s reached its goal!", str(d, "fundraiserName", "Your fundraiser"))
	},
	NotificationTypeGroupInvitation: func(d map[string]interface{}) string {
		return fmt.Sprintf("You have been invited to join %s", str(d, "groupName", "a group"))
	},
	NotificationTypeInvitationAccepted: func(d map[string]interface{}) string {
		return fmt.Sprintf("%s accepted your invitation to %s", str(d, "memberName", "A new member"), str(d, "groupName", "your group"))
	},
	NotificationTypeVerificationReqSubmitted: func(d map[string]interface{}) string {
		return fmt.Sprintf("%s submitted a verification request", str(d, "groupName", "A group"))
	},
	NotificationTypeVerificationApproved: func(d map[string]interface{}) string {
		return fmt.Sprintf("Verification for %s was approved", str(d, "groupName", "your group"))
	},
	NotificationTypeVerificationRejected: func(d map[string]interface{}) string {
		return fmt.Sprintf("Verification for %s was rejected", str(d, "groupName", "your group"))
	},
	NotificationTypeUserRemovedFromGroup: func(d map[string]interface{}) string {
		return fmt.Sprintf("You were removed from %s", str(d, "groupName", "a group"))
	},
	NotificationTypeUserRoleChanged: func(d map[string]interface{}) string {
		return fmt.Sprintf("Your role in %s changed to %s", str(d, "groupName", "a group"), str(d, "role", "a new role"))
	},
}

// fallbackMessage is rendered for unrecognized notification types so a newer
// server can ship new types without breaking older clients.
const fallbackMessage = "You have a new notification"

// Message renders the human-readable message for the notification, falling
// back to a generic message for unknown types.
func (n *Notification) Message() string {
	if tmpl, ok := messageTemplates[n.Type]; ok {
		return tmpl(n.Data)
	}
	return fallbackMessage
}

// KnownType reports whether the given type has a dedicated message template.
func KnownType(notifType string) bool {
	_, ok := messageTemplates[notifType]
	return ok
}

func str(d map[string]interface{}, key, fallback string) string {
	if d == nil {
		return fallback
	}
	if v, ok := d[key].(string); ok && v != "" {
		return v
	}
	return fallback
}
