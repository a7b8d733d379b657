package models

import (
	"strings"
	"testing"
)

func TestNotificationMessage(t *testing.T) {
	testCases := []struct {
		name     string
		notif    Notification
		contains string
	}{
		{
			name: "donation received",
			notif: Notification{
				Type: NotificationTypeDonationReceived,
				Data: map[string]interface{}{"fundraiserName": "Clean Water", "amount": "$50"},
			},
			contains: "Clean Water received a donation of $50",
		},
		{
			name: "goal reached",
			notif: Notification{
				Type: NotificationTypeFundraiserGoalReached,
				Data: map[string]interface{}{"fundraiserName": "Clean Water"},
			},
			contains: "Clean Water reached its goal",
		},
		{
			name: "group invitation",
			notif: Notification{
				Type: NotificationTypeGroupInvitation,
				Data: map[string]interface{}{"groupName": "Helping Hands"},
			},
			contains: "invited to join Helping Hands",
		},
		{
			name: "invitation accepted",
			notif: Notification{
				Type: NotificationTypeInvitationAccepted,
				Data: map[string]interface{}{"memberName": "Ana", "groupName": "Helping Hands"},
			},
			contains: "Ana accepted your invitation",
		},
		{
			name: "verification approved",
			notif: Notification{
				Type: NotificationTypeVerificationApproved,
				Data: map[string]interface{}{"groupName": "Helping Hands"},
			},
			contains: "was approved",
		},
		{
			name: "role changed",
			notif: Notification{
				Type: NotificationTypeUserRoleChanged,
				Data: map[string]interface{}{"groupName": "Helping Hands", "role": "admin"},
			},
			contains: "changed to admin",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			msg := tc.notif.Message()
			if !strings.Contains(msg, tc.contains) {
				t.Errorf("Expected message to contain %q, got %q", tc.contains, msg)
			}
		})
	}
}

func TestNotificationMessageFallback(t *testing.T) {
	n := Notification{Type: "unknown_future_type", Data: map[string]interface{}{"anything": "x"}}
	if got := n.Message(); got != fallbackMessage {
		t.Errorf("Expected fallback message for unknown type, got %q", got)
	}
}

func TestNotificationMessageNilData(t *testing.T) {
	// Templates must not panic or render empty when the data map is absent.
	n := Notification{Type: NotificationTypeDonationReceived}
	msg := n.Message()
	if msg == "" {
		t.Fatal("Expected non-empty message with nil data")
	}
	if !strings.Contains(msg, "Your fundraiser") {
		t.Errorf("Expected placeholder fundraiser name, got %q", msg)
	}
}

func TestKnownType(t *testing.T) {
	for _, typ := range []string{
		NotificationTypeDonationReceived,
		NotificationTypeFundraiserGoalReached,
		NotificationTypeGroupInvitation,
		NotificationTypeInvitationAccepted,
		NotificationTypeVerificationReqSubmitted,
		NotificationTypeVerificationApproved,
		NotificationTypeVerificationRejected,
		NotificationTypeUserRemovedFromGroup,
		NotificationTypeUserRoleChanged,
	} {
		if !KnownType(typ) {
			t.Errorf("Expected %q to be a known type", typ)
		}
	}
	if KnownType("unknown_future_type") {
		t.Error("Expected unknown_future_type to be unknown")
	}
}
