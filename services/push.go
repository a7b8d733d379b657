package services

import (
	"context"
	"errors"
	"fmt"

	"firebase.google.com/go/v4/messaging"

	"github.com/xeiaaa/charity_backend/config"
)

// PushService delivers notifications to mobile devices through FCM.
type PushService struct {
	title string
}

// NewPushService returns a push service, or nil when Firebase was never
// initialized so callers can skip the path entirely.
func NewPushService() *PushService {
	if config.FirebaseApp == nil {
		return nil
	}
	return &PushService{title: "Chari-ty"}
}

// Send pushes one notification to a device token.
func (s *PushService) Send(ctx context.Context, token, body, notifType string, data map[string]interface{}) error {
	if config.FirebaseApp == nil {
		return errors.New("firebase app not initialized")
	}

	client, err := config.FirebaseApp.Messaging(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize messaging client: %w", err)
	}

	message := &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: s.title,
			Body:  body,
		},
		Data: flattenData(notifType, data),
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				Sound:     "default",
				ChannelID: "charity_fcm_channel",
			},
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Alert: &messaging.ApsAlert{
						Title: s.title,
						Body:  body,
					},
					Sound:    "default",
					Badge:    func() *int { v := 1; return &v }(),
					Category: "NOTIFICATION",
				},
			},
		},
	}

	_, err = client.Send(ctx, message)
	if err != nil {
		return fmt.Errorf("failed to send push notification: %w", err)
	}
	return nil
}

// flattenData converts the notification data map into the string-only map
// FCM accepts; non-string values are dropped.
func flattenData(notifType string, data map[string]interface{}) map[string]string {
	result := map[string]string{"type": notifType}
	for key, value := range data {
		if str, ok := value.(string); ok {
			result[key] = str
		}
	}
	return result
}
