package services

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/xeiaaa/charity_backend/models"
)

// EventPublisher publishes an event on a realtime channel. Satisfied by the
// realtime hub.
type EventPublisher interface {
	Publish(channel, event string, data interface{}) error
}

// NotificationStore is the persistence surface the notifier needs.
type NotificationStore interface {
	Save(ctx context.Context, n *models.Notification) error
	CountUnread(ctx context.Context, userID string) (int64, error)
}

// UserStore resolves delivery targets (email, device token).
type UserStore interface {
	FindByID(ctx context.Context, userID string) (*models.User, error)
}

// Event names as published on private user channels.
const (
	eventNewNotification   = "new-notification"
	eventUnreadCountUpdate = "unread-count-update"
)

// Notifier turns a backend business event into a persisted notification and
// fans it out: realtime channel first, then best-effort FCM push and, for
// high-importance types, email. Only the persist step can fail the call;
// secondary deliveries are logged and dropped.
type Notifier struct {
	store     NotificationStore
	users     UserStore
	publisher EventPublisher
	push      *PushService
	mailer    *Mailer
}

// NewNotifier wires the notifier. push and mailer may be nil when the
// corresponding delivery path is not configured.
func NewNotifier(store NotificationStore, users UserStore, publisher EventPublisher, push *PushService, mailer *Mailer) *Notifier {
	return &Notifier{
		store:     store,
		users:     users,
		publisher: publisher,
		push:      push,
		mailer:    mailer,
	}
}

// Notify creates and delivers a notification to userID.
func (n *Notifier) Notify(ctx context.Context, userID, notifType string, data map[string]interface{}) (*models.Notification, error) {
	notification := &models.Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		Type:      notifType,
		Data:      data,
		Read:      false,
		CreatedAt: time.Now(),
	}

	if err := n.store.Save(ctx, notification); err != nil {
		return nil, err
	}

	channel := PrivateUserChannel(userID)
	if err := n.publisher.Publish(channel, eventNewNotification, notification); err != nil {
		log.Printf("notifier: realtime publish failed for user %s: %v", userID, err)
	}
	n.PublishUnreadCount(ctx, userID)

	n.deliverSecondary(ctx, notification)

	return notification, nil
}

// PublishUnreadCount recomputes the user's unread count and publishes it as
// the authoritative snapshot on their channel. Also called after mark-read
// operations so connected clients reconcile against drift.
func (n *Notifier) PublishUnreadCount(ctx context.Context, userID string) {
	count, err := n.store.CountUnread(ctx, userID)
	if err != nil {
		log.Printf("notifier: unread count query failed for user %s: %v", userID, err)
		return
	}
	if err := n.publisher.Publish(PrivateUserChannel(userID), eventUnreadCountUpdate, count); err != nil {
		log.Printf("notifier: unread count publish failed for user %s: %v", userID, err)
	}
}

func (n *Notifier) deliverSecondary(ctx context.Context, notification *models.Notification) {
	if n.push == nil && (n.mailer == nil || !emailWorthy(notification.Type)) {
		return
	}

	user, err := n.users.FindByID(ctx, notification.UserID)
	if err != nil {
		log.Printf("notifier: user lookup failed for %s: %v", notification.UserID, err)
		return
	}

	message := notification.Message()

	if n.push != nil && user.FCMToken != "" {
		if err := n.push.Send(ctx, user.FCMToken, message, notification.Type, notification.Data); err != nil {
			log.Printf("notifier: push delivery failed for user %s: %v", user.ID, err)
		}
	}

	if n.mailer != nil && emailWorthy(notification.Type) && user.Email != "" {
		if err := n.mailer.Send(user.Email, message, emailBody(user, message)); err != nil {
			log.Printf("notifier: email delivery failed for user %s: %v", user.ID, err)
		}
	}
}

// emailWorthy lists the types important enough to also land in the inbox.
func emailWorthy(notifType string) bool {
	switch notifType {
	case models.NotificationTypeGroupInvitation,
		models.NotificationTypeVerificationApproved,
		models.NotificationTypeVerificationRejected:
		return true
	}
	return false
}

func emailBody(user *models.User, message string) string {
	name := user.FullName
	if name == "" {
		name = "there"
	}
	return "Hi " + name + ",\n\n" + message + ".\n\nOpen the app to see the details.\n"
}
