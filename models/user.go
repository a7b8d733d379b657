package models

import "time"

// User holds the slice of the user record the notification subsystem needs:
// delivery targets (email, device token) and basic profile fields. The full
// user lifecycle is owned by the identity service.
type User struct {
	ID        string    `json:"id" bson:"_id"`
	Email     string    `json:"email" bson:"email"`
	FullName  string    `json:"fullName" bson:"fullName"`
	FCMToken  string    `json:"fcmToken,omitempty" bson:"fcmToken,omitempty"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// Response is the generic JSON envelope used by API handlers.
type Response struct {
	Status  int         `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}
