package model

import "time"

// Notification is a message addressed to exactly one user about something
// another user (the actor) did.
type Notification struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	ActorID   int64     `json:"actor_id"`
	TaskID    *int64    `json:"task_id"`
	Message   string    `json:"message"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

type NotificationPage struct {
	UnreadCount   int            `json:"unreadCount"`
	Notifications []Notification `json:"notifications"`
}
