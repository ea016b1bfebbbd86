// Package fanout decides who hears about a task event and what they are told.
// It performs no I/O; the lifecycle engine appends whatever Derive returns.
package fanout

import (
	"fmt"
	"time"

	"github.com/BuzzLyutic/tasktrack/internal/model"
)

type Kind string

const (
	TaskCreated     Kind = "task_created"
	StatusChanged   Kind = "status_changed"
	UpdateRequested Kind = "update_requested"
)

// Event describes something that happened to a task. Actor is the user who
// caused it; Creator and Assignee are taken from the task.
type Event struct {
	Kind      Kind
	TaskID    int64
	Title     string
	Actor     int64
	Creator   int64
	Assignee  int64
	NewStatus model.Status
	At        time.Time
}

// Recipient returns the single user to notify for e, or false when nobody
// should be notified (the actor would only be telling themselves).
func Recipient(e Event) (int64, bool) {
	var target int64
	switch e.Kind {
	case TaskCreated, UpdateRequested:
		target = e.Assignee
	case StatusChanged:
		target = e.Creator
		if e.Actor == e.Creator {
			target = e.Assignee
		}
	default:
		return 0, false
	}
	if target == e.Actor {
		return 0, false
	}
	return target, true
}

// Message renders the text shown after the actor's name.
func Message(e Event) string {
	switch e.Kind {
	case TaskCreated:
		return fmt.Sprintf(`assigned you a new task: "%s".`, e.Title)
	case StatusChanged:
		return fmt.Sprintf(`updated the status of "%s" to %s.`, e.Title, e.NewStatus)
	case UpdateRequested:
		return fmt.Sprintf(`requested an update on task: "%s".`, e.Title)
	}
	return ""
}

// Derive builds the unread notification for e, if any. The id is left zero
// for the store to assign.
func Derive(e Event) (model.Notification, bool) {
	to, ok := Recipient(e)
	if !ok {
		return model.Notification{}, false
	}
	taskID := e.TaskID
	return model.Notification{
		UserID:    to,
		ActorID:   e.Actor,
		TaskID:    &taskID,
		Message:   Message(e),
		IsRead:    false,
		CreatedAt: e.At,
	}, true
}
