package model

import "time"

type Priority string

const (
	PriorityLow      Priority = "Low"
	PriorityMedium   Priority = "Medium"
	PriorityHigh     Priority = "High"
	PriorityCritical Priority = "Critical"
)

// Priorities lists every priority in ascending order.
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical}

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

type Status string

const (
	StatusOpen       Status = "Open"
	StatusInProgress Status = "In Progress"
	StatusBlocked    Status = "Blocked"
	StatusCompleted  Status = "Completed"
	StatusCancelled  Status = "Cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusBlocked, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

type Task struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Priority     Priority  `json:"priority"`
	Status       Status    `json:"status"`
	CreatedBy    int64     `json:"created_by"`
	AssignedTo   int64     `json:"assigned_to"`
	RequiredTill time.Time `json:"required_till"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TaskUpdate is an append-only record of a single status transition.
// OldStatus is nil only for a creation entry, which the lifecycle never writes today.
type TaskUpdate struct {
	ID        int64     `json:"id"`
	TaskID    int64     `json:"task_id"`
	UpdatedBy int64     `json:"updated_by"`
	OldStatus *Status   `json:"old_status"`
	NewStatus Status    `json:"new_status"`
	Note      string    `json:"note"`
	CreatedAt time.Time `json:"created_at"`
}

// UserTasks splits a user's tasks by the role they play in them.
// A task the user assigned to themselves appears in both lists.
type UserTasks struct {
	MyTasks      []Task `json:"myTasks"`
	AssignedToMe []Task `json:"assignedToMe"`
}

type TaskDetail struct {
	Task    Task         `json:"task"`
	Updates []TaskUpdate `json:"updates"`
}
