package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BuzzLyutic/tasktrack/internal/fanout"
	"github.com/BuzzLyutic/tasktrack/internal/metrics"
	"github.com/BuzzLyutic/tasktrack/internal/model"
	"github.com/BuzzLyutic/tasktrack/internal/repo"
)

const (
	DefaultNotificationLimit = 10
	MaxNotificationLimit     = 100
)

type CreateTaskInput struct {
	Title        string         `json:"title"`
	Description  string         `json:"description"`
	Priority     model.Priority `json:"priority"`
	AssignedTo   int64          `json:"assigned_to"`
	RequiredTill time.Time      `json:"required_till"`
	CreatedBy    int64          `json:"-"`
}

type TransitionInput struct {
	TaskID    int64        `json:"-"`
	NewStatus model.Status `json:"new_status"`
	Note      string       `json:"note"`
	UpdatedBy int64        `json:"-"`
}

// TaskService applies task lifecycle changes and answers the read queries
// over tasks and notifications.
type TaskService struct {
	store  repo.Store
	logger *zap.Logger
	now    func() time.Time
}

func NewTaskService(store repo.Store, logger *zap.Logger) *TaskService {
	return &TaskService{
		store:  store,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *TaskService) Create(ctx context.Context, in CreateTaskInput) (model.Task, error) {
	if err := s.validateCreate(in); err != nil { // Валидация до любых изменений
		return model.Task{}, err
	}

	var (
		created  model.Task
		notified bool
	)
	err := s.store.Atomic(ctx, func(tx repo.Store) error {
		if err := requireUser(ctx, tx, in.CreatedBy); err != nil {
			return err
		}
		if err := requireUser(ctx, tx, in.AssignedTo); err != nil {
			return err
		}

		now := s.now()
		task, err := tx.CreateTask(ctx, model.Task{
			Title:        strings.TrimSpace(in.Title),
			Description:  in.Description,
			Priority:     in.Priority,
			Status:       model.StatusOpen,
			CreatedBy:    in.CreatedBy,
			AssignedTo:   in.AssignedTo,
			RequiredTill: in.RequiredTill,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
		if err != nil {
			return err
		}
		created = task

		notified, err = emit(ctx, tx, fanout.Event{
			Kind:     fanout.TaskCreated,
			TaskID:   task.ID,
			Title:    task.Title,
			Actor:    in.CreatedBy,
			Creator:  task.CreatedBy,
			Assignee: task.AssignedTo,
			At:       now,
		})
		return err
	})
	if err != nil {
		return model.Task{}, err
	}

	metrics.TasksCreatedTotal.WithLabelValues(string(created.Priority)).Inc()
	if notified {
		metrics.NotificationsTotal.WithLabelValues(string(fanout.TaskCreated)).Inc()
	}
	s.logger.Info("task created",
		zap.Int64("task_id", created.ID),
		zap.Int64("created_by", created.CreatedBy),
		zap.Int64("assigned_to", created.AssignedTo),
	)
	return created, nil
}

// Transition moves a task to in.NewStatus and records why. Any status may
// follow any other, including itself.
func (s *TaskService) Transition(ctx context.Context, in TransitionInput) (model.TaskUpdate, error) {
	if strings.TrimSpace(in.Note) == "" {
		return model.TaskUpdate{}, validationf("note is required")
	}
	if !in.NewStatus.Valid() {
		return model.TaskUpdate{}, validationf("unknown status %q", in.NewStatus)
	}

	var (
		update   model.TaskUpdate
		notified bool
	)
	err := s.store.Atomic(ctx, func(tx repo.Store) error {
		task, err := tx.GetTask(ctx, in.TaskID)
		if err != nil {
			return fmt.Errorf("task %d: %w", in.TaskID, err)
		}
		if err := requireUser(ctx, tx, in.UpdatedBy); err != nil {
			return err
		}

		now := s.now()
		old := task.Status
		if _, err := tx.UpdateTaskStatus(ctx, task.ID, in.NewStatus, now); err != nil {
			return err
		}

		update, err = tx.AppendTaskUpdate(ctx, model.TaskUpdate{
			TaskID:    task.ID,
			UpdatedBy: in.UpdatedBy,
			OldStatus: &old,
			NewStatus: in.NewStatus,
			Note:      strings.TrimSpace(in.Note),
			CreatedAt: now,
		})
		if err != nil {
			return err
		}

		notified, err = emit(ctx, tx, fanout.Event{
			Kind:      fanout.StatusChanged,
			TaskID:    task.ID,
			Title:     task.Title,
			Actor:     in.UpdatedBy,
			Creator:   task.CreatedBy,
			Assignee:  task.AssignedTo,
			NewStatus: in.NewStatus,
			At:        now,
		})
		return err
	})
	if err != nil {
		return model.TaskUpdate{}, err
	}

	metrics.TransitionsTotal.WithLabelValues(string(update.NewStatus)).Inc()
	if notified {
		metrics.NotificationsTotal.WithLabelValues(string(fanout.StatusChanged)).Inc()
	}
	s.logger.Info("task status changed",
		zap.Int64("task_id", update.TaskID),
		zap.String("old_status", string(*update.OldStatus)),
		zap.String("new_status", string(update.NewStatus)),
		zap.Int64("updated_by", update.UpdatedBy),
	)
	return update, nil
}

// RequestUpdate nudges the assignee of a task. It changes no task state.
func (s *TaskService) RequestUpdate(ctx context.Context, taskID, requesterID int64) error {
	err := s.store.Atomic(ctx, func(tx repo.Store) error {
		task, err := tx.GetTask(ctx, taskID)
		if err != nil {
			return fmt.Errorf("task %d: %w", taskID, err)
		}
		if err := requireUser(ctx, tx, requesterID); err != nil {
			return err
		}
		if requesterID == task.AssignedTo {
			return validationf("cannot request update from yourself")
		}

		_, err = emit(ctx, tx, fanout.Event{
			Kind:     fanout.UpdateRequested,
			TaskID:   task.ID,
			Title:    task.Title,
			Actor:    requesterID,
			Creator:  task.CreatedBy,
			Assignee: task.AssignedTo,
			At:       s.now(),
		})
		return err
	})
	if err != nil {
		return err
	}

	metrics.UpdateRequestsTotal.Inc()
	metrics.NotificationsTotal.WithLabelValues(string(fanout.UpdateRequested)).Inc()
	s.logger.Info("task update requested", zap.Int64("task_id", taskID), zap.Int64("requester", requesterID))
	return nil
}

// TasksForUser returns the tasks userID created and the tasks assigned to
// them, each in creation order.
func (s *TaskService) TasksForUser(ctx context.Context, userID int64) (model.UserTasks, error) {
	var out model.UserTasks
	err := s.store.View(ctx, func(tx repo.Store) error {
		var err error
		if out.MyTasks, err = tx.ListTasksByCreator(ctx, userID); err != nil {
			return err
		}
		out.AssignedToMe, err = tx.ListTasksByAssignee(ctx, userID)
		return err
	})
	return out, err
}

// Detail returns the task with its history, most recent update first.
func (s *TaskService) Detail(ctx context.Context, taskID int64) (model.TaskDetail, error) {
	var out model.TaskDetail
	err := s.store.View(ctx, func(tx repo.Store) error {
		task, err := tx.GetTask(ctx, taskID)
		if err != nil {
			return fmt.Errorf("task %d: %w", taskID, err)
		}
		out.Task = task
		out.Updates, err = tx.ListTaskUpdates(ctx, taskID)
		return err
	})
	return out, err
}

// Notifications returns up to limit of the user's most recent notifications,
// read or not, and the unread count over all of them.
func (s *TaskService) Notifications(ctx context.Context, userID int64, limit int) (model.NotificationPage, error) {
	if limit <= 0 || limit > MaxNotificationLimit {
		limit = DefaultNotificationLimit
	}

	var page model.NotificationPage
	err := s.store.View(ctx, func(tx repo.Store) error {
		var err error
		if page.UnreadCount, err = tx.CountUnread(ctx, userID); err != nil {
			return err
		}
		page.Notifications, err = tx.ListNotifications(ctx, userID, limit)
		return err
	})
	return page, err
}

// MarkRead flags the given notifications as read. Ids that are unknown or
// addressed to someone else are skipped.
func (s *TaskService) MarkRead(ctx context.Context, userID int64, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	var marked int
	err := s.store.Atomic(ctx, func(tx repo.Store) error {
		var err error
		marked, err = tx.MarkRead(ctx, userID, ids)
		return err
	})
	if err != nil {
		return err
	}

	s.logger.Debug("notifications marked read",
		zap.Int64("user_id", userID),
		zap.Int("requested", len(ids)),
		zap.Int("marked", marked),
	)
	return nil
}

func (s *TaskService) validateCreate(in CreateTaskInput) error {
	if strings.TrimSpace(in.Title) == "" {
		return validationf("title is required")
	}
	if !in.Priority.Valid() {
		return validationf("unknown priority %q", in.Priority)
	}
	if in.RequiredTill.IsZero() {
		return validationf("required_till is required")
	}
	return nil
}

func requireUser(ctx context.Context, tx repo.Store, id int64) error {
	if _, err := tx.GetUser(ctx, id); err != nil {
		return fmt.Errorf("user %d: %w", id, err)
	}
	return nil
}

// emit appends the notification derived from e, if the event produces one.
func emit(ctx context.Context, tx repo.Store, e fanout.Event) (bool, error) {
	n, ok := fanout.Derive(e)
	if !ok {
		return false, nil
	}
	if _, err := tx.AppendNotification(ctx, n); err != nil {
		return false, err
	}
	return true, nil
}
