package repo

import (
	"context"
	"errors"
	"time"

	"github.com/BuzzLyutic/tasktrack/internal/model"
)

var (
	ErrorNotFound = errors.New("not found")
	ErrorConflict = errors.New("conflict")
)

// Store определяет хранилище пользователей, задач, истории статусов и уведомлений.
//
// Atomic выполняет fn эксклюзивно: никакой другой вызов не видит частично
// применённых изменений. View дает fn согласованный снимок для чтения.
// Store, переданный в fn, нельзя использовать после возврата из fn.
type Store interface {
	Atomic(ctx context.Context, fn func(Store) error) error
	View(ctx context.Context, fn func(Store) error) error

	CreateUser(ctx context.Context, u model.User) (model.User, error)
	GetUser(ctx context.Context, id int64) (model.User, error)
	GetUserByEmail(ctx context.Context, email string) (model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)

	CreateTask(ctx context.Context, t model.Task) (model.Task, error)
	GetTask(ctx context.Context, id int64) (model.Task, error)
	UpdateTaskStatus(ctx context.Context, id int64, status model.Status, at time.Time) (model.Task, error)
	ListTasksByCreator(ctx context.Context, userID int64) ([]model.Task, error)
	ListTasksByAssignee(ctx context.Context, userID int64) ([]model.Task, error)

	AppendTaskUpdate(ctx context.Context, u model.TaskUpdate) (model.TaskUpdate, error)
	ListTaskUpdates(ctx context.Context, taskID int64) ([]model.TaskUpdate, error)

	AppendNotification(ctx context.Context, n model.Notification) (model.Notification, error)
	ListNotifications(ctx context.Context, userID int64, limit int) ([]model.Notification, error)
	CountUnread(ctx context.Context, userID int64) (int, error)
	MarkRead(ctx context.Context, userID int64, ids []int64) (int, error)

	CreateSession(ctx context.Context, s model.Session) error
	GetSession(ctx context.Context, token string) (model.Session, error)
	DeleteSession(ctx context.Context, token string) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int, error)
}
