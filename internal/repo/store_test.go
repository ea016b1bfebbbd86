package repo_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BuzzLyutic/tasktrack/internal/model"
	"github.com/BuzzLyutic/tasktrack/internal/repo"
)

var base = time.Date(2024, 7, 20, 10, 0, 0, 0, time.UTC)

// testStore прогоняет общие проверки поведения против любой реализации Store.
func testStore(t *testing.T, newStore func(t *testing.T) repo.Store) {
	t.Run("users", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		a, err := s.CreateUser(ctx, model.User{Name: "Admin", Email: "Admin@Example.com", Role: model.RoleAdmin})
		require.NoError(t, err)
		b, err := s.CreateUser(ctx, model.User{Name: "Mike", Email: "mike@example.com", Role: model.RoleManager})
		require.NoError(t, err)
		assert.Equal(t, a.ID+1, b.ID)

		_, err = s.CreateUser(ctx, model.User{Name: "Copy", Email: "admin@example.com", Role: model.RoleUser})
		assert.ErrorIs(t, err, repo.ErrorConflict)

		got, err := s.GetUserByEmail(ctx, "ADMIN@example.com")
		require.NoError(t, err)
		assert.Equal(t, a.ID, got.ID)

		_, err = s.GetUser(ctx, 999)
		assert.ErrorIs(t, err, repo.ErrorNotFound)

		users, err := s.ListUsers(ctx)
		require.NoError(t, err)
		require.Len(t, users, 2)
		assert.Equal(t, a.ID, users[0].ID)
	})

	t.Run("explicit ids keep the counter ahead", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		u, err := s.CreateUser(ctx, model.User{ID: 7, Name: "Seven", Email: "7@example.com", Role: model.RoleUser})
		require.NoError(t, err)
		assert.Equal(t, int64(7), u.ID)

		next, err := s.CreateUser(ctx, model.User{Name: "Next", Email: "next@example.com", Role: model.RoleUser})
		require.NoError(t, err)
		assert.Equal(t, int64(8), next.ID)
	})

	t.Run("tasks", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		u1, u2 := seedUsers(t, s)

		t1 := mustTask(t, s, "one", u1, u2)
		t2 := mustTask(t, s, "two", u2, u2)
		t3 := mustTask(t, s, "three", u1, u1)

		mine, err := s.ListTasksByCreator(ctx, u1)
		require.NoError(t, err)
		assert.Equal(t, []int64{t1.ID, t3.ID}, taskIDs(mine))

		assigned, err := s.ListTasksByAssignee(ctx, u2)
		require.NoError(t, err)
		assert.Equal(t, []int64{t1.ID, t2.ID}, taskIDs(assigned))

		none, err := s.ListTasksByAssignee(ctx, 999)
		require.NoError(t, err)
		assert.Empty(t, none)

		later := base.Add(time.Hour)
		updated, err := s.UpdateTaskStatus(ctx, t1.ID, model.StatusInProgress, later)
		require.NoError(t, err)
		assert.Equal(t, model.StatusInProgress, updated.Status)
		assert.True(t, later.Equal(updated.UpdatedAt))

		got, err := s.GetTask(ctx, t1.ID)
		require.NoError(t, err)
		assert.Equal(t, model.StatusInProgress, got.Status)
		assert.Equal(t, "one", got.Title)

		_, err = s.UpdateTaskStatus(ctx, 999, model.StatusBlocked, later)
		assert.ErrorIs(t, err, repo.ErrorNotFound)
		_, err = s.GetTask(ctx, 999)
		assert.ErrorIs(t, err, repo.ErrorNotFound)
	})

	t.Run("task updates newest first", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		u1, u2 := seedUsers(t, s)
		task := mustTask(t, s, "A", u1, u2)

		open := model.StatusOpen
		for i, st := range []model.Status{model.StatusInProgress, model.StatusBlocked} {
			_, err := s.AppendTaskUpdate(ctx, model.TaskUpdate{
				TaskID: task.ID, UpdatedBy: u2, OldStatus: &open, NewStatus: st,
				Note: "n", CreatedAt: base.Add(time.Duration(i) * time.Minute),
			})
			require.NoError(t, err)
		}
		// та же метка времени: порядок решает id
		_, err := s.AppendTaskUpdate(ctx, model.TaskUpdate{
			TaskID: task.ID, UpdatedBy: u2, NewStatus: model.StatusCompleted,
			Note: "n", CreatedAt: base.Add(time.Minute),
		})
		require.NoError(t, err)

		updates, err := s.ListTaskUpdates(ctx, task.ID)
		require.NoError(t, err)
		require.Len(t, updates, 3)
		assert.Equal(t, model.StatusCompleted, updates[0].NewStatus)
		assert.Nil(t, updates[0].OldStatus)
		assert.Equal(t, model.StatusBlocked, updates[1].NewStatus)
		assert.Equal(t, model.StatusInProgress, updates[2].NewStatus)
		require.NotNil(t, updates[2].OldStatus)
		assert.Equal(t, model.StatusOpen, *updates[2].OldStatus)

		empty, err := s.ListTaskUpdates(ctx, 999)
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("notifications", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		u1, u2 := seedUsers(t, s)
		task := mustTask(t, s, "A", u1, u2)

		var ids []int64
		for i := 0; i < 4; i++ {
			var taskID *int64
			if i%2 == 0 {
				taskID = &task.ID
			}
			n, err := s.AppendNotification(ctx, model.Notification{
				UserID: u2, ActorID: u1, TaskID: taskID,
				Message: "m", CreatedAt: base.Add(time.Duration(i) * time.Minute),
			})
			require.NoError(t, err)
			ids = append(ids, n.ID)
		}

		list, err := s.ListNotifications(ctx, u2, 2)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, ids[3], list[0].ID)
		assert.Nil(t, list[0].TaskID)
		require.NotNil(t, list[1].TaskID)
		assert.Equal(t, task.ID, *list[1].TaskID)

		all, err := s.ListNotifications(ctx, u2, 0)
		require.NoError(t, err)
		assert.Len(t, all, 4)

		unread, err := s.CountUnread(ctx, u2)
		require.NoError(t, err)
		assert.Equal(t, 4, unread)

		marked, err := s.MarkRead(ctx, u2, []int64{ids[0], ids[1], 999})
		require.NoError(t, err)
		assert.Equal(t, 2, marked)

		marked, err = s.MarkRead(ctx, u2, []int64{ids[0]})
		require.NoError(t, err)
		assert.Zero(t, marked, "already read")

		marked, err = s.MarkRead(ctx, u1, []int64{ids[2]})
		require.NoError(t, err)
		assert.Zero(t, marked, "foreign notification")

		unread, err = s.CountUnread(ctx, u2)
		require.NoError(t, err)
		assert.Equal(t, 2, unread)

		other, err := s.ListNotifications(ctx, u1, 10)
		require.NoError(t, err)
		assert.Empty(t, other)
	})

	t.Run("sessions", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		u1, _ := seedUsers(t, s)

		require.NoError(t, s.CreateSession(ctx, model.Session{Token: "old", UserID: u1, ExpiresAt: base}))
		require.NoError(t, s.CreateSession(ctx, model.Session{Token: "new", UserID: u1, ExpiresAt: base.Add(time.Hour)}))
		assert.ErrorIs(t, s.CreateSession(ctx, model.Session{Token: "new", UserID: u1, ExpiresAt: base}), repo.ErrorConflict)

		got, err := s.GetSession(ctx, "new")
		require.NoError(t, err)
		assert.Equal(t, u1, got.UserID)

		removed, err := s.DeleteExpiredSessions(ctx, base)
		require.NoError(t, err)
		assert.Equal(t, 1, removed)

		_, err = s.GetSession(ctx, "old")
		assert.ErrorIs(t, err, repo.ErrorNotFound)

		require.NoError(t, s.DeleteSession(ctx, "new"))
		assert.ErrorIs(t, s.DeleteSession(ctx, "new"), repo.ErrorNotFound)
	})

	t.Run("atomic", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		u1, u2 := seedUsers(t, s)

		var created model.Task
		err := s.Atomic(ctx, func(tx repo.Store) error {
			var err error
			created, err = tx.CreateTask(ctx, newTask("inside", u1, u2))
			return err
		})
		require.NoError(t, err)

		err = s.View(ctx, func(tx repo.Store) error {
			got, err := tx.GetTask(ctx, created.ID)
			if err != nil {
				return err
			}
			assert.Equal(t, "inside", got.Title)
			return nil
		})
		require.NoError(t, err)

		boom := errors.New("boom")
		err = s.Atomic(ctx, func(tx repo.Store) error { return boom })
		assert.ErrorIs(t, err, boom)
	})

	t.Run("atomic rolls back on error", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		u1, u2 := seedUsers(t, s)

		err := s.Atomic(ctx, func(tx repo.Store) error {
			if _, err := tx.CreateUser(ctx, model.User{Name: "Temp", Email: "temp@example.com", Role: model.RoleUser}); err != nil {
				return err
			}
			if _, err := tx.CreateTask(ctx, newTask("doomed", u1, u2)); err != nil {
				return err
			}
			_, err := tx.AppendNotification(ctx, model.Notification{UserID: 999, ActorID: u1, Message: "m", CreatedAt: base})
			return err
		})
		assert.ErrorIs(t, err, repo.ErrorNotFound)

		tasks, err := s.ListTasksByCreator(ctx, u1)
		require.NoError(t, err)
		assert.Empty(t, tasks)

		users, err := s.ListUsers(ctx)
		require.NoError(t, err)
		assert.Len(t, users, 2)
		_, err = s.GetUserByEmail(ctx, "temp@example.com")
		assert.ErrorIs(t, err, repo.ErrorNotFound)

		notifications, err := s.ListNotifications(ctx, u2, 0)
		require.NoError(t, err)
		assert.Empty(t, notifications)
	})

	t.Run("references must exist", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		u1, u2 := seedUsers(t, s)
		task := mustTask(t, s, "A", u1, u2)
		missing := int64(999)

		_, err := s.CreateTask(ctx, newTask("orphan", u1, missing))
		assert.ErrorIs(t, err, repo.ErrorNotFound, "unknown assignee")
		_, err = s.CreateTask(ctx, newTask("orphan", missing, u2))
		assert.ErrorIs(t, err, repo.ErrorNotFound, "unknown creator")

		_, err = s.AppendTaskUpdate(ctx, model.TaskUpdate{TaskID: task.ID, UpdatedBy: missing, NewStatus: model.StatusBlocked, Note: "n", CreatedAt: base})
		assert.ErrorIs(t, err, repo.ErrorNotFound, "unknown updater")

		_, err = s.AppendNotification(ctx, model.Notification{UserID: u2, ActorID: missing, Message: "m", CreatedAt: base})
		assert.ErrorIs(t, err, repo.ErrorNotFound, "unknown actor")
		_, err = s.AppendNotification(ctx, model.Notification{UserID: u2, ActorID: u1, TaskID: &missing, Message: "m", CreatedAt: base})
		assert.ErrorIs(t, err, repo.ErrorNotFound, "unknown task")

		err = s.CreateSession(ctx, model.Session{Token: "t", UserID: missing, ExpiresAt: base})
		assert.ErrorIs(t, err, repo.ErrorNotFound, "unknown session user")

		notifications, err := s.ListNotifications(ctx, u2, 0)
		require.NoError(t, err)
		assert.Empty(t, notifications)
	})
}

func seedUsers(t *testing.T, s repo.Store) (int64, int64) {
	t.Helper()
	ctx := context.Background()
	a, err := s.CreateUser(ctx, model.User{Name: "Mike", Email: "mike@example.com", Role: model.RoleManager})
	require.NoError(t, err)
	b, err := s.CreateUser(ctx, model.User{Name: "Emma", Email: "emma@example.com", Role: model.RoleUser})
	require.NoError(t, err)
	return a.ID, b.ID
}

func newTask(title string, createdBy, assignedTo int64) model.Task {
	return model.Task{
		Title:        title,
		Priority:     model.PriorityMedium,
		Status:       model.StatusOpen,
		CreatedBy:    createdBy,
		AssignedTo:   assignedTo,
		RequiredTill: base.Add(72 * time.Hour),
		CreatedAt:    base,
		UpdatedAt:    base,
	}
}

func mustTask(t *testing.T, s repo.Store, title string, createdBy, assignedTo int64) model.Task {
	t.Helper()
	task, err := s.CreateTask(context.Background(), newTask(title, createdBy, assignedTo))
	require.NoError(t, err)
	return task
}

func taskIDs(tasks []model.Task) []int64 {
	ids := make([]int64, 0, len(tasks))
	for _, t := range tasks {
		ids = append(ids, t.ID)
	}
	return ids
}
