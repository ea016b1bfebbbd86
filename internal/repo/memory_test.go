package repo_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BuzzLyutic/tasktrack/internal/model"
	"github.com/BuzzLyutic/tasktrack/internal/repo"
)

func TestMemoryStore(t *testing.T) {
	testStore(t, func(t *testing.T) repo.Store { return repo.NewMemoryStore() })
}

func TestMemoryStore_ConcurrentCreate(t *testing.T) {
	s := repo.NewMemoryStore()
	ctx := context.Background()
	u1, u2 := seedUsers(t, s)

	const goroutines = 50
	var wg sync.WaitGroup
	ids := make(chan int64, goroutines)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var task model.Task
			err := s.Atomic(ctx, func(tx repo.Store) error {
				var err error
				task, err = tx.CreateTask(ctx, newTask(fmt.Sprintf("task %d", i), u1, u2))
				return err
			})
			assert.NoError(t, err)
			ids <- task.ID
		}(i)
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]bool)
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
	}
	assert.Len(t, seen, goroutines)

	assigned, err := s.ListTasksByAssignee(ctx, u2)
	require.NoError(t, err)
	assert.Len(t, assigned, goroutines)
}

func TestMemoryStore_ListsAreCopies(t *testing.T) {
	s := repo.NewMemoryStore()
	ctx := context.Background()
	u1, u2 := seedUsers(t, s)
	task := mustTask(t, s, "A", u1, u2)

	_, err := s.AppendTaskUpdate(ctx, model.TaskUpdate{TaskID: task.ID, UpdatedBy: u2, NewStatus: model.StatusBlocked, Note: "n", CreatedAt: base})
	require.NoError(t, err)

	first, err := s.ListTaskUpdates(ctx, task.ID)
	require.NoError(t, err)
	first[0].Note = "changed"

	second, err := s.ListTaskUpdates(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "n", second[0].Note)

	_, err = s.AppendTaskUpdate(ctx, model.TaskUpdate{TaskID: 999, UpdatedBy: u2, NewStatus: model.StatusBlocked, Note: "n", CreatedAt: base})
	assert.ErrorIs(t, err, repo.ErrorNotFound)
}
