package repo

import (
	"context"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/BuzzLyutic/tasktrack/internal/model"
)

// MemoryStore хранит все записи в памяти процесса под одним RWMutex.
type MemoryStore struct {
	mu    sync.RWMutex
	state *memState
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: newMemState()}
}

// Atomic работает над копией состояния и публикует ее только при успехе,
// поэтому ошибка в fn не оставляет частичных изменений.
func (m *MemoryStore) Atomic(ctx context.Context, fn func(Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	staged := m.state.clone()
	if err := fn(staged); err != nil {
		return err
	}
	m.state = staged
	return nil
}

func (m *MemoryStore) View(ctx context.Context, fn func(Store) error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fn(m.state)
}

func (m *MemoryStore) CreateUser(ctx context.Context, u model.User) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.CreateUser(ctx, u)
}

func (m *MemoryStore) GetUser(ctx context.Context, id int64) (model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.GetUser(ctx, id)
}

func (m *MemoryStore) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.GetUserByEmail(ctx, email)
}

func (m *MemoryStore) ListUsers(ctx context.Context) ([]model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.ListUsers(ctx)
}

func (m *MemoryStore) CreateTask(ctx context.Context, t model.Task) (model.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.CreateTask(ctx, t)
}

func (m *MemoryStore) GetTask(ctx context.Context, id int64) (model.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.GetTask(ctx, id)
}

func (m *MemoryStore) UpdateTaskStatus(ctx context.Context, id int64, status model.Status, at time.Time) (model.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.UpdateTaskStatus(ctx, id, status, at)
}

func (m *MemoryStore) ListTasksByCreator(ctx context.Context, userID int64) ([]model.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.ListTasksByCreator(ctx, userID)
}

func (m *MemoryStore) ListTasksByAssignee(ctx context.Context, userID int64) ([]model.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.ListTasksByAssignee(ctx, userID)
}

func (m *MemoryStore) AppendTaskUpdate(ctx context.Context, u model.TaskUpdate) (model.TaskUpdate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.AppendTaskUpdate(ctx, u)
}

func (m *MemoryStore) ListTaskUpdates(ctx context.Context, taskID int64) ([]model.TaskUpdate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.ListTaskUpdates(ctx, taskID)
}

func (m *MemoryStore) AppendNotification(ctx context.Context, n model.Notification) (model.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.AppendNotification(ctx, n)
}

func (m *MemoryStore) ListNotifications(ctx context.Context, userID int64, limit int) ([]model.Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.ListNotifications(ctx, userID, limit)
}

func (m *MemoryStore) CountUnread(ctx context.Context, userID int64) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.CountUnread(ctx, userID)
}

func (m *MemoryStore) MarkRead(ctx context.Context, userID int64, ids []int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.MarkRead(ctx, userID, ids)
}

func (m *MemoryStore) CreateSession(ctx context.Context, s model.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.CreateSession(ctx, s)
}

func (m *MemoryStore) GetSession(ctx context.Context, token string) (model.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.GetSession(ctx, token)
}

func (m *MemoryStore) DeleteSession(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.DeleteSession(ctx, token)
}

func (m *MemoryStore) DeleteExpiredSessions(ctx context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.DeleteExpiredSessions(ctx, now)
}

// memState is the unlocked body of MemoryStore. Callers hold MemoryStore.mu.
type memState struct {
	users  map[int64]model.User
	emails map[string]int64

	tasks      map[int64]model.Task
	byCreator  map[int64][]int64
	byAssignee map[int64][]int64

	updates map[int64][]model.TaskUpdate

	notifications map[int64]model.Notification
	byRecipient   map[int64][]int64

	sessions map[string]model.Session

	lastUserID         int64
	lastTaskID         int64
	lastUpdateID       int64
	lastNotificationID int64
}

func newMemState() *memState {
	return &memState{
		users:         make(map[int64]model.User),
		emails:        make(map[string]int64),
		tasks:         make(map[int64]model.Task),
		byCreator:     make(map[int64][]int64),
		byAssignee:    make(map[int64][]int64),
		updates:       make(map[int64][]model.TaskUpdate),
		notifications: make(map[int64]model.Notification),
		byRecipient:   make(map[int64][]int64),
		sessions:      make(map[string]model.Session),
	}
}

// clone копирует все карты и срезы индексов; записи хранятся по значению.
func (s *memState) clone() *memState {
	c := *s
	c.users = maps.Clone(s.users)
	c.emails = maps.Clone(s.emails)
	c.tasks = maps.Clone(s.tasks)
	c.byCreator = cloneIndex(s.byCreator)
	c.byAssignee = cloneIndex(s.byAssignee)
	c.updates = make(map[int64][]model.TaskUpdate, len(s.updates))
	for id, list := range s.updates {
		c.updates[id] = slices.Clone(list)
	}
	c.notifications = maps.Clone(s.notifications)
	c.byRecipient = cloneIndex(s.byRecipient)
	c.sessions = maps.Clone(s.sessions)
	return &c
}

func cloneIndex(idx map[int64][]int64) map[int64][]int64 {
	out := make(map[int64][]int64, len(idx))
	for k, ids := range idx {
		out[k] = slices.Clone(ids)
	}
	return out
}

// Already under the store lock, nested units run inline.
func (s *memState) Atomic(ctx context.Context, fn func(Store) error) error { return fn(s) }
func (s *memState) View(ctx context.Context, fn func(Store) error) error   { return fn(s) }

// nextID returns id when the caller supplied one (fixture import) and keeps
// the counter ahead of it; otherwise it hands out the next unused integer.
func nextID(last *int64, id int64) int64 {
	if id == 0 {
		*last++
		return *last
	}
	if id > *last {
		*last = id
	}
	return id
}

func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *memState) CreateUser(ctx context.Context, u model.User) (model.User, error) {
	key := emailKey(u.Email)
	if _, ok := s.emails[key]; ok {
		return model.User{}, ErrorConflict
	}
	if _, ok := s.users[u.ID]; ok && u.ID != 0 {
		return model.User{}, ErrorConflict
	}
	u.ID = nextID(&s.lastUserID, u.ID)
	s.users[u.ID] = u
	s.emails[key] = u.ID
	return u, nil
}

func (s *memState) GetUser(ctx context.Context, id int64) (model.User, error) {
	u, ok := s.users[id]
	if !ok {
		return model.User{}, ErrorNotFound
	}
	return u, nil
}

func (s *memState) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	id, ok := s.emails[emailKey(email)]
	if !ok {
		return model.User{}, ErrorNotFound
	}
	return s.users[id], nil
}

func (s *memState) ListUsers(ctx context.Context) ([]model.User, error) {
	users := make([]model.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

// requireUsers повторяет внешние ключи postgres-схемы.
func (s *memState) requireUsers(ids ...int64) error {
	for _, id := range ids {
		if _, ok := s.users[id]; !ok {
			return ErrorNotFound
		}
	}
	return nil
}

func (s *memState) CreateTask(ctx context.Context, t model.Task) (model.Task, error) {
	if err := s.requireUsers(t.CreatedBy, t.AssignedTo); err != nil {
		return model.Task{}, err
	}
	if _, ok := s.tasks[t.ID]; ok && t.ID != 0 {
		return model.Task{}, ErrorConflict
	}
	t.ID = nextID(&s.lastTaskID, t.ID)
	s.tasks[t.ID] = t
	s.byCreator[t.CreatedBy] = append(s.byCreator[t.CreatedBy], t.ID)
	s.byAssignee[t.AssignedTo] = append(s.byAssignee[t.AssignedTo], t.ID)
	return t, nil
}

func (s *memState) GetTask(ctx context.Context, id int64) (model.Task, error) {
	t, ok := s.tasks[id]
	if !ok {
		return model.Task{}, ErrorNotFound
	}
	return t, nil
}

func (s *memState) UpdateTaskStatus(ctx context.Context, id int64, status model.Status, at time.Time) (model.Task, error) {
	t, ok := s.tasks[id]
	if !ok {
		return model.Task{}, ErrorNotFound
	}
	t.Status = status
	t.UpdatedAt = at
	s.tasks[id] = t
	return t, nil
}

func (s *memState) ListTasksByCreator(ctx context.Context, userID int64) ([]model.Task, error) {
	return s.collectTasks(s.byCreator[userID]), nil
}

func (s *memState) ListTasksByAssignee(ctx context.Context, userID int64) ([]model.Task, error) {
	return s.collectTasks(s.byAssignee[userID]), nil
}

// Индексы заполняются в порядке вставки, его и сохраняем.
func (s *memState) collectTasks(ids []int64) []model.Task {
	tasks := make([]model.Task, 0, len(ids))
	for _, id := range ids {
		tasks = append(tasks, s.tasks[id])
	}
	return tasks
}

func (s *memState) AppendTaskUpdate(ctx context.Context, u model.TaskUpdate) (model.TaskUpdate, error) {
	if _, ok := s.tasks[u.TaskID]; !ok {
		return model.TaskUpdate{}, ErrorNotFound
	}
	if err := s.requireUsers(u.UpdatedBy); err != nil {
		return model.TaskUpdate{}, err
	}
	u.ID = nextID(&s.lastUpdateID, u.ID)
	s.updates[u.TaskID] = append(s.updates[u.TaskID], u)
	return u, nil
}

func (s *memState) ListTaskUpdates(ctx context.Context, taskID int64) ([]model.TaskUpdate, error) {
	updates := append([]model.TaskUpdate(nil), s.updates[taskID]...)
	sort.SliceStable(updates, func(i, j int) bool {
		if !updates[i].CreatedAt.Equal(updates[j].CreatedAt) {
			return updates[i].CreatedAt.After(updates[j].CreatedAt)
		}
		return updates[i].ID > updates[j].ID
	})
	return updates, nil
}

func (s *memState) AppendNotification(ctx context.Context, n model.Notification) (model.Notification, error) {
	if _, ok := s.notifications[n.ID]; ok && n.ID != 0 {
		return model.Notification{}, ErrorConflict
	}
	if err := s.requireUsers(n.UserID, n.ActorID); err != nil {
		return model.Notification{}, err
	}
	if n.TaskID != nil {
		if _, ok := s.tasks[*n.TaskID]; !ok {
			return model.Notification{}, ErrorNotFound
		}
	}
	n.ID = nextID(&s.lastNotificationID, n.ID)
	s.notifications[n.ID] = n
	s.byRecipient[n.UserID] = append(s.byRecipient[n.UserID], n.ID)
	return n, nil
}

func (s *memState) ListNotifications(ctx context.Context, userID int64, limit int) ([]model.Notification, error) {
	ids := s.byRecipient[userID]
	list := make([]model.Notification, 0, len(ids))
	for _, id := range ids {
		list = append(list, s.notifications[id])
	}
	sort.SliceStable(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.After(list[j].CreatedAt)
		}
		return list[i].ID > list[j].ID
	})
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

func (s *memState) CountUnread(ctx context.Context, userID int64) (int, error) {
	count := 0
	for _, id := range s.byRecipient[userID] {
		if !s.notifications[id].IsRead {
			count++
		}
	}
	return count, nil
}

func (s *memState) MarkRead(ctx context.Context, userID int64, ids []int64) (int, error) {
	marked := 0
	for _, id := range ids {
		n, ok := s.notifications[id]
		if !ok || n.UserID != userID || n.IsRead {
			continue
		}
		n.IsRead = true
		s.notifications[id] = n
		marked++
	}
	return marked, nil
}

func (s *memState) CreateSession(ctx context.Context, sess model.Session) error {
	if _, ok := s.sessions[sess.Token]; ok {
		return ErrorConflict
	}
	if err := s.requireUsers(sess.UserID); err != nil {
		return err
	}
	s.sessions[sess.Token] = sess
	return nil
}

func (s *memState) GetSession(ctx context.Context, token string) (model.Session, error) {
	sess, ok := s.sessions[token]
	if !ok {
		return model.Session{}, ErrorNotFound
	}
	return sess, nil
}

func (s *memState) DeleteSession(ctx context.Context, token string) error {
	if _, ok := s.sessions[token]; !ok {
		return ErrorNotFound
	}
	delete(s.sessions, token)
	return nil
}

func (s *memState) DeleteExpiredSessions(ctx context.Context, now time.Time) (int, error) {
	removed := 0
	for token, sess := range s.sessions {
		if sess.Expired(now) {
			delete(s.sessions, token)
			removed++
		}
	}
	return removed, nil
}
