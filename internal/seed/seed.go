// Package seed загружает демонстрационные данные во встроенном YAML.
package seed

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"github.com/BuzzLyutic/tasktrack/internal/model"
	"github.com/BuzzLyutic/tasktrack/internal/repo"
)

//go:embed fixture.yaml
var demo []byte

type User struct {
	ID        int64      `yaml:"id"`
	Name      string     `yaml:"name"`
	Email     string     `yaml:"email"`
	Role      model.Role `yaml:"role"`
	AvatarURL string     `yaml:"avatar_url"`
	Password  string     `yaml:"password"`
}

type Task struct {
	ID           int64          `yaml:"id"`
	Title        string         `yaml:"title"`
	Description  string         `yaml:"description"`
	Priority     model.Priority `yaml:"priority"`
	Status       model.Status   `yaml:"status"`
	CreatedBy    int64          `yaml:"created_by"`
	AssignedTo   int64          `yaml:"assigned_to"`
	RequiredTill time.Time      `yaml:"required_till"`
	CreatedAt    time.Time      `yaml:"created_at"`
	UpdatedAt    time.Time      `yaml:"updated_at"`
}

type Update struct {
	ID        int64         `yaml:"id"`
	TaskID    int64         `yaml:"task_id"`
	UpdatedBy int64         `yaml:"updated_by"`
	OldStatus *model.Status `yaml:"old_status"`
	NewStatus model.Status  `yaml:"new_status"`
	Note      string        `yaml:"note"`
	CreatedAt time.Time     `yaml:"created_at"`
}

type Notification struct {
	ID        int64     `yaml:"id"`
	UserID    int64     `yaml:"user_id"`
	ActorID   int64     `yaml:"actor_id"`
	TaskID    *int64    `yaml:"task_id"`
	Message   string    `yaml:"message"`
	IsRead    bool      `yaml:"is_read"`
	CreatedAt time.Time `yaml:"created_at"`
}

type Fixture struct {
	Users         []User         `yaml:"users"`
	Tasks         []Task         `yaml:"tasks"`
	Updates       []Update       `yaml:"updates"`
	Notifications []Notification `yaml:"notifications"`
}

type Summary struct {
	Users, Tasks, Updates, Notifications int
	Skipped                              bool
}

func (s Summary) String() string {
	if s.Skipped {
		return "store already populated, fixtures skipped"
	}
	return fmt.Sprintf("%d users, %d tasks, %d updates, %d notifications",
		s.Users, s.Tasks, s.Updates, s.Notifications)
}

// Demo возвращает встроенный набор фикстур.
func Demo() (Fixture, error) {
	return Parse(demo)
}

func Parse(data []byte) (Fixture, error) {
	var f Fixture
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return f, errors.Wrap(err, "failed to decode fixtures")
	}
	return f, f.Validate()
}

// Validate проверяет ссылки между записями и допустимость значений.
func (f Fixture) Validate() error {
	users := make(map[int64]bool, len(f.Users))
	emails := make(map[string]bool, len(f.Users))
	for _, u := range f.Users {
		email := strings.ToLower(strings.TrimSpace(u.Email))
		if email == "" || emails[email] {
			return errors.Errorf("user %d: missing or duplicate email %q", u.ID, u.Email)
		}
		emails[email] = true
		if u.ID <= 0 || users[u.ID] {
			return errors.Errorf("user %q: missing or duplicate id %d", u.Email, u.ID)
		}
		if !u.Role.Valid() {
			return errors.Errorf("user %d: unknown role %q", u.ID, u.Role)
		}
		if u.Password == "" {
			return errors.Errorf("user %d: password is required", u.ID)
		}
		users[u.ID] = true
	}

	tasks := make(map[int64]bool, len(f.Tasks))
	for _, t := range f.Tasks {
		switch {
		case t.ID <= 0 || tasks[t.ID]:
			return errors.Errorf("task %q: missing or duplicate id %d", t.Title, t.ID)
		case !t.Priority.Valid():
			return errors.Errorf("task %d: unknown priority %q", t.ID, t.Priority)
		case !t.Status.Valid():
			return errors.Errorf("task %d: unknown status %q", t.ID, t.Status)
		case !users[t.CreatedBy] || !users[t.AssignedTo]:
			return errors.Errorf("task %d: references unknown user", t.ID)
		}
		tasks[t.ID] = true
	}

	for _, u := range f.Updates {
		switch {
		case !tasks[u.TaskID]:
			return errors.Errorf("update %d: unknown task %d", u.ID, u.TaskID)
		case !users[u.UpdatedBy]:
			return errors.Errorf("update %d: unknown user %d", u.ID, u.UpdatedBy)
		case !u.NewStatus.Valid() || (u.OldStatus != nil && !u.OldStatus.Valid()):
			return errors.Errorf("update %d: unknown status", u.ID)
		}
	}

	for _, n := range f.Notifications {
		switch {
		case !users[n.UserID] || !users[n.ActorID]:
			return errors.Errorf("notification %d: references unknown user", n.ID)
		case n.TaskID != nil && !tasks[*n.TaskID]:
			return errors.Errorf("notification %d: unknown task %d", n.ID, *n.TaskID)
		}
	}
	return nil
}

// Load импортирует фикстуры с сохранением id. Если в хранилище уже есть
// пользователи, ничего не делает.
func Load(ctx context.Context, store repo.Store, f Fixture) (Summary, error) {
	return load(ctx, store, f, bcrypt.DefaultCost)
}

func load(ctx context.Context, store repo.Store, f Fixture, hashCost int) (Summary, error) {
	// Хешируем до транзакции: bcrypt медленный
	hashes := make(map[int64]string, len(f.Users))
	for _, u := range f.Users {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), hashCost)
		if err != nil {
			return Summary{}, errors.Wrapf(err, "hash password for user %d", u.ID)
		}
		hashes[u.ID] = string(hash)
	}

	var sum Summary
	err := store.Atomic(ctx, func(tx repo.Store) error {
		existing, err := tx.ListUsers(ctx)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			sum.Skipped = true
			return nil
		}

		for _, u := range f.Users {
			if _, err := tx.CreateUser(ctx, model.User{
				ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role,
				AvatarURL: u.AvatarURL, PasswordHash: hashes[u.ID],
			}); err != nil {
				return errors.Wrapf(err, "user %d", u.ID)
			}
			sum.Users++
		}
		for _, t := range f.Tasks {
			if _, err := tx.CreateTask(ctx, model.Task{
				ID: t.ID, Title: t.Title, Description: t.Description,
				Priority: t.Priority, Status: t.Status,
				CreatedBy: t.CreatedBy, AssignedTo: t.AssignedTo,
				RequiredTill: t.RequiredTill, CreatedAt: t.CreatedAt, UpdatedAt: t.UpdatedAt,
			}); err != nil {
				return errors.Wrapf(err, "task %d", t.ID)
			}
			sum.Tasks++
		}
		for _, u := range f.Updates {
			if _, err := tx.AppendTaskUpdate(ctx, model.TaskUpdate{
				ID: u.ID, TaskID: u.TaskID, UpdatedBy: u.UpdatedBy,
				OldStatus: u.OldStatus, NewStatus: u.NewStatus,
				Note: u.Note, CreatedAt: u.CreatedAt,
			}); err != nil {
				return errors.Wrapf(err, "update %d", u.ID)
			}
			sum.Updates++
		}
		for _, n := range f.Notifications {
			if _, err := tx.AppendNotification(ctx, model.Notification{
				ID: n.ID, UserID: n.UserID, ActorID: n.ActorID, TaskID: n.TaskID,
				Message: n.Message, IsRead: n.IsRead, CreatedAt: n.CreatedAt,
			}); err != nil {
				return errors.Wrapf(err, "notification %d", n.ID)
			}
			sum.Notifications++
		}
		return nil
	})
	return sum, err
}
