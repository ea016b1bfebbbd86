package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/BuzzLyutic/tasktrack/internal/metrics"
	"github.com/BuzzLyutic/tasktrack/internal/model"
	"github.com/BuzzLyutic/tasktrack/internal/repo"
)

type RegisterInput struct {
	Name     string     `json:"name"`
	Email    string     `json:"email"`
	Role     model.Role `json:"role"`
	Password string     `json:"password"`
}

type LoginResult struct {
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expires_at"`
	User      model.User `json:"user"`
}

// UserService is the user directory plus bearer-token sessions.
type UserService struct {
	store      repo.Store
	logger     *zap.Logger
	sessionTTL time.Duration
	hashCost   int
	now        func() time.Time
}

func NewUserService(store repo.Store, logger *zap.Logger, sessionTTL time.Duration) *UserService {
	return &UserService{
		store:      store,
		logger:     logger,
		sessionTTL: sessionTTL,
		hashCost:   bcrypt.DefaultCost,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *UserService) Register(ctx context.Context, in RegisterInput) (model.User, error) {
	name := strings.TrimSpace(in.Name)
	email := strings.TrimSpace(in.Email)
	if in.Role == "" {
		in.Role = model.RoleUser
	}
	switch {
	case name == "":
		return model.User{}, validationf("name is required")
	case email == "" || !strings.Contains(email, "@"):
		return model.User{}, validationf("a valid email is required")
	case in.Password == "":
		return model.User{}, validationf("password is required")
	case !in.Role.Valid():
		return model.User{}, validationf("unknown role %q", in.Role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.hashCost)
	if err != nil {
		return model.User{}, fmt.Errorf("hash password: %w", err)
	}

	var created model.User
	err = s.store.Atomic(ctx, func(tx repo.Store) error {
		if _, err := tx.GetUserByEmail(ctx, email); err == nil {
			return validationf("email already exists")
		} else if !errors.Is(err, repo.ErrorNotFound) {
			return err
		}

		created, err = tx.CreateUser(ctx, model.User{
			Name:         name,
			Email:        email,
			Role:         in.Role,
			AvatarURL:    AvatarURL(name),
			PasswordHash: string(hash),
		})
		if errors.Is(err, repo.ErrorConflict) {
			return validationf("email already exists")
		}
		return err
	})
	if err != nil {
		return model.User{}, err
	}

	s.logger.Info("user registered", zap.Int64("user_id", created.ID), zap.String("role", string(created.Role)))
	return created, nil
}

// AvatarURL returns the placeholder avatar used for a newly registered user.
func AvatarURL(name string) string {
	return "https://picsum.photos/seed/" + url.PathEscape(name) + "/100"
}

func (s *UserService) Login(ctx context.Context, email, password string) (LoginResult, error) {
	user, err := s.store.GetUserByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, repo.ErrorNotFound) {
		return LoginResult{}, ErrInvalidCredentials
	}
	if err != nil {
		return LoginResult{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return LoginResult{}, ErrInvalidCredentials
	}

	sess := model.Session{
		Token:     uuid.NewString(),
		UserID:    user.ID,
		ExpiresAt: s.now().Add(s.sessionTTL),
	}
	if err := s.store.CreateSession(ctx, sess); err != nil {
		return LoginResult{}, err
	}

	s.logger.Info("user logged in", zap.Int64("user_id", user.ID))
	return LoginResult{Token: sess.Token, ExpiresAt: sess.ExpiresAt, User: user}, nil
}

// Authenticate resolves a bearer token to the user it was issued to.
func (s *UserService) Authenticate(ctx context.Context, token string) (model.User, error) {
	if token == "" {
		return model.User{}, ErrUnauthenticated
	}

	var user model.User
	err := s.store.View(ctx, func(tx repo.Store) error {
		sess, err := tx.GetSession(ctx, token)
		if errors.Is(err, repo.ErrorNotFound) {
			return ErrUnauthenticated
		}
		if err != nil {
			return err
		}
		if sess.Expired(s.now()) {
			return ErrUnauthenticated
		}
		user, err = tx.GetUser(ctx, sess.UserID)
		if errors.Is(err, repo.ErrorNotFound) {
			return ErrUnauthenticated
		}
		return err
	})
	return user, err
}

func (s *UserService) Logout(ctx context.Context, token string) error {
	err := s.store.DeleteSession(ctx, token)
	if errors.Is(err, repo.ErrorNotFound) {
		return nil
	}
	return err
}

// PurgeExpiredSessions removes sessions whose TTL has passed.
func (s *UserService) PurgeExpiredSessions(ctx context.Context) (int, error) {
	removed, err := s.store.DeleteExpiredSessions(ctx, s.now())
	if err != nil {
		return 0, err
	}
	metrics.SessionsExpiredTotal.Add(float64(removed))
	return removed, nil
}

func (s *UserService) Users(ctx context.Context) ([]model.User, error) {
	return s.store.ListUsers(ctx)
}

func (s *UserService) User(ctx context.Context, id int64) (model.User, error) {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return u, fmt.Errorf("user %d: %w", id, err)
	}
	return u, nil
}
