package handler

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/BuzzLyutic/tasktrack/internal/model"
	"github.com/BuzzLyutic/tasktrack/internal/service"
	"github.com/BuzzLyutic/tasktrack/pkg/respond"
)

type callerKey struct{}

// WithCaller returns a copy of ctx carrying the authenticated user.
func WithCaller(ctx context.Context, u model.User) context.Context {
	return context.WithValue(ctx, callerKey{}, u)
}

func Caller(ctx context.Context) (model.User, bool) {
	u, ok := ctx.Value(callerKey{}).(model.User)
	return u, ok
}

// MustCaller is for handlers mounted behind RequireUser.
func MustCaller(ctx context.Context) model.User {
	u, ok := Caller(ctx)
	if !ok {
		panic("handler: no authenticated user in context")
	}
	return u
}

type AuthHandler struct {
	service *service.UserService
	logger  *zap.Logger
}

func NewAuthHandler(srv *service.UserService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		service: srv,
		logger:  logger,
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// RequireUser resolves the bearer token to a user and rejects the request
// with 401 when it cannot.
func (h *AuthHandler) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := h.service.Authenticate(r.Context(), bearerToken(r))
		if err != nil {
			handleErrors(w, r, h.logger, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), user)))
	})
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req service.RegisterInput
	if err := respond.Decode(r, &req); err != nil {
		decodeError(w, r, h.logger, err)
		return
	}

	user, err := h.service.Register(r.Context(), req)
	if err != nil {
		handleErrors(w, r, h.logger, err)
		return
	}
	respond.JSON(w, r, http.StatusCreated, user)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := respond.Decode(r, &req); err != nil {
		decodeError(w, r, h.logger, err)
		return
	}

	res, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		handleErrors(w, r, h.logger, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, res)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Logout(r.Context(), bearerToken(r)); err != nil {
		handleErrors(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, r, http.StatusOK, MustCaller(r.Context()))
}

func (h *AuthHandler) Users(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.Users(r.Context())
	if err != nil {
		handleErrors(w, r, h.logger, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, users)
}
