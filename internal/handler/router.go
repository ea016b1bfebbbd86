package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/tasktrack/internal/service"
	"github.com/BuzzLyutic/tasktrack/internal/suggest"
)

type Deps struct {
	Tasks     *service.TaskService
	Users     *service.UserService
	Suggester suggest.Suggester
	Gatherer  prometheus.Gatherer
	Logger    *zap.Logger
}

func NewRouter(d Deps) http.Handler {
	auth := NewAuthHandler(d.Users, d.Logger)
	tasks := NewTaskHandler(d.Tasks, d.Logger)
	notifications := NewNotificationHandler(d.Tasks, d.Logger)
	suggestions := NewSuggestHandler(d.Suggester, d.Logger)

	r := chi.NewRouter() // Создаем роутер
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(d.Logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"ok"}`)
	})
	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", auth.Register)
		r.Post("/auth/login", auth.Login)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireUser)

			r.Post("/auth/logout", auth.Logout)
			r.Get("/me", auth.Me)
			r.Get("/users", auth.Users)

			r.Route("/tasks", func(r chi.Router) {
				r.Post("/", tasks.Create)
				r.Get("/", tasks.List)
				r.Get("/{id}", tasks.Get)
				r.Post("/{id}/transitions", tasks.Transition)
				r.Post("/{id}/update-requests", tasks.RequestUpdate)
			})

			r.Get("/notifications", notifications.List)
			r.Post("/notifications/read", notifications.MarkRead)

			r.Post("/suggestions/priority", suggestions.Priority)
			r.Post("/suggestions/description", suggestions.Description)
			r.Post("/suggestions/note", suggestions.Note)
		})
	})

	return r
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Info("request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("took", time.Since(start)),
					zap.String("request_id", middleware.GetReqID(r.Context())),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
