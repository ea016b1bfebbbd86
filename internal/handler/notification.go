package handler

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/BuzzLyutic/tasktrack/internal/service"
	"github.com/BuzzLyutic/tasktrack/pkg/respond"
)

type NotificationHandler struct {
	service *service.TaskService
	logger  *zap.Logger
}

func NewNotificationHandler(srv *service.TaskService, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{
		service: srv,
		logger:  logger,
	}
}

type markReadRequest struct {
	IDs []int64 `json:"ids"`
}

func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	caller := MustCaller(r.Context())
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit")) // 0 -> лимит по умолчанию

	page, err := h.service.Notifications(r.Context(), caller.ID, limit)
	if err != nil {
		handleErrors(w, r, h.logger, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, page)
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	caller := MustCaller(r.Context())

	var req markReadRequest
	if err := respond.Decode(r, &req); err != nil {
		decodeError(w, r, h.logger, err)
		return
	}

	if err := h.service.MarkRead(r.Context(), caller.ID, req.IDs); err != nil {
		handleErrors(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
