package handler

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/BuzzLyutic/tasktrack/internal/service"
	"github.com/BuzzLyutic/tasktrack/pkg/respond"
)

type TaskHandler struct {
	service *service.TaskService
	logger  *zap.Logger
}

func NewTaskHandler(srv *service.TaskService, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{
		service: srv,
		logger:  logger,
	}
}

func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller := MustCaller(r.Context())

	var req service.CreateTaskInput
	if err := respond.Decode(r, &req); err != nil {
		decodeError(w, r, h.logger, err)
		return
	}
	req.CreatedBy = caller.ID // создатель всегда текущий пользователь

	task, err := h.service.Create(r.Context(), req)
	if err != nil {
		handleErrors(w, r, h.logger, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/tasks/%d", task.ID))
	respond.JSON(w, r, http.StatusCreated, task)
}

func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	caller := MustCaller(r.Context())

	tasks, err := h.service.TasksForUser(r.Context(), caller.ID)
	if err != nil {
		handleErrors(w, r, h.logger, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, tasks)
}

func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		respond.Error(w, r, http.StatusBadRequest, "invalid task id")
		return
	}

	detail, err := h.service.Detail(r.Context(), id)
	if err != nil {
		handleErrors(w, r, h.logger, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, detail)
}

func (h *TaskHandler) Transition(w http.ResponseWriter, r *http.Request) {
	caller := MustCaller(r.Context())
	id, ok := idParam(r)
	if !ok {
		respond.Error(w, r, http.StatusBadRequest, "invalid task id")
		return
	}

	var req service.TransitionInput
	if err := respond.Decode(r, &req); err != nil {
		decodeError(w, r, h.logger, err)
		return
	}
	req.TaskID = id
	req.UpdatedBy = caller.ID

	update, err := h.service.Transition(r.Context(), req)
	if err != nil {
		handleErrors(w, r, h.logger, err)
		return
	}
	respond.JSON(w, r, http.StatusCreated, update)
}

func (h *TaskHandler) RequestUpdate(w http.ResponseWriter, r *http.Request) {
	caller := MustCaller(r.Context())
	id, ok := idParam(r)
	if !ok {
		respond.Error(w, r, http.StatusBadRequest, "invalid task id")
		return
	}

	if err := h.service.RequestUpdate(r.Context(), id, caller.ID); err != nil {
		handleErrors(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
