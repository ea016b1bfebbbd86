package handler

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/BuzzLyutic/tasktrack/internal/model"
	"github.com/BuzzLyutic/tasktrack/internal/suggest"
	"github.com/BuzzLyutic/tasktrack/pkg/respond"
)

// SuggestHandler exposes the text suggester. A missing suggestion is a
// normal 200 response with a null value, never an error.
type SuggestHandler struct {
	suggester suggest.Suggester
	logger    *zap.Logger
}

func NewSuggestHandler(s suggest.Suggester, logger *zap.Logger) *SuggestHandler {
	return &SuggestHandler{
		suggester: s,
		logger:    logger,
	}
}

type suggestRequest struct {
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	OldStatus   model.Status `json:"old_status,omitempty"`
	NewStatus   model.Status `json:"new_status,omitempty"`
}

type suggestResponse struct {
	Suggestion *string `json:"suggestion"`
}

func (h *SuggestHandler) decode(w http.ResponseWriter, r *http.Request) (suggestRequest, bool) {
	var req suggestRequest
	if err := respond.Decode(r, &req); err != nil {
		decodeError(w, r, h.logger, err)
		return req, false
	}
	if strings.TrimSpace(req.Title) == "" {
		respond.Error(w, r, http.StatusBadRequest, "title is required")
		return req, false
	}
	return req, true
}

func reply(w http.ResponseWriter, r *http.Request, text string, ok bool) {
	var out suggestResponse
	if ok {
		out.Suggestion = &text
	}
	respond.JSON(w, r, http.StatusOK, out)
}

func (h *SuggestHandler) Priority(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	p, found := h.suggester.SuggestPriority(r.Context(), req.Title, req.Description)
	reply(w, r, string(p), found)
}

func (h *SuggestHandler) Description(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	text, found := h.suggester.GenerateDescription(r.Context(), req.Title)
	reply(w, r, text, found)
}

func (h *SuggestHandler) Note(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	if !req.OldStatus.Valid() || !req.NewStatus.Valid() {
		respond.Error(w, r, http.StatusBadRequest, "old_status and new_status must be valid statuses")
		return
	}
	text, found := h.suggester.SuggestUpdateNote(r.Context(), req.Title, req.OldStatus, req.NewStatus)
	reply(w, r, text, found)
}
