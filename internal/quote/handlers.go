package quote

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/noah-isme/backoffice/internal/calc"
	"github.com/noah-isme/backoffice/internal/command"
	"github.com/noah-isme/backoffice/internal/common"
)

// Handler exposes the quote HTTP endpoints. Mutations run through the
// command executor so every change lands in the audit trail.
type Handler struct {
	Svc  *Service
	Exec *command.Executor
}

// Routes mounts the quote endpoints on a chi router.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
	r.Post("/{id}/convert", h.Convert)
}

// List returns the tenant's quotes.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := common.ParsePagination(r, 20)
	limit, offset := common.LimitOffset(page, perPage)
	var status *string
	if v := strings.TrimSpace(r.URL.Query().Get("status")); v != "" {
		status = &v
	}
	quotes, err := h.Svc.List(r.Context(), status, limit, offset)
	if err != nil {
		renderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": quotes})
}

// Get returns one quote.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid quote id", nil)
		return
	}
	quote, err := h.Svc.Get(r.Context(), id)
	if err != nil {
		renderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": quote})
}

// Create drafts a new quote.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var content Content
	if err := common.DecodeJSON(r, &content); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	h.execute(w, r, actor, CommandCreate, content, http.StatusCreated)
}

// Update replaces a quote's content.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid quote id", nil)
		return
	}
	var content Content
	if err := common.DecodeJSON(r, &content); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	h.execute(w, r, actor, CommandUpdate, updatePayload{ID: id, Content: content}, http.StatusOK)
}

// Delete removes a quote.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid quote id", nil)
		return
	}
	h.execute(w, r, actor, CommandDelete, idPayload{ID: id}, http.StatusOK)
}

// Convert turns a quote into an order.
func (h *Handler) Convert(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid quote id", nil)
		return
	}
	h.execute(w, r, actor, CommandConvert, idPayload{ID: id}, http.StatusCreated)
}

func (h *Handler) execute(w http.ResponseWriter, r *http.Request, actor command.Actor, name string, payload any, okStatus int) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "encode command payload", nil)
		return
	}
	result, err := h.Exec.Execute(r.Context(), actor, name, encoded)
	if err != nil {
		renderError(w, err)
		return
	}
	common.JSON(w, okStatus, map[string]any{"data": result})
}

func requireActor(w http.ResponseWriter, r *http.Request) (command.Actor, bool) {
	actor, err := command.ActorFromContext(r.Context())
	if err != nil {
		if errors.Is(err, command.ErrNoActor) {
			common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		} else {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "tenant missing or invalid", nil)
		}
		return command.Actor{}, false
	}
	return actor, true
}

func renderError(w http.ResponseWriter, err error) {
	var invalid *calc.InvalidLineInputError
	switch {
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "quote not found", nil)
	case errors.Is(err, ErrAlreadyConverted):
		common.JSONError(w, http.StatusConflict, "INVALID_STATE", err.Error(), nil)
	case errors.As(err, &invalid):
		common.JSONError(w, http.StatusUnprocessableEntity, "INVALID_LINE", invalid.Error(), nil)
	case errors.Is(err, calc.ErrUnsupportedScope), errors.Is(err, calc.ErrMissingAdjustmentAmount):
		common.JSONError(w, http.StatusUnprocessableEntity, "INVALID_ADJUSTMENT", err.Error(), nil)
	default:
		common.RenderError(w, err)
	}
}
