package command

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/backoffice/internal/audit"
	"github.com/noah-isme/backoffice/internal/common"
)

// Handler exposes the audit trail and the per-actor undo/redo endpoints.
type Handler struct {
	Audit audit.Service
	Exec  *Executor

	// ListMaxLimit caps the page size for trail listings.
	ListMaxLimit int32
}

// Routes mounts the endpoints on a chi router.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/undo", h.Undo)
	r.Post("/redo", h.Redo)
}

// List returns the trail for ?resourceType=&resourceId= newest first.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}
	resourceType := strings.TrimSpace(r.URL.Query().Get("resourceType"))
	resourceID := strings.TrimSpace(r.URL.Query().Get("resourceId"))
	if resourceType == "" || resourceID == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "resourceType and resourceId are required", nil)
		return
	}
	page, perPage := common.ParsePagination(r, 20)
	limit, offset := common.LimitOffset(page, perPage)
	if h.ListMaxLimit > 0 && limit > h.ListMaxLimit {
		limit = h.ListMaxLimit
	}
	entries, err := h.Audit.List(r.Context(), actor.TenantID, resourceType, resourceID, limit, offset)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": entries})
}

// Undo reverts the actor's most recent undoable command.
func (h *Handler) Undo(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}
	entry, err := h.Exec.Undo(r.Context(), actor)
	if err != nil {
		renderUndoError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": entry})
}

// Redo replays the actor's most recently undone command.
func (h *Handler) Redo(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}
	entry, err := h.Exec.Redo(r.Context(), actor)
	if err != nil {
		renderUndoError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": entry})
}

func (h *Handler) requireActor(w http.ResponseWriter, r *http.Request) (Actor, bool) {
	actor, err := ActorFromContext(r.Context())
	if err != nil {
		if errors.Is(err, ErrNoActor) {
			common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		} else {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "tenant missing or invalid", nil)
		}
		return Actor{}, false
	}
	return actor, true
}

func renderUndoError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, audit.ErrNothingToUndo), errors.Is(err, audit.ErrNothingToRedo):
		common.JSONError(w, http.StatusConflict, "NOTHING_TO_DO", err.Error(), nil)
	case errors.Is(err, ErrNotUndoable):
		common.JSONError(w, http.StatusConflict, "NOT_UNDOABLE", err.Error(), nil)
	default:
		common.RenderError(w, err)
	}
}
