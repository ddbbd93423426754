package tag

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/noah-isme/backoffice/internal/common"
)

// Handler exposes the tag endpoints.
type Handler struct {
	Svc *Service
}

// Routes mounts the tenant-wide tag endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Upsert)
}

// DocumentRoutes mounts the per-document assignment endpoints; requests carry
// resourceType and docID URL parameters.
func (h *Handler) DocumentRoutes(r chi.Router) {
	r.Get("/", h.ListByDocument)
	r.Put("/", h.Sync)
}

// List returns every tag of the tenant.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	tags, err := h.Svc.List(r.Context())
	if err != nil {
		renderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": tags})
}

type upsertRequest struct {
	Name string `json:"name"`
}

// Upsert creates a tag or returns the existing one.
func (h *Handler) Upsert(w http.ResponseWriter, r *http.Request) {
	var req upsertRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	tag, err := h.Svc.Upsert(r.Context(), req.Name)
	if err != nil {
		renderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": tag})
}

// ListByDocument returns the document's tags.
func (h *Handler) ListByDocument(w http.ResponseWriter, r *http.Request) {
	resourceType, docID, ok := documentParams(w, r)
	if !ok {
		return
	}
	tags, err := h.Svc.ListByDocument(r.Context(), resourceType, docID)
	if err != nil {
		renderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": tags})
}

type syncRequest struct {
	Names []string `json:"names"`
}

// Sync replaces the document's tag set.
func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	resourceType, docID, ok := documentParams(w, r)
	if !ok {
		return
	}
	var req syncRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	tags, err := h.Svc.Sync(r.Context(), resourceType, docID, req.Names)
	if err != nil {
		renderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": tags})
}

func documentParams(w http.ResponseWriter, r *http.Request) (string, uuid.UUID, bool) {
	resourceType := chi.URLParam(r, "resourceType")
	docID, err := uuid.Parse(chi.URLParam(r, "docID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid document id", nil)
		return "", uuid.Nil, false
	}
	return resourceType, docID, true
}

func renderError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrResourceNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case errors.Is(err, ErrInvalidResource), errors.Is(err, ErrEmptyName):
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", err.Error(), nil)
	default:
		common.RenderError(w, err)
	}
}
