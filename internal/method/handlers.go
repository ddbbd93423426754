package method

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/noah-isme/backoffice/internal/common"
)

// Handler exposes method CRUD for one kind; mount twice, once per kind.
type Handler struct {
	Svc  *Service
	Kind string
}

// Routes mounts the method endpoints on a chi router.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
}

// List returns the tenant's methods of the handler's kind.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := common.ParsePagination(r, 50)
	limit, offset := common.LimitOffset(page, perPage)
	methods, err := h.Svc.List(r.Context(), h.Kind, limit, offset)
	if err != nil {
		renderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": methods})
}

// Create adds a method. The payload kind must match the mount point.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	in, ok := h.decode(w, r)
	if !ok {
		return
	}
	created, err := h.Svc.Create(r.Context(), in)
	if err != nil {
		renderError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": created})
}

// Get returns one method.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := methodID(w, r)
	if !ok {
		return
	}
	found, err := h.Svc.Get(r.Context(), id, h.Kind)
	if err != nil {
		renderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": found})
}

// Update replaces a method's mutable fields.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := methodID(w, r)
	if !ok {
		return
	}
	in, ok := h.decode(w, r)
	if !ok {
		return
	}
	updated, err := h.Svc.Update(r.Context(), id, in)
	if err != nil {
		renderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": updated})
}

// Delete removes a method.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := methodID(w, r)
	if !ok {
		return
	}
	if err := h.Svc.Delete(r.Context(), id); err != nil {
		renderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]bool{"deleted": true}})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (Input, bool) {
	var in Input
	if err := common.DecodeJSON(r, &in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return Input{}, false
	}
	if in.Kind == "" {
		in.Kind = h.Kind
	}
	if !strings.EqualFold(in.Kind, h.Kind) {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "method kind does not match endpoint", nil)
		return Input{}, false
	}
	return in, true
}

func methodID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid method id", nil)
		return uuid.Nil, false
	}
	return id, true
}

func renderError(w http.ResponseWriter, err error) {
	var validation validator.ValidationErrors
	switch {
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "method not found", nil)
	case errors.Is(err, ErrDuplicateCode):
		common.JSONError(w, http.StatusConflict, "CONFLICT", err.Error(), nil)
	case errors.Is(err, ErrInvalidRate):
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", err.Error(), nil)
	case errors.As(err, &validation):
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", "invalid method", validation.Error())
	default:
		common.RenderError(w, err)
	}
}
