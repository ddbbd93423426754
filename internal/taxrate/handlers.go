package taxrate

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/noah-isme/backoffice/internal/common"
)

// Handler exposes the tax rate CRUD endpoints.
type Handler struct {
	Svc *Service
}

// Routes mounts the tax rate endpoints on a chi router.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/default", h.Default)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
}

// List returns tax rates, optionally filtered by ?country=.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := common.ParsePagination(r, 50)
	limit, offset := common.LimitOffset(page, perPage)
	var country *string
	if v := strings.TrimSpace(r.URL.Query().Get("country")); v != "" {
		country = &v
	}
	rates, err := h.Svc.List(r.Context(), country, limit, offset)
	if err != nil {
		renderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rates})
}

// Create adds a tax rate.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in Input
	if err := common.DecodeJSON(r, &in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	rate, err := h.Svc.Create(r.Context(), in)
	if err != nil {
		renderError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": rate})
}

// Default returns the default rate for ?country=.
func (h *Handler) Default(w http.ResponseWriter, r *http.Request) {
	country := strings.TrimSpace(r.URL.Query().Get("country"))
	if country == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "country is required", nil)
		return
	}
	rate, err := h.Svc.Default(r.Context(), country)
	if err != nil {
		renderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rate})
}

// Get returns one tax rate.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := rateID(w, r)
	if !ok {
		return
	}
	rate, err := h.Svc.Get(r.Context(), id)
	if err != nil {
		renderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rate})
}

// Update replaces a tax rate.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := rateID(w, r)
	if !ok {
		return
	}
	var in Input
	if err := common.DecodeJSON(r, &in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	rate, err := h.Svc.Update(r.Context(), id, in)
	if err != nil {
		renderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rate})
}

// Delete removes a tax rate.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := rateID(w, r)
	if !ok {
		return
	}
	if err := h.Svc.Delete(r.Context(), id); err != nil {
		renderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]bool{"deleted": true}})
}

func rateID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid tax rate id", nil)
		return uuid.Nil, false
	}
	return id, true
}

func renderError(w http.ResponseWriter, err error) {
	var validation validator.ValidationErrors
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrNoDefault):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case errors.Is(err, ErrInvalidRate):
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", err.Error(), nil)
	case errors.As(err, &validation):
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", "invalid tax rate", validation.Error())
	default:
		common.RenderError(w, err)
	}
}
