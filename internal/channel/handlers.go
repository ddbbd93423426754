package channel

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/noah-isme/backoffice/internal/common"
)

// Handler exposes the sales channel CRUD endpoints.
type Handler struct {
	Svc *Service
}

// Routes mounts the channel endpoints on a chi router.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
}

// List returns the tenant's channels.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := common.ParsePagination(r, 50)
	limit, offset := common.LimitOffset(page, perPage)
	channels, err := h.Svc.List(r.Context(), limit, offset)
	if err != nil {
		renderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": channels})
}

// Create adds a channel.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in Input
	if err := common.DecodeJSON(r, &in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	channel, err := h.Svc.Create(r.Context(), in)
	if err != nil {
		renderError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": channel})
}

// Get returns one channel.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := channelID(w, r)
	if !ok {
		return
	}
	channel, err := h.Svc.Get(r.Context(), id)
	if err != nil {
		renderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": channel})
}

// Update replaces a channel.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := channelID(w, r)
	if !ok {
		return
	}
	var in Input
	if err := common.DecodeJSON(r, &in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	channel, err := h.Svc.Update(r.Context(), id, in)
	if err != nil {
		renderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": channel})
}

// Delete removes a channel.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := channelID(w, r)
	if !ok {
		return
	}
	if err := h.Svc.Delete(r.Context(), id); err != nil {
		renderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]bool{"deleted": true}})
}

func channelID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid channel id", nil)
		return uuid.Nil, false
	}
	return id, true
}

func renderError(w http.ResponseWriter, err error) {
	var validation validator.ValidationErrors
	switch {
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "channel not found", nil)
	case errors.Is(err, ErrDuplicateCode):
		common.JSONError(w, http.StatusConflict, "CONFLICT", err.Error(), nil)
	case errors.As(err, &validation):
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", "invalid channel", validation.Error())
	default:
		common.RenderError(w, err)
	}
}
