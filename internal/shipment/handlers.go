package shipment

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/noah-isme/backoffice/internal/common"
)

// Handler exposes the shipment endpoints.
type Handler struct {
	Svc *Service
}

// OrderRoutes mounts list/create under an order route; requests carry an
// orderID URL parameter.
func (h *Handler) OrderRoutes(r chi.Router) {
	r.Get("/", h.ListByOrder)
	r.Post("/", h.Create)
}

// Routes mounts the shipment-scoped endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/{id}", h.Get)
	r.Put("/{id}/status", h.SetStatus)
	r.Get("/{id}/events", h.History)
}

type createRequest struct {
	Carrier      string `json:"carrier"`
	TrackingCode string `json:"trackingCode"`
}

// Create opens a pending shipment for the order.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return
	}
	var req createRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	shipment, err := h.Svc.Create(r.Context(), Input{
		OrderID:      orderID,
		Carrier:      req.Carrier,
		TrackingCode: req.TrackingCode,
	})
	if err != nil {
		renderError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": shipment})
}

// ListByOrder returns the order's shipments.
func (h *Handler) ListByOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return
	}
	shipments, err := h.Svc.ListByOrder(r.Context(), orderID)
	if err != nil {
		renderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": shipments})
}

// Get returns one shipment.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := shipmentID(w, r)
	if !ok {
		return
	}
	shipment, err := h.Svc.Get(r.Context(), id)
	if err != nil {
		renderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": shipment})
}

type statusRequest struct {
	Status string `json:"status"`
	Note   string `json:"note"`
}

// SetStatus transitions the shipment.
func (h *Handler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := shipmentID(w, r)
	if !ok {
		return
	}
	var req statusRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	shipment, err := h.Svc.SetStatus(r.Context(), id, req.Status, req.Note)
	if err != nil {
		renderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": shipment})
}

// History returns the shipment's transition log.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	id, ok := shipmentID(w, r)
	if !ok {
		return
	}
	history, err := h.Svc.History(r.Context(), id)
	if err != nil {
		renderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": history})
}

func shipmentID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid shipment id", nil)
		return uuid.Nil, false
	}
	return id, true
}

func renderError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "shipment not found", nil)
	case errors.Is(err, ErrOrderNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
	case errors.Is(err, ErrOrderNotShippable):
		common.JSONError(w, http.StatusConflict, "INVALID_STATE", err.Error(), nil)
	case errors.Is(err, ErrInvalidTransition):
		common.JSONError(w, http.StatusConflict, "INVALID_STATE", err.Error(), nil)
	default:
		common.RenderError(w, err)
	}
}
