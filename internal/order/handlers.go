package order

import (
	"context"
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

type recalcScheduler interface {
	EnqueueRecalc(ctx context.Context, tenantID string, documentID uuid.UUID) error
}

// Handler exposes the order HTTP endpoints. Mutations run through the
// command executor so every change lands in the audit trail.
type Handler struct {
	Svc  *Service
	Exec *command.Executor

	// Recalcs, when set, serves ?async=true recalculation requests by
	// handing the work to the background queue.
	Recalcs recalcScheduler
}

// Routes mounts the order endpoints on a chi router.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{orderID}", h.Get)
	r.Put("/{orderID}/content", h.UpdateContent)
	r.Put("/{orderID}/shipping-method", h.SetShippingMethod)
	r.Put("/{orderID}/payment-method", h.SetPaymentMethod)
	r.Put("/{orderID}/status", h.SetStatus)
	r.Post("/{orderID}/recalculate", h.Recalculate)
}

// List returns the tenant's orders.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := common.ParsePagination(r, 20)
	limit, offset := common.LimitOffset(page, perPage)
	var status *string
	if v := strings.TrimSpace(r.URL.Query().Get("status")); v != "" {
		status = &v
	}
	orders, err := h.Svc.List(r.Context(), status, limit, offset)
	if err != nil {
		renderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": orders})
}

// Get returns one order.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	order, err := h.Svc.Get(r.Context(), id)
	if err != nil {
		renderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": order})
}

// UpdateContent replaces the order's lines and adjustments.
func (h *Handler) UpdateContent(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	var content Content
	if err := common.DecodeJSON(r, &content); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	h.execute(w, r, actor, CommandUpdateContent, contentPayload{ID: id, Content: content})
}

type methodRequest struct {
	MethodID *uuid.UUID `json:"methodId"`
}

// SetShippingMethod attaches or clears the shipping method.
func (h *Handler) SetShippingMethod(w http.ResponseWriter, r *http.Request) {
	h.setMethod(w, r, CommandSetShippingMethod)
}

// SetPaymentMethod attaches or clears the payment method.
func (h *Handler) SetPaymentMethod(w http.ResponseWriter, r *http.Request) {
	h.setMethod(w, r, CommandSetPaymentMethod)
}

func (h *Handler) setMethod(w http.ResponseWriter, r *http.Request, name string) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	var req methodRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	h.execute(w, r, actor, name, methodPayload{ID: id, MethodID: req.MethodID})
}

type statusRequest struct {
	Status string `json:"status"`
}

// SetStatus transitions the order status.
func (h *Handler) SetStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	var req statusRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	h.execute(w, r, actor, CommandSetStatus, statusPayload{ID: id, Status: req.Status})
}

// Recalculate re-runs the totals engine and returns the fresh order. The
// result depends only on stored content and payments, so it bypasses the
// command registry. With ?async=true the work is queued instead.
func (h *Handler) Recalculate(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	if h.Recalcs != nil && r.URL.Query().Get("async") == "true" {
		if err := h.Recalcs.EnqueueRecalc(r.Context(), actor.TenantID.String(), id); err != nil {
			renderError(w, err)
			return
		}
		common.JSON(w, http.StatusAccepted, map[string]any{"data": map[string]string{"status": "queued"}})
		return
	}
	order, err := h.Svc.Recalculate(r.Context(), actor.TenantID, id)
	if err != nil {
		renderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": order})
}

func (h *Handler) execute(w http.ResponseWriter, r *http.Request, actor command.Actor, name string, payload any) {
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
	common.JSON(w, http.StatusOK, map[string]any{"data": result})
}

func orderID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return uuid.Nil, false
	}
	return id, true
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
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
	case errors.Is(err, ErrMethodNotFound):
		common.JSONError(w, http.StatusUnprocessableEntity, "METHOD_NOT_FOUND", err.Error(), nil)
	case errors.Is(err, ErrInvalidTransition):
		common.JSONError(w, http.StatusConflict, "INVALID_STATE", err.Error(), nil)
	case errors.As(err, &invalid):
		common.JSONError(w, http.StatusUnprocessableEntity, "INVALID_LINE", invalid.Error(), nil)
	case errors.Is(err, calc.ErrUnsupportedScope), errors.Is(err, calc.ErrMissingAdjustmentAmount):
		common.JSONError(w, http.StatusUnprocessableEntity, "INVALID_ADJUSTMENT", err.Error(), nil)
	default:
		common.RenderError(w, err)
	}
}
