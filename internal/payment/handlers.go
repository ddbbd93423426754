package payment

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backoffice/internal/command"
	"github.com/noah-isme/backoffice/internal/common"
)

// Handler exposes the order payment ledger. Mounted under an order route, so
// every request carries an orderID URL parameter.
type Handler struct {
	Svc  *Service
	Exec *command.Executor
}

// Routes mounts the ledger endpoints on a chi router.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Record)
}

// List returns the order's payment records and totals.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	orderID, ok := orderID(w, r)
	if !ok {
		return
	}
	ledger, err := h.Svc.ListByOrder(r.Context(), orderID)
	if err != nil {
		renderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": ledger})
}

type recordRequest struct {
	Kind      string          `json:"kind"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Method    string          `json:"method"`
	Reference string          `json:"reference"`
}

// Record books a payment or refund against the order.
func (h *Handler) Record(w http.ResponseWriter, r *http.Request) {
	actor, err := command.ActorFromContext(r.Context())
	if err != nil {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	orderID, ok := orderID(w, r)
	if !ok {
		return
	}
	var req recordRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	payload, err := json.Marshal(Input{
		OrderID:   orderID,
		Kind:      req.Kind,
		Amount:    req.Amount,
		Currency:  req.Currency,
		Method:    req.Method,
		Reference: req.Reference,
	})
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "encode command payload", nil)
		return
	}
	result, err := h.Exec.Execute(r.Context(), actor, CommandRecord, payload)
	if err != nil {
		renderError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": result})
}

func orderID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return uuid.Nil, false
	}
	return id, true
}

func renderError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrOrderNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
	case errors.Is(err, ErrInvalidKind), errors.Is(err, ErrInvalidAmount):
		common.JSONError(w, http.StatusUnprocessableEntity, "INVALID_PAYMENT", err.Error(), nil)
	case errors.Is(err, ErrCurrencyMismatch):
		common.JSONError(w, http.StatusUnprocessableEntity, "CURRENCY_MISMATCH", err.Error(), nil)
	case errors.Is(err, ErrRefundExceedsPaid):
		common.JSONError(w, http.StatusConflict, "REFUND_EXCEEDS_PAID", err.Error(), nil)
	default:
		common.RenderError(w, err)
	}
}
