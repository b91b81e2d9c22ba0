package cart

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/cartflow/internal/domain"
	"github.com/joao-fontenele/cartflow/internal/pricing"
	"github.com/joao-fontenele/cartflow/internal/telemetry"
)

type Handler struct {
	registry *Registry
	orders   OrderPlacer
	metrics  *telemetry.CartMetrics
	logger   *slog.Logger
}

// NewHandler builds the cart API. orders may be nil, in which case checkout
// answers 503.
func NewHandler(registry *Registry, orders OrderPlacer, metrics *telemetry.CartMetrics, logger *slog.Logger) *Handler {
	return &Handler{
		registry: registry,
		orders:   orders,
		metrics:  metrics,
		logger:   logger,
	}
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux, wrap func(http.HandlerFunc) http.HandlerFunc) {
	mux.HandleFunc("GET /carts/{profileId}", wrap(h.HandleGet))
	mux.HandleFunc("DELETE /carts/{profileId}", wrap(h.HandleClear))
	mux.HandleFunc("POST /carts/{profileId}/items", wrap(h.HandleAddItem))
	mux.HandleFunc("PATCH /carts/{profileId}/items/{itemId}", wrap(h.HandleUpdateQuantity))
	mux.HandleFunc("DELETE /carts/{profileId}/items/{itemId}", wrap(h.HandleRemoveItem))
	mux.HandleFunc("POST /carts/{profileId}/items/{itemId}/save", wrap(h.HandleSaveForLater))
	mux.HandleFunc("POST /carts/{profileId}/saved/{savedId}/restore", wrap(h.HandleMoveToCart))
	mux.HandleFunc("DELETE /carts/{profileId}/saved/{savedId}", wrap(h.HandleRemoveSavedItem))
	mux.HandleFunc("POST /carts/{profileId}/discount", wrap(h.HandleApplyDiscount))
	mux.HandleFunc("DELETE /carts/{profileId}/discount", wrap(h.HandleRemoveDiscount))
	mux.HandleFunc("GET /carts/{profileId}/recommendations", wrap(h.HandleRecommendations))
	mux.HandleFunc("POST /carts/{profileId}/checkout", wrap(h.HandleCheckout))
	mux.HandleFunc("POST /summary", wrap(h.HandleSummary))
}

type cartResponse struct {
	ProfileID string `json:"profile_id"`
	domain.CartState
	Summary     domain.OrderSummary `json:"summary"`
	ItemCount   int                 `json:"item_count"`
	IsAbandoned bool                `json:"is_abandoned"`
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	e, ok := h.engine(w, r)
	if !ok {
		return
	}
	h.writeCart(w, http.StatusOK, e)
}

type addItemRequest struct {
	Item     domain.LineItem `json:"item"`
	Quantity *int            `json:"quantity"`
}

func (h *Handler) HandleAddItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}

	h.mutate(w, r, "add_item", func(e *Engine) error {
		return e.AddItem(r.Context(), req.Item, quantity)
	})
}

type updateQuantityRequest struct {
	Quantity *int `json:"quantity"`
}

func (h *Handler) HandleUpdateQuantity(w http.ResponseWriter, r *http.Request) {
	var req updateQuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Quantity == nil {
		h.writeError(w, http.StatusBadRequest, "quantity is required")
		return
	}

	itemID := r.PathValue("itemId")
	h.mutate(w, r, "update_quantity", func(e *Engine) error {
		return e.UpdateQuantity(r.Context(), itemID, *req.Quantity)
	})
}

func (h *Handler) HandleRemoveItem(w http.ResponseWriter, r *http.Request) {
	itemID := r.PathValue("itemId")
	h.mutate(w, r, "remove_item", func(e *Engine) error {
		return e.RemoveItem(r.Context(), itemID)
	})
}

func (h *Handler) HandleClear(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, "clear_cart", func(e *Engine) error {
		return e.ClearCart(r.Context())
	})
}

func (h *Handler) HandleSaveForLater(w http.ResponseWriter, r *http.Request) {
	itemID := r.PathValue("itemId")
	h.mutate(w, r, "save_for_later", func(e *Engine) error {
		return e.SaveForLater(r.Context(), itemID)
	})
}

func (h *Handler) HandleMoveToCart(w http.ResponseWriter, r *http.Request) {
	savedID := r.PathValue("savedId")
	h.mutate(w, r, "move_to_cart", func(e *Engine) error {
		return e.MoveToCart(r.Context(), savedID)
	})
}

func (h *Handler) HandleRemoveSavedItem(w http.ResponseWriter, r *http.Request) {
	savedID := r.PathValue("savedId")
	h.mutate(w, r, "remove_saved_item", func(e *Engine) error {
		return e.RemoveSavedItem(r.Context(), savedID)
	})
}

type applyDiscountRequest struct {
	Code string `json:"code"`
}

func (h *Handler) HandleApplyDiscount(w http.ResponseWriter, r *http.Request) {
	var req applyDiscountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	e, ok := h.engine(w, r)
	if !ok {
		return
	}

	applied, err := e.ApplyDiscount(r.Context(), req.Code)
	h.metrics.RecordOperation(r.Context(), "apply_discount", err)
	if err != nil {
		h.logger.Error("failed to apply discount", "error", err, "profile_id", e.ProfileID())
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.metrics.RecordDiscountAttempt(r.Context(), applied)
	if !applied {
		h.writeError(w, http.StatusUnprocessableEntity, "invalid or ineligible discount code")
		return
	}

	h.logger.Info("discount applied", "profile_id", e.ProfileID(), "code", req.Code)
	h.writeCart(w, http.StatusOK, e)
}

func (h *Handler) HandleRemoveDiscount(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, "remove_discount", func(e *Engine) error {
		return e.RemoveDiscount(r.Context())
	})
}

func (h *Handler) HandleRecommendations(w http.ResponseWriter, r *http.Request) {
	e, ok := h.engine(w, r)
	if !ok {
		return
	}

	items := e.RecommendedItems()
	if items == nil {
		items = []domain.LineItem{}
	}
	h.writeJSON(w, http.StatusOK, items)
}

func (h *Handler) HandleCheckout(w http.ResponseWriter, r *http.Request) {
	if h.orders == nil {
		h.writeError(w, http.StatusServiceUnavailable, "checkout unavailable")
		return
	}

	e, ok := h.engine(w, r)
	if !ok {
		return
	}

	order, err := Checkout(r.Context(), e, h.orders)
	h.metrics.RecordOperation(r.Context(), "checkout", err)
	switch {
	case errors.Is(err, ErrEmptyCart), errors.Is(err, ErrCheckoutInProgress):
		h.writeError(w, http.StatusConflict, err.Error())
		return
	case err != nil && order == nil:
		h.logger.Error("failed to place order", "error", err, "profile_id", e.ProfileID())
		h.writeError(w, http.StatusBadGateway, "orders service unavailable")
		return
	case err != nil:
		h.logger.Error("order placed but cart not cleared", "error", err, "profile_id", e.ProfileID(), "order_id", order.ID)
	}

	h.metrics.RecordCheckout(r.Context(), order.Summary.Total.InexactFloat64(), order.Summary.Currency)
	h.logger.Info("checkout complete", "profile_id", e.ProfileID(), "order_id", order.ID, "total", order.Summary.Total.String())
	h.writeJSON(w, http.StatusCreated, order)
}

type summaryRequest struct {
	Items    []domain.LineItem `json:"items"`
	Discount *domain.Discount  `json:"discount"`
}

// HandleSummary prices arbitrary items without touching any cart.
func (h *Handler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	var req summaryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	h.writeJSON(w, http.StatusOK, pricing.ComputeOrderSummary(req.Items, req.Discount))
}

func (h *Handler) mutate(w http.ResponseWriter, r *http.Request, operation string, fn func(e *Engine) error) {
	e, ok := h.engine(w, r)
	if !ok {
		return
	}

	err := fn(e)
	h.metrics.RecordOperation(r.Context(), operation, err)
	if err != nil {
		h.logger.Error("cart operation failed", "error", err, "operation", operation, "profile_id", e.ProfileID())
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("cart updated", "operation", operation, "profile_id", e.ProfileID())
	h.writeCart(w, http.StatusOK, e)
}

func (h *Handler) engine(w http.ResponseWriter, r *http.Request) (*Engine, bool) {
	profileID := r.PathValue("profileId")
	if profileID == "" {
		h.writeError(w, http.StatusBadRequest, "missing profile id")
		return nil, false
	}

	e, err := h.registry.Get(r.Context(), profileID)
	if err != nil {
		h.logger.Error("failed to open cart", "error", err, "profile_id", profileID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return nil, false
	}
	return e, true
}

func (h *Handler) writeCart(w http.ResponseWriter, status int, e *Engine) {
	state := e.Snapshot()
	h.writeJSON(w, status, cartResponse{
		ProfileID:   e.ProfileID(),
		CartState:   state,
		Summary:     e.Summary(),
		ItemCount:   state.ItemCount(),
		IsAbandoned: e.IsAbandoned(),
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
