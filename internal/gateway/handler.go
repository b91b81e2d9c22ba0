package gateway

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
)

type Handler struct {
	ordersProxy *ServiceProxy
	cartProxy   *ServiceProxy
	logger      *slog.Logger
}

func NewHandler(ordersProxy, cartProxy *ServiceProxy, logger *slog.Logger) *Handler {
	return &Handler{
		ordersProxy: ordersProxy,
		cartProxy:   cartProxy,
		logger:      logger,
	}
}

// RegisterRoutes exposes the public API. Paths are forwarded unchanged.
func (h *Handler) RegisterRoutes(mux *http.ServeMux, wrap func(http.HandlerFunc) http.HandlerFunc) {
	for _, pattern := range []string{
		"GET /orders",
		"POST /orders",
		"GET /orders/{id}",
		"PATCH /orders/{id}/status",
	} {
		mux.HandleFunc(pattern, wrap(h.HandleOrders))
	}

	for _, pattern := range []string{
		"GET /carts/{profileId}",
		"DELETE /carts/{profileId}",
		"POST /carts/{profileId}/items",
		"PATCH /carts/{profileId}/items/{itemId}",
		"DELETE /carts/{profileId}/items/{itemId}",
		"POST /carts/{profileId}/items/{itemId}/save",
		"POST /carts/{profileId}/saved/{savedId}/restore",
		"DELETE /carts/{profileId}/saved/{savedId}",
		"POST /carts/{profileId}/discount",
		"DELETE /carts/{profileId}/discount",
		"GET /carts/{profileId}/recommendations",
		"POST /carts/{profileId}/checkout",
		"POST /summary",
	} {
		mux.HandleFunc(pattern, wrap(h.HandleCarts))
	}
}

func (h *Handler) HandleOrders(w http.ResponseWriter, r *http.Request) {
	h.proxyRequest(w, r, h.ordersProxy, r.URL.Path)
}

func (h *Handler) HandleCarts(w http.ResponseWriter, r *http.Request) {
	h.proxyRequest(w, r, h.cartProxy, r.URL.Path)
}

func (h *Handler) proxyRequest(w http.ResponseWriter, r *http.Request, proxy *ServiceProxy, path string) {
	resp, err := proxy.ForwardRequest(r.Context(), r, path)
	if err != nil {
		h.logger.Error("failed to forward request", "error", err, "path", path)
		h.writeError(w, http.StatusBadGateway, "service unavailable")
		return
	}
	defer func() { _ = resp.Body.Close() }()

	if contentType := resp.Header.Get("Content-Type"); contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}

	w.WriteHeader(resp.StatusCode)

	h.logger.Info("request proxied", "method", r.Method, "path", path, "status", resp.StatusCode)

	if _, err := io.Copy(w, resp.Body); err != nil {
		h.logger.Error("failed to copy response body", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": message}); err != nil {
		h.logger.Error("failed to encode error response", "error", err)
	}
}
