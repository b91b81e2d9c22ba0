package cart

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/joao-fontenele/cartflow/internal/domain"
)

type PlaceOrderRequest struct {
	CustomerID string            `json:"customer_id"`
	Items      []domain.LineItem `json:"items"`
	Discount   *domain.Discount  `json:"discount"`
}

type OrderPlacer interface {
	PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*domain.Order, error)
}

// OrdersClient places orders on the orders service over HTTP.
type OrdersClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewOrdersClient(baseURL string, client *http.Client) *OrdersClient {
	return &OrdersClient{
		baseURL:    baseURL,
		httpClient: client,
	}
}

func (c *OrdersClient) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*domain.Order, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal order request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/orders", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create order request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("post order: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("orders service returned status %d", resp.StatusCode)
	}

	var order domain.Order
	if err := json.NewDecoder(resp.Body).Decode(&order); err != nil {
		return nil, fmt.Errorf("decode order: %w", err)
	}

	return &order, nil
}

// Checkout turns the cart into an order and removes the ordered lines. Only
// one checkout per engine runs at a time. If removing fails the placed order
// is still returned alongside the error.
func Checkout(ctx context.Context, e *Engine, placer OrderPlacer) (*domain.Order, error) {
	release, ok := e.beginCheckout()
	if !ok {
		return nil, ErrCheckoutInProgress
	}
	defer release()

	state := e.Snapshot()
	if len(state.Items) == 0 {
		return nil, ErrEmptyCart
	}

	order, err := placer.PlaceOrder(ctx, PlaceOrderRequest{
		CustomerID: e.ProfileID(),
		Items:      state.Items,
		Discount:   state.Discount,
	})
	if err != nil {
		return nil, fmt.Errorf("place order: %w", err)
	}

	if err := e.RemoveOrdered(ctx, state.Items); err != nil {
		return order, fmt.Errorf("remove ordered items after order %s: %w", order.ID, err)
	}

	return order, nil
}
