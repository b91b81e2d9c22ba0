package cart

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/cartflow/internal/domain"
)

func TestOrdersClient_PlaceOrder(t *testing.T) {
	t.Run("posts cart contents", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/orders", r.URL.Path)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

			var req PlaceOrderRequest
			if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
				return
			}
			assert.Equal(t, "p1", req.CustomerID)
			assert.Len(t, req.Items, 1)

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"id":"order-1","customer_id":"p1","status":"pending","summary":{"total":"378"}}`))
		}))
		defer server.Close()

		client := NewOrdersClient(server.URL, server.Client())
		order, err := client.PlaceOrder(context.Background(), PlaceOrderRequest{
			CustomerID: "p1",
			Items:      []domain.LineItem{lineItem("site", "300")},
		})

		require.NoError(t, err)
		assert.Equal(t, "order-1", order.ID)
		assert.Equal(t, domain.OrderStatusPending, order.Status)
		assert.Equal(t, "378", order.Summary.Total.String())
	})

	t.Run("non-201 status is an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
		}))
		defer server.Close()

		client := NewOrdersClient(server.URL, server.Client())
		_, err := client.PlaceOrder(context.Background(), PlaceOrderRequest{CustomerID: "p1"})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "400")
	})
}

func TestCheckout(t *testing.T) {
	ctx := context.Background()

	t.Run("empty cart", func(t *testing.T) {
		e := newEngine(t, NewMemoryStore(), newFakeClock())

		_, err := Checkout(ctx, e, &fakePlacer{})
		require.ErrorIs(t, err, ErrEmptyCart)
	})

	t.Run("order placed even if clearing fails", func(t *testing.T) {
		store := &failingStore{MemoryStore: NewMemoryStore()}
		e := newEngine(t, store, newFakeClock())
		require.NoError(t, e.AddItem(ctx, lineItem("site", "300"), 1))
		store.fail = true

		order, err := Checkout(ctx, e, &fakePlacer{})
		require.Error(t, err)
		require.NotNil(t, order)
		assert.Len(t, e.Snapshot().Items, 1)
	})
}

// placerFunc adapts a function to OrderPlacer.
type placerFunc func(ctx context.Context, req PlaceOrderRequest) (*domain.Order, error)

func (f placerFunc) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*domain.Order, error) {
	return f(ctx, req)
}

func TestCheckoutConcurrency(t *testing.T) {
	ctx := context.Background()

	t.Run("item added during order stays in cart", func(t *testing.T) {
		e := newEngine(t, NewMemoryStore(), newFakeClock())
		require.NoError(t, e.AddItem(ctx, lineItem("site", "300"), 1))

		placer := &fakePlacer{}
		order, err := Checkout(ctx, e, placerFunc(func(ctx context.Context, req PlaceOrderRequest) (*domain.Order, error) {
			require.NoError(t, e.AddItem(ctx, lineItem("logo", "50"), 1))
			return placer.PlaceOrder(ctx, req)
		}))

		require.NoError(t, err)
		require.Len(t, order.Items, 1)
		assert.False(t, e.IsItemInCart("site"))
		assert.True(t, e.IsItemInCart("logo"))
	})

	t.Run("second checkout is rejected while one is in flight", func(t *testing.T) {
		e := newEngine(t, NewMemoryStore(), newFakeClock())
		require.NoError(t, e.AddItem(ctx, lineItem("site", "300"), 1))

		entered := make(chan struct{})
		proceed := make(chan struct{})
		placer := &fakePlacer{}
		blocking := placerFunc(func(ctx context.Context, req PlaceOrderRequest) (*domain.Order, error) {
			close(entered)
			<-proceed
			return placer.PlaceOrder(ctx, req)
		})

		var wg sync.WaitGroup
		var firstErr error
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, firstErr = Checkout(ctx, e, blocking)
		}()

		<-entered
		_, err := Checkout(ctx, e, placer)
		require.ErrorIs(t, err, ErrCheckoutInProgress)

		close(proceed)
		wg.Wait()
		require.NoError(t, firstErr)
		assert.Len(t, placer.requests, 1)

		require.NoError(t, e.AddItem(ctx, lineItem("logo", "50"), 1))
		_, err = Checkout(ctx, e, placer)
		require.NoError(t, err)
		assert.Len(t, placer.requests, 2)
	})
}
