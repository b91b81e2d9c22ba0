package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/cartflow/internal/domain"
	"github.com/joao-fontenele/cartflow/internal/email"
	"github.com/joao-fontenele/cartflow/internal/messaging"
)

type NotificationHandler struct {
	emailServiceURL  string
	ordersServiceURL string
	httpClient       *http.Client
	logger           *slog.Logger
}

func NewNotificationHandler(emailServiceURL, ordersServiceURL string, client *http.Client, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{
		emailServiceURL:  emailServiceURL,
		ordersServiceURL: ordersServiceURL,
		httpClient:       client,
		logger:           logger,
	}
}

type sendEmailRequest struct {
	To       string          `json:"to"`
	Template string          `json:"template"`
	Data     json.RawMessage `json:"data"`
}

// HandleOrderCreated sends the order confirmation and then marks the order
// confirmed. Undecodable events are skipped.
func (h *NotificationHandler) HandleOrderCreated(ctx context.Context, payload []byte) error {
	var event domain.OrderCreatedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		h.logger.Error("dropping malformed order created event", "error", err)
		return fmt.Errorf("%w: unmarshal order created event: %v", messaging.ErrSkip, err)
	}

	h.logger.Info("processing order created event", "order_id", event.OrderID, "customer_id", event.CustomerID)

	if err := h.sendEmail(ctx, recipient(event.CustomerID), email.TemplateOrderConfirmation, payload); err != nil {
		h.logger.Error("failed to send confirmation email", "error", err, "order_id", event.OrderID)
		return fmt.Errorf("send confirmation email: %w", err)
	}

	if err := h.updateOrderStatus(ctx, event.OrderID, domain.OrderStatusConfirmed); err != nil {
		h.logger.Error("failed to update order status", "error", err, "order_id", event.OrderID)
		return fmt.Errorf("update order status: %w", err)
	}

	h.logger.Info("order processing complete", "order_id", event.OrderID)
	return nil
}

// HandleCartAbandoned sends a reminder for a cart that went idle.
func (h *NotificationHandler) HandleCartAbandoned(ctx context.Context, payload []byte) error {
	var event domain.CartAbandonedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		h.logger.Error("dropping malformed cart abandoned event", "error", err)
		return fmt.Errorf("%w: unmarshal cart abandoned event: %v", messaging.ErrSkip, err)
	}

	if event.ItemCount == 0 {
		h.logger.Info("skipping reminder for empty cart", "profile_id", event.ProfileID)
		return nil
	}

	if err := h.sendEmail(ctx, recipient(event.ProfileID), email.TemplateCartReminder, payload); err != nil {
		h.logger.Error("failed to send cart reminder", "error", err, "profile_id", event.ProfileID)
		return fmt.Errorf("send cart reminder: %w", err)
	}

	h.logger.Info("cart reminder sent", "profile_id", event.ProfileID, "item_count", event.ItemCount)
	return nil
}

func recipient(id string) string {
	return id + "@example.com"
}

func (h *NotificationHandler) sendEmail(ctx context.Context, to, template string, data []byte) error {
	body, err := json.Marshal(sendEmailRequest{To: to, Template: template, Data: data})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.emailServiceURL+"/send", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("email service returned status %d", resp.StatusCode)
	}

	return nil
}

func (h *NotificationHandler) updateOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus) error {
	body := map[string]string{
		"status": string(status),
	}

	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/orders/%s/status", h.ordersServiceURL, orderID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("orders service returned status %d", resp.StatusCode)
	}

	return nil
}
