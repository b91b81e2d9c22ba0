package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type CartMetrics struct {
	operations       metric.Int64Counter
	discountAttempts metric.Int64Counter
	checkoutTotal    metric.Float64Histogram
}

// NewCartMetrics registers the cart instruments on the global MeterProvider,
// so it must run after InitMeterProvider to be exported.
func NewCartMetrics() (*CartMetrics, error) {
	meter := otel.Meter("cartflow/cart")

	operations, err := meter.Int64Counter("cart.operations",
		metric.WithDescription("Cart operations by name and outcome"),
	)
	if err != nil {
		return nil, err
	}

	discountAttempts, err := meter.Int64Counter("cart.discount.attempts",
		metric.WithDescription("Discount code attempts by result"),
	)
	if err != nil {
		return nil, err
	}

	checkoutTotal, err := meter.Float64Histogram("cart.checkout.total",
		metric.WithDescription("Order totals at checkout"),
		metric.WithUnit("{EUR}"),
	)
	if err != nil {
		return nil, err
	}

	return &CartMetrics{
		operations:       operations,
		discountAttempts: discountAttempts,
		checkoutTotal:    checkoutTotal,
	}, nil
}

func (m *CartMetrics) RecordOperation(ctx context.Context, operation string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.operations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	))
}

func (m *CartMetrics) RecordDiscountAttempt(ctx context.Context, applied bool) {
	result := "rejected"
	if applied {
		result = "applied"
	}
	m.discountAttempts.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

func (m *CartMetrics) RecordCheckout(ctx context.Context, total float64, currency string) {
	m.checkoutTotal.Record(ctx, total, metric.WithAttributes(attribute.String("currency", currency)))
}
