package cart

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/joao-fontenele/cartflow/internal/domain"
	"github.com/joao-fontenele/cartflow/internal/pricing"
)

const sweepBatchSize = 100

type EventPublisher interface {
	Publish(ctx context.Context, key string, event any) error
}

// Sweeper periodically publishes a cart.abandoned event for every cart that
// went idle, once per idle period.
type Sweeper struct {
	lister    IdleLister
	publisher EventPublisher
	interval  time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

func NewSweeper(lister IdleLister, publisher EventPublisher, interval time.Duration, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		lister:    lister,
		publisher: publisher,
		interval:  interval,
		now:       time.Now,
		logger:    logger,
	}
}

func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			n, err := s.Sweep(ctx)
			if err != nil {
				s.logger.Error("abandoned cart sweep failed", "error", err, "published", n)
				continue
			}
			if n > 0 {
				s.logger.Info("abandoned carts published", "count", n)
			}
		}
	}
}

// Sweep runs one pass and returns how many events were published.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	now := s.now()

	carts, err := s.lister.ListAbandoned(ctx, now.Add(-domain.AbandonedAfter), sweepBatchSize)
	if err != nil {
		return 0, fmt.Errorf("list abandoned carts: %w", err)
	}

	var published int
	for _, c := range carts {
		if !c.State.IsAbandoned(now) {
			continue
		}

		event := domain.CartAbandonedEvent{
			ProfileID:    c.ProfileID,
			ItemCount:    c.State.ItemCount(),
			Subtotal:     pricing.Subtotal(c.State.Items),
			Currency:     domain.Currency,
			LastActivity: c.State.LastActivity,
			Timestamp:    now,
		}

		if err := s.publisher.Publish(ctx, c.ProfileID, event); err != nil {
			return published, fmt.Errorf("publish abandoned cart %s: %w", c.ProfileID, err)
		}

		if err := s.lister.MarkReminded(ctx, c.ProfileID, c.State.LastActivity); err != nil {
			return published, fmt.Errorf("mark cart %s reminded: %w", c.ProfileID, err)
		}

		published++
	}

	return published, nil
}
