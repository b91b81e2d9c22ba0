// Package cart owns a shopper's cart: line items, saved-for-later items and
// the active discount. Every mutation is persisted through a Store.
package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/cartflow/internal/domain"
	"github.com/joao-fontenele/cartflow/internal/pricing"
)

// DefaultValidationDelay is how long ApplyDiscount waits unless overridden.
const DefaultValidationDelay = 300 * time.Millisecond

// Checkout errors.
var (
	ErrEmptyCart          = errors.New("cart is empty")
	ErrCheckoutInProgress = errors.New("checkout already in progress")
)

// Catalog is the static configuration the engine reads from.
type Catalog interface {
	Discount(code string) (domain.Discount, bool)
	Recommended() []domain.LineItem
}

// Engine is one profile's cart. It is safe for concurrent use; every
// mutation is a single read-modify-write persisted before it becomes visible.
type Engine struct {
	mu              sync.Mutex
	checkingOut     atomic.Bool
	profileID       string
	store           Store
	catalog         Catalog
	now             func() time.Time
	validationDelay time.Duration
	logger          *slog.Logger
	state           domain.CartState
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithValidationDelay sets how long ApplyDiscount waits before resolving.
func WithValidationDelay(d time.Duration) Option {
	return func(e *Engine) {
		e.validationDelay = d
	}
}

// WithLogger sets the logger for discount lookups. Defaults to discarding.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// Open rehydrates the profile's cart from store, or starts an empty one.
func Open(ctx context.Context, profileID string, store Store, catalog Catalog, opts ...Option) (*Engine, error) {
	e := &Engine{
		profileID:       profileID,
		store:           store,
		catalog:         catalog,
		now:             time.Now,
		validationDelay: DefaultValidationDelay,
		logger:          slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(e)
	}

	snapshot, err := store.Load(ctx, profileID)
	if err != nil {
		return nil, fmt.Errorf("load cart %s: %w", profileID, err)
	}

	if snapshot == nil {
		e.state = domain.NewCartState(e.now())
	} else {
		e.state = *snapshot
	}

	return e, nil
}

// update is the single read-modify-write path. mutate works on a copy; the
// copy replaces the current state only after it was saved. Returning false
// from mutate leaves everything untouched.
func (e *Engine) update(ctx context.Context, mutate func(s *domain.CartState, now time.Time) bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	next := e.state.Clone()
	if !mutate(&next, now) {
		return nil
	}
	next.LastActivity = now

	if err := e.store.Save(ctx, e.profileID, next); err != nil {
		return fmt.Errorf("save cart %s: %w", e.profileID, err)
	}

	e.state = next
	return nil
}

// AddItem merges into an existing line with the same id or appends a new one.
// Quantities below 1 count as 1; the result is clamped to the item's cap.
func (e *Engine) AddItem(ctx context.Context, item domain.LineItem, quantity int) error {
	if quantity < 1 {
		quantity = 1
	}

	return e.update(ctx, func(s *domain.CartState, _ time.Time) bool {
		if i := s.IndexOf(item.ID); i >= 0 {
			existing := &s.Items[i]
			existing.Quantity = addCapped(existing.Quantity, quantity, existing.QuantityCap())
			return true
		}

		added := item.Clone()
		added.Quantity = min(quantity, added.QuantityCap())
		if added.Features == nil {
			added.Features = []string{}
		}
		s.Items = append(s.Items, added)
		return true
	})
}

func (e *Engine) RemoveItem(ctx context.Context, id string) error {
	return e.update(ctx, func(s *domain.CartState, _ time.Time) bool {
		removeLine(s, id)
		return true
	})
}

// UpdateQuantity sets a line's quantity; zero or less removes the line.
func (e *Engine) UpdateQuantity(ctx context.Context, id string, quantity int) error {
	return e.update(ctx, func(s *domain.CartState, _ time.Time) bool {
		if quantity <= 0 {
			removeLine(s, id)
			return true
		}
		if i := s.IndexOf(id); i >= 0 {
			s.Items[i].Quantity = min(quantity, s.Items[i].QuantityCap())
		}
		return true
	})
}

// ClearCart drops items and the discount. Saved items stay.
func (e *Engine) ClearCart(ctx context.Context) error {
	return e.update(ctx, func(s *domain.CartState, _ time.Time) bool {
		s.Items = []domain.LineItem{}
		s.Discount = nil
		return true
	})
}

// RemoveOrdered takes an order's lines out of the cart. Each line loses the
// ordered quantity and goes away at zero, so anything added after the order
// was built stays. The discount is dropped with the order.
func (e *Engine) RemoveOrdered(ctx context.Context, ordered []domain.LineItem) error {
	return e.update(ctx, func(s *domain.CartState, _ time.Time) bool {
		for _, item := range ordered {
			i := s.IndexOf(item.ID)
			if i < 0 {
				continue
			}
			if s.Items[i].Quantity <= item.Quantity {
				s.Items = slices.Delete(s.Items, i, i+1)
				continue
			}
			s.Items[i].Quantity -= item.Quantity
		}
		s.Discount = nil
		return true
	})
}

func (e *Engine) SaveForLater(ctx context.Context, id string) error {
	return e.update(ctx, func(s *domain.CartState, now time.Time) bool {
		i := s.IndexOf(id)
		if i < 0 {
			return true
		}

		item := s.Items[i]
		s.Items = slices.Delete(s.Items, i, i+1)
		s.SavedItems = append(s.SavedItems, domain.SavedItem{
			ID:      savedItemID(*s, item.ID, now),
			Item:    item.Clone(),
			SavedAt: now,
		})
		return true
	})
}

// MoveToCart appends the saved snapshot to the cart without merging. When the
// cart already holds a line with the same id, the restored line is keyed by
// the saved id instead.
func (e *Engine) MoveToCart(ctx context.Context, savedID string) error {
	return e.update(ctx, func(s *domain.CartState, _ time.Time) bool {
		j := s.SavedIndexOf(savedID)
		if j < 0 {
			return true
		}

		restored := s.SavedItems[j].Item.Clone()
		if s.IndexOf(restored.ID) >= 0 {
			restored.ID = savedID
		}
		s.SavedItems = slices.Delete(s.SavedItems, j, j+1)
		s.Items = append(s.Items, restored)
		return true
	})
}

func (e *Engine) RemoveSavedItem(ctx context.Context, savedID string) error {
	return e.update(ctx, func(s *domain.CartState, _ time.Time) bool {
		if j := s.SavedIndexOf(savedID); j >= 0 {
			s.SavedItems = slices.Delete(s.SavedItems, j, j+1)
		}
		return true
	})
}

// ApplyDiscount validates code against the catalog after the validation
// delay. It returns false, leaving the cart as it was, when the code is
// unknown or the subtotal is below the code's minimum. The delay is not
// cancellable; ctx only reaches the store.
func (e *Engine) ApplyDiscount(ctx context.Context, code string) (bool, error) {
	if e.validationDelay > 0 {
		time.Sleep(e.validationDelay)
	}

	discount, ok := e.catalog.Discount(strings.ToUpper(code))
	if !ok {
		e.logger.Info("discount code not found", "profile_id", e.profileID, "code", code)
		return false, nil
	}

	var applied bool
	err := e.update(ctx, func(s *domain.CartState, _ time.Time) bool {
		if !discount.Eligible(pricing.Subtotal(s.Items)) {
			return false
		}
		d := discount
		s.Discount = &d
		applied = true
		return true
	})
	if err != nil {
		return false, err
	}

	if !applied {
		e.logger.Info("discount code not eligible", "profile_id", e.profileID, "code", discount.Code)
	}
	return applied, nil
}

func (e *Engine) RemoveDiscount(ctx context.Context) error {
	return e.update(ctx, func(s *domain.CartState, _ time.Time) bool {
		s.Discount = nil
		return true
	})
}

func (e *Engine) ProfileID() string {
	return e.profileID
}

// Snapshot returns a deep copy of the current state.
func (e *Engine) Snapshot() domain.CartState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Clone()
}

func (e *Engine) Subtotal() decimal.Decimal {
	e.mu.Lock()
	defer e.mu.Unlock()
	return pricing.Subtotal(e.state.Items)
}

func (e *Engine) Total() decimal.Decimal {
	return e.Summary().Total
}

func (e *Engine) Summary() domain.OrderSummary {
	e.mu.Lock()
	defer e.mu.Unlock()
	return pricing.ComputeOrderSummary(e.state.Items, e.state.Discount)
}

func (e *Engine) ItemCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.ItemCount()
}

func (e *Engine) IsItemInCart(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.IndexOf(id) >= 0
}

// RecommendedItems lists catalog recommendations not already in the cart.
func (e *Engine) RecommendedItems() []domain.LineItem {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []domain.LineItem
	for _, item := range e.catalog.Recommended() {
		if e.state.IndexOf(item.ID) < 0 {
			out = append(out, item)
		}
	}
	return out
}

func (e *Engine) IsAbandoned() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.IsAbandoned(e.now())
}

// beginCheckout claims the engine for one checkout; the returned func
// releases it.
func (e *Engine) beginCheckout() (func(), bool) {
	if !e.checkingOut.CompareAndSwap(false, true) {
		return nil, false
	}
	return func() { e.checkingOut.Store(false) }, true
}

// addCapped returns current+n limited to limit, without overflowing.
func addCapped(current, n, limit int) int {
	if n >= limit-current {
		return limit
	}
	return current + n
}

func removeLine(s *domain.CartState, id string) {
	if i := s.IndexOf(id); i >= 0 {
		s.Items = slices.Delete(s.Items, i, i+1)
	}
}

func savedItemID(s domain.CartState, itemID string, now time.Time) string {
	stamp := now.UnixNano()
	for {
		id := fmt.Sprintf("%s-%d", itemID, stamp)
		if s.SavedIndexOf(id) < 0 {
			return id
		}
		stamp++
	}
}
