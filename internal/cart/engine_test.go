package cart

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/cartflow/internal/catalog"
	"github.com/joao-fontenele/cartflow/internal/domain"
)

const profileID = "profile-1"

type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 14, 9, 26, 53, 589793238, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.t = c.t.Add(d)
}

type failingStore struct {
	*MemoryStore
	fail bool
}

func (s *failingStore) Save(ctx context.Context, id string, state domain.CartState) error {
	if s.fail {
		return errors.New("storage unavailable")
	}
	return s.MemoryStore.Save(ctx, id, state)
}

func newEngine(t *testing.T, store Store, clock *fakeClock) *Engine {
	t.Helper()
	e, err := Open(context.Background(), profileID, store, catalog.Default(),
		WithClock(clock.Now),
		WithValidationDelay(0),
	)
	require.NoError(t, err)
	return e
}

func lineItem(id, price string) domain.LineItem {
	return domain.LineItem{
		ID:       id,
		Name:     "Item " + id,
		Price:    decimal.RequireFromString(price),
		Quantity: 1,
		Category: domain.CategoryDevelopment,
		Features: []string{"responsive", "cms"},
	}
}

func requireDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.Truef(t, decimal.RequireFromString(want).Equal(got), "expected %s, got %s", want, got)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	t.Run("starts empty", func(t *testing.T) {
		clock := newFakeClock()
		e := newEngine(t, NewMemoryStore(), clock)

		s := e.Snapshot()
		assert.Empty(t, s.Items)
		assert.NotNil(t, s.Items)
		assert.Empty(t, s.SavedItems)
		assert.Nil(t, s.Discount)
		assert.True(t, clock.Now().Equal(s.LastActivity))
	})

	t.Run("rehydrates prior snapshot", func(t *testing.T) {
		clock := newFakeClock()
		store := NewMemoryStore()
		first := newEngine(t, store, clock)

		require.NoError(t, first.AddItem(ctx, lineItem("site", "300"), 1))
		require.NoError(t, first.AddItem(ctx, lineItem("logo", "120"), 2))
		require.NoError(t, first.SaveForLater(ctx, "logo"))
		applied, err := first.ApplyDiscount(ctx, "WELCOME10")
		require.NoError(t, err)
		require.True(t, applied)

		clock.Advance(time.Hour)
		second := newEngine(t, store, clock)

		before, after := first.Snapshot(), second.Snapshot()
		require.Len(t, after.Items, 1)
		assert.Equal(t, "site", after.Items[0].ID)
		require.Len(t, after.SavedItems, 1)
		assert.Equal(t, before.SavedItems[0].ID, after.SavedItems[0].ID)
		assert.True(t, before.SavedItems[0].SavedAt.Equal(after.SavedItems[0].SavedAt))
		require.NotNil(t, after.Discount)
		assert.Equal(t, "WELCOME10", after.Discount.Code)
		assert.True(t, before.LastActivity.Equal(after.LastActivity), "last activity must keep full precision")
		requireDecimal(t, "341.7", second.Total())
	})

	t.Run("load error", func(t *testing.T) {
		store := NewMemoryStore()
		store.data[StorageKey(profileID)] = []byte("{not json")

		_, err := Open(ctx, profileID, store, catalog.Default())
		require.Error(t, err)
	})
}

func TestAddItem(t *testing.T) {
	ctx := context.Background()

	t.Run("appends new item", func(t *testing.T) {
		e := newEngine(t, NewMemoryStore(), newFakeClock())

		require.NoError(t, e.AddItem(ctx, lineItem("site", "300"), 2))

		s := e.Snapshot()
		require.Len(t, s.Items, 1)
		assert.Equal(t, 2, s.Items[0].Quantity)
		assert.True(t, e.IsItemInCart("site"))
	})

	t.Run("merges on add without duplicating", func(t *testing.T) {
		e := newEngine(t, NewMemoryStore(), newFakeClock())

		require.NoError(t, e.AddItem(ctx, lineItem("site", "300"), 1))
		require.NoError(t, e.AddItem(ctx, lineItem("site", "300"), 3))

		s := e.Snapshot()
		require.Len(t, s.Items, 1)
		assert.Equal(t, 4, s.Items[0].Quantity)
	})

	t.Run("clamps to default cap", func(t *testing.T) {
		e := newEngine(t, NewMemoryStore(), newFakeClock())

		require.NoError(t, e.AddItem(ctx, lineItem("site", "1"), 98))
		require.NoError(t, e.AddItem(ctx, lineItem("site", "1"), 5))
		assert.Equal(t, 99, e.ItemCount())

		require.NoError(t, e.AddItem(ctx, lineItem("other", "1"), 500))
		assert.Equal(t, 99, e.Snapshot().Items[1].Quantity)
	})

	t.Run("clamps to item max quantity", func(t *testing.T) {
		e := newEngine(t, NewMemoryStore(), newFakeClock())
		item := lineItem("audit", "299")
		item.MaxQuantity = 1

		require.NoError(t, e.AddItem(ctx, item, 1))
		require.NoError(t, e.AddItem(ctx, item, 1))

		assert.Equal(t, 1, e.ItemCount())
	})

	t.Run("quantity below one counts as one", func(t *testing.T) {
		e := newEngine(t, NewMemoryStore(), newFakeClock())

		require.NoError(t, e.AddItem(ctx, lineItem("site", "300"), 0))
		require.NoError(t, e.AddItem(ctx, lineItem("site", "300"), -4))

		assert.Equal(t, 2, e.ItemCount())
	})

	t.Run("stores a copy of the caller's item", func(t *testing.T) {
		e := newEngine(t, NewMemoryStore(), newFakeClock())
		item := lineItem("site", "300")

		require.NoError(t, e.AddItem(ctx, item, 1))
		item.Features[0] = "mutated"

		assert.Equal(t, "responsive", e.Snapshot().Items[0].Features[0])
	})

	t.Run("updates last activity", func(t *testing.T) {
		clock := newFakeClock()
		e := newEngine(t, NewMemoryStore(), clock)
		clock.Advance(5 * time.Minute)

		require.NoError(t, e.AddItem(ctx, lineItem("site", "300"), 1))

		assert.True(t, clock.Now().Equal(e.Snapshot().LastActivity))
	})
}

func TestRemoveItem(t *testing.T) {
	ctx := context.Background()

	t.Run("removes existing item", func(t *testing.T) {
		e := newEngine(t, NewMemoryStore(), newFakeClock())
		require.NoError(t, e.AddItem(ctx, lineItem("site", "300"), 1))
		require.NoError(t, e.AddItem(ctx, lineItem("logo", "100"), 1))

		require.NoError(t, e.RemoveItem(ctx, "site"))

		s := e.Snapshot()
		require.Len(t, s.Items, 1)
		assert.Equal(t, "logo", s.Items[0].ID)
	})

	t.Run("unknown id leaves items unchanged", func(t *testing.T) {
		clock := newFakeClock()
		e := newEngine(t, NewMemoryStore(), clock)
		require.NoError(t, e.AddItem(ctx, lineItem("site", "300"), 2))
		before := e.Snapshot()
		clock.Advance(time.Minute)

		require.NoError(t, e.RemoveItem(ctx, "missing"))

		after := e.Snapshot()
		assert.Equal(t, before.Items, after.Items)
		assert.True(t, clock.Now().Equal(after.LastActivity))
	})
}

func TestUpdateQuantity(t *testing.T) {
	ctx := context.Background()

	t.Run("sets quantity", func(t *testing.T) {
		e := newEngine(t, NewMemoryStore(), newFakeClock())
		require.NoError(t, e.AddItem(ctx, lineItem("site", "300"), 1))

		require.NoError(t, e.UpdateQuantity(ctx, "site", 7))

		assert.Equal(t, 7, e.ItemCount())
	})

	t.Run("clamps to cap", func(t *testing.T) {
		e := newEngine(t, NewMemoryStore(), newFakeClock())
		item := lineItem("hosting", "29")
		item.MaxQuantity = 12
		require.NoError(t, e.AddItem(ctx, item, 1))

		require.NoError(t, e.UpdateQuantity(ctx, "hosting", 24))

		assert.Equal(t, 12, e.ItemCount())
	})

	t.Run("zero removes item", func(t *testing.T) {
		e := newEngine(t, NewMemoryStore(), newFakeClock())
		require.NoError(t, e.AddItem(ctx, lineItem("site", "300"), 3))

		require.NoError(t, e.UpdateQuantity(ctx, "site", 0))

		assert.False(t, e.IsItemInCart("site"))
		assert.Empty(t, e.Snapshot().Items)
	})

	t.Run("negative removes item", func(t *testing.T) {
		e := newEngine(t, NewMemoryStore(), newFakeClock())
		require.NoError(t, e.AddItem(ctx, lineItem("site", "300"), 3))

		require.NoError(t, e.UpdateQuantity(ctx, "site", -1))

		assert.Empty(t, e.Snapshot().Items)
	})

	t.Run("unknown id is a no-op", func(t *testing.T) {
		e := newEngine(t, NewMemoryStore(), newFakeClock())
		require.NoError(t, e.AddItem(ctx, lineItem("site", "300"), 3))

		require.NoError(t, e.UpdateQuantity(ctx, "missing", 5))

		assert.Equal(t, 3, e.ItemCount())
	})
}

func TestQuantityInvariant(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, NewMemoryStore(), newFakeClock())
	rng := rand.New(rand.NewSource(42))

	items := []domain.LineItem{lineItem("a", "10"), lineItem("b", "20"), lineItem("c", "30")}
	items[1].MaxQuantity = 5

	for i := 0; i < 500; i++ {
		item := items[rng.Intn(len(items))]
		if rng.Intn(2) == 0 {
			require.NoError(t, e.AddItem(ctx, item, rng.Intn(120)-10))
		} else {
			require.NoError(t, e.UpdateQuantity(ctx, item.ID, rng.Intn(130)-20))
		}

		seen := map[string]bool{}
		for _, line := range e.Snapshot().Items {
			require.False(t, seen[line.ID], "duplicate line %s", line.ID)
			seen[line.ID] = true
			require.GreaterOrEqual(t, line.Quantity, 1)
			require.LessOrEqual(t, line.Quantity, line.QuantityCap())
		}
	}
}

func TestClearCart(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, NewMemoryStore(), newFakeClock())
	require.NoError(t, e.AddItem(ctx, lineItem("site", "300"), 1))
	require.NoError(t, e.AddItem(ctx, lineItem("logo", "100"), 1))
	require.NoError(t, e.SaveForLater(ctx, "logo"))
	applied, err := e.ApplyDiscount(ctx, "WELCOME10")
	require.NoError(t, err)
	require.True(t, applied)

	require.NoError(t, e.ClearCart(ctx))

	s := e.Snapshot()
	assert.Empty(t, s.Items)
	assert.Nil(t, s.Discount)
	require.Len(t, s.SavedItems, 1)
	assert.Equal(t, "logo", s.SavedItems[0].Item.ID)
}

func TestSaveForLater(t *testing.T) {
	ctx := context.Background()

	t.Run("save and restore round-trip", func(t *testing.T) {
		clock := newFakeClock()
		e := newEngine(t, NewMemoryStore(), clock)
		require.NoError(t, e.AddItem(ctx, lineItem("site", "300"), 2))

		require.NoError(t, e.SaveForLater(ctx, "site"))

		s := e.Snapshot()
		assert.Empty(t, s.Items)
		require.Len(t, s.SavedItems, 1)
		saved := s.SavedItems[0]
		assert.Contains(t, saved.ID, "site-")
		assert.True(t, clock.Now().Equal(saved.SavedAt))

		require.NoError(t, e.MoveToCart(ctx, saved.ID))

		s = e.Snapshot()
		assert.Empty(t, s.SavedItems)
		require.Len(t, s.Items, 1)
		restored := s.Items[0]
		assert.Equal(t, "Item site", restored.Name)
		requireDecimal(t, "300", restored.Price)
		assert.Equal(t, []string{"responsive", "cms"}, restored.Features)
		assert.Equal(t, 2, restored.Quantity)
	})

	t.Run("saved copy is frozen", func(t *testing.T) {
		e := newEngine(t, NewMemoryStore(), newFakeClock())
		require.NoError(t, e.AddItem(ctx, lineItem("site", "300"), 1))
		require.NoError(t, e.SaveForLater(ctx, "site"))

		require.NoError(t, e.AddItem(ctx, lineItem("site", "300"), 5))
		require.NoError(t, e.UpdateQuantity(ctx, "site", 9))

		s := e.Snapshot()
		assert.Equal(t, 1, s.SavedItems[0].Item.Quantity)
	})

	t.Run("same product saved twice gets distinct ids", func(t *testing.T) {
		e := newEngine(t, NewMemoryStore(), newFakeClock())
		require.NoError(t, e.AddItem(ctx, lineItem("site", "300"), 1))
		require.NoError(t, e.SaveForLater(ctx, "site"))
		require.NoError(t, e.AddItem(ctx, lineItem("site", "300"), 1))
		require.NoError(t, e.SaveForLater(ctx, "site"))

		s := e.Snapshot()
		require.Len(t, s.SavedItems, 2)
		assert.NotEqual(t, s.SavedItems[0].ID, s.SavedItems[1].ID)
	})

	t.Run("restore does not merge or duplicate ids", func(t *testing.T) {
		e := newEngine(t, NewMemoryStore(), newFakeClock())
		require.NoError(t, e.AddItem(ctx, lineItem("site", "300"), 1))
		require.NoError(t, e.SaveForLater(ctx, "site"))
		require.NoError(t, e.AddItem(ctx, lineItem("site", "300"), 3))
		savedID := e.Snapshot().SavedItems[0].ID

		require.NoError(t, e.MoveToCart(ctx, savedID))

		s := e.Snapshot()
		require.Len(t, s.Items, 2)
		assert.Equal(t, "site", s.Items[0].ID)
		assert.Equal(t, 3, s.Items[0].Quantity)
		assert.Equal(t, savedID, s.Items[1].ID)
		assert.Equal(t, 1, s.Items[1].Quantity)
		assert.Equal(t, 4, e.ItemCount())
	})

	t.Run("unknown ids are no-ops", func(t *testing.T) {
		e := newEngine(t, NewMemoryStore(), newFakeClock())
		require.NoError(t, e.AddItem(ctx, lineItem("site", "300"), 1))

		require.NoError(t, e.SaveForLater(ctx, "missing"))
		require.NoError(t, e.MoveToCart(ctx, "missing"))
		require.NoError(t, e.RemoveSavedItem(ctx, "missing"))

		s := e.Snapshot()
		assert.Len(t, s.Items, 1)
		assert.Empty(t, s.SavedItems)
	})

	t.Run("remove saved item", func(t *testing.T) {
		e := newEngine(t, NewMemoryStore(), newFakeClock())
		require.NoError(t, e.AddItem(ctx, lineItem("site", "300"), 1))
		require.NoError(t, e.SaveForLater(ctx, "site"))

		require.NoError(t, e.RemoveSavedItem(ctx, e.Snapshot().SavedItems[0].ID))

		assert.Empty(t, e.Snapshot().SavedItems)
		assert.Empty(t, e.Snapshot().Items)
	})
}

func TestApplyDiscount(t *testing.T) {
	ctx := context.Background()

	t.Run("eligible percentage code", func(t *testing.T) {
		e := newEngine(t, NewMemoryStore(), newFakeClock())
		require.NoError(t, e.AddItem(ctx, lineItem("site", "300"), 1))
		requireDecimal(t, "378", e.Total())

		applied, err := e.ApplyDiscount(ctx, "WELCOME10")
		require.NoError(t, err)
		require.True(t, applied)

		summary := e.Summary()
		requireDecimal(t, "30", summary.Discount)
		requireDecimal(t, "56.7", summary.Tax)
		requireDecimal(t, "15", summary.Shipping)
		requireDecimal(t, "341.7", e.Total())
	})

	t.Run("code is case-insensitive", func(t *testing.T) {
		e := newEngine(t, NewMemoryStore(), newFakeClock())
		require.NoError(t, e.AddItem(ctx, lineItem("site", "300"), 1))

		applied, err := e.ApplyDiscount(ctx, "welcome10")
		require.NoError(t, err)
		assert.True(t, applied)
		assert.Equal(t, "WELCOME10", e.Snapshot().Discount.Code)
	})

	t.Run("below minimum amount", func(t *testing.T) {
		clock := newFakeClock()
		e := newEngine(t, NewMemoryStore(), clock)
		require.NoError(t, e.AddItem(ctx, lineItem("site", "150"), 1))
		before := e.Snapshot()
		clock.Advance(time.Minute)

		applied, err := e.ApplyDiscount(ctx, "SAVE50")
		require.NoError(t, err)
		assert.False(t, applied)

		after := e.Snapshot()
		assert.Nil(t, after.Discount)
		assert.True(t, before.LastActivity.Equal(after.LastActivity))
	})

	t.Run("ineligible code keeps the active discount", func(t *testing.T) {
		e := newEngine(t, NewMemoryStore(), newFakeClock())
		require.NoError(t, e.AddItem(ctx, lineItem("site", "150"), 1))
		applied, err := e.ApplyDiscount(ctx, "WELCOME10")
		require.NoError(t, err)
		require.True(t, applied)

		applied, err = e.ApplyDiscount(ctx, "SAVE50")
		require.NoError(t, err)
		assert.False(t, applied)
		assert.Equal(t, "WELCOME10", e.Snapshot().Discount.Code)
	})

	t.Run("unknown code", func(t *testing.T) {
		e := newEngine(t, NewMemoryStore(), newFakeClock())
		require.NoError(t, e.AddItem(ctx, lineItem("site", "300"), 1))

		applied, err := e.ApplyDiscount(ctx, "FREESTUFF")
		require.NoError(t, err)
		assert.False(t, applied)
		assert.Nil(t, e.Snapshot().Discount)
	})

	t.Run("new code replaces previous", func(t *testing.T) {
		e := newEngine(t, NewMemoryStore(), newFakeClock())
		require.NoError(t, e.AddItem(ctx, lineItem("site", "300"), 1))

		_, err := e.ApplyDiscount(ctx, "WELCOME10")
		require.NoError(t, err)
		applied, err := e.ApplyDiscount(ctx, "SAVE50")
		require.NoError(t, err)
		require.True(t, applied)

		s := e.Snapshot()
		assert.Equal(t, "SAVE50", s.Discount.Code)
		requireDecimal(t, "50", e.Summary().Discount)
	})

	t.Run("not re-validated when cart shrinks", func(t *testing.T) {
		e := newEngine(t, NewMemoryStore(), newFakeClock())
		require.NoError(t, e.AddItem(ctx, lineItem("site", "300"), 1))
		require.NoError(t, e.AddItem(ctx, lineItem("logo", "50"), 1))
		applied, err := e.ApplyDiscount(ctx, "SAVE50")
		require.NoError(t, err)
		require.True(t, applied)

		require.NoError(t, e.RemoveItem(ctx, "site"))

		s := e.Snapshot()
		require.NotNil(t, s.Discount)
		assert.Equal(t, "SAVE50", s.Discount.Code)
	})

	t.Run("waits for validation delay", func(t *testing.T) {
		e, err := Open(ctx, profileID, NewMemoryStore(), catalog.Default(), WithValidationDelay(20*time.Millisecond))
		require.NoError(t, err)

		start := time.Now()
		_, err = e.ApplyDiscount(ctx, "NOPE")
		require.NoError(t, err)
		assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	})

	t.Run("remove discount", func(t *testing.T) {
		e := newEngine(t, NewMemoryStore(), newFakeClock())
		require.NoError(t, e.AddItem(ctx, lineItem("site", "300"), 1))
		_, err := e.ApplyDiscount(ctx, "WELCOME10")
		require.NoError(t, err)

		require.NoError(t, e.RemoveDiscount(ctx))

		assert.Nil(t, e.Snapshot().Discount)
		requireDecimal(t, "378", e.Total())
	})
}

func TestDerivations(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, NewMemoryStore(), newFakeClock())
	require.NoError(t, e.AddItem(ctx, lineItem("a", "250"), 2))
	require.NoError(t, e.AddItem(ctx, lineItem("b", "100"), 1))

	requireDecimal(t, "600", e.Subtotal())
	requireDecimal(t, "726", e.Total())
	assert.Equal(t, 3, e.ItemCount())
	assert.True(t, e.IsItemInCart("a"))
	assert.False(t, e.IsItemInCart("c"))
	requireDecimal(t, "0", e.Summary().Shipping)
}

func TestRecommendedItems(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, NewMemoryStore(), newFakeClock())
	all := catalog.Default().Recommended()
	require.NotEmpty(t, all)

	assert.Len(t, e.RecommendedItems(), len(all))

	require.NoError(t, e.AddItem(ctx, all[0], 1))

	recommended := e.RecommendedItems()
	assert.Len(t, recommended, len(all)-1)
	for _, item := range recommended {
		assert.NotEqual(t, all[0].ID, item.ID)
	}
}

func TestIsAbandoned(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	e := newEngine(t, NewMemoryStore(), clock)

	clock.Advance(time.Hour)
	assert.False(t, e.IsAbandoned(), "empty cart is never abandoned")

	require.NoError(t, e.AddItem(ctx, lineItem("site", "300"), 1))
	clock.Advance(30 * time.Minute)
	assert.False(t, e.IsAbandoned(), "exactly 30 minutes is not abandoned")

	clock.Advance(time.Second)
	assert.True(t, e.IsAbandoned())

	require.NoError(t, e.UpdateQuantity(ctx, "site", 2))
	assert.False(t, e.IsAbandoned())
}

func TestPersistence(t *testing.T) {
	ctx := context.Background()

	t.Run("every mutation is saved", func(t *testing.T) {
		store := NewMemoryStore()
		e := newEngine(t, store, newFakeClock())

		ops := []func() error{
			func() error { return e.AddItem(ctx, lineItem("site", "300"), 1) },
			func() error { return e.UpdateQuantity(ctx, "site", 3) },
			func() error { return e.SaveForLater(ctx, "site") },
			func() error { return e.MoveToCart(ctx, e.Snapshot().SavedItems[0].ID) },
			func() error { _, err := e.ApplyDiscount(ctx, "WELCOME10"); return err },
			func() error { return e.RemoveDiscount(ctx) },
			func() error { return e.RemoveItem(ctx, "site") },
			func() error { return e.ClearCart(ctx) },
		}

		for i, op := range ops {
			require.NoError(t, op(), "op %d", i)

			stored, err := store.Load(ctx, profileID)
			require.NoError(t, err)
			require.NotNil(t, stored)
			assert.Equal(t, e.Snapshot().Items, stored.Items, "op %d", i)
			assert.Equal(t, len(e.Snapshot().SavedItems), len(stored.SavedItems), "op %d", i)
			assert.Equal(t, e.Snapshot().Discount == nil, stored.Discount == nil, "op %d", i)
		}
	})

	t.Run("failed save leaves state unchanged", func(t *testing.T) {
		store := &failingStore{MemoryStore: NewMemoryStore()}
		e := newEngine(t, store, newFakeClock())
		require.NoError(t, e.AddItem(ctx, lineItem("site", "300"), 1))

		store.fail = true
		err := e.AddItem(ctx, lineItem("logo", "100"), 1)
		require.Error(t, err)

		applied, err := e.ApplyDiscount(ctx, "WELCOME10")
		require.Error(t, err)
		assert.False(t, applied)

		s := e.Snapshot()
		assert.Len(t, s.Items, 1)
		assert.Nil(t, s.Discount)
	})
}

func TestAddItemSaturates(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		max      int
		existing int
	}{
		{"default cap", 0, 1},
		{"item cap", 5, 3},
		{"already at cap", 5, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEngine(t, NewMemoryStore(), newFakeClock())
			item := lineItem("site", "300")
			item.MaxQuantity = tt.max

			require.NoError(t, e.AddItem(ctx, item, tt.existing))
			require.NoError(t, e.AddItem(ctx, item, math.MaxInt))

			assert.Equal(t, item.QuantityCap(), e.ItemCount())
			assert.True(t, e.Subtotal().IsPositive())
		})
	}
}

func TestRemoveOrdered(t *testing.T) {
	ctx := context.Background()

	t.Run("removes ordered lines and discount", func(t *testing.T) {
		e := newEngine(t, NewMemoryStore(), newFakeClock())
		require.NoError(t, e.AddItem(ctx, lineItem("site", "300"), 1))
		_, err := e.ApplyDiscount(ctx, "welcome10")
		require.NoError(t, err)
		ordered := e.Snapshot().Items

		require.NoError(t, e.RemoveOrdered(ctx, ordered))

		s := e.Snapshot()
		assert.Empty(t, s.Items)
		assert.Nil(t, s.Discount)
	})

	t.Run("keeps lines and quantity added later", func(t *testing.T) {
		e := newEngine(t, NewMemoryStore(), newFakeClock())
		require.NoError(t, e.AddItem(ctx, lineItem("site", "300"), 2))
		ordered := e.Snapshot().Items

		require.NoError(t, e.AddItem(ctx, lineItem("site", "300"), 1))
		require.NoError(t, e.AddItem(ctx, lineItem("logo", "50"), 1))
		require.NoError(t, e.RemoveOrdered(ctx, ordered))

		s := e.Snapshot()
		require.Len(t, s.Items, 2)
		assert.Equal(t, "site", s.Items[0].ID)
		assert.Equal(t, 1, s.Items[0].Quantity)
		assert.Equal(t, "logo", s.Items[1].ID)
	})

	t.Run("saved items stay", func(t *testing.T) {
		e := newEngine(t, NewMemoryStore(), newFakeClock())
		require.NoError(t, e.AddItem(ctx, lineItem("site", "300"), 1))
		require.NoError(t, e.AddItem(ctx, lineItem("logo", "50"), 1))
		require.NoError(t, e.SaveForLater(ctx, "logo"))

		require.NoError(t, e.RemoveOrdered(ctx, e.Snapshot().Items))

		assert.Len(t, e.Snapshot().SavedItems, 1)
	})
}
