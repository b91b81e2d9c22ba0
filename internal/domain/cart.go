package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	DefaultMaxQuantity = 99
	AbandonedAfter     = 30 * time.Minute
	Currency           = "EUR"
)

type Category string

const (
	CategoryDevelopment Category = "development"
	CategoryDesign      Category = "design"
	CategoryMarketing   Category = "marketing"
	CategoryMaintenance Category = "maintenance"
	CategoryConsulting  Category = "consulting"
	CategoryHosting     Category = "hosting"
)

type LineItem struct {
	ID                string           `json:"id"`
	Name              string           `json:"name"`
	Description       string           `json:"description"`
	Price             decimal.Decimal  `json:"price"`
	Quantity          int              `json:"quantity"`
	MaxQuantity       int              `json:"max_quantity,omitempty"`
	Category          Category         `json:"category"`
	OriginalPrice     *decimal.Decimal `json:"original_price,omitempty"`
	Features          []string         `json:"features"`
	EstimatedDelivery string           `json:"estimated_delivery,omitempty"`
}

// QuantityCap returns the item's max quantity, falling back to DefaultMaxQuantity when unset.
func (i LineItem) QuantityCap() int {
	if i.MaxQuantity > 0 {
		return i.MaxQuantity
	}
	return DefaultMaxQuantity
}

func (i LineItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Clone returns a deep copy, so later cart mutations never reach a saved snapshot.
func (i LineItem) Clone() LineItem {
	c := i
	if i.OriginalPrice != nil {
		op := *i.OriginalPrice
		c.OriginalPrice = &op
	}
	if i.Features != nil {
		c.Features = append([]string(nil), i.Features...)
	}
	return c
}

type SavedItem struct {
	ID      string    `json:"id"`
	Item    LineItem  `json:"item"`
	SavedAt time.Time `json:"saved_at"`
}

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

type Discount struct {
	Code        string           `json:"code"`
	Type        DiscountType     `json:"type"`
	Value       decimal.Decimal  `json:"value"`
	MinAmount   *decimal.Decimal `json:"min_amount,omitempty"`
	MaxDiscount *decimal.Decimal `json:"max_discount,omitempty"`
	Description string           `json:"description"`
}

// Eligible reports whether a cart with the given subtotal may take the discount.
func (d Discount) Eligible(subtotal decimal.Decimal) bool {
	return d.MinAmount == nil || subtotal.GreaterThanOrEqual(*d.MinAmount)
}

type CartState struct {
	Items        []LineItem  `json:"items"`
	SavedItems   []SavedItem `json:"saved_items"`
	Discount     *Discount   `json:"discount"`
	LastActivity time.Time   `json:"last_activity"`
}

func NewCartState(now time.Time) CartState {
	return CartState{
		Items:        []LineItem{},
		SavedItems:   []SavedItem{},
		LastActivity: now,
	}
}

func (s CartState) Clone() CartState {
	c := CartState{
		Items:        make([]LineItem, len(s.Items)),
		SavedItems:   make([]SavedItem, len(s.SavedItems)),
		LastActivity: s.LastActivity,
	}
	for i, item := range s.Items {
		c.Items[i] = item.Clone()
	}
	for i, saved := range s.SavedItems {
		c.SavedItems[i] = SavedItem{ID: saved.ID, Item: saved.Item.Clone(), SavedAt: saved.SavedAt}
	}
	if s.Discount != nil {
		d := *s.Discount
		c.Discount = &d
	}
	return c
}

func (s CartState) IndexOf(id string) int {
	for i, item := range s.Items {
		if item.ID == id {
			return i
		}
	}
	return -1
}

func (s CartState) SavedIndexOf(savedID string) int {
	for i, saved := range s.SavedItems {
		if saved.ID == savedID {
			return i
		}
	}
	return -1
}

func (s CartState) ItemCount() int {
	var count int
	for _, item := range s.Items {
		count += item.Quantity
	}
	return count
}

func (s CartState) IsAbandoned(now time.Time) bool {
	return len(s.Items) > 0 && now.Sub(s.LastActivity) > AbandonedAfter
}

type OrderSummary struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Discount decimal.Decimal `json:"discount"`
	Tax      decimal.Decimal `json:"tax"`
	Shipping decimal.Decimal `json:"shipping"`
	Total    decimal.Decimal `json:"total"`
	Currency string          `json:"currency"`
}
