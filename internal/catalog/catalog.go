// Package catalog holds the static storefront configuration: discount codes
// and the recommended-items list shown next to the cart.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/joao-fontenele/cartflow/internal/domain"
)

//go:embed default.yaml
var defaultYAML []byte

type Catalog struct {
	discounts   map[string]domain.Discount
	recommended []domain.LineItem
}

type fileDiscount struct {
	Code        string `yaml:"code"`
	Type        string `yaml:"type"`
	Value       string `yaml:"value"`
	MinAmount   string `yaml:"min_amount"`
	MaxDiscount string `yaml:"max_discount"`
	Description string `yaml:"description"`
}

type fileItem struct {
	ID                string   `yaml:"id"`
	Name              string   `yaml:"name"`
	Description       string   `yaml:"description"`
	Price             string   `yaml:"price"`
	OriginalPrice     string   `yaml:"original_price"`
	MaxQuantity       int      `yaml:"max_quantity"`
	Category          string   `yaml:"category"`
	Features          []string `yaml:"features"`
	EstimatedDelivery string   `yaml:"estimated_delivery"`
}

type file struct {
	Discounts   []fileDiscount `yaml:"discounts"`
	Recommended []fileItem     `yaml:"recommended"`
}

func Default() *Catalog {
	c, err := Parse(defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("catalog: embedded default is invalid: %v", err))
	}
	return c
}

// Load reads a catalog from path, or returns the embedded default when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("unmarshal catalog: %w", err)
	}

	c := &Catalog{discounts: make(map[string]domain.Discount, len(f.Discounts))}

	for _, fd := range f.Discounts {
		d, err := fd.toDomain()
		if err != nil {
			return nil, fmt.Errorf("discount %q: %w", fd.Code, err)
		}
		if _, dup := c.discounts[d.Code]; dup {
			return nil, fmt.Errorf("duplicate discount code %q", d.Code)
		}
		c.discounts[d.Code] = d
	}

	for _, fi := range f.Recommended {
		item, err := fi.toDomain()
		if err != nil {
			return nil, fmt.Errorf("recommended item %q: %w", fi.ID, err)
		}
		c.recommended = append(c.recommended, item)
	}

	return c, nil
}

// Discount looks up a code case-insensitively.
func (c *Catalog) Discount(code string) (domain.Discount, bool) {
	d, ok := c.discounts[strings.ToUpper(code)]
	return d, ok
}

func (c *Catalog) Recommended() []domain.LineItem {
	out := make([]domain.LineItem, len(c.recommended))
	for i, item := range c.recommended {
		out[i] = item.Clone()
	}
	return out
}

func (fd fileDiscount) toDomain() (domain.Discount, error) {
	d := domain.Discount{
		Code:        strings.ToUpper(fd.Code),
		Type:        domain.DiscountType(fd.Type),
		Description: fd.Description,
	}
	if d.Code == "" {
		return d, fmt.Errorf("missing code")
	}
	if d.Type != domain.DiscountPercentage && d.Type != domain.DiscountFixed {
		return d, fmt.Errorf("unknown type %q", fd.Type)
	}

	value, err := decimal.NewFromString(fd.Value)
	if err != nil {
		return d, fmt.Errorf("value: %w", err)
	}
	if value.IsNegative() {
		return d, fmt.Errorf("value must not be negative")
	}
	if d.Type == domain.DiscountPercentage && value.GreaterThan(decimal.NewFromInt(100)) {
		return d, fmt.Errorf("percentage must be 0-100")
	}
	d.Value = value

	if d.MinAmount, err = optionalDecimal(fd.MinAmount); err != nil {
		return d, fmt.Errorf("min_amount: %w", err)
	}
	if d.MaxDiscount, err = optionalDecimal(fd.MaxDiscount); err != nil {
		return d, fmt.Errorf("max_discount: %w", err)
	}
	return d, nil
}

func (fi fileItem) toDomain() (domain.LineItem, error) {
	price, err := decimal.NewFromString(fi.Price)
	if err != nil {
		return domain.LineItem{}, fmt.Errorf("price: %w", err)
	}
	originalPrice, err := optionalDecimal(fi.OriginalPrice)
	if err != nil {
		return domain.LineItem{}, fmt.Errorf("original_price: %w", err)
	}

	features := fi.Features
	if features == nil {
		features = []string{}
	}

	return domain.LineItem{
		ID:                fi.ID,
		Name:              fi.Name,
		Description:       fi.Description,
		Price:             price,
		Quantity:          1,
		MaxQuantity:       fi.MaxQuantity,
		Category:          domain.Category(fi.Category),
		OriginalPrice:     originalPrice,
		Features:          features,
		EstimatedDelivery: fi.EstimatedDelivery,
	}, nil
}

func optionalDecimal(s string) (*decimal.Decimal, error) {
	if s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
