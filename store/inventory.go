package store

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"base-marketplace/model"
)

// ErrProductNotFound is returned when a product id is not in the catalog.
var ErrProductNotFound = errors.New("product not found")

//go:embed catalog.json
var defaultCatalog []byte

// StaticCatalog serves a fixed product list held in memory.
type StaticCatalog struct {
	products []model.Product
	byID     map[int64]int
}

// NewStaticCatalog validates and copies products.
func NewStaticCatalog(products []model.Product) (*StaticCatalog, error) {
	if err := Validate(products); err != nil {
		return nil, err
	}
	c := &StaticCatalog{
		products: make([]model.Product, len(products)),
		byID:     make(map[int64]int, len(products)),
	}
	copy(c.products, products)
	for i, p := range c.products {
		c.byID[p.ID] = i
	}
	return c, nil
}

// DefaultCatalog returns the built-in storefront products.
func DefaultCatalog() (*StaticCatalog, error) {
	return LoadStaticCatalog(bytes.NewReader(defaultCatalog))
}

// LoadStaticCatalog decodes a JSON array of products.
func LoadStaticCatalog(r io.Reader) (*StaticCatalog, error) {
	var products []model.Product
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&products); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return NewStaticCatalog(products)
}

// LoadStaticCatalogFile reads a catalog JSON file.
func LoadStaticCatalogFile(path string) (*StaticCatalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadStaticCatalog(f)
}

func (c *StaticCatalog) ListProducts(ctx context.Context) ([]model.Product, error) {
	out := make([]model.Product, len(c.products))
	copy(out, c.products)
	return out, nil
}

func (c *StaticCatalog) GetProduct(ctx context.Context, id int64) (model.Product, error) {
	i, ok := c.byID[id]
	if !ok {
		return model.Product{}, fmt.Errorf("%w: %d", ErrProductNotFound, id)
	}
	return c.products[i], nil
}

// Validate checks catalog entries: positive unique ids, a name, and
// non-negative prices.
func Validate(products []model.Product) error {
	seen := make(map[int64]struct{}, len(products))
	for _, p := range products {
		if p.ID <= 0 {
			return fmt.Errorf("product id must be > 0, got %d", p.ID)
		}
		if _, dup := seen[p.ID]; dup {
			return fmt.Errorf("duplicate product id %d", p.ID)
		}
		seen[p.ID] = struct{}{}
		if p.Name == "" {
			return fmt.Errorf("product %d: name is required", p.ID)
		}
		if p.PriceCrypto.IsNegative() || p.PriceFiat.IsNegative() {
			return fmt.Errorf("product %d: price must be >= 0", p.ID)
		}
	}
	return nil
}
