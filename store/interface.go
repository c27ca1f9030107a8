package store

import (
	"context"

	"base-marketplace/model"
)

// Catalog is a read-only, ordered source of products. No query or filter
// interface beyond lookup by id is needed.
type Catalog interface {
	ListProducts(ctx context.Context) ([]model.Product, error)
	GetProduct(ctx context.Context, id int64) (model.Product, error)
}
