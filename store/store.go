package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	"base-marketplace/model"

	"github.com/shopspring/decimal"

	_ "github.com/lib/pq"
)

//go:embed migrations.sql
var migrationSQL string

// ProductRow mirrors a row of the products table.
type ProductRow struct {
	ID            int64
	Name          string
	Description   sql.NullString
	PriceETH      decimal.Decimal
	PriceUSD      decimal.Decimal
	ImageURL      string
	SellerAddress string
}

func (r ProductRow) toModel() model.Product {
	p := model.Product{
		ID:            r.ID,
		Name:          r.Name,
		PriceCrypto:   r.PriceETH,
		PriceFiat:     r.PriceUSD,
		ImageURL:      r.ImageURL,
		SellerAddress: r.SellerAddress,
	}
	if r.Description.Valid {
		p.Description = r.Description.String
	}
	return p
}

// PostgresCatalog reads products from Postgres. It never writes outside
// Migrate.
type PostgresCatalog struct {
	DB *sql.DB
}

func NewPostgresCatalog(dsn string) (*PostgresCatalog, error) {
	DB, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := DB.Ping(); err != nil {
		DB.Close()
		return nil, err
	}
	return &PostgresCatalog{DB: DB}, nil
}

func (s *PostgresCatalog) Close() error { return s.DB.Close() }

// Migrate creates and seeds the products table.
func (s *PostgresCatalog) Migrate(ctx context.Context) error {
	if _, err := s.DB.ExecContext(ctx, migrationSQL); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

const selectProducts = `SELECT id, name, description, price_eth, price_usd, image_url, seller_address FROM products`

func (s *PostgresCatalog) ListProducts(ctx context.Context) ([]model.Product, error) {
	rows, err := s.DB.QueryContext(ctx, selectProducts+` ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Product{}
	for rows.Next() {
		var r ProductRow
		if err := rows.Scan(&r.ID, &r.Name, &r.Description, &r.PriceETH, &r.PriceUSD, &r.ImageURL, &r.SellerAddress); err != nil {
			return nil, err
		}
		out = append(out, r.toModel())
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PostgresCatalog) GetProduct(ctx context.Context, id int64) (model.Product, error) {
	var r ProductRow
	err := s.DB.QueryRowContext(ctx, selectProducts+` WHERE id=$1`, id).
		Scan(&r.ID, &r.Name, &r.Description, &r.PriceETH, &r.PriceUSD, &r.ImageURL, &r.SellerAddress)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Product{}, fmt.Errorf("%w: %d", ErrProductNotFound, id)
	}
	if err != nil {
		return model.Product{}, err
	}
	return r.toModel(), nil
}
