package model

import "github.com/shopspring/decimal"

// Product is an immutable catalog entry. Prices are quoted in two
// denominations: the chain-native unit and a precomputed fiat equivalent.
type Product struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	PriceCrypto   decimal.Decimal `json:"price_eth"`
	PriceFiat     decimal.Decimal `json:"price_usd"`
	ImageURL      string          `json:"image_url"`
	SellerAddress string          `json:"seller_address"`
}

// CartLine pairs a product with a positive quantity.
type CartLine struct {
	Product  Product `json:"product"`
	Quantity int     `json:"quantity"`
}

// Subtotals returns quantity x price for both denominations.
func (l CartLine) Subtotals() (crypto, fiat decimal.Decimal) {
	q := decimal.NewFromInt(int64(l.Quantity))
	return l.Product.PriceCrypto.Mul(q), l.Product.PriceFiat.Mul(q)
}

// Profile is the placeholder social identity shown for a social-linked connection.
type Profile struct {
	Handle    string `json:"handle"`
	AvatarURL string `json:"avatar_url"`
}
