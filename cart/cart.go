package cart

import (
	"base-marketplace/model"

	"github.com/shopspring/decimal"
)

// Display precision for the two denominations.
const (
	CryptoPlaces = 4
	FiatPlaces   = 2
)

// Cart is an ordered, in-memory set of cart lines. It holds at most one line
// per product id and never keeps a line at quantity zero. Cart is not safe
// for concurrent use; the owning coordinator serialises access.
type Cart struct {
	lines []model.CartLine
}

// New returns an empty cart.
func New() *Cart {
	return &Cart{}
}

func (c *Cart) index(productID int64) int {
	for i := range c.lines {
		if c.lines[i].Product.ID == productID {
			return i
		}
	}
	return -1
}

// AddItem increments the quantity of an existing line in place or appends a
// new line with quantity 1.
func (c *Cart) AddItem(p model.Product) {
	if i := c.index(p.ID); i >= 0 {
		c.lines[i].Quantity++
		return
	}
	c.lines = append(c.lines, model.CartLine{Product: p, Quantity: 1})
}

// UpdateQuantity sets the quantity of a line. A non-positive quantity removes
// the line; an unknown product id is ignored.
func (c *Cart) UpdateQuantity(productID int64, quantity int) {
	if quantity <= 0 {
		c.RemoveItem(productID)
		return
	}
	if i := c.index(productID); i >= 0 {
		c.lines[i].Quantity = quantity
	}
}

// RemoveItem deletes the line for productID if present.
func (c *Cart) RemoveItem(productID int64) {
	i := c.index(productID)
	if i < 0 {
		return
	}
	c.lines = append(c.lines[:i], c.lines[i+1:]...)
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.lines = nil
}

// Lines returns a copy of the lines in insertion order.
func (c *Cart) Lines() []model.CartLine {
	out := make([]model.CartLine, len(c.lines))
	copy(out, c.lines)
	return out
}

// Len is the number of distinct lines.
func (c *Cart) Len() int { return len(c.lines) }

// Totals is recomputed on every call.
func (c *Cart) Totals() Totals {
	return Sum(c.lines)
}

// Totals are the derived sums over a set of lines.
type Totals struct {
	Crypto    decimal.Decimal
	Fiat      decimal.Decimal
	ItemCount int
}

// Sum computes totals for an arbitrary set of lines.
func Sum(lines []model.CartLine) Totals {
	t := Totals{Crypto: decimal.Zero, Fiat: decimal.Zero}
	for _, l := range lines {
		crypto, fiat := l.Subtotals()
		t.Crypto = t.Crypto.Add(crypto)
		t.Fiat = t.Fiat.Add(fiat)
		t.ItemCount += l.Quantity
	}
	return t
}

// Add returns the component-wise sum of two totals.
func (t Totals) Add(o Totals) Totals {
	return Totals{
		Crypto:    t.Crypto.Add(o.Crypto),
		Fiat:      t.Fiat.Add(o.Fiat),
		ItemCount: t.ItemCount + o.ItemCount,
	}
}

// FormatCrypto renders the crypto total with four fractional digits.
func (t Totals) FormatCrypto() string { return t.Crypto.StringFixed(CryptoPlaces) }

// FormatFiat renders the fiat total with two fractional digits.
func (t Totals) FormatFiat() string { return t.Fiat.StringFixed(FiatPlaces) }
