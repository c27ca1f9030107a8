package service

import (
	"base-marketplace/cart"
	"base-marketplace/checkout"
	"base-marketplace/model"
	"base-marketplace/wallet"
)

// DTOs
type ProductDTO struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	PriceETH      string `json:"price_eth"`
	PriceUSD      string `json:"price_usd"`
	ImageURL      string `json:"image_url"`
	SellerAddress string `json:"seller_address"`
}

type CartLineDTO struct {
	ProductID   int64  `json:"product_id"`
	Name        string `json:"name"`
	ImageURL    string `json:"image_url"`
	PriceETH    string `json:"price_eth"`
	Quantity    int    `json:"quantity"`
	SubtotalETH string `json:"subtotal_eth"`
	SubtotalUSD string `json:"subtotal_usd"`
}

type CartDTO struct {
	Open        bool          `json:"open"`
	Items       []CartLineDTO `json:"items"`
	ItemCount   int           `json:"item_count"`
	TotalETH    string        `json:"total_eth"`
	TotalUSD    string        `json:"total_usd"`
	CanCheckout bool          `json:"can_checkout"`
}

type CheckoutDTO struct {
	Open     bool              `json:"open"`
	Phase    checkout.Phase    `json:"phase"`
	Controls checkout.Controls `json:"controls"`
	TotalETH string            `json:"total_eth"`
	TotalUSD string            `json:"total_usd"`
	Order    *model.Order      `json:"order,omitempty"`
}

type StateDTO struct {
	Cart              CartDTO            `json:"cart"`
	Connection        *wallet.Connection `json:"connection,omitempty"`
	WalletAvailable   bool               `json:"wallet_available"`
	ConnectPromptOpen bool               `json:"connect_prompt_open"`
	Checkout          CheckoutDTO        `json:"checkout"`
	Notice            *Notice            `json:"notice,omitempty"`
}

// NoticeKind classifies user-visible alerts.
type NoticeKind string

const (
	NoticeWalletMissing   NoticeKind = "wallet_missing"
	NoticeConnectFailed   NoticeKind = "connect_failed"
	NoticeConnectRequired NoticeKind = "connect_required"
)

// Notice is the last alert raised for the user.
type Notice struct {
	Kind        NoticeKind `json:"kind"`
	Message     string     `json:"message"`
	RedirectURL string     `json:"redirect_url,omitempty"`
}

func toProductDTO(p model.Product) ProductDTO {
	return ProductDTO{
		ID:            p.ID,
		Name:          p.Name,
		Description:   p.Description,
		PriceETH:      p.PriceCrypto.String(),
		PriceUSD:      p.PriceFiat.StringFixed(cart.FiatPlaces),
		ImageURL:      p.ImageURL,
		SellerAddress: p.SellerAddress,
	}
}

func toCartLineDTO(l model.CartLine) CartLineDTO {
	eth, usd := l.Subtotals()
	return CartLineDTO{
		ProductID:   l.Product.ID,
		Name:        l.Product.Name,
		ImageURL:    l.Product.ImageURL,
		PriceETH:    l.Product.PriceCrypto.String(),
		Quantity:    l.Quantity,
		SubtotalETH: eth.StringFixed(cart.CryptoPlaces),
		SubtotalUSD: usd.StringFixed(cart.FiatPlaces),
	}
}
