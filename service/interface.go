package service

import (
	"context"

	"base-marketplace/wallet"
)

type ServiceInterface interface {
	ListProducts(ctx context.Context) ([]ProductDTO, error)

	AddToCart(ctx context.Context, productID int64) error
	UpdateQuantity(productID int64, qty int)
	RemoveFromCart(productID int64)
	GetCart() CartDTO
	ToggleCart() bool
	CloseCart()

	OpenConnectPrompt()
	CloseConnectPrompt()
	Connect(ctx context.Context, kind wallet.Kind) error
	Disconnect()

	OpenCheckout() error
	Approve() error
	Confirm() error
	CloseCheckout() error
	Checkout() CheckoutDTO

	State() StateDTO
	DismissNotice()
}
