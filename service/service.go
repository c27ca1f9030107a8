package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"base-marketplace/cart"
	"base-marketplace/checkout"
	"base-marketplace/metrics"
	"base-marketplace/model"
	"base-marketplace/store"
	"base-marketplace/wallet"

	"github.com/google/uuid"
)

var (
	// ErrNotConnected is returned when checkout is requested without a connected account.
	ErrNotConnected = errors.New("connect a wallet to proceed to checkout")
	// ErrEmptyCart is returned when checkout is requested with nothing in the cart.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrCheckoutClosed is returned for checkout triggers while the checkout surface is closed.
	ErrCheckoutClosed = errors.New("checkout is not open")
)

const (
	msgWalletMissing   = "No Ethereum browser wallet detected. Please install the Coinbase Wallet extension."
	msgConnectFailed   = "Failed to connect wallet. Please try again."
	msgConnectRequired = "Please connect your wallet to proceed to checkout."
)

// Options carries the optional collaborators of a Service. Zero Delays
// means checkout.DefaultDelays.
type Options struct {
	Clock      checkout.Clock
	Delays     checkout.Delays
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
	InstallURL string
	Now        func() time.Time
}

// Service is the single owner of the storefront session: cart, connection,
// checkout stepper and which surfaces are open. All methods are safe to call
// from concurrent HTTP handlers; state changes are serialised on one mutex.
type Service struct {
	catalog    store.Catalog
	gate       *wallet.Gate
	metrics    *metrics.Metrics
	logger     *slog.Logger
	installURL string
	now        func() time.Time

	mu           sync.Mutex
	cart         *cart.Cart
	stepper      *checkout.Stepper
	cartOpen     bool
	connectOpen  bool
	checkoutOpen bool
	notice       *Notice
	lastOrder    *model.Order
}

func NewService(catalog store.Catalog, gate *wallet.Gate, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Delays == (checkout.Delays{}) {
		opts.Delays = checkout.DefaultDelays
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &Service{
		catalog:    catalog,
		gate:       gate,
		metrics:    opts.Metrics,
		logger:     opts.Logger,
		installURL: opts.InstallURL,
		now:        opts.Now,
		cart:       cart.New(),
	}
	s.stepper = checkout.NewStepper(opts.Clock, opts.Delays, s.purchaseComplete)
	s.stepper.Observe(func(from, to checkout.Phase) {
		s.metrics.Transition(from.String(), to.String())
		s.logger.Info("checkout phase changed", "from", from.String(), "to", to.String())
	})
	return s
}

func (s *Service) ListProducts(ctx context.Context) ([]ProductDTO, error) {
	ps, err := s.catalog.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]ProductDTO, 0, len(ps))
	for _, p := range ps {
		out = append(out, toProductDTO(p))
	}
	return out, nil
}

// AddToCart adds one unit of a catalog product and opens the cart surface.
func (s *Service) AddToCart(ctx context.Context, productID int64) error {
	p, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cart.AddItem(p)
	s.cartOpen = true
	s.metrics.CartOp("add")
	s.logger.Info("cart item added", "product_id", productID, "lines", s.cart.Len())
	return nil
}

func (s *Service) UpdateQuantity(productID int64, qty int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cart.UpdateQuantity(productID, qty)
	s.metrics.CartOp("update")
}

func (s *Service) RemoveFromCart(productID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cart.RemoveItem(productID)
	s.metrics.CartOp("remove")
}

func (s *Service) GetCart() CartDTO {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cartLocked()
}

func (s *Service) ToggleCart() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cartOpen = !s.cartOpen
	return s.cartOpen
}

func (s *Service) CloseCart() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cartOpen = false
}

func (s *Service) OpenConnectPrompt() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connectOpen = true
}

func (s *Service) CloseConnectPrompt() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connectOpen = false
}

// Connect asks the wallet capability for an account. The capability call is
// made without holding the session lock. Failures raise a notice and leave
// the connection and the connect prompt as they were.
func (s *Service) Connect(ctx context.Context, kind wallet.Kind) error {
	conn, err := s.gate.Connect(ctx, kind)

	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case errors.Is(err, wallet.ErrCapabilityUnavailable):
		s.notice = &Notice{Kind: NoticeWalletMissing, Message: msgWalletMissing, RedirectURL: s.installURL}
		s.metrics.Connect(string(kind), "unavailable")
		s.logger.Warn("wallet capability unavailable", "kind", string(kind))
		return err
	case err != nil:
		s.notice = &Notice{Kind: NoticeConnectFailed, Message: msgConnectFailed}
		s.metrics.Connect(string(kind), "failed")
		return err
	}

	s.connectOpen = false
	if conn == nil {
		s.metrics.Connect(string(kind), "no_accounts")
		return nil
	}
	s.notice = nil
	s.metrics.Connect(string(kind), "connected")
	return nil
}

func (s *Service) Disconnect() {
	s.gate.Disconnect()
	s.logger.Info("wallet disconnected")
}

// OpenCheckout enters the checkout stepper. Without a connected account the
// user is sent to the connect prompt instead. An open checkout with a pending
// approval or confirmation cannot be re-entered.
func (s *Service) OpenCheckout() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.gate.Connection(); !ok {
		s.connectOpen = true
		s.notice = &Notice{Kind: NoticeConnectRequired, Message: msgConnectRequired}
		return ErrNotConnected
	}
	if s.cart.Len() == 0 {
		return ErrEmptyCart
	}
	if s.checkoutOpen && s.stepper.Phase().Pending() {
		return fmt.Errorf("%w (%s)", checkout.ErrCloseLocked, s.stepper.Phase())
	}
	s.cartOpen = false
	s.checkoutOpen = true
	s.lastOrder = nil
	s.stepper.Reset()
	return nil
}

func (s *Service) Approve() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.checkoutOpen {
		return ErrCheckoutClosed
	}
	return s.stepper.Approve()
}

func (s *Service) Confirm() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.checkoutOpen {
		return ErrCheckoutClosed
	}
	return s.stepper.Confirm()
}

// CloseCheckout discards the stepper. Closing an already closed checkout is a no-op.
func (s *Service) CloseCheckout() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.checkoutOpen {
		return nil
	}
	if err := s.stepper.Close(); err != nil {
		return err
	}
	s.checkoutOpen = false
	return nil
}

func (s *Service) Checkout() CheckoutDTO {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checkoutLocked()
}

func (s *Service) State() StateDTO {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := StateDTO{
		Cart:              s.cartLocked(),
		WalletAvailable:   s.gate.Available(),
		ConnectPromptOpen: s.connectOpen,
		Checkout:          s.checkoutLocked(),
	}
	if conn, ok := s.gate.Connection(); ok {
		st.Connection = &conn
	}
	if s.notice != nil {
		n := *s.notice
		st.Notice = &n
	}
	return st
}

func (s *Service) DismissNotice() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notice = nil
}

// purchaseComplete runs on the stepper's timer once the simulated
// confirmation finishes. It records a receipt and clears the cart.
func (s *Service) purchaseComplete() {
	s.mu.Lock()
	defer s.mu.Unlock()

	totals := s.cart.Totals()
	order := &model.Order{
		Reference:   uuid.NewString(),
		Items:       s.cart.Lines(),
		TotalCrypto: totals.FormatCrypto(),
		TotalFiat:   totals.FormatFiat(),
		CompletedAt: s.now(),
	}
	if conn, ok := s.gate.Connection(); ok {
		order.Account = conn.Address
	}
	s.lastOrder = order
	s.cart.Clear()
	s.metrics.Purchase()
	s.logger.Info("purchase complete", "reference", order.Reference, "total_eth", order.TotalCrypto, "items", totals.ItemCount)
}

func (s *Service) cartLocked() CartDTO {
	totals := s.cart.Totals()
	lines := s.cart.Lines()
	out := CartDTO{
		Open:      s.cartOpen,
		Items:     make([]CartLineDTO, 0, len(lines)),
		ItemCount: totals.ItemCount,
		TotalETH:  totals.FormatCrypto(),
		TotalUSD:  totals.FormatFiat(),
	}
	for _, l := range lines {
		out.Items = append(out.Items, toCartLineDTO(l))
	}
	_, connected := s.gate.Connection()
	out.CanCheckout = connected && len(lines) > 0
	return out
}

func (s *Service) checkoutLocked() CheckoutDTO {
	phase := s.stepper.Phase()
	dto := CheckoutDTO{
		Open:     s.checkoutOpen,
		Phase:    phase,
		Controls: checkout.ControlsFor(phase),
	}
	if s.lastOrder != nil {
		order := *s.lastOrder
		dto.Order = &order
		dto.TotalETH = order.TotalCrypto
		dto.TotalUSD = order.TotalFiat
		return dto
	}
	totals := s.cart.Totals()
	dto.TotalETH = totals.FormatCrypto()
	dto.TotalUSD = totals.FormatFiat()
	return dto
}
