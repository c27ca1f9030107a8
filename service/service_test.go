package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"base-marketplace/checkout"
	"base-marketplace/metrics"
	"base-marketplace/model"
	"base-marketplace/store"
	"base-marketplace/wallet"

	"github.com/shopspring/decimal"
)

const testAddr = "0x52908400098527886E0F7030069857D2E4169EE7"

// ---- fakes ----
type fakeCatalog struct {
	ListProductsFn func(ctx context.Context) ([]model.Product, error)
	GetProductFn   func(ctx context.Context, id int64) (model.Product, error)
}

func (f *fakeCatalog) ListProducts(ctx context.Context) ([]model.Product, error) {
	return f.ListProductsFn(ctx)
}
func (f *fakeCatalog) GetProduct(ctx context.Context, id int64) (model.Product, error) {
	return f.GetProductFn(ctx, id)
}

type fakeCapability struct {
	RequestAccountsFn func(ctx context.Context) ([]string, error)
}

func (f *fakeCapability) RequestAccounts(ctx context.Context) ([]string, error) {
	return f.RequestAccountsFn(ctx)
}

var testProducts = []model.Product{
	{ID: 1, Name: "Frame Kit", PriceCrypto: decimal.RequireFromString("0.1"), PriceFiat: decimal.RequireFromString("330")},
	{ID: 2, Name: "PFP", PriceCrypto: decimal.RequireFromString("0.05"), PriceFiat: decimal.RequireFromString("165")},
}

func catalogOf(products []model.Product) *fakeCatalog {
	return &fakeCatalog{
		ListProductsFn: func(context.Context) ([]model.Product, error) { return products, nil },
		GetProductFn: func(_ context.Context, id int64) (model.Product, error) {
			for _, p := range products {
				if p.ID == id {
					return p, nil
				}
			}
			return model.Product{}, store.ErrProductNotFound
		},
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type harness struct {
	svc   *Service
	clock *checkout.ManualClock
}

func newHarness(t *testing.T, capability wallet.Capability) *harness {
	t.Helper()
	clock := checkout.NewManualClock()
	gate := wallet.NewGate(capability, "", quietLogger())
	svc := NewService(catalogOf(testProducts), gate, Options{
		Clock:      clock,
		Metrics:    metrics.New("test"),
		Logger:     quietLogger(),
		InstallURL: "https://example.com/install",
		Now:        func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) },
	})
	return &harness{svc: svc, clock: clock}
}

func walletWith(addrs ...string) *fakeCapability {
	return &fakeCapability{RequestAccountsFn: func(context.Context) ([]string, error) { return addrs, nil }}
}

// ---- Tests ----

func TestListProductsMapping(t *testing.T) {
	h := newHarness(t, nil)
	out, err := h.svc.ListProducts(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 products, got %d", len(out))
	}
	if out[0].PriceETH != "0.1" || out[0].PriceUSD != "330.00" {
		t.Fatalf("unexpected price formatting: %+v", out[0])
	}
}

func TestListProductsStoreError(t *testing.T) {
	svc := NewService(&fakeCatalog{
		ListProductsFn: func(context.Context) ([]model.Product, error) { return nil, errors.New("db down") },
	}, wallet.NewGate(nil, "", quietLogger()), Options{Logger: quietLogger()})
	if _, err := svc.ListProducts(context.Background()); err == nil {
		t.Fatalf("expected store error to propagate")
	}
}

func TestAddToCartOpensCartAndMerges(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	if err := h.svc.AddToCart(ctx, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c := h.svc.GetCart()
	if !c.Open || len(c.Items) != 1 || c.Items[0].Quantity != 1 {
		t.Fatalf("unexpected cart after first add: %+v", c)
	}

	if err := h.svc.AddToCart(ctx, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c = h.svc.GetCart()
	if len(c.Items) != 1 || c.Items[0].Quantity != 2 || c.ItemCount != 2 {
		t.Fatalf("unexpected cart after second add: %+v", c)
	}
}

func TestAddToCartUnknownProduct(t *testing.T) {
	h := newHarness(t, nil)
	if err := h.svc.AddToCart(context.Background(), 99); !errors.Is(err, store.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
	if c := h.svc.GetCart(); c.Open || len(c.Items) != 0 {
		t.Fatalf("cart must be untouched: %+v", c)
	}
}

func TestUpdateQuantityNegativeRemoves(t *testing.T) {
	h := newHarness(t, nil)
	_ = h.svc.AddToCart(context.Background(), 1)
	h.svc.UpdateQuantity(1, 3)
	if c := h.svc.GetCart(); c.Items[0].Quantity != 3 {
		t.Fatalf("expected qty 3, got %+v", c.Items)
	}
	h.svc.UpdateQuantity(1, -5)
	if c := h.svc.GetCart(); len(c.Items) != 0 {
		t.Fatalf("expected empty cart, got %+v", c.Items)
	}
}

func TestCartTotalsFormatting(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	_ = h.svc.AddToCart(ctx, 1)
	_ = h.svc.AddToCart(ctx, 1)
	_ = h.svc.AddToCart(ctx, 2)
	h.svc.RemoveFromCart(42)

	c := h.svc.GetCart()
	if c.TotalETH != "0.2500" || c.TotalUSD != "825.00" {
		t.Fatalf("unexpected totals: %s / %s", c.TotalETH, c.TotalUSD)
	}
	if c.Items[0].SubtotalETH != "0.2000" {
		t.Fatalf("unexpected line subtotal: %+v", c.Items[0])
	}
}

func TestToggleCart(t *testing.T) {
	h := newHarness(t, nil)
	if !h.svc.ToggleCart() || h.svc.ToggleCart() {
		t.Fatalf("toggle did not flip the cart surface")
	}
	h.svc.ToggleCart()
	h.svc.CloseCart()
	if h.svc.GetCart().Open {
		t.Fatalf("expected cart closed")
	}
}

func TestCheckoutRequiresConnection(t *testing.T) {
	h := newHarness(t, walletWith(testAddr))
	_ = h.svc.AddToCart(context.Background(), 1)

	err := h.svc.OpenCheckout()
	if !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
	st := h.svc.State()
	if !st.ConnectPromptOpen {
		t.Fatalf("expected connect prompt to open")
	}
	if st.Checkout.Open {
		t.Fatalf("checkout must not open without a connection")
	}
	if st.Notice == nil || st.Notice.Kind != NoticeConnectRequired {
		t.Fatalf("expected connect-required notice, got %+v", st.Notice)
	}
	if st.Cart.CanCheckout {
		t.Fatalf("CanCheckout must be false without a connection")
	}
}

func TestConnectWithoutCapability(t *testing.T) {
	h := newHarness(t, nil)
	h.svc.OpenConnectPrompt()

	err := h.svc.Connect(context.Background(), wallet.KindWallet)
	if !errors.Is(err, wallet.ErrCapabilityUnavailable) {
		t.Fatalf("expected ErrCapabilityUnavailable, got %v", err)
	}
	st := h.svc.State()
	if st.Connection != nil {
		t.Fatalf("connection must stay empty")
	}
	if st.Notice == nil || st.Notice.Kind != NoticeWalletMissing || st.Notice.RedirectURL != "https://example.com/install" {
		t.Fatalf("unexpected notice: %+v", st.Notice)
	}
	if !st.ConnectPromptOpen {
		t.Fatalf("prompt should stay open after a failed attempt")
	}
	if st.WalletAvailable {
		t.Fatalf("wallet must be reported unavailable")
	}
}

func TestConnectFailureKeepsState(t *testing.T) {
	h := newHarness(t, &fakeCapability{RequestAccountsFn: func(context.Context) ([]string, error) {
		return nil, errors.New("user rejected")
	}})
	err := h.svc.Connect(context.Background(), wallet.KindSocial)
	if !errors.Is(err, wallet.ErrRequestFailed) {
		t.Fatalf("expected ErrRequestFailed, got %v", err)
	}
	st := h.svc.State()
	if st.Connection != nil || st.Notice == nil || st.Notice.Kind != NoticeConnectFailed {
		t.Fatalf("unexpected state after failure: %+v", st)
	}
	h.svc.DismissNotice()
	if h.svc.State().Notice != nil {
		t.Fatalf("expected notice dismissed")
	}
}

func TestConnectSocialAndDisconnect(t *testing.T) {
	h := newHarness(t, walletWith(testAddr))
	h.svc.OpenConnectPrompt()
	if err := h.svc.Connect(context.Background(), wallet.KindSocial); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	st := h.svc.State()
	if st.ConnectPromptOpen {
		t.Fatalf("prompt should close after connecting")
	}
	if st.Connection == nil || st.Connection.Address != testAddr || st.Connection.Profile == nil {
		t.Fatalf("unexpected connection: %+v", st.Connection)
	}
	if st.Connection.Profile.Handle != "user-529084" {
		t.Fatalf("unexpected handle %q", st.Connection.Profile.Handle)
	}

	h.svc.Disconnect()
	if h.svc.State().Connection != nil {
		t.Fatalf("expected connection cleared")
	}
}

func TestCheckoutEmptyCart(t *testing.T) {
	h := newHarness(t, walletWith(testAddr))
	_ = h.svc.Connect(context.Background(), wallet.KindWallet)
	if err := h.svc.OpenCheckout(); !errors.Is(err, ErrEmptyCart) {
		t.Fatalf("expected ErrEmptyCart, got %v", err)
	}
}

func TestCheckoutFlowClearsCart(t *testing.T) {
	h := newHarness(t, walletWith(testAddr))
	ctx := context.Background()
	_ = h.svc.AddToCart(ctx, 1)
	_ = h.svc.AddToCart(ctx, 1)
	_ = h.svc.AddToCart(ctx, 2)
	if err := h.svc.Connect(ctx, wallet.KindWallet); err != nil {
		t.Fatalf("connect: %v", err)
	}

	if err := h.svc.Approve(); !errors.Is(err, ErrCheckoutClosed) {
		t.Fatalf("expected ErrCheckoutClosed before opening, got %v", err)
	}
	if err := h.svc.OpenCheckout(); err != nil {
		t.Fatalf("OpenCheckout: %v", err)
	}
	st := h.svc.State()
	if st.Cart.Open || !st.Checkout.Open || st.Checkout.Phase != checkout.Initial {
		t.Fatalf("unexpected surfaces after open: %+v", st)
	}
	if st.Checkout.TotalETH != "0.2500" || st.Checkout.TotalUSD != "825.00" {
		t.Fatalf("unexpected checkout totals: %+v", st.Checkout)
	}

	if err := h.svc.Confirm(); !errors.Is(err, checkout.ErrInvalidTransition) {
		t.Fatalf("confirm before approval must fail, got %v", err)
	}
	if err := h.svc.Approve(); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if err := h.svc.CloseCheckout(); !errors.Is(err, checkout.ErrCloseLocked) {
		t.Fatalf("expected close locked while approving, got %v", err)
	}
	h.clock.Advance(2 * time.Second)
	if p := h.svc.Checkout().Phase; p != checkout.Approved {
		t.Fatalf("expected approved, got %s", p)
	}

	if err := h.svc.Confirm(); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	h.clock.Advance(3 * time.Second)

	co := h.svc.Checkout()
	if co.Phase != checkout.Complete || !co.Controls.Close {
		t.Fatalf("expected complete with close enabled, got %+v", co)
	}
	if co.Order == nil || co.Order.Reference == "" || co.Order.Account != testAddr || co.Order.TotalCrypto != "0.2500" {
		t.Fatalf("unexpected order receipt: %+v", co.Order)
	}
	if co.TotalETH != "0.2500" {
		t.Fatalf("completed checkout should show the paid total, got %s", co.TotalETH)
	}
	if c := h.svc.GetCart(); len(c.Items) != 0 || c.ItemCount != 0 {
		t.Fatalf("cart must be cleared on completion: %+v", c)
	}

	if err := h.svc.CloseCheckout(); err != nil {
		t.Fatalf("CloseCheckout: %v", err)
	}
	if h.svc.Checkout().Open {
		t.Fatalf("checkout should be closed")
	}
	if err := h.svc.CloseCheckout(); err != nil {
		t.Fatalf("closing twice should be a no-op, got %v", err)
	}
}

func TestReopenCheckoutResetsPhase(t *testing.T) {
	h := newHarness(t, walletWith(testAddr))
	ctx := context.Background()
	_ = h.svc.AddToCart(ctx, 1)
	_ = h.svc.Connect(ctx, wallet.KindWallet)

	_ = h.svc.OpenCheckout()
	_ = h.svc.Approve()
	h.clock.Advance(2 * time.Second)
	_ = h.svc.CloseCheckout()

	if err := h.svc.OpenCheckout(); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if p := h.svc.Checkout().Phase; p != checkout.Initial {
		t.Fatalf("expected initial after reopen, got %s", p)
	}
}

func TestOpenCheckoutRefusedWhilePending(t *testing.T) {
	h := newHarness(t, walletWith(testAddr))
	ctx := context.Background()
	_ = h.svc.AddToCart(ctx, 1)
	_ = h.svc.Connect(ctx, wallet.KindWallet)

	if err := h.svc.OpenCheckout(); err != nil {
		t.Fatalf("OpenCheckout: %v", err)
	}
	_ = h.svc.Approve()
	if err := h.svc.OpenCheckout(); !errors.Is(err, checkout.ErrCloseLocked) {
		t.Fatalf("open while approving: expected ErrCloseLocked, got %v", err)
	}
	if p := h.svc.Checkout().Phase; p != checkout.Approving {
		t.Fatalf("expected approving, got %s", p)
	}

	h.clock.Advance(2 * time.Second)
	_ = h.svc.Confirm()
	if err := h.svc.CloseCheckout(); !errors.Is(err, checkout.ErrCloseLocked) {
		t.Fatalf("close while confirming: expected ErrCloseLocked, got %v", err)
	}
	if err := h.svc.OpenCheckout(); !errors.Is(err, checkout.ErrCloseLocked) {
		t.Fatalf("open while confirming: expected ErrCloseLocked, got %v", err)
	}

	h.clock.Advance(3 * time.Second)
	co := h.svc.Checkout()
	if co.Phase != checkout.Complete || co.Order == nil {
		t.Fatalf("confirmation should still complete: %+v", co)
	}
	if c := h.svc.GetCart(); len(c.Items) != 0 {
		t.Fatalf("cart should be cleared after completion: %+v", c)
	}
}
