package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"base-marketplace/checkout"
	"base-marketplace/metrics"
	"base-marketplace/service"
	"base-marketplace/store"
	"base-marketplace/wallet"

	"github.com/gorilla/mux"
)

// Handler is the HTTP layer that talks to service.Service
type Handler struct {
	svc     service.ServiceInterface
	metrics *metrics.Metrics
}

// NewHandler returns a Handler instance. m may be nil.
func NewHandler(s service.ServiceInterface, m *metrics.Metrics) *Handler {
	return &Handler{svc: s, metrics: m}
}

// RegisterRoutes registers all routes on the provided router
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.Use(h.metrics.Middleware)

	// Catalog
	r.HandleFunc("/products/list", h.ListProducts).Methods("GET")

	// Cart
	r.HandleFunc("/cart/add", h.AddToCart).Methods("POST")
	r.HandleFunc("/cart/update", h.UpdateQuantity).Methods("POST")
	r.HandleFunc("/cart/remove", h.RemoveFromCart).Methods("POST")
	r.HandleFunc("/cart/list", h.ListCart).Methods("GET")
	r.HandleFunc("/cart/toggle", h.ToggleCart).Methods("POST")
	r.HandleFunc("/cart/close", h.CloseCart).Methods("POST")

	// Wallet
	r.HandleFunc("/wallet/prompt", h.OpenConnectPrompt).Methods("POST")
	r.HandleFunc("/wallet/prompt/close", h.CloseConnectPrompt).Methods("POST")
	r.HandleFunc("/wallet/connect", h.Connect).Methods("POST")
	r.HandleFunc("/wallet/disconnect", h.Disconnect).Methods("POST")

	// Checkout
	r.HandleFunc("/checkout/open", h.OpenCheckout).Methods("POST")
	r.HandleFunc("/checkout/approve", h.Approve).Methods("POST")
	r.HandleFunc("/checkout/confirm", h.Confirm).Methods("POST")
	r.HandleFunc("/checkout/close", h.CloseCheckout).Methods("POST")
	r.HandleFunc("/checkout/status", h.CheckoutStatus).Methods("GET")

	// Session
	r.HandleFunc("/state", h.State).Methods("GET")
	r.HandleFunc("/notice/dismiss", h.DismissNotice).Methods("POST")
	r.HandleFunc("/healthz", h.Health).Methods("GET")
	r.Handle("/metrics", h.metrics.Handler()).Methods("GET")
}

// --- request / response shapes ---
type cartReq struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type connectReq struct {
	Kind string `json:"kind"`
}

type errorResp struct {
	Error string            `json:"error"`
	State *service.StateDTO `json:"state,omitempty"`
}

// --- helpers ---
func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorResp{Error: msg})
}

// writeServiceErr maps service errors to status codes and includes the
// session state so the caller can render the resulting notice or prompt.
func (h *Handler) writeServiceErr(w http.ResponseWriter, err error) {
	st := h.svc.State()
	writeJSON(w, statusFor(err), errorResp{Error: err.Error(), State: &st})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrProductNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrNotConnected),
		errors.Is(err, service.ErrEmptyCart),
		errors.Is(err, service.ErrCheckoutClosed),
		errors.Is(err, checkout.ErrInvalidTransition),
		errors.Is(err, checkout.ErrCloseLocked):
		return http.StatusConflict
	case errors.Is(err, wallet.ErrCapabilityUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, wallet.ErrRequestFailed):
		return http.StatusBadGateway
	case errors.Is(err, wallet.ErrUnknownKind):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// decode treats an empty body as an empty request.
func decode(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// --- Handler ---

// ListProducts handles GET /products/list
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	ps, err := h.svc.ListProducts(r.Context())
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

// AddToCart handles POST /cart/add
// body: { "product_id": 1 }
func (h *Handler) AddToCart(w http.ResponseWriter, r *http.Request) {
	var req cartReq
	if err := decode(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.ProductID <= 0 {
		writeErr(w, http.StatusBadRequest, "product_id is required")
		return
	}
	if err := h.svc.AddToCart(r.Context(), req.ProductID); err != nil {
		h.writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.svc.GetCart())
}

// UpdateQuantity handles POST /cart/update
// body: { "product_id": 1, "quantity": 3 }; quantity <= 0 removes the line
func (h *Handler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	var req cartReq
	if err := decode(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.ProductID <= 0 {
		writeErr(w, http.StatusBadRequest, "product_id is required")
		return
	}
	h.svc.UpdateQuantity(req.ProductID, req.Quantity)
	writeJSON(w, http.StatusOK, h.svc.GetCart())
}

// RemoveFromCart handles POST /cart/remove
// body: { "product_id": 1 }
func (h *Handler) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	var req cartReq
	if err := decode(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.ProductID <= 0 {
		writeErr(w, http.StatusBadRequest, "product_id is required")
		return
	}
	h.svc.RemoveFromCart(req.ProductID)
	writeJSON(w, http.StatusOK, h.svc.GetCart())
}

// ListCart handles GET /cart/list
func (h *Handler) ListCart(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.GetCart())
}

// ToggleCart handles POST /cart/toggle
func (h *Handler) ToggleCart(w http.ResponseWriter, r *http.Request) {
	open := h.svc.ToggleCart()
	writeJSON(w, http.StatusOK, map[string]bool{"open": open})
}

// CloseCart handles POST /cart/close
func (h *Handler) CloseCart(w http.ResponseWriter, r *http.Request) {
	h.svc.CloseCart()
	writeJSON(w, http.StatusOK, map[string]bool{"open": false})
}

func (h *Handler) OpenConnectPrompt(w http.ResponseWriter, r *http.Request) {
	h.svc.OpenConnectPrompt()
	writeJSON(w, http.StatusOK, h.svc.State())
}

func (h *Handler) CloseConnectPrompt(w http.ResponseWriter, r *http.Request) {
	h.svc.CloseConnectPrompt()
	writeJSON(w, http.StatusOK, h.svc.State())
}

// Connect handles POST /wallet/connect
// body: { "kind": "coinbase" | "farcaster" }
func (h *Handler) Connect(w http.ResponseWriter, r *http.Request) {
	var req connectReq
	if err := decode(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	kind, err := wallet.ParseKind(req.Kind)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.svc.Connect(r.Context(), kind); err != nil {
		h.writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.svc.State())
}

func (h *Handler) Disconnect(w http.ResponseWriter, r *http.Request) {
	h.svc.Disconnect()
	writeJSON(w, http.StatusOK, h.svc.State())
}

// OpenCheckout handles POST /checkout/open. Without a connected wallet the
// response is 409 and the returned state has the connect prompt open.
func (h *Handler) OpenCheckout(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.OpenCheckout(); err != nil {
		h.writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.svc.Checkout())
}

func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Approve(); err != nil {
		h.writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, h.svc.Checkout())
}

func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Confirm(); err != nil {
		h.writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, h.svc.Checkout())
}

func (h *Handler) CloseCheckout(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.CloseCheckout(); err != nil {
		h.writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.svc.Checkout())
}

// CheckoutStatus handles GET /checkout/status
func (h *Handler) CheckoutStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Checkout())
}

// State handles GET /state
func (h *Handler) State(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.State())
}

func (h *Handler) DismissNotice(w http.ResponseWriter, r *http.Request) {
	h.svc.DismissNotice()
	writeJSON(w, http.StatusOK, h.svc.State())
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
