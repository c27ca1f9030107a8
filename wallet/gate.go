package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"base-marketplace/model"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrCapabilityUnavailable means no wallet capability is configured.
	ErrCapabilityUnavailable = errors.New("wallet capability unavailable")
	// ErrRequestFailed means the capability rejected or failed the account request.
	ErrRequestFailed = errors.New("wallet connection failed")
	// ErrUnknownKind is returned by ParseKind.
	ErrUnknownKind = errors.New("unknown connection kind")
)

// DefaultAvatarBase is the placeholder avatar service for social-linked connections.
const DefaultAvatarBase = "https://i.pravatar.cc/150"

// Kind selects the connection flow.
type Kind string

const (
	KindWallet Kind = "coinbase"
	KindSocial Kind = "farcaster"
)

// ParseKind accepts the kind names used by the connect prompt.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindWallet, KindSocial:
		return k, nil
	case "":
		return KindWallet, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

// Connection is the single active account, plus a profile for social-linked flows.
type Connection struct {
	Address string         `json:"address"`
	Display string         `json:"display"`
	Profile *model.Profile `json:"profile,omitempty"`
}

// Gate holds at most one connection.
type Gate struct {
	capability Capability
	avatarBase string
	logger     *slog.Logger

	mu   sync.Mutex
	conn *Connection
}

// NewGate builds a gate. A nil capability behaves like a browser without a
// wallet installed.
func NewGate(capability Capability, avatarBase string, logger *slog.Logger) *Gate {
	if avatarBase == "" {
		avatarBase = DefaultAvatarBase
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{capability: capability, avatarBase: avatarBase, logger: logger}
}

// Available reports whether a capability is configured.
func (g *Gate) Available() bool {
	return g.capability != nil
}

// Connect requests accounts and stores the first one. An empty account list
// leaves the gate untouched and returns (nil, nil). Errors never change state.
func (g *Gate) Connect(ctx context.Context, kind Kind) (*Connection, error) {
	if g.capability == nil {
		return nil, ErrCapabilityUnavailable
	}
	accounts, err := g.capability.RequestAccounts(ctx)
	if err != nil {
		g.logger.Error("wallet account request failed", "kind", string(kind), "error", err)
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	if len(accounts) == 0 {
		g.logger.Warn("wallet returned no accounts", "kind", string(kind))
		return nil, nil
	}

	raw := strings.TrimSpace(accounts[0])
	if !common.IsHexAddress(raw) {
		g.logger.Error("wallet returned malformed address", "kind", string(kind), "address", raw)
		return nil, fmt.Errorf("%w: malformed address %q", ErrRequestFailed, raw)
	}
	addr := common.HexToAddress(raw).Hex()

	conn := &Connection{Address: addr, Display: ShortAddress(addr)}
	if kind == KindSocial {
		conn.Profile = g.placeholderProfile(addr)
	}

	g.mu.Lock()
	g.conn = conn
	g.mu.Unlock()

	g.logger.Info("wallet connected", "kind", string(kind), "address", conn.Display)
	cp := *conn
	return &cp, nil
}

// Disconnect clears the connection unconditionally.
func (g *Gate) Disconnect() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.conn = nil
}

// Connection returns the active connection, if any.
func (g *Gate) Connection() (Connection, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.conn == nil {
		return Connection{}, false
	}
	return *g.conn, true
}

// placeholderProfile derives a stand-in identity from the address. It is not
// an identity lookup.
func (g *Gate) placeholderProfile(addr string) *model.Profile {
	avatar := g.avatarBase
	if u, err := url.Parse(g.avatarBase); err == nil {
		q := u.Query()
		q.Set("u", addr)
		u.RawQuery = q.Encode()
		avatar = u.String()
	}
	return &model.Profile{
		Handle:    "user-" + strings.ToLower(addr[2:8]),
		AvatarURL: avatar,
	}
}

// ShortAddress renders 0x1234...abcd.
func ShortAddress(addr string) string {
	if len(addr) <= 10 {
		return addr
	}
	return addr[:6] + "..." + addr[len(addr)-4:]
}
