// Package ens resolves Ethereum Name Service records for display.
//
// Every lookup is best effort: callers that only need something to show use
// DisplayName, which falls back to a shortened hex address.
package ens

import (
	"context"
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// DefaultRegistry is the ENS registry address on mainnet and Sepolia.
var DefaultRegistry = common.HexToAddress("0x00000000000C2E074eC69A0dFb2997BA6C7d2e1e")

var (
	ErrNotFound    = errors.New("ens record not found")
	ErrInvalidName = errors.New("invalid ens name")
)

// Resolver looks up names, avatars and addresses.
type Resolver interface {
	// ResolveName returns the primary name of addr, verified by a forward lookup.
	ResolveName(ctx context.Context, addr common.Address) (string, error)
	ResolveAvatar(ctx context.Context, name string) (string, error)
	ResolveAddress(ctx context.Context, name string) (common.Address, error)
}

// ShortenAddress renders an address as 0x1234...abcd.
func ShortenAddress(address string) string {
	if len(address) <= 10 {
		return address
	}
	return address[:6] + "..." + address[len(address)-4:]
}

// DisplayName returns the ENS name of addr or its shortened form.
// r may be nil.
func DisplayName(ctx context.Context, r Resolver, addr common.Address) string {
	if r != nil {
		if name, err := r.ResolveName(ctx, addr); err == nil && name != "" {
			return name
		}
	}
	return ShortenAddress(addr.Hex())
}

// LooksLikeName reports whether s should be resolved through ENS rather than
// parsed as a hex address.
func LooksLikeName(s string) bool {
	s = strings.TrimSpace(s)
	return s != "" && !common.IsHexAddress(s) && strings.Contains(s, ".")
}
