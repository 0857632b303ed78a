package ens

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

func TestNameHash(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{name: "", want: "0x0000000000000000000000000000000000000000000000000000000000000000"},
		{name: "eth", want: "0x93cdeb708b7545dc668eb9280176169d1c33cfd8ed6f04690a0bcc88a93fc4ae"},
		{name: "foo.eth", want: "0xde9b09fd7c5f901e23a3f19fecc54828e9c848539801e86591bd9801b019f84f"},
	}
	for _, tt := range tests {
		if got := NameHash(tt.name).Hex(); got != tt.want {
			t.Errorf("NameHash(%q) = %s, want %s", tt.name, got, tt.want)
		}
	}
}

func TestNormalize(t *testing.T) {
	got, err := Normalize("  Foo.ETH ")
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if got != "foo.eth" {
		t.Errorf("Normalize = %q, want foo.eth", got)
	}
}

func TestShortenAddress(t *testing.T) {
	addr := "0x1234567890abcdef1234567890abcdef1234abcd"
	if got := ShortenAddress(addr); got != "0x1234...abcd" {
		t.Errorf("ShortenAddress = %q", got)
	}
	if got := ShortenAddress("0x12"); got != "0x12" {
		t.Errorf("ShortenAddress(short) = %q", got)
	}
}

func TestLooksLikeName(t *testing.T) {
	if !LooksLikeName("vitalik.eth") {
		t.Error("vitalik.eth should look like a name")
	}
	if LooksLikeName("0x1234567890abcdef1234567890abcdef1234abcd") {
		t.Error("hex address should not look like a name")
	}
	if LooksLikeName("bob") {
		t.Error("bare label should not look like a name")
	}
}

var (
	registry     = common.HexToAddress("0x00000000000000000000000000000000000e0500")
	resolverAddr = common.HexToAddress("0x00000000000000000000000000000000000e0501")
	alice        = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
)

// fakeENS serves one registry and one public resolver.
type fakeENS struct {
	resolvers map[common.Hash]common.Address
	names     map[common.Hash]string
	addrs     map[common.Hash]common.Address
	avatars   map[common.Hash]string
	calls     int
}

func (f *fakeENS) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	f.calls++
	switch *call.To {
	case registry:
		method, err := registryABI.MethodById(call.Data[:4])
		if err != nil {
			return nil, err
		}
		args, err := method.Inputs.Unpack(call.Data[4:])
		if err != nil {
			return nil, err
		}
		node := common.Hash(args[0].([32]byte))
		return method.Outputs.Pack(f.resolvers[node])
	case resolverAddr:
		method, err := resolverABI.MethodById(call.Data[:4])
		if err != nil {
			return nil, err
		}
		args, err := method.Inputs.Unpack(call.Data[4:])
		if err != nil {
			return nil, err
		}
		node := common.Hash(args[0].([32]byte))
		switch method.Name {
		case "name":
			return method.Outputs.Pack(f.names[node])
		case "addr":
			return method.Outputs.Pack(f.addrs[node])
		case "text":
			return method.Outputs.Pack(f.avatars[node])
		}
	}
	return nil, fmt.Errorf("unexpected call to %s", call.To.Hex())
}

func newFakeENS() *fakeENS {
	aliceNode := NameHash("alice.eth")
	reverse := ReverseNode(alice)
	return &fakeENS{
		resolvers: map[common.Hash]common.Address{aliceNode: resolverAddr, reverse: resolverAddr},
		names:     map[common.Hash]string{reverse: "alice.eth"},
		addrs:     map[common.Hash]common.Address{aliceNode: alice},
		avatars:   map[common.Hash]string{aliceNode: "https://example.com/alice.png"},
	}
}

func TestClient_Resolve(t *testing.T) {
	ctx := context.Background()
	backend := newFakeENS()
	c := NewClient(backend, registry, time.Minute)

	name, err := c.ResolveName(ctx, alice)
	if err != nil || name != "alice.eth" {
		t.Fatalf("ResolveName = %q, %v", name, err)
	}

	addr, err := c.ResolveAddress(ctx, "Alice.eth")
	if err != nil || addr != alice {
		t.Fatalf("ResolveAddress = %s, %v", addr.Hex(), err)
	}

	avatar, err := c.ResolveAvatar(ctx, "alice.eth")
	if err != nil || avatar != "https://example.com/alice.png" {
		t.Fatalf("ResolveAvatar = %q, %v", avatar, err)
	}

	if _, err := c.ResolveAddress(ctx, "nobody.eth"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown name error = %v, want ErrNotFound", err)
	}

	bob := common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	if got := DisplayName(ctx, c, bob); got != ShortenAddress(bob.Hex()) {
		t.Errorf("DisplayName(bob) = %q, want shortened address", got)
	}
	if got := DisplayName(ctx, c, alice); got != "alice.eth" {
		t.Errorf("DisplayName(alice) = %q", got)
	}
}

func TestClient_ReverseRecordMustMatch(t *testing.T) {
	backend := newFakeENS()
	// alice.eth now points elsewhere; the reverse record is stale.
	backend.addrs[NameHash("alice.eth")] = common.HexToAddress("0x0000000000000000000000000000000000000e11")
	c := NewClient(backend, registry, 0)

	if _, err := c.ResolveName(context.Background(), alice); !errors.Is(err, ErrNotFound) {
		t.Errorf("ResolveName error = %v, want ErrNotFound", err)
	}
}

func TestClient_Cache(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	backend := newFakeENS()
	c := newClient(backend, registry, time.Minute, func() time.Time { return now })
	ctx := context.Background()

	if _, err := c.ResolveAddress(ctx, "alice.eth"); err != nil {
		t.Fatalf("ResolveAddress failed: %v", err)
	}
	calls := backend.calls
	if _, err := c.ResolveAddress(ctx, "alice.eth"); err != nil {
		t.Fatalf("ResolveAddress failed: %v", err)
	}
	if backend.calls != calls {
		t.Errorf("cached lookup hit the backend: %d -> %d calls", calls, backend.calls)
	}

	now = now.Add(2 * time.Minute)
	if _, err := c.ResolveAddress(ctx, "alice.eth"); err != nil {
		t.Fatalf("ResolveAddress failed: %v", err)
	}
	if backend.calls == calls {
		t.Error("expired entry was served from cache")
	}
}

type failingResolver struct{}

func (failingResolver) ResolveName(context.Context, common.Address) (string, error) {
	return "", errors.New("rpc down")
}
func (failingResolver) ResolveAvatar(context.Context, string) (string, error) {
	return "", errors.New("rpc down")
}
func (failingResolver) ResolveAddress(context.Context, string) (common.Address, error) {
	return common.Address{}, errors.New("rpc down")
}

func TestDisplayName_Fallback(t *testing.T) {
	want := ShortenAddress(alice.Hex())
	if got := DisplayName(context.Background(), failingResolver{}, alice); got != want {
		t.Errorf("DisplayName = %q, want %q", got, want)
	}
	if got := DisplayName(context.Background(), nil, alice); got != want {
		t.Errorf("DisplayName(nil) = %q, want %q", got, want)
	}
}
