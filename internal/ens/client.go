package ens

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const registryABIJSON = `[
  {"type":"function","name":"resolver","stateMutability":"view",
   "inputs":[{"name":"node","type":"bytes32"}],
   "outputs":[{"name":"","type":"address"}]}
]`

const resolverABIJSON = `[
  {"type":"function","name":"addr","stateMutability":"view",
   "inputs":[{"name":"node","type":"bytes32"}],
   "outputs":[{"name":"","type":"address"}]},
  {"type":"function","name":"name","stateMutability":"view",
   "inputs":[{"name":"node","type":"bytes32"}],
   "outputs":[{"name":"","type":"string"}]},
  {"type":"function","name":"text","stateMutability":"view",
   "inputs":[{"name":"node","type":"bytes32"},{"name":"key","type":"string"}],
   "outputs":[{"name":"","type":"string"}]}
]`

var (
	registryABI = mustParseABI(registryABIJSON)
	resolverABI = mustParseABI(resolverABIJSON)
)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic("ens: bad embedded ABI: " + err.Error())
	}
	return parsed
}

// Caller is the read-only subset of ethclient.Client.
type Caller interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

var _ Resolver = (*Client)(nil)

// Client resolves ENS records through the registry and caches answers.
type Client struct {
	backend  Caller
	registry common.Address

	names   *ttlCache[common.Address, string]
	avatars *ttlCache[string, string]
	addrs   *ttlCache[string, common.Address]
}

// NewClient creates a resolver against registry. A ttl <= 0 disables caching.
func NewClient(backend Caller, registry common.Address, ttl time.Duration) *Client {
	return newClient(backend, registry, ttl, time.Now)
}

func newClient(backend Caller, registry common.Address, ttl time.Duration, now func() time.Time) *Client {
	return &Client{
		backend:  backend,
		registry: registry,
		names:    newTTLCache[common.Address, string](ttl, now),
		avatars:  newTTLCache[string, string](ttl, now),
		addrs:    newTTLCache[string, common.Address](ttl, now),
	}
}

// ResolveName implements Resolver.
func (c *Client) ResolveName(ctx context.Context, addr common.Address) (string, error) {
	if name, found, ok := c.names.get(addr); ok {
		return orNotFound(name, found)
	}

	name, err := c.reverse(ctx, addr)
	if err != nil {
		return "", err
	}
	if name == "" {
		c.names.put(addr, "", false)
		return "", ErrNotFound
	}

	// A reverse record is only trusted if the name points back at addr.
	forward, err := c.ResolveAddress(ctx, name)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return "", err
	}
	if forward != addr {
		c.names.put(addr, "", false)
		return "", ErrNotFound
	}

	c.names.put(addr, name, true)
	return name, nil
}

// ResolveAvatar implements Resolver.
func (c *Client) ResolveAvatar(ctx context.Context, name string) (string, error) {
	name, err := Normalize(name)
	if err != nil {
		return "", err
	}
	if name == "" {
		return "", ErrInvalidName
	}
	if avatar, found, ok := c.avatars.get(name); ok {
		return orNotFound(avatar, found)
	}

	node := NameHash(name)
	resolver, err := c.resolverFor(ctx, node)
	if err != nil {
		return "", err
	}
	if resolver == (common.Address{}) {
		c.avatars.put(name, "", false)
		return "", ErrNotFound
	}

	out, err := c.call(ctx, resolver, resolverABI, "text", [32]byte(node), "avatar")
	if err != nil {
		return "", err
	}
	avatar, _ := out[0].(string)
	c.avatars.put(name, avatar, avatar != "")
	return orNotFound(avatar, avatar != "")
}

// ResolveAddress implements Resolver.
func (c *Client) ResolveAddress(ctx context.Context, name string) (common.Address, error) {
	name, err := Normalize(name)
	if err != nil {
		return common.Address{}, err
	}
	if name == "" {
		return common.Address{}, ErrInvalidName
	}
	if addr, found, ok := c.addrs.get(name); ok {
		if !found {
			return common.Address{}, ErrNotFound
		}
		return addr, nil
	}

	node := NameHash(name)
	resolver, err := c.resolverFor(ctx, node)
	if err != nil {
		return common.Address{}, err
	}
	if resolver == (common.Address{}) {
		c.addrs.put(name, common.Address{}, false)
		return common.Address{}, ErrNotFound
	}

	out, err := c.call(ctx, resolver, resolverABI, "addr", [32]byte(node))
	if err != nil {
		return common.Address{}, err
	}
	addr, _ := out[0].(common.Address)
	found := addr != (common.Address{})
	c.addrs.put(name, addr, found)
	if !found {
		return common.Address{}, ErrNotFound
	}
	return addr, nil
}

func (c *Client) reverse(ctx context.Context, addr common.Address) (string, error) {
	node := ReverseNode(addr)
	resolver, err := c.resolverFor(ctx, node)
	if err != nil {
		return "", err
	}
	if resolver == (common.Address{}) {
		return "", nil
	}
	out, err := c.call(ctx, resolver, resolverABI, "name", [32]byte(node))
	if err != nil {
		return "", err
	}
	name, _ := out[0].(string)
	return name, nil
}

func (c *Client) resolverFor(ctx context.Context, node common.Hash) (common.Address, error) {
	out, err := c.call(ctx, c.registry, registryABI, "resolver", [32]byte(node))
	if err != nil {
		return common.Address{}, err
	}
	resolver, _ := out[0].(common.Address)
	return resolver, nil
}

func (c *Client) call(ctx context.Context, to common.Address, contractABI abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", method, err)
	}
	raw, err := c.backend.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to call %s: %w", method, err)
	}
	out, err := contractABI.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s: %w", method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty %s output", method)
	}
	return out, nil
}

func orNotFound(v string, found bool) (string, error) {
	if !found {
		return "", ErrNotFound
	}
	return v, nil
}

type cacheEntry[V any] struct {
	value   V
	found   bool
	expires time.Time
}

// ttlCache remembers positive and negative answers until they expire.
type ttlCache[K comparable, V any] struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[K]cacheEntry[V]
}

func newTTLCache[K comparable, V any](ttl time.Duration, now func() time.Time) *ttlCache[K, V] {
	return &ttlCache[K, V]{ttl: ttl, now: now, entries: make(map[K]cacheEntry[V])}
}

// get returns the cached value, whether the record exists, and whether the
// cache had a live entry at all.
func (c *ttlCache[K, V]) get(key K) (V, bool, bool) {
	var zero V
	if c.ttl <= 0 {
		return zero, false, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return zero, false, false
	}
	if !c.now().Before(e.expires) {
		delete(c.entries, key)
		return zero, false, false
	}
	return e.value, e.found, true
}

func (c *ttlCache[K, V]) put(key K, value V, found bool) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry[V]{value: value, found: found, expires: c.now().Add(c.ttl)}
}
