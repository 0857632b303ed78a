package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/ontime/billsplit/internal/models"
	"github.com/ontime/billsplit/internal/storage"
)

type memAccounts struct {
	mu       sync.Mutex
	nonces   map[string]int64
	accounts map[string]*models.Account
}

func newMemAccounts() *memAccounts {
	return &memAccounts{nonces: map[string]int64{}, accounts: map[string]*models.Account{}}
}

func (m *memAccounts) CreateNonce(ctx context.Context, address, nonce string, expiresAt int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nonces[strings.ToLower(address)+"/"+nonce] = expiresAt
	return nil
}

func (m *memAccounts) ConsumeNonce(ctx context.Context, address, nonce string, now int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := strings.ToLower(address) + "/" + nonce
	exp, ok := m.nonces[key]
	if !ok || exp <= now {
		return storage.ErrNonceInvalid
	}
	delete(m.nonces, key)
	return nil
}

func (m *memAccounts) UpsertAccount(ctx context.Context, a *models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	m.accounts[strings.ToLower(a.Address)] = &cp
	return nil
}

func (m *memAccounts) GetAccount(ctx context.Context, address string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[strings.ToLower(address)]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func personalSign(t *testing.T, message string) (string, string) {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), key)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	sig[crypto.RecoveryIDOffset] += 27
	return crypto.PubkeyToAddress(key.PublicKey).Hex(), hexutil.Encode(sig)
}

func TestWalletAuthenticator_SignIn(t *testing.T) {
	ctx := context.Background()
	store := newMemAccounts()
	a := NewWalletAuthenticator(store, 11155111, time.Minute)

	key, _ := crypto.GenerateKey()
	address := crypto.PubkeyToAddress(key.PublicKey).Hex()

	message, expires, err := a.Challenge(ctx, strings.ToLower(address))
	if err != nil {
		t.Fatalf("Challenge failed: %v", err)
	}
	if !strings.Contains(message, address) || !strings.Contains(message, "Chain ID: 11155111") {
		t.Errorf("unexpected challenge %q", message)
	}
	if !expires.After(time.Now()) {
		t.Errorf("expires = %v, want in the future", expires)
	}

	sig, _ := crypto.Sign(accounts.TextHash([]byte(message)), key)
	sig[crypto.RecoveryIDOffset] += 27
	signature := hexutil.Encode(sig)

	account, err := a.Authenticate(ctx, address, message, signature)
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if account.Address != address || account.LastLoginAt == 0 {
		t.Errorf("account = %+v", account)
	}

	// Nonces are single use.
	if _, err := a.Authenticate(ctx, address, message, signature); !errors.Is(err, ErrInvalidChallenge) {
		t.Errorf("replay error = %v, want ErrInvalidChallenge", err)
	}
}

func TestWalletAuthenticator_Rejects(t *testing.T) {
	ctx := context.Background()
	store := newMemAccounts()
	a := NewWalletAuthenticator(store, 1, time.Minute)

	key, _ := crypto.GenerateKey()
	address := crypto.PubkeyToAddress(key.PublicKey).Hex()
	message, _, err := a.Challenge(ctx, address)
	if err != nil {
		t.Fatalf("Challenge failed: %v", err)
	}

	// Signed by someone else.
	_, otherSig := personalSign(t, message)
	if _, err := a.Authenticate(ctx, address, message, otherSig); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("foreign signature error = %v, want ErrInvalidSignature", err)
	}

	// Tampered message.
	sig, _ := crypto.Sign(accounts.TextHash([]byte(message)), key)
	sig[crypto.RecoveryIDOffset] += 27
	tampered := strings.Replace(message, "Chain ID: 1", "Chain ID: 2", 1)
	if _, err := a.Authenticate(ctx, address, tampered, hexutil.Encode(sig)); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("tampered message error = %v, want ErrInvalidSignature", err)
	}

	if _, err := a.Authenticate(ctx, address, "hello", hexutil.Encode(sig)); !errors.Is(err, ErrInvalidChallenge) {
		t.Errorf("bad message error = %v, want ErrInvalidChallenge", err)
	}
	if _, err := a.Authenticate(ctx, address, message, "0x1234"); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("short signature error = %v, want ErrInvalidSignature", err)
	}
	if _, _, err := a.Challenge(ctx, "alice"); !errors.Is(err, ErrInvalidAddress) {
		t.Errorf("bad address error = %v, want ErrInvalidAddress", err)
	}

	// Expired challenge.
	a.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	if _, err := a.Authenticate(ctx, address, message, hexutil.Encode(sig)); !errors.Is(err, ErrInvalidChallenge) {
		t.Errorf("expired challenge error = %v, want ErrInvalidChallenge", err)
	}
}

func TestRecoverPersonalSign(t *testing.T) {
	addr, sig := personalSign(t, "hello onTime")
	got, err := RecoverPersonalSign("hello onTime", sig)
	if err != nil {
		t.Fatalf("RecoverPersonalSign failed: %v", err)
	}
	if got.Hex() != addr {
		t.Errorf("recovered %s, want %s", got.Hex(), addr)
	}
}

func TestJWTManager(t *testing.T) {
	m := NewJWTManager("test-secret-that-is-long-enough", time.Hour)
	token, err := m.Generate(&models.Account{Address: "0x00000000000000000000000000000000000a11ce", ENSName: "alice.eth"})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	claims, err := m.Validate(token)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if claims.Address != "0x00000000000000000000000000000000000a11ce" || claims.ENSName != "alice.eth" {
		t.Errorf("claims = %+v", claims)
	}

	other := NewJWTManager("a-different-secret-entirely", time.Hour)
	if _, err := other.Validate(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("wrong secret error = %v, want ErrInvalidToken", err)
	}

	expired := NewJWTManager("test-secret-that-is-long-enough", -time.Minute)
	old, _ := expired.Generate(&models.Account{Address: "0x1"})
	if _, err := m.Validate(old); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expired token error = %v, want ErrInvalidToken", err)
	}
}
