package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"

	"github.com/ontime/billsplit/internal/models"
	"github.com/ontime/billsplit/internal/storage"
)

var (
	ErrInvalidAddress   = errors.New("invalid wallet address")
	ErrInvalidSignature = errors.New("signature does not match address")
	ErrInvalidChallenge = errors.New("challenge is malformed, expired, or already used")
)

const challengePrefix = "onTime wants you to sign in with your Ethereum account:\n"

// AccountStorage defines the persistence the wallet authenticator needs.
type AccountStorage interface {
	CreateNonce(ctx context.Context, address, nonce string, expiresAt int64) error
	ConsumeNonce(ctx context.Context, address, nonce string, now int64) error
	UpsertAccount(ctx context.Context, account *models.Account) error
	GetAccount(ctx context.Context, address string) (*models.Account, error)
}

// WalletAuthenticator implements sign-in by EIP-191 personal_sign signatures.
type WalletAuthenticator struct {
	storage  AccountStorage
	chainID  int64
	lifetime time.Duration
	now      func() time.Time
}

// NewWalletAuthenticator creates a wallet authenticator whose challenges stay
// valid for lifetime.
func NewWalletAuthenticator(storage AccountStorage, chainID int64, lifetime time.Duration) *WalletAuthenticator {
	if lifetime <= 0 {
		lifetime = 5 * time.Minute
	}
	return &WalletAuthenticator{
		storage:  storage,
		chainID:  chainID,
		lifetime: lifetime,
		now:      time.Now,
	}
}

// Challenge implements Authenticator.
func (a *WalletAuthenticator) Challenge(ctx context.Context, address string) (string, time.Time, error) {
	if !common.IsHexAddress(address) {
		return "", time.Time{}, ErrInvalidAddress
	}
	addr := common.HexToAddress(address)

	nonce := uuid.New().String()
	issued := a.now().UTC()
	expires := issued.Add(a.lifetime)

	if err := a.storage.CreateNonce(ctx, addr.Hex(), nonce, expires.Unix()); err != nil {
		return "", time.Time{}, fmt.Errorf("failed to store nonce: %w", err)
	}

	message := challengePrefix + addr.Hex() + "\n\n" +
		fmt.Sprintf("Chain ID: %d\n", a.chainID) +
		"Nonce: " + nonce + "\n" +
		"Issued At: " + issued.Format(time.RFC3339)
	return message, expires, nil
}

// Authenticate implements Authenticator.
func (a *WalletAuthenticator) Authenticate(ctx context.Context, address, message, signature string) (*models.Account, error) {
	if !common.IsHexAddress(address) {
		return nil, ErrInvalidAddress
	}
	addr := common.HexToAddress(address)

	claimed, nonce, err := parseChallenge(message)
	if err != nil {
		return nil, err
	}
	if claimed != addr {
		return nil, ErrInvalidChallenge
	}

	signer, err := RecoverPersonalSign(message, signature)
	if err != nil {
		return nil, err
	}
	if signer != addr {
		return nil, ErrInvalidSignature
	}

	if err := a.storage.ConsumeNonce(ctx, addr.Hex(), nonce, a.now().Unix()); err != nil {
		if errors.Is(err, storage.ErrNonceInvalid) {
			return nil, ErrInvalidChallenge
		}
		return nil, fmt.Errorf("failed to consume nonce: %w", err)
	}

	account, err := a.storage.GetAccount(ctx, addr.Hex())
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	if account == nil {
		account = models.NewAccount(addr.Hex())
	}
	account.Address = addr.Hex()
	account.LastLoginAt = a.now().Unix()
	if err := a.storage.UpsertAccount(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to save account: %w", err)
	}

	return account, nil
}

// RecoverPersonalSign returns the address that produced an EIP-191
// personal_sign signature over message.
func RecoverPersonalSign(message, signature string) (common.Address, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil || len(sig) != crypto.SignatureLength {
		return common.Address{}, ErrInvalidSignature
	}
	// Wallets return V as 27/28; crypto expects 0/1.
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return common.Address{}, ErrInvalidSignature
	}
	return crypto.PubkeyToAddress(*pub), nil
}

func parseChallenge(message string) (common.Address, string, error) {
	if !strings.HasPrefix(message, challengePrefix) {
		return common.Address{}, "", ErrInvalidChallenge
	}
	lines := strings.Split(strings.TrimPrefix(message, challengePrefix), "\n")
	if len(lines) == 0 || !common.IsHexAddress(lines[0]) {
		return common.Address{}, "", ErrInvalidChallenge
	}

	for _, line := range lines[1:] {
		if nonce, ok := strings.CutPrefix(line, "Nonce: "); ok && nonce != "" {
			return common.HexToAddress(lines[0]), nonce, nil
		}
	}
	return common.Address{}, "", ErrInvalidChallenge
}
