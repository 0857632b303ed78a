// Package wallet signs and broadcasts transactions against an EVM chain.
//
// Two paths exist: a KeySigner holding a private key (operator and dev mode),
// and Broadcast for raw transactions that were already signed by a browser wallet.
package wallet

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	ErrNoSigner         = errors.New("no signer configured")
	ErrInvalidRawTx     = errors.New("invalid raw transaction")
	ErrWrongChain       = errors.New("transaction signed for a different chain")
	ErrUnexpectedSender = errors.New("transaction signed by unexpected account")
)

// Call is an unsigned contract call.
type Call struct {
	To    common.Address
	Data  []byte
	Value *big.Int
}

// Submitter signs and broadcasts calls from a single account.
type Submitter interface {
	Address() common.Address
	Transact(ctx context.Context, call Call) (common.Hash, error)
}

// Backend is the subset of ethclient.Client a KeySigner needs.
type Backend interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

var _ Submitter = (*KeySigner)(nil)

// KeySigner implements Submitter with an in-process private key.
type KeySigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
	backend Backend
	chainID *big.Int

	// mu serializes nonce allocation.
	mu sync.Mutex
}

// NewKeySigner parses a hex private key (with or without 0x).
func NewKeySigner(hexKey string, backend Backend, chainID *big.Int) (*KeySigner, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse signer key: %w", err)
	}
	return NewKeySignerFromKey(key, backend, chainID), nil
}

// NewKeySignerFromKey wraps an already parsed key.
func NewKeySignerFromKey(key *ecdsa.PrivateKey, backend Backend, chainID *big.Int) *KeySigner {
	return &KeySigner{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		backend: backend,
		chainID: new(big.Int).Set(chainID),
	}
}

// Address returns the signing account.
func (s *KeySigner) Address() common.Address {
	return s.address
}

// Transact builds an EIP-1559 transaction for call, signs it and broadcasts it.
func (s *KeySigner) Transact(ctx context.Context, call Call) (common.Hash, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	value := call.Value
	if value == nil {
		value = new(big.Int)
	}

	nonce, err := s.backend.PendingNonceAt(ctx, s.address)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to get nonce: %w", err)
	}

	tip, err := s.backend.SuggestGasTipCap(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to suggest gas tip: %w", err)
	}

	head, err := s.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to get latest header: %w", err)
	}
	baseFee := head.BaseFee
	if baseFee == nil {
		baseFee = new(big.Int)
	}
	// feeCap = tip + 2*baseFee leaves room for a few full blocks.
	feeCap := new(big.Int).Add(tip, new(big.Int).Mul(baseFee, big.NewInt(2)))

	to := call.To
	gas, err := s.backend.EstimateGas(ctx, ethereum.CallMsg{
		From:  s.address,
		To:    &to,
		Value: value,
		Data:  call.Data,
	})
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to estimate gas: %w", err)
	}

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   s.chainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gas,
		To:        &to,
		Value:     value,
		Data:      call.Data,
	})

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(s.chainID), s.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := s.backend.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("failed to send transaction: %w", err)
	}
	return signed.Hash(), nil
}

// Sender is the subset of ethclient.Client needed to broadcast.
type Sender interface {
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// SignedTx is a decoded raw transaction and the account that signed it.
type SignedTx struct {
	Tx   *types.Transaction
	From common.Address
}

// DecodeRawTransaction parses a 0x-prefixed RLP/typed transaction and recovers its sender.
// When chainID is non-nil the transaction must be signed for that chain.
func DecodeRawTransaction(rawHex string, chainID *big.Int) (*SignedTx, error) {
	raw, err := hexutil.Decode(strings.TrimSpace(rawHex))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRawTx, err)
	}

	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRawTx, err)
	}

	if chainID != nil && tx.ChainId().Cmp(chainID) != 0 {
		return nil, fmt.Errorf("%w: got %v, want %v", ErrWrongChain, tx.ChainId(), chainID)
	}

	from, err := types.Sender(types.LatestSignerForChainID(tx.ChainId()), tx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to recover sender: %v", ErrInvalidRawTx, err)
	}
	return &SignedTx{Tx: tx, From: from}, nil
}

// Broadcast sends a transaction that was signed elsewhere.
// If expectedFrom is non-zero, the recovered sender must match it.
func Broadcast(ctx context.Context, sender Sender, rawHex string, chainID *big.Int, expectedFrom common.Address) (*SignedTx, error) {
	signed, err := DecodeRawTransaction(rawHex, chainID)
	if err != nil {
		return nil, err
	}
	if err := SendSigned(ctx, sender, signed, expectedFrom); err != nil {
		return nil, err
	}
	return signed, nil
}

// SendSigned broadcasts a transaction decoded with DecodeRawTransaction.
func SendSigned(ctx context.Context, sender Sender, signed *SignedTx, expectedFrom common.Address) error {
	if expectedFrom != (common.Address{}) && signed.From != expectedFrom {
		return fmt.Errorf("%w: got %s, want %s", ErrUnexpectedSender, signed.From.Hex(), expectedFrom.Hex())
	}
	if err := sender.SendTransaction(ctx, signed.Tx); err != nil {
		return fmt.Errorf("failed to send transaction: %w", err)
	}
	return nil
}
