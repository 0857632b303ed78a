package wallet

import (
	"context"
	"errors"
	"math/big"
	"testing"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// fakeBackend records sent transactions and returns fixed chain values.
type fakeBackend struct {
	nonce uint64
	sent  []*types.Transaction
}

func (f *fakeBackend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return f.nonce + uint64(len(f.sent)), nil
}

func (f *fakeBackend) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (f *fakeBackend) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	return &types.Header{BaseFee: big.NewInt(10_000_000_000)}, nil
}

func (f *fakeBackend) EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error) {
	return 50_000, nil
}

func (f *fakeBackend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	f.sent = append(f.sent, tx)
	return nil
}

func TestKeySigner_Transact(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	backend := &fakeBackend{nonce: 7}
	chainID := big.NewInt(11155111)
	signer := NewKeySignerFromKey(key, backend, chainID)

	to := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	hash, err := signer.Transact(context.Background(), Call{To: to, Data: []byte{0x01, 0x02}, Value: big.NewInt(42)})
	if err != nil {
		t.Fatalf("Transact failed: %v", err)
	}

	if len(backend.sent) != 1 {
		t.Fatalf("expected 1 sent tx, got %d", len(backend.sent))
	}
	tx := backend.sent[0]
	if tx.Hash() != hash {
		t.Errorf("hash mismatch: got %s, want %s", hash.Hex(), tx.Hash().Hex())
	}
	if tx.Nonce() != 7 {
		t.Errorf("nonce = %d, want 7", tx.Nonce())
	}
	if tx.Value().Int64() != 42 {
		t.Errorf("value = %v, want 42", tx.Value())
	}
	if tx.Gas() != 50_000 {
		t.Errorf("gas = %d, want 50000", tx.Gas())
	}
	if *tx.To() != to {
		t.Errorf("to = %s, want %s", tx.To().Hex(), to.Hex())
	}
	// feeCap = tip + 2*baseFee
	if tx.GasFeeCap().Cmp(big.NewInt(21_000_000_000)) != 0 {
		t.Errorf("fee cap = %v, want 21 gwei", tx.GasFeeCap())
	}

	from, err := types.Sender(types.LatestSignerForChainID(chainID), tx)
	if err != nil {
		t.Fatalf("Sender failed: %v", err)
	}
	if from != signer.Address() {
		t.Errorf("recovered sender %s, want %s", from.Hex(), signer.Address().Hex())
	}
}

func TestNewKeySigner_BadKey(t *testing.T) {
	if _, err := NewKeySigner("not-a-key", &fakeBackend{}, big.NewInt(1)); err == nil {
		t.Error("expected error for malformed key")
	}
}

func signRaw(t *testing.T, chainID *big.Int) (string, common.Address) {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	to := common.HexToAddress("0x00000000000000000000000000000000000000bb")
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     1,
		GasTipCap: big.NewInt(1),
		GasFeeCap: big.NewInt(2),
		Gas:       21000,
		To:        &to,
		Value:     big.NewInt(5),
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), key)
	if err != nil {
		t.Fatalf("SignTx failed: %v", err)
	}
	raw, err := signed.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary failed: %v", err)
	}
	return hexutil.Encode(raw), crypto.PubkeyToAddress(key.PublicKey)
}

func TestBroadcast(t *testing.T) {
	chainID := big.NewInt(11155111)
	raw, from := signRaw(t, chainID)
	backend := &fakeBackend{}

	signed, err := Broadcast(context.Background(), backend, raw, chainID, from)
	if err != nil {
		t.Fatalf("Broadcast failed: %v", err)
	}
	if signed.From != from {
		t.Errorf("From = %s, want %s", signed.From.Hex(), from.Hex())
	}
	if len(backend.sent) != 1 {
		t.Fatalf("expected 1 sent tx, got %d", len(backend.sent))
	}
}

func TestBroadcast_Rejections(t *testing.T) {
	chainID := big.NewInt(11155111)
	raw, _ := signRaw(t, chainID)

	tests := []struct {
		name    string
		raw     string
		chainID *big.Int
		from    common.Address
		wantErr error
	}{
		{name: "garbage", raw: "0xzz", chainID: chainID, wantErr: ErrInvalidRawTx},
		{name: "not a tx", raw: "0x0102", chainID: chainID, wantErr: ErrInvalidRawTx},
		{name: "wrong chain", raw: raw, chainID: big.NewInt(1), wantErr: ErrWrongChain},
		{name: "wrong sender", raw: raw, chainID: chainID, from: common.HexToAddress("0x01"), wantErr: ErrUnexpectedSender},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &fakeBackend{}
			_, err := Broadcast(context.Background(), backend, tt.raw, tt.chainID, tt.from)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Broadcast() error = %v, want %v", err, tt.wantErr)
			}
			if len(backend.sent) != 0 {
				t.Errorf("rejected tx was broadcast")
			}
		})
	}
}
