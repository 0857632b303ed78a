package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/ontime/billsplit/internal/models"
	"github.com/ontime/billsplit/internal/wallet"
)

// Backend is the subset of ethclient.Client the contract accessor needs.
type Backend interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

var _ Ledger = (*Contract)(nil)

// Contract implements Ledger against a deployed BillSplit contract.
type Contract struct {
	backend      Backend
	address      common.Address
	abi          abi.ABI
	submitter    wallet.Submitter
	pollInterval time.Duration
}

// NewContract binds the BillSplit contract at address. submitter may be nil,
// in which case the accessor is read-only and writes fail with wallet.ErrNoSigner.
func NewContract(backend Backend, address common.Address, submitter wallet.Submitter, pollInterval time.Duration) *Contract {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	return &Contract{
		backend:      backend,
		address:      address,
		abi:          billSplitABI,
		submitter:    submitter,
		pollInterval: pollInterval,
	}
}

// Address returns the contract address.
func (c *Contract) Address() common.Address {
	return c.address
}

// CreateExpense implements Ledger.
func (c *Contract) CreateExpense(ctx context.Context, participants []common.Address, amountWei *big.Int, description string) (common.Hash, error) {
	call, err := EncodeCreateExpense(c.address, participants, amountWei, description)
	if err != nil {
		return common.Hash{}, err
	}
	return c.transact(ctx, call)
}

// SettleExpense implements Ledger.
func (c *Contract) SettleExpense(ctx context.Context, expenseID *big.Int, value *big.Int) (common.Hash, error) {
	call, err := EncodeSettleExpense(c.address, expenseID, value)
	if err != nil {
		return common.Hash{}, err
	}
	return c.transact(ctx, call)
}

func (c *Contract) transact(ctx context.Context, call wallet.Call) (common.Hash, error) {
	if c.submitter == nil {
		return common.Hash{}, wallet.ErrNoSigner
	}
	if sender, ok := SenderFrom(ctx); ok && sender != c.submitter.Address() {
		return common.Hash{}, fmt.Errorf("%w: %s", ErrSenderMismatch, sender.Hex())
	}
	return c.submitter.Transact(ctx, call)
}

// GetExpense implements Ledger.
func (c *Contract) GetExpense(ctx context.Context, expenseID *big.Int) (*models.Expense, error) {
	out, err := c.call(ctx, "getExpense", expenseID)
	if err != nil {
		return nil, err
	}
	expense, err := decodeExpense(out)
	if err != nil {
		return nil, err
	}
	// The contract returns a zeroed struct for unknown ids.
	if expense.ID.Sign() == 0 && expense.Payer == (common.Address{}) {
		return nil, fmt.Errorf("%w: %s", ErrExpenseNotFound, expenseID)
	}
	// The contract is authoritative; a divergent share is only reported.
	if err := VerifyShare(expense); err != nil {
		slog.Warn("ledger share diverges", "expense_id", expense.ID.String(), "error", err)
	}
	return expense, nil
}

// GetUserExpenses implements Ledger.
func (c *Contract) GetUserExpenses(ctx context.Context, user common.Address) ([]*big.Int, error) {
	out, err := c.call(ctx, "getUserExpenses", user)
	if err != nil {
		return nil, err
	}
	ids, ok := out[0].([]*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected getUserExpenses output %T", out[0])
	}
	return ids, nil
}

// HasPaid implements Ledger.
func (c *Contract) HasPaid(ctx context.Context, expenseID *big.Int, participant common.Address) (bool, error) {
	out, err := c.call(ctx, "hasPaid", expenseID, participant)
	if err != nil {
		return false, err
	}
	paid, ok := out[0].(bool)
	if !ok {
		return false, fmt.Errorf("unexpected hasPaid output %T", out[0])
	}
	return paid, nil
}

// WaitForReceipt implements Ledger by polling until the transaction is mined.
func (c *Contract) WaitForReceipt(ctx context.Context, txHash common.Hash) (*Receipt, error) {
	return waitForReceipt(ctx, c.backend, txHash, c.pollInterval)
}

func (c *Contract) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	return callContract(ctx, c.backend, c.address, c.abi, method, args...)
}

func callContract(ctx context.Context, backend Backend, to common.Address, contractABI abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", method, err)
	}
	raw, err := backend.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
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

func decodeExpense(out []interface{}) (*models.Expense, error) {
	if len(out) != 8 {
		return nil, fmt.Errorf("unexpected getExpense output length %d", len(out))
	}

	id, ok1 := out[0].(*big.Int)
	payer, ok2 := out[1].(common.Address)
	description, ok3 := out[2].(string)
	total, ok4 := out[3].(*big.Int)
	perPerson, ok5 := out[4].(*big.Int)
	participants, ok6 := out[5].([]common.Address)
	createdAt, ok7 := out[6].(*big.Int)
	settled, ok8 := out[7].(bool)
	if !(ok1 && ok2 && ok3 && ok4 && ok5 && ok6 && ok7 && ok8) {
		return nil, fmt.Errorf("unexpected getExpense output types")
	}

	return &models.Expense{
		ID:              id,
		Payer:           payer,
		Description:     description,
		TotalAmount:     total,
		AmountPerPerson: perPerson,
		Participants:    participants,
		CreatedAt:       time.Unix(createdAt.Int64(), 0).UTC(),
		IsSettled:       settled,
	}, nil
}

type receiptReader interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

func waitForReceipt(ctx context.Context, backend receiptReader, txHash common.Hash, interval time.Duration) (*Receipt, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		receipt, err := backend.TransactionReceipt(ctx, txHash)
		if err == nil && receipt != nil {
			r := &Receipt{
				TxHash:  txHash,
				GasUsed: receipt.GasUsed,
				Success: receipt.Status == types.ReceiptStatusSuccessful,
			}
			if receipt.BlockNumber != nil {
				r.BlockNumber = receipt.BlockNumber.Uint64()
			}
			if !r.Success {
				return r, fmt.Errorf("%w: %s", ErrTransactionFailed, txHash.Hex())
			}
			return r, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			return nil, fmt.Errorf("failed to get receipt: %w", err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
