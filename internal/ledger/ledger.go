// Package ledger reads and writes expenses on the BillSplit contract.
//
// The contract is the source of truth for expenses. Two implementations of
// Ledger exist: Contract talks to a chain through go-ethereum, and Memory keeps
// everything in process for development and tests. Both compute
// amountPerPerson with calculator.ComputeShare so client-side and ledger
// figures never diverge.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ontime/billsplit/internal/calculator"
	"github.com/ontime/billsplit/internal/models"
)

var (
	ErrExpenseNotFound   = errors.New("expense not found")
	ErrNotParticipant    = errors.New("not a participant of this expense")
	ErrAlreadyPaid       = errors.New("share already paid")
	ErrWrongValue        = errors.New("value does not match amount per person")
	ErrSenderMismatch    = errors.New("sender does not match the configured signer")
	ErrTransactionFailed = errors.New("transaction reverted")
	ErrShareMismatch     = errors.New("amount per person differs from the computed share")
)

// Receipt is the confirmation of a mined transaction.
type Receipt struct {
	TxHash      common.Hash
	BlockNumber uint64
	GasUsed     uint64
	Success     bool
}

// Ledger is the expense-splitting contract seen from the app.
type Ledger interface {
	// CreateExpense submits a new expense from the sender in ctx (see WithSender).
	// participants must already include the payer first.
	CreateExpense(ctx context.Context, participants []common.Address, amountWei *big.Int, description string) (common.Hash, error)

	// SettleExpense pays the sender's share; value must equal AmountPerPerson.
	SettleExpense(ctx context.Context, expenseID *big.Int, value *big.Int) (common.Hash, error)

	// GetExpense reads an expense. PaidBy is not populated; see LoadPaidBy.
	GetExpense(ctx context.Context, expenseID *big.Int) (*models.Expense, error)

	// GetUserExpenses lists ids of expenses the user paid for or participates in.
	GetUserExpenses(ctx context.Context, user common.Address) ([]*big.Int, error)

	HasPaid(ctx context.Context, expenseID *big.Int, participant common.Address) (bool, error)

	// WaitForReceipt blocks until the transaction is mined or ctx is done.
	WaitForReceipt(ctx context.Context, txHash common.Hash) (*Receipt, error)
}

// Rewards reads the ARC reward token.
type Rewards interface {
	RewardBalance(ctx context.Context, account common.Address) (*big.Int, error)
}

type senderKey struct{}

// WithSender attaches the account a write is made on behalf of.
func WithSender(ctx context.Context, sender common.Address) context.Context {
	return context.WithValue(ctx, senderKey{}, sender)
}

// SenderFrom returns the account set with WithSender.
func SenderFrom(ctx context.Context) (common.Address, bool) {
	sender, ok := ctx.Value(senderKey{}).(common.Address)
	return sender, ok
}

// LoadPaidBy fills expense.PaidBy with one HasPaid call per participant.
func LoadPaidBy(ctx context.Context, l Ledger, expense *models.Expense) error {
	paid := make(map[common.Address]bool, len(expense.Participants))
	for _, p := range expense.Participants {
		ok, err := l.HasPaid(ctx, expense.ID, p)
		if err != nil {
			return err
		}
		paid[p] = ok
	}
	expense.PaidBy = paid
	return nil
}

// VerifyShare checks that the ledger's AmountPerPerson equals
// calculator.ComputeShare over the expense total and participants.
func VerifyShare(expense *models.Expense) error {
	want, err := calculator.ComputeShare(expense.TotalAmount, len(expense.Participants))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrShareMismatch, err)
	}
	if expense.AmountPerPerson == nil || expense.AmountPerPerson.Cmp(want) != 0 {
		return fmt.Errorf("%w: ledger has %v, computed %s", ErrShareMismatch, expense.AmountPerPerson, want)
	}
	return nil
}
