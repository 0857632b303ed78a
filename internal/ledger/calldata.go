package ledger

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ontime/billsplit/internal/wallet"
)

// EncodeCreateExpense builds the createExpense call for a browser wallet to sign.
func EncodeCreateExpense(contract common.Address, participants []common.Address, amountWei *big.Int, description string) (wallet.Call, error) {
	data, err := billSplitABI.Pack("createExpense", participants, amountWei, description)
	if err != nil {
		return wallet.Call{}, fmt.Errorf("failed to pack createExpense: %w", err)
	}
	return wallet.Call{To: contract, Data: data, Value: new(big.Int)}, nil
}

// EncodeSettleExpense builds the payable settleExpense call. value is the share owed.
func EncodeSettleExpense(contract common.Address, expenseID *big.Int, value *big.Int) (wallet.Call, error) {
	if value == nil {
		return wallet.Call{}, fmt.Errorf("%w: value is required", ErrWrongValue)
	}
	data, err := billSplitABI.Pack("settleExpense", expenseID)
	if err != nil {
		return wallet.Call{}, fmt.Errorf("failed to pack settleExpense: %w", err)
	}
	return wallet.Call{To: contract, Data: data, Value: new(big.Int).Set(value)}, nil
}

// EncodeLinkRewardToken builds setBillSplitContract on the reward token.
func EncodeLinkRewardToken(token common.Address, billSplit common.Address) (wallet.Call, error) {
	data, err := rewardTokenABI.Pack("setBillSplitContract", billSplit)
	if err != nil {
		return wallet.Call{}, fmt.Errorf("failed to pack setBillSplitContract: %w", err)
	}
	return wallet.Call{To: token, Data: data, Value: new(big.Int)}, nil
}

// DecodeSettleCall returns the expense id when a transaction to `to` with
// data is a settleExpense call on contract.
func DecodeSettleCall(contract common.Address, to *common.Address, data []byte) (*big.Int, bool) {
	if to == nil || *to != contract || len(data) < 4 {
		return nil, false
	}
	method, err := billSplitABI.MethodById(data[:4])
	if err != nil || method.Name != "settleExpense" {
		return nil, false
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil || len(args) != 1 {
		return nil, false
	}
	id, ok := args[0].(*big.Int)
	return id, ok
}
