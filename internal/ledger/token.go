package ledger

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

var _ Rewards = (*RewardToken)(nil)

// RewardToken reads the ARC reward token that BillSplit mints on fast payments.
type RewardToken struct {
	backend Backend
	address common.Address
}

// NewRewardToken binds the reward token at address.
func NewRewardToken(backend Backend, address common.Address) *RewardToken {
	return &RewardToken{backend: backend, address: address}
}

// RewardBalance returns the ARC balance of account in base units.
func (t *RewardToken) RewardBalance(ctx context.Context, account common.Address) (*big.Int, error) {
	out, err := callContract(ctx, t.backend, t.address, rewardTokenABI, "balanceOf", account)
	if err != nil {
		return nil, err
	}
	balance, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected balanceOf output %T", out[0])
	}
	return balance, nil
}

// LinkStatus describes whether the token will accept mints from BillSplit.
type LinkStatus struct {
	Current common.Address
	Linked  bool // Current is the expected BillSplit address
	NotSet  bool // Current is the zero address
}

// CheckLink reads billSplitContract() and compares it with expected.
func (t *RewardToken) CheckLink(ctx context.Context, expected common.Address) (*LinkStatus, error) {
	out, err := callContract(ctx, t.backend, t.address, rewardTokenABI, "billSplitContract")
	if err != nil {
		return nil, err
	}
	current, ok := out[0].(common.Address)
	if !ok {
		return nil, fmt.Errorf("unexpected billSplitContract output %T", out[0])
	}
	return &LinkStatus{
		Current: current,
		Linked:  current == expected,
		NotSet:  current == (common.Address{}),
	}, nil
}
