package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"connectrpc.com/connect"
	"github.com/ethereum/go-ethereum/common"

	"github.com/ontime/billsplit/internal/auth"
	"github.com/ontime/billsplit/internal/calculator"
	"github.com/ontime/billsplit/internal/ens"
	"github.com/ontime/billsplit/internal/ledger"
	"github.com/ontime/billsplit/internal/models"
	"github.com/ontime/billsplit/internal/storage"
	"github.com/ontime/billsplit/internal/wallet"
	"github.com/ontime/billsplit/pkg/api"
)

// toConnectError maps domain errors to Connect codes. Errors that already
// carry a code pass through.
func toConnectError(err error) error {
	var connectErr *connect.Error
	if errors.As(err, &connectErr) {
		return err
	}

	switch {
	case errors.Is(err, calculator.ErrInvalidInput),
		errors.Is(err, calculator.ErrEmptyParticipantList),
		errors.Is(err, calculator.ErrEmptyDescription),
		errors.Is(err, calculator.ErrInvalidAmount),
		errors.Is(err, ledger.ErrWrongValue),
		errors.Is(err, wallet.ErrInvalidRawTx),
		errors.Is(err, wallet.ErrWrongChain),
		errors.Is(err, auth.ErrInvalidAddress):
		return connect.NewError(connect.CodeInvalidArgument, err)

	case errors.Is(err, ledger.ErrExpenseNotFound),
		errors.Is(err, storage.ErrNotFound),
		errors.Is(err, ens.ErrNotFound):
		return connect.NewError(connect.CodeNotFound, err)

	case errors.Is(err, ledger.ErrNotParticipant),
		errors.Is(err, ledger.ErrSenderMismatch),
		errors.Is(err, wallet.ErrUnexpectedSender):
		return connect.NewError(connect.CodePermissionDenied, err)

	case errors.Is(err, ledger.ErrAlreadyPaid),
		errors.Is(err, wallet.ErrNoSigner):
		return connect.NewError(connect.CodeFailedPrecondition, err)

	case errors.Is(err, ledger.ErrTransactionFailed),
		errors.Is(err, errSettlementInProgress):
		return connect.NewError(connect.CodeAborted, err)

	case errors.Is(err, auth.ErrInvalidSignature),
		errors.Is(err, auth.ErrInvalidChallenge):
		return connect.NewError(connect.CodeUnauthenticated, err)

	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	}
	return connect.NewError(connect.CodeUnavailable, err)
}

func toAPIReceipt(r *ledger.Receipt) *api.Receipt {
	if r == nil {
		return nil
	}
	return &api.Receipt{
		TxHash:      r.TxHash.Hex(),
		BlockNumber: r.BlockNumber,
		GasUsed:     r.GasUsed,
		Success:     r.Success,
	}
}

func toAPITier(t calculator.RewardTier) api.RewardTier {
	return api.RewardTier{Label: t.Label, Reward: t.Reward}
}

func toAPIPayment(p *models.Payment) api.Payment {
	return api.Payment{
		ID:          p.ID,
		ExpenseID:   p.ExpenseID,
		Participant: common.HexToAddress(p.Participant).Hex(),
		AmountWei:   p.Amount,
		TxHash:      p.TxHash,
		RewardLabel: p.RewardLabel,
		Reward:      p.Reward,
		SessionID:   p.SessionID,
		Notified:    p.Notified,
		Status:      string(p.Status),
		CreatedAt:   p.CreatedAt,
	}
}

func toAPIAccount(a *models.Account) api.Account {
	return api.Account{
		Address:     a.Address,
		ENSName:     a.ENSName,
		Avatar:      a.Avatar,
		CreatedAt:   a.CreatedAt,
		LastLoginAt: a.LastLoginAt,
	}
}

func paymentTier(p *models.Payment) api.RewardTier {
	return toAPITier(calculator.RewardTier{Label: p.RewardLabel, Reward: p.Reward})
}

// rewardSchedule describes every tier for display.
func rewardSchedule() []api.RewardTier {
	steps := calculator.RewardSchedule()
	tiers := make([]api.RewardTier, 0, len(steps))
	var last time.Duration
	for _, step := range steps {
		t := toAPITier(step.Tier)
		if step.Under > 0 {
			t.Window = "paid within " + humanWindow(step.Under)
			last = step.Under
		} else {
			t.Window = "paid after " + humanWindow(last)
		}
		tiers = append(tiers, t)
	}
	return tiers
}

func humanWindow(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		return fmt.Sprintf("%d hours", int64(d/time.Hour))
	case d >= time.Minute && d%time.Minute == 0 && d < time.Hour:
		return fmt.Sprintf("%d seconds", int64(d/time.Second))
	}
	return d.String()
}

func hexList(addrs []common.Address) []string {
	out := make([]string, len(addrs))
	for i, a := range addrs {
		out[i] = a.Hex()
	}
	return out
}
