package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"connectrpc.com/connect"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-playground/validator/v10"

	"github.com/ontime/billsplit/internal/calculator"
	"github.com/ontime/billsplit/internal/ens"
	"github.com/ontime/billsplit/internal/ledger"
	"github.com/ontime/billsplit/internal/middleware"
	"github.com/ontime/billsplit/internal/models"
	"github.com/ontime/billsplit/internal/offchain"
	"github.com/ontime/billsplit/internal/session"
	"github.com/ontime/billsplit/internal/storage"
	"github.com/ontime/billsplit/internal/units"
	"github.com/ontime/billsplit/internal/wallet"
	"github.com/ontime/billsplit/pkg/api"
	"github.com/ontime/billsplit/pkg/api/apiconnect"
)

var _ apiconnect.ExpenseServiceHandler = (*ExpenseService)(nil)

var errSettlementInProgress = errors.New("a payment for this share is already in progress")

// ExpenseDeps are the collaborators of ExpenseService. Rewards, Resolver,
// Notifier and Sender are optional.
type ExpenseDeps struct {
	Ledger   ledger.Ledger
	Rewards  ledger.Rewards
	Resolver ens.Resolver
	Notifier *session.Notifier
	Store    storage.Store

	// Sender broadcasts browser-signed transactions. Without it
	// SubmitTransaction is unavailable.
	Sender wallet.Sender

	// Contract is the BillSplit address used in prepared calls.
	Contract common.Address
	ChainID  int64

	// MinAmountWei rejects expenses below it. Nil means no minimum.
	MinAmountWei *big.Int
}

// ExpenseService implements the ExpenseService RPC interface.
type ExpenseService struct {
	ledger    ledger.Ledger
	rewards   ledger.Rewards
	resolver  ens.Resolver
	notifier  *session.Notifier
	store     storage.Store
	sender    wallet.Sender
	contract  common.Address
	chainID   *big.Int
	minAmount *big.Int
	validate  *validator.Validate
	now       func() time.Time

	// settling holds "<expense id>/<address>" keys of shares being paid.
	settling sync.Map
}

// NewExpenseService creates a new expense service.
func NewExpenseService(deps ExpenseDeps) *ExpenseService {
	return &ExpenseService{
		ledger:    deps.Ledger,
		rewards:   deps.Rewards,
		resolver:  deps.Resolver,
		notifier:  deps.Notifier,
		store:     deps.Store,
		sender:    deps.Sender,
		contract:  deps.Contract,
		chainID:   big.NewInt(deps.ChainID),
		minAmount: deps.MinAmountWei,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		now:       time.Now,
	}
}

// PreviewSplit validates an expense and shows how it would be split,
// without touching the ledger.
func (s *ExpenseService) PreviewSplit(ctx context.Context, req *connect.Request[api.PreviewSplitRequest]) (*connect.Response[api.PreviewSplitResponse], error) {
	if err := s.validate.Struct(req.Msg); err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	payer := req.Msg.Payer
	if payer == "" {
		if caller, ok := middleware.GetAddress(ctx); ok {
			payer = caller.Hex()
		}
	}

	participants, amount, err := s.validateExpense(payer, req.Msg.Description, req.Msg.AmountEth, req.Msg.Participants)
	if err != nil {
		slog.Debug("PreviewSplit rejected", "error", err)
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	share, err := calculator.ComputeShare(amount, len(participants))
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	remainder, err := calculator.Remainder(amount, len(participants))
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	return connect.NewResponse(&api.PreviewSplitResponse{
		Participants:   participants,
		TotalWei:       amount.String(),
		ShareWei:       share.String(),
		ShareEth:       units.FormatEther(share, 6),
		RemainderWei:   remainder.String(),
		RewardSchedule: rewardSchedule(),
	}), nil
}

// CreateExpense validates the expense, resolves participant names and
// submits it to the ledger on behalf of the caller.
func (s *ExpenseService) CreateExpense(ctx context.Context, req *connect.Request[api.CreateExpenseRequest]) (*connect.Response[api.CreateExpenseResponse], error) {
	caller, err := requireCaller(ctx)
	if err != nil {
		return nil, err
	}

	addrs, amount, err := s.prepareExpense(ctx, caller, req.Msg.Description, req.Msg.AmountEth, req.Msg.Participants)
	if err != nil {
		slog.Warn("CreateExpense rejected", "payer", caller.Hex(), "error", err)
		return nil, toConnectError(err)
	}
	share, err := calculator.ComputeShare(amount, len(addrs))
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	txHash, err := s.ledger.CreateExpense(ledger.WithSender(ctx, caller), addrs, amount, strings.TrimSpace(req.Msg.Description))
	if err != nil {
		slog.Error("CreateExpense failed", "payer", caller.Hex(), "error", err)
		return nil, toConnectError(err)
	}

	slog.Info("CreateExpense submitted",
		"payer", caller.Hex(),
		"participants", len(addrs),
		"total_wei", amount.String(),
		"tx_hash", txHash.Hex(),
	)

	resp := &api.CreateExpenseResponse{
		TxHash:       txHash.Hex(),
		Participants: hexList(addrs),
		ShareWei:     share.String(),
	}
	if req.Msg.Wait {
		receipt, err := s.ledger.WaitForReceipt(ctx, txHash)
		if err != nil {
			slog.Error("CreateExpense receipt failed", "tx_hash", txHash.Hex(), "error", err)
			return nil, toConnectError(err)
		}
		resp.Receipt = toAPIReceipt(receipt)
	}
	return connect.NewResponse(resp), nil
}

// PrepareCreateExpense returns the createExpense call for the caller's wallet to sign.
func (s *ExpenseService) PrepareCreateExpense(ctx context.Context, req *connect.Request[api.PrepareCreateExpenseRequest]) (*connect.Response[api.PrepareCreateExpenseResponse], error) {
	caller, err := requireCaller(ctx)
	if err != nil {
		return nil, err
	}

	addrs, amount, err := s.prepareExpense(ctx, caller, req.Msg.Description, req.Msg.AmountEth, req.Msg.Participants)
	if err != nil {
		return nil, toConnectError(err)
	}
	share, err := calculator.ComputeShare(amount, len(addrs))
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	call, err := ledger.EncodeCreateExpense(s.contract, addrs, amount, strings.TrimSpace(req.Msg.Description))
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	return connect.NewResponse(&api.PrepareCreateExpenseResponse{
		Call:         s.toAPICall(call),
		Participants: hexList(addrs),
		ShareWei:     share.String(),
	}), nil
}

// PrepareSettleExpense returns the payable settleExpense call for the caller's
// share, and the reward the caller would earn by paying now.
func (s *ExpenseService) PrepareSettleExpense(ctx context.Context, req *connect.Request[api.PrepareSettleExpenseRequest]) (*connect.Response[api.PrepareSettleExpenseResponse], error) {
	caller, err := requireCaller(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.validate.Struct(req.Msg); err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	expense, err := s.payableExpense(ctx, req.Msg.ExpenseID, caller)
	if err != nil {
		return nil, toConnectError(err)
	}

	call, err := ledger.EncodeSettleExpense(s.contract, expense.ID, expense.AmountPerPerson)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	return connect.NewResponse(&api.PrepareSettleExpenseResponse{
		Call:   s.toAPICall(call),
		Reward: toAPITier(s.rewardNow(expense)),
	}), nil
}

// SubmitTransaction broadcasts a transaction the caller signed in their wallet.
// A settleExpense call is checked like SettleExpense before it is sent, then
// recorded and announced off-chain.
func (s *ExpenseService) SubmitTransaction(ctx context.Context, req *connect.Request[api.SubmitTransactionRequest]) (*connect.Response[api.SubmitTransactionResponse], error) {
	caller, err := requireCaller(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.validate.Struct(req.Msg); err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	if s.sender == nil {
		return nil, connect.NewError(connect.CodeUnimplemented, fmt.Errorf("transaction relay is not configured"))
	}

	signed, err := wallet.DecodeRawTransaction(req.Msg.RawTx, s.chainID)
	if err != nil {
		slog.Warn("SubmitTransaction rejected", "address", caller.Hex(), "error", err)
		return nil, toConnectError(err)
	}

	var expense *models.Expense
	if id, ok := ledger.DecodeSettleCall(s.contract, signed.Tx.To(), signed.Tx.Data()); ok {
		if signed.From != caller {
			return nil, toConnectError(fmt.Errorf("%w: got %s, want %s", wallet.ErrUnexpectedSender, signed.From.Hex(), caller.Hex()))
		}
		release, err := s.claimSettlement(id.String(), caller)
		if err != nil {
			return nil, toConnectError(err)
		}
		defer release()

		expense, err = s.payableExpense(ctx, id.String(), caller)
		if err != nil {
			slog.Warn("SubmitTransaction settle rejected", "expense_id", id.String(), "address", caller.Hex(), "error", err)
			return nil, toConnectError(err)
		}
		if signed.Tx.Value().Cmp(expense.AmountPerPerson) != 0 {
			return nil, toConnectError(fmt.Errorf("%w: got %s, want %s", ledger.ErrWrongValue, signed.Tx.Value(), expense.AmountPerPerson))
		}
	}

	if err := wallet.SendSigned(ctx, s.sender, signed, caller); err != nil {
		slog.Warn("SubmitTransaction failed", "address", caller.Hex(), "error", err)
		return nil, toConnectError(err)
	}
	txHash := signed.Tx.Hash()
	slog.Info("SubmitTransaction broadcast", "from", signed.From.Hex(), "tx_hash", txHash.Hex())

	resp := &api.SubmitTransactionResponse{
		TxHash: txHash.Hex(),
		From:   signed.From.Hex(),
	}
	var payment *models.Payment
	if expense != nil {
		payment = s.recordSettlement(ctx, caller, expense, txHash)
		resp.Settlement = &api.Settlement{
			ExpenseID: payment.ExpenseID,
			PaymentID: payment.ID,
			AmountWei: payment.Amount,
			Reward:    paymentTier(payment),
			Notified:  payment.Notified,
			SessionID: payment.SessionID,
		}
	}
	if req.Msg.Wait {
		receipt, err := s.ledger.WaitForReceipt(ctx, txHash)
		s.finishPayment(ctx, payment, err)
		if err != nil {
			return nil, toConnectError(err)
		}
		resp.Receipt = toAPIReceipt(receipt)
	}
	return connect.NewResponse(resp), nil
}

// SettleExpense pays the caller's share. The payment message goes out only
// after the ledger accepted the payment. The off-chain session is best
// effort: if it cannot be opened or the message is not acknowledged the
// payment still stands and Notified is false.
func (s *ExpenseService) SettleExpense(ctx context.Context, req *connect.Request[api.SettleExpenseRequest]) (*connect.Response[api.SettleExpenseResponse], error) {
	caller, err := requireCaller(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.validate.Struct(req.Msg); err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	id, err := parseExpenseID(req.Msg.ExpenseID)
	if err != nil {
		return nil, toConnectError(err)
	}
	release, err := s.claimSettlement(id.String(), caller)
	if err != nil {
		return nil, toConnectError(err)
	}
	defer release()

	expense, err := s.payableExpense(ctx, id.String(), caller)
	if err != nil {
		slog.Warn("SettleExpense rejected", "expense_id", req.Msg.ExpenseID, "address", caller.Hex(), "error", err)
		return nil, toConnectError(err)
	}

	txHash, err := s.ledger.SettleExpense(ledger.WithSender(ctx, caller), expense.ID, expense.AmountPerPerson)
	if err != nil {
		slog.Error("SettleExpense failed", "expense_id", expense.ID.String(), "address", caller.Hex(), "error", err)
		return nil, toConnectError(err)
	}

	payment := s.recordSettlement(ctx, caller, expense, txHash)
	resp := &api.SettleExpenseResponse{
		TxHash:    txHash.Hex(),
		PaymentID: payment.ID,
		AmountWei: payment.Amount,
		Reward:    paymentTier(payment),
		Notified:  payment.Notified,
		SessionID: payment.SessionID,
	}
	if req.Msg.Wait {
		receipt, err := s.ledger.WaitForReceipt(ctx, txHash)
		s.finishPayment(ctx, payment, err)
		if err != nil {
			return nil, toConnectError(err)
		}
		resp.Receipt = toAPIReceipt(receipt)
	}
	return connect.NewResponse(resp), nil
}

// recordSettlement runs after a payment was accepted for submission: it
// announces the payment off-chain and stores it in the local index.
func (s *ExpenseService) recordSettlement(ctx context.Context, caller common.Address, expense *models.Expense, txHash common.Hash) *models.Payment {
	tier := s.rewardNow(expense)
	amount := expense.AmountPerPerson.String()

	flow := s.notifier.Begin(ctx, caller.Hex(), offchain.Metadata{
		ExpenseID:    expense.ID.String(),
		Participants: hexList(expense.Participants),
	})
	notified := flow.NotifyPayment(ctx, offchain.Payment{
		ExpenseID:   expense.ID.String(),
		Payer:       expense.Payer.Hex(),
		Participant: caller.Hex(),
		AmountWei:   amount,
		RewardLabel: tier.Label,
		Reward:      tier.Reward,
		TxHash:      txHash.Hex(),
	})
	flow.Finish(ctx)

	payment := &models.Payment{
		ExpenseID:   expense.ID.String(),
		Participant: caller.Hex(),
		Amount:      amount,
		TxHash:      txHash.Hex(),
		RewardLabel: tier.Label,
		Reward:      tier.Reward,
		SessionID:   flow.SessionID(),
		Notified:    notified,
		Status:      models.PaymentPending,
	}
	if err := s.store.CreatePayment(ctx, payment); err != nil {
		// The ledger already accepted the payment; the local index is informational.
		slog.Error("failed to record payment", "expense_id", payment.ExpenseID, "tx_hash", payment.TxHash, "error", err)
	}

	slog.Info("Settlement submitted",
		"expense_id", payment.ExpenseID,
		"address", caller.Hex(),
		"amount_wei", payment.Amount,
		"reward", tier.Label,
		"notified", notified,
		"tx_hash", payment.TxHash,
	)
	return payment
}

// finishPayment stores the outcome of waiting for a payment's receipt.
func (s *ExpenseService) finishPayment(ctx context.Context, payment *models.Payment, waitErr error) {
	if payment == nil || payment.ID == "" {
		return
	}
	status := models.PaymentConfirmed
	if waitErr != nil {
		status = models.PaymentFailed
	}
	if err := s.store.UpdatePaymentStatus(ctx, payment.ID, status); err != nil {
		slog.Warn("failed to update payment status", "payment_id", payment.ID, "error", err)
	}
}

// claimSettlement reserves the caller's share of an expense until release is
// called, so two requests cannot pay the same share at once.
func (s *ExpenseService) claimSettlement(expenseID string, caller common.Address) (func(), error) {
	key := expenseID + "/" + caller.Hex()
	if _, busy := s.settling.LoadOrStore(key, struct{}{}); busy {
		return nil, fmt.Errorf("%w: expense %s", errSettlementInProgress, expenseID)
	}
	return func() { s.settling.Delete(key) }, nil
}

// validateExpense runs every local check and converts the amount to wei.
// Nothing here calls out of process.
func (s *ExpenseService) validateExpense(payer, description, amountEth string, participants []string) ([]string, *big.Int, error) {
	amount, err := units.ParseEther(amountEth)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", calculator.ErrInvalidAmount, err)
	}

	all, err := calculator.ValidateExpense(calculator.ExpenseInput{
		Payer:        payer,
		Description:  description,
		TotalAmount:  amount,
		Participants: participants,
	})
	if err != nil {
		return nil, nil, err
	}

	if s.minAmount != nil && amount.Cmp(s.minAmount) < 0 {
		return nil, nil, fmt.Errorf("%w: minimum is %s ETH", calculator.ErrInvalidAmount, units.FormatEther(s.minAmount, 6))
	}
	return all, amount, nil
}

// prepareExpense validates the expense and turns every participant into an
// address, payer first.
func (s *ExpenseService) prepareExpense(ctx context.Context, payer common.Address, description, amountEth string, participants []string) ([]common.Address, *big.Int, error) {
	all, amount, err := s.validateExpense(payer.Hex(), description, amountEth, participants)
	if err != nil {
		return nil, nil, err
	}

	addrs := []common.Address{payer}
	seen := map[common.Address]bool{payer: true}
	for _, p := range all[1:] {
		addr, err := s.resolveParticipant(ctx, p)
		if err != nil {
			return nil, nil, err
		}
		if seen[addr] {
			continue
		}
		seen[addr] = true
		addrs = append(addrs, addr)
	}
	if len(addrs) == 1 {
		return nil, nil, calculator.ErrEmptyParticipantList
	}
	return addrs, amount, nil
}

func (s *ExpenseService) resolveParticipant(ctx context.Context, p string) (common.Address, error) {
	if common.IsHexAddress(p) {
		return common.HexToAddress(p), nil
	}
	if !ens.LooksLikeName(p) {
		return common.Address{}, fmt.Errorf("%w: %q is neither an address nor an ENS name", calculator.ErrInvalidInput, p)
	}
	if s.resolver == nil {
		return common.Address{}, fmt.Errorf("%w: cannot resolve %q without ENS", calculator.ErrInvalidInput, p)
	}
	addr, err := s.resolver.ResolveAddress(ctx, p)
	if err != nil {
		if errors.Is(err, ens.ErrNotFound) || errors.Is(err, ens.ErrInvalidName) {
			return common.Address{}, fmt.Errorf("%w: %q does not resolve to an address", calculator.ErrInvalidInput, p)
		}
		return common.Address{}, fmt.Errorf("failed to resolve %s: %w", p, err)
	}
	return addr, nil
}

// payableExpense loads an expense and checks that caller still owes a share.
func (s *ExpenseService) payableExpense(ctx context.Context, rawID string, caller common.Address) (*models.Expense, error) {
	id, err := parseExpenseID(rawID)
	if err != nil {
		return nil, err
	}
	expense, err := s.ledger.GetExpense(ctx, id)
	if err != nil {
		return nil, err
	}
	if !expense.HasParticipant(caller) {
		return nil, ledger.ErrNotParticipant
	}
	paid, err := s.ledger.HasPaid(ctx, expense.ID, caller)
	if err != nil {
		return nil, err
	}
	if paid {
		return nil, ledger.ErrAlreadyPaid
	}
	return expense, nil
}

// rewardNow computes the tier for paying expense now. A creation time ahead
// of the local clock earns no reward.
func (s *ExpenseService) rewardNow(expense *models.Expense) calculator.RewardTier {
	tier, err := calculator.ComputeRewardTier(expense.CreatedAt, s.now())
	if err != nil {
		slog.Warn("reward tier unavailable", "expense_id", expense.ID.String(), "error", err)
		return calculator.RewardTier{Label: calculator.TierNone}
	}
	return tier
}

func (s *ExpenseService) toAPICall(call wallet.Call) api.TxCall {
	value := "0"
	if call.Value != nil {
		value = call.Value.String()
	}
	return api.TxCall{
		To:      call.To.Hex(),
		Data:    hexutil.Encode(call.Data),
		Value:   value,
		ChainID: s.chainID.Int64(),
	}
}

func requireCaller(ctx context.Context) (common.Address, error) {
	caller, ok := middleware.GetAddress(ctx)
	if !ok {
		return common.Address{}, connect.NewError(connect.CodeUnauthenticated, fmt.Errorf("authentication required"))
	}
	return caller, nil
}

func parseExpenseID(raw string) (*big.Int, error) {
	id, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
	if !ok || id.Sign() <= 0 {
		return nil, fmt.Errorf("%w: expense id %q", calculator.ErrInvalidInput, raw)
	}
	return id, nil
}
