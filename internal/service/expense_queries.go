package service

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"connectrpc.com/connect"
	"github.com/ethereum/go-ethereum/common"

	"github.com/ontime/billsplit/internal/calculator"
	"github.com/ontime/billsplit/internal/ens"
	"github.com/ontime/billsplit/internal/ledger"
	"github.com/ontime/billsplit/internal/models"
	"github.com/ontime/billsplit/internal/units"
	"github.com/ontime/billsplit/pkg/api"
)

// GetExpense reads one expense from the ledger, decorated for display.
func (s *ExpenseService) GetExpense(ctx context.Context, req *connect.Request[api.GetExpenseRequest]) (*connect.Response[api.GetExpenseResponse], error) {
	caller, err := requireCaller(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.validate.Struct(req.Msg); err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	expense, err := s.loadExpense(ctx, req.Msg.ExpenseID)
	if err != nil {
		slog.Warn("GetExpense failed", "expense_id", req.Msg.ExpenseID, "error", err)
		return nil, toConnectError(err)
	}

	names := s.displayNames(ctx, expense.Participants)
	return connect.NewResponse(&api.GetExpenseResponse{
		Expense: s.toAPIExpense(expense, caller, names),
	}), nil
}

// ListExpenses returns every expense the caller paid for or participates in,
// newest first.
func (s *ExpenseService) ListExpenses(ctx context.Context, req *connect.Request[api.ListExpensesRequest]) (*connect.Response[api.ListExpensesResponse], error) {
	caller, err := requireCaller(ctx)
	if err != nil {
		return nil, err
	}

	expenses, err := s.userExpenses(ctx, caller)
	if err != nil {
		slog.Error("ListExpenses failed", "address", caller.Hex(), "error", err)
		return nil, toConnectError(err)
	}

	var everyone []common.Address
	for _, e := range expenses {
		everyone = append(everyone, e.Participants...)
	}
	names := s.displayNames(ctx, everyone)

	views := make([]api.Expense, 0, len(expenses))
	for _, e := range expenses {
		views = append(views, s.toAPIExpense(e, caller, names))
	}

	slog.Debug("ListExpenses", "address", caller.Hex(), "count", len(views))
	return connect.NewResponse(&api.ListExpensesResponse{Expenses: views}), nil
}

// GetBalances nets what the caller is owed against what they owe across all
// unsettled expenses.
func (s *ExpenseService) GetBalances(ctx context.Context, req *connect.Request[api.GetBalancesRequest]) (*connect.Response[api.GetBalancesResponse], error) {
	caller, err := requireCaller(ctx)
	if err != nil {
		return nil, err
	}

	expenses, err := s.userExpenses(ctx, caller)
	if err != nil {
		slog.Error("GetBalances failed - could not load expenses", "address", caller.Hex(), "error", err)
		return nil, toConnectError(err)
	}

	inputs := make([]calculator.ExpenseForBalance, 0, len(expenses))
	for _, e := range expenses {
		paid := make(map[string]bool, len(e.PaidBy))
		for addr, ok := range e.PaidBy {
			if ok {
				paid[strings.ToLower(addr.Hex())] = true
			}
		}
		inputs = append(inputs, calculator.ExpenseForBalance{
			Payer:           e.Payer.Hex(),
			AmountPerPerson: e.AmountPerPerson,
			Participants:    hexList(e.Participants),
			PaidBy:          paid,
			IsSettled:       e.IsSettled,
		})
	}

	summary, err := calculator.SummarizeBalances(caller.Hex(), inputs)
	if err != nil {
		slog.Error("GetBalances failed - calculation error", "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	counterparties := make([]common.Address, 0, len(summary.Debts)+1)
	counterparties = append(counterparties, caller)
	for _, d := range summary.Debts {
		counterparties = append(counterparties, common.HexToAddress(d.From), common.HexToAddress(d.To))
	}
	names := s.displayNames(ctx, counterparties)

	debts := make([]api.Debt, len(summary.Debts))
	for i, d := range summary.Debts {
		debts[i] = api.Debt{
			From:      d.From,
			FromName:  names[common.HexToAddress(d.From)],
			To:        d.To,
			ToName:    names[common.HexToAddress(d.To)],
			AmountWei: d.Amount.String(),
		}
	}

	slog.Info("GetBalances successful",
		"address", caller.Hex(),
		"expenses", len(expenses),
		"debts", len(debts),
		"net_wei", summary.Net.String(),
	)

	return connect.NewResponse(&api.GetBalancesResponse{
		OwedWei:  summary.Owed.String(),
		OwingWei: summary.Owing.String(),
		NetWei:   summary.Net.String(),
		Debts:    debts,
	}), nil
}

// GetProfile returns the ENS identity and ARC balance of an address.
// Every lookup is best effort.
func (s *ExpenseService) GetProfile(ctx context.Context, req *connect.Request[api.GetProfileRequest]) (*connect.Response[api.GetProfileResponse], error) {
	if err := s.validate.Struct(req.Msg); err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	var addr common.Address
	if req.Msg.Address != "" {
		addr = common.HexToAddress(req.Msg.Address)
	} else {
		caller, err := requireCaller(ctx)
		if err != nil {
			return nil, err
		}
		addr = caller
	}

	resp := &api.GetProfileResponse{
		Address:          addr.Hex(),
		ShortAddress:     ens.ShortenAddress(addr.Hex()),
		RewardBalanceWei: "0",
		RewardBalance:    units.FormatEther(nil, 2),
	}

	if s.resolver != nil {
		if name, err := s.resolver.ResolveName(ctx, addr); err == nil {
			resp.ENSName = name
			if avatar, err := s.resolver.ResolveAvatar(ctx, name); err == nil {
				resp.Avatar = avatar
			}
		} else {
			slog.Debug("ENS name unavailable", "address", addr.Hex(), "error", err)
		}
	}
	if resp.ENSName == "" && s.store != nil {
		// Fall back to the identity cached at the last sign-in.
		if account, err := s.store.GetAccount(ctx, addr.Hex()); err == nil && account != nil {
			resp.ENSName = account.ENSName
			resp.Avatar = account.Avatar
		}
	}
	resp.DisplayName = resp.ENSName
	if resp.DisplayName == "" {
		resp.DisplayName = resp.ShortAddress
	}

	if s.rewards != nil {
		balance, err := s.rewards.RewardBalance(ctx, addr)
		if err != nil {
			slog.Warn("failed to read reward balance", "address", addr.Hex(), "error", err)
		} else {
			resp.RewardBalanceWei = balance.String()
			resp.RewardBalance = units.FormatEther(balance, 2)
		}
	}

	return connect.NewResponse(resp), nil
}

// ListPayments lists recorded payments for an expense, or the caller's own.
func (s *ExpenseService) ListPayments(ctx context.Context, req *connect.Request[api.ListPaymentsRequest]) (*connect.Response[api.ListPaymentsResponse], error) {
	caller, err := requireCaller(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.validate.Struct(req.Msg); err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	var payments []*models.Payment
	if req.Msg.ExpenseID != "" {
		id, err := parseExpenseID(req.Msg.ExpenseID)
		if err != nil {
			return nil, toConnectError(err)
		}
		expense, err := s.ledger.GetExpense(ctx, id)
		if err != nil {
			return nil, toConnectError(err)
		}
		if !expense.HasParticipant(caller) {
			slog.Warn("ListPayments rejected", "expense_id", req.Msg.ExpenseID, "address", caller.Hex())
			return nil, toConnectError(ledger.ErrNotParticipant)
		}
		payments, err = s.store.ListPaymentsByExpense(ctx, expense.ID.String())
	} else {
		payments, err = s.store.ListPaymentsByParticipant(ctx, caller.Hex())
	}
	if err != nil {
		slog.Error("ListPayments failed", "address", caller.Hex(), "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	views := make([]api.Payment, len(payments))
	for i, p := range payments {
		views[i] = toAPIPayment(p)
	}
	return connect.NewResponse(&api.ListPaymentsResponse{Payments: views}), nil
}

// loadExpense reads an expense together with its paid flags.
func (s *ExpenseService) loadExpense(ctx context.Context, rawID string) (*models.Expense, error) {
	id, err := parseExpenseID(rawID)
	if err != nil {
		return nil, err
	}
	expense, err := s.ledger.GetExpense(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := ledger.LoadPaidBy(ctx, s.ledger, expense); err != nil {
		return nil, err
	}
	return expense, nil
}

func (s *ExpenseService) userExpenses(ctx context.Context, user common.Address) ([]*models.Expense, error) {
	ids, err := s.ledger.GetUserExpenses(ctx, user)
	if err != nil {
		return nil, err
	}

	expenses := make([]*models.Expense, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id.String()] {
			continue
		}
		seen[id.String()] = true

		expense, err := s.loadExpense(ctx, id.String())
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, expense)
	}

	sort.SliceStable(expenses, func(i, j int) bool {
		if !expenses[i].CreatedAt.Equal(expenses[j].CreatedAt) {
			return expenses[i].CreatedAt.After(expenses[j].CreatedAt)
		}
		return expenses[i].ID.Cmp(expenses[j].ID) > 0
	})
	return expenses, nil
}

// displayNames returns a label for every address: the ENS name cached at
// sign-in, a live ENS lookup, or the shortened address.
func (s *ExpenseService) displayNames(ctx context.Context, addrs []common.Address) map[common.Address]string {
	names := make(map[common.Address]string, len(addrs))
	if len(addrs) == 0 {
		return names
	}

	unique := make([]string, 0, len(addrs))
	for _, a := range addrs {
		if _, ok := names[a]; ok {
			continue
		}
		names[a] = ""
		unique = append(unique, a.Hex())
	}

	var known map[string]*models.Account
	if s.store != nil {
		var err error
		known, err = s.store.GetAccountsByAddresses(ctx, unique)
		if err != nil {
			slog.Warn("failed to load accounts for display names", "error", err)
		}
	}

	for a := range names {
		if account, ok := known[strings.ToLower(a.Hex())]; ok && account.ENSName != "" {
			names[a] = account.ENSName
			continue
		}
		names[a] = ens.DisplayName(ctx, s.resolver, a)
	}
	return names
}

func (s *ExpenseService) toAPIExpense(e *models.Expense, caller common.Address, names map[common.Address]string) api.Expense {
	participants := make([]api.Participant, len(e.Participants))
	for i, p := range e.Participants {
		participants[i] = api.Participant{
			Address:     p.Hex(),
			DisplayName: names[p],
			Paid:        e.PaidBy[p],
		}
	}

	view := api.Expense{
		ID:              e.ID.String(),
		Payer:           e.Payer.Hex(),
		PayerName:       names[e.Payer],
		Description:     e.Description,
		TotalWei:        e.TotalAmount.String(),
		TotalEth:        units.FormatEther(e.TotalAmount, 6),
		AmountPerPerson: e.AmountPerPerson.String(),
		AmountEth:       units.FormatEther(e.AmountPerPerson, 6),
		Participants:    participants,
		CreatedAt:       e.CreatedAt.Unix(),
		IsSettled:       e.IsSettled,
		CallerPaid:      e.PaidBy[caller],
	}
	if e.HasParticipant(caller) && !view.CallerPaid && !e.IsSettled {
		tier := toAPITier(s.rewardNow(e))
		view.CurrentReward = &tier
	}
	return view
}
