package ledger

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/ontime/billsplit/internal/calculator"
	"github.com/ontime/billsplit/internal/models"
	"github.com/ontime/billsplit/internal/units"
)

var (
	_ Ledger  = (*Memory)(nil)
	_ Rewards = (*Memory)(nil)
)

type memoryExpense struct {
	expense *models.Expense
	paid    map[common.Address]bool
}

// Memory is an in-process Ledger with the same rules as the BillSplit
// contract: the payer is marked paid at creation, every other participant
// pays exactly amountPerPerson once, and fast payers are minted ARC.
type Memory struct {
	mu       sync.Mutex
	now      func() time.Time
	nextID   int64
	txCount  uint64
	expenses map[int64]*memoryExpense
	byUser   map[common.Address][]*big.Int
	receipts map[common.Hash]*Receipt
	rewards  map[common.Address]*big.Int
}

// NewMemory creates an empty in-memory ledger. now may be nil to use time.Now.
func NewMemory(now func() time.Time) *Memory {
	if now == nil {
		now = time.Now
	}
	return &Memory{
		now:      now,
		nextID:   1,
		expenses: make(map[int64]*memoryExpense),
		byUser:   make(map[common.Address][]*big.Int),
		receipts: make(map[common.Hash]*Receipt),
		rewards:  make(map[common.Address]*big.Int),
	}
}

// CreateExpense implements Ledger.
func (m *Memory) CreateExpense(ctx context.Context, participants []common.Address, amountWei *big.Int, description string) (common.Hash, error) {
	sender, ok := SenderFrom(ctx)
	if !ok {
		return common.Hash{}, fmt.Errorf("%w: no sender in context", ErrSenderMismatch)
	}
	if strings.TrimSpace(description) == "" {
		return common.Hash{}, calculator.ErrEmptyDescription
	}
	if amountWei == nil || amountWei.Sign() <= 0 {
		return common.Hash{}, calculator.ErrInvalidAmount
	}
	if len(participants) == 0 || participants[0] != sender {
		return common.Hash{}, fmt.Errorf("%w: payer must be the first participant", calculator.ErrInvalidInput)
	}

	seen := make(map[common.Address]bool, len(participants))
	for _, p := range participants {
		if seen[p] {
			return common.Hash{}, fmt.Errorf("%w: duplicate participant %s", calculator.ErrInvalidInput, p.Hex())
		}
		seen[p] = true
	}

	share, err := calculator.ComputeShare(amountWei, len(participants))
	if err != nil {
		return common.Hash{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id := big.NewInt(m.nextID)
	m.nextID++

	expense := &models.Expense{
		ID:              id,
		Payer:           sender,
		Description:     description,
		TotalAmount:     new(big.Int).Set(amountWei),
		AmountPerPerson: share,
		Participants:    append([]common.Address(nil), participants...),
		CreatedAt:       m.now().UTC().Truncate(time.Second),
		IsSettled:       len(participants) == 1,
	}
	m.expenses[id.Int64()] = &memoryExpense{
		expense: expense,
		paid:    map[common.Address]bool{sender: true},
	}
	for _, p := range participants {
		m.byUser[p] = append(m.byUser[p], id)
	}

	return m.mined(), nil
}

// SettleExpense implements Ledger.
func (m *Memory) SettleExpense(ctx context.Context, expenseID *big.Int, value *big.Int) (common.Hash, error) {
	sender, ok := SenderFrom(ctx)
	if !ok {
		return common.Hash{}, fmt.Errorf("%w: no sender in context", ErrSenderMismatch)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	entry, err := m.lookup(expenseID)
	if err != nil {
		return common.Hash{}, err
	}
	exp := entry.expense
	if !exp.HasParticipant(sender) {
		return common.Hash{}, ErrNotParticipant
	}
	if entry.paid[sender] {
		return common.Hash{}, ErrAlreadyPaid
	}
	if value == nil || value.Cmp(exp.AmountPerPerson) != 0 {
		return common.Hash{}, fmt.Errorf("%w: got %v, want %v", ErrWrongValue, value, exp.AmountPerPerson)
	}

	entry.paid[sender] = true

	tier, err := calculator.ComputeRewardTier(exp.CreatedAt, m.now())
	if err == nil && tier.Reward > 0 {
		if m.rewards[sender] == nil {
			m.rewards[sender] = new(big.Int)
		}
		m.rewards[sender].Add(m.rewards[sender], units.TokensToWei(tier.Reward))
	}

	settled := true
	for _, p := range exp.Participants {
		if !entry.paid[p] {
			settled = false
			break
		}
	}
	exp.IsSettled = settled

	return m.mined(), nil
}

// GetExpense implements Ledger. The returned expense is a copy.
func (m *Memory) GetExpense(ctx context.Context, expenseID *big.Int) (*models.Expense, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, err := m.lookup(expenseID)
	if err != nil {
		return nil, err
	}
	exp := *entry.expense
	exp.ID = new(big.Int).Set(exp.ID)
	exp.TotalAmount = new(big.Int).Set(exp.TotalAmount)
	exp.AmountPerPerson = new(big.Int).Set(exp.AmountPerPerson)
	exp.Participants = append([]common.Address(nil), exp.Participants...)
	exp.PaidBy = nil
	return &exp, nil
}

// GetUserExpenses implements Ledger.
func (m *Memory) GetUserExpenses(ctx context.Context, user common.Address) ([]*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := m.byUser[user]
	out := make([]*big.Int, len(ids))
	for i, id := range ids {
		out[i] = new(big.Int).Set(id)
	}
	return out, nil
}

// HasPaid implements Ledger.
func (m *Memory) HasPaid(ctx context.Context, expenseID *big.Int, participant common.Address) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, err := m.lookup(expenseID)
	if err != nil {
		return false, err
	}
	return entry.paid[participant], nil
}

// WaitForReceipt implements Ledger. Memory transactions are mined instantly.
func (m *Memory) WaitForReceipt(ctx context.Context, txHash common.Hash) (*Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.receipts[txHash]
	if !ok {
		return nil, fmt.Errorf("unknown transaction %s", txHash.Hex())
	}
	receipt := *r
	return &receipt, nil
}

// RewardBalance implements Rewards.
func (m *Memory) RewardBalance(ctx context.Context, account common.Address) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if b, ok := m.rewards[account]; ok {
		return new(big.Int).Set(b), nil
	}
	return new(big.Int), nil
}

func (m *Memory) lookup(expenseID *big.Int) (*memoryExpense, error) {
	if expenseID == nil || !expenseID.IsInt64() {
		return nil, fmt.Errorf("%w: %v", ErrExpenseNotFound, expenseID)
	}
	entry, ok := m.expenses[expenseID.Int64()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrExpenseNotFound, expenseID)
	}
	return entry, nil
}

// mined records a successful receipt for a new synthetic transaction. Callers hold mu.
func (m *Memory) mined() common.Hash {
	m.txCount++
	hash := crypto.Keccak256Hash(new(big.Int).SetUint64(m.txCount).Bytes(), []byte("ontime-memory-ledger"))
	m.receipts[hash] = &Receipt{
		TxHash:      hash,
		BlockNumber: m.txCount,
		Success:     true,
	}
	return hash
}
