// Package api defines the request and response messages of the onTime RPC
// services. Messages travel as JSON over the Connect protocol; see apiconnect.
//
// Amounts are strings: *_wei fields are decimal integers in wei and *_eth
// fields are decimal ether as typed by people.
package api

// RewardTier is a reward bucket for paying quickly.
type RewardTier struct {
	Label  string `json:"label"`
	Reward int64  `json:"reward"`
	// Window is a human description of when the tier applies.
	Window string `json:"window,omitempty"`
}

// TxCall is an unsigned contract call for a browser wallet to sign and send.
type TxCall struct {
	To      string `json:"to"`
	Data    string `json:"data"`
	Value   string `json:"value"`
	ChainID int64  `json:"chain_id"`
}

// Receipt describes a mined transaction.
type Receipt struct {
	TxHash      string `json:"tx_hash"`
	BlockNumber uint64 `json:"block_number"`
	GasUsed     uint64 `json:"gas_used"`
	Success     bool   `json:"success"`
}

// Participant is an expense member decorated for display.
type Participant struct {
	Address     string `json:"address"`
	DisplayName string `json:"display_name"`
	Paid        bool   `json:"paid"`
}

// Expense is the display form of a ledger expense.
type Expense struct {
	ID              string        `json:"id"`
	Payer           string        `json:"payer"`
	PayerName       string        `json:"payer_name"`
	Description     string        `json:"description"`
	TotalWei        string        `json:"total_wei"`
	TotalEth        string        `json:"total_eth"`
	AmountPerPerson string        `json:"amount_per_person_wei"`
	AmountEth       string        `json:"amount_per_person_eth"`
	Participants    []Participant `json:"participants"`
	CreatedAt       int64         `json:"created_at"`
	IsSettled       bool          `json:"is_settled"`
	// CallerPaid reports whether the authenticated caller has paid their share.
	CallerPaid bool `json:"caller_paid"`
	// CurrentReward is the tier the caller would earn by paying now.
	CurrentReward *RewardTier `json:"current_reward,omitempty"`
}

type PreviewSplitRequest struct {
	Payer        string   `json:"payer" validate:"omitempty,eth_addr"`
	Description  string   `json:"description"`
	AmountEth    string   `json:"amount_eth"`
	Participants []string `json:"participants"`
}

type PreviewSplitResponse struct {
	Participants   []string     `json:"participants"`
	TotalWei       string       `json:"total_wei"`
	ShareWei       string       `json:"share_wei"`
	ShareEth       string       `json:"share_eth"`
	RemainderWei   string       `json:"remainder_wei"`
	RewardSchedule []RewardTier `json:"reward_schedule"`
}

type CreateExpenseRequest struct {
	Description  string   `json:"description"`
	AmountEth    string   `json:"amount_eth"`
	Participants []string `json:"participants"`
	// Wait blocks until the transaction is mined.
	Wait bool `json:"wait"`
}

type CreateExpenseResponse struct {
	TxHash       string   `json:"tx_hash"`
	Participants []string `json:"participants"`
	ShareWei     string   `json:"share_wei"`
	Receipt      *Receipt `json:"receipt,omitempty"`
}

type PrepareCreateExpenseRequest struct {
	Description  string   `json:"description"`
	AmountEth    string   `json:"amount_eth"`
	Participants []string `json:"participants"`
}

type PrepareCreateExpenseResponse struct {
	Call         TxCall   `json:"call"`
	Participants []string `json:"participants"`
	ShareWei     string   `json:"share_wei"`
}

type PrepareSettleExpenseRequest struct {
	ExpenseID string `json:"expense_id" validate:"required,numeric"`
}

type PrepareSettleExpenseResponse struct {
	Call   TxCall     `json:"call"`
	Reward RewardTier `json:"reward"`
}

type SubmitTransactionRequest struct {
	RawTx string `json:"raw_tx" validate:"required,hexadecimal"`
	Wait  bool   `json:"wait"`
}

type SubmitTransactionResponse struct {
	TxHash  string   `json:"tx_hash"`
	From    string   `json:"from"`
	Receipt *Receipt `json:"receipt,omitempty"`
	// Settlement is set when the transaction pays a share of an expense.
	Settlement *Settlement `json:"settlement,omitempty"`
}

// Settlement is the bookkeeping of a settleExpense transaction relayed for a browser wallet.
type Settlement struct {
	ExpenseID string     `json:"expense_id"`
	PaymentID string     `json:"payment_id"`
	AmountWei string     `json:"amount_wei"`
	Reward    RewardTier `json:"reward"`
	Notified  bool       `json:"notified"`
	SessionID string     `json:"session_id,omitempty"`
}

type SettleExpenseRequest struct {
	ExpenseID string `json:"expense_id" validate:"required,numeric"`
	Wait      bool   `json:"wait"`
}

type SettleExpenseResponse struct {
	TxHash    string     `json:"tx_hash"`
	PaymentID string     `json:"payment_id"`
	AmountWei string     `json:"amount_wei"`
	Reward    RewardTier `json:"reward"`
	// Notified reports whether the off-chain session acknowledged the payment.
	Notified  bool     `json:"notified"`
	SessionID string   `json:"session_id,omitempty"`
	Receipt   *Receipt `json:"receipt,omitempty"`
}

type GetExpenseRequest struct {
	ExpenseID string `json:"expense_id" validate:"required,numeric"`
}

type GetExpenseResponse struct {
	Expense Expense `json:"expense"`
}

type ListExpensesRequest struct{}

type ListExpensesResponse struct {
	Expenses []Expense `json:"expenses"`
}

type GetBalancesRequest struct{}

// Debt is one netted edge between the caller and a counterparty.
type Debt struct {
	From      string `json:"from"`
	FromName  string `json:"from_name"`
	To        string `json:"to"`
	ToName    string `json:"to_name"`
	AmountWei string `json:"amount_wei"`
}

type GetBalancesResponse struct {
	OwedWei  string `json:"owed_wei"`
	OwingWei string `json:"owing_wei"`
	NetWei   string `json:"net_wei"`
	Debts    []Debt `json:"debts"`
}

type GetProfileRequest struct {
	// Address defaults to the caller.
	Address string `json:"address" validate:"omitempty,eth_addr"`
}

type GetProfileResponse struct {
	Address          string `json:"address"`
	ShortAddress     string `json:"short_address"`
	DisplayName      string `json:"display_name"`
	ENSName          string `json:"ens_name,omitempty"`
	Avatar           string `json:"avatar,omitempty"`
	RewardBalanceWei string `json:"reward_balance_wei"`
	RewardBalance    string `json:"reward_balance"`
}

type Payment struct {
	ID          string `json:"id"`
	ExpenseID   string `json:"expense_id"`
	Participant string `json:"participant"`
	AmountWei   string `json:"amount_wei"`
	TxHash      string `json:"tx_hash"`
	RewardLabel string `json:"reward_label"`
	Reward      int64  `json:"reward"`
	SessionID   string `json:"session_id,omitempty"`
	Notified    bool   `json:"notified"`
	Status      string `json:"status"`
	CreatedAt   int64  `json:"created_at"`
}

type ListPaymentsRequest struct {
	// ExpenseID filters by expense; empty lists the caller's payments.
	ExpenseID string `json:"expense_id" validate:"omitempty,numeric"`
}

type ListPaymentsResponse struct {
	Payments []Payment `json:"payments"`
}

type ChallengeRequest struct {
	Address string `json:"address" validate:"required,eth_addr"`
}

type ChallengeResponse struct {
	Message   string `json:"message"`
	ExpiresAt int64  `json:"expires_at"`
}

type VerifyRequest struct {
	Address   string `json:"address" validate:"required,eth_addr"`
	Message   string `json:"message" validate:"required"`
	Signature string `json:"signature" validate:"required"`
}

type Account struct {
	Address     string `json:"address"`
	ENSName     string `json:"ens_name,omitempty"`
	Avatar      string `json:"avatar,omitempty"`
	CreatedAt   int64  `json:"created_at"`
	LastLoginAt int64  `json:"last_login_at"`
}

type VerifyResponse struct {
	Token   string  `json:"token"`
	Account Account `json:"account"`
}
