package ledger

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// BillSplitABI covers the BillSplit functions the app calls.
const BillSplitABI = `[
  {"type":"function","name":"createExpense","stateMutability":"nonpayable",
   "inputs":[{"name":"participants","type":"address[]"},{"name":"totalAmount","type":"uint256"},{"name":"description","type":"string"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"settleExpense","stateMutability":"payable",
   "inputs":[{"name":"expenseId","type":"uint256"}],
   "outputs":[]},
  {"type":"function","name":"getExpense","stateMutability":"view",
   "inputs":[{"name":"expenseId","type":"uint256"}],
   "outputs":[
     {"name":"id","type":"uint256"},
     {"name":"payer","type":"address"},
     {"name":"description","type":"string"},
     {"name":"totalAmount","type":"uint256"},
     {"name":"amountPerPerson","type":"uint256"},
     {"name":"participants","type":"address[]"},
     {"name":"createdAt","type":"uint256"},
     {"name":"isSettled","type":"bool"}]},
  {"type":"function","name":"getUserExpenses","stateMutability":"view",
   "inputs":[{"name":"user","type":"address"}],
   "outputs":[{"name":"","type":"uint256[]"}]},
  {"type":"function","name":"hasPaid","stateMutability":"view",
   "inputs":[{"name":"expenseId","type":"uint256"},{"name":"participant","type":"address"}],
   "outputs":[{"name":"","type":"bool"}]}
]`

// RewardTokenABI covers the ARC reward token reads.
const RewardTokenABI = `[
  {"type":"function","name":"balanceOf","stateMutability":"view",
   "inputs":[{"name":"account","type":"address"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"billSplitContract","stateMutability":"view",
   "inputs":[],
   "outputs":[{"name":"","type":"address"}]},
  {"type":"function","name":"setBillSplitContract","stateMutability":"nonpayable",
   "inputs":[{"name":"billSplit","type":"address"}],
   "outputs":[]}
]`

var (
	billSplitABI   = mustParseABI(BillSplitABI)
	rewardTokenABI = mustParseABI(RewardTokenABI)
)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic("ledger: bad embedded ABI: " + err.Error())
	}
	return parsed
}
