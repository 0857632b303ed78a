package calculator

import (
	"errors"
	"math/big"
	"reflect"
	"testing"
)

func TestComputeShare(t *testing.T) {
	tests := []struct {
		name         string
		total        *big.Int
		participants int
		want         int64
		wantErr      error
	}{
		{name: "single participant keeps the whole amount", total: big.NewInt(1000), participants: 1, want: 1000},
		{name: "even split", total: big.NewInt(1000), participants: 4, want: 250},
		{name: "remainder dropped", total: big.NewInt(10), participants: 3, want: 3},
		{name: "zero total", total: big.NewInt(0), participants: 5, want: 0},
		{name: "more participants than units", total: big.NewInt(2), participants: 3, want: 0},
		{name: "zero participants", total: big.NewInt(1000), participants: 0, wantErr: ErrInvalidInput},
		{name: "negative participants", total: big.NewInt(1000), participants: -2, wantErr: ErrInvalidInput},
		{name: "negative total", total: big.NewInt(-1), participants: 2, wantErr: ErrInvalidInput},
		{name: "nil total", total: nil, participants: 2, wantErr: ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ComputeShare(tt.total, tt.participants)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ComputeShare() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ComputeShare() unexpected error: %v", err)
			}
			if got.Cmp(big.NewInt(tt.want)) != 0 {
				t.Errorf("ComputeShare(%v, %d) = %v, want %d", tt.total, tt.participants, got, tt.want)
			}
		})
	}
}

func TestComputeShare_WeiAmounts(t *testing.T) {
	// 1 ETH across 3 people does not divide evenly in wei.
	oneEth, _ := new(big.Int).SetString("1000000000000000000", 10)
	got, err := ComputeShare(oneEth, 3)
	if err != nil {
		t.Fatalf("ComputeShare failed: %v", err)
	}
	want, _ := new(big.Int).SetString("333333333333333333", 10)
	if got.Cmp(want) != 0 {
		t.Errorf("share = %v, want %v", got, want)
	}

	rem, err := Remainder(oneEth, 3)
	if err != nil {
		t.Fatalf("Remainder failed: %v", err)
	}
	if rem.Cmp(big.NewInt(1)) != 0 {
		t.Errorf("remainder = %v, want 1", rem)
	}
}

func TestComputeShare_Bounds(t *testing.T) {
	for total := int64(0); total <= 200; total += 7 {
		for n := 1; n <= 12; n++ {
			totalBig := big.NewInt(total)
			share, err := ComputeShare(totalBig, n)
			if err != nil {
				t.Fatalf("ComputeShare(%d, %d) failed: %v", total, n, err)
			}
			again, _ := ComputeShare(totalBig, n)
			if share.Cmp(again) != 0 {
				t.Fatalf("ComputeShare(%d, %d) not deterministic: %v vs %v", total, n, share, again)
			}
			if share.Sign() < 0 || share.Cmp(totalBig) > 0 {
				t.Errorf("ComputeShare(%d, %d) = %v out of [0, total]", total, n, share)
			}
			distributed := new(big.Int).Mul(share, big.NewInt(int64(n)))
			if distributed.Cmp(totalBig) > 0 {
				t.Errorf("ComputeShare(%d, %d) * n = %v exceeds total", total, n, distributed)
			}
			rem, _ := Remainder(totalBig, n)
			if rem.Cmp(big.NewInt(int64(n))) >= 0 {
				t.Errorf("Remainder(%d, %d) = %v, want < n", total, n, rem)
			}
		}
	}
}

func TestComputeShare_DoesNotAliasInput(t *testing.T) {
	total := big.NewInt(1000)
	share, err := ComputeShare(total, 1)
	if err != nil {
		t.Fatalf("ComputeShare failed: %v", err)
	}
	share.SetInt64(1)
	if total.Int64() != 1000 {
		t.Errorf("mutating the share changed the input total to %v", total)
	}
}

func TestValidateParticipants(t *testing.T) {
	tests := []struct {
		name         string
		participants []string
		payer        string
		want         []string
		wantErr      error
	}{
		{
			name:         "empty list",
			participants: []string{},
			payer:        "payer",
			wantErr:      ErrEmptyParticipantList,
		},
		{
			name:         "only blanks",
			participants: []string{"", "   "},
			payer:        "payer",
			wantErr:      ErrEmptyParticipantList,
		},
		{
			name:         "only the payer",
			participants: []string{"payer"},
			payer:        "payer",
			wantErr:      ErrEmptyParticipantList,
		},
		{
			name:         "payer placed first",
			participants: []string{"alice"},
			payer:        "payer",
			want:         []string{"payer", "alice"},
		},
		{
			name:         "duplicates and payer removed",
			participants: []string{"alice", " bob ", "ALICE", "payer", "bob"},
			payer:        "payer",
			want:         []string{"payer", "alice", "bob"},
		},
		{
			name:         "hex addresses compared case-insensitively",
			participants: []string{"0xAbC0000000000000000000000000000000000001", "0xabc0000000000000000000000000000000000001"},
			payer:        "0x00000000000000000000000000000000000000FF",
			want:         []string{"0x00000000000000000000000000000000000000FF", "0xAbC0000000000000000000000000000000000001"},
		},
		{
			name:         "blank payer",
			participants: []string{"alice"},
			payer:        " ",
			wantErr:      ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateParticipants(tt.participants, tt.payer)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ValidateParticipants() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ValidateParticipants() unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ValidateParticipants() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidateExpense(t *testing.T) {
	valid := ExpenseInput{
		Payer:        "payer",
		Description:  "Dinner",
		TotalAmount:  big.NewInt(1000),
		Participants: []string{"alice"},
	}

	tests := []struct {
		name    string
		mutate  func(in *ExpenseInput)
		wantErr error
	}{
		{name: "valid", mutate: func(in *ExpenseInput) {}},
		{name: "blank description", mutate: func(in *ExpenseInput) { in.Description = "  " }, wantErr: ErrEmptyDescription},
		{name: "nil amount", mutate: func(in *ExpenseInput) { in.TotalAmount = nil }, wantErr: ErrInvalidAmount},
		{name: "zero amount", mutate: func(in *ExpenseInput) { in.TotalAmount = big.NewInt(0) }, wantErr: ErrInvalidAmount},
		{name: "negative amount", mutate: func(in *ExpenseInput) { in.TotalAmount = big.NewInt(-5) }, wantErr: ErrInvalidAmount},
		{name: "no participants", mutate: func(in *ExpenseInput) { in.Participants = nil }, wantErr: ErrEmptyParticipantList},
		{
			name: "description checked before amount",
			mutate: func(in *ExpenseInput) {
				in.Description = ""
				in.TotalAmount = nil
			},
			wantErr: ErrEmptyDescription,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.mutate(&in)
			all, err := ValidateExpense(in)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ValidateExpense() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ValidateExpense() unexpected error: %v", err)
			}
			if len(all) != 2 || all[0] != "payer" {
				t.Errorf("ValidateExpense() participants = %v, want payer first", all)
			}
		})
	}
}
