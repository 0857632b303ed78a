package calculator

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestComputeRewardTier(t *testing.T) {
	created := time.Unix(1_700_000_000, 0)

	tests := []struct {
		name    string
		elapsed time.Duration
		want    RewardTier
		wantErr bool
	}{
		{name: "zero elapsed", elapsed: 0, want: RewardTier{Label: "Instant", Reward: 2}},
		{name: "59 seconds", elapsed: 59 * time.Second, want: RewardTier{Label: "Instant", Reward: 2}},
		{name: "just under a minute", elapsed: 60*time.Second - time.Millisecond, want: RewardTier{Label: "Instant", Reward: 2}},
		{name: "exactly 60 seconds", elapsed: 60 * time.Second, want: RewardTier{Label: "Fast", Reward: 1}},
		{name: "one hour", elapsed: time.Hour, want: RewardTier{Label: "Fast", Reward: 1}},
		{name: "86399 seconds", elapsed: 86399 * time.Second, want: RewardTier{Label: "Fast", Reward: 1}},
		{name: "exactly 86400 seconds", elapsed: 86400 * time.Second, want: RewardTier{Label: "None", Reward: 0}},
		{name: "a week", elapsed: 7 * 24 * time.Hour, want: RewardTier{Label: "None", Reward: 0}},
		{name: "clock skew", elapsed: -time.Second, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ComputeRewardTier(created, created.Add(tt.elapsed))
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidInput) {
					t.Fatalf("ComputeRewardTier() error = %v, want ErrInvalidInput", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ComputeRewardTier() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ComputeRewardTier(+%v) = %+v, want %+v", tt.elapsed, got, tt.want)
			}
		})
	}
}

func TestComputeRewardTier_Monotonic(t *testing.T) {
	created := time.Unix(1_700_000_000, 0)
	prev := int64(1 << 62)
	for s := int64(0); s <= 2*86400; s += 30 {
		tier, err := ComputeRewardTier(created, created.Add(time.Duration(s)*time.Second))
		if err != nil {
			t.Fatalf("ComputeRewardTier(+%ds) failed: %v", s, err)
		}
		if tier.Reward > prev {
			t.Fatalf("reward increased at +%ds: %d > %d", s, tier.Reward, prev)
		}
		prev = tier.Reward
	}
}

func TestComputeRewardTier_Concurrent(t *testing.T) {
	created := time.Unix(1_700_000_000, 0)
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tier, err := ComputeRewardTier(created, created.Add(time.Duration(i)*time.Second))
			if err != nil || tier.Label != TierInstant {
				t.Errorf("goroutine %d: got %+v, %v", i, tier, err)
			}
		}(i)
	}
	wg.Wait()
}

func TestRewardSchedule_ReturnsCopy(t *testing.T) {
	steps := RewardSchedule()
	if len(steps) != 3 || steps[0].Tier.Label != TierInstant || steps[2].Under != 0 {
		t.Fatalf("unexpected schedule %+v", steps)
	}

	steps[0].Tier.Reward = 100
	steps[0].Under = time.Hour

	tier, err := ComputeRewardTier(time.Unix(0, 0), time.Unix(120, 0))
	if err != nil {
		t.Fatalf("ComputeRewardTier failed: %v", err)
	}
	if tier != (RewardTier{Label: TierFast, Reward: 1}) {
		t.Errorf("mutating the returned schedule changed ComputeRewardTier: %+v", tier)
	}
	if again := RewardSchedule(); again[0].Tier.Reward != 2 {
		t.Errorf("RewardSchedule() = %+v after mutation of a copy", again[0])
	}
}
