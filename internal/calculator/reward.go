package calculator

import (
	"fmt"
	"time"
)

const (
	// InstantWindow is the payment delay below which the Instant tier applies.
	InstantWindow = 60 * time.Second
	// FastWindow is the payment delay below which the Fast tier applies.
	FastWindow = 24 * time.Hour
)

// Tier labels.
const (
	TierInstant = "Instant"
	TierFast    = "Fast"
	TierNone    = "None"
)

// RewardTier is the bonus earned by a participant for paying quickly.
// Reward is in whole ARC tokens.
type RewardTier struct {
	Label  string
	Reward int64
}

// ScheduleStep is one tier of the reward schedule. Under is the exclusive
// upper bound of the payment delay; zero means unbounded.
type ScheduleStep struct {
	Tier  RewardTier
	Under time.Duration
}

// schedule lists the tiers in decreasing order of reward. The last tier has no bound.
var schedule = []ScheduleStep{
	{Tier: RewardTier{Label: TierInstant, Reward: 2}, Under: InstantWindow},
	{Tier: RewardTier{Label: TierFast, Reward: 1}, Under: FastWindow},
	{Tier: RewardTier{Label: TierNone, Reward: 0}},
}

// ComputeRewardTier returns the reward tier for a payment made at paidAt on an
// expense created at createdAt. Windows are half-open: [0, 60s) is Instant,
// [60s, 24h) is Fast, and anything later earns nothing.
func ComputeRewardTier(createdAt, paidAt time.Time) (RewardTier, error) {
	elapsed := paidAt.Sub(createdAt)
	if elapsed < 0 {
		return RewardTier{}, fmt.Errorf("%w: payment at %s precedes creation at %s",
			ErrInvalidInput, paidAt.UTC().Format(time.RFC3339), createdAt.UTC().Format(time.RFC3339))
	}

	for _, step := range schedule {
		if step.Under == 0 || elapsed < step.Under {
			return step.Tier, nil
		}
	}
	return RewardTier{Label: TierNone}, nil
}

// RewardSchedule returns a copy of the tiers used by ComputeRewardTier.
func RewardSchedule() []ScheduleStep {
	out := make([]ScheduleStep, len(schedule))
	copy(out, schedule)
	return out
}
