package progression

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRewardPolicyEvaluate(t *testing.T) {
	policy := RewardPolicy{BaseXP: 50, PerPointXP: 10}

	tests := []struct {
		name        string
		baseGranted bool
		best        int
		hasBest     bool
		score       int
		want        RewardOutcome
	}{
		{
			name:  "first completion",
			score: 4,
			want:  RewardOutcome{XP: 90, BestScore: 4, IsNewRecord: true},
		},
		{
			name:  "first completion with zero score",
			score: 0,
			want:  RewardOutcome{XP: 50, BestScore: 0, IsNewRecord: true},
		},
		{
			name:        "replay beats the best",
			baseGranted: true,
			best:        2,
			hasBest:     true,
			score:       5,
			want:        RewardOutcome{XP: 30, BestScore: 5, IsNewRecord: true},
		},
		{
			name:        "replay equals the best",
			baseGranted: true,
			best:        4,
			hasBest:     true,
			score:       4,
			want:        RewardOutcome{XP: 0, BestScore: 4},
		},
		{
			name:        "replay below the best",
			baseGranted: true,
			best:        4,
			hasBest:     true,
			score:       2,
			want:        RewardOutcome{XP: 0, BestScore: 4},
		},
		{
			name:        "replay after progress reset keeps the base reward spent",
			baseGranted: true,
			score:       3,
			want:        RewardOutcome{XP: 30, BestScore: 3, IsNewRecord: true},
		},
		{
			name:  "negative score clamps to zero",
			score: -2,
			want:  RewardOutcome{XP: 50, BestScore: 0, IsNewRecord: true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := policy.Evaluate(tt.baseGranted, tt.best, tt.hasBest, tt.score)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRewardBaseOnlyOnce(t *testing.T) {
	policy := DefaultRewardPolicy

	first := policy.Evaluate(false, 0, false, 3)
	assert.Equal(t, 80, first.XP)

	// Every later call sees baseGranted and can only earn improvement
	// deltas; the sum of base components over any call sequence is one.
	replay := policy.Evaluate(true, first.BestScore, true, 5)
	assert.Equal(t, 20, replay.XP)

	again := policy.Evaluate(true, replay.BestScore, true, 5)
	assert.Equal(t, 0, again.XP)
	assert.False(t, again.IsNewRecord)
}
