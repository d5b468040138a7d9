package progression

// RewardPolicy parameterizes how lesson completions convert into
// experience points.
type RewardPolicy struct {
	// BaseXP is granted on the first completion of a lesson, ever. The
	// rewarded bitmap survives progress resets, so a learner can never
	// collect it twice.
	BaseXP int
	// PerPointXP multiplies the performance score into bonus XP.
	PerPointXP int
}

// DefaultRewardPolicy mirrors the platform-wide award table.
var DefaultRewardPolicy = RewardPolicy{BaseXP: 50, PerPointXP: 10}

// RewardOutcome describes what one completion earned.
type RewardOutcome struct {
	// XP actually awarded by this completion; 0 on replays that did not
	// beat the stored best.
	XP int
	// BestScore is the stored personal best after this completion.
	BestScore int
	// IsNewRecord is true when this completion set or raised the best.
	IsNewRecord bool
}

// Evaluate applies the reward rules to one completion. baseGranted says
// whether the base reward was ever paid for this lesson; best/hasBest
// carry the stored personal best, if any. A first-ever completion earns
// BaseXP plus score*PerPointXP. A replay earns only the improvement over
// the previous best, score deltas at PerPointXP each, and nothing when the
// score does not strictly beat it.
func (p RewardPolicy) Evaluate(baseGranted bool, best int, hasBest bool, score int) RewardOutcome {
	if score < 0 {
		score = 0
	}
	prev := 0
	if hasBest {
		prev = best
	}

	out := RewardOutcome{BestScore: prev}
	if !hasBest || score > prev {
		out.BestScore = score
		out.IsNewRecord = true
	}

	switch {
	case !baseGranted:
		out.XP = p.BaseXP + score*p.PerPointXP
	case score > prev:
		out.XP = (score - prev) * p.PerPointXP
	}
	return out
}
