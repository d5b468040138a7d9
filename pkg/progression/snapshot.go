package progression

import (
	"fmt"

	"github.com/bytedance/sonic"
)

// Snapshot is one learner's full progress state for one subject: the
// completion bitmap, the lifetime rewarded bitmap, and the per-lesson best
// scores. It is the unit of exchange between the cache and durable rows.
type Snapshot struct {
	Completion Bitmap
	Rewarded   Bitmap
	BestScores map[string]int
}

// EmptySnapshot is the state of a learner who has never touched the
// subject.
func EmptySnapshot() Snapshot {
	return Snapshot{BestScores: map[string]int{}}
}

// EncodeBestScores renders the best-score map as JSON for storage.
func EncodeBestScores(scores map[string]int) ([]byte, error) {
	if scores == nil {
		scores = map[string]int{}
	}
	b, err := sonic.Marshal(scores)
	if err != nil {
		return nil, fmt.Errorf("encode best scores: %w", err)
	}
	return b, nil
}

// DecodeBestScores parses a stored best-score document. Empty input reads
// as no scores.
func DecodeBestScores(b []byte) (map[string]int, error) {
	if len(b) == 0 {
		return map[string]int{}, nil
	}
	scores := map[string]int{}
	if err := sonic.Unmarshal(b, &scores); err != nil {
		return nil, fmt.Errorf("decode best scores: %w", err)
	}
	return scores, nil
}
