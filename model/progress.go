// model/progress.go
package model

import (
	"encoding/json"
	"time"
)

// ProgressSnapshot is the durable copy of one learner's progress in one
// subject. The cache is the write path; rows here are refreshed by the
// background sync and read back only to warm a cold cache.
type ProgressSnapshot struct {
	ID        string `json:"id" gorm:"primaryKey"`
	LearnerID string `json:"learner_id" gorm:"not null;uniqueIndex:idx_snapshot_learner_subject"`
	SubjectID string `json:"subject_id" gorm:"not null;uniqueIndex:idx_snapshot_learner_subject"`

	// Base64 bitmaps, bit-per-lesson addressed by bit position.
	CompletionBitmap string `json:"completion_bitmap" gorm:"type:text"`
	// RewardedBitmap marks lessons whose base XP was ever paid out. Progress
	// resets leave it untouched.
	RewardedBitmap string          `json:"rewarded_bitmap" gorm:"type:text"`
	BestScores     json.RawMessage `json:"best_scores" gorm:"type:jsonb"`

	SyncedAt  time.Time `json:"synced_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProgressAudit records one progress-changing action for the audit trail.
type ProgressAudit struct {
	ID        string          `json:"id" gorm:"primaryKey"`
	LearnerID string          `json:"learner_id" gorm:"not null;index"`
	SubjectID string          `json:"subject_id" gorm:"index"`
	LessonID  string          `json:"lesson_id"`
	Action    string          `json:"action" gorm:"not null"` // lesson_completed, progress_reset, structure_published
	Detail    json.RawMessage `json:"detail" gorm:"type:jsonb"`
	CreatedAt time.Time       `json:"created_at"`
}
