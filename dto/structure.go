package dto

import (
	"encoding/json"
	"time"
)

// ==================== STRUCTURE ADMIN ====================

type AssignedPosition struct {
	LessonID    string `json:"lesson_id" example:"lesson-fractions-03"`
	BitPosition int    `json:"bit_position" example:"7"`
}

type StructureVersionResponse struct {
	SubjectID   string             `json:"subject_id" example:"math-7"`
	Version     int                `json:"version" example:"4"`
	ETag        string             `json:"etag" example:"9f2c1a"`
	LessonCount int                `json:"lesson_count" example:"12"`
	NewLessons  []AssignedPosition `json:"new_lessons,omitempty"`
}

type StructureDocumentResponse struct {
	SubjectID string          `json:"subject_id" example:"math-7"`
	Version   int             `json:"version" example:"4"`
	ETag      string          `json:"etag" example:"9f2c1a"`
	Document  json.RawMessage `json:"document"`
}

type ResetProgressRequest struct {
	LearnerID string `json:"learner_id" validate:"required" example:"0198b2c4-7e1a-7c3b-9f00-3d5a1b2c4d6e"`
}

func (r ResetProgressRequest) Validate() error {
	return GetValidator().Struct(r)
}

type ResetProgressResponse struct {
	LearnerID string `json:"learner_id"`
	SubjectID string `json:"subject_id"`
	ResetAt   string `json:"reset_at" example:"2025-03-14T09:26:53Z"`
}

// ==================== SYNC ADMIN ====================

type SyncStatusResponse struct {
	DirtyBacklog  int64      `json:"dirty_backlog" example:"12"`
	LastRunAt     *time.Time `json:"last_run_at,omitempty"`
	LastRunSynced int        `json:"last_run_synced" example:"12"`
	LastRunFailed int        `json:"last_run_failed" example:"0"`
	TotalSynced   int64      `json:"total_synced" example:"4096"`
	TotalFailed   int64      `json:"total_failed" example:"3"`
}

type SyncRunResponse struct {
	Synced   int `json:"synced" example:"12"`
	Failed   int `json:"failed" example:"0"`
	Requeued int `json:"requeued" example:"0"`
}
