// model/structure.go
package model

import "time"

// Subject is the per-subject registry row: current structure version plus
// the bit-position counter new lessons draw from. NextBitPosition only
// ever grows; retired lessons leave their slot behind forever.
type Subject struct {
	ID               string    `json:"id" gorm:"primaryKey"`
	Title            string    `json:"title"`
	StructureVersion int       `json:"structure_version" gorm:"default:0"`
	StructureETag    string    `json:"structure_etag"`
	LessonCount      int       `json:"lesson_count" gorm:"default:0"`
	NextBitPosition  int       `json:"next_bit_position" gorm:"default:0"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// StructureRevision is one published version of a subject's structure
// document, pointing at the immutable object that holds it.
type StructureRevision struct {
	ID          string    `json:"id" gorm:"primaryKey"`
	SubjectID   string    `json:"subject_id" gorm:"not null;uniqueIndex:idx_revision_subject_version"`
	Version     int       `json:"version" gorm:"not null;uniqueIndex:idx_revision_subject_version"`
	ObjectKey   string    `json:"object_key" gorm:"not null"`
	ETag        string    `json:"etag"`
	LessonCount int       `json:"lesson_count"`
	NewLessons  int       `json:"new_lessons"`
	PublishedAt time.Time `json:"published_at"`
}

// LessonPosition is the permanent lesson-to-bit assignment. A lesson keeps
// its position across every future revision of the subject.
type LessonPosition struct {
	LessonID    string    `json:"lesson_id" gorm:"primaryKey"`
	SubjectID   string    `json:"subject_id" gorm:"not null;index;uniqueIndex:idx_lesson_position_subject_bit"`
	BitPosition int       `json:"bit_position" gorm:"not null;uniqueIndex:idx_lesson_position_subject_bit"`
	CreatedAt   time.Time `json:"created_at"`
}
