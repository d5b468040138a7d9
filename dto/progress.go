package dto

// ==================== LESSON COMPLETION ====================

type CompleteLessonRequest struct {
	LessonID string `json:"lesson_id" validate:"required" example:"lesson-fractions-01"`
	Score    int    `json:"score" validate:"gte=0,lte=5" example:"4"`
}

func (r CompleteLessonRequest) Validate() error {
	return GetValidator().Struct(r)
}

type CompleteLessonResponse struct {
	LessonID          string `json:"lesson_id" example:"lesson-fractions-01"`
	SubjectID         string `json:"subject_id" example:"math-7"`
	XPAwarded         int    `json:"xp_awarded" example:"90"`
	IsFirstCompletion bool   `json:"is_first_completion" example:"true"`
	IsNewRecord       bool   `json:"is_new_record" example:"true"`
	BestScore         int    `json:"best_score" example:"4"`
	// TotalXP is the learner's balance after crediting; omitted when the
	// wallet could not confirm it.
	TotalXP *int64 `json:"total_xp,omitempty" example:"1240"`
}

// ==================== SUBJECT PROGRESS ====================

type NodeProgress struct {
	ID       string          `json:"id" example:"t1"`
	Title    string          `json:"title,omitempty" example:"Numbers"`
	Type     string          `json:"type" example:"container"`
	Status   string          `json:"status" example:"unlocked"`
	Children []*NodeProgress `json:"children,omitempty"`
}

type SubjectProgressResponse struct {
	SubjectID            string  `json:"subject_id" example:"math-7"`
	StructureVersion     int     `json:"structure_version" example:"3"`
	CompletionPercentage float64 `json:"completion_percentage" example:"33.3"`
	PassedLessons        int     `json:"passed_lessons" example:"1"`
	TotalLessons         int     `json:"total_lessons" example:"3"`
	// SuggestedNextLessonID is null once the subject is complete or empty.
	SuggestedNextLessonID *string       `json:"suggested_next_lesson_id" example:"lesson-fractions-02"`
	Tree                  *NodeProgress `json:"tree"`
}
