package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/pathwise-labs/progress_api/dto"
	"github.com/pathwise-labs/progress_api/shared"
)

type ProgressHandler struct {
	progressSvc ProgressServiceInterface
}

func NewProgressHandler(progressSvc ProgressServiceInterface) *ProgressHandler {
	return &ProgressHandler{
		progressSvc: progressSvc,
	}
}

// @Summary Get Subject Progress
// @Description Get the learner's progress in a subject: per-node unlock statuses, completion percentage and the suggested next lesson
// @Tags progress
// @Accept json
// @Produce json
// @Security Bearer
// @Param Authorization header string true "User Bearer Token" default(Bearer <user_token>)
// @Param subjectId path string true "Subject ID"
// @Success 200 {object} shared.Response{data=dto.SubjectProgressResponse}
// @Failure 404 {object} shared.Response
// @Router /api/v1/subjects/{subjectId}/progress [get]
func (h *ProgressHandler) GetSubjectProgress(c *fiber.Ctx) error {
	learnerID := c.Locals(shared.LearnerID).(string)
	subjectID := c.Params("subjectId")

	progress, err := h.progressSvc.GetProgress(c.UserContext(), learnerID, subjectID)
	if err != nil {
		return err
	}

	return shared.ResponseJSON(c, fiber.StatusOK, "Success", progress)
}

// @Summary Complete Lesson
// @Description Record a lesson completion with its score and settle the XP award
// @Tags progress
// @Accept json
// @Produce json
// @Security Bearer
// @Param Authorization header string true "User Bearer Token" default(Bearer <user_token>)
// @Param completeRequest body dto.CompleteLessonRequest true "Completion request"
// @Success 200 {object} shared.Response{data=dto.CompleteLessonResponse}
// @Failure 404 {object} shared.Response
// @Failure 503 {object} shared.Response
// @Router /api/v1/lessons/complete [post]
func (h *ProgressHandler) CompleteLesson(c *fiber.Ctx) error {
	learnerID := c.Locals(shared.LearnerID).(string)

	var req dto.CompleteLessonRequest
	if err := c.BodyParser(&req); err != nil {
		return shared.NewBadRequestError(err, "Invalid request")
	}

	if err := req.Validate(); err != nil {
		validationResp := dto.CreateValidationErrorResponse(err)
		return c.Status(fiber.StatusBadRequest).JSON(validationResp)
	}

	result, err := h.progressSvc.CompleteLesson(c.UserContext(), learnerID, &req)
	if err != nil {
		return err
	}

	return shared.ResponseJSON(c, fiber.StatusOK, "Lesson completion recorded", result)
}
