package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/pathwise-labs/progress_api/dto"
	"github.com/pathwise-labs/progress_api/shared"
)

type AdminHandler struct {
	progressSvc ProgressServiceInterface
	syncSvc     SyncServiceInterface
}

func NewAdminHandler(progressSvc ProgressServiceInterface, syncSvc SyncServiceInterface) *AdminHandler {
	return &AdminHandler{
		progressSvc: progressSvc,
		syncSvc:     syncSvc,
	}
}

// @Summary Reset Learner Progress
// @Description Clear a learner's completion state in one subject. Lifetime base-XP history is kept, so rewards cannot be farmed through resets
// @Tags admin
// @Accept json
// @Produce json
// @Param X-Service-Key header string true "Service key"
// @Param subjectId path string true "Subject ID"
// @Param resetRequest body dto.ResetProgressRequest true "Reset request"
// @Success 200 {object} shared.Response{data=dto.ResetProgressResponse}
// @Failure 404 {object} shared.Response
// @Router /api/v1/admin/subjects/{subjectId}/progress/reset [post]
func (h *AdminHandler) ResetProgress(c *fiber.Ctx) error {
	subjectID := c.Params("subjectId")

	var req dto.ResetProgressRequest
	if err := c.BodyParser(&req); err != nil {
		return shared.NewBadRequestError(err, "Invalid request")
	}

	if err := req.Validate(); err != nil {
		validationResp := dto.CreateValidationErrorResponse(err)
		return c.Status(fiber.StatusBadRequest).JSON(validationResp)
	}

	result, err := h.progressSvc.ResetProgress(c.UserContext(), req.LearnerID, subjectID)
	if err != nil {
		return err
	}

	return shared.ResponseJSON(c, fiber.StatusOK, "Progress reset", result)
}

// @Summary Get Sync Status
// @Description Get the snapshot sync backlog and run counters
// @Tags admin
// @Accept json
// @Produce json
// @Param X-Service-Key header string true "Service key"
// @Success 200 {object} shared.Response{data=dto.SyncStatusResponse}
// @Router /api/v1/admin/sync/status [get]
func (h *AdminHandler) GetSyncStatus(c *fiber.Ctx) error {
	status, err := h.syncSvc.Status(c.UserContext())
	if err != nil {
		return err
	}

	return shared.ResponseJSON(c, fiber.StatusOK, "Success", status)
}

// @Summary Run Sync
// @Description Trigger one snapshot sync batch immediately
// @Tags admin
// @Accept json
// @Produce json
// @Param X-Service-Key header string true "Service key"
// @Success 200 {object} shared.Response{data=dto.SyncRunResponse}
// @Failure 409 {object} shared.Response
// @Router /api/v1/admin/sync/run [post]
func (h *AdminHandler) RunSync(c *fiber.Ctx) error {
	result, err := h.syncSvc.RunNow(c.UserContext())
	if err != nil {
		return err
	}

	return shared.ResponseJSON(c, fiber.StatusOK, "Sync batch complete", result)
}
