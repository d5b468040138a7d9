package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/pathwise-labs/progress_api/shared"
)

type StructureHandler struct {
	structureSvc StructureServiceInterface
}

func NewStructureHandler(structureSvc StructureServiceInterface) *StructureHandler {
	return &StructureHandler{
		structureSvc: structureSvc,
	}
}

// @Summary List Subjects
// @Description List every subject known to the structure registry
// @Tags structure
// @Accept json
// @Produce json
// @Param X-Service-Key header string true "Service key"
// @Success 200 {object} shared.Response{data=[]model.Subject}
// @Router /api/v1/admin/subjects [get]
func (h *StructureHandler) ListSubjects(c *fiber.Ctx) error {
	subjects, err := h.structureSvc.ListSubjects()
	if err != nil {
		return err
	}

	return shared.ResponseJSON(c, fiber.StatusOK, "Success", subjects)
}

// @Summary Publish Structure
// @Description Publish a new structure revision for a subject; new lessons get permanent bit positions assigned
// @Tags structure
// @Accept json
// @Produce json
// @Param X-Service-Key header string true "Service key"
// @Param subjectId path string true "Subject ID"
// @Param document body object true "Structure document"
// @Success 201 {object} shared.Response{data=dto.StructureVersionResponse}
// @Failure 400 {object} shared.Response
// @Router /api/v1/admin/subjects/{subjectId}/structure [put]
func (h *StructureHandler) PublishStructure(c *fiber.Ctx) error {
	subjectID := c.Params("subjectId")

	body := c.Body()
	if len(body) == 0 {
		return shared.NewBadRequestError(nil, "Structure document required")
	}
	// Fiber reuses the request buffer once the handler returns.
	doc := append([]byte(nil), body...)

	result, err := h.structureSvc.PublishStructure(c.UserContext(), subjectID, doc)
	if err != nil {
		return err
	}

	return shared.ResponseJSON(c, fiber.StatusCreated, "Structure published", result)
}

// @Summary Get Structure Document
// @Description Get the current canonical structure document of a subject
// @Tags structure
// @Accept json
// @Produce json
// @Param X-Service-Key header string true "Service key"
// @Param subjectId path string true "Subject ID"
// @Success 200 {object} shared.Response{data=dto.StructureDocumentResponse}
// @Failure 404 {object} shared.Response
// @Router /api/v1/admin/subjects/{subjectId}/structure [get]
func (h *StructureHandler) GetStructureDocument(c *fiber.Ctx) error {
	subjectID := c.Params("subjectId")

	doc, err := h.structureSvc.GetStructureDocument(c.UserContext(), subjectID)
	if err != nil {
		return err
	}

	return shared.ResponseJSON(c, fiber.StatusOK, "Success", doc)
}

// @Summary Get Structure Revisions
// @Description Get the publish history of a subject, newest first
// @Tags structure
// @Accept json
// @Produce json
// @Param X-Service-Key header string true "Service key"
// @Param subjectId path string true "Subject ID"
// @Param limit query int false "Max revisions to return" default(20)
// @Success 200 {object} shared.Response{data=[]model.StructureRevision}
// @Router /api/v1/admin/subjects/{subjectId}/structure/revisions [get]
func (h *StructureHandler) GetRevisions(c *fiber.Ctx) error {
	subjectID := c.Params("subjectId")
	limit, _ := strconv.Atoi(c.Query("limit", "20"))

	revisions, err := h.structureSvc.GetRevisions(subjectID, limit)
	if err != nil {
		return err
	}

	return shared.ResponseJSON(c, fiber.StatusOK, "Success", revisions)
}
