package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"safecheck/field-assessment/internal/models"
	"safecheck/field-assessment/internal/repositories"
	"safecheck/field-assessment/internal/services"
)

type TemplateHandler struct {
	templateRepo repositories.TemplateRepository
	worker       services.Worker
}

func NewTemplateHandler(
	templateRepo repositories.TemplateRepository,
	worker services.Worker,
) *TemplateHandler {
	return &TemplateHandler{
		templateRepo: templateRepo,
		worker:       worker,
	}
}

// HandleStructure handles POST /templates/:id/structure. Structuring runs on
// the background worker; callers poll the template's status.
func (h *TemplateHandler) HandleStructure(c *fiber.Ctx) error {
	templateID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid template ID format",
		})
	}

	template, err := h.templateRepo.FindByID(templateID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Template not found",
		})
	}

	h.worker.EnqueueTemplate(template.ID)

	return c.Status(fiber.StatusAccepted).JSON(models.StructureResponse{
		ID:     template.ID.String(),
		Status: string(models.TemplateProcessing),
	})
}

// HandleGetTemplate handles GET /templates/:id: status plus the item tree
// once structuring completed.
func (h *TemplateHandler) HandleGetTemplate(c *fiber.Ctx) error {
	templateID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid template ID format",
		})
	}

	template, err := h.templateRepo.FindByID(templateID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Template not found",
		})
	}

	items, err := h.templateRepo.FindItems(template.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load template items",
		})
	}

	template.Items = items
	return c.JSON(template)
}
