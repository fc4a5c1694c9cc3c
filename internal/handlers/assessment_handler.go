package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"safecheck/field-assessment/internal/models"
	"safecheck/field-assessment/internal/repositories"
	"safecheck/field-assessment/internal/services"
)

type AssessmentHandler struct {
	assessmentRepo repositories.AssessmentRepository
	resultRepo     repositories.ResultRepository
	extractor      services.ExtractorService
}

func NewAssessmentHandler(
	assessmentRepo repositories.AssessmentRepository,
	resultRepo repositories.ResultRepository,
	extractor services.ExtractorService,
) *AssessmentHandler {
	return &AssessmentHandler{
		assessmentRepo: assessmentRepo,
		resultRepo:     resultRepo,
		extractor:      extractor,
	}
}

// HandleGetAssessment handles GET /assessments/:id, the polling shape the
// UI subscribes to.
func (h *AssessmentHandler) HandleGetAssessment(c *fiber.Ctx) error {
	assessmentID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid assessment ID format",
		})
	}

	assessment, err := h.assessmentRepo.FindByID(assessmentID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Assessment not found",
		})
	}

	response := models.AssessmentStatusResponse{
		ID:         assessment.ID.String(),
		Status:     string(assessment.Status),
		Title:      assessment.Title,
		Transcript: assessment.Transcript,
	}

	if assessment.Status == models.StatusFailed {
		response.ErrorMessage = assessment.ErrorMessage
	}

	return c.JSON(response)
}

// HandleGetResults handles GET /assessments/:id/results: answer rows joined
// with their schema headers for the report view.
func (h *AssessmentHandler) HandleGetResults(c *fiber.Ctx) error {
	assessmentID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid assessment ID format",
		})
	}

	assessment, err := h.assessmentRepo.FindByID(assessmentID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Assessment not found",
		})
	}

	rows, err := h.resultRepo.FindRowsByAssessment(assessmentID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load results",
		})
	}

	return c.JSON(models.ResultsResponse{
		ID:      assessment.ID.String(),
		Status:  string(assessment.Status),
		Title:   assessment.Title,
		Results: rows,
	})
}

// HandleRetry handles POST /assessments/:id/retry. A retry is a fresh run:
// the failed record re-enters at in_progress, previous rows are cleared, and
// the pipeline is re-invoked from scratch.
func (h *AssessmentHandler) HandleRetry(c *fiber.Ctx) error {
	assessmentID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid assessment ID format",
		})
	}

	var req struct {
		AudioURL string `json:"audioUrl" validate:"required"`
	}
	if err := c.BodyParser(&req); err != nil || req.AudioURL == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "audioUrl is required",
		})
	}

	if err := h.assessmentRepo.ResetForRetry(assessmentID); err != nil {
		if errors.Is(err, repositories.ErrStatusConflict) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "Only failed assessments can be retried",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to reset assessment",
		})
	}

	if err := h.resultRepo.DeleteByAssessment(assessmentID); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to clear previous results",
		})
	}

	if err := h.extractor.ProcessAssessment(c.UserContext(), assessmentID, req.AudioURL); err != nil {
		if errors.Is(err, services.ErrNoSpeech) {
			return c.JSON(models.MessageResponse{Message: "No speech detected"})
		}

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(models.MessageResponse{Message: "Analysis complete"})
}
