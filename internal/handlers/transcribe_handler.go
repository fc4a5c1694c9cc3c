package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"safecheck/field-assessment/internal/models"
	"safecheck/field-assessment/internal/repositories"
	"safecheck/field-assessment/internal/services"
)

type TranscribeHandler struct {
	extractor services.ExtractorService
}

func NewTranscribeHandler(extractor services.ExtractorService) *TranscribeHandler {
	return &TranscribeHandler{
		extractor: extractor,
	}
}

// HandleTranscribe handles POST /transcribe. The pipeline runs inside the
// request: the caller polls the assessment's status for progress.
func (h *TranscribeHandler) HandleTranscribe(c *fiber.Ctx) error {
	var req models.TranscribeRequest

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request payload",
		})
	}

	if req.AudioURL == "" || req.AssessmentID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "audioUrl and assessmentId are required",
		})
	}

	assessmentID, err := uuid.Parse(req.AssessmentID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid assessmentId format",
		})
	}

	if err := h.extractor.ProcessAssessment(c.UserContext(), assessmentID, req.AudioURL); err != nil {
		// No speech is a distinguished outcome, not a server failure: the
		// assessment is already marked failed with the fixed reason.
		if errors.Is(err, services.ErrNoSpeech) {
			return c.JSON(models.MessageResponse{Message: "No speech detected"})
		}

		if errors.Is(err, repositories.ErrStatusConflict) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "Assessment is not awaiting analysis",
			})
		}

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(models.MessageResponse{Message: "Analysis complete"})
}
