package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path"
	"strings"

	"github.com/google/uuid"

	"safecheck/field-assessment/internal/models"
	"safecheck/field-assessment/internal/repositories"
)

type ExtractorService interface {
	ProcessAssessment(ctx context.Context, assessmentID uuid.UUID, audioURL string) error
}

type extractorService struct {
	assessmentRepo repositories.AssessmentRepository
	templateRepo   repositories.TemplateRepository
	resultRepo     repositories.ResultRepository
	stt            SpeechToTextService
	gemini         GeminiService
	retrieval      RetrievalService
	storage        ObjectStorageService
	promptBuilder  *PromptBuilder
	retryPolicy    RetryPolicy
}

func NewExtractorService(
	assessmentRepo repositories.AssessmentRepository,
	templateRepo repositories.TemplateRepository,
	resultRepo repositories.ResultRepository,
	stt SpeechToTextService,
	gemini GeminiService,
	retrieval RetrievalService,
	storage ObjectStorageService,
	retryPolicy RetryPolicy,
) ExtractorService {
	return &extractorService{
		assessmentRepo: assessmentRepo,
		templateRepo:   templateRepo,
		resultRepo:     resultRepo,
		stt:            stt,
		gemini:         gemini,
		retrieval:      retrieval,
		storage:        storage,
		promptBuilder:  NewPromptBuilder(),
		retryPolicy:    retryPolicy,
	}
}

type extractionAnswer struct {
	TemplateItemID string  `json:"template_item_id"`
	ResultValue    *string `json:"result_value"`
	LegalBasis     *string `json:"legal_basis"`
	Solution       *string `json:"solution"`
}

type extractionSet struct {
	Results []extractionAnswer `json:"results"`
}

type extractionResponse struct {
	Title string          `json:"title"`
	Sets  []extractionSet `json:"sets"`
}

// ProcessAssessment runs the single-shot pipeline: STT, transcript commit,
// retrieval, structured extraction, result persistence, terminal status
// write. Any failure after the assessment is known lands as status=failed
// with the error message.
func (e *extractorService) ProcessAssessment(ctx context.Context, assessmentID uuid.UUID, audioURL string) error {
	err := e.run(ctx, assessmentID, audioURL)
	if err == nil {
		return nil
	}

	if errors.Is(err, ErrNoSpeech) {
		if markErr := e.assessmentRepo.MarkFailed(assessmentID, NoSpeechMessage); markErr != nil {
			log.Printf("❌ Failed to record no-speech outcome for %s: %v\n", assessmentID, markErr)
		}
		return err
	}

	// A lost status race means another run owns this assessment; writing
	// failed here would revert the winner's terminal state.
	if errors.Is(err, repositories.ErrStatusConflict) {
		log.Printf("⚠️ Skipping failure write for %s: %v\n", assessmentID, err)
		return err
	}

	if markErr := e.assessmentRepo.MarkFailed(assessmentID, err.Error()); markErr != nil {
		log.Printf("❌ Failed to record pipeline failure for %s: %v\n", assessmentID, markErr)
	}

	return err
}

func (e *extractorService) run(ctx context.Context, assessmentID uuid.UUID, audioURL string) error {
	assessment, err := e.assessmentRepo.FindByID(assessmentID)
	if err != nil {
		return fmt.Errorf("failed to load assessment: %w", err)
	}

	// Only a fresh in_progress record may enter the pipeline. A terminal or
	// analyzing assessment belongs to another run; refusing here keeps its
	// transcript and status untouched.
	if assessment.Status != models.StatusInProgress {
		return fmt.Errorf("%w: assessment is %s", repositories.ErrStatusConflict, assessment.Status)
	}

	template, err := e.templateRepo.FindByID(assessment.TemplateID)
	if err != nil {
		return fmt.Errorf("failed to load template: %w", err)
	}

	items, err := e.templateRepo.FindItems(template.ID)
	if err != nil {
		return fmt.Errorf("failed to load template items: %w", err)
	}
	if len(items) == 0 {
		return fmt.Errorf("template %s has no items", template.ID)
	}

	log.Printf("🎙 Transcribing audio for assessment %s\n", assessmentID)
	audio, declaredType, err := e.storage.Fetch(ctx, audioURL)
	if err != nil {
		return fmt.Errorf("failed to fetch audio: %w", err)
	}

	transcript, err := e.stt.Transcribe(ctx, audio, path.Base(audioURL), declaredType)
	if err != nil {
		if errors.Is(err, ErrNoSpeech) {
			return err
		}
		return fmt.Errorf("transcription failed: %w", err)
	}

	// Transcript lands before extraction starts: a crash past this point
	// leaves a readable transcript and a truthful "analyzing" signal.
	if err := e.assessmentRepo.SaveTranscript(assessmentID, transcript); err != nil {
		return err
	}
	if err := e.assessmentRepo.TransitionStatus(assessmentID, models.StatusInProgress, models.StatusAnalyzing); err != nil {
		return err
	}

	log.Printf("📚 Retrieving legal context for assessment %s\n", assessmentID)
	legalContext := e.retrieval.RetrieveLegalContext(ctx, transcript)

	tree := models.NewItemTree(items)
	leaves := tree.Leaves()

	prompt := e.promptBuilder.BuildExtractionPrompt(
		transcript,
		tree.Flatten(),
		template.AiType,
		assessment.ResponseStyle,
		legalContext,
	)

	log.Printf("🤖 Extracting structured answers (%d schema items, prompt %d chars)\n", len(items), len(prompt))

	// Factual extraction is pinned to temperature zero; only overload-class
	// failures are retried.
	var response string
	err = e.retryPolicy.Do(ctx, func() error {
		var genErr error
		response, genErr = e.gemini.GenerateText(ctx, prompt, 0)
		return genErr
	})
	if err != nil {
		return fmt.Errorf("extraction failed: %w", err)
	}

	var decoded extractionResponse
	if err := DecodeModelJSON(response, &decoded); err != nil {
		return fmt.Errorf("failed to parse extraction response: %w", err)
	}

	results := e.collectResults(assessmentID, decoded, leaves)

	if err := e.resultRepo.BulkInsert(results); err != nil {
		return err
	}

	if title := strings.TrimSpace(decoded.Title); title != "" {
		if err := e.assessmentRepo.UpdateTitle(assessmentID, title); err != nil {
			return err
		}
	}

	if err := e.assessmentRepo.TransitionStatus(assessmentID, models.StatusAnalyzing, models.StatusCompleted); err != nil {
		return err
	}

	log.Printf("✅ Assessment %s completed: %d answers across %d sets\n", assessmentID, len(results), len(decoded.Sets))
	return nil
}

// collectResults flattens the model's answer sets into rows, silently
// dropping references that do not point at a known schema leaf. Partial
// yield beats all-or-nothing rejection here.
func (e *extractorService) collectResults(
	assessmentID uuid.UUID,
	decoded extractionResponse,
	leaves map[uuid.UUID]bool,
) []models.AssessmentResult {
	var results []models.AssessmentResult

	for _, set := range decoded.Sets {
		for _, answer := range set.Results {
			if len(answer.TemplateItemID) < 8 {
				continue
			}
			itemID, err := uuid.Parse(answer.TemplateItemID)
			if err != nil {
				log.Printf("⚠️ Dropping malformed item reference %q\n", answer.TemplateItemID)
				continue
			}
			if !leaves[itemID] {
				log.Printf("⚠️ Dropping answer for unknown leaf %s\n", itemID)
				continue
			}

			results = append(results, models.AssessmentResult{
				AssessmentID:   assessmentID,
				TemplateItemID: itemID,
				ResultValue:    answer.ResultValue,
				LegalBasis:     answer.LegalBasis,
				Solution:       answer.Solution,
			})
		}
	}

	return results
}
