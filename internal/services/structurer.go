package services

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"safecheck/field-assessment/internal/models"
	"safecheck/field-assessment/internal/repositories"
)

type StructurerService interface {
	ProcessTemplate(ctx context.Context, templateID uuid.UUID) error
}

type structurerService struct {
	templateRepo  repositories.TemplateRepository
	gemini        GeminiService
	storage       ObjectStorageService
	promptBuilder *PromptBuilder
	retryPolicy   RetryPolicy
}

func NewStructurerService(
	templateRepo repositories.TemplateRepository,
	gemini GeminiService,
	storage ObjectStorageService,
	retryPolicy RetryPolicy,
) StructurerService {
	return &structurerService{
		templateRepo:  templateRepo,
		gemini:        gemini,
		storage:       storage,
		promptBuilder: NewPromptBuilder(),
		retryPolicy:   retryPolicy,
	}
}

type structuredColumn struct {
	HeaderName   string             `json:"header_name"`
	DefaultValue *string            `json:"default_value"`
	Children     []structuredColumn `json:"children"`
}

type structureResponse struct {
	DocumentType string             `json:"document_type"`
	Columns      []structuredColumn `json:"columns"`
}

// ProcessTemplate infers the column schema and document type from the
// template's source image and persists the tree top-down. Any failure lands
// as template status=failed with the message.
func (s *structurerService) ProcessTemplate(ctx context.Context, templateID uuid.UUID) error {
	err := s.run(ctx, templateID)
	if err == nil {
		return nil
	}

	if markErr := s.templateRepo.MarkFailed(templateID, err.Error()); markErr != nil {
		log.Printf("❌ Failed to record structuring failure for %s: %v\n", templateID, markErr)
	}

	return err
}

func (s *structurerService) run(ctx context.Context, templateID uuid.UUID) error {
	template, err := s.templateRepo.FindByID(templateID)
	if err != nil {
		return fmt.Errorf("failed to load template: %w", err)
	}

	if template.SourceImagePath == "" {
		return fmt.Errorf("template %s has no source image", templateID)
	}

	log.Printf("🖼 Analyzing template image for %s\n", templateID)
	image, mimeType, err := s.storage.Fetch(ctx, template.SourceImagePath)
	if err != nil {
		return fmt.Errorf("failed to fetch template image: %w", err)
	}

	prompt := s.promptBuilder.BuildStructuringPrompt()

	var response string
	err = s.retryPolicy.Do(ctx, func() error {
		var genErr error
		response, genErr = s.gemini.GenerateVision(ctx, image, mimeType, prompt)
		return genErr
	})
	if err != nil {
		return fmt.Errorf("vision analysis failed: %w", err)
	}

	var decoded structureResponse
	if err := DecodeModelJSON(response, &decoded); err != nil {
		return fmt.Errorf("failed to parse structure response: %w", err)
	}

	if len(decoded.Columns) == 0 {
		return fmt.Errorf("no columns detected in template image")
	}

	// Depth-first insert: a parent row must exist before any child
	// references its generated identifier.
	for i, column := range decoded.Columns {
		if err := s.insertColumn(templateID, column, i, nil); err != nil {
			return err
		}
	}

	aiType := models.AiType(decoded.DocumentType)
	if !aiType.Valid() {
		aiType = models.TypeSafety
	}

	if err := s.templateRepo.MarkCompleted(templateID, aiType); err != nil {
		return err
	}

	log.Printf("✅ Template %s structured: %d root columns, type %s\n", templateID, len(decoded.Columns), aiType)
	return nil
}

func (s *structurerService) insertColumn(templateID uuid.UUID, column structuredColumn, sortOrder int, parentID *uuid.UUID) error {
	if column.HeaderName == "" {
		return nil
	}

	item := &models.TemplateItem{
		TemplateID:   templateID,
		HeaderName:   column.HeaderName,
		DefaultValue: column.DefaultValue,
		SortOrder:    sortOrder,
		ParentID:     parentID,
	}

	if err := s.templateRepo.InsertItem(item); err != nil {
		return err
	}

	for i, child := range column.Children {
		if err := s.insertColumn(templateID, child, i, &item.ID); err != nil {
			return err
		}
	}

	return nil
}
