package repositories

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"safecheck/field-assessment/internal/models"
)

type TemplateRepository interface {
	FindByID(id uuid.UUID) (*models.Template, error)
	FindItems(templateID uuid.UUID) ([]models.TemplateItem, error)
	InsertItem(item *models.TemplateItem) error
	MarkCompleted(id uuid.UUID, aiType models.AiType) error
	MarkFailed(id uuid.UUID, errorMsg string) error
	FindProcessing(limit int) ([]models.Template, error)
}

type templateRepository struct {
	db *gorm.DB
}

func NewTemplateRepository(db *gorm.DB) TemplateRepository {
	return &templateRepository{db: db}
}

func (r *templateRepository) FindByID(id uuid.UUID) (*models.Template, error) {
	var template models.Template
	if err := r.db.Where("id = ?", id).First(&template).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("template not found")
		}
		return nil, fmt.Errorf("failed to find template: %w", err)
	}
	return &template, nil
}

func (r *templateRepository) FindItems(templateID uuid.UUID) ([]models.TemplateItem, error) {
	var items []models.TemplateItem
	err := r.db.
		Where("template_id = ?", templateID).
		Order("sort_order ASC").
		Find(&items).Error

	if err != nil {
		return nil, fmt.Errorf("failed to find template items: %w", err)
	}

	return items, nil
}

// InsertItem persists one schema node. The structuring service inserts
// parents before children so the generated identifier can be handed down as
// the children's parent_id.
func (r *templateRepository) InsertItem(item *models.TemplateItem) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	if err := r.db.Create(item).Error; err != nil {
		return fmt.Errorf("failed to insert template item: %w", err)
	}
	return nil
}

func (r *templateRepository) MarkCompleted(id uuid.UUID, aiType models.AiType) error {
	result := r.db.Model(&models.Template{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        models.TemplateCompleted,
			"ai_type":       aiType,
			"error_message": nil,
			"updated_at":    time.Now(),
		})

	if result.Error != nil {
		return fmt.Errorf("failed to mark template completed: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return fmt.Errorf("template not found")
	}

	return nil
}

func (r *templateRepository) MarkFailed(id uuid.UUID, errorMsg string) error {
	result := r.db.Model(&models.Template{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        models.TemplateFailed,
			"error_message": errorMsg,
			"updated_at":    time.Now(),
		})

	if result.Error != nil {
		return fmt.Errorf("failed to mark template failed: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return fmt.Errorf("template not found")
	}

	return nil
}

func (r *templateRepository) FindProcessing(limit int) ([]models.Template, error) {
	var templates []models.Template
	err := r.db.
		Where("status = ?", models.TemplateProcessing).
		Order("created_at ASC").
		Limit(limit).
		Find(&templates).Error

	if err != nil {
		return nil, fmt.Errorf("failed to find processing templates: %w", err)
	}

	return templates, nil
}
