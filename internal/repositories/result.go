package repositories

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"safecheck/field-assessment/internal/models"
)

type ResultRepository interface {
	BulkInsert(results []models.AssessmentResult) error
	FindRowsByAssessment(assessmentID uuid.UUID) ([]models.ResultRow, error)
	DeleteByAssessment(assessmentID uuid.UUID) error
}

type resultRepository struct {
	db *gorm.DB
}

func NewResultRepository(db *gorm.DB) ResultRepository {
	return &resultRepository{db: db}
}

// BulkInsert writes all validated answer rows in one statement. Rows are
// insert-only; the pipeline never updates a persisted answer.
func (r *resultRepository) BulkInsert(results []models.AssessmentResult) error {
	if len(results) == 0 {
		return nil
	}

	for i := range results {
		if results[i].ID == uuid.Nil {
			results[i].ID = uuid.New()
		}
	}

	if err := r.db.Create(&results).Error; err != nil {
		return fmt.Errorf("failed to insert assessment results: %w", err)
	}

	return nil
}

// FindRowsByAssessment joins answers with their schema headers for the
// report view. Same-item rows keep insertion order, which the report aligns
// by row index.
func (r *resultRepository) FindRowsByAssessment(assessmentID uuid.UUID) ([]models.ResultRow, error) {
	var rows []models.ResultRow
	err := r.db.
		Table("assessment_results").
		Select(`assessment_results.template_item_id,
			template_items.header_name,
			template_items.sort_order,
			assessment_results.result_value,
			assessment_results.legal_basis,
			assessment_results.solution`).
		Joins("JOIN template_items ON template_items.id = assessment_results.template_item_id").
		Where("assessment_results.assessment_id = ?", assessmentID).
		Order("template_items.sort_order ASC, assessment_results.created_at ASC").
		Scan(&rows).Error

	if err != nil {
		return nil, fmt.Errorf("failed to find assessment results: %w", err)
	}

	return rows, nil
}

// DeleteByAssessment clears previous rows before a user-initiated retry so
// the fresh run starts from a clean slate.
func (r *resultRepository) DeleteByAssessment(assessmentID uuid.UUID) error {
	if err := r.db.Where("assessment_id = ?", assessmentID).Delete(&models.AssessmentResult{}).Error; err != nil {
		return fmt.Errorf("failed to delete assessment results: %w", err)
	}
	return nil
}
