package repositories

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"safecheck/field-assessment/internal/models"
)

// ErrStatusConflict is returned by TransitionStatus when the assessment is
// not in the expected source state, typically because another run already
// advanced it.
var ErrStatusConflict = fmt.Errorf("assessment status conflict")

type AssessmentRepository interface {
	Create(assessment *models.Assessment) error
	FindByID(id uuid.UUID) (*models.Assessment, error)
	TransitionStatus(id uuid.UUID, from, to models.AssessmentStatus) error
	SaveTranscript(id uuid.UUID, transcript string) error
	UpdateTitle(id uuid.UUID, title string) error
	MarkFailed(id uuid.UUID, errorMsg string) error
	ResetForRetry(id uuid.UUID) error
}

type assessmentRepository struct {
	db *gorm.DB
}

func NewAssessmentRepository(db *gorm.DB) AssessmentRepository {
	return &assessmentRepository{db: db}
}

func (r *assessmentRepository) Create(assessment *models.Assessment) error {
	if err := r.db.Create(assessment).Error; err != nil {
		return fmt.Errorf("failed to create assessment: %w", err)
	}
	return nil
}

func (r *assessmentRepository) FindByID(id uuid.UUID) (*models.Assessment, error) {
	var assessment models.Assessment
	if err := r.db.Where("id = ?", id).First(&assessment).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("assessment not found")
		}
		return nil, fmt.Errorf("failed to find assessment: %w", err)
	}
	return &assessment, nil
}

// TransitionStatus advances the lifecycle with a compare-and-swap so two
// concurrent runs on the same assessment cannot both move it forward.
func (r *assessmentRepository) TransitionStatus(id uuid.UUID, from, to models.AssessmentStatus) error {
	result := r.db.Model(&models.Assessment{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{
			"status":     to,
			"updated_at": time.Now(),
		})

	if result.Error != nil {
		return fmt.Errorf("failed to update status: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: expected %s", ErrStatusConflict, from)
	}

	return nil
}

func (r *assessmentRepository) SaveTranscript(id uuid.UUID, transcript string) error {
	result := r.db.Model(&models.Assessment{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"transcript": transcript,
			"updated_at": time.Now(),
		})

	if result.Error != nil {
		return fmt.Errorf("failed to save transcript: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return fmt.Errorf("assessment not found")
	}

	return nil
}

func (r *assessmentRepository) UpdateTitle(id uuid.UUID, title string) error {
	result := r.db.Model(&models.Assessment{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"title":      title,
			"updated_at": time.Now(),
		})

	if result.Error != nil {
		return fmt.Errorf("failed to update title: %w", result.Error)
	}

	return nil
}

// MarkFailed is the pipeline's guaranteed cleanup write. It is unconditional:
// a terminal failure must land even when the run crashed between transitions.
func (r *assessmentRepository) MarkFailed(id uuid.UUID, errorMsg string) error {
	result := r.db.Model(&models.Assessment{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        models.StatusFailed,
			"error_message": errorMsg,
			"updated_at":    time.Now(),
		})

	if result.Error != nil {
		return fmt.Errorf("failed to mark assessment failed: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return fmt.Errorf("assessment not found")
	}

	return nil
}

// ResetForRetry re-enters the state machine at in_progress for a fresh
// user-initiated run and clears the previous error.
func (r *assessmentRepository) ResetForRetry(id uuid.UUID) error {
	result := r.db.Model(&models.Assessment{}).
		Where("id = ? AND status = ?", id, models.StatusFailed).
		Updates(map[string]interface{}{
			"status":        models.StatusInProgress,
			"error_message": nil,
			"updated_at":    time.Now(),
		})

	if result.Error != nil {
		return fmt.Errorf("failed to reset assessment: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: assessment is not failed", ErrStatusConflict)
	}

	return nil
}
