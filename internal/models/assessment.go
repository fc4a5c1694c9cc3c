package models

import (
	"time"

	"github.com/google/uuid"
)

type AssessmentStatus string

const (
	StatusInProgress AssessmentStatus = "in_progress"
	StatusAnalyzing  AssessmentStatus = "analyzing"
	StatusCompleted  AssessmentStatus = "completed"
	StatusFailed     AssessmentStatus = "failed"
)

// ResponseStyle controls the tone and shape of the answers the extraction
// engine asks the model for.
type ResponseStyle string

const (
	StyleExpert  ResponseStyle = "expert"
	StyleGeneral ResponseStyle = "general"
	StyleSummary ResponseStyle = "summary"
)

func (s ResponseStyle) Valid() bool {
	switch s {
	case StyleExpert, StyleGeneral, StyleSummary:
		return true
	}
	return false
}

type Assessment struct {
	ID            uuid.UUID        `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	CompanyID     uuid.UUID        `gorm:"type:uuid;not null" json:"company_id"`
	TemplateID    uuid.UUID        `gorm:"type:uuid;not null" json:"template_id"`
	Status        AssessmentStatus `gorm:"not null;default:'in_progress'" json:"status"`
	Transcript    *string          `gorm:"type:text" json:"transcript,omitempty"`
	ErrorMessage  *string          `gorm:"type:text" json:"error_message,omitempty"`
	Title         *string          `gorm:"type:text" json:"title,omitempty"`
	ResponseStyle ResponseStyle    `gorm:"not null;default:'expert'" json:"response_style"`
	CreatedAt     time.Time        `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt     time.Time        `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`

	// Relations
	Template Template `gorm:"foreignKey:TemplateID" json:"-"`
}

func (Assessment) TableName() string {
	return "assessments"
}

// AssessmentResult is one answer value bound to one template leaf. Rows are
// insert-only; several rows may share a template_item_id when the transcript
// describes multiple independent occurrences of the same category.
type AssessmentResult struct {
	ID             uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	AssessmentID   uuid.UUID `gorm:"type:uuid;not null;index" json:"assessment_id"`
	TemplateItemID uuid.UUID `gorm:"type:uuid;not null" json:"template_item_id"`
	ResultValue    *string   `gorm:"type:text" json:"result_value,omitempty"`
	LegalBasis     *string   `gorm:"type:text" json:"legal_basis,omitempty"`
	Solution       *string   `gorm:"type:text" json:"solution,omitempty"`
	CreatedAt      time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (AssessmentResult) TableName() string {
	return "assessment_results"
}
