package models

import (
	"time"

	"github.com/google/uuid"
)

// AiType classifies a template's document kind and conditions the extraction
// engine's prompting strategy.
type AiType string

const (
	TypeSafety     AiType = "safety"
	TypeMeeting    AiType = "meeting"
	TypeInspection AiType = "inspection"
)

func (t AiType) Valid() bool {
	switch t {
	case TypeSafety, TypeMeeting, TypeInspection:
		return true
	}
	return false
}

type TemplateStatus string

const (
	TemplateProcessing TemplateStatus = "processing"
	TemplateCompleted  TemplateStatus = "completed"
	TemplateFailed     TemplateStatus = "failed"
)

type Template struct {
	ID              uuid.UUID      `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	Name            string         `gorm:"type:text;not null" json:"name"`
	AiType          AiType         `gorm:"not null;default:'safety'" json:"ai_type"`
	Status          TemplateStatus `gorm:"not null;default:'processing'" json:"status"`
	ErrorMessage    *string        `gorm:"type:text" json:"error_message,omitempty"`
	SourceImagePath string         `gorm:"type:text" json:"source_image_path"`
	CreatedAt       time.Time      `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`

	// Relations
	Items []TemplateItem `gorm:"foreignKey:TemplateID" json:"items,omitempty"`
}

func (Template) TableName() string {
	return "assessment_templates"
}

// TemplateItem is one schema field. ParentID is self-referential; null means
// root. Siblings are ordered by SortOrder ascending. A node with no children
// is a leaf eligible to receive answer values.
type TemplateItem struct {
	ID           uuid.UUID  `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	TemplateID   uuid.UUID  `gorm:"type:uuid;not null;index" json:"template_id"`
	HeaderName   string     `gorm:"type:text;not null" json:"header_name"`
	DefaultValue *string    `gorm:"type:text" json:"default_value,omitempty"`
	SortOrder    int        `gorm:"not null;default:0" json:"sort_order"`
	ParentID     *uuid.UUID `gorm:"type:uuid" json:"parent_id,omitempty"`
	CreatedAt    time.Time  `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (TemplateItem) TableName() string {
	return "template_items"
}
