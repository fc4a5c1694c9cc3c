package models

type TranscribeRequest struct {
	AudioURL     string `json:"audioUrl" validate:"required"`
	AssessmentID string `json:"assessmentId" validate:"required,uuid"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type AssessmentStatusResponse struct {
	ID           string  `json:"id"`
	Status       string  `json:"status"`
	Title        *string `json:"title,omitempty"`
	Transcript   *string `json:"transcript,omitempty"`
	ErrorMessage *string `json:"error_message,omitempty"`
}

// ResultRow is one answer joined with its schema header for the report view.
type ResultRow struct {
	TemplateItemID string  `json:"template_item_id"`
	HeaderName     string  `json:"header_name"`
	SortOrder      int     `json:"sort_order"`
	ResultValue    *string `json:"result_value,omitempty"`
	LegalBasis     *string `json:"legal_basis,omitempty"`
	Solution       *string `json:"solution,omitempty"`
}

type ResultsResponse struct {
	ID      string      `json:"id"`
	Status  string      `json:"status"`
	Title   *string     `json:"title,omitempty"`
	Results []ResultRow `json:"results"`
}

type StructureResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}
