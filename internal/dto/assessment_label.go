package dto

// AssessmentLabelSetRequest creates or renames a label set.
type AssessmentLabelSetRequest struct {
	Name        string  `json:"name" validate:"required,max=120"`
	Description *string `json:"description"`
}

// AssessmentLabelRequest creates or edits a label inside a set.
type AssessmentLabelRequest struct {
	Label        string  `json:"label" validate:"required,max=120"`
	Description  *string `json:"description"`
	DisplayOrder int     `json:"display_order" validate:"gte=0"`
}

// AssessmentLabelQuery toggles inclusion of archived rows.
type AssessmentLabelQuery struct {
	IncludeArchived bool `form:"include_archived"`
}
