package dto

// StudentExportQuery narrows the student CSV export.
type StudentExportQuery struct {
	SchoolID   string `form:"school_id"`
	GradeLevel string `form:"grade_level"`
	Status     string `form:"status"`
	SortBy     string `form:"sort_by"`
	SortOrder  string `form:"sort_order"`
}

// AdmissionExportQuery narrows the admissions CSV export.
type AdmissionExportQuery struct {
	SchoolID string `form:"school_id"`
	Status   string `form:"status"`
}
