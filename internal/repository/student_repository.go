package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/noah-isme/sis-api/internal/models"
	"github.com/noah-isme/sis-api/pkg/database"
)

// StudentRepository reads student records for exports.
type StudentRepository struct {
	db database.DBTX
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db database.DBTX) *StudentRepository {
	return &StudentRepository{db: db}
}

// ListForExport returns every student matching the filter.
func (r *StudentRepository) ListForExport(ctx context.Context, filter models.StudentFilter) ([]models.Student, error) {
	args := []interface{}{filter.OrganizationID}
	conditions := []string{"organization_id = $1"}

	if filter.SchoolID != "" {
		args = append(args, filter.SchoolID)
		conditions = append(conditions, fmt.Sprintf("school_id = $%d", len(args)))
	}
	if filter.GradeLevel != "" {
		args = append(args, filter.GradeLevel)
		conditions = append(conditions, fmt.Sprintf("grade_level = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}

	allowedSorts := map[string]string{
		"last_name":      "last_name, first_name",
		"student_number": "student_number",
		"grade_level":    "grade_level, last_name",
		"enrolled_at":    "enrolled_at",
	}
	column, ok := allowedSorts[filter.SortBy]
	if !ok {
		column = allowedSorts["last_name"]
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}
	if order == "DESC" {
		parts := strings.Split(column, ", ")
		for i := range parts {
			parts[i] += " DESC"
		}
		column = strings.Join(parts, ", ")
	}

	query := fmt.Sprintf(`SELECT id, organization_id, school_id, student_number, first_name, last_name, grade_level, status, enrolled_at, guardian_email
	FROM students WHERE %s ORDER BY %s`, strings.Join(conditions, " AND "), column)

	students := make([]models.Student, 0)
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	return students, nil
}
