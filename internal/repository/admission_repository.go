package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/noah-isme/sis-api/internal/models"
	"github.com/noah-isme/sis-api/pkg/database"
)

// AdmissionRepository reads admission applications for exports.
type AdmissionRepository struct {
	db database.DBTX
}

// NewAdmissionRepository constructs the repository.
func NewAdmissionRepository(db database.DBTX) *AdmissionRepository {
	return &AdmissionRepository{db: db}
}

// ListForExport returns admissions matching the filter, newest submissions first.
func (r *AdmissionRepository) ListForExport(ctx context.Context, filter models.AdmissionFilter) ([]models.Admission, error) {
	args := []interface{}{filter.OrganizationID}
	conditions := []string{"organization_id = $1"}
	if filter.SchoolID != "" {
		args = append(args, filter.SchoolID)
		conditions = append(conditions, fmt.Sprintf("school_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	query := fmt.Sprintf(`SELECT id, organization_id, school_id, applicant_name, guardian_name, guardian_email, guardian_phone,
	grade_applying, status, notes, submitted_at
	FROM admissions WHERE %s ORDER BY submitted_at DESC NULLS LAST, applicant_name`, strings.Join(conditions, " AND "))

	admissions := make([]models.Admission, 0)
	if err := r.db.SelectContext(ctx, &admissions, query, args...); err != nil {
		return nil, fmt.Errorf("list admissions: %w", err)
	}
	return admissions, nil
}
