package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sis-api/internal/dto"
	"github.com/noah-isme/sis-api/internal/models"
	"github.com/noah-isme/sis-api/internal/policy"
	"github.com/noah-isme/sis-api/internal/repository"
	appErrors "github.com/noah-isme/sis-api/pkg/errors"
	"github.com/noah-isme/sis-api/pkg/export"
)

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

// ExportFile is a rendered export ready to send as an attachment.
type ExportFile struct {
	Filename    string
	ContentType string
	Content     []byte
	Rows        int
}

var studentExportColumns = []export.Column{
	{Key: "id", Header: "ID"},
	{Key: "student_number", Header: "Student Number"},
	{Key: "first_name", Header: "First Name"},
	{Key: "last_name", Header: "Last Name"},
	{Key: "grade_level", Header: "Grade Level"},
	{Key: "status", Header: "Status"},
	{Key: "school_id", Header: "School ID"},
	{Key: "enrolled_at", Header: "Enrolled At"},
	{Key: "guardian_email", Header: "Guardian Email"},
}

var admissionExportColumns = []export.Column{
	{Key: "id", Header: "ID"},
	{Key: "applicant_name", Header: "Applicant Name"},
	{Key: "guardian_name", Header: "Guardian Name"},
	{Key: "guardian_email", Header: "Guardian Email"},
	{Key: "guardian_phone", Header: "Guardian Phone"},
	{Key: "grade_applying", Header: "Grade Applying"},
	{Key: "status", Header: "Status"},
	{Key: "school_id", Header: "School ID"},
	{Key: "submitted_at", Header: "Submitted At"},
	{Key: "notes", Header: "Notes"},
}

// ExportService renders student and admission listings as CSV under the caller's credential.
type ExportService struct {
	gateway storeGateway
	csv     csvRenderer
	logger  *zap.Logger
	now     func() time.Time
}

// NewExportService constructs an ExportService. csv defaults to the RFC 4180 exporter.
func NewExportService(gateway storeGateway, csv csvRenderer, logger *zap.Logger) *ExportService {
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		gateway: gateway,
		csv:     csv,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// ExportStudents renders the organization's students.
func (s *ExportService) ExportStudents(ctx context.Context, query dto.StudentExportQuery, actor *models.Identity) (*ExportFile, error) {
	if err := policy.Authorize(actor, policy.StudentsExport); err != nil {
		return nil, err
	}
	filter := models.StudentFilter{
		OrganizationID: actor.OrganizationID,
		SchoolID:       strings.TrimSpace(query.SchoolID),
		GradeLevel:     strings.TrimSpace(query.GradeLevel),
		Status:         strings.TrimSpace(query.Status),
		SortBy:         strings.TrimSpace(query.SortBy),
		SortOrder:      strings.TrimSpace(query.SortOrder),
	}
	var students []models.Student
	err := s.gateway.WithCaller(ctx, actor, func(scope repository.Scope) error {
		var err error
		students, err = scope.Exports.ListStudents(ctx, filter)
		return err
	})
	if err != nil {
		return nil, serviceError(err, "failed to load students")
	}

	rows := make([]map[string]string, 0, len(students))
	for _, student := range students {
		rows = append(rows, map[string]string{
			"id":             student.ID,
			"student_number": student.StudentNumber,
			"first_name":     student.FirstName,
			"last_name":      student.LastName,
			"grade_level":    student.GradeLevel,
			"status":         student.Status,
			"school_id":      deref(student.SchoolID),
			"enrolled_at":    formatDate(student.EnrolledAt),
			"guardian_email": deref(student.GuardianEmail),
		})
	}
	return s.render("students", export.Dataset{Columns: studentExportColumns, Rows: rows})
}

// ExportAdmissions renders the organization's admission applications.
func (s *ExportService) ExportAdmissions(ctx context.Context, query dto.AdmissionExportQuery, actor *models.Identity) (*ExportFile, error) {
	if err := policy.Authorize(actor, policy.AdmissionsExport); err != nil {
		return nil, err
	}
	filter := models.AdmissionFilter{
		OrganizationID: actor.OrganizationID,
		SchoolID:       strings.TrimSpace(query.SchoolID),
		Status:         strings.TrimSpace(query.Status),
	}
	var admissions []models.Admission
	err := s.gateway.WithCaller(ctx, actor, func(scope repository.Scope) error {
		var err error
		admissions, err = scope.Exports.ListAdmissions(ctx, filter)
		return err
	})
	if err != nil {
		return nil, serviceError(err, "failed to load admissions")
	}

	rows := make([]map[string]string, 0, len(admissions))
	for _, admission := range admissions {
		rows = append(rows, map[string]string{
			"id":             admission.ID,
			"applicant_name": admission.ApplicantName,
			"guardian_name":  admission.GuardianName,
			"guardian_email": deref(admission.GuardianEmail),
			"guardian_phone": deref(admission.GuardianPhone),
			"grade_applying": admission.GradeApplying,
			"status":         admission.Status,
			"school_id":      deref(admission.SchoolID),
			"submitted_at":   formatDate(admission.SubmittedAt),
			"notes":          deref(admission.Notes),
		})
	}
	return s.render("admissions", export.Dataset{Columns: admissionExportColumns, Rows: rows})
}

func (s *ExportService) render(name string, dataset export.Dataset) (*ExportFile, error) {
	content, err := s.csv.Render(dataset)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to render export")
	}
	s.logger.Debug("export rendered", zap.String("export", name), zap.Int("rows", len(dataset.Rows)))
	return &ExportFile{
		Filename:    fmt.Sprintf("%s-%s.csv", name, s.now().Format("20060102")),
		ContentType: "text/csv",
		Content:     content,
		Rows:        len(dataset.Rows),
	}, nil
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func formatDate(value *time.Time) string {
	if value == nil {
		return ""
	}
	return value.UTC().Format("2006-01-02")
}
