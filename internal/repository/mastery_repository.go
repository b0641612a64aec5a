package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/noah-isme/sis-api/internal/models"
	"github.com/noah-isme/sis-api/pkg/database"
)

const masterySnapshotColumns = `id, learner_id, competency_id, teacher_id, mastery_level_id, rationale_text,
       highlight_evidence_ids, organization_id, school_id, COALESCE(status, '') AS status, archived_at, confirmed_by,
       reviewed_by, reviewed_at, reviewer_notes, override_justification, original_level_id,
       snapshot_date, submitted_at, created_at, updated_at`

// approvedPredicate is the student visibility rule on mastery_snapshots. Legacy rows
// without a status are judged by the confirmation columns alone.
const approvedPredicate = `archived_at IS NULL AND confirmed_by IS NOT NULL AND confirmed_by <> teacher_id
	AND COALESCE(status, '') IN ('approved', '')`

// MasteryRepository persists mastery snapshots and their evidence links. It runs on
// whichever handle it is given: the service pool or a caller-scoped transaction.
type MasteryRepository struct {
	db database.DBTX
}

// NewMasteryRepository constructs the repository.
func NewMasteryRepository(db database.DBTX) *MasteryRepository {
	return &MasteryRepository{db: db}
}

// GetByID fetches a snapshot inside the organization.
func (r *MasteryRepository) GetByID(ctx context.Context, organizationID, id string) (*models.MasterySnapshot, error) {
	query := `SELECT ` + masterySnapshotColumns + ` FROM mastery_snapshots WHERE id = $1 AND organization_id = $2`
	var snapshot models.MasterySnapshot
	if err := r.db.GetContext(ctx, &snapshot, query, id, organizationID); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// FindDraft returns the author's editable row for a learner and competency.
func (r *MasteryRepository) FindDraft(ctx context.Context, organizationID, learnerID, competencyID, teacherID string) (*models.MasterySnapshot, error) {
	query := `SELECT ` + masterySnapshotColumns + ` FROM mastery_snapshots
	WHERE organization_id = $1 AND learner_id = $2 AND competency_id = $3 AND teacher_id = $4
	  AND archived_at IS NOT NULL AND status IN ('draft', 'changes_requested')
	ORDER BY updated_at DESC LIMIT 1`
	var snapshot models.MasterySnapshot
	if err := r.db.GetContext(ctx, &snapshot, query, organizationID, learnerID, competencyID, teacherID); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// Insert stores a new snapshot row.
func (r *MasteryRepository) Insert(ctx context.Context, snapshot *models.MasterySnapshot) error {
	if snapshot.ID == "" {
		snapshot.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if snapshot.CreatedAt.IsZero() {
		snapshot.CreatedAt = now
	}
	if snapshot.SnapshotDate.IsZero() {
		snapshot.SnapshotDate = now
	}
	snapshot.UpdatedAt = now
	if snapshot.HighlightEvidenceIDs == nil {
		snapshot.HighlightEvidenceIDs = pq.StringArray{}
	}
	const query = `INSERT INTO mastery_snapshots
	(id, learner_id, competency_id, teacher_id, mastery_level_id, rationale_text, highlight_evidence_ids,
	 organization_id, school_id, status, archived_at, confirmed_by, snapshot_date, created_at, updated_at)
	VALUES (:id, :learner_id, :competency_id, :teacher_id, :mastery_level_id, :rationale_text, :highlight_evidence_ids,
	 :organization_id, :school_id, :status, :archived_at, :confirmed_by, :snapshot_date, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, snapshot); err != nil {
		return fmt.Errorf("insert mastery snapshot: %w", err)
	}
	return nil
}

// UpdateDraft rewrites the editable fields of a draft-like row. A row that left the
// draft state in the meantime yields sql.ErrNoRows.
func (r *MasteryRepository) UpdateDraft(ctx context.Context, snapshot *models.MasterySnapshot) error {
	snapshot.UpdatedAt = time.Now().UTC()
	if snapshot.HighlightEvidenceIDs == nil {
		snapshot.HighlightEvidenceIDs = pq.StringArray{}
	}
	const query = `UPDATE mastery_snapshots SET mastery_level_id = :mastery_level_id, rationale_text = :rationale_text,
	highlight_evidence_ids = :highlight_evidence_ids, school_id = :school_id, snapshot_date = :snapshot_date,
	updated_at = :updated_at
	WHERE id = :id AND organization_id = :organization_id AND archived_at IS NOT NULL AND status IN ('draft', 'changes_requested')`
	result, err := r.db.NamedExecContext(ctx, query, snapshot)
	if err != nil {
		return fmt.Errorf("update mastery draft: %w", err)
	}
	return expectRows(result, "update mastery draft")
}

// Transition persists a status change computed by the caller, guarded on the status the
// caller read. Zero affected rows means another writer got there first and is reported
// as sql.ErrNoRows.
func (r *MasteryRepository) Transition(ctx context.Context, snapshot *models.MasterySnapshot, expected models.MasteryStatus) error {
	snapshot.UpdatedAt = time.Now().UTC()
	const query = `UPDATE mastery_snapshots SET status = :status, archived_at = :archived_at, confirmed_by = :confirmed_by,
	reviewed_by = :reviewed_by, reviewed_at = :reviewed_at, reviewer_notes = :reviewer_notes,
	override_justification = :override_justification, original_level_id = :original_level_id,
	mastery_level_id = :mastery_level_id, submitted_at = :submitted_at, updated_at = :updated_at
	WHERE id = :id AND organization_id = :organization_id AND status = :expected_status`
	result, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"id":                     snapshot.ID,
		"organization_id":        snapshot.OrganizationID,
		"status":                 snapshot.Status,
		"archived_at":            snapshot.ArchivedAt,
		"confirmed_by":           snapshot.ConfirmedBy,
		"reviewed_by":            snapshot.ReviewedBy,
		"reviewed_at":            snapshot.ReviewedAt,
		"reviewer_notes":         snapshot.ReviewerNotes,
		"override_justification": snapshot.OverrideJustification,
		"original_level_id":      snapshot.OriginalLevelID,
		"mastery_level_id":       snapshot.MasteryLevelID,
		"submitted_at":           snapshot.SubmittedAt,
		"updated_at":             snapshot.UpdatedAt,
		"expected_status":        expected,
	})
	if err != nil {
		return fmt.Errorf("transition mastery snapshot: %w", err)
	}
	return expectRows(result, "transition mastery snapshot")
}

// ListDrafts returns a teacher's draft-like rows, most recently edited first.
func (r *MasteryRepository) ListDrafts(ctx context.Context, organizationID, teacherID string) ([]models.MasterySnapshot, error) {
	query := `SELECT ` + masterySnapshotColumns + ` FROM mastery_snapshots
	WHERE organization_id = $1 AND teacher_id = $2 AND archived_at IS NOT NULL AND status IN ('draft', 'changes_requested')
	ORDER BY updated_at DESC`
	snapshots := make([]models.MasterySnapshot, 0)
	if err := r.db.SelectContext(ctx, &snapshots, query, organizationID, teacherID); err != nil {
		return nil, fmt.Errorf("list mastery drafts: %w", err)
	}
	return snapshots, nil
}

// ListReviewQueue returns submitted proposals awaiting a reviewer, oldest first. Legacy
// rows carrying the self-submitted marker (confirmed_by = teacher_id) count as submitted.
func (r *MasteryRepository) ListReviewQueue(ctx context.Context, organizationID string) ([]models.MasterySnapshot, error) {
	query := `SELECT ` + masterySnapshotColumns + ` FROM mastery_snapshots
	WHERE organization_id = $1 AND status = 'submitted' AND archived_at IS NULL
	  AND (confirmed_by IS NULL OR confirmed_by = teacher_id)
	ORDER BY submitted_at ASC NULLS LAST, created_at ASC`
	snapshots := make([]models.MasterySnapshot, 0)
	if err := r.db.SelectContext(ctx, &snapshots, query, organizationID); err != nil {
		return nil, fmt.Errorf("list mastery review queue: %w", err)
	}
	return snapshots, nil
}

// CurrentForLearner returns the newest approved row per competency for one learner.
func (r *MasteryRepository) CurrentForLearner(ctx context.Context, organizationID, learnerID string) ([]models.MasterySnapshot, error) {
	query := `SELECT DISTINCT ON (learner_id, competency_id) ` + masterySnapshotColumns + `
	FROM mastery_snapshots
	WHERE organization_id = $1 AND learner_id = $2 AND ` + approvedPredicate + `
	ORDER BY learner_id, competency_id, snapshot_date DESC, updated_at DESC`
	snapshots := make([]models.MasterySnapshot, 0)
	if err := r.db.SelectContext(ctx, &snapshots, query, organizationID, learnerID); err != nil {
		return nil, fmt.Errorf("list current mastery: %w", err)
	}
	return snapshots, nil
}

// ApprovedScope selects the rows gathered for a snapshot run.
type ApprovedScope struct {
	OrganizationID string
	ScopeType      models.SnapshotScope
	ScopeID        string
	AsOf           time.Time
}

// CurrentAsOf returns the newest approved row per (learner, competency) dated on or before AsOf.
func (r *MasteryRepository) CurrentAsOf(ctx context.Context, scope ApprovedScope) ([]models.MasterySnapshot, error) {
	args := []interface{}{scope.OrganizationID, scope.AsOf}
	conditions := []string{"organization_id = $1", "snapshot_date <= $2", approvedPredicate}
	switch scope.ScopeType {
	case models.SnapshotScopeSchool:
		args = append(args, scope.ScopeID)
		conditions = append(conditions, fmt.Sprintf("school_id = $%d", len(args)))
	case models.SnapshotScopeLearner:
		args = append(args, scope.ScopeID)
		conditions = append(conditions, fmt.Sprintf("learner_id = $%d", len(args)))
	}
	query := fmt.Sprintf(`SELECT DISTINCT ON (learner_id, competency_id) %s
	FROM mastery_snapshots WHERE %s
	ORDER BY learner_id, competency_id, snapshot_date DESC, updated_at DESC`, masterySnapshotColumns, strings.Join(conditions, " AND "))
	snapshots := make([]models.MasterySnapshot, 0)
	if err := r.db.SelectContext(ctx, &snapshots, query, args...); err != nil {
		return nil, fmt.Errorf("collect approved mastery: %w", err)
	}
	return snapshots, nil
}

// ListByIDs fetches snapshots by identifier within the organization.
func (r *MasteryRepository) ListByIDs(ctx context.Context, organizationID string, ids []string) ([]models.MasterySnapshot, error) {
	snapshots := make([]models.MasterySnapshot, 0, len(ids))
	if len(ids) == 0 {
		return snapshots, nil
	}
	query := `SELECT ` + masterySnapshotColumns + ` FROM mastery_snapshots
	WHERE organization_id = $1 AND id = ANY($2)
	ORDER BY learner_id, competency_id`
	if err := r.db.SelectContext(ctx, &snapshots, query, organizationID, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("list mastery snapshots by id: %w", err)
	}
	return snapshots, nil
}

// ReplaceEvidence swaps the evidence links of a snapshot for the given set.
func (r *MasteryRepository) ReplaceEvidence(ctx context.Context, organizationID, snapshotID string, links []models.EvidenceLink) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM mastery_evidence_links WHERE snapshot_id = $1 AND organization_id = $2`, snapshotID, organizationID); err != nil {
		return fmt.Errorf("clear evidence links: %w", err)
	}
	const query = `INSERT INTO mastery_evidence_links (id, snapshot_id, evidence_id, evidence_type, organization_id, created_at)
	VALUES (:id, :snapshot_id, :evidence_id, :evidence_type, :organization_id, :created_at)`
	now := time.Now().UTC()
	for i := range links {
		link := &links[i]
		if link.ID == "" {
			link.ID = uuid.NewString()
		}
		link.SnapshotID = snapshotID
		link.OrganizationID = organizationID
		link.CreatedAt = now
		if _, err := r.db.NamedExecContext(ctx, query, link); err != nil {
			return fmt.Errorf("insert evidence link: %w", err)
		}
	}
	return nil
}

// ListEvidence returns the evidence links attached to a snapshot.
func (r *MasteryRepository) ListEvidence(ctx context.Context, organizationID, snapshotID string) ([]models.EvidenceLink, error) {
	const query = `SELECT id, snapshot_id, evidence_id, evidence_type, organization_id, created_at
	FROM mastery_evidence_links WHERE snapshot_id = $1 AND organization_id = $2 ORDER BY created_at, id`
	links := make([]models.EvidenceLink, 0)
	if err := r.db.SelectContext(ctx, &links, query, snapshotID, organizationID); err != nil {
		return nil, fmt.Errorf("list evidence links: %w", err)
	}
	return links, nil
}

func expectRows(result sql.Result, op string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows: %w", op, err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
