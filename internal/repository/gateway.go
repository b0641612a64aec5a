package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sis-api/internal/models"
	"github.com/noah-isme/sis-api/pkg/database"
)

// MasteryStore is the snapshot persistence used by the mastery services.
type MasteryStore interface {
	GetByID(ctx context.Context, organizationID, id string) (*models.MasterySnapshot, error)
	FindDraft(ctx context.Context, organizationID, learnerID, competencyID, teacherID string) (*models.MasterySnapshot, error)
	Insert(ctx context.Context, snapshot *models.MasterySnapshot) error
	UpdateDraft(ctx context.Context, snapshot *models.MasterySnapshot) error
	Transition(ctx context.Context, snapshot *models.MasterySnapshot, expected models.MasteryStatus) error
	ListDrafts(ctx context.Context, organizationID, teacherID string) ([]models.MasterySnapshot, error)
	ListReviewQueue(ctx context.Context, organizationID string) ([]models.MasterySnapshot, error)
	CurrentForLearner(ctx context.Context, organizationID, learnerID string) ([]models.MasterySnapshot, error)
	CurrentAsOf(ctx context.Context, scope ApprovedScope) ([]models.MasterySnapshot, error)
	ListByIDs(ctx context.Context, organizationID string, ids []string) ([]models.MasterySnapshot, error)
	ReplaceEvidence(ctx context.Context, organizationID, snapshotID string, links []models.EvidenceLink) error
	ListEvidence(ctx context.Context, organizationID, snapshotID string) ([]models.EvidenceLink, error)
}

// LevelStore reads mastery models and levels.
type LevelStore interface {
	ListModels(ctx context.Context, organizationID string) ([]models.MasteryModel, error)
	ListLevels(ctx context.Context, organizationID, modelID string) ([]models.MasteryLevel, error)
	GetLevel(ctx context.Context, organizationID, id string) (*models.MasteryLevel, error)
	ListLevelsByOrganization(ctx context.Context, organizationID string) ([]models.MasteryLevel, error)
}

// RunStore persists snapshot runs.
type RunStore interface {
	Create(ctx context.Context, run *models.SnapshotRun) error
	GetByID(ctx context.Context, organizationID, id string) (*models.SnapshotRun, error)
	List(ctx context.Context, filter models.SnapshotRunFilter) ([]models.SnapshotRun, error)
	Update(ctx context.Context, id string, params UpdateSnapshotRunParams) error
	ReplaceItems(ctx context.Context, runID string, snapshotIDs []string) error
	ListItemIDs(ctx context.Context, runID string) ([]string, error)
	ListUnfinished(ctx context.Context, limit int) ([]models.SnapshotRun, error)
}

// LabelStore persists assessment label sets and labels.
type LabelStore interface {
	ListSets(ctx context.Context, organizationID string, includeArchived bool) ([]models.AssessmentLabelSet, error)
	GetSet(ctx context.Context, organizationID, id string) (*models.AssessmentLabelSet, error)
	CreateSet(ctx context.Context, set *models.AssessmentLabelSet) error
	UpdateSet(ctx context.Context, set *models.AssessmentLabelSet) error
	ArchiveSet(ctx context.Context, organizationID, id string, at time.Time) error
	ListLabels(ctx context.Context, organizationID, setID string, includeArchived bool) ([]models.AssessmentLabel, error)
	GetLabel(ctx context.Context, organizationID, id string) (*models.AssessmentLabel, error)
	CreateLabel(ctx context.Context, label *models.AssessmentLabel) error
	UpdateLabel(ctx context.Context, label *models.AssessmentLabel) error
	ArchiveLabel(ctx context.Context, organizationID, id string, at time.Time) error
}

// ExportStore reads the sources of CSV exports.
type ExportStore interface {
	ListStudents(ctx context.Context, filter models.StudentFilter) ([]models.Student, error)
	ListAdmissions(ctx context.Context, filter models.AdmissionFilter) ([]models.Admission, error)
}

// Scope bundles the stores bound to one database handle.
type Scope struct {
	Mastery MasteryStore
	Levels  LevelStore
	Runs    RunStore
	Labels  LabelStore
	Exports ExportStore
}

// NewScope binds every store to db.
func NewScope(db database.DBTX) Scope {
	return Scope{
		Mastery: NewMasteryRepository(db),
		Levels:  NewMasteryLevelRepository(db),
		Runs:    NewSnapshotRunRepository(db),
		Labels:  NewAssessmentLabelRepository(db),
		Exports: exportStore{students: NewStudentRepository(db), admissions: NewAdmissionRepository(db)},
	}
}

type exportStore struct {
	students   *StudentRepository
	admissions *AdmissionRepository
}

func (s exportStore) ListStudents(ctx context.Context, filter models.StudentFilter) ([]models.Student, error) {
	return s.students.ListForExport(ctx, filter)
}

func (s exportStore) ListAdmissions(ctx context.Context, filter models.AdmissionFilter) ([]models.Admission, error) {
	return s.admissions.ListForExport(ctx, filter)
}

// Gateway hands out stores bound either to the privileged service pool or to a
// transaction running under the caller's credential, where row-level security applies.
type Gateway struct {
	pools *database.Pools
}

// NewGateway constructs a gateway over both pools.
func NewGateway(pools *database.Pools) *Gateway {
	return &Gateway{pools: pools}
}

// Service returns stores on the service pool. Only background work and identity
// resolution use it.
func (g *Gateway) Service() Scope {
	return NewScope(g.pools.Service)
}

// WithCaller runs fn with stores bound to a transaction carrying the caller's claims.
// The transaction commits when fn returns nil.
func (g *Gateway) WithCaller(ctx context.Context, identity *models.Identity, fn func(Scope) error) error {
	return g.pools.AsUser(ctx, CallerClaims(identity), func(tx *sqlx.Tx) error {
		return fn(NewScope(tx))
	})
}

// CallerClaims converts an identity into the claims exposed to row-level security.
func CallerClaims(identity *models.Identity) database.Claims {
	if identity == nil {
		return database.Claims{}
	}
	claims := database.Claims{
		Subject:        identity.UserID,
		AppRole:        string(identity.Role),
		OrganizationID: identity.OrganizationID,
	}
	if identity.SchoolID != nil {
		claims.SchoolID = *identity.SchoolID
	}
	return claims
}
