package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/noah-isme/sis-api/internal/models"
	"github.com/noah-isme/sis-api/internal/repository"
)

// memGateway hands the same in-memory stores to service and caller scopes.
type memGateway struct {
	scope   repository.Scope
	mastery *memMastery
	levels  *memLevels
	runs    *memRuns
	labels  *memLabels
	exports *memExports

	mu      sync.Mutex
	callers []string
}

func newMemGateway() *memGateway {
	g := &memGateway{
		mastery: &memMastery{rows: map[string]models.MasterySnapshot{}, evidence: map[string][]models.EvidenceLink{}},
		levels:  &memLevels{levels: map[string]models.MasteryLevel{}},
		runs:    &memRuns{rows: map[string]models.SnapshotRun{}, items: map[string][]string{}},
		labels:  &memLabels{sets: map[string]models.AssessmentLabelSet{}, labels: map[string]models.AssessmentLabel{}},
		exports: &memExports{},
	}
	g.scope = repository.Scope{Mastery: g.mastery, Levels: g.levels, Runs: g.runs, Labels: g.labels, Exports: g.exports}
	return g
}

func (g *memGateway) Service() repository.Scope { return g.scope }

func (g *memGateway) WithCaller(ctx context.Context, identity *models.Identity, fn func(repository.Scope) error) error {
	g.mu.Lock()
	g.callers = append(g.callers, identity.UserID)
	g.mu.Unlock()
	return fn(g.scope)
}

type memMastery struct {
	mu          sync.Mutex
	rows        map[string]models.MasterySnapshot
	evidence    map[string][]models.EvidenceLink
	seq         int
	writes      int
	transitions int
	// beforeTransition lets a test change the stored row between read and write.
	beforeTransition func(id string)
}

func (m *memMastery) put(row models.MasterySnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[row.ID] = row
}

func (m *memMastery) get(id string) models.MasterySnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows[id]
}

func (m *memMastery) GetByID(ctx context.Context, organizationID, id string) (*models.MasterySnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok || row.OrganizationID != organizationID {
		return nil, sql.ErrNoRows
	}
	return &row, nil
}

func (m *memMastery) FindDraft(ctx context.Context, organizationID, learnerID, competencyID, teacherID string) (*models.MasterySnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.OrganizationID == organizationID && row.LearnerID == learnerID && row.CompetencyID == competencyID &&
			row.TeacherID == teacherID && row.Status.IsDraftLike() {
			found := row
			return &found, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memMastery) Insert(ctx context.Context, snapshot *models.MasterySnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	snapshot.ID = fmt.Sprintf("snap-%d", m.seq)
	snapshot.CreatedAt = time.Now().UTC()
	snapshot.UpdatedAt = snapshot.CreatedAt
	m.rows[snapshot.ID] = *snapshot
	m.writes++
	return nil
}

func (m *memMastery) UpdateDraft(ctx context.Context, snapshot *models.MasterySnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[snapshot.ID]
	if !ok || !row.Status.IsDraftLike() {
		return sql.ErrNoRows
	}
	snapshot.UpdatedAt = time.Now().UTC()
	m.rows[snapshot.ID] = *snapshot
	m.writes++
	return nil
}

func (m *memMastery) Transition(ctx context.Context, snapshot *models.MasterySnapshot, expected models.MasteryStatus) error {
	if m.beforeTransition != nil {
		m.beforeTransition(snapshot.ID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[snapshot.ID]
	if !ok || row.OrganizationID != snapshot.OrganizationID || row.Status != expected {
		return sql.ErrNoRows
	}
	snapshot.UpdatedAt = time.Now().UTC()
	m.rows[snapshot.ID] = *snapshot
	m.writes++
	m.transitions++
	return nil
}

func (m *memMastery) filter(keep func(models.MasterySnapshot) bool) []models.MasterySnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.MasterySnapshot, 0)
	for _, row := range m.rows {
		if keep(row) {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *memMastery) ListDrafts(ctx context.Context, organizationID, teacherID string) ([]models.MasterySnapshot, error) {
	return m.filter(func(row models.MasterySnapshot) bool {
		return row.OrganizationID == organizationID && row.TeacherID == teacherID && row.Status.IsDraftLike()
	}), nil
}

func (m *memMastery) ListReviewQueue(ctx context.Context, organizationID string) ([]models.MasterySnapshot, error) {
	return m.filter(func(row models.MasterySnapshot) bool {
		return row.OrganizationID == organizationID && row.InReviewQueue()
	}), nil
}

func (m *memMastery) CurrentForLearner(ctx context.Context, organizationID, learnerID string) ([]models.MasterySnapshot, error) {
	return models.CurrentApproved(m.filter(func(row models.MasterySnapshot) bool {
		return row.OrganizationID == organizationID && row.LearnerID == learnerID
	})), nil
}

func (m *memMastery) CurrentAsOf(ctx context.Context, scope repository.ApprovedScope) ([]models.MasterySnapshot, error) {
	return models.CurrentApproved(m.filter(func(row models.MasterySnapshot) bool {
		if row.OrganizationID != scope.OrganizationID || row.SnapshotDate.After(scope.AsOf) {
			return false
		}
		switch scope.ScopeType {
		case models.SnapshotScopeLearner:
			return row.LearnerID == scope.ScopeID
		case models.SnapshotScopeSchool:
			return row.SchoolID != nil && *row.SchoolID == scope.ScopeID
		}
		return true
	})), nil
}

func (m *memMastery) ListByIDs(ctx context.Context, organizationID string, ids []string) ([]models.MasterySnapshot, error) {
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	return m.filter(func(row models.MasterySnapshot) bool {
		return row.OrganizationID == organizationID && wanted[row.ID]
	}), nil
}

func (m *memMastery) ReplaceEvidence(ctx context.Context, organizationID, snapshotID string, links []models.EvidenceLink) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := make([]models.EvidenceLink, len(links))
	for i, link := range links {
		link.SnapshotID = snapshotID
		stored[i] = link
	}
	m.evidence[snapshotID] = stored
	return nil
}

func (m *memMastery) ListEvidence(ctx context.Context, organizationID, snapshotID string) ([]models.EvidenceLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.EvidenceLink(nil), m.evidence[snapshotID]...), nil
}

type memLevels struct {
	mu     sync.Mutex
	levels map[string]models.MasteryLevel
	reads  int
}

func (m *memLevels) add(level models.MasteryLevel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.levels[level.ID] = level
}

func (m *memLevels) ListModels(ctx context.Context, organizationID string) ([]models.MasteryModel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	seen := map[string]bool{}
	var out []models.MasteryModel
	for _, level := range m.levels {
		if level.OrganizationID == organizationID && !seen[level.ModelID] {
			seen[level.ModelID] = true
			out = append(out, models.MasteryModel{ID: level.ModelID, OrganizationID: organizationID, Name: level.ModelID})
		}
	}
	return out, nil
}

func (m *memLevels) ListLevels(ctx context.Context, organizationID, modelID string) ([]models.MasteryLevel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	var out []models.MasteryLevel
	for _, level := range m.levels {
		if level.OrganizationID == organizationID && level.ModelID == modelID {
			out = append(out, level)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DisplayOrder < out[j].DisplayOrder })
	return out, nil
}

func (m *memLevels) GetLevel(ctx context.Context, organizationID, id string) (*models.MasteryLevel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	level, ok := m.levels[id]
	if !ok || level.OrganizationID != organizationID {
		return nil, sql.ErrNoRows
	}
	return &level, nil
}

func (m *memLevels) ListLevelsByOrganization(ctx context.Context, organizationID string) ([]models.MasteryLevel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.MasteryLevel
	for _, level := range m.levels {
		if level.OrganizationID == organizationID {
			out = append(out, level)
		}
	}
	return out, nil
}

type memRuns struct {
	mu    sync.Mutex
	rows  map[string]models.SnapshotRun
	items map[string][]string
	seq   int
}

func (m *memRuns) Create(ctx context.Context, run *models.SnapshotRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	run.ID = fmt.Sprintf("run-%d", m.seq)
	run.CreatedAt = time.Now().UTC()
	m.rows[run.ID] = *run
	return nil
}

func (m *memRuns) GetByID(ctx context.Context, organizationID, id string) (*models.SnapshotRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.rows[id]
	if !ok || run.OrganizationID != organizationID {
		return nil, sql.ErrNoRows
	}
	return &run, nil
}

func (m *memRuns) List(ctx context.Context, filter models.SnapshotRunFilter) ([]models.SnapshotRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.SnapshotRun
	for _, run := range m.rows {
		if run.OrganizationID == filter.OrganizationID && (filter.Status == "" || run.Status == filter.Status) {
			out = append(out, run)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *memRuns) Update(ctx context.Context, id string, params repository.UpdateSnapshotRunParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.rows[id]
	if !ok {
		return sql.ErrNoRows
	}
	if params.Status != nil {
		run.Status = *params.Status
	}
	if params.SnapshotCount != nil {
		run.SnapshotCount = *params.SnapshotCount
	}
	if params.ReportPath != nil {
		run.ReportPath = params.ReportPath
	}
	if params.ErrorMessage != nil {
		run.ErrorMessage = params.ErrorMessage
	}
	if params.CompletedAt != nil {
		run.CompletedAt = params.CompletedAt
	}
	m.rows[id] = run
	return nil
}

func (m *memRuns) ReplaceItems(ctx context.Context, runID string, snapshotIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[runID] = append([]string(nil), snapshotIDs...)
	return nil
}

func (m *memRuns) ListItemIDs(ctx context.Context, runID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.items[runID]...), nil
}

func (m *memRuns) ListUnfinished(ctx context.Context, limit int) ([]models.SnapshotRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.SnapshotRun
	for _, run := range m.rows {
		unfinished := run.Status == models.SnapshotRunQueued || run.Status == models.SnapshotRunRunning
		if unfinished && len(out) < limit {
			out = append(out, run)
		}
	}
	return out, nil
}

type memLabels struct {
	mu     sync.Mutex
	sets   map[string]models.AssessmentLabelSet
	labels map[string]models.AssessmentLabel
	seq    int
}

func (m *memLabels) ListSets(ctx context.Context, organizationID string, includeArchived bool) ([]models.AssessmentLabelSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.AssessmentLabelSet
	for _, set := range m.sets {
		if set.OrganizationID == organizationID && (includeArchived || set.ArchivedAt == nil) {
			out = append(out, set)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memLabels) GetSet(ctx context.Context, organizationID, id string) (*models.AssessmentLabelSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.sets[id]
	if !ok || set.OrganizationID != organizationID {
		return nil, sql.ErrNoRows
	}
	return &set, nil
}

func (m *memLabels) CreateSet(ctx context.Context, set *models.AssessmentLabelSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	set.ID = fmt.Sprintf("set-%d", m.seq)
	m.sets[set.ID] = *set
	return nil
}

func (m *memLabels) UpdateSet(ctx context.Context, set *models.AssessmentLabelSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets[set.ID] = *set
	return nil
}

func (m *memLabels) ArchiveSet(ctx context.Context, organizationID, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	set := m.sets[id]
	set.ArchivedAt = &at
	m.sets[id] = set
	for labelID, label := range m.labels {
		if label.SetID == id && label.ArchivedAt == nil {
			label.ArchivedAt = &at
			m.labels[labelID] = label
		}
	}
	return nil
}

func (m *memLabels) ListLabels(ctx context.Context, organizationID, setID string, includeArchived bool) ([]models.AssessmentLabel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.AssessmentLabel
	for _, label := range m.labels {
		if label.OrganizationID == organizationID && label.SetID == setID && (includeArchived || label.ArchivedAt == nil) {
			out = append(out, label)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DisplayOrder < out[j].DisplayOrder })
	return out, nil
}

func (m *memLabels) GetLabel(ctx context.Context, organizationID, id string) (*models.AssessmentLabel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	label, ok := m.labels[id]
	if !ok || label.OrganizationID != organizationID {
		return nil, sql.ErrNoRows
	}
	return &label, nil
}

func (m *memLabels) CreateLabel(ctx context.Context, label *models.AssessmentLabel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	label.ID = fmt.Sprintf("label-%d", m.seq)
	m.labels[label.ID] = *label
	return nil
}

func (m *memLabels) UpdateLabel(ctx context.Context, label *models.AssessmentLabel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.labels[label.ID] = *label
	return nil
}

func (m *memLabels) ArchiveLabel(ctx context.Context, organizationID, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	label := m.labels[id]
	label.ArchivedAt = &at
	m.labels[id] = label
	return nil
}

type memExports struct {
	students      []models.Student
	admissions    []models.Admission
	studentFilter models.StudentFilter
}

func (m *memExports) ListStudents(ctx context.Context, filter models.StudentFilter) ([]models.Student, error) {
	m.studentFilter = filter
	return m.students, nil
}

func (m *memExports) ListAdmissions(ctx context.Context, filter models.AdmissionFilter) ([]models.Admission, error) {
	return m.admissions, nil
}

type memAudit struct {
	mu      sync.Mutex
	entries []*models.AuditLog
}

func (m *memAudit) Create(ctx context.Context, log *models.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, log)
	return nil
}

func (m *memAudit) actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.entries))
	for i, entry := range m.entries {
		out[i] = entry.Action
	}
	return out
}

func identity(id string, role models.Role) *models.Identity {
	school := "school-1"
	return &models.Identity{UserID: id, OrganizationID: "org-1", SchoolID: &school, Role: role}
}
