// Package policy holds the role × action table checked at the service boundary.
// Row-level security in the database stays the primary enforcement for writes made
// through the caller's credential; these checks reject obviously unauthorized calls
// before any query runs.
package policy

import (
	"fmt"
	"strings"

	"github.com/noah-isme/sis-api/internal/models"
	appErrors "github.com/noah-isme/sis-api/pkg/errors"
)

// Action names a guarded operation.
type Action string

const (
	MasteryDraftWrite        Action = "mastery.draft.write"
	MasteryDraftListAny      Action = "mastery.draft.list_any"
	MasteryProposalRead      Action = "mastery.proposal.read"
	MasteryProposalSubmit    Action = "mastery.proposal.submit"
	MasteryProposalSubmitAny Action = "mastery.proposal.submit_any"
	MasteryProposalReview    Action = "mastery.proposal.review"
	MasterySnapshotRead      Action = "mastery.snapshot.read"
	MasterySnapshotReadAny   Action = "mastery.snapshot.read_any"
	MasteryReferenceRead     Action = "mastery.reference.read"
	MasteryRunGenerate       Action = "mastery.run.generate"
	MasteryRunRead           Action = "mastery.run.read"
	LabelsRead               Action = "labels.read"
	LabelsManage             Action = "labels.manage"
	StudentsExport           Action = "students.export"
	AdmissionsExport         Action = "admissions.export"
)

var (
	reviewers = []models.Role{models.RolePrincipal, models.RoleAdmin}
	authors   = []models.Role{models.RolePrincipal, models.RoleAdmin, models.RoleTeacher, models.RoleMentor}
	staff     = []models.Role{models.RolePrincipal, models.RoleAdmin, models.RoleRegistrar, models.RoleTeacher, models.RoleMentor}
	office    = []models.Role{models.RolePrincipal, models.RoleAdmin, models.RoleRegistrar}
	everyone  = append(append([]models.Role{}, staff...), models.RoleStudent)
)

var rules = map[Action][]models.Role{
	MasteryDraftWrite:        authors,
	MasteryDraftListAny:      reviewers,
	MasteryProposalRead:      authors,
	MasteryProposalSubmit:    authors,
	MasteryProposalSubmitAny: reviewers,
	MasteryProposalReview:    reviewers,
	MasterySnapshotRead:      everyone,
	MasterySnapshotReadAny:   staff,
	MasteryReferenceRead:     everyone,
	MasteryRunGenerate:       reviewers,
	MasteryRunRead:           office,
	LabelsRead:               staff,
	LabelsManage:             reviewers,
	StudentsExport:           office,
	AdmissionsExport:         office,
}

var table = buildTable()

func buildTable() map[Action]map[models.Role]struct{} {
	t := make(map[Action]map[models.Role]struct{}, len(rules))
	for action, roles := range rules {
		set := make(map[models.Role]struct{}, len(roles))
		for _, role := range roles {
			set[role] = struct{}{}
		}
		t[action] = set
	}
	return t
}

// Allows reports whether the role may perform the action. Unknown actions are denied.
func Allows(role models.Role, action Action) bool {
	_, ok := table[action][role]
	return ok
}

// Authorize checks the caller against the table and returns a Forbidden error on denial.
func Authorize(identity *models.Identity, action Action) error {
	if identity == nil {
		return appErrors.ErrUnauthorized
	}
	if !Allows(identity.Role, action) {
		return appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("role %s may not perform %s", identity.Role, action))
	}
	return nil
}

// SameTenant reports whether a row's organization matches the caller's.
func SameTenant(identity *models.Identity, organizationID string) bool {
	if identity == nil || identity.OrganizationID == "" {
		return false
	}
	return strings.TrimSpace(organizationID) == identity.OrganizationID
}

// RolesFor lists the roles granted an action, for documentation and tests.
func RolesFor(action Action) []models.Role {
	roles := rules[action]
	out := make([]models.Role, len(roles))
	copy(out, roles)
	return out
}
