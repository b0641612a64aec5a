package models

import (
	"fmt"
	"strings"
)

// Role is the closed set of profile roles.
type Role string

const (
	RolePrincipal Role = "principal"
	RoleAdmin     Role = "admin"
	RoleRegistrar Role = "registrar"
	RoleTeacher   Role = "teacher"
	RoleMentor    Role = "mentor"
	RoleStudent   Role = "student"
)

var roleAliases = map[string]Role{
	"principal":     RolePrincipal,
	"head_teacher":  RolePrincipal,
	"headmaster":    RolePrincipal,
	"admin":         RoleAdmin,
	"administrator": RoleAdmin,
	"school_admin":  RoleAdmin,
	"registrar":     RoleRegistrar,
	"teacher":       RoleTeacher,
	"mentor":        RoleMentor,
	"student":       RoleStudent,
	"learner":       RoleStudent,
}

// ParseRole is the single normalization point for role strings coming from profiles,
// tokens or query parameters.
func ParseRole(raw string) (Role, error) {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.NewReplacer("-", "_", " ", "_").Replace(key)
	if role, ok := roleAliases[key]; ok {
		return role, nil
	}
	return "", fmt.Errorf("unknown role %q", raw)
}

// IsStaff reports whether the role belongs to school staff.
func (r Role) IsStaff() bool {
	switch r {
	case RolePrincipal, RoleAdmin, RoleRegistrar, RoleTeacher, RoleMentor:
		return true
	}
	return false
}
