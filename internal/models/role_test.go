package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	cases := map[string]Role{
		"teacher":       RoleTeacher,
		"  Teacher ":    RoleTeacher,
		"ADMIN":         RoleAdmin,
		"Administrator": RoleAdmin,
		"school-admin":  RoleAdmin,
		"Head Teacher":  RolePrincipal,
		"registrar":     RoleRegistrar,
		"mentor":        RoleMentor,
		"learner":       RoleStudent,
	}
	for raw, want := range cases {
		got, err := ParseRole(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}

	_, err := ParseRole("superuser")
	assert.Error(t, err)
	_, err = ParseRole("")
	assert.Error(t, err)
}

func TestRoleIsStaff(t *testing.T) {
	assert.True(t, RoleMentor.IsStaff())
	assert.False(t, RoleStudent.IsStaff())
}
