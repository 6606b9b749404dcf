package auth

import (
	"fmt"
	"strings"

	"staffdesk/internal/apperr"
)

type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleHR       Role = "HR"
	RolePayroll  Role = "PAYROLL"
	RoleManager  Role = "MANAGER"
	RoleDirector Role = "DIRECTOR"
	RoleEmployee Role = "EMPLOYEE"
)

var AllRoles = RoleSet{RoleAdmin, RoleHR, RolePayroll, RoleManager, RoleDirector, RoleEmployee}

func (r Role) Valid() bool {
	return AllRoles.Contains(r)
}

// ParseRole accepts any casing and rejects names outside the closed role set.
func ParseRole(value string) (Role, error) {
	role := Role(strings.ToUpper(strings.TrimSpace(value)))
	if !role.Valid() {
		return "", apperr.Invalid("unknown role", apperr.FieldIssue{Field: "role", Reason: fmt.Sprintf("must be one of %s", AllRoles)})
	}
	return role, nil
}

type RoleSet []Role

func (s RoleSet) Contains(role Role) bool {
	for _, candidate := range s {
		if candidate == role {
			return true
		}
	}
	return false
}

func (s RoleSet) String() string {
	names := make([]string, len(s))
	for i, role := range s {
		names[i] = string(role)
	}
	return strings.Join(names, ", ")
}
