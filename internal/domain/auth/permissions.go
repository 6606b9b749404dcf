package auth

import (
	"fmt"

	"staffdesk/internal/apperr"
)

type Permission string

const (
	PermEmployeesCreate           Permission = "employees.create"
	PermEmployeesList             Permission = "employees.list"
	PermEmployeesReadAny          Permission = "employees.read_any"
	PermEmployeesUpdateAny        Permission = "employees.update_any"
	PermEmployeesUpdateRestricted Permission = "employees.update_restricted"
	PermEmployeesDelete           Permission = "employees.delete"
	PermVacationReadAny           Permission = "vacation.read_any"
	PermVacationTransition        Permission = "vacation.transition"
	PermVacationDeleteAny         Permission = "vacation.delete_any"
	PermFundReadAny               Permission = "fund.read_any"
	PermFundTransition            Permission = "fund.transition"
	PermFundDeleteAny             Permission = "fund.delete_any"
	PermGeneralReadAny            Permission = "general.read_any"
	PermGeneralTransition         Permission = "general.transition"
	PermGeneralDeleteAny          Permission = "general.delete_any"
	PermGeneralAssign             Permission = "general.assign"
	PermAuditRead                 Permission = "audit.read"
	PermUsersAssignAdmin          Permission = "users.assign_admin"
)

// Permissions is the single source of truth for role gating. Route guards
// and services both consult it.
var Permissions = map[Permission]RoleSet{
	PermEmployeesCreate:           {RoleAdmin, RoleHR},
	PermEmployeesList:             {RoleAdmin, RoleHR, RoleManager},
	PermEmployeesReadAny:          {RoleAdmin, RoleHR, RoleManager, RolePayroll},
	PermEmployeesUpdateAny:        {RoleAdmin, RoleHR},
	PermEmployeesUpdateRestricted: {RoleAdmin, RoleHR},
	PermEmployeesDelete:           {RoleAdmin},
	PermVacationReadAny:           {RoleAdmin, RoleHR, RoleManager},
	PermVacationTransition:        {RoleAdmin, RoleHR, RoleManager},
	PermVacationDeleteAny:         {RoleAdmin, RoleHR},
	PermFundReadAny:               {RoleAdmin, RoleHR, RoleManager, RolePayroll},
	PermFundTransition:            {RoleAdmin, RoleHR, RoleManager},
	PermFundDeleteAny:             {RoleAdmin, RoleHR},
	PermGeneralReadAny:            {RoleAdmin, RoleHR, RoleManager, RoleDirector},
	PermGeneralTransition:         {RoleAdmin, RoleHR, RoleManager, RoleDirector},
	PermGeneralDeleteAny:          {RoleAdmin, RoleHR},
	PermGeneralAssign:             {RoleAdmin, RoleHR, RoleManager, RoleDirector},
	PermAuditRead:                 {RoleAdmin},
	PermUsersAssignAdmin:          {RoleAdmin},
}

// KindPermission builds the per-kind request permission, e.g. ("fund", "transition").
func KindPermission(kind, action string) Permission {
	return Permission(kind + "." + action)
}

func Can(role Role, perm Permission) bool {
	allowed, ok := Permissions[perm]
	if !ok {
		return false
	}
	return allowed.Contains(role)
}

// RequireRole returns a PermissionDenied error unless role is in allowed.
func RequireRole(role Role, allowed RoleSet) error {
	if allowed.Contains(role) {
		return nil
	}
	return apperr.Forbidden(fmt.Sprintf("role %s is not permitted to perform this operation", displayRole(role)))
}

func Require(role Role, perm Permission) error {
	return RequireRole(role, Permissions[perm])
}

func displayRole(role Role) string {
	if role == "" {
		return "(none)"
	}
	return string(role)
}
