package core

import (
	"sort"

	"staffdesk/internal/domain/auth"
)

const (
	FieldFirstName        = "firstName"
	FieldLastName         = "lastName"
	FieldPhone            = "phone"
	FieldAddress          = "address"
	FieldEmergencyContact = "emergencyContact"
	FieldPosition         = "position"
	FieldDepartment       = "department"
	FieldSalary           = "salary"
	FieldHireDate         = "hireDate"
)

// ContactFields may be edited by the employee themself.
var ContactFields = []string{FieldFirstName, FieldLastName, FieldPhone, FieldAddress, FieldEmergencyContact}

// RestrictedFields need employees.update_restricted.
var RestrictedFields = []string{FieldPosition, FieldDepartment, FieldSalary, FieldHireDate}

// AllowedUpdateFields is the set of fields p may change on a record; isSelf
// reports whether the record is p's own.
func AllowedUpdateFields(p auth.Principal, isSelf bool) map[string]bool {
	allowed := map[string]bool{}
	if isSelf || p.Can(auth.PermEmployeesUpdateAny) {
		for _, f := range ContactFields {
			allowed[f] = true
		}
	}
	if p.Can(auth.PermEmployeesUpdateRestricted) {
		for _, f := range RestrictedFields {
			allowed[f] = true
		}
	}
	return allowed
}

// Submitted lists the fields present in u, sorted.
func (u EmployeeUpdate) Submitted() []string {
	var out []string
	for field, set := range u.presence() {
		if set {
			out = append(out, field)
		}
	}
	sort.Strings(out)
	return out
}

func (u EmployeeUpdate) presence() map[string]bool {
	return map[string]bool{
		FieldFirstName:        u.FirstName != nil,
		FieldLastName:         u.LastName != nil,
		FieldPhone:            u.Phone != nil,
		FieldAddress:          u.Address != nil,
		FieldEmergencyContact: u.EmergencyContact != nil,
		FieldPosition:         u.Position != nil,
		FieldDepartment:       u.Department != nil,
		FieldSalary:           u.Salary != nil,
		FieldHireDate:         u.HireDate != nil,
	}
}

// Restrict drops every submitted field not in allowed.
func (u EmployeeUpdate) Restrict(allowed map[string]bool) EmployeeUpdate {
	out := u
	if !allowed[FieldFirstName] {
		out.FirstName = nil
	}
	if !allowed[FieldLastName] {
		out.LastName = nil
	}
	if !allowed[FieldPhone] {
		out.Phone = nil
	}
	if !allowed[FieldAddress] {
		out.Address = nil
	}
	if !allowed[FieldEmergencyContact] {
		out.EmergencyContact = nil
	}
	if !allowed[FieldPosition] {
		out.Position = nil
	}
	if !allowed[FieldDepartment] {
		out.Department = nil
	}
	if !allowed[FieldSalary] {
		out.Salary = nil
	}
	if !allowed[FieldHireDate] {
		out.HireDate = nil
	}
	return out
}

func (u EmployeeUpdate) Empty() bool {
	return len(u.Submitted()) == 0
}

// RedactEmployee hides compensation from callers who are neither the
// employee nor allowed to see pay data.
func RedactEmployee(emp *Employee, p auth.Principal) {
	if emp == nil {
		return
	}
	if emp.UserID == p.UserID {
		return
	}
	switch p.Role {
	case auth.RoleAdmin, auth.RoleHR, auth.RolePayroll:
		return
	}
	emp.Salary = nil
}
