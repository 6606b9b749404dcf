package core

import (
	"testing"
	"time"

	"staffdesk/internal/domain/auth"
)

func strPtr(v string) *string { return &v }

func sampleEmployee() *Employee {
	salary := 120000.0
	return &Employee{ID: "e1", UserID: "u1", Salary: &salary}
}

func TestRedactEmployeeHR(t *testing.T) {
	emp := sampleEmployee()
	RedactEmployee(emp, auth.Principal{UserID: "hr", Role: auth.RoleHR})
	if emp.Salary == nil {
		t.Fatal("HR should retain salary")
	}
}

func TestRedactEmployeeManager(t *testing.T) {
	emp := sampleEmployee()
	RedactEmployee(emp, auth.Principal{UserID: "m1", Role: auth.RoleManager})
	if emp.Salary != nil {
		t.Fatal("manager should not see salary")
	}
}

func TestRedactEmployeeSelf(t *testing.T) {
	emp := sampleEmployee()
	RedactEmployee(emp, auth.Principal{UserID: "u1", Role: auth.RoleEmployee})
	if emp.Salary == nil {
		t.Fatal("employee should see their own salary")
	}
}

func TestRestrictSelfKeepsOnlyContactFields(t *testing.T) {
	salary := 1.0
	hire := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	update := EmployeeUpdate{
		Phone:      strPtr("555-0100"),
		Address:    strPtr("1 Main St"),
		Position:   strPtr("CTO"),
		Department: strPtr("Board"),
		Salary:     &salary,
		HireDate:   &hire,
	}

	self := auth.Principal{UserID: "u1", Role: auth.RoleEmployee, EmployeeID: "e1"}
	effective := update.Restrict(AllowedUpdateFields(self, true))

	got := effective.Submitted()
	if len(got) != 2 || got[0] != FieldAddress || got[1] != FieldPhone {
		t.Fatalf("unexpected effective fields: %v", got)
	}
	if effective.Salary != nil || effective.Position != nil {
		t.Fatal("restricted fields must be dropped for self-service")
	}
}

func TestRestrictHRKeepsEverything(t *testing.T) {
	salary := 1.0
	update := EmployeeUpdate{Phone: strPtr("555"), Salary: &salary, Department: strPtr("Ops")}
	hr := auth.Principal{UserID: "hr", Role: auth.RoleHR}

	effective := update.Restrict(AllowedUpdateFields(hr, false))
	if len(effective.Submitted()) != 3 {
		t.Fatalf("expected all fields kept, got %v", effective.Submitted())
	}
}

func TestAllowedUpdateFieldsForeignRecordWithoutRights(t *testing.T) {
	manager := auth.Principal{UserID: "m1", Role: auth.RoleManager}
	if len(AllowedUpdateFields(manager, false)) != 0 {
		t.Fatal("manager has no update rights on other records")
	}
}
