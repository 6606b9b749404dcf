package core

import (
	"time"

	"staffdesk/internal/domain/auth"
)

// Employee is the HR profile joined with its login account.
type Employee struct {
	ID               string     `json:"id"`
	UserID           string     `json:"userId"`
	EmployeeCode     string     `json:"employeeCode"`
	Email            string     `json:"email"`
	Name             string     `json:"name"`
	Role             auth.Role  `json:"role"`
	FirstName        string     `json:"firstName"`
	LastName         string     `json:"lastName"`
	Position         string     `json:"position"`
	Department       string     `json:"department"`
	HireDate         *time.Time `json:"hireDate,omitempty"`
	Salary           *float64   `json:"salary,omitempty"`
	Phone            string     `json:"phone"`
	Address          string     `json:"address"`
	EmergencyContact string     `json:"emergencyContact"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

type NewUser struct {
	Email        string
	Name         string
	PasswordHash string
	Role         auth.Role
}

type CreateEmployeeInput struct {
	Email            string     `json:"email"`
	Name             string     `json:"name"`
	Password         string     `json:"password"`
	Role             string     `json:"role"`
	EmployeeCode     string     `json:"employeeCode"`
	FirstName        string     `json:"firstName"`
	LastName         string     `json:"lastName"`
	Position         string     `json:"position"`
	Department       string     `json:"department"`
	HireDate         *time.Time `json:"-"`
	Salary           *float64   `json:"salary"`
	Phone            string     `json:"phone"`
	Address          string     `json:"address"`
	EmergencyContact string     `json:"emergencyContact"`
}

// CreatedEmployee carries the generated password exactly once, when the
// caller did not supply one.
type CreatedEmployee struct {
	Employee          Employee `json:"employee"`
	TemporaryPassword string   `json:"temporaryPassword,omitempty"`
}

// EmployeeUpdate holds the fields submitted in a PUT. Nil means "not submitted".
type EmployeeUpdate struct {
	FirstName        *string    `json:"firstName,omitempty"`
	LastName         *string    `json:"lastName,omitempty"`
	Phone            *string    `json:"phone,omitempty"`
	Address          *string    `json:"address,omitempty"`
	EmergencyContact *string    `json:"emergencyContact,omitempty"`
	Position         *string    `json:"position,omitempty"`
	Department       *string    `json:"department,omitempty"`
	Salary           *float64   `json:"salary,omitempty"`
	HireDate         *time.Time `json:"hireDate,omitempty"`
}

type ListFilter struct {
	Department string
	Limit      int
	Offset     int
}
