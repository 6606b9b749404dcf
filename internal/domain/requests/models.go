package requests

import (
	"strings"
	"time"

	"staffdesk/internal/apperr"
)

// Kind names one of the three request families. Each kind has its own table.
type Kind string

const (
	KindVacation Kind = "vacation"
	KindFund     Kind = "fund"
	KindGeneral  Kind = "general"
)

var AllKinds = []Kind{KindVacation, KindFund, KindGeneral}

func ParseKind(value string) (Kind, error) {
	kind := Kind(strings.ToLower(strings.TrimSpace(value)))
	switch kind {
	case KindVacation, KindFund, KindGeneral:
		return kind, nil
	}
	return "", apperr.NotFound("unknown request kind")
}

func (k Kind) table() string {
	switch k {
	case KindVacation:
		return "vacation_requests"
	case KindFund:
		return "fund_requests"
	default:
		return "general_requests"
	}
}

const (
	StatusPending  = "PENDING"
	StatusApproved = "APPROVED"
	StatusRejected = "REJECTED"
)

var Statuses = []string{StatusPending, StatusApproved, StatusRejected}

var FundTypes = []string{"EQUIPMENT", "TRAINING", "MEDICAL", "TRAVEL", "OTHER"}

const DefaultPriority = "MEDIUM"

var Priorities = []string{"LOW", "MEDIUM", "HIGH", "URGENT"}

// Request is the shared shape of all three kinds. Fields that belong to a
// different kind stay at their zero value and are omitted from JSON.
type Request struct {
	ID            string     `json:"id"`
	Kind          Kind       `json:"kind"`
	EmployeeID    string     `json:"employeeId"`
	EmployeeName  string     `json:"employeeName"`
	EmployeeEmail string     `json:"-"`
	Status        string     `json:"status"`
	Response      string     `json:"response"`
	ApprovedBy    *string    `json:"approvedBy"`
	ApprovedAt    *time.Time `json:"approvedAt"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`

	StartDate *time.Time `json:"startDate,omitempty"`
	EndDate   *time.Time `json:"endDate,omitempty"`
	Days      int        `json:"days,omitempty"`
	Reason    string     `json:"reason,omitempty"`

	FundType    string   `json:"fundType,omitempty"`
	Amount      *float64 `json:"amount,omitempty"`
	RequestType string   `json:"requestType,omitempty"`

	Subject     string  `json:"subject,omitempty"`
	Description string  `json:"description,omitempty"`
	Priority    string  `json:"priority,omitempty"`
	AssignedTo  *string `json:"assignedTo,omitempty"`
}

type VacationInput struct {
	StartDate *time.Time
	EndDate   *time.Time
	Days      *int
	Reason    string
}

type FundInput struct {
	FundType    string  `json:"fundType"`
	Amount      float64 `json:"amount"`
	Reason      string  `json:"reason"`
	RequestType string  `json:"requestType"`
}

type GeneralInput struct {
	RequestType string `json:"requestType"`
	Subject     string `json:"subject"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
}

type TransitionInput struct {
	Status   string `json:"status"`
	Response string `json:"response"`
}

type ListFilter struct {
	EmployeeID string
	Status     string
	Limit      int
	Offset     int
}
